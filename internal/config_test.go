package internal

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	pkgconfig "github.com/starford/facdocs/pkg/config"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := NewDefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
}

func TestAuthConfig_DisabledMode(t *testing.T) {
	cfg := AuthConfig{Mode: "disabled", Token: ""}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("disabled mode should pass: %v", err)
	}
	if cfg.AuthEnabled() {
		t.Error("disabled mode should not be enabled")
	}
}

func TestAuthConfig_EmptyModeDefaultsDisabled(t *testing.T) {
	cfg := AuthConfig{Mode: "", Token: ""}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("empty mode should default to disabled: %v", err)
	}
	if cfg.Mode != "disabled" {
		t.Errorf("mode = %q, want disabled", cfg.Mode)
	}
}

func TestAuthConfig_TokenMode(t *testing.T) {
	cfg := AuthConfig{Mode: "token", Token: "mysecret"}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("token mode with token should pass: %v", err)
	}
	if !cfg.AuthEnabled() {
		t.Error("token mode should be enabled")
	}

	cfg.Token = ""
	err := cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "token is empty") {
		t.Fatalf("token mode with empty token: %v", err)
	}
}

func TestAuthConfig_JWTMode(t *testing.T) {
	cfg := AuthConfig{Mode: "jwt", JWTSecret: "0123456789abcdef", AdminPasswordHash: "$2a$10$x"}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("jwt mode should pass: %v", err)
	}
	if got := cfg.Authenticator(); got.Mode != "jwt" || string(got.Secret) != cfg.JWTSecret {
		t.Fatalf("Authenticator() = %+v", got)
	}

	short := cfg
	short.JWTSecret = "short"
	if err := short.Validate(); err == nil {
		t.Fatal("short jwt secret should fail")
	}
	noHash := cfg
	noHash.AdminPasswordHash = ""
	if err := noHash.Validate(); err == nil || !strings.Contains(err.Error(), "admin_password_hash") {
		t.Fatalf("missing password hash: %v", err)
	}
}

func TestAuthConfig_InvalidMode(t *testing.T) {
	cfg := AuthConfig{Mode: "magic", Token: "x"}
	if err := cfg.Validate(); err == nil {
		t.Fatal("invalid mode should fail validation")
	}
}

func TestDriverSpecificFields(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"mongo needs uri", func(c *Config) { c.Store.Driver = StoreMongo }, "store"},
		{"unknown store", func(c *Config) { c.Store.Driver = "postgres" }, "store"},
		{"gcs needs bucket", func(c *Config) { c.Blobs.Driver = BlobsGCS }, "blobs"},
		{"fs needs root", func(c *Config) { c.Blobs.Root = "" }, "blobs"},
		{"short signing key", func(c *Config) { c.Blobs.SigningKey = "abc" }, "blobs"},
		{"bad log format", func(c *Config) { c.App.LogFormat = "xml" }, "app"},
		{"bad public url", func(c *Config) { c.App.PublicURL = "not a url" }, "app"},
		{"sweep without grace", func(c *Config) { c.Tree.OrphanSweep.Grace = 0 }, "tree"},
		{"auth error surfaces", func(c *Config) { c.Auth.Mode = "token" }, "auth"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := NewDefaultConfig()
			tc.mutate(cfg)
			err := cfg.Validate()
			if err == nil || !strings.HasPrefix(err.Error(), tc.want+":") {
				t.Fatalf("Validate() = %v, want %s error", err, tc.want)
			}
		})
	}

	cfg := NewDefaultConfig()
	cfg.Store.Driver = StoreMongo
	cfg.Store.Mongo.URI = "mongodb://localhost:27017"
	cfg.Blobs.Driver = BlobsGCS
	cfg.Blobs.Bucket = "facility-docs"
	cfg.Tree.OrphanSweep = SweepConfig{}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("mongo+gcs config should pass: %v", err)
	}
}

func TestLoadYAML(t *testing.T) {
	t.Setenv("FACDOCS_TEST_TOKEN", "from-env")
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := `
app:
  log_level: debug
  log_format: text
  http:
    port: 9090
  public_url: https://docs.example.com
  cors_origins: [https://dashboard.example.com]
blobs:
  driver: fs
  root: /var/lib/facdocs
  url_ttl: 5m
tree:
  seed_facility_root: true
  orphan_sweep:
    interval: 0s
auth:
  mode: token
  token: ${FACDOCS_TEST_TOKEN}
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg := NewDefaultConfig()
	if err := pkgconfig.Load(path, cfg); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.App.HTTP.Address() != ":9090" || cfg.App.LogLevel.String() != "DEBUG" || cfg.App.LogFormat != LogFormatText {
		t.Fatalf("app section = %+v", cfg.App)
	}
	if cfg.Blobs.URLTTL != 5*time.Minute || cfg.Blobs.MaxUploadBytes != 10<<20 {
		t.Fatalf("blobs section = %+v", cfg.Blobs)
	}
	if !cfg.Tree.SeedFacilityRoot || cfg.Tree.OrphanSweep.Interval != 0 || cfg.Tree.DeleteConcurrency != 8 {
		t.Fatalf("tree section = %+v", cfg.Tree)
	}
	if cfg.Auth.Token != "from-env" {
		t.Fatalf("token = %q, want env expansion", cfg.Auth.Token)
	}
	if cfg.Store.SQLite.Path != "./facdocs.db" {
		t.Fatalf("defaults should survive partial files, got %+v", cfg.Store)
	}
}
