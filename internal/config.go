package internal

import (
	"fmt"
	"log/slog"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"

	"github.com/starford/facdocs/internal/auth"
)

// Drivers and formats.
const (
	StoreSQLite = "sqlite"
	StoreMongo  = "mongo"

	BlobsFS  = "fs"
	BlobsGCS = "gcs"

	LogFormatJSON = "json"
	LogFormatText = "text"
)

// Config represents the application configuration.
type Config struct {
	App   ApplicationConfig `yaml:"app"`
	Store StoreConfig       `yaml:"store"`
	Blobs BlobsConfig       `yaml:"blobs"`
	Tree  TreeConfig        `yaml:"tree"`
	Auth  AuthConfig        `yaml:"auth"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return fmt.Errorf("app: %w", err)
	}
	if err := c.Store.Validate(); err != nil {
		return fmt.Errorf("store: %w", err)
	}
	if err := c.Blobs.Validate(); err != nil {
		return fmt.Errorf("blobs: %w", err)
	}
	if err := c.Tree.Validate(); err != nil {
		return fmt.Errorf("tree: %w", err)
	}
	if err := c.Auth.Validate(); err != nil {
		return fmt.Errorf("auth: %w", err)
	}
	return nil
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel  slog.Level `yaml:"log_level"`
	LogFormat string     `yaml:"log_format"`
	HTTP      HTTPConfig `yaml:"http"`
	// PublicURL is the externally reachable base URL, used in signed
	// download links of the fs blob driver.
	PublicURL   string   `yaml:"public_url"`
	CORSOrigins []string `yaml:"cors_origins"`
	AccessLog   bool     `yaml:"access_log"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	if c.LogFormat == "" {
		c.LogFormat = LogFormatJSON
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.LogFormat, validation.In(LogFormatJSON, LogFormatText)),
		validation.Field(&c.PublicURL, validation.Required, is.URL),
	); err != nil {
		return err
	}
	return c.HTTP.Validate()
}

// HTTPConfig holds HTTP server configuration.
type HTTPConfig struct {
	Port int `yaml:"port"`
}

// Address returns HTTP server address.
func (c *HTTPConfig) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Validate validates the HTTP configuration.
func (c *HTTPConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
	)
}

// StoreConfig selects the node store.
type StoreConfig struct {
	Driver string       `yaml:"driver"`
	SQLite SQLiteConfig `yaml:"sqlite"`
	Mongo  MongoConfig  `yaml:"mongo"`
}

// Validate validates the store configuration.
func (c *StoreConfig) Validate() error {
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Driver, validation.Required, validation.In(StoreSQLite, StoreMongo)),
	); err != nil {
		return err
	}
	if c.Driver == StoreMongo {
		return c.Mongo.Validate()
	}
	return c.SQLite.Validate()
}

// SQLiteConfig holds SQLite database configuration.
type SQLiteConfig struct {
	Path string `yaml:"path"`
}

// Validate validates the SQLite configuration.
func (c *SQLiteConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

// MongoConfig holds MongoDB connection settings.
type MongoConfig struct {
	URI      string `yaml:"uri"`
	Database string `yaml:"database"`
}

// Validate validates the MongoDB configuration.
func (c *MongoConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.URI, validation.Required),
		validation.Field(&c.Database, validation.Required),
	)
}

// BlobsConfig selects the blob store and the upload/download limits.
type BlobsConfig struct {
	Driver          string        `yaml:"driver"`
	Root            string        `yaml:"root"`
	Bucket          string        `yaml:"bucket"`
	CredentialsFile string        `yaml:"credentials_file"`
	MaxUploadBytes  int64         `yaml:"max_upload_bytes"`
	URLTTL          time.Duration `yaml:"url_ttl"`
	// SigningKey signs fs download links. When empty a random key is
	// generated at startup and links do not survive a restart.
	SigningKey string `yaml:"signing_key"`
}

// Validate validates the blob configuration.
func (c *BlobsConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Driver, validation.Required, validation.In(BlobsFS, BlobsGCS)),
		validation.Field(&c.Root, validation.When(c.Driver == BlobsFS, validation.Required)),
		validation.Field(&c.Bucket, validation.When(c.Driver == BlobsGCS, validation.Required)),
		validation.Field(&c.MaxUploadBytes, validation.Min(int64(1))),
		validation.Field(&c.URLTTL, validation.Min(time.Second), validation.Max(7*24*time.Hour)),
		validation.Field(&c.SigningKey, validation.When(c.SigningKey != "", validation.Length(16, 0))),
	)
}

// TreeConfig tunes tree operations and background maintenance.
type TreeConfig struct {
	DeleteConcurrency int         `yaml:"delete_concurrency"`
	SeedFacilityRoot  bool        `yaml:"seed_facility_root"`
	OrphanSweep       SweepConfig `yaml:"orphan_sweep"`
}

// Validate validates the tree configuration.
func (c *TreeConfig) Validate() error {
	if err := validation.ValidateStruct(c,
		validation.Field(&c.DeleteConcurrency, validation.Min(1), validation.Max(256)),
	); err != nil {
		return err
	}
	return c.OrphanSweep.Validate()
}

// SweepConfig schedules the orphaned blob sweeper. A zero interval
// disables it.
type SweepConfig struct {
	Interval time.Duration `yaml:"interval"`
	Grace    time.Duration `yaml:"grace"`
}

// Validate validates the sweeper configuration.
func (c *SweepConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Interval, validation.When(c.Interval != 0, validation.Min(time.Minute))),
		validation.Field(&c.Grace, validation.When(c.Interval != 0, validation.Required, validation.Min(time.Minute))),
	)
}

// AuthConfig holds authentication configuration.
//
// Mode controls how authentication is enforced:
//   - "disabled" (default): no authentication required, suitable for local dev.
//   - "token": Bearer token authentication; Token must be non-empty.
//   - "jwt": POST /api/auth/login exchanges the admin password for a signed
//     token; JWTSecret and AdminPasswordHash must be set.
type AuthConfig struct {
	Mode              string          `yaml:"mode"`
	Token             string          `yaml:"token"`
	JWTSecret         string          `yaml:"jwt_secret"`
	JWTTTL            time.Duration   `yaml:"jwt_ttl"`
	AdminPasswordHash string          `yaml:"admin_password_hash"`
	LoginRate         LoginRateConfig `yaml:"login_rate"`
}

// LoginRateConfig limits login attempts per client address.
type LoginRateConfig struct {
	Requests int           `yaml:"requests"`
	Window   time.Duration `yaml:"window"`
	Burst    int           `yaml:"burst"`
}

// Validate validates the auth configuration.
func (c *AuthConfig) Validate() error {
	if c.Mode == "" {
		c.Mode = auth.ModeDisabled
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Mode, validation.Required, validation.In(auth.ModeDisabled, auth.ModeToken, auth.ModeJWT)),
		validation.Field(&c.JWTTTL, validation.When(c.JWTTTL != 0, validation.Min(time.Minute))),
	); err != nil {
		return err
	}
	switch {
	case c.Mode == auth.ModeToken && c.Token == "":
		return fmt.Errorf("mode is %q but token is empty", auth.ModeToken)
	case c.Mode == auth.ModeJWT && len(c.JWTSecret) < 16:
		return fmt.Errorf("mode is %q but jwt_secret is shorter than 16 bytes", auth.ModeJWT)
	case c.Mode == auth.ModeJWT && c.AdminPasswordHash == "":
		return fmt.Errorf("mode is %q but admin_password_hash is empty", auth.ModeJWT)
	}
	return validation.ValidateStruct(&c.LoginRate,
		validation.Field(&c.LoginRate.Requests, validation.Min(0)),
		validation.Field(&c.LoginRate.Burst, validation.Min(0)),
		validation.Field(&c.LoginRate.Window, validation.When(c.LoginRate.Requests > 0, validation.Required)),
	)
}

// AuthEnabled returns true when authentication is active.
func (c *AuthConfig) AuthEnabled() bool {
	return c.Mode != auth.ModeDisabled
}

// Authenticator converts the section into an auth.Config.
func (c *AuthConfig) Authenticator() auth.Config {
	return auth.Config{
		Mode:              c.Mode,
		Token:             c.Token,
		Secret:            []byte(c.JWTSecret),
		TTL:               c.JWTTTL,
		AdminPasswordHash: c.AdminPasswordHash,
	}
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel:  slog.LevelInfo,
			LogFormat: LogFormatJSON,
			HTTP: HTTPConfig{
				Port: 8080,
			},
			PublicURL: "http://localhost:8080",
			AccessLog: true,
		},
		Store: StoreConfig{
			Driver: StoreSQLite,
			SQLite: SQLiteConfig{Path: "./facdocs.db"},
			Mongo:  MongoConfig{Database: "facdocs"},
		},
		Blobs: BlobsConfig{
			Driver:         BlobsFS,
			Root:           "./blobs",
			MaxUploadBytes: 10 << 20,
			URLTTL:         15 * time.Minute,
		},
		Tree: TreeConfig{
			DeleteConcurrency: 8,
			OrphanSweep: SweepConfig{
				Interval: time.Hour,
				Grace:    24 * time.Hour,
			},
		},
		Auth: AuthConfig{
			Mode:   auth.ModeDisabled,
			JWTTTL: 12 * time.Hour,
			LoginRate: LoginRateConfig{
				Requests: 10,
				Window:   time.Minute,
				Burst:    5,
			},
		},
	}
}
