package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

type sample struct {
	Name  string `yaml:"name"`
	Level int    `yaml:"level"`
}

func (s *sample) Validate() error {
	if s.Name == "" {
		return errors.New("name is required")
	}
	return nil
}

func writeFile(t *testing.T, path, data string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestLoadExpandsEnvAndValidates(t *testing.T) {
	t.Setenv("SAMPLE_NAME", "plant-a")
	path := filepath.Join(t.TempDir(), "c.yaml")
	writeFile(t, path, "name: ${SAMPLE_NAME}\nlevel: 3\n")

	var s sample
	if err := Load(path, &s); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if s.Name != "plant-a" || s.Level != 3 {
		t.Fatalf("got %+v", s)
	}

	writeFile(t, path, "level: 1\n")
	err := Load(path, &sample{})
	if err == nil || !strings.Contains(err.Error(), "validation failed") {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestLoadOptional(t *testing.T) {
	dir := t.TempDir()

	s := sample{Name: "default"}
	found, err := LoadOptional(filepath.Join(dir, "missing.yaml"), &s)
	if err != nil || found || s.Name != "default" {
		t.Fatalf("missing file: found=%v err=%v %+v", found, err, s)
	}
	if _, err := LoadOptional(filepath.Join(dir, "missing.yaml"), &sample{}); err == nil {
		t.Fatal("invalid defaults should still fail validation")
	}

	path := filepath.Join(dir, "c.yaml")
	writeFile(t, path, "level: 7\n")
	found, err = LoadOptional(path, &s)
	if err != nil || !found || s.Name != "default" || s.Level != 7 {
		t.Fatalf("partial file: found=%v err=%v %+v", found, err, s)
	}
}

func TestWatchReloads(t *testing.T) {
	path := filepath.Join(t.TempDir(), "c.yaml")
	writeFile(t, path, "name: one\nlevel: 1\n")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	changes := make(chan *sample, 4)
	failures := make(chan error, 4)
	done := make(chan error, 1)
	go func() {
		done <- Watch(ctx, path, func() *sample { return &sample{} },
			func(s *sample) { changes <- s },
			func(err error) { failures <- err })
	}()

	// Give the watcher time to register before writing.
	time.Sleep(100 * time.Millisecond)
	writeFile(t, path, "name: two\nlevel: 2\n")

	select {
	case s := <-changes:
		if s.Name != "two" || s.Level != 2 {
			t.Fatalf("reloaded %+v", s)
		}
	case err := <-failures:
		t.Fatalf("unexpected reload error: %v", err)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for reload")
	}

	writeFile(t, path, "level: 3\n")
	select {
	case err := <-failures:
		if !strings.Contains(err.Error(), "validation failed") {
			t.Fatalf("unexpected error %v", err)
		}
	case s := <-changes:
		t.Fatalf("invalid file should not be applied, got %+v", s)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for reload error")
	}

	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Watch returned %v", err)
	}
}
