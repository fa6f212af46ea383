package explorer

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Credentials is what a login leaves behind.
type Credentials struct {
	Server string `yaml:"server"`
	Token  string `yaml:"token"`
}

// Session persists Credentials in a user-private YAML file.
type Session struct {
	Path string
}

// DefaultSessionPath returns <user config dir>/facdocs/session.yaml.
func DefaultSessionPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "facdocs", "session.yaml"), nil
}

// Load reads the stored credentials. A missing file yields zero Credentials.
func (s Session) Load() (Credentials, error) {
	var c Credentials
	data, err := os.ReadFile(s.Path)
	if errors.Is(err, os.ErrNotExist) {
		return c, nil
	}
	if err != nil {
		return c, fmt.Errorf("read session: %w", err)
	}
	if err := yaml.Unmarshal(data, &c); err != nil {
		return c, fmt.Errorf("parse session %s: %w", s.Path, err)
	}
	return c, nil
}

// Save writes c with owner-only permissions.
func (s Session) Save(c Credentials) error {
	if err := os.MkdirAll(filepath.Dir(s.Path), 0o700); err != nil {
		return fmt.Errorf("create session dir: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(s.Path, data, 0o600)
}

// Clear removes the stored token but keeps the server address.
func (s Session) Clear() error {
	c, err := s.Load()
	if err != nil || c.Server == "" {
		if rmErr := os.Remove(s.Path); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
			return rmErr
		}
		return nil
	}
	c.Token = ""
	return s.Save(c)
}
