// Package auth verifies bearer credentials and issues login tokens.
//
// Three modes are supported: disabled (every request passes), token (a single
// static shared secret) and jwt (HS256 tokens issued by Login after a bcrypt
// password check).
package auth

import (
	"crypto/subtle"
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/starford/facdocs/internal/apperr"
)

// Modes.
const (
	ModeDisabled = "disabled"
	ModeToken    = "token"
	ModeJWT      = "jwt"
)

const adminSubject = "admin"

// Config selects the mode and its secrets.
type Config struct {
	Mode              string
	Token             string
	Secret            []byte
	TTL               time.Duration
	AdminPasswordHash string
}

// Authenticator checks Authorization headers and performs logins.
type Authenticator struct {
	cfg Config
	now func() time.Time
}

// New creates an Authenticator. A zero TTL defaults to 12 hours.
func New(cfg Config) *Authenticator {
	if cfg.Mode == "" {
		cfg.Mode = ModeDisabled
	}
	if cfg.TTL <= 0 {
		cfg.TTL = 12 * time.Hour
	}
	return &Authenticator{cfg: cfg, now: time.Now}
}

// Enabled reports whether requests need a credential.
func (a *Authenticator) Enabled() bool { return a.cfg.Mode != ModeDisabled }

// Mode returns the configured mode.
func (a *Authenticator) Mode() string { return a.cfg.Mode }

// Authorize validates an Authorization header value and returns the
// credential's subject.
func (a *Authenticator) Authorize(header string) (string, error) {
	if !a.Enabled() {
		return adminSubject, nil
	}
	raw, ok := strings.CutPrefix(header, "Bearer ")
	raw = strings.TrimSpace(raw)
	if !ok || raw == "" {
		return "", apperr.Unauthorized("missing bearer token")
	}
	switch a.cfg.Mode {
	case ModeToken:
		if subtle.ConstantTimeCompare([]byte(raw), []byte(a.cfg.Token)) != 1 {
			return "", apperr.Unauthorized("invalid token")
		}
		return adminSubject, nil
	case ModeJWT:
		return a.verify(raw)
	}
	return "", apperr.Unauthorized("unsupported auth mode %q", a.cfg.Mode)
}

// Login exchanges the admin password for a signed token. In token mode the
// static token is returned, so clients can use one login flow.
func (a *Authenticator) Login(password string) (string, time.Time, error) {
	switch a.cfg.Mode {
	case ModeDisabled:
		return "", time.Time{}, apperr.Validation("authentication is disabled")
	case ModeToken:
		if subtle.ConstantTimeCompare([]byte(password), []byte(a.cfg.Token)) != 1 {
			return "", time.Time{}, apperr.Unauthorized("invalid credentials")
		}
		return a.cfg.Token, time.Time{}, nil
	}

	if a.cfg.AdminPasswordHash == "" {
		return "", time.Time{}, apperr.Unauthorized("login is not configured")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(a.cfg.AdminPasswordHash), []byte(password)); err != nil {
		return "", time.Time{}, apperr.Unauthorized("invalid credentials")
	}
	now := a.now()
	exp := now.Add(a.cfg.TTL)
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": adminSubject,
		"iat": now.Unix(),
		"exp": exp.Unix(),
	})
	signed, err := tok.SignedString(a.cfg.Secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, exp.UTC(), nil
}

func (a *Authenticator) verify(raw string) (string, error) {
	tok, err := jwt.Parse(raw, func(*jwt.Token) (any, error) { return a.cfg.Secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(a.now),
	)
	if errors.Is(err, jwt.ErrTokenExpired) {
		return "", apperr.Unauthorized("token expired")
	}
	if err != nil || !tok.Valid {
		return "", apperr.Unauthorized("invalid token")
	}
	sub, err := tok.Claims.GetSubject()
	if err != nil || sub == "" {
		return "", apperr.Unauthorized("token has no subject")
	}
	return sub, nil
}

// HashPassword returns a bcrypt hash suitable for auth.admin_password_hash.
func HashPassword(password string) (string, error) {
	h, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(h), nil
}
