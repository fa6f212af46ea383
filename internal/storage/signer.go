package storage

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/starford/facdocs/internal/apperr"
)

// Signer issues and checks download tokens for blobs served by this process.
// A token binds one blob path to an expiry.
type Signer struct {
	key     []byte
	baseURL string
	now     func() time.Time
}

// NewSigner returns a Signer producing URLs of the form
// <baseURL>/<path>?token=<jwt>.
func NewSigner(key []byte, baseURL string) *Signer {
	return &Signer{key: key, baseURL: strings.TrimRight(baseURL, "/"), now: time.Now}
}

type blobClaims struct {
	jwt.RegisteredClaims
}

// URL signs path for ttl.
func (s *Signer) URL(path string, ttl time.Duration) (string, error) {
	now := s.now()
	claims := blobClaims{jwt.RegisteredClaims{
		Subject:   path,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.key)
	if err != nil {
		return "", fmt.Errorf("storage: sign url: %w", err)
	}
	return s.baseURL + "/" + escapePath(path) + "?token=" + url.QueryEscape(token), nil
}

// Verify checks that token is valid, unexpired and issued for path.
func (s *Signer) Verify(token, path string) error {
	var claims blobClaims
	_, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return s.key, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(s.now))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return apperr.Unauthorized("download link expired")
		}
		return apperr.Unauthorized("invalid download token")
	}
	if claims.Subject != path {
		return apperr.Unauthorized("download token does not match %s", path)
	}
	return nil
}

func escapePath(p string) string {
	parts := strings.Split(p, "/")
	for i, part := range parts {
		parts[i] = url.PathEscape(part)
	}
	return strings.Join(parts, "/")
}
