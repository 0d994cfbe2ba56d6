// Package credential decides whether a login credential grants access and
// which Perplexity API key it resolves to.
package credential

import (
	"crypto/subtle"
	"errors"
	"strings"
)

// KeyPrefix marks a credential that is itself a Perplexity API key.
const KeyPrefix = "pplx-"

var (
	ErrEmptyCredential   = errors.New("credential is empty")
	ErrInvalidCredential = errors.New("invalid credential")
	ErrNoDefaultKey      = errors.New("shared secret accepted but no default API key is configured")
)

// Policy holds the configured shared secret and the key it maps to.
// An empty SharedSecret disables that path.
type Policy struct {
	SharedSecret  string
	DefaultAPIKey string
}

// Accept returns the API key the supplied credential grants.
func (p Policy) Accept(supplied string) (string, error) {
	supplied = strings.TrimSpace(supplied)
	if supplied == "" {
		return "", ErrEmptyCredential
	}
	if strings.HasPrefix(supplied, KeyPrefix) {
		return supplied, nil
	}
	if p.SharedSecret == "" || subtle.ConstantTimeCompare([]byte(supplied), []byte(p.SharedSecret)) != 1 {
		return "", ErrInvalidCredential
	}
	if p.DefaultAPIKey == "" {
		return "", ErrNoDefaultKey
	}
	return p.DefaultAPIKey, nil
}
