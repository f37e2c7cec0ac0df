// Package credentials resolves the bearer token used to sample quota usage
// and forces a refresh through the vendor CLI when the token goes stale.
package credentials

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// DefaultGracePeriod keeps a token from being used when it would expire mid-flight.
const DefaultGracePeriod = 5 * time.Minute

var (
	// ErrNoCredential indicates that no token is stored.
	ErrNoCredential = errors.New("no credential available")
	// ErrRefreshFailed indicates that a forced refresh did not complete.
	ErrRefreshFailed = errors.New("credential refresh failed")
	// ErrRefreshTimeout indicates the refresh did not finish within its deadline.
	ErrRefreshTimeout = errors.New("credential refresh timed out")
)

// Credential is a bearer token and its expiry. A zero ExpiresAt means the
// token carries no expiry information.
type Credential struct {
	Token     string
	ExpiresAt time.Time
}

// Usable reports whether the token can be sent at now without expiring within grace.
func (c *Credential) Usable(now time.Time, grace time.Duration) bool {
	if c == nil || c.Token == "" {
		return false
	}
	if c.ExpiresAt.IsZero() {
		return true
	}
	return now.Before(c.ExpiresAt.Add(-grace))
}

// Source reads the currently stored credential.
type Source interface {
	// Name returns the source identifier (e.g., "file", "keychain").
	Name() string

	// Credential returns the stored credential or ErrNoCredential.
	Credential(ctx context.Context) (*Credential, error)
}

// Refresher asks the credential owner to mint a fresh token.
type Refresher interface {
	Refresh(ctx context.Context) error
}

// oauthFile mirrors the CLI credentials document.
type oauthFile struct {
	ClaudeAiOauth *struct {
		AccessToken string `json:"accessToken"`
		ExpiresAt   int64  `json:"expiresAt"` // epoch millis
	} `json:"claudeAiOauth"`
}

// parseOAuth extracts the token from a credentials document.
func parseOAuth(data []byte) (*Credential, error) {
	var doc oauthFile
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse credentials: %w", err)
	}
	if doc.ClaudeAiOauth == nil || doc.ClaudeAiOauth.AccessToken == "" {
		return nil, ErrNoCredential
	}

	cred := &Credential{Token: doc.ClaudeAiOauth.AccessToken}
	if doc.ClaudeAiOauth.ExpiresAt > 0 {
		cred.ExpiresAt = time.UnixMilli(doc.ClaudeAiOauth.ExpiresAt).UTC()
	}
	return cred, nil
}
