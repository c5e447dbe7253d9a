package ghl

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
)

// tokenValidity is the assumed lifetime of a bearer credential when the
// token itself does not carry an earlier expiry.
const tokenValidity = 24 * time.Hour

// TokenSource caches the downstream bearer credential and refreshes it from
// the portal refresh endpoint when missing or expired. Failure to obtain a
// credential is fatal for the current operation.
type TokenSource struct {
	authURL    string
	locationID string
	http       *http.Client
	logger     zerolog.Logger

	mu        sync.Mutex
	token     string
	expiresAt time.Time

	now func() time.Time
}

// NewTokenSource builds a credential manager for one CRM location.
func NewTokenSource(authURL, locationID string, logger zerolog.Logger) *TokenSource {
	return &TokenSource{
		authURL:    authURL,
		locationID: locationID,
		http:       &http.Client{Timeout: 30 * time.Second},
		logger:     logger.With().Str("component", "ghl-token").Logger(),
		now:        time.Now,
	}
}

// Token returns the cached credential, fetching a new one when absent or
// past its expiry.
func (ts *TokenSource) Token(ctx context.Context) (string, error) {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	if ts.token != "" && ts.now().Before(ts.expiresAt) {
		return ts.token, nil
	}
	return ts.refreshLocked(ctx)
}

// ForceRefresh discards the cached credential and fetches a new one. Used
// after an authentication-rejected response.
func (ts *TokenSource) ForceRefresh(ctx context.Context) (string, error) {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	ts.token = ""
	return ts.refreshLocked(ctx)
}

func (ts *TokenSource) refreshLocked(ctx context.Context) (string, error) {
	payload, _ := json.Marshal(map[string]string{"location_id": ts.locationID})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, ts.authURL, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("build token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := ts.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("refresh token: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return "", fmt.Errorf("refresh token: status %d: %s", resp.StatusCode, body)
	}

	var out struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode token response: %w", err)
	}
	if out.AccessToken == "" {
		return "", fmt.Errorf("refresh token: access_token missing from response")
	}

	ts.token = out.AccessToken
	ts.expiresAt = ts.expiry(out.AccessToken)
	ts.logger.Info().Time("expires_at", ts.expiresAt).Msg("access token refreshed")
	return ts.token, nil
}

// expiry derives the cache expiry for a credential. When the token is a JWT
// carrying an exp claim earlier than the fixed validity window, that claim
// wins; otherwise the fixed window applies. The claim is read without
// signature verification since the token is only cached, never trusted.
func (ts *TokenSource) expiry(token string) time.Time {
	fallback := ts.now().Add(tokenValidity)
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return fallback
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return fallback
	}
	if exp.Time.Before(fallback) && exp.Time.After(ts.now()) {
		return exp.Time
	}
	return fallback
}
