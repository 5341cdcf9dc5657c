// Package credentials provides bearer-token management for the meetsync CLI.
//
// The upstream platform uses server-to-server OAuth: the client exchanges its
// account/client credentials for a short-lived access token. This package owns
// that token. It caches the token in memory with a safety margin before the
// reported expiry, collapses concurrent refreshes into a single in-flight
// exchange, and supports explicit invalidation when the upstream rejects a
// token mid-run.
//
// The client secret itself is stored in the system keyring:
// - macOS: Keychain
// - Windows: Credential Manager
// - Linux: Secret Service (libsecret)
//
// For CI/testing environments, set MEETSYNC_CLIENT_SECRET instead.
package credentials

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"sync"
	"time"

	"github.com/zalando/go-keyring"

	mserrors "github.com/otherjamesbrown/meetsync/pkg/errors"
)

// keyringService is the service name used for keyring entries.
const keyringService = "meetsync"

// ExpiryMargin is subtracted from the reported token lifetime so a token is
// never handed out moments before the upstream considers it expired.
const ExpiryMargin = 60 * time.Second

// ErrNoSecret is returned when no client secret is stored.
var ErrNoSecret = errors.New("no client secret stored")

// StoreSecret saves the client secret for the given client ID in the keyring.
func StoreSecret(clientID, secret string) error {
	if err := keyring.Set(keyringService, clientID, secret); err != nil {
		return fmt.Errorf("storing client secret: %w", err)
	}
	return nil
}

// LoadSecret returns the client secret for the given client ID.
// MEETSYNC_CLIENT_SECRET takes precedence over the keyring.
func LoadSecret(clientID string) (string, error) {
	if secret := os.Getenv("MEETSYNC_CLIENT_SECRET"); secret != "" {
		return secret, nil
	}

	secret, err := keyring.Get(keyringService, clientID)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return "", ErrNoSecret
		}
		return "", fmt.Errorf("reading client secret from keyring: %w", err)
	}
	return secret, nil
}

// DeleteSecret removes the stored client secret.
func DeleteSecret(clientID string) error {
	if err := keyring.Delete(keyringService, clientID); err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return fmt.Errorf("deleting client secret: %w", err)
	}
	return nil
}

// Token is a cached bearer credential.
type Token struct {
	// Value is the opaque bearer token.
	Value string

	// ExpiresAt is the instant after which the token must not be reused.
	// The expiry margin has already been applied.
	ExpiresAt time.Time
}

// Valid reports whether the token can still be used at the given instant.
func (t Token) Valid(now time.Time) bool {
	return t.Value != "" && now.Before(t.ExpiresAt)
}

// ManagerConfig configures a token Manager.
type ManagerConfig struct {
	// AuthURL is the OAuth token endpoint.
	AuthURL string

	// AccountID is the server-to-server OAuth account identifier.
	AccountID string

	// ClientID and ClientSecret authenticate the exchange request.
	ClientID     string
	ClientSecret string

	// HTTPClient is the client used for the exchange. Defaults to a client
	// with a 30s timeout.
	HTTPClient *http.Client

	// Now overrides the clock, for tests.
	Now func() time.Time
}

// Manager owns the cached access token. All methods are safe for concurrent
// use; concurrent refreshes collapse into a single exchange request.
type Manager struct {
	cfg  ManagerConfig
	mu   sync.Mutex
	tok  Token
	now  func() time.Time
	http *http.Client
}

// NewManager creates a token Manager.
func NewManager(cfg ManagerConfig) *Manager {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Manager{cfg: cfg, now: now, http: httpClient}
}

// GetToken returns a valid token, refreshing it when the cached one is absent
// or within the expiry margin. The mutex is held across the exchange, so
// callers arriving during a refresh wait for it instead of issuing their own.
func (m *Manager) GetToken(ctx context.Context) (Token, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.tok.Valid(m.now()) {
		return m.tok, nil
	}

	tok, err := m.exchange(ctx)
	if err != nil {
		return Token{}, err
	}
	m.tok = tok
	return tok, nil
}

// Invalidate clears the cached token unconditionally. The next GetToken call
// performs a fresh exchange.
func (m *Manager) Invalidate() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tok = Token{}
}

// tokenResponse is the OAuth token endpoint payload.
type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

// exchange performs the account-credentials grant. Callers must hold m.mu.
func (m *Manager) exchange(ctx context.Context) (Token, error) {
	q := url.Values{}
	q.Set("grant_type", "account_credentials")
	q.Set("account_id", m.cfg.AccountID)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.cfg.AuthURL+"?"+q.Encode(), nil)
	if err != nil {
		return Token{}, fmt.Errorf("building token request: %w", err)
	}
	req.SetBasicAuth(m.cfg.ClientID, m.cfg.ClientSecret)

	resp, err := m.http.Do(req)
	if err != nil {
		return Token{}, fmt.Errorf("%w: token endpoint unreachable: %v", mserrors.ErrAuth, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return Token{}, fmt.Errorf("%w: token endpoint returned %d: %s",
			mserrors.ErrAuth, resp.StatusCode, string(body))
	}

	var tr tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return Token{}, fmt.Errorf("%w: decoding token response: %v", mserrors.ErrAuth, err)
	}
	if tr.AccessToken == "" {
		return Token{}, fmt.Errorf("%w: token endpoint returned empty access_token", mserrors.ErrAuth)
	}

	lifetime := time.Duration(tr.ExpiresIn) * time.Second
	return Token{
		Value:     tr.AccessToken,
		ExpiresAt: m.now().Add(lifetime - ExpiryMargin),
	}, nil
}
