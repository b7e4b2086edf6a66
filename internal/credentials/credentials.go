// Package credentials owns the external task service's token pair. It is the
// only component that reads or writes the delegated-authorization credential:
// everything else goes through AccessToken/ForceRefresh.
package credentials

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/oauth2"

	"mindmate/internal/utils"
)

// ConnectionState reflects the health of the delegated authorization.
type ConnectionState string

const (
	StateDisconnected ConnectionState = "disconnected"
	StateConnected    ConnectionState = "connected"
	StateError        ConnectionState = "error"
)

// Credential is the persisted token pair. The refresh token is long-lived and
// must never be overwritten with an absent value.
type Credential struct {
	AccessToken  string          `json:"access_token"`
	RefreshToken string          `json:"refresh_token"`
	ExpiresAt    time.Time       `json:"expires_at"`
	State        ConnectionState `json:"state"`
}

// OAuthConfig holds the endpoints and client identity for the delegated
// authorization flow.
type OAuthConfig struct {
	ClientID     string
	ClientSecret string
	AuthURL      string
	TokenURL     string
	RedirectURL  string
	Scopes       []string
}

// Manager handles the credential lifecycle: connect, refresh, disconnect.
// Refresh is single-flight per user so concurrent sync attempts never race
// the token endpoint.
type Manager struct {
	keyring Keyring
	oauth   *oauth2.Config
	now     func() time.Time

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// ManagerOption is a functional option for Manager.
type ManagerOption func(*Manager)

// WithKeyring sets a custom keyring implementation.
func WithKeyring(k Keyring) ManagerOption {
	return func(m *Manager) {
		m.keyring = k
	}
}

// WithClock sets the time source, for expiry tests.
func WithClock(now func() time.Time) ManagerOption {
	return func(m *Manager) {
		m.now = now
	}
}

// NewManager creates a new credential manager.
func NewManager(cfg OAuthConfig, opts ...ManagerOption) *Manager {
	m := &Manager{
		keyring: &systemKeyring{},
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       cfg.Scopes,
			Endpoint: oauth2.Endpoint{
				AuthURL:  cfg.AuthURL,
				TokenURL: cfg.TokenURL,
			},
		},
		now:   time.Now,
		locks: make(map[string]*sync.Mutex),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

const keyringService = "mindmate-gtasks"

// userLock returns the per-user refresh mutex.
func (m *Manager) userLock(userID string) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()

	lock, ok := m.locks[userID]
	if !ok {
		lock = &sync.Mutex{}
		m.locks[userID] = lock
	}
	return lock
}

// load reads the persisted credential for a user, or nil if none exists.
func (m *Manager) load(userID string) (*Credential, error) {
	raw, err := m.keyring.Get(keyringService, userID)
	if err != nil || raw == "" {
		return nil, nil
	}

	var cred Credential
	if err := json.Unmarshal([]byte(raw), &cred); err != nil {
		return nil, fmt.Errorf("corrupt stored credential: %w", err)
	}
	return &cred, nil
}

// save persists the credential for a user.
func (m *Manager) save(userID string, cred *Credential) error {
	raw, err := json.Marshal(cred)
	if err != nil {
		return err
	}
	return m.keyring.Set(keyringService, userID, string(raw))
}

// AccessToken returns a valid access token for the user, refreshing first
// when the stored one has expired. A valid, unexpired token is never
// refreshed.
func (m *Manager) AccessToken(ctx context.Context, userID string) (string, error) {
	cred, err := m.load(userID)
	if err != nil {
		return "", err
	}
	if cred == nil {
		return "", utils.ErrNotConnected()
	}
	if cred.State == StateError {
		return "", utils.ErrReconnectRequired()
	}

	if m.now().Before(cred.ExpiresAt) {
		return cred.AccessToken, nil
	}

	return m.refresh(ctx, userID, false)
}

// ForceRefresh discards the current access token and performs the exchange
// regardless of the stored expiry. Used after the service rejects a token
// the local clock still considered valid.
func (m *Manager) ForceRefresh(ctx context.Context, userID string) (string, error) {
	return m.refresh(ctx, userID, true)
}

// refresh performs the refresh-token exchange. It is single-flight per user:
// a caller that waited on the lock re-checks expiry first, so one exchange
// serves all concurrent callers.
func (m *Manager) refresh(ctx context.Context, userID string, force bool) (string, error) {
	lock := m.userLock(userID)
	lock.Lock()
	defer lock.Unlock()

	cred, err := m.load(userID)
	if err != nil {
		return "", err
	}
	if cred == nil {
		return "", utils.ErrNotConnected()
	}
	if cred.State == StateError {
		return "", utils.ErrReconnectRequired()
	}

	// Another caller may have refreshed while we waited on the lock.
	if !force && m.now().Before(cred.ExpiresAt) {
		return cred.AccessToken, nil
	}

	if cred.RefreshToken == "" {
		return "", utils.ErrReconnectRequired()
	}

	tok, err := m.oauth.TokenSource(ctx, &oauth2.Token{RefreshToken: cred.RefreshToken}).Token()
	if err != nil {
		if isAuthRejection(err) {
			// Revoked or invalid refresh token. Mark the connection broken;
			// only an explicit reconnect recovers from here.
			cred.State = StateError
			if saveErr := m.save(userID, cred); saveErr != nil {
				utils.Warnf("failed to persist credential error state: %v", saveErr)
			}
			return "", utils.ErrReconnectRequired()
		}
		// Transient network failure: safe for the caller to retry later.
		return "", fmt.Errorf("token refresh failed: %w", err)
	}

	cred.AccessToken = tok.AccessToken
	cred.ExpiresAt = tok.Expiry
	cred.State = StateConnected
	if tok.RefreshToken != "" {
		cred.RefreshToken = tok.RefreshToken
	}

	if err := m.save(userID, cred); err != nil {
		return "", fmt.Errorf("failed to persist refreshed credential: %w", err)
	}

	return cred.AccessToken, nil
}

// isAuthRejection reports whether the token endpoint definitively rejected
// the grant, as opposed to a transient failure.
func isAuthRejection(err error) bool {
	var rerr *oauth2.RetrieveError
	if !errors.As(err, &rerr) {
		return false
	}
	if rerr.ErrorCode == "invalid_grant" {
		return true
	}
	if rerr.Response != nil {
		code := rerr.Response.StatusCode
		return code == http.StatusBadRequest || code == http.StatusUnauthorized
	}
	return false
}

// AuthCodeURL returns the URL the user visits to grant access.
func (m *Manager) AuthCodeURL(state string) string {
	return m.oauth.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.SetAuthURLParam("prompt", "consent"))
}

// Connect exchanges an authorization code for a token pair and persists it.
func (m *Manager) Connect(ctx context.Context, userID, authCode string) error {
	tok, err := m.oauth.Exchange(ctx, authCode)
	if err != nil {
		return fmt.Errorf("authorization code exchange failed: %w", err)
	}

	cred := &Credential{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		ExpiresAt:    tok.Expiry,
		State:        StateConnected,
	}

	// Some providers omit the refresh token on re-authorization; keep the
	// one we already hold rather than overwriting it with nothing.
	if cred.RefreshToken == "" {
		if existing, _ := m.load(userID); existing != nil {
			cred.RefreshToken = existing.RefreshToken
		}
	}
	if cred.RefreshToken == "" {
		return fmt.Errorf("authorization response did not include a refresh token")
	}

	return m.save(userID, cred)
}

// Disconnect removes the stored credential.
func (m *Manager) Disconnect(ctx context.Context, userID string) error {
	err := m.keyring.Delete(keyringService, userID)
	// Idempotent: already-absent credentials are fine
	if err != nil && strings.Contains(err.Error(), "not found") {
		return nil
	}
	return err
}

// Status returns the connection state for a user.
func (m *Manager) Status(ctx context.Context, userID string) (ConnectionState, error) {
	cred, err := m.load(userID)
	if err != nil {
		return StateDisconnected, err
	}
	if cred == nil {
		return StateDisconnected, nil
	}
	return cred.State, nil
}
