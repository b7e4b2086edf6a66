package credentials

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	gosync "sync"
	"sync/atomic"
	"testing"
	"time"
)

// tokenEndpoint is a fake authorization server token endpoint.
type tokenEndpoint struct {
	mu       gosync.Mutex
	hits     int32
	reject   bool
	respond  func(w http.ResponseWriter, r *http.Request)
	lastForm map[string]string
}

func (e *tokenEndpoint) handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&e.hits, 1)
		_ = r.ParseForm()

		e.mu.Lock()
		e.lastForm = map[string]string{
			"grant_type":    r.Form.Get("grant_type"),
			"refresh_token": r.Form.Get("refresh_token"),
		}
		reject, respond := e.reject, e.respond
		e.mu.Unlock()

		if respond != nil {
			respond(w, r)
			return
		}
		if reject {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusBadRequest)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": "invalid_grant"})
			return
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"access_token": fmt.Sprintf("access-%d", atomic.LoadInt32(&e.hits)),
			"token_type":   "Bearer",
			"expires_in":   3600,
		})
	}
}

func newTestManager(t *testing.T, endpoint *tokenEndpoint) (*Manager, *MockKeyring) {
	t.Helper()
	srv := httptest.NewServer(endpoint.handler())
	t.Cleanup(srv.Close)

	kr := NewMockKeyring()
	m := NewManager(OAuthConfig{
		ClientID:     "client",
		ClientSecret: "secret",
		AuthURL:      srv.URL + "/auth",
		TokenURL:     srv.URL + "/token",
		RedirectURL:  "http://localhost/callback",
		Scopes:       []string{"tasks"},
	}, WithKeyring(kr))
	return m, kr
}

func storeCred(t *testing.T, kr *MockKeyring, userID string, cred Credential) {
	t.Helper()
	raw, err := json.Marshal(cred)
	if err != nil {
		t.Fatal(err)
	}
	if err := kr.Set(keyringService, userID, string(raw)); err != nil {
		t.Fatal(err)
	}
}

func TestAccessTokenUnexpiredNotRefreshed(t *testing.T) {
	endpoint := &tokenEndpoint{}
	m, kr := newTestManager(t, endpoint)
	storeCred(t, kr, "u1", Credential{
		AccessToken:  "still-good",
		RefreshToken: "refresh",
		ExpiresAt:    time.Now().Add(time.Hour),
		State:        StateConnected,
	})

	tok, err := m.AccessToken(context.Background(), "u1")
	if err != nil {
		t.Fatalf("AccessToken() error = %v", err)
	}
	if tok != "still-good" {
		t.Errorf("token = %q", tok)
	}
	if atomic.LoadInt32(&endpoint.hits) != 0 {
		t.Errorf("token endpoint hit %d times for a valid token", endpoint.hits)
	}
}

func TestAccessTokenExpiredRefreshes(t *testing.T) {
	endpoint := &tokenEndpoint{}
	m, kr := newTestManager(t, endpoint)
	storeCred(t, kr, "u1", Credential{
		AccessToken:  "stale",
		RefreshToken: "refresh-1",
		ExpiresAt:    time.Now().Add(-time.Minute),
		State:        StateConnected,
	})

	tok, err := m.AccessToken(context.Background(), "u1")
	if err != nil {
		t.Fatalf("AccessToken() error = %v", err)
	}
	if tok != "access-1" {
		t.Errorf("token = %q", tok)
	}
	endpoint.mu.Lock()
	form := endpoint.lastForm
	endpoint.mu.Unlock()
	if form["grant_type"] != "refresh_token" || form["refresh_token"] != "refresh-1" {
		t.Errorf("exchange form = %v", form)
	}

	// The refreshed pair is persisted; a second call uses it directly.
	tok2, err := m.AccessToken(context.Background(), "u1")
	if err != nil {
		t.Fatal(err)
	}
	if tok2 != "access-1" {
		t.Errorf("second token = %q", tok2)
	}
	if atomic.LoadInt32(&endpoint.hits) != 1 {
		t.Errorf("token endpoint hits = %d, want 1", endpoint.hits)
	}
}

func TestRefreshSingleFlight(t *testing.T) {
	endpoint := &tokenEndpoint{}
	m, kr := newTestManager(t, endpoint)
	storeCred(t, kr, "u1", Credential{
		AccessToken:  "stale",
		RefreshToken: "refresh",
		ExpiresAt:    time.Now().Add(-time.Minute),
		State:        StateConnected,
	})

	var wg gosync.WaitGroup
	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := m.AccessToken(context.Background(), "u1")
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("concurrent AccessToken() error = %v", err)
		}
	}

	if got := atomic.LoadInt32(&endpoint.hits); got != 1 {
		t.Errorf("token endpoint hits = %d, want exactly 1 exchange", got)
	}
}

func TestRefreshPreservesRefreshTokenWhenOmitted(t *testing.T) {
	endpoint := &tokenEndpoint{}
	m, kr := newTestManager(t, endpoint)
	storeCred(t, kr, "u1", Credential{
		AccessToken:  "stale",
		RefreshToken: "long-lived",
		ExpiresAt:    time.Now().Add(-time.Minute),
		State:        StateConnected,
	})

	// The default response carries no refresh_token.
	if _, err := m.AccessToken(context.Background(), "u1"); err != nil {
		t.Fatal(err)
	}

	raw, _ := kr.Get(keyringService, "u1")
	var cred Credential
	if err := json.Unmarshal([]byte(raw), &cred); err != nil {
		t.Fatal(err)
	}
	if cred.RefreshToken != "long-lived" {
		t.Errorf("refresh token overwritten: %q", cred.RefreshToken)
	}
	if cred.State != StateConnected {
		t.Errorf("state = %s", cred.State)
	}
}

func TestInvalidGrantMarksConnectionBroken(t *testing.T) {
	endpoint := &tokenEndpoint{reject: true}
	m, kr := newTestManager(t, endpoint)
	storeCred(t, kr, "u1", Credential{
		AccessToken:  "stale",
		RefreshToken: "revoked",
		ExpiresAt:    time.Now().Add(-time.Minute),
		State:        StateConnected,
	})

	_, err := m.AccessToken(context.Background(), "u1")
	if err == nil || !strings.Contains(err.Error(), "authorization expired") {
		t.Fatalf("err = %v, want reconnect required", err)
	}

	raw, _ := kr.Get(keyringService, "u1")
	var cred Credential
	_ = json.Unmarshal([]byte(raw), &cred)
	if cred.State != StateError {
		t.Errorf("state = %s, want error persisted", cred.State)
	}

	// The broken state short-circuits: no further exchange attempts.
	before := atomic.LoadInt32(&endpoint.hits)
	if _, err := m.AccessToken(context.Background(), "u1"); err == nil {
		t.Fatal("expected error while connection is broken")
	}
	if atomic.LoadInt32(&endpoint.hits) != before {
		t.Error("token endpoint hit again despite broken connection")
	}
}

func TestTransientRefreshFailureDoesNotBreakConnection(t *testing.T) {
	endpoint := &tokenEndpoint{}
	endpoint.respond = func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}
	m, kr := newTestManager(t, endpoint)
	storeCred(t, kr, "u1", Credential{
		AccessToken:  "stale",
		RefreshToken: "refresh",
		ExpiresAt:    time.Now().Add(-time.Minute),
		State:        StateConnected,
	})

	if _, err := m.AccessToken(context.Background(), "u1"); err == nil {
		t.Fatal("expected error on 502 from the token endpoint")
	}

	raw, _ := kr.Get(keyringService, "u1")
	var cred Credential
	_ = json.Unmarshal([]byte(raw), &cred)
	if cred.State != StateConnected {
		t.Errorf("state = %s, transient failures must stay retryable", cred.State)
	}
}

func TestAccessTokenNotConnected(t *testing.T) {
	m, _ := newTestManager(t, &tokenEndpoint{})
	if _, err := m.AccessToken(context.Background(), "nobody"); err == nil {
		t.Fatal("expected error without a stored credential")
	}
}

func TestConnect(t *testing.T) {
	endpoint := &tokenEndpoint{}
	endpoint.respond = func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"access_token":  "fresh",
			"refresh_token": "granted",
			"token_type":    "Bearer",
			"expires_in":    3600,
		})
	}
	m, kr := newTestManager(t, endpoint)

	if err := m.Connect(context.Background(), "u1", "auth-code"); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}

	state, err := m.Status(context.Background(), "u1")
	if err != nil {
		t.Fatal(err)
	}
	if state != StateConnected {
		t.Errorf("state = %s", state)
	}

	raw, _ := kr.Get(keyringService, "u1")
	var cred Credential
	_ = json.Unmarshal([]byte(raw), &cred)
	if cred.AccessToken != "fresh" || cred.RefreshToken != "granted" {
		t.Errorf("cred = %+v", cred)
	}
}

func TestConnectKeepsExistingRefreshToken(t *testing.T) {
	endpoint := &tokenEndpoint{}
	endpoint.respond = func(w http.ResponseWriter, r *http.Request) {
		// Re-authorization without a refresh token in the response.
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"access_token": "fresh",
			"token_type":   "Bearer",
			"expires_in":   3600,
		})
	}
	m, kr := newTestManager(t, endpoint)
	storeCred(t, kr, "u1", Credential{
		AccessToken:  "old",
		RefreshToken: "kept",
		ExpiresAt:    time.Now().Add(-time.Hour),
		State:        StateConnected,
	})

	if err := m.Connect(context.Background(), "u1", "auth-code"); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}

	raw, _ := kr.Get(keyringService, "u1")
	var cred Credential
	_ = json.Unmarshal([]byte(raw), &cred)
	if cred.RefreshToken != "kept" {
		t.Errorf("refresh token = %q, want the prior one kept", cred.RefreshToken)
	}
}

func TestDisconnect(t *testing.T) {
	m, kr := newTestManager(t, &tokenEndpoint{})
	storeCred(t, kr, "u1", Credential{
		AccessToken:  "x",
		RefreshToken: "y",
		ExpiresAt:    time.Now().Add(time.Hour),
		State:        StateConnected,
	})

	if err := m.Disconnect(context.Background(), "u1"); err != nil {
		t.Fatalf("Disconnect() error = %v", err)
	}
	state, err := m.Status(context.Background(), "u1")
	if err != nil {
		t.Fatal(err)
	}
	if state != StateDisconnected {
		t.Errorf("state = %s", state)
	}

	// Idempotent.
	if err := m.Disconnect(context.Background(), "u1"); err != nil {
		t.Errorf("second Disconnect() error = %v", err)
	}
}

func TestAuthCodeURL(t *testing.T) {
	m, _ := newTestManager(t, &tokenEndpoint{})
	u := m.AuthCodeURL("state-123")
	for _, want := range []string{"state=state-123", "access_type=offline", "prompt=consent", "client_id=client"} {
		if !strings.Contains(u, want) {
			t.Errorf("auth URL missing %q: %s", want, u)
		}
	}
}
