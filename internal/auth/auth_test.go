package auth

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"golang.org/x/oauth2"
)

// mockTokenStore is a mock implementation of TokenStore for testing.
type mockTokenStore struct {
	token       *oauth2.Token
	savedTokens []*oauth2.Token
}

func (m *mockTokenStore) SaveToken(token *oauth2.Token) error {
	m.savedTokens = append(m.savedTokens, token)
	m.token = token
	return nil
}

func (m *mockTokenStore) LoadToken() (*oauth2.Token, error) {
	return m.token, nil
}

func testOAuthConfig(tokenURL string) *oauth2.Config {
	cfg := NewOAuthConfig("test-client-id", "test-client-secret")
	if tokenURL != "" {
		cfg.Endpoint.TokenURL = tokenURL
	}
	return cfg
}

func TestNewOAuthConfig(t *testing.T) {
	cfg := NewOAuthConfig("id", "secret")
	if len(cfg.Scopes) != 1 || cfg.Scopes[0] != "https://www.googleapis.com/auth/calendar" {
		t.Errorf("Expected the calendar scope, got %v", cfg.Scopes)
	}
	if cfg.Endpoint.TokenURL == "" {
		t.Error("Expected Google token endpoint")
	}
}

func TestGetAuthenticatedClient_TokenExists(t *testing.T) {
	mockStore := &mockTokenStore{
		token: &oauth2.Token{
			AccessToken:  "test-access-token",
			RefreshToken: "test-refresh-token",
			Expiry:       time.Now().Add(1 * time.Hour),
			TokenType:    "Bearer",
		},
	}

	client, err := GetAuthenticatedClient(context.Background(), testOAuthConfig(""), mockStore, io.Discard)
	if err != nil {
		t.Fatalf("GetAuthenticatedClient() returned an error: %v", err)
	}
	if client == nil {
		t.Fatal("GetAuthenticatedClient() returned nil client")
	}
	if len(mockStore.savedTokens) != 0 {
		t.Errorf("Expected no token to be saved, got %d", len(mockStore.savedTokens))
	}
}

func newTokenServer(t *testing.T, accessToken string) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.ParseForm()
		if r.Form.Get("code") != "" && r.Form.Get("code") != "pasted-code" {
			t.Errorf("Unexpected authorization code %q", r.Form.Get("code"))
		}
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"access_token":"`+accessToken+`","token_type":"Bearer","refresh_token":"refresh","expires_in":3600}`)
	}))
	t.Cleanup(server.Close)
	return server
}

func TestGetAuthenticatedClientWithReader(t *testing.T) {
	server := newTokenServer(t, "exchanged-token")
	store := &mockTokenStore{}
	var out strings.Builder

	client, err := GetAuthenticatedClientWithReader(context.Background(), testOAuthConfig(server.URL), store, strings.NewReader("pasted-code\n"), &out)
	if err != nil {
		t.Fatalf("GetAuthenticatedClientWithReader() returned an error: %v", err)
	}
	if client == nil {
		t.Fatal("Expected a client")
	}
	if len(store.savedTokens) != 1 || store.savedTokens[0].AccessToken != "exchanged-token" {
		t.Fatalf("Expected the exchanged token to be saved, got %+v", store.savedTokens)
	}
	if !strings.Contains(out.String(), "Enter the authorization code") {
		t.Errorf("Expected instructions to be printed, got %q", out.String())
	}
}

func TestGetAuthenticatedClientWithReader_NoCode(t *testing.T) {
	_, err := GetAuthenticatedClientWithReader(context.Background(), testOAuthConfig(""), &mockTokenStore{}, strings.NewReader(""), io.Discard)
	if err == nil {
		t.Fatal("Expected an error when no code is entered")
	}
}

func TestStartLocalServer_State(t *testing.T) {
	cb, err := startLocalServer("expected-state")
	if err != nil {
		t.Fatalf("startLocalServer() returned an error: %v", err)
	}
	defer cb.shutdown()

	resp, err := http.Get(cb.redirectURL + "/?state=forged&code=evil")
	if err != nil {
		t.Fatalf("Callback request failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("Expected 400 for a forged state, got %d", resp.StatusCode)
	}

	resp, err = http.Get(cb.redirectURL + "/?state=expected-state&code=good")
	if err != nil {
		t.Fatalf("Callback request failed: %v", err)
	}
	resp.Body.Close()

	code, err := cb.wait(context.Background(), time.Second)
	if err != nil {
		t.Fatalf("wait() returned an error: %v", err)
	}
	if code != "good" {
		t.Errorf("Expected code 'good', got '%s'", code)
	}
}

func TestStartLocalServer_Error(t *testing.T) {
	cb, err := startLocalServer("s")
	if err != nil {
		t.Fatalf("startLocalServer() returned an error: %v", err)
	}
	defer cb.shutdown()

	resp, err := http.Get(cb.redirectURL + "/?state=s&error=access_denied")
	if err != nil {
		t.Fatalf("Callback request failed: %v", err)
	}
	resp.Body.Close()

	if _, err := cb.wait(context.Background(), time.Second); err == nil || !strings.Contains(err.Error(), "access_denied") {
		t.Errorf("Expected access_denied error, got %v", err)
	}
}

type staticSource struct {
	token *oauth2.Token
	err   error
}

func (s staticSource) Token() (*oauth2.Token, error) { return s.token, s.err }

func TestAutoSaveTokenSource(t *testing.T) {
	store := &mockTokenStore{}
	old := &oauth2.Token{AccessToken: "old"}

	src := &autoSaveTokenSource{source: staticSource{token: old}, tokenStore: store, lastToken: old}
	if _, err := src.Token(); err != nil {
		t.Fatalf("Token() returned an error: %v", err)
	}
	if len(store.savedTokens) != 0 {
		t.Errorf("Expected unchanged token not to be saved")
	}

	src.source = staticSource{token: &oauth2.Token{AccessToken: "refreshed"}}
	if _, err := src.Token(); err != nil {
		t.Fatalf("Token() returned an error: %v", err)
	}
	if len(store.savedTokens) != 1 || store.savedTokens[0].AccessToken != "refreshed" {
		t.Errorf("Expected refreshed token to be saved, got %+v", store.savedTokens)
	}

	src.source = staticSource{err: errors.New("revoked")}
	if _, err := src.Token(); err == nil {
		t.Error("Expected source error to be returned")
	}
}
