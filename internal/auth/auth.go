// Package auth obtains Google Calendar OAuth credentials for the bot and
// keeps the stored token fresh.
package auth

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/calendar/v3"
)

// authTimeout bounds how long the loopback flow waits for the browser.
const authTimeout = 5 * time.Minute

// TokenStore is an interface for saving and loading OAuth tokens.
type TokenStore interface {
	SaveToken(token *oauth2.Token) error
	LoadToken() (*oauth2.Token, error)
}

// NewOAuthConfig returns the OAuth configuration for read/write calendar access.
func NewOAuthConfig(clientID, clientSecret string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		Scopes:       []string{calendar.CalendarScope},
		Endpoint:     google.Endpoint,
	}
}

// autoSaveTokenSource wraps an oauth2.TokenSource and automatically saves refreshed tokens.
// Command handlers run concurrently, so access to lastToken is serialised.
type autoSaveTokenSource struct {
	mu         sync.Mutex
	source     oauth2.TokenSource
	tokenStore TokenStore
	lastToken  *oauth2.Token
}

// Token implements oauth2.TokenSource and saves the token if it was refreshed.
func (a *autoSaveTokenSource) Token() (*oauth2.Token, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	token, err := a.source.Token()
	if err != nil {
		return nil, err
	}

	if a.lastToken == nil || a.lastToken.AccessToken != token.AccessToken {
		if err := a.tokenStore.SaveToken(token); err != nil {
			return nil, fmt.Errorf("failed to save refreshed token: %w", err)
		}
		a.lastToken = token
	}

	return token, nil
}

// callbackServer receives the OAuth redirect on a loopback port.
type callbackServer struct {
	redirectURL string
	codes       <-chan string
	errs        <-chan error
	server      *http.Server
}

// startLocalServer listens on a random loopback port and accepts a single
// redirect carrying state.
func startLocalServer(state string) (*callbackServer, error) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, fmt.Errorf("failed to start local server: %w", err)
	}

	codes := make(chan string, 1)
	errs := make(chan error, 1)
	cb := &callbackServer{
		redirectURL: fmt.Sprintf("http://127.0.0.1:%d", listener.Addr().(*net.TCPAddr).Port),
		codes:       codes,
		errs:        errs,
		server: &http.Server{
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  10 * time.Second,
		},
	}

	var once sync.Once
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("state") != state {
			http.Error(w, "state mismatch", http.StatusBadRequest)
			return
		}
		once.Do(func() {
			switch {
			case q.Get("code") != "":
				fmt.Fprint(w, "<html><body><h1>Authorization successful!</h1><p>You can close this window.</p></body></html>")
				codes <- q.Get("code")
			case q.Get("error") != "":
				fmt.Fprintf(w, "<html><body><h1>Authorization failed</h1><p>Error: %s</p></body></html>", q.Get("error"))
				errs <- fmt.Errorf("authorization error: %s", q.Get("error"))
			default:
				fmt.Fprint(w, "<html><body><h1>No authorization code received</h1></body></html>")
				errs <- fmt.Errorf("no authorization code received")
			}
		})
	})
	cb.server.Handler = mux

	go func() {
		if err := cb.server.Serve(listener); err != nil && err != http.ErrServerClosed {
			select {
			case errs <- fmt.Errorf("server error: %w", err):
			default:
			}
		}
	}()

	return cb, nil
}

func (cb *callbackServer) shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	cb.server.Shutdown(ctx)
}

// wait blocks until the redirect arrives, ctx ends or timeout passes.
func (cb *callbackServer) wait(ctx context.Context, timeout time.Duration) (string, error) {
	select {
	case code := <-cb.codes:
		return code, nil
	case err := <-cb.errs:
		return "", fmt.Errorf("failed to receive authorization code: %w", err)
	case <-ctx.Done():
		return "", ctx.Err()
	case <-time.After(timeout):
		return "", fmt.Errorf("authorization timeout: no response received within %v", timeout)
	}
}

// GetAuthenticatedClient returns an authenticated HTTP client using OAuth 2.0.
// If no token exists, the user is sent through the browser flow with a
// loopback redirect. Instructions are written to out.
func GetAuthenticatedClient(ctx context.Context, oauthConfig *oauth2.Config, tokenStore TokenStore, out io.Writer) (*http.Client, error) {
	return authenticatedClient(ctx, oauthConfig, tokenStore, func() (string, error) {
		state := uuid.NewString()
		cb, err := startLocalServer(state)
		if err != nil {
			return "", err
		}
		defer cb.shutdown()

		oauthConfig.RedirectURL = cb.redirectURL
		authURL := oauthConfig.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce)

		fmt.Fprintf(out, "Starting local server on %s\n", cb.redirectURL)
		fmt.Fprintln(out, "\nPlease visit the following URL to authorize the application:")
		fmt.Fprintln(out, authURL)
		fmt.Fprintln(out, "\nWaiting for authorization...")

		return cb.wait(ctx, authTimeout)
	})
}

// GetAuthenticatedClientWithReader runs the flow for headless hosts: the
// user pastes the authorization code, read from reader.
func GetAuthenticatedClientWithReader(ctx context.Context, oauthConfig *oauth2.Config, tokenStore TokenStore, reader io.Reader, out io.Writer) (*http.Client, error) {
	return authenticatedClient(ctx, oauthConfig, tokenStore, func() (string, error) {
		authURL := oauthConfig.AuthCodeURL(uuid.NewString(), oauth2.AccessTypeOffline)

		fmt.Fprintln(out, "Please visit the following URL to authorize the application:")
		fmt.Fprintln(out, authURL)
		fmt.Fprint(out, "Enter the authorization code: ")

		var code string
		if _, err := fmt.Fscanln(reader, &code); err != nil {
			return "", fmt.Errorf("failed to read authorization code: %w", err)
		}
		return code, nil
	})
}

// authenticatedClient loads the stored token, or obtains a code with
// authorize and exchanges it, then returns a client that persists refreshes.
func authenticatedClient(ctx context.Context, oauthConfig *oauth2.Config, tokenStore TokenStore, authorize func() (string, error)) (*http.Client, error) {
	token, err := tokenStore.LoadToken()
	if err != nil {
		return nil, fmt.Errorf("failed to load token: %w", err)
	}

	if token == nil {
		code, err := authorize()
		if err != nil {
			return nil, err
		}
		if code == "" {
			return nil, fmt.Errorf("no authorization code received")
		}

		token, err = oauthConfig.Exchange(ctx, code)
		if err != nil {
			return nil, fmt.Errorf("failed to exchange authorization code: %w", err)
		}

		if err := tokenStore.SaveToken(token); err != nil {
			return nil, fmt.Errorf("failed to save token: %w", err)
		}
	}

	autoSaveSource := &autoSaveTokenSource{
		source:     oauth2.ReuseTokenSource(token, oauthConfig.TokenSource(ctx, token)),
		tokenStore: tokenStore,
		lastToken:  token,
	}

	return oauth2.NewClient(ctx, autoSaveSource), nil
}
