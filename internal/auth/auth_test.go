package auth_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dnitsch/lambda-url-auth/internal/apperr"
	"github.com/dnitsch/lambda-url-auth/internal/auth"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/oauth2"
)

type memStore struct {
	entries map[string]string
}

func newMemStore() *memStore {
	return &memStore{entries: map[string]string{}}
}

func (m *memStore) Save(key, value string) error {
	m.entries[key] = value
	return nil
}

func (m *memStore) Load(key string) (string, error) {
	v, ok := m.entries[key]
	if !ok {
		return "", fmt.Errorf("not found")
	}
	return v, nil
}

func (m *memStore) Delete(key string) error {
	delete(m.entries, key)
	return nil
}

func (m *memStore) ClearAll() error {
	m.entries = map[string]string{}
	return nil
}

type mockBrowser struct {
	capture func(ctx context.Context, authURL, redirectURI string) (*url.URL, error)
}

func (m *mockBrowser) CaptureRedirect(ctx context.Context, authURL, redirectURI string) (*url.URL, error) {
	return m.capture(ctx, authURL, redirectURI)
}

// hostedUi approves whatever authorization request it is given
func hostedUi(t *testing.T) *mockBrowser {
	return &mockBrowser{capture: func(ctx context.Context, authURL, redirectURI string) (*url.URL, error) {
		u, err := url.Parse(authURL)
		if err != nil {
			t.Fatal(err)
		}
		q := u.Query()
		if q.Get("code_challenge_method") != "S256" || q.Get("code_challenge") == "" {
			t.Errorf("authorization request without pkce: %s", authURL)
		}
		challenges.Store(q.Get("code_challenge"), true)
		return url.Parse(redirectURI + "?code=code-1&state=" + q.Get("state"))
	}}
}

// challenges the hosted ui has issued codes for
var challenges sync.Map

func idToken(t *testing.T) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":              "user-1",
		"cognito:username": "jane",
		"token_use":        "id",
		"exp":              time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte("test-key"))
	if err != nil {
		t.Error(err)
	}
	return tok
}

func tokenEndpoint(t *testing.T, withIdToken bool) *httptest.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth2/token", func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Error(err)
			return
		}
		if r.Form.Get("grant_type") != "authorization_code" {
			t.Errorf("got grant_type %s", r.Form.Get("grant_type"))
		}
		if r.Form.Get("client_id") != "client123" {
			t.Errorf("got client_id %s", r.Form.Get("client_id"))
		}
		if _, ok := challenges.Load(oauth2.S256ChallengeFromVerifier(r.Form.Get("code_verifier"))); !ok {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(`{"error":"invalid_grant","error_description":"verifier mismatch"}`))
			return
		}
		resp := map[string]any{
			"access_token":  "access-1",
			"refresh_token": "refresh-1",
			"token_type":    "Bearer",
			"expires_in":    3600,
		}
		if withIdToken {
			resp["id_token"] = idToken(t)
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	})
	return httptest.NewServer(mux)
}

func newAcquirer(ts *httptest.Server, store auth.PendingStore, browser auth.RedirectCapturer) *auth.Acquirer {
	return auth.New(auth.Config{
		ClientID:    "client123",
		Domain:      ts.URL,
		RedirectURI: "http://localhost:5173/",
		LogoutURI:   "http://localhost:5173/",
		Scopes:      []string{"openid", "email"},
		HTTPClient:  ts.Client(),
	}, store, browser)
}

func Test_SignIn_succeeds(t *testing.T) {
	ts := tokenEndpoint(t, true)
	defer ts.Close()
	store := newMemStore()

	session, err := newAcquirer(ts, store, hostedUi(t)).SignIn(context.TODO())
	if err != nil {
		t.Fatalf("got %s, wanted <nil>", err)
	}
	if session.AccessToken != "access-1" || session.RefreshToken != "refresh-1" {
		t.Errorf("unexpected session: %+v", session)
	}
	if session.Subject() != "user-1" || session.Username() != "jane" {
		t.Errorf("claims not decoded: %v", session.Claims)
	}
	if session.Expired(time.Now()) {
		t.Error("fresh session reported as expired")
	}
	if len(store.entries) != 0 {
		t.Errorf("pending login not removed: %v", store.entries)
	}
}

func Test_Complete_with(t *testing.T) {
	ttests := map[string]struct {
		withIdToken bool
		callback    func(pending *auth.PendingLogin) string
		expectErr   bool
		errTyp      error
	}{
		"matching state and code": {
			withIdToken: true,
			callback: func(p *auth.PendingLogin) string {
				return "http://localhost:5173/?code=code-1&state=" + p.State
			},
		},
		"error parameter from the hosted ui": {
			withIdToken: true,
			callback: func(p *auth.PendingLogin) string {
				return "http://localhost:5173/?error=access_denied&error_description=nope&state=" + p.State
			},
			expectErr: true,
			errTyp:    auth.ErrAuthorizationDenied,
		},
		"unknown state": {
			withIdToken: true,
			callback: func(p *auth.PendingLogin) string {
				return "http://localhost:5173/?code=code-1&state=somebody-else"
			},
			expectErr: true,
			errTyp:    auth.ErrUnknownState,
		},
		"missing code": {
			withIdToken: true,
			callback: func(p *auth.PendingLogin) string {
				return "http://localhost:5173/?state=" + p.State
			},
			expectErr: true,
			errTyp:    auth.ErrMissingCode,
		},
		"token response without id_token": {
			callback: func(p *auth.PendingLogin) string {
				return "http://localhost:5173/?code=code-1&state=" + p.State
			},
			expectErr: true,
			errTyp:    auth.ErrNoIdToken,
		},
	}
	for name, tt := range ttests {
		t.Run(name, func(t *testing.T) {
			ts := tokenEndpoint(t, tt.withIdToken)
			defer ts.Close()
			store := newMemStore()
			a := newAcquirer(ts, store, nil)

			authURL, pending, err := a.Begin(context.TODO())
			if err != nil {
				t.Fatal(err)
			}
			u, _ := url.Parse(authURL)
			challenges.Store(u.Query().Get("code_challenge"), true)

			cb, _ := url.Parse(tt.callback(pending))
			session, err := a.Complete(context.TODO(), cb)

			if tt.expectErr {
				if err == nil {
					t.Fatalf("got <nil>, wanted %s", tt.errTyp)
				}
				if !errors.Is(err, tt.errTyp) {
					t.Errorf("got %s, wanted %s", err, tt.errTyp)
				}
				if !errors.Is(err, apperr.ErrAuthentication) {
					t.Errorf("error not classified as authentication: %s", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("got %s, wanted <nil>", err)
			}
			if session.IDToken == "" {
				t.Error("no id token on session")
			}
			if _, found := store.entries[pending.State]; found {
				t.Error("pending login not removed")
			}
		})
	}
}

func Test_Complete_rejects_wrong_verifier(t *testing.T) {
	ts := tokenEndpoint(t, true)
	defer ts.Close()
	store := newMemStore()
	a := newAcquirer(ts, store, nil)

	_, pending, err := a.Begin(context.TODO())
	if err != nil {
		t.Fatal(err)
	}
	// challenge never registered with the token endpoint
	cb, _ := url.Parse("http://localhost:5173/?code=code-1&state=" + pending.State)
	_, err = a.Complete(context.TODO(), cb)
	if !errors.Is(err, auth.ErrTokenExchange) {
		t.Fatalf("got %v, wanted %s", err, auth.ErrTokenExchange)
	}
	if !strings.Contains(err.Error(), "invalid_grant") {
		t.Errorf("token endpoint error code not reported: %s", err)
	}
}

func Test_Complete_rejects_stale_pending_login(t *testing.T) {
	ts := tokenEndpoint(t, true)
	defer ts.Close()
	store := newMemStore()
	a := newAcquirer(ts, store, nil)

	_, pending, err := a.Begin(context.TODO())
	if err != nil {
		t.Fatal(err)
	}
	a.WithClock(func() time.Time { return time.Now().Add(time.Hour) })

	cb, _ := url.Parse("http://localhost:5173/?code=code-1&state=" + pending.State)
	if _, err := a.Complete(context.TODO(), cb); !errors.Is(err, auth.ErrPendingExpired) {
		t.Errorf("got %v, wanted %s", err, auth.ErrPendingExpired)
	}
}

func Test_SignIn_browser_failure_removes_pending(t *testing.T) {
	ts := tokenEndpoint(t, true)
	defer ts.Close()
	store := newMemStore()
	browser := &mockBrowser{capture: func(ctx context.Context, authURL, redirectURI string) (*url.URL, error) {
		return nil, fmt.Errorf("timed out")
	}}

	_, err := newAcquirer(ts, store, browser).SignIn(context.TODO())
	if !errors.Is(err, apperr.ErrAuthentication) {
		t.Errorf("got %v, wanted an authentication error", err)
	}
	if len(store.entries) != 0 {
		t.Errorf("pending login not removed: %v", store.entries)
	}
}

func Test_LogoutURL(t *testing.T) {
	a := auth.New(auth.Config{
		ClientID:  "client123",
		Domain:    "https://prefix.auth.ap-southeast-2.amazoncognito.com",
		LogoutURI: "http://localhost:5173/",
	}, newMemStore(), nil)

	got, err := url.Parse(a.LogoutURL(""))
	if err != nil {
		t.Fatal(err)
	}
	if got.Path != "/logout" {
		t.Errorf("got path %s", got.Path)
	}
	if got.Query().Get("client_id") != "client123" || got.Query().Get("logout_uri") != "http://localhost:5173/" {
		t.Errorf("got query %s", got.RawQuery)
	}
}
