// Package auth runs the authorization code grant with PKCE against the user
// pool hosted UI.
package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/dnitsch/lambda-url-auth/internal/apperr"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/oauth2"
)

const DEFAULT_PENDING_TTL = 10 * time.Minute

var (
	ErrAuthorizationDenied = errors.New("authorization denied")
	ErrUnknownState        = errors.New("state does not match a pending login")
	ErrPendingExpired      = errors.New("pending login expired")
	ErrMissingCode         = errors.New("callback has no authorization code")
	ErrTokenExchange       = errors.New("code exchange failed")
	ErrNoIdToken           = errors.New("token response has no id_token")
)

// PendingStore persists in-flight logins keyed by their state.
type PendingStore interface {
	Save(key, value string) error
	Load(key string) (string, error)
	Delete(key string) error
	ClearAll() error
}

// RedirectCapturer drives the user through authURL and returns the URL the
// hosted UI redirected to.
type RedirectCapturer interface {
	CaptureRedirect(ctx context.Context, authURL, redirectURI string) (*url.URL, error)
}

type Config struct {
	ClientID    string
	Domain      string
	RedirectURI string
	LogoutURI   string
	Scopes      []string
	PendingTTL  time.Duration
	HTTPClient  *http.Client
}

// Acquirer obtains an IdentitySession from the hosted UI.
type Acquirer struct {
	oauth      *oauth2.Config
	domain     string
	logoutURI  string
	store      PendingStore
	browser    RedirectCapturer
	ttl        time.Duration
	httpClient *http.Client
	log        zerolog.Logger
	now        func() time.Time
}

func New(conf Config, store PendingStore, browser RedirectCapturer) *Acquirer {
	ttl := conf.PendingTTL
	if ttl == 0 {
		ttl = DEFAULT_PENDING_TTL
	}
	return &Acquirer{
		oauth: &oauth2.Config{
			ClientID: conf.ClientID,
			Endpoint: oauth2.Endpoint{
				AuthURL:   conf.Domain + "/oauth2/authorize",
				TokenURL:  conf.Domain + "/oauth2/token",
				AuthStyle: oauth2.AuthStyleInParams,
			},
			RedirectURL: conf.RedirectURI,
			Scopes:      conf.Scopes,
		},
		domain:     conf.Domain,
		logoutURI:  conf.LogoutURI,
		store:      store,
		browser:    browser,
		ttl:        ttl,
		httpClient: conf.HTTPClient,
		log:        zerolog.Nop(),
		now:        time.Now,
	}
}

func (a *Acquirer) WithLogger(l zerolog.Logger) *Acquirer {
	a.log = l
	return a
}

func (a *Acquirer) WithClock(now func() time.Time) *Acquirer {
	a.now = now
	return a
}

func authErr(op string, err error) error {
	return apperr.New(apperr.KindAuthentication, op, err)
}

// Begin creates and persists a PendingLogin and returns the hosted UI URL
// the user has to visit.
func (a *Acquirer) Begin(ctx context.Context) (string, *PendingLogin, error) {
	pending := &PendingLogin{
		State:       uuid.NewString(),
		Verifier:    oauth2.GenerateVerifier(),
		RedirectURI: a.oauth.RedirectURL,
		CreatedAt:   a.now().UTC(),
	}
	b, err := json.Marshal(pending)
	if err != nil {
		return "", nil, authErr("begin", err)
	}
	if err := a.store.Save(pending.State, string(b)); err != nil {
		return "", nil, authErr("begin", fmt.Errorf("unable to persist pending login: %w", err))
	}
	authURL := a.oauth.AuthCodeURL(pending.State, oauth2.S256ChallengeOption(pending.Verifier))
	a.log.Debug().Str("state", pending.State).Msg("login started")
	return authURL, pending, nil
}

// Complete finishes the login the callback belongs to. The pending entry is
// removed whatever the outcome.
func (a *Acquirer) Complete(ctx context.Context, callback *url.URL) (*IdentitySession, error) {
	q := callback.Query()
	state := q.Get("state")

	if state == "" {
		return nil, authErr("complete", ErrUnknownState)
	}
	raw, err := a.store.Load(state)
	if err != nil {
		return nil, authErr("complete", fmt.Errorf("%s, %w", err, ErrUnknownState))
	}
	defer func() {
		if err := a.store.Delete(state); err != nil {
			a.log.Warn().Err(err).Str("state", state).Msg("unable to remove pending login")
		}
	}()

	if e := q.Get("error"); e != "" {
		return nil, authErr("complete", fmt.Errorf("%s: %s, %w", e, q.Get("error_description"), ErrAuthorizationDenied))
	}

	pending := &PendingLogin{}
	if err := json.Unmarshal([]byte(raw), pending); err != nil {
		return nil, authErr("complete", fmt.Errorf("%s, %w", err, ErrUnknownState))
	}
	if a.now().Sub(pending.CreatedAt) > a.ttl {
		return nil, authErr("complete", ErrPendingExpired)
	}

	code := q.Get("code")
	if code == "" {
		return nil, authErr("complete", ErrMissingCode)
	}

	if a.httpClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, a.httpClient)
	}
	tok, err := a.oauth.Exchange(ctx, code, oauth2.VerifierOption(pending.Verifier))
	if err != nil {
		var re *oauth2.RetrieveError
		if errors.As(err, &re) && re.ErrorCode != "" {
			return nil, authErr("complete", fmt.Errorf("%s: %s, %w", re.ErrorCode, re.ErrorDescription, ErrTokenExchange))
		}
		return nil, authErr("complete", fmt.Errorf("%s, %w", err, ErrTokenExchange))
	}

	idToken, _ := tok.Extra("id_token").(string)
	if idToken == "" {
		return nil, authErr("complete", ErrNoIdToken)
	}
	claims, err := decodeClaims(idToken)
	if err != nil {
		return nil, authErr("complete", fmt.Errorf("malformed id_token: %s, %w", err, ErrTokenExchange))
	}

	session := &IdentitySession{
		IDToken:      idToken,
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		Claims:       claims,
	}
	a.log.Info().Str("user", session.Username()).Time("expires", session.Expiry()).Msg("signed in")
	return session, nil
}

// SignIn runs the whole interactive login through the browser.
func (a *Acquirer) SignIn(ctx context.Context) (*IdentitySession, error) {
	authURL, pending, err := a.Begin(ctx)
	if err != nil {
		return nil, err
	}
	callback, err := a.browser.CaptureRedirect(ctx, authURL, pending.RedirectURI)
	if err != nil {
		if derr := a.store.Delete(pending.State); derr != nil {
			a.log.Warn().Err(derr).Msg("unable to remove pending login")
		}
		return nil, authErr("sign-in", err)
	}
	return a.Complete(ctx, callback)
}

// LogoutURL is the hosted UI logout endpoint that ends the user pool
// session and redirects to postLogoutURI, or the configured logout uri
// when empty.
func (a *Acquirer) LogoutURL(postLogoutURI string) string {
	if postLogoutURI == "" {
		postLogoutURI = a.logoutURI
	}
	v := url.Values{}
	v.Set("client_id", a.oauth.ClientID)
	v.Set("logout_uri", postLogoutURI)
	return a.domain + "/logout?" + v.Encode()
}

// ForgetPending drops every in-flight login.
func (a *Acquirer) ForgetPending() error {
	return a.store.ClearAll()
}
