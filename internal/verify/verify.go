// Package verify checks user pool tokens against the pool's published key set.
package verify

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/dnitsch/lambda-url-auth/internal/apperr"
)

const (
	TOKEN_USE_ACCESS = "access"
	TOKEN_USE_ID     = "id"
)

var (
	ErrInvalidToken   = errors.New("token failed verification")
	ErrWrongAudience  = errors.New("token was not issued to this client")
	ErrWrongTokenUse  = errors.New("unexpected token_use")
	ErrMissingIssuer  = errors.New("issuer is empty")
	ErrMissingAudence = errors.New("audience is empty")
)

// Claims is the verified payload of a token.
type Claims map[string]any

func (c Claims) String(key string) string {
	v, _ := c[key].(string)
	return v
}

func (c Claims) Subject() string  { return c.String("sub") }
func (c Claims) TokenUse() string { return c.String("token_use") }
func (c Claims) ClientID() string { return c.String("client_id") }

func (c Claims) Expiry() time.Time {
	if f, ok := c["exp"].(float64); ok {
		return time.Unix(int64(f), 0)
	}
	return time.Time{}
}

// audiences handles aud as either a string or a list.
func (c Claims) audiences() []string {
	switch v := c["aud"].(type) {
	case string:
		return []string{v}
	case []any:
		out := []string{}
		for _, a := range v {
			if s, ok := a.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

type Config struct {
	// Issuer is the user pool authority
	Issuer string
	// Audience is the app client id
	Audience string
	// TokenUse is access or id, empty accepts either
	TokenUse string
	// JwksURL defaults to <Issuer>/.well-known/jwks.json
	JwksURL    string
	HTTPClient *http.Client
	Now        func() time.Time
}

type Verifier struct {
	verifier *oidc.IDTokenVerifier
	audience string
	tokenUse string
}

// New returns a Verifier. Keys are fetched lazily on the first Verify and
// cached for the lifetime of the Verifier.
func New(conf Config) (*Verifier, error) {
	if conf.Issuer == "" {
		return nil, apperr.New(apperr.KindConfiguration, "verifier", ErrMissingIssuer)
	}
	if conf.Audience == "" {
		return nil, apperr.New(apperr.KindConfiguration, "verifier", ErrMissingAudence)
	}
	jwks := conf.JwksURL
	if jwks == "" {
		jwks = conf.Issuer + "/.well-known/jwks.json"
	}

	// the key set outlives any single call, so it gets its own context
	keyCtx := context.Background()
	if conf.HTTPClient != nil {
		keyCtx = oidc.ClientContext(keyCtx, conf.HTTPClient)
	}
	keySet := oidc.NewRemoteKeySet(keyCtx, jwks)

	return &Verifier{
		verifier: oidc.NewVerifier(conf.Issuer, keySet, &oidc.Config{
			// access tokens carry client_id instead of aud
			SkipClientIDCheck: true,
			Now:               conf.Now,
		}),
		audience: conf.Audience,
		tokenUse: conf.TokenUse,
	}, nil
}

// Verify checks signature, issuer, expiry, audience and token_use and
// returns the claims.
func (v *Verifier) Verify(ctx context.Context, token string) (Claims, error) {
	idt, err := v.verifier.Verify(ctx, token)
	if err != nil {
		return nil, verifyErr(fmt.Errorf("%s, %w", err, ErrInvalidToken))
	}

	claims := Claims{}
	if err := idt.Claims(&claims); err != nil {
		return nil, verifyErr(fmt.Errorf("%s, %w", err, ErrInvalidToken))
	}

	use := claims.TokenUse()
	if v.tokenUse != "" && use != v.tokenUse {
		return nil, verifyErr(fmt.Errorf("got %q wanted %q, %w", use, v.tokenUse, ErrWrongTokenUse))
	}

	if !v.audienceMatches(claims, use) {
		return nil, verifyErr(ErrWrongAudience)
	}
	return claims, nil
}

func (v *Verifier) audienceMatches(claims Claims, use string) bool {
	if use != TOKEN_USE_ID && claims.ClientID() == v.audience {
		return true
	}
	if use == TOKEN_USE_ACCESS {
		return false
	}
	for _, a := range claims.audiences() {
		if a == v.audience {
			return true
		}
	}
	return false
}

func verifyErr(err error) error {
	return apperr.New(apperr.KindVerification, "verify", err)
}
