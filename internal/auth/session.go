package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// IdentitySession is the result of a completed sign in.
type IdentitySession struct {
	IDToken      string
	AccessToken  string
	RefreshToken string
	// Claims are decoded from the identity token without verification,
	// they are for display and expiry checks only.
	Claims jwt.MapClaims
}

// Subject returns the sub claim.
func (s *IdentitySession) Subject() string {
	sub, _ := s.Claims.GetSubject()
	return sub
}

// Username returns the most human friendly name the claims carry.
func (s *IdentitySession) Username() string {
	for _, k := range []string{"cognito:username", "email", "username"} {
		if v, ok := s.Claims[k].(string); ok && v != "" {
			return v
		}
	}
	return s.Subject()
}

// Expiry is the identity token exp, zero if absent.
func (s *IdentitySession) Expiry() time.Time {
	exp, err := s.Claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}
	}
	return exp.Time
}

// Expired reports whether the identity token exp is at or before now.
func (s *IdentitySession) Expired(now time.Time) bool {
	exp := s.Expiry()
	return !exp.IsZero() && !exp.After(now)
}

func decodeClaims(idToken string) (jwt.MapClaims, error) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(idToken, claims); err != nil {
		return nil, err
	}
	return claims, nil
}

// PendingLogin is what has to survive between sending the user to the
// hosted UI and the redirect coming back.
type PendingLogin struct {
	State       string    `json:"state"`
	Verifier    string    `json:"verifier"`
	RedirectURI string    `json:"redirect_uri"`
	CreatedAt   time.Time `json:"created_at"`
}
