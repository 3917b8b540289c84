package credentialexchange

import (
	"context"
	"crypto/sha256"
	"time"

	"github.com/dnitsch/lambda-url-auth/internal/apperr"
	"github.com/rs/zerolog"
)

// Exchanger holds the credentials derived from the last identity token and
// re-derives them when the token changes or the credentials are about to
// expire.
//
// An Exchanger is not safe for concurrent use.
type Exchanger struct {
	conf     IdentityPoolConfig
	identity CognitoIdentityApi
	sts      AuthWebTokenApi
	log      zerolog.Logger
	now      func() time.Time

	tokenDigest [sha256.Size]byte
	cached      *AWSCredentials
}

// NewExchanger returns an Exchanger. stsSvc is only used in the basic flow
// and may be nil when conf.RoleArn is empty.
func NewExchanger(conf IdentityPoolConfig, identity CognitoIdentityApi, stsSvc AuthWebTokenApi) *Exchanger {
	return &Exchanger{
		conf:     conf,
		identity: identity,
		sts:      stsSvc,
		log:      zerolog.Nop(),
		now:      time.Now,
	}
}

func (e *Exchanger) WithLogger(l zerolog.Logger) *Exchanger {
	e.log = l
	return e
}

func (e *Exchanger) WithClock(now func() time.Time) *Exchanger {
	e.now = now
	return e
}

// Exchange returns credentials for idToken. Cached credentials are reused
// only while the token is unchanged and they are outside the reload window.
func (e *Exchanger) Exchange(ctx context.Context, idToken string) (*AWSCredentials, error) {
	if err := checkIdentityToken(idToken, e.now()); err != nil {
		return nil, apperr.New(apperr.KindExchange, "exchange", err)
	}

	digest := sha256.Sum256([]byte(idToken))
	if e.cached != nil && digest == e.tokenDigest && !ReloadBeforeExpiry(e.now(), e.cached.Expires, e.conf.ReloadBeforeTime) {
		e.log.Debug().Str("identity", e.cached.IdentityID).Msg("reusing cached credentials")
		return e.cached, nil
	}

	var (
		creds *AWSCredentials
		err   error
	)
	if e.conf.RoleArn != "" {
		e.log.Debug().Str("role", e.conf.RoleArn).Msg("exchanging token via the basic flow")
		creds, err = LoginIdentityPoolBasic(ctx, idToken, e.conf, e.identity, e.sts)
	} else {
		e.log.Debug().Str("pool", e.conf.IdentityPoolId).Msg("exchanging token via the enhanced flow")
		creds, err = LoginIdentityPool(ctx, idToken, e.conf, e.identity)
	}
	if err != nil {
		e.Forget()
		return nil, apperr.New(apperr.KindExchange, "exchange", err)
	}

	e.tokenDigest = digest
	e.cached = creds
	e.log.Info().Str("identity", creds.IdentityID).Time("expires", creds.Expires).Msg("credentials issued")
	return creds, nil
}

// Forget drops any cached credentials.
func (e *Exchanger) Forget() {
	e.cached = nil
	e.tokenDigest = [sha256.Size]byte{}
}
