// Package flow drives sign in, credential exchange, signing and invocation
// through a single state machine.
package flow

import (
	"context"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/dnitsch/lambda-url-auth/internal/apperr"
	"github.com/dnitsch/lambda-url-auth/internal/auth"
	"github.com/dnitsch/lambda-url-auth/internal/credentialexchange"
	"github.com/dnitsch/lambda-url-auth/internal/invoke"
	"github.com/dnitsch/lambda-url-auth/internal/signer"
	"github.com/dnitsch/lambda-url-auth/internal/verify"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

type Acquirer interface {
	SignIn(ctx context.Context) (*auth.IdentitySession, error)
	Begin(ctx context.Context) (string, *auth.PendingLogin, error)
	Complete(ctx context.Context, callback *url.URL) (*auth.IdentitySession, error)
	LogoutURL(postLogoutURI string) string
	ForgetPending() error
}

type Verifier interface {
	Verify(ctx context.Context, token string) (verify.Claims, error)
}

type Exchanger interface {
	Exchange(ctx context.Context, idToken string) (*credentialexchange.AWSCredentials, error)
	Forget()
}

type RequestSigner interface {
	Sign(ctx context.Context, in signer.Input) (*signer.SignedRequest, error)
}

type Invoker interface {
	Invoke(ctx context.Context, req *signer.SignedRequest) (*invoke.Response, error)
}

// Deps are the components the flow runs. Verifier may be nil.
type Deps struct {
	Acquirer  Acquirer
	Verifier  Verifier
	Exchanger Exchanger
	Signer    RequestSigner
	Invoker   Invoker
}

// Target is the request made on every Call.
type Target struct {
	Method  string
	URL     string
	Header  http.Header
	Body    []byte
	Region  string
	Service string
}

// Verification is the outcome of the advisory token check.
type Verification struct {
	Claims verify.Claims
	Err    error
}

// Flow is not safe for concurrent use, apart from the advisory verification
// it starts itself.
type Flow struct {
	deps   Deps
	target Target
	log    zerolog.Logger
	now    func() time.Time

	state   State
	lastErr error
	session *auth.IdentitySession
	creds   *credentialexchange.AWSCredentials

	advisory     errgroup.Group
	mu           sync.Mutex
	verification *Verification
}

func New(deps Deps, target Target) *Flow {
	return &Flow{
		deps:   deps,
		target: target,
		log:    zerolog.Nop(),
		now:    time.Now,
		state:  StateUnauthenticated,
	}
}

func (f *Flow) WithLogger(l zerolog.Logger) *Flow {
	f.log = l
	return f
}

func (f *Flow) WithClock(now func() time.Time) *Flow {
	f.now = now
	return f
}

func (f *Flow) State() State                                    { return f.state }
func (f *Flow) Err() error                                      { return f.lastErr }
func (f *Flow) Session() *auth.IdentitySession                  { return f.session }
func (f *Flow) Credentials() *credentialexchange.AWSCredentials { return f.creds }

func (f *Flow) transition(e Event) error {
	to, err := Next(f.state, e)
	if err != nil {
		return err
	}
	f.log.Debug().Str("from", f.state.String()).Str("to", to.String()).Str("event", e.String()).Msg("transition")
	f.state = to
	return nil
}

// fail records err and moves to the error state where that is allowed.
func (f *Flow) fail(err error) error {
	f.lastErr = err
	if terr := f.transition(EventFailed); terr != nil {
		f.log.Debug().Err(terr).Msg("staying in current state")
	}
	return err
}

func (f *Flow) signingIn() error {
	if f.state == StateAuthenticating {
		return nil
	}
	return f.transition(EventSignInStarted)
}

func (f *Flow) signedIn(session *auth.IdentitySession) error {
	f.session = session
	f.creds = nil
	f.lastErr = nil
	return f.transition(EventSignedIn)
}

// SignIn runs the interactive login.
func (f *Flow) SignIn(ctx context.Context) error {
	if err := f.signingIn(); err != nil {
		return err
	}
	session, err := f.deps.Acquirer.SignIn(ctx)
	if err != nil {
		return f.fail(apperr.Ensure(err, apperr.KindAuthentication, "sign-in"))
	}
	return f.signedIn(session)
}

// Begin starts a login to be completed by Resume, possibly in another
// process, and returns the URL the user has to open.
func (f *Flow) Begin(ctx context.Context) (string, error) {
	if err := f.signingIn(); err != nil {
		return "", err
	}
	authURL, _, err := f.deps.Acquirer.Begin(ctx)
	if err != nil {
		return "", f.fail(apperr.Ensure(err, apperr.KindAuthentication, "begin"))
	}
	return authURL, nil
}

// Resume completes a login from the URL the hosted UI redirected to.
func (f *Flow) Resume(ctx context.Context, callbackURL string) error {
	if err := f.signingIn(); err != nil {
		return err
	}
	cb, err := url.Parse(callbackURL)
	if err != nil {
		return f.fail(apperr.New(apperr.KindAuthentication, "resume", err))
	}
	session, err := f.deps.Acquirer.Complete(ctx, cb)
	if err != nil {
		return f.fail(apperr.Ensure(err, apperr.KindAuthentication, "resume"))
	}
	return f.signedIn(session)
}

func (f *Flow) restart() error {
	if (f.state == StateInvoked || f.state == StateError) && f.session != nil {
		return f.transition(EventRestarted)
	}
	return nil
}

// Exchange obtains credentials for the current session. Token verification
// runs alongside it and never blocks or fails the exchange.
func (f *Flow) Exchange(ctx context.Context) (*credentialexchange.AWSCredentials, error) {
	if err := f.restart(); err != nil {
		return nil, err
	}
	if f.session == nil || f.session.IDToken == "" {
		return nil, f.fail(apperr.New(apperr.KindExchange, "exchange", credentialexchange.ErrNoIdentityToken))
	}

	f.verifyAdvisory(ctx, f.session.AccessToken)

	creds, err := f.deps.Exchanger.Exchange(ctx, f.session.IDToken)
	if err != nil {
		return nil, f.fail(apperr.Ensure(err, apperr.KindExchange, "exchange"))
	}
	f.creds = creds
	if err := f.transition(EventCredentialsIssued); err != nil {
		return nil, err
	}
	return creds, nil
}

// Call signs the target request with fresh credentials and sends it.
func (f *Flow) Call(ctx context.Context) (*invoke.Response, error) {
	creds, err := f.Exchange(ctx)
	if err != nil {
		return nil, err
	}

	signed, err := f.deps.Signer.Sign(ctx, signer.Input{
		Method:      f.target.Method,
		URL:         f.target.URL,
		Header:      f.target.Header,
		Body:        f.target.Body,
		Credentials: creds.Aws(),
		Region:      f.target.Region,
		Service:     f.target.Service,
		Time:        f.now(),
	})
	if err != nil {
		return nil, f.fail(apperr.Ensure(err, apperr.KindSigning, "sign"))
	}
	if err := f.transition(EventRequestSigned); err != nil {
		return nil, err
	}

	resp, err := f.deps.Invoker.Invoke(ctx, signed)
	if err != nil {
		return nil, f.fail(apperr.Ensure(err, apperr.KindInvocation, "invoke"))
	}
	if err := f.transition(EventResponseReceived); err != nil {
		return nil, err
	}
	f.log.Info().Int("status", resp.StatusCode).Msg("function invoked")
	return resp, nil
}

// SignOut drops the session, credentials and any pending logins and returns
// the hosted UI logout URL.
func (f *Flow) SignOut(postLogoutURI string) (string, error) {
	f.session = nil
	f.creds = nil
	f.lastErr = nil
	f.deps.Exchanger.Forget()
	if err := f.deps.Acquirer.ForgetPending(); err != nil {
		f.log.Warn().Err(err).Msg("unable to clear pending logins")
	}
	if err := f.transition(EventSignedOut); err != nil {
		return "", err
	}
	return f.deps.Acquirer.LogoutURL(postLogoutURI), nil
}

func (f *Flow) verifyAdvisory(ctx context.Context, token string) {
	if f.deps.Verifier == nil || token == "" {
		return
	}
	f.advisory.Go(func() error {
		claims, err := f.deps.Verifier.Verify(ctx, token)
		if err != nil {
			f.log.Warn().Err(err).Msg("token verification failed, continuing")
		} else {
			f.log.Debug().Str("sub", claims.Subject()).Time("expires", claims.Expiry()).Msg("token verified")
		}
		f.mu.Lock()
		f.verification = &Verification{Claims: claims, Err: err}
		f.mu.Unlock()
		return nil
	})
}

// Wait blocks until any advisory verification has finished and returns its
// outcome, nil when none ran.
func (f *Flow) Wait() *Verification {
	_ = f.advisory.Wait()
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.verification
}
