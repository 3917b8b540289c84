// Package invoke sends signed requests to the function URL.
package invoke

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/dnitsch/lambda-url-auth/internal/apperr"
	"github.com/dnitsch/lambda-url-auth/internal/signer"
	"github.com/rs/zerolog"
)

// responses larger than this are truncated
const MAX_BODY = 10 << 20

var (
	ErrUnexpectedStatus = errors.New("unexpected status")
	ErrTransport        = errors.New("request failed")
)

type Response struct {
	StatusCode int
	Header     http.Header
	Body       string
}

type Invoker struct {
	client *http.Client
	log    zerolog.Logger
}

// New returns an Invoker, http.DefaultClient is used when client is nil.
func New(client *http.Client) *Invoker {
	if client == nil {
		client = http.DefaultClient
	}
	return &Invoker{client: client, log: zerolog.Nop()}
}

func (i *Invoker) WithLogger(l zerolog.Logger) *Invoker {
	i.log = l
	return i
}

// Invoke sends req exactly as signed. A non 2xx response is returned as an
// invocation error carrying the status and body.
func (i *Invoker) Invoke(ctx context.Context, req *signer.SignedRequest) (*Response, error) {
	op := fmt.Sprintf("%s %s", req.Method, req.URL)

	httpReq, err := req.HTTPRequest(ctx)
	if err != nil {
		return nil, apperr.New(apperr.KindInvocation, op, fmt.Errorf("%s, %w", err, ErrTransport))
	}

	resp, err := i.client.Do(httpReq)
	if err != nil {
		return nil, apperr.New(apperr.KindInvocation, op, fmt.Errorf("%s, %w", err, ErrTransport))
	}
	defer resp.Body.Close()

	b, err := io.ReadAll(io.LimitReader(resp.Body, MAX_BODY))
	if err != nil {
		return nil, apperr.New(apperr.KindInvocation, op, fmt.Errorf("reading body: %s, %w", err, ErrTransport))
	}
	i.log.Debug().Int("status", resp.StatusCode).Str("url", req.URL).Msg("function responded")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &apperr.Error{
			Kind:   apperr.KindInvocation,
			Op:     op,
			Status: resp.StatusCode,
			Body:   string(b),
			Err:    ErrUnexpectedStatus,
		}
	}

	return &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       string(b),
	}, nil
}
