// Package signer produces SigV4 signed requests for a function URL.
package signer

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"hash"
	"net/http"
	"net/url"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/dnitsch/lambda-url-auth/internal/apperr"
)

const (
	HeaderContentSha256 = "X-Amz-Content-Sha256"
	HeaderAmzDate       = "X-Amz-Date"
	HeaderHost          = "Host"
	AmzDateFormat       = "20060102T150405Z"
)

var (
	ErrInvalidRequest     = errors.New("invalid request to sign")
	ErrMissingCredentials = errors.New("credentials are incomplete")
	ErrMissingScope       = errors.New("region and service are required")
)

// Input is everything that goes into a signature.
type Input struct {
	Method      string
	URL         string
	Header      http.Header
	Body        []byte
	Credentials aws.Credentials
	Region      string
	Service     string
	// Time is the signing time, callers pass the current time
	Time time.Time
	// Hash is used for the payload hash, defaults to sha256
	Hash func() hash.Hash
}

// SignedRequest is a request ready to send. Header includes Host,
// X-Amz-Date, X-Amz-Content-Sha256, Authorization and, for temporary
// credentials, X-Amz-Security-Token.
type SignedRequest struct {
	Method string
	URL    string
	Header http.Header
	Body   []byte
}

// HTTPRequest builds the request to send.
func (s *SignedRequest) HTTPRequest(ctx context.Context) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, s.Method, s.URL, bytes.NewReader(s.Body))
	if err != nil {
		return nil, err
	}
	req.Header = s.Header.Clone()
	if h := req.Header.Get(HeaderHost); h != "" {
		req.Host = h
		req.Header.Del(HeaderHost)
	}
	return req, nil
}

type Signer struct {
	v4 *v4.Signer
}

func New(optFns ...func(*v4.SignerOptions)) *Signer {
	return &Signer{v4: v4.NewSigner(optFns...)}
}

// Sign returns a signed copy of the request described by in. in.Header is
// not modified. For a fixed in.Time the result is deterministic.
func (s *Signer) Sign(ctx context.Context, in Input) (*SignedRequest, error) {
	if in.Method == "" {
		return nil, signErr(fmt.Errorf("method is empty, %w", ErrInvalidRequest))
	}
	u, err := url.Parse(in.URL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, signErr(fmt.Errorf("url %q is not absolute, %w", in.URL, ErrInvalidRequest))
	}
	if !in.Credentials.HasKeys() {
		return nil, signErr(ErrMissingCredentials)
	}
	if in.Region == "" || in.Service == "" {
		return nil, signErr(ErrMissingScope)
	}

	newHash := in.Hash
	if newHash == nil {
		newHash = sha256.New
	}
	h := newHash()
	h.Write(in.Body)
	payloadHash := hex.EncodeToString(h.Sum(nil))

	req, err := http.NewRequestWithContext(ctx, in.Method, u.String(), bytes.NewReader(in.Body))
	if err != nil {
		return nil, signErr(fmt.Errorf("%s, %w", err, ErrInvalidRequest))
	}
	req.Header = in.Header.Clone()
	if req.Header == nil {
		req.Header = http.Header{}
	}
	// host is always taken from the url
	req.Header.Del(HeaderHost)
	req.Header.Set(HeaderContentSha256, payloadHash)

	if err := s.v4.SignHTTP(ctx, in.Credentials, req, payloadHash, in.Service, in.Region, in.Time.UTC()); err != nil {
		return nil, signErr(err)
	}

	signed := &SignedRequest{
		Method: in.Method,
		URL:    req.URL.String(),
		Header: req.Header.Clone(),
		Body:   append([]byte(nil), in.Body...),
	}
	signed.Header.Set(HeaderHost, req.URL.Host)
	return signed, nil
}

func signErr(err error) error {
	return apperr.New(apperr.KindSigning, "sign", err)
}
