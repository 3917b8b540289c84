// Package apperr classifies every failure of the sign-in → exchange → sign → invoke
// chain into one of a small set of kinds, so callers never have to deal with raw
// SDK or transport errors.
package apperr

import (
	"errors"
	"fmt"
)

// Kind is the category of a failure.
type Kind string

const (
	// KindConfiguration is a missing or invalid external identifier. Fatal.
	KindConfiguration Kind = "configuration"
	// KindAuthentication is a failed interactive sign-in. Retry by signing in again.
	KindAuthentication Kind = "authentication"
	// KindVerification is a token that failed signature or claim checks.
	KindVerification Kind = "verification"
	// KindExchange is a failure to obtain temporary credentials.
	KindExchange Kind = "exchange"
	// KindSigning is a request that could not be signed. Programming error class.
	KindSigning Kind = "signing"
	// KindInvocation is a failed or non-successful call to the endpoint.
	KindInvocation Kind = "invocation"
)

var (
	ErrConfiguration  = &Error{Kind: KindConfiguration}
	ErrAuthentication = &Error{Kind: KindAuthentication}
	ErrVerification   = &Error{Kind: KindVerification}
	ErrExchange       = &Error{Kind: KindExchange}
	ErrSigning        = &Error{Kind: KindSigning}
	ErrInvocation     = &Error{Kind: KindInvocation}
)

// Error is a classified error.
// Status and Body are only set for invocation failures that got a response.
type Error struct {
	Kind   Kind
	Op     string
	Status int
	Body   string
	Err    error
}

// New wraps err with a kind and the operation that failed.
func New(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

func (e *Error) Error() string {
	msg := string(e.Kind)
	if e.Op != "" {
		msg = fmt.Sprintf("%s: %s", msg, e.Op)
	}
	if e.Status != 0 {
		msg = fmt.Sprintf("%s: status %d", msg, e.Status)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error of the same kind, so errors.Is(err, apperr.ErrExchange) works
// regardless of the operation or cause.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return t.Kind == e.Kind
	}
	return false
}

// Fatal reports whether the process should stop rather than offer a retry.
func (e *Error) Fatal() bool {
	return e.Kind == KindConfiguration || e.Kind == KindSigning
}

// KindOf returns the kind of err, or "" if it was never classified.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// IsFatal reports whether err is classified as fatal.
// Unclassified errors are treated as fatal.
func IsFatal(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Fatal()
	}
	return err != nil
}

// Ensure returns err unchanged when it is already classified, otherwise it is wrapped
// with the fallback kind.
func Ensure(err error, kind Kind, op string) error {
	if err == nil {
		return nil
	}
	if KindOf(err) != "" {
		return err
	}
	return New(kind, op, err)
}
