package flow

import (
	"errors"
	"fmt"
)

type State int

const (
	StateUnauthenticated State = iota
	StateAuthenticating
	StateAuthenticated
	StateCredentialsExchanged
	StateRequestSigned
	StateInvoked
	StateError
)

var stateNames = map[State]string{
	StateUnauthenticated:      "Unauthenticated",
	StateAuthenticating:       "Authenticating",
	StateAuthenticated:        "Authenticated",
	StateCredentialsExchanged: "CredentialsExchanged",
	StateRequestSigned:        "RequestSigned",
	StateInvoked:              "Invoked",
	StateError:                "Error",
}

func (s State) String() string {
	if n, ok := stateNames[s]; ok {
		return n
	}
	return fmt.Sprintf("State(%d)", int(s))
}

type Event int

const (
	EventSignInStarted Event = iota
	EventSignedIn
	EventCredentialsIssued
	EventRequestSigned
	EventResponseReceived
	EventFailed
	EventSignedOut
	// EventRestarted starts another call with the session already held
	EventRestarted
)

var eventNames = map[Event]string{
	EventSignInStarted:     "SignInStarted",
	EventSignedIn:          "SignedIn",
	EventCredentialsIssued: "CredentialsIssued",
	EventRequestSigned:     "RequestSigned",
	EventResponseReceived:  "ResponseReceived",
	EventFailed:            "Failed",
	EventSignedOut:         "SignedOut",
	EventRestarted:         "Restarted",
}

func (e Event) String() string {
	if n, ok := eventNames[e]; ok {
		return n
	}
	return fmt.Sprintf("Event(%d)", int(e))
}

var ErrInvalidTransition = errors.New("invalid transition")

var transitions = map[State]map[Event]State{
	StateUnauthenticated: {
		EventSignInStarted: StateAuthenticating,
		EventFailed:        StateError,
		EventSignedOut:     StateUnauthenticated,
	},
	StateAuthenticating: {
		EventSignedIn:  StateAuthenticated,
		EventFailed:    StateError,
		EventSignedOut: StateUnauthenticated,
	},
	StateAuthenticated: {
		EventCredentialsIssued: StateCredentialsExchanged,
		EventSignInStarted:     StateAuthenticating,
		EventFailed:            StateError,
		EventSignedOut:         StateUnauthenticated,
	},
	StateCredentialsExchanged: {
		EventRequestSigned:     StateRequestSigned,
		EventCredentialsIssued: StateCredentialsExchanged,
		EventSignInStarted:     StateAuthenticating,
		EventFailed:            StateError,
		EventSignedOut:         StateUnauthenticated,
	},
	StateRequestSigned: {
		EventResponseReceived: StateInvoked,
		EventFailed:           StateError,
		EventSignedOut:        StateUnauthenticated,
	},
	StateInvoked: {
		EventRestarted:     StateAuthenticated,
		EventSignInStarted: StateAuthenticating,
		EventSignedOut:     StateUnauthenticated,
	},
	StateError: {
		EventRestarted:     StateAuthenticated,
		EventSignInStarted: StateAuthenticating,
		EventSignedOut:     StateUnauthenticated,
	},
}

// Next returns the state reached from s on e.
func Next(s State, e Event) (State, error) {
	if to, ok := transitions[s][e]; ok {
		return to, nil
	}
	return s, fmt.Errorf("%s on %s, %w", e, s, ErrInvalidTransition)
}
