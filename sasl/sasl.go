// Package sasl defines the SASL engine interface the connection state
// machine drives during AUTH, and the built-in PLAIN/LOGIN/XOAUTH2
// mechanisms. The wire-level base64 encoding is done by the connection via
// the codec package; engines here deal only in raw bytes.
package sasl

import "fmt"

// Credentials is the mechanism-agnostic secret material handed to an
// Engine. It is never logged by this module.
type Credentials struct {
	Username string
	Password string
	// Token is used by bearer-token mechanisms such as XOAUTH2 in place of
	// Password.
	Token string
}

// Engine drives one SASL mechanism's challenge/response exchange.
type Engine interface {
	// Name is the mechanism name as advertised by the server (e.g. "PLAIN").
	Name() string

	// Start returns the client's initial response, and whether the
	// mechanism sends one at all (some mechanisms, like LOGIN, do not).
	Start(creds Credentials) (initialResponse []byte, hasInitial bool)

	// Step computes the client's response to a server challenge. done
	// reports whether the mechanism expects no further challenges.
	Step(challenge []byte) (response []byte, done bool, err error)

	// Secure reports whether the mechanism can be used over an
	// unencrypted channel without exposing a reusable cleartext password
	// (true for bearer-token schemes like XOAUTH2, false for PLAIN/LOGIN).
	Secure() bool
}

// MaxChallenges bounds the AUTH challenge/response loop per spec section
// 4.6: more than this many server challenges aborts the exchange.
const MaxChallenges = 10

// ErrTooManyChallenges is returned when a server's AUTH exchange exceeds
// MaxChallenges round trips.
var ErrTooManyChallenges = fmt.Errorf("sasl: exchange exceeded %d challenges", MaxChallenges)
