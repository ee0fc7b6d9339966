package smtpclient

import (
	"fmt"

	"github.com/mailcore/smtpclient/reply"
)

// Kind classifies an error the way spec.md section 7 requires.
type Kind int

const (
	// Client means the caller's request violated a precondition.
	Client Kind = iota
	// Network means an underlying I/O, TLS or timeout failure occurred.
	Network
	// Parse means a reply or header the core was asked to consume was
	// malformed.
	Parse
	// Transient means a positive-form response cycle ended in a 4xx code;
	// the caller may retry.
	Transient
	// Permanent means a response cycle ended in a 5xx code; the caller
	// must not retry without changes.
	Permanent
)

func (k Kind) String() string {
	switch k {
	case Client:
		return "client"
	case Network:
		return "network"
	case Parse:
		return "parse"
	case Transient:
		return "transient"
	case Permanent:
		return "permanent"
	default:
		return "unknown"
	}
}

// Error is the error type returned across this module's public surface. It
// carries a Kind, the originating cause, and - when the failure was
// server-originated - the reply code and first line, so logs are
// self-describing without leaking credentials (spec.md section 7).
type Error struct {
	Kind       Kind
	Reason     string
	Code       *reply.Code
	FirstLine  string
	Cause      error
}

func (e *Error) Error() string {
	if e.Code != nil {
		return fmt.Sprintf("smtp: %s: %s (%s %q)", e.Kind, e.Reason, e.Code, e.FirstLine)
	}
	if e.Cause != nil {
		return fmt.Sprintf("smtp: %s: %s: %v", e.Kind, e.Reason, e.Cause)
	}
	return fmt.Sprintf("smtp: %s: %s", e.Kind, e.Reason)
}

func (e *Error) Unwrap() error { return e.Cause }

// ClientErrorf is a convenience constructor for callers that have only a
// reason string; it builds an *Error of Kind Client.
func ClientErrorf(reason string) error {
	return &Error{Kind: Client, Reason: reason}
}

// ClientError is a lightweight error used by address.go and envelope.go for
// precondition violations that never reach the wire. It satisfies the
// error interface directly and converts cleanly to *Error via AsError.
type ClientError struct {
	Reason string
}

func (e *ClientError) Error() string {
	return "smtp: client: " + e.Reason
}

// AsError promotes a ClientError (or any error) to the module's *Error
// type with Kind Client, so callers that type-switch on Kind see a
// consistent shape regardless of which package raised it.
func AsError(err error) *Error {
	if err == nil {
		return nil
	}
	if e, ok := err.(*Error); ok {
		return e
	}
	return &Error{Kind: Client, Reason: err.Error(), Cause: err}
}

// NetworkError wraps a network/TLS/timeout failure.
func NetworkError(cause error) *Error {
	return &Error{Kind: Network, Reason: "network failure", Cause: cause}
}

// ParseErrorf wraps a malformed reply or header.
func ParseErrorf(cause error) *Error {
	return &Error{Kind: Parse, Reason: "parse failure", Cause: cause}
}

// FromReply builds a Transient or Permanent *Error from a negative SMTP
// reply, or nil if the reply was positive (2xx/3xx).
func FromReply(r reply.Reply) *Error {
	switch {
	case r.Code.IsPermanent():
		return &Error{Kind: Permanent, Reason: "server rejected the command", Code: &r.Code, FirstLine: r.FirstLine()}
	case r.Code.IsTransient():
		return &Error{Kind: Transient, Reason: "server temporarily rejected the command", Code: &r.Code, FirstLine: r.FirstLine()}
	default:
		return nil
	}
}

// UnexpectedReply builds an *Error for a reply the caller has already
// determined does not satisfy the command it answered - whether that is a
// 4xx/5xx rejection, a stray 1xx, or a reply whose severity is nominally
// positive but whose code the protocol did not call for (e.g. a "250 OK" in
// answer to DATA, which wants "354"). Unlike FromReply, this never returns
// nil: every connection.go call site that reaches it is already on a
// failure branch, and a nil error there would surface as silent success.
func UnexpectedReply(r reply.Reply) *Error {
	if err := FromReply(r); err != nil {
		return err
	}
	return &Error{Kind: Parse, Reason: "unexpected reply code", Code: &r.Code, FirstLine: r.FirstLine()}
}

// IsPermanent reports whether err, or any error in its Unwrap chain, is a
// smtpclient.Error of Kind Permanent.
func IsPermanent(err error) bool {
	return hasKind(err, Permanent)
}

// IsTransient reports whether err, or any error in its Unwrap chain, is a
// smtpclient.Error of Kind Transient.
func IsTransient(err error) bool {
	return hasKind(err, Transient)
}

func hasKind(err error, kind Kind) bool {
	for err != nil {
		if e, ok := err.(*Error); ok && e.Kind == kind {
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}
