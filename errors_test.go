package smtpclient

import (
	"strings"
	"testing"

	"github.com/mailcore/smtpclient/reply"
)

func TestFromReplyClassifiesSeverity(t *testing.T) {
	permanent := reply.Reply{Code: reply.NewCode(reply.PermanentNegative, 5, 0), Lines: []string{"no"}}
	if err := FromReply(permanent); err == nil || err.Kind != Permanent {
		t.Errorf("FromReply(5xx) = %v, want Kind Permanent", err)
	}

	transient := reply.Reply{Code: reply.NewCode(reply.TransientNegative, 4, 1), Lines: []string{"try again"}}
	if err := FromReply(transient); err == nil || err.Kind != Transient {
		t.Errorf("FromReply(4xx) = %v, want Kind Transient", err)
	}

	positive := reply.Reply{Code: reply.NewCode(reply.PositiveCompletion, 5, 0), Lines: []string{"ok"}}
	if err := FromReply(positive); err != nil {
		t.Errorf("FromReply(2xx) = %v, want nil", err)
	}
}

func TestUnexpectedReplyNeverNil(t *testing.T) {
	permanent := reply.Reply{Code: reply.NewCode(reply.PermanentNegative, 5, 0), Lines: []string{"no"}}
	if err := UnexpectedReply(permanent); err == nil || err.Kind != Permanent {
		t.Errorf("UnexpectedReply(5xx) = %v, want Kind Permanent", err)
	}

	// A "250 OK" answering a command that wanted a different code (e.g.
	// DATA's "354"): positive, so FromReply would return nil, but the
	// caller has already decided this is a failure.
	unexpectedPositive := reply.Reply{Code: reply.NewCode(reply.PositiveCompletion, 5, 0), Lines: []string{"ok"}}
	if err := UnexpectedReply(unexpectedPositive); err == nil {
		t.Fatal("UnexpectedReply must never return nil")
	} else if err.Kind != Parse {
		t.Errorf("UnexpectedReply(unexpected 2xx) Kind = %v, want Parse", err.Kind)
	}

	// A stray 1xx reply: not positive-completion/intermediate in the sense
	// the protocol expects here, and not 4xx/5xx either.
	intermediate := reply.Reply{Code: reply.NewCode(1, 0, 0), Lines: []string{"?"}}
	if err := UnexpectedReply(intermediate); err == nil {
		t.Error("UnexpectedReply must never return nil for a 1xx reply")
	}
}

func TestIsPermanentIsTransientUnwrap(t *testing.T) {
	base := &Error{Kind: Permanent, Reason: "rejected"}
	wrapped := &Error{Kind: Client, Reason: "during send", Cause: base}

	if !IsPermanent(wrapped) {
		t.Error("expected IsPermanent to see through a wrapped cause")
	}
	if IsTransient(wrapped) {
		t.Error("did not expect IsTransient to match a Permanent cause")
	}
}

func TestErrorStringIncludesReplyContext(t *testing.T) {
	code := reply.NewCode(reply.PermanentNegative, 5, 1)
	err := &Error{Kind: Permanent, Reason: "server rejected the command", Code: &code, FirstLine: "mailbox unavailable"}
	msg := err.Error()
	if msg == "" {
		t.Fatal("expected a non-empty error string")
	}
	if !strings.Contains(msg, "551") || !strings.Contains(msg, "mailbox unavailable") {
		t.Errorf("Error() = %q, want it to include the reply code and first line", msg)
	}
}
