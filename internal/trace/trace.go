// Package trace provides per-connection request tracing on top of
// golang.org/x/net/trace, plus a structured log line for every event so a
// trace survives even when the /debug/requests page is never opened.
package trace

import (
	"fmt"
	"net/http"
	"strconv"

	"blitiri.com.ar/go/log"

	nettrace "golang.org/x/net/trace"
)

func init() {
	// golang.org/x/net/trace's default authorization only allows localhost,
	// which is awkward when a client library's trace page is inspected from
	// another host in the same container/VM. Allow any requester.
	nettrace.AuthRequest = func(req *http.Request) (any, sensitive bool) {
		return true, true
	}
}

// Trace represents one Connection's lifetime, from Connect through Quit (or
// the Broken latch). A Connection creates exactly one Trace and Finishes it
// when the underlying stream closes.
type Trace struct {
	family string
	title  string
	t      nettrace.Trace
}

// New starts a trace. family is conventionally the type name emitting the
// trace ("smtpclient.Connection"); title identifies the instance (the
// remote address).
func New(family, title string) *Trace {
	t := &Trace{family, title, nettrace.New(family, title)}

	// A full SMTP conversation (EHLO, STARTTLS, AUTH, MAIL/RCPT*/DATA) can
	// comfortably exceed the package default of 10 events.
	t.t.SetMaxEvents(30)
	return t
}

// Printf adds this message to the trace's log, at info level.
func (t *Trace) Printf(format string, a ...interface{}) {
	t.t.LazyPrintf(format, a...)

	log.Log(log.Info, 1, "%s %s: %s", t.family, t.title,
		quote(fmt.Sprintf(format, a...)))
}

// Debugf adds this message to the trace's log, at debug level.
func (t *Trace) Debugf(format string, a ...interface{}) {
	t.t.LazyPrintf(format, a...)

	log.Log(log.Debug, 1, "%s %s: %s",
		t.family, t.title, quote(fmt.Sprintf(format, a...)))
}

// Error marks the trace as having failed, and logs err alongside it. The
// returned value is err unchanged, so callers can write
// "return c.tr.Error(err)".
func (t *Trace) Error(err error) error {
	t.t.SetError()
	t.t.LazyPrintf("error: %v", err)

	log.Log(log.Info, 1, "%s %s: error: %s", t.family, t.title,
		quote(err.Error()))

	return err
}

// Finish closes out the trace. The Trace must not be used afterwards.
func (t *Trace) Finish() {
	t.t.Finish()
}

func quote(s string) string {
	qs := strconv.Quote(s)
	return qs[1 : len(qs)-1]
}
