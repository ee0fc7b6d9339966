package smtpclient

import (
	"encoding/base64"
	"strings"
	"time"

	"github.com/mailcore/smtpclient/capability"
	"github.com/mailcore/smtpclient/codec"
	itrace "github.com/mailcore/smtpclient/internal/trace"
	"github.com/mailcore/smtpclient/internal/tlsconst"
	"github.com/mailcore/smtpclient/reply"
	"github.com/mailcore/smtpclient/sasl"
	"github.com/mailcore/smtpclient/transport"
)

// state is the Connection's position in the conversation state machine
// described in spec.md section 4.6.
type state int

const (
	stateGreet state = iota
	stateGreeted
	stateReady
	stateInTx
	stateBody
	stateClosed
	stateBroken
)

// SecurityPolicy selects how (and whether) TLS is used.
type SecurityPolicy int

const (
	// Plain never attempts TLS.
	Plain SecurityPolicy = iota
	// Opportunistic upgrades via STARTTLS if the server advertises it,
	// otherwise falls back to plaintext.
	Opportunistic
	// Required upgrades via STARTTLS and fails if the server does not
	// advertise it.
	Required
	// Wrapper encrypts the stream immediately on connect, before the
	// banner is read (implicit TLS, e.g. port 465).
	Wrapper
)

// AuthPolicy configures SASL authentication for a connection.
type AuthPolicy struct {
	Credentials sasl.Credentials
	// Mechanisms is an ordered list of acceptable mechanism engines; the
	// first one also offered by the server is used.
	Mechanisms []sasl.Engine
	// AllowCleartextMechanisms opts in to mechanisms that transmit a
	// reusable cleartext password (PLAIN, LOGIN) over an unencrypted
	// channel. Mechanisms whose Secure() returns true (e.g. XOAUTH2) are
	// never subject to this restriction.
	AllowCleartextMechanisms bool
}

// ConnectOptions configures Connect.
type ConnectOptions struct {
	HelloName  ClientId
	Security   SecurityPolicy
	TLSParams  transport.TLSParams
	Auth       *AuthPolicy
	Timeout    time.Duration // applied as both read and write deadline
	ReuseLimit int           // 0 disables reuse entirely
	LocalAddr  string        // optional local bind address, "" for default
}

// Connection drives one TCP (optionally TLS) conversation with an SMTP
// server through the state machine in spec.md section 4.6. It is not safe
// for concurrent use: one outstanding request/reply at a time.
type Connection struct {
	stream *transport.Stream
	info   *capability.ServerInfo
	opts   ConnectOptions

	state      state
	reuseCount int

	tr *itrace.Trace
}

// Connect dials addr, performs the banner/EHLO/STARTTLS/AUTH handshake per
// opts, and returns a ready Connection.
func Connect(network, addr string, opts ConnectOptions) (*Connection, error) {
	tr := itrace.New("smtpclient.Connection", addr)

	stream, err := transport.DialFrom(network, addr, opts.LocalAddr, opts.Timeout)
	if err != nil {
		tr.Finish()
		return nil, NetworkError(err)
	}

	c := &Connection{stream: stream, opts: opts, state: stateGreet, tr: tr}
	c.applyTimeout()

	if opts.Security == Wrapper {
		if err := c.stream.UpgradeTLS(opts.TLSParams); err != nil {
			return nil, c.failConnect(NetworkError(err))
		}
	}

	if err := c.readBanner(); err != nil {
		return nil, c.failConnect(err)
	}

	if err := c.doEHLO(); err != nil {
		return nil, c.failConnect(err)
	}

	if err := c.maybeStartTLS(); err != nil {
		return nil, c.failConnect(err)
	}

	if opts.Auth != nil {
		if err := c.authenticate(*opts.Auth); err != nil {
			return nil, c.failConnect(err)
		}
	}

	c.state = stateReady
	return c, nil
}

// failConnect tears down a Connection that failed somewhere during
// Connect: the stream must be closed even on failure, or the TCP
// connection (and the goroutine on the other end, in tests) leaks.
func (c *Connection) failConnect(err error) error {
	c.stream.Shutdown()
	c.tr.Finish()
	return err
}

func (c *Connection) applyTimeout() {
	c.stream.SetReadTimeout(c.opts.Timeout)
	c.stream.SetWriteTimeout(c.opts.Timeout)
}

func (c *Connection) readBanner() error {
	r, err := c.stream.ReadReply()
	if err != nil {
		return c.markBroken(c.classifyIOError(err))
	}
	if !r.Code.IsPositive() {
		return c.markBroken(UnexpectedReply(r))
	}
	c.state = stateGreeted
	return nil
}

func (c *Connection) doEHLO() error {
	if err := c.writeAndFlush(codec.EHLO(c.opts.HelloName.String())); err != nil {
		return c.markBroken(c.classifyIOError(err))
	}
	r, err := c.stream.ReadReply()
	if err != nil {
		return c.markBroken(c.classifyIOError(err))
	}
	if !r.Code.IsPositive() {
		return c.markBroken(UnexpectedReply(r))
	}
	c.info = capability.FromReply(r)
	c.state = stateReady
	c.tr.Debugf("EHLO ok: %s, features=%v, sasl=%v", c.info.Name, c.info.Features, c.info.SASLMechanisms)
	return nil
}

func (c *Connection) maybeStartTLS() error {
	switch c.opts.Security {
	case Plain, Wrapper:
		return nil
	case Required:
		if !c.info.Supports(capability.StartTLS) {
			return c.markBroken(&Error{Kind: Client, Reason: "STARTTLS required"})
		}
	case Opportunistic:
		if !c.info.Supports(capability.StartTLS) {
			return nil
		}
	}

	if err := c.writeAndFlush(codec.StartTLS()); err != nil {
		return c.markBroken(c.classifyIOError(err))
	}
	r, err := c.stream.ReadReply()
	if err != nil {
		return c.markBroken(c.classifyIOError(err))
	}
	if !r.Code.IsPositive() {
		return c.markBroken(UnexpectedReply(r))
	}
	if err := c.stream.UpgradeTLS(c.opts.TLSParams); err != nil {
		return c.markBroken(NetworkError(err))
	}
	c.tr.Debugf("STARTTLS ok")
	return c.doEHLO()
}

func (c *Connection) authenticate(policy AuthPolicy) error {
	if len(policy.Mechanisms) == 0 {
		return nil
	}
	var chosen sasl.Engine
	for _, eng := range policy.Mechanisms {
		if !c.info.HasSASLMechanism(eng.Name()) {
			continue
		}
		if !eng.Secure() && !c.stream.IsEncrypted() && !policy.AllowCleartextMechanisms {
			continue
		}
		chosen = eng
		break
	}
	if chosen == nil {
		return c.markBroken(&Error{Kind: Client, Reason: "no acceptable SASL mechanism offered by server"})
	}

	initial, hasInitial := chosen.Start(policy.Credentials)
	if err := c.writeAndFlush(codec.Auth(chosen.Name(), hasInitial, initial)); err != nil {
		return c.markBroken(c.classifyIOError(err))
	}

	for i := 0; i < sasl.MaxChallenges; i++ {
		r, err := c.stream.ReadReply()
		if err != nil {
			return c.markBroken(c.classifyIOError(err))
		}
		switch {
		case r.Code.Value() == 235:
			c.tr.Debugf("AUTH %s ok", chosen.Name())
			return nil
		case r.Code.Value() == 334:
			challenge, decodeErr := decodeChallenge(r.FirstLine())
			if decodeErr != nil {
				c.writeAndFlush(codec.CancelAuth())
				c.stream.ReadReply()
				return c.markBroken(ParseErrorf(decodeErr))
			}
			resp, done, stepErr := chosen.Step(challenge)
			if stepErr != nil {
				c.writeAndFlush(codec.CancelAuth())
				c.stream.ReadReply()
				return c.markBroken(&Error{Kind: Client, Reason: stepErr.Error(), Cause: stepErr})
			}
			if err := c.writeAndFlush(codec.ChallengeResponse(resp)); err != nil {
				return c.markBroken(c.classifyIOError(err))
			}
			_ = done
		default:
			return c.markBroken(UnexpectedReply(r))
		}
	}
	return c.markBroken(&Error{Kind: Client, Reason: sasl.ErrTooManyChallenges.Error(), Cause: sasl.ErrTooManyChallenges})
}

// Send runs one MAIL/RCPT*/DATA transaction for the given envelope and
// message bytes, returning the final (DATA-closing) reply.
func (c *Connection) Send(env Envelope, body []byte) (reply.Reply, error) {
	if c.state == stateBroken {
		return reply.Reply{}, &Error{Kind: Client, Reason: "connection is broken"}
	}
	if c.state != stateReady {
		return reply.Reply{}, &Error{Kind: Client, Reason: "connection is not ready for a new transaction"}
	}

	needUTF8 := env.needsSMTPUTF8()
	if needUTF8 && !c.info.Supports(capability.SMTPUTF8) {
		return reply.Reply{}, &Error{Kind: Client, Reason: "SMTPUTF8 required"}
	}
	need8Bit := containsHighBit(body)
	if need8Bit && !c.info.Supports(capability.EightBitMime) {
		return reply.Reply{}, &Error{Kind: Client, Reason: "8BITMIME required"}
	}

	var mailParams []string
	if need8Bit {
		mailParams = append(mailParams, "BODY=8BITMIME")
	}
	if needUTF8 {
		mailParams = append(mailParams, "SMTPUTF8")
	}

	reverse := ""
	if env.ReversePath != nil {
		reverse = env.ReversePath.String()
	}
	if err := c.writeAndFlush(codec.MailFrom(reverse, mailParams...)); err != nil {
		return reply.Reply{}, c.markBroken(c.classifyIOError(err))
	}
	r, err := c.stream.ReadReply()
	if err != nil {
		return reply.Reply{}, c.markBroken(c.classifyIOError(err))
	}
	if !r.Code.IsPositive() {
		return r, c.markBroken(UnexpectedReply(r))
	}
	c.state = stateInTx

	for _, rcpt := range env.ForwardPaths {
		if err := c.writeAndFlush(codec.RcptTo(rcpt.String())); err != nil {
			return reply.Reply{}, c.markBroken(c.classifyIOError(err))
		}
		rr, err := c.stream.ReadReply()
		if err != nil {
			return reply.Reply{}, c.markBroken(c.classifyIOError(err))
		}
		if !rr.Code.IsPositive() {
			return rr, c.markBroken(UnexpectedReply(rr))
		}
	}

	if err := c.writeAndFlush(codec.Data()); err != nil {
		return reply.Reply{}, c.markBroken(c.classifyIOError(err))
	}
	dr, err := c.stream.ReadReply()
	if err != nil {
		return reply.Reply{}, c.markBroken(c.classifyIOError(err))
	}
	if dr.Code.Value() != 354 {
		return dr, c.markBroken(UnexpectedReply(dr))
	}
	c.state = stateBody

	stuffed := stuffBody(body)
	if err := c.writeAndFlush(stuffed); err != nil {
		return reply.Reply{}, c.markBroken(c.classifyIOError(err))
	}
	fr, err := c.stream.ReadReply()
	if err != nil {
		return reply.Reply{}, c.markBroken(c.classifyIOError(err))
	}
	if !fr.Code.IsPositive() {
		return fr, c.markBroken(UnexpectedReply(fr))
	}

	c.state = stateReady
	c.reuseCount++
	if c.opts.ReuseLimit <= 0 || c.reuseCount >= c.opts.ReuseLimit {
		c.Quit()
	}
	return fr, nil
}

// Noop sends a NOOP command.
func (c *Connection) Noop() (reply.Reply, error) {
	if c.state == stateBroken {
		return reply.Reply{}, &Error{Kind: Client, Reason: "connection is broken"}
	}
	if err := c.writeAndFlush(codec.Noop()); err != nil {
		return reply.Reply{}, c.markBroken(c.classifyIOError(err))
	}
	r, err := c.stream.ReadReply()
	if err != nil {
		return reply.Reply{}, c.markBroken(c.classifyIOError(err))
	}
	if !r.Code.IsPositive() {
		return r, UnexpectedReply(r)
	}
	return r, nil
}

// Quit sends QUIT (best-effort) and closes the connection.
func (c *Connection) Quit() (reply.Reply, error) {
	if c.state == stateClosed {
		return reply.Reply{}, nil
	}
	var r reply.Reply
	if c.state != stateBroken {
		if err := c.writeAndFlush(codec.Quit()); err == nil {
			r, _ = c.stream.ReadReply()
		}
	}
	c.state = stateClosed
	c.stream.Shutdown()
	c.tr.Finish()
	return r, nil
}

// ReuseCount reports how many successful Send calls this connection has
// completed since it was established.
func (c *Connection) ReuseCount() int { return c.reuseCount }

// Broken reports whether the connection has latched into the Broken state.
func (c *Connection) Broken() bool { return c.state == stateBroken }

// ServerInfo returns the capability set from the most recent EHLO.
func (c *Connection) ServerInfo() *capability.ServerInfo { return c.info }

// IsEncrypted reports whether the underlying stream is TLS-protected.
func (c *Connection) IsEncrypted() bool { return c.stream.IsEncrypted() }

// TLSSummary renders the negotiated TLS version and cipher suite for logs,
// or "plaintext" if the connection never upgraded.
func (c *Connection) TLSSummary() string {
	cs, ok := c.stream.ConnectionState()
	if !ok {
		return "plaintext"
	}
	return tlsconst.VersionName(cs.Version) + " - " + tlsconst.CipherSuiteName(cs.CipherSuite)
}

func (c *Connection) writeAndFlush(p []byte) error {
	if err := c.stream.WriteAll(p); err != nil {
		return err
	}
	return c.stream.Flush()
}

func (c *Connection) markBroken(err error) error {
	c.state = stateBroken
	if err != nil {
		c.tr.Error(err)
	}
	return err
}

// classifyIOError wraps a stream-level error as a Network Error. Timeouts
// (net.Error with Timeout() true) and other I/O failures are surfaced the
// same way: the caller only needs to know the connection is no longer
// usable, not which flavor of I/O failure caused it.
func (c *Connection) classifyIOError(err error) error {
	return NetworkError(err)
}

func decodeChallenge(line string) ([]byte, error) {
	return base64.StdEncoding.DecodeString(strings.TrimSpace(line))
}

func stuffBody(body []byte) []byte {
	return codec.Stuff(body)
}

func containsHighBit(b []byte) bool {
	for _, c := range b {
		if c > 0x7f {
			return true
		}
	}
	return false
}

func (e Envelope) needsSMTPUTF8() bool {
	if e.ReversePath != nil && e.ReversePath.needsSMTPUTF8() {
		return true
	}
	for _, fp := range e.ForwardPaths {
		if fp.needsSMTPUTF8() {
			return true
		}
	}
	return false
}
