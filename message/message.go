package message

import (
	"bytes"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/mailcore/smtpclient"
)

// Mailbox is a display-name-qualified address, as it appears in a header
// like "From" or "To".
type Mailbox struct {
	Name string
	Addr smtpclient.Address
}

// String renders "Name <user@domain>", or just "user@domain" if Name is
// empty.
func (m Mailbox) String() string {
	if m.Name == "" {
		return m.Addr.String()
	}
	return fmt.Sprintf("%s <%s>", m.Name, m.Addr.String())
}

func joinMailboxes(mbs []Mailbox) string {
	parts := make([]string, len(mbs))
	for i, m := range mbs {
		parts[i] = m.String()
	}
	return strings.Join(parts, ", ")
}

// Builder assembles a Message through chained setters, mirroring the
// spec's Message::builder() surface.
type Builder struct {
	from    []Mailbox
	sender  *Mailbox
	to      []Mailbox
	cc      []Mailbox
	bcc     []Mailbox
	subject string
	extra   []Header
	date    *time.Time

	envOverride *smtpclient.Envelope
	body        *Part
}

// NewBuilder starts an empty message Builder.
func NewBuilder() *Builder { return &Builder{} }

func (b *Builder) From(mbs ...Mailbox) *Builder {
	b.from = append(b.from, mbs...)
	return b
}

func (b *Builder) Sender(mb Mailbox) *Builder {
	b.sender = &mb
	return b
}

func (b *Builder) To(mbs ...Mailbox) *Builder {
	b.to = append(b.to, mbs...)
	return b
}

func (b *Builder) Cc(mbs ...Mailbox) *Builder {
	b.cc = append(b.cc, mbs...)
	return b
}

func (b *Builder) Bcc(mbs ...Mailbox) *Builder {
	b.bcc = append(b.bcc, mbs...)
	return b
}

func (b *Builder) Subject(s string) *Builder {
	b.subject = s
	return b
}

func (b *Builder) Date(t time.Time) *Builder {
	b.date = &t
	return b
}

func (b *Builder) Header(name, value string) *Builder {
	b.extra = append(b.extra, Header{name, value})
	return b
}

func (b *Builder) Body(p *Part) *Builder {
	b.body = p
	return b
}

// Envelope overrides envelope derivation with an explicit value.
func (b *Builder) Envelope(env smtpclient.Envelope) *Builder {
	b.envOverride = &env
	return b
}

// BuildError is returned by Build when the assembled message violates one
// of the required-headers or envelope invariants.
type BuildError struct {
	Reason string
}

func (e *BuildError) Error() string { return "message: " + e.Reason }

// Message is a fully-assembled RFC 5322 message plus the envelope derived
// (or supplied) for it.
type Message struct {
	headers  []Header
	body     *Part
	envelope smtpclient.Envelope
}

// Envelope returns the envelope this message will be transmitted with.
func (m *Message) Envelope() smtpclient.Envelope { return m.envelope }

// Build validates and assembles the Message.
func (b *Builder) Build() (*Message, error) {
	if len(b.from) == 0 {
		return nil, &BuildError{Reason: "message must have at least one From mailbox"}
	}
	if len(b.from) > 1 && b.sender == nil {
		return nil, &BuildError{Reason: "more than one From mailbox requires an explicit Sender"}
	}
	if b.body == nil {
		return nil, &BuildError{Reason: "message must have a body part"}
	}
	// Rendering validates every leaf's CTE override against its body.
	if err := b.body.render(&bytes.Buffer{}); err != nil {
		return nil, err
	}

	env, err := b.resolveEnvelope()
	if err != nil {
		return nil, err
	}

	headers := make([]Header, 0, len(b.extra)+8)
	headers = append(headers, Header{"From", joinMailboxes(b.from)})
	if b.sender != nil {
		headers = append(headers, Header{"Sender", b.sender.String()})
	}
	if len(b.to) > 0 {
		headers = append(headers, Header{"To", joinMailboxes(b.to)})
	}
	if len(b.cc) > 0 {
		headers = append(headers, Header{"Cc", joinMailboxes(b.cc)})
	}
	// Bcc is present in the envelope (via resolveEnvelope) but never
	// written to the transmitted headers.
	if b.subject != "" {
		headers = append(headers, Header{"Subject", b.subject})
	}
	headers = append(headers, b.extra...)

	date := time.Now()
	if b.date != nil {
		date = *b.date
	}
	if !hasHeader(headers, "Date") {
		headers = append(headers, Header{"Date", date.Format(time.RFC1123Z)})
	}
	if !hasHeader(headers, "Message-ID") {
		headers = append(headers, Header{"Message-ID", newMessageID()})
	}

	return &Message{headers: headers, body: b.body, envelope: env}, nil
}

func hasHeader(headers []Header, name string) bool {
	for _, h := range headers {
		if strings.EqualFold(h.Name, name) {
			return true
		}
	}
	return false
}

// resolveEnvelope derives the envelope from From/Sender/To/Cc/Bcc when the
// caller did not supply one explicitly, per the spec's envelope derivation
// rule: reverse path is Sender if present, else the unique From mailbox;
// forward paths are the union of To, Cc, Bcc addresses in that order.
func (b *Builder) resolveEnvelope() (smtpclient.Envelope, error) {
	if b.envOverride != nil {
		return *b.envOverride, nil
	}

	var reverse *smtpclient.Address
	switch {
	case b.sender != nil:
		a := b.sender.Addr
		reverse = &a
	case len(b.from) == 1:
		a := b.from[0].Addr
		reverse = &a
	default:
		return smtpclient.Envelope{}, &BuildError{Reason: "cannot derive envelope reverse-path: no Sender and From has more than one mailbox"}
	}

	var forward []smtpclient.Address
	for _, mb := range b.to {
		forward = append(forward, mb.Addr)
	}
	for _, mb := range b.cc {
		forward = append(forward, mb.Addr)
	}
	for _, mb := range b.bcc {
		forward = append(forward, mb.Addr)
	}
	if len(forward) == 0 {
		return smtpclient.Envelope{}, &BuildError{Reason: "cannot derive envelope: To/Cc/Bcc have no addresses"}
	}

	return smtpclient.NewEnvelope(reverse, forward...)
}

// Formatted renders the complete on-wire message: RFC 5322 headers
// terminated by an empty line, then the body. The body part's own headers
// (Content-Type, Content-Transfer-Encoding) belong to that same header
// block; the part's render writes them and the terminating empty line.
func (m *Message) Formatted() ([]byte, error) {
	var buf bytes.Buffer
	for _, h := range m.headers {
		buf.WriteString(foldHeader(h.Name, encodeHeaderValue(h.Value)))
		buf.WriteString("\r\n")
	}
	if err := m.body.render(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func newMessageID() string {
	raw := make([]byte, 16)
	if _, err := rand.Read(raw); err != nil {
		// crypto/rand on a supported platform does not fail; this is an
		// unreachable fallback kept so newMessageID has no error return.
		return "<unavailable@localhost>"
	}
	host, err := os.Hostname()
	if err != nil || strings.TrimSpace(host) == "" {
		host = "localhost"
	}
	return fmt.Sprintf("<%s@%s>", hex.EncodeToString(raw), host)
}
