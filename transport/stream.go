// Package transport owns the single TCP (optionally TLS-upgraded) byte
// stream a Connection speaks over: the only point in this module where I/O
// blocks.
package transport

import (
	"bufio"
	"crypto/tls"
	"crypto/x509"
	"net"
	"time"

	"github.com/mailcore/smtpclient/reply"
)

// maxReplyLineBuffer is large enough for the longest conforming reply line
// (reply.MaxLineLength) plus its CRLF, with headroom.
const maxReplyLineBuffer = reply.MaxLineLength + 64

// TLSParams configures a STARTTLS or Wrapper-mode handshake. It is the
// "opaque TLS upgrader" input the spec describes: this module never picks a
// TLS backend, it only drives crypto/tls with caller-supplied parameters.
type TLSParams struct {
	ServerName             string
	RootCAs                *x509.CertPool
	MinVersion             uint16
	AcceptInvalidCerts     bool
	AcceptInvalidHostnames bool
	ClientIdentity         *tls.Certificate
}

func (p TLSParams) config() *tls.Config {
	cfg := &tls.Config{
		ServerName:         p.ServerName,
		RootCAs:            p.RootCAs,
		MinVersion:         p.MinVersion,
		InsecureSkipVerify: p.AcceptInvalidCerts || p.AcceptInvalidHostnames,
	}
	if p.ClientIdentity != nil {
		cfg.Certificates = []tls.Certificate{*p.ClientIdentity}
	}
	return cfg
}

// Stream is the framed, line-buffered byte stream a Connection drives.
type Stream struct {
	conn net.Conn
	r    *bufio.Reader
	w    *bufio.Writer

	encrypted bool
}

// Dial opens a plain TCP connection to addr. Wrapper-mode TLS (implicit
// TLS from connect) is applied by calling UpgradeTLS immediately after.
func Dial(network, addr string, timeout time.Duration) (*Stream, error) {
	return DialFrom(network, addr, "", timeout)
}

// DialFrom is like Dial but binds the local end of the connection to
// localAddr first, for callers that need a specific outbound interface or
// source address. An empty localAddr behaves exactly like Dial.
func DialFrom(network, addr, localAddr string, timeout time.Duration) (*Stream, error) {
	d := net.Dialer{Timeout: timeout}
	if localAddr != "" {
		local, err := net.ResolveTCPAddr(network, localAddr)
		if err != nil {
			return nil, err
		}
		d.LocalAddr = local
	}
	conn, err := d.Dial(network, addr)
	if err != nil {
		return nil, err
	}
	return New(conn), nil
}

// New wraps an already-established net.Conn (for callers that need a
// custom dialer, e.g. a caller-chosen local bind address).
func New(conn net.Conn) *Stream {
	return &Stream{
		conn: conn,
		r:    bufio.NewReaderSize(conn, maxReplyLineBuffer),
		w:    bufio.NewWriter(conn),
	}
}

// WriteAll writes p in full to the buffered writer. Flush must be called
// for the server to observe it; ReadReply does not flush.
func (s *Stream) WriteAll(p []byte) error {
	_, err := s.w.Write(p)
	return err
}

// Flush pushes any buffered bytes out to the wire.
func (s *Stream) Flush() error {
	return s.w.Flush()
}

// ReadReply reads one complete multi-line SMTP reply.
func (s *Stream) ReadReply() (reply.Reply, error) {
	return reply.Parse(s.r)
}

// SetReadTimeout sets the deadline for the next read operations.
func (s *Stream) SetReadTimeout(d time.Duration) error {
	if d <= 0 {
		return s.conn.SetReadDeadline(time.Time{})
	}
	return s.conn.SetReadDeadline(time.Now().Add(d))
}

// SetWriteTimeout sets the deadline for the next write operations.
func (s *Stream) SetWriteTimeout(d time.Duration) error {
	if d <= 0 {
		return s.conn.SetWriteDeadline(time.Time{})
	}
	return s.conn.SetWriteDeadline(time.Now().Add(d))
}

// UpgradeTLS consumes the current plaintext stream and replaces it with a
// TLS-encrypted one. The caller must ensure the stream is in a clean state
// (the STARTTLS reply fully consumed, no buffered plaintext past the last
// CRLF) before calling this.
func (s *Stream) UpgradeTLS(params TLSParams) error {
	if s.r.Buffered() > 0 {
		return errBufferedPlaintext
	}
	tlsConn := tls.Client(s.conn, params.config())
	if err := tlsConn.Handshake(); err != nil {
		return err
	}
	s.conn = tlsConn
	s.r = bufio.NewReaderSize(tlsConn, maxReplyLineBuffer)
	s.w = bufio.NewWriter(tlsConn)
	s.encrypted = true
	return nil
}

// IsEncrypted reports whether the stream has been TLS-upgraded.
func (s *Stream) IsEncrypted() bool {
	return s.encrypted
}

// PeerCertificate returns the raw DER bytes of the server's leaf
// certificate, or nil if the stream is not encrypted or presented no
// certificate.
func (s *Stream) PeerCertificate() []byte {
	if !s.encrypted {
		return nil
	}
	tlsConn, ok := s.conn.(*tls.Conn)
	if !ok {
		return nil
	}
	state := tlsConn.ConnectionState()
	if len(state.PeerCertificates) == 0 {
		return nil
	}
	return state.PeerCertificates[0].Raw
}

// ConnectionState exposes the full TLS connection state for callers (e.g.
// a security-level classifier) that need more than the leaf certificate.
func (s *Stream) ConnectionState() (tls.ConnectionState, bool) {
	tlsConn, ok := s.conn.(*tls.Conn)
	if !ok {
		return tls.ConnectionState{}, false
	}
	return tlsConn.ConnectionState(), true
}

// RemoteAddr returns the underlying connection's remote address.
func (s *Stream) RemoteAddr() net.Addr {
	return s.conn.RemoteAddr()
}

// Shutdown closes the underlying connection.
func (s *Stream) Shutdown() error {
	return s.conn.Close()
}

type bufferedPlaintextError struct{}

func (bufferedPlaintextError) Error() string {
	return "transport: cannot upgrade to TLS with buffered plaintext bytes remaining"
}

var errBufferedPlaintext = bufferedPlaintextError{}
