package smtpclient

import (
	"bufio"
	"crypto/tls"
	"net"
	"net/textproto"
	"sync"
	"testing"

	"github.com/mailcore/smtpclient/internal/testutil"
)

// fakeServer is a minimal scripted SMTP server for connection_test.go,
// adapted from the courier package's fake server: responses maps a command
// line (or the special keys "_welcome", "_STARTTLS", "_DATA") to the bytes
// written back.
type fakeServer struct {
	t         *testing.T
	responses map[string]string
	addr      string
	wg        sync.WaitGroup

	tlsConfig *tls.Config
	certDER   []byte
}

func newFakeServer(t *testing.T, responses map[string]string) *fakeServer {
	t.Helper()
	s := &fakeServer{t: t, responses: responses}

	cfg, der, err := testutil.SelfSignedCert()
	if err != nil {
		t.Fatalf("generating test cert: %v", err)
	}
	s.tlsConfig = cfg
	s.certDER = der

	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("fake server listen: %v", err)
	}
	s.addr = l.Addr().String()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer l.Close()

		c, err := l.Accept()
		if err != nil {
			return
		}
		defer c.Close()

		r := textproto.NewReader(bufio.NewReader(c))
		c.Write([]byte(s.responses["_welcome"]))

		for {
			line, err := r.ReadLine()
			if err != nil {
				return
			}
			t.Logf("fakeServer read: %q", line)

			if line == "STARTTLS" && s.responses["_STARTTLS"] == "ok" {
				c.Write([]byte(s.responses["STARTTLS"]))
				tlsSrv := tls.Server(c, s.tlsConfig)
				if err := tlsSrv.Handshake(); err != nil {
					t.Logf("starttls handshake error: %v", err)
					return
				}
				c = tlsSrv
				r = textproto.NewReader(bufio.NewReader(c))
				continue
			}

			c.Write([]byte(s.responses[line]))
			if line == "DATA" {
				if _, err := r.ReadDotBytes(); err != nil {
					return
				}
				c.Write([]byte(s.responses["_DATA"]))
			}
		}
	}()

	return s
}

func (s *fakeServer) wait() { s.wg.Wait() }
