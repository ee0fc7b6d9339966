// smtpsend is a command-line tool for sending a single message through an
// ESMTP submission server, built on top of the smtpclient library.

//go:build !coverage
// +build !coverage

package main

import (
	"crypto/tls"
	"fmt"
	"net"
	"os"
	"strings"
	"time"

	"github.com/docopt/docopt-go"

	"github.com/mailcore/smtpclient"
	"github.com/mailcore/smtpclient/message"
	"github.com/mailcore/smtpclient/sasl"
	"github.com/mailcore/smtpclient/transport"
)

const usage = `smtpsend: send a message through an ESMTP submission server.

Usage:
  smtpsend [options] --from=<addr> --to=<addr>... --subject=<s> <host>
  smtpsend -h | --help

Options:
  --from=<addr>         Envelope and header From address.
  --to=<addr>           Recipient address. May be given more than once.
  --subject=<s>         Subject header.
  --port=<port>         Port to connect to [default: 587].
  --security=<policy>   One of plain, opportunistic, required, wrapper [default: opportunistic].
  --user=<user>         SASL username, enabling AUTH if set.
  --password=<pass>     SASL password.
  --insecure-skip-verify  Skip TLS certificate verification.
  -h, --help            Show this help.
`

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "smtpsend:", err)
		os.Exit(1)
	}
}

func run(argv []string) error {
	opts, err := docopt.ParseArgs(usage, argv, "")
	if err != nil {
		return err
	}

	host, _ := opts.String("<host>")
	port, _ := opts.String("--port")
	from, _ := opts.String("--from")
	subject, _ := opts.String("--subject")
	security, _ := opts.String("--security")

	toRaw := opts["--to"].([]string)
	if len(toRaw) == 0 {
		return fmt.Errorf("at least one --to recipient is required")
	}

	fromAddr, err := smtpclient.ParseAddress(from)
	if err != nil {
		return fmt.Errorf("--from: %w", err)
	}

	toMailboxes := make([]message.Mailbox, 0, len(toRaw))
	for _, raw := range toRaw {
		addr, err := smtpclient.ParseAddress(raw)
		if err != nil {
			return fmt.Errorf("--to %q: %w", raw, err)
		}
		toMailboxes = append(toMailboxes, message.Mailbox{Addr: addr})
	}

	sec, err := parseSecurity(security)
	if err != nil {
		return err
	}

	skipVerify, _ := opts.Bool("--insecure-skip-verify")

	body, err := readStdin()
	if err != nil {
		return err
	}

	msg, err := message.NewBuilder().
		From(message.Mailbox{Addr: fromAddr}).
		To(toMailboxes...).
		Subject(subject).
		Body(message.NewPart("text/plain; charset=utf-8", body, true)).
		Build()
	if err != nil {
		return fmt.Errorf("building message: %w", err)
	}

	formatted, err := msg.Formatted()
	if err != nil {
		return fmt.Errorf("formatting message: %w", err)
	}

	connOpts := smtpclient.ConnectOptions{
		HelloName: smtpclient.DefaultClientId(),
		Security:  sec,
		TLSParams: transport.TLSParams{
			ServerName:         host,
			AcceptInvalidCerts: skipVerify,
			MinVersion:         tls.VersionTLS12,
		},
		Timeout: 30 * time.Second,
	}

	if user, err := opts.String("--user"); err == nil && user != "" {
		pass, _ := opts.String("--password")
		connOpts.Auth = &smtpclient.AuthPolicy{
			Credentials: sasl.Credentials{Username: user, Password: pass},
			Mechanisms:  []sasl.Engine{sasl.Plain(), sasl.Login()},
		}
	}

	addr := net.JoinHostPort(host, port)
	conn, err := smtpclient.Connect("tcp", addr, connOpts)
	if err != nil {
		return fmt.Errorf("connecting to %s: %w", addr, err)
	}
	defer conn.Quit()

	if _, err := conn.Send(msg.Envelope(), formatted); err != nil {
		return fmt.Errorf("sending: %w", err)
	}

	fmt.Printf("sent %d bytes to %d recipient(s) via %s (%s)\n",
		len(formatted), len(msg.Envelope().ForwardPaths), addr, conn.TLSSummary())
	return nil
}

func parseSecurity(s string) (smtpclient.SecurityPolicy, error) {
	switch strings.ToLower(s) {
	case "plain":
		return smtpclient.Plain, nil
	case "opportunistic":
		return smtpclient.Opportunistic, nil
	case "required":
		return smtpclient.Required, nil
	case "wrapper":
		return smtpclient.Wrapper, nil
	default:
		return 0, fmt.Errorf("--security: unknown policy %q", s)
	}
}

func readStdin() ([]byte, error) {
	fi, err := os.Stdin.Stat()
	if err != nil {
		return nil, err
	}
	if fi.Mode()&os.ModeCharDevice != 0 {
		return []byte("(no body given on stdin)\r\n"), nil
	}
	buf := make([]byte, 0, 4096)
	chunk := make([]byte, 4096)
	for {
		n, err := os.Stdin.Read(chunk)
		buf = append(buf, chunk[:n]...)
		if err != nil {
			break
		}
	}
	return buf, nil
}
