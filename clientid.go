package smtpclient

import (
	"fmt"
	"net"
	"os"
	"strings"
)

// ClientId is the identifier sent as the argument to EHLO. It is a sum of
// the three forms RFC 5321 section 4.1.4 permits: a domain, a dotted-quad
// IPv4 address-literal, or a bracketed IPv6 address-literal.
type ClientId struct {
	domain string
	ip     net.IP
	isIPv6 bool
}

// DomainClientId builds a ClientId from a domain name (a dot-atom; not
// validated, since servers treat EHLO's argument as advisory).
func DomainClientId(domain string) ClientId {
	return ClientId{domain: domain}
}

// IPClientId builds a ClientId from an IP address, rendered bracketed on
// the wire ("[a.b.c.d]" or "[IPv6:...]").
func IPClientId(ip net.IP) ClientId {
	if ip4 := ip.To4(); ip4 != nil {
		return ClientId{ip: ip4}
	}
	return ClientId{ip: ip, isIPv6: true}
}

// String renders the EHLO argument form.
func (c ClientId) String() string {
	switch {
	case c.ip != nil && c.isIPv6:
		return "[IPv6:" + c.ip.String() + "]"
	case c.ip != nil:
		return "[" + c.ip.String() + "]"
	default:
		return c.domain
	}
}

// DefaultClientId determines a ClientId the way a caller who doesn't care
// to supply one would want: the local machine's hostname as os.Hostname
// reports it (not necessarily fully qualified),
// falling back to the IPv4 loopback literal "[127.0.0.1]" if the hostname
// cannot be determined or is empty. This mirrors the "hostname source"
// fallback described for the original implementation this core was
// distilled from; Go's std library has no direct equivalent of
// get_hostname() returning an Option, so os.Hostname's error is treated as
// that same "unknown" case.
func DefaultClientId() ClientId {
	name, err := os.Hostname()
	if err != nil || strings.TrimSpace(name) == "" {
		return IPClientId(net.IPv4(127, 0, 0, 1))
	}
	return DomainClientId(name)
}

// IsDomain reports whether this ClientId was built from a domain name
// rather than an IP address-literal.
func (c ClientId) IsDomain() bool { return c.ip == nil }

// GoString aids debugging/logging with %#v.
func (c ClientId) GoString() string {
	if c.ip == nil {
		return fmt.Sprintf("smtpclient.DomainClientId(%q)", c.domain)
	}
	return fmt.Sprintf("smtpclient.IPClientId(%s)", c.ip)
}
