package smtpclient

import (
	"fmt"
	"strings"
	"unicode"

	"golang.org/x/net/idna"
	"golang.org/x/text/secure/precis"
)

// maxAddressLength is RFC 5321's 254-octet limit on a full mailbox address.
const maxAddressLength = 254

// Address is a validated RFC 5321/5322 mailbox address, split into its
// local (user) and domain parts.
type Address struct {
	user   string
	domain string
	at     int // index of '@' in String(), cached for convenience
}

// NewAddress validates and builds an Address from its user and domain
// parts. The domain may be a Unicode (IDNA) domain; ASCIIDomain returns
// its ASCII-compatible form, while User, Domain and String return the
// values as given.
func NewAddress(user, domain string) (Address, error) {
	if user == "" {
		return Address{}, &ClientError{Reason: "address local part must not be empty"}
	}
	if domain == "" {
		return Address{}, &ClientError{Reason: "address domain must not be empty"}
	}
	if !validUser(user) {
		return Address{}, &ClientError{Reason: fmt.Sprintf("invalid address local part %q", user)}
	}
	if err := validDomain(domain); err != nil {
		return Address{}, err
	}
	a := Address{user: user, domain: domain, at: len(user)}
	if len(a.String()) > maxAddressLength {
		return Address{}, &ClientError{Reason: "address exceeds 254 octets"}
	}
	return a, nil
}

// ParseAddress splits "user@domain" (or a bracketed-IP-literal domain form)
// and validates both halves.
func ParseAddress(s string) (Address, error) {
	i := strings.LastIndexByte(s, '@')
	if i < 0 {
		return Address{}, &ClientError{Reason: fmt.Sprintf("address %q has no '@'", s)}
	}
	return NewAddress(s[:i], s[i+1:])
}

// User returns the local part of the address.
func (a Address) User() string { return a.user }

// Domain returns the domain part of the address, as given (not
// ASCII-mapped).
func (a Address) Domain() string { return a.domain }

// AtIndex returns the index of '@' in String()'s canonical rendering.
func (a Address) AtIndex() int { return a.at }

// String renders the canonical "user@domain" form.
func (a Address) String() string {
	return a.user + "@" + a.domain
}

// IsASCII reports whether both the user and domain parts are pure ASCII.
func (a Address) IsASCII() bool {
	return isASCII(a.user) && isASCII(a.domain)
}

// ASCIIDomain returns the IDNA ASCII-compatible encoding of the domain, for
// use on the wire when the peer does not support SMTPUTF8. It returns the
// domain unchanged if it is already ASCII or is a bracketed IP literal.
func (a Address) ASCIIDomain() (string, error) {
	if isASCII(a.domain) || isIPLiteral(a.domain) {
		return a.domain, nil
	}
	ascii, err := idna.ToASCII(a.domain)
	if err != nil {
		return "", &ClientError{Reason: fmt.Sprintf("domain %q is not IDNA-safe: %v", a.domain, err)}
	}
	return ascii, nil
}

// NormalizedUser returns the PRECIS-normalized form of the local part. On
// error it returns the original string unchanged, so callers can fall back
// to the stricter judgment without failing outright.
func (a Address) NormalizedUser() string {
	norm, err := precis.UsernameCaseMapped.String(a.user)
	if err != nil {
		return a.user
	}
	return norm
}

// needsSMTPUTF8 reports whether this address requires the SMTPUTF8
// extension to transmit on the wire: true if the domain is non-ASCII, or if
// the local part is still non-ASCII once PRECIS-normalized (mirroring
// normalize.Addr, which normalizes the user part before judging - a
// fullwidth or otherwise case/width-variant local part that PRECIS maps
// down to ASCII does not by itself force SMTPUTF8).
func (a Address) needsSMTPUTF8() bool {
	return !isASCII(a.domain) || !isASCII(a.NormalizedUser())
}

func isASCII(s string) bool {
	for _, r := range s {
		if r > unicode.MaxASCII {
			return false
		}
	}
	return true
}

func isIPLiteral(domain string) bool {
	return strings.HasPrefix(domain, "[") && strings.HasSuffix(domain, "]")
}

// validUser performs a pragmatic (not fully RFC 5322 grammar compliant)
// check that s is usable as an SMTP local part: either an RFC 5321 dot-atom
// of atext characters, or a quoted string. Full mailbox-header parsing is
// explicitly out of scope (spec.md section 1 Non-goals).
func validUser(s string) bool {
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		return true // quoted-string: accept verbatim, servers re-validate.
	}
	if strings.HasPrefix(s, ".") || strings.HasSuffix(s, ".") || strings.Contains(s, "..") {
		return false
	}
	for _, r := range s {
		if r > unicode.MaxASCII {
			continue // permitted for SMTPUTF8 mailboxes; policy is enforced elsewhere.
		}
		if !isAtext(byte(r)) && r != '.' {
			return false
		}
	}
	return true
}

func isAtext(b byte) bool {
	switch {
	case b >= 'a' && b <= 'z', b >= 'A' && b <= 'Z', b >= '0' && b <= '9':
		return true
	case strings.IndexByte("!#$%&'*+-/=?^_`{|}~", b) >= 0:
		return true
	}
	return false
}

func validDomain(domain string) error {
	if isIPLiteral(domain) {
		return nil // address-literal form, e.g. "[192.0.2.1]"; not re-validated here.
	}
	if strings.HasPrefix(domain, ".") || strings.HasSuffix(domain, ".") || strings.Contains(domain, "..") {
		return &ClientError{Reason: fmt.Sprintf("invalid domain %q", domain)}
	}
	for _, label := range strings.Split(domain, ".") {
		if label == "" {
			return &ClientError{Reason: fmt.Sprintf("invalid domain %q", domain)}
		}
	}
	return nil
}
