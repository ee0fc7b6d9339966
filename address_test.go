package smtpclient

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestNewAddressRoundTrip(t *testing.T) {
	a, err := NewAddress("alice", "example.com")
	if err != nil {
		t.Fatalf("NewAddress: %v", err)
	}
	if a.String() != "alice@example.com" {
		t.Errorf("String() = %q", a.String())
	}
	parsed, err := ParseAddress(a.String())
	if err != nil {
		t.Fatalf("ParseAddress: %v", err)
	}
	if parsed != a {
		t.Errorf("round trip mismatch: %+v != %+v", parsed, a)
	}
}

func TestNewAddressRejectsEmptyParts(t *testing.T) {
	if _, err := NewAddress("", "example.com"); err == nil {
		t.Error("expected error for empty local part")
	}
	if _, err := NewAddress("alice", ""); err == nil {
		t.Error("expected error for empty domain")
	}
}

func TestNewAddressMatchesParseAddress(t *testing.T) {
	want, err := NewAddress("alice", "example.com")
	if err != nil {
		t.Fatalf("NewAddress: %v", err)
	}
	got, err := ParseAddress("alice@example.com")
	if err != nil {
		t.Fatalf("ParseAddress: %v", err)
	}
	if diff := cmp.Diff(want, got, cmp.AllowUnexported(Address{})); diff != "" {
		t.Errorf("ParseAddress() mismatch (-want +got):\n%s", diff)
	}
}

func TestParseAddressRequiresAt(t *testing.T) {
	if _, err := ParseAddress("no-at-sign"); err == nil {
		t.Error("expected error for address with no '@'")
	}
}

func TestAddressTooLongRejected(t *testing.T) {
	longUser := make([]byte, 250)
	for i := range longUser {
		longUser[i] = 'a'
	}
	if _, err := NewAddress(string(longUser), "example.com"); err == nil {
		t.Error("expected error for address exceeding 254 octets")
	}
}

func TestASCIIDomainIDNAMapsUnicode(t *testing.T) {
	a, err := NewAddress("user", "münchen.example")
	if err != nil {
		t.Fatalf("NewAddress: %v", err)
	}
	ascii, err := a.ASCIIDomain()
	if err != nil {
		t.Fatalf("ASCIIDomain: %v", err)
	}
	if ascii == "münchen.example" {
		t.Error("expected IDNA-mapped ASCII form, got original Unicode")
	}
}

func TestASCIIDomainPassesThroughIPLiteral(t *testing.T) {
	a, err := NewAddress("user", "[192.0.2.1]")
	if err != nil {
		t.Fatalf("NewAddress: %v", err)
	}
	ascii, err := a.ASCIIDomain()
	if err != nil {
		t.Fatalf("ASCIIDomain: %v", err)
	}
	if ascii != "[192.0.2.1]" {
		t.Errorf("got %q, want IP literal unchanged", ascii)
	}
}

func TestIsASCII(t *testing.T) {
	ascii, _ := NewAddress("alice", "example.com")
	if !ascii.IsASCII() {
		t.Error("expected ASCII address to report IsASCII true")
	}
	nonASCII, err := NewAddress("héllo", "example.com")
	if err != nil {
		t.Fatalf("NewAddress: %v", err)
	}
	if nonASCII.IsASCII() {
		t.Error("expected non-ASCII local part to report IsASCII false")
	}
}

func TestNeedsSMTPUTF8(t *testing.T) {
	ascii, _ := NewAddress("alice", "example.com")
	if ascii.needsSMTPUTF8() {
		t.Error("expected an all-ASCII address not to need SMTPUTF8")
	}

	nonASCIIUser, err := NewAddress("héllo", "example.com")
	if err != nil {
		t.Fatalf("NewAddress: %v", err)
	}
	if !nonASCIIUser.needsSMTPUTF8() {
		t.Error("expected a non-ASCII local part to need SMTPUTF8")
	}

	nonASCIIDomain, err := NewAddress("alice", "münchen.example")
	if err != nil {
		t.Fatalf("NewAddress: %v", err)
	}
	if !nonASCIIDomain.needsSMTPUTF8() {
		t.Error("expected a non-ASCII domain to need SMTPUTF8")
	}
}

func TestNormalizedUserLeavesLowercaseASCIIUnchanged(t *testing.T) {
	a, err := NewAddress("alice", "example.com")
	if err != nil {
		t.Fatalf("NewAddress: %v", err)
	}
	if a.NormalizedUser() != "alice" {
		t.Errorf("NormalizedUser() = %q, want unchanged ASCII local part", a.NormalizedUser())
	}
}

func TestAtIndexMatchesCanonicalString(t *testing.T) {
	a, err := NewAddress("alice", "example.com")
	if err != nil {
		t.Fatalf("NewAddress: %v", err)
	}
	s := a.String()
	if s[a.AtIndex()] != '@' {
		t.Errorf("AtIndex() = %d, s[%d] = %q, want '@'", a.AtIndex(), a.AtIndex(), s[a.AtIndex()])
	}
}
