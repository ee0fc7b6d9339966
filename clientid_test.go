package smtpclient

import (
	"net"
	"testing"
)

func TestDomainClientIdString(t *testing.T) {
	c := DomainClientId("mail.example.com")
	if c.String() != "mail.example.com" {
		t.Errorf("String() = %q", c.String())
	}
	if !c.IsDomain() {
		t.Error("expected IsDomain true")
	}
}

func TestIPClientIdV4Bracketed(t *testing.T) {
	c := IPClientId(net.ParseIP("127.0.0.1"))
	if c.String() != "[127.0.0.1]" {
		t.Errorf("String() = %q, want [127.0.0.1]", c.String())
	}
	if c.IsDomain() {
		t.Error("expected IsDomain false for an IP ClientId")
	}
}

func TestIPClientIdV6Bracketed(t *testing.T) {
	c := IPClientId(net.ParseIP("::1"))
	if c.String() != "[IPv6:::1]" {
		t.Errorf("String() = %q, want [IPv6:::1]", c.String())
	}
}
