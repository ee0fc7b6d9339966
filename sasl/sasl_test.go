package sasl

import (
	"encoding/base64"
	"testing"
)

func TestPlainInitialResponse(t *testing.T) {
	// Scenario C from spec.md.
	p := Plain()
	resp, has := p.Start(Credentials{Username: "alice", Password: "s3cr3t"})
	if !has {
		t.Fatal("PLAIN must send an initial response")
	}
	got := base64.StdEncoding.EncodeToString(resp)
	want := "AGFsaWNlAHMzY3IzdA=="
	if got != want {
		t.Errorf("initial response = %q, want %q", got, want)
	}
	if p.Secure() {
		t.Error("PLAIN must not be considered secure over plaintext")
	}
}

func TestLoginChallengeResponse(t *testing.T) {
	l := Login()
	_, has := l.Start(Credentials{Username: "alice", Password: "s3cr3t"})
	if has {
		t.Fatal("LOGIN must not send an initial response")
	}
	user, done, err := l.Step([]byte("Username:"))
	if err != nil || done {
		t.Fatalf("Step(Username): user=%q done=%v err=%v", user, done, err)
	}
	if string(user) != "alice" {
		t.Errorf("username step = %q, want alice", user)
	}
	pass, done, err := l.Step([]byte("Password:"))
	if err != nil || !done {
		t.Fatalf("Step(Password): pass=%q done=%v err=%v", pass, done, err)
	}
	if string(pass) != "s3cr3t" {
		t.Errorf("password step = %q, want s3cr3t", pass)
	}
}

func TestXOAuth2IsSecure(t *testing.T) {
	x := XOAuth2()
	if !x.Secure() {
		t.Error("XOAUTH2 should be considered secure (bearer token, not a reusable password)")
	}
	resp, has := x.Start(Credentials{Username: "alice@example.com", Token: "ya29.abc"})
	if !has {
		t.Fatal("XOAUTH2 must send an initial response")
	}
	want := "user=alice@example.com\x01auth=Bearer ya29.abc\x01\x01"
	if string(resp) != want {
		t.Errorf("initial response = %q, want %q", resp, want)
	}
}

func TestMechanismNames(t *testing.T) {
	cases := []struct {
		e    Engine
		name string
	}{
		{Plain(), "PLAIN"},
		{Login(), "LOGIN"},
		{XOAuth2(), "XOAUTH2"},
	}
	for _, c := range cases {
		if c.e.Name() != c.name {
			t.Errorf("Name() = %q, want %q", c.e.Name(), c.name)
		}
	}
}
