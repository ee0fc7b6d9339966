package tlsconst

import "testing"

func TestVersionName(t *testing.T) {
	cases := []struct {
		ver      uint16
		expected string
	}{
		{0x0302, "TLS-1.1"},
		{0x0304, "TLS-1.3"},
		{0x1234, "TLS-0x1234"},
	}
	for _, c := range cases {
		got := VersionName(c.ver)
		if got != c.expected {
			t.Errorf("VersionName(%x) = %q, expected %q",
				c.ver, got, c.expected)
		}
	}
}

func TestCipherSuiteNameKnown(t *testing.T) {
	got := CipherSuiteName(0x1301) // TLS_AES_128_GCM_SHA256
	if got != "TLS_AES_128_GCM_SHA256" {
		t.Errorf("CipherSuiteName(0x1301) = %q", got)
	}
}

func TestCipherSuiteNameUnknown(t *testing.T) {
	got := CipherSuiteName(0xABCD)
	if got == "" {
		t.Error("expected a non-empty fallback name for an unknown suite")
	}
}
