// Package testutil provides test-only helpers shared across this module's
// test suites, adapted from chasquid's internal/testlib.
package testutil

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"math/big"
	"net"
	"time"
)

// SelfSignedCert generates an insecure, in-memory self-signed certificate
// for "localhost"/127.0.0.1, for use by tests that need a TLS server. It
// returns the server-side tls.Config and the DER-encoded certificate so
// callers can build a matching client-side trust root.
func SelfSignedCert() (serverConfig *tls.Config, certDER []byte, err error) {
	tmpl := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{Organization: []string{"smtpclient_test"}},

		DNSNames:    []string{"localhost"},
		IPAddresses: []net.IP{net.ParseIP("127.0.0.1")},

		NotBefore: time.Now().Add(-time.Minute),
		NotAfter:  time.Now().Add(30 * time.Minute),

		KeyUsage: x509.KeyUsageKeyEncipherment |
			x509.KeyUsageDigitalSignature |
			x509.KeyUsageCertSign,
		BasicConstraintsValid: true,
		IsCA:                  true,
	}

	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		return nil, nil, err
	}

	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &priv.PublicKey, priv)
	if err != nil {
		return nil, nil, err
	}

	cert := tls.Certificate{
		Certificate: [][]byte{der},
		PrivateKey:  priv,
	}

	return &tls.Config{Certificates: []tls.Certificate{cert}}, der, nil
}

// TrustPool returns an x509.CertPool containing only certDER, for a
// client-side tls.Config.RootCAs that trusts exactly the test certificate.
func TrustPool(certDER []byte) (*x509.CertPool, error) {
	cert, err := x509.ParseCertificate(certDER)
	if err != nil {
		return nil, err
	}
	pool := x509.NewCertPool()
	pool.AddCert(cert)
	return pool, nil
}
