package sasl

// plainEngine implements RFC 4616 PLAIN: a single initial response of the
// form "authzid\0authcid\0passwd" with an empty authzid, i.e.
// "\0authcid\0passwd", no further challenges.
type plainEngine struct {
	creds Credentials
}

// Plain returns a PLAIN mechanism engine.
func Plain() Engine {
	return &plainEngine{}
}

func (p *plainEngine) Name() string { return "PLAIN" }

func (p *plainEngine) Start(creds Credentials) ([]byte, bool) {
	p.creds = creds
	resp := append([]byte{0}, []byte(creds.Username)...)
	resp = append(resp, 0)
	resp = append(resp, []byte(creds.Password)...)
	return resp, true
}

func (p *plainEngine) Step(challenge []byte) ([]byte, bool, error) {
	// PLAIN's initial response is the whole exchange; any further
	// challenge is unexpected.
	return nil, true, nil
}

func (p *plainEngine) Secure() bool { return false }
