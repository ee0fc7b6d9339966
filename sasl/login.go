package sasl

import "strings"

// loginEngine implements the (non-standard, but universal) LOGIN
// mechanism: no initial response, then a "Username:" challenge followed by
// a "Password:" challenge.
type loginEngine struct {
	creds Credentials
	step  int
}

// Login returns a LOGIN mechanism engine.
func Login() Engine {
	return &loginEngine{}
}

func (l *loginEngine) Name() string { return "LOGIN" }

func (l *loginEngine) Start(creds Credentials) ([]byte, bool) {
	l.creds = creds
	l.step = 0
	return nil, false
}

func (l *loginEngine) Step(challenge []byte) ([]byte, bool, error) {
	prompt := strings.ToLower(strings.TrimSpace(string(challenge)))
	defer func() { l.step++ }()

	switch l.step {
	case 0:
		// Conventionally "Username:", but some servers send nothing
		// meaningful here; we respond with the username regardless.
		_ = prompt
		return []byte(l.creds.Username), false, nil
	case 1:
		return []byte(l.creds.Password), true, nil
	default:
		return nil, true, nil
	}
}

func (l *loginEngine) Secure() bool { return false }
