package smtpclient

// Envelope is the RFC 5321 transaction envelope: the single reverse-path
// given to MAIL FROM, and one or more forward-paths given to RCPT TO. It is
// distinct from a message's header addresses (From/To/Cc/Bcc), which the
// message package derives an Envelope from when the caller does not supply
// one explicitly.
type Envelope struct {
	ReversePath  *Address // nil means the null reverse-path, "<>".
	ForwardPaths []Address
}

// NewEnvelope builds an Envelope, requiring at least one forward-path.
func NewEnvelope(reversePath *Address, forwardPaths ...Address) (Envelope, error) {
	if len(forwardPaths) == 0 {
		return Envelope{}, &ClientError{Reason: "envelope must have at least one forward-path"}
	}
	return Envelope{ReversePath: reversePath, ForwardPaths: forwardPaths}, nil
}

// NullReversePath builds an Envelope whose MAIL FROM uses the null
// reverse-path, as required for delivery status notifications and other
// auto-generated messages (RFC 5321 section 3.6).
func NullReversePath(forwardPaths ...Address) (Envelope, error) {
	return NewEnvelope(nil, forwardPaths...)
}
