package message

import (
	"bytes"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"mime/quotedprintable"
	"strings"
)

// CTE is a Content-Transfer-Encoding choice.
type CTE int

const (
	// CTESevenBit is plain ASCII text, no encoding needed.
	CTESevenBit CTE = iota
	// CTEQuotedPrintable is used for mostly-textual content with some
	// non-ASCII bytes or overlong lines.
	CTEQuotedPrintable
	// CTEBase64 is used for binary content.
	CTEBase64
)

func (c CTE) String() string {
	switch c {
	case CTESevenBit:
		return "7bit"
	case CTEQuotedPrintable:
		return "quoted-printable"
	case CTEBase64:
		return "base64"
	default:
		return "7bit"
	}
}

// selectCTE picks the narrowest safe Content-Transfer-Encoding for body, as
// an 7bit-capable/textual/binary decision. textual is a hint from the
// caller's declared content type (e.g. "text/plain"). 7-bit clean content
// gets 7bit whatever the hint; otherwise textual content gets
// quoted-printable and non-textual content gets base64.
func selectCTE(body []byte, textual bool) CTE {
	if isSevenBitClean(body) {
		return CTESevenBit
	}
	if textual {
		return CTEQuotedPrintable
	}
	return CTEBase64
}

func isSevenBitClean(body []byte) bool {
	lineLen := 0
	for _, b := range body {
		if b == '\n' {
			lineLen = 0
			continue
		}
		lineLen++
		if b > 0x7f || lineLen > 998 {
			return false
		}
	}
	return true
}

// encodeBody renders body using the given CTE.
func encodeBody(body []byte, cte CTE) []byte {
	switch cte {
	case CTESevenBit:
		return body
	case CTEQuotedPrintable:
		var buf bytes.Buffer
		w := quotedprintable.NewWriter(&buf)
		w.Write(body)
		w.Close()
		return normalizeToCRLF(buf.Bytes())
	case CTEBase64:
		enc := base64.StdEncoding.EncodeToString(body)
		return wrapBase64(enc)
	default:
		return body
	}
}

// wrapBase64 folds a base64 payload at 76 characters per line, per RFC
// 2045 section 6.8.
func wrapBase64(enc string) []byte {
	var buf bytes.Buffer
	for i := 0; i < len(enc); i += 76 {
		end := i + 76
		if end > len(enc) {
			end = len(enc)
		}
		buf.WriteString(enc[i:end])
		buf.WriteString("\r\n")
	}
	return buf.Bytes()
}

func normalizeToCRLF(b []byte) []byte {
	s := strings.ReplaceAll(string(b), "\r\n", "\n")
	s = strings.ReplaceAll(s, "\n", "\r\n")
	return []byte(s)
}

// validateOverride checks a caller-chosen CTE override against the actual
// body bytes, rejecting combinations that would corrupt the content (e.g.
// 7bit declared over bytes that are not 7-bit clean).
func validateOverride(body []byte, cte CTE) error {
	if cte == CTESevenBit && !isSevenBitClean(body) {
		return fmt.Errorf("message: 7bit Content-Transfer-Encoding is inconsistent with non-ASCII or overlong-line content")
	}
	return nil
}

// minBoundaryLength is the spec's floor on multipart boundary length.
const minBoundaryLength = 40

const boundaryAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

// newBoundary generates a random alphanumeric multipart boundary of at
// least minBoundaryLength characters.
func newBoundary() (string, error) {
	raw := make([]byte, minBoundaryLength)
	if _, err := rand.Read(raw); err != nil {
		return "", err
	}
	out := make([]byte, minBoundaryLength)
	for i, b := range raw {
		out[i] = boundaryAlphabet[int(b)%len(boundaryAlphabet)]
	}
	return string(out), nil
}

// boundaryCollides reports whether "--" followed by boundary occurs
// anywhere within body, whether or not it stands on a line of its own; this
// covers every case in which the boundary could appear as a line.
func boundaryCollides(body []byte, boundary string) bool {
	marker := []byte("--" + boundary)
	return bytes.Contains(body, marker)
}
