package reply

import (
	"bufio"
	"io"
)

// MaxLineLength bounds a single reply line (code + separator + text),
// excluding the CRLF terminator. It matches the "~1000 bytes plus CRLF"
// allowance commonly given to SMTP reply lines.
const MaxLineLength = 1000

// Parse reads one complete Reply from r: one or more CRLF-terminated lines
// sharing a reply code, with '-' as the fourth byte of every line but the
// last, which carries ' ' instead. Parse never reads past the final line.
func Parse(r *bufio.Reader) (Reply, error) {
	var code Code
	var lines []string
	haveCode := false

	for {
		content, err := readLine(r)
		if err != nil {
			return Reply{}, err
		}
		if len(content) > MaxLineLength {
			return Reply{}, &ParseError{Reason: "reply line too long"}
		}
		if len(content) < 3 {
			return Reply{}, &ParseError{Reason: "reply line shorter than a reply code"}
		}

		lineCode, err := parseCode([]byte(content[:3]))
		if err != nil {
			return Reply{}, err
		}

		var sep byte = ' '
		var text string
		if len(content) == 3 {
			// "NNN\r\n": treated as a final line with an empty text part.
			text = ""
		} else {
			sep = content[3]
			if sep != '-' && sep != ' ' {
				return Reply{}, &ParseError{Reason: "malformed separator after reply code"}
			}
			text = content[4:]
		}

		if !haveCode {
			code = lineCode
			haveCode = true
		} else if lineCode != code {
			return Reply{}, &ParseError{Reason: "continuation line carries a different reply code"}
		}

		lines = append(lines, text)

		if sep == ' ' {
			return Reply{Code: code, Lines: lines}, nil
		}
	}
}

// readLine reads one line from r, stripping a trailing CRLF (or bare LF).
func readLine(r *bufio.Reader) (string, error) {
	raw, err := r.ReadString('\n')
	if err != nil {
		if err == io.EOF && len(raw) > 0 {
			// Fall through: a partial final line without a terminator is
			// still a parse error, not a clean EOF.
			return "", &ParseError{Reason: "unterminated reply line"}
		}
		return "", err
	}
	raw = raw[:len(raw)-1] // drop '\n'
	if len(raw) > 0 && raw[len(raw)-1] == '\r' {
		raw = raw[:len(raw)-1]
	}
	return raw, nil
}
