// Package message builds the RFC 5322 header block and MIME body bytes a
// Connection transmits: header folding and RFC 2047 encoded-words,
// Content-Transfer-Encoding selection, multipart boundary generation, and
// envelope derivation from From/Sender/To/Cc/Bcc.
package message

import (
	"encoding/base64"
	"strings"
	"unicode"
)

// foldWidth is the soft line-length target for folded header lines (RFC
// 5322 recommends 78; 998 is the hard limit nothing may exceed).
const foldWidth = 78
const hardLimit = 998

// encodeHeaderValue renders a header value for the wire: pure-ASCII,
// control-character-free values pass through unchanged; anything else is
// encoded as one or more `=?utf-8?B?<base64>?=` encoded-words, one per
// "word" of input (whitespace-delimited run of non-ASCII/control bytes
// together with adjoining ASCII, matching how mail clients emit these).
func encodeHeaderValue(v string) string {
	if isPlainASCIIHeaderValue(v) {
		return v
	}
	var out []string
	for _, word := range splitHeaderWords(v) {
		if isPlainASCIIHeaderValue(word) {
			out = append(out, word)
			continue
		}
		out = append(out, encodeWord(word))
	}
	return strings.Join(out, " ")
}

func isPlainASCIIHeaderValue(v string) bool {
	for _, r := range v {
		if r > unicode.MaxASCII || (r < 0x20 && r != '\t') {
			return false
		}
	}
	return true
}

func splitHeaderWords(v string) []string {
	return strings.Fields(v)
}

// encodeWord renders one RFC 2047 encoded-word, splitting the base64
// payload on a UTF-8 boundary if a single word's encoded form would
// overflow foldWidth.
func encodeWord(word string) string {
	const prefix = "=?utf-8?B?"
	const suffix = "?="
	overhead := len(prefix) + len(suffix)

	if overhead+base64Len(len(word)) <= foldWidth {
		return prefix + base64.StdEncoding.EncodeToString([]byte(word)) + suffix
	}

	// Split on a rune boundary so each chunk is valid UTF-8 on its own,
	// then encode each chunk as its own encoded-word.
	var words []string
	runes := []rune(word)
	chunkRunes := runesPerChunk(overhead)
	for i := 0; i < len(runes); i += chunkRunes {
		end := i + chunkRunes
		if end > len(runes) {
			end = len(runes)
		}
		chunk := string(runes[i:end])
		words = append(words, prefix+base64.StdEncoding.EncodeToString([]byte(chunk))+suffix)
	}
	return strings.Join(words, " ")
}

func base64Len(n int) int {
	return ((n + 2) / 3) * 4
}

// runesPerChunk estimates how many runes (worst case 4 bytes of UTF-8
// each) fit in an encoded-word once overhead is subtracted, with a floor
// of 1 so progress is always made.
func runesPerChunk(overhead int) int {
	budget := foldWidth - overhead
	if budget < 4 {
		return 1
	}
	// base64Len(n*4) <= budget  =>  solve for n conservatively.
	for n := budget / 4; n >= 1; n-- {
		if base64Len(n*4) <= budget {
			return n
		}
	}
	return 1
}

// foldHeader folds "Name: value" into CRLF-SP continued lines so that no
// line exceeds foldWidth where possible, and never exceeds hardLimit. The
// returned string does not include the trailing CRLF after the last line.
func foldHeader(name, value string) string {
	full := name + ": " + value
	if len(full) <= foldWidth {
		return full
	}

	var lines []string
	rest := full
	for len(rest) > foldWidth {
		limit := foldWidth
		if len(rest) > hardLimit {
			limit = hardLimit
		}
		cut := lastSpaceBefore(rest, limit)
		if cut <= 0 {
			// No whitespace to fold on (e.g. a single long encoded-word);
			// hard-cut at the byte limit instead of exceeding hardLimit.
			cut = limit
			if cut >= len(rest) {
				break
			}
		}
		lines = append(lines, rest[:cut])
		rest = strings.TrimLeft(rest[cut:], " \t")
	}
	lines = append(lines, rest)
	return strings.Join(lines, "\r\n ")
}

func lastSpaceBefore(s string, limit int) int {
	if limit >= len(s) {
		limit = len(s) - 1
	}
	for i := limit; i > 0; i-- {
		if s[i] == ' ' || s[i] == '\t' {
			return i
		}
	}
	return 0
}
