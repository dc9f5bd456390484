package snmp

import (
	"bytes"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
)

// renderOctets representa un OCTET STRING como lo haría net-snmp: texto
// legible como STRING, el resto como Hex-STRING.
func renderOctets(b []byte) string {
	// 6 bytes con control o NUL final: dirección MAC, nunca texto
	if len(b) == macLength && (b[macLength-1] == 0 || hasControl(b)) {
		return "Hex-STRING: " + hexGroups(b)
	}

	text := bytes.TrimRight(b, "\x00")

	if isText(text) {
		return fmt.Sprintf("STRING: %q", string(text))
	}

	if len(text) != macLength && isLatin1Text(text) {
		if decoded, err := charmap.ISO8859_1.NewDecoder().Bytes(text); err == nil {
			return fmt.Sprintf("STRING: %q", string(decoded))
		}
	}

	if len(b) == 0 {
		return `STRING: ""`
	}

	return "Hex-STRING: " + hexGroups(b)
}

const macLength = 6

func hasControl(b []byte) bool {
	for _, c := range b {
		if c < 0x20 || c == 0x7f {
			return true
		}
	}
	return false
}

// isText verifica UTF-8 válido y sin caracteres de control
func isText(b []byte) bool {
	if len(b) == 0 || !utf8.Valid(b) {
		return false
	}

	for _, r := range string(b) {
		if r == '\t' || r == '\n' || r == '\r' {
			continue
		}
		if !unicode.IsPrint(r) {
			return false
		}
	}

	return true
}

// isLatin1Text acepta bytes imprimibles de ISO-8859-1 con al menos uno alto
func isLatin1Text(b []byte) bool {
	if len(b) == 0 {
		return false
	}

	high := false
	for _, c := range b {
		switch {
		case c >= 0x20 && c <= 0x7e:
		case c >= 0xa0:
			high = true
		case c == '\t' || c == '\n' || c == '\r':
		default:
			return false
		}
	}

	return high
}

// hexGroups "1A 2B 3C"
func hexGroups(b []byte) string {
	groups := make([]string, len(b))
	for i, c := range b {
		groups[i] = fmt.Sprintf("%02X", c)
	}
	return strings.Join(groups, " ")
}
