package qs

import (
	"strings"
)

const upperHex = "0123456789ABCDEF"

// EncodeURI escapes the string using the "encodeURI" ruleset known from browsers.
//
// Letters, digits and the characters -_.!~*'();/?:@&=+$,# are kept,
// so the structure of a query string is not modified.
// Any other byte of the UTF-8 representation is percent-encoded, for example space is encoded as %20.
func EncodeURI(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if shouldKeep(c) {
			b.WriteByte(c)
			continue
		}
		b.WriteByte('%')
		b.WriteByte(upperHex[c>>4])
		b.WriteByte(upperHex[c&15])
	}
	return b.String()
}

func shouldKeep(c byte) bool {
	switch {
	case 'a' <= c && c <= 'z', 'A' <= c && c <= 'Z', '0' <= c && c <= '9':
		return true
	}
	switch c {
	case '-', '_', '.', '!', '~', '*', '\'', '(', ')', ';', '/', '?', ':', '@', '&', '=', '+', '$', ',', '#':
		return true
	}
	return false
}
