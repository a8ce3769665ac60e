// Package internal holds helpers shared by the engine adapters.
package internal

import (
	"unicode"
	"unicode/utf16"
)

const (
	replacementChar = '\uFFFD'
	maxBmpRune      = 0xFFFF
)

// StringHash computes java.lang.String#hashCode over the UTF-16 encoding of s.
// Ignite derives cache ids from cache names with it.
func StringHash(s string) int32 {
	var h int32
	for _, r := range s {
		switch {
		case r <= maxBmpRune:
			h = 31*h + r
		case r <= unicode.MaxRune:
			hi, lo := utf16.EncodeRune(r)
			h = 31*(31*h+hi) + lo
		default:
			h = 31*h + replacementChar
		}
	}
	return h
}
