// Package tokenizer implements the sliding character-N-gram tokenizer of
// spec.md §4.1. It is grounded in the teacher's core/token.go nGramSplit,
// generalized from the teacher's CJK/ASCII-only character class to the
// spec's punctuation-aware classification and from byte-oriented scanning
// to explicit UTF-32 conversion.
package tokenizer

import (
	"github.com/wiser-go/wiser/internal/codec"
)

// Token is one emitted N-gram and its 0-based position.
type Token struct {
	Text     string
	Position int32
}

// ignoredFullwidth holds the ideographic/fullwidth punctuation code points
// spec.md §4.1 requires to be skipped.
var ignoredFullwidth = map[rune]bool{
	0x3000: true, 0x3001: true, 0x3002: true,
	0xFF08: true, 0xFF09: true, 0xFF01: true, 0xFF0C: true,
	0xFF1A: true, 0xFF1B: true, 0xFF1F: true,
	0xFF3B: true, 0xFF3D: true,
	0x201C: true, 0x201D: true, 0x2018: true, 0x2019: true,
}

// isIgnored reports whether a code point should be skipped when building
// N-gram windows (spec.md §4.1 character classification).
func isIgnored(r rune) bool {
	if r <= 0x7F {
		if isASCIISpace(r) {
			return true
		}
		if isASCIIPunct(r) && r != '.' {
			return true
		}
		return false
	}
	return ignoredFullwidth[r]
}

func isASCIISpace(r rune) bool {
	switch r {
	case ' ', '\t', '\n', '\v', '\f', '\r':
		return true
	}
	return false
}

// isASCIIPunct reports whether r is ASCII punctuation per the standard
// C-locale `ispunct` ranges: '!'..'/' , ':'..'@' , '['..'`' , '{'..'~'.
func isASCIIPunct(r rune) bool {
	switch {
	case r >= '!' && r <= '/':
		return true
	case r >= ':' && r <= '@':
		return true
	case r >= '[' && r <= '`':
		return true
	case r >= '{' && r <= '~':
		return true
	}
	return false
}

// lowerASCII lowercases a-z ASCII characters only; non-ASCII characters
// pass through unchanged, per spec.md §4.1.
func lowerASCII(r rune) rune {
	if r >= 'A' && r <= 'Z' {
		return r + ('a' - 'A')
	}
	return r
}

// Split runs the N-gram sliding window algorithm of spec.md §4.1 over s,
// invoking emit for every complete N-character window in left-to-right
// order. It is used identically on the ingest side (building postings) and
// the query side (building query tokens) — spec.md invariant #1.
func Split(s string, n int, emit func(tok Token)) {
	if n < 1 {
		return
	}
	chars := codec.UTF8ToUTF32(s)
	length := len(chars)

	pos := 0
	var position int32
	for pos < length {
		for pos < length && isIgnored(chars[pos]) {
			pos++
		}
		if pos >= length {
			break
		}
		start := pos
		count := 0
		for pos < length && !isIgnored(chars[pos]) && count < n {
			pos++
			count++
		}
		if count == n {
			window := make([]rune, n)
			for i := 0; i < n; i++ {
				window[i] = lowerASCII(chars[start+i])
			}
			emit(Token{Text: codec.UTF32ToUTF8(window), Position: position})
			position++
		}
		pos = start + 1
	}
}

// Count returns the number of tokens Split would emit for s with n,
// equivalently term_count in spec.md §4.4 step 6.
func Count(s string, n int) int32 {
	var c int32
	Split(s, n, func(Token) { c++ })
	return c
}
