// Package codec implements the low-level byte- and bit-level primitives the
// index needs: UTF-8/UTF-32 conversion and a Golomb-Rice bitstream codec for
// postings. It has no knowledge of tokens, documents or postings lists.
package codec

import "unicode/utf8"

// UTF8ToUTF32 converts a UTF-8 string into its sequence of Unicode code
// points. Invalid byte sequences decode as utf8.RuneError, matching the
// standard library's range-over-string behavior.
func UTF8ToUTF32(s string) []rune {
	out := make([]rune, 0, len(s))
	for _, r := range s {
		out = append(out, r)
	}
	return out
}

// UTF32ToUTF8 re-encodes a slice of code points as UTF-8.
func UTF32ToUTF8(chars []rune) string {
	buf := make([]byte, 0, len(chars)*utf8.UTFMax)
	var tmp [utf8.UTFMax]byte
	for _, r := range chars {
		n := utf8.EncodeRune(tmp[:], r)
		buf = append(buf, tmp[:n]...)
	}
	return string(buf)
}
