package codec

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGolombRoundTrip(t *testing.T) {
	values := []uint32{0, 1, 2, 7, 8, 15, 16, 127, 128, 129, 1000, 65535, 1 << 20}
	for _, m := range []uint32{8, 16, 128} {
		w := NewBitWriter()
		for _, v := range values {
			GolombEncode(w, v, m)
		}
		r := NewBitReader(w.Bytes())
		for _, want := range values {
			got, ok := GolombDecode(r, m)
			require.True(t, ok)
			require.Equal(t, want, got)
		}
	}
}

func TestGolombDecodeStopsGracefullyOnTruncatedStream(t *testing.T) {
	w := NewBitWriter()
	GolombEncode(w, 500, 128)
	GolombEncode(w, 12, 128)
	data := w.Bytes()
	// Truncate mid-stream.
	truncated := data[:len(data)-1]

	r := NewBitReader(truncated)
	_, ok := GolombDecode(r, 128)
	require.True(t, ok)
	// Eventually decoding runs out of bits and reports failure rather than
	// panicking.
	for i := 0; i < 10; i++ {
		if _, ok = GolombDecode(r, 128); !ok {
			return
		}
	}
	t.Fatal("expected decode to eventually fail on truncated stream")
}

func TestUTF8UTF32RoundTrip(t *testing.T) {
	s := "hello, 你好，world。世界！"
	chars := UTF8ToUTF32(s)
	require.Equal(t, s, UTF32ToUTF8(chars))
}
