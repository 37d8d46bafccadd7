package tokenizer

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func split(s string, n int) []Token {
	var out []Token
	Split(s, n, func(tok Token) { out = append(out, tok) })
	return out
}

func TestSplitArtificialIntelligenceBigrams(t *testing.T) {
	toks := split("Artificial Intelligence", 2)
	want := []string{
		"ar", "rt", "ti", "if", "fi", "ic", "ci", "ia",
		"al", "in", "nt", "te", "el", "ll", "li", "ig", "ge", "en", "nc", "ce",
	}
	require.Len(t, toks, len(want))
	for i, tok := range toks {
		require.Equal(t, want[i], tok.Text, "token %d", i)
		require.EqualValues(t, i, tok.Position)
	}
}

func TestSplitDegenerateNEqualsOne(t *testing.T) {
	toks := split("ab.c", 1)
	require.Equal(t, []string{"a", "b", ".", "c"}, texts(toks))
}

func TestSplitShortRunProducesNoTokens(t *testing.T) {
	toks := split("a b", 3)
	require.Empty(t, toks)
}

func TestSplitPeriodRetained(t *testing.T) {
	toks := split("2.5", 2)
	require.Equal(t, []string{"2.", ".5"}, texts(toks))
}

func TestSplitIgnoresFullwidthPunctuation(t *testing.T) {
	toks := split("你好，世界。", 2)
	require.Equal(t, []string{"你好", "世界"}, texts(toks))
}

func TestSplitLowercasesASCIIOnly(t *testing.T) {
	toks := split("ABçd", 2)
	require.Equal(t, []string{"ab", "bç", "çd"}, texts(toks))
}

func TestSplitIsDeterministic(t *testing.T) {
	s := "hello, 你好，world.世界。"
	require.Equal(t, split(s, 2), split(s, 2))
}

func TestCountMatchesEmittedTokens(t *testing.T) {
	require.EqualValues(t, 20, Count("Artificial Intelligence", 2))
}

func texts(toks []Token) []string {
	out := make([]string, len(toks))
	for i, t := range toks {
		out[i] = t.Text
	}
	return out
}
