package delta_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vercon/internal/delta"
)

func roundTrip(t *testing.T, from, to string) {
	t.Helper()
	d := delta.Compute(from, to)
	got, err := delta.Apply(from, d)
	require.NoError(t, err)
	require.Equal(t, to, got)

	// consumed characters must cover the whole source
	consumed := 0
	for _, ins := range d {
		if ins.Op == delta.Copy || ins.Op == delta.Skip {
			consumed += ins.Count
		}
	}
	assert.Equal(t, len([]rune(from)), consumed)
}

func TestComputeApplyRoundTrip(t *testing.T) {
	cases := []struct{ name, from, to string }{
		{"identical", "hello\nworld\n", "hello\nworld\n"},
		{"append line", "hello\nworld\n", "hello\nworld\nagain\n"},
		{"drop line", "hello\nworld\n", "hello\n"},
		{"replace line", "alpha\nbeta\ngamma\n", "alpha\nBETA\ngamma\n"},
		{"from empty", "", "fresh content\n"},
		{"to empty", "doomed\ncontent\n", ""},
		{"both empty", "", ""},
		{"no trailing newline", "one\ntwo", "one\nthree"},
		{"embedded blank lines", "a\n\n\nb\n", "a\n\nb\nc\n"},
		{"unicode", "héllo wörld\nsécond\n", "héllo wørld\nsécond\nthírd\n"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			roundTrip(t, tc.from, tc.to)
		})
	}
}

func TestRoundTripLongRepeatedRuns(t *testing.T) {
	// pathological input for autojunk heuristics; behaviour is pinned
	from := strings.Repeat("x\n", 300) + "middle\n" + strings.Repeat("x\n", 300)
	to := strings.Repeat("x\n", 300) + "changed\n" + strings.Repeat("x\n", 300)
	roundTrip(t, from, to)
}

func TestApplyInterpreter(t *testing.T) {
	d := delta.Delta{
		{Op: delta.Copy, Count: 6},
		{Op: delta.Skip, Count: 6},
		{Op: delta.Insert, Count: 6, Literal: "there\n"},
	}
	got, err := delta.Apply("hello\nworld\n", d)
	require.NoError(t, err)
	assert.Equal(t, "hello\nthere\n", got)
}

func TestApplyOverrun(t *testing.T) {
	_, err := delta.Apply("abc", delta.Delta{{Op: delta.Copy, Count: 4}})
	require.ErrorIs(t, err, delta.ErrCorrupt)

	_, err = delta.Apply("abc", delta.Delta{{Op: delta.Skip, Count: 2}, {Op: delta.Skip, Count: 2}})
	require.ErrorIs(t, err, delta.ErrCorrupt)
}

func TestEncodeWireFormat(t *testing.T) {
	d := delta.Delta{
		{Op: delta.Copy, Count: 6},
		{Op: delta.Skip, Count: 6},
		{Op: delta.Insert, Count: 6, Literal: "there\n"},
	}
	assert.Equal(t, "c 6\ns 6\ni 6\nthere\n\n", delta.Encode(d))
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	d := delta.Compute("alpha\nbeta\ngamma\n", "alpha\nGAMMA\n")
	decoded, err := delta.Decode(delta.Encode(d))
	require.NoError(t, err)
	assert.Equal(t, d, decoded)
}

func TestDecodeLiteralWithEmbeddedNewlines(t *testing.T) {
	// the character count, not the line count, is authoritative
	encoded := "i 8\na\nb\nc\nd\n"
	d, err := delta.Decode(encoded)
	require.NoError(t, err)
	require.Len(t, d, 1)
	assert.Equal(t, "a\nb\nc\nd", d[0].Literal)
	assert.Equal(t, encoded, delta.Encode(d))
}

func TestDecodeMalformed(t *testing.T) {
	for _, bad := range []string{
		"x 3\nabc\n",   // unknown op
		"c\n",          // missing count
		"c -1\n",       // negative count
		"i 10\nshort\n", // truncated literal
		"i 3\nabcX",    // literal not newline-terminated
		"c 3",          // unterminated line
	} {
		_, err := delta.Decode(bad)
		assert.ErrorIs(t, err, delta.ErrCorrupt, "input %q", bad)
	}
}
