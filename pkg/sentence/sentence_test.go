package sentence

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSegmentBasic(t *testing.T) {
	spans := Segment([]byte("Hello world. How are you? Fine!"))
	require.Len(t, spans, 3)
	assert.Equal(t, "Hello world.", sliceOf(spans[0], "Hello world. How are you? Fine!"))
	assert.Equal(t, "How are you?", sliceOf(spans[1], "Hello world. How are you? Fine!"))
	assert.Equal(t, "Fine!", sliceOf(spans[2], "Hello world. How are you? Fine!"))
}

func TestSegmentTrailingNonTerminated(t *testing.T) {
	spans := Segment([]byte("Hello world. trailing stuff"))
	require.Len(t, spans, 2)
	assert.Equal(t, "trailing stuff", sliceOf(spans[1], "Hello world. trailing stuff"))
}

func TestSegmentTrailingWhitespaceOnlyDropped(t *testing.T) {
	spans := Segment([]byte("Hello world.   \n\t"))
	require.Len(t, spans, 1)
}

func TestSegmentEmptyBuffer(t *testing.T) {
	assert.Empty(t, Segment(nil))
	assert.Empty(t, Segment([]byte("")))
}

func TestSegmentWhitespaceOnlyBuffer(t *testing.T) {
	assert.Empty(t, Segment([]byte("   \t\n  ")))
}

func TestSegmentSkipsLeadingWhitespaceBetweenSentences(t *testing.T) {
	spans := Segment([]byte("One.   Two."))
	require.Len(t, spans, 2)
	assert.Equal(t, "One.", sliceOf(spans[0], "One.   Two."))
	assert.Equal(t, "Two.", sliceOf(spans[1], "One.   Two."))
}

func TestCount(t *testing.T) {
	assert.Equal(t, 3, Count([]byte("A. B! C?")))
	assert.Equal(t, 0, Count([]byte("")))
}

func TestReadOutOfRange(t *testing.T) {
	_, ok := Read([]byte("Only one."), 1)
	assert.False(t, ok)
}

func TestReadInRange(t *testing.T) {
	got, ok := Read([]byte("Hello world. Second."), 1)
	require.True(t, ok)
	assert.Equal(t, "Second.", string(got))
}

func TestReplaceSpliceReplacesBytesVerbatim(t *testing.T) {
	buf := []byte("Hello world. Second sentence.")
	out, ok := Replace(buf, 0, []byte("Goodbye."))
	require.True(t, ok)
	assert.Equal(t, "Goodbye. Second sentence.", string(out))

	again, ok := Read(out, 0)
	require.True(t, ok)
	assert.Equal(t, "Goodbye.", string(again))
}

func TestReplaceWithoutTerminatorMergesSentences(t *testing.T) {
	buf := []byte("One. Two. Three.")
	out, ok := Replace(buf, 1, []byte("two plus"))
	require.True(t, ok)

	spans := Segment(out)
	require.Len(t, spans, 2)
	assert.Equal(t, "two plus Three.", sliceOf(spans[1], string(out)))
}

func TestReplaceIntoReusesSuppliedBuffer(t *testing.T) {
	buf := []byte("Hello world. Second sentence.")
	dst := make([]byte, 0, 64)

	out, ok := ReplaceInto(dst, buf, 0, []byte("Goodbye."))
	require.True(t, ok)
	assert.Equal(t, "Goodbye. Second sentence.", string(out))

	out[0] = 'g'
	assert.Equal(t, byte('g'), dst[:1][0])
}

func TestReplaceOutOfRange(t *testing.T) {
	_, ok := Replace([]byte("One."), 5, []byte("x"))
	assert.False(t, ok)
}

func TestSegmentationRoundTrip(t *testing.T) {
	buf := []byte("First one. Second one! Third one? trailing remark")
	n := Count(buf)
	require.Equal(t, 4, n)

	for i := 0; i < n; i++ {
		span, ok := Read(buf, i)
		require.True(t, ok)
		require.NotEmpty(t, span)
		last := span[len(span)-1]
		if i < n-1 {
			assert.True(t, last == '.' || last == '!' || last == '?')
		}
	}
}

func sliceOf(s Span, str string) string {
	return str[s.Start:s.End]
}
