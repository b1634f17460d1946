// Package sentence implements the cluster's sentence segmentation
// algorithm: a single left-to-right pass over a file's bytes that assigns
// 0-based sentence indices the same way for counting, reading, and
// writing. Every Storage Node operation that touches sentence boundaries
// goes through this package so the three never drift from each other.
package sentence

// Span is a byte range [Start, End) within a buffer, identifying one
// sentence. End is exclusive, so the sentence's bytes are buf[Start:End].
type Span struct {
	Start int
	End   int
}

// isWhitespace matches the algorithm's whitespace set: space, tab,
// newline, and carriage return.
func isWhitespace(b byte) bool {
	return b == ' ' || b == '\t' || b == '\n' || b == '\r'
}

// isTerminator reports whether b ends a sentence.
func isTerminator(b byte) bool {
	return b == '.' || b == '!' || b == '?'
}

// Segment performs the single left-to-right pass and returns the spans of
// every sentence in buf, in order. A trailing span with no terminator is
// included iff it contains at least one non-whitespace byte.
func Segment(buf []byte) []Span {
	var spans []Span

	inSentence := false
	start := 0

	for i := 0; i < len(buf); i++ {
		b := buf[i]

		if !inSentence && !isWhitespace(b) {
			inSentence = true
			start = i
		}

		if inSentence && isTerminator(b) {
			spans = append(spans, Span{Start: start, End: i + 1})
			inSentence = false
		}
	}

	if inSentence {
		spans = append(spans, Span{Start: start, End: len(buf)})
	}

	return spans
}

// Count returns the number of sentences in buf.
func Count(buf []byte) int {
	return len(Segment(buf))
}

// At returns the byte span of the sentence at idx, or ok=false if idx is
// out of range.
func At(buf []byte, idx int) (Span, bool) {
	if idx < 0 {
		return Span{}, false
	}
	spans := Segment(buf)
	if idx >= len(spans) {
		return Span{}, false
	}
	return spans[idx], true
}

// Read returns the bytes of the sentence at idx, or ok=false if idx is
// out of range.
func Read(buf []byte, idx int) ([]byte, bool) {
	span, ok := At(buf, idx)
	if !ok {
		return nil, false
	}
	return buf[span.Start:span.End], true
}

// Replace splices content in place of the sentence at idx and returns the
// resulting buffer. The replacement need not itself terminate with
// '.', '!', or '?' — re-segmenting the result may produce a different
// sentence count, which callers must recompute rather than trust the
// prior cached value. An idx equal to the current sentence count appends
// content after the existing bytes, so sentence 0 of an empty buffer can
// be written. Returns ok=false if idx is negative or greater than the
// sentence count.
func Replace(buf []byte, idx int, content []byte) ([]byte, bool) {
	return ReplaceInto(nil, buf, idx, content)
}

// ReplaceInto behaves like Replace but appends the spliced result into
// dst[:0] instead of always allocating a fresh slice, so a caller holding
// a pooled buffer can reuse it across splices. Passing a nil dst is
// equivalent to Replace.
func ReplaceInto(dst, buf []byte, idx int, content []byte) ([]byte, bool) {
	span, ok := At(buf, idx)
	if !ok {
		if idx < 0 || idx != Count(buf) {
			return nil, false
		}
		span = Span{Start: len(buf), End: len(buf)}
	}

	out := dst[:0]
	out = append(out, buf[:span.Start]...)
	out = append(out, content...)
	out = append(out, buf[span.End:]...)
	return out, true
}
