package pp

import (
	"fmt"
	"io"
	"strings"
)

// OutputLine is one logical line of preprocessed output: the tokens it
// is made of, and the source file and line it came from. Engine emits
// one OutputLine per active logical input line; directives and inactive
// conditional branches contribute none.
type OutputLine struct {
	Tokens []Token
	Line   int
	Source string
}

// maxBlankRun is the largest gap the Writer will fill with literal blank
// lines before switching to a line marker instead (§4.11).
const maxBlankRun = 6

// Writer reconstructs preprocessed text from a sequence of OutputLines,
// inserting GCC-style line markers ("# N \"source\"") whenever the
// source file changes or a gap between consecutive lines is too wide to
// spell out as blank lines.
type Writer struct {
	LineMarkers bool
}

// NewWriter returns a Writer. When lineMarkers is false, no "# N ..."
// markers are ever emitted and every gap is filled with blank lines
// verbatim, matching a plain "cpp -P"-style invocation.
func NewWriter(lineMarkers bool) *Writer {
	return &Writer{LineMarkers: lineMarkers}
}

// Write formats lines to w.
func (wr *Writer) Write(w io.Writer, lines []OutputLine) error {
	lastLine := 0
	lastSource := ""
	started := false

	for _, ol := range lines {
		if !started {
			if wr.LineMarkers {
				if _, err := fmt.Fprintf(w, "# %d %q\n", ol.Line, ol.Source); err != nil {
					return err
				}
			}
			started = true
		} else if ol.Source != lastSource {
			if wr.LineMarkers {
				if _, err := fmt.Fprintf(w, "# %d %q\n", ol.Line, ol.Source); err != nil {
					return err
				}
			} else if _, err := io.WriteString(w, "\n"); err != nil {
				return err
			}
		} else {
			gap := ol.Line - lastLine
			switch {
			case gap <= 0:
				gap = 1
			case gap-1 > maxBlankRun && wr.LineMarkers:
				if _, err := fmt.Fprintf(w, "# %d %q\n", ol.Line, ol.Source); err != nil {
					return err
				}
				gap = 0
			}
			for i := 1; i < gap; i++ {
				if _, err := io.WriteString(w, "\n"); err != nil {
					return err
				}
			}
		}

		if _, err := io.WriteString(w, renderLine(ol.Tokens)); err != nil {
			return err
		}
		if _, err := io.WriteString(w, "\n"); err != nil {
			return err
		}
		lastLine = ol.Line
		lastSource = ol.Source
	}
	return nil
}

// Format is a convenience wrapper returning the formatted text as a
// string.
func (wr *Writer) Format(lines []OutputLine) string {
	var b strings.Builder
	_ = wr.Write(&b, lines)
	return b.String()
}

// renderLine concatenates one line's tokens, collapsing any interior run
// of horizontal whitespace to a single space while preserving the line's
// original leading indentation verbatim, and trimming trailing
// whitespace (§4.11).
func renderLine(tokens []Token) string {
	var b strings.Builder
	lastWasSpace := false
	for i, t := range tokens {
		if t.Kind == Whitespace {
			if i == 0 {
				b.WriteString(t.Value)
				lastWasSpace = true
				continue
			}
			if !lastWasSpace {
				b.WriteByte(' ')
				lastWasSpace = true
			}
			continue
		}
		b.WriteString(t.Value)
		lastWasSpace = false
	}
	return strings.TrimRight(b.String(), " \t")
}
