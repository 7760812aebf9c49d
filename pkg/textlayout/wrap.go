package textlayout

import (
	"strings"
	"unicode"
)

// Measurer reports the rendered width of a run of text in the caller's unit
type Measurer interface {
	Measure(text string, bold bool) float64
}

// MeasureFunc adapts a plain function to Measurer
type MeasureFunc func(text string, bold bool) float64

// Measure implements Measurer
func (f MeasureFunc) Measure(text string, bold bool) float64 {
	return f(text, bold)
}

// Span is a run of text sharing one emphasis style
type Span struct {
	Text string `json:"text"`
	Bold bool   `json:"bold,omitempty"`
}

// Word is the unit the wrapper places on a line
type Word struct {
	Text  string
	Bold  bool
	Width float64
}

// Line is one wrapped output line
type Line struct {
	Words []Word
	Width float64
}

// Text joins the words of the line with single spaces
func (l Line) Text() string {
	parts := make([]string, len(l.Words))
	for i, w := range l.Words {
		parts[i] = w.Text
	}
	return strings.Join(parts, " ")
}

// Wrap greedily wraps plain text into lines no wider than maxWidth
func Wrap(text string, maxWidth float64, m Measurer) []Line {
	return WrapSpans([]Span{{Text: text}}, maxWidth, m)
}

// WrapSpans greedily wraps styled spans into lines no wider than maxWidth.
// Words wider than maxWidth are broken by rune. A single rune wider than
// maxWidth is placed on a line of its own.
func WrapSpans(spans []Span, maxWidth float64, m Measurer) []Line {
	words := splitWords(spans)
	if len(words) == 0 {
		return nil
	}

	var lines []Line
	var cur Line
	space := m.Measure(" ", false)

	flush := func() {
		if len(cur.Words) > 0 {
			lines = append(lines, cur)
		}
		cur = Line{}
	}

	for _, w := range words {
		w.Width = m.Measure(w.Text, w.Bold)

		if w.Width > maxWidth {
			// Hard break: finish the current line, then emit the pieces.
			flush()
			pieces := breakWord(w, maxWidth, m)
			for i, p := range pieces {
				if i == len(pieces)-1 {
					cur = Line{Words: []Word{p}, Width: p.Width}
					break
				}
				lines = append(lines, Line{Words: []Word{p}, Width: p.Width})
			}
			continue
		}

		if len(cur.Words) == 0 {
			cur = Line{Words: []Word{w}, Width: w.Width}
			continue
		}

		next := cur.Width + space + w.Width
		if next > maxWidth {
			flush()
			cur = Line{Words: []Word{w}, Width: w.Width}
			continue
		}
		cur.Words = append(cur.Words, w)
		cur.Width = next
	}
	flush()

	return lines
}

// splitWords flattens spans into whitespace separated words, keeping style
func splitWords(spans []Span) []Word {
	var words []Word
	for _, s := range spans {
		for _, f := range strings.FieldsFunc(s.Text, unicode.IsSpace) {
			words = append(words, Word{Text: f, Bold: s.Bold})
		}
	}
	return words
}

func breakWord(w Word, maxWidth float64, m Measurer) []Word {
	var pieces []Word
	runes := []rune(w.Text)
	start := 0
	for start < len(runes) {
		end := start + 1
		for end < len(runes) && m.Measure(string(runes[start:end+1]), w.Bold) <= maxWidth {
			end++
		}
		text := string(runes[start:end])
		pieces = append(pieces, Word{Text: text, Bold: w.Bold, Width: m.Measure(text, w.Bold)})
		start = end
	}
	return pieces
}
