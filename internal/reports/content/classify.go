package content

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"ai-opportunities/report-portal/report-portal-backend/pkg/textlayout"
)

// Kind is the classification of a content block
type Kind string

const (
	KindHeading   Kind = "heading"
	KindBullet    Kind = "bullet"
	KindNumbered  Kind = "numbered"
	KindQuote     Kind = "quote"
	KindParagraph Kind = "paragraph"
)

// Item is one entry of a bullet or numbered list. Label is the verbatim
// number ("3.") for numbered items and empty for bullets.
type Item struct {
	Label string            `json:"label,omitempty"`
	Spans []textlayout.Span `json:"spans"`
}

// Block is a classified fragment of section text
type Block struct {
	Kind  Kind              `json:"kind"`
	Spans []textlayout.Span `json:"spans,omitempty"`
	Items []Item            `json:"items,omitempty"`
}

// Text returns the block payload without markup
func (b Block) Text() string {
	if len(b.Items) == 0 {
		return spanText(b.Spans)
	}
	parts := make([]string, 0, len(b.Items))
	for _, it := range b.Items {
		if it.Label != "" {
			parts = append(parts, it.Label+" "+spanText(it.Spans))
		} else {
			parts = append(parts, spanText(it.Spans))
		}
	}
	return strings.Join(parts, "\n")
}

// QuoteMode selects how eagerly standalone lines become quotes
type QuoteMode int

const (
	// QuoteStrict only promotes standalone lines that carry quote marks
	QuoteStrict QuoteMode = iota
	// QuoteLoose promotes any standalone line of quote length
	QuoteLoose
)

const (
	minQuoteRunes = 20
	maxQuoteRunes = 120
)

var (
	headingLine  = regexp.MustCompile(`^\*\*([^*].*?)\*\*$`)
	bulletLine   = regexp.MustCompile(`^[•*\-]\s+(.*)$`)
	numberedLine = regexp.MustCompile(`^(\d+\.)\s+(.*)$`)
)

// Classifier turns sanitized section text into blocks
type Classifier struct {
	QuoteMode QuoteMode
}

// Classify uses the default strict quote mode
func Classify(text string) []Block {
	return Classifier{}.Classify(text)
}

type lineKind int

const (
	lineText lineKind = iota
	lineHeading
	lineBullet
	lineNumbered
)

type scannedLine struct {
	kind  lineKind
	text  string
	label string
}

func scanLine(line string) scannedLine {
	if m := headingLine.FindStringSubmatch(line); m != nil && !strings.Contains(m[1], "**") {
		return scannedLine{kind: lineHeading, text: strings.TrimSpace(m[1])}
	}
	if m := bulletLine.FindStringSubmatch(line); m != nil {
		return scannedLine{kind: lineBullet, text: m[1]}
	}
	if m := numberedLine.FindStringSubmatch(line); m != nil {
		return scannedLine{kind: lineNumbered, text: m[2], label: m[1]}
	}
	return scannedLine{kind: lineText, text: line}
}

// Classify splits text on blank lines and classifies every line of each
// candidate paragraph. List markers win over the quote heuristic, and a
// plain line directly after a list item is always paragraph text.
func (c Classifier) Classify(text string) []Block {
	var blocks []Block

	for _, chunk := range splitParagraphs(text) {
		lines := make([]scannedLine, len(chunk))
		for i, l := range chunk {
			lines[i] = scanLine(l)
		}

		var para []string
		var list *Block
		flushPara := func() {
			if len(para) > 0 {
				blocks = append(blocks, Block{Kind: KindParagraph, Spans: ParseInline(strings.Join(para, " "))})
				para = nil
			}
		}
		flushList := func() {
			if list != nil {
				blocks = append(blocks, *list)
				list = nil
			}
		}

		for i, l := range lines {
			switch l.kind {
			case lineHeading:
				flushPara()
				flushList()
				blocks = append(blocks, Block{Kind: KindHeading, Spans: []textlayout.Span{{Text: l.text}}})

			case lineBullet, lineNumbered:
				flushPara()
				kind := KindBullet
				if l.kind == lineNumbered {
					kind = KindNumbered
				}
				if list != nil && list.Kind != kind {
					flushList()
				}
				if list == nil {
					list = &Block{Kind: kind}
				}
				list.Items = append(list.Items, Item{Label: l.label, Spans: ParseInline(l.text)})

			default:
				afterList := list != nil
				flushList()
				if !afterList && len(para) == 0 && c.standalone(lines, i) {
					if q, ok := c.quote(l.text); ok {
						blocks = append(blocks, Block{Kind: KindQuote, Spans: ParseInline(q)})
						continue
					}
				}
				para = append(para, l.text)
			}
		}
		flushPara()
		flushList()
	}

	return blocks
}

// standalone reports whether line i has no paragraph text around it
func (c Classifier) standalone(lines []scannedLine, i int) bool {
	if i > 0 && lines[i-1].kind != lineHeading {
		return false
	}
	return i == len(lines)-1 || lines[i+1].kind != lineText
}

func (c Classifier) quote(line string) (string, bool) {
	n := utf8.RuneCountInString(line)
	if n < minQuoteRunes || n > maxQuoteRunes {
		return "", false
	}

	switch {
	case strings.HasPrefix(line, ">"):
		return strings.TrimSpace(strings.TrimPrefix(line, ">")), true
	case len(line) >= 2 && strings.HasPrefix(line, `"`) && strings.HasSuffix(line, `"`) && !strings.Contains(line[1:len(line)-1], `"`):
		return strings.TrimSpace(line[1 : len(line)-1]), true
	case c.QuoteMode == QuoteLoose:
		return line, true
	}
	return "", false
}

func splitParagraphs(text string) [][]string {
	var chunks [][]string
	var cur []string
	for _, line := range strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			if len(cur) > 0 {
				chunks = append(chunks, cur)
				cur = nil
			}
			continue
		}
		cur = append(cur, line)
	}
	if len(cur) > 0 {
		chunks = append(chunks, cur)
	}
	return chunks
}

// ParseInline splits **bold** runs into bold spans. An unmatched marker is
// kept as literal text.
func ParseInline(text string) []textlayout.Span {
	var spans []textlayout.Span
	emit := func(s string, bold bool) {
		if s == "" {
			return
		}
		if n := len(spans); n > 0 && spans[n-1].Bold == bold {
			spans[n-1].Text += s
			return
		}
		spans = append(spans, textlayout.Span{Text: s, Bold: bold})
	}

	rest := text
	for {
		open := strings.Index(rest, "**")
		if open < 0 {
			emit(rest, false)
			break
		}
		end := strings.Index(rest[open+2:], "**")
		if end < 0 {
			emit(rest, false)
			break
		}
		emit(rest[:open], false)
		emit(rest[open+2:open+2+end], true)
		rest = rest[open+2+end+2:]
	}
	return spans
}

// PlainText joins the payload of every block, dropping markup
func PlainText(blocks []Block) string {
	parts := make([]string, 0, len(blocks))
	for _, b := range blocks {
		parts = append(parts, b.Text())
	}
	return strings.Join(parts, "\n\n")
}

func spanText(spans []textlayout.Span) string {
	var sb strings.Builder
	for _, s := range spans {
		sb.WriteString(s.Text)
	}
	return sb.String()
}
