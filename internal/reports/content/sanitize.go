package content

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// maxPasses bounds the fixpoint loop in Sanitize. Nested citation brackets
// need one pass per level; real input settles in one or two.
const maxPasses = 64

var (
	// Private-use delimited citations as emitted by chat models
	privateCitation = regexp.MustCompile(`\x{E200}[^\x{E201}]*\x{E201}?`)
	// The same tokens after the delimiters were lost in transit
	citeWrapper  = regexp.MustCompile(`(?i)cite(?:[\s\x{2B50}\x{E202}]*turn\d+[a-z]+\d+)+`)
	turnToken    = regexp.MustCompile(`(?i)\bturn\d+(?:search|news|view|fetch|image|file|product)\d+\b`)
	numericRef   = regexp.MustCompile(`\[\s*\d+(?:\s*[,;-]\s*\d+)*\s*\]`)
	sourceMarker = regexp.MustCompile(`\x{3010}[^\x{3011}]*\x{3011}`)

	listMarker      = regexp.MustCompile(`(?m)^[ \t]*[\x{2022}\x{25CF}\x{25AA}\x{25E6}\x{2023}\x{25B8}\x{25BA}*\-][ \t]+`)
	horizontalSpace = regexp.MustCompile(`[ \t]+`)
	manyNewlines    = regexp.MustCompile(`\n{3,}`)
	spaceBeforePunc = regexp.MustCompile(` +([,.;:!?)])`)
)

var punctuation = strings.NewReplacer(
	"\u2018", "'", "\u2019", "'", "\u201a", "'", "\u201b", "'", "\u2032", "'",
	"\u201c", `"`, "\u201d", `"`, "\u201e", `"`, "\u201f", `"`, "\u2033", `"`,
	"\u00ab", `"`, "\u00bb", `"`,
	"\u2013", "-", "\u2012", "-", "\u2010", "-", "\u2011", "-", "\u2212", "-",
	"\u2014", " - ", "\u2015", " - ",
	"\u2026", "...",
	"\u00a0", " ", "\u202f", " ", "\u2007", " ", "\u2009", " ", "\u200a", " ",
	"\r\n", "\n", "\r", "\n",
)

// Sanitize cleans LLM output before it reaches a renderer. It never fails
// and Sanitize(Sanitize(x)) == Sanitize(x).
func Sanitize(text string) string {
	out := text
	for i := 0; i < maxPasses; i++ {
		next := sanitizeOnce(out)
		if next == out {
			break
		}
		out = next
	}
	return out
}

func sanitizeOnce(text string) string {
	s := norm.NFC.String(strings.ToValidUTF8(text, ""))

	s = privateCitation.ReplaceAllString(s, "")
	s = citeWrapper.ReplaceAllString(s, "")
	s = turnToken.ReplaceAllString(s, "")
	s = numericRef.ReplaceAllString(s, "")
	s = sourceMarker.ReplaceAllString(s, "")

	s = punctuation.Replace(s)
	s = strings.Map(dropDecorative, s)

	s = listMarker.ReplaceAllString(s, "• ")
	s = horizontalSpace.ReplaceAllString(s, " ")

	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(line)
	}
	s = strings.Join(lines, "\n")

	s = manyNewlines.ReplaceAllString(s, "\n\n")
	s = spaceBeforePunc.ReplaceAllString(s, "$1")

	return strings.TrimSpace(s)
}

// dropDecorative removes emoji, dingbats, stars and invisible format runes.
// Bullet glyphs in the geometric shapes block are left for listMarker.
func dropDecorative(r rune) rune {
	switch {
	case r == '\t', r == '\n':
		return r
	case r >= 0x200B && r <= 0x200D, r == 0x2060, r == 0xFEFF:
		return -1
	case r >= 0xFE00 && r <= 0xFE0F:
		return -1
	case r >= 0x2600 && r <= 0x27BF:
		return -1
	case r >= 0x2B00 && r <= 0x2BFF:
		return -1
	case r >= 0x1F000 && r <= 0x1FAFF:
		return -1
	case r >= 0xE0000 && r <= 0xE007F:
		return -1
	case r >= 0xE000 && r <= 0xF8FF:
		return -1
	case unicode.IsControl(r), unicode.IsSpace(r) && r != ' ':
		if unicode.IsSpace(r) {
			return ' '
		}
		return -1
	}
	return r
}
