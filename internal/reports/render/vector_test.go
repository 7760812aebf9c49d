package render

import (
	"context"
	"strings"
	"testing"
	"unicode/utf16"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"ai-opportunities/report-portal/report-portal-backend/internal/reports/content"
	"ai-opportunities/report-portal/report-portal-backend/internal/reports/section"
	"ai-opportunities/report-portal/report-portal-backend/pkg/textlayout"
)

// utf16Text is how gofpdf writes text drawn with a UTF-8 font into an
// uncompressed content stream: UTF-16BE without a byte order mark
func utf16Text(s string) string {
	var b strings.Builder
	for _, u := range utf16.Encode([]rune(s)) {
		for _, c := range []byte{byte(u >> 8), byte(u)} {
			switch c {
			case '\\', '(', ')':
				b.WriteByte('\\')
				b.WriteByte(c)
			case '\r':
				b.WriteString(`\r`)
			default:
				b.WriteByte(c)
			}
		}
	}
	return b.String()
}

func beginVector(t *testing.T) *vectorRenderer {
	t.Helper()
	r := newVectorRenderer(testOptions(), zap.NewNop())
	require.NoError(t, r.Begin(context.Background(), testCover()))
	t.Cleanup(func() { _ = r.Close() })
	return r
}

func TestVector_StatisticValueWrapsInsideSidebar(t *testing.T) {
	r := beginVector(t)
	w := r.opts.SidebarWidth

	short, _, shortH := r.statisticBox(&section.Statistic{Value: "30%", Description: "less phone time"}, w)
	require.Len(t, short, 1)

	long, _, longH := r.statisticBox(&section.Statistic{Value: "$12.5 million saved yearly", Description: "less phone time"}, w)
	require.Greater(t, len(long), 1)
	for _, line := range long {
		assert.LessOrEqual(t, line.Width, w-10, "line %q", line.Text())
	}
	assert.Equal(t, "$12.5 million saved yearly", strings.Join(lineTexts(long), " "))
	assert.InDelta(t, shortH+float64(len(long)-1)*r.opts.lineHeight(statisticValueSize), longH, 0.001)
}

func TestVector_ContinuationPagesUseFullWidth(t *testing.T) {
	r := beginVector(t)
	full := r.contentWidth()

	short := section.ReportSection{
		Title:        "Ordering",
		MainContent:  "Customers order online.",
		Statistic:    &section.Statistic{Value: "30%", Description: "less phone time"},
		KeyTakeaways: []string{"Start with the website"},
	}
	require.NoError(t, r.Section(context.Background(), PreparedSection{Section: short, Blocks: content.Classify(short.MainContent)}))
	assert.Zero(t, r.cursor.PagesAdded())
	assert.InDelta(t, full-r.opts.SidebarWidth-r.opts.Gutter, r.colW, 0.001)

	body := strings.Repeat("Automation frees the team to focus on customers and the bread itself. ", 40)
	long := short
	long.MainContent = strings.Repeat(body+"\n\n", 4)
	require.NoError(t, r.Section(context.Background(), PreparedSection{Section: long, Blocks: content.Classify(long.MainContent)}))
	require.Positive(t, r.cursor.PagesAdded())
	assert.InDelta(t, full, r.colW, 0.001)
}

func TestAssemble_VectorEncodesNonLatinText(t *testing.T) {
	sections := []section.ReportSection{{
		Title:       "Ελληνικά",
		MainContent: "Заказы онлайн → меньше звонков.",
	}}

	out, err := newTestAssembler(nil).Assemble(context.Background(), testCover(), sections, section.DefaultFooter(), BackendVector)
	require.NoError(t, err)

	pdf := string(out)
	assert.Contains(t, pdf, utf16Text("Ελληνικά"))
	assert.Contains(t, pdf, utf16Text("Заказы"))
	assert.Contains(t, pdf, utf16Text("→"))
	assert.NotContains(t, pdf, "(........)", "runes must not collapse to dots")
}

func TestQuoteText(t *testing.T) {
	for in, want := range map[string]string{
		"Bake what sells.":         "Bake what sells.",
		`"Bake what sells."`:       "Bake what sells.",
		` "Bake what sells." `:     "Bake what sells.",
		"“Bake what sells.”":       "Bake what sells.",
		`"" Bake what sells. ""`:   "Bake what sells.",
		`Say "less", bake better.`: `Say "less", bake better.`,
	} {
		assert.Equal(t, want, quoteText(in), in)
	}
}

func TestBuildHTML_PullQuoteHasOnePairOfMarks(t *testing.T) {
	sections := testSections()
	sections[1].PullQuote = `"Bake what sells, not what you guess."`

	html, err := newTestAssembler(nil).HTML(context.Background(), testCover(), sections, section.DefaultFooter())
	require.NoError(t, err)

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	require.NoError(t, err)
	assert.Equal(t, "“Bake what sells, not what you guess.”", doc.Find("blockquote.pull-quote").Text())
}

func lineTexts(lines []textlayout.Line) []string {
	out := make([]string, len(lines))
	for i, l := range lines {
		out[i] = l.Text()
	}
	return out
}
