package render

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/jpeg"
	"strings"

	"github.com/jung-kurt/gofpdf"
	"go.uber.org/zap"

	"ai-opportunities/report-portal/report-portal-backend/internal/reports/content"
	"ai-opportunities/report-portal/report-portal-backend/internal/reports/section"
	"ai-opportunities/report-portal/report-portal-backend/pkg/textlayout"
)

// vectorRenderer draws every element with gofpdf primitives
type vectorRenderer struct {
	opts   Options
	logger *zap.Logger

	pdf          *gofpdf.Fpdf
	pageW, pageH float64
	cursor       *textlayout.Cursor
	colW         float64
	images       int
	businessName string
}

func newVectorRenderer(opts Options, logger *zap.Logger) *vectorRenderer {
	return &vectorRenderer{opts: opts.withDefaults(), logger: logger}
}

func (r *vectorRenderer) Backend() Backend { return BackendVector }

func (r *vectorRenderer) Begin(ctx context.Context, cover section.Cover) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	pdf := gofpdf.New("P", "mm", r.opts.PageSize, "")
	pdf.SetMargins(r.opts.Margins.Left, r.opts.Margins.Top, r.opts.Margins.Right)
	pdf.SetAutoPageBreak(false, 0)
	pdf.SetCompression(r.opts.Compress)
	pdf.SetCatalogSort(true)
	if !cover.Date.IsZero() {
		pdf.SetCreationDate(cover.Date)
	}
	pdf.SetTitle(cover.Title, true)
	pdf.SetSubject(cover.BusinessName, true)
	pdf.SetCreator("report-portal", true)
	if r.opts.Author != "" {
		pdf.SetAuthor(r.opts.Author, true)
	}

	regular, bold, err := r.opts.fontSources()
	if err != nil {
		return err
	}
	pdf.AddUTF8FontFromBytes(r.opts.FontFamily, "", regular)
	pdf.AddUTF8FontFromBytes(r.opts.FontFamily, "B", bold)
	if pdf.Err() {
		return &section.ResourceError{Resource: "font " + r.opts.FontFamily, Essential: true, Err: pdf.Error()}
	}

	r.pdf = pdf
	r.pageW, r.pageH = pdf.GetPageSize()
	r.businessName = cover.BusinessName

	if r.opts.IncludePageNum {
		pdf.SetFooterFunc(r.pageFooter)
	}

	r.drawCover(cover)
	return r.check("cover")
}

func (r *vectorRenderer) Section(ctx context.Context, s PreparedSection) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if r.pdf == nil {
		return &section.RenderError{Backend: string(BackendVector), Op: "section", Err: fmt.Errorf("document not started")}
	}

	r.pdf.AddPage()
	top := r.drawBanner(s.Section.Title, s.Banner)

	// the sidebar only occupies the first page; continuation pages get the
	// full content width back
	r.cursor = textlayout.NewCursor(r.opts.Margins.Top, r.pageH-r.opts.Margins.Bottom, func() {
		r.pdf.AddPage()
		r.colW = r.contentWidth()
	})
	r.cursor.Y = top + 8

	r.colW = r.contentWidth()
	blocks := s.Blocks
	if s.Section.HasSidebar() {
		r.colW -= r.opts.SidebarWidth + r.opts.Gutter
		overflow := r.drawSidebar(s.Section, r.opts.Margins.Left+r.colW+r.opts.Gutter, r.cursor.Y)
		if len(overflow) > 0 {
			blocks = append(append([]content.Block{}, blocks...), takeawaysBlock(overflow))
		}
	}

	pulled := false
	for _, b := range blocks {
		r.drawBlock(b, r.opts.Margins.Left)
		if !pulled && b.Kind == content.KindParagraph && s.Section.PullQuote != "" {
			r.drawPullQuote(s.Section.PullQuote, r.opts.Margins.Left)
			pulled = true
		}
	}
	if !pulled && s.Section.PullQuote != "" {
		r.drawPullQuote(s.Section.PullQuote, r.opts.Margins.Left)
	}

	return r.check("section " + s.Section.Title)
}

func (r *vectorRenderer) Footer(ctx context.Context, f section.Footer) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if r.pdf == nil {
		return &section.RenderError{Backend: string(BackendVector), Op: "footer", Err: fmt.Errorf("document not started")}
	}
	r.drawClosingPage(f)
	return r.check("footer")
}

func (r *vectorRenderer) Finish(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if r.pdf == nil {
		return nil, &section.RenderError{Backend: string(BackendVector), Op: "finish", Err: fmt.Errorf("document not started")}
	}

	var buf bytes.Buffer
	if err := r.pdf.Output(&buf); err != nil {
		return nil, &section.RenderError{Backend: string(BackendVector), Op: "output", Err: err}
	}
	if buf.Len() == 0 {
		return nil, &section.RenderError{Backend: string(BackendVector), Op: "output", Err: fmt.Errorf("empty document")}
	}
	return buf.Bytes(), nil
}

// Close releases the document; gofpdf holds no external resources
func (r *vectorRenderer) Close() error {
	r.pdf = nil
	r.cursor = nil
	return nil
}

func (r *vectorRenderer) check(op string) error {
	if r.pdf.Err() {
		return &section.RenderError{Backend: string(BackendVector), Op: op, Err: r.pdf.Error()}
	}
	return nil
}

func (r *vectorRenderer) contentWidth() float64 {
	return r.pageW - r.opts.Margins.Left - r.opts.Margins.Right
}

func (r *vectorRenderer) setFont(bold bool, size float64) {
	style := ""
	if bold {
		style = "B"
	}
	r.pdf.SetFont(r.opts.FontFamily, style, size)
}

func (r *vectorRenderer) setTextColor(c PDFColor) { r.pdf.SetTextColor(c.R, c.G, c.B) }
func (r *vectorRenderer) setFillColor(c PDFColor) { r.pdf.SetFillColor(c.R, c.G, c.B) }

func (r *vectorRenderer) measurer(size float64) textlayout.Measurer {
	return textlayout.MeasureFunc(func(text string, bold bool) float64 {
		r.setFont(bold, size)
		return r.pdf.GetStringWidth(text)
	})
}

func (r *vectorRenderer) wrap(spans []textlayout.Span, width, size float64) []textlayout.Line {
	return textlayout.WrapSpans(spans, width, r.measurer(size))
}

// drawLine writes one wrapped line with its baseline at y. Consecutive words
// of the same weight go out as a single text run.
func (r *vectorRenderer) drawLine(line textlayout.Line, x, y, size float64) {
	space := r.measurer(size).Measure(" ", false)
	for _, run := range styleRuns(line, space) {
		r.setFont(run.bold, size)
		r.pdf.Text(x, y, run.text)
		x += run.width + space
	}
}

// flow draws wrapped lines through the page cursor, calling decorate for
// each line before its text so backgrounds sit underneath
func (r *vectorRenderer) flow(lines []textlayout.Line, x, size float64, color PDFColor, decorate func(y, h float64)) {
	lh := r.opts.lineHeight(size)
	for _, line := range lines {
		r.cursor.Reserve(lh)
		if decorate != nil {
			decorate(r.cursor.Y, lh)
		}
		r.setTextColor(color)
		r.drawLine(line, x, r.cursor.Y+lh*0.72, size)
		r.cursor.Advance(lh)
	}
}

// drawBlock draws b at the current column width. Wrapping happens before the
// block flows, so a block that crosses a page break keeps the width it
// started with.
func (r *vectorRenderer) drawBlock(b content.Block, x float64) {
	size := r.opts.FontSize
	switch b.Kind {
	case content.KindHeading:
		hs := r.opts.HeadingFontSize
		spans := boldSpans(b.Spans)
		lines := r.wrap(spans, r.colW, hs)
		// keep the heading with the first body line
		r.cursor.Reserve(float64(len(lines))*r.opts.lineHeight(hs) + r.opts.lineHeight(size) + 3)
		lines = r.wrap(spans, r.colW, hs)
		r.cursor.Advance(3)
		r.flow(lines, x, hs, r.opts.PrimaryColor, nil)
		r.cursor.Advance(1.5)

	case content.KindParagraph:
		r.flow(r.wrap(b.Spans, r.colW, size), x, size, r.opts.TextColor, nil)
		r.cursor.Advance(3)

	case content.KindQuote:
		qs := size + 1.5
		accent := r.opts.AccentColor
		r.flow(r.wrap(b.Spans, r.colW-6, qs), x+6, qs, accent, func(y, h float64) {
			r.setFillColor(accent)
			r.pdf.Rect(x, y, 1.2, h, "F")
		})
		r.cursor.Advance(3)

	case content.KindBullet, content.KindNumbered:
		r.drawList(b, x, size)
		r.cursor.Advance(2)
	}
}

func (r *vectorRenderer) drawList(b content.Block, x, size float64) {
	m := r.measurer(size)
	indent := 6.0
	if b.Kind == content.KindNumbered {
		for _, it := range b.Items {
			if w := m.Measure(it.Label, true) + 2.5; w > indent {
				indent = w
			}
		}
	}

	lh := r.opts.lineHeight(size)
	for _, it := range b.Items {
		lines := r.wrap(it.Spans, r.colW-indent, size)
		if len(lines) == 0 {
			lines = []textlayout.Line{{}}
		}
		for i, line := range lines {
			r.cursor.Reserve(lh)
			baseline := r.cursor.Y + lh*0.72
			if i == 0 {
				marker := bulletGlyph
				if b.Kind == content.KindNumbered {
					marker = it.Label
				}
				r.setFont(b.Kind == content.KindNumbered, size)
				r.setTextColor(r.opts.AccentColor)
				r.pdf.Text(x, baseline, marker)
			}
			r.setTextColor(r.opts.TextColor)
			r.drawLine(line, x+indent, baseline, size)
			r.cursor.Advance(lh)
		}
		r.cursor.Advance(1)
	}
}

func (r *vectorRenderer) drawPullQuote(text string, x float64) {
	size := r.opts.FontSize + 3
	width := r.colW
	spans := content.ParseInline("“" + quoteText(text) + "”")
	lines := r.wrap(spans, width-12, size)
	panel := r.opts.PanelColor
	accent := r.opts.AccentColor

	r.cursor.Advance(2)
	r.flow(lines, x+8, size, r.opts.PrimaryColor, func(y, h float64) {
		r.setFillColor(panel)
		r.pdf.Rect(x, y, width, h, "F")
		r.setFillColor(accent)
		r.pdf.Rect(x, y, 2, h, "F")
	})
	r.cursor.Advance(5)
}

// drawSidebar draws the statistic box and takeaways in the right column of
// the current page. Takeaways that do not fit are returned for the body.
func (r *vectorRenderer) drawSidebar(s section.ReportSection, x, y float64) []string {
	w := r.opts.SidebarWidth
	bottom := r.pageH - r.opts.Margins.Bottom
	size := r.opts.FontSize - 0.5
	lh := r.opts.lineHeight(size)

	if s.Statistic != nil {
		value, desc, boxH := r.statisticBox(s.Statistic, w)
		valueSize := statisticValueSize
		valueLH := r.opts.lineHeight(valueSize)

		r.setFillColor(r.opts.PanelColor)
		r.pdf.Rect(x, y, w, boxH, "F")
		r.setFillColor(r.opts.AccentColor)
		r.pdf.Rect(x, y, 1.8, boxH, "F")

		ty := y + 5
		r.setTextColor(r.opts.AccentColor)
		for _, line := range value {
			r.drawLine(line, x+6, ty+valueLH*0.72, valueSize)
			ty += valueLH
		}

		r.setTextColor(r.opts.MutedColor)
		for _, line := range desc {
			r.drawLine(line, x+6, ty+lh*0.72, size)
			ty += lh
		}
		y += boxH + 6
	}

	if len(s.KeyTakeaways) == 0 {
		return nil
	}

	headSize := r.opts.FontSize + 1
	headLH := r.opts.lineHeight(headSize)
	if y+headLH+lh > bottom {
		return s.KeyTakeaways
	}
	r.setFont(true, headSize)
	r.setTextColor(r.opts.PrimaryColor)
	r.pdf.Text(x, y+headLH*0.72, "Key Takeaways")
	y += headLH + 1

	for i, kt := range s.KeyTakeaways {
		lines := r.wrap(content.ParseInline(kt), w-5, size)
		if y+float64(len(lines))*lh > bottom {
			return s.KeyTakeaways[i:]
		}
		r.setFont(false, size)
		r.setTextColor(r.opts.AccentColor)
		r.pdf.Text(x, y+lh*0.72, bulletGlyph)
		r.setTextColor(r.opts.TextColor)
		for _, line := range lines {
			r.drawLine(line, x+5, y+lh*0.72, size)
			y += lh
		}
		y += 1.5
	}
	return nil
}

const statisticValueSize = 24.0

// statisticBox wraps the statistic value and description to the inner width
// of a sidebar w wide and returns the height of the box holding both
func (r *vectorRenderer) statisticBox(stat *section.Statistic, w float64) (value, desc []textlayout.Line, boxH float64) {
	size := r.opts.FontSize - 0.5
	value = r.wrap([]textlayout.Span{{Text: stat.Value, Bold: true}}, w-10, statisticValueSize)
	desc = r.wrap([]textlayout.Span{{Text: stat.Description}}, w-10, size)
	boxH = 6 + float64(len(value))*r.opts.lineHeight(statisticValueSize) + float64(len(desc))*r.opts.lineHeight(size) + 5
	return value, desc, boxH
}

// drawBanner fills the top of the page with the banner image, or a gradient
// placeholder, and lays the section title over a dark band. It returns the
// banner bottom.
func (r *vectorRenderer) drawBanner(title string, banner image.Image) float64 {
	h := r.opts.BannerHeight
	p, a := r.opts.PrimaryColor, r.opts.AccentColor

	placed := false
	if banner != nil {
		if err := r.placeImage(banner, 0, 0, r.pageW, h); err != nil {
			r.logger.Warn("Banner could not be embedded, using placeholder", zap.String("section", title), zap.Error(err))
		} else {
			placed = true
		}
	}
	if !placed {
		r.pdf.LinearGradient(0, 0, r.pageW, h, p.R, p.G, p.B, a.R, a.G, a.B, 0, 0, 1, 1)
		r.pdf.SetAlpha(0.12, "Normal")
		r.pdf.SetFillColor(255, 255, 255)
		r.pdf.Circle(r.pageW*0.82, h*0.2, h*0.55, "F")
		r.pdf.Circle(r.pageW*0.62, h*1.05, h*0.4, "F")
		r.pdf.SetAlpha(1, "Normal")
	}

	size := r.opts.HeadingFontSize + 8
	lh := r.opts.lineHeight(size)
	lines := r.wrap([]textlayout.Span{{Text: title, Bold: true}}, r.contentWidth(), size)
	bandH := float64(len(lines))*lh + 10
	bandY := h - bandH

	r.pdf.SetAlpha(0.55, "Normal")
	r.pdf.SetFillColor(0, 0, 0)
	r.pdf.Rect(0, bandY, r.pageW, bandH, "F")
	r.pdf.SetAlpha(1, "Normal")

	r.pdf.SetTextColor(255, 255, 255)
	y := bandY + 5
	for _, line := range lines {
		r.drawLine(line, r.opts.Margins.Left, y+lh*0.72, size)
		y += lh
	}
	return h
}

func (r *vectorRenderer) placeImage(img image.Image, x, y, w, h float64) error {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: r.opts.JPEGQuality}); err != nil {
		return err
	}
	r.images++
	name := fmt.Sprintf("img-%03d", r.images)
	opts := gofpdf.ImageOptions{ImageType: "JPG", ReadDpi: false}
	r.pdf.RegisterImageOptionsReader(name, opts, &buf)
	if r.pdf.Err() {
		return r.pdf.Error()
	}
	r.pdf.ImageOptions(name, x, y, w, h, false, opts, 0, "")
	return nil
}

func (r *vectorRenderer) drawCover(c section.Cover) {
	r.pdf.AddPage()
	p, a := r.opts.PrimaryColor, r.opts.AccentColor
	r.pdf.LinearGradient(0, 0, r.pageW, r.pageH, p.R, p.G, p.B, a.R, a.G, a.B, 0, 0, 1, 1)

	left := r.opts.Margins.Left
	width := r.contentWidth()
	r.pdf.SetTextColor(255, 255, 255)

	if c.BusinessName != "" {
		r.setFont(true, 12)
		r.pdf.Text(left, r.opts.Margins.Top+8, strings.ToUpper(c.BusinessName))
	}

	y := r.pageH * 0.36
	titleSize := r.opts.TitleFontSize
	titleLH := r.opts.lineHeight(titleSize)
	for _, line := range r.wrap([]textlayout.Span{{Text: c.Title, Bold: true}}, width, titleSize) {
		r.drawLine(line, left, y+titleLH*0.72, titleSize)
		y += titleLH
	}

	if c.Subtitle != "" {
		y += 2
		subSize := 14.0
		subLH := r.opts.lineHeight(subSize)
		for _, line := range r.wrap([]textlayout.Span{{Text: c.Subtitle}}, width, subSize) {
			r.drawLine(line, left, y+subLH*0.72, subSize)
			y += subLH
		}
	}

	y += 8
	r.pdf.SetDrawColor(255, 255, 255)
	r.pdf.SetLineWidth(0.6)
	r.pdf.Line(left, y, left+40, y)
	y += 10

	r.setFont(false, 11)
	for _, meta := range []struct{ label, value string }{
		{"Prepared for", c.PreparedFor},
		{"Prepared by", c.PreparedBy},
	} {
		if meta.value == "" {
			continue
		}
		r.pdf.Text(left, y, meta.label+": "+meta.value)
		y += 7
	}
	if !c.Date.IsZero() {
		r.pdf.Text(left, y, c.Date.Format(r.opts.DateFormat))
	}
}

func (r *vectorRenderer) drawClosingPage(f section.Footer) {
	r.pdf.AddPage()
	r.setFillColor(r.opts.PanelColor)
	r.pdf.Rect(0, 0, r.pageW, r.pageH, "F")

	left := r.opts.Margins.Left
	width := r.contentWidth()
	y := r.pageH * 0.3

	headSize := r.opts.TitleFontSize - 4
	headLH := r.opts.lineHeight(headSize)
	r.setTextColor(r.opts.PrimaryColor)
	for _, line := range r.wrap([]textlayout.Span{{Text: f.Heading, Bold: true}}, width, headSize) {
		r.drawLine(line, left, y+headLH*0.72, headSize)
		y += headLH
	}
	y += 4

	size := r.opts.FontSize + 1
	lh := r.opts.lineHeight(size)
	r.setTextColor(r.opts.TextColor)
	for _, line := range r.wrap(content.ParseInline(f.Text), width, size) {
		r.drawLine(line, left, y+lh*0.72, size)
		y += lh
	}
	y += 6

	r.setTextColor(r.opts.AccentColor)
	for _, contact := range []string{f.ContactEmail, f.Website} {
		if contact == "" {
			continue
		}
		r.setFont(true, size)
		r.pdf.Text(left, y+lh*0.72, contact)
		y += lh
	}
}

func (r *vectorRenderer) pageFooter() {
	n := r.pdf.PageNo()
	if n <= 1 {
		return
	}
	r.setFont(false, 8)
	r.setTextColor(r.opts.MutedColor)
	y := r.pageH - r.opts.Margins.Bottom/2
	if r.businessName != "" {
		r.pdf.Text(r.opts.Margins.Left, y, r.businessName)
	}
	label := fmt.Sprintf("Page %d", n)
	w := r.pdf.GetStringWidth(label)
	r.pdf.Text(r.pageW-r.opts.Margins.Right-w, y, label)
}

func boldSpans(spans []textlayout.Span) []textlayout.Span {
	out := make([]textlayout.Span, len(spans))
	for i, s := range spans {
		out[i] = textlayout.Span{Text: s.Text, Bold: true}
	}
	return out
}

func takeawaysBlock(items []string) content.Block {
	b := content.Block{Kind: content.KindBullet}
	for _, kt := range items {
		b.Items = append(b.Items, content.Item{Spans: content.ParseInline(kt)})
	}
	return b
}
