package render

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"math"

	"github.com/jung-kurt/gofpdf"
	"go.uber.org/zap"
	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"

	"ai-opportunities/report-portal/report-portal-backend/internal/reports/content"
	"ai-opportunities/report-portal/report-portal-backend/internal/reports/section"
	"ai-opportunities/report-portal/report-portal-backend/pkg/textlayout"
)

// rasterRenderer paints each page group onto one tall bitmap and slices it
// into JPEG pages
type rasterRenderer struct {
	opts   Options
	logger *zap.Logger

	regular, bold *opentype.Font
	faces         map[faceKey]font.Face

	pdf          *gofpdf.Fpdf
	mmW, mmH     float64
	pageW, pageH int
	slices       int
	businessName string
}

type faceKey struct {
	bold bool
	size float64
}

// canvasOp paints onto the group canvas once its final height is known
type canvasOp func(dst *image.RGBA)

type group struct {
	ops []canvasOp
	y   float64
}

func (g *group) add(op canvasOp) { g.ops = append(g.ops, op) }

func newRasterRenderer(opts Options, logger *zap.Logger) *rasterRenderer {
	return &rasterRenderer{opts: opts.withDefaults(), logger: logger, faces: make(map[faceKey]font.Face)}
}

func (r *rasterRenderer) Backend() Backend { return BackendRaster }

func (r *rasterRenderer) Begin(ctx context.Context, cover section.Cover) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	var err error
	if r.regular, err = opentype.Parse(goregular.TTF); err != nil {
		return &section.ResourceError{Resource: "go regular font", Essential: true, Err: err}
	}
	if r.bold, err = opentype.Parse(gobold.TTF); err != nil {
		return &section.ResourceError{Resource: "go bold font", Essential: true, Err: err}
	}

	r.mmW, r.mmH = r.opts.pageSizeMM()
	r.pageW = int(math.Round(r.px(r.mmW)))
	r.pageH = int(math.Round(r.px(r.mmH)))

	pdf := gofpdf.New("P", "mm", r.opts.PageSize, "")
	pdf.SetMargins(0, 0, 0)
	pdf.SetAutoPageBreak(false, 0)
	pdf.SetCompression(r.opts.Compress)
	pdf.SetCatalogSort(true)
	if !cover.Date.IsZero() {
		pdf.SetCreationDate(cover.Date)
	}
	pdf.SetTitle(cover.Title, true)
	pdf.SetCreator("report-portal", true)
	r.pdf = pdf
	r.businessName = cover.BusinessName

	if r.opts.IncludePageNum {
		tr := pdf.UnicodeTranslatorFromDescriptor("")
		pdf.SetFooterFunc(func() {
			n := pdf.PageNo()
			if n <= 1 {
				return
			}
			pdf.SetFont("Helvetica", "", 8)
			c := r.opts.MutedColor
			pdf.SetTextColor(c.R, c.G, c.B)
			label := fmt.Sprintf("Page %d", n)
			pdf.Text(r.mmW-r.opts.Margins.Right-pdf.GetStringWidth(label), r.mmH-r.opts.Margins.Bottom/2, tr(label))
		})
	}

	g, err := r.coverGroup(cover)
	if err != nil {
		return err
	}
	return r.emit(g, true)
}

func (r *rasterRenderer) Section(ctx context.Context, s PreparedSection) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if r.pdf == nil {
		return &section.RenderError{Backend: string(BackendRaster), Op: "section", Err: fmt.Errorf("document not started")}
	}
	g, err := r.sectionGroup(s)
	if err != nil {
		return err
	}
	return r.emit(g, false)
}

func (r *rasterRenderer) Footer(ctx context.Context, f section.Footer) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if r.pdf == nil {
		return &section.RenderError{Backend: string(BackendRaster), Op: "footer", Err: fmt.Errorf("document not started")}
	}
	g, err := r.closingGroup(f)
	if err != nil {
		return err
	}
	return r.emit(g, true)
}

func (r *rasterRenderer) Finish(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if r.pdf == nil {
		return nil, &section.RenderError{Backend: string(BackendRaster), Op: "finish", Err: fmt.Errorf("document not started")}
	}
	var buf bytes.Buffer
	if err := r.pdf.Output(&buf); err != nil {
		return nil, &section.RenderError{Backend: string(BackendRaster), Op: "output", Err: err}
	}
	if buf.Len() == 0 {
		return nil, &section.RenderError{Backend: string(BackendRaster), Op: "output", Err: fmt.Errorf("empty document")}
	}
	return buf.Bytes(), nil
}

// Close releases the font faces
func (r *rasterRenderer) Close() error {
	var first error
	for k, f := range r.faces {
		if err := f.Close(); err != nil && first == nil {
			first = err
		}
		delete(r.faces, k)
	}
	r.pdf = nil
	return first
}

// px converts millimetres to canvas pixels
func (r *rasterRenderer) px(mm float64) float64 {
	return mm / 25.4 * r.opts.RasterDPI
}

func (r *rasterRenderer) lineHeight(size float64) float64 {
	return size / 72 * r.opts.RasterDPI * r.opts.LineSpacing
}

func (r *rasterRenderer) face(bold bool, size float64) (font.Face, error) {
	key := faceKey{bold: bold, size: size}
	if f, ok := r.faces[key]; ok {
		return f, nil
	}
	src := r.regular
	if bold {
		src = r.bold
	}
	f, err := opentype.NewFace(src, &opentype.FaceOptions{Size: size, DPI: r.opts.RasterDPI, Hinting: font.HintingFull})
	if err != nil {
		return nil, &section.ResourceError{Resource: "font face", Essential: true, Err: err}
	}
	r.faces[key] = f
	return f, nil
}

// measurer measures in pixels; face errors surface from the draw calls
func (r *rasterRenderer) measurer(size float64) textlayout.Measurer {
	return textlayout.MeasureFunc(func(text string, bold bool) float64 {
		f, err := r.face(bold, size)
		if err != nil {
			return 0
		}
		return float64(font.MeasureString(f, text)) / 64
	})
}

func (r *rasterRenderer) wrap(spans []textlayout.Span, width, size float64) []textlayout.Line {
	return textlayout.WrapSpans(spans, width, r.measurer(size))
}

// lines queues wrapped text starting at the group's y
func (r *rasterRenderer) lines(g *group, lines []textlayout.Line, x, size float64, c PDFColor, decorate func(y, h float64)) error {
	lh := r.lineHeight(size)
	space := r.measurer(size).Measure(" ", false)
	for _, line := range lines {
		if decorate != nil {
			decorate(g.y, lh)
		}
		lx := x
		for _, run := range styleRuns(line, space) {
			f, err := r.face(run.bold, size)
			if err != nil {
				return err
			}
			g.add(textOp(f, run.text, lx, g.y+lh*0.75, c))
			lx += run.width + space
		}
		g.y += lh
	}
	return nil
}

func (r *rasterRenderer) coverGroup(c section.Cover) (*group, error) {
	g := &group{}
	w, h := float64(r.pageW), float64(r.pageH)
	g.add(gradientOp(0, 0, w, h, r.opts.PrimaryColor, r.opts.AccentColor))

	white := PDFColor{R: 255, G: 255, B: 255}
	left := r.px(r.opts.Margins.Left)
	width := w - left - r.px(r.opts.Margins.Right)

	if c.BusinessName != "" {
		g.y = r.px(r.opts.Margins.Top)
		if err := r.lines(g, r.wrap([]textlayout.Span{{Text: c.BusinessName, Bold: true}}, width, 12), left, 12, white, nil); err != nil {
			return nil, err
		}
	}

	g.y = h * 0.36
	if err := r.lines(g, r.wrap([]textlayout.Span{{Text: c.Title, Bold: true}}, width, r.opts.TitleFontSize), left, r.opts.TitleFontSize, white, nil); err != nil {
		return nil, err
	}
	if c.Subtitle != "" {
		if err := r.lines(g, r.wrap([]textlayout.Span{{Text: c.Subtitle}}, width, 14), left, 14, white, nil); err != nil {
			return nil, err
		}
	}
	g.y += r.px(8)
	g.add(rectOp(left, g.y, r.px(40), r.px(0.6), white, 255))
	g.y += r.px(6)

	var meta []string
	if c.PreparedFor != "" {
		meta = append(meta, "Prepared for: "+c.PreparedFor)
	}
	if c.PreparedBy != "" {
		meta = append(meta, "Prepared by: "+c.PreparedBy)
	}
	if !c.Date.IsZero() {
		meta = append(meta, c.Date.Format(r.opts.DateFormat))
	}
	for _, m := range meta {
		if err := r.lines(g, r.wrap([]textlayout.Span{{Text: m}}, width, 11), left, 11, white, nil); err != nil {
			return nil, err
		}
	}
	return g, nil
}

func (r *rasterRenderer) sectionGroup(s PreparedSection) (*group, error) {
	g := &group{}
	w := float64(r.pageW)
	bannerH := r.px(r.opts.BannerHeight)

	if s.Banner != nil {
		banner := s.Banner
		g.add(func(dst *image.RGBA) {
			rect := image.Rect(0, 0, r.pageW, int(bannerH))
			draw.CatmullRom.Scale(dst, rect, banner, banner.Bounds(), draw.Src, nil)
		})
	} else {
		g.add(gradientOp(0, 0, w, bannerH, r.opts.PrimaryColor, r.opts.AccentColor))
	}

	left := r.px(r.opts.Margins.Left)
	contentW := w - left - r.px(r.opts.Margins.Right)

	titleSize := r.opts.HeadingFontSize + 8
	titleLines := r.wrap([]textlayout.Span{{Text: s.Section.Title, Bold: true}}, contentW, titleSize)
	bandH := float64(len(titleLines))*r.lineHeight(titleSize) + r.px(10)
	g.add(rectOp(0, bannerH-bandH, w, bandH, PDFColor{}, 140))
	g.y = bannerH - bandH + r.px(5)
	if err := r.lines(g, titleLines, left, titleSize, PDFColor{R: 255, G: 255, B: 255}, nil); err != nil {
		return nil, err
	}

	g.y = bannerH + r.px(8)
	colW := contentW
	sidebarEnd := g.y
	if s.Section.HasSidebar() {
		colW -= r.px(r.opts.SidebarWidth + r.opts.Gutter)
		var err error
		sidebarEnd, err = r.sidebar(g, s.Section, left+colW+r.px(r.opts.Gutter))
		if err != nil {
			return nil, err
		}
	}

	pulled := false
	for _, b := range s.Blocks {
		if err := r.block(g, b, left, colW); err != nil {
			return nil, err
		}
		if !pulled && b.Kind == content.KindParagraph && s.Section.PullQuote != "" {
			if err := r.pullQuote(g, s.Section.PullQuote, left, colW); err != nil {
				return nil, err
			}
			pulled = true
		}
	}
	if !pulled && s.Section.PullQuote != "" {
		if err := r.pullQuote(g, s.Section.PullQuote, left, colW); err != nil {
			return nil, err
		}
	}

	g.y = math.Max(g.y, sidebarEnd) + r.px(r.opts.Margins.Bottom)
	return g, nil
}

// sidebar queues the statistic box and takeaways on a private y and
// returns where the column ends
func (r *rasterRenderer) sidebar(g *group, s section.ReportSection, x float64) (float64, error) {
	body := g.y
	defer func() { g.y = body }()

	w := r.px(r.opts.SidebarWidth)
	size := r.opts.FontSize - 0.5

	if s.Statistic != nil {
		top := g.y
		valueSize := 24.0
		value := r.wrap([]textlayout.Span{{Text: s.Statistic.Value, Bold: true}}, w-r.px(8), valueSize)
		desc := r.wrap([]textlayout.Span{{Text: s.Statistic.Description}}, w-r.px(10), size)
		boxH := r.px(6) + float64(len(value))*r.lineHeight(valueSize) + float64(len(desc))*r.lineHeight(size) + r.px(5)
		g.add(rectOp(x, top, w, boxH, r.opts.PanelColor, 255))
		g.add(rectOp(x, top, r.px(1.8), boxH, r.opts.AccentColor, 255))

		g.y = top + r.px(5)
		if err := r.lines(g, value, x+r.px(6), valueSize, r.opts.AccentColor, nil); err != nil {
			return 0, err
		}
		if err := r.lines(g, desc, x+r.px(6), size, r.opts.MutedColor, nil); err != nil {
			return 0, err
		}
		g.y = top + boxH + r.px(6)
	}

	if len(s.KeyTakeaways) > 0 {
		head := r.wrap([]textlayout.Span{{Text: "Key Takeaways", Bold: true}}, w, r.opts.FontSize+1)
		if err := r.lines(g, head, x, r.opts.FontSize+1, r.opts.PrimaryColor, nil); err != nil {
			return 0, err
		}
		indent := r.px(5)
		for _, kt := range s.KeyTakeaways {
			f, err := r.face(false, size)
			if err != nil {
				return 0, err
			}
			g.add(textOp(f, bulletGlyph, x, g.y+r.lineHeight(size)*0.75, r.opts.AccentColor))
			if err := r.lines(g, r.wrap(content.ParseInline(kt), w-indent, size), x+indent, size, r.opts.TextColor, nil); err != nil {
				return 0, err
			}
			g.y += r.px(1.5)
		}
	}
	return g.y, nil
}

func (r *rasterRenderer) block(g *group, b content.Block, x, width float64) error {
	size := r.opts.FontSize
	switch b.Kind {
	case content.KindHeading:
		g.y += r.px(3)
		if err := r.lines(g, r.wrap(boldSpans(b.Spans), width, r.opts.HeadingFontSize), x, r.opts.HeadingFontSize, r.opts.PrimaryColor, nil); err != nil {
			return err
		}
		g.y += r.px(1.5)

	case content.KindParagraph:
		if err := r.lines(g, r.wrap(b.Spans, width, size), x, size, r.opts.TextColor, nil); err != nil {
			return err
		}
		g.y += r.px(3)

	case content.KindQuote:
		qs := size + 1.5
		indent := r.px(6)
		bar := r.px(1.2)
		accent := r.opts.AccentColor
		err := r.lines(g, r.wrap(b.Spans, width-indent, qs), x+indent, qs, accent, func(y, h float64) {
			g.add(rectOp(x, y, bar, h, accent, 255))
		})
		if err != nil {
			return err
		}
		g.y += r.px(3)

	case content.KindBullet, content.KindNumbered:
		m := r.measurer(size)
		indent := r.px(6)
		if b.Kind == content.KindNumbered {
			for _, it := range b.Items {
				if w := m.Measure(it.Label, true) + r.px(2.5); w > indent {
					indent = w
				}
			}
		}
		for _, it := range b.Items {
			marker, bold := bulletGlyph, false
			if b.Kind == content.KindNumbered {
				marker, bold = it.Label, true
			}
			f, err := r.face(bold, size)
			if err != nil {
				return err
			}
			g.add(textOp(f, marker, x, g.y+r.lineHeight(size)*0.75, r.opts.AccentColor))
			if err := r.lines(g, r.wrap(it.Spans, width-indent, size), x+indent, size, r.opts.TextColor, nil); err != nil {
				return err
			}
			g.y += r.px(1)
		}
		g.y += r.px(2)
	}
	return nil
}

func (r *rasterRenderer) pullQuote(g *group, text string, x, width float64) error {
	size := r.opts.FontSize + 3
	panel, accent := r.opts.PanelColor, r.opts.AccentColor
	g.y += r.px(2)
	lines := r.wrap(content.ParseInline("“"+quoteText(text)+"”"), width-r.px(12), size)
	err := r.lines(g, lines, x+r.px(8), size, r.opts.PrimaryColor, func(y, h float64) {
		g.add(rectOp(x, y, width, h, panel, 255))
		g.add(rectOp(x, y, r.px(2), h, accent, 255))
	})
	g.y += r.px(5)
	return err
}

func (r *rasterRenderer) closingGroup(f section.Footer) (*group, error) {
	g := &group{}
	w, h := float64(r.pageW), float64(r.pageH)
	g.add(rectOp(0, 0, w, h, r.opts.PanelColor, 255))

	left := r.px(r.opts.Margins.Left)
	width := w - left - r.px(r.opts.Margins.Right)
	g.y = h * 0.3

	headSize := r.opts.TitleFontSize - 4
	if err := r.lines(g, r.wrap([]textlayout.Span{{Text: f.Heading, Bold: true}}, width, headSize), left, headSize, r.opts.PrimaryColor, nil); err != nil {
		return nil, err
	}
	g.y += r.px(4)
	size := r.opts.FontSize + 1
	if err := r.lines(g, r.wrap(content.ParseInline(f.Text), width, size), left, size, r.opts.TextColor, nil); err != nil {
		return nil, err
	}
	g.y += r.px(6)
	for _, contact := range []string{f.ContactEmail, f.Website} {
		if contact == "" {
			continue
		}
		if err := r.lines(g, r.wrap([]textlayout.Span{{Text: contact, Bold: true}}, width, size), left, size, r.opts.AccentColor, nil); err != nil {
			return nil, err
		}
	}
	return g, nil
}

// emit paints the group on a canvas and appends its slices as pages.
// Fixed groups always occupy exactly one page.
func (r *rasterRenderer) emit(g *group, fixed bool) error {
	height := r.pageH
	if !fixed && int(math.Ceil(g.y)) > height {
		height = int(math.Ceil(g.y))
	}

	canvas := image.NewRGBA(image.Rect(0, 0, r.pageW, height))
	draw.Draw(canvas, canvas.Bounds(), image.White, image.Point{}, draw.Src)
	for _, op := range g.ops {
		op(canvas)
	}

	for _, rect := range sliceRects(r.pageW, height, r.pageH) {
		var buf bytes.Buffer
		if err := jpeg.Encode(&buf, canvas.SubImage(rect), &jpeg.Options{Quality: r.opts.JPEGQuality}); err != nil {
			return &section.RenderError{Backend: string(BackendRaster), Op: "encode page", Err: err}
		}
		r.slices++
		name := fmt.Sprintf("page-%04d", r.slices)
		opts := gofpdf.ImageOptions{ImageType: "JPG"}

		r.pdf.AddPage()
		r.pdf.RegisterImageOptionsReader(name, opts, &buf)
		sliceH := float64(rect.Dy()) / float64(r.pageH) * r.mmH
		r.pdf.ImageOptions(name, 0, 0, r.mmW, sliceH, false, opts, 0, "")
		if r.pdf.Err() {
			return &section.RenderError{Backend: string(BackendRaster), Op: "place page", Err: r.pdf.Error()}
		}
	}
	return nil
}

// sliceRects cuts a canvas of the given height into page-high slices; the
// last slice keeps whatever remains
func sliceRects(width, height, pageH int) []image.Rectangle {
	if width <= 0 || height <= 0 || pageH <= 0 {
		return nil
	}
	n := (height + pageH - 1) / pageH
	rects := make([]image.Rectangle, 0, n)
	for i := 0; i < n; i++ {
		bottom := (i + 1) * pageH
		if bottom > height {
			bottom = height
		}
		rects = append(rects, image.Rect(0, i*pageH, width, bottom))
	}
	return rects
}

func nrgba(c PDFColor, alpha uint8) color.NRGBA {
	return color.NRGBA{R: uint8(c.R), G: uint8(c.G), B: uint8(c.B), A: alpha}
}

func rectOp(x, y, w, h float64, c PDFColor, alpha uint8) canvasOp {
	return func(dst *image.RGBA) {
		rect := image.Rect(int(x), int(y), int(math.Ceil(x+w)), int(math.Ceil(y+h)))
		draw.Draw(dst, rect, image.NewUniform(nrgba(c, alpha)), image.Point{}, draw.Over)
	}
}

func textOp(f font.Face, text string, x, baseline float64, c PDFColor) canvasOp {
	return func(dst *image.RGBA) {
		d := font.Drawer{
			Dst:  dst,
			Src:  image.NewUniform(nrgba(c, 255)),
			Face: f,
			Dot:  fixed.P(int(math.Round(x)), int(math.Round(baseline))),
		}
		d.DrawString(text)
	}
}

// gradientOp fills a rectangle with a diagonal blend between two colors
func gradientOp(x, y, w, h float64, from, to PDFColor) canvasOp {
	return func(dst *image.RGBA) {
		x0, y0 := int(x), int(y)
		x1, y1 := int(math.Ceil(x+w)), int(math.Ceil(y+h))
		b := dst.Bounds()
		for py := max(y0, b.Min.Y); py < min(y1, b.Max.Y); py++ {
			for px := max(x0, b.Min.X); px < min(x1, b.Max.X); px++ {
				t := (float64(px-x0)/w + float64(py-y0)/h) / 2
				dst.SetRGBA(px, py, color.RGBA{
					R: lerp(from.R, to.R, t),
					G: lerp(from.G, to.G, t),
					B: lerp(from.B, to.B, t),
					A: 255,
				})
			}
		}
	}
}

func lerp(a, b int, t float64) uint8 {
	return uint8(math.Round(float64(a) + (float64(b)-float64(a))*t))
}
