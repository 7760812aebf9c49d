package render

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"ai-opportunities/report-portal/report-portal-backend/internal/reports/content"
	"ai-opportunities/report-portal/report-portal-backend/internal/reports/section"
)

var pdfMagic = []byte("%PDF-")

// Assembler turns sections into a finished document
type Assembler struct {
	opts       Options
	banners    *BannerLoader
	engines    EngineFactory
	classifier content.Classifier
	fallback   Backend
	logger     *zap.Logger
	now        func() time.Time
}

// AssemblerOption customises an Assembler
type AssemblerOption func(*Assembler)

// WithFallback sets the backend used when the requested one cannot start
// because an essential resource is missing
func WithFallback(b Backend) AssemblerOption {
	return func(a *Assembler) { a.fallback = b }
}

// WithClassifier overrides the content classifier
func WithClassifier(c content.Classifier) AssemblerOption {
	return func(a *Assembler) { a.classifier = c }
}

// WithClock overrides the clock used for covers without a date
func WithClock(now func() time.Time) AssemblerOption {
	return func(a *Assembler) { a.now = now }
}

// NewAssembler creates an assembler. banners and engines may be nil; without
// a banner loader every section gets a placeholder, without engines the
// browser backend reports a missing resource.
func NewAssembler(opts Options, banners *BannerLoader, engines EngineFactory, logger *zap.Logger, options ...AssemblerOption) *Assembler {
	a := &Assembler{
		opts:    opts.withDefaults(),
		banners: banners,
		engines: engines,
		logger:  logger,
		now:     time.Now,
	}
	for _, o := range options {
		o(a)
	}
	return a
}

// Prepare validates, sanitizes and classifies sections and loads their
// banners. Nothing is rendered when it returns an error.
func (a *Assembler) Prepare(ctx context.Context, cover section.Cover, sections []section.ReportSection, footer section.Footer) (Document, error) {
	if err := section.Validate(sections); err != nil {
		return Document{}, err
	}

	clean := make([]section.ReportSection, len(sections))
	for i, s := range sections {
		clean[i] = sanitizeSection(s)
	}
	// sanitizing can empty or merge titles
	if err := section.Validate(clean); err != nil {
		return Document{}, err
	}

	if cover.Date.IsZero() {
		cover.Date = a.now().UTC().Truncate(time.Second)
	}
	doc := Document{
		Cover:  sanitizeCover(cover),
		Footer: sanitizeFooter(footer),
	}

	w, _ := a.opts.pageSizeMM()
	banners := a.banners.Load(ctx, clean, a.opts.BannerHeight/w)
	for i, s := range clean {
		doc.Sections = append(doc.Sections, PreparedSection{
			Section: s,
			Blocks:  a.classifier.Classify(s.MainContent),
			Banner:  banners[i],
		})
	}
	return doc, nil
}

// Assemble renders the cover, one page group per section in order, and the
// closing page with the requested backend
func (a *Assembler) Assemble(ctx context.Context, cover section.Cover, sections []section.ReportSection, footer section.Footer, backend Backend) ([]byte, error) {
	doc, err := a.Prepare(ctx, cover, sections, footer)
	if err != nil {
		return nil, err
	}
	return a.Render(ctx, doc, backend)
}

// Render draws a prepared document, falling back once when the primary
// backend is missing an essential resource
func (a *Assembler) Render(ctx context.Context, doc Document, backend Backend) ([]byte, error) {
	start := time.Now()
	out, err := a.renderWith(ctx, doc, backend)
	if err != nil && section.IsEssentialResource(err) && a.fallback != "" && a.fallback != backend {
		a.logger.Warn("Backend unavailable, using fallback",
			zap.String("backend", string(backend)),
			zap.String("fallback", string(a.fallback)),
			zap.Error(err))
		backend = a.fallback
		out, err = a.renderWith(ctx, doc, backend)
	}
	if err != nil {
		return nil, err
	}

	a.logger.Info("Report rendered",
		zap.String("backend", string(backend)),
		zap.String("business", doc.Cover.BusinessName),
		zap.Int("sections", len(doc.Sections)),
		zap.Int("bytes", len(out)),
		zap.Duration("elapsed", time.Since(start)))
	return out, nil
}

// HTML returns the HTML rendition used for previews and persistence
func (a *Assembler) HTML(ctx context.Context, cover section.Cover, sections []section.ReportSection, footer section.Footer) (string, error) {
	doc, err := a.Prepare(ctx, cover, sections, footer)
	if err != nil {
		return "", err
	}
	return BuildHTML(doc, a.opts)
}

// Options returns the effective page options
func (a *Assembler) Options() Options { return a.opts }

func (a *Assembler) newRenderer(b Backend) (Renderer, error) {
	switch b {
	case BackendVector:
		return newVectorRenderer(a.opts, a.logger), nil
	case BackendRaster:
		return newRasterRenderer(a.opts, a.logger), nil
	case BackendBrowser:
		return newBrowserRenderer(a.opts, a.engines, a.logger), nil
	}
	return nil, &section.RenderError{Backend: string(b), Op: "select", Err: fmt.Errorf("unknown backend")}
}

func (a *Assembler) renderWith(ctx context.Context, doc Document, b Backend) (out []byte, err error) {
	r, err := a.newRenderer(b)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := r.Close(); cerr != nil {
			a.logger.Warn("Renderer close failed", zap.String("backend", string(b)), zap.Error(cerr))
		}
	}()

	return drive(ctx, r, doc)
}

// drive runs one renderer through the document and checks its output
func drive(ctx context.Context, r Renderer, doc Document) ([]byte, error) {
	if err := r.Begin(ctx, doc.Cover); err != nil {
		return nil, err
	}
	for _, s := range doc.Sections {
		if err := r.Section(ctx, s); err != nil {
			return nil, err
		}
	}
	if err := r.Footer(ctx, doc.Footer); err != nil {
		return nil, err
	}
	out, err := r.Finish(ctx)
	if err != nil {
		return nil, err
	}
	if len(out) == 0 || !bytes.HasPrefix(out, pdfMagic) {
		return nil, &section.RenderError{Backend: string(r.Backend()), Op: "verify", Err: fmt.Errorf("output is not a PDF document")}
	}
	return out, nil
}

func sanitizeSection(s section.ReportSection) section.ReportSection {
	out := section.ReportSection{
		Title:       content.Sanitize(s.Title),
		MainContent: content.Sanitize(s.MainContent),
		ImageURL:    s.ImageURL,
		PullQuote:   content.Sanitize(s.PullQuote),
	}
	if s.Statistic != nil {
		out.Statistic = &section.Statistic{
			Value:       content.Sanitize(s.Statistic.Value),
			Description: content.Sanitize(s.Statistic.Description),
		}
	}
	for _, kt := range s.KeyTakeaways {
		out.KeyTakeaways = append(out.KeyTakeaways, content.Sanitize(kt))
	}
	return out
}

func sanitizeCover(c section.Cover) section.Cover {
	c.BusinessName = content.Sanitize(c.BusinessName)
	c.Title = content.Sanitize(c.Title)
	c.Subtitle = content.Sanitize(c.Subtitle)
	c.PreparedFor = content.Sanitize(c.PreparedFor)
	c.PreparedBy = content.Sanitize(c.PreparedBy)
	return c
}

func sanitizeFooter(f section.Footer) section.Footer {
	f.Heading = content.Sanitize(f.Heading)
	f.Text = content.Sanitize(f.Text)
	return f
}
