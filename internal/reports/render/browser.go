package render

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"ai-opportunities/report-portal/report-portal-backend/internal/reports/section"
	"ai-opportunities/report-portal/report-portal-backend/pkg/browser"
)

// PrintEngine turns a complete HTML document into PDF bytes
type PrintEngine interface {
	PrintPDF(ctx context.Context, html string, opts browser.PrintOptions) ([]byte, error)
	Close() error
}

// EngineFactory starts a print engine for one document
type EngineFactory func(ctx context.Context) (PrintEngine, error)

// ChromiumEngines launches a fresh headless Chromium per document
func ChromiumEngines(cfg browser.Config, logger *zap.Logger) EngineFactory {
	return func(ctx context.Context) (PrintEngine, error) {
		engine, err := browser.Launch(ctx, cfg, logger)
		if err != nil {
			return nil, err
		}
		return engine, nil
	}
}

// browserRenderer collects the document and prints it through Chromium.
// The engine is held from Begin until Close.
type browserRenderer struct {
	opts    Options
	engines EngineFactory
	logger  *zap.Logger

	engine PrintEngine
	doc    Document
	begun  bool
}

func newBrowserRenderer(opts Options, engines EngineFactory, logger *zap.Logger) *browserRenderer {
	return &browserRenderer{opts: opts.withDefaults(), engines: engines, logger: logger}
}

func (r *browserRenderer) Backend() Backend { return BackendBrowser }

func (r *browserRenderer) Begin(ctx context.Context, cover section.Cover) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if r.engines == nil {
		return &section.ResourceError{Resource: "chromium", Essential: true, Err: browser.ErrUnavailable}
	}
	engine, err := r.engines(ctx)
	if err != nil {
		return &section.ResourceError{Resource: "chromium", Essential: true, Err: err}
	}
	r.engine = engine
	r.doc = Document{Cover: cover}
	r.begun = true
	return nil
}

func (r *browserRenderer) Section(ctx context.Context, s PreparedSection) error {
	if !r.begun {
		return &section.RenderError{Backend: string(BackendBrowser), Op: "section", Err: fmt.Errorf("document not started")}
	}
	r.doc.Sections = append(r.doc.Sections, s)
	return ctx.Err()
}

func (r *browserRenderer) Footer(ctx context.Context, f section.Footer) error {
	if !r.begun {
		return &section.RenderError{Backend: string(BackendBrowser), Op: "footer", Err: fmt.Errorf("document not started")}
	}
	r.doc.Footer = f
	return ctx.Err()
}

func (r *browserRenderer) Finish(ctx context.Context) ([]byte, error) {
	if !r.begun {
		return nil, &section.RenderError{Backend: string(BackendBrowser), Op: "finish", Err: fmt.Errorf("document not started")}
	}

	html, err := BuildHTML(r.doc, r.opts)
	if err != nil {
		return nil, err
	}
	if srcs, err := ImageSources(html); err == nil {
		r.logger.Debug("Printing HTML document",
			zap.Int("sections", len(r.doc.Sections)),
			zap.Int("images", len(srcs)),
			zap.Int("bytes", len(html)))
	}

	w, h := r.opts.pageSizeMM()
	data, err := r.engine.PrintPDF(ctx, html, browser.PrintOptions{PaperWidth: w / 25.4, PaperHeight: h / 25.4})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return nil, err
		}
		return nil, &section.RenderError{Backend: string(BackendBrowser), Op: "print", Err: err}
	}
	if len(data) == 0 {
		return nil, &section.RenderError{Backend: string(BackendBrowser), Op: "print", Err: fmt.Errorf("empty document")}
	}
	return data, nil
}

// Close releases the engine
func (r *browserRenderer) Close() error {
	r.begun = false
	r.doc = Document{}
	if r.engine == nil {
		return nil
	}
	err := r.engine.Close()
	r.engine = nil
	return err
}
