package browser

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"go.uber.org/zap"
)

// ErrUnavailable is returned when no Chromium binary can be started
var ErrUnavailable = errors.New("headless browser unavailable")

// Config controls how Chromium is located and bounded
type Config struct {
	Bin           string        `json:"bin"`
	NoSandbox     bool          `json:"no_sandbox"`
	AllowDownload bool          `json:"allow_download"`
	LaunchTimeout time.Duration `json:"launch_timeout"`
	LoadTimeout   time.Duration `json:"load_timeout"`
	ImageTimeout  time.Duration `json:"image_timeout"`
	PrintTimeout  time.Duration `json:"print_timeout"`
}

func (c Config) withDefaults() Config {
	if c.LaunchTimeout <= 0 {
		c.LaunchTimeout = 30 * time.Second
	}
	if c.LoadTimeout <= 0 {
		c.LoadTimeout = 15 * time.Second
	}
	if c.ImageTimeout <= 0 {
		c.ImageTimeout = 10 * time.Second
	}
	if c.PrintTimeout <= 0 {
		c.PrintTimeout = 60 * time.Second
	}
	return c
}

// Engine is one headless Chromium process. It is not shared between
// documents; Close kills the process.
type Engine struct {
	cfg      Config
	launcher *launcher.Launcher
	browser  *rod.Browser
	logger   *zap.Logger
}

// waitImages resolves once every img element has loaded or failed
const waitImages = `() => Promise.all(Array.from(document.images)
	.filter(img => !img.complete)
	.map(img => new Promise(resolve => { img.onload = img.onerror = resolve; })))`

// Launch starts Chromium and connects to it
func Launch(ctx context.Context, cfg Config, logger *zap.Logger) (*Engine, error) {
	cfg = cfg.withDefaults()

	bin := cfg.Bin
	if bin == "" {
		if path, found := launcher.LookPath(); found {
			bin = path
		} else if !cfg.AllowDownload {
			return nil, fmt.Errorf("%w: no chromium binary found", ErrUnavailable)
		}
	}

	launchCtx, cancel := context.WithTimeout(ctx, cfg.LaunchTimeout)
	defer cancel()

	l := launcher.New().
		Context(launchCtx).
		Headless(true).
		NoSandbox(cfg.NoSandbox).
		Set("disable-gpu").
		Set("hide-scrollbars")
	if bin != "" {
		l = l.Bin(bin)
	}

	controlURL, err := l.Launch()
	if err != nil {
		l.Kill()
		l.Cleanup()
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	b := rod.New().ControlURL(controlURL)
	if err := b.Connect(); err != nil {
		l.Kill()
		l.Cleanup()
		return nil, fmt.Errorf("%w: connect: %v", ErrUnavailable, err)
	}

	logger.Debug("Chromium started", zap.String("bin", bin))
	return &Engine{cfg: cfg, launcher: l, browser: b, logger: logger}, nil
}

// PrintOptions are per-document print settings
type PrintOptions struct {
	// PaperWidth and PaperHeight are in inches; CSS @page wins when set
	PaperWidth  float64
	PaperHeight float64
}

// PrintPDF loads html into a fresh tab, waits for images within the image
// timeout, and prints with CSS page sizes
func (e *Engine) PrintPDF(ctx context.Context, html string, opts PrintOptions) ([]byte, error) {
	page, err := e.browser.Context(ctx).Page(proto.TargetCreateTarget{URL: "about:blank"})
	if err != nil {
		return nil, fmt.Errorf("open page: %w", err)
	}
	defer func() {
		if err := page.Close(); err != nil {
			e.logger.Debug("Close page failed", zap.Error(err))
		}
	}()

	if err := page.SetDocumentContent(html); err != nil {
		return nil, fmt.Errorf("set content: %w", err)
	}
	loading := page.Timeout(e.cfg.LoadTimeout)
	err = loading.WaitLoad()
	loading.CancelTimeout()
	if err != nil {
		return nil, fmt.Errorf("wait load: %w", err)
	}

	// A slow image is not fatal; print what has loaded
	start := time.Now()
	waiting := page.Timeout(e.cfg.ImageTimeout)
	_, err = waiting.Eval(waitImages)
	waiting.CancelTimeout()
	if err != nil {
		e.logger.Warn("Images did not finish loading before print",
			zap.Duration("waited", time.Since(start)),
			zap.Error(err))
	}

	zero := 0.0
	req := &proto.PagePrintToPDF{
		PrintBackground:   true,
		PreferCSSPageSize: true,
		MarginTop:         &zero,
		MarginBottom:      &zero,
		MarginLeft:        &zero,
		MarginRight:       &zero,
	}
	if opts.PaperWidth > 0 && opts.PaperHeight > 0 {
		w, h := opts.PaperWidth, opts.PaperHeight
		req.PaperWidth = &w
		req.PaperHeight = &h
	}

	printing := page.Timeout(e.cfg.PrintTimeout)
	defer printing.CancelTimeout()
	stream, err := printing.PDF(req)
	if err != nil {
		return nil, fmt.Errorf("print: %w", err)
	}
	data, err := io.ReadAll(stream)
	if err != nil {
		return nil, fmt.Errorf("read pdf stream: %w", err)
	}
	return data, nil
}

// Close disconnects and kills the browser process
func (e *Engine) Close() error {
	var err error
	if e.browser != nil {
		err = e.browser.Close()
		e.browser = nil
	}
	if e.launcher != nil {
		e.launcher.Kill()
		e.launcher.Cleanup()
		e.launcher = nil
	}
	return err
}
