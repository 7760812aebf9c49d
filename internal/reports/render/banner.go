package render

import (
	"context"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"go.uber.org/zap"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
	"golang.org/x/sync/errgroup"

	"ai-opportunities/report-portal/report-portal-backend/internal/reports/section"
	"ai-opportunities/report-portal/report-portal-backend/pkg/retryhttp"
)

const maxBannerBytes = 15 << 20

// BannerConfig bounds banner fetching
type BannerConfig struct {
	Timeout     time.Duration `json:"timeout"`
	Retries     int           `json:"retries"`
	Concurrency int           `json:"concurrency"`
	// Width of the decoded banner in pixels; height follows the page aspect
	Width int `json:"width"`
}

// BannerLoader fetches and decodes section banner images. It never fails a
// render: any problem yields a nil image, which draws as a placeholder.
type BannerLoader struct {
	client *retryablehttp.Client
	cfg    BannerConfig
	logger *zap.Logger
}

// NewBannerLoader creates a loader using its own retrying HTTP client
func NewBannerLoader(cfg BannerConfig, logger *zap.Logger) *BannerLoader {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	if cfg.Width <= 0 {
		cfg.Width = 1400
	}
	if cfg.Retries < 0 {
		cfg.Retries = 0
	}

	client := retryhttp.New(retryhttp.Config{
		Timeout:      cfg.Timeout,
		RetryMax:     cfg.Retries,
		RetryWaitMin: 200 * time.Millisecond,
		RetryWaitMax: time.Second,
	}, logger)

	return &BannerLoader{client: client, cfg: cfg, logger: logger}
}

// Load returns one banner per section, index-aligned. aspect is the banner
// height over its width.
func (l *BannerLoader) Load(ctx context.Context, sections []section.ReportSection, aspect float64) []image.Image {
	banners := make([]image.Image, len(sections))
	if l == nil {
		return banners
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(l.cfg.Concurrency)
	for i, s := range sections {
		i, s := i, s
		url := strings.TrimSpace(s.ImageURL)
		if url == "" {
			continue
		}
		g.Go(func() error {
			img, err := l.fetch(gctx, url)
			if err != nil {
				l.logger.Warn("Banner unavailable, using placeholder",
					zap.String("section", s.Title),
					zap.String("url", url),
					zap.Error(&section.ResourceError{Resource: url, Err: err}))
				return nil
			}
			banners[i] = fitCover(img, l.cfg.Width, int(float64(l.cfg.Width)*aspect))
			return nil
		})
	}
	// workers never return errors
	_ = g.Wait()
	return banners
}

func (l *BannerLoader) fetch(ctx context.Context, url string) (image.Image, error) {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "image/png,image/jpeg,image/gif,image/webp")

	resp, err := l.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	img, format, err := image.Decode(io.LimitReader(resp.Body, maxBannerBytes))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	l.logger.Debug("Banner loaded", zap.String("url", url), zap.String("format", format))
	return img, nil
}

// fitCover scales src to fill w x h, cropping the overflow around the centre
func fitCover(src image.Image, w, h int) image.Image {
	if src == nil || w <= 0 || h <= 0 {
		return src
	}
	sb := src.Bounds()
	if sb.Dx() == 0 || sb.Dy() == 0 {
		return nil
	}

	crop := sb
	target := float64(w) / float64(h)
	if float64(sb.Dx())/float64(sb.Dy()) > target {
		cw := int(float64(sb.Dy()) * target)
		x0 := sb.Min.X + (sb.Dx()-cw)/2
		crop = image.Rect(x0, sb.Min.Y, x0+cw, sb.Max.Y)
	} else {
		ch := int(float64(sb.Dx()) / target)
		y0 := sb.Min.Y + (sb.Dy()-ch)/2
		crop = image.Rect(sb.Min.X, y0, sb.Max.X, y0+ch)
	}

	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, crop, draw.Src, nil)
	return dst
}
