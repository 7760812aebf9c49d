package bootstrap

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"ai-opportunities/report-portal/report-portal-backend/internal/config"
	"ai-opportunities/report-portal/report-portal-backend/internal/reports/render"
)

// NewLogger returns a development logger for debug and a production one
// at the given level otherwise
func NewLogger(level string) (*zap.Logger, error) {
	if strings.EqualFold(level, "debug") {
		return zap.NewDevelopment()
	}
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		lvl = zapcore.InfoLevel
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	return cfg.Build()
}

// NewAssembler builds the document assembler from the render and browser
// settings
func NewAssembler(cfg *config.Config, logger *zap.Logger) (*render.Assembler, error) {
	var options []render.AssemblerOption
	if cfg.Render.Fallback != "" {
		fallback, err := render.ParseBackend(cfg.Render.Fallback)
		if err != nil {
			return nil, fmt.Errorf("render.fallback: %w", err)
		}
		options = append(options, render.WithFallback(fallback))
	}

	return render.NewAssembler(
		cfg.Render.Options,
		render.NewBannerLoader(cfg.Render.Banners, logger),
		render.ChromiumEngines(cfg.Browser, logger),
		logger,
		options...,
	), nil
}
