package bootstrap

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"ai-opportunities/report-portal/report-portal-backend/internal/config"
	"ai-opportunities/report-portal/report-portal-backend/internal/reports/render"
	"ai-opportunities/report-portal/report-portal-backend/internal/reports/section"
)

func TestNewLogger(t *testing.T) {
	logger, err := NewLogger("warn")
	require.NoError(t, err)
	assert.False(t, logger.Core().Enabled(zapcore.InfoLevel))
	assert.True(t, logger.Core().Enabled(zapcore.WarnLevel))

	logger, err = NewLogger("debug")
	require.NoError(t, err)
	assert.True(t, logger.Core().Enabled(zapcore.DebugLevel))
}

func TestNewAssembler(t *testing.T) {
	cfg := config.Default()
	assembler, err := NewAssembler(cfg, zap.NewNop())
	require.NoError(t, err)

	pdf, err := assembler.Assemble(context.Background(), section.DefaultCover("Acme", time.Time{}), nil, section.DefaultFooter(), render.BackendVector)
	require.NoError(t, err)
	assert.Equal(t, "%PDF-", string(pdf[:5]))

	cfg.Render.Fallback = "fax"
	_, err = NewAssembler(cfg, zap.NewNop())
	assert.Error(t, err)
}
