package retryhttp

import (
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"go.uber.org/zap"
)

// Config bounds an outbound HTTP dependency
type Config struct {
	Timeout      time.Duration
	RetryMax     int
	RetryWaitMin time.Duration
	RetryWaitMax time.Duration
}

// New returns a client that retries connection errors, 429 and 5xx up to
// RetryMax times and hands the final response back unwrapped
func New(cfg Config, logger *zap.Logger) *retryablehttp.Client {
	client := retryablehttp.NewClient()
	if cfg.RetryMax >= 0 {
		client.RetryMax = cfg.RetryMax
	}
	if cfg.RetryWaitMin > 0 {
		client.RetryWaitMin = cfg.RetryWaitMin
	}
	if cfg.RetryWaitMax > 0 {
		client.RetryWaitMax = cfg.RetryWaitMax
	}
	if cfg.Timeout > 0 {
		client.HTTPClient.Timeout = cfg.Timeout
	}
	client.ErrorHandler = retryablehttp.PassthroughErrorHandler
	if logger != nil {
		client.Logger = ZapLogger{logger.Sugar()}
	} else {
		client.Logger = nil
	}
	return client
}

// ZapLogger adapts zap to retryablehttp.LeveledLogger
type ZapLogger struct {
	s *zap.SugaredLogger
}

var _ retryablehttp.LeveledLogger = ZapLogger{}

func (l ZapLogger) Error(msg string, keysAndValues ...interface{}) { l.s.Errorw(msg, keysAndValues...) }
func (l ZapLogger) Info(msg string, keysAndValues ...interface{})  { l.s.Debugw(msg, keysAndValues...) }
func (l ZapLogger) Debug(msg string, keysAndValues ...interface{}) { l.s.Debugw(msg, keysAndValues...) }
func (l ZapLogger) Warn(msg string, keysAndValues ...interface{})  { l.s.Warnw(msg, keysAndValues...) }
