package imagegen

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"ai-opportunities/report-portal/report-portal-backend/internal/reports/section"
	"ai-opportunities/report-portal/report-portal-backend/pkg/retryhttp"
)

const serviceName = "image generation"

// Task states reported by the provider
const (
	StatusPending   = "pending"
	StatusRunning   = "running"
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
)

// ErrGenerationFailed is returned when the provider reports a failed task
var ErrGenerationFailed = errors.New("image generation failed")

// Config for the asynchronous image generation API
type Config struct {
	BaseURL        string        `json:"base_url"`
	APIKey         string        `json:"api_key"`
	Width          int           `json:"width"`
	Height         int           `json:"height"`
	PollInterval   time.Duration `json:"poll_interval"`
	MaxPolls       int           `json:"max_polls"`
	RequestTimeout time.Duration `json:"request_timeout"`
	Concurrency    int           `json:"concurrency"`
}

func (c Config) withDefaults() Config {
	if c.Width <= 0 {
		c.Width = 1536
	}
	if c.Height <= 0 {
		c.Height = 512
	}
	if c.PollInterval <= 0 {
		c.PollInterval = 2 * time.Second
	}
	if c.MaxPolls <= 0 {
		c.MaxPolls = 30
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = 15 * time.Second
	}
	if c.Concurrency <= 0 {
		c.Concurrency = 3
	}
	return c
}

// Client creates banner images and waits for them by polling
type Client struct {
	cfg    Config
	http   *retryablehttp.Client
	logger *zap.Logger
}

// NewClient creates a new image generation client
func NewClient(cfg Config, logger *zap.Logger) *Client {
	cfg = cfg.withDefaults()
	return &Client{
		cfg:    cfg,
		http:   retryhttp.New(retryhttp.Config{Timeout: cfg.RequestTimeout, RetryMax: 2}, logger),
		logger: logger,
	}
}

type task struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	URL    string `json:"url"`
	Error  string `json:"error"`
}

// Generate creates a task for prompt and polls it on a fixed interval.
// Running out of polls returns a *section.UpstreamTimeout.
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	created, err := c.create(ctx, prompt)
	if err != nil {
		return "", err
	}
	if created.Status == StatusSucceeded && created.URL != "" {
		return created.URL, nil
	}

	ticker := time.NewTicker(c.cfg.PollInterval)
	defer ticker.Stop()

	for attempt := 1; attempt <= c.cfg.MaxPolls; attempt++ {
		select {
		case <-ctx.Done():
			return "", &section.UpstreamTimeout{Service: serviceName, Attempts: attempt - 1, Err: ctx.Err()}
		case <-ticker.C:
		}

		t, err := c.poll(ctx, created.ID)
		if err != nil {
			if ctx.Err() != nil {
				return "", &section.UpstreamTimeout{Service: serviceName, Attempts: attempt, Err: ctx.Err()}
			}
			return "", err
		}
		switch t.Status {
		case StatusSucceeded:
			if t.URL == "" {
				return "", fmt.Errorf("%w: task %s succeeded without a url", ErrGenerationFailed, created.ID)
			}
			c.logger.Debug("Image generated", zap.String("task_id", created.ID), zap.Int("polls", attempt))
			return t.URL, nil
		case StatusFailed:
			return "", fmt.Errorf("%w: %s", ErrGenerationFailed, t.Error)
		}
	}

	return "", &section.UpstreamTimeout{
		Service:  serviceName,
		Attempts: c.cfg.MaxPolls,
		Err:      fmt.Errorf("task %s still pending", created.ID),
	}
}

// GenerateAll generates one image per prompt with bounded concurrency.
// Failures are logged and left out of the result; callers render
// placeholders for missing titles.
func (c *Client) GenerateAll(ctx context.Context, prompts map[string]string) map[string]string {
	var (
		mu   sync.Mutex
		urls = make(map[string]string, len(prompts))
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.cfg.Concurrency)
	for title, prompt := range prompts {
		title, prompt := title, prompt
		g.Go(func() error {
			url, err := c.Generate(gctx, prompt)
			if err != nil {
				c.logger.Warn("Banner image not generated",
					zap.String("section", title),
					zap.Error(err))
				return nil
			}
			mu.Lock()
			urls[title] = url
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return urls
}

func (c *Client) create(ctx context.Context, prompt string) (*task, error) {
	payload, err := json.Marshal(map[string]any{
		"prompt": prompt,
		"width":  c.cfg.Width,
		"height": c.cfg.Height,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal task: %w", err)
	}
	t, err := c.do(ctx, http.MethodPost, "/tasks", payload)
	if err != nil {
		return nil, err
	}
	if t.ID == "" {
		return nil, fmt.Errorf("%w: provider returned no task id", ErrGenerationFailed)
	}
	return t, nil
}

func (c *Client) poll(ctx context.Context, id string) (*task, error) {
	return c.do(ctx, http.MethodGet, "/tasks/"+id, nil)
}

func (c *Client) do(ctx context.Context, method, path string, payload []byte) (*task, error) {
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := retryablehttp.NewRequestWithContext(ctx, method, strings.TrimSuffix(c.cfg.BaseURL, "/")+path, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("image generation request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("image generation returned status %d", resp.StatusCode)
	}
	var t task
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&t); err != nil {
		return nil, fmt.Errorf("failed to decode task: %w", err)
	}
	return &t, nil
}
