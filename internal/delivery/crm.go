package delivery

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"go.uber.org/zap"

	"ai-opportunities/report-portal/report-portal-backend/pkg/retryhttp"
)

// CRMConfig configuration for the lead webhook
type CRMConfig struct {
	WebhookURL string            `json:"webhook_url"`
	Token      string            `json:"token"`
	Headers    map[string]string `json:"headers"`
	Timeout    time.Duration     `json:"timeout"`
	RetryCount int               `json:"retry_count"`
}

// Lead is the prospect record pushed to the CRM
type Lead struct {
	BusinessName string         `json:"businessName"`
	ContactName  string         `json:"contactName"`
	Email        string         `json:"email"`
	Phone        string         `json:"phone,omitempty"`
	Website      string         `json:"website,omitempty"`
	Industry     string         `json:"industry,omitempty"`
	CompanySize  string         `json:"companySize,omitempty"`
	ReportID     string         `json:"reportId,omitempty"`
	ReportURL    string         `json:"reportUrl,omitempty"`
	Source       string         `json:"source"`
	Answers      map[string]any `json:"answers,omitempty"`
	CreatedAt    time.Time      `json:"createdAt"`
}

// LeadSource tags leads created by this service
const LeadSource = "ai-opportunities-report"

// CRMClient pushes leads to a JSON webhook
type CRMClient struct {
	config CRMConfig
	http   *retryablehttp.Client
	logger *zap.Logger
}

// NewCRMClient creates a new CRM webhook client
func NewCRMClient(config CRMConfig, logger *zap.Logger) *CRMClient {
	if config.Timeout <= 0 {
		config.Timeout = 30 * time.Second
	}
	if config.RetryCount <= 0 {
		config.RetryCount = 3
	}
	return &CRMClient{
		config: config,
		http: retryhttp.New(retryhttp.Config{
			Timeout:      config.Timeout,
			RetryMax:     config.RetryCount - 1,
			RetryWaitMin: time.Second,
			RetryWaitMax: 5 * time.Second,
		}, logger),
		logger: logger,
	}
}

// PushLead posts the lead; 5xx and connection errors are retried up to the
// configured attempt count
func (c *CRMClient) PushLead(ctx context.Context, lead Lead) error {
	if c.config.WebhookURL == "" {
		return fmt.Errorf("webhook URL is required")
	}
	if lead.Source == "" {
		lead.Source = LeadSource
	}

	payload, err := json.Marshal(lead)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, c.config.WebhookURL, payload)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.config.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.config.Token)
	}
	for key, value := range c.config.Headers {
		req.Header.Set(key, value)
	}

	c.logger.Info("Sending lead to CRM",
		zap.String("url", c.config.WebhookURL),
		zap.String("business", lead.BusinessName))

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("webhook delivery failed after %d attempts: %w", c.config.RetryCount, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.Warn("Webhook returned non-success status",
			zap.Int("status_code", resp.StatusCode),
			zap.String("business", lead.BusinessName))
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}

	c.logger.Info("Webhook delivered successfully",
		zap.String("url", c.config.WebhookURL),
		zap.Int("status_code", resp.StatusCode))
	return nil
}
