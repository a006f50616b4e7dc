package pdfclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"dealersign/internal/config"
)

// RenderContext identifies the render request without any web-request
// baggage: tenant coordinates, the acting principal and a correlation id for
// tracing a job across retries.
type RenderContext struct {
	CompanyID     string `json:"company_id"`
	CompanyDBName string `json:"company_db_name"`
	Actor         string `json:"actor"`
	CorrelationID string `json:"correlation_id"`
}

// RenderResult is the rendering service's durable outcome for one document.
type RenderResult struct {
	PdfURL  string `json:"pdf_url"`
	PdfHash string `json:"pdf_hash"`
}

// Renderer turns a fully signed document into its final PDF artifact.
// Rendering is idempotent: regenerating overwrites the previous artifact.
type Renderer interface {
	GenerateSignedPdf(ctx context.Context, documentID string, rctx RenderContext) (*RenderResult, error)
}

type client struct {
	config        *config.Config
	httpClient    *http.Client
	baseURL       string
	hmacSignature *HMACSignature
	logger        *zap.Logger
}

func NewRenderer(cfg *config.Config, logger *zap.Logger) Renderer {
	timeout := cfg.Pdf.Timeout
	if timeout == 0 {
		timeout = 60 * time.Second
	}

	return &client{
		config: cfg,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		baseURL:       cfg.Pdf.BaseURL,
		hmacSignature: NewHMACSignature(cfg.Pdf.ClientID, cfg.Pdf.ClientSecret),
		logger:        logger,
	}
}

func (c *client) GenerateSignedPdf(ctx context.Context, documentID string, rctx RenderContext) (*RenderResult, error) {
	fullURL := fmt.Sprintf("%s/v1/documents/%s/render", c.baseURL, documentID)

	reqBody, err := json.Marshal(rctx)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal render context: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, fullURL, bytes.NewBuffer(reqBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create render request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	if err := c.hmacSignature.SignRequest(req); err != nil {
		return nil, fmt.Errorf("failed to sign render request: %w", err)
	}

	startTime := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to call rendering service: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read render response: %w", err)
	}

	c.logger.Info("Rendering service responded",
		zap.String("document_id", documentID),
		zap.Int("status", resp.StatusCode),
		zap.Duration("duration", time.Since(startTime)),
	)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("rendering service error: status=%d, body=%s", resp.StatusCode, string(respBody))
	}

	var result RenderResult
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal render response: %w", err)
	}

	return &result, nil
}

var Module = fx.Module("pdfclient",
	fx.Provide(NewRenderer),
)
