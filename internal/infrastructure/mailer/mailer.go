package mailer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"dealersign/internal/config"
	"dealersign/internal/domain/entity"
)

// Message is one outbound email. Credentials come in on the provider, not
// the message; they arrive pre-decrypted from the settings layer.
type Message struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// Sender delivers mail through a company's configured provider.
type Sender interface {
	Send(ctx context.Context, provider *entity.MailProvider, msg *Message) error
}

// httpSender posts to HTTP transactional-mail providers.
type httpSender struct {
	httpClient *http.Client
	logger     *zap.Logger
}

func NewSender(cfg *config.Config, logger *zap.Logger) Sender {
	return &httpSender{
		httpClient: &http.Client{
			Timeout: cfg.Mailer.Timeout,
		},
		logger: logger,
	}
}

func (s *httpSender) Send(ctx context.Context, provider *entity.MailProvider, msg *Message) error {
	if provider == nil || !provider.Active {
		return fmt.Errorf("no active mail provider")
	}

	payload := struct {
		From    string `json:"from"`
		To      string `json:"to"`
		Subject string `json:"subject"`
		Body    string `json:"body"`
	}{
		From:    provider.Sender,
		To:      msg.To,
		Subject: msg.Subject,
		Body:    msg.Body,
	}

	reqBody, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal mail payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, provider.BaseURL+"/messages", bytes.NewBuffer(reqBody))
	if err != nil {
		return fmt.Errorf("failed to create mail request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+provider.APIKey)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send mail: %w", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("mail provider error: status=%d, body=%s", resp.StatusCode, string(respBody))
	}

	s.logger.Debug("Mail accepted by provider",
		zap.String("provider", provider.Provider),
		zap.String("to", msg.To),
	)
	return nil
}

var Module = fx.Module("mailer",
	fx.Provide(NewSender),
)
