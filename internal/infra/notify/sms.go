package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/bazarly/commerce-platform-identity/internal/core/port"
	"github.com/bazarly/commerce-platform-identity/internal/infra/config"
	"github.com/bazarly/commerce-platform-identity/internal/infra/logger"
)

// HTTPSMSSender posts messages to an SMS gateway's JSON API.
type HTTPSMSSender struct {
	cfg     config.SMSSettings
	client  *http.Client
	logger  *zap.Logger
	devMode bool
}

// NewHTTPSMSSender constructs the SMS gateway client.
func NewHTTPSMSSender(cfg config.SMSSettings, log *zap.Logger) *HTTPSMSSender {
	if log == nil {
		log = zap.NewNop()
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &HTTPSMSSender{
		cfg:     cfg,
		client:  &http.Client{Timeout: timeout},
		logger:  log,
		devMode: cfg.ProviderURL == "",
	}
}

type smsRequest struct {
	APIKey   string `json:"api_key"`
	SenderID string `json:"sender_id,omitempty"`
	Number   string `json:"number"`
	Message  string `json:"message"`
}

// Send delivers the message to the phone via the configured gateway.
func (s *HTTPSMSSender) Send(ctx context.Context, phone string, message string) error {
	if s.devMode {
		s.logger.Info("sms delivery skipped (dev mode)",
			zap.String("phone", logger.MaskPhone(phone)),
		)
		return nil
	}

	payload, err := json.Marshal(smsRequest{
		APIKey:   s.cfg.APIKey,
		SenderID: s.cfg.SenderID,
		Number:   phone,
		Message:  message,
	})
	if err != nil {
		return fmt.Errorf("marshal sms payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.ProviderURL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build sms request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("post sms: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("sms gateway returned %d: %s", resp.StatusCode, string(body))
	}

	s.logger.Info("sms dispatched", zap.String("phone", logger.MaskPhone(phone)))
	return nil
}

var _ port.SMSSender = (*HTTPSMSSender)(nil)
