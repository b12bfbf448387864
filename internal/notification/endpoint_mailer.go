package notification

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/mikeyg42/plantwatch/internal/report"
)

// SendMailPath is the mail service's endpoint.
const SendMailPath = "/send-email/"

type emailAddresses struct {
	Email []string `json:"email"`
}

type sendMailRequest struct {
	Email emailAddresses  `json:"email"`
	Data  []report.Result `json:"data"`
}

// EndpointMailer hands the batch to an HTTP mail service that renders and sends it.
type EndpointMailer struct {
	http   *resty.Client
	retry  RetryConfig
	logger *zap.Logger
}

func NewEndpointMailer(baseURL string, timeout time.Duration, retry RetryConfig) *EndpointMailer {
	r := resty.New()
	r.SetBaseURL(baseURL)
	r.SetHeader("Content-Type", "application/json")
	r.SetHeader("Accept", "application/json")
	if timeout > 0 {
		r.SetTimeout(timeout)
	}

	return &EndpointMailer{
		http:   r,
		retry:  retry,
		logger: zap.L().Named("endpoint-mailer"),
	}
}

func (m *EndpointMailer) SendAlert(ctx context.Context, recipients []string, batch []report.Result) error {
	if len(recipients) == 0 {
		return fmt.Errorf("no alert recipients configured")
	}

	body := sendMailRequest{
		Email: emailAddresses{Email: recipients},
		Data:  batch,
	}

	attempt := 0
	err := sendWithRetry(ctx, m.retry, func(ctx context.Context) error {
		attempt++
		resp, err := m.http.R().
			SetContext(ctx).
			SetBody(body).
			Post(SendMailPath)
		if err != nil {
			m.logger.Warn("Mail request failed", zap.Int("attempt", attempt), zap.Error(err))
			return err
		}
		if resp.IsError() {
			serr := &StatusError{StatusCode: resp.StatusCode(), Body: resp.String()}
			if resp.StatusCode() < 500 && resp.StatusCode() != 429 {
				return backoff.Permanent(serr)
			}
			m.logger.Warn("Mail endpoint error", zap.Int("attempt", attempt), zap.Error(serr))
			return serr
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to send alert: %w", err)
	}

	m.logger.Info("Alert sent",
		zap.Strings("recipients", recipients),
		zap.Int("results", len(batch)),
		zap.Int("attempts", attempt))
	return nil
}
