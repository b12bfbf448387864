// Package notification delivers disease alerts for a capture batch.
package notification

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/mikeyg42/plantwatch/internal/report"
)

// Mailer sends one alert covering a whole batch.
type Mailer interface {
	SendAlert(ctx context.Context, recipients []string, batch []report.Result) error
}

// RetryConfig bounds delivery retries at the mail boundary.
type RetryConfig struct {
	MaxRetries      int
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:      3,
		InitialInterval: time.Second,
		MaxInterval:     5 * time.Second,
	}
}

// StatusError is a non-2xx reply from a mail endpoint.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("mail endpoint returned status %d: %s", e.StatusCode, e.Body)
}

// sendWithRetry runs send with exponential backoff. Errors wrapped with
// backoff.Permanent stop retrying at once.
func sendWithRetry(ctx context.Context, cfg RetryConfig, send func(context.Context) error) error {
	ebo := backoff.NewExponentialBackOff()
	if cfg.InitialInterval > 0 {
		ebo.InitialInterval = cfg.InitialInterval
	}
	if cfg.MaxInterval > 0 {
		ebo.MaxInterval = cfg.MaxInterval
	}
	ebo.Reset()

	var b backoff.BackOff = ebo
	if cfg.MaxRetries >= 0 {
		b = backoff.WithMaxRetries(ebo, uint64(cfg.MaxRetries))
	}

	return backoff.Retry(func() error {
		return send(ctx)
	}, backoff.WithContext(b, ctx))
}

// Diseased returns the results that carry disease.
func Diseased(batch []report.Result) []report.Result {
	var out []report.Result
	for _, r := range batch {
		if r.HasDisease {
			out = append(out, r)
		}
	}
	return out
}
