package notification

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	gmail "google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"

	"github.com/mikeyg42/plantwatch/internal/report"
)

const defaultSendTimeout = 30 * time.Second

// GmailMailer sends the rendered alert through the Gmail API.
type GmailMailer struct {
	cfg    GmailConfig
	retry  RetryConfig
	svc    *gmail.Service
	logger *zap.Logger
}

// NewGmailMailer loads the stored token; it fails with ErrNoToken before the
// first authorization.
func NewGmailMailer(ctx context.Context, cfg GmailConfig, retry RetryConfig) (*GmailMailer, error) {
	if cfg.SystemName == "" {
		cfg.SystemName = "Plant Disease Monitoring System"
	}
	token, err := loadToken(cfg.TokenStorePath, cfg.MasterKey)
	if err != nil {
		return nil, err
	}

	httpClient := cfg.oauthConfig().Client(ctx, token)
	httpClient.Timeout = defaultSendTimeout

	svc, err := gmail.NewService(ctx, option.WithHTTPClient(httpClient))
	if err != nil {
		return nil, fmt.Errorf("failed to init Gmail service: %w", err)
	}

	return &GmailMailer{
		cfg:    cfg,
		retry:  retry,
		svc:    svc,
		logger: zap.L().Named("gmail-mailer"),
	}, nil
}

func (m *GmailMailer) SendAlert(ctx context.Context, recipients []string, batch []report.Result) error {
	if len(recipients) == 0 {
		return fmt.Errorf("no alert recipients configured")
	}

	data := NewAlertData(batch, time.Now(), m.cfg.SystemName)
	email, err := NewAlertEmail(data, m.fromAddr(), m.cfg.SystemName, recipients)
	if err != nil {
		return err
	}
	raw, err := BuildMIMEMessage(email)
	if err != nil {
		return fmt.Errorf("failed to build MIME message: %w", err)
	}
	encoded := base64.URLEncoding.WithPadding(base64.NoPadding).EncodeToString(raw)

	err = sendWithRetry(ctx, m.retry, func(ctx context.Context) error {
		_, err := m.svc.Users.Messages.Send("me", &gmail.Message{Raw: encoded}).Context(ctx).Do()
		return err
	})
	if err != nil {
		return fmt.Errorf("gmail send failed: %w", err)
	}

	m.logger.Info("Alert sent",
		zap.String("alert_id", data.AlertID),
		zap.Strings("recipients", recipients))
	return nil
}

func (m *GmailMailer) fromAddr() string {
	if addr := strings.TrimSpace(m.cfg.From); addr != "" {
		return addr
	}
	return "me"
}
