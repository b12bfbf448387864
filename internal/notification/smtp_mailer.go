package notification

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/smtp"
	"net/textproto"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/mikeyg42/plantwatch/internal/report"
)

// SMTPConfig addresses an SMTP relay.
type SMTPConfig struct {
	Host       string
	Port       int
	Username   string
	Password   string
	From       string
	FromName   string
	SystemName string
}

// SendFunc matches smtp.SendMail.
type SendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// SMTPMailer renders the alert itself and relays it over SMTP.
type SMTPMailer struct {
	cfg    SMTPConfig
	retry  RetryConfig
	send   SendFunc
	now    func() time.Time
	logger *zap.Logger
}

func NewSMTPMailer(cfg SMTPConfig, retry RetryConfig) *SMTPMailer {
	if cfg.Port == 0 {
		cfg.Port = 587
	}
	if cfg.SystemName == "" {
		cfg.SystemName = "Plant Disease Monitoring System"
	}
	if cfg.FromName == "" {
		cfg.FromName = cfg.SystemName
	}
	return &SMTPMailer{
		cfg:    cfg,
		retry:  retry,
		send:   smtp.SendMail,
		now:    time.Now,
		logger: zap.L().Named("smtp-mailer"),
	}
}

// WithSendFunc replaces the SMTP transport.
func (m *SMTPMailer) WithSendFunc(fn SendFunc) *SMTPMailer {
	m.send = fn
	return m
}

func (m *SMTPMailer) SendAlert(ctx context.Context, recipients []string, batch []report.Result) error {
	if len(recipients) == 0 {
		return fmt.Errorf("no alert recipients configured")
	}

	data := NewAlertData(batch, m.now(), m.cfg.SystemName)
	email, err := NewAlertEmail(data, m.cfg.From, m.cfg.FromName, recipients)
	if err != nil {
		return err
	}
	msg, err := BuildMIMEMessage(email)
	if err != nil {
		return fmt.Errorf("failed to build MIME message: %w", err)
	}

	addr := net.JoinHostPort(m.cfg.Host, strconv.Itoa(m.cfg.Port))
	var auth smtp.Auth
	if m.cfg.Username != "" {
		auth = smtp.PlainAuth("", m.cfg.Username, m.cfg.Password, m.cfg.Host)
	}

	err = sendWithRetry(ctx, m.retry, func(ctx context.Context) error {
		if err := ctx.Err(); err != nil {
			return backoff.Permanent(err)
		}
		err := m.send(addr, auth, m.cfg.From, recipients, msg)
		var tpErr *textproto.Error
		if errors.As(err, &tpErr) && tpErr.Code >= 500 {
			return backoff.Permanent(err)
		}
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to send alert via %s: %w", addr, err)
	}

	m.logger.Info("Alert sent",
		zap.String("alert_id", data.AlertID),
		zap.Strings("recipients", recipients),
		zap.Int("diseased", len(data.Items)))
	return nil
}
