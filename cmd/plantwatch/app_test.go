package main

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/mikeyg42/plantwatch/internal/config"
	"github.com/mikeyg42/plantwatch/internal/notification"
)

func TestNewMailerSelection(t *testing.T) {
	ctx := context.Background()
	tests := []struct {
		method  string
		wantNil bool
		wantErr bool
		check   func(notification.Mailer) bool
	}{
		{"disabled", true, false, nil},
		{"endpoint", false, false, func(m notification.Mailer) bool { _, ok := m.(*notification.EndpointMailer); return ok }},
		{"smtp", false, false, func(m notification.Mailer) bool { _, ok := m.(*notification.SMTPMailer); return ok }},
		{"pigeon", true, true, nil},
	}
	for _, tt := range tests {
		t.Run(tt.method, func(t *testing.T) {
			cfg := config.NewDefaultConfig()
			cfg.Mail.Method = tt.method
			m, err := newMailer(ctx, cfg)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v", err)
			}
			if (m == nil) != tt.wantNil {
				t.Fatalf("mailer = %#v", m)
			}
			if tt.check != nil && !tt.check(m) {
				t.Errorf("unexpected mailer type %T", m)
			}
		})
	}
}

func TestGmailMailerNeedsToken(t *testing.T) {
	cfg := config.NewDefaultConfig()
	cfg.Mail.Method = "gmail"
	cfg.MasterKey = "unused"
	cfg.Mail.Gmail.TokenStorePath = filepath.Join(t.TempDir(), "token.enc")
	if _, err := newMailer(context.Background(), cfg); err == nil {
		t.Fatal("expected an error without a stored token")
	}
}

func TestServiceConfigArguments(t *testing.T) {
	old := cfgFile
	t.Cleanup(func() { cfgFile = old })

	cfgFile = ""
	sc, err := serviceConfig()
	if err != nil {
		t.Fatal(err)
	}
	if len(sc.Arguments) != 2 || sc.Arguments[1] != "run" {
		t.Errorf("arguments = %v", sc.Arguments)
	}

	cfgFile = "plantwatch.yaml"
	sc, err = serviceConfig()
	if err != nil {
		t.Fatal(err)
	}
	if len(sc.Arguments) != 4 || !filepath.IsAbs(sc.Arguments[3]) {
		t.Errorf("config path should be absolute: %v", sc.Arguments)
	}
}

func TestCommandsRegistered(t *testing.T) {
	want := []string{"serve", "capture", "probe", "service", "gmail-auth", "secret", "history"}
	for _, name := range want {
		cmd, _, err := rootCmd.Find([]string{name})
		if err != nil || cmd.Name() != name {
			t.Errorf("command %q not registered", name)
		}
	}
}
