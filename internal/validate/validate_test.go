package validate

import (
	"strings"
	"testing"

	"github.com/mikeyg42/plantwatch/internal/config"
)

func validConfig() *config.Config {
	cfg := config.NewDefaultConfig()
	cfg.Mail.Recipients = []string{"ops@example.com"}
	return cfg
}

func TestValidConfigPasses(t *testing.T) {
	if err := ValidateConfig(validConfig()); err != nil {
		t.Fatalf("expected valid config, got %v", err)
	}
}

func TestDefaultsNeedRecipients(t *testing.T) {
	err := ValidateConfig(config.NewDefaultConfig())
	if err == nil {
		t.Fatal("defaults have no recipients and should fail")
	}
	if !strings.Contains(err.Error(), "recipient") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestValidateConfigErrors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
		want   string
	}{
		{"bad log level", func(c *config.Config) { c.Log.Level = "loud" }, "invalid log level"},
		{"bad log format", func(c *config.Config) { c.Log.Format = "xml" }, "invalid log format"},
		{"empty viewer", func(c *config.Config) { c.Viewer.Path = "" }, "viewer path"},
		{"zero timeout", func(c *config.Config) { c.Capture.VideoTimeout = 0 }, "video_timeout must be positive"},
		{"poll too slow", func(c *config.Config) { c.Capture.PollInterval = c.Capture.CameraTimeout }, "shorter than camera_timeout"},
		{"bad trigger", func(c *config.Config) { c.Monitor.Triggers = []string{"every morning"} }, "invalid trigger"},
		{"duplicate trigger", func(c *config.Config) { c.Monitor.Triggers = []string{"0 8 * * *", "0 8 * * *"} }, "duplicate trigger"},
		{"auto start without triggers", func(c *config.Config) { c.Monitor.Triggers = nil; c.Monitor.AutoStart = true }, "auto_start"},
		{"threshold one", func(c *config.Config) { c.Classifier.Threshold = 1 }, "threshold"},
		{"classifier url", func(c *config.Config) { c.Classifier.BaseURL = "localhost:8000" }, "classifier base_url"},
		{"mail method", func(c *config.Config) { c.Mail.Method = "pigeon" }, "invalid mail method"},
		{"bad recipient", func(c *config.Config) { c.Mail.Recipients = []string{"not-an-email"} }, "invalid recipient"},
		{"smtp host", func(c *config.Config) { c.Mail.Method = "smtp"; c.Mail.SMTP.From = "a@example.com" }, "SMTP host is required"},
		{"gmail without key", func(c *config.Config) {
			c.Mail.Method = "gmail"
			c.Mail.Gmail.ClientID = "id"
			c.Mail.Gmail.ClientSecret = "secret"
		}, "master key"},
		{"listen addr", func(c *config.Config) { c.API.ListenAddr = "8090" }, "host:port"},
		{"rate limit", func(c *config.Config) { c.API.RateLimit = 0 }, "rate_limit"},
		{"mqtt broker", func(c *config.Config) { c.MQTT.Enabled = true }, "invalid MQTT broker"},
		{"mqtt qos", func(c *config.Config) { c.MQTT.Enabled = true; c.MQTT.Broker = "tcp://localhost:1883"; c.MQTT.QoS = 3 }, "qos"},
		{"postgres ssl", func(c *config.Config) { c.Storage.Postgres.Host = "db"; c.Storage.Postgres.SSLMode = "maybe" }, "ssl_mode"},
		{"minio creds", func(c *config.Config) { c.Storage.MinIO.Endpoint = "minio:9000" }, "credentials"},
		{"minio bucket", func(c *config.Config) {
			c.Storage.MinIO.Endpoint = "minio:9000"
			c.Storage.MinIO.AccessKeyID = "a"
			c.Storage.MinIO.SecretAccessKey = "b"
			c.Storage.MinIO.Bucket = "Bad_Bucket"
		}, "invalid storage.minio.bucket"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := ValidateConfig(cfg)
			if err == nil {
				t.Fatalf("expected error containing %q", tt.want)
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q does not contain %q", err, tt.want)
			}
		})
	}
}

func TestDisabledMailSkipsRecipients(t *testing.T) {
	cfg := config.NewDefaultConfig()
	cfg.Mail.Method = "disabled"
	if err := ValidateConfig(cfg); err != nil {
		t.Fatalf("disabled mail should not need recipients: %v", err)
	}
}

func TestValidateTriggers(t *testing.T) {
	if err := ValidateTriggers([]string{"0 8 * * *", "@daily"}); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if err := ValidateTriggers(nil); err != nil {
		t.Errorf("empty list should be valid: %v", err)
	}
	if err := ValidateTriggers([]string{"0 8 * *"}); err == nil {
		t.Error("four-field expression should fail")
	}
}

func TestHelpers(t *testing.T) {
	if !isValidHostname("smtp.gmail.com") || isValidHostname("bad_host.com") {
		t.Error("isValidHostname mismatch")
	}
	if !isValidURL("https://example.com/x") || isValidURL("ftp://example.com") {
		t.Error("isValidURL mismatch")
	}
	if !isValidEmail("Ops <ops@example.com>") || isValidEmail("ops@") {
		t.Error("isValidEmail mismatch")
	}
	if !isValidBucketName("plantwatch-captures") || isValidBucketName("a..b") {
		t.Error("isValidBucketName mismatch")
	}
}
