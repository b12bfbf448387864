package validate

import (
	"fmt"
	"net"
	"net/mail"
	"net/url"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap/zapcore"

	"github.com/mikeyg42/plantwatch/internal/config"
	"github.com/mikeyg42/plantwatch/internal/schedule"
)

// -----------------------------------------------------------------------------
// Top-level full-config validation
// -----------------------------------------------------------------------------

type Validator struct{ errors []string }

func (v *Validator) AddError(format string, args ...interface{}) {
	v.errors = append(v.errors, fmt.Sprintf(format, args...))
}
func (v *Validator) HasErrors() bool  { return len(v.errors) > 0 }
func (v *Validator) Errors() []string { return v.errors }

// ValidateConfig delegates to per-section validators.
func ValidateConfig(cfg *config.Config) error {
	v := &Validator{}

	validateLogConfig(v, &cfg.Log)
	validateViewerConfig(v, &cfg.Viewer)
	validateCaptureConfig(v, &cfg.Capture)
	validateMonitorConfig(v, &cfg.Monitor)
	validateClassifierConfig(v, &cfg.Classifier)
	validateMailConfig(v, cfg)
	validateAPIConfig(v, &cfg.API)
	validateMQTTConfig(v, &cfg.MQTT)
	validateStorageConfig(v, &cfg.Storage)

	if v.HasErrors() {
		return fmt.Errorf("configuration validation failed:\n%s", strings.Join(v.Errors(), "\n"))
	}
	return nil
}

// ValidateTriggers is exported for callers that only check a trigger list.
func ValidateTriggers(exprs []string) error {
	v := &Validator{}
	validateTriggers(v, exprs)
	if v.HasErrors() {
		return fmt.Errorf("invalid triggers:\n%s", strings.Join(v.Errors(), "\n"))
	}
	return nil
}

// -----------------------------------------------------------------------------
// Sections
// -----------------------------------------------------------------------------

func validateLogConfig(v *Validator, cfg *config.LogConfig) {
	if _, err := zapcore.ParseLevel(cfg.Level); err != nil {
		v.AddError("invalid log level: %s", cfg.Level)
	}
	if cfg.Format != "json" && cfg.Format != "console" {
		v.AddError("invalid log format: %s (must be 'json' or 'console')", cfg.Format)
	}
}

func validateViewerConfig(v *Validator, cfg *config.ViewerConfig) {
	if strings.TrimSpace(cfg.Path) == "" || !isValidFilePath(cfg.Path) {
		v.AddError("viewer path cannot be empty")
	}
	if strings.TrimSpace(cfg.CaptureRoot) == "" || !isValidFilePath(cfg.CaptureRoot) {
		v.AddError("viewer capture_root cannot be empty")
	}
}

func validateCaptureConfig(v *Validator, cfg *config.CaptureConfig) {
	for name, d := range map[string]time.Duration{
		"login_timeout":  cfg.LoginTimeout,
		"camera_timeout": cfg.CameraTimeout,
		"video_timeout":  cfg.VideoTimeout,
	} {
		if d <= 0 {
			v.AddError("capture.%s must be positive", name)
		} else if d > 10*time.Minute {
			v.AddError("capture.%s too long: %s (max 10m)", name, d)
		}
	}
	if cfg.PollInterval <= 0 {
		v.AddError("capture.poll_interval must be positive")
	} else if cfg.PollInterval < 10*time.Millisecond {
		v.AddError("capture.poll_interval too short: %s (min 10ms)", cfg.PollInterval)
	} else if cfg.CameraTimeout > 0 && cfg.PollInterval >= cfg.CameraTimeout {
		v.AddError("capture.poll_interval must be shorter than camera_timeout")
	}
	if cfg.ScrollDownPause < 0 || cfg.ScrollUpPause < 0 {
		v.AddError("capture scroll pauses cannot be negative")
	}
}

func validateMonitorConfig(v *Validator, cfg *config.MonitorConfig) {
	validateTriggers(v, cfg.Triggers)
	if cfg.AutoStart && len(cfg.Triggers) == 0 {
		v.AddError("monitor.auto_start requires at least one trigger")
	}
}

func validateTriggers(v *Validator, exprs []string) {
	seen := make(map[string]bool, len(exprs))
	for _, expr := range exprs {
		if err := schedule.Validate(expr); err != nil {
			v.AddError("%v", err)
			continue
		}
		if seen[expr] {
			v.AddError("duplicate trigger %q", expr)
		}
		seen[expr] = true
	}
}

func validateClassifierConfig(v *Validator, cfg *config.ClassifierConfig) {
	if !isValidURL(cfg.BaseURL) {
		v.AddError("invalid classifier base_url: %s", cfg.BaseURL)
	}
	if cfg.Timeout <= 0 {
		v.AddError("classifier timeout must be positive")
	}
	if cfg.Threshold <= 0 || cfg.Threshold >= 1 {
		v.AddError("classifier threshold must be in (0, 1): %v", cfg.Threshold)
	}
}

func validateMailConfig(v *Validator, cfg *config.Config) {
	mcfg := &cfg.Mail
	switch mcfg.Method {
	case "disabled":
		return
	case "endpoint":
		if !isValidURL(mcfg.Endpoint.BaseURL) {
			v.AddError("invalid mail endpoint base_url: %s", mcfg.Endpoint.BaseURL)
		}
	case "smtp":
		validateSMTPConfig(v, &mcfg.SMTP)
	case "gmail":
		validateGmailConfig(v, &mcfg.Gmail)
		if cfg.MasterKey == "" {
			v.AddError("gmail mail method requires a master key to read the stored token")
		}
	default:
		v.AddError("invalid mail method: %s (must be 'endpoint', 'smtp', 'gmail', or 'disabled')", mcfg.Method)
		return
	}

	if len(mcfg.Recipients) == 0 {
		v.AddError("at least one alert recipient must be configured")
	}
	for _, r := range mcfg.Recipients {
		if !isValidEmail(r) {
			v.AddError("invalid recipient email: %s", r)
		}
	}
	if mcfg.MaxRetries < 0 || mcfg.MaxRetries > 10 {
		v.AddError("mail max_retries must be 0..10")
	}
}

func validateSMTPConfig(v *Validator, cfg *config.SMTPConfig) {
	if cfg.Host == "" {
		v.AddError("SMTP host is required")
	} else if net.ParseIP(cfg.Host) == nil && !isValidHostname(cfg.Host) {
		v.AddError("invalid SMTP host: %s", cfg.Host)
	}
	if cfg.Port < 1 || cfg.Port > 65535 {
		v.AddError("invalid SMTP port: %d", cfg.Port)
	}
	if cfg.From == "" || !isValidEmail(cfg.From) {
		v.AddError("invalid SMTP from email: %s", cfg.From)
	}
}

func validateGmailConfig(v *Validator, cfg *config.GmailConfig) {
	if cfg.ClientID == "" {
		v.AddError("Gmail OAuth2 client ID is required")
	}
	if cfg.ClientSecret == "" {
		v.AddError("Gmail OAuth2 client secret is required")
	}
	if cfg.From != "" && !isValidEmail(cfg.From) {
		v.AddError("invalid Gmail from email: %s", cfg.From)
	}
	if cfg.RedirectURL != "" && !isValidURL(cfg.RedirectURL) {
		v.AddError("invalid Gmail redirect URL: %s", cfg.RedirectURL)
	}
	if !isValidFilePath(cfg.TokenStorePath) {
		v.AddError("invalid Gmail token store path: %s", cfg.TokenStorePath)
	}
}

func validateAPIConfig(v *Validator, cfg *config.APIConfig) {
	if cfg.ListenAddr == "" {
		v.AddError("API listen address cannot be empty")
		return
	}
	host, portStr, err := net.SplitHostPort(cfg.ListenAddr)
	if err != nil {
		v.AddError("API listen address must be host:port: %v", err)
		return
	}
	if host != "" && host != "localhost" {
		if ip := net.ParseIP(host); ip == nil && !isValidHostname(host) {
			v.AddError("invalid hostname in API listen address: %s", host)
		}
	}
	port, err := strconv.Atoi(portStr)
	if err != nil || port < 0 || port > 65535 {
		v.AddError("invalid port in API listen address: %s", portStr)
	}
	if cfg.RateLimit <= 0 || cfg.RateBurst < 1 {
		v.AddError("API rate_limit and rate_burst must be positive")
	}
	for _, o := range cfg.AllowedOrigins {
		if o != "*" && !isValidURL(o) {
			v.AddError("invalid allowed origin: %s", o)
		}
	}
}

func validateMQTTConfig(v *Validator, cfg *config.MQTTConfig) {
	if !cfg.Enabled {
		return
	}
	u, err := url.Parse(cfg.Broker)
	if cfg.Broker == "" || err != nil || u.Host == "" {
		v.AddError("invalid MQTT broker: %q (e.g. tcp://localhost:1883)", cfg.Broker)
	}
	if cfg.QoS < 0 || cfg.QoS > 2 {
		v.AddError("MQTT qos must be 0, 1 or 2")
	}
	if strings.TrimSpace(cfg.TopicPrefix) == "" {
		v.AddError("MQTT topic_prefix cannot be empty")
	}
}

func validateStorageConfig(v *Validator, cfg *config.StorageConfig) {
	if pg := cfg.Postgres; pg.Host != "" {
		if pg.Database == "" {
			v.AddError("storage.postgres.database is required when a host is set")
		}
		if pg.Port < 1 || pg.Port > 65535 {
			v.AddError("invalid storage.postgres.port: %d", pg.Port)
		}
		switch pg.SSLMode {
		case "disable", "require", "verify-ca", "verify-full":
		default:
			v.AddError("invalid storage.postgres.ssl_mode: %s", pg.SSLMode)
		}
	}
	if m := cfg.MinIO; m.Endpoint != "" {
		if m.Bucket == "" {
			v.AddError("storage.minio.bucket is required when an endpoint is set")
		} else if !isValidBucketName(m.Bucket) {
			v.AddError("invalid storage.minio.bucket: %s", m.Bucket)
		}
		if m.AccessKeyID == "" || m.SecretAccessKey == "" {
			v.AddError("storage.minio credentials are required when an endpoint is set")
		}
	}
}

// -----------------------------------------------------------------------------
// helpers
// -----------------------------------------------------------------------------

var (
	hostnameLabel = regexp.MustCompile(`^[a-zA-Z0-9]([a-zA-Z0-9\-]{0,61}[a-zA-Z0-9])?$`)
	bucketName    = regexp.MustCompile(`^[a-z0-9][a-z0-9.\-]{1,61}[a-z0-9]$`)
)

func isValidEmail(email string) bool {
	_, err := mail.ParseAddress(email)
	return err == nil
}

func isValidURL(s string) bool {
	if !strings.HasPrefix(s, "http://") && !strings.HasPrefix(s, "https://") {
		return false
	}
	u, err := url.Parse(s)
	return err == nil && u.Host != ""
}

func isValidHostname(hostname string) bool {
	if len(hostname) == 0 || len(hostname) > 253 {
		return false
	}
	for _, l := range strings.Split(hostname, ".") {
		if !hostnameLabel.MatchString(l) {
			return false
		}
	}
	return true
}

func isValidFilePath(path string) bool {
	if path == "" {
		return false
	}
	clean := filepath.Clean(path)
	return clean != "" && !strings.Contains(path, "\x00")
}

func isValidBucketName(name string) bool {
	return bucketName.MatchString(name) && !strings.Contains(name, "..")
}
