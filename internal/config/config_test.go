package config

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/mikeyg42/plantwatch/internal/crypto"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "plantwatch.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	want := NewDefaultConfig()
	if cfg.Viewer.Path != want.Viewer.Path {
		t.Errorf("viewer path = %q, want %q", cfg.Viewer.Path, want.Viewer.Path)
	}
	if cfg.Capture.PollInterval != 200*time.Millisecond {
		t.Errorf("poll interval = %s", cfg.Capture.PollInterval)
	}
	if !reflect.DeepEqual(cfg.Monitor.Triggers, want.Monitor.Triggers) {
		t.Errorf("triggers = %v, want %v", cfg.Monitor.Triggers, want.Monitor.Triggers)
	}
	if cfg.Classifier.Threshold != 0.8 {
		t.Errorf("threshold = %v", cfg.Classifier.Threshold)
	}
	if cfg.API.ListenAddr != "127.0.0.1:8090" {
		t.Errorf("listen addr = %q", cfg.API.ListenAddr)
	}
	if cfg.Storage.Postgres.Port != 5432 || cfg.Storage.MinIO.Bucket != "plantwatch-captures" {
		t.Errorf("storage defaults not applied: %+v", cfg.Storage)
	}
}

func TestLoadFileOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
viewer:
  path: C:\TVWall\TVWall.exe
capture:
  camera_timeout: 45s
monitor:
  triggers:
    - "30 6 * * *"
mail:
  method: smtp
  recipients:
    - ops@example.com
    - grower@example.com
  smtp:
    host: smtp.example.com
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Viewer.Path != `C:\TVWall\TVWall.exe` {
		t.Errorf("viewer path = %q", cfg.Viewer.Path)
	}
	if cfg.Capture.CameraTimeout != 45*time.Second {
		t.Errorf("camera timeout = %s", cfg.Capture.CameraTimeout)
	}
	if cfg.Capture.LoginTimeout != 60*time.Second {
		t.Errorf("login timeout lost its default: %s", cfg.Capture.LoginTimeout)
	}
	if !reflect.DeepEqual(cfg.Monitor.Triggers, []string{"30 6 * * *"}) {
		t.Errorf("triggers = %v", cfg.Monitor.Triggers)
	}
	if cfg.Mail.Method != "smtp" || cfg.Mail.SMTP.Host != "smtp.example.com" {
		t.Errorf("mail = %+v", cfg.Mail)
	}
	if cfg.Mail.SMTP.Port != 587 {
		t.Errorf("smtp port lost its default: %d", cfg.Mail.SMTP.Port)
	}
	if len(cfg.Mail.Recipients) != 2 {
		t.Errorf("recipients = %v", cfg.Mail.Recipients)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected an error for a missing config file")
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("PLANTWATCH_API_LISTEN_ADDR", "0.0.0.0:9000")
	t.Setenv("PLANTWATCH_CAPTURE_VIDEO_TIMEOUT", "90s")
	t.Setenv("PLANTWATCH_MAIL_RECIPIENTS", "a@example.com,b@example.com")
	t.Setenv("PLANTWATCH_MQTT_ENABLED", "true")

	path := writeConfig(t, "api:\n  listen_addr: 127.0.0.1:7000\n")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.API.ListenAddr != "0.0.0.0:9000" {
		t.Errorf("env should win over the file, got %q", cfg.API.ListenAddr)
	}
	if cfg.Capture.VideoTimeout != 90*time.Second {
		t.Errorf("video timeout = %s", cfg.Capture.VideoTimeout)
	}
	if !reflect.DeepEqual(cfg.Mail.Recipients, []string{"a@example.com", "b@example.com"}) {
		t.Errorf("recipients = %v", cfg.Mail.Recipients)
	}
	if !cfg.MQTT.Enabled {
		t.Error("mqtt should be enabled from env")
	}
}

func TestLoadResolvesEncryptedSecrets(t *testing.T) {
	key, err := crypto.GenerateMasterKey()
	if err != nil {
		t.Fatalf("GenerateMasterKey: %v", err)
	}
	sealed, err := crypto.EncryptSecret("hunter2", key)
	if err != nil {
		t.Fatalf("EncryptSecret: %v", err)
	}

	path := writeConfig(t, "mail:\n  smtp:\n    password: \""+sealed+"\"\nmqtt:\n  password: plain-pass\n")

	t.Setenv("PLANTWATCH_MASTER_KEY", key)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Mail.SMTP.Password != "hunter2" {
		t.Errorf("smtp password = %q, want decrypted value", cfg.Mail.SMTP.Password)
	}
	if cfg.MQTT.Password != "plain-pass" {
		t.Errorf("plain secrets must pass through, got %q", cfg.MQTT.Password)
	}
}

func TestLoadEncryptedSecretWithoutKey(t *testing.T) {
	key, err := crypto.GenerateMasterKey()
	if err != nil {
		t.Fatalf("GenerateMasterKey: %v", err)
	}
	sealed, err := crypto.EncryptSecret("hunter2", key)
	if err != nil {
		t.Fatalf("EncryptSecret: %v", err)
	}

	path := writeConfig(t, "storage:\n  postgres:\n    password: \""+sealed+"\"\n")
	if _, err := Load(path); err == nil {
		t.Fatal("expected an error when no master key is available")
	}
}
