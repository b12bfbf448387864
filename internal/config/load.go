package config

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/mikeyg42/plantwatch/internal/crypto"
)

// EnvPrefix prefixes every environment override, e.g. PLANTWATCH_API_LISTEN_ADDR.
const EnvPrefix = "PLANTWATCH"

// Load layers defaults, the YAML file at path (optional when empty) and
// environment variables, then decrypts "enc:" secrets.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	// Seed every key with its default so env overrides reach keys absent from the file.
	defaults, err := yaml.Marshal(NewDefaultConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to encode defaults: %w", err)
	}
	if err := v.ReadConfig(bytes.NewReader(defaults)); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.MergeInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	if err := cfg.ResolveSecrets(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ResolveSecrets decrypts every "enc:" secret in place with MasterKey.
func (c *Config) ResolveSecrets() error {
	secrets := map[string]*string{
		"mail.smtp.password":              &c.Mail.SMTP.Password,
		"mail.gmail.client_secret":        &c.Mail.Gmail.ClientSecret,
		"mqtt.password":                   &c.MQTT.Password,
		"storage.postgres.password":       &c.Storage.Postgres.Password,
		"storage.minio.secret_access_key": &c.Storage.MinIO.SecretAccessKey,
	}
	for key, ptr := range secrets {
		plain, err := crypto.ResolveSecret(*ptr, c.MasterKey)
		if err != nil {
			return fmt.Errorf("failed to decrypt %s: %w", key, err)
		}
		*ptr = plain
	}
	return nil
}
