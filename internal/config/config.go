// Package config loads plantwatch settings from YAML and PLANTWATCH_* env vars.
package config

import (
	"time"
)

// Config holds all application configuration
type Config struct {
	Log        LogConfig        `yaml:"log" json:"log" mapstructure:"log"`
	Viewer     ViewerConfig     `yaml:"viewer" json:"viewer" mapstructure:"viewer"`
	Capture    CaptureConfig    `yaml:"capture" json:"capture" mapstructure:"capture"`
	Monitor    MonitorConfig    `yaml:"monitor" json:"monitor" mapstructure:"monitor"`
	Classifier ClassifierConfig `yaml:"classifier" json:"classifier" mapstructure:"classifier"`
	Mail       MailConfig       `yaml:"mail" json:"mail" mapstructure:"mail"`
	Farms      FarmsConfig      `yaml:"farms" json:"farms" mapstructure:"farms"`
	API        APIConfig        `yaml:"api" json:"api" mapstructure:"api"`
	MQTT       MQTTConfig       `yaml:"mqtt" json:"mqtt" mapstructure:"mqtt"`
	Storage    StorageConfig    `yaml:"storage" json:"storage" mapstructure:"storage"`

	// MasterKey decrypts "enc:" values; normally supplied as PLANTWATCH_MASTER_KEY.
	MasterKey string `yaml:"master_key" json:"-" mapstructure:"master_key"`
}

type LogConfig struct {
	Level  string `yaml:"level" json:"level" mapstructure:"level"`
	Format string `yaml:"format" json:"format" mapstructure:"format"` // json, console
}

// ViewerConfig locates the camera viewer and the folder it captures into.
type ViewerConfig struct {
	Path        string   `yaml:"path" json:"path" mapstructure:"path"`
	ProcessName string   `yaml:"process_name" json:"process_name" mapstructure:"process_name"`
	Args        []string `yaml:"args" json:"args" mapstructure:"args"`
	CaptureRoot string   `yaml:"capture_root" json:"capture_root" mapstructure:"capture_root"`
}

type CaptureConfig struct {
	LoginTimeout    time.Duration `yaml:"login_timeout" json:"login_timeout" mapstructure:"login_timeout"`
	CameraTimeout   time.Duration `yaml:"camera_timeout" json:"camera_timeout" mapstructure:"camera_timeout"`
	VideoTimeout    time.Duration `yaml:"video_timeout" json:"video_timeout" mapstructure:"video_timeout"`
	PollInterval    time.Duration `yaml:"poll_interval" json:"poll_interval" mapstructure:"poll_interval"`
	ScrollDownPause time.Duration `yaml:"scroll_down_pause" json:"scroll_down_pause" mapstructure:"scroll_down_pause"`
	ScrollUpPause   time.Duration `yaml:"scroll_up_pause" json:"scroll_up_pause" mapstructure:"scroll_up_pause"`
}

type MonitorConfig struct {
	Triggers  []string `yaml:"triggers" json:"triggers" mapstructure:"triggers"`
	AutoStart bool     `yaml:"auto_start" json:"auto_start" mapstructure:"auto_start"`
}

type ClassifierConfig struct {
	BaseURL   string        `yaml:"base_url" json:"base_url" mapstructure:"base_url"`
	Timeout   time.Duration `yaml:"timeout" json:"timeout" mapstructure:"timeout"`
	Threshold float64       `yaml:"threshold" json:"threshold" mapstructure:"threshold"`
}

// MailConfig selects how disease alerts are delivered.
type MailConfig struct {
	Method       string        `yaml:"method" json:"method" mapstructure:"method"` // endpoint, smtp, gmail, disabled
	Recipients   []string      `yaml:"recipients" json:"recipients" mapstructure:"recipients"`
	SystemName   string        `yaml:"system_name" json:"system_name" mapstructure:"system_name"`
	MaxRetries   int           `yaml:"max_retries" json:"max_retries" mapstructure:"max_retries"`
	RetryInitial time.Duration `yaml:"retry_initial" json:"retry_initial" mapstructure:"retry_initial"`
	RetryMax     time.Duration `yaml:"retry_max" json:"retry_max" mapstructure:"retry_max"`

	Endpoint EndpointMailConfig `yaml:"endpoint" json:"endpoint" mapstructure:"endpoint"`
	SMTP     SMTPConfig         `yaml:"smtp" json:"smtp" mapstructure:"smtp"`
	Gmail    GmailConfig        `yaml:"gmail" json:"gmail" mapstructure:"gmail"`
}

type EndpointMailConfig struct {
	BaseURL string        `yaml:"base_url" json:"base_url" mapstructure:"base_url"`
	Timeout time.Duration `yaml:"timeout" json:"timeout" mapstructure:"timeout"`
}

type SMTPConfig struct {
	Host     string `yaml:"host" json:"host" mapstructure:"host"`
	Port     int    `yaml:"port" json:"port" mapstructure:"port"`
	Username string `yaml:"username" json:"username" mapstructure:"username"`
	Password string `yaml:"password" json:"-" mapstructure:"password"`
	From     string `yaml:"from" json:"from" mapstructure:"from"`
	FromName string `yaml:"from_name" json:"from_name" mapstructure:"from_name"`
}

type GmailConfig struct {
	ClientID       string `yaml:"client_id" json:"client_id" mapstructure:"client_id"`
	ClientSecret   string `yaml:"client_secret" json:"-" mapstructure:"client_secret"`
	RedirectURL    string `yaml:"redirect_url" json:"redirect_url" mapstructure:"redirect_url"`
	TokenStorePath string `yaml:"token_store_path" json:"token_store_path" mapstructure:"token_store_path"`
	From           string `yaml:"from" json:"from" mapstructure:"from"`
}

// FarmsConfig points at an optional camera table replacing the built-in one.
type FarmsConfig struct {
	File string `yaml:"file" json:"file" mapstructure:"file"`
}

type APIConfig struct {
	ListenAddr     string   `yaml:"listen_addr" json:"listen_addr" mapstructure:"listen_addr"`
	AllowedOrigins []string `yaml:"allowed_origins" json:"allowed_origins" mapstructure:"allowed_origins"`
	RateLimit      float64  `yaml:"rate_limit" json:"rate_limit" mapstructure:"rate_limit"` // requests per second per client
	RateBurst      int      `yaml:"rate_burst" json:"rate_burst" mapstructure:"rate_burst"`
}

type MQTTConfig struct {
	Enabled     bool   `yaml:"enabled" json:"enabled" mapstructure:"enabled"`
	Broker      string `yaml:"broker" json:"broker" mapstructure:"broker"`
	ClientID    string `yaml:"client_id" json:"client_id" mapstructure:"client_id"`
	TopicPrefix string `yaml:"topic_prefix" json:"topic_prefix" mapstructure:"topic_prefix"`
	QoS         int    `yaml:"qos" json:"qos" mapstructure:"qos"`
	Username    string `yaml:"username" json:"username" mapstructure:"username"`
	Password    string `yaml:"password" json:"-" mapstructure:"password"`
}

type StorageConfig struct {
	Postgres PostgresConfig `yaml:"postgres" json:"postgres" mapstructure:"postgres"`
	MinIO    MinIOConfig    `yaml:"minio" json:"minio" mapstructure:"minio"`
}

// PostgresConfig is disabled while Host is empty.
type PostgresConfig struct {
	Host            string        `yaml:"host" json:"host" mapstructure:"host"`
	Port            int           `yaml:"port" json:"port" mapstructure:"port"`
	Database        string        `yaml:"database" json:"database" mapstructure:"database"`
	Username        string        `yaml:"username" json:"username" mapstructure:"username"`
	Password        string        `yaml:"password" json:"-" mapstructure:"password"`
	SSLMode         string        `yaml:"ssl_mode" json:"ssl_mode" mapstructure:"ssl_mode"`
	MaxConnections  int           `yaml:"max_connections" json:"max_connections" mapstructure:"max_connections"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" json:"conn_max_lifetime" mapstructure:"conn_max_lifetime"`
}

// MinIOConfig is disabled while Endpoint is empty.
type MinIOConfig struct {
	Endpoint        string        `yaml:"endpoint" json:"endpoint" mapstructure:"endpoint"`
	AccessKeyID     string        `yaml:"access_key_id" json:"access_key_id" mapstructure:"access_key_id"`
	SecretAccessKey string        `yaml:"secret_access_key" json:"-" mapstructure:"secret_access_key"`
	UseSSL          bool          `yaml:"use_ssl" json:"use_ssl" mapstructure:"use_ssl"`
	Bucket          string        `yaml:"bucket" json:"bucket" mapstructure:"bucket"`
	Region          string        `yaml:"region" json:"region" mapstructure:"region"`
	ConnectTimeout  time.Duration `yaml:"connect_timeout" json:"connect_timeout" mapstructure:"connect_timeout"`
	MaxRetries      int           `yaml:"max_retries" json:"max_retries" mapstructure:"max_retries"`
}

// NewDefaultConfig returns a Config with default values
func NewDefaultConfig() *Config {
	return &Config{
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		Viewer: ViewerConfig{
			Path:        `D:\Users\TVWall\TRUECLOUD\TVWall.exe`,
			ProcessName: "TVWall.exe",
			CaptureRoot: `D:\Users\TVWall\TRUECLOUD\download`,
		},
		Capture: CaptureConfig{
			LoginTimeout:    60 * time.Second,
			CameraTimeout:   60 * time.Second,
			VideoTimeout:    60 * time.Second,
			PollInterval:    200 * time.Millisecond,
			ScrollDownPause: 500 * time.Millisecond,
			ScrollUpPause:   time.Second,
		},
		Monitor: MonitorConfig{
			Triggers: []string{"0 8 * * *", "0 16 * * *"},
		},
		Classifier: ClassifierConfig{
			BaseURL:   "http://127.0.0.1:8000",
			Timeout:   30 * time.Second,
			Threshold: 0.8,
		},
		Mail: MailConfig{
			Method:       "endpoint",
			SystemName:   "Plant Disease Monitoring System",
			MaxRetries:   3,
			RetryInitial: time.Second,
			RetryMax:     5 * time.Second,
			Endpoint: EndpointMailConfig{
				BaseURL: "http://127.0.0.1:8000",
				Timeout: 30 * time.Second,
			},
			SMTP: SMTPConfig{
				Port: 587,
			},
			Gmail: GmailConfig{
				RedirectURL:    "http://127.0.0.1:8787/oauth2/callback",
				TokenStorePath: "gmail-token.enc",
			},
		},
		API: APIConfig{
			ListenAddr: "127.0.0.1:8090",
			RateLimit:  2,
			RateBurst:  5,
		},
		MQTT: MQTTConfig{
			ClientID:    "plantwatch",
			TopicPrefix: "plantwatch/events",
			QoS:         1,
		},
		Storage: StorageConfig{
			Postgres: PostgresConfig{
				Port:            5432,
				Database:        "plantwatch",
				SSLMode:         "disable",
				MaxConnections:  5,
				ConnMaxLifetime: 5 * time.Minute,
			},
			MinIO: MinIOConfig{
				Bucket:         "plantwatch-captures",
				ConnectTimeout: 30 * time.Second,
				MaxRetries:     3,
			},
		},
	}
}
