package config

import "fmt"

type ServerConfig struct {
	Host    string `mapstructure:"host"`
	Port    int    `mapstructure:"port"`
	Mode    string `mapstructure:"mode"`
	BaseURL string `mapstructure:"base_url"`
}

func (s *ServerConfig) GetAddr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

type DatabaseConfig struct {
	Host            string `mapstructure:"host"`
	Port            int    `mapstructure:"port"`
	Username        string `mapstructure:"username"`
	Password        string `mapstructure:"password"`
	Database        string `mapstructure:"database"`
	MaxIdleConns    int    `mapstructure:"max_idle_conns"`
	MaxOpenConns    int    `mapstructure:"max_open_conns"`
	ConnMaxLifetime int    `mapstructure:"conn_max_lifetime"`
}

func (d *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		d.Username, d.Password, d.Host, d.Port, d.Database)
}

type LoggerConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	OutputPath string `mapstructure:"output_path"`
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

func (r *RedisConfig) GetAddr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// SkyfoneConfig holds credentials for the Skyfone cloud phone API.
// An empty token means the provider is not configured and its adapter
// is not registered.
type SkyfoneConfig struct {
	APIBase string `mapstructure:"api_base"`
	Token   string `mapstructure:"token"`
}

// PhantomixConfig holds credentials for the Phantomix cloud phone API.
type PhantomixConfig struct {
	APIBase string `mapstructure:"api_base"`
	APIKey  string `mapstructure:"api_key"`
}

// MorphCloudConfig holds the access/secret key pair for MorphCloud.
// The pair is exchanged for a short-lived session token by the adapter.
type MorphCloudConfig struct {
	APIBase   string `mapstructure:"api_base"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
}

type ProvidersConfig struct {
	Skyfone    SkyfoneConfig    `mapstructure:"skyfone"`
	Phantomix  PhantomixConfig  `mapstructure:"phantomix"`
	MorphCloud MorphCloudConfig `mapstructure:"morphcloud"`
}

// CaptureConfig tunes the device automation sequence. The settle
// intervals are empirical; treat them as deployment configuration.
type CaptureConfig struct {
	AppPackage         string `mapstructure:"app_package"`
	BootSettleSeconds  int    `mapstructure:"boot_settle_seconds"`
	LaunchSettleSeconds int   `mapstructure:"launch_settle_seconds"`
	AttemptTimeoutSeconds int `mapstructure:"attempt_timeout_seconds"`
	QueueSize          int    `mapstructure:"queue_size"`
	ImageDir           string `mapstructure:"image_dir"`
}

type PaymentConfig struct {
	APIBase              string `mapstructure:"api_base"`
	APIToken             string `mapstructure:"api_token"`
	WebhookSecret        string `mapstructure:"webhook_secret"`
	InvoiceExpirySeconds int    `mapstructure:"invoice_expiry_seconds"`
}

type TelegramConfig struct {
	BotToken string `mapstructure:"bot_token"`
}

type SessionConfig struct {
	DefaultDurationMinutes int `mapstructure:"default_duration_minutes"`
}
