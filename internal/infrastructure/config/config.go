package config

import (
	"fmt"
	"strings"
	"sync"

	"github.com/spf13/viper"

	sharedConfig "dropcode/internal/shared/config"
)

type Config struct {
	Server    sharedConfig.ServerConfig    `mapstructure:"server"`
	Database  sharedConfig.DatabaseConfig  `mapstructure:"database"`
	Logger    sharedConfig.LoggerConfig    `mapstructure:"logger"`
	Redis     sharedConfig.RedisConfig     `mapstructure:"redis"`
	Providers sharedConfig.ProvidersConfig `mapstructure:"providers"`
	Capture   sharedConfig.CaptureConfig   `mapstructure:"capture"`
	Payment   sharedConfig.PaymentConfig   `mapstructure:"payment"`
	Telegram  sharedConfig.TelegramConfig  `mapstructure:"telegram"`
	Session   sharedConfig.SessionConfig   `mapstructure:"session"`
}

var (
	appConfig   *Config
	appConfigMu sync.RWMutex
)

// Load loads configuration from file and environment variables
func Load(env string) (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./configs")
	viper.AddConfigPath("../configs")
	viper.AddConfigPath("../../configs")

	viper.SetEnvPrefix("DROPCODE")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if env != "" && env != "default" {
		viper.Set("server.mode", env)
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	appConfigMu.Lock()
	appConfig = &config
	appConfigMu.Unlock()

	return &config, nil
}

// Get returns the loaded configuration
func Get() *Config {
	appConfigMu.RLock()
	defer appConfigMu.RUnlock()
	return appConfig
}

// setDefaults sets default configuration values
func setDefaults() {
	// Server defaults
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.mode", "debug")
	viper.SetDefault("server.base_url", "http://localhost:8080")

	// Database defaults
	viper.SetDefault("database.host", "localhost")
	viper.SetDefault("database.port", 3306)
	viper.SetDefault("database.username", "root")
	viper.SetDefault("database.password", "password")
	viper.SetDefault("database.database", "dropcode_dev")
	viper.SetDefault("database.max_idle_conns", 10)
	viper.SetDefault("database.max_open_conns", 100)
	viper.SetDefault("database.conn_max_lifetime", 60)

	// Logger defaults
	viper.SetDefault("logger.level", "info")
	viper.SetDefault("logger.format", "console")
	viper.SetDefault("logger.output_path", "stdout")

	// Redis defaults
	viper.SetDefault("redis.host", "localhost")
	viper.SetDefault("redis.port", 6379)
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)

	// Provider defaults (credentials empty by default; an empty credential
	// means the adapter is not registered)
	viper.SetDefault("providers.skyfone.api_base", "https://api.skyfone.example.com")
	viper.SetDefault("providers.skyfone.token", "")
	viper.SetDefault("providers.phantomix.api_base", "https://openapi.phantomix.example.com")
	viper.SetDefault("providers.phantomix.api_key", "")
	viper.SetDefault("providers.morphcloud.api_base", "https://cloud-api.morph.example.com")
	viper.SetDefault("providers.morphcloud.access_key", "")
	viper.SetDefault("providers.morphcloud.secret_key", "")

	// Capture defaults (settle intervals are tuned empirically)
	viper.SetDefault("capture.app_package", "de.shippingapp.android")
	viper.SetDefault("capture.boot_settle_seconds", 25)
	viper.SetDefault("capture.launch_settle_seconds", 8)
	viper.SetDefault("capture.attempt_timeout_seconds", 120)
	viper.SetDefault("capture.queue_size", 16)
	viper.SetDefault("capture.image_dir", "./data/captures")

	// Payment defaults
	viper.SetDefault("payment.api_base", "https://pay.crypt.example.com/api")
	viper.SetDefault("payment.api_token", "")
	viper.SetDefault("payment.webhook_secret", "")
	viper.SetDefault("payment.invoice_expiry_seconds", 3600)

	// Telegram defaults
	viper.SetDefault("telegram.bot_token", "")

	// Session defaults
	viper.SetDefault("session.default_duration_minutes", 30)
}
