// Package config loads runtime settings from .env, an optional YAML file and
// the process environment, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

type StoreBackend string

const (
	BackendRedis    StoreBackend = "redis"
	BackendDynamoDB StoreBackend = "dynamodb"
	BackendMemory   StoreBackend = "memory"
)

type Config struct {
	HTTPAddr       string        `mapstructure:"http_addr"`
	PostgresDSN    string        `mapstructure:"postgres_dsn"`
	RedisAddr      string        `mapstructure:"redis_addr"`
	RedisPassword  string        `mapstructure:"redis_password"`
	RedisDB        int           `mapstructure:"redis_db"`
	StoreBackend   StoreBackend  `mapstructure:"store_backend"`
	StorePrefix    string        `mapstructure:"store_prefix"`
	StoreTimeout   time.Duration `mapstructure:"store_timeout"`
	DynamoDBTable  string        `mapstructure:"dynamodb_table"`
	AWSRegion      string        `mapstructure:"aws_region"`
	JWTSecret      string        `mapstructure:"jwt_secret"`
	TelegramToken  string        `mapstructure:"telegram_bot_token"`
	NotifyQueue    bool          `mapstructure:"notify_queue"`
	MaxCharacters  int           `mapstructure:"max_characters"`
	Proximity      bool          `mapstructure:"proximity_enabled"`
	RadiusKm       float64       `mapstructure:"interest_radius_km"`
	UnknownPolicy  string        `mapstructure:"proximity_unknown"`
	AllowedOrigins []string      `mapstructure:"allowed_origins"`
	LogLevel       string        `mapstructure:"log_level"`
	LogFormat      string        `mapstructure:"log_format"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("http_addr", ":8080")
	v.SetDefault("postgres_dsn", "host=localhost user=user password=password dbname=meetinclick port=5432 sslmode=disable")
	v.SetDefault("redis_addr", "localhost:6380")
	v.SetDefault("redis_password", "")
	v.SetDefault("redis_db", 0)
	v.SetDefault("store_backend", string(BackendRedis))
	v.SetDefault("store_prefix", "meetinclick")
	v.SetDefault("store_timeout", DefaultStoreTimeout)
	v.SetDefault("dynamodb_table", "MeetInClickStore")
	v.SetDefault("aws_region", "eu-central-1")
	v.SetDefault("jwt_secret", "")
	v.SetDefault("telegram_bot_token", "")
	v.SetDefault("notify_queue", true)
	v.SetDefault("max_characters", MaxCharacters)
	v.SetDefault("proximity_enabled", false)
	v.SetDefault("interest_radius_km", DefaultInterestRadiusKm)
	v.SetDefault("proximity_unknown", "skip")
	v.SetDefault("allowed_origins", []string{"*"})
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "text")
}

// Load reads .env (when present), config/config.yaml (when present) and the
// environment. Environment variables use the upper-cased key names, for
// example STORE_BACKEND or MAX_CHARACTERS.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		logrus.Debug("no .env file loaded")
	}

	v := viper.New()
	setDefaults(v)
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("config")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("config: read file: %w", err)
		}
	}
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Validate rejects settings the server cannot run with.
func (c *Config) Validate() error {
	switch c.StoreBackend {
	case BackendRedis, BackendDynamoDB, BackendMemory:
	default:
		return fmt.Errorf("config: unknown store backend %q", c.StoreBackend)
	}
	if c.MaxCharacters <= 0 {
		return fmt.Errorf("config: max_characters must be positive, got %d", c.MaxCharacters)
	}
	if c.RadiusKm < 0 {
		return fmt.Errorf("config: interest_radius_km must not be negative")
	}
	switch c.UnknownPolicy {
	case "skip", "exclude":
	default:
		return fmt.Errorf("config: proximity_unknown must be skip or exclude, got %q", c.UnknownPolicy)
	}
	if c.StoreTimeout <= 0 {
		c.StoreTimeout = DefaultStoreTimeout
	}
	return nil
}

// ConfigureLogging applies LogLevel and LogFormat to the standard logrus logger.
func (c *Config) ConfigureLogging() {
	level, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		logrus.WithError(err).Warn("unknown log level, using info")
		level = logrus.InfoLevel
	}
	logrus.SetLevel(level)
	if c.LogFormat == "json" {
		logrus.SetFormatter(&logrus.JSONFormatter{})
		return
	}
	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
}
