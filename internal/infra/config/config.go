package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	StorageMemory = "memory"
	StorageMongo  = "mongo"
)

// Config aggregates application configuration. Values come from the
// environment, an optional .env file and an optional config/config.yaml,
// in that order of precedence.
type Config struct {
	Env                string
	HTTPAddr           string
	StorageMode        string
	MongoURI           string
	MongoDB            string
	KafkaBrokers       []string
	KafkaTopicPrefix   string
	KafkaConsumerGroup string
	IdempotencyTTL     time.Duration
	OutboxPollInterval time.Duration
	RetryBackoff       []time.Duration
	Payment            PaymentConfig
	Reminder           ReminderConfig
	RedisAddr          string
	RedisPassword      string
	RedisDB            int
	RabbitMQURL        string
	MailQueue          string
	JWTSecret          string
	AlertsTopic        string
}

type PaymentConfig struct {
	BaseURL     string
	KeyID       string
	KeySecret   string
	Timeout     time.Duration
	Currency    string
	RefundSpeed string
}

type ReminderConfig struct {
	Interval   time.Duration
	RunOnStart bool
}

var defaults = map[string]any{
	"APP_ENV":               "dev",
	"HTTP_ADDR":             ":8080",
	"STORAGE_MODE":          StorageMemory,
	"MONGO_DB":              "getmyguide",
	"KAFKA_TOPIC_PREFIX":    "",
	"KAFKA_CONSUMER_GROUP":  "getmyguide-notifications",
	"IDEMP_TTL":             "168h",
	"OUTBOX_POLL_INTERVAL":  "500ms",
	"RETRY_BACKOFF":         "1s,5s,30s",
	"PAYMENT_BASE_URL":      "https://api.razorpay.com",
	"PAYMENT_TIMEOUT":       "10s",
	"PAYMENT_CURRENCY":      "INR",
	"REFUND_SPEED":          "normal",
	"REMINDER_INTERVAL":     "24h",
	"REMINDER_RUN_ON_START": false,
	"REDIS_DB":              0,
	"MAIL_QUEUE":            "getmyguide.mail",
	"ALERTS_TOPIC":          "ops.alerts.v1",
}

// Load parses configuration from the current environment.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}
	v := viper.New()
	v.AddConfigPath("./config")
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
	}
	return FromViper(v)
}

// FromViper builds a Config from v with environment overrides applied.
func FromViper(v *viper.Viper) (Config, error) {
	v.AutomaticEnv()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	cfg := Config{
		Env:                v.GetString("APP_ENV"),
		HTTPAddr:           v.GetString("HTTP_ADDR"),
		StorageMode:        strings.ToLower(strings.TrimSpace(v.GetString("STORAGE_MODE"))),
		MongoURI:           v.GetString("MONGO_URI"),
		MongoDB:            v.GetString("MONGO_DB"),
		KafkaBrokers:       splitList(v.GetString("KAFKA_BROKERS")),
		KafkaTopicPrefix:   v.GetString("KAFKA_TOPIC_PREFIX"),
		KafkaConsumerGroup: v.GetString("KAFKA_CONSUMER_GROUP"),
		RedisAddr:          v.GetString("REDIS_ADDR"),
		RedisPassword:      v.GetString("REDIS_PASSWORD"),
		RedisDB:            v.GetInt("REDIS_DB"),
		RabbitMQURL:        v.GetString("RABBITMQ_URL"),
		MailQueue:          v.GetString("MAIL_QUEUE"),
		JWTSecret:          v.GetString("JWT_SECRET"),
		AlertsTopic:        v.GetString("ALERTS_TOPIC"),
		Payment: PaymentConfig{
			BaseURL:     v.GetString("PAYMENT_BASE_URL"),
			KeyID:       v.GetString("PAYMENT_KEY_ID"),
			KeySecret:   v.GetString("PAYMENT_KEY_SECRET"),
			Currency:    strings.ToUpper(v.GetString("PAYMENT_CURRENCY")),
			RefundSpeed: strings.ToLower(v.GetString("REFUND_SPEED")),
		},
		Reminder: ReminderConfig{RunOnStart: v.GetBool("REMINDER_RUN_ON_START")},
	}

	var err error
	if cfg.IdempotencyTTL, err = duration(v, "IDEMP_TTL"); err != nil {
		return Config{}, err
	}
	if cfg.OutboxPollInterval, err = duration(v, "OUTBOX_POLL_INTERVAL"); err != nil {
		return Config{}, err
	}
	if cfg.Payment.Timeout, err = duration(v, "PAYMENT_TIMEOUT"); err != nil {
		return Config{}, err
	}
	if cfg.Reminder.Interval, err = duration(v, "REMINDER_INTERVAL"); err != nil {
		return Config{}, err
	}
	for _, raw := range splitList(v.GetString("RETRY_BACKOFF")) {
		d, err := time.ParseDuration(raw)
		if err != nil {
			return Config{}, fmt.Errorf("invalid RETRY_BACKOFF component %q: %w", raw, err)
		}
		cfg.RetryBackoff = append(cfg.RetryBackoff, d)
	}
	return cfg, cfg.validate()
}

func (c Config) validate() error {
	switch c.StorageMode {
	case StorageMemory:
	case StorageMongo:
		if c.MongoURI == "" {
			return fmt.Errorf("MONGO_URI is required when STORAGE_MODE=%s", StorageMongo)
		}
		if len(c.KafkaBrokers) == 0 {
			return fmt.Errorf("KAFKA_BROKERS is required when STORAGE_MODE=%s", StorageMongo)
		}
	default:
		return fmt.Errorf("invalid STORAGE_MODE %q", c.StorageMode)
	}
	if c.Payment.KeySecret == "" {
		return fmt.Errorf("PAYMENT_KEY_SECRET is required")
	}
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	switch c.Payment.RefundSpeed {
	case "normal", "instant":
	default:
		return fmt.Errorf("invalid REFUND_SPEED %q", c.Payment.RefundSpeed)
	}
	if c.Reminder.Interval <= 0 {
		return fmt.Errorf("REMINDER_INTERVAL must be positive")
	}
	return nil
}

// UsesMongo reports whether durable storage is configured.
func (c Config) UsesMongo() bool { return c.StorageMode == StorageMongo }

func duration(v *viper.Viper, key string) (time.Duration, error) {
	raw := strings.TrimSpace(v.GetString(key))
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s duration: %w", key, err)
	}
	return d, nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
