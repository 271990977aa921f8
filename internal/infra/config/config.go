package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	StorageMemory = "memory"
	StorageMongo  = "mongo"
)

// Config aggregates application configuration values loaded from the environment
// and an optional config.yaml.
type Config struct {
	Env                string
	LogLevel           string
	HTTPAddr           string
	StorageMode        string
	FixturesPath       string
	MongoURI           string
	MongoDB            string
	KafkaBrokers       []string
	KafkaTopicPrefix   string
	KafkaGroupID       string
	IdempotencyTTL     time.Duration
	OutboxPollInterval time.Duration
	RetryBackoff       []time.Duration
	RedisAddr          string
	RedisPassword      string
	RedisDB            int
	LockTTL            time.Duration
	PersistTimeout     time.Duration
	CompletionInterval time.Duration

	PaymentProvider     string
	PaymentCurrency     string
	PaymentTimeout      time.Duration
	PaymentReturnURL    string
	StripeSecretKey     string
	StripeWebhookSecret string
	YookassaShopID      string
	YookassaSecretKey   string
	YookassaAPIURL      string
	WebhookRateLimit    float64
	WebhookBurst        int
	NotifyWorkers       int
	NotifyQueueSize     int
	NotifyMaxAttempts   int
	NotifyKafka         bool
	S3Endpoint          string
	S3AccessKey         string
	S3SecretKey         string
	S3Bucket            string
	S3UseSSL            bool
	CORSAllowedOrigins  []string
	ShutdownGracePeriod time.Duration
}

func defaults(v *viper.Viper) {
	v.SetDefault("APP_ENV", "dev")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("HTTP_ADDR", ":8080")
	v.SetDefault("STORAGE_MODE", StorageMemory)
	v.SetDefault("FIXTURES_PATH", "fixtures/directory.json")
	v.SetDefault("MONGO_DB", "stayhub")
	v.SetDefault("KAFKA_GROUP_ID", "stayhub-payments")
	v.SetDefault("IDEMP_TTL", "168h")
	v.SetDefault("OUTBOX_POLL_INTERVAL", "500ms")
	v.SetDefault("RETRY_BACKOFF", "1s,5s,30s")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("LOCK_TTL", "30s")
	v.SetDefault("PERSIST_TIMEOUT", "15s")
	v.SetDefault("COMPLETION_INTERVAL", "1h")
	v.SetDefault("PAYMENT_PROVIDER", "sandbox")
	v.SetDefault("PAYMENT_CURRENCY", "USD")
	v.SetDefault("PAYMENT_GATEWAY_TIMEOUT", "10s")
	v.SetDefault("PAYMENT_RETURN_URL", "http://localhost:3000/bookings")
	v.SetDefault("YOOKASSA_API_URL", "https://api.yookassa.ru/v3")
	v.SetDefault("WEBHOOK_RATE_LIMIT", 50.0)
	v.SetDefault("WEBHOOK_BURST", 100)
	v.SetDefault("NOTIFY_WORKERS", 4)
	v.SetDefault("NOTIFY_QUEUE_SIZE", 1024)
	v.SetDefault("NOTIFY_MAX_ATTEMPTS", 3)
	v.SetDefault("S3_ENDPOINT", "")
	v.SetDefault("S3_ACCESS_KEY", "minioadmin")
	v.SetDefault("S3_SECRET_KEY", "minioadmin")
	v.SetDefault("S3_BUCKET", "stayhub-receipts")
	v.SetDefault("S3_USE_SSL", false)
	v.SetDefault("CORS_ALLOWED_ORIGINS", "*")
	v.SetDefault("SHUTDOWN_GRACE_PERIOD", "15s")
}

// Load reads configuration from the current environment. A config.yaml in the working
// directory or ./config is merged underneath the environment when present.
func Load() (Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AutomaticEnv()
	defaults(v)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("config: read file: %w", err)
		}
	}
	return FromViper(v)
}

// FromViper builds a Config from an already populated viper instance.
func FromViper(v *viper.Viper) (Config, error) {
	cfg := Config{
		Env:                 v.GetString("APP_ENV"),
		LogLevel:            v.GetString("LOG_LEVEL"),
		HTTPAddr:            v.GetString("HTTP_ADDR"),
		StorageMode:         strings.ToLower(v.GetString("STORAGE_MODE")),
		FixturesPath:        v.GetString("FIXTURES_PATH"),
		MongoURI:            v.GetString("MONGO_URI"),
		MongoDB:             v.GetString("MONGO_DB"),
		KafkaBrokers:        splitList(v.GetString("KAFKA_BROKERS")),
		KafkaTopicPrefix:    v.GetString("KAFKA_TOPIC_PREFIX"),
		KafkaGroupID:        v.GetString("KAFKA_GROUP_ID"),
		RedisAddr:           v.GetString("REDIS_ADDR"),
		RedisPassword:       v.GetString("REDIS_PASSWORD"),
		RedisDB:             v.GetInt("REDIS_DB"),
		PaymentProvider:     strings.ToLower(v.GetString("PAYMENT_PROVIDER")),
		PaymentCurrency:     strings.ToUpper(v.GetString("PAYMENT_CURRENCY")),
		PaymentReturnURL:    v.GetString("PAYMENT_RETURN_URL"),
		StripeSecretKey:     v.GetString("STRIPE_SECRET_KEY"),
		StripeWebhookSecret: v.GetString("STRIPE_WEBHOOK_SECRET"),
		YookassaShopID:      v.GetString("YOOKASSA_SHOP_ID"),
		YookassaSecretKey:   v.GetString("YOOKASSA_SECRET_KEY"),
		YookassaAPIURL:      v.GetString("YOOKASSA_API_URL"),
		WebhookRateLimit:    v.GetFloat64("WEBHOOK_RATE_LIMIT"),
		WebhookBurst:        v.GetInt("WEBHOOK_BURST"),
		NotifyWorkers:       v.GetInt("NOTIFY_WORKERS"),
		NotifyQueueSize:     v.GetInt("NOTIFY_QUEUE_SIZE"),
		NotifyMaxAttempts:   v.GetInt("NOTIFY_MAX_ATTEMPTS"),
		NotifyKafka:         v.GetBool("NOTIFY_KAFKA"),
		S3Endpoint:          v.GetString("S3_ENDPOINT"),
		S3AccessKey:         v.GetString("S3_ACCESS_KEY"),
		S3SecretKey:         v.GetString("S3_SECRET_KEY"),
		S3Bucket:            v.GetString("S3_BUCKET"),
		S3UseSSL:            v.GetBool("S3_USE_SSL"),
		CORSAllowedOrigins:  splitList(v.GetString("CORS_ALLOWED_ORIGINS")),
	}

	durations := []struct {
		key string
		dst *time.Duration
	}{
		{"IDEMP_TTL", &cfg.IdempotencyTTL},
		{"OUTBOX_POLL_INTERVAL", &cfg.OutboxPollInterval},
		{"LOCK_TTL", &cfg.LockTTL},
		{"PERSIST_TIMEOUT", &cfg.PersistTimeout},
		{"COMPLETION_INTERVAL", &cfg.CompletionInterval},
		{"PAYMENT_GATEWAY_TIMEOUT", &cfg.PaymentTimeout},
		{"SHUTDOWN_GRACE_PERIOD", &cfg.ShutdownGracePeriod},
	}
	for _, d := range durations {
		parsed, err := parseDuration(d.key, v.GetString(d.key))
		if err != nil {
			return Config{}, err
		}
		*d.dst = parsed
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
	default:
		return fmt.Errorf("unsupported STORAGE_MODE %q", c.StorageMode)
	}
	switch c.PaymentProvider {
	case "sandbox":
	case "stripe":
		if c.StripeSecretKey == "" || c.StripeWebhookSecret == "" {
			return errors.New("STRIPE_SECRET_KEY and STRIPE_WEBHOOK_SECRET are required for the stripe provider")
		}
	case "yookassa":
		if c.YookassaShopID == "" || c.YookassaSecretKey == "" {
			return errors.New("YOOKASSA_SHOP_ID and YOOKASSA_SECRET_KEY are required for the yookassa provider")
		}
	default:
		return fmt.Errorf("unsupported PAYMENT_PROVIDER %q", c.PaymentProvider)
	}
	if len(c.PaymentCurrency) != 3 {
		return fmt.Errorf("invalid PAYMENT_CURRENCY %q", c.PaymentCurrency)
	}
	if c.PersistTimeout <= 0 || c.PaymentTimeout <= 0 {
		return errors.New("PERSIST_TIMEOUT and PAYMENT_GATEWAY_TIMEOUT must be positive")
	}
	if c.RedisAddr != "" && c.LockTTL <= c.PersistTimeout {
		return fmt.Errorf("LOCK_TTL %s must exceed PERSIST_TIMEOUT %s", c.LockTTL, c.PersistTimeout)
	}
	return nil
}

// Development reports whether human-readable logs and fixtures are expected.
func (c Config) Development() bool {
	switch strings.ToLower(c.Env) {
	case "dev", "local", "development":
		return true
	default:
		return false
	}
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func parseDuration(key, raw string) (time.Duration, error) {
	d, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("invalid %s duration: %w", key, err)
	}
	return d, nil
}
