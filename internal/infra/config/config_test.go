package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, StorageMemory, cfg.StorageMode)
	assert.Equal(t, "sandbox", cfg.PaymentProvider)
	assert.Equal(t, "USD", cfg.PaymentCurrency)
	assert.Equal(t, 10*time.Second, cfg.PaymentTimeout)
	assert.Equal(t, []time.Duration{time.Second, 5 * time.Second, 30 * time.Second}, cfg.RetryBackoff)
	assert.True(t, cfg.Development())
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("STORAGE_MODE", "MONGO")
	t.Setenv("MONGO_URI", "mongodb://db:27017")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092")
	t.Setenv("PAYMENT_CURRENCY", "eur")
	t.Setenv("PERSIST_TIMEOUT", "3s")
	t.Setenv("APP_ENV", "prod")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, StorageMongo, cfg.StorageMode)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, "EUR", cfg.PaymentCurrency)
	assert.Equal(t, 3*time.Second, cfg.PersistTimeout)
	assert.False(t, cfg.Development())
}

func TestLoadRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"mongo without uri", map[string]string{"STORAGE_MODE": "mongo"}},
		{"unknown storage", map[string]string{"STORAGE_MODE": "sqlite"}},
		{"stripe without keys", map[string]string{"PAYMENT_PROVIDER": "stripe"}},
		{"bad duration", map[string]string{"PERSIST_TIMEOUT": "soon"}},
		{"bad backoff", map[string]string{"RETRY_BACKOFF": "1s,later"}},
		{"lock shorter than write", map[string]string{"REDIS_ADDR": "redis:6379", "LOCK_TTL": "10s", "PERSIST_TIMEOUT": "15s"}},
		{"lock equal to write", map[string]string{"REDIS_ADDR": "redis:6379", "LOCK_TTL": "15s"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestLockTTLOnlyCheckedWithRedis(t *testing.T) {
	t.Setenv("LOCK_TTL", "1s")
	_, err := Load()
	require.NoError(t, err)

	t.Setenv("REDIS_ADDR", "redis:6379")
	t.Setenv("LOCK_TTL", "20s")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Greater(t, cfg.LockTTL, cfg.PersistTimeout)
}
