package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLoad_Defaults(t *testing.T) {
	cfg := Load()
	assert.Equal(t, ":8081", cfg.HTTPAddr)
	assert.Equal(t, "order-api", cfg.ServiceName)
	assert.Equal(t, "dev", cfg.AppEnv)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, []string{"kafka:9092"}, cfg.KafkaBrokers)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("HTTP_ADDR", ":9000")
	t.Setenv("KAFKA_BROKERS", "a:9092, b:9092 ,,")

	cfg := Load()
	assert.Equal(t, ":9000", cfg.HTTPAddr)
	assert.Equal(t, []string{"a:9092", "b:9092"}, cfg.KafkaBrokers)
}

func TestNewLogger_BadLevel(t *testing.T) {
	cfg := Load()
	cfg.LogLevel = "whisper"
	_, err := NewLogger(cfg)
	assert.Error(t, err)
}
