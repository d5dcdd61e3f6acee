package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_ExpandsEnvAndAppliesDefaults(t *testing.T) {
	// Arrange
	t.Setenv("POS_TEST_DSN", "postgres://pos@localhost/pos")
	path := writeConfig(t, `
app:
  env: dev
postgres:
  dsn: ${POS_TEST_DSN}
kafka:
  bootstrap_servers: "kafka-1:9092, kafka-2:9092"
checkout:
  tax_rate: "0.2"
`)

	// Act
	cfg, err := Load(path)

	// Assert
	require.NoError(t, err)
	assert.Equal(t, "postgres://pos@localhost/pos", cfg.Postgres.DSN)
	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.Brokers())
	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "sales.completed", cfg.Kafka.Topic)
	assert.Equal(t, "sales.completed.dlq", cfg.Kafka.DLQTopic)
	assert.Equal(t, 60, cfg.Checkout.PromotionCacheTTLSeconds)
	assert.Equal(t, 3, cfg.SalesAudit.CreditFrequencyThreshold)
	assert.Equal(t, "8081", cfg.Server.PortAlerter)
	assert.Equal(t, "8082", cfg.Server.PortAnalyzer)
	assert.Equal(t, "fixed", cfg.RateLimit.Algorithm)
	assert.Equal(t, int64(1800), int64(cfg.Checkout.SessionIdleTimeout().Seconds()))
	assert.Equal(t, int64(3600), int64(cfg.SalesAudit.CreditWindow().Seconds()))

	rate, err := cfg.Checkout.Rate()
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("0.2").Equal(rate))
}

func TestLoad_RejectsBadTaxRate(t *testing.T) {
	path := writeConfig(t, "checkout:\n  tax_rate: eight percent\n")

	_, err := Load(path)

	assert.ErrorContains(t, err, "checkout.tax_rate")
}

func TestCheckoutConfig_EmptyRateMeansDefault(t *testing.T) {
	rate, err := CheckoutConfig{}.Rate()

	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("0.08").Equal(rate))
}

func TestLoad_RejectsNegativeTaxRate(t *testing.T) {
	path := writeConfig(t, "checkout:\n  tax_rate: \"-0.05\"\n")

	_, err := Load(path)

	assert.ErrorContains(t, err, "checkout.tax_rate must not be negative")
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))

	assert.ErrorContains(t, err, "error reading config file")
}

func TestLoad_RejectsUnknownRateLimitAlgorithm(t *testing.T) {
	path := writeConfig(t, "rate_limit:\n  algorithm: leaky\n")

	_, err := Load(path)

	assert.ErrorContains(t, err, "rate_limit.algorithm")
}
