package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"retail-pos-system/internal/checkout"
)

// CheckoutConfig stores parameters of the pricing engine and the receipt journal.
type CheckoutConfig struct {
	TaxRate                  string `yaml:"tax_rate"`
	PromotionCacheTTLSeconds int    `yaml:"promotion_cache_ttl_seconds"`
	JournalDir               string `yaml:"journal_dir"`
	// SessionIdleTimeoutSeconds bounds how long an untouched session stays in memory.
	SessionIdleTimeoutSeconds int `yaml:"session_idle_timeout_seconds"`
}

// TerminalConfig registers a till for the client credentials grant.
type TerminalConfig struct {
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
}

// SalesAuditConfig stores parameters for the sale audit rules.
type SalesAuditConfig struct {
	DiscountRatioThreshold   float64 `yaml:"discount_ratio_threshold"`
	CreditFrequencyThreshold int     `yaml:"credit_frequency_threshold"`
	CreditWindowSeconds      int     `yaml:"credit_window_seconds"`
	// ScorerURL enables the external scoring service when set.
	ScorerURL string `yaml:"scorer_url"`
}

type Config struct {
	App struct {
		Env string `yaml:"env"`
	} `yaml:"app"`
	Server struct {
		Port         string `yaml:"port"`
		PortAlerter  string `yaml:"port_alerter"`
		PortAnalyzer string `yaml:"port_analyzer"`
	} `yaml:"server"`
	Postgres struct {
		DSN string `yaml:"dsn"`
	} `yaml:"postgres"`
	Kafka struct {
		BootstrapServers string `yaml:"bootstrap_servers"`
		Topic            string `yaml:"topic"`
		DLQTopic         string `yaml:"dlq_topic"`
	} `yaml:"kafka"`
	Redis struct {
		Addr string `yaml:"addr"`
	} `yaml:"redis"`
	ClickHouse struct {
		Addr     string `yaml:"addr"`
		Database string `yaml:"database"`
		Username string `yaml:"username"`
		Password string `yaml:"password"`
	} `yaml:"clickhouse"`
	Jaeger struct {
		Port     string `yaml:"port"`
		PortGrpc string `yaml:"port_grpc"`
	} `yaml:"jaeger"`
	OIDC struct {
		URL      string `yaml:"url"`
		ClientID string `yaml:"client_id"`
	} `yaml:"oidc"`
	OPA struct {
		URL string `yaml:"url"`
	} `yaml:"opa"`
	JWT struct {
		Secret string `yaml:"jwt_secret"`
	} `yaml:"jwt"`
	OAuth struct {
		Terminals []TerminalConfig `yaml:"terminals"`
	} `yaml:"oauth"`
	RateLimit struct {
		Requests      int    `yaml:"requests"`
		WindowSeconds int    `yaml:"window_seconds"`
		Algorithm     string `yaml:"algorithm"` // fixed | sliding
	} `yaml:"rate_limit"`
	Checkout   CheckoutConfig   `yaml:"checkout"`
	SalesAudit SalesAuditConfig `yaml:"sales_audit"`
}

func Load(configPath string) (*Config, error) {
	config := &Config{}

	file, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	// First, we substitute environment variables into the raw YAML file.
	expandedFile := os.ExpandEnv(string(file))

	err = yaml.Unmarshal([]byte(expandedFile), config)
	if err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	config.applyDefaults()
	rate, err := config.Checkout.Rate()
	if err != nil {
		return nil, err
	}
	if rate.IsNegative() {
		return nil, fmt.Errorf("checkout.tax_rate must not be negative, got %s", rate)
	}
	if a := config.RateLimit.Algorithm; a != "fixed" && a != "sliding" {
		return nil, fmt.Errorf("invalid rate_limit.algorithm %q", a)
	}

	return config, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Port == "" {
		c.Server.Port = "8080"
	}
	if c.Server.PortAlerter == "" {
		c.Server.PortAlerter = "8081"
	}
	if c.Server.PortAnalyzer == "" {
		c.Server.PortAnalyzer = "8082"
	}
	if c.Kafka.Topic == "" {
		c.Kafka.Topic = "sales.completed"
	}
	if c.Kafka.DLQTopic == "" {
		c.Kafka.DLQTopic = c.Kafka.Topic + ".dlq"
	}
	if c.Checkout.PromotionCacheTTLSeconds <= 0 {
		c.Checkout.PromotionCacheTTLSeconds = 60
	}
	if c.Checkout.SessionIdleTimeoutSeconds <= 0 {
		c.Checkout.SessionIdleTimeoutSeconds = 1800
	}
	if c.Checkout.JournalDir == "" {
		c.Checkout.JournalDir = "data/receipts"
	}
	if c.RateLimit.Requests <= 0 {
		c.RateLimit.Requests = 100
	}
	if c.RateLimit.WindowSeconds <= 0 {
		c.RateLimit.WindowSeconds = 60
	}
	if c.RateLimit.Algorithm == "" {
		c.RateLimit.Algorithm = "fixed"
	}
	if c.SalesAudit.DiscountRatioThreshold <= 0 {
		c.SalesAudit.DiscountRatioThreshold = 0.5
	}
	if c.SalesAudit.CreditFrequencyThreshold <= 0 {
		c.SalesAudit.CreditFrequencyThreshold = 3
	}
	if c.SalesAudit.CreditWindowSeconds <= 0 {
		c.SalesAudit.CreditWindowSeconds = 3600
	}
}

// Brokers splits the comma separated bootstrap servers.
func (c *Config) Brokers() []string {
	var brokers []string
	for _, b := range strings.Split(c.Kafka.BootstrapServers, ",") {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}
	return brokers
}

// Rate parses the configured tax rate. An empty value means the engine default.
func (c CheckoutConfig) Rate() (decimal.Decimal, error) {
	if strings.TrimSpace(c.TaxRate) == "" {
		return checkout.DefaultTaxRate, nil
	}
	rate, err := decimal.NewFromString(c.TaxRate)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("invalid checkout.tax_rate %q: %w", c.TaxRate, err)
	}
	return rate, nil
}

func (c CheckoutConfig) PromotionCacheTTL() time.Duration {
	return time.Duration(c.PromotionCacheTTLSeconds) * time.Second
}

func (c CheckoutConfig) SessionIdleTimeout() time.Duration {
	return time.Duration(c.SessionIdleTimeoutSeconds) * time.Second
}

func (c *Config) RateLimitWindow() time.Duration {
	return time.Duration(c.RateLimit.WindowSeconds) * time.Second
}

func (c SalesAuditConfig) CreditWindow() time.Duration {
	return time.Duration(c.CreditWindowSeconds) * time.Second
}
