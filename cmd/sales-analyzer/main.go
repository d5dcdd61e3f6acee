package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/twmb/franz-go/pkg/kgo"

	"retail-pos-system/internal/adapters/analytics/clickhouse"
	"retail-pos-system/internal/adapters/messaging/kafka"
	"retail-pos-system/internal/adapters/storage/redis"
	"retail-pos-system/internal/audit"
	"retail-pos-system/internal/config"
	"retail-pos-system/internal/core/domain"
	"retail-pos-system/internal/observability"
	"retail-pos-system/internal/receipt"
)

const consumerGroup = "sales-analyzer-group"

func configPath() string {
	if p := os.Getenv("CONFIG_PATH"); p != "" {
		return p
	}
	return "configs/config.yaml"
}

func main() {
	// --- Configuration Setup ---
	cfg, err := config.Load(configPath())
	if err != nil {
		observability.SetupLogger("").Error("Failed to load config", "ERROR", err)
		os.Exit(1)
	}

	logger := observability.SetupLogger(cfg.App.Env)
	logger.Info("sales analyzer запускается", "env", cfg.App.Env)

	brokers := cfg.Brokers()
	if len(brokers) == 0 {
		logger.Error("kafka.bootstrap_servers is empty")
		os.Exit(1)
	}

	// Set up graceful shutdown.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// --- Component Initialization ---

	// Kafka Producer (for sending to DLQ)
	dlqProducer, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.AllowAutoTopicCreation(),
	)
	if err != nil {
		logger.Error("failed to create Kafka producer for DLQ", "error", err)
		os.Exit(1)
	}
	defer dlqProducer.Close()
	dlq := kafka.NewDLQ(dlqProducer, cfg.Kafka.DLQTopic, logger)

	// ClickHouse: sale facts and audit verdicts.
	store, err := clickhouse.Open(ctx, clickhouse.Options{
		Addr:     cfg.ClickHouse.Addr,
		Database: cfg.ClickHouse.Database,
		Username: cfg.ClickHouse.Username,
		Password: cfg.ClickHouse.Password,
	})
	if err != nil {
		logger.Error("failed to connect to ClickHouse", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Error("Failed to close ClickHouse connection", "error", err)
		}
	}()
	if err := store.EnsureSchema(ctx); err != nil {
		logger.Error("failed to prepare ClickHouse schema", "error", err)
		os.Exit(1)
	}

	// Redis counts credit redemptions per customer for the frequency rule.
	rdb, err := redis.NewClient(ctx, cfg.Redis.Addr)
	if err != nil {
		logger.Error("failed to connect to Redis", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := rdb.Close(); err != nil {
			logger.Error("Failed to close redis connection", "error", err)
		}
	}()

	engines := audit.Chain{
		audit.NewCachingRuleEngine(redis.NewFixedWindowLimiter(rdb, "audit:"), cfg.SalesAudit, logger),
	}
	if cfg.SalesAudit.ScorerURL != "" {
		engines = append(engines, audit.NewExternalServiceRuleEngine(cfg.SalesAudit.ScorerURL, logger))
		logger.Info("внешний скоринг включен", "url", cfg.SalesAudit.ScorerURL)
	}

	// Subscribe to the sales topic.
	consumerClient, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.ConsumerGroup(consumerGroup),
		kgo.ConsumeTopics(cfg.Kafka.Topic),
		kgo.DisableAutoCommit(),
	)
	if err != nil {
		logger.Error("failed to create Kafka consumer:", "error", err)
		os.Exit(1)
	}
	defer consumerClient.Close()

	go serveHealth(cfg.Server.PortAnalyzer, logger)

	logger.Info("sales analyzer запущен и готов к работе...", "topic", cfg.Kafka.Topic)

	// Main processing loop.
	for ctx.Err() == nil {
		fetches := consumerClient.PollFetches(ctx)
		// Проверяем, не был ли клиент закрыт или контекст отменен
		if fetches.IsClientClosed() || ctx.Err() != nil {
			break
		}

		fetches.EachError(func(t string, p int32, err error) {
			logger.Error("ошибка при чтении из kafka", "topic", t, "partition", p, "error", err)
		})

		fetches.EachRecord(func(record *kgo.Record) {
			processRecord(ctx, record, engines, store, dlq, logger)
		})

		// Every record is now either stored or dead-lettered.
		if err := consumerClient.CommitUncommittedOffsets(ctx); err != nil {
			logger.Error("error committing offsets", "error", err)
		}
	}

	logger.Info("sales analyzer останавливается...")
}

type saleRecorder interface {
	RecordSale(ctx context.Context, r domain.Receipt, verdict audit.Result) error
}

type deadLetterer interface {
	Send(ctx context.Context, original *kgo.Record, errorType, errorString string)
}

// processRecord audits and stores one sale. A record that cannot be decoded or stored
// goes to the DLQ so that committing the batch offset never loses it.
func processRecord(ctx context.Context, record *kgo.Record, engine audit.RuleEngine, store saleRecorder, dlq deadLetterer, logger *slog.Logger) {
	rcpt, err := receipt.Decode(record.Value)
	if err != nil {
		logger.Error("Не удалось распарсить сообщение. Отправка в DLQ.", "ERROR", err)
		dlq.Send(ctx, record, "unmarshal_error", err.Error())
		return
	}

	verdict := engine.Audit(ctx, rcpt)

	if err := store.RecordSale(ctx, rcpt, verdict); err != nil {
		logger.Error("Failed to insert into ClickHouse. Отправка в DLQ.", "ERROR", err, "sale_id", rcpt.SaleID)
		dlq.Send(ctx, record, "insert_error", err.Error())
		return
	}

	logger.Info("продажа успешно обработана",
		"sale_id", rcpt.SaleID,
		"total", rcpt.Sale.Total.String(),
		"flagged", verdict.Flagged,
		"reason", verdict.Reason,
	)
}

func serveHealth(port string, logger *slog.Logger) {
	r := chi.NewRouter()
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "OK"})
	})
	r.Handle("/metrics", promhttp.Handler())
	if err := http.ListenAndServe(":"+port, r); err != nil {
		logger.Error("health server failed", "ERROR", err)
	}
}
