package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/docker/docker/client"
	"github.com/fatih/color"
	"github.com/jackc/pgx/v5"
	goredis "github.com/redis/go-redis/v9"
	"github.com/twmb/franz-go/pkg/kgo"

	"retail-pos-system/internal/adapters/analytics/clickhouse"
	"retail-pos-system/internal/config"
	"retail-pos-system/internal/observability"
)

// Check describes one diagnostic check
type Check struct {
	Name     string
	Func     func(ctx context.Context) error
	Optional bool
	Error    error
	Duration time.Duration
}

var (
	okColor   = color.New(color.FgGreen, color.Bold)
	failColor = color.New(color.FgRed, color.Bold)
	skipColor = color.New(color.FgYellow)
)

func main() {
	logger := observability.SetupLogger("development")
	cfg, err := config.Load("configs/config.yaml")
	if err != nil {
		logger.Error("не удалось загрузить конфигурацию", "ERROR", err)
		os.Exit(1)
	}

	checks := buildChecks(cfg, logger)

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	fmt.Println("🩺 Запуск комплексной диагностики системы...")
	runChecks(ctx, checks)

	fmt.Println("\n--- Отчёт по диагностике ---")
	if !report(checks) {
		failColor.Println("\nДиагностика выявила проблемы.")
		os.Exit(1)
	}
	okColor.Println("\nВсе системы в норме!")
}

// Формируем список проверок, используя данные из config.yaml
func buildChecks(cfg *config.Config, logger *slog.Logger) []Check {
	return []Check{
		{Name: "POS Gateway", Func: func(ctx context.Context) error {
			return checkHTTPHealth(ctx, "localhost:"+cfg.Server.Port+"/health", logger)
		}},
		{Name: "PostgreSQL", Func: func(ctx context.Context) error {
			return checkPostgres(ctx, cfg.Postgres.DSN, logger)
		}},
		{Name: "Redis", Func: func(ctx context.Context) error {
			return checkRedis(ctx, cfg.Redis.Addr, logger)
		}},
		{Name: "Kafka Cluster", Func: func(ctx context.Context) error {
			return checkKafka(ctx, cfg.Brokers())
		}},
		{Name: "ClickHouse", Func: func(ctx context.Context) error {
			return checkClickHouse(ctx, cfg, logger)
		}},
		{Name: "Receipt Journal", Func: func(context.Context) error {
			return checkJournal(cfg.Checkout.JournalDir)
		}},
		{Name: "Keycloak", Optional: cfg.OIDC.URL == "", Func: func(ctx context.Context) error {
			return checkHTTPHealth(ctx, cfg.OIDC.URL+"/.well-known/openid-configuration", logger)
		}},
		{Name: "Open Policy Agent", Func: func(ctx context.Context) error {
			return checkHTTPHealth(ctx, opaHealthURL(cfg.OPA.URL), logger)
		}},
		{Name: "Sales Analyzer", Func: func(ctx context.Context) error {
			return checkHTTPHealth(ctx, "localhost:"+cfg.Server.PortAnalyzer+"/healthz", logger)
		}},
		{Name: "Alerter Service", Func: func(ctx context.Context) error {
			return checkHTTPHealth(ctx, "localhost:"+cfg.Server.PortAlerter+"/health", logger)
		}},
		{Name: "Docker Engine", Optional: true, Func: checkDocker},
	}
}

func runChecks(ctx context.Context, checks []Check) {
	var wg sync.WaitGroup
	for i := range checks {
		wg.Add(1)
		go func(c *Check) {
			defer wg.Done()
			start := time.Now()
			c.Error = c.Func(ctx)
			c.Duration = time.Since(start)
		}(&checks[i])
	}
	wg.Wait()
}

// report prints one line per check and tells whether every required check passed.
func report(checks []Check) bool {
	healthy := true
	for _, c := range checks {
		took := c.Duration.Round(time.Millisecond)
		switch {
		case c.Error == nil:
			fmt.Printf("[%s] %-25s (время %v)\n", okColor.Sprint("✅ OK"), c.Name, took)
		case c.Optional:
			fmt.Printf("[%s] %-25s (время %v) - %v\n", skipColor.Sprint("⚠️  WARN"), c.Name, took, c.Error)
		default:
			healthy = false
			fmt.Printf("[%s] %-25s (время %v) - Ошибка: %v\n", failColor.Sprint("❌ FAILED"), c.Name, took, c.Error)
		}
	}
	return healthy
}

// opaHealthURL turns the decision endpoint (http://opa:8181/v1/data/pos/authz) into the health endpoint.
func opaHealthURL(decisionURL string) string {
	if i := strings.Index(decisionURL, "/v1/"); i >= 0 {
		return decisionURL[:i] + "/health"
	}
	return strings.TrimRight(decisionURL, "/") + "/health"
}

// --- Functions for checks ---

func checkHTTPHealth(ctx context.Context, url string, logger *slog.Logger) error {
	// Добавляем http://, если его нет
	if !strings.HasPrefix(url, "http") {
		url = "http://" + url
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			logger.Error("не удалось закрыть Http соединение", "ERROR", err)
		}
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("некорректный статус: %s", resp.Status)
	}
	return nil
}

func checkPostgres(ctx context.Context, dsn string, logger *slog.Logger) error {
	conn, err := pgx.Connect(ctx, dsn)
	if err != nil {
		return err
	}
	defer func() {
		if err := conn.Close(ctx); err != nil {
			logger.Error("не удалось закрыть соединение Postgres", "ERROR", err)
		}
	}()
	return conn.Ping(ctx)
}

func checkRedis(ctx context.Context, addr string, logger *slog.Logger) error {
	rdb := goredis.NewClient(&goredis.Options{Addr: addr})
	defer func() {
		if err := rdb.Close(); err != nil {
			logger.Error("не удалось закрыть Redis", "ERROR", err)
		}
	}()
	return rdb.Ping(ctx).Err()
}

func checkKafka(ctx context.Context, brokers []string) error {
	if len(brokers) == 0 {
		return fmt.Errorf("kafka.bootstrap_servers не указан")
	}
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.DialTimeout(5*time.Second),
	)
	if err != nil {
		return err
	}
	defer client.Close()

	// Ping проверяет, что мы можем подключиться к брокерам
	return client.Ping(ctx)
}

func checkClickHouse(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	if cfg.ClickHouse.Addr == "" {
		return fmt.Errorf("адрес ClickHouse не указан в конфигурации")
	}
	// Open пингует сервер, так что успешное открытие означает рабочее соединение
	store, err := clickhouse.Open(ctx, clickhouse.Options{
		Addr:     cfg.ClickHouse.Addr,
		Database: cfg.ClickHouse.Database,
		Username: cfg.ClickHouse.Username,
		Password: cfg.ClickHouse.Password,
	})
	if err != nil {
		return err
	}
	if err := store.Close(); err != nil {
		logger.Error("не удалось закрыть соединение с ClickHouse", "ERROR", err)
	}
	return nil
}

// checkJournal verifies the receipt journal directory exists. Pebble locks it while the gateway runs,
// so the doctor does not open the store itself.
func checkJournal(dir string) error {
	info, err := os.Stat(dir)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("%s не является каталогом", dir)
	}
	return nil
}

func checkDocker(ctx context.Context) error {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return err
	}
	defer cli.Close()
	_, err = cli.Ping(ctx)
	return err
}
