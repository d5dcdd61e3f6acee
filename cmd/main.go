package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"retail-pos-system/internal/adapters/auth/opa"
	httphandler "retail-pos-system/internal/adapters/http"
	"retail-pos-system/internal/adapters/messaging/kafka"
	"retail-pos-system/internal/adapters/messaging/mock"
	"retail-pos-system/internal/adapters/storage/pebble"
	"retail-pos-system/internal/adapters/storage/postgres"
	"retail-pos-system/internal/adapters/storage/redis"
	"retail-pos-system/internal/app"
	"retail-pos-system/internal/auth"
	"retail-pos-system/internal/checkout"
	"retail-pos-system/internal/config"
	"retail-pos-system/internal/core/ports"
	"retail-pos-system/internal/observability"
)

const serviceName = "pos-gateway"

// saleBroker is the MessageBroker plus the shutdown hook both implementations have.
type saleBroker interface {
	ports.MessageBroker
	Close()
}

func configPath() string {
	if p := os.Getenv("CONFIG_PATH"); p != "" {
		return p
	}
	return "configs/config.yaml"
}

func main() {
	// --- 1. Configuration and Logging ---
	fallbackLogger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	cfg, err := config.Load(configPath())
	if err != nil {
		fallbackLogger.Error("Failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.SetupLogger(cfg.App.Env)
	logger.Info("Application starting", "env", cfg.App.Env, "port", cfg.Server.Port)

	// --- 2. Validate critical config ---
	jwtSecret := cfg.JWT.Secret
	if jwtSecret == "" {
		logger.Error("JWT_SECRET is not set")
		os.Exit(1)
	}
	taxRate, err := cfg.Checkout.Rate()
	if err != nil {
		logger.Error("Invalid checkout configuration", "error", err)
		os.Exit(1)
	}

	// --- 3. Observability ---
	shutdownTracer, err := observability.InitTracer(cfg.Jaeger.PortGrpc, serviceName)
	if err != nil {
		logger.Error("Failed to initialize tracing", "ERROR", err)
		os.Exit(1)
	}
	defer func() {
		if err := shutdownTracer(context.Background()); err != nil {
			logger.Warn("Failed to shutdown tracer", "ERROR", err)
		}
	}()

	// --- 4. Dependencies ---
	ctx := context.Background()

	repo, err := postgres.NewRepository(ctx, cfg.Postgres.DSN)
	if err != nil {
		logger.Error("Failed to connect to PostgreSQL", "ERROR", err)
		os.Exit(1)
	}
	defer repo.Close()
	logger.Info("Connected to PostgreSQL")

	rdb, err := redis.NewClient(ctx, cfg.Redis.Addr)
	if err != nil {
		logger.Error("Failed to connect to Redis", "ERROR", err)
		os.Exit(1)
	}
	defer func() {
		if err := rdb.Close(); err != nil {
			logger.Warn("Failed to close Redis connection", "ERROR", err)
		}
	}()
	var rateLimiter ports.RateLimiterRepository = redis.NewFixedWindowLimiter(rdb, "ratelimit:")
	if cfg.RateLimit.Algorithm == "sliding" {
		rateLimiter = redis.NewSlidingWindowLimiter(rdb, "ratelimit:")
	}
	promotions := redis.NewPromotionCache(rdb, repo, cfg.Checkout.PromotionCacheTTL(), logger)

	var broker saleBroker
	if brokers := cfg.Brokers(); len(brokers) > 0 {
		kafkaBroker, err := kafka.NewBroker(ctx, brokers, cfg.Kafka.Topic, logger)
		if err != nil {
			logger.Error("Failed to create Kafka broker", "ERROR", err)
			os.Exit(1)
		}
		broker = kafkaBroker
		logger.Info("Kafka broker created", "topic", cfg.Kafka.Topic)
	} else {
		broker = mock.NewBroker(logger)
		logger.Warn("kafka.bootstrap_servers is empty, sale events are only logged")
	}
	defer broker.Close()

	journal, err := pebble.NewJournal(cfg.Checkout.JournalDir)
	if err != nil {
		logger.Error("Failed to open receipt journal", "ERROR", err, "dir", cfg.Checkout.JournalDir)
		os.Exit(1)
	}
	defer func() {
		if err := journal.Close(); err != nil {
			logger.Warn("Failed to close receipt journal", "ERROR", err)
		}
	}()

	terminals := make([]auth.TerminalClient, 0, len(cfg.OAuth.Terminals))
	for _, t := range cfg.OAuth.Terminals {
		terminals = append(terminals, auth.TerminalClient{ID: t.ClientID, Secret: t.ClientSecret})
	}
	oauthServer, err := auth.NewAuthorizationServer(jwtSecret, terminals, logger)
	if err != nil {
		logger.Error("Failed to configure OAuth server", "ERROR", err)
		os.Exit(1)
	}

	// --- 5. Service Layer ---
	checkoutService := app.NewCheckoutService(
		repo, repo, promotions,
		checkout.NewSettlement(repo, repo),
		broker, journal,
		checkout.NewCalculator(taxRate),
		logger,
	)
	checkoutHandler := httphandler.NewCheckoutHandler(checkoutService, logger)
	authHandler := httphandler.NewAuthHandler(logger, jwtSecret)
	rateLimiterMiddleware := httphandler.NewRateLimiterMiddleware(rateLimiter, cfg.RateLimit.Requests, cfg.RateLimitWindow(), logger)

	reaperCtx, stopReaper := context.WithCancel(ctx)
	defer stopReaper()
	go checkoutService.RunReaper(reaperCtx, time.Minute, cfg.Checkout.SessionIdleTimeout())
	opaMiddleware := opa.NewMiddleware(cfg.OPA.URL, logger)

	// --- 6. HTTP Router ---
	r := chi.NewRouter()

	// Public middleware. Anonymous callers are limited per IP here, authenticated ones per subject below.
	r.Use(
		middleware.RequestID,
		middleware.RealIP,
		rateLimiterMiddleware.Handler,
		middleware.Logger,
		middleware.Recoverer,
		observability.NewLoggerMiddleware(logger),
		observability.NewMetricsMiddleware(serviceName),
		observability.NewTracingMiddleware(serviceName),
	)

	// Public routes
	r.Post("/login", authHandler.HandleLogin)
	r.Post("/oauth/token", func(w http.ResponseWriter, r *http.Request) {
		if err := oauthServer.HandleTokenRequest(w, r); err != nil {
			logger.Error("failed to handle token request", "error", err)
		}
	})
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		status, code := "healthy", http.StatusOK
		if err := repo.Ping(r.Context()); err != nil {
			status, code = "degraded", http.StatusServiceUnavailable
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		if err := json.NewEncoder(w).Encode(map[string]string{
			"status":  status,
			"service": serviceName,
		}); err != nil {
			logger.Error("Failed to write health response", "error", err)
		}
	})
	r.Handle("/metrics", promhttp.Handler())

	// Protected routes for tills: /api/v1/*
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(
			httphandler.JWTMiddleware([]byte(jwtSecret), logger),
			rateLimiterMiddleware.Handler,
			opaMiddleware.Authorize,
		)
		checkoutHandler.Routes(r)
	})

	// Back-office staff signed in through the identity provider get the same API.
	if cfg.OIDC.URL != "" {
		oidcAuth, err := httphandler.NewOIDCAuthenticator(ctx, cfg.OIDC.URL, cfg.OIDC.ClientID, logger)
		if err != nil {
			logger.Error("Failed to initialize OIDC", "ERROR", err)
			os.Exit(1)
		}
		r.Route("/staff/v1", func(r chi.Router) {
			r.Use(oidcAuth.Middleware, rateLimiterMiddleware.Handler, opaMiddleware.Authorize)
			checkoutHandler.Routes(r)
		})
	}

	// --- 7. HTTP Server ---
	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logger.Info("HTTP server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("HTTP server failed", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server...")
	stopReaper()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server shutdown failed", "error", err)
		os.Exit(1)
	}

	logger.Info("Server exited properly")
}
