package http

import (
	"log/slog"
	"net"
	"net/http"
	"time"

	"retail-pos-system/internal/auth"
	"retail-pos-system/internal/core/ports"
)

// RateLimiterMiddleware - это middleware для ограничения частоты запросов.
type RateLimiterMiddleware struct {
	repo   ports.RateLimiterRepository
	limit  int
	window time.Duration
	logger *slog.Logger
}

// NewRateLimiterMiddleware создает новый экземпляр middleware.
func NewRateLimiterMiddleware(repo ports.RateLimiterRepository, limit int, window time.Duration, logger *slog.Logger) *RateLimiterMiddleware {
	return &RateLimiterMiddleware{
		repo:   repo,
		limit:  limit,
		window: window,
		logger: logger,
	}
}

// key limits an authenticated caller by subject and everyone else by client IP.
// The subject is only known when the middleware is mounted after authentication.
func (m *RateLimiterMiddleware) key(r *http.Request) (string, bool) {
	if sub := auth.Subject(r.Context()); sub != "" {
		return "sub:" + sub, true
	}
	// middleware.RealIP leaves a bare address without a port.
	if ip := net.ParseIP(r.RemoteAddr); ip != nil {
		return "ip:" + ip.String(), true
	}
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return "", false
	}
	return "ip:" + ip, true
}

// Handler является основной функцией middleware.
func (m *RateLimiterMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key, ok := m.key(r)
		if !ok {
			m.logger.Error("не удалось получить IP-адрес клиента", "remote_addr", r.RemoteAddr)
			next.ServeHTTP(w, r)
			return
		}

		allowed, err := m.repo.IsAllowed(r.Context(), key, m.limit, m.window)
		if err != nil {
			// Fail-open: a Redis outage must not stop the tills.
			m.logger.Error("ошибка при проверке rate limit в Redis", "error", err)
			next.ServeHTTP(w, r)
			return
		}

		if !allowed {
			writeJSONError(w, m.logger, "Too Many Requests", http.StatusTooManyRequests)
			return
		}

		next.ServeHTTP(w, r)
	})
}
