package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"retail-pos-system/internal/checkout"
	"retail-pos-system/internal/core/domain"
	"retail-pos-system/internal/core/ports"
	"retail-pos-system/internal/observability"
	"retail-pos-system/internal/receipt"
)

// terminal wraps one checkout session with the lock that serializes its operations.
type terminal struct {
	mu       sync.Mutex
	session  *checkout.Session
	lastUsed time.Time
}

var _ ports.CheckoutService = (*Service)(nil)

// Service is the implementation of the CheckoutService port
type Service struct {
	products   ports.ProductCatalog
	customers  ports.CustomerDirectory
	promotions ports.PromotionCatalog
	settlement *checkout.Settlement
	broker     ports.MessageBroker
	journal    ports.ReceiptJournal
	calc       *checkout.Calculator
	logger     *slog.Logger
	now        func() time.Time

	mu       sync.RWMutex
	sessions map[string]*terminal
}

// NewCheckoutService is the constructor of our service.
// External lookups happen before a session is locked, so a failed lookup never leaves a half-applied change.
func NewCheckoutService(
	products ports.ProductCatalog,
	customers ports.CustomerDirectory,
	promotions ports.PromotionCatalog,
	settlement *checkout.Settlement,
	broker ports.MessageBroker,
	journal ports.ReceiptJournal,
	calc *checkout.Calculator,
	logger *slog.Logger,
) *Service {
	if calc == nil {
		calc = checkout.NewCalculator(checkout.DefaultTaxRate)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		products:   products,
		customers:  customers,
		promotions: promotions,
		settlement: settlement,
		broker:     broker,
		journal:    journal,
		calc:       calc,
		logger:     logger,
		now:        time.Now,
		sessions:   make(map[string]*terminal),
	}
}

func (s *Service) OpenSession(ctx context.Context) (domain.SessionSnapshot, error) {
	catalog, err := s.promotions.ListPromotions(ctx)
	if err != nil {
		return domain.SessionSnapshot{}, fmt.Errorf("%w: list promotions: %w", domain.ErrPersistence, err)
	}

	session, err := checkout.NewSession(uuid.NewString(), catalog, s.calc)
	if err != nil {
		return domain.SessionSnapshot{}, err
	}

	s.mu.Lock()
	s.sessions[session.ID()] = &terminal{session: session, lastUsed: s.now()}
	s.mu.Unlock()

	observability.SessionsOpened.Inc()
	s.logger.Info("checkout session opened", "session_id", session.ID(), "promotions", len(catalog))
	return session.Snapshot(), nil
}

func (s *Service) terminal(sessionID string) (*terminal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.sessions[sessionID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrSessionNotFound, sessionID)
	}
	return t, nil
}

// mutate runs fn under the session lock and returns the resulting snapshot.
func (s *Service) mutate(sessionID string, fn func(*checkout.Session) error) (domain.SessionSnapshot, error) {
	t, err := s.terminal(sessionID)
	if err != nil {
		return domain.SessionSnapshot{}, err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.lastUsed = s.now()
	if err := fn(t.session); err != nil {
		return domain.SessionSnapshot{}, err
	}
	return t.session.Snapshot(), nil
}

func (s *Service) Session(ctx context.Context, sessionID string) (domain.SessionSnapshot, error) {
	return s.mutate(sessionID, func(*checkout.Session) error { return nil })
}

func (s *Service) CancelSession(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[sessionID]; !ok {
		return fmt.Errorf("%w: %s", domain.ErrSessionNotFound, sessionID)
	}
	delete(s.sessions, sessionID)
	s.logger.Info("checkout session cancelled", "session_id", sessionID)
	return nil
}

func (s *Service) AddProduct(ctx context.Context, sessionID, productID string) (domain.SessionSnapshot, []domain.Promotion, error) {
	if _, err := s.terminal(sessionID); err != nil {
		return domain.SessionSnapshot{}, nil, err
	}
	product, err := s.products.LookupProduct(ctx, productID)
	if err != nil {
		return domain.SessionSnapshot{}, nil, err
	}

	var discovered []domain.Promotion
	snap, err := s.mutate(sessionID, func(session *checkout.Session) error {
		found, err := session.AddProduct(product)
		discovered = found
		return err
	})
	if err != nil {
		return domain.SessionSnapshot{}, nil, err
	}

	for _, promo := range discovered {
		observability.PromotionsDiscovered.WithLabelValues(promo.ID).Inc()
		s.logger.Debug("promotion discovered", "session_id", sessionID, "promotion_id", promo.ID, "product_id", productID)
	}
	return snap, discovered, nil
}

func (s *Service) RemoveLine(ctx context.Context, sessionID string, index int) (domain.SessionSnapshot, error) {
	return s.mutate(sessionID, func(session *checkout.Session) error {
		return session.RemoveLine(index)
	})
}

func (s *Service) SetQuantity(ctx context.Context, sessionID string, index, quantity int) (domain.SessionSnapshot, error) {
	return s.mutate(sessionID, func(session *checkout.Session) error {
		return session.SetQuantity(index, quantity)
	})
}

func (s *Service) RemovePromotion(ctx context.Context, sessionID, promotionID string) (domain.SessionSnapshot, error) {
	return s.mutate(sessionID, func(session *checkout.Session) error {
		return session.RemovePromotion(promotionID)
	})
}

func (s *Service) AttachCustomer(ctx context.Context, sessionID, customerID string) (domain.SessionSnapshot, error) {
	if _, err := s.terminal(sessionID); err != nil {
		return domain.SessionSnapshot{}, err
	}
	customer, err := s.customers.LookupCustomer(ctx, customerID)
	if err != nil {
		return domain.SessionSnapshot{}, err
	}
	return s.mutate(sessionID, func(session *checkout.Session) error {
		return session.AttachCustomer(customer)
	})
}

func (s *Service) DetachCustomer(ctx context.Context, sessionID string) (domain.SessionSnapshot, error) {
	return s.mutate(sessionID, func(session *checkout.Session) error {
		session.DetachCustomer()
		return nil
	})
}

func (s *Service) SetUseCredits(ctx context.Context, sessionID string, useCredits bool) (domain.SessionSnapshot, error) {
	return s.mutate(sessionID, func(session *checkout.Session) error {
		session.SetUseCredits(useCredits)
		return nil
	})
}

func (s *Service) Checkout(ctx context.Context, sessionID string) (*domain.Receipt, error) {
	ctx, span := observability.Tracer().Start(ctx, "checkout.settle")
	defer span.End()
	span.SetAttributes(attribute.String("session.id", sessionID))

	t, err := s.terminal(sessionID)
	if err != nil {
		return nil, err
	}

	t.mu.Lock()
	t.lastUsed = s.now()
	rcpt, err := t.session.Checkout(ctx, s.settlement)
	t.mu.Unlock()
	if err != nil {
		result := "failed"
		if errors.Is(err, domain.ErrEmptyCart) {
			result = "empty_cart"
		}
		observability.CheckoutsCompleted.WithLabelValues(result).Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.logger.Error("checkout failed", "session_id", sessionID, "error", err)
		return nil, err
	}

	observability.CheckoutsCompleted.WithLabelValues("settled").Inc()
	observability.SaleTotalAmount.Observe(rcpt.Sale.Total.InexactFloat64())
	span.SetAttributes(
		attribute.String("sale.id", rcpt.SaleID),
		attribute.String("sale.total", rcpt.Sale.Total.String()),
	)
	s.logger.Info("sale settled",
		"session_id", sessionID,
		"sale_id", rcpt.SaleID,
		"total", rcpt.Sale.Total.String(),
		"guest", rcpt.IsGuest(),
	)

	// The sale is committed at this point; a broker or journal outage must not undo it.
	if err := s.journal.Append(ctx, *rcpt); err != nil {
		s.logger.Error("failed to journal receipt", "sale_id", rcpt.SaleID, "error", err)
	}
	if err := s.broker.PublishSaleCompleted(ctx, *rcpt); err != nil {
		s.logger.Error("failed to publish sale.completed", "sale_id", rcpt.SaleID, "error", err)
	}

	return rcpt, nil
}

func (s *Service) Invoice(ctx context.Context, saleID string) (string, error) {
	rcpt, err := s.journal.Get(ctx, saleID)
	if err != nil {
		return "", err
	}
	return receipt.Invoice(rcpt), nil
}

// EvictIdle drops sessions untouched for longer than maxIdle and returns their ids.
// A session busy with an operation is never evicted.
func (s *Service) EvictIdle(maxIdle time.Duration) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	var evicted []string
	for id, t := range s.sessions {
		if !t.mu.TryLock() {
			continue
		}
		if now.Sub(t.lastUsed) > maxIdle {
			delete(s.sessions, id)
			evicted = append(evicted, id)
		}
		t.mu.Unlock()
	}
	return evicted
}

// RunReaper evicts abandoned sessions every interval until ctx is done.
func (s *Service) RunReaper(ctx context.Context, interval, maxIdle time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, id := range s.EvictIdle(maxIdle) {
				observability.SessionsEvicted.Inc()
				s.logger.Info("idle checkout session evicted", "session_id", id, "max_idle", maxIdle.String())
			}
		}
	}
}
