package checkout

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"retail-pos-system/internal/core/domain"
)

// Session is the state of one checkout at one terminal: cart, applied promotions,
// attached customer and the derived totals. It is not safe for concurrent use;
// callers serialize access per session.
//
// Every mutating method reconciles promotions (when the cart changed) and then
// recomputes totals before returning. A method that fails leaves the session untouched.
type Session struct {
	id          string
	catalog     []domain.Promotion
	calc        *Calculator
	cart        Cart
	applied     []domain.Promotion
	customer    *domain.Customer
	useCredits  bool
	totals      domain.Totals
	checkoutKey uuid.UUID
}

// NewSession starts an empty session over a promotion catalog snapshot.
func NewSession(id string, catalog []domain.Promotion, calc *Calculator) (*Session, error) {
	for _, promo := range catalog {
		if err := promo.Validate(); err != nil {
			return nil, err
		}
	}
	if calc == nil {
		calc = NewCalculator(DefaultTaxRate)
	}
	s := &Session{
		id:          id,
		catalog:     append([]domain.Promotion(nil), catalog...),
		calc:        calc,
		checkoutKey: uuid.New(),
	}
	s.recompute()
	return s, nil
}

func (s *Session) ID() string { return s.id }

// AddProduct puts one unit of product in the cart and returns the promotions it newly triggered.
func (s *Session) AddProduct(product domain.Product) ([]domain.Promotion, error) {
	if err := product.Validate(); err != nil {
		return nil, err
	}
	s.cart.Add(product)
	discovered := MatchOnAdd(product, s.catalog, s.applied)
	s.applied = append(s.applied, discovered...)
	s.recompute()
	return discovered, nil
}

func (s *Session) RemoveLine(index int) error {
	if err := s.cart.Remove(index); err != nil {
		return err
	}
	s.applied = Reconcile(s.cart.lines, s.applied)
	s.recompute()
	return nil
}

func (s *Session) SetQuantity(index, quantity int) error {
	if err := s.cart.SetQuantity(index, quantity); err != nil {
		return err
	}
	s.applied = Reconcile(s.cart.lines, s.applied)
	s.recompute()
	return nil
}

// RemovePromotion is the manual override. The promotion stays out until an add re-discovers it.
func (s *Session) RemovePromotion(promotionID string) error {
	remaining, ok := WithoutPromotion(s.applied, promotionID)
	if !ok {
		return fmt.Errorf("%w: %s", domain.ErrPromotionNotApplied, promotionID)
	}
	s.applied = remaining
	s.recompute()
	return nil
}

func (s *Session) AttachCustomer(customer domain.Customer) error {
	if err := customer.Validate(); err != nil {
		return err
	}
	s.customer = &customer
	s.recompute()
	return nil
}

// DetachCustomer also turns credit redemption off.
func (s *Session) DetachCustomer() {
	s.customer = nil
	s.useCredits = false
	s.recompute()
}

func (s *Session) SetUseCredits(useCredits bool) {
	s.useCredits = useCredits
	s.recompute()
}

func (s *Session) Totals() domain.Totals { return s.totals }

func (s *Session) IsEmpty() bool { return s.cart.IsEmpty() }

// Checkout settles the session. On success the session is reset for the next customer;
// on failure nothing changes and the same call can be retried with the same idempotency key.
func (s *Session) Checkout(ctx context.Context, settlement *Settlement) (*domain.Receipt, error) {
	receipt, err := settlement.Checkout(ctx, s.checkoutKey, s.cart.Lines(), s.customer, s.totals, s.applied, s.useCredits)
	if err != nil {
		return nil, err
	}
	s.Reset()
	return receipt, nil
}

// Reset empties the cart, the applied set and the customer selection.
func (s *Session) Reset() {
	s.cart.Reset()
	s.applied = nil
	s.customer = nil
	s.useCredits = false
	s.checkoutKey = uuid.New()
	s.recompute()
}

func (s *Session) Snapshot() domain.SessionSnapshot {
	snap := domain.SessionSnapshot{
		ID:                s.id,
		Lines:             s.cart.Lines(),
		AppliedPromotions: append([]domain.Promotion(nil), s.applied...),
		UseCredits:        s.useCredits,
		Totals:            s.totals,
	}
	if s.customer != nil {
		c := *s.customer
		snap.Customer = &c
	}
	return snap
}

func (s *Session) recompute() {
	s.totals = s.calc.Compute(s.cart.lines, s.applied, s.useCredits, s.customer)
}
