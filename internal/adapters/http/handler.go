package http

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"retail-pos-system/internal/core/domain"
	"retail-pos-system/internal/core/ports"
	"retail-pos-system/internal/observability"
	"retail-pos-system/internal/receipt"
)

// CheckoutHandler exposes the checkout service to the tills.
type CheckoutHandler struct {
	service ports.CheckoutService
	logger  *slog.Logger
}

func NewCheckoutHandler(service ports.CheckoutService, logger *slog.Logger) *CheckoutHandler {
	return &CheckoutHandler{
		service: service,
		logger:  logger,
	}
}

// Routes mounts the handler on r. Callers wrap r with authentication first.
func (h *CheckoutHandler) Routes(r chi.Router) {
	r.Post("/sessions", h.HandleOpenSession)
	r.Route("/sessions/{sessionID}", func(r chi.Router) {
		r.Get("/", h.HandleGetSession)
		r.Delete("/", h.HandleCancelSession)
		r.Post("/items", h.HandleAddItem)
		r.Put("/items/{index}", h.HandleSetQuantity)
		r.Delete("/items/{index}", h.HandleRemoveItem)
		r.Delete("/promotions/{promotionID}", h.HandleRemovePromotion)
		r.Put("/customer", h.HandleAttachCustomer)
		r.Delete("/customer", h.HandleDetachCustomer)
		r.Put("/credits", h.HandleSetCredits)
		r.Post("/checkout", h.HandleCheckout)
	})
	r.Get("/receipts/{saleID}/invoice", h.HandleInvoice)
}

type lineResponse struct {
	Index     int             `json:"index"`
	ProductID string          `json:"product_id"`
	Name      string          `json:"name"`
	Category  string          `json:"category"`
	Price     decimal.Decimal `json:"price"`
	Quantity  int             `json:"quantity"`
	LineTotal decimal.Decimal `json:"line_total"`
}

type promotionResponse struct {
	ID              string          `json:"id"`
	Name            string          `json:"name"`
	DiscountType    string          `json:"discount_type"`
	DiscountValue   decimal.Decimal `json:"discount_value"`
	ProductID       string          `json:"product_id,omitempty"`
	Category        string          `json:"category,omitempty"`
	ApplicableToAll bool            `json:"applicable_to_all"`
}

type customerResponse struct {
	ID            string          `json:"id"`
	Name          string          `json:"name"`
	LoyaltyPoints int64           `json:"loyalty_points"`
	CreditBalance decimal.Decimal `json:"credit_balance"`
}

type totalsResponse struct {
	Subtotal decimal.Decimal `json:"subtotal"`
	Discount decimal.Decimal `json:"discount"`
	Tax      decimal.Decimal `json:"tax"`
	Total    decimal.Decimal `json:"total"`
}

type sessionResponse struct {
	ID                   string              `json:"id"`
	Lines                []lineResponse      `json:"lines"`
	AppliedPromotions    []promotionResponse `json:"applied_promotions"`
	Customer             *customerResponse   `json:"customer"`
	UseCredits           bool                `json:"use_credits"`
	Totals               totalsResponse      `json:"totals"`
	DiscoveredPromotions []promotionResponse `json:"discovered_promotions,omitempty"`
}

func toPromotions(promos []domain.Promotion) []promotionResponse {
	out := make([]promotionResponse, 0, len(promos))
	for _, p := range promos {
		out = append(out, promotionResponse{
			ID:              p.ID,
			Name:            p.Name,
			DiscountType:    string(p.DiscountType),
			DiscountValue:   p.DiscountValue,
			ProductID:       p.ProductID,
			Category:        p.Category,
			ApplicableToAll: p.ApplicableToAll,
		})
	}
	return out
}

func toSessionResponse(s domain.SessionSnapshot) sessionResponse {
	resp := sessionResponse{
		ID:                s.ID,
		Lines:             make([]lineResponse, 0, len(s.Lines)),
		AppliedPromotions: toPromotions(s.AppliedPromotions),
		UseCredits:        s.UseCredits,
		Totals: totalsResponse{
			Subtotal: s.Totals.Subtotal,
			Discount: s.Totals.Discount,
			Tax:      s.Totals.Tax,
			Total:    s.Totals.Total,
		},
	}
	for i, l := range s.Lines {
		resp.Lines = append(resp.Lines, lineResponse{
			Index:     i,
			ProductID: l.ID,
			Name:      l.Name,
			Category:  l.Category,
			Price:     l.Price,
			Quantity:  l.Quantity,
			LineTotal: l.LineTotal(),
		})
	}
	if s.Customer != nil {
		resp.Customer = &customerResponse{
			ID:            s.Customer.ID,
			Name:          s.Customer.Name,
			LoyaltyPoints: s.Customer.LoyaltyPoints,
			CreditBalance: s.Customer.CreditBalance,
		}
	}
	return resp
}

func (h *CheckoutHandler) writeJSON(w http.ResponseWriter, r *http.Request, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		observability.LoggerFrom(r.Context(), h.logger).Error("failed to write json response", "ERROR", err)
	}
}

func (h *CheckoutHandler) fail(w http.ResponseWriter, r *http.Request, err error) {
	writeDomainError(w, observability.LoggerFrom(r.Context(), h.logger), err)
}

func (h *CheckoutHandler) badRequest(w http.ResponseWriter, r *http.Request, message string) {
	writeJSONError(w, observability.LoggerFrom(r.Context(), h.logger), message, http.StatusBadRequest)
}

func lineIndex(r *http.Request) (int, bool) {
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	return index, err == nil
}

func (h *CheckoutHandler) HandleOpenSession(w http.ResponseWriter, r *http.Request) {
	snap, err := h.service.OpenSession(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.writeJSON(w, r, http.StatusCreated, toSessionResponse(snap))
}

func (h *CheckoutHandler) HandleGetSession(w http.ResponseWriter, r *http.Request) {
	snap, err := h.service.Session(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.writeJSON(w, r, http.StatusOK, toSessionResponse(snap))
}

func (h *CheckoutHandler) HandleCancelSession(w http.ResponseWriter, r *http.Request) {
	if err := h.service.CancelSession(r.Context(), chi.URLParam(r, "sessionID")); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type addItemRequest struct {
	ProductID string `json:"product_id"`
}

func (h *CheckoutHandler) HandleAddItem(w http.ResponseWriter, r *http.Request) {
	var req addItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ProductID == "" {
		h.badRequest(w, r, "product_id is required")
		return
	}

	snap, discovered, err := h.service.AddProduct(r.Context(), chi.URLParam(r, "sessionID"), req.ProductID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	resp := toSessionResponse(snap)
	resp.DiscoveredPromotions = toPromotions(discovered)
	h.writeJSON(w, r, http.StatusOK, resp)
}

type setQuantityRequest struct {
	Quantity int `json:"quantity"`
}

func (h *CheckoutHandler) HandleSetQuantity(w http.ResponseWriter, r *http.Request) {
	index, ok := lineIndex(r)
	if !ok {
		h.badRequest(w, r, "line index must be an integer")
		return
	}
	var req setQuantityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.badRequest(w, r, "invalid request body")
		return
	}

	snap, err := h.service.SetQuantity(r.Context(), chi.URLParam(r, "sessionID"), index, req.Quantity)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.writeJSON(w, r, http.StatusOK, toSessionResponse(snap))
}

func (h *CheckoutHandler) HandleRemoveItem(w http.ResponseWriter, r *http.Request) {
	index, ok := lineIndex(r)
	if !ok {
		h.badRequest(w, r, "line index must be an integer")
		return
	}
	snap, err := h.service.RemoveLine(r.Context(), chi.URLParam(r, "sessionID"), index)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.writeJSON(w, r, http.StatusOK, toSessionResponse(snap))
}

func (h *CheckoutHandler) HandleRemovePromotion(w http.ResponseWriter, r *http.Request) {
	snap, err := h.service.RemovePromotion(r.Context(), chi.URLParam(r, "sessionID"), chi.URLParam(r, "promotionID"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.writeJSON(w, r, http.StatusOK, toSessionResponse(snap))
}

type attachCustomerRequest struct {
	CustomerID string `json:"customer_id"`
}

func (h *CheckoutHandler) HandleAttachCustomer(w http.ResponseWriter, r *http.Request) {
	var req attachCustomerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.CustomerID == "" {
		h.badRequest(w, r, "customer_id is required")
		return
	}
	snap, err := h.service.AttachCustomer(r.Context(), chi.URLParam(r, "sessionID"), req.CustomerID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.writeJSON(w, r, http.StatusOK, toSessionResponse(snap))
}

func (h *CheckoutHandler) HandleDetachCustomer(w http.ResponseWriter, r *http.Request) {
	snap, err := h.service.DetachCustomer(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.writeJSON(w, r, http.StatusOK, toSessionResponse(snap))
}

type setCreditsRequest struct {
	UseCredits *bool `json:"use_credits"`
}

func (h *CheckoutHandler) HandleSetCredits(w http.ResponseWriter, r *http.Request) {
	var req setCreditsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.UseCredits == nil {
		h.badRequest(w, r, "use_credits is required")
		return
	}
	snap, err := h.service.SetUseCredits(r.Context(), chi.URLParam(r, "sessionID"), *req.UseCredits)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.writeJSON(w, r, http.StatusOK, toSessionResponse(snap))
}

func (h *CheckoutHandler) HandleCheckout(w http.ResponseWriter, r *http.Request) {
	rcpt, err := h.service.Checkout(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.writeJSON(w, r, http.StatusCreated, receipt.FromReceipt(*rcpt))
}

func (h *CheckoutHandler) HandleInvoice(w http.ResponseWriter, r *http.Request) {
	saleID := chi.URLParam(r, "saleID")
	text, err := h.service.Invoice(r.Context(), saleID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="invoice-`+saleID+`.txt"`)
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte(text)); err != nil {
		observability.LoggerFrom(r.Context(), h.logger).Error("failed to write invoice", "sale_id", saleID, "error", err)
	}
}
