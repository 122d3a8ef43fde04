package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/opensource-finance/magpie/internal/domain"
	"github.com/opensource-finance/magpie/internal/ledger"
)

// PurchaseRequest is the request body for POST /purchases.
type PurchaseRequest struct {
	CustomerID    string        `json:"customerId"`
	Amount        float64       `json:"amount" validate:"gte=0"`
	Location      string        `json:"location" validate:"max=200"`
	PaymentMethod string        `json:"paymentMethod" validate:"max=100"`
	Timestamp     *time.Time    `json:"timestamp,omitempty"`
	Items         []domain.Item `json:"items,omitempty" validate:"omitempty,dive"`
	SpecialOffer  bool          `json:"specialOffer,omitempty"`
}

// SubmitPurchaseRequest is the request body for POST /purchases/pending.
type SubmitPurchaseRequest struct {
	CustomerID    string  `json:"customerId"`
	ItemName      string  `json:"itemName" validate:"required,max=200"`
	Amount        float64 `json:"amount" validate:"gt=0"`
	Location      string  `json:"location" validate:"max=200"`
	PaymentMethod string  `json:"paymentMethod" validate:"max=100"`
}

// VerifyRequest is the request body for POST /purchases/{id}/verify.
type VerifyRequest struct {
	Action domain.VerifyAction `json:"action" validate:"required,oneof=approve decline"`
}

// RedeemRequest is the request body for POST /rewards/{id}/redeem.
type RedeemRequest struct {
	CustomerID string `json:"customerId"`
}

// CheckInRequest is the request body for POST /checkin.
type CheckInRequest struct {
	CustomerID string  `json:"customerId"`
	Latitude   float64 `json:"latitude" validate:"gte=-90,lte=90"`
	Longitude  float64 `json:"longitude" validate:"gte=-180,lte=180"`
}

// RecordPurchase handles POST /purchases.
func (h *Handler) RecordPurchase(w http.ResponseWriter, r *http.Request) {
	var req PurchaseRequest
	if !h.decode(w, r, &req) {
		return
	}
	customerID, ok := resolveCustomer(w, r, req.CustomerID)
	if !ok {
		return
	}

	ctx := r.Context()
	purchase := domain.Purchase{
		Amount:        req.Amount,
		Location:      req.Location,
		PaymentMethod: req.PaymentMethod,
		Items:         req.Items,
		// Only staff may hand-flag a special offer; campaigns still apply.
		SpecialOffer: req.SpecialOffer && GetRole(ctx).IsStaff(),
	}
	// Customers record purchases as of now; staff may backfill.
	if req.Timestamp != nil && GetRole(ctx).IsStaff() {
		purchase.Timestamp = req.Timestamp.UTC()
	}

	out, err := h.ledger.RecordPurchase(ctx, GetTenantID(ctx), customerID, purchase, GetUserID(ctx))
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"transaction": out.Transaction,
		"calculation": out.Calculation,
		"campaigns":   out.Campaigns,
		"points":      out.Customer.Points,
		"tier":        out.Customer.Tier,
	})
}

// SubmitPurchase handles POST /purchases/pending.
func (h *Handler) SubmitPurchase(w http.ResponseWriter, r *http.Request) {
	var req SubmitPurchaseRequest
	if !h.decode(w, r, &req) {
		return
	}
	customerID, ok := resolveCustomer(w, r, req.CustomerID)
	if !ok {
		return
	}

	ctx := r.Context()
	p, err := h.ledger.SubmitPurchase(ctx, GetTenantID(ctx), customerID, ledger.SubmitInput{
		ItemName:      req.ItemName,
		Amount:        req.Amount,
		Location:      req.Location,
		PaymentMethod: req.PaymentMethod,
	})
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

// ListPendingPurchases handles GET /purchases/pending. ?status= filters,
// defaulting to pending; status=all lists every purchase.
func (h *Handler) ListPendingPurchases(w http.ResponseWriter, r *http.Request) {
	status := domain.PurchaseStatus(r.URL.Query().Get("status"))
	switch status {
	case "":
		status = domain.PurchasePending
	case "all":
		status = ""
	case domain.PurchasePending, domain.PurchaseApproved, domain.PurchaseDeclined:
	default:
		writeError(w, http.StatusBadRequest, "status must be pending, approved, declined or all")
		return
	}

	purchases, err := h.ledger.PendingPurchases(r.Context(), GetTenantID(r.Context()), status)
	if err != nil {
		handleError(w, r, err)
		return
	}
	if purchases == nil {
		purchases = []*domain.PendingPurchase{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"purchases": purchases,
		"count":     len(purchases),
	})
}

// VerifyPurchase handles POST /purchases/{id}/verify.
func (h *Handler) VerifyPurchase(w http.ResponseWriter, r *http.Request) {
	var req VerifyRequest
	if !h.decode(w, r, &req) {
		return
	}

	ctx := r.Context()
	out, err := h.ledger.Verify(ctx, GetTenantID(ctx), chi.URLParam(r, "id"), req.Action, GetUserID(ctx))
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// Redeem handles POST /rewards/{id}/redeem. A rejected redemption is a 422
// carrying the result message.
func (h *Handler) Redeem(w http.ResponseWriter, r *http.Request) {
	var req RedeemRequest
	if r.ContentLength != 0 && !h.decode(w, r, &req) {
		return
	}
	customerID, ok := resolveCustomer(w, r, req.CustomerID)
	if !ok {
		return
	}

	ctx := r.Context()
	res, err := h.ledger.Redeem(ctx, GetTenantID(ctx), customerID, chi.URLParam(r, "id"))
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, outcomeStatus(res.Success), res)
}

// CheckIn handles POST /checkin.
func (h *Handler) CheckIn(w http.ResponseWriter, r *http.Request) {
	var req CheckInRequest
	if !h.decode(w, r, &req) {
		return
	}
	customerID, ok := resolveCustomer(w, r, req.CustomerID)
	if !ok {
		return
	}

	ctx := r.Context()
	res, err := h.ledger.CheckIn(ctx, GetTenantID(ctx), customerID, domain.Coordinates{
		Latitude:  req.Latitude,
		Longitude: req.Longitude,
	})
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, outcomeStatus(res.Success), res)
}

func outcomeStatus(success bool) int {
	if success {
		return http.StatusOK
	}
	return http.StatusUnprocessableEntity
}
