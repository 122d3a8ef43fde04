package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/opensource-finance/magpie/internal/domain"
	"github.com/opensource-finance/magpie/internal/ledger"
)

// EnrollRequest is the request body for POST /customers.
type EnrollRequest struct {
	ID       string     `json:"id,omitempty"`
	Name     string     `json:"name" validate:"required,max=200"`
	Email    string     `json:"email,omitempty" validate:"omitempty,email"`
	JoinDate *time.Time `json:"joinDate,omitempty"`
}

// AdjustRequest is the request body for POST /customers/{id}/adjust.
type AdjustRequest struct {
	Delta  int64  `json:"delta" validate:"required"`
	Reason string `json:"reason" validate:"required,max=500"`
}

// Enroll handles POST /customers.
func (h *Handler) Enroll(w http.ResponseWriter, r *http.Request) {
	var req EnrollRequest
	if !h.decode(w, r, &req) {
		return
	}

	in := ledger.EnrollInput{ID: req.ID, Name: req.Name, Email: req.Email}
	if req.JoinDate != nil {
		in.JoinDate = req.JoinDate.UTC()
	}

	c, err := h.ledger.Enroll(r.Context(), GetTenantID(r.Context()), in, GetUserID(r.Context()))
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, domain.NewAdminCustomerView(c))
}

// ListCustomers handles GET /customers.
func (h *Handler) ListCustomers(w http.ResponseWriter, r *http.Request) {
	customers, err := h.ledger.ListCustomers(r.Context(), GetTenantID(r.Context()))
	if err != nil {
		handleError(w, r, err)
		return
	}

	views := make([]domain.AdminCustomerView, len(customers))
	for i, c := range customers {
		views[i] = domain.NewAdminCustomerView(c)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"customers": views,
		"count":     len(views),
	})
}

// GetCustomer handles GET /customers/{id}. The response shape depends on
// who is asking: staff see everything, customers see their own profile, and
// anyone else gets the public view.
func (h *Handler) GetCustomer(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	c, err := h.ledger.GetCustomer(ctx, GetTenantID(ctx), chi.URLParam(r, "id"))
	if err != nil {
		handleError(w, r, err)
		return
	}

	switch {
	case GetRole(ctx).IsStaff():
		writeJSON(w, http.StatusOK, domain.NewAdminCustomerView(c))
	case GetUserID(ctx) == c.ID:
		writeJSON(w, http.StatusOK, domain.NewCustomerView(c))
	default:
		writeJSON(w, http.StatusOK, domain.NewPublicCustomerView(c))
	}
}

// ownerOrStaff returns the path customer ID if the caller may see it.
func ownerOrStaff(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := chi.URLParam(r, "id")
	if GetRole(r.Context()).IsStaff() || GetUserID(r.Context()) == id {
		return id, true
	}
	writeError(w, http.StatusForbidden, "customers may only act on their own account")
	return "", false
}

// TierProgress handles GET /customers/{id}/tier-progress.
func (h *Handler) TierProgress(w http.ResponseWriter, r *http.Request) {
	id, ok := ownerOrStaff(w, r)
	if !ok {
		return
	}

	progress, err := h.ledger.TierProgress(r.Context(), GetTenantID(r.Context()), id)
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, progress)
}

// ListTransactions handles GET /customers/{id}/transactions.
func (h *Handler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	id, ok := ownerOrStaff(w, r)
	if !ok {
		return
	}

	txs, err := h.ledger.Transactions(r.Context(), GetTenantID(r.Context()), id)
	if err != nil {
		handleError(w, r, err)
		return
	}
	if txs == nil {
		txs = []*domain.Transaction{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"transactions": txs,
		"count":        len(txs),
	})
}

// Analyze handles GET /customers/{id}/analysis.
func (h *Handler) Analyze(w http.ResponseWriter, r *http.Request) {
	analysis, err := h.ledger.Analyze(r.Context(), GetTenantID(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, analysis)
}

// Adjust handles POST /customers/{id}/adjust.
func (h *Handler) Adjust(w http.ResponseWriter, r *http.Request) {
	var req AdjustRequest
	if !h.decode(w, r, &req) {
		return
	}

	ctx := r.Context()
	out, err := h.ledger.Adjust(ctx, GetTenantID(ctx), chi.URLParam(r, "id"), req.Delta, req.Reason, GetUserID(ctx))
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"customer":    domain.NewAdminCustomerView(out.Customer),
		"transaction": out.Transaction,
	})
}

// Reconcile handles POST /customers/{id}/reconcile.
func (h *Handler) Reconcile(w http.ResponseWriter, r *http.Request) {
	res, err := h.ledger.Reconcile(r.Context(), GetTenantID(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"customer":       domain.NewAdminCustomerView(res.Customer),
		"totals":         res.Totals,
		"previousPoints": res.Previous,
		"changed":        res.Changed,
	})
}

// ListAudit handles GET /audit, optionally filtered by ?customerId=.
func (h *Handler) ListAudit(w http.ResponseWriter, r *http.Request) {
	entries, err := h.repo.ListAuditEntries(r.Context(), GetTenantID(r.Context()), r.URL.Query().Get("customerId"))
	if err != nil {
		handleError(w, r, err)
		return
	}
	if entries == nil {
		entries = []*domain.AuditEntry{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"entries": entries,
		"count":   len(entries),
	})
}
