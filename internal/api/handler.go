package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/opensource-finance/magpie/internal/campaign"
	"github.com/opensource-finance/magpie/internal/domain"
	"github.com/opensource-finance/magpie/internal/ledger"
	"github.com/opensource-finance/magpie/internal/program"
	"github.com/opensource-finance/magpie/internal/repository"
	"github.com/opensource-finance/magpie/internal/verification"
)

// Handler holds dependencies for API handlers.
type Handler struct {
	repo      domain.Repository
	cache     domain.Cache
	bus       domain.EventBus
	ledger    *ledger.Service
	programs  *program.Service
	campaigns *campaign.Engine
	validate  *validator.Validate
	version   string
}

// NewHandler creates a new API handler.
func NewHandler(deps Dependencies, version string) *Handler {
	return &Handler{
		repo:      deps.Repo,
		cache:     deps.Cache,
		bus:       deps.Bus,
		ledger:    deps.Ledger,
		programs:  deps.Programs,
		campaigns: deps.Campaigns,
		validate:  validator.New(validator.WithRequiredStructEnabled()),
		version:   version,
	}
}

// Health returns server health status.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	checks := map[string]string{}
	status := "healthy"

	ping := func(name string, fn func() error) {
		if err := fn(); err != nil {
			checks[name] = err.Error()
			status = "degraded"
			return
		}
		checks[name] = "ok"
	}
	if h.repo != nil {
		ping("repository", func() error { return h.repo.Ping(r.Context()) })
	}
	if h.cache != nil {
		ping("cache", func() error { return h.cache.Ping(r.Context()) })
	}
	if h.bus != nil {
		ping("eventBus", func() error { return h.bus.Ping(r.Context()) })
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":  status,
		"version": h.version,
		"checks":  checks,
	})
}

// Ready returns whether the server is ready to accept traffic.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	if h.repo != nil {
		if err := h.repo.Ping(r.Context()); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"ready": "false"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"ready": "true"})
}

// decode reads a JSON body into dst and validates its struct tags.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON request body")
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		writeError(w, http.StatusBadRequest, validationMessage(err))
		return false
	}
	return true
}

func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		if fe.Param() != "" {
			msgs = append(msgs, fmt.Sprintf("%s must satisfy %s=%s", lowerFirst(fe.Field()), fe.Tag(), fe.Param()))
		} else {
			msgs = append(msgs, fmt.Sprintf("%s is %s", lowerFirst(fe.Field()), fe.Tag()))
		}
	}
	return strings.Join(msgs, "; ")
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToLower(s[:1]) + s[1:]
}

// resolveCustomer picks the customer a request acts on. Customers always act
// on themselves; staff must name the customer.
func resolveCustomer(w http.ResponseWriter, r *http.Request, requested string) (string, bool) {
	ctx := r.Context()
	if GetRole(ctx).IsStaff() {
		if requested == "" {
			writeError(w, http.StatusBadRequest, "customerId is required")
			return "", false
		}
		return requested, true
	}

	self := GetUserID(ctx)
	if requested != "" && requested != self {
		writeError(w, http.StatusForbidden, "customers may only act on their own account")
		return "", false
	}
	return self, true
}

// handleError maps service errors onto HTTP responses.
func handleError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, repository.ErrInvalidInput),
		errors.Is(err, program.ErrInvalidProgram),
		errors.Is(err, verification.ErrUnknownAction):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, verification.ErrAlreadyProcessed):
		writeError(w, http.StatusConflict, "Purchase already processed")
	case errors.Is(err, repository.ErrConflict):
		writeError(w, http.StatusConflict, "the record was modified concurrently, please retry")
	case errors.Is(err, ledger.ErrRateLimited):
		writeError(w, http.StatusTooManyRequests, "Too many attempts, please try again later")
	default:
		slog.Error("request failed",
			"path", r.URL.Path,
			"tenant_id", GetTenantID(r.Context()),
			"trace_id", GetTraceID(r.Context()),
			"error", err,
		)
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
