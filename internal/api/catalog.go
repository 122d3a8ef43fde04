package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/samber/lo"

	"github.com/opensource-finance/magpie/internal/domain"
	"github.com/opensource-finance/magpie/internal/repository"
)

// RewardRequest is the request body for POST /rewards and PUT /rewards/{id}.
type RewardRequest struct {
	ID          string      `json:"id,omitempty"`
	Name        string      `json:"name" validate:"required,max=200"`
	Description string      `json:"description" validate:"max=2000"`
	PointsCost  int64       `json:"pointsCost" validate:"gte=0"`
	Category    string      `json:"category" validate:"max=100"`
	IsActive    *bool       `json:"isActive,omitempty"`
	UsageLimit  *int64      `json:"usageLimit,omitempty" validate:"omitempty,gte=0"`
	ExpiryDate  *time.Time  `json:"expiryDate,omitempty"`
	MinTier     domain.Tier `json:"minTier,omitempty" validate:"omitempty,oneof=bronze silver gold platinum"`
}

func (req *RewardRequest) toReward(id string) *domain.Reward {
	reward := &domain.Reward{
		ID:          id,
		Name:        req.Name,
		Description: req.Description,
		PointsCost:  req.PointsCost,
		Category:    req.Category,
		IsActive:    req.IsActive == nil || *req.IsActive,
		UsageLimit:  req.UsageLimit,
		Conditions:  domain.RewardConditions{MinTier: req.MinTier},
	}
	if req.ExpiryDate != nil {
		exp := req.ExpiryDate.UTC()
		reward.ExpiryDate = &exp
	}
	return reward
}

// GeofenceRequest is the request body for POST /geofences. A zero radius
// uses the program's check-in radius.
type GeofenceRequest struct {
	ID           string  `json:"id,omitempty"`
	Name         string  `json:"name" validate:"required,max=200"`
	Latitude     float64 `json:"latitude" validate:"gte=-90,lte=90"`
	Longitude    float64 `json:"longitude" validate:"gte=-180,lte=180"`
	RadiusMeters float64 `json:"radiusMeters" validate:"gte=0"`
}

// CampaignRequest is the request body for POST /campaigns.
type CampaignRequest struct {
	ID          string `json:"id,omitempty"`
	Name        string `json:"name" validate:"required,max=200"`
	Description string `json:"description" validate:"max=2000"`
	Expression  string `json:"expression" validate:"required"`
	Enabled     bool   `json:"enabled"`
}

// ListRewards handles GET /rewards. Customers only see active rewards.
func (h *Handler) ListRewards(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	rewards, err := h.repo.ListRewards(ctx, GetTenantID(ctx))
	if err != nil {
		handleError(w, r, err)
		return
	}
	if !GetRole(ctx).IsStaff() {
		rewards = lo.Filter(rewards, func(rw *domain.Reward, _ int) bool { return rw.IsActive })
	}
	if rewards == nil {
		rewards = []*domain.Reward{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"rewards": rewards,
		"count":   len(rewards),
	})
}

// CreateReward handles POST /rewards.
func (h *Handler) CreateReward(w http.ResponseWriter, r *http.Request) {
	var req RewardRequest
	if !h.decode(w, r, &req) {
		return
	}

	id := req.ID
	if id == "" {
		id = uuid.New().String()
	}
	reward := req.toReward(id)

	ctx := r.Context()
	if err := h.repo.SaveReward(ctx, GetTenantID(ctx), reward); err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, reward)
}

// UpdateReward handles PUT /rewards/{id}. The usage count is kept.
func (h *Handler) UpdateReward(w http.ResponseWriter, r *http.Request) {
	var req RewardRequest
	if !h.decode(w, r, &req) {
		return
	}

	ctx := r.Context()
	tenantID := GetTenantID(ctx)
	current, err := h.repo.GetReward(ctx, tenantID, chi.URLParam(r, "id"))
	if err != nil {
		handleError(w, r, err)
		return
	}

	reward := req.toReward(current.ID)
	reward.UsageCount = current.UsageCount
	if err := h.repo.SaveReward(ctx, tenantID, reward); err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, reward)
}

// ListGeofences handles GET /geofences.
func (h *Handler) ListGeofences(w http.ResponseWriter, r *http.Request) {
	fences, err := h.repo.ListGeofences(r.Context(), GetTenantID(r.Context()))
	if err != nil {
		handleError(w, r, err)
		return
	}
	if fences == nil {
		fences = []*domain.Geofence{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"geofences": fences,
		"count":     len(fences),
	})
}

// CreateGeofence handles POST /geofences.
func (h *Handler) CreateGeofence(w http.ResponseWriter, r *http.Request) {
	var req GeofenceRequest
	if !h.decode(w, r, &req) {
		return
	}

	ctx := r.Context()
	tenantID := GetTenantID(ctx)

	fence := &domain.Geofence{
		ID:           req.ID,
		Name:         req.Name,
		Latitude:     req.Latitude,
		Longitude:    req.Longitude,
		RadiusMeters: req.RadiusMeters,
	}
	if fence.ID == "" {
		fence.ID = uuid.New().String()
	}
	if fence.RadiusMeters == 0 {
		p, err := h.programs.Get(ctx, tenantID)
		if err != nil {
			handleError(w, r, err)
			return
		}
		fence.RadiusMeters = p.Rules.CheckInRadiusMeters
	}

	if err := h.repo.SaveGeofence(ctx, tenantID, fence); err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, fence)
}

// GetProgram handles GET /program.
func (h *Handler) GetProgram(w http.ResponseWriter, r *http.Request) {
	p, err := h.programs.Get(r.Context(), GetTenantID(r.Context()))
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// UpdateProgram handles PUT /program.
func (h *Handler) UpdateProgram(w http.ResponseWriter, r *http.Request) {
	var req domain.Program
	if !h.decode(w, r, &req) {
		return
	}

	p, err := h.programs.Update(r.Context(), GetTenantID(r.Context()), &req)
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// ListCampaigns handles GET /campaigns.
func (h *Handler) ListCampaigns(w http.ResponseWriter, r *http.Request) {
	campaigns, err := h.repo.ListCampaigns(r.Context(), GetTenantID(r.Context()))
	if err != nil {
		handleError(w, r, err)
		return
	}
	if campaigns == nil {
		campaigns = []*domain.Campaign{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"campaigns": campaigns,
		"count":     len(campaigns),
	})
}

// CreateCampaign handles POST /campaigns. The expression is compiled before
// it is stored and the tenant's campaigns are reloaded afterwards.
func (h *Handler) CreateCampaign(w http.ResponseWriter, r *http.Request) {
	var req CampaignRequest
	if !h.decode(w, r, &req) {
		return
	}
	if h.campaigns == nil {
		writeError(w, http.StatusServiceUnavailable, "campaign engine not available")
		return
	}

	c := &domain.Campaign{
		ID:          req.ID,
		Name:        req.Name,
		Description: req.Description,
		Expression:  req.Expression,
		Enabled:     req.Enabled,
	}
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	if err := h.campaigns.Validate(c); err != nil {
		writeError(w, http.StatusBadRequest, "invalid CEL expression: "+err.Error())
		return
	}

	ctx := r.Context()
	tenantID := GetTenantID(ctx)
	if err := h.repo.SaveCampaign(ctx, tenantID, c); err != nil {
		handleError(w, r, err)
		return
	}
	if err := h.campaigns.ReloadFromLoader(ctx, tenantID); err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

// ReloadCampaigns handles POST /campaigns/reload.
func (h *Handler) ReloadCampaigns(w http.ResponseWriter, r *http.Request) {
	if h.campaigns == nil {
		writeError(w, http.StatusServiceUnavailable, "campaign engine not available")
		return
	}

	ctx := r.Context()
	tenantID := GetTenantID(ctx)
	if err := h.campaigns.ReloadFromLoader(ctx, tenantID); err != nil {
		if errors.Is(err, repository.ErrInvalidInput) {
			handleError(w, r, err)
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to reload campaigns: "+err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "campaigns reloaded successfully",
		"count":   h.campaigns.Count(tenantID),
	})
}
