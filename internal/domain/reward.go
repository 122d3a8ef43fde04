package domain

import "time"

// Reward is a redeemable item in a tenant's catalog.
type Reward struct {
	ID          string `json:"id"`
	TenantID    string `json:"tenantId"`
	Name        string `json:"name"`
	Description string `json:"description"`
	PointsCost  int64  `json:"pointsCost"`
	Category    string `json:"category"`
	IsActive    bool   `json:"isActive"`

	// UsageLimit nil means unlimited.
	UsageLimit *int64 `json:"usageLimit,omitempty"`
	UsageCount int64  `json:"usageCount"`

	ExpiryDate *time.Time       `json:"expiryDate,omitempty"`
	Conditions RewardConditions `json:"conditions"`
}

// RewardConditions gate who may redeem a reward.
type RewardConditions struct {
	MinTier Tier `json:"minTier,omitempty"`
}

// Coordinates is a WGS-84 point in decimal degrees.
type Coordinates struct {
	Latitude  float64 `json:"latitude" validate:"gte=-90,lte=90"`
	Longitude float64 `json:"longitude" validate:"gte=-180,lte=180"`
}

// Geofence is a circular participating location used for check-ins.
type Geofence struct {
	ID           string  `json:"id"`
	TenantID     string  `json:"tenantId"`
	Name         string  `json:"name"`
	Latitude     float64 `json:"latitude"`
	Longitude    float64 `json:"longitude"`
	RadiusMeters float64 `json:"radiusMeters"`
}

// Center returns the fence center.
func (g *Geofence) Center() Coordinates {
	return Coordinates{Latitude: g.Latitude, Longitude: g.Longitude}
}
