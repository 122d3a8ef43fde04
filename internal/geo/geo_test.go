package geo

import (
	"math"
	"testing"

	"github.com/opensource-finance/magpie/internal/domain"
)

func TestDistanceMeters(t *testing.T) {
	t.Run("SamePoint", func(t *testing.T) {
		p := domain.Coordinates{Latitude: 40.7128, Longitude: -74.0060}
		if d := DistanceMeters(p, p); d != 0 {
			t.Errorf("expected 0, got %f", d)
		}
	})

	t.Run("OneDegreeLatitude", func(t *testing.T) {
		a := domain.Coordinates{Latitude: 0, Longitude: 0}
		b := domain.Coordinates{Latitude: 1, Longitude: 0}
		want := EarthRadiusMeters * math.Pi / 180
		if d := DistanceMeters(a, b); math.Abs(d-want) > 0.001 {
			t.Errorf("expected %f, got %f", want, d)
		}
	})

	t.Run("Symmetric", func(t *testing.T) {
		a := domain.Coordinates{Latitude: 51.5074, Longitude: -0.1278}
		b := domain.Coordinates{Latitude: 48.8566, Longitude: 2.3522}
		if math.Abs(DistanceMeters(a, b)-DistanceMeters(b, a)) > 1e-6 {
			t.Error("distance should be symmetric")
		}
		// London to Paris is roughly 344 km
		if d := DistanceMeters(a, b); d < 340000 || d > 348000 {
			t.Errorf("unexpected London-Paris distance %f", d)
		}
	})

	t.Run("NaNInput", func(t *testing.T) {
		a := domain.Coordinates{Latitude: math.NaN(), Longitude: 0}
		if d := DistanceMeters(a, domain.Coordinates{}); !math.IsNaN(d) {
			t.Errorf("expected NaN, got %f", d)
		}
	})
}

func TestIsWithinFence(t *testing.T) {
	center := domain.Coordinates{Latitude: 37.7749, Longitude: -122.4194}
	point := domain.Coordinates{Latitude: 37.7759, Longitude: -122.4194}
	dist := DistanceMeters(point, center)

	tests := []struct {
		name   string
		point  domain.Coordinates
		radius float64
		want   bool
	}{
		{"Center", center, 0, true},
		{"Inside", point, dist + 10, true},
		{"Boundary", point, dist, true},
		{"Outside", point, dist - 1, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fence := &domain.Geofence{
				ID:           "fence-1",
				Latitude:     center.Latitude,
				Longitude:    center.Longitude,
				RadiusMeters: tt.radius,
			}
			if got := IsWithinFence(tt.point, fence); got != tt.want {
				t.Errorf("IsWithinFence = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestFirstContaining(t *testing.T) {
	point := domain.Coordinates{Latitude: 10, Longitude: 10}
	far := &domain.Geofence{ID: "far", Latitude: 20, Longitude: 20, RadiusMeters: 100}
	near := &domain.Geofence{ID: "near", Latitude: 10, Longitude: 10, RadiusMeters: 50}

	if f := FirstContaining(point, []*domain.Geofence{far, near}); f == nil || f.ID != "near" {
		t.Errorf("expected near fence, got %v", f)
	}
	if f := FirstContaining(point, []*domain.Geofence{far}); f != nil {
		t.Errorf("expected nil, got %v", f.ID)
	}
	if f := FirstContaining(point, nil); f != nil {
		t.Error("expected nil for empty fence list")
	}
}
