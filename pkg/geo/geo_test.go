package geo

import (
	"math"
	"testing"

	"github.com/shiva/ridepool/internal/model"
)

var (
	mgRoad      = model.Location{Lat: 12.9756, Lng: 77.6068}
	indiranagar = model.Location{Lat: 12.9719, Lng: 77.6412}
	koramangala = model.Location{Lat: 12.9352, Lng: 77.6245}
	whitefield  = model.Location{Lat: 12.9698, Lng: 77.7500}
)

func TestHaversineKm(t *testing.T) {
	tests := []struct {
		name   string
		a, b   model.Location
		wantKm float64
		tolKm  float64
	}{
		{"same point", mgRoad, mgRoad, 0, 0.001},
		{"mg road to indiranagar", mgRoad, indiranagar, 3.75, 0.25},
		{"mg road to koramangala", mgRoad, koramangala, 4.9, 0.3},
		{"mg road to whitefield", mgRoad, whitefield, 15.5, 1.0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := HaversineKm(tt.a, tt.b)
			if math.Abs(got-tt.wantKm) > tt.tolKm {
				t.Errorf("HaversineKm() = %.3f km, want %.3f ± %.3f", got, tt.wantKm, tt.tolKm)
			}
		})
	}
}

func TestHaversineSymmetric(t *testing.T) {
	ab := HaversineKm(mgRoad, whitefield)
	ba := HaversineKm(whitefield, mgRoad)
	if math.Abs(ab-ba) > 1e-9 {
		t.Errorf("distance not symmetric: %.9f vs %.9f", ab, ba)
	}
}

func TestHaversineM(t *testing.T) {
	km := HaversineKm(mgRoad, indiranagar)
	m := HaversineM(mgRoad, indiranagar)
	if math.Abs(m-km*1000) > 0.001 {
		t.Errorf("HaversineM() = %.3f, want %.3f", m, km*1000)
	}
}

func TestPointToPolylineKm(t *testing.T) {
	// Straight west-east line at lat 12.97.
	line := []model.Location{
		{Lat: 12.97, Lng: 77.60},
		{Lat: 12.97, Lng: 77.62},
		{Lat: 12.97, Lng: 77.64},
	}

	t.Run("point on the line", func(t *testing.T) {
		got := PointToPolylineKm(model.Location{Lat: 12.97, Lng: 77.61}, line)
		if got > 0.01 {
			t.Errorf("PointToPolylineKm() = %.4f km, want ~0", got)
		}
	})

	t.Run("point north of the line", func(t *testing.T) {
		// 0.003 degrees of latitude is roughly 0.33 km.
		got := PointToPolylineKm(model.Location{Lat: 12.973, Lng: 77.61}, line)
		if math.Abs(got-0.333) > 0.05 {
			t.Errorf("PointToPolylineKm() = %.4f km, want ~0.333", got)
		}
	})

	t.Run("point beyond the end clamps to endpoint", func(t *testing.T) {
		end := model.Location{Lat: 12.97, Lng: 77.70}
		got := PointToPolylineKm(end, line)
		want := HaversineKm(end, line[len(line)-1])
		if math.Abs(got-want) > 0.05 {
			t.Errorf("PointToPolylineKm() = %.4f km, want %.4f", got, want)
		}
	})

	t.Run("empty line", func(t *testing.T) {
		if got := PointToPolylineKm(mgRoad, nil); !math.IsInf(got, 1) {
			t.Errorf("PointToPolylineKm() = %.4f, want +Inf", got)
		}
	})
}

func TestRouteDistanceKm(t *testing.T) {
	line := []model.Location{
		{Lat: 12.97, Lng: 77.60},
		{Lat: 12.97, Lng: 77.62},
		{Lat: 12.97, Lng: 77.64},
	}
	sum := HaversineKm(line[0], line[1]) + HaversineKm(line[1], line[2])
	if got := RouteDistanceKm(line); math.Abs(got-sum) > 1e-9 {
		t.Errorf("RouteDistanceKm() = %.6f, want %.6f", got, sum)
	}
	if got := RouteDistanceKm(line[:1]); got != 0 {
		t.Errorf("RouteDistanceKm(single point) = %.6f, want 0", got)
	}
}
