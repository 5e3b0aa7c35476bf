package geo

import (
	"math"
	"testing"

	"github.com/mmeshcher/printhub-system/internal/model"
)

func TestDistanceZeroForSamePoint(t *testing.T) {
	p := model.Coordinate{Lat: 55.751244, Lng: 37.618423}

	if d := Distance(p, p, EarthRadiusKm); d != 0 {
		t.Fatalf("Distance(p, p) = %v, want 0", d)
	}
}

func TestDistanceSymmetric(t *testing.T) {
	a := model.Coordinate{Lat: 55.751244, Lng: 37.618423}
	b := model.Coordinate{Lat: 59.938955, Lng: 30.315644}

	ab := Distance(a, b, EarthRadiusKm)
	ba := Distance(b, a, EarthRadiusKm)

	if math.Abs(ab-ba) > 1e-9 {
		t.Fatalf("Distance is not symmetric: %v vs %v", ab, ba)
	}
}

func TestDistanceKnownValues(t *testing.T) {
	tests := []struct {
		name string
		a    model.Coordinate
		b    model.Coordinate
		want float64
	}{
		// Один градус долготы на экваторе — π/180 земного радиуса.
		{
			name: "one degree on equator",
			a:    model.Coordinate{Lat: 0, Lng: 0},
			b:    model.Coordinate{Lat: 0, Lng: 1},
			want: EarthRadiusKm * math.Pi / 180,
		},
		{
			name: "one degree of latitude",
			a:    model.Coordinate{Lat: 10, Lng: 20},
			b:    model.Coordinate{Lat: 11, Lng: 20},
			want: EarthRadiusKm * math.Pi / 180,
		},
		{
			name: "antipodes",
			a:    model.Coordinate{Lat: 0, Lng: 0},
			b:    model.Coordinate{Lat: 0, Lng: 180},
			want: EarthRadiusKm * math.Pi,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Distance(tt.a, tt.b, EarthRadiusKm)
			if math.Abs(got-tt.want) > 0.01 {
				t.Fatalf("Distance = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDistanceCustomRadius(t *testing.T) {
	a := model.Coordinate{Lat: 0, Lng: 0}
	b := model.Coordinate{Lat: 0, Lng: 90}

	got := Distance(a, b, 1)
	want := math.Pi / 2

	if math.Abs(got-want) > 1e-9 {
		t.Fatalf("Distance with unit radius = %v, want %v", got, want)
	}
}
