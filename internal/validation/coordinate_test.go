package validation

import (
	"testing"

	"github.com/mmeshcher/printhub-system/internal/model"
)

func TestIsValidCoordinate(t *testing.T) {
	tests := []struct {
		name string
		c    model.Coordinate
		want bool
	}{
		{name: "zero point", c: model.Coordinate{Lat: 0, Lng: 0}, want: true},
		{name: "moscow", c: model.Coordinate{Lat: 55.75, Lng: 37.62}, want: true},
		{name: "lat boundary", c: model.Coordinate{Lat: 90, Lng: 0}, want: true},
		{name: "lng boundary", c: model.Coordinate{Lat: 0, Lng: -180}, want: true},
		{name: "lat above range", c: model.Coordinate{Lat: 90.0001, Lng: 0}, want: false},
		{name: "lat below range", c: model.Coordinate{Lat: -91, Lng: 0}, want: false},
		{name: "lng above range", c: model.Coordinate{Lat: 0, Lng: 180.5}, want: false},
		{name: "lng below range", c: model.Coordinate{Lat: 0, Lng: -181}, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsValidCoordinate(tt.c); got != tt.want {
				t.Fatalf("IsValidCoordinate(%+v) = %v, want %v", tt.c, got, tt.want)
			}
		})
	}
}
