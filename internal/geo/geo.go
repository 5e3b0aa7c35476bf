// Package geo содержит вычисление расстояний между географическими точками.
package geo

import (
	"math"

	"github.com/mmeshcher/printhub-system/internal/model"
)

// EarthRadiusKm — радиус сферической модели Земли в километрах.
const EarthRadiusKm = 6371.0

// Distance вычисляет расстояние между двумя точками по формуле гаверсинусов.
// Результат в километрах, неотрицателен и симметричен относительно аргументов.
// Координаты не валидируются: за корректность диапазонов отвечает вызывающая сторона.
func Distance(a, b model.Coordinate, radiusKm float64) float64 {
	dLat := toRad(b.Lat - a.Lat)
	dLng := toRad(b.Lng - a.Lng)

	lat1 := toRad(a.Lat)
	lat2 := toRad(b.Lat)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLng/2)*math.Sin(dLng/2)

	return 2 * radiusKm * math.Asin(math.Sqrt(h))
}

func toRad(deg float64) float64 {
	return deg * math.Pi / 180
}
