package validation

import "github.com/mmeshcher/printhub-system/internal/model"

// IsValidCoordinate проверяет, что широта и долгота находятся в допустимых диапазонах.
// Проверка выполняется на границе HTTP: вычисление расстояний координаты не валидирует.
func IsValidCoordinate(c model.Coordinate) bool {
	if c.Lat < -90 || c.Lat > 90 {
		return false
	}
	if c.Lng < -180 || c.Lng > 180 {
		return false
	}
	return true
}
