// Package validation содержит проверки входных данных сервиса printhub.
package validation

import "github.com/mmeshcher/printhub-system/internal/model"

// statusTransitions задаёт граф допустимых переходов статусов заказа.
// Конечные статусы (completed, failed, rejected) исходящих переходов не имеют.
var statusTransitions = map[model.OrderStatus][]model.OrderStatus{
	model.OrderStatusPending:  {model.OrderStatusPrinting, model.OrderStatusRejected, model.OrderStatusFailed},
	model.OrderStatusPrinting: {model.OrderStatusReady, model.OrderStatusFailed},
	model.OrderStatusReady:    {model.OrderStatusCompleted, model.OrderStatusFailed},
}

// ParseOrderStatus преобразует строку в статус заказа.
// Любое значение вне закрытого перечисления считается ошибкой валидации.
func ParseOrderStatus(s string) (model.OrderStatus, bool) {
	switch model.OrderStatus(s) {
	case model.OrderStatusPending,
		model.OrderStatusPrinting,
		model.OrderStatusReady,
		model.OrderStatusCompleted,
		model.OrderStatusFailed,
		model.OrderStatusRejected:
		return model.OrderStatus(s), true
	}
	return "", false
}

// CanTransition сообщает, допустим ли переход заказа из статуса from в статус to.
func CanTransition(from, to model.OrderStatus) bool {
	for _, next := range statusTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}
