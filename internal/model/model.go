// Package model содержит доменные сущности сервиса printhub.
package model

import "time"

// Coordinate — географическая точка: широта и долгота в градусах.
type Coordinate struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// User представляет зарегистрированного пользователя сервиса.
type User struct {
	ID           int64
	Login        string
	PasswordHash []byte
	CreatedAt    time.Time
}

// OrderStatus описывает статус печатного заказа.
type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusPrinting  OrderStatus = "printing"
	OrderStatusReady     OrderStatus = "ready"
	OrderStatusCompleted OrderStatus = "completed"
	OrderStatusFailed    OrderStatus = "failed"
	OrderStatusRejected  OrderStatus = "rejected"
)

// IsTerminal сообщает, является ли статус конечным. Из конечного статуса переходов нет.
func (s OrderStatus) IsTerminal() bool {
	switch s {
	case OrderStatusCompleted, OrderStatusFailed, OrderStatusRejected:
		return true
	}
	return false
}

// FileKind — вид файла в заказе.
type FileKind string

const (
	FileKindImage    FileKind = "image"
	FileKindDocument FileKind = "document"
)

// Shop описывает пункт печати.
type Shop struct {
	ID           int64
	OwnerID      int64
	Name         string
	Location     Coordinate
	PricePerPage float64
	IsAvailable  bool
	IsVerified   bool
	CreatedAt    time.Time
}

// FileMeta — метаданные загруженного файла. После прикрепления к заказу не изменяются.
type FileMeta struct {
	Name      string   `json:"name"`
	URL       string   `json:"url"`
	StorageID string   `json:"storage_id"`
	Kind      FileKind `json:"kind"`
	Pages     int      `json:"pages"`
}

// Order описывает печатный заказ. Порядок элементов Files совпадает с порядком загрузки.
type Order struct {
	ID         int64
	UserID     int64
	ShopID     int64
	TotalPages int
	TotalPrice float64
	Status     OrderStatus
	Files      []FileMeta
	CreatedAt  time.Time
}

// ActiveOrder — проекция незавершённого заказа, достаточная для подсчёта очередей.
type ActiveOrder struct {
	ShopID int64
}

// RankedShop — вычисляемое представление магазина в выдаче рекомендаций.
// Никогда не сохраняется: пересчитывается на каждый запрос.
type RankedShop struct {
	ID           int64
	Name         string
	Location     Coordinate
	PricePerPage float64
	Distance     float64
	QueueLength  int
	Score        float64
	TotalPrice   float64
}

// AnalyzedFile — файл заказа вместе с результатом анализа.
// Подсчёт страниц выполняется вне сервиса, результат принимается как есть.
type AnalyzedFile struct {
	Name     string
	MIMEType string
	Kind     FileKind
	Pages    int
	Data     []byte
}
