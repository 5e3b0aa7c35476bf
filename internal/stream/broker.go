// Package stream реализует доставку снимков заказов подписчикам в реальном времени.
//
// Подписчик получает полный текущий документ при подписке и затем после каждой
// мутации. Доставка коалесцирующая: медленный подписчик пропускает промежуточные
// снимки и всегда получает последний актуальный.
package stream

import (
	"sync"

	"github.com/mmeshcher/printhub-system/internal/model"
)

// Broker хранит активные подписки и рассылает им снимки.
type Broker struct {
	mu        sync.Mutex
	orderSubs map[int64]map[*OrderSubscription]struct{}
	shopSubs  map[int64]map[*ShopOrdersSubscription]struct{}
	closed    bool
}

// NewBroker создаёт брокер без подписок.
func NewBroker() *Broker {
	return &Broker{
		orderSubs: make(map[int64]map[*OrderSubscription]struct{}),
		shopSubs:  make(map[int64]map[*ShopOrdersSubscription]struct{}),
	}
}

// OrderSubscription — подписка на снимки одного заказа.
type OrderSubscription struct {
	// C доставляет снимки заказа до отмены подписки, затем закрывается.
	C <-chan model.Order

	ch      chan model.Order
	once    sync.Once
	broker  *Broker
	orderID int64
}

// Cancel навсегда останавливает доставку этому подписчику, не затрагивая остальных.
// Повторный вызов безопасен и ни на что не влияет.
func (s *OrderSubscription) Cancel() {
	s.broker.mu.Lock()
	defer s.broker.mu.Unlock()
	s.closeLocked()
}

func (s *OrderSubscription) closeLocked() {
	s.once.Do(func() {
		if subs, ok := s.broker.orderSubs[s.orderID]; ok {
			delete(subs, s)
			if len(subs) == 0 {
				delete(s.broker.orderSubs, s.orderID)
			}
		}
		close(s.ch)
	})
}

// ShopOrdersSubscription — подписка на список заказов одного магазина.
type ShopOrdersSubscription struct {
	// C доставляет полный список заказов магазина до отмены подписки, затем закрывается.
	C <-chan []model.Order

	ch     chan []model.Order
	once   sync.Once
	broker *Broker
	shopID int64
}

// Cancel навсегда останавливает доставку этому подписчику, не затрагивая остальных.
// Повторный вызов безопасен и ни на что не влияет.
func (s *ShopOrdersSubscription) Cancel() {
	s.broker.mu.Lock()
	defer s.broker.mu.Unlock()
	s.closeLocked()
}

func (s *ShopOrdersSubscription) closeLocked() {
	s.once.Do(func() {
		if subs, ok := s.broker.shopSubs[s.shopID]; ok {
			delete(subs, s)
			if len(subs) == 0 {
				delete(s.broker.shopSubs, s.shopID)
			}
		}
		close(s.ch)
	})
}

// SubscribeOrder регистрирует подписку на заказ. Если initial не nil, снимок
// доставляется подписчику немедленно, до каких-либо мутаций.
func (b *Broker) SubscribeOrder(orderID int64, initial *model.Order) *OrderSubscription {
	sub := &OrderSubscription{
		ch:      make(chan model.Order, 1),
		broker:  b,
		orderID: orderID,
	}
	sub.C = sub.ch

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		sub.closeLocked()
		return sub
	}

	if b.orderSubs[orderID] == nil {
		b.orderSubs[orderID] = make(map[*OrderSubscription]struct{})
	}
	b.orderSubs[orderID][sub] = struct{}{}

	if initial != nil {
		sub.ch <- *initial
	}

	return sub
}

// SubscribeShopOrders регистрирует подписку на список заказов магазина.
// Текущий список initial доставляется немедленно, даже если он пуст.
func (b *Broker) SubscribeShopOrders(shopID int64, initial []model.Order) *ShopOrdersSubscription {
	sub := &ShopOrdersSubscription{
		ch:     make(chan []model.Order, 1),
		broker: b,
		shopID: shopID,
	}
	sub.C = sub.ch

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		sub.closeLocked()
		return sub
	}

	if b.shopSubs[shopID] == nil {
		b.shopSubs[shopID] = make(map[*ShopOrdersSubscription]struct{})
	}
	b.shopSubs[shopID][sub] = struct{}{}

	if initial == nil {
		initial = []model.Order{}
	}
	sub.ch <- initial

	return sub
}

// PublishOrder рассылает снимок заказа всем его подписчикам.
func (b *Broker) PublishOrder(order model.Order) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for sub := range b.orderSubs[order.ID] {
		deliver(sub.ch, order)
	}
}

// PublishShopOrders рассылает полный список заказов магазина всем его подписчикам.
func (b *Broker) PublishShopOrders(shopID int64, orders []model.Order) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if orders == nil {
		orders = []model.Order{}
	}
	for sub := range b.shopSubs[shopID] {
		deliver(sub.ch, orders)
	}
}

// Close отменяет все подписки и запрещает новые. Вызывается при остановке сервиса.
func (b *Broker) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true

	for _, subs := range b.orderSubs {
		for sub := range subs {
			sub.closeLocked()
		}
	}
	for _, subs := range b.shopSubs {
		for sub := range subs {
			sub.closeLocked()
		}
	}
}

// deliver выполняет неблокирующую доставку: устаревший недочитанный снимок
// вытесняется свежим.
func deliver[T any](ch chan T, v T) {
	for {
		select {
		case ch <- v:
			return
		default:
			select {
			case <-ch:
			default:
			}
		}
	}
}
