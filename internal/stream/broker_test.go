package stream

import (
	"testing"
	"time"

	"github.com/mmeshcher/printhub-system/internal/model"
)

func receiveOrder(t *testing.T, c <-chan model.Order) model.Order {
	t.Helper()
	select {
	case o := <-c:
		return o
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for order snapshot")
		return model.Order{}
	}
}

func TestSubscribeOrderDeliversInitialSnapshot(t *testing.T) {
	b := NewBroker()
	defer b.Close()

	initial := model.Order{ID: 1, Status: model.OrderStatusPending}
	sub := b.SubscribeOrder(1, &initial)
	defer sub.Cancel()

	got := receiveOrder(t, sub.C)
	if got.ID != 1 || got.Status != model.OrderStatusPending {
		t.Fatalf("unexpected initial snapshot: %+v", got)
	}
}

func TestPublishOrderDeliversToSubscribers(t *testing.T) {
	b := NewBroker()
	defer b.Close()

	sub := b.SubscribeOrder(1, nil)
	defer sub.Cancel()
	other := b.SubscribeOrder(2, nil)
	defer other.Cancel()

	b.PublishOrder(model.Order{ID: 1, Status: model.OrderStatusPrinting})

	got := receiveOrder(t, sub.C)
	if got.Status != model.OrderStatusPrinting {
		t.Fatalf("Status = %v, want printing", got.Status)
	}

	select {
	case o := <-other.C:
		t.Fatalf("subscriber of another order received %+v", o)
	default:
	}
}

func TestSlowSubscriberGetsLatestSnapshot(t *testing.T) {
	b := NewBroker()
	defer b.Close()

	sub := b.SubscribeOrder(1, nil)
	defer sub.Cancel()

	b.PublishOrder(model.Order{ID: 1, Status: model.OrderStatusPending})
	b.PublishOrder(model.Order{ID: 1, Status: model.OrderStatusPrinting})
	b.PublishOrder(model.Order{ID: 1, Status: model.OrderStatusReady})

	got := receiveOrder(t, sub.C)
	if got.Status != model.OrderStatusReady {
		t.Fatalf("Status = %v, want latest snapshot ready", got.Status)
	}
}

func TestCancelIsIdempotentAndStopsDelivery(t *testing.T) {
	b := NewBroker()
	defer b.Close()

	sub := b.SubscribeOrder(1, nil)
	kept := b.SubscribeOrder(1, nil)
	defer kept.Cancel()

	sub.Cancel()
	sub.Cancel()

	b.PublishOrder(model.Order{ID: 1, Status: model.OrderStatusPrinting})

	if _, ok := <-sub.C; ok {
		t.Fatalf("cancelled subscription must not receive snapshots")
	}

	got := receiveOrder(t, kept.C)
	if got.Status != model.OrderStatusPrinting {
		t.Fatalf("remaining subscriber must still receive snapshots, got %+v", got)
	}
}

func TestSubscribeShopOrdersDeliversInitialListEvenWhenEmpty(t *testing.T) {
	b := NewBroker()
	defer b.Close()

	sub := b.SubscribeShopOrders(5, nil)
	defer sub.Cancel()

	select {
	case orders := <-sub.C:
		if orders == nil || len(orders) != 0 {
			t.Fatalf("initial list = %+v, want empty non-nil slice", orders)
		}
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for initial shop orders")
	}
}

func TestPublishShopOrders(t *testing.T) {
	b := NewBroker()
	defer b.Close()

	sub := b.SubscribeShopOrders(5, []model.Order{})
	defer sub.Cancel()

	<-sub.C // начальный пустой список

	b.PublishShopOrders(5, []model.Order{{ID: 1}, {ID: 2}})

	select {
	case orders := <-sub.C:
		if len(orders) != 2 {
			t.Fatalf("len(orders) = %d, want 2", len(orders))
		}
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for shop orders update")
	}
}

func TestCloseCancelsAllSubscriptions(t *testing.T) {
	b := NewBroker()

	orderSub := b.SubscribeOrder(1, nil)
	shopSub := b.SubscribeShopOrders(5, []model.Order{})
	<-shopSub.C

	b.Close()

	if _, ok := <-orderSub.C; ok {
		t.Fatalf("order subscription must be closed after broker shutdown")
	}
	if _, ok := <-shopSub.C; ok {
		t.Fatalf("shop subscription must be closed after broker shutdown")
	}

	// Подписка после остановки сразу закрыта.
	late := b.SubscribeOrder(1, nil)
	if _, ok := <-late.C; ok {
		t.Fatalf("subscription after shutdown must be closed immediately")
	}

	// Отмена после остановки безопасна.
	orderSub.Cancel()
	late.Cancel()
}
