package ranking

import (
	"math"
	"testing"

	"github.com/mmeshcher/printhub-system/internal/model"
)

func TestQueueLengths(t *testing.T) {
	orders := []model.ActiveOrder{
		{ShopID: 1},
		{ShopID: 2},
		{ShopID: 1},
		{ShopID: 1},
	}

	queues := QueueLengths(orders)

	if queues[1] != 3 {
		t.Fatalf("queues[1] = %d, want 3", queues[1])
	}
	if queues[2] != 1 {
		t.Fatalf("queues[2] = %d, want 1", queues[2])
	}
	if _, ok := queues[3]; ok {
		t.Fatalf("shop without orders must be absent from the map")
	}
}

func TestNewEngineDefaults(t *testing.T) {
	e := NewEngine(Config{})
	cfg := e.Config()

	if cfg.DistanceWeight != 0.3 {
		t.Fatalf("DistanceWeight = %v, want 0.3", cfg.DistanceWeight)
	}
	if cfg.QueueWeight != 1.0 {
		t.Fatalf("QueueWeight = %v, want 1.0", cfg.QueueWeight)
	}
	if cfg.Limit != 5 {
		t.Fatalf("Limit = %d, want 5", cfg.Limit)
	}
	if cfg.EarthRadiusKm != 6371.0 {
		t.Fatalf("EarthRadiusKm = %v, want 6371.0", cfg.EarthRadiusKm)
	}
}

func TestRankOrdersByScore(t *testing.T) {
	user := model.Coordinate{Lat: 0, Lng: 0}
	shops := []model.Shop{
		{ID: 1, Name: "A", Location: model.Coordinate{Lat: 0, Lng: 0}},
		{ID: 2, Name: "B", Location: model.Coordinate{Lat: 0, Lng: 1}},
	}
	// A в точке пользователя без очереди, B в ~111.19 км без очереди.
	e := NewEngine(DefaultConfig())

	ranked := e.Rank(user, shops, map[int64]int{})

	if len(ranked) != 2 {
		t.Fatalf("len(ranked) = %d, want 2", len(ranked))
	}
	if ranked[0].ID != 1 || ranked[1].ID != 2 {
		t.Fatalf("unexpected order: %d, %d", ranked[0].ID, ranked[1].ID)
	}
	if ranked[0].Score != 0 {
		t.Fatalf("score of colocated shop = %v, want 0", ranked[0].Score)
	}
	wantScore := 6371.0 * math.Pi / 180 * 0.3
	if math.Abs(ranked[1].Score-wantScore) > 0.01 {
		t.Fatalf("score = %v, want %v", ranked[1].Score, wantScore)
	}
}

func TestRankQueuePenaltyOutweighsDistance(t *testing.T) {
	user := model.Coordinate{Lat: 0, Lng: 0}
	shops := []model.Shop{
		{ID: 1, Name: "near but busy", Location: model.Coordinate{Lat: 0, Lng: 0}},
		{ID: 2, Name: "farther but idle", Location: model.Coordinate{Lat: 0.01, Lng: 0}},
	}
	e := NewEngine(DefaultConfig())

	ranked := e.Rank(user, shops, map[int64]int{1: 10})

	if ranked[0].ID != 2 {
		t.Fatalf("idle shop must rank first, got shop %d", ranked[0].ID)
	}
	if ranked[1].QueueLength != 10 {
		t.Fatalf("QueueLength = %d, want 10", ranked[1].QueueLength)
	}
}

func TestRankStableForEqualScores(t *testing.T) {
	user := model.Coordinate{Lat: 0, Lng: 0}
	shops := []model.Shop{
		{ID: 7, Location: model.Coordinate{Lat: 0, Lng: 0}},
		{ID: 3, Location: model.Coordinate{Lat: 0, Lng: 0}},
		{ID: 5, Location: model.Coordinate{Lat: 0, Lng: 0}},
	}
	e := NewEngine(DefaultConfig())

	ranked := e.Rank(user, shops, nil)

	got := []int64{ranked[0].ID, ranked[1].ID, ranked[2].ID}
	want := []int64{7, 3, 5}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("equal scores must keep input order, got %v, want %v", got, want)
		}
	}
}

func TestRankEmptyInput(t *testing.T) {
	e := NewEngine(DefaultConfig())

	ranked := e.Rank(model.Coordinate{}, nil, nil)

	if len(ranked) != 0 {
		t.Fatalf("len(ranked) = %d, want 0", len(ranked))
	}
}

func TestTop(t *testing.T) {
	e := NewEngine(DefaultConfig())
	ranked := []model.RankedShop{{ID: 1}, {ID: 2}, {ID: 3}}

	tests := []struct {
		name  string
		limit int
		want  int
	}{
		{name: "limit below length", limit: 2, want: 2},
		{name: "limit above length", limit: 10, want: 3},
		{name: "zero limit uses default", limit: 0, want: 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := e.Top(ranked, tt.limit)
			if len(got) != tt.want {
				t.Fatalf("len(Top) = %d, want %d", len(got), tt.want)
			}
		})
	}
}

func TestAttachPrices(t *testing.T) {
	shops := []model.RankedShop{
		{ID: 1, PricePerPage: 2},
		{ID: 2, PricePerPage: 3.5},
	}

	priced, err := AttachPrices(10, shops)
	if err != nil {
		t.Fatalf("AttachPrices error: %v", err)
	}

	if priced[0].TotalPrice != 20 {
		t.Fatalf("TotalPrice = %v, want 20", priced[0].TotalPrice)
	}
	if priced[1].TotalPrice != 35 {
		t.Fatalf("TotalPrice = %v, want 35", priced[1].TotalPrice)
	}
	// Входной срез не изменяется.
	if shops[0].TotalPrice != 0 {
		t.Fatalf("input slice must not be mutated, TotalPrice = %v", shops[0].TotalPrice)
	}
}

func TestAttachPricesRejectsNonPositivePages(t *testing.T) {
	if _, err := AttachPrices(0, nil); err == nil {
		t.Fatalf("expected error for zero pages")
	}
	if _, err := AttachPrices(-5, nil); err == nil {
		t.Fatalf("expected error for negative pages")
	}
}
