// Package ranking реализует подбор пункта печати: агрегацию очередей,
// ранжирование магазинов и расчёт стоимости заказа.
package ranking

import (
	"fmt"
	"sort"

	"github.com/mmeshcher/printhub-system/internal/geo"
	"github.com/mmeshcher/printhub-system/internal/model"
)

// Config задаёт параметры ранжирования.
type Config struct {
	DistanceWeight float64
	QueueWeight    float64
	Limit          int
	EarthRadiusKm  float64
}

// DefaultConfig возвращает параметры ранжирования по умолчанию.
func DefaultConfig() Config {
	return Config{
		DistanceWeight: 0.3,
		QueueWeight:    1.0,
		Limit:          5,
		EarthRadiusKm:  geo.EarthRadiusKm,
	}
}

// QueueLengths строит отображение «магазин → число незавершённых заказов».
// Магазины без активных заказов в отображении отсутствуют: потребитель трактует
// отсутствие ключа как ноль.
func QueueLengths(orders []model.ActiveOrder) map[int64]int {
	queues := make(map[int64]int, len(orders))
	for _, o := range orders {
		queues[o.ShopID]++
	}
	return queues
}

// Engine ранжирует доступные магазины по взвешенной сумме расстояния и длины очереди.
type Engine struct {
	cfg Config
}

// NewEngine создаёт движок ранжирования с указанными параметрами.
// Неположительные веса и лимит заменяются значениями по умолчанию.
func NewEngine(cfg Config) *Engine {
	def := DefaultConfig()
	if cfg.DistanceWeight <= 0 {
		cfg.DistanceWeight = def.DistanceWeight
	}
	if cfg.QueueWeight <= 0 {
		cfg.QueueWeight = def.QueueWeight
	}
	if cfg.Limit <= 0 {
		cfg.Limit = def.Limit
	}
	if cfg.EarthRadiusKm <= 0 {
		cfg.EarthRadiusKm = def.EarthRadiusKm
	}
	return &Engine{cfg: cfg}
}

// Config возвращает действующие параметры движка.
func (e *Engine) Config() Config {
	return e.cfg
}

// Rank возвращает полный список магазинов, отсортированный по возрастанию оценки:
// чем ближе магазин и короче его очередь, тем раньше он в выдаче. Сортировка
// устойчива: магазины с равной оценкой сохраняют взаимный порядок входа.
// Пустой список магазинов даёт пустой результат, это не ошибка.
func (e *Engine) Rank(user model.Coordinate, shops []model.Shop, queues map[int64]int) []model.RankedShop {
	ranked := make([]model.RankedShop, 0, len(shops))

	for _, shop := range shops {
		distance := geo.Distance(user, shop.Location, e.cfg.EarthRadiusKm)
		queueLength := queues[shop.ID]

		score := distance*e.cfg.DistanceWeight + float64(queueLength)*e.cfg.QueueWeight

		ranked = append(ranked, model.RankedShop{
			ID:           shop.ID,
			Name:         shop.Name,
			Location:     shop.Location,
			PricePerPage: shop.PricePerPage,
			Distance:     distance,
			QueueLength:  queueLength,
			Score:        score,
		})
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Score < ranked[j].Score
	})

	return ranked
}

// Top возвращает ограниченный префикс ранжированного списка. Неположительный
// limit заменяется лимитом из конфигурации.
func (e *Engine) Top(ranked []model.RankedShop, limit int) []model.RankedShop {
	if limit <= 0 {
		limit = e.cfg.Limit
	}
	if limit > len(ranked) {
		limit = len(ranked)
	}
	return ranked[:limit]
}

// AttachPrices дополняет каждый магазин итоговой стоимостью заказа:
// totalPrice = totalPages × pricePerPage. Стоимость фиксируется на момент выбора
// магазина и при последующем изменении тарифа не пересчитывается.
func AttachPrices(totalPages int, shops []model.RankedShop) ([]model.RankedShop, error) {
	if totalPages <= 0 {
		return nil, fmt.Errorf("total pages must be positive, got %d", totalPages)
	}

	priced := make([]model.RankedShop, len(shops))
	for i, shop := range shops {
		shop.TotalPrice = float64(totalPages) * shop.PricePerPage
		priced[i] = shop
	}
	return priced, nil
}
