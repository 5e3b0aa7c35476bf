// Package service реализует бизнес-логику сервиса printhub.
package service

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"errors"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/mmeshcher/printhub-system/internal/blobstore"
	"github.com/mmeshcher/printhub-system/internal/model"
	"github.com/mmeshcher/printhub-system/internal/ranking"
	"github.com/mmeshcher/printhub-system/internal/repository"
	"github.com/mmeshcher/printhub-system/internal/stream"
	"github.com/mmeshcher/printhub-system/internal/validation"
)

// ErrInvalidOrderInput возвращается, если входные данные заказа не проходят валидацию.
var (
	ErrInvalidOrderInput = errors.New("invalid order input")
	// ErrUnknownStatus возвращается при неизвестном значении статуса заказа.
	ErrUnknownStatus = errors.New("unknown order status")
	// ErrInvalidCredentials возвращается при неверном логине или пароле.
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// Repository описывает контракт доступа к данным, используемый сервисом.
type Repository interface {
	Close() error
	CreateUser(ctx context.Context, login string, passwordHash []byte) (int64, error)
	GetUserByLogin(ctx context.Context, login string) (*model.User, error)
	CreateOrder(ctx context.Context, userID, shopID int64, totalPages int, totalPriceCents int64) (int64, error)
	GetOrderByID(ctx context.Context, orderID int64) (*model.Order, error)
	GetOrdersByUser(ctx context.Context, userID int64) ([]model.Order, error)
	GetOrdersByShop(ctx context.Context, shopID int64) ([]model.Order, error)
	GetActiveOrders(ctx context.Context) ([]model.ActiveOrder, error)
	AttachFiles(ctx context.Context, orderID int64, files []model.FileMeta) error
	UpdateOrderStatus(ctx context.Context, orderID int64, status model.OrderStatus) error
	GetAvailableShops(ctx context.Context) ([]model.Shop, error)
	GetShopByID(ctx context.Context, shopID int64) (*model.Shop, error)
	GetShopByOwner(ctx context.Context, ownerID int64) (*model.Shop, error)
	SetShopAvailability(ctx context.Context, shopID int64, available bool) error
}

// Uploader описывает контракт хранилища бинарных файлов.
type Uploader interface {
	Upload(ctx context.Context, name string, data []byte, isDocument bool, folder string) (*blobstore.UploadResult, error)
}

// Service содержит бизнес-логику сервиса printhub.
type Service struct {
	repo   Repository
	blob   Uploader
	broker *stream.Broker
	engine *ranking.Engine
	logger *zap.Logger
}

// NewService создаёт сервис с указанными зависимостями.
func NewService(repo Repository, blob Uploader, broker *stream.Broker, engine *ranking.Engine, logger *zap.Logger) *Service {
	return &Service{
		repo:   repo,
		blob:   blob,
		broker: broker,
		engine: engine,
		logger: logger,
	}
}

// Close закрывает ресурсы сервиса.
func (s *Service) Close() error {
	if s.broker != nil {
		s.broker.Close()
	}
	if s.repo != nil {
		return s.repo.Close()
	}
	return nil
}

// RegisterUser регистрирует нового пользователя.
func (s *Service) RegisterUser(ctx context.Context, login, password string) (int64, error) {
	hashed := hashPassword(login, password)
	id, err := s.repo.CreateUser(ctx, login, hashed)
	if err != nil {
		return 0, err
	}
	return id, nil
}

// AuthenticateUser проверяет логин и пароль пользователя и возвращает его идентификатор.
func (s *Service) AuthenticateUser(ctx context.Context, login, password string) (int64, error) {
	u, err := s.repo.GetUserByLogin(ctx, login)
	if err != nil {
		return 0, err
	}

	hashed := hashPassword(login, password)
	if !hmac.Equal(hashed, u.PasswordHash) {
		return 0, ErrInvalidCredentials
	}

	return u.ID, nil
}

func hashPassword(login, password string) []byte {
	sum := sha256.Sum256([]byte(login + ":" + password))
	return sum[:]
}

// RecommendShops подбирает пункты печати для пользователя в точке user.
// Доступные магазины и активные заказы загружаются параллельно, затем магазины
// ранжируются по взвешенной сумме расстояния и длины очереди, и к верхним limit
// добавляется стоимость заказа. Очередь — точечная оценка на момент запроса,
// а не резервирование места.
func (s *Service) RecommendShops(ctx context.Context, user model.Coordinate, totalPages, limit int) ([]model.RankedShop, error) {
	var (
		shops  []model.Shop
		active []model.ActiveOrder
	)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		var err error
		shops, err = s.repo.GetAvailableShops(gctx)
		return err
	})

	g.Go(func() error {
		var err error
		active, err = s.repo.GetActiveOrders(gctx)
		return err
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}

	queues := ranking.QueueLengths(active)
	ranked := s.engine.Rank(user, shops, queues)
	top := s.engine.Top(ranked, limit)

	return ranking.AttachPrices(totalPages, top)
}

// CreateOrder выполняет создание заказа в три шага: запись заказа, загрузка
// файлов в хранилище, прикрепление метаданных. Шаги не атомарны: при сбое после
// создания записи заказ лучшим усилием переводится в failed, а вызывающая
// сторона в любом случае получает ошибку исходного шага. Повторных попыток нет.
func (s *Service) CreateOrder(ctx context.Context, userID, shopID int64, files []model.AnalyzedFile) (*model.Order, error) {
	if err := checkOrderInput(userID, shopID, files); err != nil {
		return nil, err
	}

	shop, err := s.repo.GetShopByID(ctx, shopID)
	if err != nil {
		return nil, err
	}

	totalPages := 0
	for _, f := range files {
		totalPages += f.Pages
	}

	// Стоимость фиксируется по тарифу на момент выбора магазина.
	totalPriceCents := int64(math.Round(float64(totalPages) * shop.PricePerPage * 100))

	orderID, err := s.repo.CreateOrder(ctx, userID, shopID, totalPages, totalPriceCents)
	if err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}

	// Заказ занимает очередь магазина с момента вставки, ещё до загрузки файлов,
	// поэтому подписчики магазина уведомляются сразу.
	s.notifyOrderByID(ctx, orderID)

	folder := fmt.Sprintf("orders/%d", orderID)

	metas := make([]model.FileMeta, 0, len(files))
	for _, f := range files {
		res, err := s.blob.Upload(ctx, f.Name, f.Data, f.Kind == model.FileKindDocument, folder)
		if err != nil {
			s.failOrder(orderID)
			return nil, fmt.Errorf("upload file %q: %w", f.Name, err)
		}

		name := res.OriginalFilename
		if name == "" {
			name = f.Name
		}

		metas = append(metas, model.FileMeta{
			Name:      name,
			URL:       res.SecureURL,
			StorageID: res.PublicID,
			Kind:      f.Kind,
			Pages:     f.Pages,
		})
	}

	if err := s.repo.AttachFiles(ctx, orderID, metas); err != nil {
		s.failOrder(orderID)
		return nil, fmt.Errorf("attach files: %w", err)
	}

	order, err := s.repo.GetOrderByID(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("load created order: %w", err)
	}

	s.notifyOrder(*order)

	return order, nil
}

func checkOrderInput(userID, shopID int64, files []model.AnalyzedFile) error {
	if userID == 0 {
		return fmt.Errorf("%w: missing user id", ErrInvalidOrderInput)
	}
	if shopID == 0 {
		return fmt.Errorf("%w: missing shop id", ErrInvalidOrderInput)
	}
	if len(files) == 0 {
		return fmt.Errorf("%w: no files", ErrInvalidOrderInput)
	}
	for i, f := range files {
		if f.Name == "" {
			return fmt.Errorf("%w: file %d has no name", ErrInvalidOrderInput, i)
		}
		if f.Pages <= 0 {
			return fmt.Errorf("%w: file %q has non-positive page count", ErrInvalidOrderInput, f.Name)
		}
		if f.Kind != model.FileKindImage && f.Kind != model.FileKindDocument {
			return fmt.Errorf("%w: file %q has unknown kind %q", ErrInvalidOrderInput, f.Name, f.Kind)
		}
	}
	return nil
}

// failOrder — компенсирующее действие саги: единственная попытка перевести заказ
// в failed. Собственный сбой компенсации только логируется и наружу не выходит,
// поэтому заказ может остаться видимым в pending без файлов.
func (s *Service) failOrder(orderID int64) {
	// Запрос выполняется на отдельном контексте: контекст исходного запроса к
	// этому моменту может быть уже отменён.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.repo.UpdateOrderStatus(ctx, orderID, model.OrderStatusFailed); err != nil {
		s.logger.Error("compensating status update failed",
			zap.Int64("orderID", orderID),
			zap.Error(err),
		)
		return
	}

	s.notifyOrderByID(ctx, orderID)
}

// UpdateOrderStatus переводит заказ в новый статус по запросу владельца магазина.
func (s *Service) UpdateOrderStatus(ctx context.Context, ownerID, orderID int64, status string) (*model.Order, error) {
	st, ok := validation.ParseOrderStatus(status)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownStatus, status)
	}

	shop, err := s.repo.GetShopByOwner(ctx, ownerID)
	if err != nil {
		return nil, err
	}

	order, err := s.repo.GetOrderByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.ShopID != shop.ID {
		return nil, repository.ErrOrderNotFound
	}

	if err := s.repo.UpdateOrderStatus(ctx, orderID, st); err != nil {
		return nil, err
	}

	updated, err := s.repo.GetOrderByID(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("load updated order: %w", err)
	}

	s.notifyOrder(*updated)

	return updated, nil
}

// GetOrdersByUser возвращает заказы пользователя, новые первыми.
func (s *Service) GetOrdersByUser(ctx context.Context, userID int64) ([]model.Order, error) {
	return s.repo.GetOrdersByUser(ctx, userID)
}

// GetOrderForUser возвращает заказ пользователя. Чужой заказ неотличим от несуществующего.
func (s *Service) GetOrderForUser(ctx context.Context, userID, orderID int64) (*model.Order, error) {
	order, err := s.repo.GetOrderByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.UserID != userID {
		return nil, repository.ErrOrderNotFound
	}
	return order, nil
}

// WatchOrder открывает подписку на заказ пользователя. Текущее состояние заказа
// доставляется сразу, до первой мутации.
func (s *Service) WatchOrder(ctx context.Context, userID, orderID int64) (*stream.OrderSubscription, error) {
	order, err := s.GetOrderForUser(ctx, userID, orderID)
	if err != nil {
		return nil, err
	}
	return s.broker.SubscribeOrder(orderID, order), nil
}

// WatchShopOrders открывает подписку на список заказов магазина владельца.
// Текущий список доставляется сразу, даже если он пуст.
func (s *Service) WatchShopOrders(ctx context.Context, ownerID int64) (*stream.ShopOrdersSubscription, error) {
	shop, err := s.repo.GetShopByOwner(ctx, ownerID)
	if err != nil {
		return nil, err
	}

	orders, err := s.repo.GetOrdersByShop(ctx, shop.ID)
	if err != nil {
		return nil, err
	}

	return s.broker.SubscribeShopOrders(shop.ID, orders), nil
}

// GetShopByOwner возвращает пункт печати владельца.
func (s *Service) GetShopByOwner(ctx context.Context, ownerID int64) (*model.Shop, error) {
	return s.repo.GetShopByOwner(ctx, ownerID)
}

// GetShopOrders возвращает заказы магазина владельца, новые первыми.
func (s *Service) GetShopOrders(ctx context.Context, ownerID int64) ([]model.Order, error) {
	shop, err := s.repo.GetShopByOwner(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	return s.repo.GetOrdersByShop(ctx, shop.ID)
}

// SetShopAvailability переключает приём заказов магазином владельца.
func (s *Service) SetShopAvailability(ctx context.Context, ownerID int64, available bool) (*model.Shop, error) {
	shop, err := s.repo.GetShopByOwner(ctx, ownerID)
	if err != nil {
		return nil, err
	}

	if err := s.repo.SetShopAvailability(ctx, shop.ID, available); err != nil {
		return nil, err
	}

	shop.IsAvailable = available
	return shop, nil
}

// notifyOrder рассылает подписчикам снимок заказа и обновлённый список заказов
// его магазина.
func (s *Service) notifyOrder(order model.Order) {
	s.broker.PublishOrder(order)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	orders, err := s.repo.GetOrdersByShop(ctx, order.ShopID)
	if err != nil {
		s.logger.Warn("load shop orders for notification",
			zap.Int64("shopID", order.ShopID),
			zap.Error(err),
		)
		return
	}

	s.broker.PublishShopOrders(order.ShopID, orders)
}

func (s *Service) notifyOrderByID(ctx context.Context, orderID int64) {
	order, err := s.repo.GetOrderByID(ctx, orderID)
	if err != nil {
		s.logger.Warn("load order for notification",
			zap.Int64("orderID", orderID),
			zap.Error(err),
		)
		return
	}
	s.notifyOrder(*order)
}
