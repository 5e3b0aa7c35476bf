// Package repository содержит реализацию доступа к данным в PostgreSQL.
package repository

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/mmeshcher/printhub-system/internal/model"
	"github.com/mmeshcher/printhub-system/internal/validation"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// ErrUserExists возвращается при попытке создать пользователя с уже существующим логином.
var (
	ErrUserExists = errors.New("user already exists")
	// ErrUserNotFound возвращается, если пользователь не найден.
	ErrUserNotFound = errors.New("user not found")
	// ErrOrderNotFound возвращается, если заказ не найден.
	ErrOrderNotFound = errors.New("order not found")
	// ErrShopNotFound возвращается, если пункт печати не найден.
	ErrShopNotFound = errors.New("shop not found")
	// ErrInvalidStatusTransition возвращается при попытке недопустимого перехода статуса заказа.
	ErrInvalidStatusTransition = errors.New("invalid order status transition")
)

// activeStatuses — статусы, при которых заказ занимает очередь магазина.
var activeStatuses = []string{
	string(model.OrderStatusPending),
	string(model.OrderStatusPrinting),
	string(model.OrderStatusReady),
}

// PostgresRepository предоставляет доступ к хранилищу данных в PostgreSQL.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository создаёт новый репозиторий и инициализирует схему БД через миграции.
func NewPostgresRepository(dsn string) (*PostgresRepository, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse pool config: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	r := &PostgresRepository{pool: pool}

	if err := r.runMigrations(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return r, nil
}

func (r *PostgresRepository) runMigrations(ctx context.Context) error {
	db := stdlib.OpenDBFromPool(r.pool)
	defer db.Close()

	goose.SetBaseFS(migrationsFS)

	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set dialect: %w", err)
	}

	if err := goose.UpContext(ctx, db, "migrations"); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	return nil
}

// Close закрывает пул соединений с БД.
func (r *PostgresRepository) Close() error {
	r.pool.Close()
	return nil
}

// CreateUser создаёт нового пользователя.
func (r *PostgresRepository) CreateUser(ctx context.Context, login string, passwordHash []byte) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx,
		`INSERT INTO users (login, password_hash) VALUES ($1, $2) RETURNING id`,
		login, passwordHash,
	).Scan(&id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return 0, fmt.Errorf("%w: %s", ErrUserExists, login)
		}
		return 0, fmt.Errorf("create user: %w", err)
	}
	return id, nil
}

// GetUserByLogin возвращает пользователя по логину.
func (r *PostgresRepository) GetUserByLogin(ctx context.Context, login string) (*model.User, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT id, login, password_hash, created_at FROM users WHERE login = $1`,
		login,
	)

	var u model.User
	err := row.Scan(&u.ID, &u.Login, &u.PasswordHash, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("get user: %w", err)
	}

	return &u, nil
}

// CreateOrder сохраняет новый заказ в статусе pending с пустым списком файлов
// и возвращает его идентификатор.
func (r *PostgresRepository) CreateOrder(ctx context.Context, userID, shopID int64, totalPages int, totalPriceCents int64) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx,
		`INSERT INTO orders (user_id, shop_id, total_pages, total_price, status, files)
		 VALUES ($1, $2, $3, $4, $5, '[]'::jsonb)
		 RETURNING id`,
		userID, shopID, totalPages, totalPriceCents, string(model.OrderStatusPending),
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert order: %w", err)
	}
	return id, nil
}

// GetOrderByID возвращает заказ по идентификатору.
func (r *PostgresRepository) GetOrderByID(ctx context.Context, orderID int64) (*model.Order, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT id, user_id, shop_id, total_pages, total_price, status, files, created_at
		 FROM orders
		 WHERE id = $1`,
		orderID,
	)

	order, err := scanOrder(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("get order: %w", err)
	}

	return order, nil
}

// GetOrdersByUser возвращает заказы пользователя, новые первыми.
func (r *PostgresRepository) GetOrdersByUser(ctx context.Context, userID int64) ([]model.Order, error) {
	return r.selectOrders(ctx,
		`SELECT id, user_id, shop_id, total_pages, total_price, status, files, created_at
		 FROM orders
		 WHERE user_id = $1
		 ORDER BY created_at DESC`,
		userID,
	)
}

// GetOrdersByShop возвращает заказы пункта печати, новые первыми.
func (r *PostgresRepository) GetOrdersByShop(ctx context.Context, shopID int64) ([]model.Order, error) {
	return r.selectOrders(ctx,
		`SELECT id, user_id, shop_id, total_pages, total_price, status, files, created_at
		 FROM orders
		 WHERE shop_id = $1
		 ORDER BY created_at DESC`,
		shopID,
	)
}

func (r *PostgresRepository) selectOrders(ctx context.Context, query string, args ...any) ([]model.Order, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("select orders: %w", err)
	}
	defer rows.Close()

	var orders []model.Order
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		orders = append(orders, *order)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return orders, nil
}

func scanOrder(row pgx.Row) (*model.Order, error) {
	var (
		o          model.Order
		priceCents int64
		filesJSON  []byte
	)

	err := row.Scan(&o.ID, &o.UserID, &o.ShopID, &o.TotalPages, &priceCents, &o.Status, &filesJSON, &o.CreatedAt)
	if err != nil {
		return nil, err
	}

	o.TotalPrice = float64(priceCents) / 100

	if err := json.Unmarshal(filesJSON, &o.Files); err != nil {
		return nil, fmt.Errorf("decode files: %w", err)
	}
	if o.Files == nil {
		o.Files = []model.FileMeta{}
	}

	return &o, nil
}

// GetActiveOrders возвращает проекции всех незавершённых заказов.
// Полное сканирование на каждый запрос ранжирования: при целевых объёмах заказов
// этого достаточно.
func (r *PostgresRepository) GetActiveOrders(ctx context.Context) ([]model.ActiveOrder, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT shop_id FROM orders WHERE status = ANY($1)`,
		activeStatuses,
	)
	if err != nil {
		return nil, fmt.Errorf("select active orders: %w", err)
	}
	defer rows.Close()

	var orders []model.ActiveOrder
	for rows.Next() {
		var o model.ActiveOrder
		if err := rows.Scan(&o.ShopID); err != nil {
			return nil, fmt.Errorf("scan active order: %w", err)
		}
		orders = append(orders, o)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return orders, nil
}

// AttachFiles записывает метаданные загруженных файлов в заказ одним обновлением,
// замещая прежний (пустой) список.
func (r *PostgresRepository) AttachFiles(ctx context.Context, orderID int64, files []model.FileMeta) error {
	filesJSON, err := json.Marshal(files)
	if err != nil {
		return fmt.Errorf("encode files: %w", err)
	}

	cmdTag, err := r.pool.Exec(ctx,
		`UPDATE orders SET files = $2 WHERE id = $1`,
		orderID, filesJSON,
	)
	if err != nil {
		return fmt.Errorf("attach files: %w", err)
	}

	if cmdTag.RowsAffected() == 0 {
		return ErrOrderNotFound
	}

	return nil
}

// UpdateOrderStatus переводит заказ в новый статус. Текущий статус блокируется
// на время проверки, недопустимый переход отклоняется.
func (r *PostgresRepository) UpdateOrderStatus(ctx context.Context, orderID int64, status model.OrderStatus) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var current string
	err = tx.QueryRow(ctx,
		`SELECT status FROM orders WHERE id = $1 FOR UPDATE`,
		orderID,
	).Scan(&current)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrOrderNotFound
		}
		return fmt.Errorf("select order status: %w", err)
	}

	if !validation.CanTransition(model.OrderStatus(current), status) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidStatusTransition, current, status)
	}

	if _, err := tx.Exec(ctx,
		`UPDATE orders SET status = $2 WHERE id = $1`,
		orderID, string(status),
	); err != nil {
		return fmt.Errorf("update order status: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}

	return nil
}

// GetAvailableShops возвращает пункты печати, принимающие заказы.
func (r *PostgresRepository) GetAvailableShops(ctx context.Context) ([]model.Shop, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, owner_id, name, lat, lng, price_per_page, is_available, is_verified, created_at
		 FROM shops
		 WHERE is_available
		 ORDER BY id`,
	)
	if err != nil {
		return nil, fmt.Errorf("select shops: %w", err)
	}
	defer rows.Close()

	var shops []model.Shop
	for rows.Next() {
		shop, err := scanShop(rows)
		if err != nil {
			return nil, fmt.Errorf("scan shop: %w", err)
		}
		shops = append(shops, *shop)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return shops, nil
}

// GetShopByID возвращает пункт печати по идентификатору.
func (r *PostgresRepository) GetShopByID(ctx context.Context, shopID int64) (*model.Shop, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT id, owner_id, name, lat, lng, price_per_page, is_available, is_verified, created_at
		 FROM shops
		 WHERE id = $1`,
		shopID,
	)

	shop, err := scanShop(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrShopNotFound
		}
		return nil, fmt.Errorf("get shop: %w", err)
	}

	return shop, nil
}

// GetShopByOwner возвращает пункт печати по идентификатору владельца.
func (r *PostgresRepository) GetShopByOwner(ctx context.Context, ownerID int64) (*model.Shop, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT id, owner_id, name, lat, lng, price_per_page, is_available, is_verified, created_at
		 FROM shops
		 WHERE owner_id = $1`,
		ownerID,
	)

	shop, err := scanShop(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrShopNotFound
		}
		return nil, fmt.Errorf("get shop by owner: %w", err)
	}

	return shop, nil
}

// SetShopAvailability переключает признак приёма заказов пунктом печати.
func (r *PostgresRepository) SetShopAvailability(ctx context.Context, shopID int64, available bool) error {
	cmdTag, err := r.pool.Exec(ctx,
		`UPDATE shops SET is_available = $2 WHERE id = $1`,
		shopID, available,
	)
	if err != nil {
		return fmt.Errorf("update shop availability: %w", err)
	}

	if cmdTag.RowsAffected() == 0 {
		return ErrShopNotFound
	}

	return nil
}

func scanShop(row pgx.Row) (*model.Shop, error) {
	var (
		s          model.Shop
		priceCents int64
	)

	err := row.Scan(&s.ID, &s.OwnerID, &s.Name, &s.Location.Lat, &s.Location.Lng, &priceCents, &s.IsAvailable, &s.IsVerified, &s.CreatedAt)
	if err != nil {
		return nil, err
	}

	s.PricePerPage = float64(priceCents) / 100

	return &s, nil
}
