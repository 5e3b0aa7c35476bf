// Package handler содержит HTTP-обработчики API сервиса printhub.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/mmeshcher/printhub-system/internal/blobstore"
	"github.com/mmeshcher/printhub-system/internal/middleware"
	"github.com/mmeshcher/printhub-system/internal/model"
	"github.com/mmeshcher/printhub-system/internal/repository"
	"github.com/mmeshcher/printhub-system/internal/service"
	"github.com/mmeshcher/printhub-system/internal/stream"
	"github.com/mmeshcher/printhub-system/internal/validation"
)

// maxOrderFormBytes ограничивает суммарный размер multipart-формы создания заказа.
const maxOrderFormBytes = 64 << 20

// Service определяет контракт бизнес-логики, используемой HTTP-обработчиками.
type Service interface {
	RegisterUser(ctx context.Context, login, password string) (int64, error)
	AuthenticateUser(ctx context.Context, login, password string) (int64, error)
	RecommendShops(ctx context.Context, user model.Coordinate, totalPages, limit int) ([]model.RankedShop, error)
	CreateOrder(ctx context.Context, userID, shopID int64, files []model.AnalyzedFile) (*model.Order, error)
	GetOrdersByUser(ctx context.Context, userID int64) ([]model.Order, error)
	GetOrderForUser(ctx context.Context, userID, orderID int64) (*model.Order, error)
	WatchOrder(ctx context.Context, userID, orderID int64) (*stream.OrderSubscription, error)
	UpdateOrderStatus(ctx context.Context, ownerID, orderID int64, status string) (*model.Order, error)
	GetShopByOwner(ctx context.Context, ownerID int64) (*model.Shop, error)
	GetShopOrders(ctx context.Context, ownerID int64) ([]model.Order, error)
	SetShopAvailability(ctx context.Context, ownerID int64, available bool) (*model.Shop, error)
	WatchShopOrders(ctx context.Context, ownerID int64) (*stream.ShopOrdersSubscription, error)
}

// Handler реализует HTTP-обработчики API сервиса printhub.
type Handler struct {
	service        Service
	logger         *zap.Logger
	authMiddleware *middleware.AuthMiddleware
}

// NewHandler создаёт новый экземпляр обработчика HTTP-запросов.
func NewHandler(s Service, logger *zap.Logger, auth *middleware.AuthMiddleware) *Handler {
	return &Handler{
		service:        s,
		logger:         logger,
		authMiddleware: auth,
	}
}

type credentialsRequest struct {
	Login    string `json:"login"`
	Password string `json:"password"`
}

// Register обрабатывает регистрацию нового пользователя.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if req.Login == "" || req.Password == "" {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	userID, err := h.service.RegisterUser(r.Context(), req.Login, req.Password)
	if err != nil {
		if errors.Is(err, repository.ErrUserExists) {
			http.Error(w, http.StatusText(http.StatusConflict), http.StatusConflict)
			return
		}
		h.logger.Error("register user error", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	h.authMiddleware.SetAuthCookie(w, userID)
	w.WriteHeader(http.StatusOK)
}

// Login выполняет аутентификацию пользователя и установку cookie.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if req.Login == "" || req.Password == "" {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	userID, err := h.service.AuthenticateUser(r.Context(), req.Login, req.Password)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) || errors.Is(err, service.ErrInvalidCredentials) {
			http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
			return
		}
		h.logger.Error("login user error", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	h.authMiddleware.SetAuthCookie(w, userID)
	w.WriteHeader(http.StatusOK)
}

type recommendRequest struct {
	Lat        float64 `json:"lat"`
	Lng        float64 `json:"lng"`
	TotalPages int     `json:"total_pages"`
	Limit      int     `json:"limit,omitempty"`
}

type rankedShopResponse struct {
	ID           int64   `json:"id"`
	Name         string  `json:"name"`
	PricePerPage float64 `json:"price_per_page"`
	Distance     float64 `json:"distance"`
	QueueLength  int     `json:"queue_length"`
	Score        float64 `json:"score"`
	TotalPrice   float64 `json:"total_price"`
}

// RecommendShops возвращает ранжированный список пунктов печати для пользователя.
func (h *Handler) RecommendShops(w http.ResponseWriter, r *http.Request) {
	if _, ok := middleware.GetUserIDFromContext(r.Context()); !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	var req recommendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	location := model.Coordinate{Lat: req.Lat, Lng: req.Lng}
	if !validation.IsValidCoordinate(location) || req.TotalPages <= 0 {
		http.Error(w, http.StatusText(http.StatusUnprocessableEntity), http.StatusUnprocessableEntity)
		return
	}

	shops, err := h.service.RecommendShops(r.Context(), location, req.TotalPages, req.Limit)
	if err != nil {
		h.logger.Error("recommend shops error", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	resp := make([]rankedShopResponse, 0, len(shops))
	for _, s := range shops {
		resp = append(resp, rankedShopResponse{
			ID:           s.ID,
			Name:         s.Name,
			PricePerPage: s.PricePerPage,
			Distance:     s.Distance,
			QueueLength:  s.QueueLength,
			Score:        s.Score,
			TotalPrice:   s.TotalPrice,
		})
	}

	h.writeJSON(w, http.StatusOK, resp)
}

type createOrderMeta struct {
	ShopID int64 `json:"shop_id"`
	Files  []struct {
		Name     string `json:"name"`
		MIMEType string `json:"mime_type"`
		Kind     string `json:"kind"`
		Pages    int    `json:"pages"`
	} `json:"files"`
}

// CreateOrder принимает multipart-форму с файлами и метаданными и выполняет
// создание заказа.
func (h *Handler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	if err := r.ParseMultipartForm(maxOrderFormBytes); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	var meta createOrderMeta
	if err := json.Unmarshal([]byte(r.FormValue("meta")), &meta); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	parts := r.MultipartForm.File["files"]
	if len(parts) == 0 || len(parts) != len(meta.Files) {
		http.Error(w, http.StatusText(http.StatusUnprocessableEntity), http.StatusUnprocessableEntity)
		return
	}

	// Порядок файлов в форме задаёт порядок загрузки и порядок метаданных в заказе.
	files := make([]model.AnalyzedFile, 0, len(parts))
	for i, part := range parts {
		f, err := part.Open()
		if err != nil {
			http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
			return
		}

		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
			return
		}

		fm := meta.Files[i]
		name := fm.Name
		if name == "" {
			name = part.Filename
		}

		files = append(files, model.AnalyzedFile{
			Name:     name,
			MIMEType: fm.MIMEType,
			Kind:     model.FileKind(fm.Kind),
			Pages:    fm.Pages,
			Data:     data,
		})
	}

	order, err := h.service.CreateOrder(r.Context(), userID, meta.ShopID, files)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidOrderInput), errors.Is(err, repository.ErrShopNotFound):
			http.Error(w, http.StatusText(http.StatusUnprocessableEntity), http.StatusUnprocessableEntity)
		case errors.Is(err, blobstore.ErrUpload):
			h.logger.Error("create order: blob store error", zap.Error(err), zap.Int64("userID", userID))
			http.Error(w, http.StatusText(http.StatusBadGateway), http.StatusBadGateway)
		default:
			h.logger.Error("create order error", zap.Error(err), zap.Int64("userID", userID))
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		}
		return
	}

	h.writeJSON(w, http.StatusCreated, toOrderResponse(*order))
}

type fileMetaResponse struct {
	Name      string `json:"name"`
	URL       string `json:"url"`
	StorageID string `json:"storage_id"`
	Kind      string `json:"kind"`
	Pages     int    `json:"pages"`
}

type orderResponse struct {
	ID         int64              `json:"id"`
	UserID     int64              `json:"user_id"`
	ShopID     int64              `json:"shop_id"`
	TotalPages int                `json:"total_pages"`
	TotalPrice float64            `json:"total_price"`
	Status     string             `json:"status"`
	Files      []fileMetaResponse `json:"files"`
	CreatedAt  string             `json:"created_at"`
}

func toOrderResponse(o model.Order) orderResponse {
	files := make([]fileMetaResponse, 0, len(o.Files))
	for _, f := range o.Files {
		files = append(files, fileMetaResponse{
			Name:      f.Name,
			URL:       f.URL,
			StorageID: f.StorageID,
			Kind:      string(f.Kind),
			Pages:     f.Pages,
		})
	}

	return orderResponse{
		ID:         o.ID,
		UserID:     o.UserID,
		ShopID:     o.ShopID,
		TotalPages: o.TotalPages,
		TotalPrice: o.TotalPrice,
		Status:     string(o.Status),
		Files:      files,
		CreatedAt:  o.CreatedAt.Format(time.RFC3339),
	}
}

// GetOrders возвращает список заказов текущего пользователя.
func (h *Handler) GetOrders(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	orders, err := h.service.GetOrdersByUser(r.Context(), userID)
	if err != nil {
		h.logger.Error("get orders error", zap.Error(err), zap.Int64("userID", userID))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	if len(orders) == 0 {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	resp := make([]orderResponse, 0, len(orders))
	for _, o := range orders {
		resp = append(resp, toOrderResponse(o))
	}

	h.writeJSON(w, http.StatusOK, resp)
}

// GetOrder возвращает один заказ текущего пользователя.
func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	orderID, err := strconv.ParseInt(chi.URLParam(r, "orderID"), 10, 64)
	if err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	order, err := h.service.GetOrderForUser(r.Context(), userID, orderID)
	if err != nil {
		if errors.Is(err, repository.ErrOrderNotFound) {
			http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
			return
		}
		h.logger.Error("get order error", zap.Error(err), zap.Int64("orderID", orderID))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, http.StatusOK, toOrderResponse(*order))
}

// StreamOrder отдаёт состояние заказа потоком server-sent events: текущий
// снимок сразу после подписки и далее после каждой мутации.
func (h *Handler) StreamOrder(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	orderID, err := strconv.ParseInt(chi.URLParam(r, "orderID"), 10, 64)
	if err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	sub, err := h.service.WatchOrder(r.Context(), userID, orderID)
	if err != nil {
		if errors.Is(err, repository.ErrOrderNotFound) {
			http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
			return
		}
		h.logger.Error("watch order error", zap.Error(err), zap.Int64("orderID", orderID))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	defer sub.Cancel()

	setStreamHeaders(w)
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case order, ok := <-sub.C:
			if !ok {
				return
			}
			if err := writeEvent(w, toOrderResponse(order)); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

type shopResponse struct {
	ID           int64   `json:"id"`
	Name         string  `json:"name"`
	Lat          float64 `json:"lat"`
	Lng          float64 `json:"lng"`
	PricePerPage float64 `json:"price_per_page"`
	IsAvailable  bool    `json:"is_available"`
	IsVerified   bool    `json:"is_verified"`
}

func toShopResponse(s model.Shop) shopResponse {
	return shopResponse{
		ID:           s.ID,
		Name:         s.Name,
		Lat:          s.Location.Lat,
		Lng:          s.Location.Lng,
		PricePerPage: s.PricePerPage,
		IsAvailable:  s.IsAvailable,
		IsVerified:   s.IsVerified,
	}
}

// GetShop возвращает пункт печати текущего владельца.
func (h *Handler) GetShop(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	shop, err := h.service.GetShopByOwner(r.Context(), ownerID)
	if err != nil {
		if errors.Is(err, repository.ErrShopNotFound) {
			http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
			return
		}
		h.logger.Error("get shop error", zap.Error(err), zap.Int64("ownerID", ownerID))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, http.StatusOK, toShopResponse(*shop))
}

type availabilityRequest struct {
	IsAvailable bool `json:"is_available"`
}

// SetShopAvailability переключает приём заказов пунктом печати текущего владельца.
func (h *Handler) SetShopAvailability(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	var req availabilityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	shop, err := h.service.SetShopAvailability(r.Context(), ownerID, req.IsAvailable)
	if err != nil {
		if errors.Is(err, repository.ErrShopNotFound) {
			http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
			return
		}
		h.logger.Error("set shop availability error", zap.Error(err), zap.Int64("ownerID", ownerID))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, http.StatusOK, toShopResponse(*shop))
}

// GetShopOrders возвращает заказы пункта печати текущего владельца.
func (h *Handler) GetShopOrders(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	orders, err := h.service.GetShopOrders(r.Context(), ownerID)
	if err != nil {
		if errors.Is(err, repository.ErrShopNotFound) {
			http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
			return
		}
		h.logger.Error("get shop orders error", zap.Error(err), zap.Int64("ownerID", ownerID))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	resp := make([]orderResponse, 0, len(orders))
	for _, o := range orders {
		resp = append(resp, toOrderResponse(o))
	}

	h.writeJSON(w, http.StatusOK, resp)
}

// StreamShopOrders отдаёт список заказов магазина потоком server-sent events:
// полный текущий список сразу после подписки и далее после каждой мутации
// любого подходящего заказа.
func (h *Handler) StreamShopOrders(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	sub, err := h.service.WatchShopOrders(r.Context(), ownerID)
	if err != nil {
		if errors.Is(err, repository.ErrShopNotFound) {
			http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
			return
		}
		h.logger.Error("watch shop orders error", zap.Error(err), zap.Int64("ownerID", ownerID))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	defer sub.Cancel()

	setStreamHeaders(w)
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case orders, ok := <-sub.C:
			if !ok {
				return
			}
			resp := make([]orderResponse, 0, len(orders))
			for _, o := range orders {
				resp = append(resp, toOrderResponse(o))
			}
			if err := writeEvent(w, resp); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

type statusRequest struct {
	Status string `json:"status"`
}

// UpdateOrderStatus переводит заказ в новый статус по запросу владельца магазина.
func (h *Handler) UpdateOrderStatus(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	orderID, err := strconv.ParseInt(chi.URLParam(r, "orderID"), 10, 64)
	if err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	var req statusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	order, err := h.service.UpdateOrderStatus(r.Context(), ownerID, orderID, req.Status)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrUnknownStatus):
			http.Error(w, http.StatusText(http.StatusUnprocessableEntity), http.StatusUnprocessableEntity)
		case errors.Is(err, repository.ErrShopNotFound):
			http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
		case errors.Is(err, repository.ErrOrderNotFound):
			http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
		case errors.Is(err, repository.ErrInvalidStatusTransition):
			http.Error(w, http.StatusText(http.StatusConflict), http.StatusConflict)
		default:
			h.logger.Error("update order status error", zap.Error(err), zap.Int64("orderID", orderID))
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		}
		return
	}

	h.writeJSON(w, http.StatusOK, toOrderResponse(*order))
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.logger.Error("encode response error", zap.Error(err))
	}
}

func setStreamHeaders(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
}

func writeEvent(w io.Writer, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "data: %s\n\n", data)
	return err
}
