package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	"github.com/mmeshcher/printhub-system/internal/middleware"
)

// SetupRouter настраивает маршрутизацию HTTP-запросов сервиса.
func (h *Handler) SetupRouter() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.Logger(h.logger))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(middleware.GzipMiddleware)

	r.Route("/api/user", func(r chi.Router) {
		r.Post("/register", h.Register)
		r.Post("/login", h.Login)

		r.Group(func(r chi.Router) {
			r.Use(h.authMiddleware.Middleware)
			r.Post("/shops/recommend", h.RecommendShops)
			r.Post("/orders", h.CreateOrder)
			r.Get("/orders", h.GetOrders)
			r.Get("/orders/{orderID}", h.GetOrder)
			r.Get("/orders/{orderID}/events", h.StreamOrder)
		})
	})

	r.Route("/api/shop", func(r chi.Router) {
		r.Use(h.authMiddleware.Middleware)
		r.Get("/", h.GetShop)
		r.Post("/availability", h.SetShopAvailability)
		r.Get("/orders", h.GetShopOrders)
		r.Get("/orders/events", h.StreamShopOrders)
		r.Post("/orders/{orderID}/status", h.UpdateOrderStatus)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
	})

	return r
}
