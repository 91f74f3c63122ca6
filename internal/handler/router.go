package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/redis/go-redis/v9"

	custommiddleware "github.com/modestmuse/museshop/internal/middleware"
)

const (
	apiRateLimit   = 200
	apiRateWindow  = 15 * time.Minute
	chatRateLimit  = 20
	chatRateWindow = time.Minute
)

// SetupRouter wires the HTTP routes and middleware. rdb may be nil; the
// rate limiters then keep their counters in process.
func (h *Handler) SetupRouter(rdb *redis.Client, allowedOrigins []string) *chi.Mux {
	r := chi.NewRouter()

	r.Use(custommiddleware.GzipMiddleware)
	r.Use(custommiddleware.Logger(h.logger))

	if len(allowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   allowedOrigins,
			AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Stripe-Signature"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}

	apiLimit := custommiddleware.NewRateLimiter("api", apiRateLimit, apiRateWindow, rdb, h.logger)
	chatLimit := custommiddleware.NewRateLimiter("chat", chatRateLimit, chatRateWindow, rdb, h.logger)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(apiLimit.Middleware)

		r.Get("/health", h.Health)

		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", h.Register)
			r.Post("/login", h.Login)

			r.Group(func(r chi.Router) {
				r.Use(h.authMiddleware.Middleware)
				r.Get("/me", h.Me)
			})
		})

		r.Route("/orders", func(r chi.Router) {
			r.With(h.authMiddleware.Optional).Post("/", h.CreateOrder)
			r.Post("/track", h.TrackOrder)

			r.Group(func(r chi.Router) {
				r.Use(h.authMiddleware.Middleware)

				r.Get("/my-orders", h.MyOrders)
				r.Get("/{id}", h.GetOrder)

				r.Group(func(r chi.Router) {
					r.Use(custommiddleware.RequireAdmin)

					r.Get("/", h.ListOrders)
					r.Put("/{id}/status", h.UpdateOrderStatus)
				})
			})
		})

		r.Route("/payment", func(r chi.Router) {
			r.With(h.authMiddleware.Optional).Post("/create-intent", h.CreatePaymentIntent)
			r.Post("/webhook", h.Webhook)
			r.Post("/jazzcash", h.JazzCash)
			r.Post("/easypaisa", h.EasyPaisa)
		})

		r.With(chatLimit.Middleware).Post("/chat", h.Chat)

		r.Route("/reviews", func(r chi.Router) {
			r.Use(h.authMiddleware.Middleware)

			r.Post("/", h.CreateReview)
			r.Delete("/{id}", h.DeleteReview)
		})

		r.Route("/products", func(r chi.Router) {
			r.Use(h.authMiddleware.Middleware, custommiddleware.RequireAdmin)

			r.Put("/{id}/stock", h.AdjustStock)
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		h.respondMessage(w, http.StatusNotFound, "route not found")
	})

	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		h.respondMessage(w, http.StatusMethodNotAllowed, "method not allowed")
	})

	return r
}
