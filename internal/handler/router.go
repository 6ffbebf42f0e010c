package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"

	custommiddleware "github.com/mmeshcher/delivery-settlement/internal/middleware"
)

// SetupRouter настраивает HTTP-маршруты и middleware сервиса расчётов.
func (h *Handler) SetupRouter() *chi.Mux {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.New(cors.Options{
		AllowedOrigins:   h.allowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut},
		AllowedHeaders:   []string{"Authorization", "Content-Type", "Content-Encoding", "Idempotency-Key"},
		AllowCredentials: true,
	}).Handler)
	r.Use(custommiddleware.DecompressRequest)
	r.Use(chimiddleware.Compress(5, "application/json", "text/plain"))
	r.Use(custommiddleware.Logger(h.logger))

	r.Get("/health", h.Health)

	r.Route("/api", func(r chi.Router) {
		r.Use(h.authMiddleware.Middleware)

		r.Post("/orders", h.CreateOrder)
		r.Route("/orders/{orderID}", func(r chi.Router) {
			r.Get("/", h.GetOrder)
			r.Get("/balance", h.GetBalance)
			r.Post("/transitions", h.TransitionOrder)
			r.Post("/payments", h.RecordPayment)
		})

		r.Get("/zones/{zoneID}/delivery-cost", h.GetDeliveryCost)
	})

	// Подтверждение платежей, операции с графиком и настройка справочников доступны только операторам.
	r.Route("/api/admin", func(r chi.Router) {
		r.Use(h.adminMiddleware.Middleware)

		r.Route("/orders/{orderID}", func(r chi.Router) {
			r.Post("/payments/{paymentID}/transitions", h.TransitionPayment)
			r.Post("/installments/{seq}/transitions", h.TransitionInstallment)
		})

		r.Put("/zones/{zoneID}", h.ConfigureZone)
		r.Post("/zones/{zoneID}/exceptions", h.AddZoneException)
		r.Put("/payment-methods/{methodID}", h.ConfigurePaymentMethod)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
	})

	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
	})

	return r
}
