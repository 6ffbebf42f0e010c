// Package handler содержит HTTP-обработчики API сервиса расчётов.
package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/mmeshcher/delivery-settlement/internal/installment"
	"github.com/mmeshcher/delivery-settlement/internal/middleware"
	"github.com/mmeshcher/delivery-settlement/internal/model"
	"github.com/mmeshcher/delivery-settlement/internal/orderflow"
	"github.com/mmeshcher/delivery-settlement/internal/pricing"
	"github.com/mmeshcher/delivery-settlement/internal/reconcile"
	"github.com/mmeshcher/delivery-settlement/internal/service"
	"github.com/mmeshcher/delivery-settlement/internal/validation"
)

// Service определяет контракт бизнес-логики, используемой HTTP-обработчиками.
type Service interface {
	CreateOrder(ctx context.Context, ownerID int64, in service.CreateOrderInput) (*model.Order, error)
	GetOrder(ctx context.Context, orderID string) (*model.OrderAggregate, error)
	GetBalance(ctx context.Context, orderID string) (*service.Balance, error)
	TransitionOrder(ctx context.Context, orderID string, target model.OrderStatus, patch orderflow.Patch) (*model.Order, error)
	RecordPayment(ctx context.Context, orderID string, in reconcile.Input) (*model.Payment, error)
	TransitionPayment(ctx context.Context, orderID, paymentID string, target model.PaymentStatus, paymentDate *time.Time) (*model.Payment, error)
	TransitionInstallment(ctx context.Context, orderID string, seq int, target model.InstallmentStatus,
		change installment.Change) (*model.Installment, error)
	ResolveDeliveryCost(ctx context.Context, zoneID int64, distanceKm decimal.Decimal, when time.Time) (pricing.Quote, error)
	ConfigureZone(ctx context.Context, zone model.DeliveryZone, tiers []model.DistanceTier) error
	AddZoneException(ctx context.Context, exc model.ZoneException) (*model.ZoneException, error)
	ConfigurePaymentMethod(ctx context.Context, m model.PaymentMethod) error
}

// Handler реализует HTTP-обработчики API сервиса расчётов.
type Handler struct {
	service        Service
	logger         *zap.Logger
	authMiddleware *middleware.AuthMiddleware
	validator      *validation.Validator
	allowedOrigins []string
	healthCheck    func(context.Context) error

	// adminMiddleware проверяет токены операторов, подписанные отдельным секретом.
	adminMiddleware *middleware.AuthMiddleware
}

// Option настраивает обработчик.
type Option func(*Handler)

// WithAllowedOrigins задаёт источники, которым разрешены кросс-доменные запросы.
func WithAllowedOrigins(origins []string) Option {
	return func(h *Handler) { h.allowedOrigins = origins }
}

// WithAdminAuth задаёт проверку токенов операторов для маршрутов /api/admin.
// Без неё административные маршруты отклоняют любой токен.
func WithAdminAuth(auth *middleware.AuthMiddleware) Option {
	return func(h *Handler) { h.adminMiddleware = auth }
}

// WithHealthCheck задаёт проверку хранилища для /health. nil отключает проверку.
func WithHealthCheck(check func(context.Context) error) Option {
	return func(h *Handler) { h.healthCheck = check }
}

// NewHandler создаёт новый экземпляр обработчика HTTP-запросов.
func NewHandler(s Service, logger *zap.Logger, auth *middleware.AuthMiddleware, opts ...Option) *Handler {
	h := &Handler{
		service:        s,
		logger:         logger,
		authMiddleware: auth,
		validator:      validation.New(),
	}
	for _, opt := range opts {
		opt(h)
	}
	if h.adminMiddleware == nil {
		h.adminMiddleware = middleware.NewAuthMiddleware("")
	}
	return h
}

var errorStatusMap = map[model.ErrorKind]int{
	model.KindValidation:          http.StatusBadRequest,
	model.KindNotFound:            http.StatusNotFound,
	model.KindInvalidTransition:   http.StatusConflict,
	model.KindConsistency:         http.StatusConflict,
	model.KindConcurrencyConflict: http.StatusConflict,
}

type errorResponse struct {
	Error   string `json:"error"`
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// handleError отвечает статусом по виду ошибки. Ошибки без вида логируются как внутренние.
func (h *Handler) handleError(w http.ResponseWriter, r *http.Request, err error) {
	kind := model.KindOf(err)
	status, ok := errorStatusMap[kind]
	if !ok {
		h.logger.Error("error processing request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, errorResponse{
			Error:   "internal",
			Kind:    "internal",
			Message: http.StatusText(http.StatusInternalServerError),
		})
		return
	}

	writeJSON(w, status, errorResponse{
		Error:   model.CodeOf(err),
		Kind:    string(kind),
		Message: err.Error(),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// decode разбирает тело запроса и проверяет его теги validate.
func (h *Handler) decode(r *http.Request, dst any) error {
	defer r.Body.Close()

	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return fmt.Errorf("%w: decode body: %v", model.ErrValidation, err)
	}
	return h.validator.Struct(r.Context(), dst)
}

// ownedOrder загружает заказ и проверяет, что он принадлежит владельцу токена.
// Чужой заказ неотличим от отсутствующего.
func (h *Handler) ownedOrder(r *http.Request) (*model.OrderAggregate, error) {
	ownerID, _ := middleware.GetOwnerIDFromContext(r.Context())
	orderID := chi.URLParam(r, "orderID")

	agg, err := h.service.GetOrder(r.Context(), orderID)
	if err != nil {
		return nil, err
	}
	if agg.Order.OwnerID != ownerID {
		return nil, fmt.Errorf("%w: %s", model.ErrOrderNotFound, orderID)
	}
	return agg, nil
}

func int64Param(r *http.Request, name string) (int64, error) {
	v, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || v <= 0 {
		return 0, fmt.Errorf("%w: invalid %s", model.ErrValidation, name)
	}
	return v, nil
}

// Health отвечает на проверку живости.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if h.healthCheck != nil {
		if err := h.healthCheck(r.Context()); err != nil {
			h.logger.Warn("health check failed", zap.Error(err))
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
	}
	w.WriteHeader(http.StatusOK)
}
