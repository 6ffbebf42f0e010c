package handler

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/mmeshcher/delivery-settlement/internal/installment"
	"github.com/mmeshcher/delivery-settlement/internal/middleware"
	"github.com/mmeshcher/delivery-settlement/internal/model"
	"github.com/mmeshcher/delivery-settlement/internal/orderflow"
	"github.com/mmeshcher/delivery-settlement/internal/reconcile"
	"github.com/mmeshcher/delivery-settlement/internal/service"
)

type createOrderRequest struct {
	PaymentType      string           `json:"payment_type" validate:"required"`
	Currency         string           `json:"currency" validate:"required,len=3,alpha"`
	ItemsTotal       decimal.Decimal  `json:"items_total" validate:"money"`
	DiscountTotal    decimal.Decimal  `json:"discount_total" validate:"money"`
	ZoneID           int64            `json:"zone_id" validate:"required"`
	AddressID        int64            `json:"address_id" validate:"omitempty,min=1"`
	DistanceKm       *decimal.Decimal `json:"distance_km" validate:"omitempty,nonnegative"`
	InstallmentCount *int             `json:"installment_count" validate:"omitempty,min=1"`
}

// CreateOrder создаёт заказ текущего владельца.
func (h *Handler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := middleware.GetOwnerIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	var req createOrderRequest
	if err := h.decode(r, &req); err != nil {
		h.handleError(w, r, err)
		return
	}

	order, err := h.service.CreateOrder(r.Context(), ownerID, service.CreateOrderInput{
		PaymentType:      model.PaymentType(req.PaymentType),
		Currency:         req.Currency,
		ItemsTotal:       req.ItemsTotal,
		DiscountTotal:    req.DiscountTotal,
		ZoneID:           req.ZoneID,
		AddressID:        req.AddressID,
		DistanceKm:       req.DistanceKm,
		InstallmentCount: req.InstallmentCount,
	})
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, newOrderResponse(*order))
}

// GetOrder возвращает заказ с графиком рассрочки и платежами.
func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	agg, err := h.ownedOrder(r)
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, newOrderDetailsResponse(agg))
}

// GetBalance возвращает сумму к оплате и остаток по заказу.
func (h *Handler) GetBalance(w http.ResponseWriter, r *http.Request) {
	agg, err := h.ownedOrder(r)
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	balance, err := h.service.GetBalance(r.Context(), agg.Order.ID)
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, newBalanceResponse(balance))
}

type transitionOrderRequest struct {
	Status           string                            `json:"status" validate:"required"`
	TrackingCode     model.Optional[*string]           `json:"tracking_code"`
	PaymentType      model.Optional[model.PaymentType] `json:"payment_type"`
	InstallmentCount model.Optional[*int]              `json:"installment_count"`
	Currency         model.Optional[string]            `json:"currency"`
}

// TransitionOrder переводит заказ в новый статус.
func (h *Handler) TransitionOrder(w http.ResponseWriter, r *http.Request) {
	agg, err := h.ownedOrder(r)
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	var req transitionOrderRequest
	if err := h.decode(r, &req); err != nil {
		h.handleError(w, r, err)
		return
	}

	order, err := h.service.TransitionOrder(r.Context(), agg.Order.ID, model.OrderStatus(req.Status), orderflow.Patch{
		TrackingCode:     req.TrackingCode,
		PaymentType:      req.PaymentType,
		InstallmentCount: req.InstallmentCount,
		Currency:         req.Currency,
	})
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, newOrderResponse(*order))
}

type recordPaymentRequest struct {
	MethodID            int64           `json:"method_id" validate:"required"`
	Amount              decimal.Decimal `json:"amount" validate:"positive_money"`
	InstallmentSequence *int            `json:"installment_sequence" validate:"omitempty,min=1"`
	Status              string          `json:"status" validate:"omitempty,oneof=pending paid failed"`
	PaymentDate         *time.Time      `json:"payment_date"`
	Reference           string          `json:"reference" validate:"max=128"`
	Currency            string          `json:"currency" validate:"omitempty,len=3,alpha"`
	IdempotencyKey      string          `json:"idempotency_key" validate:"max=128"`
}

// RecordPayment регистрирует платёж по заказу. Ключ идемпотентности
// принимается из заголовка Idempotency-Key или из тела запроса.
func (h *Handler) RecordPayment(w http.ResponseWriter, r *http.Request) {
	agg, err := h.ownedOrder(r)
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	var req recordPaymentRequest
	if err := h.decode(r, &req); err != nil {
		h.handleError(w, r, err)
		return
	}
	if key := r.Header.Get("Idempotency-Key"); key != "" {
		req.IdempotencyKey = key
	}

	payment, err := h.service.RecordPayment(r.Context(), agg.Order.ID, reconcile.Input{
		MethodID:            req.MethodID,
		Amount:              req.Amount,
		InstallmentSequence: req.InstallmentSequence,
		Status:              model.PaymentStatus(req.Status),
		PaymentDate:         req.PaymentDate,
		Reference:           req.Reference,
		Currency:            req.Currency,
		IdempotencyKey:      req.IdempotencyKey,
	})
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, newPaymentResponse(*payment))
}

type transitionPaymentRequest struct {
	Status      string     `json:"status" validate:"required"`
	PaymentDate *time.Time `json:"payment_date"`
}

// TransitionPayment переводит платёж в новый статус. Маршрут оператора, владелец заказа не проверяется.
func (h *Handler) TransitionPayment(w http.ResponseWriter, r *http.Request) {
	var req transitionPaymentRequest
	if err := h.decode(r, &req); err != nil {
		h.handleError(w, r, err)
		return
	}

	payment, err := h.service.TransitionPayment(r.Context(), chi.URLParam(r, "orderID"), chi.URLParam(r, "paymentID"),
		model.PaymentStatus(req.Status), req.PaymentDate)
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, newPaymentResponse(*payment))
}

type transitionInstallmentRequest struct {
	Status      string                          `json:"status" validate:"required"`
	PaymentDate model.Optional[*time.Time]      `json:"payment_date"`
	Penalty     model.Optional[decimal.Decimal] `json:"penalty"`
}

// TransitionInstallment выполняет административный переход платежа графика.
func (h *Handler) TransitionInstallment(w http.ResponseWriter, r *http.Request) {
	seq, err := strconv.Atoi(chi.URLParam(r, "seq"))
	if err != nil || seq < 1 {
		h.handleError(w, r, fmt.Errorf("%w: invalid installment sequence", model.ErrValidation))
		return
	}

	var req transitionInstallmentRequest
	if err := h.decode(r, &req); err != nil {
		h.handleError(w, r, err)
		return
	}

	inst, err := h.service.TransitionInstallment(r.Context(), chi.URLParam(r, "orderID"), seq, model.InstallmentStatus(req.Status),
		installment.Change{PaymentDate: req.PaymentDate, Penalty: req.Penalty})
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, newInstallmentResponse(*inst))
}
