package handler

import (
	"fmt"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mmeshcher/delivery-settlement/internal/model"
)

// GetDeliveryCost рассчитывает стоимость доставки в зону.
// Параметры: distance_km (обязательный) и at в RFC 3339 (по умолчанию текущий момент).
func (h *Handler) GetDeliveryCost(w http.ResponseWriter, r *http.Request) {
	zoneID, err := int64Param(r, "zoneID")
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	q := r.URL.Query()
	distance, err := decimal.NewFromString(q.Get("distance_km"))
	if err != nil {
		h.handleError(w, r, fmt.Errorf("%w: invalid distance_km", model.ErrValidation))
		return
	}

	var when time.Time
	if at := q.Get("at"); at != "" {
		when, err = time.Parse(time.RFC3339, at)
		if err != nil {
			h.handleError(w, r, fmt.Errorf("%w: invalid at", model.ErrValidation))
			return
		}
	}

	quote, err := h.service.ResolveDeliveryCost(r.Context(), zoneID, distance, when)
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, newQuoteResponse(quote))
}

type tierRequest struct {
	DistanceFrom      decimal.Decimal `json:"distance_from" validate:"nonnegative"`
	DistanceTo        decimal.Decimal `json:"distance_to" validate:"nonnegative"`
	Cost              decimal.Decimal `json:"cost" validate:"money"`
	TimeOffsetMinutes int             `json:"time_offset_minutes"`
}

type zoneRequest struct {
	Name               string          `json:"name" validate:"required,max=255"`
	CoverageKm         decimal.Decimal `json:"coverage_km" validate:"nonnegative"`
	MinDeliveryMinutes int             `json:"min_delivery_minutes" validate:"min=0"`
	MaxDeliveryMinutes int             `json:"max_delivery_minutes" validate:"min=0"`
	Active             bool            `json:"active"`
	Tiers              []tierRequest   `json:"tiers" validate:"required,min=1,dive"`
}

// ConfigureZone создаёт или заменяет зону доставки вместе с диапазонами.
func (h *Handler) ConfigureZone(w http.ResponseWriter, r *http.Request) {
	zoneID, err := int64Param(r, "zoneID")
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	var req zoneRequest
	if err := h.decode(r, &req); err != nil {
		h.handleError(w, r, err)
		return
	}

	zone := model.DeliveryZone{
		ID:                 zoneID,
		Name:               req.Name,
		CoverageKm:         req.CoverageKm,
		MinDeliveryMinutes: req.MinDeliveryMinutes,
		MaxDeliveryMinutes: req.MaxDeliveryMinutes,
		Active:             req.Active,
	}
	tiers := make([]model.DistanceTier, 0, len(req.Tiers))
	for _, t := range req.Tiers {
		tiers = append(tiers, model.DistanceTier{
			ZoneID:            zoneID,
			DistanceFrom:      t.DistanceFrom,
			DistanceTo:        t.DistanceTo,
			Cost:              t.Cost,
			TimeOffsetMinutes: t.TimeOffsetMinutes,
		})
	}

	if err := h.service.ConfigureZone(r.Context(), zone, tiers); err != nil {
		h.handleError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

type exceptionRequest struct {
	Date              string           `json:"date" validate:"required,datetime=2006-01-02"`
	Type              string           `json:"type" validate:"required"`
	SpecialCost       *decimal.Decimal `json:"special_cost" validate:"omitempty,money"`
	TimeOffsetMinutes *int             `json:"time_offset_minutes"`
	StartMinute       *int             `json:"start_minute"`
	EndMinute         *int             `json:"end_minute"`
	Reason            string           `json:"reason" validate:"max=255"`
}

// AddZoneException сохраняет календарное исключение зоны.
func (h *Handler) AddZoneException(w http.ResponseWriter, r *http.Request) {
	zoneID, err := int64Param(r, "zoneID")
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	var req exceptionRequest
	if err := h.decode(r, &req); err != nil {
		h.handleError(w, r, err)
		return
	}

	date, err := time.Parse(time.DateOnly, req.Date)
	if err != nil {
		h.handleError(w, r, fmt.Errorf("%w: invalid date", model.ErrValidation))
		return
	}

	exc, err := h.service.AddZoneException(r.Context(), model.ZoneException{
		ZoneID:            zoneID,
		Date:              date,
		Type:              model.ExceptionType(req.Type),
		SpecialCost:       req.SpecialCost,
		TimeOffsetMinutes: req.TimeOffsetMinutes,
		StartMinute:       req.StartMinute,
		EndMinute:         req.EndMinute,
		Reason:            req.Reason,
	})
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, newExceptionResponse(*exc))
}

type paymentMethodRequest struct {
	Type                 string           `json:"type" validate:"required"`
	Label                string           `json:"label" validate:"required,max=255"`
	CommissionPercent    decimal.Decimal  `json:"commission_percent" validate:"nonnegative"`
	FixedCommission      decimal.Decimal  `json:"fixed_commission" validate:"money"`
	MinAmount            *decimal.Decimal `json:"min_amount" validate:"omitempty,money"`
	MaxAmount            *decimal.Decimal `json:"max_amount" validate:"omitempty,money"`
	SupportsInstallments bool             `json:"supports_installments"`
	MaxInstallments      *int             `json:"max_installments" validate:"omitempty,min=1"`
	Active               bool             `json:"active"`
}

// ConfigurePaymentMethod создаёт или заменяет способ оплаты.
func (h *Handler) ConfigurePaymentMethod(w http.ResponseWriter, r *http.Request) {
	methodID, err := int64Param(r, "methodID")
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	var req paymentMethodRequest
	if err := h.decode(r, &req); err != nil {
		h.handleError(w, r, err)
		return
	}

	err = h.service.ConfigurePaymentMethod(r.Context(), model.PaymentMethod{
		ID:                   methodID,
		Type:                 model.PaymentType(req.Type),
		Label:                req.Label,
		CommissionPercent:    req.CommissionPercent,
		FixedCommission:      req.FixedCommission,
		MinAmount:            req.MinAmount,
		MaxAmount:            req.MaxAmount,
		SupportsInstallments: req.SupportsInstallments,
		MaxInstallments:      req.MaxInstallments,
		Active:               req.Active,
	})
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
