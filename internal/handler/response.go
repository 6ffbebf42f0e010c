package handler

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/mmeshcher/delivery-settlement/internal/model"
	"github.com/mmeshcher/delivery-settlement/internal/pricing"
	"github.com/mmeshcher/delivery-settlement/internal/service"
)

func money(d decimal.Decimal) string {
	return d.StringFixed(2)
}

func optMoney(d *decimal.Decimal) *string {
	if d == nil {
		return nil
	}
	s := money(*d)
	return &s
}

func dateString(t time.Time) string {
	return t.Format(time.DateOnly)
}

type orderResponse struct {
	ID                 string  `json:"id"`
	Status             string  `json:"status"`
	PaymentType        string  `json:"payment_type"`
	Currency           string  `json:"currency"`
	ItemsTotal         string  `json:"items_total"`
	DeliveryCost       string  `json:"delivery_cost"`
	DiscountTotal      string  `json:"discount_total"`
	Total              string  `json:"total"`
	ZoneID             int64   `json:"zone_id"`
	AddressID          int64   `json:"address_id,omitempty"`
	DistanceKm         string  `json:"distance_km"`
	EtaMinutes         int     `json:"eta_minutes"`
	InstallmentCount   *int    `json:"installment_count,omitempty"`
	InstallmentAmount  *string `json:"installment_amount,omitempty"`
	TotalInterest      *string `json:"total_interest,omitempty"`
	AnnualInterestRate *string `json:"annual_interest_rate,omitempty"`
	TrackingCode       *string `json:"tracking_code,omitempty"`
	CreatedAt          string  `json:"created_at"`
	UpdatedAt          string  `json:"updated_at"`
}

func newOrderResponse(o model.Order) orderResponse {
	var rate *string
	if o.AnnualInterestRate != nil {
		s := o.AnnualInterestRate.String()
		rate = &s
	}
	return orderResponse{
		ID:                 o.ID,
		Status:             string(o.Status),
		PaymentType:        string(o.PaymentType),
		Currency:           o.Currency,
		ItemsTotal:         money(o.ItemsTotal),
		DeliveryCost:       money(o.DeliveryCost),
		DiscountTotal:      money(o.DiscountTotal),
		Total:              money(o.Total),
		ZoneID:             o.ZoneID,
		AddressID:          o.AddressID,
		DistanceKm:         money(o.DistanceKm),
		EtaMinutes:         o.EtaMinutes,
		InstallmentCount:   o.InstallmentCount,
		InstallmentAmount:  optMoney(o.InstallmentAmount),
		TotalInterest:      optMoney(o.TotalInterest),
		AnnualInterestRate: rate,
		TrackingCode:       o.TrackingCode,
		CreatedAt:          o.CreatedAt.Format(time.RFC3339),
		UpdatedAt:          o.UpdatedAt.Format(time.RFC3339),
	}
}

type installmentResponse struct {
	Sequence    int     `json:"sequence"`
	Amount      string  `json:"amount"`
	Interest    string  `json:"interest"`
	Penalty     string  `json:"penalty"`
	AmountDue   string  `json:"amount_due"`
	DueDate     string  `json:"due_date"`
	PaymentDate *string `json:"payment_date,omitempty"`
	Status      string  `json:"status"`
}

func newInstallmentResponse(i model.Installment) installmentResponse {
	var paid *string
	if i.PaymentDate != nil {
		s := i.PaymentDate.Format(time.RFC3339)
		paid = &s
	}
	return installmentResponse{
		Sequence:    i.Sequence,
		Amount:      money(i.Amount),
		Interest:    money(i.Interest),
		Penalty:     money(i.Penalty),
		AmountDue:   money(i.AmountDue()),
		DueDate:     dateString(i.DueDate),
		PaymentDate: paid,
		Status:      string(i.Status),
	}
}

type paymentResponse struct {
	ID                  string  `json:"id"`
	MethodID            int64   `json:"method_id"`
	MethodLabel         string  `json:"method_label,omitempty"`
	Amount              string  `json:"amount"`
	Commission          string  `json:"commission"`
	Currency            string  `json:"currency"`
	InstallmentSequence *int    `json:"installment_sequence,omitempty"`
	Status              string  `json:"status"`
	PaymentDate         *string `json:"payment_date,omitempty"`
	Reference           string  `json:"reference,omitempty"`
	CreatedAt           string  `json:"created_at"`
}

func newPaymentResponse(p model.Payment) paymentResponse {
	var paid *string
	if p.PaymentDate != nil {
		s := p.PaymentDate.Format(time.RFC3339)
		paid = &s
	}
	return paymentResponse{
		ID:                  p.ID,
		MethodID:            p.MethodID,
		MethodLabel:         p.MethodLabel,
		Amount:              money(p.Amount),
		Commission:          money(p.Commission),
		Currency:            p.Currency,
		InstallmentSequence: p.InstallmentSequence,
		Status:              string(p.Status),
		PaymentDate:         paid,
		Reference:           p.Reference,
		CreatedAt:           p.CreatedAt.Format(time.RFC3339),
	}
}

type orderDetailsResponse struct {
	orderResponse
	Installments []installmentResponse `json:"installments"`
	Payments     []paymentResponse     `json:"payments"`
}

func newOrderDetailsResponse(agg *model.OrderAggregate) orderDetailsResponse {
	resp := orderDetailsResponse{
		orderResponse: newOrderResponse(agg.Order),
		Installments:  make([]installmentResponse, 0, len(agg.Installments)),
		Payments:      make([]paymentResponse, 0, len(agg.Payments)),
	}
	for _, inst := range agg.Installments {
		resp.Installments = append(resp.Installments, newInstallmentResponse(inst))
	}
	for _, p := range agg.Payments {
		resp.Payments = append(resp.Payments, newPaymentResponse(p))
	}
	return resp
}

type balanceResponse struct {
	Payable     string `json:"payable"`
	Paid        string `json:"paid"`
	Outstanding string `json:"outstanding"`
}

func newBalanceResponse(b *service.Balance) balanceResponse {
	return balanceResponse{
		Payable:     money(b.Payable),
		Paid:        money(b.Paid),
		Outstanding: money(b.Outstanding),
	}
}

type quoteResponse struct {
	Cost        string `json:"cost"`
	EtaMinutes  int    `json:"eta_minutes"`
	MinMinutes  int    `json:"min_minutes"`
	TierID      int64  `json:"tier_id"`
	ExceptionID *int64 `json:"exception_id,omitempty"`
}

func newQuoteResponse(q pricing.Quote) quoteResponse {
	return quoteResponse{
		Cost:        money(q.Cost),
		EtaMinutes:  q.EtaMinutes,
		MinMinutes:  q.MinMinutes,
		TierID:      q.TierID,
		ExceptionID: q.ExceptionID,
	}
}

type exceptionResponse struct {
	ID                int64   `json:"id"`
	ZoneID            int64   `json:"zone_id"`
	Date              string  `json:"date"`
	Type              string  `json:"type"`
	SpecialCost       *string `json:"special_cost,omitempty"`
	TimeOffsetMinutes *int    `json:"time_offset_minutes,omitempty"`
	StartMinute       *int    `json:"start_minute,omitempty"`
	EndMinute         *int    `json:"end_minute,omitempty"`
	Reason            string  `json:"reason,omitempty"`
}

func newExceptionResponse(e model.ZoneException) exceptionResponse {
	return exceptionResponse{
		ID:                e.ID,
		ZoneID:            e.ZoneID,
		Date:              dateString(e.Date),
		Type:              string(e.Type),
		SpecialCost:       optMoney(e.SpecialCost),
		TimeOffsetMinutes: e.TimeOffsetMinutes,
		StartMinute:       e.StartMinute,
		EndMinute:         e.EndMinute,
		Reason:            e.Reason,
	}
}
