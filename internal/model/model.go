// Package model содержит доменные сущности сервиса расчётов по заказам доставки.
package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// PaymentType описывает способ оплаты, выбранный для заказа.
type PaymentType string

const (
	PaymentTypeCash           PaymentType = "cash"
	PaymentTypeCredit         PaymentType = "credit"
	PaymentTypeTransfer       PaymentType = "transfer"
	PaymentTypeCard           PaymentType = "card"
	PaymentTypeWalletA        PaymentType = "wallet_a"
	PaymentTypeWalletB        PaymentType = "wallet_b"
	PaymentTypeExternalWallet PaymentType = "external_wallet"
)

// Valid сообщает, входит ли тип оплаты в поддерживаемый набор.
func (t PaymentType) Valid() bool {
	switch t {
	case PaymentTypeCash, PaymentTypeCredit, PaymentTypeTransfer, PaymentTypeCard,
		PaymentTypeWalletA, PaymentTypeWalletB, PaymentTypeExternalWallet:
		return true
	}
	return false
}

// OrderStatus описывает статус жизненного цикла заказа.
type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusApproved  OrderStatus = "approved"
	OrderStatusRejected  OrderStatus = "rejected"
	OrderStatusInProcess OrderStatus = "in_process"
	OrderStatusShipped   OrderStatus = "shipped"
	OrderStatusDelivered OrderStatus = "delivered"
	OrderStatusCancelled OrderStatus = "cancelled"
	OrderStatusReturned  OrderStatus = "returned"
)

// Terminal сообщает, является ли статус конечным для реквизитов заказа.
func (s OrderStatus) Terminal() bool {
	switch s {
	case OrderStatusDelivered, OrderStatusCancelled, OrderStatusReturned, OrderStatusRejected:
		return true
	}
	return false
}

// Order описывает покупку клиента с реквизитами оплаты и доставки.
type Order struct {
	ID                 string
	OwnerID            int64
	PaymentType        PaymentType
	Currency           string
	Status             OrderStatus
	ItemsTotal         decimal.Decimal
	Total              decimal.Decimal
	DeliveryCost       decimal.Decimal
	DiscountTotal      decimal.Decimal
	ZoneID             int64
	AddressID          int64
	DistanceKm         decimal.Decimal
	EtaMinutes         int
	InstallmentCount   *int
	InstallmentAmount  *decimal.Decimal
	TotalInterest      *decimal.Decimal
	AnnualInterestRate *decimal.Decimal
	TrackingCode       *string
	Version            int64
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// InstallmentStatus описывает состояние отдельного платежа по рассрочке.
type InstallmentStatus string

const (
	InstallmentStatusPending InstallmentStatus = "pending"
	InstallmentStatusOverdue InstallmentStatus = "overdue"
	InstallmentStatusPaid    InstallmentStatus = "paid"
	InstallmentStatusWaived  InstallmentStatus = "waived"
)

// Installment описывает один плановый платёж по кредитному заказу.
type Installment struct {
	OrderID     string
	Sequence    int
	Amount      decimal.Decimal
	Interest    decimal.Decimal
	Penalty     decimal.Decimal
	DueDate     time.Time
	PaymentDate *time.Time
	Status      InstallmentStatus
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// AmountDue возвращает сумму к оплате с учётом начисленного штрафа.
func (i Installment) AmountDue() decimal.Decimal {
	return RoundMoney(i.Amount.Add(i.Penalty))
}

// PaymentStatus описывает состояние записи о движении денег.
type PaymentStatus string

const (
	PaymentStatusPending PaymentStatus = "pending"
	PaymentStatusPaid    PaymentStatus = "paid"
	PaymentStatusOverdue PaymentStatus = "overdue"
	PaymentStatusFailed  PaymentStatus = "failed"
)

// Payment описывает платёж по заказу.
type Payment struct {
	ID                  string
	OrderID             string
	MethodID            int64
	Amount              decimal.Decimal
	Commission          decimal.Decimal
	InstallmentSequence *int
	PaymentDate         *time.Time
	Status              PaymentStatus
	MethodLabel         string
	Reference           string
	Currency            string
	IdempotencyKey      string
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// PaymentMethod описывает настроенный канал приёма оплаты.
type PaymentMethod struct {
	ID                   int64
	Type                 PaymentType
	Label                string
	CommissionPercent    decimal.Decimal
	FixedCommission      decimal.Decimal
	MinAmount            *decimal.Decimal
	MaxAmount            *decimal.Decimal
	SupportsInstallments bool
	MaxInstallments      *int
	Active               bool
}

// DeliveryZone описывает зону доставки и её базовое окно времени доставки.
type DeliveryZone struct {
	ID                 int64
	Name               string
	CoverageKm         decimal.Decimal
	MinDeliveryMinutes int
	MaxDeliveryMinutes int
	Active             bool
}

// DistanceTier описывает диапазон расстояний с фиксированной стоимостью доставки.
type DistanceTier struct {
	ID                int64
	ZoneID            int64
	DistanceFrom      decimal.Decimal
	DistanceTo        decimal.Decimal
	Cost              decimal.Decimal
	TimeOffsetMinutes int
}

// ExceptionType описывает вид календарного исключения зоны.
type ExceptionType string

const (
	ExceptionUnavailable  ExceptionType = "unavailable"
	ExceptionSpecialCost  ExceptionType = "special_cost"
	ExceptionSpecialTime  ExceptionType = "special_time"
	ExceptionSpecialHours ExceptionType = "special_hours"
)

// ZoneException переопределяет работу зоны на конкретную дату.
// StartMinute и EndMinute задают окно [start, end) в минутах от полуночи.
type ZoneException struct {
	ID                int64
	ZoneID            int64
	Date              time.Time
	Type              ExceptionType
	SpecialCost       *decimal.Decimal
	TimeOffsetMinutes *int
	StartMinute       *int
	EndMinute         *int
	Reason            string
}

// OrderAggregate объединяет заказ с его графиком рассрочки и платежами.
type OrderAggregate struct {
	Order        Order
	Installments []Installment
	Payments     []Payment
}

// UpdateAggregateFn изменяет агрегат заказа в рамках одной единицы работы.
type UpdateAggregateFn func(agg *OrderAggregate) error

// Installment возвращает указатель на платёж графика с указанным номером.
func (a *OrderAggregate) Installment(seq int) *Installment {
	for i := range a.Installments {
		if a.Installments[i].Sequence == seq {
			return &a.Installments[i]
		}
	}
	return nil
}

// Payment возвращает указатель на платёж с указанным идентификатором.
func (a *OrderAggregate) Payment(id string) *Payment {
	for i := range a.Payments {
		if a.Payments[i].ID == id {
			return &a.Payments[i]
		}
	}
	return nil
}

// PaidTotal возвращает сумму подтверждённых платежей.
func (a *OrderAggregate) PaidTotal() decimal.Decimal {
	sum := decimal.Zero
	for _, p := range a.Payments {
		if p.Status == PaymentStatusPaid {
			sum = sum.Add(p.Amount)
		}
	}
	return RoundMoney(sum)
}

// Payable возвращает полную сумму к оплате: итог заказа, проценты и штрафы.
func (a *OrderAggregate) Payable() decimal.Decimal {
	sum := a.Order.Total
	if a.Order.TotalInterest != nil {
		sum = sum.Add(*a.Order.TotalInterest)
	}
	for _, inst := range a.Installments {
		sum = sum.Add(inst.Penalty)
	}
	return RoundMoney(sum)
}

// Outstanding возвращает непогашенный остаток по заказу.
func (a *OrderAggregate) Outstanding() decimal.Decimal {
	return a.Payable().Sub(a.PaidTotal())
}

// Clone возвращает глубокую копию агрегата.
func (a *OrderAggregate) Clone() *OrderAggregate {
	c := &OrderAggregate{Order: cloneOrder(a.Order)}
	c.Installments = make([]Installment, len(a.Installments))
	for i, inst := range a.Installments {
		inst.PaymentDate = cloneTime(inst.PaymentDate)
		c.Installments[i] = inst
	}
	c.Payments = make([]Payment, len(a.Payments))
	for i, p := range a.Payments {
		p.InstallmentSequence = cloneInt(p.InstallmentSequence)
		p.PaymentDate = cloneTime(p.PaymentDate)
		c.Payments[i] = p
	}
	return c
}

func cloneOrder(o Order) Order {
	o.InstallmentCount = cloneInt(o.InstallmentCount)
	o.InstallmentAmount = cloneDecimal(o.InstallmentAmount)
	o.TotalInterest = cloneDecimal(o.TotalInterest)
	o.AnnualInterestRate = cloneDecimal(o.AnnualInterestRate)
	if o.TrackingCode != nil {
		v := *o.TrackingCode
		o.TrackingCode = &v
	}
	return o
}

func cloneInt(v *int) *int {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

func cloneTime(v *time.Time) *time.Time {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

func cloneDecimal(v *decimal.Decimal) *decimal.Decimal {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}
