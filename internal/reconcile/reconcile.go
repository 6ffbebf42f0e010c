// Package reconcile сверяет платежи с остатком по заказу и графиком рассрочки.
package reconcile

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mmeshcher/delivery-settlement/internal/installment"
	"github.com/mmeshcher/delivery-settlement/internal/model"
	"github.com/mmeshcher/delivery-settlement/internal/paymethod"
)

var transitions = map[model.PaymentStatus][]model.PaymentStatus{
	model.PaymentStatusPending: {model.PaymentStatusPaid, model.PaymentStatusFailed, model.PaymentStatusOverdue},
	model.PaymentStatusOverdue: {model.PaymentStatusPaid, model.PaymentStatusFailed},
	model.PaymentStatusFailed:  {model.PaymentStatusPending, model.PaymentStatusOverdue},
	model.PaymentStatusPaid:    {},
}

// CanTransition сообщает, разрешён ли переход платежа между статусами.
func CanTransition(from, to model.PaymentStatus) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Input описывает новый платёж по заказу.
type Input struct {
	MethodID            int64
	Amount              decimal.Decimal
	InstallmentSequence *int
	Status              model.PaymentStatus
	PaymentDate         *time.Time
	Reference           string
	Currency            string
	IdempotencyKey      string
}

// Record проверяет новый платёж и добавляет его в агрегат.
// При повторе ключа идемпотентности возвращается ранее записанный платёж и changed=false.
// При ошибке агрегат не изменяется.
func Record(agg *model.OrderAggregate, method model.PaymentMethod, id string, in Input,
	policy installment.Policy, now time.Time) (*model.Payment, bool, error) {
	if in.IdempotencyKey != "" {
		for i := range agg.Payments {
			if agg.Payments[i].IdempotencyKey == in.IdempotencyKey {
				return &agg.Payments[i], false, nil
			}
		}
	}

	if !in.Amount.IsPositive() || !model.HasMoneyPrecision(in.Amount) {
		return nil, false, fmt.Errorf("%w: amount %s", model.ErrValidation, in.Amount)
	}
	switch in.Status {
	case "":
		in.Status = model.PaymentStatusPending
	case model.PaymentStatusPending, model.PaymentStatusPaid, model.PaymentStatusFailed:
	default:
		return nil, false, fmt.Errorf("%w: new payment cannot start as %q", model.ErrValidation, in.Status)
	}

	order := agg.Order
	if closed(order.Status) {
		return nil, false, fmt.Errorf("%w: order %s is %s", model.ErrOrderClosed, order.ID, order.Status)
	}

	currency := strings.ToUpper(strings.TrimSpace(in.Currency))
	if currency == "" {
		currency = order.Currency
	}
	if currency != order.Currency {
		return nil, false, fmt.Errorf("%w: %s, order is in %s", model.ErrCurrencyMismatch, currency, order.Currency)
	}

	var inst *model.Installment
	if in.InstallmentSequence != nil {
		if order.PaymentType != model.PaymentTypeCredit {
			return nil, false, fmt.Errorf("%w: order %s", model.ErrNotCreditOrder, order.ID)
		}
		inst = agg.Installment(*in.InstallmentSequence)
		if inst == nil {
			return nil, false, fmt.Errorf("%w: order %s sequence %d", model.ErrInstallmentNotFound, order.ID, *in.InstallmentSequence)
		}
		if settled(agg, inst.Sequence) {
			return nil, false, fmt.Errorf("%w: order %s sequence %d", model.ErrAlreadySettled, order.ID, inst.Sequence)
		}
		if !in.Amount.Equal(inst.AmountDue()) {
			return nil, false, fmt.Errorf("%w: got %s, due %s", model.ErrInstallmentAmountMismatch, in.Amount, inst.AmountDue())
		}
	}

	if limit := paymentLimit(agg, inst != nil); in.Amount.GreaterThan(limit) {
		return nil, false, fmt.Errorf("%w: amount %s, outstanding %s", model.ErrBalanceExceeded, in.Amount, limit)
	}

	if err := checkMethod(order, method, in.Amount, in.Reference, inst != nil); err != nil {
		return nil, false, err
	}

	payment := model.Payment{
		ID:                  id,
		OrderID:             order.ID,
		MethodID:            method.ID,
		Amount:              in.Amount,
		Commission:          paymethod.Commission(method, in.Amount),
		InstallmentSequence: in.InstallmentSequence,
		PaymentDate:         in.PaymentDate,
		Status:              in.Status,
		MethodLabel:         method.Label,
		Reference:           strings.TrimSpace(in.Reference),
		Currency:            currency,
		IdempotencyKey:      in.IdempotencyKey,
		CreatedAt:           now,
		UpdatedAt:           now,
	}

	var settledInst *model.Installment
	if payment.Status == model.PaymentStatusPaid {
		if payment.PaymentDate == nil {
			payment.PaymentDate = &now
		}
		if inst != nil {
			next := *inst
			if _, err := installment.Transition(&next, model.InstallmentStatusPaid,
				installment.Change{PaymentDate: model.Some(payment.PaymentDate)}, policy); err != nil {
				return nil, false, err
			}
			next.UpdatedAt = now
			settledInst = &next
		}
	}

	if settledInst != nil {
		*inst = *settledInst
	}
	agg.Payments = append(agg.Payments, payment)
	return &agg.Payments[len(agg.Payments)-1], true, nil
}

// Advance переводит существующий платёж в статус target.
// Повтор текущего статуса ничего не меняет.
func Advance(agg *model.OrderAggregate, paymentID string, target model.PaymentStatus, paymentDate *time.Time,
	policy installment.Policy, now time.Time) (*model.Payment, bool, error) {
	p := agg.Payment(paymentID)
	if p == nil {
		return nil, false, fmt.Errorf("%w: %s", model.ErrPaymentNotFound, paymentID)
	}
	if _, ok := transitions[target]; !ok {
		return nil, false, fmt.Errorf("%w: unknown payment status %q", model.ErrValidation, target)
	}
	if p.Status == target {
		return p, false, nil
	}
	if !CanTransition(p.Status, target) {
		return nil, false, fmt.Errorf("%w: payment %s %s -> %s", model.ErrInvalidTransition, p.ID, p.Status, target)
	}

	next := *p
	next.Status = target
	next.UpdatedAt = now

	var inst, settledInst *model.Installment
	if target == model.PaymentStatusPaid {
		if closed(agg.Order.Status) {
			return nil, false, fmt.Errorf("%w: order %s is %s", model.ErrOrderClosed, agg.Order.ID, agg.Order.Status)
		}
		if limit := paymentLimit(agg, p.InstallmentSequence != nil); p.Amount.GreaterThan(limit) {
			return nil, false, fmt.Errorf("%w: amount %s, outstanding %s", model.ErrBalanceExceeded, p.Amount, limit)
		}
		if paymentDate != nil {
			next.PaymentDate = paymentDate
		}
		if next.PaymentDate == nil {
			next.PaymentDate = &now
		}
		if p.InstallmentSequence != nil {
			inst = agg.Installment(*p.InstallmentSequence)
			if inst == nil {
				return nil, false, fmt.Errorf("%w: sequence %d", model.ErrInstallmentNotFound, *p.InstallmentSequence)
			}
			if settled(agg, inst.Sequence) {
				return nil, false, fmt.Errorf("%w: sequence %d", model.ErrAlreadySettled, inst.Sequence)
			}
			if !p.Amount.Equal(inst.AmountDue()) && !staleOverdue(*p, *inst) {
				return nil, false, fmt.Errorf("%w: got %s, due %s", model.ErrInstallmentAmountMismatch, p.Amount, inst.AmountDue())
			}
			c := *inst
			if _, err := installment.Transition(&c, model.InstallmentStatusPaid,
				installment.Change{PaymentDate: model.Some(next.PaymentDate)}, policy); err != nil {
				return nil, false, err
			}
			c.UpdatedAt = now
			settledInst = &c
		}
	}

	if settledInst != nil {
		*inst = *settledInst
	}
	*p = next
	return p, true, nil
}

// paymentLimit возвращает максимальную сумму нового подтверждённого платежа.
// Платёж графика ограничен полным остатком. Платёж вне графика на заказе без графика
// ограничен итогом заказа за вычетом оплаченного, а на заказе с графиком покрывает только
// то, что не входит в непогашенные платежи графика (штрафы, оставшиеся после их погашения).
func paymentLimit(agg *model.OrderAggregate, forInstallment bool) decimal.Decimal {
	outstanding := agg.Outstanding()
	if forInstallment {
		return outstanding
	}
	if len(agg.Installments) == 0 {
		return decimal.Min(outstanding, agg.Order.Total.Sub(agg.PaidTotal()))
	}

	limit := outstanding
	for _, inst := range agg.Installments {
		if inst.Status != model.InstallmentStatusPaid {
			limit = limit.Sub(inst.AmountDue())
		}
	}
	return limit
}

// staleOverdue сообщает, что платёж графика записан до начисления штрафа и покрывает
// плановую сумму. Штраф в этом случае остаётся в остатке заказа и оплачивается отдельно.
func staleOverdue(p model.Payment, inst model.Installment) bool {
	return p.Status == model.PaymentStatusOverdue &&
		inst.Penalty.IsPositive() &&
		p.Amount.Equal(model.RoundMoney(inst.Amount))
}

func checkMethod(order model.Order, method model.PaymentMethod, amount decimal.Decimal, reference string, forInstallment bool) error {
	if err := paymethod.CheckConfig(method); err != nil {
		return err
	}
	if err := paymethod.Validate(method, amount); err != nil {
		return err
	}
	if paymethod.RequiresReference(method) && strings.TrimSpace(reference) == "" {
		return fmt.Errorf("%w: method %s", model.ErrReferenceRequired, method.Label)
	}
	if forInstallment {
		count := 0
		if order.InstallmentCount != nil {
			count = *order.InstallmentCount
		}
		if !paymethod.AllowsInstallments(method, count) {
			return fmt.Errorf("%w: method %s, %d installments", model.ErrInstallmentsNotSupported, method.Label, count)
		}
	}
	return nil
}

// settled сообщает, погашен ли платёж графика seq.
func settled(agg *model.OrderAggregate, seq int) bool {
	if inst := agg.Installment(seq); inst != nil && inst.Status == model.InstallmentStatusPaid {
		return true
	}
	for _, p := range agg.Payments {
		if p.Status == model.PaymentStatusPaid && p.InstallmentSequence != nil && *p.InstallmentSequence == seq {
			return true
		}
	}
	return false
}

func closed(s model.OrderStatus) bool {
	return s == model.OrderStatusRejected || s == model.OrderStatusCancelled || s == model.OrderStatusReturned
}
