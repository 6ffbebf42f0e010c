// Package orderflow реализует жизненный цикл заказа: таблицу допустимых переходов,
// обязательность трек-номера и заморозку платёжных реквизитов.
package orderflow

import (
	"fmt"
	"strings"

	"github.com/mmeshcher/delivery-settlement/internal/model"
)

var transitions = map[model.OrderStatus][]model.OrderStatus{
	model.OrderStatusPending:   {model.OrderStatusApproved, model.OrderStatusRejected, model.OrderStatusCancelled},
	model.OrderStatusApproved:  {model.OrderStatusInProcess, model.OrderStatusCancelled},
	model.OrderStatusInProcess: {model.OrderStatusShipped, model.OrderStatusCancelled},
	model.OrderStatusShipped:   {model.OrderStatusDelivered, model.OrderStatusReturned},
	model.OrderStatusDelivered: {model.OrderStatusReturned},
	model.OrderStatusRejected:  {},
	model.OrderStatusCancelled: {},
	model.OrderStatusReturned:  {},
}

// CanTransition сообщает, разрешён ли переход заказа между статусами.
func CanTransition(from, to model.OrderStatus) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Allowed возвращает допустимые целевые статусы.
func Allowed(from model.OrderStatus) []model.OrderStatus {
	res := make([]model.OrderStatus, len(transitions[from]))
	copy(res, transitions[from])
	return res
}

// Patch содержит поля, которые можно передать вместе с переходом.
type Patch struct {
	TrackingCode     model.Optional[*string]
	PaymentType      model.Optional[model.PaymentType]
	InstallmentCount model.Optional[*int]
	Currency         model.Optional[string]
}

// Result описывает последствия перехода для остальных компонентов.
type Result struct {
	Changed              bool
	ScheduleInstallments bool
	RecalculatePlan      bool
}

// Transition переводит заказ в статус target.
// hasInstallments сообщает, создан ли уже график рассрочки.
func Transition(order *model.Order, target model.OrderStatus, patch Patch, hasInstallments bool) (Result, error) {
	if _, ok := transitions[target]; !ok {
		return Result{}, fmt.Errorf("%w: unknown status %q", model.ErrValidation, target)
	}

	next := *order
	changedType := patch.PaymentType.Set && patch.PaymentType.Value != order.PaymentType
	changedCount := patch.InstallmentCount.Set && !sameInt(patch.InstallmentCount.Value, order.InstallmentCount)
	changedCurrency := patch.Currency.Set && patch.Currency.Value != order.Currency
	changedTracking := patch.TrackingCode.Set && !sameString(patch.TrackingCode.Value, order.TrackingCode)

	if (changedType || changedCount || changedCurrency) && order.Status != model.OrderStatusPending {
		return Result{}, fmt.Errorf("%w: payment type, installment count and currency are frozen in %s",
			model.ErrFrozenField, order.Status)
	}

	anyChange := changedType || changedCount || changedCurrency || changedTracking

	if order.Status == target {
		if !anyChange {
			return Result{}, nil
		}
		if order.Status.Terminal() {
			return Result{}, fmt.Errorf("%w: order is %s", model.ErrInvalidTransition, order.Status)
		}
	} else if !CanTransition(order.Status, target) {
		return Result{}, fmt.Errorf("%w: %s -> %s", model.ErrInvalidTransition, order.Status, target)
	}

	if changedTracking {
		next.TrackingCode = normalizeTracking(patch.TrackingCode.Value)
	}
	if requiresTracking(target) && next.TrackingCode == nil {
		return Result{}, fmt.Errorf("%w: order %s", model.ErrMissingTrackingCode, order.ID)
	}

	if changedCurrency {
		cur := strings.ToUpper(strings.TrimSpace(patch.Currency.Value))
		if len(cur) != 3 {
			return Result{}, fmt.Errorf("%w: currency %q", model.ErrValidation, patch.Currency.Value)
		}
		next.Currency = cur
	}

	if changedType {
		if !patch.PaymentType.Value.Valid() {
			return Result{}, fmt.Errorf("%w: payment type %q", model.ErrValidation, patch.PaymentType.Value)
		}
		next.PaymentType = patch.PaymentType.Value
	}
	if changedCount {
		next.InstallmentCount = patch.InstallmentCount.Value
	}

	res := Result{Changed: true}

	if changedType || changedCount {
		if next.PaymentType == model.PaymentTypeCredit {
			if next.InstallmentCount == nil || *next.InstallmentCount < 1 {
				return Result{}, fmt.Errorf("%w: credit order requires installment count", model.ErrValidation)
			}
			res.RecalculatePlan = true
		} else {
			if changedCount && next.InstallmentCount != nil {
				return Result{}, fmt.Errorf("%w: installments are only allowed for credit orders", model.ErrValidation)
			}
			next.InstallmentCount = nil
			next.InstallmentAmount = nil
			next.TotalInterest = nil
			next.AnnualInterestRate = nil
		}
	}

	if target == model.OrderStatusApproved && order.Status != target &&
		next.PaymentType == model.PaymentTypeCredit && !hasInstallments {
		res.ScheduleInstallments = true
	}

	next.Status = target
	*order = next
	return res, nil
}

func requiresTracking(s model.OrderStatus) bool {
	return s == model.OrderStatusShipped || s == model.OrderStatusDelivered || s == model.OrderStatusReturned
}

func normalizeTracking(v *string) *string {
	if v == nil {
		return nil
	}
	s := strings.TrimSpace(*v)
	if s == "" {
		return nil
	}
	return &s
}

func sameInt(a, b *int) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func sameString(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
