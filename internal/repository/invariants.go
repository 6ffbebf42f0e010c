package repository

import (
	"fmt"

	"github.com/mmeshcher/delivery-settlement/internal/model"
)

// checkAggregate проверяет межстрочные инварианты агрегата перед записью.
func checkAggregate(agg *model.OrderAggregate) error {
	order := agg.Order

	if order.Total.LessThan(order.DiscountTotal) {
		return fmt.Errorf("%w: total %s is below discount %s", model.ErrValidation, order.Total, order.DiscountTotal)
	}
	if (order.InstallmentCount == nil) != (order.InstallmentAmount == nil) {
		return fmt.Errorf("%w: installment count and amount must be set together", model.ErrValidation)
	}

	if paid, payable := agg.PaidTotal(), agg.Payable(); paid.GreaterThan(payable) {
		return fmt.Errorf("%w: paid %s, payable %s", model.ErrBalanceExceeded, paid, payable)
	}

	if len(agg.Installments) > 0 {
		if order.InstallmentCount == nil || len(agg.Installments) != *order.InstallmentCount {
			return fmt.Errorf("%w: installment count mismatch for order %s", model.ErrValidation, order.ID)
		}
	}
	seen := make(map[int]bool, len(agg.Installments))
	for _, inst := range agg.Installments {
		if seen[inst.Sequence] {
			return fmt.Errorf("%w: duplicate installment %d", model.ErrValidation, inst.Sequence)
		}
		seen[inst.Sequence] = true
		if (inst.Status == model.InstallmentStatusPaid) != (inst.PaymentDate != nil) {
			return fmt.Errorf("%w: installment %d", model.ErrPaymentDateRequired, inst.Sequence)
		}
	}

	settled := make(map[int]bool)
	for _, p := range agg.Payments {
		if p.Status != model.PaymentStatusPaid || p.InstallmentSequence == nil {
			continue
		}
		if settled[*p.InstallmentSequence] {
			return fmt.Errorf("%w: installment %d", model.ErrAlreadySettled, *p.InstallmentSequence)
		}
		settled[*p.InstallmentSequence] = true
	}
	return nil
}
