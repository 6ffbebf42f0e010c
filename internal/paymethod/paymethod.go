// Package paymethod содержит правила способов оплаты: комиссию, лимиты и обязательность
// номера операции.
package paymethod

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/mmeshcher/delivery-settlement/internal/model"
)

var hundred = decimal.NewFromInt(100)

// Commission рассчитывает комиссию: amount * percent / 100 + fixed, не меньше нуля.
func Commission(m model.PaymentMethod, amount decimal.Decimal) decimal.Decimal {
	c := amount.Mul(m.CommissionPercent).Div(hundred).Add(m.FixedCommission)
	c = model.RoundMoney(c)
	if c.IsNegative() {
		return decimal.Zero
	}
	return c
}

// Validate проверяет, что способ оплаты активен и сумма укладывается в его лимиты.
func Validate(m model.PaymentMethod, amount decimal.Decimal) error {
	if !m.Active {
		return fmt.Errorf("%w: method %d", model.ErrMethodInactive, m.ID)
	}
	if m.MinAmount != nil && amount.LessThan(*m.MinAmount) {
		return fmt.Errorf("%w: %s is below minimum %s", model.ErrAmountOutOfRange, amount, *m.MinAmount)
	}
	if m.MaxAmount != nil && amount.GreaterThan(*m.MaxAmount) {
		return fmt.Errorf("%w: %s is above maximum %s", model.ErrAmountOutOfRange, amount, *m.MaxAmount)
	}
	return nil
}

// RequiresReference сообщает, нужен ли номер операции для переводов и кошельков.
func RequiresReference(m model.PaymentMethod) bool {
	switch m.Type {
	case model.PaymentTypeTransfer, model.PaymentTypeWalletA, model.PaymentTypeWalletB, model.PaymentTypeExternalWallet:
		return true
	}
	return false
}

// AllowsInstallments сообщает, принимает ли способ оплаты платежи графика на count взносов.
func AllowsInstallments(m model.PaymentMethod, count int) bool {
	if !m.SupportsInstallments || m.MaxInstallments == nil {
		return false
	}
	return count <= *m.MaxInstallments
}

// CheckConfig проверяет согласованность настроек способа оплаты.
func CheckConfig(m model.PaymentMethod) error {
	if !m.Type.Valid() {
		return fmt.Errorf("%w: unknown type %q", model.ErrMethodMisconfigured, m.Type)
	}
	if m.CommissionPercent.IsNegative() {
		return fmt.Errorf("%w: negative commission percent", model.ErrMethodMisconfigured)
	}
	if m.MinAmount != nil && m.MaxAmount != nil && !m.MaxAmount.GreaterThan(*m.MinAmount) {
		return fmt.Errorf("%w: maximum %s must exceed minimum %s", model.ErrMethodMisconfigured, *m.MaxAmount, *m.MinAmount)
	}
	if m.SupportsInstallments && (m.MaxInstallments == nil || *m.MaxInstallments < 1) {
		return fmt.Errorf("%w: max installments required", model.ErrMethodMisconfigured)
	}
	return nil
}
