package paymethod

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/mmeshcher/delivery-settlement/internal/model"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestCommission(t *testing.T) {
	tests := []struct {
		name    string
		percent string
		fixed   string
		amount  string
		want    string
	}{
		{name: "percent and fixed", percent: "2.5", fixed: "0.30", amount: "100", want: "2.80"},
		{name: "rounded half up", percent: "1.5", fixed: "0", amount: "10.33", want: "0.15"},
		{name: "zero commission", percent: "0", fixed: "0", amount: "500", want: "0.00"},
		{name: "negative clamps to zero", percent: "0", fixed: "-5", amount: "10", want: "0.00"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := model.PaymentMethod{CommissionPercent: dec(tt.percent), FixedCommission: dec(tt.fixed)}
			got := Commission(m, dec(tt.amount))
			assert.Equal(t, tt.want, got.StringFixed(2))
		})
	}
}

func TestValidate(t *testing.T) {
	m := model.PaymentMethod{
		ID:        1,
		Type:      model.PaymentTypeCard,
		MinAmount: model.Ptr(dec("10")),
		MaxAmount: model.Ptr(dec("1000")),
		Active:    true,
	}

	assert.NoError(t, Validate(m, dec("10")))
	assert.NoError(t, Validate(m, dec("1000")))
	assert.ErrorIs(t, Validate(m, dec("9.99")), model.ErrAmountOutOfRange)
	assert.ErrorIs(t, Validate(m, dec("1000.01")), model.ErrAmountOutOfRange)

	noMax := m
	noMax.MaxAmount = nil
	assert.NoError(t, Validate(noMax, dec("1000000")))

	inactive := m
	inactive.Active = false
	assert.ErrorIs(t, Validate(inactive, dec("50")), model.ErrMethodInactive)
}

func TestRequiresReference(t *testing.T) {
	want := map[model.PaymentType]bool{
		model.PaymentTypeCash:           false,
		model.PaymentTypeCredit:         false,
		model.PaymentTypeCard:           false,
		model.PaymentTypeTransfer:       true,
		model.PaymentTypeWalletA:        true,
		model.PaymentTypeWalletB:        true,
		model.PaymentTypeExternalWallet: true,
	}
	for typ, required := range want {
		assert.Equal(t, required, RequiresReference(model.PaymentMethod{Type: typ}), typ)
	}
}

func TestCheckConfig(t *testing.T) {
	valid := model.PaymentMethod{
		Type:                 model.PaymentTypeCard,
		MinAmount:            model.Ptr(dec("1")),
		MaxAmount:            model.Ptr(dec("100")),
		SupportsInstallments: true,
		MaxInstallments:      model.Ptr(12),
	}
	assert.NoError(t, CheckConfig(valid))
	assert.True(t, AllowsInstallments(valid, 12))
	assert.False(t, AllowsInstallments(valid, 13))

	inverted := valid
	inverted.MaxAmount = model.Ptr(dec("1"))
	assert.ErrorIs(t, CheckConfig(inverted), model.ErrMethodMisconfigured)

	noMaxInstallments := valid
	noMaxInstallments.MaxInstallments = nil
	assert.ErrorIs(t, CheckConfig(noMaxInstallments), model.ErrMethodMisconfigured)
	assert.False(t, AllowsInstallments(noMaxInstallments, 1))

	unknown := valid
	unknown.Type = "barter"
	assert.ErrorIs(t, CheckConfig(unknown), model.ErrMethodMisconfigured)
}
