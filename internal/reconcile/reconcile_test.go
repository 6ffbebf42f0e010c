package reconcile

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmeshcher/delivery-settlement/internal/installment"
	"github.com/mmeshcher/delivery-settlement/internal/model"
)

var (
	now    = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	policy = installment.Policy{EarlyPaymentWindowDays: installment.DefaultEarlyPaymentWindowDays}
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func card() model.PaymentMethod {
	return model.PaymentMethod{
		ID:                   1,
		Type:                 model.PaymentTypeCard,
		Label:                "Card",
		CommissionPercent:    dec("2.5"),
		FixedCommission:      dec("0.30"),
		SupportsInstallments: true,
		MaxInstallments:      model.Ptr(12),
		Active:               true,
	}
}

func cashOrder(total string) *model.OrderAggregate {
	return &model.OrderAggregate{Order: model.Order{
		ID:          "o-1",
		PaymentType: model.PaymentTypeCash,
		Currency:    "USD",
		Status:      model.OrderStatusApproved,
		Total:       dec(total),
	}}
}

func creditOrder(t *testing.T) *model.OrderAggregate {
	t.Helper()

	order := model.Order{
		ID:               "o-2",
		PaymentType:      model.PaymentTypeCredit,
		Currency:         "USD",
		Status:           model.OrderStatusApproved,
		Total:            dec("1200"),
		InstallmentCount: model.Ptr(12),
		CreatedAt:        time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC),
	}
	items, err := installment.Schedule(order, 12, dec("0.08"))
	require.NoError(t, err)

	plan, err := installment.Preview(order.Total, 12, dec("0.08"))
	require.NoError(t, err)
	order.TotalInterest = &plan.TotalInterest
	order.InstallmentAmount = &plan.InstallmentAmount

	return &model.OrderAggregate{Order: order, Installments: items}
}

func TestRecordFullPaymentThenBalanceExceeded(t *testing.T) {
	agg := cashOrder("500.00")

	p, changed, err := Record(agg, card(), "p-1", Input{Amount: dec("500.00"), Status: model.PaymentStatusPaid}, policy, now)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, model.PaymentStatusPaid, p.Status)
	assert.Equal(t, "12.80", p.Commission.StringFixed(2))
	assert.Equal(t, "USD", p.Currency)
	require.NotNil(t, p.PaymentDate)
	assert.True(t, p.PaymentDate.Equal(now))
	assert.True(t, agg.Outstanding().IsZero())

	for _, amount := range []string{"0.01", "1", "500"} {
		_, _, err = Record(agg, card(), "p-2", Input{Amount: dec(amount), Status: model.PaymentStatusPaid}, policy, now)
		assert.ErrorIs(t, err, model.ErrBalanceExceeded, amount)
		assert.Equal(t, model.KindConsistency, model.KindOf(err))
	}
	assert.Len(t, agg.Payments, 1)
}

func TestRecordPartialPayments(t *testing.T) {
	agg := cashOrder("100.00")

	_, _, err := Record(agg, card(), "p-1", Input{Amount: dec("60"), Status: model.PaymentStatusPaid}, policy, now)
	require.NoError(t, err)

	_, _, err = Record(agg, card(), "p-2", Input{Amount: dec("40.01"), Status: model.PaymentStatusPaid}, policy, now)
	assert.ErrorIs(t, err, model.ErrBalanceExceeded)

	_, _, err = Record(agg, card(), "p-3", Input{Amount: dec("40"), Status: model.PaymentStatusPaid}, policy, now)
	require.NoError(t, err)
	assert.Equal(t, "100.00", agg.PaidTotal().StringFixed(2))
}

func TestRecordValidation(t *testing.T) {
	tests := []struct {
		name   string
		method func() model.PaymentMethod
		in     Input
		status model.OrderStatus
		want   error
	}{
		{
			name:   "non positive amount",
			method: card,
			in:     Input{Amount: decimal.Zero},
			want:   model.ErrValidation,
		},
		{
			name:   "sub-cent amount",
			method: card,
			in:     Input{Amount: dec("1.001")},
			want:   model.ErrValidation,
		},
		{
			name:   "cannot start overdue",
			method: card,
			in:     Input{Amount: dec("10"), Status: model.PaymentStatusOverdue},
			want:   model.ErrValidation,
		},
		{
			name:   "currency mismatch",
			method: card,
			in:     Input{Amount: dec("10"), Currency: "eur"},
			want:   model.ErrCurrencyMismatch,
		},
		{
			name:   "closed order",
			method: card,
			in:     Input{Amount: dec("10")},
			status: model.OrderStatusCancelled,
			want:   model.ErrOrderClosed,
		},
		{
			name: "inactive method",
			method: func() model.PaymentMethod {
				m := card()
				m.Active = false
				return m
			},
			in:   Input{Amount: dec("10")},
			want: model.ErrMethodInactive,
		},
		{
			name: "above maximum",
			method: func() model.PaymentMethod {
				m := card()
				m.MaxAmount = model.Ptr(dec("50"))
				return m
			},
			in:   Input{Amount: dec("60")},
			want: model.ErrAmountOutOfRange,
		},
		{
			name: "transfer without reference",
			method: func() model.PaymentMethod {
				m := card()
				m.Type = model.PaymentTypeTransfer
				return m
			},
			in:   Input{Amount: dec("10"), Reference: "  "},
			want: model.ErrReferenceRequired,
		},
		{
			name:   "installment on cash order",
			method: card,
			in:     Input{Amount: dec("10"), InstallmentSequence: model.Ptr(1)},
			want:   model.ErrNotCreditOrder,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			agg := cashOrder("100")
			if tt.status != "" {
				agg.Order.Status = tt.status
			}
			_, _, err := Record(agg, tt.method(), "p", tt.in, policy, now)
			assert.ErrorIs(t, err, tt.want)
			assert.Empty(t, agg.Payments)
		})
	}
}

func TestRecordDeliveredOrderAcceptsPayment(t *testing.T) {
	agg := cashOrder("100")
	agg.Order.Status = model.OrderStatusDelivered

	m := card()
	m.Type = model.PaymentTypeTransfer
	p, _, err := Record(agg, m, "p", Input{Amount: dec("100"), Reference: " TX-1 ", Status: model.PaymentStatusPending}, policy, now)
	require.NoError(t, err)
	assert.Equal(t, "TX-1", p.Reference)
	assert.Equal(t, model.PaymentStatusPending, p.Status)
	assert.Nil(t, p.PaymentDate)
	assert.True(t, agg.PaidTotal().IsZero())
}

func TestRecordIdempotencyKey(t *testing.T) {
	agg := cashOrder("100")

	first, changed, err := Record(agg, card(), "p-1", Input{Amount: dec("100"), Status: model.PaymentStatusPaid, IdempotencyKey: "k"}, policy, now)
	require.NoError(t, err)
	assert.True(t, changed)

	again, changed, err := Record(agg, card(), "p-2", Input{Amount: dec("100"), Status: model.PaymentStatusPaid, IdempotencyKey: "k"}, policy, now)
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Equal(t, first.ID, again.ID)
	assert.Len(t, agg.Payments, 1)
}

func TestRecordInstallmentPayment(t *testing.T) {
	agg := creditOrder(t)
	paidAt := agg.Installments[0].DueDate.AddDate(0, 0, -3)

	p, _, err := Record(agg, card(), "p-1", Input{
		Amount:              dec("108.00"),
		InstallmentSequence: model.Ptr(1),
		Status:              model.PaymentStatusPaid,
		PaymentDate:         &paidAt,
	}, policy, now)
	require.NoError(t, err)
	assert.Equal(t, 1, *p.InstallmentSequence)

	inst := agg.Installment(1)
	assert.Equal(t, model.InstallmentStatusPaid, inst.Status)
	require.NotNil(t, inst.PaymentDate)
	assert.True(t, inst.PaymentDate.Equal(paidAt))
	assert.Equal(t, "1188.00", agg.Outstanding().StringFixed(2))

	_, _, err = Record(agg, card(), "p-2", Input{Amount: dec("108.00"), InstallmentSequence: model.Ptr(1), Status: model.PaymentStatusPaid}, policy, now)
	assert.ErrorIs(t, err, model.ErrAlreadySettled)

	_, _, err = Record(agg, card(), "p-3", Input{Amount: dec("100"), InstallmentSequence: model.Ptr(2)}, policy, now)
	assert.ErrorIs(t, err, model.ErrInstallmentAmountMismatch)

	_, _, err = Record(agg, card(), "p-4", Input{Amount: dec("108"), InstallmentSequence: model.Ptr(13)}, policy, now)
	assert.ErrorIs(t, err, model.ErrInstallmentNotFound)
	assert.Len(t, agg.Payments, 1)
}

func TestRecordInstallmentRules(t *testing.T) {
	t.Run("method without installments", func(t *testing.T) {
		agg := creditOrder(t)
		m := card()
		m.SupportsInstallments = false
		m.MaxInstallments = nil
		_, _, err := Record(agg, m, "p", Input{Amount: dec("108"), InstallmentSequence: model.Ptr(1)}, policy, now)
		assert.ErrorIs(t, err, model.ErrInstallmentsNotSupported)
	})

	t.Run("method limit below count", func(t *testing.T) {
		agg := creditOrder(t)
		m := card()
		m.MaxInstallments = model.Ptr(6)
		_, _, err := Record(agg, m, "p", Input{Amount: dec("108"), InstallmentSequence: model.Ptr(1)}, policy, now)
		assert.ErrorIs(t, err, model.ErrInstallmentsNotSupported)
	})

	t.Run("too early leaves aggregate untouched", func(t *testing.T) {
		agg := creditOrder(t)
		early := agg.Installments[5].DueDate.AddDate(0, 0, -60)
		_, _, err := Record(agg, card(), "p", Input{
			Amount:              dec("108"),
			InstallmentSequence: model.Ptr(6),
			Status:              model.PaymentStatusPaid,
			PaymentDate:         &early,
		}, policy, now)
		assert.ErrorIs(t, err, model.ErrLateWindowExceeded)
		assert.Equal(t, model.InstallmentStatusPending, agg.Installment(6).Status)
		assert.Empty(t, agg.Payments)
	})

	t.Run("penalty is part of amount due", func(t *testing.T) {
		agg := creditOrder(t)
		inst := agg.Installment(1)
		inst.Status = model.InstallmentStatusOverdue
		inst.Penalty = dec("5.40")

		_, _, err := Record(agg, card(), "p", Input{Amount: dec("108"), InstallmentSequence: model.Ptr(1)}, policy, now)
		assert.ErrorIs(t, err, model.ErrInstallmentAmountMismatch)

		paidAt := inst.DueDate.AddDate(0, 0, 5)
		_, _, err = Record(agg, card(), "p", Input{
			Amount:              dec("113.40"),
			InstallmentSequence: model.Ptr(1),
			Status:              model.PaymentStatusPaid,
			PaymentDate:         &paidAt,
		}, policy, now)
		require.NoError(t, err)
		assert.Equal(t, model.InstallmentStatusPaid, agg.Installment(1).Status)
	})
}

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to model.PaymentStatus
		want     bool
	}{
		{model.PaymentStatusPending, model.PaymentStatusPaid, true},
		{model.PaymentStatusPending, model.PaymentStatusFailed, true},
		{model.PaymentStatusPending, model.PaymentStatusOverdue, true},
		{model.PaymentStatusOverdue, model.PaymentStatusPaid, true},
		{model.PaymentStatusOverdue, model.PaymentStatusFailed, true},
		{model.PaymentStatusOverdue, model.PaymentStatusPending, false},
		{model.PaymentStatusFailed, model.PaymentStatusPending, true},
		{model.PaymentStatusFailed, model.PaymentStatusOverdue, true},
		{model.PaymentStatusFailed, model.PaymentStatusPaid, false},
		{model.PaymentStatusPaid, model.PaymentStatusPending, false},
		{model.PaymentStatusPaid, model.PaymentStatusFailed, false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, CanTransition(tt.from, tt.to), "%s -> %s", tt.from, tt.to)
	}
}

func TestAdvance(t *testing.T) {
	agg := cashOrder("100")
	_, _, err := Record(agg, card(), "p-1", Input{Amount: dec("100")}, policy, now)
	require.NoError(t, err)

	_, changed, err := Advance(agg, "p-1", model.PaymentStatusPending, nil, policy, now)
	require.NoError(t, err)
	assert.False(t, changed)

	_, _, err = Advance(agg, "missing", model.PaymentStatusPaid, nil, policy, now)
	assert.ErrorIs(t, err, model.ErrPaymentNotFound)

	later := now.Add(time.Hour)
	p, changed, err := Advance(agg, "p-1", model.PaymentStatusPaid, &later, policy, later)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, model.PaymentStatusPaid, p.Status)
	assert.True(t, p.PaymentDate.Equal(later))

	_, _, err = Advance(agg, "p-1", model.PaymentStatusFailed, nil, policy, now)
	assert.ErrorIs(t, err, model.ErrInvalidTransition)
}

func TestAdvancePendingPaymentsCannotOverpay(t *testing.T) {
	agg := cashOrder("100")
	_, _, err := Record(agg, card(), "p-1", Input{Amount: dec("100")}, policy, now)
	require.NoError(t, err)
	_, _, err = Record(agg, card(), "p-2", Input{Amount: dec("100")}, policy, now)
	require.NoError(t, err)

	_, _, err = Advance(agg, "p-1", model.PaymentStatusPaid, nil, policy, now)
	require.NoError(t, err)

	_, _, err = Advance(agg, "p-2", model.PaymentStatusPaid, nil, policy, now)
	assert.ErrorIs(t, err, model.ErrBalanceExceeded)

	_, changed, err := Advance(agg, "p-2", model.PaymentStatusFailed, nil, policy, now)
	require.NoError(t, err)
	assert.True(t, changed)
}

func TestAdvanceSettlesInstallment(t *testing.T) {
	agg := creditOrder(t)
	_, _, err := Record(agg, card(), "p-1", Input{Amount: dec("108"), InstallmentSequence: model.Ptr(2)}, policy, now)
	require.NoError(t, err)
	assert.Equal(t, model.InstallmentStatusPending, agg.Installment(2).Status)

	paidAt := agg.Installment(2).DueDate
	_, _, err = Advance(agg, "p-1", model.PaymentStatusPaid, &paidAt, policy, now)
	require.NoError(t, err)
	assert.Equal(t, model.InstallmentStatusPaid, agg.Installment(2).Status)
	assert.True(t, agg.Installment(2).PaymentDate.Equal(paidAt))
}

func TestAdvanceOverduePaymentRecordedBeforePenalty(t *testing.T) {
	agg := creditOrder(t)
	_, _, err := Record(agg, card(), "p-1", Input{Amount: dec("108"), InstallmentSequence: model.Ptr(1)}, policy, now)
	require.NoError(t, err)

	inst := agg.Installment(1)
	inst.Status = model.InstallmentStatusOverdue
	inst.Penalty = dec("5.40")
	_, _, err = Advance(agg, "p-1", model.PaymentStatusOverdue, nil, policy, now)
	require.NoError(t, err)

	later := inst.DueDate.AddDate(0, 0, 3)
	p, changed, err := Advance(agg, "p-1", model.PaymentStatusPaid, &later, policy, later)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, model.PaymentStatusPaid, p.Status)
	assert.Equal(t, model.InstallmentStatusPaid, agg.Installment(1).Status)

	// штраф остаётся к оплате отдельным платежом
	_, _, err = Record(agg, card(), "p-2", Input{Amount: dec("5.41"), Status: model.PaymentStatusPaid}, policy, later)
	assert.ErrorIs(t, err, model.ErrBalanceExceeded)
	_, _, err = Record(agg, card(), "p-3", Input{Amount: dec("5.40"), Status: model.PaymentStatusPaid}, policy, later)
	require.NoError(t, err)
}

func TestAdvancePendingPaymentWithWrongAmountAfterPenalty(t *testing.T) {
	agg := creditOrder(t)
	_, _, err := Record(agg, card(), "p-1", Input{Amount: dec("108"), InstallmentSequence: model.Ptr(1)}, policy, now)
	require.NoError(t, err)

	inst := agg.Installment(1)
	inst.Status = model.InstallmentStatusOverdue
	inst.Penalty = dec("5.40")

	// платёж не переведён в overdue: сумма должна покрывать штраф
	_, _, err = Advance(agg, "p-1", model.PaymentStatusPaid, nil, policy, inst.DueDate.AddDate(0, 0, 3))
	assert.ErrorIs(t, err, model.ErrInstallmentAmountMismatch)
}

func TestFullPaymentLimits(t *testing.T) {
	t.Run("credit order without schedule pays at most its total", func(t *testing.T) {
		agg := creditOrder(t)
		agg.Installments = nil

		_, _, err := Record(agg, card(), "p-1", Input{Amount: dec("1296.00"), Status: model.PaymentStatusPaid}, policy, now)
		assert.ErrorIs(t, err, model.ErrBalanceExceeded)

		_, _, err = Record(agg, card(), "p-2", Input{Amount: dec("1200.00"), Status: model.PaymentStatusPaid}, policy, now)
		require.NoError(t, err)
		assert.Equal(t, "1200.00", agg.PaidTotal().StringFixed(2))
	})

	t.Run("scheduled credit order is repaid through installments", func(t *testing.T) {
		agg := creditOrder(t)

		_, _, err := Record(agg, card(), "p-1", Input{Amount: dec("1296.00"), Status: model.PaymentStatusPaid}, policy, now)
		assert.ErrorIs(t, err, model.ErrBalanceExceeded)
		_, _, err = Record(agg, card(), "p-2", Input{Amount: dec("0.01"), Status: model.PaymentStatusPaid}, policy, now)
		assert.ErrorIs(t, err, model.ErrBalanceExceeded)
		assert.Empty(t, agg.Payments)
	})
}
