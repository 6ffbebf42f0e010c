package installment

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmeshcher/delivery-settlement/internal/model"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestScheduleEvenSplit(t *testing.T) {
	order := model.Order{
		ID:        "o-1",
		Total:     dec("1200.00"),
		CreatedAt: time.Date(2026, 1, 15, 14, 0, 0, 0, time.UTC),
	}

	plan, err := Preview(order.Total, 12, dec("0.08"))
	require.NoError(t, err)
	assert.Equal(t, "96.00", plan.TotalInterest.StringFixed(2))
	assert.Equal(t, "108.00", plan.InstallmentAmount.StringFixed(2))

	items, err := Schedule(order, 12, dec("0.08"))
	require.NoError(t, err)
	require.Len(t, items, 12)

	sum := decimal.Zero
	for i, it := range items {
		assert.Equal(t, i+1, it.Sequence)
		assert.Equal(t, "108.00", it.Amount.StringFixed(2))
		assert.Equal(t, "8.00", it.Interest.StringFixed(2))
		assert.Equal(t, model.InstallmentStatusPending, it.Status)
		assert.True(t, it.Penalty.IsZero())
		assert.Nil(t, it.PaymentDate)
		assert.Equal(t, "o-1", it.OrderID)
		sum = sum.Add(it.Amount)
	}
	assert.Equal(t, "1296.00", sum.StringFixed(2))

	assert.Equal(t, time.Date(2026, 2, 14, 0, 0, 0, 0, time.UTC), items[0].DueDate)
	assert.Equal(t, time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC), items[1].DueDate)
	assert.Equal(t, time.Date(2027, 1, 14, 0, 0, 0, 0, time.UTC), items[11].DueDate)
}

func TestScheduleRemainderGoesToLast(t *testing.T) {
	order := model.Order{Total: dec("100.00"), CreatedAt: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}

	items, err := Schedule(order, 3, decimal.Zero)
	require.NoError(t, err)

	assert.Equal(t, "33.33", items[0].Amount.StringFixed(2))
	assert.Equal(t, "33.33", items[1].Amount.StringFixed(2))
	assert.Equal(t, "33.34", items[2].Amount.StringFixed(2))

	total := items[0].Amount.Add(items[1].Amount).Add(items[2].Amount)
	assert.True(t, total.Equal(dec("100")))
}

func TestScheduleClampsToMonthEnd(t *testing.T) {
	// 1 января + 30 дней = 31 января.
	order := model.Order{Total: dec("300"), CreatedAt: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}

	items, err := Schedule(order, 3, decimal.Zero)
	require.NoError(t, err)

	assert.Equal(t, time.Date(2026, 1, 31, 0, 0, 0, 0, time.UTC), items[0].DueDate)
	assert.Equal(t, time.Date(2026, 2, 28, 0, 0, 0, 0, time.UTC), items[1].DueDate)
	assert.Equal(t, time.Date(2026, 3, 31, 0, 0, 0, 0, time.UTC), items[2].DueDate)
}

func TestSchedulePropertyCountAndSum(t *testing.T) {
	totals := []string{"0.01", "99.99", "1234.56", "50000"}
	rates := []string{"0", "0.08", "0.195"}

	for _, total := range totals {
		for _, rate := range rates {
			for count := 1; count <= 24; count++ {
				order := model.Order{Total: dec(total), CreatedAt: time.Date(2026, 5, 20, 0, 0, 0, 0, time.UTC)}
				items, err := Schedule(order, count, dec(rate))
				require.NoError(t, err)
				require.Len(t, items, count)

				plan, err := Preview(order.Total, count, dec(rate))
				require.NoError(t, err)

				sum := decimal.Zero
				for _, it := range items {
					sum = sum.Add(it.Amount)
				}
				diff := sum.Sub(order.Total.Add(plan.TotalInterest)).Abs()
				tolerance := decimal.New(int64(count), -2)
				assert.True(t, diff.LessThanOrEqual(tolerance), "total %s rate %s count %d: diff %s", total, rate, count, diff)
			}
		}
	}
}

func TestScheduleValidation(t *testing.T) {
	order := model.Order{Total: dec("100")}

	_, err := Schedule(order, 0, dec("0.08"))
	assert.ErrorIs(t, err, model.ErrValidation)

	_, err = Schedule(order, 3, dec("-0.01"))
	assert.ErrorIs(t, err, model.ErrValidation)

	_, err = Schedule(model.Order{Total: decimal.Zero}, 3, dec("0.08"))
	assert.ErrorIs(t, err, model.ErrValidation)
}

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to model.InstallmentStatus
		want     bool
	}{
		{model.InstallmentStatusPending, model.InstallmentStatusPaid, true},
		{model.InstallmentStatusPending, model.InstallmentStatusOverdue, true},
		{model.InstallmentStatusPending, model.InstallmentStatusWaived, true},
		{model.InstallmentStatusOverdue, model.InstallmentStatusPaid, true},
		{model.InstallmentStatusOverdue, model.InstallmentStatusWaived, true},
		{model.InstallmentStatusOverdue, model.InstallmentStatusPending, false},
		{model.InstallmentStatusPaid, model.InstallmentStatusPending, false},
		{model.InstallmentStatusPaid, model.InstallmentStatusWaived, false},
		{model.InstallmentStatusWaived, model.InstallmentStatusPending, true},
		{model.InstallmentStatusWaived, model.InstallmentStatusOverdue, true},
		{model.InstallmentStatusWaived, model.InstallmentStatusPaid, false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, CanTransition(tt.from, tt.to), "%s -> %s", tt.from, tt.to)
	}
}

func newInstallment(status model.InstallmentStatus) model.Installment {
	return model.Installment{
		Sequence: 1,
		Amount:   dec("108"),
		Penalty:  decimal.Zero,
		DueDate:  time.Date(2026, 6, 30, 0, 0, 0, 0, time.UTC),
		Status:   status,
	}
}

var policy = Policy{EarlyPaymentWindowDays: DefaultEarlyPaymentWindowDays}

func TestTransitionPaid(t *testing.T) {
	paidAt := time.Date(2026, 6, 20, 0, 0, 0, 0, time.UTC)

	inst := newInstallment(model.InstallmentStatusPending)
	changed, err := Transition(&inst, model.InstallmentStatusPaid, Change{PaymentDate: model.Some(&paidAt)}, policy)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, model.InstallmentStatusPaid, inst.Status)
	require.NotNil(t, inst.PaymentDate)

	// Повторное применение того же перехода ничего не меняет.
	changed, err = Transition(&inst, model.InstallmentStatusPaid, Change{PaymentDate: model.Some(&paidAt)}, policy)
	require.NoError(t, err)
	assert.False(t, changed)

	// Оплаченный платёж нельзя вернуть в pending.
	_, err = Transition(&inst, model.InstallmentStatusPending, Change{PaymentDate: model.Some[*time.Time](nil)}, policy)
	assert.ErrorIs(t, err, model.ErrInvalidTransition)
	assert.Equal(t, model.InstallmentStatusPaid, inst.Status)
}

func TestTransitionPaymentDateRules(t *testing.T) {
	t.Run("paid requires date", func(t *testing.T) {
		inst := newInstallment(model.InstallmentStatusPending)
		_, err := Transition(&inst, model.InstallmentStatusPaid, Change{}, policy)
		assert.ErrorIs(t, err, model.ErrPaymentDateRequired)
		assert.Equal(t, model.InstallmentStatusPending, inst.Status)
	})

	t.Run("date outside paid state", func(t *testing.T) {
		at := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
		inst := newInstallment(model.InstallmentStatusPending)
		_, err := Transition(&inst, model.InstallmentStatusOverdue, Change{PaymentDate: model.Some(&at)}, policy)
		assert.ErrorIs(t, err, model.ErrCannotClearPaymentDate)
	})

	t.Run("too early", func(t *testing.T) {
		early := time.Date(2026, 5, 30, 0, 0, 0, 0, time.UTC)
		inst := newInstallment(model.InstallmentStatusPending)
		_, err := Transition(&inst, model.InstallmentStatusPaid, Change{PaymentDate: model.Some(&early)}, policy)
		assert.ErrorIs(t, err, model.ErrLateWindowExceeded)

		boundary := time.Date(2026, 5, 31, 23, 0, 0, 0, time.UTC)
		_, err = Transition(&inst, model.InstallmentStatusPaid, Change{PaymentDate: model.Some(&boundary)}, policy)
		assert.NoError(t, err)
	})

	t.Run("window is configurable", func(t *testing.T) {
		early := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
		inst := newInstallment(model.InstallmentStatusPending)
		_, err := Transition(&inst, model.InstallmentStatusPaid, Change{PaymentDate: model.Some(&early)}, Policy{EarlyPaymentWindowDays: 365})
		assert.NoError(t, err)
	})
}

func TestTransitionPenaltyRules(t *testing.T) {
	inst := newInstallment(model.InstallmentStatusPending)

	_, err := Transition(&inst, model.InstallmentStatusWaived, Change{Penalty: model.Some(dec("5"))}, policy)
	assert.ErrorIs(t, err, model.ErrPenaltyNotAllowed)

	changed, err := Transition(&inst, model.InstallmentStatusOverdue, Change{Penalty: model.Some(dec("5.404"))}, policy)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, "5.40", inst.Penalty.StringFixed(2))

	// Штраф в просрочке можно пересчитать.
	changed, err = Transition(&inst, model.InstallmentStatusOverdue, Change{Penalty: model.Some(dec("7"))}, policy)
	require.NoError(t, err)
	assert.True(t, changed)

	// Списание без обнуления штрафа запрещено.
	_, err = Transition(&inst, model.InstallmentStatusWaived, Change{}, policy)
	assert.ErrorIs(t, err, model.ErrPenaltyNotAllowed)

	changed, err = Transition(&inst, model.InstallmentStatusWaived, Change{Penalty: model.Some(decimal.Zero)}, policy)
	require.NoError(t, err)
	assert.True(t, changed)

	// Административное восстановление.
	_, err = Transition(&inst, model.InstallmentStatusPending, Change{}, policy)
	assert.NoError(t, err)
	assert.Equal(t, model.InstallmentStatusPending, inst.Status)

	_, err = Transition(&inst, model.InstallmentStatusOverdue, Change{Penalty: model.Some(dec("-1"))}, policy)
	assert.ErrorIs(t, err, model.ErrValidation)
}
