// Package installment строит график рассрочки кредитного заказа и управляет
// состояниями его платежей.
package installment

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mmeshcher/delivery-settlement/internal/model"
)

// FirstDueAfterDays - число дней от создания заказа до первого платежа графика.
const FirstDueAfterDays = 30

var monthsInYear = decimal.NewFromInt(12)

// Plan содержит суммы графика без дат.
type Plan struct {
	Count             int
	TotalInterest     decimal.Decimal
	InstallmentAmount decimal.Decimal
	LastAmount        decimal.Decimal
	InterestPortion   decimal.Decimal
	LastInterest      decimal.Decimal
}

// Preview рассчитывает проценты и размер взноса.
// Проценты начисляются просто: total * annualRate * count / 12, ставка задаётся долей (0.08 = 8%).
func Preview(total decimal.Decimal, count int, annualRate decimal.Decimal) (Plan, error) {
	if count < 1 {
		return Plan{}, fmt.Errorf("%w: installment count must be positive, got %d", model.ErrValidation, count)
	}
	if annualRate.IsNegative() {
		return Plan{}, fmt.Errorf("%w: negative interest rate %s", model.ErrValidation, annualRate)
	}
	if !total.IsPositive() {
		return Plan{}, fmt.Errorf("%w: order total must be positive", model.ErrValidation)
	}

	n := decimal.NewFromInt(int64(count))
	interest := model.RoundMoney(total.Mul(annualRate).Mul(n).Div(monthsInYear))
	gross := total.Add(interest)

	amount, last := split(gross, count)
	portion, lastPortion := split(interest, count)

	return Plan{
		Count:             count,
		TotalInterest:     interest,
		InstallmentAmount: amount,
		LastAmount:        last,
		InterestPortion:   portion,
		LastInterest:      lastPortion,
	}, nil
}

// split делит сумму на count частей, остаток от округления уходит в последнюю часть.
func split(sum decimal.Decimal, count int) (decimal.Decimal, decimal.Decimal) {
	n := decimal.NewFromInt(int64(count))
	rest := decimal.NewFromInt(int64(count - 1))

	part := model.RoundMoney(sum.Div(n))
	if part.Mul(rest).GreaterThan(sum) {
		part = sum.Div(n).Truncate(model.MoneyPlaces)
	}
	return part, sum.Sub(part.Mul(rest))
}

// Schedule строит график из count платежей в статусе pending.
// Первый платёж наступает через 30 дней после создания заказа, далее раз в календарный месяц.
func Schedule(order model.Order, count int, annualRate decimal.Decimal) ([]model.Installment, error) {
	plan, err := Preview(order.Total, count, annualRate)
	if err != nil {
		return nil, err
	}

	first := model.Date(order.CreatedAt).AddDate(0, 0, FirstDueAfterDays)

	res := make([]model.Installment, 0, count)
	for seq := 1; seq <= count; seq++ {
		amount, interest := plan.InstallmentAmount, plan.InterestPortion
		if seq == count {
			amount, interest = plan.LastAmount, plan.LastInterest
		}
		res = append(res, model.Installment{
			OrderID:  order.ID,
			Sequence: seq,
			Amount:   amount,
			Interest: interest,
			Penalty:  decimal.Zero,
			DueDate:  addMonths(first, seq-1),
			Status:   model.InstallmentStatusPending,
		})
	}

	return res, nil
}

// addMonths сдвигает дату на n месяцев, прижимая день к концу короткого месяца.
func addMonths(t time.Time, n int) time.Time {
	y, m, d := t.Date()
	firstOfMonth := time.Date(y, m+time.Month(n), 1, 0, 0, 0, 0, t.Location())
	lastDay := firstOfMonth.AddDate(0, 1, -1).Day()
	if d > lastDay {
		d = lastDay
	}
	return time.Date(firstOfMonth.Year(), firstOfMonth.Month(), d, 0, 0, 0, 0, t.Location())
}
