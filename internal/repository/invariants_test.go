package repository

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/mmeshcher/delivery-settlement/internal/model"
)

func TestCheckAggregate(t *testing.T) {
	paidAt := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	credit := func() *model.OrderAggregate {
		return &model.OrderAggregate{
			Order: model.Order{
				ID:                "o",
				PaymentType:       model.PaymentTypeCredit,
				Total:             decimal.NewFromInt(200),
				InstallmentCount:  model.Ptr(2),
				InstallmentAmount: model.Ptr(decimal.NewFromInt(100)),
			},
			Installments: []model.Installment{
				{Sequence: 1, Amount: decimal.NewFromInt(100), Status: model.InstallmentStatusPending},
				{Sequence: 2, Amount: decimal.NewFromInt(100), Status: model.InstallmentStatusPending},
			},
		}
	}

	tests := []struct {
		name   string
		mutate func(agg *model.OrderAggregate)
		want   error
	}{
		{name: "valid", mutate: func(*model.OrderAggregate) {}},
		{
			name:   "total below discount",
			mutate: func(agg *model.OrderAggregate) { agg.Order.DiscountTotal = decimal.NewFromInt(300) },
			want:   model.ErrValidation,
		},
		{
			name:   "count without amount",
			mutate: func(agg *model.OrderAggregate) { agg.Order.InstallmentAmount = nil },
			want:   model.ErrValidation,
		},
		{
			name:   "wrong installment count",
			mutate: func(agg *model.OrderAggregate) { agg.Installments = agg.Installments[:1] },
			want:   model.ErrValidation,
		},
		{
			name:   "duplicate sequence",
			mutate: func(agg *model.OrderAggregate) { agg.Installments[1].Sequence = 1 },
			want:   model.ErrValidation,
		},
		{
			name:   "paid without date",
			mutate: func(agg *model.OrderAggregate) { agg.Installments[0].Status = model.InstallmentStatusPaid },
			want:   model.ErrPaymentDateRequired,
		},
		{
			name: "two paid payments for one installment",
			mutate: func(agg *model.OrderAggregate) {
				agg.Installments[0].Status = model.InstallmentStatusPaid
				agg.Installments[0].PaymentDate = &paidAt
				for _, id := range []string{"p1", "p2"} {
					agg.Payments = append(agg.Payments, model.Payment{
						ID: id, Amount: decimal.NewFromInt(100), Status: model.PaymentStatusPaid, InstallmentSequence: model.Ptr(1),
					})
				}
			},
			want: model.ErrAlreadySettled,
		},
		{
			name: "overpaid",
			mutate: func(agg *model.OrderAggregate) {
				agg.Payments = append(agg.Payments, model.Payment{ID: "p", Amount: decimal.NewFromInt(201), Status: model.PaymentStatusPaid})
			},
			want: model.ErrBalanceExceeded,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			agg := credit()
			tt.mutate(agg)
			err := checkAggregate(agg)
			if tt.want == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.want)
		})
	}
}
