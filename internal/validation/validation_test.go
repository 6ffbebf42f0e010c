package validation

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmeshcher/delivery-settlement/internal/model"
)

type paymentRequest struct {
	MethodID int64            `json:"method_id" validate:"required"`
	Amount   decimal.Decimal  `json:"amount" validate:"positive_money"`
	Fee      decimal.Decimal  `json:"fee" validate:"money"`
	Distance *decimal.Decimal `json:"distance_km" validate:"omitempty,nonnegative"`
	Currency string           `json:"currency" validate:"omitempty,len=3,alpha"`
}

func TestStruct(t *testing.T) {
	v := New()
	ctx := context.Background()

	valid := func() paymentRequest {
		return paymentRequest{
			MethodID: 1,
			Amount:   decimal.RequireFromString("10.50"),
			Fee:      decimal.Zero,
			Currency: "usd",
		}
	}

	tests := []struct {
		name   string
		mutate func(r *paymentRequest)
		field  string
	}{
		{name: "valid", mutate: func(*paymentRequest) {}},
		{name: "missing method", mutate: func(r *paymentRequest) { r.MethodID = 0 }, field: "method_id"},
		{name: "zero amount", mutate: func(r *paymentRequest) { r.Amount = decimal.Zero }, field: "amount"},
		{name: "negative amount", mutate: func(r *paymentRequest) { r.Amount = decimal.NewFromInt(-1) }, field: "amount"},
		{name: "fractional cents", mutate: func(r *paymentRequest) { r.Amount = decimal.RequireFromString("1.005") }, field: "amount"},
		{name: "negative fee", mutate: func(r *paymentRequest) { r.Fee = decimal.NewFromInt(-2) }, field: "fee"},
		{
			name: "negative distance",
			mutate: func(r *paymentRequest) {
				d := decimal.RequireFromString("-0.1")
				r.Distance = &d
			},
			field: "distance_km",
		},
		{name: "bad currency", mutate: func(r *paymentRequest) { r.Currency = "US1" }, field: "currency"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := valid()
			tt.mutate(&req)
			err := v.Struct(ctx, req)
			if tt.field == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.ErrorIs(t, err, model.ErrValidation)
			assert.Contains(t, err.Error(), tt.field)
		})
	}
}

func TestStructRejectsNonStruct(t *testing.T) {
	err := New().Struct(context.Background(), 42)
	assert.ErrorIs(t, err, model.ErrValidation)
}
