package orderflow

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmeshcher/delivery-settlement/internal/model"
)

var allStatuses = []model.OrderStatus{
	model.OrderStatusPending, model.OrderStatusApproved, model.OrderStatusRejected, model.OrderStatusInProcess,
	model.OrderStatusShipped, model.OrderStatusDelivered, model.OrderStatusCancelled, model.OrderStatusReturned,
}

func TestTransitionTable(t *testing.T) {
	allowed := map[model.OrderStatus][]model.OrderStatus{
		model.OrderStatusPending:   {model.OrderStatusApproved, model.OrderStatusRejected, model.OrderStatusCancelled},
		model.OrderStatusApproved:  {model.OrderStatusInProcess, model.OrderStatusCancelled},
		model.OrderStatusInProcess: {model.OrderStatusShipped, model.OrderStatusCancelled},
		model.OrderStatusShipped:   {model.OrderStatusDelivered, model.OrderStatusReturned},
		model.OrderStatusDelivered: {model.OrderStatusReturned},
	}

	for _, from := range allStatuses {
		for _, to := range allStatuses {
			if from == to {
				continue
			}
			want := false
			for _, s := range allowed[from] {
				if s == to {
					want = true
				}
			}

			order := model.Order{ID: "o", Status: from, PaymentType: model.PaymentTypeCash, TrackingCode: model.Ptr("TRK-1")}
			_, err := Transition(&order, to, Patch{}, false)
			if want {
				assert.NoError(t, err, "%s -> %s", from, to)
				assert.Equal(t, to, order.Status)
			} else {
				assert.ErrorIs(t, err, model.ErrInvalidTransition, "%s -> %s", from, to)
				assert.Equal(t, from, order.Status)
			}
		}
	}
}

func TestTransitionShippedRequiresTracking(t *testing.T) {
	order := model.Order{ID: "o", Status: model.OrderStatusInProcess, PaymentType: model.PaymentTypeCash}

	_, err := Transition(&order, model.OrderStatusShipped, Patch{}, false)
	require.ErrorIs(t, err, model.ErrMissingTrackingCode)
	assert.Equal(t, model.KindConsistency, model.KindOf(err))
	assert.Equal(t, model.OrderStatusInProcess, order.Status)

	_, err = Transition(&order, model.OrderStatusShipped, Patch{TrackingCode: model.Some(model.Ptr("   "))}, false)
	assert.ErrorIs(t, err, model.ErrMissingTrackingCode)

	res, err := Transition(&order, model.OrderStatusShipped, Patch{TrackingCode: model.Some(model.Ptr(" TRK-9 "))}, false)
	require.NoError(t, err)
	assert.True(t, res.Changed)
	assert.Equal(t, model.OrderStatusShipped, order.Status)
	require.NotNil(t, order.TrackingCode)
	assert.Equal(t, "TRK-9", *order.TrackingCode)

	// Трек-номер нельзя стереть у отгруженного заказа.
	_, err = Transition(&order, model.OrderStatusShipped, Patch{TrackingCode: model.Some[*string](nil)}, false)
	assert.ErrorIs(t, err, model.ErrMissingTrackingCode)
}

func TestTransitionIdempotent(t *testing.T) {
	order := model.Order{ID: "o", Status: model.OrderStatusApproved, PaymentType: model.PaymentTypeCredit, InstallmentCount: model.Ptr(3)}
	before := order

	res, err := Transition(&order, model.OrderStatusApproved, Patch{}, true)
	require.NoError(t, err)
	assert.False(t, res.Changed)
	assert.False(t, res.ScheduleInstallments)
	assert.Equal(t, before, order)

	res, err = Transition(&order, model.OrderStatusApproved, Patch{InstallmentCount: model.Some(model.Ptr(3))}, true)
	require.NoError(t, err)
	assert.False(t, res.Changed)

	terminal := model.Order{ID: "t", Status: model.OrderStatusCancelled}
	res, err = Transition(&terminal, model.OrderStatusCancelled, Patch{}, false)
	require.NoError(t, err)
	assert.False(t, res.Changed)
}

func TestTransitionFrozenFields(t *testing.T) {
	for _, status := range []model.OrderStatus{model.OrderStatusApproved, model.OrderStatusShipped, model.OrderStatusDelivered, model.OrderStatusCancelled} {
		order := model.Order{ID: "o", Status: status, PaymentType: model.PaymentTypeCash, Currency: "USD", TrackingCode: model.Ptr("T")}

		_, err := Transition(&order, status, Patch{Currency: model.Some("EUR")}, false)
		assert.ErrorIs(t, err, model.ErrFrozenField, status)

		_, err = Transition(&order, status, Patch{PaymentType: model.Some(model.PaymentTypeCard)}, false)
		assert.ErrorIs(t, err, model.ErrFrozenField, status)

		_, err = Transition(&order, status, Patch{InstallmentCount: model.Some(model.Ptr(6))}, false)
		assert.ErrorIs(t, err, model.ErrFrozenField, status)

		// То же значение не считается изменением.
		_, err = Transition(&order, status, Patch{Currency: model.Some("USD")}, false)
		assert.NoError(t, err, status)
	}
}

func TestTransitionPendingEdits(t *testing.T) {
	order := model.Order{ID: "o", Status: model.OrderStatusPending, PaymentType: model.PaymentTypeCash, Currency: "USD"}

	_, err := Transition(&order, model.OrderStatusPending, Patch{PaymentType: model.Some(model.PaymentTypeCredit)}, false)
	assert.ErrorIs(t, err, model.ErrValidation)

	res, err := Transition(&order, model.OrderStatusPending, Patch{
		PaymentType:      model.Some(model.PaymentTypeCredit),
		InstallmentCount: model.Some(model.Ptr(6)),
		Currency:         model.Some("eur"),
	}, false)
	require.NoError(t, err)
	assert.True(t, res.RecalculatePlan)
	assert.Equal(t, model.PaymentTypeCredit, order.PaymentType)
	assert.Equal(t, "EUR", order.Currency)
	assert.Equal(t, 6, *order.InstallmentCount)

	order.InstallmentAmount = model.Ptr(decimal.NewFromInt(10))
	order.TotalInterest = model.Ptr(decimal.NewFromInt(1))

	res, err = Transition(&order, model.OrderStatusPending, Patch{PaymentType: model.Some(model.PaymentTypeCard)}, false)
	require.NoError(t, err)
	assert.False(t, res.RecalculatePlan)
	assert.Nil(t, order.InstallmentCount)
	assert.Nil(t, order.InstallmentAmount)
	assert.Nil(t, order.TotalInterest)

	_, err = Transition(&order, model.OrderStatusPending, Patch{InstallmentCount: model.Some(model.Ptr(3))}, false)
	assert.ErrorIs(t, err, model.ErrValidation)

	_, err = Transition(&order, model.OrderStatusPending, Patch{Currency: model.Some("EURO")}, false)
	assert.ErrorIs(t, err, model.ErrValidation)
}

func TestTransitionApproveSchedulesCredit(t *testing.T) {
	order := model.Order{ID: "o", Status: model.OrderStatusPending, PaymentType: model.PaymentTypeCredit, InstallmentCount: model.Ptr(12)}

	res, err := Transition(&order, model.OrderStatusApproved, Patch{}, false)
	require.NoError(t, err)
	assert.True(t, res.ScheduleInstallments)

	cash := model.Order{ID: "c", Status: model.OrderStatusPending, PaymentType: model.PaymentTypeCash}
	res, err = Transition(&cash, model.OrderStatusApproved, Patch{}, false)
	require.NoError(t, err)
	assert.False(t, res.ScheduleInstallments)

	existing := model.Order{ID: "e", Status: model.OrderStatusPending, PaymentType: model.PaymentTypeCredit, InstallmentCount: model.Ptr(2)}
	res, err = Transition(&existing, model.OrderStatusApproved, Patch{}, true)
	require.NoError(t, err)
	assert.False(t, res.ScheduleInstallments)
}

func TestTransitionUnknownStatus(t *testing.T) {
	order := model.Order{Status: model.OrderStatusPending}
	_, err := Transition(&order, "teleported", Patch{}, false)
	assert.ErrorIs(t, err, model.ErrValidation)
	assert.Len(t, Allowed(model.OrderStatusPending), 3)
	assert.Empty(t, Allowed(model.OrderStatusReturned))
}
