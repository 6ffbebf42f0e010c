package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mmeshcher/delivery-settlement/internal/model"
	"github.com/mmeshcher/delivery-settlement/internal/reconcile"
)

// RecordPayment сверяет новый платёж с остатком и графиком заказа и сохраняет его.
func (s *Service) RecordPayment(ctx context.Context, orderID string, in reconcile.Input) (*model.Payment, error) {
	method, err := s.repo.GetPaymentMethod(ctx, in.MethodID)
	if err != nil {
		return nil, err
	}

	id := uuid.NewString()
	var (
		payment model.Payment
		changed bool
	)

	_, err = s.update(ctx, orderID, func(agg *model.OrderAggregate) error {
		p, ok, err := reconcile.Record(agg, *method, id, in, s.installmentPolicy(), s.now())
		if err != nil {
			return err
		}
		payment, changed = *p, ok
		return nil
	})
	if err != nil {
		return nil, err
	}

	if changed {
		s.logger.Info("payment recorded",
			zap.String("order", orderID),
			zap.String("payment", payment.ID),
			zap.String("status", string(payment.Status)),
			zap.String("amount", payment.Amount.StringFixed(2)))
		s.publish(ctx, model.EventPaymentRecorded, orderID, payment)
	}
	return &payment, nil
}

// TransitionPayment переводит существующий платёж в статус target.
func (s *Service) TransitionPayment(ctx context.Context, orderID, paymentID string,
	target model.PaymentStatus, paymentDate *time.Time) (*model.Payment, error) {
	var (
		payment model.Payment
		changed bool
	)

	_, err := s.update(ctx, orderID, func(agg *model.OrderAggregate) error {
		p, ok, err := reconcile.Advance(agg, paymentID, target, paymentDate, s.installmentPolicy(), s.now())
		if err != nil {
			return err
		}
		payment, changed = *p, ok
		return nil
	})
	if err != nil {
		return nil, err
	}

	if changed && payment.Status == model.PaymentStatusPaid {
		s.publish(ctx, model.EventPaymentRecorded, orderID, payment)
	}
	return &payment, nil
}
