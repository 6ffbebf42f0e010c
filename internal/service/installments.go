package service

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/mmeshcher/delivery-settlement/internal/installment"
	"github.com/mmeshcher/delivery-settlement/internal/model"
	"github.com/mmeshcher/delivery-settlement/internal/reconcile"
)

var hundred = decimal.NewFromInt(100)

// TransitionInstallment выполняет административный переход платежа графика: просрочку,
// списание или восстановление. Оплата графика проводится только через платежи.
func (s *Service) TransitionInstallment(ctx context.Context, orderID string, seq int,
	target model.InstallmentStatus, change installment.Change) (*model.Installment, error) {
	if target == model.InstallmentStatusPaid {
		return nil, fmt.Errorf("%w: installments are settled by recording a payment", model.ErrValidation)
	}

	var res model.Installment
	_, err := s.update(ctx, orderID, func(agg *model.OrderAggregate) error {
		inst := agg.Installment(seq)
		if inst == nil {
			return fmt.Errorf("%w: order %s sequence %d", model.ErrInstallmentNotFound, orderID, seq)
		}
		changed, err := installment.Transition(inst, target, change, s.installmentPolicy())
		if err != nil {
			return err
		}
		if changed {
			inst.UpdatedAt = s.now()
		}
		res = *inst
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &res, nil
}

// SweepOverdue переводит просроченные платежи графика в overdue, начисляя штраф,
// и возвращает число обработанных платежей графика. Каждый заказ обрабатывается под своей блокировкой.
func (s *Service) SweepOverdue(ctx context.Context) (int, error) {
	today := model.Date(s.now())

	total, orders := 0, 0
	// Курсор по идентификатору: заказы, которые не удалось изменить, не блокируют следующие страницы.
	cursor := ""
	for {
		ids, err := s.repo.ListOrdersWithDueInstallments(ctx, today, cursor, sweepBatchSize)
		if err != nil {
			return total, fmt.Errorf("list orders with due installments: %w", err)
		}

		for _, id := range ids {
			if ctx.Err() != nil {
				return total, ctx.Err()
			}

			var moved int
			_, err := s.update(ctx, id, func(agg *model.OrderAggregate) error {
				n, err := s.markOverdue(agg, today)
				moved = n
				return err
			})
			if err != nil {
				s.logger.Error("overdue sweep failed", zap.String("order", id), zap.Error(err))
				continue
			}
			total += moved
		}
		orders += len(ids)

		if len(ids) < sweepBatchSize {
			break
		}
		cursor = ids[len(ids)-1]
	}

	if total > 0 {
		s.logger.Info("overdue sweep finished", zap.Int("orders", orders), zap.Int("installments", total))
	}
	return total, nil
}

func (s *Service) markOverdue(agg *model.OrderAggregate, today time.Time) (int, error) {
	switch agg.Order.Status {
	case model.OrderStatusRejected, model.OrderStatusCancelled, model.OrderStatusReturned:
		return 0, nil
	}

	now := s.now()
	policy := s.installmentPolicy()
	moved := 0

	for i := range agg.Installments {
		inst := &agg.Installments[i]
		if inst.Status != model.InstallmentStatusPending || !model.Date(inst.DueDate.In(today.Location())).Before(today) {
			continue
		}

		penalty := model.RoundMoney(inst.Amount.Mul(s.settings.OverduePenaltyPercent).Div(hundred))
		if _, err := installment.Transition(inst, model.InstallmentStatusOverdue,
			installment.Change{Penalty: model.Some(penalty)}, policy); err != nil {
			return 0, err
		}
		inst.UpdatedAt = now
		moved++

		for _, p := range agg.Payments {
			if p.Status != model.PaymentStatusPending || p.InstallmentSequence == nil || *p.InstallmentSequence != inst.Sequence {
				continue
			}
			if _, _, err := reconcile.Advance(agg, p.ID, model.PaymentStatusOverdue, nil, policy, now); err != nil {
				return 0, err
			}
		}
	}
	return moved, nil
}

// StartOverdueSweep периодически запускает SweepOverdue до отмены контекста.
func (s *Service) StartOverdueSweep(ctx context.Context) {
	ticker := time.NewTicker(s.settings.OverdueSweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.SweepOverdue(ctx); err != nil && ctx.Err() == nil {
				s.logger.Error("overdue sweep error", zap.Error(err))
			}
		}
	}
}
