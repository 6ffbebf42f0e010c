package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/mmeshcher/delivery-settlement/internal/installment"
	"github.com/mmeshcher/delivery-settlement/internal/model"
	"github.com/mmeshcher/delivery-settlement/internal/orderflow"
)

// CreateOrderInput описывает новый заказ.
type CreateOrderInput struct {
	PaymentType      model.PaymentType
	Currency         string
	ItemsTotal       decimal.Decimal
	DiscountTotal    decimal.Decimal
	ZoneID           int64
	AddressID        int64
	DistanceKm       *decimal.Decimal
	InstallmentCount *int
}

// Balance описывает расчёты по заказу.
type Balance struct {
	Payable     decimal.Decimal
	Paid        decimal.Decimal
	Outstanding decimal.Decimal
}

// StatusChange - данные события смены статуса заказа.
type StatusChange struct {
	From model.OrderStatus `json:"from"`
	To   model.OrderStatus `json:"to"`
}

// CreateOrder проверяет вход, рассчитывает доставку и сохраняет заказ в статусе pending.
func (s *Service) CreateOrder(ctx context.Context, ownerID int64, in CreateOrderInput) (*model.Order, error) {
	if err := s.checkCreateInput(&in); err != nil {
		return nil, err
	}

	now := s.now()

	var distance decimal.Decimal
	switch {
	case in.DistanceKm != nil:
		distance = *in.DistanceKm
	case s.distance != nil:
		d, err := s.distance.Distance(ctx, in.ZoneID, in.AddressID)
		if err != nil {
			return nil, fmt.Errorf("resolve distance: %w", err)
		}
		distance = d
	default:
		return nil, fmt.Errorf("%w: distance_km is required", model.ErrValidation)
	}
	distance = model.RoundMoney(distance)

	quote, err := s.ResolveDeliveryCost(ctx, in.ZoneID, distance, now)
	if err != nil {
		return nil, err
	}

	total := model.RoundMoney(in.ItemsTotal.Add(quote.Cost).Sub(in.DiscountTotal))
	if total.LessThan(in.DiscountTotal) {
		return nil, fmt.Errorf("%w: total %s is below discount %s", model.ErrValidation, total, in.DiscountTotal)
	}

	order := model.Order{
		ID:            uuid.NewString(),
		OwnerID:       ownerID,
		PaymentType:   in.PaymentType,
		Currency:      in.Currency,
		Status:        model.OrderStatusPending,
		ItemsTotal:    in.ItemsTotal,
		Total:         total,
		DeliveryCost:  quote.Cost,
		DiscountTotal: in.DiscountTotal,
		ZoneID:        in.ZoneID,
		AddressID:     in.AddressID,
		DistanceKm:    distance,
		EtaMinutes:    quote.EtaMinutes,
		Version:       1,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if order.PaymentType == model.PaymentTypeCredit {
		order.InstallmentCount = in.InstallmentCount
		if err := s.applyPlan(&order); err != nil {
			return nil, err
		}
	}

	if err := s.repo.CreateOrder(ctx, &model.OrderAggregate{Order: order}); err != nil {
		return nil, err
	}

	s.logger.Info("order created", zap.String("order", order.ID), zap.String("total", order.Total.StringFixed(2)))
	return &order, nil
}

func (s *Service) checkCreateInput(in *CreateOrderInput) error {
	if !in.PaymentType.Valid() {
		return fmt.Errorf("%w: payment type %q", model.ErrValidation, in.PaymentType)
	}
	in.Currency = strings.ToUpper(strings.TrimSpace(in.Currency))
	if len(in.Currency) != 3 {
		return fmt.Errorf("%w: currency %q", model.ErrValidation, in.Currency)
	}
	if in.ItemsTotal.IsNegative() || !model.HasMoneyPrecision(in.ItemsTotal) {
		return fmt.Errorf("%w: items total %s", model.ErrValidation, in.ItemsTotal)
	}
	if in.DiscountTotal.IsNegative() || !model.HasMoneyPrecision(in.DiscountTotal) {
		return fmt.Errorf("%w: discount total %s", model.ErrValidation, in.DiscountTotal)
	}
	if in.DistanceKm != nil && in.DistanceKm.IsNegative() {
		return fmt.Errorf("%w: negative distance", model.ErrValidation)
	}
	if in.PaymentType == model.PaymentTypeCredit {
		if in.InstallmentCount == nil {
			return fmt.Errorf("%w: credit order requires installment count", model.ErrValidation)
		}
	} else if in.InstallmentCount != nil {
		return fmt.Errorf("%w: installments are only allowed for credit orders", model.ErrValidation)
	}
	return nil
}

// applyPlan пересчитывает проценты и размер взноса кредитного заказа.
func (s *Service) applyPlan(order *model.Order) error {
	count := *order.InstallmentCount
	if count < 1 || (s.settings.MaxInstallments > 0 && count > s.settings.MaxInstallments) {
		return fmt.Errorf("%w: installment count %d is outside 1..%d", model.ErrValidation, count, s.settings.MaxInstallments)
	}

	rate := s.settings.AnnualInterestRate
	plan, err := installment.Preview(order.Total, count, rate)
	if err != nil {
		return err
	}
	order.InstallmentAmount = &plan.InstallmentAmount
	order.TotalInterest = &plan.TotalInterest
	order.AnnualInterestRate = &rate
	return nil
}

// GetOrder возвращает заказ вместе с графиком и платежами.
func (s *Service) GetOrder(ctx context.Context, orderID string) (*model.OrderAggregate, error) {
	return s.repo.GetOrder(ctx, orderID)
}

// GetBalance возвращает сумму к оплате, оплаченную сумму и остаток по заказу.
func (s *Service) GetBalance(ctx context.Context, orderID string) (*Balance, error) {
	agg, err := s.repo.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	paid, err := s.repo.SumPaidPayments(ctx, orderID)
	if err != nil {
		return nil, err
	}
	payable := agg.Payable()
	return &Balance{
		Payable:     payable,
		Paid:        model.RoundMoney(paid),
		Outstanding: payable.Sub(model.RoundMoney(paid)),
	}, nil
}

// TransitionOrder переводит заказ в статус target, применяя сопутствующие изменения patch.
// При одобрении кредитного заказа в той же единице работы создаётся график рассрочки.
func (s *Service) TransitionOrder(ctx context.Context, orderID string, target model.OrderStatus, patch orderflow.Patch) (*model.Order, error) {
	var (
		change    StatusChange
		changed   bool
		scheduled int
	)

	agg, err := s.update(ctx, orderID, func(agg *model.OrderAggregate) error {
		change = StatusChange{From: agg.Order.Status, To: target}
		changed, scheduled = false, 0

		res, err := orderflow.Transition(&agg.Order, target, patch, len(agg.Installments) > 0)
		if err != nil {
			return err
		}
		if !res.Changed {
			return nil
		}
		changed = true

		now := s.now()
		agg.Order.UpdatedAt = now

		if res.RecalculatePlan {
			if err := s.applyPlan(&agg.Order); err != nil {
				return err
			}
		}

		if res.ScheduleInstallments {
			if agg.Order.InstallmentCount == nil {
				return fmt.Errorf("%w: credit order %s has no installment count", model.ErrValidation, orderID)
			}
			rate := s.settings.AnnualInterestRate
			if agg.Order.AnnualInterestRate != nil {
				rate = *agg.Order.AnnualInterestRate
			}
			items, err := installment.Schedule(agg.Order, *agg.Order.InstallmentCount, rate)
			if err != nil {
				return err
			}
			for i := range items {
				items[i].CreatedAt = now
				items[i].UpdatedAt = now
			}
			agg.Installments = items
			scheduled = len(items)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if changed && change.From != change.To {
		s.publish(ctx, model.EventOrderStatusChanged, orderID, change)
	}
	if scheduled > 0 {
		s.publish(ctx, model.EventInstallmentsScheduled, orderID, agg.Installments)
		s.logger.Info("installments scheduled", zap.String("order", orderID), zap.Int("count", scheduled))
	}

	return &agg.Order, nil
}
