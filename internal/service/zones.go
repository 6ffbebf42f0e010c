package service

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/mmeshcher/delivery-settlement/internal/model"
	"github.com/mmeshcher/delivery-settlement/internal/paymethod"
	"github.com/mmeshcher/delivery-settlement/internal/pricing"
)

// ResolveDeliveryCost рассчитывает стоимость и срок доставки в зону на момент when.
// Нулевой when означает текущий момент.
func (s *Service) ResolveDeliveryCost(ctx context.Context, zoneID int64, distanceKm decimal.Decimal, when time.Time) (pricing.Quote, error) {
	if when.IsZero() {
		when = s.now()
	}

	zone, err := s.zones.GetZone(ctx, zoneID)
	if err != nil {
		return pricing.Quote{}, err
	}
	tiers, err := s.zones.ListTiers(ctx, zoneID)
	if err != nil {
		return pricing.Quote{}, err
	}

	local := when.In(s.settings.Location)
	exceptions, err := s.zones.ListExceptions(ctx, zoneID, model.Date(local))
	if err != nil {
		return pricing.Quote{}, err
	}

	return pricing.Resolve(*zone, tiers, exceptions, model.RoundMoney(distanceKm), local)
}

// ConfigureZone сохраняет зону доставки вместе с её диапазонами расстояний.
func (s *Service) ConfigureZone(ctx context.Context, zone model.DeliveryZone, tiers []model.DistanceTier) error {
	if zone.MinDeliveryMinutes < 0 || zone.MaxDeliveryMinutes < zone.MinDeliveryMinutes {
		return fmt.Errorf("%w: delivery window %d..%d", model.ErrValidation, zone.MinDeliveryMinutes, zone.MaxDeliveryMinutes)
	}
	for i := range tiers {
		tiers[i].ZoneID = zone.ID
		if tiers[i].Cost.IsNegative() {
			return fmt.Errorf("%w: negative tier cost", model.ErrValidation)
		}
	}
	if err := pricing.CheckTiers(zone, tiers); err != nil {
		return err
	}
	if err := s.zones.SaveZone(ctx, zone, tiers); err != nil {
		return err
	}
	s.logger.Info("zone configured", zap.Int64("zone", zone.ID), zap.Int("tiers", len(tiers)))
	return nil
}

// AddZoneException сохраняет календарное исключение зоны.
// Исключение того же типа на ту же дату заменяется.
func (s *Service) AddZoneException(ctx context.Context, exc model.ZoneException) (*model.ZoneException, error) {
	if _, err := s.zones.GetZone(ctx, exc.ZoneID); err != nil {
		return nil, err
	}
	if err := checkException(exc); err != nil {
		return nil, err
	}
	exc.Date = model.Date(exc.Date.In(s.settings.Location))

	id, err := s.zones.SaveZoneException(ctx, exc)
	if err != nil {
		return nil, err
	}
	exc.ID = id
	return &exc, nil
}

func checkException(exc model.ZoneException) error {
	switch exc.Type {
	case model.ExceptionUnavailable, model.ExceptionSpecialHours:
	case model.ExceptionSpecialCost:
		if exc.SpecialCost == nil || exc.SpecialCost.IsNegative() {
			return fmt.Errorf("%w: special_cost requires a non-negative cost", model.ErrValidation)
		}
	case model.ExceptionSpecialTime:
		if exc.TimeOffsetMinutes == nil {
			return fmt.Errorf("%w: special_time requires a time offset", model.ErrValidation)
		}
	default:
		return fmt.Errorf("%w: exception type %q", model.ErrValidation, exc.Type)
	}

	if (exc.StartMinute == nil) != (exc.EndMinute == nil) {
		return fmt.Errorf("%w: window needs both start and end", model.ErrValidation)
	}
	if exc.StartMinute != nil {
		start, end := *exc.StartMinute, *exc.EndMinute
		if start < 0 || end > 24*60 || start >= end {
			return fmt.Errorf("%w: window %d..%d", model.ErrValidation, start, end)
		}
	} else if exc.Type == model.ExceptionSpecialHours {
		return fmt.Errorf("%w: special_hours requires a window", model.ErrValidation)
	}
	return nil
}

// ConfigurePaymentMethod проверяет и сохраняет способ оплаты.
func (s *Service) ConfigurePaymentMethod(ctx context.Context, m model.PaymentMethod) error {
	if err := paymethod.CheckConfig(m); err != nil {
		return err
	}
	return s.repo.SavePaymentMethod(ctx, m)
}
