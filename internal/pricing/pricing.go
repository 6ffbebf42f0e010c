// Package pricing рассчитывает стоимость и срок доставки по диапазонам расстояний зоны
// с учётом календарных исключений.
package pricing

import (
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mmeshcher/delivery-settlement/internal/model"
)

// MinEtaMinutes - нижняя граница оценки срока доставки.
const MinEtaMinutes = 1

// Quote содержит результат расчёта доставки.
type Quote struct {
	Cost        decimal.Decimal
	EtaMinutes  int
	MinMinutes  int
	TierID      int64
	ExceptionID *int64
}

// Resolve рассчитывает стоимость и срок доставки для зоны на момент when.
// Время when должно быть приведено к рабочему часовому поясу сервиса.
func Resolve(
	zone model.DeliveryZone,
	tiers []model.DistanceTier,
	exceptions []model.ZoneException,
	distanceKm decimal.Decimal,
	when time.Time,
) (Quote, error) {
	if distanceKm.IsNegative() {
		return Quote{}, fmt.Errorf("%w: negative distance %s", model.ErrValidation, distanceKm)
	}
	if !zone.Active {
		return Quote{}, fmt.Errorf("%w: zone %d is inactive", model.ErrZoneUnavailable, zone.ID)
	}

	distance := model.RoundMoney(distanceKm)

	ov, err := applicableOverrides(zone, exceptions, when)
	if err != nil {
		return Quote{}, err
	}

	tier, err := matchTier(tiers, distance)
	if err != nil {
		return Quote{}, err
	}

	cost := tier.Cost
	offset := tier.TimeOffsetMinutes
	if ov.cost != nil {
		cost = *ov.cost
	}
	if ov.offset != nil {
		offset = *ov.offset
	}

	return Quote{
		Cost:        model.RoundMoney(cost),
		EtaMinutes:  clampEta(zone.MaxDeliveryMinutes + offset),
		MinMinutes:  clampEta(zone.MinDeliveryMinutes + offset),
		TierID:      tier.ID,
		ExceptionID: ov.exceptionID,
	}, nil
}

type overrides struct {
	cost        *decimal.Decimal
	offset      *int
	exceptionID *int64
}

func applicableOverrides(zone model.DeliveryZone, exceptions []model.ZoneException, when time.Time) (overrides, error) {
	var ov overrides
	minute := when.Hour()*60 + when.Minute()

	for _, exc := range exceptions {
		if exc.ZoneID != zone.ID || !sameDate(exc.Date, when) {
			continue
		}

		inWindow := withinWindow(exc, minute)

		switch exc.Type {
		case model.ExceptionUnavailable:
			if inWindow {
				return overrides{}, fmt.Errorf("%w: zone %d closed on %s: %s",
					model.ErrZoneUnavailable, zone.ID, when.Format(time.DateOnly), exc.Reason)
			}
		case model.ExceptionSpecialHours:
			if !inWindow {
				return overrides{}, fmt.Errorf("%w: zone %d works special hours on %s",
					model.ErrZoneUnavailable, zone.ID, when.Format(time.DateOnly))
			}
			ov.mark(exc)
			if exc.SpecialCost != nil {
				ov.cost = exc.SpecialCost
			}
			if exc.TimeOffsetMinutes != nil {
				ov.offset = exc.TimeOffsetMinutes
			}
		case model.ExceptionSpecialCost:
			if inWindow && exc.SpecialCost != nil {
				ov.mark(exc)
				ov.cost = exc.SpecialCost
			}
		case model.ExceptionSpecialTime:
			if inWindow && exc.TimeOffsetMinutes != nil {
				ov.mark(exc)
				ov.offset = exc.TimeOffsetMinutes
			}
		}
	}

	return ov, nil
}

func (o *overrides) mark(exc model.ZoneException) {
	if o.exceptionID == nil {
		id := exc.ID
		o.exceptionID = &id
	}
}

func withinWindow(exc model.ZoneException, minute int) bool {
	if exc.StartMinute != nil && minute < *exc.StartMinute {
		return false
	}
	if exc.EndMinute != nil && minute >= *exc.EndMinute {
		return false
	}
	return true
}

func sameDate(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// matchTier выбирает первый диапазон [from, to), последний диапазон закрыт справа.
func matchTier(tiers []model.DistanceTier, distance decimal.Decimal) (model.DistanceTier, error) {
	sorted := sortTiers(tiers)

	for i, t := range sorted {
		if i > 0 && t.DistanceFrom.LessThan(sorted[i-1].DistanceTo) {
			return model.DistanceTier{}, fmt.Errorf("%w: tier %d starts at %s before %s",
				model.ErrTierOverlap, t.ID, t.DistanceFrom, sorted[i-1].DistanceTo)
		}
	}

	for i, t := range sorted {
		if distance.LessThan(t.DistanceFrom) {
			continue
		}
		last := i == len(sorted)-1
		if distance.LessThan(t.DistanceTo) || (last && distance.Equal(t.DistanceTo)) {
			return t, nil
		}
	}

	return model.DistanceTier{}, fmt.Errorf("%w: %s km", model.ErrNoTierMatch, distance)
}

func sortTiers(tiers []model.DistanceTier) []model.DistanceTier {
	sorted := make([]model.DistanceTier, len(tiers))
	copy(sorted, tiers)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].DistanceFrom.LessThan(sorted[j].DistanceFrom)
	})
	return sorted
}

func clampEta(minutes int) int {
	if minutes < MinEtaMinutes {
		return MinEtaMinutes
	}
	return minutes
}

// CheckTiers проверяет, что диапазоны не пересекаются и без разрывов покрывают радиус зоны.
func CheckTiers(zone model.DeliveryZone, tiers []model.DistanceTier) error {
	if len(tiers) == 0 {
		return fmt.Errorf("%w: zone %d has no tiers", model.ErrValidation, zone.ID)
	}

	sorted := sortTiers(tiers)
	if !sorted[0].DistanceFrom.IsZero() {
		return fmt.Errorf("%w: first tier starts at %s", model.ErrValidation, sorted[0].DistanceFrom)
	}

	for i, t := range sorted {
		if !t.DistanceFrom.LessThan(t.DistanceTo) {
			return fmt.Errorf("%w: tier %d has empty range", model.ErrValidation, t.ID)
		}
		if i == 0 {
			continue
		}
		prev := sorted[i-1].DistanceTo
		switch {
		case t.DistanceFrom.LessThan(prev):
			return fmt.Errorf("%w: tier %d overlaps previous tier", model.ErrTierOverlap, t.ID)
		case t.DistanceFrom.GreaterThan(prev):
			return fmt.Errorf("%w: gap between %s and %s km", model.ErrValidation, prev, t.DistanceFrom)
		}
	}

	if end := sorted[len(sorted)-1].DistanceTo; end.LessThan(zone.CoverageKm) {
		return fmt.Errorf("%w: tiers end at %s km, coverage is %s km", model.ErrValidation, end, zone.CoverageKm)
	}

	return nil
}
