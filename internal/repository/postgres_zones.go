package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/mmeshcher/delivery-settlement/internal/model"
)

// GetZone возвращает зону доставки.
func (r *PostgresRepository) GetZone(ctx context.Context, id int64) (*model.DeliveryZone, error) {
	var z model.DeliveryZone
	err := r.pool.QueryRow(ctx,
		`SELECT id, name, coverage_km, min_delivery_minutes, max_delivery_minutes, active
		 FROM delivery_zones
		 WHERE id = $1`,
		id,
	).Scan(&z.ID, &z.Name, &z.CoverageKm, &z.MinDeliveryMinutes, &z.MaxDeliveryMinutes, &z.Active)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: %d", model.ErrZoneNotFound, id)
		}
		return nil, fmt.Errorf("select zone: %w", err)
	}
	return &z, nil
}

// ListTiers возвращает диапазоны зоны по возрастанию начала.
func (r *PostgresRepository) ListTiers(ctx context.Context, zoneID int64) ([]model.DistanceTier, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, zone_id, distance_from, distance_to, cost, time_offset_minutes
		 FROM distance_tiers
		 WHERE zone_id = $1
		 ORDER BY distance_from`,
		zoneID,
	)
	if err != nil {
		return nil, fmt.Errorf("select tiers: %w", err)
	}
	defer rows.Close()

	var res []model.DistanceTier
	for rows.Next() {
		var t model.DistanceTier
		if err := rows.Scan(&t.ID, &t.ZoneID, &t.DistanceFrom, &t.DistanceTo, &t.Cost, &t.TimeOffsetMinutes); err != nil {
			return nil, fmt.Errorf("scan tier: %w", err)
		}
		res = append(res, t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return res, nil
}

// ListExceptions возвращает исключения зоны на дату.
func (r *PostgresRepository) ListExceptions(ctx context.Context, zoneID int64, date time.Time) ([]model.ZoneException, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, zone_id, date, type, special_cost, time_offset_minutes, start_minute, end_minute, reason
		 FROM zone_exceptions
		 WHERE zone_id = $1 AND date = $2
		 ORDER BY id`,
		zoneID, dateParam(date),
	)
	if err != nil {
		return nil, fmt.Errorf("select zone exceptions: %w", err)
	}
	defer rows.Close()

	var res []model.ZoneException
	for rows.Next() {
		var (
			e    model.ZoneException
			typ  string
			day  time.Time
			cost decimal.NullDecimal
		)
		if err := rows.Scan(&e.ID, &e.ZoneID, &day, &typ, &cost, &e.TimeOffsetMinutes,
			&e.StartMinute, &e.EndMinute, &e.Reason); err != nil {
			return nil, fmt.Errorf("scan zone exception: %w", err)
		}
		e.Type = model.ExceptionType(typ)
		e.Date = r.localDate(day)
		e.SpecialCost = fromNull(cost)
		res = append(res, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return res, nil
}

// SaveZone создаёт или заменяет зону и её диапазоны в одной транзакции.
func (r *PostgresRepository) SaveZone(ctx context.Context, zone model.DeliveryZone, tiers []model.DistanceTier) error {
	return r.withRetry(ctx, func() error {
		tx, err := r.pool.Begin(ctx)
		if err != nil {
			return fmt.Errorf("begin tx: %w", err)
		}
		defer tx.Rollback(ctx)

		query, args, err := psql.Insert("delivery_zones").
			Columns("id", "name", "coverage_km", "min_delivery_minutes", "max_delivery_minutes", "active").
			Values(zone.ID, zone.Name, zone.CoverageKm, zone.MinDeliveryMinutes, zone.MaxDeliveryMinutes, zone.Active).
			Suffix(`ON CONFLICT (id) DO UPDATE SET
				name = EXCLUDED.name,
				coverage_km = EXCLUDED.coverage_km,
				min_delivery_minutes = EXCLUDED.min_delivery_minutes,
				max_delivery_minutes = EXCLUDED.max_delivery_minutes,
				active = EXCLUDED.active`).
			ToSql()
		if err != nil {
			return fmt.Errorf("build upsert zone: %w", err)
		}
		if _, err := tx.Exec(ctx, query, args...); err != nil {
			return fmt.Errorf("upsert zone: %w", err)
		}

		if _, err := tx.Exec(ctx, `DELETE FROM distance_tiers WHERE zone_id = $1`, zone.ID); err != nil {
			return fmt.Errorf("delete tiers: %w", err)
		}

		if len(tiers) > 0 {
			insert := psql.Insert("distance_tiers").
				Columns("zone_id", "distance_from", "distance_to", "cost", "time_offset_minutes")
			for _, t := range tiers {
				insert = insert.Values(zone.ID, t.DistanceFrom, t.DistanceTo, t.Cost, t.TimeOffsetMinutes)
			}
			query, args, err := insert.ToSql()
			if err != nil {
				return fmt.Errorf("build insert tiers: %w", err)
			}
			if _, err := tx.Exec(ctx, query, args...); err != nil {
				return fmt.Errorf("insert tiers: %w", err)
			}
		}

		if err := tx.Commit(ctx); err != nil {
			return fmt.Errorf("commit tx: %w", err)
		}
		return nil
	})
}

// SaveZoneException сохраняет исключение, заменяя исключение того же типа на ту же дату.
func (r *PostgresRepository) SaveZoneException(ctx context.Context, exc model.ZoneException) (int64, error) {
	query, args, err := psql.Insert("zone_exceptions").
		Columns("zone_id", "date", "type", "special_cost", "time_offset_minutes", "start_minute", "end_minute", "reason").
		Values(exc.ZoneID, dateParam(exc.Date), string(exc.Type), exc.SpecialCost, exc.TimeOffsetMinutes,
			exc.StartMinute, exc.EndMinute, exc.Reason).
		Suffix(`ON CONFLICT (zone_id, date, type) DO UPDATE SET
			special_cost = EXCLUDED.special_cost,
			time_offset_minutes = EXCLUDED.time_offset_minutes,
			start_minute = EXCLUDED.start_minute,
			end_minute = EXCLUDED.end_minute,
			reason = EXCLUDED.reason
			RETURNING id`).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build upsert zone exception: %w", err)
	}

	var id int64
	if err := r.pool.QueryRow(ctx, query, args...).Scan(&id); err != nil {
		return 0, fmt.Errorf("upsert zone exception: %w", err)
	}
	return id, nil
}
