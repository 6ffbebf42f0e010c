package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/mmeshcher/delivery-settlement/internal/model"
)

const orderColumns = `id, owner_id, payment_type, currency, status, items_total, total, delivery_cost,
	discount_total, zone_id, address_id, distance_km, eta_minutes, installment_count, installment_amount,
	total_interest, annual_interest_rate, tracking_code, version, created_at, updated_at`

// CreateOrder сохраняет новый заказ.
func (r *PostgresRepository) CreateOrder(ctx context.Context, agg *model.OrderAggregate) error {
	o := agg.Order
	query, args, err := psql.Insert("orders").
		Columns("id", "owner_id", "payment_type", "currency", "status", "items_total", "total", "delivery_cost",
			"discount_total", "zone_id", "address_id", "distance_km", "eta_minutes", "installment_count",
			"installment_amount", "total_interest", "annual_interest_rate", "tracking_code", "version",
			"created_at", "updated_at").
		Values(o.ID, o.OwnerID, string(o.PaymentType), o.Currency, string(o.Status), o.ItemsTotal, o.Total,
			o.DeliveryCost, o.DiscountTotal, o.ZoneID, o.AddressID, o.DistanceKm, o.EtaMinutes, o.InstallmentCount,
			o.InstallmentAmount, o.TotalInterest, o.AnnualInterestRate, o.TrackingCode, o.Version,
			o.CreatedAt, o.UpdatedAt).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert order: %w", err)
	}

	return r.withRetry(ctx, func() error {
		if _, err := r.pool.Exec(ctx, query, args...); err != nil {
			if isUniqueViolation(err, "") {
				return fmt.Errorf("%w: order %s already exists", model.ErrValidation, o.ID)
			}
			return fmt.Errorf("insert order: %w", err)
		}
		return nil
	})
}

// GetOrder возвращает агрегат заказа.
func (r *PostgresRepository) GetOrder(ctx context.Context, id string) (*model.OrderAggregate, error) {
	var agg *model.OrderAggregate
	err := r.withRetry(ctx, func() error {
		var err error
		agg, err = r.loadAggregate(ctx, r.pool, id, false)
		return err
	})
	if err != nil {
		return nil, err
	}
	return agg, nil
}

// UpdateOrderAggregate блокирует строку заказа (SELECT ... FOR UPDATE), применяет fn и сохраняет
// агрегат в той же транзакции. Версия заказа проверяется и увеличивается при записи.
func (r *PostgresRepository) UpdateOrderAggregate(ctx context.Context, id string, fn model.UpdateAggregateFn) (*model.OrderAggregate, error) {
	var res *model.OrderAggregate

	err := r.withRetry(ctx, func() error {
		tx, err := r.pool.Begin(ctx)
		if err != nil {
			return fmt.Errorf("begin tx: %w", err)
		}
		defer tx.Rollback(ctx)

		agg, err := r.loadAggregate(ctx, tx, id, true)
		if err != nil {
			return err
		}

		version := agg.Order.Version
		if err := fn(agg); err != nil {
			return err
		}
		if err := checkAggregate(agg); err != nil {
			return err
		}
		if err := r.saveAggregate(ctx, tx, agg, version); err != nil {
			return err
		}

		if err := tx.Commit(ctx); err != nil {
			return fmt.Errorf("commit tx: %w", err)
		}

		agg.Order.Version = version + 1
		res = agg
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

func (r *PostgresRepository) loadAggregate(ctx context.Context, q querier, id string, lock bool) (*model.OrderAggregate, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`
	if lock {
		query += ` FOR UPDATE`
	}

	order, err := r.scanOrder(q.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", model.ErrOrderNotFound, id)
		}
		return nil, fmt.Errorf("select order: %w", err)
	}

	installments, err := r.loadInstallments(ctx, q, id)
	if err != nil {
		return nil, err
	}
	payments, err := r.loadPayments(ctx, q, id)
	if err != nil {
		return nil, err
	}

	return &model.OrderAggregate{Order: *order, Installments: installments, Payments: payments}, nil
}

func (r *PostgresRepository) scanOrder(row pgx.Row) (*model.Order, error) {
	var (
		o                      model.Order
		paymentType, status    string
		amount, interest, rate decimal.NullDecimal
		installmentCount       *int
		trackingCode           *string
		createdAt, updatedAt   time.Time
	)
	err := row.Scan(&o.ID, &o.OwnerID, &paymentType, &o.Currency, &status, &o.ItemsTotal, &o.Total,
		&o.DeliveryCost, &o.DiscountTotal, &o.ZoneID, &o.AddressID, &o.DistanceKm, &o.EtaMinutes,
		&installmentCount, &amount, &interest, &rate, &trackingCode, &o.Version, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	o.PaymentType = model.PaymentType(paymentType)
	o.Status = model.OrderStatus(status)
	o.InstallmentCount = installmentCount
	o.InstallmentAmount = fromNull(amount)
	o.TotalInterest = fromNull(interest)
	o.AnnualInterestRate = fromNull(rate)
	o.TrackingCode = trackingCode
	o.CreatedAt = createdAt.In(r.loc)
	o.UpdatedAt = updatedAt.In(r.loc)
	return &o, nil
}

func (r *PostgresRepository) loadInstallments(ctx context.Context, q querier, orderID string) ([]model.Installment, error) {
	rows, err := q.Query(ctx,
		`SELECT sequence, amount, interest, penalty, due_date, payment_date, status, created_at, updated_at
		 FROM installments
		 WHERE order_id = $1
		 ORDER BY sequence`,
		orderID,
	)
	if err != nil {
		return nil, fmt.Errorf("select installments: %w", err)
	}
	defer rows.Close()

	var res []model.Installment
	for rows.Next() {
		inst := model.Installment{OrderID: orderID}
		var (
			status      string
			dueDate     time.Time
			paymentDate *time.Time
		)
		if err := rows.Scan(&inst.Sequence, &inst.Amount, &inst.Interest, &inst.Penalty, &dueDate,
			&paymentDate, &status, &inst.CreatedAt, &inst.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan installment: %w", err)
		}
		inst.Status = model.InstallmentStatus(status)
		inst.DueDate = r.localDate(dueDate)
		if paymentDate != nil {
			t := paymentDate.In(r.loc)
			inst.PaymentDate = &t
		}
		res = append(res, inst)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return res, nil
}

func (r *PostgresRepository) loadPayments(ctx context.Context, q querier, orderID string) ([]model.Payment, error) {
	rows, err := q.Query(ctx,
		`SELECT id, method_id, amount, commission, installment_sequence, payment_date, status,
		        method_label, reference, currency, idempotency_key, created_at, updated_at
		 FROM payments
		 WHERE order_id = $1
		 ORDER BY created_at, id`,
		orderID,
	)
	if err != nil {
		return nil, fmt.Errorf("select payments: %w", err)
	}
	defer rows.Close()

	var res []model.Payment
	for rows.Next() {
		p := model.Payment{OrderID: orderID}
		var status string
		if err := rows.Scan(&p.ID, &p.MethodID, &p.Amount, &p.Commission, &p.InstallmentSequence,
			&p.PaymentDate, &status, &p.MethodLabel, &p.Reference, &p.Currency, &p.IdempotencyKey,
			&p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan payment: %w", err)
		}
		p.Status = model.PaymentStatus(status)
		res = append(res, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return res, nil
}

func (r *PostgresRepository) saveAggregate(ctx context.Context, tx pgx.Tx, agg *model.OrderAggregate, version int64) error {
	o := agg.Order

	query, args, err := psql.Update("orders").
		Set("payment_type", string(o.PaymentType)).
		Set("currency", o.Currency).
		Set("status", string(o.Status)).
		Set("total", o.Total).
		Set("installment_count", o.InstallmentCount).
		Set("installment_amount", o.InstallmentAmount).
		Set("total_interest", o.TotalInterest).
		Set("annual_interest_rate", o.AnnualInterestRate).
		Set("tracking_code", o.TrackingCode).
		Set("updated_at", o.UpdatedAt).
		Set("version", sq.Expr("version + 1")).
		Where(sq.Eq{"id": o.ID, "version": version}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update order: %w", err)
	}

	tag, err := tx.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update order: %w", err)
	}
	if tag.RowsAffected() != 1 {
		return fmt.Errorf("%w: %s", model.ErrConcurrencyConflict, o.ID)
	}

	for _, inst := range agg.Installments {
		query, args, err := psql.Insert("installments").
			Columns("order_id", "sequence", "amount", "interest", "penalty", "due_date", "payment_date",
				"status", "created_at", "updated_at").
			Values(o.ID, inst.Sequence, inst.Amount, inst.Interest, inst.Penalty, dateParam(inst.DueDate),
				inst.PaymentDate, string(inst.Status), inst.CreatedAt, inst.UpdatedAt).
			Suffix(`ON CONFLICT (order_id, sequence) DO UPDATE SET
				penalty = EXCLUDED.penalty,
				payment_date = EXCLUDED.payment_date,
				status = EXCLUDED.status,
				updated_at = EXCLUDED.updated_at`).
			ToSql()
		if err != nil {
			return fmt.Errorf("build upsert installment: %w", err)
		}
		if _, err := tx.Exec(ctx, query, args...); err != nil {
			return fmt.Errorf("upsert installment %d: %w", inst.Sequence, err)
		}
	}

	for _, p := range agg.Payments {
		query, args, err := psql.Insert("payments").
			Columns("id", "order_id", "method_id", "amount", "commission", "installment_sequence",
				"payment_date", "status", "method_label", "reference", "currency", "idempotency_key",
				"created_at", "updated_at").
			Values(p.ID, o.ID, p.MethodID, p.Amount, p.Commission, p.InstallmentSequence, p.PaymentDate,
				string(p.Status), p.MethodLabel, p.Reference, p.Currency, p.IdempotencyKey, p.CreatedAt, p.UpdatedAt).
			Suffix(`ON CONFLICT (id) DO UPDATE SET
				payment_date = EXCLUDED.payment_date,
				status = EXCLUDED.status,
				updated_at = EXCLUDED.updated_at
				WHERE payments.status <> 'paid'`).
			ToSql()
		if err != nil {
			return fmt.Errorf("build upsert payment: %w", err)
		}
		if _, err := tx.Exec(ctx, query, args...); err != nil {
			switch {
			case isUniqueViolation(err, "payments_paid_installment"):
				return fmt.Errorf("%w: payment %s", model.ErrAlreadySettled, p.ID)
			case isUniqueViolation(err, "payments_idempotency"):
				return fmt.Errorf("%w: duplicate idempotency key %q", model.ErrConcurrencyConflict, p.IdempotencyKey)
			}
			return fmt.Errorf("upsert payment %s: %w", p.ID, err)
		}
	}

	return nil
}

// SumPaidPayments возвращает сумму подтверждённых платежей заказа.
func (r *PostgresRepository) SumPaidPayments(ctx context.Context, orderID string) (decimal.Decimal, error) {
	var sum decimal.Decimal
	err := r.withRetry(ctx, func() error {
		return r.pool.QueryRow(ctx,
			`SELECT COALESCE(SUM(amount), 0)
			 FROM payments
			 WHERE order_id = $1 AND status = $2`,
			orderID, string(model.PaymentStatusPaid),
		).Scan(&sum)
	})
	if err != nil {
		return decimal.Zero, fmt.Errorf("sum paid payments: %w", err)
	}
	return sum, nil
}

// ListOrdersWithDueInstallments возвращает открытые заказы с неоплаченными платежами графика со сроком раньше before.
func (r *PostgresRepository) ListOrdersWithDueInstallments(ctx context.Context, before time.Time, afterID string, limit int) ([]string, error) {
	query, args, err := psql.Select("DISTINCT i.order_id").
		From("installments i").
		Join("orders o ON o.id = i.order_id").
		Where(sq.Eq{"i.status": string(model.InstallmentStatusPending)}).
		Where(sq.Lt{"i.due_date": dateParam(before)}).
		Where(sq.Gt{"i.order_id": afterID}).
		Where(sq.NotEq{"o.status": []string{
			string(model.OrderStatusRejected), string(model.OrderStatusCancelled), string(model.OrderStatusReturned),
		}}).
		OrderBy("i.order_id").
		Limit(uint64(limit)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build due installments query: %w", err)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("select due installments: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan order id: %w", err)
		}
		ids = append(ids, id)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return ids, nil
}

// GetPaymentMethod возвращает способ оплаты.
func (r *PostgresRepository) GetPaymentMethod(ctx context.Context, id int64) (*model.PaymentMethod, error) {
	var (
		m          model.PaymentMethod
		typ        string
		minA, maxA decimal.NullDecimal
	)
	err := r.pool.QueryRow(ctx,
		`SELECT id, type, label, commission_percent, fixed_commission, min_amount, max_amount,
		        supports_installments, max_installments, active
		 FROM payment_methods
		 WHERE id = $1`,
		id,
	).Scan(&m.ID, &typ, &m.Label, &m.CommissionPercent, &m.FixedCommission, &minA, &maxA,
		&m.SupportsInstallments, &m.MaxInstallments, &m.Active)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: %d", model.ErrMethodNotFound, id)
		}
		return nil, fmt.Errorf("select payment method: %w", err)
	}

	m.Type = model.PaymentType(typ)
	m.MinAmount = fromNull(minA)
	m.MaxAmount = fromNull(maxA)
	return &m, nil
}

// SavePaymentMethod создаёт или заменяет способ оплаты.
func (r *PostgresRepository) SavePaymentMethod(ctx context.Context, m model.PaymentMethod) error {
	query, args, err := psql.Insert("payment_methods").
		Columns("id", "type", "label", "commission_percent", "fixed_commission", "min_amount", "max_amount",
			"supports_installments", "max_installments", "active").
		Values(m.ID, string(m.Type), m.Label, m.CommissionPercent, m.FixedCommission, m.MinAmount, m.MaxAmount,
			m.SupportsInstallments, m.MaxInstallments, m.Active).
		Suffix(`ON CONFLICT (id) DO UPDATE SET
			type = EXCLUDED.type,
			label = EXCLUDED.label,
			commission_percent = EXCLUDED.commission_percent,
			fixed_commission = EXCLUDED.fixed_commission,
			min_amount = EXCLUDED.min_amount,
			max_amount = EXCLUDED.max_amount,
			supports_installments = EXCLUDED.supports_installments,
			max_installments = EXCLUDED.max_installments,
			active = EXCLUDED.active`).
		ToSql()
	if err != nil {
		return fmt.Errorf("build upsert payment method: %w", err)
	}

	if _, err := r.pool.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("upsert payment method: %w", err)
	}
	return nil
}

func fromNull(v decimal.NullDecimal) *decimal.Decimal {
	if !v.Valid {
		return nil
	}
	d := v.Decimal
	return &d
}
