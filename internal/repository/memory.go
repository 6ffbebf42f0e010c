package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mmeshcher/delivery-settlement/internal/model"
)

// MemoryRepository хранит данные в памяти процесса.
// Изменения одного заказа сериализуются блокировкой этого заказа.
type MemoryRepository struct {
	mu         sync.RWMutex
	orders     map[string]*model.OrderAggregate
	locks      map[string]*sync.Mutex
	methods    map[int64]model.PaymentMethod
	zones      map[int64]model.DeliveryZone
	tiers      map[int64][]model.DistanceTier
	exceptions map[int64][]model.ZoneException
	nextID     int64
}

// NewMemoryRepository создаёт пустое хранилище в памяти.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		orders:     make(map[string]*model.OrderAggregate),
		locks:      make(map[string]*sync.Mutex),
		methods:    make(map[int64]model.PaymentMethod),
		zones:      make(map[int64]model.DeliveryZone),
		tiers:      make(map[int64][]model.DistanceTier),
		exceptions: make(map[int64][]model.ZoneException),
	}
}

// Close ничего не делает.
func (r *MemoryRepository) Close() error {
	return nil
}

// CreateOrder сохраняет новый заказ.
func (r *MemoryRepository) CreateOrder(_ context.Context, agg *model.OrderAggregate) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.orders[agg.Order.ID]; ok {
		return fmt.Errorf("%w: order %s already exists", model.ErrValidation, agg.Order.ID)
	}
	r.orders[agg.Order.ID] = agg.Clone()
	r.locks[agg.Order.ID] = &sync.Mutex{}
	return nil
}

// GetOrder возвращает копию агрегата заказа.
func (r *MemoryRepository) GetOrder(_ context.Context, id string) (*model.OrderAggregate, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	agg, ok := r.orders[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", model.ErrOrderNotFound, id)
	}
	return agg.Clone(), nil
}

// UpdateOrderAggregate применяет fn к копии агрегата под блокировкой заказа и сохраняет результат.
func (r *MemoryRepository) UpdateOrderAggregate(ctx context.Context, id string, fn model.UpdateAggregateFn) (*model.OrderAggregate, error) {
	r.mu.RLock()
	lock, ok := r.locks[id]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", model.ErrOrderNotFound, id)
	}

	lock.Lock()
	defer lock.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	current := r.orders[id]
	work := current.Clone()
	r.mu.RUnlock()

	version := work.Order.Version
	if err := fn(work); err != nil {
		return nil, err
	}
	if err := checkAggregate(work); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.orders[id].Order.Version != version {
		return nil, fmt.Errorf("%w: %s", model.ErrConcurrencyConflict, id)
	}
	work.Order.Version = version + 1
	r.orders[id] = work
	return work.Clone(), nil
}

// SumPaidPayments возвращает сумму подтверждённых платежей заказа.
func (r *MemoryRepository) SumPaidPayments(_ context.Context, orderID string) (decimal.Decimal, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	agg, ok := r.orders[orderID]
	if !ok {
		return decimal.Zero, fmt.Errorf("%w: %s", model.ErrOrderNotFound, orderID)
	}
	return agg.PaidTotal(), nil
}

// ListOrdersWithDueInstallments возвращает открытые заказы с неоплаченными платежами графика
// со сроком раньше before. Идентификаторы идут по возрастанию начиная после afterID.
func (r *MemoryRepository) ListOrdersWithDueInstallments(_ context.Context, before time.Time, afterID string, limit int) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var ids []string
	for id, agg := range r.orders {
		if id <= afterID {
			continue
		}
		switch agg.Order.Status {
		case model.OrderStatusRejected, model.OrderStatusCancelled, model.OrderStatusReturned:
			continue
		}
		for _, inst := range agg.Installments {
			if inst.Status == model.InstallmentStatusPending && inst.DueDate.Before(before) {
				ids = append(ids, id)
				break
			}
		}
	}
	sort.Strings(ids)
	if limit > 0 && len(ids) > limit {
		ids = ids[:limit]
	}
	return ids, nil
}

// GetPaymentMethod возвращает способ оплаты.
func (r *MemoryRepository) GetPaymentMethod(_ context.Context, id int64) (*model.PaymentMethod, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	m, ok := r.methods[id]
	if !ok {
		return nil, fmt.Errorf("%w: %d", model.ErrMethodNotFound, id)
	}
	return &m, nil
}

// SavePaymentMethod создаёт или заменяет способ оплаты.
func (r *MemoryRepository) SavePaymentMethod(_ context.Context, m model.PaymentMethod) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.methods[m.ID] = m
	return nil
}

// GetZone возвращает зону доставки.
func (r *MemoryRepository) GetZone(_ context.Context, id int64) (*model.DeliveryZone, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	z, ok := r.zones[id]
	if !ok {
		return nil, fmt.Errorf("%w: %d", model.ErrZoneNotFound, id)
	}
	return &z, nil
}

// ListTiers возвращает диапазоны зоны по возрастанию начала.
func (r *MemoryRepository) ListTiers(_ context.Context, zoneID int64) ([]model.DistanceTier, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	res := append([]model.DistanceTier(nil), r.tiers[zoneID]...)
	sort.SliceStable(res, func(i, j int) bool { return res[i].DistanceFrom.LessThan(res[j].DistanceFrom) })
	return res, nil
}

// ListExceptions возвращает исключения зоны на дату.
func (r *MemoryRepository) ListExceptions(_ context.Context, zoneID int64, date time.Time) ([]model.ZoneException, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var res []model.ZoneException
	for _, e := range r.exceptions[zoneID] {
		if sameDay(e.Date, date) {
			res = append(res, e)
		}
	}
	return res, nil
}

// SaveZone создаёт или заменяет зону вместе с диапазонами.
func (r *MemoryRepository) SaveZone(_ context.Context, zone model.DeliveryZone, tiers []model.DistanceTier) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.zones[zone.ID] = zone
	stored := make([]model.DistanceTier, len(tiers))
	for i, t := range tiers {
		if t.ID == 0 {
			r.nextID++
			t.ID = r.nextID
		}
		t.ZoneID = zone.ID
		stored[i] = t
	}
	r.tiers[zone.ID] = stored
	return nil
}

// SaveZoneException сохраняет исключение, заменяя исключение того же типа на ту же дату.
func (r *MemoryRepository) SaveZoneException(_ context.Context, exc model.ZoneException) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	list := r.exceptions[exc.ZoneID]
	for i, e := range list {
		if e.Type == exc.Type && sameDay(e.Date, exc.Date) {
			exc.ID = e.ID
			list[i] = exc
			return exc.ID, nil
		}
	}
	r.nextID++
	exc.ID = r.nextID
	r.exceptions[exc.ZoneID] = append(list, exc)
	return exc.ID, nil
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.In(a.Location()).Date()
	return ay == by && am == bm && ad == bd
}
