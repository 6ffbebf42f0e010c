package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mmeshcher/delivery-settlement/internal/model"
)

// ZoneStore - хранилище зон, которое кэширует CachedZoneRepository.
type ZoneStore interface {
	GetZone(ctx context.Context, id int64) (*model.DeliveryZone, error)
	ListTiers(ctx context.Context, zoneID int64) ([]model.DistanceTier, error)
	ListExceptions(ctx context.Context, zoneID int64, date time.Time) ([]model.ZoneException, error)
	SaveZone(ctx context.Context, zone model.DeliveryZone, tiers []model.DistanceTier) error
	SaveZoneException(ctx context.Context, exc model.ZoneException) (int64, error)
}

// CachedZoneRepository читает зоны, диапазоны и исключения через Redis.
// Недоступность Redis не влияет на результат: чтение уходит в основное хранилище.
type CachedZoneRepository struct {
	primary     ZoneStore
	redisClient *redis.Client
	ttl         time.Duration
}

// NewCachedZoneRepository создаёт кэширующую обёртку над хранилищем зон.
func NewCachedZoneRepository(primary ZoneStore, redisClient *redis.Client, ttl time.Duration) *CachedZoneRepository {
	return &CachedZoneRepository{
		primary:     primary,
		redisClient: redisClient,
		ttl:         ttl,
	}
}

func zoneKey(id int64) string {
	return fmt.Sprintf("zone:%d", id)
}

func tiersKey(zoneID int64) string {
	return fmt.Sprintf("zone:%d:tiers", zoneID)
}

func exceptionsKey(zoneID int64, date time.Time) string {
	return fmt.Sprintf("zone:%d:exceptions:%s", zoneID, date.Format(time.DateOnly))
}

// GetZone возвращает зону доставки.
func (r *CachedZoneRepository) GetZone(ctx context.Context, id int64) (*model.DeliveryZone, error) {
	var zone model.DeliveryZone
	if r.load(ctx, zoneKey(id), &zone) {
		return &zone, nil
	}

	z, err := r.primary.GetZone(ctx, id)
	if err != nil {
		return nil, err
	}
	r.store(ctx, zoneKey(id), z)
	return z, nil
}

// ListTiers возвращает диапазоны зоны.
func (r *CachedZoneRepository) ListTiers(ctx context.Context, zoneID int64) ([]model.DistanceTier, error) {
	var tiers []model.DistanceTier
	if r.load(ctx, tiersKey(zoneID), &tiers) {
		return tiers, nil
	}

	tiers, err := r.primary.ListTiers(ctx, zoneID)
	if err != nil {
		return nil, err
	}
	r.store(ctx, tiersKey(zoneID), tiers)
	return tiers, nil
}

// ListExceptions возвращает исключения зоны на дату.
func (r *CachedZoneRepository) ListExceptions(ctx context.Context, zoneID int64, date time.Time) ([]model.ZoneException, error) {
	key := exceptionsKey(zoneID, date)

	var list []model.ZoneException
	if r.load(ctx, key, &list) {
		for i := range list {
			list[i].Date = model.Date(list[i].Date.In(date.Location()))
		}
		return list, nil
	}

	list, err := r.primary.ListExceptions(ctx, zoneID, date)
	if err != nil {
		return nil, err
	}
	r.store(ctx, key, list)
	return list, nil
}

// SaveZone сохраняет зону и сбрасывает её кэш.
func (r *CachedZoneRepository) SaveZone(ctx context.Context, zone model.DeliveryZone, tiers []model.DistanceTier) error {
	defer r.redisClient.Del(ctx, zoneKey(zone.ID), tiersKey(zone.ID))
	return r.primary.SaveZone(ctx, zone, tiers)
}

// SaveZoneException сохраняет исключение и сбрасывает кэш исключений на его дату.
func (r *CachedZoneRepository) SaveZoneException(ctx context.Context, exc model.ZoneException) (int64, error) {
	defer r.redisClient.Del(ctx, exceptionsKey(exc.ZoneID, exc.Date))
	return r.primary.SaveZoneException(ctx, exc)
}

func (r *CachedZoneRepository) load(ctx context.Context, key string, dst any) bool {
	data, err := r.redisClient.Get(ctx, key).Bytes()
	if err != nil {
		return false
	}
	return json.Unmarshal(data, dst) == nil
}

func (r *CachedZoneRepository) store(ctx context.Context, key string, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	r.redisClient.Set(ctx, key, data, r.ttl)
}
