package repository

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmeshcher/delivery-settlement/internal/model"
)

func unreachableRedis(t *testing.T) *redis.Client {
	t.Helper()

	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestCachedZoneRepositoryFallsBackWithoutRedis(t *testing.T) {
	ctx := context.Background()
	primary := NewMemoryRepository()
	repo := NewCachedZoneRepository(primary, unreachableRedis(t), time.Minute)

	zone := model.DeliveryZone{ID: 1, Name: "centro", CoverageKm: decimal.NewFromInt(3), Active: true}
	tiers := []model.DistanceTier{{DistanceFrom: decimal.Zero, DistanceTo: decimal.NewFromInt(3), Cost: decimal.NewFromInt(3)}}
	require.NoError(t, repo.SaveZone(ctx, zone, tiers))

	got, err := repo.GetZone(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "centro", got.Name)

	list, err := repo.ListTiers(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	date := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	_, err = repo.SaveZoneException(ctx, model.ZoneException{ZoneID: 1, Date: date, Type: model.ExceptionUnavailable})
	require.NoError(t, err)

	excs, err := repo.ListExceptions(ctx, 1, date)
	require.NoError(t, err)
	assert.Len(t, excs, 1)

	_, err = repo.GetZone(ctx, 2)
	assert.ErrorIs(t, err, model.ErrZoneNotFound)
}

func TestCacheKeys(t *testing.T) {
	assert.Equal(t, "zone:5", zoneKey(5))
	assert.Equal(t, "zone:5:tiers", tiersKey(5))
	assert.Equal(t, "zone:5:exceptions:2026-05-01", exceptionsKey(5, time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)))
}
