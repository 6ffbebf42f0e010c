// Package service реализует сценарии движка расчётов: заказы, платежи, рассрочку и доставку.
package service

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/mmeshcher/delivery-settlement/internal/clock"
	"github.com/mmeshcher/delivery-settlement/internal/installment"
	"github.com/mmeshcher/delivery-settlement/internal/model"
)

// OrderRepository описывает контракт хранилища заказов, платежей и способов оплаты.
type OrderRepository interface {
	Close() error
	CreateOrder(ctx context.Context, agg *model.OrderAggregate) error
	GetOrder(ctx context.Context, id string) (*model.OrderAggregate, error)
	// UpdateOrderAggregate загружает агрегат под эксклюзивной блокировкой заказа, применяет fn
	// и сохраняет результат целиком. Если fn вернула ошибку, ничего не сохраняется.
	UpdateOrderAggregate(ctx context.Context, id string, fn model.UpdateAggregateFn) (*model.OrderAggregate, error)
	SumPaidPayments(ctx context.Context, orderID string) (decimal.Decimal, error)
	// ListOrdersWithDueInstallments возвращает открытые заказы с идентификатором больше afterID,
	// упорядоченные по идентификатору.
	ListOrdersWithDueInstallments(ctx context.Context, before time.Time, afterID string, limit int) ([]string, error)
	GetPaymentMethod(ctx context.Context, id int64) (*model.PaymentMethod, error)
	SavePaymentMethod(ctx context.Context, m model.PaymentMethod) error
}

// ZoneRepository описывает контракт хранилища зон доставки.
type ZoneRepository interface {
	GetZone(ctx context.Context, id int64) (*model.DeliveryZone, error)
	ListTiers(ctx context.Context, zoneID int64) ([]model.DistanceTier, error)
	ListExceptions(ctx context.Context, zoneID int64, date time.Time) ([]model.ZoneException, error)
	SaveZone(ctx context.Context, zone model.DeliveryZone, tiers []model.DistanceTier) error
	SaveZoneException(ctx context.Context, exc model.ZoneException) (int64, error)
}

//go:generate mockgen -destination=mock/mock.go -package=mock github.com/mmeshcher/delivery-settlement/internal/service Publisher,DistanceClient

// Publisher публикует доменные события.
type Publisher interface {
	Publish(ctx context.Context, e model.Event) error
}

// DistanceClient определяет расстояние от зоны до адреса доставки.
type DistanceClient interface {
	Distance(ctx context.Context, zoneID, addressID int64) (decimal.Decimal, error)
}

// Settings содержит бизнес-параметры движка.
type Settings struct {
	Location               *time.Location
	AnnualInterestRate     decimal.Decimal
	MaxInstallments        int
	EarlyPaymentWindowDays int
	OverduePenaltyPercent  decimal.Decimal
	OverdueSweepInterval   time.Duration
	MaxConflictRetries     int
}

const sweepBatchSize = 100

// Service содержит сценарии движка расчётов.
type Service struct {
	repo      OrderRepository
	zones     ZoneRepository
	settings  Settings
	clock     clock.Clock
	logger    *zap.Logger
	publisher Publisher
	distance  DistanceClient
}

// Option настраивает необязательные зависимости сервиса.
type Option func(*Service)

// WithClock задаёт источник времени.
func WithClock(c clock.Clock) Option {
	return func(s *Service) { s.clock = c }
}

// WithLogger задаёт логгер.
func WithLogger(l *zap.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// WithPublisher включает публикацию событий.
func WithPublisher(p Publisher) Option {
	return func(s *Service) { s.publisher = p }
}

// WithDistanceClient включает определение расстояния по адресу.
func WithDistanceClient(c DistanceClient) Option {
	return func(s *Service) { s.distance = c }
}

// NewService создаёт сервис с указанными хранилищами и параметрами.
func NewService(repo OrderRepository, zones ZoneRepository, settings Settings, opts ...Option) *Service {
	if settings.Location == nil {
		settings.Location = time.UTC
	}
	if settings.EarlyPaymentWindowDays <= 0 {
		settings.EarlyPaymentWindowDays = installment.DefaultEarlyPaymentWindowDays
	}
	if settings.OverdueSweepInterval <= 0 {
		settings.OverdueSweepInterval = time.Minute
	}
	if settings.MaxConflictRetries < 0 {
		settings.MaxConflictRetries = 0
	}

	s := &Service{
		repo:     repo,
		zones:    zones,
		settings: settings,
		clock:    clock.Real{},
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Close закрывает ресурсы сервиса.
func (s *Service) Close() error {
	if s.repo != nil {
		return s.repo.Close()
	}
	return nil
}

func (s *Service) now() time.Time {
	return s.clock.Now().In(s.settings.Location)
}

func (s *Service) installmentPolicy() installment.Policy {
	return installment.Policy{EarlyPaymentWindowDays: s.settings.EarlyPaymentWindowDays}
}

// update выполняет единицу работы над заказом, повторяя её при конкурентном изменении.
func (s *Service) update(ctx context.Context, orderID string, fn model.UpdateAggregateFn) (*model.OrderAggregate, error) {
	var err error
	for attempt := 0; attempt <= s.settings.MaxConflictRetries; attempt++ {
		var agg *model.OrderAggregate
		agg, err = s.repo.UpdateOrderAggregate(ctx, orderID, fn)
		if err == nil {
			return agg, nil
		}
		if !errors.Is(err, model.ErrConcurrencyConflict) {
			return nil, err
		}
		s.logger.Warn("order modified concurrently, retrying",
			zap.String("order", orderID), zap.Int("attempt", attempt+1))
	}
	return nil, err
}

func (s *Service) publish(ctx context.Context, eventType, orderID string, data any) {
	if s.publisher == nil {
		return
	}
	e := model.Event{Type: eventType, OrderID: orderID, At: s.now(), Data: data}
	if err := s.publisher.Publish(ctx, e); err != nil {
		s.logger.Warn("publish event failed", zap.String("type", eventType), zap.String("order", orderID), zap.Error(err))
	}
}
