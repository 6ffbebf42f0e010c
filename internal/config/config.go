// Package config содержит логику чтения конфигурации сервиса расчётов.
package config

import (
	"flag"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/shopspring/decimal"

	"github.com/mmeshcher/delivery-settlement/internal/service"
)

const defaultRunAddress = "localhost:8080"

// Config содержит параметры конфигурации сервиса расчётов.
// Адреса и уровень логирования задаются флагами, переменные окружения имеют приоритет.
type Config struct {
	RunAddress             string `env:"RUN_ADDRESS"`
	DatabaseURI            string `env:"DATABASE_URI"`
	RedisAddress           string `env:"REDIS_ADDRESS"`
	KafkaBrokers           string `env:"KAFKA_BROKERS"`
	KafkaTopic             string `env:"KAFKA_TOPIC" envDefault:"settlement.events"`
	DistanceServiceAddress string `env:"DISTANCE_SERVICE_ADDRESS"`
	AuthSecret             string `env:"AUTH_SECRET"`
	AdminSecret            string `env:"ADMIN_SECRET"`
	LogLevel               string `env:"LOG_LEVEL"`
	LogMode                string `env:"LOG_MODE" envDefault:"production"`

	CORSAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envSeparator:"," envDefault:"*"`

	Timezone               string          `env:"TIMEZONE" envDefault:"UTC"`
	AnnualInterestRate     decimal.Decimal `env:"ANNUAL_INTEREST_RATE" envDefault:"0.08"`
	MaxInstallments        int             `env:"MAX_INSTALLMENTS" envDefault:"24"`
	EarlyPaymentWindowDays int             `env:"EARLY_PAYMENT_WINDOW_DAYS" envDefault:"30"`
	OverduePenaltyPercent  decimal.Decimal `env:"OVERDUE_PENALTY_PERCENT" envDefault:"0"`
	OverdueSweepInterval   time.Duration   `env:"OVERDUE_SWEEP_INTERVAL" envDefault:"1m"`
	MaxConflictRetries     int             `env:"MAX_CONFLICT_RETRIES" envDefault:"3"`
	ZoneCacheTTL           time.Duration   `env:"ZONE_CACHE_TTL" envDefault:"5m"`
}

// Parse считывает конфигурацию из флагов командной строки и переменных окружения.
func Parse() (*Config, error) {
	cfg := &Config{}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	envValues := map[*string]string{
		&cfg.RunAddress:             cfg.RunAddress,
		&cfg.DatabaseURI:            cfg.DatabaseURI,
		&cfg.RedisAddress:           cfg.RedisAddress,
		&cfg.KafkaBrokers:           cfg.KafkaBrokers,
		&cfg.DistanceServiceAddress: cfg.DistanceServiceAddress,
		&cfg.LogLevel:               cfg.LogLevel,
	}

	flag.StringVar(&cfg.RunAddress, "a", defaultRunAddress, "address and port for HTTP server")
	flag.StringVar(&cfg.DatabaseURI, "d", "", "database URI, in-memory store when empty")
	flag.StringVar(&cfg.RedisAddress, "c", "", "redis address for zone cache")
	flag.StringVar(&cfg.KafkaBrokers, "k", "", "comma separated kafka brokers for domain events")
	flag.StringVar(&cfg.DistanceServiceAddress, "g", "", "distance service address")
	flag.StringVar(&cfg.LogLevel, "l", "info", "log level")

	flag.Parse()

	for field, value := range envValues {
		if value != "" {
			*field = value
		}
	}

	if cfg.RunAddress == "" {
		cfg.RunAddress = defaultRunAddress
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}

	return cfg, nil
}

// Brokers возвращает список брокеров Kafka.
func (c *Config) Brokers() []string {
	var res []string
	for _, b := range strings.Split(c.KafkaBrokers, ",") {
		if b = strings.TrimSpace(b); b != "" {
			res = append(res, b)
		}
	}
	return res
}

// Settings проверяет бизнес-параметры и собирает настройки сервиса.
func (c *Config) Settings() (service.Settings, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return service.Settings{}, fmt.Errorf("load timezone %q: %w", c.Timezone, err)
	}
	if c.AnnualInterestRate.IsNegative() {
		return service.Settings{}, fmt.Errorf("negative annual interest rate %s", c.AnnualInterestRate)
	}
	if c.OverduePenaltyPercent.IsNegative() {
		return service.Settings{}, fmt.Errorf("negative overdue penalty percent %s", c.OverduePenaltyPercent)
	}
	if c.MaxInstallments < 1 {
		return service.Settings{}, fmt.Errorf("max installments must be positive, got %d", c.MaxInstallments)
	}
	if c.EarlyPaymentWindowDays < 0 {
		return service.Settings{}, fmt.Errorf("negative early payment window %d", c.EarlyPaymentWindowDays)
	}

	return service.Settings{
		Location:               loc,
		AnnualInterestRate:     c.AnnualInterestRate,
		MaxInstallments:        c.MaxInstallments,
		EarlyPaymentWindowDays: c.EarlyPaymentWindowDays,
		OverduePenaltyPercent:  c.OverduePenaltyPercent,
		OverdueSweepInterval:   c.OverdueSweepInterval,
		MaxConflictRetries:     c.MaxConflictRetries,
	}, nil
}
