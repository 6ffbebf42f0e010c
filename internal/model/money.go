package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// MoneyPlaces - число знаков после запятой для денежных сумм и расстояний.
const MoneyPlaces = 2

// RoundMoney округляет сумму до двух знаков.
func RoundMoney(d decimal.Decimal) decimal.Decimal {
	return d.Round(MoneyPlaces)
}

// HasMoneyPrecision сообщает, укладывается ли значение в два знака после запятой.
func HasMoneyPrecision(d decimal.Decimal) bool {
	return d.Equal(d.Round(MoneyPlaces))
}

// Date отбрасывает время суток, оставляя календарную дату в зоне t.
func Date(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// Ptr возвращает указатель на копию значения.
func Ptr[T any](v T) *T {
	return &v
}
