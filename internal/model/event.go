package model

import "time"

// Типы доменных событий.
const (
	EventOrderStatusChanged    = "order.status_changed"
	EventPaymentRecorded       = "payment.recorded"
	EventInstallmentsScheduled = "installments.scheduled"
)

// Event - доменное событие, публикуемое после фиксации изменений заказа.
type Event struct {
	Type    string    `json:"type"`
	OrderID string    `json:"order_id"`
	At      time.Time `json:"at"`
	Data    any       `json:"data,omitempty"`
}
