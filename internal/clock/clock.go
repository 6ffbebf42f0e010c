// Package clock отдаёт текущее время движку расчётов.
package clock

import (
	"sync"
	"time"
)

// Clock возвращает текущее время.
type Clock interface {
	Now() time.Time
}

// Real читает системные часы.
type Real struct{}

// Now возвращает системное время.
func (Real) Now() time.Time {
	return time.Now()
}

// Manual - часы с ручной установкой времени.
type Manual struct {
	mu  sync.Mutex
	now time.Time
}

// NewManual создаёт часы, показывающие t.
func NewManual(t time.Time) *Manual {
	return &Manual{now: t}
}

// Now возвращает установленное время.
func (m *Manual) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

// Set переставляет часы на t.
func (m *Manual) Set(t time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = t
}

// Advance сдвигает часы на d.
func (m *Manual) Advance(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = m.now.Add(d)
}
