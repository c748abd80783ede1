// Package events publishes the engine's order lifecycle notifications.
package events

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Event types emitted by the engine.
const (
	TypeOrderCreated         = "order.created"
	TypeOrderCancelled       = "order.cancelled"
	TypeOrderTriggered       = "order.triggered"
	TypeOrderExecuted        = "order.executed"
	TypeOrderExecutionFailed = "order.execution_failed"
)

// Event is one lifecycle notification.
type Event struct {
	Type      string          `json:"type"`
	OrderID   uuid.UUID       `json:"order_id"`
	Owner     uuid.UUID       `json:"owner,omitempty"`
	VenueKey  string          `json:"venue_key,omitempty"`
	Amount    decimal.Decimal `json:"amount,omitempty"`
	Tick      int64           `json:"tick,omitempty"`
	Reason    string          `json:"reason,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

// Publisher delivers engine events to the outside world. Publish failures
// must not abort the operation that raised the event; the engine logs and
// moves on.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
	Close() error
}

// Recorder collects events in memory for tests and the dev server.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

// NewRecorder creates an empty recorder.
func NewRecorder() *Recorder { return &Recorder{} }

// Publish implements Publisher.
func (r *Recorder) Publish(ctx context.Context, e Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

// Close implements Publisher.
func (r *Recorder) Close() error { return nil }

// Events returns a snapshot of everything published so far.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// OfType filters the recorded events by type.
func (r *Recorder) OfType(eventType string) []Event {
	var out []Event
	for _, e := range r.Events() {
		if e.Type == eventType {
			out = append(out, e)
		}
	}
	return out
}
