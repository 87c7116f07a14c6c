// Package webhook provides replay suppression for inbound webhook events.
// Both the registrar and the payment processor redeliver events on timeout.
// An event ID is marked only after the ingestor has dispatched it
// successfully, so a transient processing failure leaves the ID open and the
// provider's redelivery gets another chance; the orchestrator's own
// idempotency covers the window where two deliveries race.
package webhook

import (
	"context"
	"sync"
	"time"
)

// Deduper records which webhook event IDs have already been processed.
type Deduper interface {
	// Seen reports whether the event ID was already marked processed
	// within the retention window.
	Seen(ctx context.Context, eventID string) (bool, error)
	// MarkProcessed records the event ID so later redeliveries are
	// suppressed.
	MarkProcessed(ctx context.Context, eventID string) error
}

// DefaultRetention bounds how long processed event IDs are remembered.
// Processors stop redelivering well inside a day.
const DefaultRetention = 24 * time.Hour

// MemoryDeduper is the single-instance implementation.
type MemoryDeduper struct {
	mu        sync.Mutex
	seen      map[string]time.Time
	retention time.Duration
	now       func() time.Time
}

func NewMemoryDeduper(retention time.Duration) *MemoryDeduper {
	if retention <= 0 {
		retention = DefaultRetention
	}
	return &MemoryDeduper{
		seen:      make(map[string]time.Time),
		retention: retention,
		now:       time.Now,
	}
}

func (d *MemoryDeduper) Seen(_ context.Context, eventID string) (bool, error) {
	if eventID == "" {
		// Unidentifiable events cannot be deduplicated; let them through.
		return false, nil
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	expiry, ok := d.seen[eventID]
	return ok && d.now().Before(expiry), nil
}

func (d *MemoryDeduper) MarkProcessed(_ context.Context, eventID string) error {
	if eventID == "" {
		return nil
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.now()
	d.seen[eventID] = now.Add(d.retention)

	// Opportunistic sweep keeps the map bounded without a background task.
	if len(d.seen) > 10_000 {
		for id, expiry := range d.seen {
			if now.After(expiry) {
				delete(d.seen, id)
			}
		}
	}
	return nil
}
