package operation

import (
	"context"
)

// Store persists operation records keyed by normalized domain name.
//
// Implementations must serialize writes to the same domain so a
// read-modify-write cannot lose a concurrent update (e.g. a manual retry
// racing a webhook completion), while writes to different domains proceed
// independently.
type Store interface {
	// Upsert merges the update into the record for its domain, creating it
	// if absent, and returns the stored result.
	Upsert(ctx context.Context, u Update) (*Record, error)
	// Execute runs fn against the current record for the domain (nil when
	// none exists) under the store's per-domain write serialization and
	// applies the update fn returns. A nil update leaves the store
	// untouched and returns the current record as-is. Competing completion
	// and transfer paths use this to decide and write without another
	// writer slipping in between.
	Execute(ctx context.Context, domain string, fn func(*Record) (*Update, error)) (*Record, error)
	// List returns all records in insertion order, optionally filtered.
	List(ctx context.Context, f Filter) ([]*Record, error)
	// FindByDomain returns the record for a domain or sentinel.ErrNotFound.
	FindByDomain(ctx context.Context, domain string) (*Record, error)
	// FindByOperationID returns the record currently tracking the given
	// registrar operation, or sentinel.ErrNotFound.
	FindByOperationID(ctx context.Context, operationID string) (*Record, error)
}
