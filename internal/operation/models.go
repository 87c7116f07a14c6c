// Package operation defines the persisted registration/transfer operation
// records and the stores that hold them. A record tracks the most recent
// registrar action for a domain; the collection doubles as an audit trail
// and is never pruned.
package operation

import (
	"strings"
	"time"
)

// Status of a registrar operation. Only moves forward: PENDING ends in one of
// the terminal states and never regresses for the same operation ID.
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusCompleted Status = "COMPLETED"
	StatusFailed    Status = "FAILED"
	StatusError     Status = "ERROR"
)

// Terminal reports whether the status is final.
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusError:
		return true
	}
	return false
}

// Valid reports whether s is a known status value.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusCompleted, StatusFailed, StatusError:
		return true
	}
	return false
}

// Kind discriminates what the operation does. A single closed enum instead of
// per-kind boolean flags keeps invalid combinations unrepresentable.
type Kind string

const (
	KindReservation Kind = "RESERVATION"
	KindTransfer    Kind = "TRANSFER"
	KindReturn      Kind = "RETURN"
)

// Valid reports whether k is a known kind value.
func (k Kind) Valid() bool {
	switch k {
	case KindReservation, KindTransfer, KindReturn:
		return true
	}
	return false
}

// Record is the persisted state of the most recent operation for a domain.
// At most one live record exists per domain name; upserts overwrite by key.
type Record struct {
	DomainName    string    `json:"domainName"`
	OperationID   string    `json:"operationId"`
	Status        Status    `json:"status"`
	Kind          Kind      `json:"kind"`
	WalletAddress string    `json:"walletAddress,omitempty"`
	NeedsTransfer bool      `json:"needsTransfer"`
	LastUpdated   time.Time `json:"lastUpdated"`
}

// Update is a partial write applied by Upsert. Zero-valued fields fall back
// to the stored record; set fields win. NeedsTransfer is a pointer because
// false is a meaningful value.
type Update struct {
	DomainName    string
	OperationID   string
	Status        Status
	Kind          Kind
	WalletAddress string
	NeedsTransfer *bool
}

// Filter narrows List results.
type Filter struct {
	WalletAddress string
}

// NormalizeDomain canonicalizes a domain name for use as a store key.
func NormalizeDomain(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// NormalizeWallet canonicalizes a wallet address. Addresses are stored and
// compared case-insensitively so casing mismatches cannot fork records.
func NormalizeWallet(addr string) string {
	return strings.ToLower(strings.TrimSpace(addr))
}

// Bool returns a pointer to b, for building Updates.
func Bool(b bool) *bool { return &b }

// merge applies an update on top of an existing record (nil for a new key)
// and returns the resulting record without a timestamp. Both store
// implementations share this so their semantics cannot drift.
func merge(existing *Record, u Update) Record {
	rec := Record{
		DomainName:    NormalizeDomain(u.DomainName),
		OperationID:   u.OperationID,
		Status:        u.Status,
		Kind:          u.Kind,
		WalletAddress: NormalizeWallet(u.WalletAddress),
	}
	if u.NeedsTransfer != nil {
		rec.NeedsTransfer = *u.NeedsTransfer
	}

	if existing == nil {
		if rec.Status == "" {
			rec.Status = StatusPending
		}
		if rec.Kind == "" {
			rec.Kind = KindReservation
		}
		return rec
	}

	if rec.OperationID == "" {
		rec.OperationID = existing.OperationID
	}
	if rec.Status == "" {
		rec.Status = existing.Status
	}
	if rec.Kind == "" {
		rec.Kind = existing.Kind
	}
	if rec.WalletAddress == "" {
		rec.WalletAddress = existing.WalletAddress
	}
	if u.NeedsTransfer == nil {
		rec.NeedsTransfer = existing.NeedsTransfer
	}

	// A terminal status never regresses to PENDING for the same operation.
	// A new operation ID starts a fresh lifecycle and may be PENDING again.
	if rec.OperationID == existing.OperationID &&
		existing.Status.Terminal() && rec.Status == StatusPending {
		rec.Status = existing.Status
	}

	return rec
}
