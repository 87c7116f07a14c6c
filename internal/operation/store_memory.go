package operation

import (
	"context"
	"sync"

	"nameclaim/pkg/platform/sentinel"
	"nameclaim/pkg/requestcontext"
)

// InMemoryStore keeps records in a map guarded by a single RWMutex. Holding
// the write lock across the read-modify-write in Execute gives the per-key
// atomicity the Store contract requires; contention is irrelevant at this
// store's scale.
type InMemoryStore struct {
	mu      sync.RWMutex
	records map[string]*Record
	order   []string
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{records: make(map[string]*Record)}
}

func (s *InMemoryStore) Upsert(ctx context.Context, u Update) (*Record, error) {
	return s.Execute(ctx, u.DomainName, func(*Record) (*Update, error) {
		return &u, nil
	})
}

func (s *InMemoryStore) Execute(ctx context.Context, domain string, fn func(*Record) (*Update, error)) (*Record, error) {
	key := NormalizeDomain(domain)
	if key == "" {
		return nil, sentinel.ErrInvalidState
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing := s.records[key]
	var snapshot *Record
	if existing != nil {
		c := *existing
		snapshot = &c
	}

	u, err := fn(snapshot)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return snapshot, nil
	}

	u.DomainName = key
	rec := merge(existing, *u)
	rec.LastUpdated = requestcontext.Now(ctx)

	if existing == nil {
		s.order = append(s.order, key)
	}
	s.records[key] = &rec

	out := rec
	return &out, nil
}

func (s *InMemoryStore) List(_ context.Context, f Filter) ([]*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	wallet := NormalizeWallet(f.WalletAddress)
	out := make([]*Record, 0, len(s.order))
	for _, key := range s.order {
		rec := s.records[key]
		if wallet != "" && rec.WalletAddress != wallet {
			continue
		}
		c := *rec
		out = append(out, &c)
	}
	return out, nil
}

func (s *InMemoryStore) FindByDomain(_ context.Context, domain string) (*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if rec, ok := s.records[NormalizeDomain(domain)]; ok {
		c := *rec
		return &c, nil
	}
	return nil, sentinel.ErrNotFound
}

func (s *InMemoryStore) FindByOperationID(_ context.Context, operationID string) (*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if operationID == "" {
		return nil, sentinel.ErrNotFound
	}
	for _, key := range s.order {
		if rec := s.records[key]; rec.OperationID == operationID {
			c := *rec
			return &c, nil
		}
	}
	return nil, sentinel.ErrNotFound
}
