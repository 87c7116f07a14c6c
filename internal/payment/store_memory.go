package payment

import (
	"context"
	"sync"

	"nameclaim/pkg/platform/sentinel"
)

// IntentStore keeps the intents this service created. The processor remains
// the system of record for payment status; this store only carries the order
// context (domains, wallet, checkout state) attached to each intent.
type IntentStore interface {
	Save(ctx context.Context, intent *Intent) error
	FindByID(ctx context.Context, intentID string) (*Intent, error)
	// Execute atomically validates and mutates the intent under the store
	// lock, so concurrent webhook and client verification paths cannot
	// both apply the same transition.
	Execute(ctx context.Context, intentID string, validate func(*Intent) error, mutate func(*Intent)) (*Intent, error)
}

// InMemoryIntentStore is the default store. Intents are short-lived (a
// checkout window), so process-local storage suffices.
type InMemoryIntentStore struct {
	mu      sync.RWMutex
	intents map[string]*Intent
}

func NewInMemoryIntentStore() *InMemoryIntentStore {
	return &InMemoryIntentStore{intents: make(map[string]*Intent)}
}

func (s *InMemoryIntentStore) Save(_ context.Context, intent *Intent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := *intent
	s.intents[intent.ID] = &c
	return nil
}

func (s *InMemoryIntentStore) FindByID(_ context.Context, intentID string) (*Intent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if intent, ok := s.intents[intentID]; ok {
		c := *intent
		return &c, nil
	}
	return nil, sentinel.ErrNotFound
}

func (s *InMemoryIntentStore) Execute(_ context.Context, intentID string, validate func(*Intent) error, mutate func(*Intent)) (*Intent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	intent, ok := s.intents[intentID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	if err := validate(intent); err != nil {
		return nil, err
	}
	mutate(intent)
	c := *intent
	return &c, nil
}
