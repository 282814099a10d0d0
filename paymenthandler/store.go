package paymenthandler

import (
	"context"
	"errors"
	"sync"
)

// ErrNotFound is returned by stores for unknown preimage hashes.
var ErrNotFound = errors.New("paymenthandler: payment data not found")

// Store persists payment records keyed by preimage hash. Implementations
// must be safe for concurrent use; Update must replace the record atomically.
type Store interface {
	Create(ctx context.Context, data *Data) error
	Get(ctx context.Context, preImageHash []byte) (*Data, error)
	Update(ctx context.Context, data *Data) error
}

// MemStore is the in-memory Store used by tests and single-node deployments
// that accept losing payment state on restart.
type MemStore struct {
	mu   sync.RWMutex
	data map[string]*Data
}

// NewMemStore returns an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{data: make(map[string]*Data)}
}

func (s *MemStore) Create(_ context.Context, data *Data) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[string(data.PreImageHash)] = data.clone()
	return nil
}

func (s *MemStore) Get(_ context.Context, preImageHash []byte) (*Data, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.data[string(preImageHash)]
	if !ok {
		return nil, ErrNotFound
	}
	return data.clone(), nil
}

func (s *MemStore) Update(_ context.Context, data *Data) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.data[string(data.PreImageHash)]; !ok {
		return ErrNotFound
	}
	s.data[string(data.PreImageHash)] = data.clone()
	return nil
}
