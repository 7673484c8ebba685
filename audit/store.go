package audit

import (
	"fmt"
	"sync"
	"time"
)

// DecisionStore persists decision records for replay and audit
type DecisionStore interface {
	// Add records a decision; IDs must be unique
	Add(rec *DecisionRecord) error

	// Get a decision by ID
	Get(id string) (*DecisionRecord, error)

	// ListByInputsHash returns every decision computed from the same inputs,
	// oldest first
	ListByInputsHash(hash string) ([]*DecisionRecord, error)
}

// InMemoryDecisionStore implements DecisionStore using maps guarded by a RWMutex
type InMemoryDecisionStore struct {
	records map[string]*DecisionRecord
	byHash  map[string][]string
	mu      sync.RWMutex
}

// NewInMemoryDecisionStore creates an empty in-memory store
func NewInMemoryDecisionStore() *InMemoryDecisionStore {
	return &InMemoryDecisionStore{
		records: make(map[string]*DecisionRecord),
		byHash:  make(map[string][]string),
	}
}

// Add stores a copy of rec and stamps RecordedAt
func (s *InMemoryDecisionStore) Add(rec *DecisionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if rec.ID == "" {
		return fmt.Errorf("decision ID cannot be empty")
	}
	if _, exists := s.records[rec.ID]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateDecision, rec.ID)
	}

	rec.RecordedAt = time.Now().UTC()
	s.records[rec.ID] = rec.clone()
	s.byHash[rec.InputsHash] = append(s.byHash[rec.InputsHash], rec.ID)
	return nil
}

// Get retrieves a decision by ID
func (s *InMemoryDecisionStore) Get(id string) (*DecisionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, exists := s.records[id]
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrDecisionNotFound, id)
	}
	return rec.clone(), nil
}

// ListByInputsHash returns decisions in insertion order
func (s *InMemoryDecisionStore) ListByInputsHash(hash string) ([]*DecisionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := s.byHash[hash]
	out := make([]*DecisionRecord, 0, len(ids))
	for _, id := range ids {
		out = append(out, s.records[id].clone())
	}
	return out, nil
}
