package audit

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/liamcoop/policylifecycle/internal/logger"
	"github.com/liamcoop/policylifecycle/policy"
)

// Recorder turns evaluation results into decision records and serves them
// back, reading through a cache keyed by inputs hash
type Recorder struct {
	store DecisionStore
	cache DecisionCache
	newID func() string
}

// NewRecorder wires a store and cache. A nil cache disables caching.
func NewRecorder(store DecisionStore, cache DecisionCache) *Recorder {
	return &Recorder{
		store: store,
		cache: cache,
		newID: func() string { return uuid.NewString() },
	}
}

// NewRecord builds the record for a result without storing it
func NewRecord(id, policyID string, result *policy.TransitionResult) *DecisionRecord {
	trace := result.DecisionTrace

	evaluatedAt, err := time.Parse(time.RFC3339Nano, trace.Timestamp)
	if err != nil {
		evaluatedAt = time.Now().UTC()
	}

	return &DecisionRecord{
		ID:                id,
		PolicyID:          policyID,
		InputsHash:        trace.InputsHash,
		RuleVersion:       trace.RuleVersion,
		PreviousStatus:    result.PreviousStatus,
		NewStatus:         result.NewStatus,
		TransitionApplied: result.TransitionApplied,
		ReasonCodes:       append([]string{}, result.ReasonCodes...),
		EvaluatedRules:    append([]policy.EvaluatedRule{}, trace.EvaluatedRules...),
		EvaluatedAt:       evaluatedAt.UTC(),
	}
}

// Record stores the decision for result and returns the stored record
func (r *Recorder) Record(policyID string, result *policy.TransitionResult) (*DecisionRecord, error) {
	rec := NewRecord(r.newID(), policyID, result)

	if err := r.store.Add(rec); err != nil {
		return nil, fmt.Errorf("failed to record decision: %w", err)
	}

	if r.cache != nil {
		r.cache.Invalidate(rec.InputsHash)
	}

	logger.Debug("decision recorded",
		"decision_id", rec.ID,
		"policy_id", policyID,
		"inputs_hash", rec.InputsHash,
		"new_status", rec.NewStatus)

	return rec, nil
}

// Get returns a single decision
func (r *Recorder) Get(id string) (*DecisionRecord, error) {
	return r.store.Get(id)
}

// ListByInputsHash returns all decisions made from the same inputs
func (r *Recorder) ListByInputsHash(hash string) ([]*DecisionRecord, error) {
	var gen uint64
	if r.cache != nil {
		recs, g, ok := r.cache.Get(hash)
		if ok {
			return recs, nil
		}
		gen = g
	}

	recs, err := r.store.ListByInputsHash(hash)
	if err != nil {
		return nil, err
	}

	// A Record that lands between the read and here bumps the generation,
	// so the stale list is not cached
	if r.cache != nil {
		r.cache.Set(hash, gen, recs)
	}
	return recs, nil
}

// Ping checks the backing store when it supports it
func (r *Recorder) Ping() error {
	if p, ok := r.store.(interface{ Ping() error }); ok {
		return p.Ping()
	}
	return nil
}
