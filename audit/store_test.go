package audit

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/liamcoop/policylifecycle/policy"
)

func testRecord(id, hash string) *DecisionRecord {
	return &DecisionRecord{
		ID:                id,
		PolicyID:          "POL-1",
		InputsHash:        hash,
		RuleVersion:       "mvp-1.0.0",
		PreviousStatus:    policy.StatusActive,
		NewStatus:         policy.StatusSuspended,
		TransitionApplied: true,
		ReasonCodes:       []string{"PAYMENT_FAILED_TWICE"},
		EvaluatedRules: []policy.EvaluatedRule{
			{Rule: "R2_FraudCancellation", Matched: false},
			{Rule: "R1_PaymentFailureSuspension", Matched: true},
		},
		EvaluatedAt: time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC),
	}
}

// Compile-time check that both stores satisfy the interface
var (
	_ DecisionStore = (*InMemoryDecisionStore)(nil)
	_ DecisionStore = (*PostgresDecisionStore)(nil)
)

func TestInMemoryDecisionStoreAddAndGet(t *testing.T) {
	store := NewInMemoryDecisionStore()

	rec := testRecord("d-1", "sha256:aa")
	if err := store.Add(rec); err != nil {
		t.Fatalf("Add() failed: %v", err)
	}
	if rec.RecordedAt.IsZero() {
		t.Error("Add() should stamp RecordedAt")
	}

	got, err := store.Get("d-1")
	if err != nil {
		t.Fatalf("Get() failed: %v", err)
	}
	if got.InputsHash != "sha256:aa" || got.NewStatus != policy.StatusSuspended {
		t.Errorf("Get() = %+v", got)
	}
	if len(got.EvaluatedRules) != 2 || !got.EvaluatedRules[1].Matched {
		t.Errorf("EvaluatedRules = %+v", got.EvaluatedRules)
	}
}

func TestInMemoryDecisionStoreErrors(t *testing.T) {
	store := NewInMemoryDecisionStore()

	if err := store.Add(testRecord("", "sha256:aa")); err == nil {
		t.Error("Add() should reject empty ID")
	}

	if err := store.Add(testRecord("d-1", "sha256:aa")); err != nil {
		t.Fatalf("Add() failed: %v", err)
	}
	if err := store.Add(testRecord("d-1", "sha256:bb")); !errors.Is(err, ErrDuplicateDecision) {
		t.Errorf("duplicate Add() error = %v, want ErrDuplicateDecision", err)
	}

	if _, err := store.Get("missing"); !errors.Is(err, ErrDecisionNotFound) {
		t.Errorf("Get(missing) error = %v, want ErrDecisionNotFound", err)
	}
}

func TestInMemoryDecisionStoreListByInputsHash(t *testing.T) {
	store := NewInMemoryDecisionStore()

	for i, hash := range []string{"sha256:aa", "sha256:bb", "sha256:aa", "sha256:aa"} {
		if err := store.Add(testRecord(fmt.Sprintf("d-%d", i), hash)); err != nil {
			t.Fatalf("Add() failed: %v", err)
		}
	}

	recs, err := store.ListByInputsHash("sha256:aa")
	if err != nil {
		t.Fatalf("ListByInputsHash() failed: %v", err)
	}
	wantIDs := []string{"d-0", "d-2", "d-3"}
	if len(recs) != len(wantIDs) {
		t.Fatalf("len = %d, want %d", len(recs), len(wantIDs))
	}
	for i, rec := range recs {
		if rec.ID != wantIDs[i] {
			t.Errorf("recs[%d].ID = %s, want %s", i, rec.ID, wantIDs[i])
		}
	}

	empty, err := store.ListByInputsHash("sha256:none")
	if err != nil {
		t.Fatalf("ListByInputsHash() failed: %v", err)
	}
	if len(empty) != 0 {
		t.Errorf("unknown hash returned %d records", len(empty))
	}
}

func TestInMemoryDecisionStoreReturnsCopies(t *testing.T) {
	store := NewInMemoryDecisionStore()
	rec := testRecord("d-1", "sha256:aa")
	if err := store.Add(rec); err != nil {
		t.Fatalf("Add() failed: %v", err)
	}

	rec.ReasonCodes[0] = "CHANGED_AFTER_ADD"

	got, _ := store.Get("d-1")
	got.EvaluatedRules[0].Matched = true

	again, _ := store.Get("d-1")
	if again.ReasonCodes[0] != "PAYMENT_FAILED_TWICE" {
		t.Errorf("stored reason codes changed through caller's record: %v", again.ReasonCodes)
	}
	if again.EvaluatedRules[0].Matched {
		t.Error("stored rules changed through a returned record")
	}
}

func TestInMemoryDecisionStoreConcurrentAdd(t *testing.T) {
	store := NewInMemoryDecisionStore()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if err := store.Add(testRecord(fmt.Sprintf("d-%d", i), "sha256:shared")); err != nil {
				t.Errorf("Add() failed: %v", err)
			}
		}(i)
	}
	wg.Wait()

	recs, err := store.ListByInputsHash("sha256:shared")
	if err != nil {
		t.Fatalf("ListByInputsHash() failed: %v", err)
	}
	if len(recs) != 50 {
		t.Errorf("len = %d, want 50", len(recs))
	}
}
