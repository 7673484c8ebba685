package audit

import (
	"errors"
	"time"

	"github.com/liamcoop/policylifecycle/policy"
)

var (
	ErrDecisionNotFound  = errors.New("decision not found")
	ErrDuplicateDecision = errors.New("decision already recorded")
)

// DecisionRecord is a persisted decision trace together with the outcome it
// led to. Records never hold the raw events, only their digest.
type DecisionRecord struct {
	ID                string                 `json:"id"`
	PolicyID          string                 `json:"policy_id,omitempty"`
	InputsHash        string                 `json:"inputs_hash"`
	RuleVersion       string                 `json:"rule_version"`
	PreviousStatus    policy.PolicyStatus    `json:"previous_status"`
	NewStatus         policy.PolicyStatus    `json:"new_status"`
	TransitionApplied bool                   `json:"transition_applied"`
	ReasonCodes       []string               `json:"reason_codes"`
	EvaluatedRules    []policy.EvaluatedRule `json:"evaluated_rules"`
	EvaluatedAt       time.Time              `json:"evaluated_at"`
	RecordedAt        time.Time              `json:"recorded_at"`
}

func (r *DecisionRecord) clone() *DecisionRecord {
	out := *r
	out.ReasonCodes = append([]string(nil), r.ReasonCodes...)
	out.EvaluatedRules = append([]policy.EvaluatedRule(nil), r.EvaluatedRules...)
	return &out
}

func cloneAll(recs []*DecisionRecord) []*DecisionRecord {
	out := make([]*DecisionRecord, len(recs))
	for i, r := range recs {
		out[i] = r.clone()
	}
	return out
}
