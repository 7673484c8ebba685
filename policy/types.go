package policy

import (
	"encoding/json"
	"errors"
	"fmt"
)

// PolicyStatus is the lifecycle stage of a policy
type PolicyStatus string

const (
	StatusPending   PolicyStatus = "Pending"
	StatusActive    PolicyStatus = "Active"
	StatusSuspended PolicyStatus = "Suspended"
	StatusCancelled PolicyStatus = "Cancelled"
)

// Statuses lists every known status in lifecycle order
var Statuses = []PolicyStatus{StatusPending, StatusActive, StatusSuspended, StatusCancelled}

// ReasonNoTransition is reported when no rule produced a reason code
const ReasonNoTransition = "NO_TRANSITION"

var ErrUnknownStatus = errors.New("unknown policy status")

// ParseStatus converts a wire value into a PolicyStatus.
// Matching is exact; "active" is rejected.
func ParseStatus(s string) (PolicyStatus, error) {
	for _, st := range Statuses {
		if string(st) == s {
			return st, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownStatus, s)
}

// Valid reports whether s is one of the four known statuses
func (s PolicyStatus) Valid() bool {
	_, err := ParseStatus(string(s))
	return err == nil
}

func (s PolicyStatus) String() string {
	return string(s)
}

// UnmarshalJSON rejects statuses outside the known set
func (s *PolicyStatus) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("policy status must be a string: %w", err)
	}
	parsed, err := ParseStatus(raw)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// EvaluatedRule records one rule inspected during an evaluation
type EvaluatedRule struct {
	Rule    string `json:"rule"`
	Matched bool   `json:"matched"`
}

// DecisionTrace is the audit record of a single evaluation.
// InputsHash is a pure function of the status and events that produced it,
// so two traces with the same hash were computed from the same inputs.
type DecisionTrace struct {
	RuleVersion    string          `json:"rule_version"`
	EvaluatedRules []EvaluatedRule `json:"evaluated_rules"`
	InputsHash     string          `json:"inputs_hash"`
	Timestamp      string          `json:"timestamp"`
}

// TransitionResult is the complete output of Engine.Evaluate
type TransitionResult struct {
	PreviousStatus    PolicyStatus  `json:"previous_status"`
	NewStatus         PolicyStatus  `json:"new_status"`
	TransitionApplied bool          `json:"transition_applied"`
	ReasonCodes       []string      `json:"reason_codes"`
	DecisionTrace     DecisionTrace `json:"decision_trace"`
}

// MatchedRules returns the IDs of the rules that matched, in evaluation order
func (r *TransitionResult) MatchedRules() []string {
	var ids []string
	for _, er := range r.DecisionTrace.EvaluatedRules {
		if er.Matched {
			ids = append(ids, er.Rule)
		}
	}
	return ids
}
