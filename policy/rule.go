package policy

import (
	"fmt"

	"github.com/google/cel-go/cel"
)

// costLimit bounds the work a single condition may do per evaluation
const costLimit = 1000000

// Effect is what a matching rule does to the outcome. Both fields are
// optional; a rule with an empty effect is recorded in the trace but changes
// nothing.
type Effect struct {
	NewStatus  PolicyStatus `yaml:"new_status,omitempty" json:"new_status,omitempty"`
	ReasonCode string       `yaml:"reason_code,omitempty" json:"reason_code,omitempty"`
}

// Inert reports whether the effect neither changes status nor emits a reason
func (e Effect) Inert() bool {
	return e.NewStatus == "" && e.ReasonCode == ""
}

// RuleDefinition is the declarative form of a rule as loaded from a rule set
type RuleDefinition struct {
	ID          string `yaml:"id" json:"id"`
	Description string `yaml:"description,omitempty" json:"description,omitempty"`
	Condition   string `yaml:"condition" json:"condition"`
	Effect      Effect `yaml:"effect,omitempty" json:"effect"`
	Terminates  bool   `yaml:"terminates,omitempty" json:"terminates"`
}

// Rule is a compiled RuleDefinition. It is immutable and safe to share
// between goroutines.
type Rule struct {
	def     RuleDefinition
	program cel.Program
}

// Facts is the activation a rule condition is evaluated against.
// It exposes two variables: status (string) and events (list of maps).
type Facts map[string]any

// NewFacts builds the condition activation for one evaluation
func NewFacts(status PolicyStatus, events []PolicyEvent) Facts {
	return newFacts(status, eventRecords(events))
}

func newFacts(status PolicyStatus, records []map[string]any) Facts {
	list := make([]any, len(records))
	for i, rec := range records {
		list[i] = rec
	}
	return Facts{
		"status": string(status),
		"events": list,
	}
}

// NewEnvironment creates the CEL environment rule conditions compile against
func NewEnvironment() (*cel.Env, error) {
	env, err := cel.NewEnv(
		cel.Variable("status", cel.StringType),
		cel.Variable("events", cel.ListType(cel.MapType(cel.StringType, cel.DynType))),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}
	return env, nil
}

// CompileRule type-checks a rule condition and prepares it for evaluation.
// Conditions must produce a bool.
func CompileRule(env *cel.Env, def RuleDefinition) (*Rule, error) {
	ast, issues := env.Compile(def.Condition)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("rule %s: compile error: %w", def.ID, issues.Err())
	}

	if !ast.OutputType().IsExactType(cel.BoolType) {
		return nil, fmt.Errorf("rule %s: condition must evaluate to bool, got %s", def.ID, ast.OutputType())
	}

	prog, err := env.Program(ast,
		cel.EvalOptions(cel.OptTrackState),
		cel.CostLimit(costLimit),
	)
	if err != nil {
		return nil, fmt.Errorf("rule %s: program creation error: %w", def.ID, err)
	}

	return &Rule{def: def, program: prog}, nil
}

// ID returns the rule identifier recorded in traces
func (r *Rule) ID() string { return r.def.ID }

// Effect returns what the rule applies when it matches
func (r *Rule) Effect() Effect { return r.def.Effect }

// Terminates reports whether a match stops evaluation
func (r *Rule) Terminates() bool { return r.def.Terminates }

// Definition returns the declarative form the rule was compiled from
func (r *Rule) Definition() RuleDefinition { return r.def }

// Matches evaluates the rule's condition. A non-boolean result is treated as
// not matched; evaluation errors are returned alongside false.
func (r *Rule) Matches(facts Facts) (bool, error) {
	out, _, err := r.program.Eval(map[string]any(facts))
	if err != nil {
		return false, fmt.Errorf("rule %s: evaluation error: %w", r.def.ID, err)
	}

	matched, ok := out.Value().(bool)
	if !ok {
		return false, nil
	}
	return matched, nil
}
