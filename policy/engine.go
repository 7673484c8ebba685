package policy

import (
	"fmt"
	"slices"
	"time"

	"github.com/liamcoop/policylifecycle/internal/logger"
)

// Engine evaluates a status and its events against one compiled rule set.
// An Engine is immutable after NewEngine returns and may be used from any
// number of goroutines.
type Engine struct {
	def   RuleSetDefinition
	rules []*Rule
	now   func() time.Time
}

// Option configures an Engine
type Option func(*Engine)

// WithClock overrides the clock used for trace timestamps. A nil clock is
// ignored.
func WithClock(now func() time.Time) Option {
	return func(en *Engine) {
		if now != nil {
			en.now = now
		}
	}
}

// NewEngine validates and compiles a rule set
func NewEngine(def *RuleSetDefinition, opts ...Option) (*Engine, error) {
	if err := ValidateRuleSet(def); err != nil {
		return nil, fmt.Errorf("invalid rule set: %w", err)
	}

	env, err := NewEnvironment()
	if err != nil {
		return nil, err
	}

	rules := make([]*Rule, 0, len(def.Rules))
	for _, rd := range def.Rules {
		rule, err := CompileRule(env, rd)
		if err != nil {
			return nil, fmt.Errorf("failed to compile rule set %s: %w", def.Version, err)
		}
		rules = append(rules, rule)
	}

	en := &Engine{
		def:   copyDefinition(def),
		rules: rules,
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(en)
	}
	return en, nil
}

// NewDefaultEngine builds an engine for the embedded CurrentRuleVersion
func NewDefaultEngine(opts ...Option) (*Engine, error) {
	def, err := BuiltinRuleSet(CurrentRuleVersion)
	if err != nil {
		return nil, err
	}
	return NewEngine(def, opts...)
}

// Version is the rule set version stamped on every trace
func (en *Engine) Version() string {
	return en.def.Version
}

// Definition returns a copy of the rule set this engine was built from
func (en *Engine) Definition() RuleSetDefinition {
	return copyDefinition(&en.def)
}

// Rules returns the compiled rules in priority order
func (en *Engine) Rules() []*Rule {
	out := make([]*Rule, len(en.rules))
	copy(out, en.rules)
	return out
}

// Evaluate applies the rule set to the current status and events.
//
// Rules run in priority order. Each inspected rule is appended to the trace.
// A matching rule applies its effect; a matching terminating rule also stops
// evaluation. When no rule emits a reason the result carries
// ReasonNoTransition. The inputs are never modified.
//
// The only error is a failure to compute the inputs digest.
func (en *Engine) Evaluate(current PolicyStatus, events []PolicyEvent) (*TransitionResult, error) {
	records := eventRecords(events)

	hash, err := inputsHash(current, records)
	if err != nil {
		return nil, err
	}

	trace := DecisionTrace{
		RuleVersion:    en.def.Version,
		EvaluatedRules: make([]EvaluatedRule, 0, len(en.rules)),
		InputsHash:     hash,
		Timestamp:      en.now().UTC().Format(time.RFC3339Nano),
	}

	facts := newFacts(current, records)
	next := current
	var reasons []string

	for _, rule := range en.rules {
		matched, err := rule.Matches(facts)
		if err != nil {
			logger.Warn("rule evaluation failed, treating as not matched",
				"rule", rule.ID(), "rule_version", en.def.Version, "error", err)
			matched = false
		}
		trace.EvaluatedRules = append(trace.EvaluatedRules, EvaluatedRule{Rule: rule.ID(), Matched: matched})

		if !matched {
			continue
		}

		effect := rule.Effect()
		if effect.NewStatus != "" {
			next = effect.NewStatus
		}
		if effect.ReasonCode != "" && !slices.Contains(reasons, effect.ReasonCode) {
			reasons = append(reasons, effect.ReasonCode)
		}
		if rule.Terminates() {
			break
		}
	}

	if len(reasons) == 0 {
		reasons = []string{ReasonNoTransition}
	}

	return &TransitionResult{
		PreviousStatus:    current,
		NewStatus:         next,
		TransitionApplied: next != current,
		ReasonCodes:       reasons,
		DecisionTrace:     trace,
	}, nil
}

func copyDefinition(def *RuleSetDefinition) RuleSetDefinition {
	out := *def
	out.Rules = make([]RuleDefinition, len(def.Rules))
	copy(out.Rules, def.Rules)
	return out
}
