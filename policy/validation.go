package policy

import (
	"fmt"
	"regexp"
	"strings"
)

const (
	maxRules          = 50
	maxIdentifierLen  = 100
	maxConditionBytes = 4096
)

var (
	ruleIDPattern     = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_]*$`)
	reasonCodePattern = regexp.MustCompile(`^[A-Z][A-Z0-9_]*$`)
)

// ValidateRuleSet checks the structure of a rule set before it is compiled.
// It does not check that conditions compile; CompileRule does that.
func ValidateRuleSet(def *RuleSetDefinition) error {
	if def == nil {
		return fmt.Errorf("rule set is nil")
	}

	version := def.Version
	if version == "" {
		return fmt.Errorf("rule set version cannot be empty")
	}
	if strings.TrimSpace(version) != version {
		return fmt.Errorf("rule set version %q has leading/trailing whitespace", version)
	}

	if len(def.Rules) == 0 {
		return fmt.Errorf("rule set %s must contain at least one rule", version)
	}
	if len(def.Rules) > maxRules {
		return fmt.Errorf("rule set %s contains %d rules, maximum allowed is %d", version, len(def.Rules), maxRules)
	}

	seen := make(map[string]bool, len(def.Rules))
	for i, rule := range def.Rules {
		if err := validateRuleID(rule.ID); err != nil {
			return fmt.Errorf("rule %d: invalid id %q: %w", i, rule.ID, err)
		}
		if seen[rule.ID] {
			return fmt.Errorf("rule %d: duplicate id %q", i, rule.ID)
		}
		seen[rule.ID] = true

		if strings.TrimSpace(rule.Condition) == "" {
			return fmt.Errorf("rule %q has empty condition", rule.ID)
		}
		if len(rule.Condition) > maxConditionBytes {
			return fmt.Errorf("rule %q condition is %d bytes, maximum allowed is %d", rule.ID, len(rule.Condition), maxConditionBytes)
		}

		if err := validateEffect(rule.Effect); err != nil {
			return fmt.Errorf("rule %q: %w", rule.ID, err)
		}
	}

	return nil
}

func validateRuleID(id string) error {
	if len(id) == 0 {
		return fmt.Errorf("identifier cannot be empty")
	}
	if len(id) > maxIdentifierLen {
		return fmt.Errorf("identifier length %d exceeds maximum of %d characters", len(id), maxIdentifierLen)
	}
	if !ruleIDPattern.MatchString(id) {
		return fmt.Errorf("must match pattern %s", ruleIDPattern)
	}
	return nil
}

func validateEffect(e Effect) error {
	if e.NewStatus != "" && !e.NewStatus.Valid() {
		return fmt.Errorf("effect has %w %q", ErrUnknownStatus, e.NewStatus)
	}

	if e.ReasonCode == "" {
		return nil
	}
	if e.ReasonCode == ReasonNoTransition {
		return fmt.Errorf("reason code %s is reserved", ReasonNoTransition)
	}
	if !reasonCodePattern.MatchString(e.ReasonCode) {
		return fmt.Errorf("reason code %q must match pattern %s", e.ReasonCode, reasonCodePattern)
	}
	return nil
}
