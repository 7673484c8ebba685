package policy

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func validRuleSet() *RuleSetDefinition {
	return &RuleSetDefinition{
		Version: "v-test",
		Rules: []RuleDefinition{
			{ID: "Cancel", Condition: `true`, Effect: Effect{NewStatus: StatusCancelled, ReasonCode: "CANCELLED_BY_TEST"}, Terminates: true},
		},
	}
}

func TestValidateRuleSet_Valid(t *testing.T) {
	if err := ValidateRuleSet(validRuleSet()); err != nil {
		t.Errorf("ValidateRuleSet() failed on valid rule set: %v", err)
	}
}

func TestValidateRuleSet_Builtin(t *testing.T) {
	defs, err := BuiltinRuleSets()
	if err != nil {
		t.Fatalf("BuiltinRuleSets() failed: %v", err)
	}
	for _, def := range defs {
		if err := ValidateRuleSet(def); err != nil {
			t.Errorf("built-in rule set %s is invalid: %v", def.Version, err)
		}
	}
}

func TestValidateRuleSet_Invalid(t *testing.T) {
	tooMany := validRuleSet()
	for i := 0; i < maxRules; i++ {
		tooMany.Rules = append(tooMany.Rules, RuleDefinition{ID: fmt.Sprintf("Extra%d", i), Condition: `true`})
	}

	testCases := []struct {
		name    string
		mutate  func(*RuleSetDefinition)
		def     *RuleSetDefinition
		wantErr string
	}{
		{name: "Empty version", mutate: func(d *RuleSetDefinition) { d.Version = "" }, wantErr: "version cannot be empty"},
		{name: "Padded version", mutate: func(d *RuleSetDefinition) { d.Version = " v1" }, wantErr: "whitespace"},
		{name: "No rules", mutate: func(d *RuleSetDefinition) { d.Rules = nil }, wantErr: "at least one rule"},
		{name: "Too many rules", def: tooMany, wantErr: "maximum allowed is 50"},
		{name: "Empty rule id", mutate: func(d *RuleSetDefinition) { d.Rules[0].ID = "" }, wantErr: "cannot be empty"},
		{name: "Rule id with dash", mutate: func(d *RuleSetDefinition) { d.Rules[0].ID = "R1-Payment" }, wantErr: "must match pattern"},
		{name: "Rule id starting with digit", mutate: func(d *RuleSetDefinition) { d.Rules[0].ID = "1Rule" }, wantErr: "must match pattern"},
		{name: "Rule id too long", mutate: func(d *RuleSetDefinition) { d.Rules[0].ID = "R" + strings.Repeat("x", maxIdentifierLen) }, wantErr: "exceeds maximum"},
		{
			name: "Duplicate rule id",
			mutate: func(d *RuleSetDefinition) {
				d.Rules = append(d.Rules, RuleDefinition{ID: "Cancel", Condition: `false`})
			},
			wantErr: "duplicate id",
		},
		{name: "Blank condition", mutate: func(d *RuleSetDefinition) { d.Rules[0].Condition = "  " }, wantErr: "empty condition"},
		{name: "Huge condition", mutate: func(d *RuleSetDefinition) { d.Rules[0].Condition = strings.Repeat("true && ", 600) + "true" }, wantErr: "bytes"},
		{name: "Unknown effect status", mutate: func(d *RuleSetDefinition) { d.Rules[0].Effect.NewStatus = "Lapsed" }, wantErr: "unknown policy status"},
		{name: "Lowercase reason code", mutate: func(d *RuleSetDefinition) { d.Rules[0].Effect.ReasonCode = "cancelled" }, wantErr: "must match pattern"},
		{name: "Reserved reason code", mutate: func(d *RuleSetDefinition) { d.Rules[0].Effect.ReasonCode = ReasonNoTransition }, wantErr: "reserved"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			def := tc.def
			if def == nil {
				def = validRuleSet()
				tc.mutate(def)
			}

			err := ValidateRuleSet(def)
			if err == nil {
				t.Fatal("ValidateRuleSet() should return error")
			}
			if !strings.Contains(err.Error(), tc.wantErr) {
				t.Errorf("error = %v, want it to contain %q", err, tc.wantErr)
			}
		})
	}
}

func TestValidateRuleSet_UnknownStatusIsWrapped(t *testing.T) {
	def := validRuleSet()
	def.Rules[0].Effect.NewStatus = "Expired"

	if err := ValidateRuleSet(def); !errors.Is(err, ErrUnknownStatus) {
		t.Errorf("error = %v, want ErrUnknownStatus", err)
	}
}

func TestValidateRuleSet_Nil(t *testing.T) {
	if err := ValidateRuleSet(nil); err == nil {
		t.Error("ValidateRuleSet(nil) should return error")
	}
}
