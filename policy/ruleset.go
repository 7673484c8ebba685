package policy

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"sort"

	"gopkg.in/yaml.v3"
)

// CurrentRuleVersion is the rule set used when a caller does not ask for one
const CurrentRuleVersion = "mvp-1.0.0"

var ErrRuleSetNotFound = errors.New("rule set not found")

//go:embed rulesets/*.yaml
var builtinRuleSets embed.FS

// RuleSetDefinition is an ordered list of rules bound to a version string.
// Order is priority: the first rule is evaluated first.
type RuleSetDefinition struct {
	Version     string           `yaml:"version" json:"version"`
	Description string           `yaml:"description,omitempty" json:"description,omitempty"`
	Rules       []RuleDefinition `yaml:"rules" json:"rules"`
}

// ParseRuleSet decodes a YAML rule set. Unknown keys are rejected so a typo
// in a field name cannot silently drop an effect.
func ParseRuleSet(data []byte) (*RuleSetDefinition, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var def RuleSetDefinition
	if err := dec.Decode(&def); err != nil {
		return nil, fmt.Errorf("failed to parse rule set: %w", err)
	}
	return &def, nil
}

// BuiltinRuleSets returns every rule set shipped with the binary, sorted by
// file name.
func BuiltinRuleSets() ([]*RuleSetDefinition, error) {
	entries, err := fs.ReadDir(builtinRuleSets, "rulesets")
	if err != nil {
		return nil, fmt.Errorf("failed to read embedded rule sets: %w", err)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	defs := make([]*RuleSetDefinition, 0, len(entries))
	for _, entry := range entries {
		data, err := builtinRuleSets.ReadFile(path.Join("rulesets", entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", entry.Name(), err)
		}
		def, err := ParseRuleSet(data)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", entry.Name(), err)
		}
		defs = append(defs, def)
	}
	return defs, nil
}

// BuiltinRuleSet returns the embedded rule set with the given version
func BuiltinRuleSet(version string) (*RuleSetDefinition, error) {
	defs, err := BuiltinRuleSets()
	if err != nil {
		return nil, err
	}
	for _, def := range defs {
		if def.Version == version {
			return def, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrRuleSetNotFound, version)
}
