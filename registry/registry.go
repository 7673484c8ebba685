// Package registry holds one compiled engine per rule-set version so callers
// can evaluate against the current rules or replay against an older set.
package registry

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/liamcoop/policylifecycle/internal/logger"
	"github.com/liamcoop/policylifecycle/policy"
)

// ErrDefaultRuleSet is returned when removing the rule set serving defaults
var ErrDefaultRuleSet = errors.New("rule set is the default")

// Manager manages compiled engines for every loaded rule-set version
type Manager struct {
	engines        map[string]*policy.Engine
	defaultVersion string
	opts           []policy.Option
	mu             sync.RWMutex
}

// NewManager creates an empty manager. Options are applied to every engine
// it builds.
func NewManager(opts ...policy.Option) *Manager {
	return &Manager{
		engines: make(map[string]*policy.Engine),
		opts:    opts,
	}
}

// LoadBuiltin compiles every rule set embedded in the binary. When no
// default is set yet, the current rule version becomes the default.
func (m *Manager) LoadBuiltin() error {
	defs, err := policy.BuiltinRuleSets()
	if err != nil {
		return fmt.Errorf("failed to load built-in rule sets: %w", err)
	}

	for _, def := range defs {
		if err := m.Register(def); err != nil {
			return fmt.Errorf("failed to initialize rule set %s: %w", def.Version, err)
		}
	}

	m.mu.Lock()
	if m.defaultVersion == "" {
		if _, ok := m.engines[policy.CurrentRuleVersion]; ok {
			m.defaultVersion = policy.CurrentRuleVersion
		}
	}
	m.mu.Unlock()

	logger.Info("rule sets loaded", "count", len(defs), "default", m.DefaultVersion())
	return nil
}

// Register validates and compiles def, then swaps it in under its version.
// A failed compile leaves any engine already registered for that version in
// place.
func (m *Manager) Register(def *policy.RuleSetDefinition) error {
	engine, err := policy.NewEngine(def, m.opts...)
	if err != nil {
		return err
	}

	m.mu.Lock()
	_, replaced := m.engines[def.Version]
	m.engines[def.Version] = engine
	m.mu.Unlock()

	logger.Debug("rule set registered",
		"version", def.Version,
		"rules", len(def.Rules),
		"replaced", replaced)
	return nil
}

// Get returns the engine for version. An empty version selects the default.
func (m *Manager) Get(version string) (*policy.Engine, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if version == "" {
		version = m.defaultVersion
	}

	engine, exists := m.engines[version]
	if !exists {
		return nil, fmt.Errorf("%w: %q", policy.ErrRuleSetNotFound, version)
	}
	return engine, nil
}

// Default returns the engine used when a caller names no version
func (m *Manager) Default() (*policy.Engine, error) {
	return m.Get("")
}

// DefaultVersion returns the version served by Default
func (m *Manager) DefaultVersion() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.defaultVersion
}

// SetDefault points Default at a registered version
func (m *Manager) SetDefault(version string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.engines[version]; !exists {
		return fmt.Errorf("%w: %q", policy.ErrRuleSetNotFound, version)
	}
	m.defaultVersion = version
	return nil
}

// List returns all registered versions, sorted
func (m *Manager) List() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	versions := make([]string, 0, len(m.engines))
	for version := range m.engines {
		versions = append(versions, version)
	}
	sort.Strings(versions)
	return versions
}

// Remove drops a version. The default version cannot be removed.
func (m *Manager) Remove(version string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.engines[version]; !exists {
		return fmt.Errorf("%w: %q", policy.ErrRuleSetNotFound, version)
	}
	if version == m.defaultVersion {
		return fmt.Errorf("%w: %q", ErrDefaultRuleSet, version)
	}

	delete(m.engines, version)
	return nil
}
