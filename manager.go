package policy

import (
	"context"
	"crypto/ed25519"
	"fmt"
	"sync/atomic"
)

// RuleStore supplies rule sets to a Manager. Implementations live under
// stores/ (memory, SQL, redis).
type RuleStore interface {
	ListRules(ctx context.Context) ([]*Rule, error)
}

// Manager owns the live Engine reference for hosts that reload rules at
// runtime. A reload constructs a whole new Engine from the store and swaps
// it in atomically; the previous engine keeps serving in-flight checks
// unchanged.
type Manager struct {
	store  RuleStore
	opts   []EngineOption
	engine atomic.Pointer[Engine]
}

// NewManager loads the initial rule set from the store and constructs the
// first engine. A store or validation failure here is a startup-time fatal.
func NewManager(ctx context.Context, store RuleStore, opts ...EngineOption) (*Manager, error) {
	if store == nil {
		return nil, fmt.Errorf("policy: rule store is required")
	}
	m := &Manager{store: store, opts: opts}
	if err := m.Reload(ctx); err != nil {
		return nil, err
	}
	return m, nil
}

// Engine returns the current engine.
func (m *Manager) Engine() *Engine {
	return m.engine.Load()
}

// Reload lists rules from the store, builds a new engine and swaps it in.
// On any failure the current engine stays in place.
func (m *Manager) Reload(ctx context.Context) error {
	rules, err := m.store.ListRules(ctx)
	if err != nil {
		return fmt.Errorf("policy: reload rules: %w", err)
	}
	return m.Swap(rules)
}

// Swap installs a freshly validated engine over the given rules.
func (m *Manager) Swap(rules []*Rule) error {
	eng, err := NewEngine(rules, m.opts...)
	if err != nil {
		return err
	}
	m.engine.Store(eng)
	return nil
}

// ApplyBundle verifies a signed rule bundle and swaps its rules in. It is
// shaped to serve as a BundleSubscriber for a distributor feed.
func (m *Manager) ApplyBundle(ctx context.Context, pub ed25519.PublicKey, bundle *SignedRuleBundle) error {
	ok, err := VerifyBundle(pub, bundle)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("policy: bundle signature verification failed")
	}
	return m.Swap(bundle.Rules)
}
