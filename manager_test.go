package policy

import (
	"context"
	"fmt"
	"testing"

	"github.com/oarkflow/policy/logger"
)

// listStore is a minimal in-package RuleStore for manager tests; the real
// implementations live under stores/.
type listStore struct {
	rules []*Rule
	err   error
}

func (s *listStore) ListRules(ctx context.Context) ([]*Rule, error) {
	return s.rules, s.err
}

func TestManagerReloadSwapsEngine(t *testing.T) {
	ctx := context.Background()
	store := &listStore{rules: []*Rule{trackReadRule()}}

	m, err := NewManager(ctx, store, WithLogger(logger.NewNullLogger()))
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	first := m.Engine()

	req := &Request{User: &User{ID: "u1"}, Model: "Track", Action: ActionUpdate, Data: map[string]any{"uploadedBy": "u1"}}
	if first.CheckAccess(req) {
		t.Fatalf("update should not be covered by the initial rule set")
	}

	store.rules = []*Rule{trackReadRule(), trackUpdateRule()}
	if err := m.Reload(ctx); err != nil {
		t.Fatalf("reload: %v", err)
	}
	if m.Engine() == first {
		t.Fatalf("reload must construct a new engine")
	}
	if !m.Engine().CheckAccess(req) {
		t.Fatalf("expected update grant after reload")
	}
	// the old reference keeps its original rule set
	if first.CheckAccess(req) {
		t.Fatalf("previous engine must stay immutable")
	}
}

func TestManagerKeepsEngineOnBadReload(t *testing.T) {
	ctx := context.Background()
	store := &listStore{rules: []*Rule{trackReadRule()}}

	m, err := NewManager(ctx, store, WithLogger(logger.NewNullLogger()))
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	current := m.Engine()

	store.rules = []*Rule{{Model: "", Action: ActionRead}}
	if err := m.Reload(ctx); err == nil {
		t.Fatalf("expected reload to fail on invalid rules")
	}
	if m.Engine() != current {
		t.Fatalf("failed reload must keep the current engine")
	}

	store.rules = nil
	store.err = fmt.Errorf("store offline")
	if err := m.Reload(ctx); err == nil {
		t.Fatalf("expected reload to surface store errors")
	}
	if m.Engine() != current {
		t.Fatalf("store failure must keep the current engine")
	}
}

func TestNewManagerRequiresLoadableRules(t *testing.T) {
	ctx := context.Background()
	if _, err := NewManager(ctx, nil); err == nil {
		t.Fatalf("expected error for nil store")
	}
	if _, err := NewManager(ctx, &listStore{err: fmt.Errorf("down")}); err == nil {
		t.Fatalf("expected error when initial load fails")
	}
}
