package stores

import (
	"context"
	"fmt"
	"sync"

	"github.com/oarkflow/policy"
)

// MemoryRuleStore keeps an ordered rule list in memory. Useful for tests
// and for hosts that load rules from config at boot.
type MemoryRuleStore struct {
	mu    sync.RWMutex
	rules []*policy.Rule
}

func NewMemoryRuleStore(rules ...*policy.Rule) *MemoryRuleStore {
	return &MemoryRuleStore{rules: append([]*policy.Rule(nil), rules...)}
}

func (s *MemoryRuleStore) ListRules(ctx context.Context) ([]*policy.Rule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*policy.Rule, len(s.rules))
	copy(out, s.rules)
	return out, nil
}

// ReplaceRules swaps in a whole new ordered rule list.
func (s *MemoryRuleStore) ReplaceRules(ctx context.Context, rules []*policy.Rule) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rules = append([]*policy.Rule(nil), rules...)
	return nil
}

// CreateRule appends a rule to the list.
func (s *MemoryRuleStore) CreateRule(ctx context.Context, r *policy.Rule) error {
	if r == nil {
		return fmt.Errorf("nil rule")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if r.Name != "" {
		for _, existing := range s.rules {
			if existing.Name == r.Name {
				return fmt.Errorf("rule already exists: %s", r.Name)
			}
		}
	}
	s.rules = append(s.rules, r)
	return nil
}

// UpdateRule replaces the named rule in place, preserving its position.
func (s *MemoryRuleStore) UpdateRule(ctx context.Context, r *policy.Rule) error {
	if r == nil || r.Name == "" {
		return fmt.Errorf("rule name is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, existing := range s.rules {
		if existing.Name == r.Name {
			s.rules[i] = r
			return nil
		}
	}
	return fmt.Errorf("rule not found: %s", r.Name)
}

// DeleteRule removes the named rule.
func (s *MemoryRuleStore) DeleteRule(ctx context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, existing := range s.rules {
		if existing.Name == name {
			s.rules = append(s.rules[:i], s.rules[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("rule not found: %s", name)
}
