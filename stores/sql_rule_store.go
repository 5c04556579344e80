package stores

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/oarkflow/policy"
	"github.com/oarkflow/squealx"
)

// SQLRuleStore persists ordered rule sets in SQL (squealx). Rules must be
// named; the name is the primary key.
type SQLRuleStore struct {
	db *squealx.DB
}

func NewSQLRuleStore(db *squealx.DB) *SQLRuleStore {
	return &SQLRuleStore{db: db}
}

// RuleRecord is a persisted rule with its storage metadata.
type RuleRecord struct {
	Rule      *policy.Rule
	Position  int
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (s *SQLRuleStore) CreateRule(ctx context.Context, r *policy.Rule) error {
	if r == nil || r.Name == "" {
		return fmt.Errorf("rule name is required")
	}
	pos, err := s.nextPosition(ctx)
	if err != nil {
		return err
	}
	return s.insertRule(ctx, r, pos, time.Now())
}

func (s *SQLRuleStore) insertRule(ctx context.Context, r *policy.Rule, position int, now time.Time) error {
	allowJSON, err := policy.MarshalExpression(r.Allow)
	if err != nil {
		return fmt.Errorf("marshal allow: %w", err)
	}
	fieldsJSON, err := marshalFields(r.Fields)
	if err != nil {
		return err
	}
	q := `INSERT INTO policy_rules(name, model, action, allow_json, fields_json, position, created_at, updated_at) VALUES(:name, :model, :action, :allow_json, :fields_json, :position, :created_at, :updated_at)`
	_, err = s.db.NamedExecContext(ctx, q, map[string]any{
		"name":        r.Name,
		"model":       r.Model,
		"action":      string(r.Action),
		"allow_json":  string(allowJSON),
		"fields_json": fieldsJSON,
		"position":    position,
		"created_at":  now,
		"updated_at":  now,
	})
	return err
}

func (s *SQLRuleStore) UpdateRule(ctx context.Context, r *policy.Rule) error {
	if r == nil || r.Name == "" {
		return fmt.Errorf("rule name is required")
	}
	allowJSON, err := policy.MarshalExpression(r.Allow)
	if err != nil {
		return fmt.Errorf("marshal allow: %w", err)
	}
	fieldsJSON, err := marshalFields(r.Fields)
	if err != nil {
		return err
	}
	q := `UPDATE policy_rules SET model=:model, action=:action, allow_json=:allow_json, fields_json=:fields_json, updated_at=:updated_at WHERE name=:name`
	_, err = s.db.NamedExecContext(ctx, q, map[string]any{
		"name":        r.Name,
		"model":       r.Model,
		"action":      string(r.Action),
		"allow_json":  string(allowJSON),
		"fields_json": fieldsJSON,
		"updated_at":  time.Now(),
	})
	return err
}

func (s *SQLRuleStore) DeleteRule(ctx context.Context, name string) error {
	q := `DELETE FROM policy_rules WHERE name = :name`
	_, err := s.db.NamedExecContext(ctx, q, map[string]any{"name": name})
	return err
}

func (s *SQLRuleStore) GetRule(ctx context.Context, name string) (*policy.Rule, error) {
	q := `SELECT name, model, action, allow_json, fields_json FROM policy_rules WHERE name = :name`
	r, err := s.db.NamedQueryContext(ctx, q, map[string]any{"name": name})
	if err != nil {
		return nil, err
	}
	defer r.Close()
	if !r.Next() {
		return nil, fmt.Errorf("rule not found: %s", name)
	}
	return scanRule(r)
}

// ListRules returns the rule set in its stored order.
func (s *SQLRuleStore) ListRules(ctx context.Context) ([]*policy.Rule, error) {
	q := `SELECT name, model, action, allow_json, fields_json FROM policy_rules ORDER BY position, name`
	r, err := s.db.NamedQueryContext(ctx, q, map[string]any{})
	if err != nil {
		return nil, err
	}
	defer r.Close()
	rules := make([]*policy.Rule, 0)
	for r.Next() {
		rule, err := scanRule(r)
		if err != nil {
			return nil, err
		}
		rules = append(rules, rule)
	}
	return rules, nil
}

// ListRecords returns rules with their storage metadata, for inspection
// tooling.
func (s *SQLRuleStore) ListRecords(ctx context.Context) ([]*RuleRecord, error) {
	q := `SELECT name, model, action, allow_json, fields_json, position, created_at, updated_at FROM policy_rules ORDER BY position, name`
	r, err := s.db.NamedQueryContext(ctx, q, map[string]any{})
	if err != nil {
		return nil, err
	}
	defer r.Close()
	records := make([]*RuleRecord, 0)
	for r.Next() {
		var name, model, action, allowJSON, fieldsJSON string
		var position int
		var createdRaw, updatedRaw any
		if err := r.Scan(&name, &model, &action, &allowJSON, &fieldsJSON, &position, &createdRaw, &updatedRaw); err != nil {
			return nil, err
		}
		rule, err := buildRule(name, model, action, allowJSON, fieldsJSON)
		if err != nil {
			return nil, err
		}
		records = append(records, &RuleRecord{
			Rule:      rule,
			Position:  position,
			CreatedAt: scanTime(createdRaw),
			UpdatedAt: scanTime(updatedRaw),
		})
	}
	return records, nil
}

// ReplaceRules swaps the entire stored rule set for the given ordered list.
func (s *SQLRuleStore) ReplaceRules(ctx context.Context, rules []*policy.Rule) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM policy_rules`); err != nil {
		return err
	}
	now := time.Now()
	for i, r := range rules {
		if r == nil || r.Name == "" {
			return fmt.Errorf("rule %d: name is required", i)
		}
		if err := s.insertRule(ctx, r, i, now); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLRuleStore) nextPosition(ctx context.Context) (int, error) {
	r, err := s.db.NamedQueryContext(ctx, `SELECT COALESCE(MAX(position)+1, 0) FROM policy_rules`, map[string]any{})
	if err != nil {
		return 0, err
	}
	defer r.Close()
	pos := 0
	if r.Next() {
		if err := r.Scan(&pos); err != nil {
			return 0, err
		}
	}
	return pos, nil
}

// rowScanner abstracts the row cursor so scan helpers do not depend on the
// driver's rows type.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanRule(r rowScanner) (*policy.Rule, error) {
	var name, model, action, allowJSON, fieldsJSON string
	if err := r.Scan(&name, &model, &action, &allowJSON, &fieldsJSON); err != nil {
		return nil, err
	}
	return buildRule(name, model, action, allowJSON, fieldsJSON)
}

func buildRule(name, model, action, allowJSON, fieldsJSON string) (*policy.Rule, error) {
	allow, err := policy.ParseExpressionJSON([]byte(allowJSON))
	if err != nil {
		return nil, fmt.Errorf("rule %s: %w", name, err)
	}
	fields, err := unmarshalFields(fieldsJSON)
	if err != nil {
		return nil, fmt.Errorf("rule %s: %w", name, err)
	}
	return &policy.Rule{
		Name:   name,
		Model:  model,
		Action: policy.Action(action),
		Allow:  allow,
		Fields: fields,
	}, nil
}

func marshalFields(f *policy.FieldRules) (string, error) {
	if f == nil {
		return "", nil
	}
	data, err := json.Marshal(f)
	if err != nil {
		return "", fmt.Errorf("marshal fields: %w", err)
	}
	return string(data), nil
}

func unmarshalFields(s string) (*policy.FieldRules, error) {
	if s == "" || s == "null" {
		return nil, nil
	}
	f := &policy.FieldRules{}
	if err := json.Unmarshal([]byte(s), f); err != nil {
		return nil, fmt.Errorf("unmarshal fields: %w", err)
	}
	return f, nil
}
