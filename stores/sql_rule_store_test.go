package stores

import (
	"context"
	"database/sql"
	"testing"

	"github.com/oarkflow/squealx"
	_ "modernc.org/sqlite"

	"github.com/oarkflow/policy"
)

func newSQLStore(t *testing.T) *SQLRuleStore {
	t.Helper()
	sqlDB, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { sqlDB.Close() })
	db := squealx.NewDb(sqlDB, "sqlite", "testdb")

	if err := Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return NewSQLRuleStore(db)
}

func ownerRule(name, model string, action policy.Action) *policy.Rule {
	return &policy.Rule{
		Name:   name,
		Model:  model,
		Action: action,
		Allow: &policy.Condition{
			Op:    policy.OpEq,
			Left:  &policy.FieldRef{Path: "uploadedBy"},
			Right: &policy.FieldRef{Path: "user.id"},
		},
		Fields: &policy.FieldRules{Write: []string{"title"}, Deny: []string{"uploadedBy"}},
	}
}

func TestSQLRuleStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := newSQLStore(t)

	rule := ownerRule("track-update", "Track", policy.ActionUpdate)
	if err := store.CreateRule(ctx, rule); err != nil {
		t.Fatalf("create: %v", err)
	}

	got, err := store.GetRule(ctx, "track-update")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Model != "Track" || got.Action != policy.ActionUpdate {
		t.Fatalf("unexpected rule: %+v", got)
	}
	if got.Allow == nil || got.Allow.String() != rule.Allow.String() {
		t.Fatalf("allow expression did not survive the round trip: %v", got.Allow)
	}
	if got.Fields == nil || len(got.Fields.Deny) != 1 || got.Fields.Deny[0] != "uploadedBy" {
		t.Fatalf("field rules did not survive the round trip: %+v", got.Fields)
	}
}

func TestSQLRuleStoreListPreservesOrder(t *testing.T) {
	ctx := context.Background()
	store := newSQLStore(t)

	names := []string{"z-first", "a-second", "m-third"}
	for _, n := range names {
		if err := store.CreateRule(ctx, ownerRule(n, "Track", policy.ActionRead)); err != nil {
			t.Fatalf("create %s: %v", n, err)
		}
	}

	rules, err := store.ListRules(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(rules) != 3 {
		t.Fatalf("expected 3 rules, got %d", len(rules))
	}
	for i, n := range names {
		if rules[i].Name != n {
			t.Fatalf("expected %s at position %d, got %s", n, i, rules[i].Name)
		}
	}
}

func TestSQLRuleStoreReplaceRules(t *testing.T) {
	ctx := context.Background()
	store := newSQLStore(t)

	if err := store.CreateRule(ctx, ownerRule("old", "Track", policy.ActionRead)); err != nil {
		t.Fatalf("create: %v", err)
	}
	replacement := []*policy.Rule{
		ownerRule("new-a", "Album", policy.ActionRead),
		ownerRule("new-b", "Album", policy.ActionUpdate),
	}
	if err := store.ReplaceRules(ctx, replacement); err != nil {
		t.Fatalf("replace: %v", err)
	}

	rules, err := store.ListRules(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(rules) != 2 || rules[0].Name != "new-a" || rules[1].Name != "new-b" {
		t.Fatalf("unexpected rule set after replace: %+v", rules)
	}
}

func TestSQLRuleStoreUpdateAndDelete(t *testing.T) {
	ctx := context.Background()
	store := newSQLStore(t)

	rule := ownerRule("track-update", "Track", policy.ActionUpdate)
	if err := store.CreateRule(ctx, rule); err != nil {
		t.Fatalf("create: %v", err)
	}

	rule.Fields = &policy.FieldRules{Write: []string{"title", "description"}}
	if err := store.UpdateRule(ctx, rule); err != nil {
		t.Fatalf("update: %v", err)
	}
	got, err := store.GetRule(ctx, "track-update")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(got.Fields.Write) != 2 {
		t.Fatalf("update not persisted: %+v", got.Fields)
	}

	if err := store.DeleteRule(ctx, "track-update"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := store.GetRule(ctx, "track-update"); err == nil {
		t.Fatalf("expected get to fail after delete")
	}
}

func TestSQLRuleStoreRecords(t *testing.T) {
	ctx := context.Background()
	store := newSQLStore(t)

	if err := store.CreateRule(ctx, ownerRule("r1", "Track", policy.ActionRead)); err != nil {
		t.Fatalf("create: %v", err)
	}
	records, err := store.ListRecords(ctx)
	if err != nil {
		t.Fatalf("records: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}
	if records[0].CreatedAt.IsZero() || records[0].UpdatedAt.IsZero() {
		t.Fatalf("expected timestamps to be set, got %+v", records[0])
	}
}
