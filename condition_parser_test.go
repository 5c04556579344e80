package policy

import (
	"reflect"
	"testing"
)

func TestParseConditionOwnerEquality(t *testing.T) {
	expr, err := ParseCondition(`uploadedBy == user.id`)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	want := &Condition{Op: OpEq, Left: &FieldRef{Path: "uploadedBy"}, Right: &FieldRef{Path: "user.id"}}
	if !reflect.DeepEqual(expr, want) {
		t.Fatalf("expected %v, got %v", want, expr)
	}
}

func TestParseConditionLiterals(t *testing.T) {
	cases := []struct {
		in   string
		want Expression
	}{
		{`isPublic == true`, &Condition{Op: OpEq, Left: &FieldRef{Path: "isPublic"}, Right: &Literal{Value: true}}},
		{`status == "draft"`, &Condition{Op: OpEq, Left: &FieldRef{Path: "status"}, Right: &Literal{Value: "draft"}}},
		{`plays >= 10`, &Condition{Op: OpGte, Left: &FieldRef{Path: "plays"}, Right: &Literal{Value: 10}}},
		{`status != "banned"`, &Condition{Op: OpNe, Left: &FieldRef{Path: "status"}, Right: &Literal{Value: "banned"}}},
		{`true`, &Literal{Value: true}},
		{`permission(track:publish)`, &PermissionCheck{Name: "track:publish"}},
		{`genre in ["jazz", "blues"]`, &Condition{Op: OpIn, Left: &FieldRef{Path: "genre"}, Right: &Literal{Value: []any{"jazz", "blues"}}}},
	}
	for _, tc := range cases {
		t.Run(tc.in, func(t *testing.T) {
			expr, err := ParseCondition(tc.in)
			if err != nil {
				t.Fatalf("parse: %v", err)
			}
			if !reflect.DeepEqual(expr, tc.want) {
				t.Fatalf("expected %#v, got %#v", tc.want, expr)
			}
		})
	}
}

func TestParseConditionCombinators(t *testing.T) {
	expr, err := ParseCondition(`isPublic == true OR uploadedBy == user.id`)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	op, ok := expr.(*Operation)
	if !ok || op.Op != OpOr || len(op.Args) != 2 {
		t.Fatalf("expected binary OR, got %#v", expr)
	}

	expr, err = ParseCondition(`permission(admin) AND status == "draft"`)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	op, ok = expr.(*Operation)
	if !ok || op.Op != OpAnd || len(op.Args) != 2 {
		t.Fatalf("expected binary AND, got %#v", expr)
	}
	if _, ok := op.Args[0].(*PermissionCheck); !ok {
		t.Fatalf("expected permission gate as first operand, got %#v", op.Args[0])
	}
}

func TestParseConditionQuotedORStaysLiteral(t *testing.T) {
	expr, err := ParseCondition(`title == "rock OR roll"`)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	cond, ok := expr.(*Condition)
	if !ok {
		t.Fatalf("expected a single condition, got %#v", expr)
	}
	lit, ok := cond.Right.(*Literal)
	if !ok || lit.Value != "rock OR roll" {
		t.Fatalf("expected quoted OR preserved, got %#v", cond.Right)
	}
}

func TestParseConditionRejectsGarbage(t *testing.T) {
	for _, in := range []string{"", "what even is this", "a ==", "== b"} {
		if _, err := ParseCondition(in); err == nil {
			t.Fatalf("expected error for %q", in)
		}
	}
}
