package policy

import (
	"fmt"
	"strings"
)

// ============================================================================
// EXPRESSION LANGUAGE (allow conditions)
// ============================================================================

// CompareOp is a comparison operator of a Condition node.
type CompareOp string

const (
	OpEq  CompareOp = "eq"
	OpNe  CompareOp = "ne"
	OpIn  CompareOp = "in"
	OpGte CompareOp = "gte"
)

// LogicOp is the combinator of an Operation node.
type LogicOp string

const (
	OpAnd LogicOp = "and"
	OpOr  LogicOp = "or"
)

// Expression is the closed condition AST of a rule's allow clause. The set
// of variants is fixed: Literal, FieldRef, Condition, Operation and
// PermissionCheck. Every consumer switches exhaustively on these so a new
// variant is a compile-visible obligation, not a silently ignored default.
type Expression interface {
	exprNode()
	String() string
}

// Literal is a constant value.
type Literal struct {
	Value any
}

func (*Literal) exprNode() {}

func (e *Literal) String() string {
	if s, ok := e.Value.(string); ok {
		return fmt.Sprintf("%q", s)
	}
	return fmt.Sprintf("%v", e.Value)
}

// FieldRef resolves a dotted path against the evaluation context.
// Paths beginning with "user." read the requesting user; everything else
// reads the record data.
type FieldRef struct {
	Path string
}

func (*FieldRef) exprNode() {}

func (e *FieldRef) String() string { return e.Path }

// Condition compares two sub-expressions.
type Condition struct {
	Op    CompareOp
	Left  Expression
	Right Expression
}

func (*Condition) exprNode() {}

func (e *Condition) String() string {
	op := map[CompareOp]string{OpEq: "==", OpNe: "!=", OpIn: "in", OpGte: ">="}[e.Op]
	if op == "" {
		op = string(e.Op)
	}
	return fmt.Sprintf("%s %s %s", e.Left.String(), op, e.Right.String())
}

// Operation combines sub-expressions with AND/OR.
type Operation struct {
	Op   LogicOp
	Args []Expression
}

func (*Operation) exprNode() {}

func (e *Operation) String() string {
	parts := make([]string, 0, len(e.Args))
	for _, a := range e.Args {
		parts = append(parts, a.String())
	}
	return "(" + strings.Join(parts, " "+strings.ToUpper(string(e.Op))+" ") + ")"
}

// PermissionCheck is an access-time gate on a named user permission. It has
// no row-filter meaning.
type PermissionCheck struct {
	Name string
}

func (*PermissionCheck) exprNode() {}

func (e *PermissionCheck) String() string { return fmt.Sprintf("permission(%s)", e.Name) }

// ============================================================================
// EVALUATION
// ============================================================================

// EvalContext provides data for expression evaluation.
type EvalContext struct {
	Data    map[string]any
	User    *User
	Params  map[string]any
	Globals map[string]any
}

// Evaluator turns an Expression into a value for a given context. The engine
// supplies one call per candidate rule and casts the result to boolean.
// Implementations must be deterministic and side-effect free for the
// engine's guarantees to hold; the default is the tree walker below.
type Evaluator interface {
	Evaluate(expr Expression, ctx *EvalContext) (any, error)
}

// TreeEvaluator walks the Expression AST directly.
type TreeEvaluator struct{}

func NewTreeEvaluator() *TreeEvaluator { return &TreeEvaluator{} }

func (t *TreeEvaluator) Evaluate(expr Expression, ctx *EvalContext) (any, error) {
	if expr == nil {
		return nil, fmt.Errorf("nil expression")
	}
	switch e := expr.(type) {
	case *Literal:
		return e.Value, nil
	case *FieldRef:
		return resolvePath(ctx, e.Path), nil
	case *Condition:
		return t.evalCondition(e, ctx)
	case *Operation:
		return t.evalOperation(e, ctx)
	case *PermissionCheck:
		return ctx.User.HasPermission(e.Name), nil
	}
	return nil, fmt.Errorf("unknown expression node %T", expr)
}

func (t *TreeEvaluator) evalCondition(e *Condition, ctx *EvalContext) (bool, error) {
	left, err := t.Evaluate(e.Left, ctx)
	if err != nil {
		return false, err
	}
	right, err := t.Evaluate(e.Right, ctx)
	if err != nil {
		return false, err
	}
	switch e.Op {
	case OpEq:
		return compare(left, right) == 0, nil
	case OpNe:
		return compare(left, right) != 0, nil
	case OpGte:
		return compare(left, right) >= 0, nil
	case OpIn:
		switch vals := right.(type) {
		case []any:
			for _, v := range vals {
				if compare(left, v) == 0 {
					return true, nil
				}
			}
			return false, nil
		case []string:
			for _, v := range vals {
				if compare(left, v) == 0 {
					return true, nil
				}
			}
			return false, nil
		}
		return false, fmt.Errorf("in: right operand is not a list")
	}
	return false, fmt.Errorf("unknown comparison op %q", e.Op)
}

func (t *TreeEvaluator) evalOperation(e *Operation, ctx *EvalContext) (bool, error) {
	switch e.Op {
	case OpAnd:
		for _, arg := range e.Args {
			v, err := t.Evaluate(arg, ctx)
			if err != nil {
				return false, err
			}
			if !Truthy(v) {
				return false, nil
			}
		}
		return true, nil
	case OpOr:
		for _, arg := range e.Args {
			v, err := t.Evaluate(arg, ctx)
			if err != nil {
				return false, err
			}
			if Truthy(v) {
				return true, nil
			}
		}
		return false, nil
	}
	return false, fmt.Errorf("unknown logic op %q", e.Op)
}

// Truthy casts an evaluator result to the boolean the engine acts on.
// Only an actual true grants; every other value, including non-boolean
// results, reads as false.
func Truthy(v any) bool {
	b, ok := v.(bool)
	return ok && b
}

// resolvePath reads a dotted path from the evaluation context. "user.*"
// paths resolve against the user object, everything else against Data.
func resolvePath(ctx *EvalContext, path string) any {
	if rest, ok := strings.CutPrefix(path, "user."); ok {
		return resolveUserField(ctx.User, rest)
	}
	return resolveMapPath(ctx.Data, path)
}

func resolveUserField(u *User, field string) any {
	if u == nil {
		return nil
	}
	switch field {
	case "id":
		return u.ID
	case "roles":
		return u.Roles
	case "permissions":
		return u.Permissions
	default:
		if rest, ok := strings.CutPrefix(field, "attrs."); ok {
			return u.Attrs[rest]
		}
	}
	return nil
}

func resolveMapPath(m map[string]any, path string) any {
	if m == nil {
		return nil
	}
	cur := any(m)
	for _, seg := range strings.Split(path, ".") {
		mm, ok := cur.(map[string]any)
		if !ok {
			return nil
		}
		cur, ok = mm[seg]
		if !ok {
			return nil
		}
	}
	return cur
}

func compare(a, b any) int {
	switch av := a.(type) {

	case []string:
		if bs, ok := b.(string); ok {
			for _, v := range av {
				if v == bs {
					return 0
				}
			}
			return -1
		}

	case string:
		if bv, ok := b.(string); ok {
			switch {
			case av == bv:
				return 0
			case av < bv:
				return -1
			default:
				return 1
			}
		}

	case bool:
		if bv, ok := b.(bool); ok {
			if av == bv {
				return 0
			}
			return -1
		}

	case int:
		switch bv := b.(type) {
		case int:
			return av - bv
		case float64:
			return compareFloats(float64(av), bv)
		}

	case float64:
		switch bv := b.(type) {
		case float64:
			return compareFloats(av, bv)
		case int:
			return compareFloats(av, float64(bv))
		}
	}
	return -1
}

func compareFloats(a, b float64) int {
	switch {
	case a == b:
		return 0
	case a < b:
		return -1
	default:
		return 1
	}
}
