package policy

import (
	"encoding/json"
	"fmt"
)

// Canonical map encoding of the Expression union, shared by the config
// loader and the rule stores:
//
//	{"value": v}                                  literal
//	{"field": "path"}                             field reference
//	{"permission": "name"}                        permission gate
//	{"op": "eq", "left": {...}, "right": {...}}   comparison
//	{"op": "and", "args": [{...}, ...]}           combinator

// ExpressionToMap renders an expression in the canonical map form.
func ExpressionToMap(expr Expression) map[string]any {
	switch e := expr.(type) {
	case *Literal:
		return map[string]any{"value": e.Value}
	case *FieldRef:
		return map[string]any{"field": e.Path}
	case *PermissionCheck:
		return map[string]any{"permission": e.Name}
	case *Condition:
		return map[string]any{
			"op":    string(e.Op),
			"left":  ExpressionToMap(e.Left),
			"right": ExpressionToMap(e.Right),
		}
	case *Operation:
		args := make([]any, 0, len(e.Args))
		for _, a := range e.Args {
			args = append(args, ExpressionToMap(a))
		}
		return map[string]any{"op": string(e.Op), "args": args}
	}
	return nil
}

// ParseExpressionMap rebuilds an expression from the canonical map form.
func ParseExpressionMap(m map[string]any) (Expression, error) {
	if m == nil {
		return nil, fmt.Errorf("policy: nil expression map")
	}
	if v, ok := m["field"]; ok {
		path, ok := v.(string)
		if !ok || path == "" {
			return nil, fmt.Errorf("policy: field reference must be a non-empty string")
		}
		return &FieldRef{Path: path}, nil
	}
	if v, ok := m["permission"]; ok {
		name, ok := v.(string)
		if !ok || name == "" {
			return nil, fmt.Errorf("policy: permission name must be a non-empty string")
		}
		return &PermissionCheck{Name: name}, nil
	}
	if v, ok := m["value"]; ok {
		return &Literal{Value: v}, nil
	}
	op, ok := m["op"].(string)
	if !ok {
		return nil, fmt.Errorf("policy: expression map has no field/value/permission/op key")
	}
	switch op {
	case string(OpAnd), string(OpOr):
		rawArgs, ok := m["args"].([]any)
		if !ok {
			return nil, fmt.Errorf("policy: %s operation needs an args list", op)
		}
		args := make([]Expression, 0, len(rawArgs))
		for _, raw := range rawArgs {
			am, ok := raw.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("policy: %s operand is not an expression map", op)
			}
			arg, err := ParseExpressionMap(am)
			if err != nil {
				return nil, err
			}
			args = append(args, arg)
		}
		return &Operation{Op: LogicOp(op), Args: args}, nil
	case string(OpEq), string(OpNe), string(OpIn), string(OpGte):
		left, err := parseOperand(m, "left")
		if err != nil {
			return nil, err
		}
		right, err := parseOperand(m, "right")
		if err != nil {
			return nil, err
		}
		return &Condition{Op: CompareOp(op), Left: left, Right: right}, nil
	}
	return nil, fmt.Errorf("policy: unknown expression op %q", op)
}

func parseOperand(m map[string]any, key string) (Expression, error) {
	om, ok := m[key].(map[string]any)
	if !ok {
		return nil, fmt.Errorf("policy: comparison needs a %s expression map", key)
	}
	return ParseExpressionMap(om)
}

// MarshalExpression encodes an expression as canonical JSON.
func MarshalExpression(expr Expression) ([]byte, error) {
	if expr == nil {
		return []byte("null"), nil
	}
	return json.Marshal(ExpressionToMap(expr))
}

// ParseExpressionJSON decodes canonical JSON back into an expression.
// "null" and empty input yield a nil expression.
func ParseExpressionJSON(data []byte) (Expression, error) {
	if len(data) == 0 || string(data) == "null" {
		return nil, nil
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("policy: parse expression: %w", err)
	}
	return ParseExpressionMap(m)
}

// MarshalJSON renders rules with the allow clause in canonical form, so a
// rule set round-trips through JSON stores unchanged.
func (r *Rule) MarshalJSON() ([]byte, error) {
	type shadow struct {
		Name   string         `json:"name,omitempty"`
		Model  string         `json:"model"`
		Action Action         `json:"action"`
		Allow  map[string]any `json:"allow,omitempty"`
		Fields *FieldRules    `json:"fields,omitempty"`
	}
	s := shadow{Name: r.Name, Model: r.Model, Action: r.Action, Fields: r.Fields}
	if r.Allow != nil {
		s.Allow = ExpressionToMap(r.Allow)
	}
	return json.Marshal(s)
}

func (r *Rule) UnmarshalJSON(data []byte) error {
	type shadow struct {
		Name   string          `json:"name"`
		Model  string          `json:"model"`
		Action Action          `json:"action"`
		Allow  json.RawMessage `json:"allow"`
		Fields *FieldRules     `json:"fields"`
	}
	var s shadow
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	allow, err := ParseExpressionJSON(s.Allow)
	if err != nil {
		return err
	}
	r.Name = s.Name
	r.Model = s.Model
	r.Action = s.Action
	r.Allow = allow
	r.Fields = s.Fields
	return nil
}
