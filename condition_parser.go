package policy

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// ParseCondition parses a limited condition string into the native
// Expression AST. It intentionally supports the commonly written patterns
// (owner equality, literal comparisons, permission gates, AND/OR chains)
// while keeping parsing simple and deterministic. Config files may use this
// string form interchangeably with the canonical map form.
//
//	uploadedBy == user.id
//	isPublic == true OR uploadedBy == user.id
//	permission(track:publish) AND status == "draft"
func ParseCondition(s string) (Expression, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, fmt.Errorf("policy: empty condition")
	}

	if parts := splitTopLevel(s, "OR"); len(parts) > 1 {
		return parseOperationParts(OpOr, parts)
	}
	if parts := splitTopLevel(s, "AND"); len(parts) > 1 {
		return parseOperationParts(OpAnd, parts)
	}
	return parseAtom(s)
}

func parseOperationParts(op LogicOp, parts []string) (Expression, error) {
	args := make([]Expression, 0, len(parts))
	for _, p := range parts {
		arg, err := ParseCondition(p)
		if err != nil {
			return nil, err
		}
		args = append(args, arg)
	}
	return &Operation{Op: op, Args: args}, nil
}

var (
	permRe = regexp.MustCompile(`^permission\(\s*([^)\s]+)\s*\)$`)
	cmpRe  = regexp.MustCompile(`^([a-zA-Z0-9_.]+)\s*(==|!=|>=)\s*(.+)$`)
	inRe   = regexp.MustCompile(`^([a-zA-Z0-9_.]+)\s+in\s+\[([^\]]*)\]$`)
)

func parseAtom(s string) (Expression, error) {
	switch s {
	case "true":
		return &Literal{Value: true}, nil
	case "false":
		return &Literal{Value: false}, nil
	}

	if m := permRe.FindStringSubmatch(s); len(m) == 2 {
		return &PermissionCheck{Name: m[1]}, nil
	}

	if m := inRe.FindStringSubmatch(s); len(m) == 3 {
		vals := make([]any, 0)
		for _, p := range strings.Split(m[2], ",") {
			p = strings.TrimSpace(p)
			if p == "" {
				continue
			}
			vals = append(vals, parseScalar(p))
		}
		return &Condition{Op: OpIn, Left: &FieldRef{Path: m[1]}, Right: &Literal{Value: vals}}, nil
	}

	if m := cmpRe.FindStringSubmatch(s); len(m) == 4 {
		op := map[string]CompareOp{"==": OpEq, "!=": OpNe, ">=": OpGte}[m[2]]
		return &Condition{Op: op, Left: &FieldRef{Path: m[1]}, Right: parseRHS(m[3])}, nil
	}

	return nil, fmt.Errorf("policy: unsupported condition syntax: %s", s)
}

// parseRHS builds the right-hand side of a comparison: dotted user
// references stay field refs, everything else is a literal.
func parseRHS(s string) Expression {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "user.") {
		return &FieldRef{Path: s}
	}
	return &Literal{Value: parseScalar(s)}
}

func parseScalar(s string) any {
	if len(s) >= 2 && (s[0] == '"' || s[0] == '\'') {
		return strings.Trim(s, `"'`)
	}
	switch s {
	case "true":
		return true
	case "false":
		return false
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	return s
}

// splitTopLevel splits s on the word token (case-insensitive) when it
// occurs outside quotes and brackets.
func splitTopLevel(s, token string) []string {
	var parts []string
	depth := 0
	inQuote := byte(0)
	last := 0
	upper := strings.ToUpper(s)
	token = " " + strings.ToUpper(token) + " "
	for i := 0; i+len(token) <= len(s); i++ {
		c := s[i]
		switch {
		case inQuote != 0:
			if c == inQuote {
				inQuote = 0
			}
		case c == '"' || c == '\'':
			inQuote = c
		case c == '(' || c == '[':
			depth++
		case c == ')' || c == ']':
			depth--
		case depth == 0 && upper[i:i+len(token)] == token:
			parts = append(parts, strings.TrimSpace(s[last:i]))
			last = i + len(token)
			i += len(token) - 1
		}
	}
	if len(parts) == 0 {
		return []string{s}
	}
	parts = append(parts, strings.TrimSpace(s[last:]))
	return parts
}
