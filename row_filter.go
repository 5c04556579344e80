package policy

// rowFilterUserRef is the field path whose value is substituted with the
// live user id during extraction.
const rowFilterUserRef = "user.id"

// ExtractRowFilter translates an allow expression into a Filter by pure
// structural recognition, so the result can be attached to a set query
// instead of re-evaluating the expression per fetched row. It is total and
// side-effect free: shapes with no row meaning, and shapes it cannot
// decompose, yield an empty filter.
//
// Callers that need a guarantee that every constraining shape was captured
// should validate rules with ExpressionDecomposable first; the engine does
// this at construction unless lenient row filters are enabled.
func ExtractRowFilter(expr Expression, user *User) Filter {
	if expr == nil {
		return Filter{}
	}
	switch e := expr.(type) {
	case *Condition:
		return extractCondition(e, user)
	case *Operation:
		sub := make([]Filter, 0, len(e.Args))
		for _, arg := range e.Args {
			if f := ExtractRowFilter(arg, user); len(f) > 0 {
				sub = append(sub, f)
			}
		}
		switch len(sub) {
		case 0:
			return Filter{}
		case 1:
			return sub[0]
		}
		if e.Op == OpOr {
			return Filter{FilterOr: sub}
		}
		return Filter{FilterAnd: sub}
	case *PermissionCheck:
		// access-time gate, no row constraint
		return Filter{}
	case *Literal, *FieldRef:
		return Filter{}
	}
	return Filter{}
}

func extractCondition(e *Condition, user *User) Filter {
	if e.Op != OpEq {
		return Filter{}
	}
	field, ok := e.Left.(*FieldRef)
	if !ok {
		return Filter{}
	}
	switch right := e.Right.(type) {
	case *FieldRef:
		if right.Path == rowFilterUserRef {
			id := ""
			if user != nil {
				id = user.ID
			}
			return Filter{field.Path: id}
		}
	case *Literal:
		return Filter{field.Path: right.Value}
	}
	return Filter{}
}

// ExpressionDecomposable reports whether every access-constraining shape in
// expr translates into a row filter. Shapes with no row meaning (literals
// and permission checks) count as decomposable; a comparison the extractor
// cannot turn into a {field: value} pair does not, because the access check
// could then grant narrowly while the extracted filter admits every row.
func ExpressionDecomposable(expr Expression) bool {
	if expr == nil {
		return true
	}
	switch e := expr.(type) {
	case *Literal, *PermissionCheck:
		return true
	case *FieldRef:
		return false
	case *Condition:
		if e.Op != OpEq {
			return false
		}
		if _, ok := e.Left.(*FieldRef); !ok {
			return false
		}
		switch right := e.Right.(type) {
		case *FieldRef:
			return right.Path == rowFilterUserRef
		case *Literal:
			return true
		}
		return false
	case *Operation:
		for _, arg := range e.Args {
			if !ExpressionDecomposable(arg) {
				return false
			}
		}
		return true
	}
	return false
}
