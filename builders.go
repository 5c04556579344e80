package policy

// Builders provide a fluent API for creating Rules and allow expressions

// RuleBuilder builds a Rule
type RuleBuilder struct {
	r *Rule
}

func NewRuleBuilder() *RuleBuilder {
	return &RuleBuilder{r: &Rule{}}
}

func (b *RuleBuilder) Name(n string) *RuleBuilder        { b.r.Name = n; return b }
func (b *RuleBuilder) Model(m string) *RuleBuilder       { b.r.Model = m; return b }
func (b *RuleBuilder) Action(a Action) *RuleBuilder      { b.r.Action = a; return b }
func (b *RuleBuilder) Allow(expr Expression) *RuleBuilder { b.r.Allow = expr; return b }
func (b *RuleBuilder) ReadFields(fields ...string) *RuleBuilder {
	b.ensureFields().Read = append(b.r.Fields.Read, fields...)
	return b
}
func (b *RuleBuilder) WriteFields(fields ...string) *RuleBuilder {
	b.ensureFields().Write = append(b.r.Fields.Write, fields...)
	return b
}
func (b *RuleBuilder) DenyFields(fields ...string) *RuleBuilder {
	b.ensureFields().Deny = append(b.r.Fields.Deny, fields...)
	return b
}
func (b *RuleBuilder) Build() *Rule { return b.r }

func (b *RuleBuilder) ensureFields() *FieldRules {
	if b.r.Fields == nil {
		b.r.Fields = &FieldRules{}
	}
	return b.r.Fields
}

// ExprBuilder accumulates an allow expression from common fragments
type ExprBuilder struct {
	expr Expression
}

func NewExprBuilder() *ExprBuilder {
	return &ExprBuilder{}
}

// OwnedByUser adds "path == user.id" ownership equality.
func (b *ExprBuilder) OwnedByUser(path string) *ExprBuilder {
	return b.and(&Condition{Op: OpEq, Left: &FieldRef{Path: path}, Right: &FieldRef{Path: "user.id"}})
}

// FieldEquals adds "path == value".
func (b *ExprBuilder) FieldEquals(path string, value any) *ExprBuilder {
	return b.and(&Condition{Op: OpEq, Left: &FieldRef{Path: path}, Right: &Literal{Value: value}})
}

// HasPermission adds an access-time permission gate.
func (b *ExprBuilder) HasPermission(name string) *ExprBuilder {
	return b.and(&PermissionCheck{Name: name})
}

// Or combines the accumulated expression with other via OR.
func (b *ExprBuilder) Or(other Expression) *ExprBuilder {
	if b.expr == nil {
		b.expr = other
		return b
	}
	b.expr = &Operation{Op: OpOr, Args: []Expression{b.expr, other}}
	return b
}

// And combines the accumulated expression with other via AND.
func (b *ExprBuilder) And(other Expression) *ExprBuilder {
	return b.and(other)
}

func (b *ExprBuilder) and(other Expression) *ExprBuilder {
	if b.expr == nil {
		b.expr = other
		return b
	}
	b.expr = &Operation{Op: OpAnd, Args: []Expression{b.expr, other}}
	return b
}

func (b *ExprBuilder) Build() Expression {
	if b.expr == nil {
		return &Literal{Value: true}
	}
	return b.expr
}
