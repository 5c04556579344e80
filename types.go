package policy

// ============================================================================
// DOMAIN OBJECTS
// ============================================================================

// Action is the CRUD verb a rule governs.
type Action string

const (
	ActionCreate Action = "create"
	ActionRead   Action = "read"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

// ValidActions lists every action a rule may name, in canonical order.
var ValidActions = []Action{ActionCreate, ActionRead, ActionUpdate, ActionDelete}

// IsValid reports whether a is one of the four CRUD actions.
func (a Action) IsValid() bool {
	switch a {
	case ActionCreate, ActionRead, ActionUpdate, ActionDelete:
		return true
	}
	return false
}

// User represents who is requesting access
type User struct {
	ID          string         `json:"id" yaml:"id"`
	Roles       []string       `json:"roles" yaml:"roles"`
	Permissions []string       `json:"permissions,omitempty" yaml:"permissions,omitempty"`
	Attrs       map[string]any `json:"attrs,omitempty" yaml:"attrs,omitempty"`
}

// HasPermission reports whether the user carries the named permission.
func (u *User) HasPermission(name string) bool {
	if u == nil {
		return false
	}
	for _, p := range u.Permissions {
		if p == name {
			return true
		}
	}
	return false
}

// HasRole reports whether the user carries the named role.
func (u *User) HasRole(name string) bool {
	if u == nil {
		return false
	}
	for _, r := range u.Roles {
		if r == name {
			return true
		}
	}
	return false
}

// FieldRules declares per-rule field-level access. Deny has strict
// precedence over Read and Write.
type FieldRules struct {
	Read  []string `json:"read,omitempty" yaml:"read,omitempty"`
	Write []string `json:"write,omitempty" yaml:"write,omitempty"`
	Deny  []string `json:"deny,omitempty" yaml:"deny,omitempty"`
}

// Rule is a single declarative grant for a (model, action) pair. A rule is
// immutable once loaded into an Engine. A nil Allow expression never grants
// access on its own.
type Rule struct {
	Name   string      `json:"name,omitempty" yaml:"name,omitempty"`
	Model  string      `json:"model" yaml:"model"`
	Action Action      `json:"action" yaml:"action"`
	Allow  Expression  `json:"allow,omitempty" yaml:"-"`
	Fields *FieldRules `json:"fields,omitempty" yaml:"fields,omitempty"`
}

// Request carries everything the engine needs for one authorization check.
// It is supplied fresh per check and never mutated by the engine.
type Request struct {
	User   *User          `json:"user"`
	Model  string         `json:"model"`
	Action Action         `json:"action"`
	Where  Filter         `json:"where,omitempty"`
	Data   map[string]any `json:"data,omitempty"`
}

// Decision is the outcome of evaluating a Request.
type Decision struct {
	Allowed     bool     `json:"allowed"`
	Reason      string   `json:"reason,omitempty"`
	MatchedBy   string   `json:"matched_by,omitempty"` // rule name or positional id
	RowFilters  Filter   `json:"row_filters,omitempty"`
	ReadFields  []string `json:"read_fields,omitempty"`
	WriteFields []string `json:"write_fields,omitempty"`
}

// AllowedFields is the resolved field-level grant for one rule.
// FieldWildcard marks "all fields, subject to deny".
type AllowedFields struct {
	Read  []string `json:"read"`
	Write []string `json:"write"`
}

// FieldWildcard is the sentinel entry meaning every field of the model.
const FieldWildcard = "*"

// Filter is an ORM-neutral row filter: either {field: value} pairs, or a
// single AND/OR key holding []Filter operands. The shape embeds directly
// into common ORM where clauses without this package depending on any ORM.
type Filter map[string]any

const (
	// FilterAnd and FilterOr are the combinator keys of a composite Filter.
	FilterAnd = "AND"
	FilterOr  = "OR"
)

// NeverMatchFilter returns the deliberately impossible filter used when no
// rule covers a (model, action). Filtering out every row is the fail-closed
// counterpart of denying access outright.
func NeverMatchFilter() Filter {
	return Filter{"id": "__never__"}
}

// And combines two filters; either side may be nil/empty.
func (f Filter) And(other Filter) Filter {
	if len(f) == 0 {
		return other
	}
	if len(other) == 0 {
		return f
	}
	return Filter{FilterAnd: []Filter{f, other}}
}
