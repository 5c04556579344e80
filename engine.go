package policy

import (
	"fmt"
	"strings"

	"github.com/oarkflow/policy/utils"
)

// ============================================================================
// POLICY ENGINE
// ============================================================================

// ConfigError reports a structurally invalid rule set at construction time.
// The host must not serve requests with a partially validated engine.
type ConfigError struct {
	Rule   int // index into the rule list
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("policy: invalid rule %d: %s", e.Rule, e.Reason)
}

// Engine is the single source of truth for "is this action allowed, and
// under what constraints". The rule set is validated once at construction
// and immutable thereafter; every check is a pure function of the rule set
// and the supplied request, so concurrent callers need no locking. A config
// reload constructs a new Engine and swaps the reference (see Manager).
type Engine struct {
	rules     []*Rule
	index     map[string][]*Rule // model.action -> rules in list order
	evaluator Evaluator
	logger    Logger
	lenient   bool
}

// EngineOption customizes an Engine at construction.
type EngineOption func(*Engine) error

// WithEvaluator installs a custom expression evaluator. The default is the
// built-in tree walker.
func WithEvaluator(ev Evaluator) EngineOption {
	return func(e *Engine) error {
		if ev == nil {
			return fmt.Errorf("policy: nil evaluator")
		}
		e.evaluator = ev
		return nil
	}
}

// WithLenientRowFilters disables the construction-time decomposability
// check on allow expressions. A granting rule whose expression cannot be
// turned into a row filter then yields an empty (match-everything) filter
// with a logged warning, and the host is responsible for post-fetch
// re-evaluation of rows.
func WithLenientRowFilters() EngineOption {
	return func(e *Engine) error {
		e.lenient = true
		return nil
	}
}

// NewEngine validates the rule set and builds an immutable engine over it.
// A malformed rule is a startup-time fatal, not a per-request error.
func NewEngine(rules []*Rule, opts ...EngineOption) (*Engine, error) {
	e := &Engine{
		rules:     rules,
		index:     make(map[string][]*Rule),
		evaluator: NewTreeEvaluator(),
		logger:    NewPhusluLogger(),
	}
	for _, opt := range opts {
		if err := opt(e); err != nil {
			return nil, err
		}
	}
	for i, r := range rules {
		if err := validateRule(i, r, e.lenient); err != nil {
			return nil, err
		}
		e.index[ruleKey(r.Model, r.Action)] = append(e.index[ruleKey(r.Model, r.Action)], r)
	}
	return e, nil
}

func validateRule(i int, r *Rule, lenient bool) error {
	if r == nil {
		return &ConfigError{Rule: i, Reason: "nil rule"}
	}
	if strings.TrimSpace(r.Model) == "" {
		return &ConfigError{Rule: i, Reason: "model must be a non-empty string"}
	}
	if !r.Action.IsValid() {
		return &ConfigError{Rule: i, Reason: fmt.Sprintf("action %q is not one of create|read|update|delete", r.Action)}
	}
	if r.Fields != nil {
		for _, list := range [][]string{r.Fields.Read, r.Fields.Write, r.Fields.Deny} {
			for _, f := range list {
				if strings.TrimSpace(f) == "" {
					return &ConfigError{Rule: i, Reason: "field names must be non-empty strings"}
				}
			}
		}
	}
	if !lenient && r.Allow != nil && !ExpressionDecomposable(r.Allow) {
		return &ConfigError{Rule: i, Reason: fmt.Sprintf("allow expression %q is not decomposable into a row filter; fix the expression or construct with WithLenientRowFilters", r.Allow.String())}
	}
	return nil
}

func ruleKey(model string, action Action) string {
	return model + "." + string(action)
}

// Rules returns the engine's rule list. Callers must treat it as read-only.
func (e *Engine) Rules() []*Rule { return e.rules }

// matchRules selects every rule covering (model, action), in list order.
// A rule's model may carry a '*' wildcard to cover a model family.
func (e *Engine) matchRules(model string, action Action) []*Rule {
	if exact, ok := e.index[ruleKey(model, action)]; ok {
		return exact
	}
	var out []*Rule
	for _, r := range e.rules {
		if r.Action == action && strings.ContainsRune(r.Model, '*') && utils.MatchModel(model, r.Model) {
			out = append(out, r)
		}
	}
	return out
}

// Evaluate decides a request: access, row filters and field grants.
// Access is OR'd across matching rules; the first rule whose allow
// expression evaluates truthy supplies the row-filter and field
// configuration. No matching rule, and no granting rule, both deny.
func (e *Engine) Evaluate(req *Request) *Decision {
	matching := e.matchRules(req.Model, req.Action)
	if len(matching) == 0 {
		return &Decision{
			Allowed: false,
			Reason:  fmt.Sprintf("No policy defined for %s.%s", req.Model, req.Action),
		}
	}

	evalCtx := e.buildEvalContext(req)
	for i, rule := range matching {
		if rule.Allow == nil {
			continue
		}
		v, err := e.evaluator.Evaluate(rule.Allow, evalCtx)
		if err != nil {
			// an evaluation error is never an implicit grant
			e.logger.Error("policy evaluation failed, rule skipped",
				"model", req.Model, "action", string(req.Action),
				"rule", ruleLabel(rule, i), "error", err.Error())
			continue
		}
		if !Truthy(v) {
			continue
		}
		fields := FilterFields(rule.Fields)
		return &Decision{
			Allowed:     true,
			MatchedBy:   ruleLabel(rule, i),
			RowFilters:  e.extractRowFilter(rule, req.User),
			ReadFields:  fields.Read,
			WriteFields: fields.Write,
		}
	}

	return &Decision{
		Allowed: false,
		Reason:  fmt.Sprintf("Access denied by policy for %s.%s", req.Model, req.Action),
	}
}

// CheckAccess reports the boolean outcome of Evaluate.
func (e *Engine) CheckAccess(req *Request) bool {
	return e.Evaluate(req).Allowed
}

// ApplyRowFilters returns the filter a query layer must apply to enforce
// row-level security for (model, action). With no covering rule it returns
// the impossible filter, so "no policy" filters out all rows instead of
// admitting them. A caller-supplied where clause is preserved via
// {AND: [where, policyFilter]}. Only the first matching rule's filter is
// used; see Decision.MatchedBy for auditing overlapping grants.
func (e *Engine) ApplyRowFilters(model string, action Action, where Filter, user *User) Filter {
	matching := e.matchRules(model, action)
	if len(matching) == 0 {
		return NeverMatchFilter()
	}
	rule := matching[0]
	filter := e.extractRowFilter(rule, user)
	if len(where) > 0 {
		return Filter{FilterAnd: []Filter{where, filter}}
	}
	return filter
}

// GetAllowedFields resolves the field-level grant for (model, action).
// No covering rule yields empty lists, never the wildcard.
func (e *Engine) GetAllowedFields(model string, action Action, user *User) AllowedFields {
	matching := e.matchRules(model, action)
	if len(matching) == 0 {
		return AllowedFields{Read: []string{}, Write: []string{}}
	}
	return FilterFields(matching[0].Fields)
}

func (e *Engine) extractRowFilter(rule *Rule, user *User) Filter {
	if e.lenient && rule.Allow != nil && !ExpressionDecomposable(rule.Allow) {
		e.logger.Info("allow expression not decomposable, row filter left open",
			"model", rule.Model, "action", string(rule.Action), "allow", rule.Allow.String())
	}
	return ExtractRowFilter(rule.Allow, user)
}

func (e *Engine) buildEvalContext(req *Request) *EvalContext {
	data := req.Data
	if data == nil {
		data = map[string]any{}
	}
	return &EvalContext{
		Data:   data,
		User:   req.User,
		Params: map[string]any{},
		Globals: map[string]any{
			"model":  req.Model,
			"action": string(req.Action),
			"where":  req.Where,
		},
	}
}

func ruleLabel(r *Rule, i int) string {
	if r.Name != "" {
		return r.Name
	}
	return fmt.Sprintf("rules[%d]", i)
}
