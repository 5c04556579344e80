package policy

import (
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"
)

// Config is a declarative rule-set file. Allow clauses may be written as a
// condition string, a bare boolean, or the canonical expression map.
type Config struct {
	Version int          `json:"version,omitempty" yaml:"version,omitempty"`
	Rules   []RuleConfig `json:"rules" yaml:"rules"`
}

// RuleConfig is the on-disk shape of a Rule before its allow clause is
// compiled.
type RuleConfig struct {
	Name   string      `json:"name,omitempty" yaml:"name,omitempty"`
	Model  string      `json:"model" yaml:"model"`
	Action Action      `json:"action" yaml:"action"`
	Allow  any         `json:"allow,omitempty" yaml:"allow,omitempty"`
	Fields *FieldRules `json:"fields,omitempty" yaml:"fields,omitempty"`
}

// ConfigLoader loads rule-set configuration from various formats
type ConfigLoader struct{}

func NewConfigLoader() *ConfigLoader {
	return &ConfigLoader{}
}

func (l *ConfigLoader) LoadYAML(data []byte) (*Config, error) {
	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (l *ConfigLoader) LoadJSON(data []byte) (*Config, error) {
	cfg := &Config{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ToYAML exports config to YAML
func (c *Config) ToYAML() ([]byte, error) {
	return yaml.Marshal(c)
}

// ToJSON exports config to JSON
func (c *Config) ToJSON() ([]byte, error) {
	return json.MarshalIndent(c, "", "  ")
}

// Compile turns the declarative rules into engine rules, parsing each allow
// clause into an Expression.
func (c *Config) Compile() ([]*Rule, error) {
	rules := make([]*Rule, 0, len(c.Rules))
	for i, rc := range c.Rules {
		r, err := rc.Compile()
		if err != nil {
			return nil, fmt.Errorf("rule %d (%s.%s): %w", i, rc.Model, rc.Action, err)
		}
		rules = append(rules, r)
	}
	return rules, nil
}

// Compile resolves the rule's allow clause into an Expression.
func (rc *RuleConfig) Compile() (*Rule, error) {
	allow, err := compileAllow(rc.Allow)
	if err != nil {
		return nil, err
	}
	return &Rule{
		Name:   rc.Name,
		Model:  rc.Model,
		Action: rc.Action,
		Allow:  allow,
		Fields: rc.Fields,
	}, nil
}

func compileAllow(raw any) (Expression, error) {
	switch v := raw.(type) {
	case nil:
		return nil, nil
	case Expression:
		return v, nil
	case bool:
		return &Literal{Value: v}, nil
	case string:
		return ParseCondition(v)
	case map[string]any:
		return ParseExpressionMap(v)
	}
	return nil, fmt.Errorf("allow clause must be a string, boolean or expression map, got %T", raw)
}

// BuildEngine compiles the config and constructs an Engine from it.
func (c *Config) BuildEngine(opts ...EngineOption) (*Engine, error) {
	rules, err := c.Compile()
	if err != nil {
		return nil, err
	}
	return NewEngine(rules, opts...)
}
