package policy

import (
	"reflect"
	"testing"

	"github.com/oarkflow/policy/logger"
)

const rulesYAML = `
version: 1
rules:
  - name: track-read
    model: Track
    action: read
    allow: isPublic == true OR uploadedBy == user.id
  - name: track-update
    model: Track
    action: update
    allow: uploadedBy == user.id
    fields:
      write: [title, description]
      deny: [uploadedBy, plays]
  - name: playlist-read
    model: Playlist
    action: read
    allow:
      op: eq
      left: {field: ownerId}
      right: {field: user.id}
  - name: admin-delete
    model: Track
    action: delete
    allow: true
`

func TestLoadYAMLAndBuildEngine(t *testing.T) {
	cfg, err := NewConfigLoader().LoadYAML([]byte(rulesYAML))
	if err != nil {
		t.Fatalf("load yaml: %v", err)
	}
	if cfg.Version != 1 || len(cfg.Rules) != 4 {
		t.Fatalf("unexpected config shape: version=%d rules=%d", cfg.Version, len(cfg.Rules))
	}

	eng, err := cfg.BuildEngine(WithLogger(logger.NewNullLogger()))
	if err != nil {
		t.Fatalf("build engine: %v", err)
	}

	dec := eng.Evaluate(&Request{
		User:   &User{ID: "u1"},
		Model:  "Track",
		Action: ActionRead,
		Data:   map[string]any{"isPublic": true},
	})
	if !dec.Allowed || dec.MatchedBy != "track-read" {
		t.Fatalf("expected track-read grant, got %+v", dec)
	}

	// map-form allow compiles the same as the string form
	filter := eng.ApplyRowFilters("Playlist", ActionRead, nil, &User{ID: "u9"})
	if !reflect.DeepEqual(filter, Filter{"ownerId": "u9"}) {
		t.Fatalf("expected ownerId filter, got %v", filter)
	}
}

func TestConfigJSONRoundTrip(t *testing.T) {
	cfg, err := NewConfigLoader().LoadYAML([]byte(rulesYAML))
	if err != nil {
		t.Fatalf("load yaml: %v", err)
	}
	data, err := cfg.ToJSON()
	if err != nil {
		t.Fatalf("to json: %v", err)
	}
	back, err := NewConfigLoader().LoadJSON(data)
	if err != nil {
		t.Fatalf("load json: %v", err)
	}
	if len(back.Rules) != len(cfg.Rules) {
		t.Fatalf("rule count changed across round trip: %d vs %d", len(back.Rules), len(cfg.Rules))
	}
	if _, err := back.BuildEngine(WithLogger(logger.NewNullLogger())); err != nil {
		t.Fatalf("round-tripped config no longer builds: %v", err)
	}
}

func TestCompileRejectsBadAllow(t *testing.T) {
	cfg := &Config{Rules: []RuleConfig{{
		Model:  "Track",
		Action: ActionRead,
		Allow:  42,
	}}}
	if _, err := cfg.Compile(); err == nil {
		t.Fatalf("expected compile error for numeric allow clause")
	}

	cfg = &Config{Rules: []RuleConfig{{
		Model:  "Track",
		Action: ActionRead,
		Allow:  "not a condition at all",
	}}}
	if _, err := cfg.Compile(); err == nil {
		t.Fatalf("expected compile error for unparsable condition")
	}
}

func TestRuleJSONRoundTrip(t *testing.T) {
	allow, err := ParseCondition(`isPublic == true OR uploadedBy == user.id`)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	rule := &Rule{
		Name:   "track-read",
		Model:  "Track",
		Action: ActionRead,
		Allow:  allow,
		Fields: &FieldRules{Read: []string{"title"}, Deny: []string{"plays"}},
	}

	data, err := rule.MarshalJSON()
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	back := &Rule{}
	if err := back.UnmarshalJSON(data); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !reflect.DeepEqual(back, rule) {
		t.Fatalf("rule changed across round trip:\n%#v\n%#v", back, rule)
	}
}
