package policy

import (
	"reflect"
	"testing"
)

func TestFilterFields(t *testing.T) {
	cases := []struct {
		name   string
		fields *FieldRules
		want   AllowedFields
	}{
		{
			"nil config wildcards both",
			nil,
			AllowedFields{Read: []string{"*"}, Write: []string{"*"}},
		},
		{
			"empty lists wildcard both",
			&FieldRules{},
			AllowedFields{Read: []string{"*"}, Write: []string{"*"}},
		},
		{
			"explicit lists pass through",
			&FieldRules{Read: []string{"title", "plays"}, Write: []string{"title"}},
			AllowedFields{Read: []string{"title", "plays"}, Write: []string{"title"}},
		},
		{
			"deny strips explicit lists",
			&FieldRules{
				Read:  []string{"title", "uploadedBy"},
				Write: []string{"title", "uploadedBy", "plays"},
				Deny:  []string{"uploadedBy", "plays"},
			},
			AllowedFields{Read: []string{"title"}, Write: []string{"title"}},
		},
		{
			"wildcard collapses to empty under deny",
			&FieldRules{Deny: []string{"x"}},
			AllowedFields{Read: []string{}, Write: []string{}},
		},
		{
			"deny collapses only the wildcarded side",
			&FieldRules{Write: []string{"title", "role"}, Deny: []string{"role"}},
			AllowedFields{Read: []string{}, Write: []string{"title"}},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := FilterFields(tc.fields)
			if !reflect.DeepEqual(got, tc.want) {
				t.Fatalf("expected %+v, got %+v", tc.want, got)
			}
		})
	}
}

func TestFilterFieldsNeverLeaksDeniedName(t *testing.T) {
	fields := &FieldRules{
		Read:  []string{"name", "email", "role"},
		Write: []string{"name", "role", "permissions"},
		Deny:  []string{"role", "permissions"},
	}
	got := FilterFields(fields)
	for _, list := range [][]string{got.Read, got.Write} {
		for _, f := range list {
			if f == "role" || f == "permissions" {
				t.Fatalf("denied field %q present in %v", f, list)
			}
		}
	}
}

func TestFilterDataFields(t *testing.T) {
	data := map[string]any{"title": "a", "plays": 3, "uploadedBy": "u2"}

	if got := FilterDataFields(data, []string{"*"}); !reflect.DeepEqual(got, data) {
		t.Fatalf("wildcard should pass data through, got %v", got)
	}

	if got := FilterDataFields(data, []string{}); len(got) != 0 {
		t.Fatalf("empty grant should strip everything, got %v", got)
	}

	got := FilterDataFields(data, []string{"title", "description"})
	if !reflect.DeepEqual(got, map[string]any{"title": "a"}) {
		t.Fatalf("expected only granted keys, got %v", got)
	}

	if got := FilterDataFields(nil, []string{"title"}); got != nil {
		t.Fatalf("nil data should stay nil, got %v", got)
	}
}
