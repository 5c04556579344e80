package policy

// FilterFields resolves a rule's field configuration into concrete read and
// write allow-lists. An absent or empty Read/Write list wildcards to every
// field; Deny then takes strict precedence over both. A wildcarded list
// under any deny collapses to empty, because "all fields minus deny" cannot
// be computed without schema introspection.
func FilterFields(fields *FieldRules) AllowedFields {
	read := []string{FieldWildcard}
	write := []string{FieldWildcard}
	if fields != nil {
		if len(fields.Read) > 0 {
			read = append([]string(nil), fields.Read...)
		}
		if len(fields.Write) > 0 {
			write = append([]string(nil), fields.Write...)
		}
		if len(fields.Deny) > 0 {
			read = applyDeny(read, fields.Deny)
			write = applyDeny(write, fields.Deny)
		}
	}
	return AllowedFields{Read: read, Write: write}
}

func applyDeny(fields, deny []string) []string {
	if isWildcard(fields) {
		return []string{}
	}
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if !contains(deny, f) {
			out = append(out, f)
		}
	}
	return out
}

// FilterDataFields strips from data every key the allow-list does not
// grant. It shapes a create/update payload before persistence; it is not an
// authorization decision by itself.
func FilterDataFields(data map[string]any, allowed []string) map[string]any {
	if data == nil {
		return nil
	}
	if isWildcard(allowed) {
		return data
	}
	out := make(map[string]any, len(allowed))
	if len(allowed) == 0 {
		return out
	}
	for k, v := range data {
		if contains(allowed, k) {
			out[k] = v
		}
	}
	return out
}

func isWildcard(fields []string) bool {
	for _, f := range fields {
		if f == FieldWildcard {
			return true
		}
	}
	return false
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
