package stores

import (
	"time"

	"github.com/oarkflow/date"
)

// scanTime normalizes the timestamp representations SQL drivers hand back
// (time.Time, RFC3339-ish strings, []byte).
func scanTime(v any) time.Time {
	switch t := v.(type) {
	case time.Time:
		return t
	case string:
		if parsed, err := date.Parse(t); err == nil {
			return parsed
		}
	case []byte:
		if parsed, err := date.Parse(string(t)); err == nil {
			return parsed
		}
	}
	return time.Time{}
}
