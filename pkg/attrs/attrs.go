// Package attrs reads values back out of slog-style key/value slices, so one
// attribute list can feed both a log line and an audit event.
package attrs

import "fmt"

// ExtractString returns the value for key in a [k1, v1, k2, v2, ...] slice. Strings
// and fmt.Stringers are returned as text; anything else, or a missing key, yields "".
func ExtractString(attrs []any, key string) string {
	for i := 0; i+1 < len(attrs); i += 2 {
		if k, ok := attrs[i].(string); ok && k == key {
			return text(attrs[i+1])
		}
	}
	return ""
}

// ToMap collects every textual key/value pair except the omitted keys. Empty values
// are dropped.
func ToMap(attrs []any, omit ...string) map[string]string {
	skip := make(map[string]struct{}, len(omit))
	for _, k := range omit {
		skip[k] = struct{}{}
	}
	out := make(map[string]string)
	for i := 0; i+1 < len(attrs); i += 2 {
		k, ok := attrs[i].(string)
		if !ok {
			continue
		}
		if _, omitted := skip[k]; omitted {
			continue
		}
		if v := text(attrs[i+1]); v != "" {
			out[k] = v
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func text(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case fmt.Stringer:
		return t.String()
	default:
		return ""
	}
}
