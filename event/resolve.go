package event

import (
	"encoding/json"
	"regexp"
	"strings"
)

// placeholderPattern matches an argument value that is, in its entirety,
// a "{{event_id.key1.key2}}" reference (spec §4.2: "exact match on the
// whole string, whitespace-tolerant"). The event_id may contain any
// non-brace, non-dot characters (UUIDs and caller-supplied slugs alike);
// the path is everything after the first dot.
var placeholderPattern = regexp.MustCompile(`^\{\{\s*([^.{}]+)(?:\.([^{}]+))?\s*\}\}$`)

// ResolveArgs walks a raw argument mapping and replaces every
// "{{event_id.path}}" string value with the referenced completed event's
// return value, per spec §4.2. Values that are not placeholder strings
// pass through unchanged. Unresolvable placeholders are left as the
// literal string, and their keys are returned in the second return value
// so callers can log a non-fatal error, matching the spec's "not fatal"
// disposition.
func ResolveArgs(raw map[string]any, log *Log) (map[string]any, []string) {
	resolved := make(map[string]any, len(raw))
	var unresolved []string
	for k, v := range raw {
		s, ok := v.(string)
		if !ok {
			resolved[k] = v
			continue
		}
		m := placeholderPattern.FindStringSubmatch(strings.TrimSpace(s))
		if m == nil {
			resolved[k] = v
			continue
		}
		eventID, path := strings.TrimSpace(m[1]), strings.TrimSpace(m[2])
		res, found := log.ReturnValuePath(eventID, path)
		if !found {
			resolved[k] = v
			unresolved = append(unresolved, k)
			continue
		}
		resolved[k] = res.Value()
	}
	return resolved, unresolved
}

func marshalReturnValue(v any) ([]byte, error) {
	return json.Marshal(v)
}
