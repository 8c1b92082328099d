package scenario

import (
	"fmt"
	"strconv"
	"strings"
)

// lookup walks a decoded JSON document along a dotted path with optional
// array indexes, e.g. "billing_cycles[0].frequency.interval_unit".
func lookup(doc any, path string) (any, bool) {
	current := doc
	for _, seg := range strings.Split(path, ".") {
		field, indexes, err := splitIndexes(seg)
		if err != nil {
			return nil, false
		}
		if field != "" {
			m, ok := current.(map[string]any)
			if !ok {
				return nil, false
			}
			if current, ok = m[field]; !ok {
				return nil, false
			}
		}
		for _, idx := range indexes {
			arr, ok := current.([]any)
			if !ok || idx < 0 || idx >= len(arr) {
				return nil, false
			}
			current = arr[idx]
		}
	}
	return current, true
}

// splitIndexes turns "links[1]" into ("links", [1]).
func splitIndexes(seg string) (string, []int, error) {
	open := strings.IndexByte(seg, '[')
	if open == -1 {
		return seg, nil, nil
	}
	field := seg[:open]
	var indexes []int
	rest := seg[open:]
	for rest != "" {
		if rest[0] != '[' {
			return "", nil, fmt.Errorf("invalid path segment %q", seg)
		}
		end := strings.IndexByte(rest, ']')
		if end == -1 {
			return "", nil, fmt.Errorf("invalid path segment %q", seg)
		}
		n, err := strconv.Atoi(rest[1:end])
		if err != nil {
			return "", nil, fmt.Errorf("invalid index in %q: %w", seg, err)
		}
		indexes = append(indexes, n)
		rest = rest[end+1:]
	}
	return field, indexes, nil
}

// scalarString renders a decoded JSON value the way it would be written in
// a scenario file. Whole numbers drop the trailing ".0".
func scalarString(v any) string {
	switch x := v.(type) {
	case nil:
		return "null"
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	default:
		return fmt.Sprint(x)
	}
}
