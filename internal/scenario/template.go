package scenario

import (
	"fmt"
	"os"
	"strings"
)

// Expand replaces {{name}} with a captured or declared variable and
// {{env.NAME}} with an environment variable. Unknown names are an error.
func Expand(s string, vars map[string]string) (string, error) {
	var b strings.Builder
	rest := s
	for {
		start := strings.Index(rest, "{{")
		if start == -1 {
			b.WriteString(rest)
			return b.String(), nil
		}
		end := strings.Index(rest[start:], "}}")
		if end == -1 {
			return "", fmt.Errorf("unterminated template expression in %q", s)
		}
		end += start

		expr := strings.TrimSpace(rest[start+2 : end])
		value, err := resolve(expr, vars)
		if err != nil {
			return "", err
		}
		b.WriteString(rest[:start])
		b.WriteString(value)
		rest = rest[end+2:]
	}
}

func resolve(expr string, vars map[string]string) (string, error) {
	if name, ok := strings.CutPrefix(expr, "env."); ok {
		return os.Getenv(name), nil
	}
	if v, ok := vars[expr]; ok {
		return v, nil
	}
	return "", fmt.Errorf("unresolved template expression %q", expr)
}
