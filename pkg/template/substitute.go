// Package template implements shell-style ${VAR} substitution used to render
// install and uninstall command templates against a captured application
// entry's fields.
package template

import (
	"fmt"
	"os"
	"regexp"
	"strings"
)

var varPattern = regexp.MustCompile(`\$\{([^}]+)}`)

// Substitute performs variable substitution on the provided input string.
// Supported patterns:
//
//	${VAR}             substitute with value (empty string if unset)
//	${VAR:-default}    default if VAR is unset or empty
//	${VAR:?message}    error if VAR is unset or empty
//
// Values are looked up in the provided vars map first, then in the
// operating-system environment.
func Substitute(input string, vars map[string]string) (string, error) {
	if !varPattern.MatchString(input) {
		return input, nil
	}

	indices := varPattern.FindAllStringSubmatchIndex(input, -1)

	var builder strings.Builder
	builder.Grow(len(input))

	lastPos := 0
	for _, idx := range indices {
		builder.WriteString(input[lastPos:idx[0]])

		expr := input[idx[2]:idx[3]]
		value, err := evaluate(expr, vars)
		if err != nil {
			return "", err
		}
		builder.WriteString(value)

		lastPos = idx[1]
	}
	builder.WriteString(input[lastPos:])

	return builder.String(), nil
}

// evaluate resolves a single expression (the text inside ${...}).
func evaluate(expr string, vars map[string]string) (string, error) {
	switch {
	case strings.Contains(expr, ":-"):
		parts := strings.SplitN(expr, ":-", 2)
		name := strings.TrimSpace(parts[0])
		value, ok := lookup(name, vars)
		if ok && value != "" {
			return value, nil
		}
		return parts[1], nil

	case strings.Contains(expr, ":?"):
		parts := strings.SplitN(expr, ":?", 2)
		name := strings.TrimSpace(parts[0])
		value, ok := lookup(name, vars)
		if ok && value != "" {
			return value, nil
		}
		return "", fmt.Errorf("variable %s is not set or empty: %s", name, parts[1])

	default:
		value, _ := lookup(strings.TrimSpace(expr), vars)
		return value, nil
	}
}

// lookup returns (value, exists); the vars map takes precedence over the
// environment.
func lookup(name string, vars map[string]string) (string, bool) {
	if vars != nil {
		if v, ok := vars[name]; ok {
			return v, true
		}
	}
	v, ok := os.LookupEnv(name)
	return v, ok
}
