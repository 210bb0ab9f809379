package workflow

import (
	"fmt"
	"regexp"
	"strings"
)

var templateRefPattern = regexp.MustCompile(`\{\{\s*parameters\.([A-Za-z_][A-Za-z0-9_]*)\s*\}\}`)

// ExpandTemplate substitutes every "{{ parameters.<name> }}" reference in
// prompt with the stringified value of params[name]; an unresolved
// reference fails the step.
func ExpandTemplate(prompt string, params map[string]any) (string, error) {
	var firstErr error
	result := templateRefPattern.ReplaceAllStringFunc(prompt, func(match string) string {
		if firstErr != nil {
			return match
		}
		sub := templateRefPattern.FindStringSubmatch(match)
		name := sub[1]
		v, ok := params[name]
		if !ok {
			firstErr = fmt.Errorf("unknown parameter reference %q", name)
			return match
		}
		return stringifyParam(v)
	})
	if firstErr != nil {
		return "", firstErr
	}
	return result, nil
}

func stringifyParam(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case fmt.Stringer:
		return t.String()
	default:
		return strings.TrimSpace(fmt.Sprintf("%v", t))
	}
}
