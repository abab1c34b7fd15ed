package workflow

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/jmespath/go-jmespath"
)

// templatePattern matches {{EXPR}} occurrences; EXPR is anything but a
// closing brace, mirroring the single regex the original engine used.
var templatePattern = regexp.MustCompile(`\{\{([^}]+)\}\}`)

// ResolveTemplate resolves a template string against ctx. A non-string
// input passes through unchanged. If the entire string is exactly one
// "{{EXPR}}" expression, the raw JMESPath value is returned with its type
// preserved (including nil for JSON null or a failed lookup). Otherwise
// every "{{EXPR}}" occurrence is evaluated, stringified (nil becomes ""),
// and spliced into the surrounding text; a failing JMESPath expression
// resolves to nil/"" rather than aborting the node.
func ResolveTemplate(template any, ctx map[string]any) any {
	s, ok := template.(string)
	if !ok {
		return template
	}

	matches := templatePattern.FindAllStringSubmatch(s, -1)
	if len(matches) == 0 {
		return s
	}

	if len(matches) == 1 && s == "{{"+matches[0][1]+"}}" {
		path := strings.TrimSpace(matches[0][1])
		value, err := jmespath.Search(path, ctx)
		if err != nil {
			return nil
		}
		return value
	}

	result := s
	for _, m := range matches {
		full, path := m[0], strings.TrimSpace(m[1])
		value, err := jmespath.Search(path, ctx)
		if err != nil {
			result = strings.Replace(result, full, "", 1)
			continue
		}
		result = strings.Replace(result, full, stringify(value), 1)
	}
	return result
}

func stringify(v any) string {
	if v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}
