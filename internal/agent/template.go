package agent

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/ValmirAutomacao/optusadmin-sub000/internal/model"
)

var placeholderPattern = regexp.MustCompile(`\{\{\s*([a-zA-Z_][a-zA-Z0-9_]*)\s*\}\}`)

// RenderTemplate substitutes the template's declared variables into its body.
// Substitution is total: a placeholder that is not declared, or a declared
// placeholder with no value, is an error. Declared variables that never
// appear in the body are returned as warnings.
func RenderTemplate(tpl *model.PromptTemplate, values map[string]string) (string, []string, error) {
	declared := make(map[string]bool, len(tpl.Variables))
	for _, v := range tpl.Variables {
		declared[v] = true
	}

	used := make(map[string]bool)
	var renderErr error
	rendered := placeholderPattern.ReplaceAllStringFunc(tpl.Body, func(match string) string {
		name := placeholderPattern.FindStringSubmatch(match)[1]
		used[name] = true

		if !declared[name] {
			if renderErr == nil {
				renderErr = fmt.Errorf("template %q references undeclared variable %q", tpl.Name, name)
			}
			return match
		}
		value, ok := values[name]
		if !ok {
			if renderErr == nil {
				renderErr = fmt.Errorf("template %q is missing a value for variable %q", tpl.Name, name)
			}
			return match
		}
		return value
	})
	if renderErr != nil {
		return "", nil, renderErr
	}

	var warnings []string
	for _, v := range tpl.Variables {
		if !used[v] {
			warnings = append(warnings, fmt.Sprintf("declared variable %q is never used", v))
		}
	}

	return strings.TrimSpace(rendered), warnings, nil
}
