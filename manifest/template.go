package manifest

import (
	"maps"
	"strings"
	"text/template"
)

// engine renders manifest values as text templates over a set of variables.
type engine struct {
	vars  map[string]string
	funcs template.FuncMap
}

var defaultFuncs = template.FuncMap{
	"lower": strings.ToLower,
	"upper": strings.ToUpper,
	"trim":  strings.TrimSpace,
	"replace": func(old, new, s string) string {
		return strings.ReplaceAll(s, old, new)
	},
}

func newEngine(vars map[string]string) *engine {
	return &engine{vars: maps.Clone(vars), funcs: defaultFuncs}
}

// with returns an engine whose variables are e's, overridden by locals.
func (e *engine) with(locals map[string]string) *engine {
	vars := make(map[string]string, len(e.vars)+len(locals))
	maps.Copy(vars, e.vars)
	maps.Copy(vars, locals)
	return &engine{vars: vars, funcs: e.funcs}
}

// render executes text as a template named name. Referencing an undefined
// variable is an error. Text without an action is returned as is.
func (e *engine) render(name, text string) (string, error) {
	if !strings.Contains(text, "{{") {
		return text, nil
	}
	t, err := template.New(name).Funcs(e.funcs).Option("missingkey=error").Parse(text)
	if err != nil {
		return "", err
	}
	var buf strings.Builder
	if err := t.Execute(&buf, e.vars); err != nil {
		return "", err
	}
	return buf.String(), nil
}
