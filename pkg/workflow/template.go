package workflow

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"

	"github.com/Masterminds/sprig/v3"

	"friday/pkg/api"
)

// StepOutput is what a templated argument can see of an earlier step.
type StepOutput struct {
	Capability string
	OK         bool
	Text       string
}

type templateData struct {
	Workflow string
	// Steps is indexed from 0 in execution order.
	Steps []StepOutput
	// Last is the most recent step, empty before the first one.
	Last StepOutput
}

func newTemplateData(name string, results []StepResult) templateData {
	data := templateData{Workflow: name}
	for _, r := range results {
		out := StepOutput{Capability: r.Step.Capability, OK: r.Outcome.OK}
		if r.Outcome.OK {
			out.Text = r.Outcome.Text
		}
		data.Steps = append(data.Steps, out)
	}
	if len(data.Steps) > 0 {
		data.Last = data.Steps[len(data.Steps)-1]
	}
	return data
}

// renderArgs replaces template expressions in every string of args.
func renderArgs(args api.Args, data templateData) (api.Args, error) {
	out := make(api.Args, len(args))
	for k, v := range args {
		rendered, err := renderValue(v, data)
		if err != nil {
			return nil, fmt.Errorf("argument %q: %w", k, err)
		}
		out[k] = rendered
	}
	return out, nil
}

func renderValue(value any, data templateData) (any, error) {
	switch v := value.(type) {
	case string:
		return renderString(v, data)
	case map[string]any:
		out := make(map[string]any, len(v))
		for k, item := range v {
			r, err := renderValue(item, data)
			if err != nil {
				return nil, err
			}
			out[k] = r
		}
		return out, nil
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			r, err := renderValue(item, data)
			if err != nil {
				return nil, err
			}
			out[i] = r
		}
		return out, nil
	default:
		return value, nil
	}
}

func renderString(s string, data templateData) (string, error) {
	if !strings.Contains(s, "{{") {
		return s, nil
	}
	tmpl, err := template.New("arg").Funcs(sprig.TxtFuncMap()).Option("missingkey=error").Parse(s)
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}
