package api

import (
	"context"
	"fmt"
	"reflect"
	"slices"
	"strings"
	"time"
)

// EffectClass describes what kind of side effect a capability has. The
// executor derives timeouts, retry eligibility and locking from it.
type EffectClass string

const (
	EffectRead          EffectClass = "READ"
	EffectLocalMutation EffectClass = "LOCAL_MUTATION"
	EffectOSAutomation  EffectClass = "OS_AUTOMATION"
	EffectNetwork       EffectClass = "NETWORK"
)

// ParamType is the declared type of a capability parameter.
type ParamType string

const (
	ParamString  ParamType = "string"
	ParamInteger ParamType = "integer"
	ParamNumber  ParamType = "number"
	ParamBoolean ParamType = "boolean"
	// ParamPercent is an integer in [0,100]. Out of range values are clamped.
	ParamPercent ParamType = "percent"
	// ParamEnum is a string restricted to Param.Enum.
	ParamEnum ParamType = "enum"
)

// Param is one entry of a capability input schema.
type Param struct {
	Name        string    `json:"name" yaml:"name"`
	Type        ParamType `json:"type" yaml:"type"`
	Required    bool      `json:"required" yaml:"required"`
	Default     any       `json:"default,omitempty" yaml:"default,omitempty"`
	Description string    `json:"description,omitempty" yaml:"description,omitempty"`
	Enum        []string  `json:"enum,omitempty" yaml:"enum,omitempty"`
	// Min and Max bound numeric parameters. Values outside are clamped.
	Min *float64 `json:"min,omitempty" yaml:"min,omitempty"`
	Max *float64 `json:"max,omitempty" yaml:"max,omitempty"`
}

// Bound is a helper for building Param.Min and Param.Max.
func Bound(v float64) *float64 { return &v }

// Args holds the arguments of one invocation. After validation by the
// executor, values have their declared Go types: string, int, float64, bool.
type Args map[string]any

// String returns the string argument or "" when absent.
func (a Args) String(name string) string {
	s, _ := a[name].(string)
	return s
}

// Int returns the integer argument or 0 when absent.
func (a Args) Int(name string) int {
	switch v := a[name].(type) {
	case int:
		return v
	case float64:
		return int(v)
	}
	return 0
}

// Float returns the numeric argument or 0 when absent.
func (a Args) Float(name string) float64 {
	switch v := a[name].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	}
	return 0
}

// Bool returns the boolean argument or false when absent.
func (a Args) Bool(name string) bool {
	b, _ := a[name].(bool)
	return b
}

// Clone returns a shallow copy.
func (a Args) Clone() Args {
	out := make(Args, len(a))
	for k, v := range a {
		out[k] = v
	}
	return out
}

// Result is what a handler produces on success.
type Result struct {
	Text        string
	SideEffects []string
}

// Textf builds a Result with formatted text.
func Textf(format string, args ...any) Result {
	return Result{Text: fmt.Sprintf(format, args...)}
}

// Handler performs the actual work of a capability. Returned errors are
// classified by the executor, see Classify.
type Handler func(ctx context.Context, args Args) (Result, error)

// Capability is a named, schema-described action. Capabilities are built
// once at startup and never mutated after registration.
type Capability struct {
	Name        string
	Description string
	Params      []Param
	Effect      EffectClass
	// Timeout overrides the effect class default when non-zero.
	Timeout time.Duration
	Handler Handler
}

// Param looks up a parameter by name.
func (c *Capability) Param(name string) (Param, bool) {
	for _, p := range c.Params {
		if p.Name == name {
			return p, true
		}
	}
	return Param{}, false
}

// CloneParams deep-copies a parameter list so callers cannot reach into a
// registered schema.
func CloneParams(ps []Param) []Param {
	if ps == nil {
		return nil
	}
	out := make([]Param, len(ps))
	for i, p := range ps {
		p.Enum = slices.Clone(p.Enum)
		if p.Min != nil {
			p.Min = Bound(*p.Min)
		}
		if p.Max != nil {
			p.Max = Bound(*p.Max)
		}
		out[i] = p
	}
	return out
}

// SameSchema reports whether two parameter lists are interchangeable.
func SameSchema(a, b []Param) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !reflect.DeepEqual(a[i], b[i]) {
			return false
		}
	}
	return true
}

// Descriptor is the discovery view of a registry entry.
type Descriptor struct {
	Name        string      `json:"name"`
	Description string      `json:"description"`
	Params      []Param     `json:"params"`
	Effect      EffectClass `json:"effect"`
	// Providers is set for fallback families.
	Providers []string `json:"providers,omitempty"`
}

// Signature renders "name(a: string, b?: percent)".
func (d Descriptor) Signature() string {
	parts := make([]string, 0, len(d.Params))
	for _, p := range d.Params {
		name := p.Name
		if !p.Required {
			name += "?"
		}
		parts = append(parts, fmt.Sprintf("%s: %s", name, p.Type))
	}
	return fmt.Sprintf("%s(%s)", d.Name, strings.Join(parts, ", "))
}
