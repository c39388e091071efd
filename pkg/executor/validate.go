package executor

import (
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"

	"friday/pkg/api"
)

// Validate checks args against the capability schema and returns a
// normalized copy: defaults applied, values coerced to their declared Go
// type, numeric values clamped to their bounds. Unknown parameters are
// dropped.
func Validate(c api.Capability, args api.Args) (api.Args, error) {
	out := make(api.Args, len(c.Params))

	for key := range args {
		if _, ok := c.Param(key); !ok {
			slog.Debug("Ignoring unknown parameter", "capability", c.Name, "param", key)
		}
	}

	for _, p := range c.Params {
		v, present := args[p.Name]
		if present && isBlank(v) {
			present = false
		}
		if !present {
			if p.Required {
				return nil, api.Errorf(api.KindInvalidArgument, "missing required parameter %q for %s", p.Name, c.Name)
			}
			if p.Default == nil {
				continue
			}
			v = p.Default
		}

		coerced, err := coerce(p, v)
		if err != nil {
			return nil, api.Errorf(api.KindInvalidArgument, "parameter %q of %s: %v", p.Name, c.Name, err)
		}
		out[p.Name] = coerced
	}
	return out, nil
}

func isBlank(v any) bool {
	if v == nil {
		return true
	}
	s, ok := v.(string)
	return ok && strings.TrimSpace(s) == ""
}

func coerce(p api.Param, v any) (any, error) {
	switch p.Type {
	case api.ParamString, "":
		return toString(v)
	case api.ParamEnum:
		s, err := toString(v)
		if err != nil {
			return nil, err
		}
		for _, allowed := range p.Enum {
			if strings.EqualFold(allowed, strings.TrimSpace(s)) {
				return allowed, nil
			}
		}
		return nil, fmt.Errorf("%q is not one of %s", s, strings.Join(p.Enum, ", "))
	case api.ParamBoolean:
		return toBool(v)
	case api.ParamNumber:
		f, err := toFloat(v)
		if err != nil {
			return nil, err
		}
		return clamp(f, p.Min, p.Max), nil
	case api.ParamInteger:
		f, err := toFloat(v)
		if err != nil {
			return nil, err
		}
		return toInt(clamp(f, p.Min, p.Max)), nil
	case api.ParamPercent:
		f, err := toFloat(v)
		if err != nil {
			return nil, err
		}
		return int(math.Round(clamp(f, api.Bound(0), api.Bound(100)))), nil
	}
	return nil, fmt.Errorf("unsupported parameter type %q", p.Type)
}

func clamp(f float64, lo, hi *float64) float64 {
	if lo != nil && f < *lo {
		return *lo
	}
	if hi != nil && f > *hi {
		return *hi
	}
	return f
}

func toString(v any) (string, error) {
	switch x := v.(type) {
	case string:
		return x, nil
	case bool:
		return strconv.FormatBool(x), nil
	case int:
		return strconv.Itoa(x), nil
	case int64:
		return strconv.FormatInt(x, 10), nil
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64), nil
	case fmt.Stringer:
		return x.String(), nil
	}
	return "", fmt.Errorf("expected text, got %T", v)
}

func toFloat(v any) (float64, error) {
	var f float64
	switch x := v.(type) {
	case int:
		f = float64(x)
	case int32:
		f = float64(x)
	case int64:
		f = float64(x)
	case uint64:
		f = float64(x)
	case float32:
		f = float64(x)
	case float64:
		f = x
	case string:
		s := strings.TrimSuffix(strings.TrimSpace(x), "%")
		parsed, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			return 0, fmt.Errorf("%q is not a number", x)
		}
		f = parsed
	case fmt.Stringer:
		// json.Number and similar
		parsed, err := strconv.ParseFloat(x.String(), 64)
		if err != nil {
			return 0, fmt.Errorf("%q is not a number", x.String())
		}
		f = parsed
	default:
		return 0, fmt.Errorf("expected a number, got %T", v)
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("expected a finite number")
	}
	return f, nil
}

// toInt rounds f, saturating at the bounds of int.
func toInt(f float64) int {
	f = math.Round(f)
	switch {
	case f >= math.MaxInt:
		return math.MaxInt
	case f <= math.MinInt:
		return math.MinInt
	}
	return int(f)
}

func toBool(v any) (bool, error) {
	switch x := v.(type) {
	case bool:
		return x, nil
	case int:
		return x != 0, nil
	case float64:
		return x != 0, nil
	case string:
		switch strings.ToLower(strings.TrimSpace(x)) {
		case "true", "yes", "y", "on", "1":
			return true, nil
		case "false", "no", "n", "off", "0":
			return false, nil
		}
		return false, fmt.Errorf("%q is not a boolean", x)
	}
	return false, fmt.Errorf("expected a boolean, got %T", v)
}
