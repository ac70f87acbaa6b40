package filters

import (
	"fmt"
	"sort"
)

// paramSpec declares one parameter a filter kind accepts.
type paramSpec struct {
	name     string
	fallback float64
	min      float64
	max      float64
}

// GetFloatParam safely extracts a numeric parameter from the params map.
// yaml decodes numbers as int or float64, so both are accepted.
func GetFloatParam(params map[string]any, key string, defaultValue float64) float64 {
	if val, ok := params[key]; ok {
		switch v := val.(type) {
		case float64:
			return v
		case float32:
			return float64(v)
		case int:
			return float64(v)
		case int64:
			return float64(v)
		}
	}
	return defaultValue
}

// validateKnownParams rejects keys that are not declared for the kind.
func validateKnownParams(kind string, params map[string]any, specs []paramSpec) error {
	known := make(map[string]struct{}, len(specs))
	for _, s := range specs {
		known[s.name] = struct{}{}
	}
	var unknown []string
	for key := range params {
		if _, ok := known[key]; !ok {
			unknown = append(unknown, key)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return fmt.Errorf("unknown parameters for %s: %v", kind, unknown)
	}
	return nil
}

// resolveParams applies defaults, checks types and ranges, and returns the
// parameters in the order the specs declare them.
func resolveParams(kind string, params map[string]any, specs []paramSpec) ([]Param, error) {
	if err := validateKnownParams(kind, params, specs); err != nil {
		return nil, err
	}

	resolved := make([]Param, 0, len(specs))
	for _, s := range specs {
		if raw, ok := params[s.name]; ok {
			switch raw.(type) {
			case float64, float32, int, int64:
			default:
				return nil, fmt.Errorf("parameter %s of %s must be numeric, got %T", s.name, kind, raw)
			}
		}
		v := GetFloatParam(params, s.name, s.fallback)
		if v < s.min || v > s.max {
			return nil, fmt.Errorf("parameter %s of %s must be within [%g, %g], got %g", s.name, kind, s.min, s.max, v)
		}
		resolved = append(resolved, Param{Name: s.name, Value: v})
	}
	return resolved, nil
}
