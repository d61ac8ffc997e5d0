package configutil

import (
	"errors"
	"slices"
	"strings"
)

// Schema lists the keys a provider settings map may carry. Keys compare
// case, underscore and hyphen insensitively.
type Schema struct {
	Required     []string
	Optional     []string
	AllowUnknown bool
}

// ValidateSettings reports missing or blank required keys and, unless
// AllowUnknown is set, keys the schema does not name.
func ValidateSettings(input map[string]any, schema Schema) error {
	return schema.check(input)
}

func (s Schema) check(input map[string]any) error {
	present := make(map[string]any, len(input))
	for k, v := range input {
		present[normalizeKey(k)] = v
	}

	var missing []string
	for _, k := range s.Required {
		v, ok := present[normalizeKey(k)]
		if !ok || blank(v) {
			missing = append(missing, k)
		}
	}

	var unknown []string
	if !s.AllowUnknown {
		known := make(map[string]bool, len(s.Required)+len(s.Optional))
		for _, k := range slices.Concat(s.Required, s.Optional) {
			known[normalizeKey(k)] = true
		}
		for k := range input {
			if !known[normalizeKey(k)] {
				unknown = append(unknown, k)
			}
		}
	}

	var parts []string
	if len(missing) > 0 {
		slices.Sort(missing)
		parts = append(parts, "missing: "+strings.Join(missing, ", "))
	}
	if len(unknown) > 0 {
		slices.Sort(unknown)
		parts = append(parts, "unknown: "+strings.Join(unknown, ", "))
	}
	if len(parts) == 0 {
		return nil
	}
	return errors.New(strings.Join(parts, "; "))
}

func blank(v any) bool {
	if v == nil {
		return true
	}
	s, ok := v.(string)
	return ok && strings.TrimSpace(s) == ""
}
