package models

import "fmt"

// Patch is a partial update to a record: a shallow set of field name to new
// value. Patches are merged last-write-wins per field when coalescing, and
// validated against the target record's known field set on apply.
type Patch map[string]any

// Merge overlays other on top of p, field by field, returning the result.
// Neither input is modified.
func (p Patch) Merge(other Patch) Patch {
	merged := make(Patch, len(p)+len(other))
	for k, v := range p {
		merged[k] = v
	}
	for k, v := range other {
		merged[k] = v
	}
	return merged
}

// Clone returns a shallow copy of the patch.
func (p Patch) Clone() Patch {
	if p == nil {
		return nil
	}
	c := make(Patch, len(p))
	for k, v := range p {
		c[k] = v
	}
	return c
}

// patchString assigns a string field from a patch value.
func patchString(dst *string, field string, v any) error {
	s, ok := v.(string)
	if !ok {
		return fmt.Errorf("field %q: expected string, got %T", field, v)
	}
	*dst = s
	return nil
}

// patchBool assigns a bool field from a patch value.
func patchBool(dst *bool, field string, v any) error {
	b, ok := v.(bool)
	if !ok {
		return fmt.Errorf("field %q: expected bool, got %T", field, v)
	}
	*dst = b
	return nil
}

// patchInt assigns an int field from a patch value. JSON decoding produces
// float64 for numbers, so both forms are accepted.
func patchInt(dst *int, field string, v any) error {
	switch n := v.(type) {
	case int:
		*dst = n
	case int64:
		*dst = int(n)
	case float64:
		*dst = int(n)
	default:
		return fmt.Errorf("field %q: expected number, got %T", field, v)
	}
	return nil
}

// patchStringSlice assigns a []string field from a patch value. JSON
// decoding produces []any, so both forms are accepted.
func patchStringSlice(dst *[]string, field string, v any) error {
	switch s := v.(type) {
	case []string:
		*dst = append([]string(nil), s...)
	case []any:
		out := make([]string, 0, len(s))
		for _, e := range s {
			str, ok := e.(string)
			if !ok {
				return fmt.Errorf("field %q: expected string element, got %T", field, e)
			}
			out = append(out, str)
		}
		*dst = out
	default:
		return fmt.Errorf("field %q: expected string list, got %T", field, v)
	}
	return nil
}
