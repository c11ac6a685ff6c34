package model

import (
	"fmt"
	"strings"
)

// CustomNamespace is the prefix the tracker puts on user-defined fields.
const CustomNamespace = "Custom."

// NormalizeFieldName strips the custom namespace so "Custom.Priority" and
// "Priority" share one key.
func NormalizeFieldName(name string) string {
	name = strings.TrimSpace(name)
	if len(name) > len(CustomNamespace) && strings.EqualFold(name[:len(CustomNamespace)], CustomNamespace) {
		return name[len(CustomNamespace):]
	}
	return name
}

// CustomFields holds extension fields keyed by normalised name.
type CustomFields map[string]any

// Set stores v under the normalised form of name.
func (f CustomFields) Set(name string, v any) {
	f[NormalizeFieldName(name)] = v
}

// Get resolves name with or without the namespace prefix.
func (f CustomFields) Get(name string) (any, bool) {
	if f == nil {
		return nil, false
	}
	v, ok := f[NormalizeFieldName(name)]
	return v, ok
}

// String renders the value for name, or "" when it is absent.
func (f CustomFields) String(name string) string {
	v, ok := f.Get(name)
	if !ok || v == nil {
		return ""
	}
	switch t := v.(type) {
	case string:
		return t
	case float64:
		if t == float64(int64(t)) {
			return fmt.Sprintf("%d", int64(t))
		}
		return fmt.Sprintf("%g", t)
	case map[string]any:
		if dn, ok := t["displayName"].(string); ok {
			return dn
		}
	}
	return fmt.Sprintf("%v", v)
}

// FieldFilter is one attribute equality constraint.
type FieldFilter struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// FieldNames returns the normalised keys of filters, in order, without duplicates.
func FieldNames(filters []FieldFilter) []string {
	seen := make(map[string]bool, len(filters))
	out := make([]string, 0, len(filters))
	for _, f := range filters {
		n := NormalizeFieldName(f.Key)
		if n == "" || seen[n] {
			continue
		}
		seen[n] = true
		out = append(out, n)
	}
	return out
}
