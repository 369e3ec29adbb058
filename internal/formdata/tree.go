package formdata

import (
	"fmt"
	"sort"
)

// ValueKey is the key of a {value: literal} field wrapper
const ValueKey = "value"

// Tree is a decoded form-data document. Leaves are literals (string, bool,
// number) or field wrappers, which are maps carrying a "value" key next to
// metadata such as id, label or type.
type Tree map[string]any

// Lookup resolves a path against the tree. The returned node may be a
// wrapper; use Unwrap or LeafString to get at the literal.
func (t Tree) Lookup(p Path) (any, bool) {
	var node any = map[string]any(t)
	for _, seg := range p {
		next, ok := step(node, seg)
		if !ok {
			return nil, false
		}
		node = next
	}
	return node, true
}

// LookupString parses raw and returns the string literal at that path.
// A path ending at a wrapper yields the wrapper's value.
func (t Tree) LookupString(raw string) (string, bool, error) {
	p, err := ParsePath(raw)
	if err != nil {
		return "", false, err
	}
	node, ok := t.Lookup(p)
	if !ok {
		return "", false, nil
	}
	s, ok := LeafString(node)
	return s, ok, nil
}

func step(node any, seg Segment) (any, bool) {
	if seg.IsIndex {
		list, ok := node.([]any)
		if !ok || seg.Index >= len(list) {
			return nil, false
		}
		return list[seg.Index], true
	}

	switch m := node.(type) {
	case map[string]any:
		v, ok := m[seg.Key]
		return v, ok
	case Tree:
		v, ok := m[seg.Key]
		return v, ok
	case map[any]any:
		v, ok := m[seg.Key]
		return v, ok
	}
	return nil, false
}

// Unwrap returns the literal held by a {value: ...} wrapper, or node itself.
func Unwrap(node any) any {
	if m, ok := asStringMap(node); ok {
		if v, ok := m[ValueKey]; ok {
			return v
		}
	}
	return node
}

// LeafString returns the non-empty string literal at node, unwrapping a
// field wrapper first.
func LeafString(node any) (string, bool) {
	s, ok := Unwrap(node).(string)
	if !ok || s == "" {
		return "", false
	}
	return s, true
}

// ExpectedValues walks the tree and returns every non-empty string leaf, in
// key order, without duplicates. Wrappers contribute only their value, so
// metadata such as a wrapper's PDF id or label is never treated as
// expected content.
func ExpectedValues(t Tree) []string {
	seen := make(map[string]struct{})
	var out []string
	collect(map[string]any(t), func(s string) {
		if _, dup := seen[s]; dup {
			return
		}
		seen[s] = struct{}{}
		out = append(out, s)
	})
	return out
}

// ExpectedValuesAt returns the non-blank string values found at each path,
// deduplicated and in the order given. Unresolvable or malformed paths are
// skipped.
func ExpectedValuesAt(t Tree, paths []string) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, raw := range paths {
		p, err := ParsePath(raw)
		if err != nil {
			continue
		}
		node, ok := t.Lookup(p)
		if !ok {
			continue
		}
		collect(node, func(s string) {
			if _, dup := seen[s]; dup {
				return
			}
			seen[s] = struct{}{}
			out = append(out, s)
		})
	}
	return out
}

func collect(node any, emit func(string)) {
	switch v := node.(type) {
	case string:
		if v != "" {
			emit(v)
		}
	case []any:
		for _, item := range v {
			collect(item, emit)
		}
	default:
		m, ok := asStringMap(node)
		if !ok {
			return
		}
		if inner, wrapped := m[ValueKey]; wrapped {
			collect(inner, emit)
			return
		}
		keys := make([]string, 0, len(m))
		for k := range m {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			collect(m[k], emit)
		}
	}
}

// asStringMap normalizes the map shapes produced by encoding/json and
// yaml.v3 into map[string]any.
func asStringMap(node any) (map[string]any, bool) {
	switch m := node.(type) {
	case map[string]any:
		return m, true
	case Tree:
		return map[string]any(m), true
	case map[any]any:
		out := make(map[string]any, len(m))
		for k, v := range m {
			out[fmt.Sprint(k)] = v
		}
		return out, true
	}
	return nil, false
}
