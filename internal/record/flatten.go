package record

import (
	"sort"
	"strconv"
	"strings"
)

// Sep joins path segments in flattened keys.
const Sep = "."

// Flatten expands a nested document into dotted paths. Object keys become
// path segments and list elements use their zero-based index, so
// {"a":{"b":[{"c":1}]}} becomes {"a.b.0.c": 1}. Empty objects, empty lists
// and nil leaves are dropped. The traversal uses an explicit stack, so
// document depth does not grow the call stack.
func Flatten(doc map[string]any) Row {
	return FlattenPrefixed("", doc)
}

// FlattenPrefixed flattens doc with every key prefixed by prefix and Sep.
// An empty prefix behaves like Flatten.
func FlattenPrefixed(prefix string, doc map[string]any) Row {
	out := Row{}
	if len(doc) == 0 {
		return out
	}

	type entry struct {
		key string
		val any
	}
	stack := make([]entry, 0, len(doc))
	for k, v := range doc {
		stack = append(stack, entry{key: join(prefix, k), val: v})
	}

	for len(stack) > 0 {
		e := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		switch v := e.val.(type) {
		case map[string]any:
			for k, child := range v {
				stack = append(stack, entry{key: join(e.key, k), val: child})
			}
		case []any:
			for i, child := range v {
				stack = append(stack, entry{key: join(e.key, strconv.Itoa(i)), val: child})
			}
		case []string:
			for i, child := range v {
				stack = append(stack, entry{key: join(e.key, strconv.Itoa(i)), val: child})
			}
		case nil:
		default:
			if e.key != "" {
				out[e.key] = v
			}
		}
	}
	return out
}

// Unflatten rebuilds the nested document described by a flattened row.
// Objects whose keys are exactly 0..n-1 become lists, so
// Flatten(Unflatten(r)) reproduces r. When a key is both a leaf and a
// parent, the nested value wins.
func Unflatten(r Row) map[string]any {
	keys := make([]string, 0, len(r))
	for k := range r {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	root := map[string]any{}
	for _, k := range keys {
		parts := strings.Split(k, Sep)
		node := root
		for i, p := range parts {
			if i == len(parts)-1 {
				if _, nested := node[p].(map[string]any); !nested {
					node[p] = r[k]
				}
				break
			}
			child, ok := node[p].(map[string]any)
			if !ok {
				child = map[string]any{}
				node[p] = child
			}
			node = child
		}
	}
	for k, child := range root {
		root[k] = listify(child)
	}
	return root
}

// listify converts index-keyed objects into lists, bottom-up.
func listify(v any) any {
	m, ok := v.(map[string]any)
	if !ok {
		return v
	}
	for k, child := range m {
		m[k] = listify(child)
	}
	if len(m) == 0 {
		return m
	}
	list := make([]any, len(m))
	for k, child := range m {
		i, err := strconv.Atoi(k)
		if err != nil || i < 0 || i >= len(m) || strconv.Itoa(i) != k {
			return m
		}
		list[i] = child
	}
	return list
}

func join(prefix, key string) string {
	if prefix == "" {
		return key
	}
	return prefix + Sep + key
}
