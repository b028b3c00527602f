package treestore

import (
	"encoding/json"
	"fmt"
)

// Normalize converts a Go value into the generic JSON form stored by the
// in-process backends. Empty objects collapse to nil, matching how the
// hosted realtime database drops childless nodes.
func Normalize(value any) (any, error) {
	if value == nil {
		return nil, nil
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("normalize value: %w", err)
	}
	var generic any
	if err := json.Unmarshal(raw, &generic); err != nil {
		return nil, fmt.Errorf("normalize value: %w", err)
	}
	return prune(generic), nil
}

func prune(v any) any {
	switch node := v.(type) {
	case map[string]any:
		for k, child := range node {
			if pruned := prune(child); pruned == nil {
				delete(node, k)
			} else {
				node[k] = pruned
			}
		}
		if len(node) == 0 {
			return nil
		}
		return node
	case []any:
		for i, child := range node {
			node[i] = prune(child)
		}
		return node
	default:
		return v
	}
}

// Lookup walks segs from root and returns the value found there.
func Lookup(root any, segs []string) (any, bool) {
	node := root
	for _, seg := range segs {
		m, ok := node.(map[string]any)
		if !ok {
			return nil, false
		}
		node, ok = m[seg]
		if !ok {
			return nil, false
		}
	}
	return node, node != nil
}

// Assign stores value at segs below root and returns the new root.
// Intermediate objects are created as needed; a nil value deletes the node
// and prunes parents left empty. value must already be normalized.
func Assign(root any, segs []string, value any) any {
	if len(segs) == 0 {
		return value
	}
	m, ok := root.(map[string]any)
	if !ok {
		if value == nil {
			return root
		}
		m = make(map[string]any)
	}
	child := Assign(m[segs[0]], segs[1:], value)
	if child == nil {
		delete(m, segs[0])
	} else {
		m[segs[0]] = child
	}
	if len(m) == 0 {
		return nil
	}
	return m
}

// Copy returns a deep copy of generic JSON data.
func Copy(v any) any {
	switch node := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(node))
		for k, child := range node {
			out[k] = Copy(child)
		}
		return out
	case []any:
		out := make([]any, len(node))
		for i, child := range node {
			out[i] = Copy(child)
		}
		return out
	default:
		return v
	}
}
