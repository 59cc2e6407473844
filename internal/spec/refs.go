package spec

import (
	"fmt"
	"strconv"
	"strings"
)

// refResolver inlines every local "#/..." JSON-pointer reference in a
// document into a deeply cloned tree. Only local refs are resolved (spec
// §1 Non-goals exclude remote $ref across documents). A per-call visited
// set of pointer paths detects and rejects cyclic $ref chains that would
// otherwise recurse forever during inlining (internal/schema therefore has
// no cycle guard of its own, only a recursion budget for nesting).
type refResolver struct {
	root map[string]any
}

func newRefResolver(root map[string]any) *refResolver {
	return &refResolver{root: root}
}

func (r *refResolver) resolve(v any) (any, error) {
	return r.resolveVisiting(v, map[string]bool{})
}

func (r *refResolver) resolveVisiting(v any, visiting map[string]bool) (any, error) {
	switch t := v.(type) {
	case map[string]any:
		if ref, ok := t["$ref"]; ok {
			refStr, ok := ref.(string)
			if !ok {
				return nil, fmt.Errorf("$ref value must be a string")
			}
			if !strings.HasPrefix(refStr, "#/") {
				return nil, fmt.Errorf("non-local $ref not supported: %s", refStr)
			}
			if visiting[refStr] {
				return nil, fmt.Errorf("cyclic $ref: %s", refStr)
			}
			target, err := r.lookup(refStr)
			if err != nil {
				return nil, err
			}
			visiting[refStr] = true
			resolved, err := r.resolveVisiting(target, visiting)
			delete(visiting, refStr)
			return resolved, err
		}

		out := make(map[string]any, len(t))
		for k, val := range t {
			resolved, err := r.resolveVisiting(val, visiting)
			if err != nil {
				return nil, err
			}
			out[k] = resolved
		}
		return out, nil

	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			resolved, err := r.resolveVisiting(val, visiting)
			if err != nil {
				return nil, err
			}
			out[i] = resolved
		}
		return out, nil

	default:
		return t, nil
	}
}

// lookup dereferences a "#/a/b/c" pointer against the (unresolved) root
// document, so a $ref can point at another $ref.
func (r *refResolver) lookup(pointer string) (any, error) {
	segments := strings.Split(strings.TrimPrefix(pointer, "#/"), "/")
	var cur any = r.root
	for _, seg := range segments {
		seg = unescapePointerSegment(seg)
		switch node := cur.(type) {
		case map[string]any:
			val, ok := node[seg]
			if !ok {
				return nil, fmt.Errorf("dangling $ref: %s", pointer)
			}
			cur = val
		case []any:
			idx, err := strconv.Atoi(seg)
			if err != nil || idx < 0 || idx >= len(node) {
				return nil, fmt.Errorf("dangling $ref: %s", pointer)
			}
			cur = node[idx]
		default:
			return nil, fmt.Errorf("dangling $ref: %s", pointer)
		}
	}
	return cur, nil
}

func unescapePointerSegment(s string) string {
	s = strings.ReplaceAll(s, "~1", "/")
	s = strings.ReplaceAll(s, "~0", "~")
	return s
}
