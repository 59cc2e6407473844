// Package jsonvalue implements the total functions over untyped JSON-shaped
// values (null, bool, float64, string, []any, map[string]any) that the state
// store, template engine, and schema engine all share: deep merge, cloning,
// and structural equality. Values are plain `any` as decoded by
// encoding/json, not a custom tagged union - the type switch below is the
// idiomatic Go substitute for the sum type a systems language would need.
package jsonvalue

// Merge implements the deep-merge semantics of state.patch:
//   - existing absent (nil)      -> incoming, verbatim
//   - both non-array objects     -> shallow override: incoming's keys win
//   - both arrays                -> concatenation, existing first
//   - anything else              -> replace with incoming
//
// Only one level of key override is performed for objects: nested objects
// are replaced, not merged recursively. This matches the store contract in
// spec §4.C, which is explicit that the "deep merge" language in the source
// material in fact describes one-level override (see DESIGN.md).
func Merge(existing, incoming any) any {
	if existing == nil {
		return incoming
	}

	existingObj, existingIsObj := existing.(map[string]any)
	incomingObj, incomingIsObj := incoming.(map[string]any)
	if existingIsObj && incomingIsObj {
		merged := make(map[string]any, len(existingObj)+len(incomingObj))
		for k, v := range existingObj {
			merged[k] = v
		}
		for k, v := range incomingObj {
			merged[k] = v
		}
		return merged
	}

	existingArr, existingIsArr := existing.([]any)
	incomingArr, incomingIsArr := incoming.([]any)
	if existingIsArr && incomingIsArr {
		merged := make([]any, 0, len(existingArr)+len(incomingArr))
		merged = append(merged, existingArr...)
		merged = append(merged, incomingArr...)
		return merged
	}

	return incoming
}

// Clone performs a deep copy of a decoded JSON value.
func Clone(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = Clone(val)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = Clone(val)
		}
		return out
	default:
		return t
	}
}

// Equal reports whether two decoded JSON values are structurally identical.
// Used by the schema generator's one-shot uniqueItems dedupe.
func Equal(a, b any) bool {
	switch av := a.(type) {
	case map[string]any:
		bv, ok := b.(map[string]any)
		if !ok || len(av) != len(bv) {
			return false
		}
		for k, v := range av {
			bvv, ok := bv[k]
			if !ok || !Equal(v, bvv) {
				return false
			}
		}
		return true
	case []any:
		bv, ok := b.([]any)
		if !ok || len(av) != len(bv) {
			return false
		}
		for i, v := range av {
			if !Equal(v, bv[i]) {
				return false
			}
		}
		return true
	default:
		return a == b
	}
}

// IsObject reports whether v decodes to a JSON object (and not an array).
func IsObject(v any) bool {
	_, ok := v.(map[string]any)
	return ok
}

// IsArray reports whether v decodes to a JSON array.
func IsArray(v any) bool {
	_, ok := v.([]any)
	return ok
}
