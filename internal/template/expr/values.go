package expr

import (
	"fmt"
	"regexp"
)

func truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case float64:
		return t != 0
	case string:
		return t != ""
	case []any:
		return len(t) > 0
	case map[string]any:
		return len(t) > 0
	default:
		return true
	}
}

func toNumber(v any) (float64, bool) {
	n, ok := v.(float64)
	return n, ok
}

// DynamicObject is implemented by bindings that resolve fields lazily
// instead of exposing a pre-built map[string]any - e.g. the `state`
// binding, which reads through to the session store rather than requiring
// a full upfront snapshot of every key ever written (spec §4.C's store
// contract has no "list all keys" operation by design).
type DynamicObject interface {
	Get(field string) (any, bool)
}

func memberAccess(obj any, field string) (any, error) {
	if dyn, ok := obj.(DynamicObject); ok {
		v, _ := dyn.Get(field)
		return v, nil
	}
	m, ok := obj.(map[string]any)
	if !ok {
		if obj == nil {
			return nil, nil
		}
		return nil, fmt.Errorf("expr: cannot access field %q of non-object value", field)
	}
	return m[field], nil
}

func indexAccess(obj, idx any) (any, error) {
	switch o := obj.(type) {
	case []any:
		n, ok := toNumber(idx)
		if !ok {
			return nil, fmt.Errorf("expr: array index must be a number")
		}
		i := int(n)
		if i < 0 || i >= len(o) {
			return nil, nil
		}
		return o[i], nil
	case map[string]any:
		key, ok := idx.(string)
		if !ok {
			return nil, fmt.Errorf("expr: object index must be a string")
		}
		return o[key], nil
	case DynamicObject:
		key, ok := idx.(string)
		if !ok {
			return nil, fmt.Errorf("expr: object index must be a string")
		}
		v, _ := o.Get(key)
		return v, nil
	case nil:
		return nil, nil
	default:
		return nil, fmt.Errorf("expr: cannot index non-collection value")
	}
}

func equal(a, b any) bool {
	if re, ok := b.(*regexp.Regexp); ok {
		s, ok := a.(string)
		return ok && re.MatchString(s)
	}
	if re, ok := a.(*regexp.Regexp); ok {
		s, ok := b.(string)
		return ok && re.MatchString(s)
	}
	an, aok := toNumber(a)
	bn, bok := toNumber(b)
	if aok && bok {
		return an == bn
	}
	return a == b
}

func compare(op string, a, b any) (bool, error) {
	an, aok := toNumber(a)
	bn, bok := toNumber(b)
	if aok && bok {
		switch op {
		case "<":
			return an < bn, nil
		case "<=":
			return an <= bn, nil
		case ">":
			return an > bn, nil
		case ">=":
			return an >= bn, nil
		}
	}
	as, aIsStr := a.(string)
	bs, bIsStr := b.(string)
	if aIsStr && bIsStr {
		switch op {
		case "<":
			return as < bs, nil
		case "<=":
			return as <= bs, nil
		case ">":
			return as > bs, nil
		case ">=":
			return as >= bs, nil
		}
	}
	return false, fmt.Errorf("expr: cannot compare %T and %T", a, b)
}

func add(a, b any) (any, error) {
	an, aok := toNumber(a)
	bn, bok := toNumber(b)
	if aok && bok {
		return an + bn, nil
	}
	as, aIsStr := a.(string)
	bs, bIsStr := b.(string)
	if aIsStr || bIsStr {
		if !aIsStr {
			as = stringify(a)
		}
		if !bIsStr {
			bs = stringify(b)
		}
		return as + bs, nil
	}
	return nil, fmt.Errorf("expr: cannot add %T and %T", a, b)
}

func arithmetic(op string, a, b any) (any, error) {
	an, aok := toNumber(a)
	bn, bok := toNumber(b)
	if !aok || !bok {
		return nil, fmt.Errorf("expr: %s requires numeric operands, got %T and %T", op, a, b)
	}
	switch op {
	case "-":
		return an - bn, nil
	case "*":
		return an * bn, nil
	case "/":
		if bn == 0 {
			return nil, fmt.Errorf("expr: division by zero")
		}
		return an / bn, nil
	case "%":
		if bn == 0 {
			return nil, fmt.Errorf("expr: modulo by zero")
		}
		return float64(int64(an) % int64(bn)), nil
	default:
		return nil, fmt.Errorf("expr: unknown arithmetic operator %q", op)
	}
}

func stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case bool:
		if t {
			return "true"
		}
		return "false"
	case float64:
		return fmt.Sprintf("%g", t)
	default:
		return fmt.Sprintf("%v", t)
	}
}
