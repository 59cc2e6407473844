// Package template renders literal/templated response bodies and resolves
// rule-condition predicates against the sandboxed expr language (spec
// §4.D). A template is any JSON-shaped value (map/slice/scalar) in which
// string leaves may contain one or more `{{ expression }}` placeholders.
package template

import (
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/oas-sandbox/engine/internal/template/expr"
	"github.com/oas-sandbox/engine/internal/template/faker"
	"github.com/oas-sandbox/engine/internal/template/prng"
)

var placeholder = regexp.MustCompile(`\{\{(.*?)\}\}`)

// Render walks tree (decoded JSON: map[string]any / []any / scalars) and
// evaluates every `{{ }}` placeholder found in string leaves. A string leaf
// that is *exactly* one placeholder (nothing else in the string) is
// replaced by the expression's native value (so `"{{ n }}"` can become a
// JSON number, object, or array, not just a string); a string with
// placeholders mixed into surrounding text is rendered as a string with
// each placeholder's value substituted in.
func Render(tree any, ctx *expr.Context) (any, error) {
	switch t := tree.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, v := range t {
			rv, err := Render(v, ctx)
			if err != nil {
				return nil, fmt.Errorf("template: field %q: %w", k, err)
			}
			out[k] = rv
		}
		return out, nil

	case []any:
		out := make([]any, len(t))
		for i, v := range t {
			rv, err := Render(v, ctx)
			if err != nil {
				return nil, fmt.Errorf("template: index %d: %w", i, err)
			}
			out[i] = rv
		}
		return out, nil

	case string:
		return renderString(t, ctx)

	default:
		return t, nil
	}
}

func renderString(s string, ctx *expr.Context) (any, error) {
	matches := placeholder.FindAllStringSubmatchIndex(s, -1)
	if len(matches) == 0 {
		return s, nil
	}

	// A string that is exactly one placeholder evaluates to the raw value,
	// preserving its JSON type.
	if len(matches) == 1 && matches[0][0] == 0 && matches[0][1] == len(s) {
		src := s[matches[0][2]:matches[0][3]]
		return expr.Evaluate(strings.TrimSpace(src), ctx)
	}

	var b strings.Builder
	last := 0
	for _, m := range matches {
		b.WriteString(s[last:m[0]])
		src := strings.TrimSpace(s[m[2]:m[3]])
		v, err := expr.Evaluate(src, ctx)
		if err != nil {
			return nil, err
		}
		b.WriteString(stringify(v))
		last = m[1]
	}
	b.WriteString(s[last:])
	return b.String(), nil
}

func stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	case float64:
		return strconv.FormatFloat(t, 'g', -1, 64)
	default:
		raw, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprintf("%v", t)
		}
		return string(raw)
	}
}

// Predicate evaluates a boolean rule condition. Spec §4.F conditions are
// plain expr expressions expected to yield a boolean.
func Predicate(src string, ctx *expr.Context) (bool, error) {
	v, err := expr.Evaluate(src, ctx)
	if err != nil {
		return false, err
	}
	b, ok := v.(bool)
	if !ok {
		return false, fmt.Errorf("template: condition %q did not evaluate to a boolean (got %T)", src, v)
	}
	return b, nil
}

// ContextInput carries the request-scoped bindings exposed to expressions
// (spec §4.D): req, session, state, vars, and the ambient faker/math/util
// namespaces.
type ContextInput struct {
	Req     map[string]any
	Session map[string]any
	// State backs the `state` binding. It is usually a map[string]any for
	// tests and simple cases, or an expr.DynamicObject (e.g.
	// internal/pipeline's store-backed accessor) when state reads must go
	// through to a live session store instead of a pre-built snapshot.
	State      any
	Vars       map[string]any
	GlobalSeed int64
	RequestID  string
}

// BuildContext wires ContextInput into an expr.Context, binding uuid(),
// rand(), faker.*, math.*, and util.{json,string,array,object}.
func BuildContext(in ContextInput) *expr.Context {
	src := prng.NewForRequest(in.GlobalSeed, in.RequestID)
	fk := faker.New(src)

	vars := map[string]any{
		"req":     in.Req,
		"session": in.Session,
		"state":   in.State,
		"vars":    in.Vars,
		"now":     time.Now().Format(time.RFC3339),
	}

	funcs := map[string]expr.Func{
		"uuid": func(args []any) (any, error) { return fk.UUID(), nil },
		"rand": func(args []any) (any, error) {
			lo, hi := 0.0, 1.0
			if len(args) >= 2 {
				a, _ := args[0].(float64)
				b, _ := args[1].(float64)
				lo, hi = a, b
			}
			if len(args) >= 2 {
				return float64(src.Range(int(lo), int(hi))), nil
			}
			return src.Float64(), nil
		},
	}
	for name, fn := range fk.Funcs() {
		fn := fn
		funcs[name] = func(args []any) (any, error) { return fn(args) }
	}
	for name, fn := range mathFuncs() {
		funcs[name] = fn
	}
	for name, fn := range utilFuncs() {
		funcs[name] = fn
	}

	return &expr.Context{Vars: vars, Funcs: funcs}
}

func mathFuncs() map[string]expr.Func {
	unary := func(f func(float64) float64) expr.Func {
		return func(args []any) (any, error) {
			if len(args) != 1 {
				return nil, fmt.Errorf("template: math function requires exactly one argument")
			}
			n, ok := args[0].(float64)
			if !ok {
				return nil, fmt.Errorf("template: math function requires a numeric argument")
			}
			return f(n), nil
		}
	}
	return map[string]expr.Func{
		"math.floor": unary(math.Floor),
		"math.ceil":  unary(math.Ceil),
		"math.round": unary(math.Round),
		"math.abs":   unary(math.Abs),
		"math.min": func(args []any) (any, error) {
			if len(args) != 2 {
				return nil, fmt.Errorf("template: math.min requires two arguments")
			}
			a, _ := args[0].(float64)
			b, _ := args[1].(float64)
			return math.Min(a, b), nil
		},
		"math.max": func(args []any) (any, error) {
			if len(args) != 2 {
				return nil, fmt.Errorf("template: math.max requires two arguments")
			}
			a, _ := args[0].(float64)
			b, _ := args[1].(float64)
			return math.Max(a, b), nil
		},
	}
}

func utilFuncs() map[string]expr.Func {
	return map[string]expr.Func{
		"util.json.stringify": func(args []any) (any, error) {
			if len(args) != 1 {
				return nil, fmt.Errorf("template: util.json.stringify requires one argument")
			}
			raw, err := json.Marshal(args[0])
			if err != nil {
				return nil, fmt.Errorf("template: util.json.stringify: %w", err)
			}
			return string(raw), nil
		},
		"util.json.parse": func(args []any) (any, error) {
			if len(args) != 1 {
				return nil, fmt.Errorf("template: util.json.parse requires one argument")
			}
			s, ok := args[0].(string)
			if !ok {
				return nil, fmt.Errorf("template: util.json.parse requires a string argument")
			}
			var out any
			if err := json.Unmarshal([]byte(s), &out); err != nil {
				return nil, fmt.Errorf("template: util.json.parse: %w", err)
			}
			return out, nil
		},
		"util.string.upper": func(args []any) (any, error) { return strOp(args, strings.ToUpper) },
		"util.string.lower": func(args []any) (any, error) { return strOp(args, strings.ToLower) },
		"util.string.trim":  func(args []any) (any, error) { return strOp(args, strings.TrimSpace) },
		"util.string.length": func(args []any) (any, error) {
			s, ok := singleString(args)
			if !ok {
				return nil, fmt.Errorf("template: util.string.length requires a string argument")
			}
			return float64(len(s)), nil
		},
		"util.string.replace": func(args []any) (any, error) {
			if len(args) != 3 {
				return nil, fmt.Errorf("template: util.string.replace requires three arguments")
			}
			s, ok := args[0].(string)
			old, okOld := args[1].(string)
			repl, okRepl := args[2].(string)
			if !ok || !okOld || !okRepl {
				return nil, fmt.Errorf("template: util.string.replace requires three string arguments")
			}
			return strings.ReplaceAll(s, old, repl), nil
		},
		"util.array.length": func(args []any) (any, error) {
			if len(args) != 1 {
				return nil, fmt.Errorf("template: util.array.length requires one argument")
			}
			arr, ok := args[0].([]any)
			if !ok {
				return nil, fmt.Errorf("template: util.array.length requires an array argument")
			}
			return float64(len(arr)), nil
		},
		"util.array.join": func(args []any) (any, error) {
			if len(args) != 2 {
				return nil, fmt.Errorf("template: util.array.join requires two arguments")
			}
			arr, ok := args[0].([]any)
			sep, okSep := args[1].(string)
			if !ok || !okSep {
				return nil, fmt.Errorf("template: util.array.join requires an array and a string separator")
			}
			parts := make([]string, len(arr))
			for i, v := range arr {
				parts[i] = stringify(v)
			}
			return strings.Join(parts, sep), nil
		},
		"util.array.slice": func(args []any) (any, error) {
			if len(args) != 3 {
				return nil, fmt.Errorf("template: util.array.slice requires three arguments")
			}
			arr, ok := args[0].([]any)
			start, okStart := args[1].(float64)
			end, okEnd := args[2].(float64)
			if !ok || !okStart || !okEnd {
				return nil, fmt.Errorf("template: util.array.slice requires an array and two numeric bounds")
			}
			lo := clampIndex(int(start), len(arr))
			hi := clampIndex(int(end), len(arr))
			if hi < lo {
				hi = lo
			}
			out := make([]any, hi-lo)
			copy(out, arr[lo:hi])
			return out, nil
		},
		"util.object.keys": func(args []any) (any, error) {
			obj, ok := singleObject(args)
			if !ok {
				return nil, fmt.Errorf("template: util.object.keys requires an object argument")
			}
			keys := make([]any, 0, len(obj))
			for k := range obj {
				keys = append(keys, k)
			}
			return keys, nil
		},
		"util.object.values": func(args []any) (any, error) {
			obj, ok := singleObject(args)
			if !ok {
				return nil, fmt.Errorf("template: util.object.values requires an object argument")
			}
			values := make([]any, 0, len(obj))
			for _, v := range obj {
				values = append(values, v)
			}
			return values, nil
		},
		"util.object.entries": func(args []any) (any, error) {
			obj, ok := singleObject(args)
			if !ok {
				return nil, fmt.Errorf("template: util.object.entries requires an object argument")
			}
			entries := make([]any, 0, len(obj))
			for k, v := range obj {
				entries = append(entries, []any{k, v})
			}
			return entries, nil
		},
	}
}

func singleObject(args []any) (map[string]any, bool) {
	if len(args) != 1 {
		return nil, false
	}
	obj, ok := args[0].(map[string]any)
	return obj, ok
}

func clampIndex(i, length int) int {
	if i < 0 {
		i = 0
	}
	if i > length {
		i = length
	}
	return i
}

func singleString(args []any) (string, bool) {
	if len(args) != 1 {
		return "", false
	}
	s, ok := args[0].(string)
	return s, ok
}

func strOp(args []any, f func(string) string) (any, error) {
	s, ok := singleString(args)
	if !ok {
		return nil, fmt.Errorf("template: string function requires a string argument")
	}
	return f(s), nil
}
