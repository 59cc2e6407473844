package expr

import (
	"fmt"
	"regexp"
	"time"
)

// MaxEvalDuration bounds how long a single Evaluate call may run (spec
// §4.D's 100ms wall-clock cap). Checked before every node visit rather than
// via a goroutine+timeout, since the grammar has no loops; a single node
// that runs long (one regex match or one host function call) is not
// interrupted, and the cap is reported at the next node visit.
const MaxEvalDuration = 100 * time.Millisecond

// Func is a sandboxed host function exposed to expressions (e.g. faker.*,
// math.*, util.*). It receives already-evaluated arguments.
type Func func(args []any) (any, error)

// Context carries the variable bindings and function namespaces visible to
// an expression. Bindings are plain `any` values (maps/slices/scalars), not
// a custom type - see pkg/jsonvalue's package doc for why.
type Context struct {
	Vars  map[string]any
	Funcs map[string]Func
}

type evaluator struct {
	ctx      *Context
	deadline time.Time
}

// Evaluate parses and runs src against ctx, enforcing the length and
// wall-clock caps.
func Evaluate(src string, ctx *Context) (any, error) {
	node, err := Parse(src)
	if err != nil {
		return nil, err
	}
	e := &evaluator{ctx: ctx, deadline: time.Now().Add(MaxEvalDuration)}
	return e.eval(node)
}

func (e *evaluator) checkDeadline() error {
	if time.Now().After(e.deadline) {
		return fmt.Errorf("expr: evaluation exceeded %s", MaxEvalDuration)
	}
	return nil
}

func (e *evaluator) eval(n Node) (any, error) {
	if err := e.checkDeadline(); err != nil {
		return nil, err
	}

	switch t := n.(type) {
	case literalNode:
		return t.value, nil

	case regexNode:
		re, err := regexp.Compile(t.pattern)
		if err != nil {
			return nil, fmt.Errorf("expr: invalid regex %q: %w", t.pattern, err)
		}
		return re, nil

	case identNode:
		v, ok := e.ctx.Vars[t.name]
		if !ok {
			return nil, nil
		}
		return v, nil

	case memberNode:
		obj, err := e.eval(t.object)
		if err != nil {
			return nil, err
		}
		return memberAccess(obj, t.field)

	case indexNode:
		obj, err := e.eval(t.object)
		if err != nil {
			return nil, err
		}
		idx, err := e.eval(t.index)
		if err != nil {
			return nil, err
		}
		return indexAccess(obj, idx)

	case unaryNode:
		x, err := e.eval(t.x)
		if err != nil {
			return nil, err
		}
		switch t.op {
		case "!":
			return !truthy(x), nil
		case "-":
			n, ok := toNumber(x)
			if !ok {
				return nil, fmt.Errorf("expr: unary '-' on non-number")
			}
			return -n, nil
		}
		return nil, fmt.Errorf("expr: unknown unary operator %q", t.op)

	case binaryNode:
		return e.evalBinary(t)

	case conditionalNode:
		cond, err := e.eval(t.cond)
		if err != nil {
			return nil, err
		}
		if truthy(cond) {
			return e.eval(t.then)
		}
		return e.eval(t.els)

	case callNode:
		return e.evalCall(t)

	default:
		return nil, fmt.Errorf("expr: unhandled node type %T", n)
	}
}

func (e *evaluator) evalBinary(b binaryNode) (any, error) {
	// Short-circuit && and || before evaluating the right side.
	if b.op == "&&" {
		l, err := e.eval(b.l)
		if err != nil {
			return nil, err
		}
		if !truthy(l) {
			return false, nil
		}
		r, err := e.eval(b.r)
		if err != nil {
			return nil, err
		}
		return truthy(r), nil
	}
	if b.op == "||" {
		l, err := e.eval(b.l)
		if err != nil {
			return nil, err
		}
		if truthy(l) {
			return true, nil
		}
		r, err := e.eval(b.r)
		if err != nil {
			return nil, err
		}
		return truthy(r), nil
	}

	l, err := e.eval(b.l)
	if err != nil {
		return nil, err
	}
	r, err := e.eval(b.r)
	if err != nil {
		return nil, err
	}

	switch b.op {
	case "==":
		return equal(l, r), nil
	case "!=":
		return !equal(l, r), nil
	case "<", "<=", ">", ">=":
		return compare(b.op, l, r)
	case "+":
		return add(l, r)
	case "-", "*", "/", "%":
		return arithmetic(b.op, l, r)
	default:
		return nil, fmt.Errorf("expr: unknown binary operator %q", b.op)
	}
}

func (e *evaluator) evalCall(c callNode) (any, error) {
	name, err := callableName(c.callee)
	if err != nil {
		return nil, err
	}
	fn, ok := e.ctx.Funcs[name]
	if !ok {
		return nil, fmt.Errorf("expr: undefined function %q", name)
	}

	args := make([]any, len(c.args))
	for i, a := range c.args {
		v, err := e.eval(a)
		if err != nil {
			return nil, err
		}
		args[i] = v
	}
	return fn(args)
}

// callableName reduces a callee expression (an identNode or a chain of
// memberNodes like faker.email) to the dotted name used to look it up in
// Context.Funcs.
func callableName(n Node) (string, error) {
	switch t := n.(type) {
	case identNode:
		return t.name, nil
	case memberNode:
		base, err := callableName(t.object)
		if err != nil {
			return "", err
		}
		return base + "." + t.field, nil
	default:
		return "", fmt.Errorf("expr: expression is not callable")
	}
}
