package rules

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/oas-sandbox/engine/internal/store"
	"github.com/oas-sandbox/engine/internal/template"
	"github.com/oas-sandbox/engine/internal/template/expr"
)

// AuditSink receives emit-action events. Implementations must never fail a
// request: internal/audit's ClickHouse sink is best-effort and logs its own
// errors instead of returning them here.
type AuditSink interface {
	Emit(ctx context.Context, event string, payload any)
}

// noopAudit is used when no sink is configured.
type noopAudit struct{}

func (noopAudit) Emit(context.Context, string, any) {}

// Response is the response-under-construction that action execution
// mutates. The pipeline starts it empty and lets `respond` actions fill it;
// if no action set a status, the pipeline completes it afterwards from the
// matched operation's declared success response.
type Response struct {
	Status  int
	Headers map[string]string
	Body    any
}

// ExecContext carries everything action execution needs beyond the action
// list itself.
type ExecContext struct {
	Session *store.Namespaced
	Expr    *expr.Context
	// Vars is the same map backing the `vars` binding in Expr - actions
	// like state.increment's `as` write into it so later actions and
	// templates in the same list can read `{{ vars.<name> }}`.
	Vars   map[string]any
	Audit  AuditSink
	Logger *zap.Logger
	// DefaultTTL backs a state.set action with no explicit ttl, sourced
	// from the configured store backend's default TTL (spec §6's
	// store.memory.defaultTtl). Zero leaves the entry without expiry.
	DefaultTTL time.Duration
}

// Execute runs actions in order against resp, mutating it in place.
// Sequential ordering matters: a later state.set can be read by an if
// condition two actions later in the same list.
func Execute(ctx context.Context, actions []Action, resp *Response, ec *ExecContext) error {
	if ec.Audit == nil {
		ec.Audit = noopAudit{}
	}
	for _, a := range actions {
		if err := execOne(ctx, a, resp, ec); err != nil {
			return err
		}
	}
	return nil
}

func execOne(ctx context.Context, a Action, resp *Response, ec *ExecContext) error {
	switch t := a.(type) {
	case RespondAction:
		if t.Status != 0 {
			resp.Status = t.Status
		}
		if len(t.Headers) > 0 {
			if resp.Headers == nil {
				resp.Headers = map[string]string{}
			}
			for k, v := range t.Headers {
				rendered, err := template.Render(v, ec.Expr)
				if err != nil {
					return fmt.Errorf("rules: respond header %q: %w", k, err)
				}
				resp.Headers[k] = fmt.Sprint(rendered)
			}
		}
		if t.Body != nil {
			body, err := template.Render(t.Body, ec.Expr)
			if err != nil {
				return fmt.Errorf("rules: respond body: %w", err)
			}
			resp.Body = body
		}
		return nil

	case StateSetAction:
		key, err := renderKey(t.Key, ec.Expr)
		if err != nil {
			return fmt.Errorf("rules: state.set key %q: %w", t.Key, err)
		}
		value, err := template.Render(t.Value, ec.Expr)
		if err != nil {
			return fmt.Errorf("rules: state.set %q: %w", key, err)
		}
		ttl := t.TTL
		if ttl == 0 {
			ttl = ec.DefaultTTL
		}
		return sessionFor(ec, t.Scope).Set(ctx, key, value, ttl)

	case StatePatchAction:
		key, err := renderKey(t.Key, ec.Expr)
		if err != nil {
			return fmt.Errorf("rules: state.patch key %q: %w", t.Key, err)
		}
		value, err := template.Render(t.Value, ec.Expr)
		if err != nil {
			return fmt.Errorf("rules: state.patch %q: %w", key, err)
		}
		return sessionFor(ec, t.Scope).Patch(ctx, key, value)

	case StateIncrementAction:
		key, err := renderKey(t.Key, ec.Expr)
		if err != nil {
			return fmt.Errorf("rules: state.increment key %q: %w", t.Key, err)
		}
		result, err := sessionFor(ec, t.Scope).Increment(ctx, key, t.By)
		if err != nil {
			return err
		}
		if t.As != "" && ec.Vars != nil {
			ec.Vars[t.As] = result
		}
		return nil

	case StateDelAction:
		key, err := renderKey(t.Key, ec.Expr)
		if err != nil {
			return fmt.Errorf("rules: state.del key %q: %w", t.Key, err)
		}
		return sessionFor(ec, t.Scope).Del(ctx, key)

	case DelayAction:
		timer := time.NewTimer(t.Duration)
		defer timer.Stop()
		select {
		case <-timer.C:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}

	case IfAction:
		ok, err := template.Predicate(t.When, ec.Expr)
		if err != nil {
			return fmt.Errorf("rules: if condition: %w", err)
		}
		if ok {
			return Execute(ctx, t.Then, resp, ec)
		}
		return Execute(ctx, t.Else, resp, ec)

	case ProxyAction:
		logAtLevel(ec.Logger, "warn", "proxy action is not implemented, target "+t.Target)
		ec.Audit.Emit(ctx, "proxy.unimplemented", map[string]any{"target": t.Target})
		return nil

	case EmitAction:
		message, err := template.Render(t.Message, ec.Expr)
		if err != nil {
			return fmt.Errorf("rules: emit message: %w", err)
		}
		logAtLevel(ec.Logger, t.Level, fmt.Sprint(message))

		if t.Event != "" {
			payload, err := template.Render(t.Payload, ec.Expr)
			if err != nil {
				return fmt.Errorf("rules: emit %q: %w", t.Event, err)
			}
			ec.Audit.Emit(ctx, t.Event, payload)
		}
		return nil

	default:
		return fmt.Errorf("rules: unhandled action type %T", a)
	}
}

func sessionFor(ec *ExecContext, scope Scope) *store.Namespaced {
	if scope == ScopeGlobal {
		return ec.Session.WithScope(store.ScopeGlobal)
	}
	return ec.Session
}

// renderKey template-renders a state action's key, which is always a
// string even when the rendered result would otherwise preserve a
// non-string JSON type (spec's state actions address keys, not values).
func renderKey(key string, ctx *expr.Context) (string, error) {
	rendered, err := template.Render(key, ctx)
	if err != nil {
		return "", err
	}
	if s, ok := rendered.(string); ok {
		return s, nil
	}
	return fmt.Sprint(rendered), nil
}

// logAtLevel logs msg at the named severity (info, warn, error),
// defaulting to info for an unset or unrecognized level. A nil logger is a
// no-op, matching the rest of this package's best-effort logging posture.
func logAtLevel(logger *zap.Logger, level, msg string) {
	if logger == nil {
		return
	}
	switch level {
	case "warn":
		logger.Warn(msg)
	case "error":
		logger.Error(msg)
	default:
		logger.Info(msg)
	}
}
