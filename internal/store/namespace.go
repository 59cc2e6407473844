package store

import (
	"context"
	"time"
)

// Scope is the session scope tag carried on every state key (spec §3).
type Scope string

const (
	ScopeSession Scope = "session"
	ScopeGlobal  Scope = "global"
)

// GlobalSessionID is the sentinel session identifier reserved for the
// global scope (spec §6).
const GlobalSessionID = "GLOBAL"

// Namespaced decorates a shared Store with a session/global key prefix. It
// implements the same Store contract and defers Close: the underlying
// store is shared across sessions and is closed once by its owner, not by
// each namespaced view (spec §4.C).
type Namespaced struct {
	inner Store
	sid   string
	scope Scope
}

// NewNamespaced builds a namespaced view over inner for the given session.
func NewNamespaced(inner Store, sessionID string, scope Scope) *Namespaced {
	return &Namespaced{inner: inner, sid: sessionID, scope: scope}
}

// Key returns the fully namespaced key, exported so callers (e.g. the
// template engine's `state` binding) can read the same flat key.
func (n *Namespaced) Key(key string) string {
	if n.scope == ScopeGlobal {
		return "global:" + key
	}
	return "session:" + n.sid + ":" + key
}

func (n *Namespaced) Get(ctx context.Context, key string) (*Entry, bool, error) {
	return n.inner.Get(ctx, n.Key(key))
}

func (n *Namespaced) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	return n.inner.Set(ctx, n.Key(key), value, ttl)
}

func (n *Namespaced) Del(ctx context.Context, key string) error {
	return n.inner.Del(ctx, n.Key(key))
}

func (n *Namespaced) Increment(ctx context.Context, key string, by float64) (float64, error) {
	return n.inner.Increment(ctx, n.Key(key), by)
}

func (n *Namespaced) Patch(ctx context.Context, key string, value any) error {
	return n.inner.Patch(ctx, n.Key(key), value)
}

// Close is a deliberate no-op: the wrapped store is shared.
func (n *Namespaced) Close() error { return nil }

// WithScope derives a view for a different scope over the same session id,
// used to implement the optional per-action `scope` override (spec §4.F).
func (n *Namespaced) WithScope(scope Scope) *Namespaced {
	return NewNamespaced(n.inner, n.sid, scope)
}
