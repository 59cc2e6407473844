// Package rules implements the scenario rule engine (spec §4.F): ordered
// selectors matched against a resolved operation and request, each firing
// an ordered list of actions against session state and the response under
// construction.
//
// Actions are modeled as a closed set of concrete Go types behind one
// interface, parsed once when the scenario file loads. Execution then
// type-switches over the concrete variant instead of re-inspecting the raw
// YAML map on every request - the raw map is exactly the kind of ad-hoc
// untyped value pkg/jsonvalue's doc comment describes, and actions are a
// fixed, finite vocabulary, so here a real sum type (simulated via an
// interface + concrete structs) is the better fit than `any`.
package rules

import "time"

// Action is one step of a rule's `do` list.
type Action interface {
	isAction()
}

// RespondAction overrides the response under construction. Status 0 means
// "leave whatever the pipeline already selected". Body is a template tree
// (spec §4.D) rendered against the request-scoped expr context.
type RespondAction struct {
	Status  int
	Headers map[string]string
	Body    any
}

// StateSetAction replaces the value at Key, optionally with a TTL.
type StateSetAction struct {
	Key   string
	Value any
	TTL   time.Duration
	Scope Scope
}

// StatePatchAction deep-merges Value into the existing entry at Key (spec
// §4.C one-level merge semantics).
type StatePatchAction struct {
	Key   string
	Value any
	Scope Scope
}

// StateIncrementAction adds By to the numeric value at Key. If As is set,
// the result is also bound into the rule-local `vars` namespace under that
// name, visible to later actions and their `{{ vars.<as> }}` templates.
type StateIncrementAction struct {
	Key   string
	By    float64
	As    string
	Scope Scope
}

// StateDelAction removes Key.
type StateDelAction struct {
	Key   string
	Scope Scope
}

// DelayAction pauses execution, simulating upstream latency.
type DelayAction struct {
	Duration time.Duration
}

// IfAction branches on a boolean expr expression, running Then or Else.
type IfAction struct {
	When string
	Then []Action
	Else []Action
}

// ProxyAction is reserved for a future upstream-forwarding action. Today it
// only logs and reports via audit; spec's non-goals exclude real upstream
// proxying.
type ProxyAction struct {
	Target string
}

// EmitAction renders Message and logs it at the named severity (info, warn,
// error). Event/Payload additionally forward the same occurrence to the
// audit sink when set, strictly observational and never on the
// response-critical path.
type EmitAction struct {
	Level   string
	Message string
	Event   string
	Payload any
}

// Scope selects which session namespace a state action targets, mirroring
// internal/store.Scope without importing it directly from the action
// vocabulary (keeps this package's public surface self-contained).
type Scope string

const (
	ScopeSession Scope = "session"
	ScopeGlobal  Scope = "global"
)

func (RespondAction) isAction()        {}
func (StateSetAction) isAction()       {}
func (StatePatchAction) isAction()     {}
func (StateIncrementAction) isAction() {}
func (StateDelAction) isAction()       {}
func (DelayAction) isAction()          {}
func (IfAction) isAction()             {}
func (ProxyAction) isAction()          {}
func (EmitAction) isAction()           {}
