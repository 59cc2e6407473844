// Package pipeline orchestrates a single request through operation
// resolution, request validation, rule selection and execution, response
// generation, and response validation (spec §4.G) - wiring together
// internal/spec, internal/store, internal/rules, internal/template, and
// internal/schema.
package pipeline

import "strings"

// Request is the transport-agnostic request value the httpserver adapter
// builds from a fasthttp.RequestCtx.
type Request struct {
	ID       string
	Method   string
	Path     string
	Headers  map[string]string // as received; use Header() for case-insensitive lookup
	Cookies  map[string]string
	Query    map[string]string // first-value-wins per query param name
	Body     any                // decoded JSON body, or nil
	PathVars map[string]string
}

// Header looks up a header case-insensitively, matching HTTP semantics.
func (r *Request) Header(name string) (string, bool) {
	for k, v := range r.Headers {
		if strings.EqualFold(k, name) {
			return v, true
		}
	}
	return "", false
}

// sessionHeader / sessionCookie / authHeader name the three places a
// session identifier may be carried, checked in this precedence order
// (spec §6), falling back to the global sentinel session if none is
// present.
const (
	sessionHeader = "X-Sandbox-Session"
	sessionCookie = "sandbox_session"
	authHeader    = "Authorization"
)

// SessionID extracts the session identifier per the precedence order:
// X-Sandbox-Session header, then the sandbox_session cookie, then the
// Authorization header. It returns "" when none is present; the pipeline
// then uses the global sentinel session.
func (r *Request) SessionID() string {
	if v, ok := r.Header(sessionHeader); ok && v != "" {
		return v
	}
	if v, ok := r.Cookies[sessionCookie]; ok && v != "" {
		return v
	}
	if v, ok := r.Header(authHeader); ok && v != "" {
		return v
	}
	return ""
}

// AsMap renders the request as the `req` binding exposed to expr/template
// evaluation (spec §4.D).
func (r *Request) AsMap() map[string]any {
	headers := make(map[string]any, len(r.Headers))
	for k, v := range r.Headers {
		headers[k] = v
	}
	query := make(map[string]any, len(r.Query))
	for k, v := range r.Query {
		query[k] = v
	}
	pathVars := make(map[string]any, len(r.PathVars))
	for k, v := range r.PathVars {
		pathVars[k] = v
	}
	return map[string]any{
		"method":  r.Method,
		"path":    r.Path,
		"headers": headers,
		"query":   query,
		"params":  pathVars,
		"body":    r.Body,
	}
}
