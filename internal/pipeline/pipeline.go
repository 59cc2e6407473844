package pipeline

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/oas-sandbox/engine/internal/metrics"
	"github.com/oas-sandbox/engine/internal/problem"
	"github.com/oas-sandbox/engine/internal/rules"
	"github.com/oas-sandbox/engine/internal/schema"
	"github.com/oas-sandbox/engine/internal/spec"
	"github.com/oas-sandbox/engine/internal/store"
	"github.com/oas-sandbox/engine/internal/template"
	"github.com/oas-sandbox/engine/internal/template/prng"
)

// Response validation modes (spec §6's validate.responses knob).
const (
	ResponseValidateOff    = ""
	ResponseValidateWarn   = "warn"
	ResponseValidateStrict = "strict"
)

// Config toggles the pipeline's optional validation and determinism knobs
// (spec §6).
type Config struct {
	ValidateRequests  bool
	ValidateResponses string // "", "warn", or "strict"
	Seed              int64
	DefaultTTL        time.Duration
	ChaosLatency      time.Duration
	ChaosErrorRate    float64
}

// Pipeline wires operation resolution, rule selection/execution, and schema
// validation/generation into the single request/response state machine
// described in spec §4.G.
type Pipeline struct {
	Doc     *spec.Document
	Rules   []*rules.Rule
	Store   store.Store
	Schemas *schema.Compiler
	Audit   rules.AuditSink
	Logger  *zap.Logger
	Metrics *metrics.Collector
	Config  Config
}

// Handle runs one request through match -> validate -> execute -> validate
// -> respond.
func (p *Pipeline) Handle(ctx context.Context, req *Request) (*rules.Response, error) {
	start := time.Now()
	if p.Metrics != nil {
		p.Metrics.IncActiveRequests()
		defer p.Metrics.DecActiveRequests()
	}

	op, vars := p.Doc.FindOperation(req.Method, req.Path)
	if op == nil {
		if p.Metrics != nil {
			p.Metrics.RecordRequest("unmatched", "404", time.Since(start))
		}
		return nil, problem.MatchMiss(fmt.Sprintf("no operation matches %s %s", req.Method, req.Path))
	}
	req.PathVars = vars

	if err := p.applyChaos(ctx, req); err != nil {
		return nil, err
	}

	if p.Config.ValidateRequests {
		if details := p.validateParameters(op, req); len(details) > 0 {
			if p.Metrics != nil {
				p.Metrics.RecordValidationFailure("request")
			}
			return nil, problem.RequestInvalid("request parameters failed validation", details)
		}

		if req.Body != nil && op.RequestBody != nil {
			s, err := p.Schemas.Compile(op.ID+":request", op.RequestBody)
			if err != nil {
				return nil, problem.RequestInvalid("failed to compile request schema", nil)
			}
			if details := s.Validate(req.Body); len(details) > 0 {
				if p.Metrics != nil {
					p.Metrics.RecordValidationFailure("request")
				}
				return nil, problem.RequestInvalid("request body failed schema validation", details)
			}
		}
	}

	sessionID := req.SessionID()
	scope := store.ScopeSession
	if sessionID == "" {
		sessionID = store.GlobalSessionID
		scope = store.ScopeGlobal
	}
	session := store.NewNamespaced(p.Store, sessionID, scope)

	ruleVars := map[string]any{}
	exprCtx := template.BuildContext(template.ContextInput{
		Req:        req.AsMap(),
		Session:    map[string]any{"id": sessionID},
		State:      &stateAccessor{ctx: ctx, session: session},
		Vars:       ruleVars,
		GlobalSeed: p.Config.Seed,
		RequestID:  req.ID,
	})

	matched, err := rules.Select(p.Rules, op.ID, op.Method, op.PathTemplate, rules.RequestFields{
		Query: req.Query, Header: req.Headers, Path: req.PathVars,
	}, exprCtx)
	if err != nil {
		if p.Metrics != nil {
			p.Metrics.RecordTemplateFailure("select")
		}
		return nil, problem.RuleFailure("failed to evaluate rule conditions", err)
	}

	resp := &rules.Response{}
	ec := &rules.ExecContext{Session: session, Expr: exprCtx, Vars: ruleVars, Audit: p.Audit, Logger: p.Logger, DefaultTTL: p.Config.DefaultTTL}
	for _, rule := range matched {
		if p.Metrics != nil {
			p.Metrics.RecordRuleSelected(rule.ID)
		}
		if err := rules.Execute(ctx, rule.Do, resp, ec); err != nil {
			if p.Metrics != nil {
				p.Metrics.RecordTemplateFailure("execute")
			}
			return nil, problem.RuleFailure(fmt.Sprintf("rule %q failed", rule.ID), err)
		}
	}

	if resp.Status == 0 {
		if err := p.fallbackRespond(op, req, resp); err != nil {
			return nil, problem.TemplateFailure("failed to generate fallback response", err)
		}
	}

	if p.Config.ValidateResponses != ResponseValidateOff {
		if err := p.validateResponse(op, resp); err != nil {
			return nil, err
		}
	}

	if p.Metrics != nil {
		p.Metrics.RecordRequest(op.ID, fmt.Sprintf("%d", resp.Status), time.Since(start))
	}
	if p.Audit != nil {
		p.Audit.Emit(ctx, "request.outcome", map[string]any{
			"request_id": req.ID, "operation": op.ID, "status": resp.Status,
		})
	}

	return resp, nil
}

// applyChaos injects the configured artificial latency and, with
// probability Config.ChaosErrorRate, a synthetic failure - spec §6's
// chaos.latency/chaos.errorRate knobs, driven off the same per-request
// deterministic source used for template generation so a fixed seed
// reproduces the same injected faults.
func (p *Pipeline) applyChaos(ctx context.Context, req *Request) error {
	if p.Config.ChaosLatency <= 0 && p.Config.ChaosErrorRate <= 0 {
		return nil
	}
	src := prng.NewForRequest(p.Config.Seed, req.ID)

	if p.Config.ChaosLatency > 0 {
		select {
		case <-time.After(p.Config.ChaosLatency):
		case <-ctx.Done():
			return problem.Timeout("request canceled during chaos-injected latency")
		}
	}

	if p.Config.ChaosErrorRate > 0 && src.Float64() < p.Config.ChaosErrorRate {
		return problem.RuleFailure("chaos fault injection", fmt.Errorf("synthetic failure at configured rate %.3f", p.Config.ChaosErrorRate))
	}
	return nil
}

// validateParameters checks op.Parameters' required/schema constraints
// against req, coercing string-valued numerics/booleans from the
// query/header/cookie slots before validating (spec §4.E). Path, query,
// header, and cookie violations are reported with the documented
// instancePath prefixes (/path/{name}, /query/{name}, /headers/{name},
// /cookies/{name}).
func (p *Pipeline) validateParameters(op *spec.Operation, req *Request) []problem.Detail {
	var details []problem.Detail
	for _, param := range op.Parameters {
		raw, present := paramValue(req, param)
		prefix := "/" + paramPrefixSegment(param.In) + "/" + param.Name

		if !present {
			if param.Required {
				details = append(details, problem.Detail{
					InstancePath: prefix,
					Keyword:      "required",
					Message:      fmt.Sprintf("missing required %s parameter %q", param.In, param.Name),
				})
			}
			continue
		}
		if param.Schema == nil {
			continue
		}

		var value any = raw
		if param.In != spec.ParamPath {
			value = coerceParamValue(raw, param.Schema)
		}

		s, err := p.Schemas.Compile(fmt.Sprintf("%s:param:%s:%s", op.ID, param.In, param.Name), param.Schema)
		if err != nil {
			continue
		}
		for _, d := range s.Validate(value) {
			d.InstancePath = prefix + d.InstancePath
			details = append(details, d)
		}
	}
	return details
}

// paramPrefixSegment maps a parameter location to the documented
// instancePath segment, which differs from ParamLocation's value only for
// "header" -> "headers" / "cookie" -> "cookies" (spec §4.E).
func paramPrefixSegment(in spec.ParamLocation) string {
	switch in {
	case spec.ParamHeader:
		return "headers"
	case spec.ParamCookie:
		return "cookies"
	default:
		return string(in)
	}
}

func paramValue(req *Request, param spec.Parameter) (string, bool) {
	switch param.In {
	case spec.ParamPath:
		v, ok := req.PathVars[param.Name]
		return v, ok
	case spec.ParamQuery:
		v, ok := req.Query[param.Name]
		return v, ok
	case spec.ParamHeader:
		return req.Header(param.Name)
	case spec.ParamCookie:
		v, ok := req.Cookies[param.Name]
		return v, ok
	default:
		return "", false
	}
}

// coerceParamValue converts a query/header/cookie slot's raw string into a
// bool/float64 per the parameter schema's declared type, leaving it as a
// string (and letting Schema.Validate report the type mismatch) if
// coercion fails.
func coerceParamValue(raw string, paramSchema any) any {
	m, ok := paramSchema.(map[string]any)
	if !ok {
		return raw
	}
	switch m["type"] {
	case "integer", "number":
		if n, err := strconv.ParseFloat(raw, 64); err == nil {
			return n
		}
	case "boolean":
		if b, err := strconv.ParseBool(raw); err == nil {
			return b
		}
	}
	return raw
}

// fallbackRespond fills resp from the operation's first declared success
// response when no rule set a status (spec §4.F's "no rule fires"
// fallback). A body already set by a respond action is kept; only the
// status is filled in then.
func (p *Pipeline) fallbackRespond(op *spec.Operation, req *Request, resp *rules.Response) error {
	rd := op.FirstSuccessResponse()
	if rd == nil {
		resp.Status = 200
		return nil
	}

	status := 200
	if n, err := fmt.Sscanf(rd.Key, "%d", &status); err != nil || n != 1 {
		status = 200
	}
	resp.Status = status
	if resp.Body != nil {
		return nil
	}

	bodySchema := selectResponseSchema(rd.Content)
	if bodySchema == nil {
		return nil
	}
	s, err := p.Schemas.Compile(op.ID+":response:"+rd.Key, bodySchema)
	if err != nil {
		return err
	}
	gen := schema.NewGenerator(prng.NewForRequest(p.Config.Seed, req.ID))
	body, err := gen.Generate(s)
	if err != nil {
		return err
	}
	resp.Body = body
	return nil
}

// selectResponseSchema applies the same media-type precedence rule used for
// request bodies (exact application/json > wildcard > first entry, spec
// §4.A) to a response descriptor's content map.
func selectResponseSchema(content map[string]any) any {
	if len(content) == 0 {
		return nil
	}
	if s, ok := content["application/json"]; ok {
		return s
	}
	for mediaType, s := range content {
		if strings.Contains(mediaType, "*") {
			return s
		}
	}
	for _, s := range content {
		return s
	}
	return nil
}

// validateResponse checks resp against the operation's schema for its
// status class. In "warn" mode a mismatch is logged and the response is
// still returned as-is; in "strict" mode it is replaced with a
// ResponseInvalid problem document (spec §7).
func (p *Pipeline) validateResponse(op *spec.Operation, resp *rules.Response) error {
	rd := op.ResponseFor(resp.Status)
	if rd == nil {
		return nil
	}
	bodySchema := selectResponseSchema(rd.Content)
	if bodySchema == nil {
		return nil
	}
	s, err := p.Schemas.Compile(op.ID+":response:"+rd.Key, bodySchema)
	if err != nil {
		if p.Logger != nil {
			p.Logger.Warn("failed to compile response schema", zap.String("operation", op.ID), zap.Error(err))
		}
		return nil
	}
	details := s.Validate(resp.Body)
	if len(details) == 0 {
		return nil
	}

	if p.Logger != nil {
		p.Logger.Warn("response failed schema validation",
			zap.String("operation", op.ID), zap.String("mode", p.Config.ValidateResponses), zap.Int("violations", len(details)))
	}
	if p.Metrics != nil {
		p.Metrics.RecordValidationFailure("response")
	}
	if p.Config.ValidateResponses == ResponseValidateStrict {
		return problem.ResponseInvalid("response body failed schema validation", details)
	}
	return nil
}

// stateAccessor resolves `state.<key>` expression reads by going straight
// to the session store, rather than requiring a full upfront snapshot -
// the Store contract deliberately has no "list all keys" operation (spec
// §4.C), so a snapshot isn't possible to build even if it were desirable.
type stateAccessor struct {
	ctx     context.Context
	session *store.Namespaced
}

func (a *stateAccessor) Get(field string) (any, bool) {
	entry, ok, err := a.session.Get(a.ctx, field)
	if err != nil || !ok {
		return nil, false
	}
	return entry.Value, true
}
