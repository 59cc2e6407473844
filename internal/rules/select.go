package rules

import (
	"regexp"
	"strings"

	"github.com/oas-sandbox/engine/internal/template"
	"github.com/oas-sandbox/engine/internal/template/expr"
)

const regexSentinel = "$regex:"

// Select returns the rules (in selection order) whose selector matches the
// given operation and request fields. rules must already be sorted by
// LoadFile/LoadBytes.
func Select(rules []*Rule, operationID, method, pathTemplate string, fields RequestFields, exprCtx *expr.Context) ([]*Rule, error) {
	var matched []*Rule
	for _, r := range rules {
		if !r.matchesOperation(operationID, method, pathTemplate) {
			continue
		}
		ok, err := matchConditions(r.When, fields, exprCtx)
		if err != nil {
			return nil, err
		}
		if ok {
			matched = append(matched, r)
		}
	}
	return matched, nil
}

// RequestFields is the subset of a request a Condition can inspect without
// reaching for the full expr context: query params, headers, and resolved
// path variables, all keyed case-sensitively as parsed (header lookup is
// case-insensitive, matching HTTP semantics).
type RequestFields struct {
	Query  map[string]string
	Header map[string]string
	Path   map[string]string
}

func matchConditions(conditions []Condition, fields RequestFields, exprCtx *expr.Context) (bool, error) {
	for _, c := range conditions {
		ok, err := matchOne(c, fields, exprCtx)
		if err != nil {
			return false, err
		}
		if c.Negate {
			ok = !ok
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}

func matchOne(c Condition, fields RequestFields, exprCtx *expr.Context) (bool, error) {
	if c.Source == SourceExpr {
		return template.Predicate(c.Expr, exprCtx)
	}

	var actual string
	var present bool
	switch c.Source {
	case SourceQuery:
		actual, present = fields.Query[c.Field]
	case SourceHeader:
		actual, present = lookupHeader(fields.Header, c.Field)
	case SourcePath:
		actual, present = fields.Path[c.Field]
	}
	if !present {
		return false, nil
	}

	if strings.HasPrefix(c.Value, regexSentinel) {
		pattern := strings.TrimPrefix(c.Value, regexSentinel)
		re, err := regexp.Compile(pattern)
		if err != nil {
			return false, err
		}
		return re.MatchString(actual), nil
	}
	return actual == c.Value, nil
}

func lookupHeader(headers map[string]string, name string) (string, bool) {
	for k, v := range headers {
		if strings.EqualFold(k, name) {
			return v, true
		}
	}
	return "", false
}
