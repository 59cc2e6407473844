package rules

import (
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/oas-sandbox/engine/internal/common/yamlutil"
	"github.com/oas-sandbox/engine/internal/specerr"
)

// LoadFile reads and parses a scenario file (spec §4.F). Rules are returned
// sorted by selection order (priority DESC, source order ASC).
func LoadFile(path string) ([]*Rule, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("rules: read %s: %w", path, err)
	}
	return LoadBytes(raw)
}

// LoadBytes parses scenario YAML already read into memory.
func LoadBytes(raw []byte) ([]*Rule, error) {
	var doc struct {
		Scenarios []map[string]any `yaml:"scenarios"`
	}
	if err := yamlutil.UnmarshalStrict(raw, &doc); err != nil {
		return nil, fmt.Errorf("rules: decode scenario file: %w", err)
	}

	rules := make([]*Rule, 0, len(doc.Scenarios))
	for i, raw := range doc.Scenarios {
		r, err := parseRule(raw, i)
		if err != nil {
			return nil, err
		}
		rules = append(rules, r)
	}

	sort.Stable(bySelectionOrder(rules))
	return rules, nil
}

func parseRule(raw map[string]any, index int) (*Rule, error) {
	id, _ := raw["id"].(string)
	if id == "" {
		id = fmt.Sprintf("rule-%d", index)
	}

	whenRaw, hasWhen := raw["when"]
	if !hasWhen {
		return nil, specerr.NewRuleError("/scenarios", index, "rule is missing required field \"when\"", nil)
	}
	doRaw, hasDo := raw["do"]
	if !hasDo {
		return nil, specerr.NewRuleError("/scenarios", index, "rule is missing required field \"do\"", nil)
	}

	when, err := parseWhen(whenRaw)
	if err != nil {
		return nil, specerr.NewRuleError("/scenarios", index, "invalid \"when\" clause", err)
	}

	actions, err := parseActions(doRaw)
	if err != nil {
		return nil, specerr.NewRuleError("/scenarios", index, "invalid \"do\" clause", err)
	}

	r := &Rule{
		ID:          id,
		SourceOrder: index,
		Do:          actions,
		When:        when,
	}
	if v, ok := raw["operationId"].(string); ok {
		r.OperationID = v
	}
	if v, ok := raw["method"].(string); ok {
		r.Method = v
	}
	if v, ok := raw["path"].(string); ok {
		r.PathTemplate = v
	}
	if v, ok := raw["priority"].(int); ok {
		r.Priority = v
	} else if v, ok := raw["priority"].(float64); ok {
		r.Priority = int(v)
	}

	return r, nil
}

func parseWhen(raw any) ([]Condition, error) {
	selectorMap, ok := raw.(map[string]any)
	if !ok {
		// A bare string is a full boolean expr condition.
		if s, ok := raw.(string); ok {
			return []Condition{{Source: SourceExpr, Expr: s}}, nil
		}
		return nil, fmt.Errorf("expected a mapping or an expression string")
	}

	var conditions []Condition
	for source, fields := range selectorMap {
		switch source {
		case "query", "header", "path":
			fieldMap, ok := fields.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("%q must be a mapping of field name to value", source)
			}
			for field, v := range fieldMap {
				str, ok := v.(string)
				if !ok {
					return nil, fmt.Errorf("%s.%s must be a string", source, field)
				}
				conditions = append(conditions, Condition{
					Source: ConditionSource(source), Field: field, Value: str,
				})
			}
		case "expr":
			str, ok := fields.(string)
			if !ok {
				return nil, fmt.Errorf("\"expr\" must be a string")
			}
			conditions = append(conditions, Condition{Source: SourceExpr, Expr: str})
		default:
			return nil, fmt.Errorf("unknown selector source %q", source)
		}
	}
	return conditions, nil
}

func parseActions(raw any) ([]Action, error) {
	arr, ok := raw.([]any)
	if !ok {
		return nil, fmt.Errorf("expected a list of actions")
	}
	actions := make([]Action, 0, len(arr))
	for i, item := range arr {
		m, ok := item.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("action %d: expected a mapping", i)
		}
		action, err := parseAction(m)
		if err != nil {
			return nil, fmt.Errorf("action %d: %w", i, err)
		}
		actions = append(actions, action)
	}
	return actions, nil
}

func parseAction(m map[string]any) (Action, error) {
	kind, _ := m["type"].(string)
	switch kind {
	case "respond":
		headers := map[string]string{}
		if h, ok := m["headers"].(map[string]any); ok {
			for k, v := range h {
				if s, ok := v.(string); ok {
					headers[k] = s
				}
			}
		}
		status := 0
		if v, ok := m["status"].(int); ok {
			status = v
		} else if v, ok := m["status"].(float64); ok {
			status = int(v)
		}
		return RespondAction{Status: status, Headers: headers, Body: m["body"]}, nil

	case "state.set":
		return StateSetAction{
			Key: stringField(m, "key"), Value: m["value"],
			TTL: durationField(m, "ttl"), Scope: scopeField(m),
		}, nil

	case "state.patch":
		return StatePatchAction{Key: stringField(m, "key"), Value: m["value"], Scope: scopeField(m)}, nil

	case "state.increment":
		return StateIncrementAction{
			Key: stringField(m, "key"), By: numberField(m, "by", 1),
			As: stringField(m, "as"), Scope: scopeField(m),
		}, nil

	case "state.del":
		return StateDelAction{Key: stringField(m, "key"), Scope: scopeField(m)}, nil

	case "delay":
		return DelayAction{Duration: durationField(m, "duration")}, nil

	case "if":
		thenActions, err := parseActions(m["then"])
		if err != nil {
			return nil, fmt.Errorf("if.then: %w", err)
		}
		var elseActions []Action
		if _, ok := m["else"]; ok {
			elseActions, err = parseActions(m["else"])
			if err != nil {
				return nil, fmt.Errorf("if.else: %w", err)
			}
		}
		return IfAction{When: stringField(m, "when"), Then: thenActions, Else: elseActions}, nil

	case "proxy":
		return ProxyAction{Target: stringField(m, "target")}, nil

	case "emit":
		return EmitAction{
			Level: stringField(m, "level"), Message: stringField(m, "message"),
			Event: stringField(m, "event"), Payload: m["payload"],
		}, nil

	default:
		return nil, fmt.Errorf("unknown action type %q", kind)
	}
}

func stringField(m map[string]any, key string) string {
	s, _ := m[key].(string)
	return s
}

func numberField(m map[string]any, key string, def float64) float64 {
	if v, ok := m[key].(float64); ok {
		return v
	}
	if v, ok := m[key].(int); ok {
		return float64(v)
	}
	return def
}

func durationField(m map[string]any, key string) time.Duration {
	s, ok := m[key].(string)
	if !ok {
		return 0
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0
	}
	return d
}

func scopeField(m map[string]any) Scope {
	s, _ := m["scope"].(string)
	if s == string(ScopeGlobal) {
		return ScopeGlobal
	}
	return ScopeSession
}
