package schema

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/oas-sandbox/engine/internal/problem"
	"github.com/oas-sandbox/engine/pkg/jsonvalue"
)

// Validate checks instance against s, returning one problem.Detail per
// violation (empty slice means valid). Reported paths start at the root
// (""), and nested failures carry the path to the failing location.
func (s *Schema) Validate(instance any) []problem.Detail {
	return s.validate(instance, "", "", DefaultRecursionBudget)
}

func (s *Schema) validate(instance any, instancePath, schemaPath string, budget int) []problem.Detail {
	if s == nil || s.raw == nil {
		return nil
	}
	if budget <= 0 {
		return []problem.Detail{{
			InstancePath: instancePath, SchemaPath: schemaPath,
			Keyword: "recursion", Message: "schema nesting exceeds the recursion budget",
		}}
	}

	var details []problem.Detail

	if instance == nil {
		if s.nullable() {
			return nil
		}
		if types := s.types(); len(types) > 0 && !contains(types, "null") {
			return append(details, problem.Detail{
				InstancePath: instancePath, SchemaPath: schemaPath + "/type",
				Keyword: "type", Message: "value is null but schema does not allow null",
			})
		}
	}

	if enumVals, ok := s.get("enum"); ok {
		if arr, ok := enumVals.([]any); ok && !enumContains(arr, instance) {
			details = append(details, problem.Detail{
				InstancePath: instancePath, SchemaPath: schemaPath + "/enum",
				Keyword: "enum", Message: "value is not one of the allowed enum values",
			})
		}
	}

	if constVal, ok := s.get("const"); ok {
		if !jsonvalue.Equal(constVal, instance) {
			details = append(details, problem.Detail{
				InstancePath: instancePath, SchemaPath: schemaPath + "/const",
				Keyword: "const", Message: "value does not equal the required constant",
			})
		}
	}

	details = append(details, s.validateType(instance, instancePath, schemaPath, budget)...)

	for i, sub := range s.schemaSlice("allOf") {
		details = append(details, sub.validate(instance, instancePath, fmt.Sprintf("%s/allOf/%d", schemaPath, i), budget-1)...)
	}

	if anyOf := s.schemaSlice("anyOf"); len(anyOf) > 0 {
		matched := false
		for _, sub := range anyOf {
			if len(sub.validate(instance, instancePath, schemaPath, budget-1)) == 0 {
				matched = true
				break
			}
		}
		if !matched {
			details = append(details, problem.Detail{
				InstancePath: instancePath, SchemaPath: schemaPath + "/anyOf",
				Keyword: "anyOf", Message: "value does not match any of the anyOf schemas",
			})
		}
	}

	if oneOf := s.schemaSlice("oneOf"); len(oneOf) > 0 {
		matches := 0
		for _, sub := range oneOf {
			if len(sub.validate(instance, instancePath, schemaPath, budget-1)) == 0 {
				matches++
			}
		}
		if matches != 1 {
			details = append(details, problem.Detail{
				InstancePath: instancePath, SchemaPath: schemaPath + "/oneOf",
				Keyword: "oneOf", Message: fmt.Sprintf("value matches %d of the oneOf schemas, expected exactly 1", matches),
			})
		}
	}

	return details
}

func (s *Schema) validateType(instance any, instancePath, schemaPath string, budget int) []problem.Detail {
	types := s.types()
	if len(types) == 0 {
		return nil
	}
	primary := types[0]

	switch primary {
	case "object":
		obj, ok := instance.(map[string]any)
		if !ok {
			if instance == nil && s.nullable() {
				return nil
			}
			return []problem.Detail{typeMismatch(instancePath, schemaPath, "object", instance)}
		}
		return s.validateObject(obj, instancePath, schemaPath, budget)

	case "array":
		arr, ok := instance.([]any)
		if !ok {
			if instance == nil && s.nullable() {
				return nil
			}
			return []problem.Detail{typeMismatch(instancePath, schemaPath, "array", instance)}
		}
		return s.validateArray(arr, instancePath, schemaPath, budget)

	case "string":
		str, ok := instance.(string)
		if !ok {
			if instance == nil && s.nullable() {
				return nil
			}
			return []problem.Detail{typeMismatch(instancePath, schemaPath, "string", instance)}
		}
		return s.validateString(str, instancePath, schemaPath)

	case "number", "integer":
		n, ok := instance.(float64)
		if !ok {
			if instance == nil && s.nullable() {
				return nil
			}
			return []problem.Detail{typeMismatch(instancePath, schemaPath, primary, instance)}
		}
		return s.validateNumber(n, primary, instancePath, schemaPath)

	case "boolean":
		if _, ok := instance.(bool); !ok {
			if instance == nil && s.nullable() {
				return nil
			}
			return []problem.Detail{typeMismatch(instancePath, schemaPath, "boolean", instance)}
		}
		return nil

	default:
		return nil
	}
}

func (s *Schema) validateObject(obj map[string]any, instancePath, schemaPath string, budget int) []problem.Detail {
	var details []problem.Detail

	for _, name := range s.requiredFields() {
		if _, ok := obj[name]; !ok {
			details = append(details, problem.Detail{
				InstancePath: instancePath, SchemaPath: schemaPath + "/required",
				Keyword: "required", Message: fmt.Sprintf("missing required property %q", name),
			})
		}
	}

	props := s.properties()
	for name, sub := range props {
		v, ok := obj[name]
		if !ok {
			continue
		}
		details = append(details, sub.validate(v, instancePath+"/"+name, schemaPath+"/properties/"+name, budget-1)...)
	}

	if addl, ok := s.get("additionalProperties"); ok {
		if allowed, ok := addl.(bool); ok && !allowed {
			for name := range obj {
				if _, known := props[name]; !known {
					details = append(details, problem.Detail{
						InstancePath: instancePath + "/" + name, SchemaPath: schemaPath + "/additionalProperties",
						Keyword: "additionalProperties", Message: fmt.Sprintf("property %q is not allowed", name),
					})
				}
			}
		} else if sub, ok := addl.(map[string]any); ok {
			addlSchema := newSchema(sub)
			for name, v := range obj {
				if _, known := props[name]; known {
					continue
				}
				details = append(details, addlSchema.validate(v, instancePath+"/"+name, schemaPath+"/additionalProperties", budget-1)...)
			}
		}
	}

	return details
}

func (s *Schema) validateArray(arr []any, instancePath, schemaPath string, budget int) []problem.Detail {
	var details []problem.Detail

	if n, ok := s.number("minItems"); ok && float64(len(arr)) < n {
		details = append(details, problem.Detail{
			InstancePath: instancePath, SchemaPath: schemaPath + "/minItems",
			Keyword: "minItems", Message: fmt.Sprintf("array has %d items, expected at least %g", len(arr), n),
		})
	}
	if n, ok := s.number("maxItems"); ok && float64(len(arr)) > n {
		details = append(details, problem.Detail{
			InstancePath: instancePath, SchemaPath: schemaPath + "/maxItems",
			Keyword: "maxItems", Message: fmt.Sprintf("array has %d items, expected at most %g", len(arr), n),
		})
	}
	if s.boolean("uniqueItems", false) {
		for i := 0; i < len(arr); i++ {
			for j := i + 1; j < len(arr); j++ {
				if jsonvalue.Equal(arr[i], arr[j]) {
					details = append(details, problem.Detail{
						InstancePath: instancePath, SchemaPath: schemaPath + "/uniqueItems",
						Keyword: "uniqueItems", Message: "array contains duplicate items",
					})
				}
			}
		}
	}

	if itemSchema := s.items(); itemSchema != nil {
		for i, item := range arr {
			details = append(details, itemSchema.validate(item, fmt.Sprintf("%s/%d", instancePath, i), schemaPath+"/items", budget-1)...)
		}
	}

	return details
}

func (s *Schema) validateString(str, instancePath, schemaPath string) []problem.Detail {
	var details []problem.Detail

	if n, ok := s.number("minLength"); ok && float64(len(str)) < n {
		details = append(details, problem.Detail{
			InstancePath: instancePath, SchemaPath: schemaPath + "/minLength",
			Keyword: "minLength", Message: fmt.Sprintf("string is shorter than minLength %g", n),
		})
	}
	if n, ok := s.number("maxLength"); ok && float64(len(str)) > n {
		details = append(details, problem.Detail{
			InstancePath: instancePath, SchemaPath: schemaPath + "/maxLength",
			Keyword: "maxLength", Message: fmt.Sprintf("string is longer than maxLength %g", n),
		})
	}
	if pattern, ok := s.str("pattern"); ok {
		re, err := regexp.Compile(pattern)
		if err == nil && !re.MatchString(str) {
			details = append(details, problem.Detail{
				InstancePath: instancePath, SchemaPath: schemaPath + "/pattern",
				Keyword: "pattern", Message: fmt.Sprintf("string does not match pattern %q", pattern),
			})
		}
	}
	if format, ok := s.str("format"); ok {
		if !matchesFormat(format, str) {
			details = append(details, problem.Detail{
				InstancePath: instancePath, SchemaPath: schemaPath + "/format",
				Keyword: "format", Message: fmt.Sprintf("string does not match format %q", format),
			})
		}
	}

	return details
}

func (s *Schema) validateNumber(n float64, primary, instancePath, schemaPath string) []problem.Detail {
	var details []problem.Detail

	if primary == "integer" && n != float64(int64(n)) {
		details = append(details, problem.Detail{
			InstancePath: instancePath, SchemaPath: schemaPath + "/type",
			Keyword: "type", Message: "value is not an integer",
		})
	}
	if min, ok := s.number("minimum"); ok && n < min {
		details = append(details, problem.Detail{
			InstancePath: instancePath, SchemaPath: schemaPath + "/minimum",
			Keyword: "minimum", Message: fmt.Sprintf("value %g is less than minimum %g", n, min),
		})
	}
	if max, ok := s.number("maximum"); ok && n > max {
		details = append(details, problem.Detail{
			InstancePath: instancePath, SchemaPath: schemaPath + "/maximum",
			Keyword: "maximum", Message: fmt.Sprintf("value %g is greater than maximum %g", n, max),
		})
	}

	return details
}

func typeMismatch(instancePath, schemaPath, wantType string, got any) problem.Detail {
	return problem.Detail{
		InstancePath: instancePath, SchemaPath: schemaPath + "/type",
		Keyword: "type", Message: fmt.Sprintf("expected type %q, got %T", wantType, got),
	}
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}

func enumContains(list []any, v any) bool {
	for _, item := range list {
		if jsonvalue.Equal(item, v) {
			return true
		}
	}
	return false
}

func matchesFormat(format, s string) bool {
	switch format {
	case "email":
		return strings.Contains(s, "@") && strings.Contains(s[strings.Index(s, "@"):], ".")
	case "uuid":
		return uuidPattern.MatchString(s)
	case "date":
		return datePattern.MatchString(s)
	case "date-time":
		return dateTimePattern.MatchString(s)
	case "uri", "url":
		return strings.Contains(s, "://")
	case "hostname":
		return hostnamePattern.MatchString(s)
	default:
		return true
	}
}

var (
	uuidPattern     = regexp.MustCompile(`^[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}$`)
	datePattern     = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
	dateTimePattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}`)
	hostnamePattern = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9.-]*[a-zA-Z0-9]$`)
)
