package spec

import (
	"fmt"
	"regexp"
	"strings"
)

// ParamLocation enumerates where a parameter is carried.
type ParamLocation string

const (
	ParamPath   ParamLocation = "path"
	ParamQuery  ParamLocation = "query"
	ParamHeader ParamLocation = "header"
	ParamCookie ParamLocation = "cookie"
)

// Parameter describes one request parameter, merged from path-level and
// operation-level declarations with operation-level winning name collisions.
type Parameter struct {
	Name     string
	In       ParamLocation
	Required bool
	Schema   any
}

// ResponseDescriptor describes one declared response, keyed by status code
// or class ("2XX", "default").
type ResponseDescriptor struct {
	Key     string
	Headers map[string]any
	Content map[string]any // media type -> schema
}

// Operation is the immutable descriptor built once at load time (spec §3).
type Operation struct {
	ID              string
	Method          string
	PathTemplate    string
	Matcher         *PathMatcher
	Parameters      []Parameter
	RequestBody     any // selected media-type schema, or nil
	RequestRequired bool
	Responses       []ResponseDescriptor
}

// FirstSuccessResponse returns the lexicographically first 2xx response
// descriptor, preferring an exact "200", as used by the no-rule-fires
// fallback (spec §4.F).
func (o *Operation) FirstSuccessResponse() *ResponseDescriptor {
	var best *ResponseDescriptor
	for i := range o.Responses {
		r := &o.Responses[i]
		if !isSuccessKey(r.Key) {
			continue
		}
		if r.Key == "200" {
			return r
		}
		if best == nil || r.Key < best.Key {
			best = r
		}
	}
	return best
}

// ResponseFor returns the descriptor matching an explicit status code,
// falling back to its class ("2XX") and then "default".
func (o *Operation) ResponseFor(status int) *ResponseDescriptor {
	exact := fmt.Sprintf("%d", status)
	class := fmt.Sprintf("%dXX", status/100)

	var classMatch, defaultMatch *ResponseDescriptor
	for i := range o.Responses {
		r := &o.Responses[i]
		switch r.Key {
		case exact:
			return r
		case class:
			classMatch = r
		case "default":
			defaultMatch = r
		}
	}
	if classMatch != nil {
		return classMatch
	}
	return defaultMatch
}

func isSuccessKey(key string) bool {
	return strings.HasPrefix(key, "2")
}

var nonAlnum = regexp.MustCompile(`[^a-zA-Z0-9]+`)

func synthesizeOperationID(method, pathTemplate string) string {
	cleaned := nonAlnum.ReplaceAllString(pathTemplate, "_")
	cleaned = strings.Trim(cleaned, "_")
	return strings.ToLower(method) + "_" + cleaned
}

func buildOperations(doc map[string]any) ([]*Operation, error) {
	paths, _ := doc["paths"].(map[string]any)
	var ops []*Operation

	for pathTemplate, rawItem := range paths {
		item, ok := rawItem.(map[string]any)
		if !ok {
			continue
		}

		pathLevelParams := parseParameters(item["parameters"])

		for _, method := range httpMethods {
			rawOp, ok := item[method]
			if !ok {
				continue
			}
			opObj, ok := rawOp.(map[string]any)
			if !ok {
				continue
			}

			opID, _ := opObj["operationId"].(string)
			if opID == "" {
				opID = synthesizeOperationID(method, pathTemplate)
			}

			opLevelParams := parseParameters(opObj["parameters"])
			merged := mergeParameters(pathLevelParams, opLevelParams)

			body, required := selectRequestBodySchema(opObj["requestBody"])
			responses := parseResponses(opObj["responses"])

			ops = append(ops, &Operation{
				ID:              opID,
				Method:          strings.ToUpper(method),
				PathTemplate:    pathTemplate,
				Matcher:         CompilePathTemplate(pathTemplate),
				Parameters:      merged,
				RequestBody:     body,
				RequestRequired: required,
				Responses:       responses,
			})
		}
	}

	sortOperations(ops)
	return ops, nil
}

func parseParameters(raw any) []Parameter {
	list, _ := raw.([]any)
	out := make([]Parameter, 0, len(list))
	for _, item := range list {
		obj, ok := item.(map[string]any)
		if !ok {
			continue
		}
		name, _ := obj["name"].(string)
		in, _ := obj["in"].(string)
		required, _ := obj["required"].(bool)
		out = append(out, Parameter{
			Name:     name,
			In:       ParamLocation(in),
			Required: required,
			Schema:   obj["schema"],
		})
	}
	return out
}

// mergeParameters merges path-level and operation-level parameters,
// operation-level winning on (name, in) collisions (spec §4.A).
func mergeParameters(pathLevel, opLevel []Parameter) []Parameter {
	merged := make(map[string]Parameter, len(pathLevel)+len(opLevel))
	order := make([]string, 0, len(pathLevel)+len(opLevel))

	key := func(p Parameter) string { return string(p.In) + ":" + p.Name }

	for _, p := range pathLevel {
		k := key(p)
		if _, exists := merged[k]; !exists {
			order = append(order, k)
		}
		merged[k] = p
	}
	for _, p := range opLevel {
		k := key(p)
		if _, exists := merged[k]; !exists {
			order = append(order, k)
		}
		merged[k] = p
	}

	out := make([]Parameter, 0, len(order))
	for _, k := range order {
		out = append(out, merged[k])
	}
	return out
}

// selectRequestBodySchema implements the media-type precedence rule:
// exact application/json > wildcard > first entry (spec §4.A).
func selectRequestBodySchema(raw any) (schema any, required bool) {
	obj, ok := raw.(map[string]any)
	if !ok {
		return nil, false
	}
	required, _ = obj["required"].(bool)

	content, ok := obj["content"].(map[string]any)
	if !ok || len(content) == 0 {
		return nil, required
	}

	if mt, ok := content["application/json"].(map[string]any); ok {
		return mt["schema"], required
	}
	for mediaType, mt := range content {
		if strings.Contains(mediaType, "*") {
			if mtObj, ok := mt.(map[string]any); ok {
				return mtObj["schema"], required
			}
		}
	}
	for _, mt := range content {
		if mtObj, ok := mt.(map[string]any); ok {
			return mtObj["schema"], required
		}
	}
	return nil, required
}

func parseResponses(raw any) []ResponseDescriptor {
	obj, ok := raw.(map[string]any)
	if !ok {
		return nil
	}
	out := make([]ResponseDescriptor, 0, len(obj))
	for key, val := range obj {
		respObj, ok := val.(map[string]any)
		if !ok {
			continue
		}
		headers, _ := respObj["headers"].(map[string]any)
		content, _ := respObj["content"].(map[string]any)
		contentSchemas := make(map[string]any, len(content))
		for mediaType, mt := range content {
			if mtObj, ok := mt.(map[string]any); ok {
				contentSchemas[mediaType] = mtObj["schema"]
			}
		}
		out = append(out, ResponseDescriptor{
			Key:     key,
			Headers: headers,
			Content: contentSchemas,
		})
	}
	return out
}
