// Package spec implements the document loader and operation resolver:
// component A/B of the sandbox server (spec §4.A, §4.B). It parses an
// OpenAPI 3.0/3.1 document (JSON or YAML), inlines local $ref pointers,
// and builds an immutable table of operations keyed by a compiled path
// matcher.
package spec

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/oas-sandbox/engine/internal/specerr"
)

// httpMethods are the eight methods recognized when iterating path items.
var httpMethods = []string{"get", "put", "post", "delete", "options", "head", "patch", "trace"}

// Document is a fully loaded, reference-resolved OpenAPI document together
// with its compiled operation table. Both are built once at load time and
// never mutated afterward - safe for concurrent read by every request.
type Document struct {
	Raw        map[string]any
	Operations []*Operation
}

// Load reads an OpenAPI document from disk, auto-detecting JSON vs YAML by
// extension, then by content.
func Load(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, specerr.NewSpecError(path, "unreadable file", err)
	}
	return LoadBytes(path, data)
}

// LoadBytes parses raw document bytes, consulting the path's extension to
// decide between JSON and YAML, falling back to content sniffing.
func LoadBytes(path string, data []byte) (*Document, error) {
	raw, err := decode(path, data)
	if err != nil {
		return nil, specerr.NewSpecError(path, "malformed document", err)
	}
	return LoadMap(path, raw)
}

// LoadMap builds a Document from an already-decoded in-memory document
// (e.g. constructed by a test or supplied directly via configuration).
func LoadMap(path string, raw map[string]any) (*Document, error) {
	cloned := deepCloneMap(raw)

	resolver := newRefResolver(cloned)
	resolved, err := resolver.resolve(cloned)
	if err != nil {
		return nil, specerr.NewSpecError(path, "dangling or non-local $ref", err)
	}
	resolvedMap, ok := resolved.(map[string]any)
	if !ok {
		return nil, specerr.NewSpecError(path, "document root is not an object", nil)
	}

	ops, err := buildOperations(resolvedMap)
	if err != nil {
		return nil, specerr.NewSpecError(path, "failed to build operation table", err)
	}

	return &Document{Raw: resolvedMap, Operations: ops}, nil
}

func decode(path string, data []byte) (map[string]any, error) {
	trimmed := strings.TrimSpace(path)
	if strings.HasSuffix(trimmed, ".json") {
		return decodeJSON(data)
	}
	if strings.HasSuffix(trimmed, ".yaml") || strings.HasSuffix(trimmed, ".yml") {
		return decodeYAML(data)
	}
	// Sniff: a JSON document starts with '{' once whitespace is trimmed.
	if len(bytesTrimLeftSpace(data)) > 0 && bytesTrimLeftSpace(data)[0] == '{' {
		return decodeJSON(data)
	}
	return decodeYAML(data)
}

func bytesTrimLeftSpace(b []byte) []byte {
	i := 0
	for i < len(b) && (b[i] == ' ' || b[i] == '\t' || b[i] == '\n' || b[i] == '\r') {
		i++
	}
	return b[i:]
}

func decodeJSON(data []byte) (map[string]any, error) {
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func decodeYAML(data []byte) (map[string]any, error) {
	var raw any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	normalized := normalizeYAML(raw)
	out, ok := normalized.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("document root is not a mapping")
	}
	return out, nil
}

// normalizeYAML converts the map[string]interface{} that yaml.v3 already
// produces (and any nested map[any]any from custom unmarshaling) into the
// map[string]any / []any shape the rest of the loader assumes, matching
// encoding/json's decoding convention so both input formats behave
// identically downstream.
func normalizeYAML(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = normalizeYAML(val)
		}
		return out
	case map[any]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[fmt.Sprintf("%v", k)] = normalizeYAML(val)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = normalizeYAML(val)
		}
		return out
	default:
		return t
	}
}

func deepCloneMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = deepClone(v)
	}
	return out
}

func deepClone(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return deepCloneMap(t)
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = deepClone(val)
		}
		return out
	default:
		return t
	}
}

// FindOperation returns the operation matching method+path with the least
// number of captured variables, breaking ties by longest literal template
// (spec §4.B's ambiguity policy), and the captured path variables.
func (d *Document) FindOperation(method, path string) (*Operation, map[string]string) {
	method = strings.ToUpper(method)

	var candidates []*Operation
	var captures []map[string]string
	for _, op := range d.Operations {
		if op.Method != method {
			continue
		}
		if vars, ok := op.Matcher.Match(path); ok {
			candidates = append(candidates, op)
			captures = append(captures, vars)
		}
	}
	if len(candidates) == 0 {
		return nil, nil
	}

	bestIdx := 0
	for i := 1; i < len(candidates); i++ {
		if isMoreSpecific(candidates[i], candidates[bestIdx]) {
			bestIdx = i
		}
	}
	return candidates[bestIdx], captures[bestIdx]
}

func isMoreSpecific(a, b *Operation) bool {
	if len(a.Matcher.VarNames) != len(b.Matcher.VarNames) {
		return len(a.Matcher.VarNames) < len(b.Matcher.VarNames)
	}
	return len(a.PathTemplate) > len(b.PathTemplate)
}

// sortOperations orders operations deterministically for stable iteration
// (applied by buildOperations after any missing operationIds are synthesized, and by callers
// that want reproducible listings).
func sortOperations(ops []*Operation) {
	sort.Slice(ops, func(i, j int) bool {
		if ops[i].PathTemplate != ops[j].PathTemplate {
			return ops[i].PathTemplate < ops[j].PathTemplate
		}
		return ops[i].Method < ops[j].Method
	})
}
