package spec

import (
	"regexp"
	"strings"
)

// PathMatcher compiles an OpenAPI path template ("/pets/{id}") into a
// matcher that captures variables by name and matches only the full path
// (spec §4.B: "matches only the full path").
type PathMatcher struct {
	Template string
	VarNames []string
	regex    *regexp.Regexp
}

var pathVarPattern = regexp.MustCompile(`\{([^{}]+)\}`)

// CompilePathTemplate compiles a template into a matcher. Each `{name}`
// segment captures one path variable; the captured value never crosses a
// literal "/" in the concrete path, since OpenAPI path variables are
// single-segment by convention.
func CompilePathTemplate(template string) *PathMatcher {
	var varNames []string
	var sb strings.Builder
	sb.WriteString("^")

	last := 0
	for _, loc := range pathVarPattern.FindAllStringSubmatchIndex(template, -1) {
		start, end := loc[0], loc[1]
		nameStart, nameEnd := loc[2], loc[3]

		sb.WriteString(regexp.QuoteMeta(template[last:start]))
		varNames = append(varNames, template[nameStart:nameEnd])
		sb.WriteString(`([^/]+)`)
		last = end
	}
	sb.WriteString(regexp.QuoteMeta(template[last:]))
	sb.WriteString("$")

	return &PathMatcher{
		Template: template,
		VarNames: varNames,
		regex:    regexp.MustCompile(sb.String()),
	}
}

// Match reports whether path satisfies the template, returning the captured
// path variables on success. Round-tripping any well-formed set of variable
// values through Expand then Match returns those same variables byte for
// byte (spec §8 invariant 1).
func (m *PathMatcher) Match(path string) (map[string]string, bool) {
	groups := m.regex.FindStringSubmatch(path)
	if groups == nil {
		return nil, false
	}
	vars := make(map[string]string, len(m.VarNames))
	for i, name := range m.VarNames {
		vars[name] = groups[i+1]
	}
	return vars, true
}

// Expand substitutes path variables back into the template, the inverse of
// Match, used by tests that verify the round-trip invariant.
func (m *PathMatcher) Expand(vars map[string]string) string {
	result := m.Template
	for _, name := range m.VarNames {
		result = strings.Replace(result, "{"+name+"}", vars[name], 1)
	}
	return result
}
