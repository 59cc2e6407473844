package schema

import (
	"fmt"
	"strings"
	"time"

	"github.com/oas-sandbox/engine/internal/template/faker"
	"github.com/oas-sandbox/engine/internal/template/prng"
)

// Generator produces example data for a Schema, deterministically seeded
// by the request's PRNG source (spec §4.D, §4.E, §9).
type Generator struct {
	src   *prng.Source
	faker *faker.Faker
}

// NewGenerator binds a Generator to a request-scoped PRNG source.
func NewGenerator(src *prng.Source) *Generator {
	return &Generator{src: src, faker: faker.New(src)}
}

// Generate produces a value satisfying s, honoring `example`, `x-sandbox.faker`,
// and `x-sandbox.enumWeights` vendor hints before falling back to
// type-driven synthesis.
func (g *Generator) Generate(s *Schema) (any, error) {
	return g.generate(s, DefaultRecursionBudget)
}

func (g *Generator) generate(s *Schema, budget int) (any, error) {
	if s == nil || s.raw == nil {
		return nil, nil
	}
	if budget <= 0 {
		return nil, fmt.Errorf("schema: generation exceeded the recursion budget")
	}

	if example, ok := s.get("example"); ok {
		return example, nil
	}

	if fakerHint, ok := s.str("x-sandbox.faker"); ok {
		if v, ok := g.fromFakerHint(fakerHint); ok {
			return v, nil
		}
	}

	if enumVals, ok := s.get("enum"); ok {
		if arr, ok := enumVals.([]any); ok && len(arr) > 0 {
			idx := g.enumIndex(s, len(arr))
			return arr[idx], nil
		}
	}

	if allOf := s.schemaSlice("allOf"); len(allOf) > 0 {
		return g.generateAllOf(allOf, budget)
	}
	if anyOf := s.schemaSlice("anyOf"); len(anyOf) > 0 {
		return g.generate(anyOf[g.src.Intn(len(anyOf))], budget-1)
	}
	if oneOf := s.schemaSlice("oneOf"); len(oneOf) > 0 {
		return g.generate(oneOf[g.src.Intn(len(oneOf))], budget-1)
	}

	if s.nullable() && g.src.Float64() < 0.1 {
		return nil, nil
	}

	types := s.types()
	primary := "object"
	if len(types) > 0 {
		primary = types[0]
	}

	switch primary {
	case "object":
		return g.generateObject(s, budget)
	case "array":
		return g.generateArray(s, budget)
	case "string":
		return g.generateString(s), nil
	case "number":
		return g.generateNumber(s), nil
	case "integer":
		return float64(int64(g.generateNumber(s))), nil
	case "boolean":
		return g.faker.Boolean(), nil
	default:
		return nil, nil
	}
}

func (g *Generator) enumIndex(s *Schema, n int) int {
	if weightsVal, ok := s.get("x-sandbox.enumWeights"); ok {
		if arr, ok := weightsVal.([]any); ok && len(arr) == n {
			weights := make([]float64, n)
			for i, w := range arr {
				if f, ok := w.(float64); ok {
					weights[i] = f
				}
			}
			return g.src.WeightedIndex(weights)
		}
	}
	return g.src.Intn(n)
}

func (g *Generator) generateAllOf(schemas []*Schema, budget int) (any, error) {
	merged := make(map[string]any)
	for _, sub := range schemas {
		v, err := g.generate(sub, budget-1)
		if err != nil {
			return nil, err
		}
		if obj, ok := v.(map[string]any); ok {
			for k, val := range obj {
				merged[k] = val
			}
		}
	}
	return merged, nil
}

func (g *Generator) generateObject(s *Schema, budget int) (any, error) {
	out := make(map[string]any)
	required := make(map[string]bool)
	for _, name := range s.requiredFields() {
		required[name] = true
	}

	for name, sub := range s.properties() {
		// Optional properties are still generated: a mock server that
		// omits every optional field produces unrealistically sparse
		// fixtures, so generation includes them regardless of `required`.
		v, err := g.generate(sub, budget-1)
		if err != nil {
			return nil, fmt.Errorf("schema: property %q: %w", name, err)
		}
		out[name] = v
	}
	_ = required

	return out, nil
}

func (g *Generator) generateArray(s *Schema, budget int) (any, error) {
	minItems := 1
	maxItems := 3
	if n, ok := s.number("minItems"); ok {
		minItems = int(n)
	}
	if n, ok := s.number("maxItems"); ok {
		maxItems = int(n)
	}
	if maxItems < minItems {
		maxItems = minItems
	}
	count := g.src.Range(minItems, maxItems)

	itemSchema := s.items()
	out := make([]any, 0, count)
	for i := 0; i < count; i++ {
		v, err := g.generate(itemSchema, budget-1)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func (g *Generator) generateString(s *Schema) string {
	if format, ok := s.str("format"); ok {
		if v, ok := g.fromFormat(format); ok {
			return v
		}
	}

	minLen := 4
	maxLen := 12
	if n, ok := s.number("minLength"); ok {
		minLen = int(n)
	}
	if n, ok := s.number("maxLength"); ok {
		maxLen = int(n)
	}
	if maxLen < minLen {
		maxLen = minLen
	}

	return randomWord(g.src, g.src.Range(minLen, maxLen))
}

func (g *Generator) fromFormat(format string) (string, bool) {
	switch format {
	case "email":
		return g.faker.Email(), true
	case "uuid":
		return g.faker.UUID(), true
	case "date":
		return g.faker.RecentDate().Format("2006-01-02"), true
	case "date-time":
		return g.faker.RecentDate().Format(time.RFC3339), true
	case "uri", "url":
		return g.faker.URL(), true
	case "hostname":
		return "example.com", true
	default:
		return "", false
	}
}

func (g *Generator) fromFakerHint(hint string) (any, bool) {
	switch hint {
	case "givenName":
		return g.faker.GivenName(), true
	case "surname":
		return g.faker.Surname(), true
	case "fullName":
		return g.faker.FullName(), true
	case "username":
		return g.faker.Username(), true
	case "email":
		return g.faker.Email(), true
	case "url":
		return g.faker.URL(), true
	case "city":
		return g.faker.City(), true
	case "country":
		return g.faker.Country(), true
	case "postalCode":
		return g.faker.PostalCode(), true
	case "street":
		return g.faker.Street(), true
	case "companyName":
		return g.faker.CompanyName(), true
	case "productName":
		return g.faker.ProductName(), true
	case "productPrice":
		return g.faker.ProductPrice(), true
	case "uuid":
		return g.faker.UUID(), true
	default:
		return nil, false
	}
}

func (g *Generator) generateNumber(s *Schema) float64 {
	min := 0.0
	max := 100.0
	if n, ok := s.number("minimum"); ok {
		min = n
	}
	if n, ok := s.number("maximum"); ok {
		max = n
	}
	if max < min {
		max = min
	}
	return min + g.src.Float64()*(max-min)
}

const wordAlphabet = "abcdefghijklmnopqrstuvwxyz"

func randomWord(src *prng.Source, length int) string {
	if length <= 0 {
		length = 1
	}
	var b strings.Builder
	for i := 0; i < length; i++ {
		b.WriteByte(wordAlphabet[src.Intn(len(wordAlphabet))])
	}
	return b.String()
}
