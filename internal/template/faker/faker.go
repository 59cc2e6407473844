// Package faker generates deterministic fake data for response templating
// (spec §4.D), driven by the request-scoped PRNG in internal/template/prng
// so the same request reproduces the same fixture values.
package faker

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/oas-sandbox/engine/internal/template/prng"
)

var givenNames = []string{
	"Alice", "Bob", "Carla", "Deshawn", "Elena", "Farid", "Grace", "Hiroshi",
	"Ines", "Jun", "Katarina", "Luis", "Mei", "Noor", "Oksana", "Pedro",
}

var surnames = []string{
	"Anderson", "Barros", "Chen", "Dubois", "Eriksson", "Fontaine", "Garcia",
	"Haddad", "Ivanov", "Johansson", "Kowalski", "Lindqvist", "Mueller", "Nakamura",
}

var cities = []string{
	"Austin", "Berlin", "Cairo", "Dublin", "Edinburgh", "Fukuoka", "Geneva",
	"Helsinki", "Istanbul", "Johannesburg", "Kyoto", "Lisbon", "Montreal", "Nairobi",
}

var countries = []string{
	"Brazil", "Canada", "Egypt", "Finland", "Germany", "Hungary", "Ireland",
	"Japan", "Kenya", "Lithuania", "Mexico", "Norway", "Portugal", "Spain",
}

var streets = []string{
	"Maple", "Oak", "Cedar", "Birch", "Elm", "Pine", "Willow", "Chestnut",
}

var companySuffixes = []string{"Inc", "Labs", "Group", "Partners", "Works", "Collective"}

var companyWords = []string{
	"Quantum", "Blue", "Summit", "North", "Bright", "River", "Cedar", "Vertex",
}

var productAdjectives = []string{"Ultra", "Pro", "Max", "Lite", "Plus", "Classic"}

var productNouns = []string{"Widget", "Gadget", "Gizmo", "Module", "Device", "Kit"}

// Faker wraps a request-scoped PRNG with the generator functions bound to
// the `faker.*` namespace in expression/template context.
type Faker struct {
	src *prng.Source
}

// New binds a Faker to the given PRNG source.
func New(src *prng.Source) *Faker {
	return &Faker{src: src}
}

func pick(src *prng.Source, items []string) string {
	return items[src.Intn(len(items))]
}

func (f *Faker) GivenName() string { return pick(f.src, givenNames) }
func (f *Faker) Surname() string   { return pick(f.src, surnames) }

func (f *Faker) FullName() string {
	return f.GivenName() + " " + f.Surname()
}

func (f *Faker) Username() string {
	return strings.ToLower(f.GivenName() + f.Surname()[:1] + fmt.Sprint(f.src.Range(10, 999)))
}

func (f *Faker) Email() string {
	return strings.ToLower(f.GivenName() + "." + f.Surname() + "@example.com")
}

func (f *Faker) URL() string {
	return "https://" + strings.ToLower(pick(f.src, companyWords)) + ".example.com/" + strings.ToLower(pick(f.src, productNouns))
}

func (f *Faker) City() string    { return pick(f.src, cities) }
func (f *Faker) Country() string { return pick(f.src, countries) }

func (f *Faker) PostalCode() string {
	return fmt.Sprintf("%05d", f.src.Range(10000, 99999))
}

func (f *Faker) Street() string {
	return fmt.Sprintf("%d %s St", f.src.Range(1, 9999), pick(f.src, streets))
}

func (f *Faker) CompanyName() string {
	return pick(f.src, companyWords) + " " + pick(f.src, companySuffixes)
}

func (f *Faker) ProductName() string {
	return pick(f.src, productAdjectives) + " " + pick(f.src, productNouns)
}

func (f *Faker) ProductPrice() float64 {
	cents := f.src.Range(499, 49999)
	return float64(cents) / 100.0
}

func (f *Faker) Number(lo, hi int) int { return f.src.Range(lo, hi) }

func (f *Faker) Boolean() bool { return f.src.Bool() }

// UUID generates a UUID deterministically from the bound PRNG by seeding a
// 16-byte buffer, rather than calling uuid.New (which reads crypto/rand and
// would break reproducibility).
func (f *Faker) UUID() string {
	var b [16]byte
	for i := range b {
		b[i] = byte(f.src.Intn(256))
	}
	id, err := uuid.FromBytes(b[:])
	if err != nil {
		return uuid.Nil.String()
	}
	// Stamp the version/variant bits so it looks like a standard v4 UUID.
	id[6] = (id[6] & 0x0f) | 0x40
	id[8] = (id[8] & 0x3f) | 0x80
	return id.String()
}

func (f *Faker) RecentDate() time.Time {
	days := f.src.Range(0, 30)
	return time.Now().AddDate(0, 0, -days)
}

func (f *Faker) FutureDate() time.Time {
	days := f.src.Range(1, 60)
	return time.Now().AddDate(0, 0, days)
}

// Funcs returns the faker.* function table for expr.Context.Funcs.
func (f *Faker) Funcs() map[string]func(args []any) (any, error) {
	return map[string]func(args []any) (any, error){
		"faker.givenName":    func(args []any) (any, error) { return f.GivenName(), nil },
		"faker.surname":      func(args []any) (any, error) { return f.Surname(), nil },
		"faker.fullName":     func(args []any) (any, error) { return f.FullName(), nil },
		"faker.username":     func(args []any) (any, error) { return f.Username(), nil },
		"faker.email":        func(args []any) (any, error) { return f.Email(), nil },
		"faker.url":          func(args []any) (any, error) { return f.URL(), nil },
		"faker.city":         func(args []any) (any, error) { return f.City(), nil },
		"faker.country":      func(args []any) (any, error) { return f.Country(), nil },
		"faker.postalCode":   func(args []any) (any, error) { return f.PostalCode(), nil },
		"faker.street":       func(args []any) (any, error) { return f.Street(), nil },
		"faker.companyName":  func(args []any) (any, error) { return f.CompanyName(), nil },
		"faker.productName":  func(args []any) (any, error) { return f.ProductName(), nil },
		"faker.productPrice": func(args []any) (any, error) { return f.ProductPrice(), nil },
		"faker.boolean":      func(args []any) (any, error) { return f.Boolean(), nil },
		"faker.uuid":         func(args []any) (any, error) { return f.UUID(), nil },
		"faker.recentDate": func(args []any) (any, error) {
			return f.RecentDate().Format(time.RFC3339), nil
		},
		"faker.futureDate": func(args []any) (any, error) {
			return f.FutureDate().Format(time.RFC3339), nil
		},
		"faker.number": func(args []any) (any, error) {
			lo, hi := 0, 100
			if len(args) >= 2 {
				if n, ok := args[0].(float64); ok {
					lo = int(n)
				}
				if n, ok := args[1].(float64); ok {
					hi = int(n)
				}
			}
			return float64(f.Number(lo, hi)), nil
		},
	}
}
