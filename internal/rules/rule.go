package rules

// Rule is one scenario entry: a selector plus the ordered actions to run
// when it matches (spec §4.F).
type Rule struct {
	ID           string
	OperationID  string
	Method       string
	PathTemplate string
	When         []Condition
	Priority     int
	SourceOrder  int
	Do           []Action
}

// ConditionSource names which part of the request a Condition inspects.
type ConditionSource string

const (
	SourceQuery  ConditionSource = "query"
	SourceHeader ConditionSource = "header"
	SourcePath   ConditionSource = "path"
	SourceExpr   ConditionSource = "expr"
)

// Condition is one `when` clause. Query/header/path conditions compare a
// named field against Value, which may carry the `$regex:<pattern>`
// sentinel to switch from exact-match to regex matching. An Expr condition
// instead evaluates a full boolean expr expression against the request
// context, for predicates too general for field comparison (spec §4.D).
type Condition struct {
	Source ConditionSource
	Field  string
	Value  string
	Negate bool
	Expr   string
}

// matchesOperation reports whether the rule applies to the given operation
// identifier / method+path pair. An empty OperationID falls back to
// matching by method and path template instead.
func (r *Rule) matchesOperation(operationID, method, pathTemplate string) bool {
	if r.OperationID != "" {
		return r.OperationID == operationID
	}
	return r.Method == method && r.PathTemplate == pathTemplate
}

// bySelectionOrder sorts rules by priority descending, then by the order
// they appeared in the scenario file (spec §4.F's "priority DESC,
// source_order ASC" policy).
type bySelectionOrder []*Rule

func (s bySelectionOrder) Len() int      { return len(s) }
func (s bySelectionOrder) Swap(i, j int) { s[i], s[j] = s[j], s[i] }
func (s bySelectionOrder) Less(i, j int) bool {
	if s[i].Priority != s[j].Priority {
		return s[i].Priority > s[j].Priority
	}
	return s[i].SourceOrder < s[j].SourceOrder
}
