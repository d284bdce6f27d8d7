package main

// GQL (ISO/IEC 39075) is syntactically close to Cypher for the query shapes
// emitted here. The dialect deltas: element_id() instead of elementId(),
// value_type() instead of valueType(), TIMESTAMP instead of DATETIME, and
// upper-case boolean literals.
type GQLBackend struct{}

var gqlDialect = dialect{
	name:      "gql",
	elementID: "element_id",
	valueType: "value_type",
	datetime:  "TIMESTAMP",
	trueLit:   "TRUE",
	falseLit:  "FALSE",
}

func (GQLBackend) Name() string { return "gql" }

func (GQLBackend) Compile(c Check, scoped bool) (CompiledQuery, error) {
	return compileCheck(gqlDialect, c, scoped)
}

func (GQLBackend) CountNodes(label string, scoped bool) CompiledQuery {
	return countNodes(gqlDialect, label, scoped)
}

func (GQLBackend) CountProperty(label, property string, scoped bool) CompiledQuery {
	return countProperty(gqlDialect, label, property, scoped)
}
