package main

import "strings"

// Severity of a check, carried through from the schema to the report.
type Severity string

const (
	SeverityViolation Severity = "violation"
	SeverityWarning   Severity = "warning"
	SeverityInfo      Severity = "info"
)

const _sh = "http://www.w3.org/ns/shacl#"

func severityFromIRI(iri string) Severity {
	switch iri {
	case _sh + "Warning":
		return SeverityWarning
	case _sh + "Info":
		return SeverityInfo
	default:
		return SeverityViolation
	}
}

// CheckKind enumerates the vendor-neutral constraint vocabulary both schema
// adapters normalize into.
type CheckKind int32

const (
	PropertyExists CheckKind = iota
	PropertyType
	PropertyValueIn
	PropertyPattern
	PropertyStrLen
	PropertyRange
	PropertyPair
	RelCardinality
	ShapeRefKind
	RelEndpoint
	QualifiedCardinality
	UniqueLang
	ClosedShape
	LogicalNot
	LogicalAnd
	LogicalOr
	LogicalXone
	UndeclaredLabels
	UndeclaredRelTypes
	UndeclaredProps
	EmptyShape
)

func (k CheckKind) String() string {
	switch k {
	case PropertyExists:
		return "property_exists"
	case PropertyType:
		return "property_type"
	case PropertyValueIn:
		return "property_value_in"
	case PropertyPattern:
		return "property_pattern"
	case PropertyStrLen:
		return "property_string_length"
	case PropertyRange:
		return "property_range"
	case PropertyPair:
		return "property_pair"
	case RelCardinality, ShapeRefKind:
		return "relationship_cardinality"
	case RelEndpoint:
		return "relationship_endpoint"
	case QualifiedCardinality:
		return "qualified_cardinality"
	case UniqueLang:
		return "unique_lang"
	case ClosedShape:
		return "closed_shape"
	case LogicalNot:
		return "logical_not"
	case LogicalAnd:
		return "logical_and"
	case LogicalOr:
		return "logical_or"
	case LogicalXone:
		return "logical_xone"
	case UndeclaredLabels:
		return "undeclared_labels"
	case UndeclaredRelTypes:
		return "undeclared_relationship_types"
	case UndeclaredProps:
		return "undeclared_properties"
	case EmptyShape:
		return "empty_shape"
	}
	return "unknown"
}

// Unbounded marks an absent upper cardinality bound. It is never compiled
// into an upper-bound assertion.
const Unbounded = -1

type Bounds struct {
	Min int
	Max int
}

// cardinalityTable is the single authoritative mapping from occurrence
// notation to bounds. Explicit counts and SHACL min/max pairs resolve
// through CountBounds below; both adapters go through one of the two.
var cardinalityTable = map[string]Bounds{
	"":  {1, 1},
	"?": {0, 1},
	"+": {1, Unbounded},
	"*": {0, Unbounded},
}

// SymbolBounds resolves an occurrence symbol ("", "?", "+", "*").
func SymbolBounds(symbol string) (Bounds, bool) {
	b, ok := cardinalityTable[symbol]
	return b, ok
}

// CountBounds resolves explicit counts. Absent min defaults to 0, absent
// max to Unbounded (the SHACL defaults; also covers {n} and {n,} forms).
func CountBounds(min, max *int) Bounds {
	b := Bounds{Min: 0, Max: Unbounded}
	if min != nil {
		b.Min = *min
	}
	if max != nil {
		b.Max = *max
	}
	return b
}

// Optional reports whether the constrained element may be absent. Value
// checks on optional properties apply only where the property is present.
func (b Bounds) Optional() bool { return b.Min == 0 }

// Unconstrained bounds (0..*) compile to a no-op query.
func (b Bounds) Unconstrained() bool { return b.Min == 0 && b.Max == Unbounded }

// ShapeConstraint is one normalized constraint as emitted by a schema
// adapter: IRIs only, no LPG names yet. BuildPlan binds the names.
type ShapeConstraint struct {
	Kind     CheckKind
	Path     string // predicate IRI
	Inverse  bool
	Severity Severity
	Bounds   Bounds

	Datatype     string // XSD datatype IRI
	Values       []any
	HasValue     bool // single-value enum came from a has-value constraint
	Pattern      string
	PatternFlags string
	MinLen       *int
	MaxLen       *int
	MinInc       *float64
	MaxInc       *float64
	MinExc       *float64
	MaxExc       *float64

	Target    string // class or shape IRI a relationship points at
	Compare   string // IRI of the compared property
	CompareOp string // equals, disjoint, lessThan, lessThanOrEquals

	Allowed []string // declared path IRIs for a closed shape

	Children []ShapeConstraint // logical combinators
}

// ShapeDecl is one declared shape: the class IRI its label derives from,
// the shape node IRI for diagnostics, and its constraints in source order.
type ShapeDecl struct {
	IRI         string
	Shape       string
	Constraints []ShapeConstraint
}

// SchemaConstraints is the adapter output handed to BuildPlan.
type SchemaConstraints struct {
	Source string
	Shapes []ShapeDecl
}

const _xsd = "http://www.w3.org/2001/XMLSchema#"

var xsdToLpgType = map[string]string{
	_xsd + "string":   "string",
	_xsd + "integer":  "integer",
	_xsd + "int":      "integer",
	_xsd + "long":     "integer",
	_xsd + "float":    "float",
	_xsd + "double":   "float",
	_xsd + "decimal":  "float",
	_xsd + "boolean":  "boolean",
	_xsd + "date":     "date",
	_xsd + "dateTime": "datetime",
}

// lpgType maps an XSD datatype IRI to the store's property type name.
// Unknown datatypes fall back to their local name.
func lpgType(datatypeIRI string) string {
	if t, ok := xsdToLpgType[datatypeIRI]; ok {
		return t
	}
	return localName(datatypeIRI)
}

// localName extracts the fragment after # or the last path segment.
func localName(iri string) string {
	if idx := strings.LastIndex(iri, "#"); idx >= 0 {
		return iri[idx+1:]
	}
	if idx := strings.LastIndex(iri, "/"); idx >= 0 {
		return iri[idx+1:]
	}
	return iri
}
