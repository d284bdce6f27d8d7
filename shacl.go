package main

import (
	"fmt"
	"io"
	"strconv"

	rdf "github.com/deiu/rdf2go"
)

const (
	_rdf    = "http://www.w3.org/1999/02/22-rdf-syntax-ns#"
	_rdfNil = _rdf + "nil"
)

func res(s string) rdf.Term {
	return rdf.NewResource(s)
}

func sh(local string) rdf.Term {
	return res(_sh + local)
}

// ParseShaclSchema parses a Turtle document and walks its SHACL shapes.
func ParseShaclSchema(turtle io.Reader, source string) (*SchemaConstraints, error) {
	g := rdf.NewGraph(_sh)
	if err := g.Parse(turtle, "text/turtle"); err != nil {
		return nil, fmt.Errorf("parse turtle: %w", err)
	}
	return IngestShacl(g, source), nil
}

// IngestShacl walks every sh:NodeShape in the graph and normalizes its
// constraints. Constructs outside the supported vocabulary (complex path
// algebra, unsupported inner shapes) are ingestion gaps: skipped, never
// raised.
func IngestShacl(g *rdf.Graph, source string) *SchemaConstraints {
	sc := &SchemaConstraints{Source: source}

	for _, t := range g.All(nil, res(_rdf+"type"), sh("NodeShape")) {
		shapeNode := t.Subject

		if deact := g.One(shapeNode, sh("deactivated"), nil); deact != nil {
			if b, ok := literalValue(deact.Object).(bool); ok && b {
				continue
			}
		}

		targets := g.All(shapeNode, sh("targetClass"), nil)
		var classIRIs []string
		if len(targets) == 0 {
			classIRIs = []string{shapeNode.RawValue()}
		} else {
			for _, tc := range targets {
				classIRIs = append(classIRIs, tc.Object.RawValue())
			}
		}

		for _, classIRI := range classIRIs {
			decl := ShapeDecl{IRI: trimShapeSuffix(classIRI), Shape: shapeNode.RawValue()}

			var declaredPaths []string
			for _, pt := range g.All(shapeNode, sh("property"), nil) {
				propNode := pt.Object
				if path := objectOf(g, propNode, "path"); path != nil {
					if _, blank := path.(*rdf.BlankNode); !blank {
						declaredPaths = append(declaredPaths, path.RawValue())
					}
				}
				decl.Constraints = append(decl.Constraints, propertyShapeConstraints(g, propNode)...)
			}

			if closed := objectOf(g, shapeNode, "closed"); closed != nil {
				if b, ok := literalValue(closed).(bool); ok && b {
					allowed := declaredPaths
					if ignored := objectOf(g, shapeNode, "ignoredProperties"); ignored != nil {
						for _, item := range rdfList(g, ignored) {
							allowed = append(allowed, item.RawValue())
						}
					}
					decl.Constraints = append(decl.Constraints, ShapeConstraint{
						Kind:     ClosedShape,
						Severity: SeverityViolation,
						Allowed:  allowed,
					})
				}
			}

			decl.Constraints = append(decl.Constraints, logicalConstraints(g, shapeNode)...)

			sc.Shapes = append(sc.Shapes, decl)
		}
	}

	return sc
}

// propertyShapeConstraints normalizes one sh:property block.
func propertyShapeConstraints(g *rdf.Graph, propNode rdf.Term) []ShapeConstraint {
	path := objectOf(g, propNode, "path")
	if path == nil {
		return nil
	}

	inverse := false
	if _, blank := path.(*rdf.BlankNode); blank {
		inv := objectOf(g, path, "inversePath")
		if inv == nil {
			return nil // complex path algebra
		}
		if _, innerBlank := inv.(*rdf.BlankNode); innerBlank {
			return nil
		}
		path = inv
		inverse = true
	}
	predIRI := path.RawValue()

	bounds := CountBounds(intObject(g, propNode, "minCount"), intObject(g, propNode, "maxCount"))

	severity := SeverityViolation
	if sev := objectOf(g, propNode, "severity"); sev != nil {
		severity = severityFromIRI(sev.RawValue())
	}

	nodeKind := objectOf(g, propNode, "nodeKind")
	shNode := objectOf(g, propNode, "node")
	shClass := objectOf(g, propNode, "class")
	shDatatype := objectOf(g, propNode, "datatype")

	if isRelationshipConstraint(nodeKind, shNode, shClass, shDatatype) {
		target := ""
		if shNode != nil {
			if tc := objectOf(g, shNode, "targetClass"); tc != nil {
				target = tc.RawValue()
			} else {
				target = shNode.RawValue()
			}
			target = trimShapeSuffix(target)
		} else if shClass != nil {
			target = shClass.RawValue()
		}
		kind := RelCardinality
		if shNode != nil {
			kind = ShapeRefKind
		}
		return []ShapeConstraint{{
			Kind:     kind,
			Path:     predIRI,
			Inverse:  inverse,
			Severity: severity,
			Bounds:   bounds,
			Target:   target,
		}}
	}

	var out []ShapeConstraint
	base := ShapeConstraint{Path: predIRI, Severity: severity, Bounds: bounds}

	if !bounds.Optional() {
		c := base
		c.Kind = PropertyExists
		out = append(out, c)
	}

	if shDatatype != nil {
		c := base
		c.Kind = PropertyType
		c.Datatype = shDatatype.RawValue()
		out = append(out, c)
	}

	if in := objectOf(g, propNode, "in"); in != nil {
		c := base
		c.Kind = PropertyValueIn
		for _, item := range rdfList(g, in) {
			c.Values = append(c.Values, literalValue(item))
		}
		out = append(out, c)
	}

	if hv := objectOf(g, propNode, "hasValue"); hv != nil {
		c := base
		c.Kind = PropertyValueIn
		c.HasValue = true
		c.Values = []any{literalValue(hv)}
		out = append(out, c)
	}

	if pat := objectOf(g, propNode, "pattern"); pat != nil {
		c := base
		c.Kind = PropertyPattern
		c.Pattern = pat.RawValue()
		if flags := objectOf(g, propNode, "flags"); flags != nil {
			c.PatternFlags = flags.RawValue()
		}
		out = append(out, c)
	}

	minLen := intObject(g, propNode, "minLength")
	maxLen := intObject(g, propNode, "maxLength")
	if minLen != nil || maxLen != nil {
		c := base
		c.Kind = PropertyStrLen
		c.MinLen, c.MaxLen = minLen, maxLen
		out = append(out, c)
	}

	minInc := floatObject(g, propNode, "minInclusive")
	maxInc := floatObject(g, propNode, "maxInclusive")
	minExc := floatObject(g, propNode, "minExclusive")
	maxExc := floatObject(g, propNode, "maxExclusive")
	if minInc != nil || maxInc != nil || minExc != nil || maxExc != nil {
		c := base
		c.Kind = PropertyRange
		c.MinInc, c.MaxInc, c.MinExc, c.MaxExc = minInc, maxInc, minExc, maxExc
		out = append(out, c)
	}

	for _, pair := range []string{"equals", "disjoint", "lessThan", "lessThanOrEquals"} {
		if cmp := objectOf(g, propNode, pair); cmp != nil {
			c := base
			c.Kind = PropertyPair
			c.Compare = cmp.RawValue()
			c.CompareOp = pair
			out = append(out, c)
		}
	}

	// LPG properties carry no language tags; the constraint is acknowledged
	// at info severity but never enforced.
	if ul := objectOf(g, propNode, "uniqueLang"); ul != nil {
		if b, ok := literalValue(ul).(bool); ok && b {
			c := base
			c.Kind = UniqueLang
			c.Severity = SeverityInfo
			out = append(out, c)
		}
	}

	if qvs := objectOf(g, propNode, "qualifiedValueShape"); qvs != nil {
		if filter := qualifiedFilter(g, qvs, predIRI); filter != nil {
			c := base
			c.Kind = QualifiedCardinality
			c.Bounds = CountBounds(
				intObject(g, propNode, "qualifiedMinCount"),
				intObject(g, propNode, "qualifiedMaxCount"))
			c.Children = []ShapeConstraint{*filter}
			out = append(out, c)
		}
	}

	return out
}

// qualifiedFilter extracts the inner constraint of a qualified value shape.
// Supported flavors: sh:datatype, sh:class and sh:in. An unsupported inner
// shape drops the whole qualified constraint.
func qualifiedFilter(g *rdf.Graph, qvs rdf.Term, predIRI string) *ShapeConstraint {
	if dt := objectOf(g, qvs, "datatype"); dt != nil {
		return &ShapeConstraint{
			Kind: PropertyType, Path: predIRI,
			Severity: SeverityViolation, Datatype: dt.RawValue(),
		}
	}
	if cls := objectOf(g, qvs, "class"); cls != nil {
		return &ShapeConstraint{
			Kind: PropertyType, Path: predIRI,
			Severity: SeverityViolation, Datatype: cls.RawValue(),
		}
	}
	if in := objectOf(g, qvs, "in"); in != nil {
		c := &ShapeConstraint{Kind: PropertyValueIn, Path: predIRI, Severity: SeverityViolation}
		for _, item := range rdfList(g, in) {
			c.Values = append(c.Values, literalValue(item))
		}
		return c
	}
	return nil
}

// isRelationshipConstraint decides whether a property shape describes a
// relationship rather than a node property.
func isRelationshipConstraint(nodeKind, shNode, shClass, shDatatype rdf.Term) bool {
	if nodeKind != nil {
		kind := nodeKind.RawValue()
		return kind == _sh+"IRI" || kind == _sh+"BlankNodeOrIRI"
	}
	if shNode != nil || shClass != nil {
		return true
	}
	return false
}

// logicalConstraints handles shape-level sh:not, sh:and, sh:or, sh:xone.
func logicalConstraints(g *rdf.Graph, shapeNode rdf.Term) []ShapeConstraint {
	var out []ShapeConstraint

	for _, t := range g.All(shapeNode, sh("not"), nil) {
		children := logicalInner(g, t.Object)
		if len(children) > 0 {
			out = append(out, ShapeConstraint{
				Kind:     LogicalNot,
				Severity: SeverityViolation,
				Children: children,
			})
		}
	}

	combinators := []struct {
		pred string
		kind CheckKind
	}{
		{"and", LogicalAnd},
		{"or", LogicalOr},
		{"xone", LogicalXone},
	}
	for _, comb := range combinators {
		listNode := objectOf(g, shapeNode, comb.pred)
		if listNode == nil {
			continue
		}
		var children []ShapeConstraint
		for _, inner := range rdfList(g, listNode) {
			children = append(children, logicalInner(g, inner)...)
		}
		if len(children) > 0 {
			out = append(out, ShapeConstraint{
				Kind:     comb.kind,
				Severity: SeverityViolation,
				Children: children,
			})
		}
	}

	return out
}

// logicalInner extracts the simple property constraints an inner shape of a
// logical combinator may carry: datatype, inclusive range, pattern,
// hasValue and required existence.
func logicalInner(g *rdf.Graph, innerNode rdf.Term) []ShapeConstraint {
	var out []ShapeConstraint

	for _, pt := range g.All(innerNode, sh("property"), nil) {
		propNode := pt.Object
		path := objectOf(g, propNode, "path")
		if path == nil {
			continue
		}
		if _, blank := path.(*rdf.BlankNode); blank {
			continue
		}
		base := ShapeConstraint{Path: path.RawValue(), Severity: SeverityViolation, Bounds: Bounds{Min: 1, Max: 1}}

		if dt := objectOf(g, propNode, "datatype"); dt != nil {
			c := base
			c.Kind = PropertyType
			c.Datatype = dt.RawValue()
			out = append(out, c)
		}

		minInc := floatObject(g, propNode, "minInclusive")
		maxInc := floatObject(g, propNode, "maxInclusive")
		if minInc != nil || maxInc != nil {
			c := base
			c.Kind = PropertyRange
			c.MinInc, c.MaxInc = minInc, maxInc
			out = append(out, c)
		}

		if pat := objectOf(g, propNode, "pattern"); pat != nil {
			c := base
			c.Kind = PropertyPattern
			c.Pattern = pat.RawValue()
			out = append(out, c)
		}

		if hv := objectOf(g, propNode, "hasValue"); hv != nil {
			c := base
			c.Kind = PropertyValueIn
			c.HasValue = true
			c.Values = []any{literalValue(hv)}
			c.Bounds = Bounds{Min: 0, Max: 1}
			out = append(out, c)
		}

		if min := intObject(g, propNode, "minCount"); min != nil && *min > 0 {
			c := base
			c.Kind = PropertyExists
			out = append(out, c)
		}
	}

	return out
}

// objectOf fetches the single object of (subject, sh:local, ?).
func objectOf(g *rdf.Graph, subject rdf.Term, local string) rdf.Term {
	if t := g.One(subject, sh(local), nil); t != nil {
		return t.Object
	}
	return nil
}

// rdfList walks an rdf:first/rdf:rest chain.
func rdfList(g *rdf.Graph, head rdf.Term) []rdf.Term {
	var out []rdf.Term
	for head != nil && head.RawValue() != _rdfNil {
		first := g.One(head, res(_rdf+"first"), nil)
		if first == nil {
			break
		}
		out = append(out, first.Object)
		rest := g.One(head, res(_rdf+"rest"), nil)
		if rest == nil {
			break
		}
		head = rest.Object
	}
	return out
}

// literalValue converts an RDF term to a Go value according to its
// datatype. Resources come back as their IRI.
func literalValue(term rdf.Term) any {
	lit, ok := term.(*rdf.Literal)
	if !ok {
		return term.RawValue()
	}
	dt := ""
	if lit.Datatype != nil {
		dt = lit.Datatype.RawValue()
	}
	switch dt {
	case _xsd + "integer", _xsd + "int", _xsd + "long":
		if v, err := strconv.Atoi(lit.Value); err == nil {
			return v
		}
	case _xsd + "float", _xsd + "double", _xsd + "decimal":
		if v, err := strconv.ParseFloat(lit.Value, 64); err == nil {
			return v
		}
	case _xsd + "boolean":
		return lit.Value == "true" || lit.Value == "1"
	}
	return lit.Value
}

func intObject(g *rdf.Graph, subject rdf.Term, local string) *int {
	t := objectOf(g, subject, local)
	if t == nil {
		return nil
	}
	v, err := strconv.Atoi(t.RawValue())
	if err != nil {
		return nil
	}
	return &v
}

func floatObject(g *rdf.Graph, subject rdf.Term, local string) *float64 {
	t := objectOf(g, subject, local)
	if t == nil {
		return nil
	}
	v, err := strconv.ParseFloat(t.RawValue(), 64)
	if err != nil {
		return nil
	}
	return &v
}
