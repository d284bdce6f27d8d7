package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/alecthomas/participle"
	"github.com/alecthomas/participle/lexer"
	"github.com/alecthomas/participle/lexer/ebnf"
)

// ShExC adapter. The grammar covers the compact-syntax subset graphlint
// understands: PREFIX directives, node shapes with optional CLOSED, triple
// constraints with a datatype, wildcard, shape reference or value set,
// numeric and length facets, /regex/ patterns, occurrence cardinalities,
// and parenthesized | alternatives. Constructs outside the subset are
// ingestion gaps: the shape is skipped silently, never raised.

var shexLexer = lexer.Must(ebnf.New(`
    Comment = "#" { "\u0000"…"\uffff"-"\n" } .
    IRIRef = "<" { "\u0000"…"\uffff"-">"-" " } ">" .
    Regex = "/" { "\u0000"…"\uffff"-"/"-"\\" | "\\" any } "/" .
    String = "\"" { "\u0000"…"\uffff"-"\""-"\\" | "\\" any } "\"" .
    Ident = (alpha | "_") { alpha | digit | "_" | "-" | "." | ":" } .
    Number = [ "-" | "+" ] digit { digit | "." } .
    Punct = "@" | ";" | "?" | "*" | "+" | "," | "|" | "." | "=" | "^" .
    Parenthesis = "(" | ")" | "{" | "}" | "[" | "]" .
    Whitespace = " " | "\t" | "\n" | "\r" .
    alpha = "a"…"z" | "A"…"Z" .
    digit = "0"…"9" .
    any = "\u0000"…"\uffff" .
    `))

type ShexDocument struct {
	Prefixes []*ShexPrefix `( @@ )*`
	Shapes   []*ShexShape  `( @@ )*`
}

type ShexPrefix struct {
	Name string `"PREFIX" @Ident`
	IRI  string `@IRIRef`
}

type ShexShape struct {
	Name   string      `@(Ident|IRIRef)`
	Closed bool        `@"CLOSED"?`
	Exprs  []*ShexExpr `"{" ( @@ ( ";" @@? )* )? "}"`
}

type ShexExpr struct {
	OneOf  []*ShexTriple `"(" @@ ( "|" @@ )* ")"`
	Triple *ShexTriple   `| @@`
}

type ShexTriple struct {
	Predicate string       `@(Ident|IRIRef)`
	Datatype  string       `( @(Ident|IRIRef)`
	Any       bool         `  | @"."`
	Ref       string       `  | "@" @(Ident|IRIRef)`
	Values    []*ShexValue `  | "[" ( @@ )* "]" )`
	Facets    []*ShexFacet `( @@ )*`
	Card      *ShexCard    `@@?`
}

type ShexValue struct {
	Str *string `  @String`
	Num *string `| @Number`
	IRI *string `| @(Ident|IRIRef)`
}

type ShexFacet struct {
	Name  string `( @("MININCLUSIVE"|"MAXINCLUSIVE"|"MINEXCLUSIVE"|"MAXEXCLUSIVE"|"MINLENGTH"|"MAXLENGTH")`
	Value string `  @Number )`
	Regex string `| @Regex`
}

type ShexCard struct {
	Symbol string  `  @("?"|"+"|"*")`
	Min    *string `| "{" @Number`
	Comma  bool    `  @","?`
	Max    *string `  @Number? "}"`
}

var shexPrefixParser = participle.MustBuild(&ShexPrefix{},
	participle.Lexer(shexLexer), participle.Elide("Comment", "Whitespace"))

var shexShapeParser = participle.MustBuild(&ShexShape{}, participle.UseLookahead(2),
	participle.Lexer(shexLexer), participle.Elide("Comment", "Whitespace"))

// ParseShex parses a ShExC document with per-shape recovery: a shape block
// built from constructs outside the subset is dropped, and the rest of the
// document still yields its shapes. Only a structurally broken document
// (unterminated block, malformed PREFIX) is an error.
func ParseShex(input string) (*ShexDocument, error) {
	stmts, err := splitShexStatements(input)
	if err != nil {
		return nil, fmt.Errorf("parse shex: %w", err)
	}

	doc := &ShexDocument{}
	for _, stmt := range stmts {
		if strings.HasPrefix(stmt, "PREFIX") {
			p := &ShexPrefix{}
			if err := shexPrefixParser.ParseString(stmt, p); err != nil {
				return nil, fmt.Errorf("parse shex: %w", err)
			}
			doc.Prefixes = append(doc.Prefixes, p)
			continue
		}
		shape := &ShexShape{}
		if err := shexShapeParser.ParseString(stmt, shape); err != nil {
			continue // outside the subset, shape dropped
		}
		doc.Shapes = append(doc.Shapes, shape)
	}
	return doc, nil
}

// splitShexStatements cuts a document into top-level statements: PREFIX
// directives and shape blocks, each running to its matching close brace.
// Comments, string literals, IRI refs and regexes are opaque to the scanner
// so braces inside them never affect nesting.
func splitShexStatements(input string) ([]string, error) {
	var stmts []string
	n := len(input)
	i := 0

	skipOpaque := func() bool {
		switch input[i] {
		case '#':
			for i < n && input[i] != '\n' {
				i++
			}
		case '"':
			i++
			for i < n && input[i] != '"' {
				if input[i] == '\\' {
					i++
				}
				i++
			}
			if i < n {
				i++
			}
		case '<':
			for i < n && input[i] != '>' {
				i++
			}
			if i < n {
				i++
			}
		case '/':
			i++
			for i < n && input[i] != '/' {
				if input[i] == '\\' {
					i++
				}
				i++
			}
			if i < n {
				i++
			}
		default:
			return false
		}
		return true
	}

	for i < n {
		c := input[i]
		if c == ' ' || c == '\t' || c == '\n' || c == '\r' {
			i++
			continue
		}
		if c == '#' {
			skipOpaque()
			continue
		}

		start := i
		if strings.HasPrefix(input[i:], "PREFIX") && i+6 < n &&
			(input[i+6] == ' ' || input[i+6] == '\t') {
			for i < n && input[i] != '>' {
				i++
			}
			if i >= n {
				return nil, fmt.Errorf("unterminated PREFIX directive at offset %d", start)
			}
			i++
			stmts = append(stmts, input[start:i])
			continue
		}

		depth := 0
		opened := false
		for i < n {
			if skipOpaque() {
				continue
			}
			switch input[i] {
			case '{':
				depth++
				opened = true
			case '}':
				depth--
			}
			i++
			if opened && depth == 0 {
				break
			}
		}
		if !opened || depth != 0 {
			return nil, fmt.Errorf("unterminated shape block at offset %d", start)
		}
		stmts = append(stmts, input[start:i])
	}
	return stmts, nil
}

// shexWalker resolves prefixed names while walking the AST.
type shexWalker struct {
	prefixes map[string]string
}

// IngestShex normalizes a parsed ShEx document into adapter output.
func IngestShex(doc *ShexDocument, source string) *SchemaConstraints {
	w := &shexWalker{prefixes: map[string]string{
		"xsd:":  _xsd,
		"rdf:":  "http://www.w3.org/1999/02/22-rdf-syntax-ns#",
		"rdfs:": "http://www.w3.org/2000/01/rdf-schema#",
	}}
	for _, p := range doc.Prefixes {
		w.prefixes[p.Name] = strings.TrimSuffix(strings.TrimPrefix(p.IRI, "<"), ">")
	}

	sc := &SchemaConstraints{Source: source}
	for _, shape := range doc.Shapes {
		shapeIRI := w.expand(shape.Name)
		decl := ShapeDecl{IRI: trimShapeSuffix(shapeIRI), Shape: shapeIRI}

		var declaredPaths []string
		for _, expr := range shape.Exprs {
			if expr == nil {
				continue
			}
			if len(expr.OneOf) > 0 {
				var children []ShapeConstraint
				for _, alt := range expr.OneOf {
					declaredPaths = append(declaredPaths, w.expand(alt.Predicate))
					children = append(children, w.tripleConstraints(alt)...)
				}
				if len(children) > 0 {
					decl.Constraints = append(decl.Constraints, ShapeConstraint{
						Kind:     LogicalOr,
						Severity: SeverityViolation,
						Children: children,
					})
				}
				continue
			}
			if expr.Triple == nil {
				continue
			}
			declaredPaths = append(declaredPaths, w.expand(expr.Triple.Predicate))
			decl.Constraints = append(decl.Constraints, w.tripleConstraints(expr.Triple)...)
		}

		if shape.Closed {
			decl.Constraints = append(decl.Constraints, ShapeConstraint{
				Kind:     ClosedShape,
				Severity: SeverityViolation,
				Allowed:  declaredPaths,
			})
		}

		sc.Shapes = append(sc.Shapes, decl)
	}

	return sc
}

func (w *shexWalker) tripleConstraints(t *ShexTriple) []ShapeConstraint {
	pred := w.expand(t.Predicate)
	bounds := w.cardBounds(t.Card)

	if t.Ref != "" {
		return []ShapeConstraint{{
			Kind:     ShapeRefKind,
			Path:     pred,
			Severity: SeverityViolation,
			Bounds:   bounds,
			Target:   trimShapeSuffix(w.expand(t.Ref)),
		}}
	}

	var out []ShapeConstraint
	if !bounds.Optional() {
		out = append(out, ShapeConstraint{
			Kind:     PropertyExists,
			Path:     pred,
			Severity: SeverityViolation,
			Bounds:   bounds,
		})
	}

	if t.Datatype != "" {
		out = append(out, ShapeConstraint{
			Kind:     PropertyType,
			Path:     pred,
			Severity: SeverityViolation,
			Bounds:   bounds,
			Datatype: w.expand(t.Datatype),
		})
	}

	if len(t.Values) > 0 {
		values := make([]any, 0, len(t.Values))
		for _, v := range t.Values {
			values = append(values, w.valueLiteral(v))
		}
		out = append(out, ShapeConstraint{
			Kind:     PropertyValueIn,
			Path:     pred,
			Severity: SeverityViolation,
			Bounds:   bounds,
			Values:   values,
		})
	}

	rangeC := ShapeConstraint{Kind: PropertyRange, Path: pred, Severity: SeverityViolation, Bounds: bounds}
	lenC := ShapeConstraint{Kind: PropertyStrLen, Path: pred, Severity: SeverityViolation, Bounds: bounds}
	hasRange, hasLen := false, false
	for _, f := range t.Facets {
		if f.Regex != "" {
			out = append(out, ShapeConstraint{
				Kind:     PropertyPattern,
				Path:     pred,
				Severity: SeverityViolation,
				Bounds:   bounds,
				Pattern:  regexBody(f.Regex),
			})
			continue
		}
		switch f.Name {
		case "MININCLUSIVE":
			rangeC.MinInc, hasRange = floatPtr(f.Value), true
		case "MAXINCLUSIVE":
			rangeC.MaxInc, hasRange = floatPtr(f.Value), true
		case "MINEXCLUSIVE":
			rangeC.MinExc, hasRange = floatPtr(f.Value), true
		case "MAXEXCLUSIVE":
			rangeC.MaxExc, hasRange = floatPtr(f.Value), true
		case "MINLENGTH":
			lenC.MinLen, hasLen = intPtr(f.Value), true
		case "MAXLENGTH":
			lenC.MaxLen, hasLen = intPtr(f.Value), true
		}
	}
	if hasRange {
		out = append(out, rangeC)
	}
	if hasLen {
		out = append(out, lenC)
	}

	return out
}

func (w *shexWalker) cardBounds(card *ShexCard) Bounds {
	if card == nil {
		b, _ := SymbolBounds("")
		return b
	}
	if card.Symbol != "" {
		b, _ := SymbolBounds(card.Symbol)
		return b
	}
	min := 0
	if card.Min != nil {
		min, _ = strconv.Atoi(*card.Min)
	}
	if !card.Comma {
		return CountBounds(&min, &min) // {n}
	}
	if card.Max == nil {
		return CountBounds(&min, nil) // {n,}
	}
	max, _ := strconv.Atoi(*card.Max)
	return CountBounds(&min, &max) // {n,m}
}

func (w *shexWalker) valueLiteral(v *ShexValue) any {
	switch {
	case v.Str != nil:
		return unquote(*v.Str)
	case v.Num != nil:
		if strings.Contains(*v.Num, ".") {
			f, _ := strconv.ParseFloat(*v.Num, 64)
			return f
		}
		i, _ := strconv.Atoi(*v.Num)
		return i
	case v.IRI != nil:
		return localName(w.expand(*v.IRI))
	}
	return nil
}

func (w *shexWalker) expand(name string) string {
	if strings.HasPrefix(name, "<") {
		return strings.TrimSuffix(strings.TrimPrefix(name, "<"), ">")
	}
	if idx := strings.Index(name, ":"); idx >= 0 {
		if base, ok := w.prefixes[name[:idx+1]]; ok {
			return base + name[idx+1:]
		}
	}
	return name
}

// trimShapeSuffix drops a trailing "Shape" from the local name, so
// ex:MovieShape and ex:Movie both resolve to the same target class.
func trimShapeSuffix(iri string) string {
	local := localName(iri)
	if local != "Shape" && strings.HasSuffix(local, "Shape") {
		return iri[:len(iri)-len("Shape")]
	}
	return iri
}

func unquote(s string) string {
	s = strings.TrimSuffix(strings.TrimPrefix(s, "\""), "\"")
	s = strings.ReplaceAll(s, "\\\"", "\"")
	return strings.ReplaceAll(s, "\\\\", "\\")
}

func regexBody(s string) string {
	s = strings.TrimSuffix(strings.TrimPrefix(s, "/"), "/")
	return strings.ReplaceAll(s, "\\/", "/")
}

func floatPtr(s string) *float64 {
	f, _ := strconv.ParseFloat(s, 64)
	return &f
}

func intPtr(s string) *int {
	i, _ := strconv.Atoi(s)
	return &i
}
