package main

import (
	"reflect"
	"sort"
	"strings"
	"testing"
)

const moviesShacl = `@prefix sh: <http://www.w3.org/ns/shacl#> .
@prefix xsd: <http://www.w3.org/2001/XMLSchema#> .
@prefix ex: <http://example.org/movies#> .

ex:MovieShape a sh:NodeShape ;
    sh:targetClass ex:Movie ;
    sh:closed "true"^^xsd:boolean ;
    sh:ignoredProperties ( ex:internalId ) ;
    sh:property [
        sh:path ex:title ;
        sh:datatype xsd:string ;
        sh:minCount 1 ;
        sh:maxCount 1 ;
    ] ;
    sh:property [
        sh:path ex:released ;
        sh:datatype xsd:integer ;
        sh:minCount 1 ;
        sh:minInclusive 1888 ;
    ] ;
    sh:property [
        sh:path ex:rating ;
        sh:in ( "G" "PG" "PG-13" "R" "NC-17" ) ;
        sh:severity sh:Warning ;
    ] ;
    sh:property [
        sh:path ex:tagline ;
        sh:pattern "^[A-Z]" ;
        sh:flags "i" ;
    ] ;
    sh:property [
        sh:path ex:hasActor ;
        sh:node ex:PersonShape ;
        sh:minCount 1 ;
    ] ;
    sh:property [
        sh:path ex:hasDirector ;
        sh:class ex:Person ;
        sh:minCount 1 ;
        sh:maxCount 1 ;
    ] ;
    sh:property [
        sh:path [ sh:inversePath ex:actedIn ] ;
        sh:nodeKind sh:IRI ;
        sh:minCount 1 ;
    ] .

ex:PersonShape a sh:NodeShape ;
    sh:targetClass ex:Person ;
    sh:property [
        sh:path ex:name ;
        sh:datatype xsd:string ;
        sh:minCount 1 ;
    ] .

ex:RetiredShape a sh:NodeShape ;
    sh:deactivated "true"^^xsd:boolean ;
    sh:targetClass ex:Retired .
`

func ingestShaclFixture(t *testing.T, turtle string) *SchemaConstraints {
	t.Helper()
	sc, err := ParseShaclSchema(strings.NewReader(turtle), "movies.ttl")
	if err != nil {
		t.Fatal(err)
	}
	return sc
}

func TestIngestShaclMovies(t *testing.T) {
	sc := ingestShaclFixture(t, moviesShacl)

	if len(sc.Shapes) != 2 {
		t.Fatalf("got %d shapes, want 2 (deactivated shape skipped)", len(sc.Shapes))
	}

	movie := findShape(t, sc, ex+"Movie")
	if movie.Shape != ex+"MovieShape" {
		t.Errorf("Shape = %q", movie.Shape)
	}

	title := findConstraint(t, movie, PropertyExists, ex+"title")
	if title.Bounds != (Bounds{1, 1}) {
		t.Errorf("title bounds = %v", title.Bounds)
	}
	titleType := findConstraint(t, movie, PropertyType, ex+"title")
	if titleType.Datatype != _xsd+"string" {
		t.Errorf("title datatype = %q", titleType.Datatype)
	}

	released := findConstraint(t, movie, PropertyRange, ex+"released")
	if released.MinInc == nil || *released.MinInc != 1888 {
		t.Errorf("released MinInc = %v", released.MinInc)
	}
	if released.Bounds != (Bounds{1, Unbounded}) {
		t.Errorf("released bounds = %v", released.Bounds)
	}
}

func TestIngestShaclOptionalAndSeverity(t *testing.T) {
	sc := ingestShaclFixture(t, moviesShacl)
	movie := findShape(t, sc, ex+"Movie")

	// no counts means optional: value check only, no presence check
	if hasConstraint(movie, PropertyExists, ex+"rating") {
		t.Error("rating should not have a presence constraint")
	}
	rating := findConstraint(t, movie, PropertyValueIn, ex+"rating")
	if rating.Severity != SeverityWarning {
		t.Errorf("rating severity = %v, want warning", rating.Severity)
	}
	want := []any{"G", "PG", "PG-13", "R", "NC-17"}
	if !reflect.DeepEqual(rating.Values, want) {
		t.Errorf("rating values = %v, want %v", rating.Values, want)
	}

	tagline := findConstraint(t, movie, PropertyPattern, ex+"tagline")
	if tagline.Pattern != "^[A-Z]" || tagline.PatternFlags != "i" {
		t.Errorf("tagline pattern = %q flags = %q", tagline.Pattern, tagline.PatternFlags)
	}
}

func TestIngestShaclRelationships(t *testing.T) {
	sc := ingestShaclFixture(t, moviesShacl)
	movie := findShape(t, sc, ex+"Movie")

	// sh:node resolves the target through the referenced shape's targetClass
	actor := findConstraint(t, movie, ShapeRefKind, ex+"hasActor")
	if actor.Target != ex+"Person" {
		t.Errorf("hasActor target = %q", actor.Target)
	}
	if actor.Bounds != (Bounds{1, Unbounded}) {
		t.Errorf("hasActor bounds = %v", actor.Bounds)
	}

	director := findConstraint(t, movie, RelCardinality, ex+"hasDirector")
	if director.Target != ex+"Person" {
		t.Errorf("hasDirector target = %q", director.Target)
	}
	if director.Bounds != (Bounds{1, 1}) {
		t.Errorf("hasDirector bounds = %v", director.Bounds)
	}

	actedIn := findConstraint(t, movie, RelCardinality, ex+"actedIn")
	if !actedIn.Inverse {
		t.Error("inversePath should mark the constraint inverse")
	}
	if actedIn.Target != "" {
		t.Errorf("actedIn target = %q, want empty", actedIn.Target)
	}
}

func TestIngestShaclClosed(t *testing.T) {
	sc := ingestShaclFixture(t, moviesShacl)
	movie := findShape(t, sc, ex+"Movie")

	closed := findConstraint(t, movie, ClosedShape, "")
	got := append([]string(nil), closed.Allowed...)
	sort.Strings(got)
	want := []string{
		ex + "hasActor", ex + "hasDirector", ex + "internalId",
		ex + "rating", ex + "released", ex + "tagline", ex + "title",
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("allowed = %v, want %v", got, want)
	}
}

func TestIngestShaclHasValueAndPair(t *testing.T) {
	turtle := `@prefix sh: <http://www.w3.org/ns/shacl#> .
@prefix xsd: <http://www.w3.org/2001/XMLSchema#> .
@prefix ex: <http://example.org/run#> .

ex:RunShape a sh:NodeShape ;
    sh:targetClass ex:Run ;
    sh:property [
        sh:path ex:status ;
        sh:hasValue "done" ;
    ] ;
    sh:property [
        sh:path ex:start ;
        sh:lessThan ex:end ;
    ] ;
    sh:property [
        sh:path ex:summary ;
        sh:minLength 1 ;
        sh:maxLength 120 ;
    ] .
`
	sc := ingestShaclFixture(t, turtle)
	run := findShape(t, sc, "http://example.org/run#Run")
	ns := "http://example.org/run#"

	status := findConstraint(t, run, PropertyValueIn, ns+"status")
	if !status.HasValue {
		t.Error("hasValue constraint should be flagged")
	}
	if !reflect.DeepEqual(status.Values, []any{"done"}) {
		t.Errorf("status values = %v", status.Values)
	}

	pair := findConstraint(t, run, PropertyPair, ns+"start")
	if pair.Compare != ns+"end" || pair.CompareOp != "lessThan" {
		t.Errorf("pair = %q %q", pair.CompareOp, pair.Compare)
	}

	length := findConstraint(t, run, PropertyStrLen, ns+"summary")
	if length.MinLen == nil || *length.MinLen != 1 || length.MaxLen == nil || *length.MaxLen != 120 {
		t.Errorf("summary length = %v..%v", length.MinLen, length.MaxLen)
	}
}

func TestIngestShaclLogical(t *testing.T) {
	turtle := `@prefix sh: <http://www.w3.org/ns/shacl#> .
@prefix xsd: <http://www.w3.org/2001/XMLSchema#> .
@prefix ex: <http://example.org/people#> .

ex:AdultShape a sh:NodeShape ;
    sh:targetClass ex:Adult ;
    sh:not [
        sh:property [ sh:path ex:age ; sh:maxInclusive 17 ; ] ;
    ] ;
    sh:or (
        [ sh:property [ sh:path ex:email ; sh:minCount 1 ; ] ; ]
        [ sh:property [ sh:path ex:phone ; sh:minCount 1 ; ] ; ]
    ) .
`
	sc := ingestShaclFixture(t, turtle)
	adult := findShape(t, sc, "http://example.org/people#Adult")
	ns := "http://example.org/people#"

	not := findConstraint(t, adult, LogicalNot, "")
	if len(not.Children) != 1 {
		t.Fatalf("not children = %d", len(not.Children))
	}
	inner := not.Children[0]
	if inner.Kind != PropertyRange || inner.Path != ns+"age" {
		t.Errorf("inner = %v %s", inner.Kind, inner.Path)
	}
	if inner.MaxInc == nil || *inner.MaxInc != 17 {
		t.Errorf("inner MaxInc = %v", inner.MaxInc)
	}

	or := findConstraint(t, adult, LogicalOr, "")
	if len(or.Children) != 2 {
		t.Fatalf("or children = %d", len(or.Children))
	}
	var paths []string
	for _, c := range or.Children {
		if c.Kind != PropertyExists {
			t.Errorf("or child kind = %v", c.Kind)
		}
		paths = append(paths, c.Path)
	}
	sort.Strings(paths)
	if !reflect.DeepEqual(paths, []string{ns + "email", ns + "phone"}) {
		t.Errorf("or paths = %v", paths)
	}
}

func TestIngestShaclQualifiedAndUniqueLang(t *testing.T) {
	turtle := `@prefix sh: <http://www.w3.org/ns/shacl#> .
@prefix xsd: <http://www.w3.org/2001/XMLSchema#> .
@prefix ex: <http://example.org/team#> .

ex:TeamShape a sh:NodeShape ;
    sh:targetClass ex:Team ;
    sh:property [
        sh:path ex:role ;
        sh:qualifiedValueShape [ sh:in ( "lead" ) ] ;
        sh:qualifiedMinCount 1 ;
        sh:qualifiedMaxCount 2 ;
    ] ;
    sh:property [
        sh:path ex:score ;
        sh:qualifiedValueShape [ sh:datatype xsd:integer ] ;
        sh:qualifiedMinCount 2 ;
    ] ;
    sh:property [
        sh:path ex:size ;
        sh:qualifiedValueShape [ sh:nodeKind sh:Literal ] ;
        sh:qualifiedMinCount 1 ;
    ] ;
    sh:property [
        sh:path ex:motto ;
        sh:uniqueLang "true"^^xsd:boolean ;
    ] .
`
	sc := ingestShaclFixture(t, turtle)
	team := findShape(t, sc, "http://example.org/team#Team")
	ns := "http://example.org/team#"

	role := findConstraint(t, team, QualifiedCardinality, ns+"role")
	if role.Bounds != (Bounds{1, 2}) {
		t.Errorf("role bounds = %v", role.Bounds)
	}
	if len(role.Children) != 1 {
		t.Fatalf("role children = %d", len(role.Children))
	}
	filter := role.Children[0]
	if filter.Kind != PropertyValueIn || !reflect.DeepEqual(filter.Values, []any{"lead"}) {
		t.Errorf("role filter = %v %v", filter.Kind, filter.Values)
	}

	score := findConstraint(t, team, QualifiedCardinality, ns+"score")
	if score.Bounds != (Bounds{2, Unbounded}) {
		t.Errorf("score bounds = %v", score.Bounds)
	}
	if score.Children[0].Kind != PropertyType || score.Children[0].Datatype != _xsd+"integer" {
		t.Errorf("score filter = %+v", score.Children[0])
	}

	// unsupported inner shape drops the whole qualified constraint
	if hasConstraint(team, QualifiedCardinality, ns+"size") {
		t.Error("nodeKind inner shape should drop the qualified constraint")
	}

	motto := findConstraint(t, team, UniqueLang, ns+"motto")
	if motto.Severity != SeverityInfo {
		t.Errorf("uniqueLang severity = %v, want info", motto.Severity)
	}
}

func TestIngestShaclTargetClassFallback(t *testing.T) {
	turtle := `@prefix sh: <http://www.w3.org/ns/shacl#> .
@prefix xsd: <http://www.w3.org/2001/XMLSchema#> .
@prefix ex: <http://example.org/tags#> .

ex:TagShape a sh:NodeShape ;
    sh:property [
        sh:path ex:name ;
        sh:datatype xsd:string ;
        sh:minCount 1 ;
    ] .
`
	sc := ingestShaclFixture(t, turtle)

	// without a targetClass the shape IRI itself is the class
	tag := findShape(t, sc, "http://example.org/tags#Tag")
	if !hasConstraint(tag, PropertyExists, "http://example.org/tags#name") {
		t.Error("name presence constraint missing")
	}
}

func TestParseShaclRejectsBadTurtle(t *testing.T) {
	if _, err := ParseShaclSchema(strings.NewReader("@prefix broken"), "x.ttl"); err == nil {
		t.Error("malformed turtle should fail to parse")
	}
}
