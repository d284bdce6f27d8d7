package main

import (
	"strings"
	"testing"
)

func moviesConstraints() *SchemaConstraints {
	return &SchemaConstraints{
		Source: "movies.shex",
		Shapes: []ShapeDecl{
			{
				IRI:   ex + "Movie",
				Shape: ex + "MovieShape",
				Constraints: []ShapeConstraint{
					{Kind: PropertyExists, Path: ex + "title", Severity: SeverityViolation, Bounds: Bounds{1, 1}},
					{Kind: PropertyType, Path: ex + "title", Severity: SeverityViolation, Bounds: Bounds{1, 1}, Datatype: _xsd + "string"},
					{Kind: PropertyType, Path: ex + "tagline", Severity: SeverityViolation, Bounds: Bounds{0, 1}, Datatype: _xsd + "string"},
					{Kind: ShapeRefKind, Path: ex + "hasActor", Severity: SeverityViolation, Bounds: Bounds{1, Unbounded}, Target: ex + "Person"},
				},
			},
			{
				IRI:   ex + "Person",
				Shape: ex + "PersonShape",
				Constraints: []ShapeConstraint{
					{Kind: PropertyExists, Path: ex + "name", Severity: SeverityViolation, Bounds: Bounds{1, 1}},
				},
			},
		},
	}
}

func findCheck(t *testing.T, plan *ValidationPlan, id string) Check {
	t.Helper()
	for _, c := range plan.Checks {
		if c.ID == id {
			return c
		}
	}
	var ids []string
	for _, c := range plan.Checks {
		ids = append(ids, c.ID)
	}
	t.Fatalf("check %s not found in %v", id, ids)
	return Check{}
}

func TestBuildPlanPropertyChecks(t *testing.T) {
	plan, err := BuildPlan(moviesConstraints(), GetMapping(), false)
	if err != nil {
		t.Fatal(err)
	}

	if len(plan.Labels) != 2 || plan.Labels[0] != "Movie" || plan.Labels[1] != "Person" {
		t.Errorf("Labels = %v", plan.Labels)
	}

	exists := findCheck(t, plan, "movie-title-exists")
	if exists.Message != "Movie node missing required 'title' property" {
		t.Errorf("message = %q", exists.Message)
	}
	if exists.TargetLabel != "Movie" || exists.Property != "title" {
		t.Errorf("check = %+v", exists)
	}

	typed := findCheck(t, plan, "movie-title-type")
	if typed.ExpectedType != "string" || typed.OnlyIfExists {
		t.Errorf("check = %+v", typed)
	}
	if typed.Message != "Movie.title must be of type string" {
		t.Errorf("message = %q", typed.Message)
	}

	optional := findCheck(t, plan, "movie-tagline-type")
	if !optional.OnlyIfExists {
		t.Error("optional property type check should only apply when present")
	}
}

func TestBuildPlanRelationship(t *testing.T) {
	plan, err := BuildPlan(moviesConstraints(), GetMapping(), false)
	if err != nil {
		t.Fatal(err)
	}

	card := findCheck(t, plan, "movie-has_actor-cardinality")
	if card.Rel == nil {
		t.Fatal("no relationship on cardinality check")
	}
	if card.Rel.Type != "HAS_ACTOR" || card.Rel.TargetLabel != "Person" || card.Rel.Inverse {
		t.Errorf("rel = %+v", card.Rel)
	}
	if card.Message != "Movie must have at least one HAS_ACTOR relationship to Person" {
		t.Errorf("message = %q", card.Message)
	}
}

func TestBuildPlanUnknownTarget(t *testing.T) {
	sc := &SchemaConstraints{Source: "x.ttl", Shapes: []ShapeDecl{{
		IRI: ex + "Movie", Shape: ex + "MovieShape",
		Constraints: []ShapeConstraint{
			{Kind: RelCardinality, Path: ex + "actedIn", Inverse: true, Severity: SeverityViolation, Bounds: Bounds{1, Unbounded}},
		},
	}}}
	plan, err := BuildPlan(sc, GetMapping(), false)
	if err != nil {
		t.Fatal(err)
	}
	card := findCheck(t, plan, "movie-acted_in-cardinality")
	if card.Rel.TargetLabel != "Unknown" {
		t.Errorf("target = %q", card.Rel.TargetLabel)
	}
	if !card.Rel.Inverse {
		t.Error("inverse flag lost")
	}
}

func TestRelCardinalityMessages(t *testing.T) {
	cases := []struct {
		bounds Bounds
		want   string
	}{
		{Bounds{0, 1}, "Movie may have at most one HAS_ACTOR relationship to Person"},
		{Bounds{1, 1}, "Movie must have exactly one HAS_ACTOR relationship to Person"},
		{Bounds{1, Unbounded}, "Movie must have at least one HAS_ACTOR relationship to Person"},
		{Bounds{0, Unbounded}, "Movie may have zero or more HAS_ACTOR relationships to Person"},
		{Bounds{2, 4}, "Movie must have 2..4 HAS_ACTOR relationships to Person"},
		{Bounds{2, Unbounded}, "Movie must have 2..* HAS_ACTOR relationships to Person"},
	}
	for _, c := range cases {
		got := relCardinalityMessage("Movie", "HAS_ACTOR", "Person", c.bounds)
		if got != c.want {
			t.Errorf("bounds %v:\n got %q\nwant %q", c.bounds, got, c.want)
		}
	}
}

func TestBuildPlanLogical(t *testing.T) {
	sc := &SchemaConstraints{Source: "x.ttl", Shapes: []ShapeDecl{{
		IRI: ex + "Movie", Shape: ex + "MovieShape",
		Constraints: []ShapeConstraint{{
			Kind: LogicalOr, Severity: SeverityViolation,
			Children: []ShapeConstraint{
				{Kind: PropertyExists, Path: ex + "isbn", Severity: SeverityViolation, Bounds: Bounds{1, 1}},
				{Kind: PropertyExists, Path: ex + "issn", Severity: SeverityViolation, Bounds: Bounds{1, 1}},
			},
		}},
	}}}
	plan, err := BuildPlan(sc, GetMapping(), false)
	if err != nil {
		t.Fatal(err)
	}

	or := findCheck(t, plan, "movie-logical-or")
	if len(or.Sub) != 2 {
		t.Fatalf("sub checks = %d", len(or.Sub))
	}
	if or.Sub[0].ID != "movie-isbn-inner-exists" {
		t.Errorf("sub id = %q", or.Sub[0].ID)
	}
	if or.Message != "Movie must satisfy OR of 2 conditions" {
		t.Errorf("message = %q", or.Message)
	}
}

func TestBuildPlanQualifiedAndUniqueLang(t *testing.T) {
	sc := &SchemaConstraints{Source: "x.ttl", Shapes: []ShapeDecl{{
		IRI: ex + "Movie", Shape: ex + "MovieShape",
		Constraints: []ShapeConstraint{
			{Kind: QualifiedCardinality, Path: ex + "rating", Severity: SeverityViolation,
				Bounds: Bounds{1, 2},
				Children: []ShapeConstraint{
					{Kind: PropertyValueIn, Path: ex + "rating", Severity: SeverityViolation, Values: []any{"G"}},
				}},
			{Kind: UniqueLang, Path: ex + "tagline", Severity: SeverityInfo, Bounds: Bounds{0, Unbounded}},
		},
	}}}
	plan, err := BuildPlan(sc, GetMapping(), false)
	if err != nil {
		t.Fatal(err)
	}

	q := findCheck(t, plan, "movie-rating-qualified")
	if len(q.Sub) != 1 || q.Sub[0].ID != "movie-rating-qfilter-values" {
		t.Errorf("sub checks = %+v", q.Sub)
	}
	if q.Message != "Movie.rating must have at least 1 and at most 2 values matching qualified shape" {
		t.Errorf("message = %q", q.Message)
	}

	ul := findCheck(t, plan, "movie-tagline-uniquelang")
	if ul.Severity != SeverityInfo {
		t.Errorf("severity = %v", ul.Severity)
	}
	if !strings.Contains(ul.Message, "not enforced") {
		t.Errorf("message = %q", ul.Message)
	}
}

func TestBuildPlanStrict(t *testing.T) {
	plan, err := BuildPlan(moviesConstraints(), GetMapping(), true)
	if err != nil {
		t.Fatal(err)
	}

	labels := findCheck(t, plan, "strict-undeclared-labels")
	if labels.Severity != SeverityWarning || labels.Kind != UndeclaredLabels {
		t.Errorf("check = %+v", labels)
	}
	if len(labels.Values) != 2 {
		t.Errorf("declared labels = %v", labels.Values)
	}

	rels := findCheck(t, plan, "strict-undeclared-rel-types")
	if len(rels.Allowed) != 1 || rels.Allowed[0] != "HAS_ACTOR" {
		t.Errorf("declared rel types = %v", rels.Allowed)
	}

	props := findCheck(t, plan, "strict-movie-undeclared-props")
	want := []string{"title", "tagline"}
	if len(props.Allowed) != len(want) {
		t.Fatalf("declared props = %v", props.Allowed)
	}
	for i, p := range want {
		if props.Allowed[i] != p {
			t.Errorf("declared props = %v, want %v", props.Allowed, want)
			break
		}
	}

	empty := findCheck(t, plan, "strict-person-empty")
	if empty.Kind != EmptyShape || empty.TargetLabel != "Person" {
		t.Errorf("check = %+v", empty)
	}
	if !strings.Contains(empty.Message, "no Person nodes exist") {
		t.Errorf("message = %q", empty.Message)
	}
}

func TestBuildPlanStrictEndpoints(t *testing.T) {
	plan, err := BuildPlan(moviesConstraints(), GetMapping(), true)
	if err != nil {
		t.Fatal(err)
	}

	epc := findCheck(t, plan, "strict-movie-has_actor-endpoint")
	if epc.Kind != RelEndpoint || epc.Severity != SeverityWarning {
		t.Errorf("check = %+v", epc)
	}
	if epc.Rel == nil || epc.Rel.Type != "HAS_ACTOR" || epc.Rel.TargetLabel != "Person" {
		t.Errorf("rel = %+v", epc.Rel)
	}
	if epc.Message != "HAS_ACTOR relationships must connect Movie nodes to Person nodes" {
		t.Errorf("message = %q", epc.Message)
	}
}

func TestBuildPlanStrictEndpointSkipsUnknownAndInverse(t *testing.T) {
	sc := &SchemaConstraints{Source: "x.ttl", Shapes: []ShapeDecl{{
		IRI: ex + "Movie", Shape: ex + "MovieShape",
		Constraints: []ShapeConstraint{
			{Kind: RelCardinality, Path: ex + "actedIn", Inverse: true, Severity: SeverityViolation, Bounds: Bounds{1, Unbounded}},
			{Kind: RelCardinality, Path: ex + "linkedTo", Severity: SeverityViolation, Bounds: Bounds{1, Unbounded}},
		},
	}}}
	plan, err := BuildPlan(sc, GetMapping(), true)
	if err != nil {
		t.Fatal(err)
	}
	for _, c := range plan.Checks {
		if c.Kind == RelEndpoint {
			t.Errorf("no endpoint check expected, got %s", c.ID)
		}
	}
}
