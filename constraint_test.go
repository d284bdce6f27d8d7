package main

import "testing"

func TestSymbolBounds(t *testing.T) {
	cases := []struct {
		symbol string
		want   Bounds
	}{
		{"", Bounds{1, 1}},
		{"?", Bounds{0, 1}},
		{"+", Bounds{1, Unbounded}},
		{"*", Bounds{0, Unbounded}},
	}

	for _, c := range cases {
		got, ok := SymbolBounds(c.symbol)
		if !ok {
			t.Fatalf("SymbolBounds(%q) not found", c.symbol)
		}
		if got != c.want {
			t.Errorf("SymbolBounds(%q) = %v, want %v", c.symbol, got, c.want)
		}
	}

	if _, ok := SymbolBounds("!"); ok {
		t.Error("SymbolBounds accepted an unknown symbol")
	}
}

func TestCountBounds(t *testing.T) {
	two, four := 2, 4

	if got := CountBounds(nil, nil); got != (Bounds{0, Unbounded}) {
		t.Errorf("absent counts = %v, want 0..unbounded", got)
	}
	if got := CountBounds(&two, &four); got != (Bounds{2, 4}) {
		t.Errorf("explicit counts = %v, want 2..4", got)
	}
	if got := CountBounds(&two, &two); got != (Bounds{2, 2}) {
		t.Errorf("fixed count = %v, want 2..2", got)
	}
	if got := CountBounds(&two, nil); got != (Bounds{2, Unbounded}) {
		t.Errorf("open upper bound = %v, want 2..unbounded", got)
	}
}

func TestBoundsPredicates(t *testing.T) {
	if !(Bounds{0, 1}).Optional() {
		t.Error("0..1 should be optional")
	}
	if (Bounds{1, 1}).Optional() {
		t.Error("1..1 should not be optional")
	}
	if !(Bounds{0, Unbounded}).Unconstrained() {
		t.Error("0..* should be unconstrained")
	}
	if (Bounds{0, 1}).Unconstrained() {
		t.Error("0..1 should not be unconstrained")
	}
}

func TestLpgType(t *testing.T) {
	cases := map[string]string{
		_xsd + "string":   "string",
		_xsd + "integer":  "integer",
		_xsd + "int":      "integer",
		_xsd + "long":     "integer",
		_xsd + "double":   "float",
		_xsd + "decimal":  "float",
		_xsd + "boolean":  "boolean",
		_xsd + "dateTime": "datetime",
		"http://example.org/custom#Duration": "Duration",
	}
	for iri, want := range cases {
		if got := lpgType(iri); got != want {
			t.Errorf("lpgType(%s) = %q, want %q", iri, got, want)
		}
	}
}

func TestLocalName(t *testing.T) {
	if got := localName("http://example.org/movies#title"); got != "title" {
		t.Errorf("fragment local name = %q", got)
	}
	if got := localName("http://example.org/movies/title"); got != "title" {
		t.Errorf("path local name = %q", got)
	}
	if got := localName("title"); got != "title" {
		t.Errorf("bare local name = %q", got)
	}
}

func TestSeverityFromIRI(t *testing.T) {
	if got := severityFromIRI(_sh + "Warning"); got != SeverityWarning {
		t.Errorf("Warning = %v", got)
	}
	if got := severityFromIRI(_sh + "Info"); got != SeverityInfo {
		t.Errorf("Info = %v", got)
	}
	if got := severityFromIRI(_sh + "Violation"); got != SeverityViolation {
		t.Errorf("Violation = %v", got)
	}
	if got := severityFromIRI(""); got != SeverityViolation {
		t.Errorf("default = %v", got)
	}
}
