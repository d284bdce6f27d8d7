package main

import (
	"os"
	"path/filepath"
	"testing"
)

func TestRunRejectsUnknownCommand(t *testing.T) {
	if code := run([]string{"frobnicate"}); code != 2 {
		t.Errorf("exit code = %d, want 2", code)
	}
	if code := run(nil); code != 2 {
		t.Errorf("exit code = %d, want 2", code)
	}
}

func TestLoadPlanShex(t *testing.T) {
	path := filepath.Join(t.TempDir(), "movies.shex")
	content := "# @database: films\n# @subgraph: MATCH (m:Movie) RETURN m\n" + moviesShex
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	plan, fm, err := loadPlan(&schemaFlags{schema: path, dialect: "cypher"})
	if err != nil {
		t.Fatal(err)
	}
	if fm.Database != "films" {
		t.Errorf("database = %q", fm.Database)
	}
	if fm.Subgraph != "MATCH (m:Movie) RETURN m" {
		t.Errorf("subgraph = %q", fm.Subgraph)
	}
	if len(plan.Labels) != 4 {
		t.Errorf("labels = %v", plan.Labels)
	}
	findCheck(t, plan, "movie-title-exists")
}

func TestLoadPlanShacl(t *testing.T) {
	path := filepath.Join(t.TempDir(), "movies.ttl")
	if err := os.WriteFile(path, []byte(moviesShacl), 0o644); err != nil {
		t.Fatal(err)
	}

	plan, _, err := loadPlan(&schemaFlags{schema: path, dialect: "cypher"})
	if err != nil {
		t.Fatal(err)
	}
	findCheck(t, plan, "movie-title-exists")
	findCheck(t, plan, "movie-has_actor-cardinality")
}

func TestLoadPlanWithMappingOverride(t *testing.T) {
	dir := t.TempDir()
	schema := filepath.Join(dir, "movies.shex")
	if err := os.WriteFile(schema, []byte(moviesShex), 0o644); err != nil {
		t.Fatal(err)
	}
	mapping := filepath.Join(dir, "names.map")
	if err := os.WriteFile(mapping, []byte("label <"+ex+"Movie> Film\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	plan, _, err := loadPlan(&schemaFlags{schema: schema, mapping: mapping})
	if err != nil {
		t.Fatal(err)
	}
	findCheck(t, plan, "film-title-exists")
}

func TestLoadPlanRequiresSchema(t *testing.T) {
	if _, _, err := loadPlan(&schemaFlags{}); err == nil {
		t.Error("missing -schema should fail")
	}
	if _, _, err := loadPlan(&schemaFlags{schema: "/does/not/exist.shex"}); err == nil {
		t.Error("unreadable schema should fail")
	}
}

func TestPickDatabase(t *testing.T) {
	fm := &Frontmatter{Database: "films"}
	if got := pickDatabase(&connFlags{database: "override"}, fm); got != "override" {
		t.Errorf("got %q", got)
	}
	if got := pickDatabase(&connFlags{}, fm); got != "films" {
		t.Errorf("got %q", got)
	}
}

func TestEmitRejectsUnknownFormat(t *testing.T) {
	report := sampleReport()
	if code := emit(report, "yaml"); code != 2 {
		t.Errorf("exit code = %d, want 2", code)
	}
	if code := emit(report, "quiet"); code != 0 {
		t.Errorf("quiet exit code = %d, want 0", code)
	}
}
