package main

import (
	"bytes"
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fatih/color"
)

// graphlint validates labeled-property-graph data against ShExC or SHACL
// shape schemas. Schemas compile into a vendor-neutral plan, the plan into
// Cypher or GQL, and the queries run against a live store: read-only
// (audit), or gating a proposed write inside one transaction (check).
//
// Exit codes: 0 the data conforms (or the write was committed), 1
// violations were found (or the write was rolled back), 2 operational
// error.

func usage() {
	fmt.Fprintln(os.Stderr, "Usage: graphlint <compile|audit|check> [options]")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "  compile   print the queries a schema compiles to")
	fmt.Fprintln(os.Stderr, "  audit     validate the whole database read-only")
	fmt.Fprintln(os.Stderr, "  check     gate a write: commit only if the subgraph still conforms")
}

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	if len(args) == 0 {
		usage()
		return 2
	}

	switch args[0] {
	case "compile":
		return runCompile(args[1:])
	case "audit":
		return runAudit(args[1:])
	case "check":
		return runCheck(args[1:])
	default:
		usage()
		return 2
	}
}

// schemaFlags is the option set shared by every subcommand.
type schemaFlags struct {
	schema  string
	dialect string
	strict  bool
	mapping string
}

func addSchemaFlags(fs *flag.FlagSet) *schemaFlags {
	sf := &schemaFlags{}
	fs.StringVar(&sf.schema, "schema", "", "path to the ShEx (.shex) or SHACL (.ttl) schema")
	fs.StringVar(&sf.dialect, "dialect", "cypher", "query dialect: cypher or gql")
	fs.BoolVar(&sf.strict, "strict", false, "add closed-world coverage checks")
	fs.StringVar(&sf.mapping, "mapping", "", "path to a name-mapping override file")
	return sf
}

type connFlags struct {
	uri      string
	user     string
	password string
	database string
	format   string
	debug    bool
}

func addConnFlags(fs *flag.FlagSet) *connFlags {
	cf := &connFlags{}
	fs.StringVar(&cf.uri, "uri", "bolt://localhost:7687", "bolt endpoint")
	fs.StringVar(&cf.user, "user", "neo4j", "database user")
	fs.StringVar(&cf.password, "password", "", "database password")
	fs.StringVar(&cf.database, "database", "", "database name (default: schema @database)")
	fs.StringVar(&cf.format, "format", "table", "output format: table, json or quiet")
	fs.BoolVar(&cf.debug, "debug", false, "echo every query sent to the store")
	return cf
}

// loadPlan ingests the schema file, applies mapping overrides and builds
// the validation plan.
func loadPlan(sf *schemaFlags) (*ValidationPlan, *Frontmatter, error) {
	if sf.schema == "" {
		return nil, nil, fmt.Errorf("no schema given (use -schema)")
	}

	data, err := os.ReadFile(sf.schema)
	if err != nil {
		return nil, nil, err
	}

	fm, err := ParseFrontmatter(bytes.NewReader(data))
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", sf.schema, err)
	}

	var constraints *SchemaConstraints
	if strings.EqualFold(filepath.Ext(sf.schema), ".shex") {
		doc, err := ParseShex(string(data))
		if err != nil {
			return nil, nil, fmt.Errorf("%s: %w", sf.schema, err)
		}
		constraints = IngestShex(doc, sf.schema)
	} else {
		constraints, err = ParseShaclSchema(bytes.NewReader(data), sf.schema)
		if err != nil {
			return nil, nil, fmt.Errorf("%s: %w", sf.schema, err)
		}
	}

	mapping := GetMapping()
	if sf.mapping != "" {
		mapping, err = LoadMappingFile(sf.mapping)
		if err != nil {
			return nil, nil, err
		}
	}

	plan, err := BuildPlan(constraints, mapping, sf.strict)
	if err != nil {
		return nil, nil, err
	}
	return plan, fm, nil
}

func runCompile(args []string) int {
	fs := flag.NewFlagSet("compile", flag.ExitOnError)
	sf := addSchemaFlags(fs)
	fs.Parse(args)

	plan, _, err := loadPlan(sf)
	if err != nil {
		return fail(err)
	}
	backend, err := GetBackend(sf.dialect)
	if err != nil {
		return fail(err)
	}

	runner := GetRunner(plan, backend, nil, "", false)
	out, err := runner.DryRun()
	if err != nil {
		return fail(err)
	}
	fmt.Print(out)
	return 0
}

func runAudit(args []string) int {
	fs := flag.NewFlagSet("audit", flag.ExitOnError)
	sf := addSchemaFlags(fs)
	cf := addConnFlags(fs)
	fs.Parse(args)

	plan, fm, err := loadPlan(sf)
	if err != nil {
		return fail(err)
	}
	backend, err := GetBackend(sf.dialect)
	if err != nil {
		return fail(err)
	}

	ctx := context.Background()
	ep, err := GetBoltEndpoint(ctx, cf.uri, cf.user, cf.password, pickDatabase(cf, fm), cf.debug)
	if err != nil {
		return fail(err)
	}
	defer ep.Close(ctx)

	runner := GetRunner(plan, backend, ep, cf.uri, cf.debug)
	report, err := runner.Audit(ctx)
	if err != nil {
		return fail(err)
	}

	if code := emit(report, cf.format); code != 0 {
		return code
	}
	if report.Conforms {
		return 0
	}
	return 1
}

func runCheck(args []string) int {
	fs := flag.NewFlagSet("check", flag.ExitOnError)
	sf := addSchemaFlags(fs)
	cf := addConnFlags(fs)
	query := fs.String("query", "", "the write query to gate")
	fs.Parse(args)

	if *query == "" {
		return fail(fmt.Errorf("no write query given (use -query)"))
	}

	plan, fm, err := loadPlan(sf)
	if err != nil {
		return fail(err)
	}
	if fm.Subgraph == "" {
		return fail(fmt.Errorf("%s: schema declares no @subgraph boundary", sf.schema))
	}
	backend, err := GetBackend(sf.dialect)
	if err != nil {
		return fail(err)
	}

	ctx := context.Background()
	ep, err := GetBoltEndpoint(ctx, cf.uri, cf.user, cf.password, pickDatabase(cf, fm), cf.debug)
	if err != nil {
		return fail(err)
	}
	defer ep.Close(ctx)

	runner := GetRunner(plan, backend, ep, cf.uri, cf.debug)
	report, err := runner.CheckQuery(ctx, *query, fm.Subgraph)
	if err != nil {
		return fail(err)
	}

	if code := emit(report, cf.format); code != 0 {
		return code
	}
	if report.Action == ActionCommitted {
		return 0
	}
	return 1
}

func pickDatabase(cf *connFlags, fm *Frontmatter) string {
	if cf.database != "" {
		return cf.database
	}
	return fm.Database
}

func emit(report *ValidationReport, format string) int {
	switch format {
	case "table":
		fmt.Print(report.Table())
	case "json":
		out, err := report.JSON()
		if err != nil {
			return fail(err)
		}
		fmt.Println(out)
	case "quiet":
	default:
		return fail(fmt.Errorf("unknown format %q", format))
	}
	return 0
}

func fail(err error) int {
	fmt.Fprintln(os.Stderr, color.RedString("graphlint: %v", err))
	return 2
}
