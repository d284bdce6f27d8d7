package main

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// Runner executes a validation plan: as compiled queries only (dry run),
// read-only against the whole database (audit), or as a transactional gate
// around a proposed write (check).
type Runner struct {
	plan    *ValidationPlan
	backend Backend
	ep      endpoint
	target  string
	debug   bool
}

func GetRunner(plan *ValidationPlan, backend Backend, ep endpoint, target string, debug bool) *Runner {
	return &Runner{plan: plan, backend: backend, ep: ep, target: target, debug: debug}
}

// DryRun compiles every check and renders the queries without executing.
func (r *Runner) DryRun() (string, error) {
	var sb strings.Builder
	for _, check := range r.plan.Checks {
		q, err := r.backend.Compile(check, false)
		if errors.Is(err, ErrUnsupported) {
			sb.WriteString(fmt.Sprintf("-- [OMITTED] %s\n-- %v\n\n", check.ID, err))
			continue
		}
		if err != nil {
			return "", err
		}
		sb.WriteString(fmt.Sprintf("-- [%s] %s\n", strings.ToUpper(string(check.Severity)), check.ID))
		sb.WriteString(fmt.Sprintf("-- %s\n", check.Message))
		sb.WriteString(q.Text)
		sb.WriteString("\n\n")
	}
	return sb.String(), nil
}

// Audit runs every check read-only against the full database. Query
// failures degrade to failed results; the audit itself keeps going.
func (r *Runner) Audit(ctx context.Context) (*ValidationReport, error) {
	return r.runChecks(ctx, r.ep, nil, false)
}

// CheckQuery applies a write inside an explicit transaction, validates the
// declared subgraph neighborhood, and commits only if the post-write state
// conforms. Exactly one commit or rollback happens per invocation; any
// error path rolls back before propagating.
func (r *Runner) CheckQuery(ctx context.Context, writeQuery, subgraphQuery string) (*ValidationReport, error) {
	if subgraphQuery == "" {
		return nil, errors.New("transactional check requires a @subgraph boundary query")
	}

	tx, err := r.ep.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}

	decided := false
	defer func() {
		if !decided {
			_ = tx.Rollback(ctx)
		}
	}()

	// The boundary is resolved before and after the write: nodes the write
	// creates inside the declared neighborhood must be validated too.
	before, err := r.resolveBoundary(ctx, tx, subgraphQuery)
	if err != nil {
		return nil, fmt.Errorf("resolve subgraph boundary: %w", err)
	}

	if _, err := tx.Query(ctx, writeQuery, nil); err != nil {
		return nil, fmt.Errorf("apply write: %w", err)
	}

	after, err := r.resolveBoundary(ctx, tx, subgraphQuery)
	if err != nil {
		return nil, fmt.Errorf("resolve subgraph boundary: %w", err)
	}

	scope := SortedUnion(before, after)

	report, err := r.runChecks(ctx, tx, scope, true)
	if err != nil {
		return nil, err
	}
	report.Query = writeQuery

	// decided flips only once the store confirmed; a failed commit still
	// falls through to the deferred rollback.
	if report.Conforms {
		if err := tx.Commit(ctx); err != nil {
			return nil, fmt.Errorf("commit: %w", err)
		}
		decided = true
		report.Action = ActionCommitted
	} else {
		if err := tx.Rollback(ctx); err != nil {
			return nil, fmt.Errorf("rollback: %w", err)
		}
		decided = true
		report.Action = ActionRolledBack
	}

	return report, nil
}

// resolveBoundary runs the subgraph query and collects the element ids of
// every node it returns.
func (r *Runner) resolveBoundary(ctx context.Context, q querier, subgraphQuery string) ([]string, error) {
	rows, err := q.Query(ctx, subgraphQuery, nil)
	if err != nil {
		return nil, err
	}

	idSet := make(map[string]bool)
	for _, row := range rows {
		for _, value := range row {
			switch v := value.(type) {
			case neo4j.Node:
				idSet[v.ElementId] = true
			case string:
				idSet[v] = true
			}
		}
	}

	ids := make([]string, 0, len(idSet))
	for id := range idSet {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

// scopable reports whether a check's query can be restricted to the
// boundary id set. Catalog scans and relationship-level scans have no
// node variable to bind $scope against.
func scopable(k CheckKind) bool {
	return k != UndeclaredLabels && k != UndeclaredRelTypes && k != RelEndpoint
}

// propertyVacuousKinds are the kinds whose pass is meaningless when no
// node in scope carries the property.
var propertyVacuousKinds = map[CheckKind]bool{
	PropertyType:    true,
	PropertyValueIn: true,
	PropertyPattern: true,
	PropertyStrLen:  true,
	PropertyRange:   true,
	PropertyPair:    true,
}

type labelProp struct {
	label string
	prop  string
}

// runChecks is the shared execution core. With a non-nil scope every
// node-targeted query is restricted to the boundary id set. When
// strictErrors is set a query failure aborts the run (the transactional
// caller rolls back); otherwise it degrades to a failed result.
func (r *Runner) runChecks(ctx context.Context, q querier, scope []string, strictErrors bool) (*ValidationReport, error) {
	scoped := scope != nil
	var params map[string]any
	if scoped {
		params = map[string]any{"scope": scope}
	}

	report := &ValidationReport{
		GeneratedAt: time.Now().UTC().Format(time.RFC3339),
		Source:      r.plan.Source,
		Backend:     r.backend.Name(),
		Target:      r.target,
	}

	type compiled struct {
		check Check
		query CompiledQuery
	}
	var queries []compiled
	for _, check := range r.plan.Checks {
		cq, err := r.backend.Compile(check, scoped && scopable(check.Kind))
		if errors.Is(err, ErrUnsupported) {
			report.Omitted = append(report.Omitted, OmittedCheck{CheckID: check.ID, Reason: err.Error()})
			continue
		}
		if err != nil {
			return nil, err
		}
		queries = append(queries, compiled{check: check, query: cq})
	}

	// Pre-flight: instance counts per declared label, then property
	// presence counts, to detect vacuous checks.
	emptyLabels := make(map[string]bool)
	for _, label := range r.plan.Labels {
		cq := r.backend.CountNodes(label, scoped)
		cnt, err := r.countQuery(ctx, q, cq, params)
		if err != nil {
			if strictErrors {
				return nil, fmt.Errorf("pre-flight count for %s: %w", label, err)
			}
			continue
		}
		if cnt == 0 {
			emptyLabels[label] = true
		}
	}

	emptyProps := make(map[labelProp]bool)
	seen := make(map[labelProp]bool)
	for _, c := range queries {
		if !propertyVacuousKinds[c.check.Kind] || c.check.Property == "" {
			continue
		}
		lp := labelProp{label: c.check.TargetLabel, prop: c.check.Property}
		if seen[lp] || emptyLabels[lp.label] {
			continue
		}
		seen[lp] = true
		cq := r.backend.CountProperty(lp.label, lp.prop, scoped)
		cnt, err := r.countQuery(ctx, q, cq, params)
		if err != nil {
			if strictErrors {
				return nil, fmt.Errorf("pre-flight count for %s.%s: %w", lp.label, lp.prop, err)
			}
			continue
		}
		if cnt == 0 {
			emptyProps[lp] = true
		}
	}

	for _, c := range queries {
		check, cq := c.check, c.query

		vacuous := (emptyLabels[check.TargetLabel] && check.Kind != EmptyShape) ||
			(propertyVacuousKinds[check.Kind] && check.Property != "" &&
				emptyProps[labelProp{label: check.TargetLabel, prop: check.Property}])

		result := CheckResult{
			CheckID:     check.ID,
			CheckType:   check.Kind.String(),
			Severity:    check.Severity,
			Message:     check.Message,
			Shape:       check.Shape,
			TargetLabel: check.TargetLabel,
			Query:       cq.Text,
		}

		if cq.NoOp {
			result.Passed = !vacuous
			result.Vacuous = vacuous
			if vacuous {
				report.Summary.Vacuous++
			} else {
				report.Summary.Passed++
			}
			report.Results = append(report.Results, result)
			continue
		}

		if vacuous {
			result.Vacuous = true
			report.Summary.Vacuous++
			report.Results = append(report.Results, result)
			continue
		}

		var rowParams map[string]any
		if cq.Scoped {
			rowParams = params
		}
		rows, err := q.Query(ctx, cq.Text, rowParams)
		if err != nil {
			if strictErrors {
				return nil, fmt.Errorf("check %s: %w", check.ID, err)
			}
			result.Message = fmt.Sprintf("Query execution failed: %v", err)
			report.Summary.Violations++
			report.Results = append(report.Results, result)
			continue
		}

		for _, row := range rows {
			result.Violations = append(result.Violations, violatingNode(row))
		}
		result.ViolationCount = len(result.Violations)
		result.Passed = result.ViolationCount == 0

		if result.Passed {
			report.Summary.Passed++
		} else {
			switch check.Severity {
			case SeverityWarning:
				report.Summary.Warnings++
			case SeverityInfo:
				report.Summary.Info++
			default:
				report.Summary.Violations++
			}
		}
		report.Results = append(report.Results, result)
	}

	report.Summary.Total = len(queries)
	report.Conforms = report.Summary.Violations == 0
	return report, nil
}

func (r *Runner) countQuery(ctx context.Context, q querier, cq CompiledQuery, params map[string]any) (int, error) {
	var p map[string]any
	if cq.Scoped {
		p = params
	}
	rows, err := q.Query(ctx, cq.Text, p)
	if err != nil {
		return 0, err
	}
	if len(rows) == 0 {
		return 0, nil
	}
	return toInt(rows[0]["cnt"]), nil
}

func violatingNode(row map[string]any) ViolatingNode {
	vn := ViolatingNode{Extra: make(map[string]any)}
	for k, v := range row {
		switch k {
		case "node_id":
			vn.NodeID = fmt.Sprint(v)
		case "labels":
			switch labels := v.(type) {
			case []string:
				vn.Labels = labels
			case []any:
				for _, l := range labels {
					vn.Labels = append(vn.Labels, fmt.Sprint(l))
				}
			}
		case "check_id":
			// already on the result
		default:
			vn.Extra[k] = v
		}
	}
	if vn.NodeID == "" {
		vn.NodeID = "unknown"
	}
	return vn
}

func toInt(v any) int {
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	}
	return 0
}
