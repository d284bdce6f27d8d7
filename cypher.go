package main

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrUnsupported marks a check the selected dialect cannot express. Such
// checks are omitted from execution and recorded on the report.
var ErrUnsupported = errors.New("check not expressible in this dialect")

// CompiledQuery is one executable query. NoOp queries (vacuously true
// checks) are reported as passing without execution. Scoped queries expect
// a $scope list of element ids bound at execution time.
type CompiledQuery struct {
	Text   string
	NoOp   bool
	Scoped bool
}

// Backend compiles checks into a concrete query dialect.
type Backend interface {
	Name() string
	Compile(c Check, scoped bool) (CompiledQuery, error)
	// CountNodes and CountProperty produce the pre-flight queries used for
	// vacuous-check detection.
	CountNodes(label string, scoped bool) CompiledQuery
	CountProperty(label, property string, scoped bool) CompiledQuery
}

func GetBackend(name string) (Backend, error) {
	switch name {
	case "cypher", "neo4j":
		return CypherBackend{}, nil
	case "gql":
		return GQLBackend{}, nil
	}
	return nil, fmt.Errorf("unknown dialect %q (want cypher or gql)", name)
}

// dialect captures the syntactic deltas between Cypher and GQL. Everything
// else about query shape is shared.
type dialect struct {
	name      string
	elementID string // elementId vs element_id
	valueType string // valueType vs value_type
	datetime  string // DATETIME vs TIMESTAMP
	trueLit   string
	falseLit  string
}

type CypherBackend struct{}

var cypherDialect = dialect{
	name:      "cypher",
	elementID: "elementId",
	valueType: "valueType",
	datetime:  "DATETIME",
	trueLit:   "true",
	falseLit:  "false",
}

func (CypherBackend) Name() string { return "cypher" }

func (CypherBackend) Compile(c Check, scoped bool) (CompiledQuery, error) {
	return compileCheck(cypherDialect, c, scoped)
}

func (CypherBackend) CountNodes(label string, scoped bool) CompiledQuery {
	return countNodes(cypherDialect, label, scoped)
}

func (CypherBackend) CountProperty(label, property string, scoped bool) CompiledQuery {
	return countProperty(cypherDialect, label, property, scoped)
}

// matchClause opens a query on nodes with the given label, restricted to
// the boundary id set when scoped.
func matchClause(d dialect, label string, scoped bool) string {
	if scoped {
		return fmt.Sprintf("MATCH (n:%s)\nWHERE %s(n) IN $scope\nWITH n\n", label, d.elementID)
	}
	return fmt.Sprintf("MATCH (n:%s)\n", label)
}

func returnClause(d dialect, extra, checkID string) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("RETURN %s(n) AS node_id,\n", d.elementID))
	sb.WriteString("       labels(n) AS labels,\n")
	if extra != "" {
		sb.WriteString("       " + extra + ",\n")
	}
	sb.WriteString(fmt.Sprintf("       '%s' AS check_id", checkID))
	return sb.String()
}

func compileCheck(d dialect, c Check, scoped bool) (CompiledQuery, error) {
	switch c.Kind {
	case PropertyExists:
		q := matchClause(d, c.TargetLabel, scoped) +
			fmt.Sprintf("WHERE n.%s IS NULL\n", c.Property) +
			returnClause(d, "", c.ID)
		return CompiledQuery{Text: q, Scoped: scoped}, nil

	case PropertyType:
		q := matchClause(d, c.TargetLabel, scoped) +
			fmt.Sprintf("WHERE n.%s IS NOT NULL AND %s\n", c.Property, typeCheck(d, c.Property, c.ExpectedType)) +
			returnClause(d, fmt.Sprintf("n.%s AS actual_value", c.Property), c.ID)
		return CompiledQuery{Text: q, Scoped: scoped}, nil

	case PropertyValueIn:
		values := listLiteral(d, c.Values)
		var where string
		if c.OnlyIfExists {
			where = fmt.Sprintf("WHERE n.%s IS NOT NULL AND NOT n.%s IN %s\n", c.Property, c.Property, values)
		} else {
			where = fmt.Sprintf("WHERE NOT n.%s IN %s\n", c.Property, values)
		}
		q := matchClause(d, c.TargetLabel, scoped) + where +
			returnClause(d, fmt.Sprintf("n.%s AS actual_value", c.Property), c.ID)
		return CompiledQuery{Text: q, Scoped: scoped}, nil

	case PropertyPattern:
		q := matchClause(d, c.TargetLabel, scoped) +
			fmt.Sprintf("WHERE n.%s IS NOT NULL AND NOT n.%s =~ '%s'\n",
				c.Property, c.Property, regexLiteral(c.Pattern, c.PatternFlags)) +
			returnClause(d, fmt.Sprintf("n.%s AS actual_value", c.Property), c.ID)
		return CompiledQuery{Text: q, Scoped: scoped}, nil

	case PropertyStrLen:
		var conds []string
		if c.MinLen != nil {
			conds = append(conds, fmt.Sprintf("size(n.%s) < %d", c.Property, *c.MinLen))
		}
		if c.MaxLen != nil {
			conds = append(conds, fmt.Sprintf("size(n.%s) > %d", c.Property, *c.MaxLen))
		}
		if len(conds) == 0 {
			return noOpQuery(c.ID, "no length bounds"), nil
		}
		extra := fmt.Sprintf("n.%s AS actual_value,\n       size(n.%s) AS actual_length", c.Property, c.Property)
		q := matchClause(d, c.TargetLabel, scoped) +
			fmt.Sprintf("WHERE n.%s IS NOT NULL AND (%s)\n", c.Property, strings.Join(conds, " OR ")) +
			returnClause(d, extra, c.ID)
		return CompiledQuery{Text: q, Scoped: scoped}, nil

	case PropertyRange:
		var conds []string
		if c.MinInc != nil {
			conds = append(conds, fmt.Sprintf("n.%s < %s", c.Property, floatLiteral(*c.MinInc)))
		}
		if c.MaxInc != nil {
			conds = append(conds, fmt.Sprintf("n.%s > %s", c.Property, floatLiteral(*c.MaxInc)))
		}
		if c.MinExc != nil {
			conds = append(conds, fmt.Sprintf("n.%s <= %s", c.Property, floatLiteral(*c.MinExc)))
		}
		if c.MaxExc != nil {
			conds = append(conds, fmt.Sprintf("n.%s >= %s", c.Property, floatLiteral(*c.MaxExc)))
		}
		if len(conds) == 0 {
			return noOpQuery(c.ID, "no range bounds"), nil
		}
		q := matchClause(d, c.TargetLabel, scoped) +
			fmt.Sprintf("WHERE n.%s IS NOT NULL AND (%s)\n", c.Property, strings.Join(conds, " OR ")) +
			returnClause(d, fmt.Sprintf("n.%s AS actual_value", c.Property), c.ID)
		return CompiledQuery{Text: q, Scoped: scoped}, nil

	case PropertyPair:
		cond, err := pairCondition(c.Property, c.CompareProp, c.CompareOp)
		if err != nil {
			return CompiledQuery{}, err
		}
		extra := fmt.Sprintf("n.%s AS value1,\n       n.%s AS value2", c.Property, c.CompareProp)
		q := matchClause(d, c.TargetLabel, scoped) +
			fmt.Sprintf("WHERE n.%s IS NOT NULL AND n.%s IS NOT NULL\n  AND %s\n",
				c.Property, c.CompareProp, cond) +
			returnClause(d, extra, c.ID)
		return CompiledQuery{Text: q, Scoped: scoped}, nil

	case RelCardinality, ShapeRefKind:
		return compileRelCardinality(d, c, scoped)

	case RelEndpoint:
		if c.Rel == nil {
			return CompiledQuery{}, fmt.Errorf("%w: endpoint check %s has no relationship", ErrUnsupported, c.ID)
		}
		// relationship-level scan, never scoped: $scope holds node ids
		q := fmt.Sprintf("MATCH (s)-[r:%s]->(t)\n"+
			"WHERE NOT (s:%s AND t:%s)\n"+
			"RETURN %s(r) AS rel_id,\n"+
			"       type(r) AS rel_type,\n"+
			"       labels(s) AS source_labels,\n"+
			"       labels(t) AS target_labels,\n"+
			"       '%s' AS check_id",
			c.Rel.Type, c.TargetLabel, c.Rel.TargetLabel, d.elementID, c.ID)
		return CompiledQuery{Text: q}, nil

	case QualifiedCardinality:
		if len(c.Sub) == 0 {
			return noOpQuery(c.ID, "no qualified filter"), nil
		}
		if c.Bounds.Unconstrained() {
			return noOpQuery(c.ID, "qualified cardinality with no bounds"), nil
		}
		cond, err := compileCondition(d, c.Sub[0])
		if err != nil {
			return CompiledQuery{}, err
		}
		var conds []string
		if c.Bounds.Min > 0 {
			conds = append(conds, fmt.Sprintf("qcount < %d", c.Bounds.Min))
		}
		if c.Bounds.Max != Unbounded {
			conds = append(conds, fmt.Sprintf("qcount > %d", c.Bounds.Max))
		}
		q := matchClause(d, c.TargetLabel, scoped) +
			fmt.Sprintf("WITH n, size([x IN CASE WHEN n.%s IS NOT NULL THEN\n"+
				"  CASE WHEN %s THEN [1] ELSE [] END\n"+
				"  ELSE [] END | x]) AS qcount\n", c.Property, cond) +
			fmt.Sprintf("WHERE %s\n", strings.Join(conds, " OR ")) +
			returnClause(d, "qcount AS qualified_count", c.ID)
		return CompiledQuery{Text: q, Scoped: scoped}, nil

	case UniqueLang:
		return noOpQuery(c.ID, "language tags do not exist on LPG properties"), nil

	case ClosedShape, UndeclaredProps:
		allowed := make([]any, len(c.Allowed))
		for i, p := range c.Allowed {
			allowed[i] = p
		}
		q := matchClause(d, c.TargetLabel, scoped) +
			fmt.Sprintf("WITH n, [k IN keys(n) WHERE NOT k IN %s] AS extra\n", listLiteral(d, allowed)) +
			"WHERE size(extra) > 0\n" +
			"UNWIND extra AS undeclared_key\n" +
			returnClause(d, "undeclared_key AS undeclared_property", c.ID)
		return CompiledQuery{Text: q, Scoped: scoped}, nil

	case LogicalNot, LogicalAnd, LogicalOr, LogicalXone:
		return compileLogical(d, c, scoped)

	case UndeclaredLabels:
		// catalog query, not scopable
		q := fmt.Sprintf("CALL db.labels() YIELD label\n"+
			"WHERE NOT label IN %s\n"+
			"WITH label\n"+
			"MATCH (n) WHERE label IN labels(n)\n"+
			"WITH n, label LIMIT 1\n"+
			"RETURN %s(n) AS node_id,\n"+
			"       [label] AS labels,\n"+
			"       label AS undeclared_label,\n"+
			"       '%s' AS check_id",
			listLiteral(d, c.Values), d.elementID, c.ID)
		return CompiledQuery{Text: q}, nil

	case UndeclaredRelTypes:
		allowed := make([]any, len(c.Allowed))
		for i, r := range c.Allowed {
			allowed[i] = r
		}
		q := fmt.Sprintf("CALL db.relationshipTypes() YIELD relationshipType\n"+
			"WHERE NOT relationshipType IN %s\n"+
			"WITH relationshipType\n"+
			"MATCH ()-[r]->() WHERE type(r) = relationshipType\n"+
			"WITH r, relationshipType LIMIT 1\n"+
			"RETURN %s(startNode(r)) AS node_id,\n"+
			"       labels(startNode(r)) AS labels,\n"+
			"       relationshipType AS undeclared_type,\n"+
			"       '%s' AS check_id",
			listLiteral(d, allowed), d.elementID, c.ID)
		return CompiledQuery{Text: q}, nil

	case EmptyShape:
		var where string
		if scoped {
			where = fmt.Sprintf("WHERE %s(n) IN $scope\n", d.elementID)
		}
		q := fmt.Sprintf("OPTIONAL MATCH (n:%s)\n", c.TargetLabel) + where +
			"WITH count(n) AS cnt\n" +
			"WHERE cnt = 0\n" +
			fmt.Sprintf("RETURN 'none' AS node_id,\n"+
				"       ['%s'] AS labels,\n"+
				"       0 AS instance_count,\n"+
				"       '%s' AS check_id", c.TargetLabel, c.ID)
		return CompiledQuery{Text: q, Scoped: scoped}, nil
	}

	return CompiledQuery{}, fmt.Errorf("%w: kind %s", ErrUnsupported, c.Kind)
}

func compileRelCardinality(d dialect, c Check, scoped bool) (CompiledQuery, error) {
	if c.Rel == nil {
		return CompiledQuery{}, fmt.Errorf("%w: cardinality check %s has no relationship", ErrUnsupported, c.ID)
	}
	if c.Bounds.Unconstrained() {
		return noOpQuery(c.ID, "no constraint (0..*)"), nil
	}

	var pattern string
	if c.Rel.Inverse {
		pattern = fmt.Sprintf("(n)<-[r:%s]-(t:%s)", c.Rel.Type, c.Rel.TargetLabel)
	} else {
		pattern = fmt.Sprintf("(n)-[r:%s]->(t:%s)", c.Rel.Type, c.Rel.TargetLabel)
	}

	var conds []string
	if c.Bounds.Min > 0 {
		conds = append(conds, fmt.Sprintf("rel_count < %d", c.Bounds.Min))
	}
	if c.Bounds.Max != Unbounded {
		conds = append(conds, fmt.Sprintf("rel_count > %d", c.Bounds.Max))
	}

	q := matchClause(d, c.TargetLabel, scoped) +
		fmt.Sprintf("OPTIONAL MATCH %s\n", pattern) +
		"WITH n, count(r) AS rel_count\n" +
		fmt.Sprintf("WHERE %s\n", strings.Join(conds, " OR ")) +
		returnClause(d, "rel_count AS actual_count", c.ID)
	return CompiledQuery{Text: q, Scoped: scoped}, nil
}

func compileLogical(d dialect, c Check, scoped bool) (CompiledQuery, error) {
	if len(c.Sub) == 0 {
		return noOpQuery(c.ID, "no inner constraints"), nil
	}

	conds := make([]string, 0, len(c.Sub))
	for _, sub := range c.Sub {
		cond, err := compileCondition(d, sub)
		if err != nil {
			return CompiledQuery{}, err
		}
		conds = append(conds, cond)
	}

	var q string
	switch c.Kind {
	case LogicalNot:
		// violating when the negated condition holds
		q = matchClause(d, c.TargetLabel, scoped) +
			fmt.Sprintf("WHERE %s\n", conds[0]) +
			returnClause(d, "", c.ID)

	case LogicalAnd:
		neg := make([]string, len(conds))
		for i, cond := range conds {
			neg[i] = fmt.Sprintf("NOT (%s)", cond)
		}
		q = matchClause(d, c.TargetLabel, scoped) +
			fmt.Sprintf("WHERE %s\n", strings.Join(neg, " OR ")) +
			returnClause(d, "", c.ID)

	case LogicalOr:
		neg := make([]string, len(conds))
		for i, cond := range conds {
			neg[i] = fmt.Sprintf("NOT (%s)", cond)
		}
		q = matchClause(d, c.TargetLabel, scoped) +
			fmt.Sprintf("WHERE %s\n", strings.Join(neg, " AND ")) +
			returnClause(d, "", c.ID)

	case LogicalXone:
		cases := make([]string, len(conds))
		for i, cond := range conds {
			cases[i] = fmt.Sprintf("CASE WHEN %s THEN 1 ELSE 0 END", cond)
		}
		q = matchClause(d, c.TargetLabel, scoped) +
			fmt.Sprintf("WITH n, (%s) AS satisfied_count\n", strings.Join(cases, " + ")) +
			"WHERE satisfied_count <> 1\n" +
			returnClause(d, "satisfied_count", c.ID)
	}

	return CompiledQuery{Text: q, Scoped: scoped}, nil
}

// compileCondition renders a check as a WHERE-clause fragment stating the
// constraint is SATISFIED. Only property-level kinds fit in a fragment;
// anything else cannot nest inside a logical combinator.
func compileCondition(d dialect, c Check) (string, error) {
	switch c.Kind {
	case PropertyExists:
		return fmt.Sprintf("n.%s IS NOT NULL", c.Property), nil
	case PropertyType:
		return fmt.Sprintf("n.%s IS NOT NULL AND NOT (%s)",
			c.Property, typeCheck(d, c.Property, c.ExpectedType)), nil
	case PropertyValueIn:
		return fmt.Sprintf("n.%s IN %s", c.Property, listLiteral(d, c.Values)), nil
	case PropertyPattern:
		return fmt.Sprintf("n.%s =~ '%s'", c.Property, regexLiteral(c.Pattern, c.PatternFlags)), nil
	case PropertyRange:
		var conds []string
		if c.MinInc != nil {
			conds = append(conds, fmt.Sprintf("n.%s >= %s", c.Property, floatLiteral(*c.MinInc)))
		}
		if c.MaxInc != nil {
			conds = append(conds, fmt.Sprintf("n.%s <= %s", c.Property, floatLiteral(*c.MaxInc)))
		}
		if c.MinExc != nil {
			conds = append(conds, fmt.Sprintf("n.%s > %s", c.Property, floatLiteral(*c.MinExc)))
		}
		if c.MaxExc != nil {
			conds = append(conds, fmt.Sprintf("n.%s < %s", c.Property, floatLiteral(*c.MaxExc)))
		}
		if len(conds) == 0 {
			return d.trueLit, nil
		}
		return strings.Join(conds, " AND "), nil
	}
	return "", fmt.Errorf("%w: %s cannot nest inside a logical constraint", ErrUnsupported, c.Kind)
}

func countNodes(d dialect, label string, scoped bool) CompiledQuery {
	q := matchClause(d, label, scoped) + "RETURN count(n) AS cnt"
	return CompiledQuery{Text: q, Scoped: scoped}
}

func countProperty(d dialect, label, property string, scoped bool) CompiledQuery {
	q := matchClause(d, label, scoped) +
		fmt.Sprintf("WHERE n.%s IS NOT NULL\n", property) +
		"RETURN count(n) AS cnt"
	return CompiledQuery{Text: q, Scoped: scoped}
}

func noOpQuery(checkID, reason string) CompiledQuery {
	return CompiledQuery{
		Text: fmt.Sprintf("// Check %s: %s\n// This check always passes; skipped", checkID, reason),
		NoOp: true,
	}
}

func typeCheck(d dialect, prop, expected string) string {
	typeName := map[string]string{
		"string":   "STRING",
		"integer":  "INTEGER",
		"float":    "FLOAT",
		"boolean":  "BOOLEAN",
		"date":     "DATE",
		"datetime": d.datetime,
	}
	t, ok := typeName[expected]
	if !ok {
		t = strings.ToUpper(expected)
	}
	return fmt.Sprintf("NOT %s(n.%s) STARTS WITH '%s'", d.valueType, prop, t)
}

func regexLiteral(pattern, flags string) string {
	escaped := strings.ReplaceAll(pattern, "'", "\\'")
	if strings.Contains(flags, "i") {
		return "(?i)" + escaped
	}
	return escaped
}

func pairCondition(prop, compare, op string) (string, error) {
	switch op {
	case "equals":
		return fmt.Sprintf("n.%s <> n.%s", prop, compare), nil
	case "disjoint":
		return fmt.Sprintf("n.%s = n.%s", prop, compare), nil
	case "lessThan":
		return fmt.Sprintf("NOT (n.%s < n.%s)", prop, compare), nil
	case "lessThanOrEquals":
		return fmt.Sprintf("NOT (n.%s <= n.%s)", prop, compare), nil
	}
	return "", fmt.Errorf("%w: unknown pair comparison %q", ErrUnsupported, op)
}

func floatLiteral(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func listLiteral(d dialect, values []any) string {
	parts := make([]string, 0, len(values))
	for _, v := range values {
		switch val := v.(type) {
		case string:
			parts = append(parts, "'"+strings.ReplaceAll(val, "'", "\\'")+"'")
		case bool:
			if val {
				parts = append(parts, d.trueLit)
			} else {
				parts = append(parts, d.falseLit)
			}
		case int:
			parts = append(parts, strconv.Itoa(val))
		case int64:
			parts = append(parts, strconv.FormatInt(val, 10))
		case float64:
			parts = append(parts, floatLiteral(val))
		default:
			parts = append(parts, fmt.Sprint(val))
		}
	}
	return "[" + strings.Join(parts, ", ") + "]"
}
