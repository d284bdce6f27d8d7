package main

import (
	"fmt"
	"sort"
	"strings"
)

// Relationship names the LPG side of a relationship constraint.
type Relationship struct {
	Type        string `json:"type"`
	Inverse     bool   `json:"inverse,omitempty"`
	TargetLabel string `json:"target_label"`
}

// Check is one executable validation unit. All names are already mapped to
// LPG labels, property keys and relationship types; the dialect compilers
// read nothing but this struct.
type Check struct {
	ID          string    `json:"id"`
	Kind        CheckKind `json:"-"`
	Shape       string    `json:"shape,omitempty"`
	TargetLabel string    `json:"target_label"`
	Severity    Severity  `json:"severity"`
	Message     string    `json:"message"`

	Property     string   `json:"property,omitempty"`
	ExpectedType string   `json:"expected_type,omitempty"`
	Values       []any    `json:"allowed_values,omitempty"`
	OnlyIfExists bool     `json:"only_if_exists,omitempty"`
	Pattern      string   `json:"pattern,omitempty"`
	PatternFlags string   `json:"pattern_flags,omitempty"`
	MinLen       *int     `json:"min_length,omitempty"`
	MaxLen       *int     `json:"max_length,omitempty"`
	MinInc       *float64 `json:"min_inclusive,omitempty"`
	MaxInc       *float64 `json:"max_inclusive,omitempty"`
	MinExc       *float64 `json:"min_exclusive,omitempty"`
	MaxExc       *float64 `json:"max_exclusive,omitempty"`
	CompareProp  string   `json:"compare_property,omitempty"`
	CompareOp    string   `json:"comparison_type,omitempty"`

	Rel    *Relationship `json:"relationship,omitempty"`
	Bounds Bounds        `json:"-"`

	Allowed []string `json:"allowed_names,omitempty"`

	Sub []Check `json:"sub_checks,omitempty"`
}

// ValidationPlan is the compiled IR: every check in schema source order,
// plus the declared shapes and labels the runner needs for vacuous
// detection and strict synthesis already applied.
type ValidationPlan struct {
	Source string
	Shapes []string // declared class IRIs, source order
	Labels []string // mapped labels, same order
	Checks []Check
}

// BuildPlan binds LPG names to the adapter output and, in strict mode,
// appends the closed-world coverage checks.
func BuildPlan(sc *SchemaConstraints, m *Mapping, strict bool) (*ValidationPlan, error) {
	plan := &ValidationPlan{Source: sc.Source}

	for _, decl := range sc.Shapes {
		label := m.LabelFor(decl.IRI)
		plan.Shapes = append(plan.Shapes, decl.IRI)
		plan.Labels = append(plan.Labels, label)

		for _, c := range decl.Constraints {
			check, err := buildCheck(c, decl.Shape, label, m, "")
			if err != nil {
				return nil, err
			}
			plan.Checks = append(plan.Checks, check)
		}
	}

	if strict {
		plan.Checks = append(plan.Checks, strictChecks(plan.Labels, plan.Checks)...)
	}

	return plan, nil
}

func buildCheck(c ShapeConstraint, shape, label string, m *Mapping, idInfix string) (Check, error) {
	check := Check{
		Kind:        c.Kind,
		Shape:       shape,
		TargetLabel: label,
		Severity:    c.Severity,
		Bounds:      c.Bounds,
	}
	if check.Severity == "" {
		check.Severity = SeverityViolation
	}
	lower := strings.ToLower(label)

	prop := ""
	if c.Path != "" {
		prop = m.PropertyFor(c.Path)
	}

	switch c.Kind {
	case PropertyExists:
		check.ID = fmt.Sprintf("%s-%s-%sexists", lower, prop, idInfix)
		check.Property = prop
		check.Message = fmt.Sprintf("%s node missing required '%s' property", label, prop)

	case PropertyType:
		t := lpgType(c.Datatype)
		check.ID = fmt.Sprintf("%s-%s-%stype", lower, prop, idInfix)
		check.Property = prop
		check.ExpectedType = t
		check.OnlyIfExists = c.Bounds.Optional()
		check.Message = fmt.Sprintf("%s.%s must be of type %s", label, prop, t)

	case PropertyValueIn:
		check.Property = prop
		check.Values = c.Values
		check.OnlyIfExists = c.Bounds.Optional()
		if c.HasValue {
			check.ID = fmt.Sprintf("%s-%s-%shasvalue", lower, prop, idInfix)
			check.Message = fmt.Sprintf("%s.%s must have value %v", label, prop, c.Values[0])
		} else {
			check.ID = fmt.Sprintf("%s-%s-%svalues", lower, prop, idInfix)
			check.Message = fmt.Sprintf("%s.%s must be one of: %v", label, prop, c.Values)
		}

	case PropertyPattern:
		check.ID = fmt.Sprintf("%s-%s-%spattern", lower, prop, idInfix)
		check.Property = prop
		check.Pattern = c.Pattern
		check.PatternFlags = c.PatternFlags
		check.OnlyIfExists = c.Bounds.Optional()
		check.Message = fmt.Sprintf("%s.%s must match pattern '%s'", label, prop, c.Pattern)

	case PropertyStrLen:
		check.ID = fmt.Sprintf("%s-%s-%sstrlen", lower, prop, idInfix)
		check.Property = prop
		check.MinLen = c.MinLen
		check.MaxLen = c.MaxLen
		check.OnlyIfExists = c.Bounds.Optional()
		var parts []string
		if c.MinLen != nil {
			parts = append(parts, fmt.Sprintf("at least %d", *c.MinLen))
		}
		if c.MaxLen != nil {
			parts = append(parts, fmt.Sprintf("at most %d", *c.MaxLen))
		}
		check.Message = fmt.Sprintf("%s.%s length must be %s characters", label, prop, strings.Join(parts, " and "))

	case PropertyRange:
		check.ID = fmt.Sprintf("%s-%s-%srange", lower, prop, idInfix)
		check.Property = prop
		check.MinInc, check.MaxInc = c.MinInc, c.MaxInc
		check.MinExc, check.MaxExc = c.MinExc, c.MaxExc
		check.OnlyIfExists = c.Bounds.Optional()
		var parts []string
		if c.MinInc != nil {
			parts = append(parts, fmt.Sprintf(">= %v", *c.MinInc))
		}
		if c.MaxInc != nil {
			parts = append(parts, fmt.Sprintf("<= %v", *c.MaxInc))
		}
		if c.MinExc != nil {
			parts = append(parts, fmt.Sprintf("> %v", *c.MinExc))
		}
		if c.MaxExc != nil {
			parts = append(parts, fmt.Sprintf("< %v", *c.MaxExc))
		}
		check.Message = fmt.Sprintf("%s.%s must be %s", label, prop, strings.Join(parts, ", "))

	case PropertyPair:
		compare := m.PropertyFor(c.Compare)
		check.ID = fmt.Sprintf("%s-%s-%s%s", lower, prop, idInfix, strings.ToLower(c.CompareOp))
		check.Property = prop
		check.CompareProp = compare
		check.CompareOp = c.CompareOp
		check.OnlyIfExists = c.Bounds.Optional()
		check.Message = fmt.Sprintf("%s.%s must be %s %s.%s", label, prop, c.CompareOp, label, compare)

	case RelCardinality, ShapeRefKind:
		relType := m.RelationshipFor(c.Path)
		target := m.LabelFor(c.Target)
		if c.Target == "" {
			target = "Unknown"
		}
		check.ID = fmt.Sprintf("%s-%s-%scardinality", lower, strings.ToLower(relType), idInfix)
		check.Rel = &Relationship{Type: relType, Inverse: c.Inverse, TargetLabel: target}
		check.Message = relCardinalityMessage(label, relType, target, c.Bounds)

	case QualifiedCardinality:
		check.ID = fmt.Sprintf("%s-%s-%squalified", lower, prop, idInfix)
		check.Property = prop
		for _, child := range c.Children {
			sub, err := buildCheck(child, shape, label, m, "qfilter-")
			if err != nil {
				return Check{}, err
			}
			check.Sub = append(check.Sub, sub)
		}
		var parts []string
		if c.Bounds.Min > 0 {
			parts = append(parts, fmt.Sprintf("at least %d", c.Bounds.Min))
		}
		if c.Bounds.Max != Unbounded {
			parts = append(parts, fmt.Sprintf("at most %d", c.Bounds.Max))
		}
		check.Message = fmt.Sprintf("%s.%s must have %s values matching qualified shape",
			label, prop, strings.Join(parts, " and "))

	case UniqueLang:
		check.ID = fmt.Sprintf("%s-%s-%suniquelang", lower, prop, idInfix)
		check.Property = prop
		check.Message = fmt.Sprintf("sh:uniqueLang on %s.%s: LPG properties have no language tags; constraint acknowledged but not enforced", label, prop)

	case ClosedShape:
		allowed := make([]string, 0, len(c.Allowed))
		for _, iri := range c.Allowed {
			allowed = append(allowed, m.PropertyFor(iri))
		}
		check.ID = fmt.Sprintf("%s-closed-undeclared-props", lower)
		check.Allowed = allowed
		check.Message = fmt.Sprintf("%s is a closed shape; only declared properties are allowed: %v", label, allowed)

	case LogicalNot, LogicalAnd, LogicalOr, LogicalXone:
		op := map[CheckKind]string{
			LogicalNot: "not", LogicalAnd: "and", LogicalOr: "or", LogicalXone: "xone",
		}[c.Kind]
		check.ID = fmt.Sprintf("%s-logical-%s", lower, op)
		for _, child := range c.Children {
			sub, err := buildCheck(child, shape, label, m, "inner-")
			if err != nil {
				return Check{}, err
			}
			check.Sub = append(check.Sub, sub)
		}
		if c.Kind == LogicalNot && len(check.Sub) > 0 {
			check.Message = fmt.Sprintf("%s must NOT satisfy: %s", label, check.Sub[0].Message)
		} else {
			check.Message = fmt.Sprintf("%s must satisfy %s of %d conditions",
				label, strings.ToUpper(op), len(check.Sub))
		}

	default:
		return Check{}, fmt.Errorf("cannot build check for constraint kind %s", c.Kind)
	}

	return check, nil
}

func relCardinalityMessage(source, relType, target string, b Bounds) string {
	switch {
	case b.Min == 0 && b.Max == 1:
		return fmt.Sprintf("%s may have at most one %s relationship to %s", source, relType, target)
	case b.Min == 1 && b.Max == 1:
		return fmt.Sprintf("%s must have exactly one %s relationship to %s", source, relType, target)
	case b.Min == 1 && b.Max == Unbounded:
		return fmt.Sprintf("%s must have at least one %s relationship to %s", source, relType, target)
	case b.Min == 0 && b.Max == Unbounded:
		return fmt.Sprintf("%s may have zero or more %s relationships to %s", source, relType, target)
	default:
		maxStr := "*"
		if b.Max != Unbounded {
			maxStr = fmt.Sprint(b.Max)
		}
		return fmt.Sprintf("%s must have %d..%s %s relationships to %s", source, b.Min, maxStr, relType, target)
	}
}

// strictChecks synthesizes the closed-world coverage checks from the
// already-built plan: undeclared labels, undeclared relationship types,
// undeclared properties per label, and empty declared labels. All are
// warnings; they never block a commit.
func strictChecks(declaredLabels []string, existing []Check) []Check {
	var out []Check

	relSet := make(map[string]bool)
	propsByLabel := make(map[string][]string)
	for _, c := range existing {
		if c.Rel != nil {
			relSet[c.Rel.Type] = true
		}
		if c.Property != "" && c.TargetLabel != "" {
			found := false
			for _, p := range propsByLabel[c.TargetLabel] {
				if p == c.Property {
					found = true
					break
				}
			}
			if !found {
				propsByLabel[c.TargetLabel] = append(propsByLabel[c.TargetLabel], c.Property)
			}
		}
	}
	declaredRels := make([]string, 0, len(relSet))
	for r := range relSet {
		declaredRels = append(declaredRels, r)
	}
	sort.Strings(declaredRels)

	labelsAny := make([]any, len(declaredLabels))
	for i, l := range declaredLabels {
		labelsAny[i] = l
	}

	out = append(out, Check{
		ID:          "strict-undeclared-labels",
		Kind:        UndeclaredLabels,
		TargetLabel: "*",
		Severity:    SeverityWarning,
		Message:     fmt.Sprintf("Database contains node labels not declared in schema. Declared: %v", declaredLabels),
		Values:      labelsAny,
	})

	out = append(out, Check{
		ID:          "strict-undeclared-rel-types",
		Kind:        UndeclaredRelTypes,
		TargetLabel: "*",
		Severity:    SeverityWarning,
		Message:     fmt.Sprintf("Database contains relationship types not declared in schema. Declared: %v", declaredRels),
		Allowed:     declaredRels,
	})

	for _, label := range declaredLabels {
		props := propsByLabel[label]
		out = append(out, Check{
			ID:          fmt.Sprintf("strict-%s-undeclared-props", strings.ToLower(label)),
			Kind:        UndeclaredProps,
			TargetLabel: label,
			Severity:    SeverityWarning,
			Message:     fmt.Sprintf("%s nodes have properties not declared in schema. Declared: %v", label, props),
			Allowed:     props,
		})
	}

	// Endpoint integrity per declared relationship: both ends must carry the
	// labels the schema declares for that relationship type.
	seenEndpoints := make(map[string]bool)
	for _, c := range existing {
		if c.Rel == nil || c.Rel.Inverse || c.Rel.TargetLabel == "Unknown" {
			continue
		}
		id := fmt.Sprintf("strict-%s-%s-endpoint",
			strings.ToLower(c.TargetLabel), strings.ToLower(c.Rel.Type))
		if seenEndpoints[id] {
			continue
		}
		seenEndpoints[id] = true
		out = append(out, Check{
			ID:          id,
			Kind:        RelEndpoint,
			TargetLabel: c.TargetLabel,
			Severity:    SeverityWarning,
			Message: fmt.Sprintf("%s relationships must connect %s nodes to %s nodes",
				c.Rel.Type, c.TargetLabel, c.Rel.TargetLabel),
			Rel: c.Rel,
		})
	}

	for _, label := range declaredLabels {
		out = append(out, Check{
			ID:          fmt.Sprintf("strict-%s-empty", strings.ToLower(label)),
			Kind:        EmptyShape,
			TargetLabel: label,
			Severity:    SeverityWarning,
			Message:     fmt.Sprintf("Schema declares %s but no %s nodes exist in the database", label, label),
		})
	}

	return out
}
