package main

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/fatih/color"
)

const (
	ActionCommitted  = "committed"
	ActionRolledBack = "rolled_back"
)

// ViolatingNode is one row returned by a violation query. Extra carries
// the per-kind columns (actual_value, actual_count, undeclared_property).
type ViolatingNode struct {
	NodeID string
	Labels []string
	Extra  map[string]any
}

func (v ViolatingNode) MarshalJSON() ([]byte, error) {
	m := make(map[string]any, len(v.Extra)+2)
	m["node_id"] = v.NodeID
	m["labels"] = v.Labels
	for k, val := range v.Extra {
		m[k] = val
	}
	return json.Marshal(m)
}

// CheckResult records the outcome of exactly one executable check.
type CheckResult struct {
	CheckID        string          `json:"check_id"`
	CheckType      string          `json:"check_type"`
	Severity       Severity        `json:"severity"`
	Message        string          `json:"message"`
	Shape          string          `json:"shape,omitempty"`
	TargetLabel    string          `json:"target_label"`
	Passed         bool            `json:"passed"`
	Vacuous        bool            `json:"vacuous"`
	ViolationCount int             `json:"violation_count"`
	Violations     []ViolatingNode `json:"violating_nodes"`
	Query          string          `json:"query"`
}

// OmittedCheck records a check the selected dialect could not express.
type OmittedCheck struct {
	CheckID string `json:"check_id"`
	Reason  string `json:"reason"`
}

type Summary struct {
	Violations int `json:"violations"`
	Warnings   int `json:"warnings"`
	Info       int `json:"info"`
	Passed     int `json:"checks_passed"`
	Vacuous    int `json:"checks_vacuous"`
	Total      int `json:"checks_total"`
}

// ValidationReport is the machine-facing output. Action and Query are set
// only in transactional mode.
type ValidationReport struct {
	Action      string         `json:"action,omitempty"`
	Query       string         `json:"query,omitempty"`
	Conforms    bool           `json:"conforms"`
	GeneratedAt string         `json:"generated_at"`
	Source      string         `json:"schema_source"`
	Backend     string         `json:"backend"`
	Target      string         `json:"target,omitempty"`
	Summary     Summary        `json:"summary"`
	Results     []CheckResult  `json:"results"`
	Omitted     []OmittedCheck `json:"omitted,omitempty"`
}

func (r *ValidationReport) JSON() (string, error) {
	out, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// Table renders the human-facing report.
func (r *ValidationReport) Table() string {
	var sb strings.Builder

	sb.WriteString("graphlint validation report\n")
	sb.WriteString(fmt.Sprintf("  schema: %s\n", r.Source))
	sb.WriteString(fmt.Sprintf("  backend: %s\n", r.Backend))
	if r.Target != "" {
		sb.WriteString(fmt.Sprintf("  target: %s\n", r.Target))
	}
	sb.WriteString(fmt.Sprintf("  generated: %s\n\n", r.GeneratedAt))

	if r.Conforms {
		sb.WriteString("  " + color.GreenString("✓ CONFORMS") + "\n")
	} else {
		sb.WriteString("  " + color.RedString("✗ DOES NOT CONFORM") + "\n")
	}

	s := r.Summary
	vacuousStr := ""
	if s.Vacuous > 0 {
		vacuousStr = fmt.Sprintf("  %d skipped (no data)", s.Vacuous)
	}
	sb.WriteString(fmt.Sprintf("  %d/%d checks passed  |  %d violations  %d warnings  %d info%s\n",
		s.Passed, s.Total, s.Violations, s.Warnings, s.Info, vacuousStr))

	if r.Action != "" {
		switch r.Action {
		case ActionCommitted:
			sb.WriteString("  write " + color.GreenString("COMMITTED") + "\n")
		case ActionRolledBack:
			sb.WriteString("  write " + color.RedString("ROLLED BACK") + "\n")
		}
	}
	sb.WriteString("\n")

	var failed []CheckResult
	for _, res := range r.Results {
		if !res.Passed && !res.Vacuous {
			failed = append(failed, res)
		}
	}

	if len(failed) > 0 {
		sb.WriteString("  VIOLATIONS:\n\n")
		for _, res := range failed {
			icon := "?"
			switch res.Severity {
			case SeverityViolation:
				icon = color.RedString("✗")
			case SeverityWarning:
				icon = color.YellowString("⚠")
			case SeverityInfo:
				icon = color.CyanString("ℹ")
			}
			sb.WriteString(fmt.Sprintf("  %s [%s] %s\n", icon, strings.ToUpper(string(res.Severity)), res.CheckID))
			sb.WriteString(fmt.Sprintf("    %s\n", res.Message))
			sb.WriteString(fmt.Sprintf("    %d node(s) affected\n", res.ViolationCount))

			tw := tabwriter.NewWriter(&sb, 0, 4, 2, ' ', 0)
			for i, vn := range res.Violations {
				if i == 5 {
					break
				}
				extra := ""
				if len(vn.Extra) > 0 {
					keys := make([]string, 0, len(vn.Extra))
					for k := range vn.Extra {
						keys = append(keys, k)
					}
					sort.Strings(keys)
					parts := make([]string, 0, len(keys))
					for _, k := range keys {
						parts = append(parts, fmt.Sprintf("%s=%v", k, vn.Extra[k]))
					}
					extra = strings.Join(parts, "  ")
				}
				fmt.Fprintf(tw, "      → %s\t%v\t%s\n", vn.NodeID, vn.Labels, extra)
			}
			tw.Flush()
			if res.ViolationCount > 5 {
				sb.WriteString(fmt.Sprintf("      ... and %d more\n", res.ViolationCount-5))
			}
			sb.WriteString("\n")
		}
	}

	if len(r.Omitted) > 0 {
		sb.WriteString("  OMITTED (dialect cannot express):\n")
		for _, o := range r.Omitted {
			sb.WriteString(fmt.Sprintf("    %s: %s\n", o.CheckID, o.Reason))
		}
		sb.WriteString("\n")
	}

	return sb.String()
}
