package models

import (
	"sort"
	"time"
)

// ValidationStage names one validator gate. Gates always run in declaration order.
type ValidationStage string

const (
	StageCompleteness ValidationStage = "COMPLETENESS"
	StageQuality      ValidationStage = "QUALITY"
	StageFreshness    ValidationStage = "FRESHNESS"
	StageSchema       ValidationStage = "SCHEMA"
)

// ValidationStages lists the gates in execution order.
var ValidationStages = []ValidationStage{StageCompleteness, StageQuality, StageFreshness, StageSchema}

// Severity of a validation issue.
type Severity string

const (
	SeverityWarning Severity = "WARNING"
	SeverityError   Severity = "ERROR"
)

// Verdict is the aggregate outcome of a validation report.
type Verdict string

const (
	VerdictPass             Verdict = "PASS"
	VerdictPassWithWarnings Verdict = "PASS_WITH_WARNINGS"
	VerdictFail             Verdict = "FAIL"
)

// ValidationIssue is one finding produced by a gate.
type ValidationIssue struct {
	Stage        ValidationStage `json:"stage"`
	Severity     Severity        `json:"severity"`
	Message      string          `json:"message"`
	AffectedRows []time.Time     `json:"affected_rows,omitempty"`
}

// ValidationReport is the ordered list of issues with the derived verdict.
type ValidationReport struct {
	SeriesID string            `json:"series_id"`
	Issues   []ValidationIssue `json:"issues"`
	Verdict  Verdict           `json:"verdict"`
}

// NewValidationReport builds a report and computes its verdict.
func NewValidationReport(seriesID string, issues []ValidationIssue) *ValidationReport {
	for i := range issues {
		rows := issues[i].AffectedRows
		sort.Slice(rows, func(a, b int) bool { return rows[a].Before(rows[b]) })
	}
	return &ValidationReport{SeriesID: seriesID, Issues: issues, Verdict: ComputeVerdict(issues)}
}

// ComputeVerdict returns FAIL iff any ERROR, PASS_WITH_WARNINGS iff any WARNING, else PASS.
func ComputeVerdict(issues []ValidationIssue) Verdict {
	v := VerdictPass
	for _, is := range issues {
		switch is.Severity {
		case SeverityError:
			return VerdictFail
		case SeverityWarning:
			v = VerdictPassWithWarnings
		}
	}
	return v
}

// Errors returns issues of severity ERROR.
func (r *ValidationReport) Errors() []ValidationIssue {
	return r.filter(SeverityError)
}

// Warnings returns issues of severity WARNING.
func (r *ValidationReport) Warnings() []ValidationIssue {
	return r.filter(SeverityWarning)
}

func (r *ValidationReport) filter(sev Severity) []ValidationIssue {
	var out []ValidationIssue
	for _, is := range r.Issues {
		if is.Severity == sev {
			out = append(out, is)
		}
	}
	return out
}

// Summary condenses the report for the catalog.
func (r *ValidationReport) Summary() IssuesSummary {
	s := IssuesSummary{}
	for _, is := range r.Issues {
		switch is.Severity {
		case SeverityError:
			s.Errors++
		case SeverityWarning:
			s.Warnings++
		}
		s.Issues = append(s.Issues, IssueDigest{
			Stage:        is.Stage,
			Severity:     is.Severity,
			Message:      is.Message,
			AffectedRows: len(is.AffectedRows),
		})
	}
	return s
}

// ValidationPolicy carries the thresholds the gates apply to one series.
type ValidationPolicy struct {
	// MaxMissingFraction above which missing expected dates are an ERROR.
	MaxMissingFraction float64
	// StaleRunLength is the longest tolerated run of identical consecutive values.
	StaleRunLength int
	// FreshnessErrorAfter and FreshnessWarnAfter are staleness windows in days.
	FreshnessErrorAfter int
	FreshnessWarnAfter  int
	// OutlierZ is the |z| threshold on changes; 0 disables the check.
	OutlierZ float64
	LevelOnly bool
	Holidays  []time.Time
}
