package models

import (
	"strings"
	"time"
)

// PipelineStage is a state of the per-series ingestion state machine.
type PipelineStage string

const (
	StageFetching    PipelineStage = "FETCHING"
	StageNormalizing PipelineStage = "NORMALIZING"
	StageValidating  PipelineStage = "VALIDATING"
	StageStoring     PipelineStage = "STORING"
	StageCataloging  PipelineStage = "CATALOGING"
	StageDone        PipelineStage = "DONE"
	StageFailed      PipelineStage = "FAILED"
)

// ArtifactKind selects the artifact flavour written by the store.
type ArtifactKind string

const (
	ArtifactRaw          ArtifactKind = "raw"
	ArtifactStandardized ArtifactKind = "standardized"
)

// ArtifactPaths holds the store-relative paths of written artifacts. Empty means not written.
type ArtifactPaths struct {
	Raw          string `json:"raw"`
	Standardized string `json:"standardized"`
}

// IssueDigest is the catalog form of a ValidationIssue.
type IssueDigest struct {
	Stage        ValidationStage `json:"stage"`
	Severity     Severity        `json:"severity"`
	Message      string          `json:"message"`
	AffectedRows int             `json:"affected_rows"`
}

// IssuesSummary counts issues by severity.
type IssuesSummary struct {
	Errors   int           `json:"errors"`
	Warnings int           `json:"warnings"`
	Issues   []IssueDigest `json:"issues,omitempty"`
}

// RunRecord is one immutable catalog entry.
type RunRecord struct {
	RunID         string        `json:"run_id"`
	InvocationID  string        `json:"invocation_id,omitempty"`
	SeriesID      string        `json:"series_id"`
	Provider      Provider      `json:"provider"`
	StartDate     string        `json:"start_date"`
	EndDate       string        `json:"end_date"`
	RowCount      int           `json:"row_count"`
	Verdict       Verdict       `json:"verdict"`
	ArtifactPaths ArtifactPaths `json:"artifact_paths"`
	CreatedAt     time.Time     `json:"created_at"`
	IssuesSummary IssuesSummary `json:"issues_summary"`
	FailedStage   PipelineStage `json:"failed_stage,omitempty"`
	Error         string        `json:"error,omitempty"`
}

const runIDLayout = "20060102T150405.000000000Z"

// NewRunID derives a run id from the series id and the run timestamp.
func NewRunID(seriesID string, ts time.Time) string {
	return seriesID + "-" + ts.UTC().Format(runIDLayout)
}

// RunFilter narrows catalog listings.
type RunFilter struct {
	SeriesID string
	// Limit keeps only the most recent N records; 0 means all.
	Limit int
}

// Match reports whether r passes the filter's predicates.
func (f RunFilter) Match(r RunRecord) bool {
	return f.SeriesID == "" || strings.EqualFold(f.SeriesID, r.SeriesID)
}

// SeriesOutcome is the per-series line of a RunSummary.
type SeriesOutcome struct {
	SeriesID      string
	Provider      Provider
	RunID         string
	Verdict       Verdict
	State         PipelineStage
	FailedStage   PipelineStage
	Error         string
	ErrorIssues   []ValidationIssue
	RowCount      int
	ArtifactPaths ArtifactPaths
	Cataloged     bool
}

// Failed reports whether the series ended with a FAIL verdict.
func (o SeriesOutcome) Failed() bool { return o.Verdict == VerdictFail }

// RunSummary aggregates one invocation. It is never persisted.
type RunSummary struct {
	InvocationID string
	StartedAt    time.Time
	Elapsed      time.Duration
	Outcomes     []SeriesOutcome
}

// Counts returns PASS, PASS_WITH_WARNINGS and FAIL totals.
func (s *RunSummary) Counts() (pass, warn, fail int) {
	for _, o := range s.Outcomes {
		switch o.Verdict {
		case VerdictPass:
			pass++
		case VerdictPassWithWarnings:
			warn++
		case VerdictFail:
			fail++
		}
	}
	return pass, warn, fail
}

// FailedSeries lists series whose verdict is FAIL, in run order.
func (s *RunSummary) FailedSeries() []string {
	var out []string
	for _, o := range s.Outcomes {
		if o.Failed() {
			out = append(out, o.SeriesID)
		}
	}
	return out
}

// ExitCode is 1 iff any series failed.
func (s *RunSummary) ExitCode() int {
	if len(s.FailedSeries()) > 0 {
		return 1
	}
	return 0
}
