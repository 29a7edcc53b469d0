package models

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeVerdict(t *testing.T) {
	warn := ValidationIssue{Stage: StageQuality, Severity: SeverityWarning, Message: "w"}
	fail := ValidationIssue{Stage: StageSchema, Severity: SeverityError, Message: "e"}

	assert.Equal(t, VerdictPass, ComputeVerdict(nil))
	assert.Equal(t, VerdictPassWithWarnings, ComputeVerdict([]ValidationIssue{warn}))
	assert.Equal(t, VerdictFail, ComputeVerdict([]ValidationIssue{warn, fail}))
	assert.Equal(t, VerdictFail, ComputeVerdict([]ValidationIssue{fail, warn}))
}

func TestReportSortsAffectedRowsAndSummarizes(t *testing.T) {
	d1 := time.Date(2020, 1, 2, 0, 0, 0, 0, time.UTC)
	d2 := time.Date(2020, 1, 3, 0, 0, 0, 0, time.UTC)
	r := NewValidationReport("X", []ValidationIssue{
		{Stage: StageCompleteness, Severity: SeverityWarning, Message: "gap", AffectedRows: []time.Time{d2, d1}},
		{Stage: StageSchema, Severity: SeverityError, Message: "bad"},
	})

	assert.Equal(t, []time.Time{d1, d2}, r.Issues[0].AffectedRows)
	assert.Equal(t, VerdictFail, r.Verdict)
	assert.Len(t, r.Errors(), 1)
	assert.Len(t, r.Warnings(), 1)

	s := r.Summary()
	assert.Equal(t, 1, s.Errors)
	assert.Equal(t, 1, s.Warnings)
	require.Len(t, s.Issues, 2)
	assert.Equal(t, 2, s.Issues[0].AffectedRows)
}

func TestIsTransient(t *testing.T) {
	tr := &FetchError{Kind: FetchTransient, Provider: ProviderFRED, SeriesID: "DGS10", Err: errors.New("503")}
	pe := &FetchError{Kind: FetchPermanent, Provider: ProviderFRED, SeriesID: "DGS10", StatusCode: 400}

	assert.True(t, IsTransient(tr))
	assert.True(t, IsTransient(fmt.Errorf("fetch: %w", tr)))
	assert.False(t, IsTransient(pe))
	assert.False(t, IsTransient(errors.New("other")))
	assert.Contains(t, pe.Error(), "status 400")
}

func TestFailedStage(t *testing.T) {
	err := fmt.Errorf("series X: %w", &StageError{Stage: StageStoring, Err: &StorageWriteError{Path: "p", Err: errors.New("disk")}})
	assert.Equal(t, StageStoring, FailedStage(err))

	var sw *StorageWriteError
	assert.True(t, errors.As(err, &sw))
	assert.Equal(t, PipelineStage(""), FailedStage(errors.New("plain")))
}

func TestRunSummaryExitCode(t *testing.T) {
	s := &RunSummary{Outcomes: []SeriesOutcome{
		{SeriesID: "A", Verdict: VerdictPass},
		{SeriesID: "B", Verdict: VerdictPassWithWarnings},
	}}
	pass, warn, fail := s.Counts()
	assert.Equal(t, [3]int{1, 1, 0}, [3]int{pass, warn, fail})
	assert.Equal(t, 0, s.ExitCode())

	s.Outcomes = append(s.Outcomes, SeriesOutcome{SeriesID: "C", Verdict: VerdictFail})
	assert.Equal(t, []string{"C"}, s.FailedSeries())
	assert.Equal(t, 1, s.ExitCode())
}

func TestNewRunIDIsUTCAndSubSecond(t *testing.T) {
	ts := time.Date(2020, 3, 1, 12, 0, 0, 123, time.FixedZone("X", 3600))
	assert.Equal(t, "CPIAUCSL-20200301T110000.000000123Z", NewRunID("CPIAUCSL", ts))
}

func TestSchemaLookups(t *testing.T) {
	cols, err := CanonicalColumns(SeriesTypeMarket)
	require.NoError(t, err)
	assert.Len(t, cols, 6)
	assert.Equal(t, ColumnInt64, cols[5].Type)

	m, err := MappingFor(ProviderMarket, SeriesTypeMarket)
	require.NoError(t, err)
	assert.Equal(t, "timestamp", m.DateColumn)

	_, err = MappingFor(ProviderFRED, SeriesTypeMarket)
	assert.Error(t, err)
}

func TestSeriesRequestValidate(t *testing.T) {
	d := func(s string) time.Time { v, _ := time.Parse("2006-01-02", s); return v }
	ok := SeriesRequest{SeriesID: "DGS10", Provider: ProviderFRED, Start: d("2020-01-01"), End: d("2020-02-01")}
	assert.NoError(t, ok.Validate())

	bad := ok
	bad.Start, bad.End = bad.End, bad.Start
	assert.Error(t, bad.Validate())

	bad = ok
	bad.Provider = "BLOOMBERG"
	assert.Error(t, bad.Validate())
}
