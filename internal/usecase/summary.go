package usecase

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"RiskLab/internal/domain/models"
)

// RenderSummary writes the end-of-run report: one line per series, totals,
// then every ERROR issue and stage failure.
func RenderSummary(w io.Writer, s *models.RunSummary) error {
	pass, warn, fail := s.Counts()
	status := "SUCCESS"
	if fail > 0 {
		status = "FAILURE"
	}

	fmt.Fprintf(w, "%s  invocation=%s  elapsed=%s\n\n", status, s.InvocationID, s.Elapsed.Round(time.Millisecond))

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "SERIES\tPROVIDER\tVERDICT\tROWS\tSTAGE\tRUN ID")
	for _, o := range s.Outcomes {
		stage := string(o.State)
		if o.FailedStage != "" {
			stage = string(o.FailedStage)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\t%s\n", o.SeriesID, o.Provider, o.Verdict, o.RowCount, stage, o.RunID)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	fmt.Fprintf(w, "\nPASS: %d  PASS_WITH_WARNINGS: %d  FAIL: %d\n", pass, warn, fail)

	var errLines []string
	for _, o := range s.Outcomes {
		if o.FailedStage != "" {
			errLines = append(errLines, fmt.Sprintf("  - %s [%s]: %s", o.SeriesID, o.FailedStage, o.Error))
		}
		for _, is := range o.ErrorIssues {
			errLines = append(errLines, fmt.Sprintf("  - %s [%s]: %s", o.SeriesID, is.Stage, is.Message))
		}
	}
	if len(errLines) > 0 {
		fmt.Fprintln(w, "\nErrors:")
		for _, l := range errLines {
			fmt.Fprintln(w, l)
		}
	}
	return nil
}
