package usecase

import (
	"fmt"
	"math"
	"sort"
	"time"

	"RiskLab/internal/domain/models"
	domrepo "RiskLab/internal/domain/repository"
	"RiskLab/pkg/util"
)

// Validator runs the quality gates over a standardized table.
// Every gate always runs; content problems become issues, never errors.
type Validator struct {
	clock domrepo.Clock
}

// NewValidator creates a Validator. A nil clock falls back to the system clock.
func NewValidator(clock domrepo.Clock) *Validator {
	if clock == nil {
		clock = domrepo.SystemClock
	}
	return &Validator{clock: clock}
}

// Validate checks t against the request window and policy.
func (v *Validator) Validate(t *models.StandardTable, req models.SeriesRequest, p models.ValidationPolicy) *models.ValidationReport {
	now := v.clock.Now()
	var issues []models.ValidationIssue
	for _, stage := range models.ValidationStages {
		switch stage {
		case models.StageCompleteness:
			issues = append(issues, checkCompleteness(t, req, p)...)
		case models.StageQuality:
			issues = append(issues, checkQuality(t, p)...)
		case models.StageFreshness:
			issues = append(issues, checkFreshness(t, req, p, now)...)
		case models.StageSchema:
			issues = append(issues, checkSchema(t)...)
		}
	}
	return models.NewValidationReport(req.SeriesID, issues)
}

func issue(stage models.ValidationStage, sev models.Severity, rows []time.Time, format string, args ...any) models.ValidationIssue {
	return models.ValidationIssue{Stage: stage, Severity: sev, Message: fmt.Sprintf(format, args...), AffectedRows: rows}
}

func checkCompleteness(t *models.StandardTable, req models.SeriesRequest, p models.ValidationPolicy) []models.ValidationIssue {
	var out []models.ValidationIssue

	expected := ExpectedDates(t.Frequency, req.Start, req.End, p.Holidays)
	if len(expected) > 0 {
		have := t.DateSet()
		var missing []time.Time
		gap, run := 0, 0
		for _, d := range expected {
			if _, ok := have[d.Unix()]; ok {
				run = 0
				continue
			}
			missing = append(missing, d)
			run++
			if run > gap {
				gap = run
			}
		}
		if len(missing) > 0 {
			frac := float64(len(missing)) / float64(len(expected))
			sev := models.SeverityWarning
			if frac > p.MaxMissingFraction {
				sev = models.SeverityError
			}
			out = append(out, issue(models.StageCompleteness, sev, missing,
				"%d of %d expected %s dates missing (%.1f%%, threshold %.1f%%), largest gap %d",
				len(missing), len(expected), t.Frequency, frac*100, p.MaxMissingFraction*100, gap))
		}
	}

	if t.Len() == 0 {
		return out
	}
	for _, c := range t.Columns {
		n := c.MissingCount()
		switch {
		case n == 0:
		case n == len(c.Values):
			out = append(out, issue(models.StageCompleteness, models.SeverityError, nil,
				"column %s has no observations", c.Name))
		default:
			out = append(out, issue(models.StageCompleteness, models.SeverityWarning, missingRows(t, c),
				"column %s has %.2f%% missing values", c.Name, float64(n)*100/float64(len(c.Values))))
		}
	}
	return out
}

func missingRows(t *models.StandardTable, c *models.Column) []time.Time {
	var rows []time.Time
	for i, v := range c.Values {
		if !v.Valid && i < len(t.Dates) {
			rows = append(rows, t.Dates[i])
		}
	}
	return rows
}

// changeColumns are checked for outliers; percent changes for market, absolute for macro.
var changeColumns = map[models.SeriesType][]string{
	models.SeriesTypeMacro:  {models.ColValue},
	models.SeriesTypeMarket: {models.ColClose, models.ColAdjClose},
}

func checkQuality(t *models.StandardTable, p models.ValidationPolicy) []models.ValidationIssue {
	var out []models.ValidationIssue
	for _, c := range t.Columns {
		var nonFinite, negative []time.Time
		for i, v := range c.Values {
			if !v.Valid || i >= len(t.Dates) {
				continue
			}
			if !v.IsFinite() {
				nonFinite = append(nonFinite, t.Dates[i])
				continue
			}
			if v.Float < 0 {
				negative = append(negative, t.Dates[i])
			}
		}
		if len(nonFinite) > 0 {
			out = append(out, issue(models.StageQuality, models.SeverityWarning, nonFinite,
				"column %s has %d non-finite values", c.Name, len(nonFinite)))
		}
		if spec, ok := models.LookupColumn(t.Type, c.Name); ok && spec.NonNegative && len(negative) > 0 {
			sev := models.SeverityWarning
			if p.LevelOnly {
				sev = models.SeverityError
			}
			out = append(out, issue(models.StageQuality, sev, negative,
				"column %s has %d negative values", c.Name, len(negative)))
		}
		if p.StaleRunLength > 0 && (c.Type == models.ColumnFloat64 || c.Type == models.ColumnInt64) {
			if rows, longest := staleRuns(t, c, p.StaleRunLength); len(rows) > 0 {
				out = append(out, issue(models.StageQuality, models.SeverityWarning, rows,
					"column %s repeats an identical value for %d consecutive observations (threshold %d)",
					c.Name, longest, p.StaleRunLength))
			}
		}
	}

	if p.OutlierZ > 0 {
		for _, name := range changeColumns[t.Type] {
			c, ok := t.Column(name)
			if !ok {
				continue
			}
			if rows := outliers(t, c, t.Type == models.SeriesTypeMarket, p.OutlierZ); len(rows) > 0 {
				out = append(out, issue(models.StageQuality, models.SeverityWarning, rows,
					"column %s has %d changes with |z| > %g", name, len(rows), p.OutlierZ))
			}
		}
	}

	if t.Type == models.SeriesTypeMarket {
		hi, okH := t.Column(models.ColHigh)
		lo, okL := t.Column(models.ColLow)
		if okH && okL {
			var rows []time.Time
			for i := range t.Dates {
				if i < len(hi.Values) && i < len(lo.Values) &&
					hi.Values[i].IsFinite() && lo.Values[i].IsFinite() && hi.Values[i].Float < lo.Values[i].Float {
					rows = append(rows, t.Dates[i])
				}
			}
			if len(rows) > 0 {
				out = append(out, issue(models.StageQuality, models.SeverityWarning, rows,
					"high below low on %d rows", len(rows)))
			}
		}
	}
	return out
}

// staleRuns returns the rows of every run of identical present values longer than limit.
func staleRuns(t *models.StandardTable, c *models.Column, limit int) ([]time.Time, int) {
	var rows []time.Time
	longest := 0
	flush := func(from, to int) {
		if n := to - from; n > limit {
			rows = append(rows, t.Dates[from:to]...)
			if n > longest {
				longest = n
			}
		}
	}
	from := 0
	for i := 1; i <= len(c.Values) && i <= len(t.Dates); i++ {
		if i < len(c.Values) && i < len(t.Dates) && c.Values[i].IsFinite() && c.Values[from].IsFinite() &&
			c.Values[i].Float == c.Values[from].Float {
			continue
		}
		if c.Values[from].IsFinite() {
			flush(from, i)
		}
		from = i
	}
	return rows, longest
}

// outliers flags rows whose change from the previous present value has |z| above limit.
func outliers(t *models.StandardTable, c *models.Column, pct bool, limit float64) []time.Time {
	type change struct {
		at time.Time
		v  float64
	}
	var changes []change
	prev := -1
	for i, v := range c.Values {
		if i >= len(t.Dates) || !v.IsFinite() {
			continue
		}
		if prev >= 0 {
			p := c.Values[prev].Float
			switch {
			case !pct:
				changes = append(changes, change{t.Dates[i], v.Float - p})
			case p != 0:
				changes = append(changes, change{t.Dates[i], (v.Float - p) / p})
			}
		}
		prev = i
	}
	if len(changes) < 3 {
		return nil
	}
	var sum float64
	for _, ch := range changes {
		sum += ch.v
	}
	mean := sum / float64(len(changes))
	var ss float64
	for _, ch := range changes {
		ss += (ch.v - mean) * (ch.v - mean)
	}
	std := math.Sqrt(ss / float64(len(changes)-1))
	if std < 1e-12 {
		return nil
	}
	var rows []time.Time
	for _, ch := range changes {
		if math.Abs((ch.v-mean)/std) > limit {
			rows = append(rows, ch.at)
		}
	}
	return rows
}

func checkFreshness(t *models.StandardTable, req models.SeriesRequest, p models.ValidationPolicy, now time.Time) []models.ValidationIssue {
	latest, ok := latestObservation(t)
	if !ok {
		return []models.ValidationIssue{issue(models.StageFreshness, models.SeverityError, nil,
			"no observations to assess freshness")}
	}
	ref := util.MinTime(util.TruncateDate(req.End), util.TruncateDate(now))
	gap := util.DaysBetween(latest, ref)
	switch {
	case gap > p.FreshnessErrorAfter:
		return []models.ValidationIssue{issue(models.StageFreshness, models.SeverityError, []time.Time{latest},
			"latest observation %s is %d days old (error after %d)", util.FormatDate(latest), gap, p.FreshnessErrorAfter)}
	case gap > p.FreshnessWarnAfter:
		return []models.ValidationIssue{issue(models.StageFreshness, models.SeverityWarning, []time.Time{latest},
			"latest observation %s is %d days old (warn after %d)", util.FormatDate(latest), gap, p.FreshnessWarnAfter)}
	}
	return nil
}

// latestObservation is the latest date holding at least one present value.
func latestObservation(t *models.StandardTable) (time.Time, bool) {
	for i := t.Len() - 1; i >= 0; i-- {
		for _, c := range t.Columns {
			if i < len(c.Values) && c.Values[i].Valid {
				return t.Dates[i], true
			}
		}
	}
	return time.Time{}, false
}

func checkSchema(t *models.StandardTable) []models.ValidationIssue {
	var out []models.ValidationIssue

	required, err := models.CanonicalColumns(t.Type)
	if err != nil {
		return []models.ValidationIssue{issue(models.StageSchema, models.SeverityError, nil, "%v", err)}
	}
	for _, spec := range required {
		c, ok := t.Column(spec.Name)
		if !ok {
			out = append(out, issue(models.StageSchema, models.SeverityError, nil, "missing required column %s", spec.Name))
			continue
		}
		if c.Type != spec.Type {
			out = append(out, issue(models.StageSchema, models.SeverityError, nil,
				"column %s has type %s, expected %s", c.Name, c.Type, spec.Type))
			continue
		}
		if len(c.Values) != t.Len() {
			out = append(out, issue(models.StageSchema, models.SeverityError, nil,
				"column %s has %d values for %d index rows", c.Name, len(c.Values), t.Len()))
			continue
		}
		if spec.Type == models.ColumnInt64 {
			var rows []time.Time
			for i, v := range c.Values {
				if v.IsFinite() && v.Float != math.Trunc(v.Float) {
					rows = append(rows, t.Dates[i])
				}
			}
			if len(rows) > 0 {
				out = append(out, issue(models.StageSchema, models.SeverityError, rows,
					"column %s holds %d non-integral values", c.Name, len(rows)))
			}
		}
	}

	var extra []string
	for _, c := range t.Columns {
		if _, ok := models.LookupColumn(t.Type, c.Name); !ok {
			extra = append(extra, c.Name)
		}
	}
	sort.Strings(extra)
	for _, name := range extra {
		out = append(out, issue(models.StageSchema, models.SeverityWarning, nil, "unexpected column %s", name))
	}

	var disorder, offGrid []time.Time
	for i, d := range t.Dates {
		if !d.Equal(util.TruncateDate(d)) {
			offGrid = append(offGrid, d)
		}
		if i > 0 && !d.After(t.Dates[i-1]) {
			disorder = append(disorder, d)
		}
	}
	if len(disorder) > 0 {
		out = append(out, issue(models.StageSchema, models.SeverityError, disorder,
			"index is not unique and strictly ascending at %d rows", len(disorder)))
	}
	if len(offGrid) > 0 {
		out = append(out, issue(models.StageSchema, models.SeverityError, offGrid,
			"index has %d values that are not UTC calendar dates", len(offGrid)))
	}
	return out
}
