package usecase

import (
	"time"

	"RiskLab/internal/domain/models"
	domrepo "RiskLab/internal/domain/repository"
)

func day(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

func fixedClock(s string) domrepo.Clock {
	t := day(s).Add(15 * time.Hour)
	return domrepo.ClockFunc(func() time.Time { return t })
}

func macroSpec(id string, f models.Frequency) models.SeriesSpec {
	return models.SeriesSpec{ID: id, Provider: models.ProviderFRED, Type: models.SeriesTypeMacro, Frequency: f, LevelOnly: true}
}

func fredRaw(id string, rows ...[2]string) *models.RawTable {
	t := &models.RawTable{Provider: models.ProviderFRED, SeriesID: id, Columns: []string{"realtime_start", "date", "value"}}
	for _, r := range rows {
		t.Rows = append(t.Rows, []string{"2024-01-01", r[0], r[1]})
	}
	return t
}

// macroTable builds a macro table with every cell present.
func macroTable(id string, f models.Frequency, dates []time.Time, vals []float64) *models.StandardTable {
	col := &models.Column{Name: models.ColValue, Type: models.ColumnFloat64}
	for _, v := range vals {
		col.Values = append(col.Values, models.Float(v))
	}
	return &models.StandardTable{
		SeriesID: id, Provider: models.ProviderFRED, Type: models.SeriesTypeMacro, Frequency: f,
		Dates: dates, Columns: []*models.Column{col},
	}
}

func dailyDates(from string, n int) []time.Time {
	d := day(from)
	out := make([]time.Time, n)
	for i := range out {
		out[i] = d.AddDate(0, 0, i)
	}
	return out
}

func basePolicy() models.ValidationPolicy {
	return models.ValidationPolicy{
		MaxMissingFraction:  0.10,
		StaleRunLength:      10,
		FreshnessErrorAfter: 5,
		FreshnessWarnAfter:  2,
		OutlierZ:            0,
		LevelOnly:           true,
	}
}

func issuesAt(r *models.ValidationReport, stage models.ValidationStage) []models.ValidationIssue {
	var out []models.ValidationIssue
	for _, is := range r.Issues {
		if is.Stage == stage {
			out = append(out, is)
		}
	}
	return out
}
