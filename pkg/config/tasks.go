package config

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"RiskLab/internal/domain/models"
)

// Tasks builds one ingestion task per configured series for [start, end].
// A non-empty only list keeps the named series (case-insensitive) in config order.
func (c *Config) Tasks(start, end time.Time, only []string) ([]models.SeriesTask, error) {
	holidays, err := c.Validation.HolidayDates()
	if err != nil {
		return nil, err
	}

	want := make(map[string]bool, len(only))
	for _, id := range only {
		if id = strings.TrimSpace(id); id != "" {
			want[strings.ToUpper(id)] = false
		}
	}

	tasks := make([]models.SeriesTask, 0, len(c.Series))
	for _, s := range c.Series {
		key := strings.ToUpper(s.ID)
		if len(want) > 0 {
			if _, ok := want[key]; !ok {
				continue
			}
			want[key] = true
		}

		spec := models.SeriesSpec{
			ID:        s.ID,
			Provider:  models.Provider(s.Provider),
			Type:      models.SeriesType(s.Type),
			Frequency: models.Frequency(s.Frequency),
			LevelOnly: s.LevelOnly,
		}
		errAfter, warnAfter := c.FreshnessFor(s)
		tasks = append(tasks, models.SeriesTask{
			Spec: spec,
			Request: models.SeriesRequest{
				SeriesID: s.ID,
				Provider: spec.Provider,
				Start:    start,
				End:      end,
			},
			Policy: models.ValidationPolicy{
				MaxMissingFraction:  *c.Validation.MaxMissingFraction,
				StaleRunLength:      *c.Validation.StaleRunLength,
				FreshnessErrorAfter: errAfter,
				FreshnessWarnAfter:  warnAfter,
				OutlierZ:            *c.Validation.OutlierZ,
				LevelOnly:           s.LevelOnly,
				Holidays:            holidays,
			},
		})
	}

	var unknown []string
	for id, seen := range want {
		if !seen {
			unknown = append(unknown, id)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return nil, fmt.Errorf("unknown series: %s", strings.Join(unknown, ", "))
	}
	return tasks, nil
}
