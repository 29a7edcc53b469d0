package usecase

import (
	"time"

	"RiskLab/internal/domain/models"
	"RiskLab/pkg/util"
)

// ExpectedDates lists the calendar dates a series of frequency f should carry in [start, end].
// Business calendars skip weekends and the given holidays. Monthly and quarterly
// observations are stamped on the first day of the period.
func ExpectedDates(f models.Frequency, start, end time.Time, holidays []time.Time) []time.Time {
	start, end = util.TruncateDate(start), util.TruncateDate(end)
	if start.After(end) {
		return nil
	}
	var out []time.Time
	switch f {
	case models.FrequencyDaily:
		for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
			out = append(out, d)
		}
	case models.FrequencyBusiness:
		skip := make(map[int64]struct{}, len(holidays))
		for _, h := range holidays {
			skip[util.TruncateDate(h).Unix()] = struct{}{}
		}
		for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
			if wd := d.Weekday(); wd == time.Saturday || wd == time.Sunday {
				continue
			}
			if _, ok := skip[d.Unix()]; ok {
				continue
			}
			out = append(out, d)
		}
	case models.FrequencyMonthly, models.FrequencyQuarterly:
		step := 1
		if f == models.FrequencyQuarterly {
			step = 3
		}
		d := time.Date(start.Year(), start.Month(), 1, 0, 0, 0, 0, time.UTC)
		for (int(d.Month())-1)%step != 0 || d.Before(start) {
			d = d.AddDate(0, 1, 0)
		}
		for ; !d.After(end); d = d.AddDate(0, step, 0) {
			out = append(out, d)
		}
	}
	return out
}
