package models

import (
	"fmt"
	"time"
)

// Provider identifies an upstream data source.
type Provider string

const (
	ProviderFRED   Provider = "FRED"
	ProviderMarket Provider = "MARKET"
)

// IsValid reports whether p is a known provider.
func (p Provider) IsValid() bool {
	switch p {
	case ProviderFRED, ProviderMarket:
		return true
	default:
		return false
	}
}

// SeriesType selects the canonical column set of a series.
type SeriesType string

const (
	SeriesTypeMacro  SeriesType = "macro"
	SeriesTypeMarket SeriesType = "market"
)

// Frequency is the observation cadence a series is expected to follow.
type Frequency string

const (
	FrequencyBusiness  Frequency = "business"
	FrequencyDaily     Frequency = "daily"
	FrequencyMonthly   Frequency = "monthly"
	FrequencyQuarterly Frequency = "quarterly"
)

// IsValid reports whether f is a supported frequency.
func (f Frequency) IsValid() bool {
	switch f {
	case FrequencyBusiness, FrequencyDaily, FrequencyMonthly, FrequencyQuarterly:
		return true
	default:
		return false
	}
}

// SeriesSpec describes a configured series.
type SeriesSpec struct {
	ID        string
	Provider  Provider
	Type      SeriesType
	Frequency Frequency
	// LevelOnly marks series whose values can never legitimately be negative.
	LevelOnly bool
}

// SeriesRequest is one fetch window for one series. Dates are UTC calendar dates.
type SeriesRequest struct {
	SeriesID string
	Provider Provider
	Start    time.Time
	End      time.Time
}

// Validate checks the request window.
func (r SeriesRequest) Validate() error {
	if r.SeriesID == "" {
		return fmt.Errorf("series id is required")
	}
	if !r.Provider.IsValid() {
		return fmt.Errorf("unknown provider %q", r.Provider)
	}
	if r.Start.IsZero() || r.End.IsZero() {
		return fmt.Errorf("start and end dates are required")
	}
	if r.Start.After(r.End) {
		return fmt.Errorf("start %s is after end %s", r.Start.Format("2006-01-02"), r.End.Format("2006-01-02"))
	}
	return nil
}

// SeriesTask bundles everything the pipeline needs to ingest one series.
type SeriesTask struct {
	Spec    SeriesSpec
	Request SeriesRequest
	Policy  ValidationPolicy
}

// RawTable is provider-native tabular data. Every row is aligned with Columns.
type RawTable struct {
	Provider Provider
	SeriesID string
	Columns  []string
	Rows     [][]string
}

// ColumnIndex returns the position of name in Columns or -1.
func (t *RawTable) ColumnIndex(name string) int {
	for i, c := range t.Columns {
		if c == name {
			return i
		}
	}
	return -1
}

// Len returns the number of rows.
func (t *RawTable) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Rows)
}

// Cell returns the value at row i for column index j, or "" when the row is short.
func (t *RawTable) Cell(i, j int) string {
	row := t.Rows[i]
	if j < 0 || j >= len(row) {
		return ""
	}
	return row[j]
}
