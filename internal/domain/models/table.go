package models

import (
	"math"
	"time"
)

// Value is a numeric cell. Valid=false is the missing marker.
type Value struct {
	Float float64
	Valid bool
}

// Missing returns the missing marker.
func Missing() Value { return Value{} }

// Float wraps v as a present value.
func Float(v float64) Value { return Value{Float: v, Valid: true} }

// IsFinite reports whether a present value is neither NaN nor infinite.
func (v Value) IsFinite() bool {
	return v.Valid && !math.IsNaN(v.Float) && !math.IsInf(v.Float, 0)
}

// Column is one canonical column of a StandardTable.
type Column struct {
	Name   string
	Type   ColumnType
	Values []Value
}

// MissingCount returns the number of missing cells.
func (c *Column) MissingCount() int {
	n := 0
	for _, v := range c.Values {
		if !v.Valid {
			n++
		}
	}
	return n
}

// StandardTable is the canonical form of a series: one row per UTC calendar date.
type StandardTable struct {
	SeriesID  string
	Provider  Provider
	Type      SeriesType
	Frequency Frequency
	Dates     []time.Time
	Columns   []*Column
}

// Len returns the number of rows.
func (t *StandardTable) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Dates)
}

// Column returns the named column.
func (t *StandardTable) Column(name string) (*Column, bool) {
	for _, c := range t.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return nil, false
}

// ColumnNames returns column names in table order.
func (t *StandardTable) ColumnNames() []string {
	names := make([]string, 0, len(t.Columns))
	for _, c := range t.Columns {
		names = append(names, c.Name)
	}
	return names
}

// FirstDate returns the earliest date of the index.
func (t *StandardTable) FirstDate() (time.Time, bool) {
	if t.Len() == 0 {
		return time.Time{}, false
	}
	return t.Dates[0], true
}

// LatestDate returns the latest date of the index.
func (t *StandardTable) LatestDate() (time.Time, bool) {
	if t.Len() == 0 {
		return time.Time{}, false
	}
	return t.Dates[len(t.Dates)-1], true
}

// DateSet returns the index as a set keyed by unix seconds.
func (t *StandardTable) DateSet() map[int64]struct{} {
	set := make(map[int64]struct{}, len(t.Dates))
	for _, d := range t.Dates {
		set[d.Unix()] = struct{}{}
	}
	return set
}
