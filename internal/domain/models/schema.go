package models

import "fmt"

// ColumnType is the declared storage type of a canonical column.
type ColumnType string

const (
	ColumnFloat64 ColumnType = "float64"
	ColumnInt64   ColumnType = "int64"
)

// Canonical column names.
const (
	ColValue    = "value"
	ColOpen     = "open"
	ColHigh     = "high"
	ColLow      = "low"
	ColClose    = "close"
	ColAdjClose = "adj_close"
	ColVolume   = "volume"
)

// ColumnSpec declares one canonical column.
type ColumnSpec struct {
	Name        string
	Type        ColumnType
	NonNegative bool
}

// SourceMapping maps provider column names to the canonical schema.
type SourceMapping struct {
	DateColumn string
	// Columns maps source column -> canonical column, in canonical order.
	Columns []ColumnMapping
}

// ColumnMapping renames one source column.
type ColumnMapping struct {
	Source    string
	Canonical string
}

var canonicalSchema = map[SeriesType][]ColumnSpec{
	SeriesTypeMacro: {
		{Name: ColValue, Type: ColumnFloat64, NonNegative: true},
	},
	SeriesTypeMarket: {
		{Name: ColOpen, Type: ColumnFloat64, NonNegative: true},
		{Name: ColHigh, Type: ColumnFloat64, NonNegative: true},
		{Name: ColLow, Type: ColumnFloat64, NonNegative: true},
		{Name: ColClose, Type: ColumnFloat64, NonNegative: true},
		{Name: ColAdjClose, Type: ColumnFloat64, NonNegative: true},
		{Name: ColVolume, Type: ColumnInt64, NonNegative: true},
	},
}

type mappingKey struct {
	provider Provider
	typ      SeriesType
}

var sourceMappings = map[mappingKey]SourceMapping{
	{ProviderFRED, SeriesTypeMacro}: {
		DateColumn: "date",
		Columns:    []ColumnMapping{{Source: "value", Canonical: ColValue}},
	},
	{ProviderMarket, SeriesTypeMarket}: {
		DateColumn: "timestamp",
		Columns: []ColumnMapping{
			{Source: "open", Canonical: ColOpen},
			{Source: "high", Canonical: ColHigh},
			{Source: "low", Canonical: ColLow},
			{Source: "close", Canonical: ColClose},
			{Source: "adjclose", Canonical: ColAdjClose},
			{Source: "volume", Canonical: ColVolume},
		},
	},
}

// CanonicalColumns returns the required columns for a series type.
func CanonicalColumns(t SeriesType) ([]ColumnSpec, error) {
	cols, ok := canonicalSchema[t]
	if !ok {
		return nil, fmt.Errorf("unknown series type %q", t)
	}
	out := make([]ColumnSpec, len(cols))
	copy(out, cols)
	return out, nil
}

// LookupColumn returns the spec of a canonical column for a series type.
func LookupColumn(t SeriesType, name string) (ColumnSpec, bool) {
	for _, c := range canonicalSchema[t] {
		if c.Name == name {
			return c, true
		}
	}
	return ColumnSpec{}, false
}

// MappingFor returns the provider mapping for a provider and series type.
func MappingFor(p Provider, t SeriesType) (SourceMapping, error) {
	m, ok := sourceMappings[mappingKey{p, t}]
	if !ok {
		return SourceMapping{}, fmt.Errorf("no column mapping for provider %s and series type %s", p, t)
	}
	return m, nil
}
