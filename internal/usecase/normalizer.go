package usecase

import (
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"RiskLab/internal/domain/models"
	"RiskLab/pkg/util"
)

// missingTokens are cell values treated as the missing marker.
var missingTokens = map[string]struct{}{
	"":     {},
	".":    {},
	"nan":  {},
	"null": {},
	"none": {},
	"n/a":  {},
	"na":   {},
}

// Normalizer converts provider-native tables into the canonical schema. It holds no state.
type Normalizer struct{}

// NewNormalizer creates a Normalizer.
func NewNormalizer() *Normalizer { return &Normalizer{} }

// Normalize maps raw to a StandardTable indexed by unique, ascending UTC dates.
// Duplicate dates keep the last occurrence. Unparseable value cells become missing.
func (n *Normalizer) Normalize(raw *models.RawTable, spec models.SeriesSpec) (*models.StandardTable, error) {
	if raw == nil {
		return nil, &models.SchemaMismatchError{SeriesID: spec.ID, Reason: "no table"}
	}
	mapping, err := models.MappingFor(spec.Provider, spec.Type)
	if err != nil {
		return nil, &models.SchemaMismatchError{SeriesID: spec.ID, Reason: err.Error()}
	}

	dateIdx := raw.ColumnIndex(mapping.DateColumn)
	srcIdx := make([]int, len(mapping.Columns))
	var missing []string
	if dateIdx < 0 {
		missing = append(missing, mapping.DateColumn)
	}
	for i, cm := range mapping.Columns {
		srcIdx[i] = raw.ColumnIndex(cm.Source)
		if srcIdx[i] < 0 {
			missing = append(missing, cm.Source)
		}
	}
	if len(missing) > 0 {
		return nil, &models.SchemaMismatchError{SeriesID: spec.ID, Missing: missing}
	}

	// last occurrence wins
	latest := make(map[int64]int, raw.Len())
	dates := make(map[int64]time.Time, raw.Len())
	for i := range raw.Rows {
		cell := raw.Cell(i, dateIdx)
		d, ok := util.ParseDate(cell)
		if !ok {
			return nil, &models.DateParseError{SeriesID: spec.ID, Row: i, Value: cell}
		}
		latest[d.Unix()] = i
		dates[d.Unix()] = d
	}
	keys := make([]int64, 0, len(latest))
	for k := range latest {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(a, b int) bool { return keys[a] < keys[b] })

	out := &models.StandardTable{
		SeriesID:  spec.ID,
		Provider:  spec.Provider,
		Type:      spec.Type,
		Frequency: spec.Frequency,
		Dates:     make([]time.Time, len(keys)),
		Columns:   make([]*models.Column, len(mapping.Columns)),
	}
	for i, k := range keys {
		out.Dates[i] = dates[k]
	}
	for j, cm := range mapping.Columns {
		cs, _ := models.LookupColumn(spec.Type, cm.Canonical)
		col := &models.Column{Name: cm.Canonical, Type: cs.Type, Values: make([]models.Value, len(keys))}
		for i, k := range keys {
			col.Values[i] = coerceCell(raw.Cell(latest[k], srcIdx[j]), cs.Type)
		}
		out.Columns[j] = col
	}
	return out, nil
}

// coerceCell parses s as the declared column type.
func coerceCell(s string, typ models.ColumnType) models.Value {
	s = strings.TrimSpace(s)
	if _, ok := missingTokens[strings.ToLower(s)]; ok {
		return models.Missing()
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) {
		return models.Missing()
	}
	if typ == models.ColumnInt64 {
		if math.IsInf(f, 0) || f != math.Trunc(f) || math.Abs(f) > math.MaxInt64 {
			return models.Missing()
		}
	}
	return models.Float(f)
}
