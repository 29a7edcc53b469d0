package repository

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"RiskLab/internal/domain/models"
)

func TestBuildInsertsFlattensAndChunks(t *testing.T) {
	tbl := cpiTable()
	now := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

	batches := buildInserts("series_observations", "CPIAUCSL-run", tbl, now)
	require.Len(t, batches, 1)
	b := batches[0]
	assert.True(t, strings.HasPrefix(b.query, "INSERT INTO series_observations ("))
	assert.Equal(t, 3, strings.Count(b.query, "(?, ?, ?, ?, ?, ?, ?)"))
	require.Len(t, b.args, 21)

	assert.Equal(t, "CPIAUCSL", b.args[0])
	assert.Equal(t, "FRED", b.args[1])
	assert.Equal(t, date("2020-01-01"), b.args[2])
	assert.Equal(t, "value", b.args[3])
	assert.Equal(t, 258.7, b.args[4])
	assert.Nil(t, b.args[7+4], "missing cell is NULL")

	long := &models.StandardTable{SeriesID: "X", Provider: models.ProviderFRED, Type: models.SeriesTypeMacro}
	col := &models.Column{Name: models.ColValue, Type: models.ColumnFloat64}
	for i := 0; i < insertChunk+5; i++ {
		long.Dates = append(long.Dates, date("2000-01-01").AddDate(0, 0, i))
		col.Values = append(col.Values, models.Float(float64(i)))
	}
	long.Columns = []*models.Column{col}
	batches = buildInserts("t", "r", long, now)
	require.Len(t, batches, 2)
	assert.Len(t, batches[1].args, 5*7)
}

func TestSinkRejectsBadTableName(t *testing.T) {
	_, err := NewCHSeriesSink(nil, "obs; DROP TABLE x", nil)
	require.Error(t, err)
	s, err := NewCHSeriesSink(nil, "series_observations", nil)
	require.NoError(t, err)
	assert.Contains(t, s.SchemaStatements()[0], "ReplacingMergeTree(ingested_at)")
}
