package repository

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/go-git/go-billy/v5/memfs"
	billyutil "github.com/go-git/go-billy/v5/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"RiskLab/internal/domain/models"
)

const catalogPath = "catalog/runs.json"

func record(series string, i int) models.RunRecord {
	ts := time.Date(2024, 5, 1, 12, 0, i, 0, time.UTC)
	return models.RunRecord{
		RunID:     models.NewRunID(series, ts),
		SeriesID:  series,
		Provider:  models.ProviderFRED,
		StartDate: "2020-01-01",
		EndDate:   "2020-03-01",
		RowCount:  3,
		Verdict:   models.VerdictPass,
		CreatedAt: ts,
	}
}

func TestAppendGrowsByOne(t *testing.T) {
	c := NewJSONCatalog(memfs.New(), catalogPath, nil)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.NoError(t, c.Append(ctx, record("CPIAUCSL", i)))
		all, err := c.List(ctx, models.RunFilter{})
		require.NoError(t, err)
		assert.Len(t, all, i+1)
	}
}

func TestListFilterAndLimit(t *testing.T) {
	c := NewJSONCatalog(memfs.New(), catalogPath, nil)
	ctx := context.Background()
	for i := 0; i < 4; i++ {
		require.NoError(t, c.Append(ctx, record("CPIAUCSL", i)))
		require.NoError(t, c.Append(ctx, record("^GSPC", i)))
	}

	got, err := c.List(ctx, models.RunFilter{SeriesID: "cpiaucsl", Limit: 2})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, record("CPIAUCSL", 2).RunID, got[0].RunID)
	assert.Equal(t, record("CPIAUCSL", 3).RunID, got[1].RunID)
}

func TestGet(t *testing.T) {
	c := NewJSONCatalog(memfs.New(), catalogPath, nil)
	ctx := context.Background()
	rec := record("CPIAUCSL", 7)
	require.NoError(t, c.Append(ctx, rec))

	got, ok, err := c.Get(ctx, rec.RunID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, rec.SeriesID, got.SeriesID)
	assert.True(t, rec.CreatedAt.Equal(got.CreatedAt))

	_, ok, err = c.Get(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestLegacySingleObjectDocument(t *testing.T) {
	fs := memfs.New()
	legacy := `{"run_id":"OLD-1","series_id":"GDP","provider":"FRED","verdict":"PASS"}`
	require.NoError(t, billyutil.WriteFile(fs, catalogPath, []byte(legacy), 0o644))

	c := NewJSONCatalog(fs, catalogPath, nil)
	require.NoError(t, c.Append(context.Background(), record("CPIAUCSL", 0)))

	all, err := c.List(context.Background(), models.RunFilter{})
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "OLD-1", all[0].RunID)
}

func TestCorruptDocumentIsNotOverwritten(t *testing.T) {
	fs := memfs.New()
	require.NoError(t, billyutil.WriteFile(fs, catalogPath, []byte("[{not json"), 0o644))

	c := NewJSONCatalog(fs, catalogPath, nil)
	err := c.Append(context.Background(), record("CPIAUCSL", 0))
	var cwe *models.CatalogWriteError
	require.ErrorAs(t, err, &cwe)

	b, err := billyutil.ReadFile(fs, catalogPath)
	require.NoError(t, err)
	assert.Equal(t, "[{not json", string(b))
}

func TestCrashBeforeRenameKeepsPreviousDocument(t *testing.T) {
	fs := memfs.New()
	ctx := context.Background()
	require.NoError(t, NewJSONCatalog(fs, catalogPath, nil).Append(ctx, record("CPIAUCSL", 0)))
	before, err := billyutil.ReadFile(fs, catalogPath)
	require.NoError(t, err)

	broken := NewJSONCatalog(failingRenameFS{fs}, catalogPath, nil)
	err = broken.Append(ctx, record("CPIAUCSL", 1))
	var cwe *models.CatalogWriteError
	require.ErrorAs(t, err, &cwe)

	after, err := billyutil.ReadFile(fs, catalogPath)
	require.NoError(t, err)
	assert.Equal(t, before, after)

	all, err := NewJSONCatalog(fs, catalogPath, nil).List(ctx, models.RunFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestConcurrentAppends(t *testing.T) {
	c := NewJSONCatalog(memfs.New(), catalogPath, nil)
	ctx := context.Background()
	done := make(chan error)
	for i := 0; i < 10; i++ {
		go func(i int) { done <- c.Append(ctx, record(fmt.Sprintf("S%d", i), i)) }(i)
	}
	for i := 0; i < 10; i++ {
		require.NoError(t, <-done)
	}
	all, err := c.List(ctx, models.RunFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 10)
}

func TestAppendSyncsBeforeRename(t *testing.T) {
	ctx := context.Background()
	fs := &syncingFS{Filesystem: memfs.New()}
	require.NoError(t, NewJSONCatalog(fs, catalogPath, nil).Append(ctx, record("CPIAUCSL", 0)))
	assert.Equal(t, 1, fs.syncs)

	fs.err = errors.New("input/output error")
	err := NewJSONCatalog(fs, catalogPath, nil).Append(ctx, record("CPIAUCSL", 1))
	var cwe *models.CatalogWriteError
	require.ErrorAs(t, err, &cwe)

	all, err := NewJSONCatalog(fs, catalogPath, nil).List(ctx, models.RunFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 1)
}
