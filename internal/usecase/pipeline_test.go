package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-git/go-billy/v5/memfs"
	billyutil "github.com/go-git/go-billy/v5/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"RiskLab/internal/domain/models"
	domrepo "RiskLab/internal/domain/repository"
	"RiskLab/internal/repository"
)

type stubAdapter struct {
	mu     sync.Mutex
	tables map[string]*models.RawTable
	errs   map[string]error
	calls  int32
}

func (s *stubAdapter) Fetch(_ context.Context, seriesID string, _, _ time.Time) (*models.RawTable, error) {
	atomic.AddInt32(&s.calls, 1)
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.errs[seriesID]; err != nil {
		return nil, err
	}
	t, ok := s.tables[seriesID]
	if !ok {
		return nil, &models.FetchError{Kind: models.FetchPermanent, Provider: models.ProviderFRED, SeriesID: seriesID, Err: errors.New("unknown series")}
	}
	return t, nil
}

type stubResolver struct{ a domrepo.SourceAdapter }

func (r stubResolver) Adapter(models.Provider) (domrepo.SourceAdapter, error) { return r.a, nil }

// tickingClock advances one second per reading.
func tickingClock(start string) domrepo.Clock {
	t := day(start).Add(15 * time.Hour)
	var mu sync.Mutex
	return domrepo.ClockFunc(func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		t = t.Add(time.Second)
		return t
	})
}

func cpiTask() models.SeriesTask {
	return models.SeriesTask{
		Spec:    macroSpec("CPI", models.FrequencyMonthly),
		Request: models.SeriesRequest{SeriesID: "CPI", Provider: models.ProviderFRED, Start: day("2020-01-01"), End: day("2020-03-01")},
		Policy:  basePolicy(),
	}
}

func cpiRaw() *models.RawTable {
	return fredRaw("CPI", [2]string{"2020-01-01", "258.7"}, [2]string{"2020-02-01", "259.0"}, [2]string{"2020-03-01", "258.1"})
}

func newPipeline(t *testing.T, adapter *stubAdapter, opts ...PipelineOption) (*Pipeline, *repository.JSONCatalog, *repository.ParquetArtifactStore) {
	t.Helper()
	fs := memfs.New()
	store := repository.NewParquetArtifactStore(fs, nil)
	catalog := repository.NewJSONCatalog(fs, "catalog/runs.json", nil)
	opts = append([]PipelineOption{WithClock(tickingClock("2020-03-02"))}, opts...)
	return NewPipeline(stubResolver{adapter}, store, catalog, opts...), catalog, store
}

func runOne(p *Pipeline, task models.SeriesTask) models.SeriesOutcome {
	return p.Run(context.Background(), []models.SeriesTask{task}).Outcomes[0]
}

func TestCPIEndToEnd(t *testing.T) {
	adapter := &stubAdapter{tables: map[string]*models.RawTable{"CPI": cpiRaw()}}
	p, catalog, store := newPipeline(t, adapter)

	summary := p.Run(context.Background(), []models.SeriesTask{cpiTask()})
	require.Len(t, summary.Outcomes, 1)
	out := summary.Outcomes[0]
	assert.Equal(t, models.VerdictPass, out.Verdict)
	assert.Equal(t, models.StageDone, out.State)
	assert.True(t, out.Cataloged)
	assert.Equal(t, 3, out.RowCount)
	assert.Equal(t, "raw/source=FRED/series=CPI/range=20200101_20200301.parquet", out.ArtifactPaths.Raw)
	assert.Equal(t, "standardized/series=CPI/range=20200101_20200301.parquet", out.ArtifactPaths.Standardized)

	pass, warn, fail := summary.Counts()
	assert.Equal(t, []int{1, 0, 0}, []int{pass, warn, fail})
	assert.Equal(t, 0, summary.ExitCode())

	recs, err := catalog.List(context.Background(), models.RunFilter{})
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, out.RunID, recs[0].RunID)
	assert.Equal(t, summary.InvocationID, recs[0].InvocationID)
	assert.Equal(t, "2020-01-01", recs[0].StartDate)
	assert.Equal(t, out.ArtifactPaths, recs[0].ArtifactPaths)

	rows, err := store.ReadMacro(out.ArtifactPaths.Standardized)
	require.NoError(t, err)
	assert.Len(t, rows, 3)
}

func TestRerunIsIdempotentAndCatalogGrowsByOne(t *testing.T) {
	fs := memfs.New()
	store := repository.NewParquetArtifactStore(fs, nil)
	catalog := repository.NewJSONCatalog(fs, "catalog/runs.json", nil)
	adapter := &stubAdapter{tables: map[string]*models.RawTable{"CPI": cpiRaw()}}
	p := NewPipeline(stubResolver{adapter}, store, catalog, WithClock(tickingClock("2020-03-02")))

	first := p.Run(context.Background(), []models.SeriesTask{cpiTask()}).Outcomes[0]
	before, err := billyutil.ReadFile(fs, first.ArtifactPaths.Standardized)
	require.NoError(t, err)

	second := p.Run(context.Background(), []models.SeriesTask{cpiTask()}).Outcomes[0]
	after, err := billyutil.ReadFile(fs, second.ArtifactPaths.Standardized)
	require.NoError(t, err)

	assert.Equal(t, first.ArtifactPaths, second.ArtifactPaths)
	assert.Equal(t, before, after)
	assert.NotEqual(t, first.RunID, second.RunID)

	recs, err := catalog.List(context.Background(), models.RunFilter{})
	require.NoError(t, err)
	assert.Len(t, recs, 2)

	entries, err := fs.ReadDir("standardized/series=CPI")
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestFetchFailureDoesNotAbortRun(t *testing.T) {
	adapter := &stubAdapter{
		tables: map[string]*models.RawTable{"CPI": cpiRaw()},
		errs:   map[string]error{"GDP": &models.FetchError{Kind: models.FetchTransient, Provider: models.ProviderFRED, SeriesID: "GDP", StatusCode: 503}},
	}
	p, catalog, _ := newPipeline(t, adapter)
	gdp := cpiTask()
	gdp.Spec.ID, gdp.Request.SeriesID = "GDP", "GDP"

	summary := p.Run(context.Background(), []models.SeriesTask{gdp, cpiTask()})
	require.Len(t, summary.Outcomes, 2)

	failed := summary.Outcomes[0]
	assert.Equal(t, models.VerdictFail, failed.Verdict)
	assert.Equal(t, models.StageFailed, failed.State)
	assert.Equal(t, models.StageFetching, failed.FailedStage)
	assert.Contains(t, failed.Error, "fetching")
	assert.Empty(t, failed.ArtifactPaths.Raw)
	assert.Empty(t, failed.ArtifactPaths.Standardized)
	assert.True(t, failed.Cataloged)

	assert.Equal(t, models.VerdictPass, summary.Outcomes[1].Verdict)
	assert.Equal(t, []string{"GDP"}, summary.FailedSeries())
	assert.Equal(t, 1, summary.ExitCode())

	recs, err := catalog.List(context.Background(), models.RunFilter{})
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "GDP", recs[0].SeriesID)
	assert.Equal(t, models.VerdictFail, recs[0].Verdict)
	assert.Equal(t, models.StageFetching, recs[0].FailedStage)
	assert.Equal(t, models.ArtifactPaths{}, recs[0].ArtifactPaths)
	assert.Equal(t, "CPI", recs[1].SeriesID)
}

func TestNormalizeFailureRecordsStage(t *testing.T) {
	bad := &models.RawTable{Provider: models.ProviderFRED, SeriesID: "CPI", Columns: []string{"date"}, Rows: [][]string{{"2020-01-01"}}}
	adapter := &stubAdapter{tables: map[string]*models.RawTable{"CPI": bad}}
	p, _, _ := newPipeline(t, adapter)

	out := runOne(p, cpiTask())
	assert.Equal(t, models.VerdictFail, out.Verdict)
	assert.Equal(t, models.StageNormalizing, out.FailedStage)
	assert.Empty(t, out.ArtifactPaths.Raw)
}

func TestValidationFailureIsStoredAndCataloged(t *testing.T) {
	raw := fredRaw("CPI", [2]string{"2020-01-01", "258.7"})
	adapter := &stubAdapter{tables: map[string]*models.RawTable{"CPI": raw}}
	p, catalog, _ := newPipeline(t, adapter)

	out := runOne(p, cpiTask())
	assert.Equal(t, models.VerdictFail, out.Verdict)
	assert.Equal(t, models.StageDone, out.State)
	assert.Empty(t, out.FailedStage)
	assert.NotEmpty(t, out.ErrorIssues)
	assert.NotEmpty(t, out.ArtifactPaths.Standardized)

	recs, err := catalog.List(context.Background(), models.RunFilter{})
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, models.VerdictFail, recs[0].Verdict)
	assert.Positive(t, recs[0].IssuesSummary.Errors)
}

type failingStore struct {
	domrepo.ArtifactStore
	failStandardized bool
}

func (f failingStore) WriteStandardized(ctx context.Context, t *models.StandardTable, req models.SeriesRequest, ts time.Time) (string, error) {
	if f.failStandardized {
		return "", &models.StorageWriteError{Path: "standardized/x", Err: errors.New("disk full")}
	}
	return f.ArtifactStore.WriteStandardized(ctx, t, req, ts)
}

func TestStorageFailureKeepsWrittenPaths(t *testing.T) {
	fs := memfs.New()
	store := failingStore{ArtifactStore: repository.NewParquetArtifactStore(fs, nil), failStandardized: true}
	catalog := repository.NewJSONCatalog(fs, "catalog/runs.json", nil)
	adapter := &stubAdapter{tables: map[string]*models.RawTable{"CPI": cpiRaw()}}
	p := NewPipeline(stubResolver{adapter}, store, catalog, WithClock(tickingClock("2020-03-02")))

	out := runOne(p, cpiTask())
	assert.Equal(t, models.StageStoring, out.FailedStage)
	assert.NotEmpty(t, out.ArtifactPaths.Raw)
	assert.Empty(t, out.ArtifactPaths.Standardized)

	recs, err := catalog.List(context.Background(), models.RunFilter{})
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, out.ArtifactPaths, recs[0].ArtifactPaths)
	assert.Equal(t, 3, recs[0].RowCount)
}

type brokenCatalog struct{}

func (brokenCatalog) Append(context.Context, models.RunRecord) error {
	return &models.CatalogWriteError{Path: "runs.json", Err: errors.New("read-only")}
}
func (brokenCatalog) List(context.Context, models.RunFilter) ([]models.RunRecord, error) {
	return nil, nil
}
func (brokenCatalog) Get(context.Context, string) (models.RunRecord, bool, error) {
	return models.RunRecord{}, false, nil
}

func TestCatalogFailureFailsSeries(t *testing.T) {
	adapter := &stubAdapter{tables: map[string]*models.RawTable{"CPI": cpiRaw()}}
	store := repository.NewParquetArtifactStore(memfs.New(), nil)
	p := NewPipeline(stubResolver{adapter}, store, brokenCatalog{}, WithClock(tickingClock("2020-03-02")))

	summary := p.Run(context.Background(), []models.SeriesTask{cpiTask()})
	out := summary.Outcomes[0]
	assert.Equal(t, models.VerdictFail, out.Verdict)
	assert.Equal(t, models.StageCataloging, out.FailedStage)
	assert.False(t, out.Cataloged)
	assert.Equal(t, 1, summary.ExitCode())
}

type recordingSink struct {
	err       error
	healthErr error
	runs      []string
}

func (s *recordingSink) Init(context.Context) error { return nil }
func (s *recordingSink) UpsertSeries(_ context.Context, runID string, _ *models.StandardTable) error {
	s.runs = append(s.runs, runID)
	return s.err
}
func (s *recordingSink) Health(context.Context) error { return s.healthErr }
func (s *recordingSink) Close() error { return nil }

type recordingPublisher struct {
	err  error
	recs []models.RunRecord
}

func (p *recordingPublisher) PublishRun(_ context.Context, rec models.RunRecord) error {
	p.recs = append(p.recs, rec)
	return p.err
}
func (p *recordingPublisher) Close() error { return nil }

func TestSinkAndPublisherFailuresAreNotFatal(t *testing.T) {
	adapter := &stubAdapter{tables: map[string]*models.RawTable{"CPI": cpiRaw()}}
	sink := &recordingSink{err: errors.New("clickhouse down")}
	pub := &recordingPublisher{err: errors.New("broker down")}
	p, _, _ := newPipeline(t, adapter, WithSeriesSink(sink), WithRunPublisher(pub))

	out := runOne(p, cpiTask())
	assert.Equal(t, models.VerdictPass, out.Verdict)
	assert.Equal(t, []string{out.RunID}, sink.runs)
	require.Len(t, pub.recs, 1)
	assert.Equal(t, out.RunID, pub.recs[0].RunID)
}

func TestCheckSinkDetachesUnhealthyMirror(t *testing.T) {
	adapter := &stubAdapter{tables: map[string]*models.RawTable{"CPI": cpiRaw()}}
	sink := &recordingSink{healthErr: errors.New("connection refused")}
	p, catalog, _ := newPipeline(t, adapter, WithSeriesSink(sink))

	require.ErrorContains(t, p.CheckSink(context.Background()), "connection refused")
	assert.NoError(t, p.CheckSink(context.Background()), "detached sink is not checked again")

	out := runOne(p, cpiTask())
	assert.Equal(t, models.VerdictPass, out.Verdict)
	assert.Empty(t, sink.runs)
	recs, err := catalog.List(context.Background(), models.RunFilter{})
	require.NoError(t, err)
	assert.Len(t, recs, 1)
}

func TestCheckSinkKeepsHealthyMirror(t *testing.T) {
	adapter := &stubAdapter{tables: map[string]*models.RawTable{"CPI": cpiRaw()}}
	sink := &recordingSink{}
	p, _, _ := newPipeline(t, adapter, WithSeriesSink(sink))

	require.NoError(t, p.CheckSink(context.Background()))
	out := runOne(p, cpiTask())
	assert.Equal(t, []string{out.RunID}, sink.runs)
}

func TestConcurrentFetchKeepsCatalogOrder(t *testing.T) {
	tables := make(map[string]*models.RawTable)
	var tasks []models.SeriesTask
	for i := 0; i < 6; i++ {
		id := fmt.Sprintf("S%d", i)
		raw := cpiRaw()
		raw.SeriesID = id
		tables[id] = raw
		task := cpiTask()
		task.Spec.ID, task.Request.SeriesID = id, id
		tasks = append(tasks, task)
	}
	adapter := &stubAdapter{tables: tables}
	p, catalog, _ := newPipeline(t, adapter, WithFetchConcurrency(3), WithInvocationIDs(func() string { return "inv-1" }))

	summary := p.Run(context.Background(), tasks)
	assert.Equal(t, "inv-1", summary.InvocationID)
	assert.Equal(t, int32(6), atomic.LoadInt32(&adapter.calls))

	recs, err := catalog.List(context.Background(), models.RunFilter{})
	require.NoError(t, err)
	require.Len(t, recs, 6)
	for i, r := range recs {
		assert.Equal(t, fmt.Sprintf("S%d", i), r.SeriesID)
		assert.Equal(t, models.VerdictPass, r.Verdict)
	}
}
