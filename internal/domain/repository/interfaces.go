package repository

import (
	"context"
	"time"

	"RiskLab/internal/domain/models"
)

// SourceAdapter fetches provider-native data for one series window.
type SourceAdapter interface {
	Fetch(ctx context.Context, seriesID string, start, end time.Time) (*models.RawTable, error)
}

// SourceResolver returns the adapter serving a provider.
type SourceResolver interface {
	Adapter(p models.Provider) (SourceAdapter, error)
}

// ArtifactStore persists raw and standardized tables at deterministic paths.
type ArtifactStore interface {
	WriteRaw(ctx context.Context, t *models.RawTable, req models.SeriesRequest, runTS time.Time) (string, error)
	WriteStandardized(ctx context.Context, t *models.StandardTable, req models.SeriesRequest, runTS time.Time) (string, error)
}

// Catalog is the append-only run ledger.
type Catalog interface {
	Append(ctx context.Context, rec models.RunRecord) error
	List(ctx context.Context, f models.RunFilter) ([]models.RunRecord, error)
	Get(ctx context.Context, runID string) (models.RunRecord, bool, error)
}

// RunPublisher announces appended run records.
type RunPublisher interface {
	PublishRun(ctx context.Context, rec models.RunRecord) error
	Close() error
}

// SeriesSink mirrors standardized observations into a warehouse.
type SeriesSink interface {
	Init(ctx context.Context) error
	UpsertSeries(ctx context.Context, runID string, t *models.StandardTable) error
	Health(ctx context.Context) error
	Close() error
}

// Metrics records pipeline telemetry.
type Metrics interface {
	RecordRun(provider, verdict string)
	RecordStage(stage string, seconds float64)
	RecordRows(seriesID string, rows int)
	RecordIssue(stage, severity string)
	RecordError(kind string)
}

// Clock supplies "now" to the validator and the orchestrator.
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a function to Clock.
type ClockFunc func() time.Time

func (f ClockFunc) Now() time.Time { return f() }

// SystemClock returns the wall clock in UTC.
var SystemClock Clock = ClockFunc(func() time.Time { return time.Now().UTC() })
