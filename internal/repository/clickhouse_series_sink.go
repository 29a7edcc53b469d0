package repository

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"RiskLab/internal/domain/models"
	pkgch "RiskLab/pkg/clickhouse"
	applogger "RiskLab/pkg/logger"
)

var identRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// insertChunk bounds the rows of one multi-row INSERT.
const insertChunk = 2000

// CHSeriesSink mirrors standardized observations into a ReplacingMergeTree.
// Rows are keyed by (series_id, column, date); the newest ingested_at wins,
// so re-ingesting a window replaces earlier values.
type CHSeriesSink struct {
	ch    *pkgch.Client
	table string
	l     *applogger.Logger
	now   func() time.Time
}

// NewCHSeriesSink builds a sink writing to table in the client's database.
func NewCHSeriesSink(ch *pkgch.Client, table string, l *applogger.Logger) (*CHSeriesSink, error) {
	if !identRe.MatchString(table) {
		return nil, fmt.Errorf("invalid clickhouse table name %q", table)
	}
	if l == nil {
		l = applogger.Nop()
	}
	return &CHSeriesSink{ch: ch, table: table, l: l, now: time.Now}, nil
}

// SchemaStatements returns the idempotent DDL of the sink.
func (s *CHSeriesSink) SchemaStatements() []string {
	return []string{fmt.Sprintf(`
        CREATE TABLE IF NOT EXISTS %s (
            series_id   LowCardinality(String),
            provider    LowCardinality(String),
            date        Date,
            column      LowCardinality(String),
            value       Nullable(Float64),
            run_id      String,
            ingested_at DateTime64(3, 'UTC')
        )
        ENGINE = ReplacingMergeTree(ingested_at)
        PARTITION BY toYear(date)
        ORDER BY (series_id, column, date)
    `, s.table)}
}

func (s *CHSeriesSink) Init(ctx context.Context) error {
	return s.ch.InitSchema(ctx, s.SchemaStatements())
}

func (s *CHSeriesSink) UpsertSeries(ctx context.Context, runID string, t *models.StandardTable) error {
	if t.Len() == 0 {
		return nil
	}
	start := time.Now()
	batches := buildInserts(s.table, runID, t, s.now().UTC())
	for _, b := range batches {
		if _, err := s.ch.DB().ExecContext(ctx, b.query, b.args...); err != nil {
			s.l.Error("clickhouse upsert_series exec error",
				applogger.String("table", s.table),
				applogger.String("series_id", t.SeriesID),
				applogger.String("run_id", runID),
				applogger.Error(err),
			)
			return fmt.Errorf("upsert series %s: %w", t.SeriesID, err)
		}
	}
	s.l.Debug("clickhouse upsert_series",
		applogger.String("series_id", t.SeriesID),
		applogger.Int("rows", t.Len()),
		applogger.Int("batches", len(batches)),
		applogger.Duration("latency_ms", time.Since(start)),
	)
	return nil
}

func (s *CHSeriesSink) Health(ctx context.Context) error {
	return s.ch.Health(ctx)
}

func (s *CHSeriesSink) Close() error {
	return s.ch.Close()
}

type insertBatch struct {
	query string
	args  []any
}

// buildInserts flattens t into long rows, one per (date, column), chunked.
func buildInserts(table, runID string, t *models.StandardTable, ingestedAt time.Time) []insertBatch {
	const cols = 7
	var out []insertBatch
	values := make([]string, 0, insertChunk)
	args := make([]any, 0, insertChunk*cols)

	flush := func() {
		if len(values) == 0 {
			return
		}
		q := fmt.Sprintf("INSERT INTO %s (series_id, provider, date, column, value, run_id, ingested_at) VALUES %s",
			table, strings.Join(values, ","))
		out = append(out, insertBatch{query: q, args: args})
		values = make([]string, 0, insertChunk)
		args = make([]any, 0, insertChunk*cols)
	}

	for i, d := range t.Dates {
		for _, c := range t.Columns {
			var v any
			if i < len(c.Values) && c.Values[i].Valid && c.Values[i].IsFinite() {
				v = c.Values[i].Float
			}
			values = append(values, "(?, ?, ?, ?, ?, ?, ?)")
			args = append(args, t.SeriesID, string(t.Provider), d, c.Name, v, runID, ingestedAt)
			if len(values) == insertChunk {
				flush()
			}
		}
	}
	flush()
	return out
}
