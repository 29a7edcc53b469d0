package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"RiskLab/internal/domain/models"
	domrepo "RiskLab/internal/domain/repository"
	applogger "RiskLab/pkg/logger"
	"RiskLab/pkg/util"
)

// PipelineOption configures Pipeline.
type PipelineOption func(*Pipeline)

// WithSeriesSink mirrors stored tables into a warehouse. Sink failures are logged only.
func WithSeriesSink(s domrepo.SeriesSink) PipelineOption {
	return func(p *Pipeline) { p.sink = s }
}

// WithRunPublisher announces appended records. Publish failures are logged only.
func WithRunPublisher(pub domrepo.RunPublisher) PipelineOption {
	return func(p *Pipeline) { p.publisher = pub }
}

// WithPipelineMetrics sets the telemetry recorder.
func WithPipelineMetrics(m domrepo.Metrics) PipelineOption {
	return func(p *Pipeline) { p.metrics = m }
}

// WithClock injects the time source used for run ids and freshness.
func WithClock(c domrepo.Clock) PipelineOption {
	return func(p *Pipeline) { p.clock = c }
}

// WithPipelineLogger sets the logger.
func WithPipelineLogger(l *applogger.Logger) PipelineOption {
	return func(p *Pipeline) { p.l = l }
}

// WithFetchConcurrency lets up to n fetches run at once. Everything after the
// fetch stays sequential in task order.
func WithFetchConcurrency(n int) PipelineOption {
	return func(p *Pipeline) { p.fetchConcurrency = n }
}

// WithTracer overrides the global tracer.
func WithTracer(t trace.Tracer) PipelineOption {
	return func(p *Pipeline) { p.tracer = t }
}

// WithInvocationIDs overrides the invocation id generator.
func WithInvocationIDs(f func() string) PipelineOption {
	return func(p *Pipeline) { p.newID = f }
}

// Pipeline drives fetch, normalize, validate, store and catalog for each series.
// A failing series is recorded as FAIL and never aborts the invocation.
type Pipeline struct {
	sources    domrepo.SourceResolver
	store      domrepo.ArtifactStore
	catalog    domrepo.Catalog
	normalizer *Normalizer
	validator  *Validator

	sink      domrepo.SeriesSink
	publisher domrepo.RunPublisher
	metrics   domrepo.Metrics
	clock     domrepo.Clock
	l         *applogger.Logger
	tracer    trace.Tracer
	newID     func() string

	fetchConcurrency int
}

// NewPipeline wires the mandatory collaborators.
func NewPipeline(sources domrepo.SourceResolver, store domrepo.ArtifactStore, catalog domrepo.Catalog, opts ...PipelineOption) *Pipeline {
	p := &Pipeline{
		sources:          sources,
		store:            store,
		catalog:          catalog,
		normalizer:       NewNormalizer(),
		metrics:          noopMetrics{},
		clock:            domrepo.SystemClock,
		l:                applogger.Nop(),
		newID:            uuid.NewString,
		fetchConcurrency: 1,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.tracer == nil {
		p.tracer = otel.Tracer("RiskLab/internal/usecase")
	}
	if p.fetchConcurrency < 1 {
		p.fetchConcurrency = 1
	}
	p.validator = NewValidator(p.clock)
	return p
}

type fetchResult struct {
	raw *models.RawTable
	err error
	dur time.Duration
}

// Run processes tasks in order and returns the invocation summary.
func (p *Pipeline) Run(ctx context.Context, tasks []models.SeriesTask) *models.RunSummary {
	summary := &models.RunSummary{InvocationID: p.newID(), StartedAt: p.clock.Now()}
	log := p.l.With(applogger.String("invocation_id", summary.InvocationID))
	log.Info("ingestion started", applogger.Int("series", len(tasks)))

	ctx, span := p.tracer.Start(ctx, "ingest.run", trace.WithAttributes(
		attribute.String("invocation_id", summary.InvocationID),
		attribute.Int("series", len(tasks)),
	))
	defer span.End()

	var prefetched []*fetchResult
	if p.fetchConcurrency > 1 && len(tasks) > 1 {
		prefetched = p.prefetch(ctx, tasks)
	}

	for i, task := range tasks {
		var pre *fetchResult
		if prefetched != nil {
			pre = prefetched[i]
		}
		summary.Outcomes = append(summary.Outcomes, p.process(ctx, summary.InvocationID, task, pre))
	}
	summary.Elapsed = p.clock.Now().Sub(summary.StartedAt)

	pass, warn, fail := summary.Counts()
	log.Info("ingestion finished",
		applogger.Int("pass", pass),
		applogger.Int("warn", warn),
		applogger.Int("fail", fail),
		applogger.Duration("elapsed_ms", summary.Elapsed),
	)
	if fail > 0 {
		span.SetStatus(codes.Error, "series failed")
	}
	return summary
}

// CheckSink health-checks the warehouse mirror. An unhealthy mirror is detached for
// the rest of the invocation and the error is returned for reporting.
func (p *Pipeline) CheckSink(ctx context.Context) error {
	if p.sink == nil {
		return nil
	}
	if err := p.sink.Health(ctx); err != nil {
		p.l.Warn("warehouse mirror unhealthy, mirroring disabled", applogger.Error(err))
		p.sink = nil
		return fmt.Errorf("series sink health: %w", err)
	}
	return nil
}

func (p *Pipeline) prefetch(ctx context.Context, tasks []models.SeriesTask) []*fetchResult {
	out := make([]*fetchResult, len(tasks))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.fetchConcurrency)
	for i, task := range tasks {
		g.Go(func() error {
			out[i] = p.fetch(gctx, task)
			return nil
		})
	}
	_ = g.Wait()
	return out
}

func (p *Pipeline) fetch(ctx context.Context, task models.SeriesTask) *fetchResult {
	start := time.Now()
	req := task.Request
	adapter, err := p.sources.Adapter(req.Provider)
	if err != nil {
		return &fetchResult{err: err, dur: time.Since(start)}
	}
	raw, err := adapter.Fetch(ctx, req.SeriesID, req.Start, req.End)
	return &fetchResult{raw: raw, err: err, dur: time.Since(start)}
}

// seriesRun carries the state of one series through the stages.
type seriesRun struct {
	invocationID string
	task         models.SeriesTask
	runTS        time.Time
	outcome      models.SeriesOutcome
	table        *models.StandardTable
	report       *models.ValidationReport
	log          *applogger.Logger
}

func (p *Pipeline) process(ctx context.Context, invocationID string, task models.SeriesTask, pre *fetchResult) models.SeriesOutcome {
	req := task.Request
	runTS := p.clock.Now()
	r := &seriesRun{
		invocationID: invocationID,
		task:         task,
		runTS:        runTS,
		outcome: models.SeriesOutcome{
			SeriesID: req.SeriesID,
			Provider: req.Provider,
			RunID:    models.NewRunID(req.SeriesID, runTS),
		},
	}
	r.log = p.l.With(
		applogger.String("invocation_id", invocationID),
		applogger.String("run_id", r.outcome.RunID),
		applogger.String("series_id", req.SeriesID),
		applogger.String("provider", string(req.Provider)),
	)

	ctx, span := p.tracer.Start(ctx, "ingest.series", trace.WithAttributes(
		attribute.String("series_id", req.SeriesID),
		attribute.String("provider", string(req.Provider)),
		attribute.String("run_id", r.outcome.RunID),
	))
	defer span.End()

	if err := req.Validate(); err != nil {
		return p.fail(ctx, r, models.StageFetching, err)
	}

	// FETCHING
	r.outcome.State = models.StageFetching
	res := pre
	if res == nil {
		res = p.fetch(ctx, task)
	}
	p.metrics.RecordStage(string(models.StageFetching), res.dur.Seconds())
	if res.err != nil {
		return p.fail(ctx, r, models.StageFetching, res.err)
	}
	raw := res.raw
	r.log.Info("stage done", applogger.String("stage", string(models.StageFetching)), applogger.Duration("duration_ms", res.dur))

	// NORMALIZING
	r.outcome.State = models.StageNormalizing
	err := p.stage(ctx, r.log, models.StageNormalizing, func(context.Context) error {
		t, err := p.normalizer.Normalize(raw, task.Spec)
		r.table = t
		return err
	})
	if err != nil {
		return p.fail(ctx, r, models.StageNormalizing, err)
	}
	r.outcome.RowCount = r.table.Len()
	p.metrics.RecordRows(req.SeriesID, r.table.Len())

	// VALIDATING
	r.outcome.State = models.StageValidating
	_ = p.stage(ctx, r.log, models.StageValidating, func(context.Context) error {
		r.report = p.validator.Validate(r.table, req, task.Policy)
		return nil
	})
	for _, is := range r.report.Issues {
		p.metrics.RecordIssue(string(is.Stage), string(is.Severity))
	}
	r.outcome.ErrorIssues = r.report.Errors()
	if r.report.Verdict == models.VerdictFail {
		r.log.Warn("validation failed", applogger.Int("errors", len(r.outcome.ErrorIssues)))
	} else if n := len(r.report.Issues); n > 0 {
		r.log.Warn("validation warnings", applogger.Int("warnings", n))
	}

	// STORING
	r.outcome.State = models.StageStoring
	err = p.stage(ctx, r.log, models.StageStoring, func(ctx context.Context) error {
		path, err := p.store.WriteRaw(ctx, raw, req, runTS)
		if err != nil {
			return err
		}
		r.outcome.ArtifactPaths.Raw = path
		path, err = p.store.WriteStandardized(ctx, r.table, req, runTS)
		if err != nil {
			return err
		}
		r.outcome.ArtifactPaths.Standardized = path
		return nil
	})
	if err != nil {
		return p.fail(ctx, r, models.StageStoring, err)
	}
	p.mirror(ctx, r)

	// CATALOGING
	r.outcome.State = models.StageCataloging
	rec := p.record(r, r.report.Verdict, "", "")
	err = p.stage(ctx, r.log, models.StageCataloging, func(ctx context.Context) error {
		return p.catalog.Append(ctx, rec)
	})
	if err != nil {
		r.outcome.Verdict = models.VerdictFail
		r.outcome.State = models.StageFailed
		r.outcome.FailedStage = models.StageCataloging
		r.outcome.Error = (&models.StageError{Stage: models.StageCataloging, Err: err}).Error()
		p.metrics.RecordError(strings.ToLower(string(models.StageCataloging)))
		p.metrics.RecordRun(string(req.Provider), string(models.VerdictFail))
		r.log.Error("catalog append failed", applogger.Error(err))
		return r.outcome
	}
	r.outcome.Cataloged = true
	p.announce(ctx, r, rec)

	r.outcome.State = models.StageDone
	r.outcome.Verdict = r.report.Verdict
	p.metrics.RecordRun(string(req.Provider), string(r.outcome.Verdict))
	r.log.Info("series ingested",
		applogger.String("verdict", string(r.outcome.Verdict)),
		applogger.Int("rows", r.outcome.RowCount),
		applogger.String("standardized", r.outcome.ArtifactPaths.Standardized),
	)
	return r.outcome
}

// stage runs fn under a span and records its duration.
func (p *Pipeline) stage(ctx context.Context, log *applogger.Logger, st models.PipelineStage, fn func(context.Context) error) error {
	ctx, span := p.tracer.Start(ctx, "ingest."+strings.ToLower(string(st)))
	defer span.End()
	start := time.Now()
	err := fn(ctx)
	dur := time.Since(start)
	p.metrics.RecordStage(string(st), dur.Seconds())
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	log.Info("stage done", applogger.String("stage", string(st)), applogger.Duration("duration_ms", dur))
	return nil
}

// fail records a FAIL entry for a stage failure. Paths of artifacts already
// written are kept; the others stay empty.
func (p *Pipeline) fail(ctx context.Context, r *seriesRun, st models.PipelineStage, err error) models.SeriesOutcome {
	serr := &models.StageError{Stage: st, Err: err}
	r.outcome.Verdict = models.VerdictFail
	r.outcome.State = models.StageFailed
	r.outcome.FailedStage = st
	r.outcome.Error = serr.Error()
	if r.report != nil {
		r.outcome.ErrorIssues = r.report.Errors()
	}

	kind := strings.ToLower(string(st))
	var fe *models.FetchError
	if st == models.StageFetching && errors.As(err, &fe) {
		kind = "fetch_" + string(fe.Kind)
	}
	p.metrics.RecordError(kind)
	p.metrics.RecordRun(string(r.task.Request.Provider), string(models.VerdictFail))
	r.log.Error("series failed",
		applogger.String("stage", string(st)),
		applogger.Error(err),
	)

	rec := p.record(r, models.VerdictFail, st, serr.Error())
	if aerr := p.catalog.Append(ctx, rec); aerr != nil {
		r.log.Error("catalog append failed", applogger.Error(aerr))
		return r.outcome
	}
	r.outcome.Cataloged = true
	p.announce(ctx, r, rec)
	return r.outcome
}

func (p *Pipeline) record(r *seriesRun, verdict models.Verdict, failed models.PipelineStage, msg string) models.RunRecord {
	req := r.task.Request
	rec := models.RunRecord{
		RunID:         r.outcome.RunID,
		InvocationID:  r.invocationID,
		SeriesID:      req.SeriesID,
		Provider:      req.Provider,
		StartDate:     util.FormatDate(req.Start),
		EndDate:       util.FormatDate(req.End),
		RowCount:      r.table.Len(),
		Verdict:       verdict,
		ArtifactPaths: r.outcome.ArtifactPaths,
		CreatedAt:     r.runTS.UTC(),
		FailedStage:   failed,
		Error:         msg,
	}
	if r.report != nil {
		rec.IssuesSummary = r.report.Summary()
	}
	return rec
}

func (p *Pipeline) mirror(ctx context.Context, r *seriesRun) {
	if p.sink == nil {
		return
	}
	if err := p.sink.UpsertSeries(ctx, r.outcome.RunID, r.table); err != nil {
		p.metrics.RecordError("sink")
		r.log.Warn("warehouse mirror failed", applogger.Error(err))
	}
}

func (p *Pipeline) announce(ctx context.Context, r *seriesRun, rec models.RunRecord) {
	if p.publisher == nil {
		return
	}
	if err := p.publisher.PublishRun(ctx, rec); err != nil {
		p.metrics.RecordError("publish")
		r.log.Warn("run publish failed", applogger.Error(err))
	}
}

type noopMetrics struct{}

func (noopMetrics) RecordRun(string, string) {}
func (noopMetrics) RecordStage(string, float64) {}
func (noopMetrics) RecordRows(string, int) {}
func (noopMetrics) RecordIssue(string, string) {}
func (noopMetrics) RecordError(string) {}
