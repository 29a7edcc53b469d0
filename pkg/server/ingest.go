package server

import (
	"context"
	"io"
	"time"

	"RiskLab/internal/domain/models"
	"RiskLab/internal/usecase"
	"RiskLab/pkg/config"
	applogger "RiskLab/pkg/logger"
	"RiskLab/pkg/metrics"
)

const sinkHealthTimeout = 5 * time.Second

// Ingest runs one batch ingestion invocation.
type Ingest struct {
	cfg      *config.Config
	pipeline *usecase.Pipeline
	recorder *metrics.Recorder
	log      *applogger.Logger
}

// NewIngest creates the batch runner.
func NewIngest(cfg *config.Config, p *usecase.Pipeline, rec *metrics.Recorder, l *applogger.Logger) *Ingest {
	if l == nil {
		l = applogger.Nop()
	}
	return &Ingest{cfg: cfg, pipeline: p, recorder: rec, log: l}
}

// Run processes tasks, prints the summary to out and exports metrics.
// Export failures are logged and never change the outcome.
func (i *Ingest) Run(ctx context.Context, tasks []models.SeriesTask, out io.Writer) *models.RunSummary {
	i.log.Info("ingestion started", applogger.Int("series", len(tasks)))

	hctx, cancel := context.WithTimeout(ctx, sinkHealthTimeout)
	_ = i.pipeline.CheckSink(hctx)
	cancel()

	summary := i.pipeline.Run(ctx, tasks)

	if err := usecase.RenderSummary(out, summary); err != nil {
		i.log.Warn("summary render failed", applogger.Error(err))
	}
	i.export(ctx)

	i.log.Info("ingestion finished",
		applogger.String("invocation_id", summary.InvocationID),
		applogger.Int("exit_code", summary.ExitCode()),
		applogger.Duration("elapsed", summary.Elapsed),
	)
	return summary
}

func (i *Ingest) export(ctx context.Context) {
	if i.recorder == nil || !i.cfg.Metrics.Enabled {
		return
	}
	if path := i.cfg.Metrics.Textfile; path != "" {
		if err := i.recorder.WriteTextfile(path); err != nil {
			i.log.Warn("metrics textfile write failed", applogger.String("path", path), applogger.Error(err))
		}
	}
	if url := i.cfg.Metrics.PushURL; url != "" {
		if err := i.recorder.Push(ctx, url, i.cfg.Metrics.Job); err != nil {
			i.log.Warn("metrics push failed", applogger.String("url", url), applogger.Error(err))
		}
	}
}
