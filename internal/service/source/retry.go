package source

import (
	"context"
	"math/rand"
	"time"

	"RiskLab/internal/domain/models"
	domrepo "RiskLab/internal/domain/repository"
	svcmetrics "RiskLab/internal/service/metrics"
	applogger "RiskLab/pkg/logger"
)

// RetryPolicy bounds retries of transient failures.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// Retrying retries transient FetchErrors with exponential backoff and jitter.
type Retrying struct {
	next     domrepo.SourceAdapter
	provider models.Provider
	policy   RetryPolicy
	metrics  *svcmetrics.SourceMetrics
	log      *applogger.Logger
	sleep    func(ctx context.Context, d time.Duration) error
}

// NewRetrying wraps next. metrics and l may be nil.
func NewRetrying(next domrepo.SourceAdapter, p models.Provider, policy RetryPolicy, metrics *svcmetrics.SourceMetrics, l *applogger.Logger) *Retrying {
	if policy.MaxAttempts < 1 {
		policy.MaxAttempts = 1
	}
	if l == nil {
		l = applogger.Nop()
	}
	return &Retrying{next: next, provider: p, policy: policy, metrics: metrics, log: l, sleep: sleepCtx}
}

func (r *Retrying) Fetch(ctx context.Context, seriesID string, start, end time.Time) (*models.RawTable, error) {
	var err error
	for attempt := 1; ; attempt++ {
		began := time.Now()
		var raw *models.RawTable
		raw, err = r.next.Fetch(ctx, seriesID, start, end)
		r.metrics.ObserveFetch(string(r.provider), outcome(err), time.Since(began).Seconds())
		if err == nil {
			return raw, nil
		}
		if !models.IsTransient(err) || attempt >= r.policy.MaxAttempts {
			return nil, err
		}

		delay := r.backoff(attempt)
		r.log.Warn("transient fetch failure, retrying",
			applogger.String("provider", string(r.provider)),
			applogger.String("series_id", seriesID),
			applogger.Int("attempt", attempt),
			applogger.Duration("delay_ms", delay),
			applogger.Error(err),
		)
		r.metrics.RecordRetry(string(r.provider))
		if serr := r.sleep(ctx, delay); serr != nil {
			return nil, ClassifyError(r.provider, seriesID, serr)
		}
	}
}

// backoff is base * 2^(attempt-1), capped, with up to 20% jitter.
func (r *Retrying) backoff(attempt int) time.Duration {
	d := r.policy.BaseDelay << (attempt - 1)
	if r.policy.MaxDelay > 0 && (d > r.policy.MaxDelay || d <= 0) {
		d = r.policy.MaxDelay
	}
	if d > 0 {
		d += time.Duration(rand.Int63n(int64(d)/5 + 1))
	}
	return d
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case models.IsTransient(err):
		return "transient"
	default:
		return "permanent"
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
