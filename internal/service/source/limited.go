package source

import (
	"context"
	"time"

	"RiskLab/internal/domain/models"
	domrepo "RiskLab/internal/domain/repository"
	"RiskLab/internal/service/ratelimit"
)

// RateLimited throttles calls to next using a per-provider token bucket.
type RateLimited struct {
	next     domrepo.SourceAdapter
	provider models.Provider
	limiter  *ratelimit.Limiter
}

// NewRateLimited wraps next.
func NewRateLimited(next domrepo.SourceAdapter, p models.Provider, l *ratelimit.Limiter) *RateLimited {
	return &RateLimited{next: next, provider: p, limiter: l}
}

func (r *RateLimited) Fetch(ctx context.Context, seriesID string, start, end time.Time) (*models.RawTable, error) {
	if err := r.limiter.Wait(ctx, string(r.provider)); err != nil {
		return nil, ClassifyError(r.provider, seriesID, err)
	}
	return r.next.Fetch(ctx, seriesID, start, end)
}
