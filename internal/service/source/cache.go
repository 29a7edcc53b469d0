package source

import (
	"context"
	"encoding/json"
	"time"

	"RiskLab/internal/domain/models"
	domrepo "RiskLab/internal/domain/repository"
	"RiskLab/internal/service/cache"
	svcmetrics "RiskLab/internal/service/metrics"
	applogger "RiskLab/pkg/logger"
	"RiskLab/pkg/util"
)

// Cached serves repeated fetches of the same window from a BytesCache.
// Cache failures degrade to a direct fetch.
type Cached struct {
	next     domrepo.SourceAdapter
	provider models.Provider
	cache    cache.BytesCache
	ttl      time.Duration
	metrics  *svcmetrics.SourceMetrics
	log      *applogger.Logger
}

// NewCached wraps next. metrics and l may be nil.
func NewCached(next domrepo.SourceAdapter, p models.Provider, c cache.BytesCache, ttl time.Duration, metrics *svcmetrics.SourceMetrics, l *applogger.Logger) *Cached {
	if l == nil {
		l = applogger.Nop()
	}
	return &Cached{next: next, provider: p, cache: c, ttl: ttl, metrics: metrics, log: l}
}

// CacheKey identifies a fetch window.
func CacheKey(p models.Provider, seriesID string, start, end time.Time) string {
	return "src:" + string(p) + ":" + util.SanitizeKey(seriesID) + ":" + util.RangeSignature(start, end)
}

func (c *Cached) Fetch(ctx context.Context, seriesID string, start, end time.Time) (*models.RawTable, error) {
	key := CacheKey(c.provider, seriesID, start, end)

	b, ok, err := c.cache.GetBytes(ctx, key)
	if err != nil {
		c.log.Warn("source cache read failed", applogger.String("key", key), applogger.Error(err))
	}
	if ok {
		var raw models.RawTable
		if jerr := json.Unmarshal(b, &raw); jerr == nil {
			c.metrics.RecordCache(string(c.provider), true)
			return &raw, nil
		}
	}
	c.metrics.RecordCache(string(c.provider), false)

	raw, err := c.next.Fetch(ctx, seriesID, start, end)
	if err != nil {
		return nil, err
	}
	if b, err := json.Marshal(raw); err == nil {
		if err := c.cache.SetBytes(ctx, key, b, c.ttl); err != nil {
			c.log.Warn("source cache write failed", applogger.String("key", key), applogger.Error(err))
		}
	}
	return raw, nil
}
