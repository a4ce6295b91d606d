package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/trellis/pkg/metrics"
	"github.com/Ramsey-B/trellis/pkg/models"
	"github.com/Ramsey-B/trellis/pkg/tracing"
)

// ReportCache caches computed funnel reports per tenant and date range. A
// cache failure is never surfaced to the report caller; the report is simply
// recomputed.
type ReportCache struct {
	client *Client
	ttl    time.Duration
	logger ectologger.Logger
}

// NewReportCache creates a report cache with the given TTL.
func NewReportCache(client *Client, ttl time.Duration, logger ectologger.Logger) *ReportCache {
	return &ReportCache{
		client: client,
		ttl:    ttl,
		logger: logger,
	}
}

func reportKey(tenantID, rangeKey string) string {
	return fmt.Sprintf("trellis:report:%s:%s", tenantID, rangeKey)
}

// Get returns the cached report for the tenant and range, if present.
func (c *ReportCache) Get(ctx context.Context, tenantID, rangeKey string) (*models.FunnelReport, bool) {
	ctx, span := tracing.StartSpan(ctx, "redis.ReportCache.Get")
	defer span.End()

	raw, err := c.client.Get(ctx, reportKey(tenantID, rangeKey))
	if err != nil {
		if !IsNil(err) {
			c.logger.WithContext(ctx).WithError(err).Warn("Report cache read failed")
		}
		metrics.ReportCacheHitsTotal.WithLabelValues("miss").Inc()
		return nil, false
	}

	var report models.FunnelReport
	if err := json.Unmarshal([]byte(raw), &report); err != nil {
		c.logger.WithContext(ctx).WithError(err).Warn("Report cache entry is corrupt")
		metrics.ReportCacheHitsTotal.WithLabelValues("miss").Inc()
		return nil, false
	}

	metrics.ReportCacheHitsTotal.WithLabelValues("hit").Inc()
	return &report, true
}

// Set stores a computed report.
func (c *ReportCache) Set(ctx context.Context, tenantID, rangeKey string, report *models.FunnelReport) {
	ctx, span := tracing.StartSpan(ctx, "redis.ReportCache.Set")
	defer span.End()

	data, err := json.Marshal(report)
	if err != nil {
		c.logger.WithContext(ctx).WithError(err).Warn("Failed to marshal report for cache")
		return
	}

	if err := c.client.Set(ctx, reportKey(tenantID, rangeKey), data, c.ttl); err != nil {
		c.logger.WithContext(ctx).WithError(err).Warn("Report cache write failed")
	}
}

// Invalidate drops every cached report for the tenant.
func (c *ReportCache) Invalidate(ctx context.Context, tenantID string) error {
	ctx, span := tracing.StartSpan(ctx, "redis.ReportCache.Invalidate")
	defer span.End()

	return c.client.DelPattern(ctx, reportKey(tenantID, "*"))
}
