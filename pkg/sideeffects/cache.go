package sideeffects

import (
	"context"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/trellis/pkg/dispatch"
)

// ReportInvalidator is the slice of the report cache the subscriber needs.
type ReportInvalidator interface {
	Invalidate(ctx context.Context, tenantID string) error
}

// CacheInvalidator drops a tenant's cached funnel reports whenever the funnel
// composition changes. Reorders and field edits leave the counts untouched, so
// they keep the cache.
type CacheInvalidator struct {
	cache  ReportInvalidator
	logger ectologger.Logger
}

func NewCacheInvalidator(cache ReportInvalidator, logger ectologger.Logger) *CacheInvalidator {
	return &CacheInvalidator{
		cache:  cache,
		logger: logger,
	}
}

// Name implements dispatch.Subscriber.
func (s *CacheInvalidator) Name() string {
	return "report-cache-invalidator"
}

// Handle implements dispatch.Subscriber.
func (s *CacheInvalidator) Handle(ctx context.Context, event dispatch.Event) error {
	switch event.Kind {
	case dispatch.KindStageChanged, dispatch.KindDealCreated:
		return s.cache.Invalidate(ctx, event.TenantID)
	default:
		return nil
	}
}
