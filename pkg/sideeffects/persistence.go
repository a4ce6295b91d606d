// Package sideeffects holds the dispatcher subscribers that catch durable and
// auxiliary state up to the in-memory board after a commit.
package sideeffects

import (
	"context"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/trellis/pkg/dispatch"
	"github.com/Ramsey-B/trellis/pkg/models"
	"github.com/Ramsey-B/trellis/pkg/tracing"
)

// DealWriter is the slice of the deal repository the persistence subscriber
// needs.
type DealWriter interface {
	Insert(ctx context.Context, deal models.Deal) error
	UpdateFields(ctx context.Context, deal models.Deal) error
	UpdatePlacement(ctx context.Context, tenantID string, deal models.Deal, columns map[models.Stage][]string) error
}

// PersistenceSubscriber mirrors every committed event into Postgres. It runs
// after the move has already been accepted; a write failure here is logged and
// retried on the next event touching the same columns, never propagated to the
// caller.
type PersistenceSubscriber struct {
	deals  DealWriter
	logger ectologger.Logger
}

func NewPersistenceSubscriber(deals DealWriter, logger ectologger.Logger) *PersistenceSubscriber {
	return &PersistenceSubscriber{
		deals:  deals,
		logger: logger,
	}
}

// Name implements dispatch.Subscriber.
func (s *PersistenceSubscriber) Name() string {
	return "persistence"
}

// Handle implements dispatch.Subscriber.
func (s *PersistenceSubscriber) Handle(ctx context.Context, event dispatch.Event) error {
	ctx, span := tracing.StartSpan(ctx, "sideeffects.PersistenceSubscriber.Handle")
	defer span.End()

	switch event.Kind {
	case dispatch.KindDealCreated:
		return s.deals.Insert(ctx, event.Deal)
	case dispatch.KindFieldsEdited:
		return s.deals.UpdateFields(ctx, event.Deal)
	case dispatch.KindStageChanged, dispatch.KindReordered:
		return s.deals.UpdatePlacement(ctx, event.TenantID, event.Deal, placementColumns(event))
	default:
		return nil
	}
}

// placementColumns maps the event's committed id lists onto their stages. A
// stage change carries both affected columns; a reorder only the destination.
func placementColumns(event dispatch.Event) map[models.Stage][]string {
	columns := map[models.Stage][]string{
		event.Deal.Stage: event.DestColumn,
	}
	if event.Kind == dispatch.KindStageChanged {
		columns[event.FromStage] = event.SourceColumn
	}
	return columns
}
