// Package events bridges committed pipeline events onto the Kafka stream.
package events

import (
	"context"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/trellis/pkg/dispatch"
	"github.com/Ramsey-B/trellis/pkg/kafka"
	"github.com/Ramsey-B/trellis/pkg/tracing"
)

// Emitter publishes stage transitions as deal events. It subscribes to the
// side-effect dispatcher; pure reorders never reach Kafka.
type Emitter struct {
	producer *kafka.Producer
	logger   ectologger.Logger
}

// NewEmitter creates a new event emitter
func NewEmitter(producer *kafka.Producer, logger ectologger.Logger) *Emitter {
	return &Emitter{
		producer: producer,
		logger:   logger,
	}
}

// Name implements dispatch.Subscriber.
func (e *Emitter) Name() string {
	return "kafka-emitter"
}

// Handle implements dispatch.Subscriber.
func (e *Emitter) Handle(ctx context.Context, event dispatch.Event) error {
	switch event.Kind {
	case dispatch.KindStageChanged:
		return e.emitStageChanged(ctx, event)
	case dispatch.KindDealCreated:
		return e.emitCreated(ctx, event)
	default:
		return nil
	}
}

func (e *Emitter) emitStageChanged(ctx context.Context, event dispatch.Event) error {
	ctx, span := tracing.StartSpan(ctx, "events.Emitter.emitStageChanged")
	defer span.End()

	dealEvent := &kafka.DealEvent{
		EventType: string(dispatch.KindStageChanged),
		TenantID:  event.TenantID,
		DealID:    event.DealID,
		FromStage: string(event.FromStage),
		ToStage:   string(event.ToStage),
		Position:  event.Deal.Position,
		Timestamp: event.CommittedAt,
	}

	if err := e.producer.PublishDealEvent(ctx, dealEvent); err != nil {
		e.logger.WithContext(ctx).WithError(err).Error("Failed to emit deal.stage_changed event")
		return err
	}

	return nil
}

func (e *Emitter) emitCreated(ctx context.Context, event dispatch.Event) error {
	ctx, span := tracing.StartSpan(ctx, "events.Emitter.emitCreated")
	defer span.End()

	dealEvent := &kafka.DealEvent{
		EventType: string(dispatch.KindDealCreated),
		TenantID:  event.TenantID,
		DealID:    event.DealID,
		ToStage:   string(event.Deal.Stage),
		Position:  event.Deal.Position,
		Timestamp: event.CommittedAt,
	}

	if err := e.producer.PublishDealEvent(ctx, dealEvent); err != nil {
		e.logger.WithContext(ctx).WithError(err).Error("Failed to emit deal.created event")
		return err
	}

	return nil
}
