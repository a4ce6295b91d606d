package sideeffects

import (
	"context"
	"fmt"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/trellis/pkg/dispatch"
	"github.com/Ramsey-B/trellis/pkg/models"
	"github.com/Ramsey-B/trellis/pkg/tracing"
)

// ActivityWriter is the slice of the activity repository the subscriber needs.
type ActivityWriter interface {
	Insert(ctx context.Context, tenantID, dealID, description, link string) (*models.ActivityEntry, error)
}

// ActivitySubscriber writes one human-readable log line per stage transition,
// with a deep link back to the deal. Pure reorders and field edits are not
// activity.
type ActivitySubscriber struct {
	activities  ActivityWriter
	linkBaseURL string
	logger      ectologger.Logger
}

func NewActivitySubscriber(activities ActivityWriter, linkBaseURL string, logger ectologger.Logger) *ActivitySubscriber {
	return &ActivitySubscriber{
		activities:  activities,
		linkBaseURL: linkBaseURL,
		logger:      logger,
	}
}

// Name implements dispatch.Subscriber.
func (s *ActivitySubscriber) Name() string {
	return "activity-log"
}

// Handle implements dispatch.Subscriber.
func (s *ActivitySubscriber) Handle(ctx context.Context, event dispatch.Event) error {
	if event.Kind != dispatch.KindStageChanged {
		return nil
	}

	ctx, span := tracing.StartSpan(ctx, "sideeffects.ActivitySubscriber.Handle")
	defer span.End()

	description := fmt.Sprintf(
		"Deal for %s on %q moved from %s to %s",
		event.Deal.ClientName, event.Deal.PropertyTitle, event.FromStage, event.ToStage,
	)
	link := fmt.Sprintf("%s/%s", s.linkBaseURL, event.DealID)

	if _, err := s.activities.Insert(ctx, event.TenantID, event.DealID, description, link); err != nil {
		return err
	}

	s.logger.WithContext(ctx).WithFields(map[string]any{
		"deal_id":    event.DealID,
		"tenant_id":  event.TenantID,
		"from_stage": string(event.FromStage),
		"to_stage":   string(event.ToStage),
	}).Debug("Recorded stage change activity")
	return nil
}
