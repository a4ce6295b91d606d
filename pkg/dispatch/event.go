package dispatch

import (
	"time"

	"github.com/Ramsey-B/trellis/pkg/models"
)

// Kind identifies what the pipeline engine committed.
type Kind string

const (
	// KindDealCreated is emitted when a deal is created and appended to its
	// initial column.
	KindDealCreated Kind = "deal.created"
	// KindStageChanged is emitted when a move changed the deal's stage.
	KindStageChanged Kind = "deal.stage_changed"
	// KindReordered is emitted for a pure reorder within one column. It exists
	// only so the persistence collaborator can catch up; it is not a stage
	// transition.
	KindReordered Kind = "deal.reordered"
	// KindFieldsEdited is emitted when business fields changed with no
	// placement effect.
	KindFieldsEdited Kind = "deal.fields_edited"
)

// Event is one committed change, published after the in-memory store has
// already been mutated. The engine's state is the source of truth; subscribers
// are eventually-consistent catch-up.
type Event struct {
	Kind     Kind
	TenantID string
	DealID   string

	// FromStage and ToStage are set for KindStageChanged only.
	FromStage models.Stage
	ToStage   models.Stage

	// Deal is a copy of the deal after the commit.
	Deal models.Deal

	// SourceColumn and DestColumn are the committed ordered id lists of the
	// affected columns, letting the persistence collaborator rewrite positions
	// deterministically. For same-column events only DestColumn is set.
	SourceColumn []string
	DestColumn   []string

	CommittedAt time.Time
}
