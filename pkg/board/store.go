// Package board holds the in-memory funnel board: the authoritative deal
// store and the pipeline engine that is the only writer of (stage, position).
package board

import (
	"fmt"
	"sort"
	"time"

	"github.com/Ramsey-B/trellis/pkg/models"
	"github.com/Ramsey-B/trellis/pkg/stages"
)

// Store is the authoritative in-memory state of one tenant's funnel board:
// every deal keyed by id, plus one ordered column of deal ids per stage.
// Single logical writer; reads may run concurrently through the engine's
// read lock. Invariant: every deal id appears in exactly one column.
type Store struct {
	registry *stages.Registry
	deals    map[string]*models.Deal
	columns  map[models.Stage][]string
}

// NewStore creates an empty store with one column per registered stage.
func NewStore(registry *stages.Registry) *Store {
	s := &Store{
		registry: registry,
		deals:    make(map[string]*models.Deal),
		columns:  make(map[models.Stage][]string),
	}
	for _, stage := range registry.All() {
		s.columns[stage] = []string{}
	}
	return s
}

// Hydrate loads persisted deals into an empty store, ordering each column by
// the stored position. Deals in unknown stages are rejected so a bad row
// cannot corrupt the board.
func (s *Store) Hydrate(deals []models.Deal) error {
	byStage := make(map[models.Stage][]models.Deal)
	for _, deal := range deals {
		if !s.registry.Contains(deal.Stage) {
			return fmt.Errorf("%w: deal %s has stage %q", stages.ErrUnknownStage, deal.ID, deal.Stage)
		}
		byStage[deal.Stage] = append(byStage[deal.Stage], deal)
	}

	for stage, stageDeals := range byStage {
		sort.SliceStable(stageDeals, func(i, j int) bool {
			return stageDeals[i].Position < stageDeals[j].Position
		})
		for i := range stageDeals {
			deal := stageDeals[i]
			deal.Position = len(s.columns[stage])
			s.deals[deal.ID] = &deal
			s.columns[stage] = append(s.columns[stage], deal.ID)
		}
	}
	return nil
}

// get returns the live record. Callers must hold the engine lock.
func (s *Store) get(id string) (*models.Deal, error) {
	deal, ok := s.deals[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return deal, nil
}

// Get returns a copy of the deal.
func (s *Store) Get(id string) (models.Deal, error) {
	deal, err := s.get(id)
	if err != nil {
		return models.Deal{}, err
	}
	return *deal, nil
}

// ColumnOf returns a copy of the ordered deal ids in the stage's column.
func (s *Store) ColumnOf(stage models.Stage) ([]string, error) {
	column, ok := s.columns[stage]
	if !ok {
		return nil, fmt.Errorf("%w: %q", stages.ErrUnknownStage, stage)
	}
	out := make([]string, len(column))
	copy(out, column)
	return out, nil
}

// append places a new deal at the end of its stage's column.
func (s *Store) append(deal *models.Deal) {
	deal.Position = len(s.columns[deal.Stage])
	s.deals[deal.ID] = deal
	s.columns[deal.Stage] = append(s.columns[deal.Stage], deal.ID)
}

// renumber rewrites Position for every deal in the column to match its index.
func (s *Store) renumber(stage models.Stage) {
	for i, id := range s.columns[stage] {
		s.deals[id].Position = i
	}
}

// Snapshot is an immutable point-in-time view of all deals' stage
// memberships, the sole input to funnel analytics.
type Snapshot struct {
	TakenAt time.Time
	Deals   []SnapshotDeal
}

// SnapshotDeal carries the fields analytics needs about one deal.
type SnapshotDeal struct {
	ID        string
	Stage     models.Stage
	CreatedAt time.Time
}

// snapshot copies current stage membership. Callers must hold at least the
// engine read lock.
func (s *Store) snapshot() Snapshot {
	snap := Snapshot{
		TakenAt: time.Now().UTC(),
		Deals:   make([]SnapshotDeal, 0, len(s.deals)),
	}
	for _, deal := range s.deals {
		snap.Deals = append(snap.Deals, SnapshotDeal{
			ID:        deal.ID,
			Stage:     deal.Stage,
			CreatedAt: deal.CreatedAt,
		})
	}
	return snap
}
