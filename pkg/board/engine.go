package board

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"

	"github.com/Ramsey-B/trellis/pkg/dispatch"
	"github.com/Ramsey-B/trellis/pkg/metrics"
	"github.com/Ramsey-B/trellis/pkg/models"
	"github.com/Ramsey-B/trellis/pkg/stages"
	"github.com/Ramsey-B/trellis/pkg/tracing"
)

// Hydrator loads a tenant's persisted deals when its board is first touched.
type Hydrator interface {
	LoadBoard(ctx context.Context, tenantID string) ([]models.Deal, error)
}

// Engine is the only component permitted to change a deal's (stage, position)
// pair. It owns one in-memory store per tenant and publishes committed changes
// to the side-effect dispatcher; every failed operation leaves the store
// exactly as it was.
type Engine struct {
	registry   *stages.Registry
	dispatcher *dispatch.Dispatcher
	hydrator   Hydrator
	logger     ectologger.Logger

	mu     sync.Mutex
	boards map[string]*tenantBoard
}

// tenantBoard pairs a store with its writer lock. Moves take the write lock;
// board reads and snapshots take the read lock.
type tenantBoard struct {
	mu    sync.RWMutex
	store *Store
}

// NewEngine creates a pipeline engine. The hydrator may be nil, in which case
// every tenant starts with an empty board.
func NewEngine(registry *stages.Registry, dispatcher *dispatch.Dispatcher, hydrator Hydrator, logger ectologger.Logger) *Engine {
	return &Engine{
		registry:   registry,
		dispatcher: dispatcher,
		hydrator:   hydrator,
		logger:     logger,
		boards:     make(map[string]*tenantBoard),
	}
}

// Registry exposes the canonical stage order to callers.
func (e *Engine) Registry() *stages.Registry {
	return e.registry
}

func (e *Engine) board(ctx context.Context, tenantID string) (*tenantBoard, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if b, ok := e.boards[tenantID]; ok {
		return b, nil
	}

	store := NewStore(e.registry)
	if e.hydrator != nil {
		deals, err := e.hydrator.LoadBoard(ctx, tenantID)
		if err != nil {
			return nil, err
		}
		if err := store.Hydrate(deals); err != nil {
			return nil, err
		}
		e.logger.WithContext(ctx).WithFields(map[string]any{
			"tenant_id": tenantID,
			"deals":     len(deals),
		}).Info("Hydrated funnel board")
	}

	b := &tenantBoard{store: store}
	e.boards[tenantID] = b
	return b, nil
}

// Move applies one drop gesture: remove the deal from its source column and
// insert it at the destination. Stage transitions are unrestricted in
// direction; deals reopen and proposals get revised, so backward moves and
// moves out of terminal stages are legal.
func (e *Engine) Move(ctx context.Context, tenantID string, req models.MoveRequest) (models.MoveResult, error) {
	ctx, span := tracing.StartSpan(ctx, "board.Engine.Move")
	defer span.End()

	sourceStage := models.Stage(req.SourceStage)
	destStage := models.Stage(req.DestStage)

	if !e.registry.Contains(sourceStage) {
		return models.MoveResult{}, fmt.Errorf("%w: %q", stages.ErrUnknownStage, sourceStage)
	}
	if !e.registry.Contains(destStage) {
		return models.MoveResult{}, fmt.Errorf("%w: %q", stages.ErrUnknownStage, destStage)
	}
	if req.DestIndex < 0 {
		return models.MoveResult{}, fmt.Errorf("%w: %d", ErrInvalidRange, req.DestIndex)
	}

	b, err := e.board(ctx, tenantID)
	if err != nil {
		return models.MoveResult{}, err
	}

	b.mu.Lock()
	result, event, err := e.applyMove(b.store, tenantID, req, sourceStage, destStage)
	b.mu.Unlock()

	if err != nil {
		e.recordMoveFailure(ctx, tenantID, req, err)
		return models.MoveResult{}, err
	}

	metrics.MovesTotal.WithLabelValues(tenantID, "ok").Inc()
	if event != nil {
		if event.Kind == dispatch.KindStageChanged {
			metrics.StageTransitionsTotal.WithLabelValues(tenantID, req.SourceStage, req.DestStage).Inc()
		}
		e.dispatcher.Enqueue(*event)
	}

	return result, nil
}

// applyMove validates and mutates under the board write lock. It either
// commits the whole move and returns the event to dispatch, or returns an
// error having touched nothing.
func (e *Engine) applyMove(store *Store, tenantID string, req models.MoveRequest, sourceStage, destStage models.Stage) (models.MoveResult, *dispatch.Event, error) {
	deal, err := store.get(req.DealID)
	if err != nil {
		return models.MoveResult{}, nil, err
	}

	// A negative source index can never be occupied, so it fails the same
	// staleness check as an index past the end of the column.
	sourceColumn := store.columns[sourceStage]
	if deal.Stage != sourceStage ||
		req.SourceIndex < 0 ||
		req.SourceIndex >= len(sourceColumn) ||
		sourceColumn[req.SourceIndex] != req.DealID {
		return models.MoveResult{}, nil, fmt.Errorf("%w: %s is not at %s[%d]", ErrStaleIndex, req.DealID, sourceStage, req.SourceIndex)
	}

	if sourceStage == destStage && req.SourceIndex == req.DestIndex {
		return models.MoveResult{Deal: *deal, DestIndex: req.SourceIndex, NoOp: true}, nil, nil
	}

	// Remove from source, clamp the destination to the bounds that remain.
	store.columns[sourceStage] = append(sourceColumn[:req.SourceIndex:req.SourceIndex], sourceColumn[req.SourceIndex+1:]...)
	destColumn := store.columns[destStage]
	destIndex := req.DestIndex
	if destIndex > len(destColumn) {
		destIndex = len(destColumn)
	}

	destColumn = append(destColumn, "")
	copy(destColumn[destIndex+1:], destColumn[destIndex:])
	destColumn[destIndex] = req.DealID
	store.columns[destStage] = destColumn

	stageChanged := sourceStage != destStage
	if stageChanged {
		deal.Stage = destStage
	}
	deal.UpdatedAt = time.Now().UTC()
	store.renumber(sourceStage)
	if stageChanged {
		store.renumber(destStage)
	}

	event := dispatch.Event{
		Kind:        dispatch.KindReordered,
		TenantID:    tenantID,
		DealID:      req.DealID,
		Deal:        *deal,
		DestColumn:  mustColumn(store, destStage),
		CommittedAt: deal.UpdatedAt,
	}
	if stageChanged {
		event.Kind = dispatch.KindStageChanged
		event.FromStage = sourceStage
		event.ToStage = destStage
		event.SourceColumn = mustColumn(store, sourceStage)
	}

	return models.MoveResult{Deal: *deal, StageChanged: stageChanged, DestIndex: destIndex}, &event, nil
}

func mustColumn(store *Store, stage models.Stage) []string {
	column, _ := store.ColumnOf(stage)
	return column
}

func (e *Engine) recordMoveFailure(ctx context.Context, tenantID string, req models.MoveRequest, err error) {
	result := "error"
	if isStale(err) {
		result = "stale"
		metrics.StaleConflictsTotal.WithLabelValues(tenantID).Inc()
	}
	metrics.MovesTotal.WithLabelValues(tenantID, result).Inc()
	e.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
		"tenant_id":    tenantID,
		"deal_id":      req.DealID,
		"source_stage": req.SourceStage,
		"source_index": req.SourceIndex,
		"dest_stage":   req.DestStage,
		"dest_index":   req.DestIndex,
	}).Warn("Move rejected")
}

// CreateDeal creates a deal in the caller-chosen initial stage, appended at
// the end of that column. Client and property display fields are denormalized
// onto the deal by the caller after directory lookups.
func (e *Engine) CreateDeal(ctx context.Context, tenantID string, req models.CreateDealRequest, clientName, propertyTitle string) (models.Deal, error) {
	ctx, span := tracing.StartSpan(ctx, "board.Engine.CreateDeal")
	defer span.End()

	stage := models.Stage(req.InitialStage)
	if !e.registry.Contains(stage) {
		return models.Deal{}, fmt.Errorf("%w: %q", stages.ErrUnknownStage, stage)
	}

	b, err := e.board(ctx, tenantID)
	if err != nil {
		return models.Deal{}, err
	}

	now := time.Now().UTC()
	deal := &models.Deal{
		ID:                  uuid.New().String(),
		TenantID:            tenantID,
		ClientID:            req.ClientID,
		PropertyID:          req.PropertyID,
		ClientName:          clientName,
		PropertyTitle:       propertyTitle,
		ProposalAmount:      req.ProposalAmount,
		CommissionRate:      req.CommissionRate,
		Stage:               stage,
		Priority:            req.Priority,
		RecommendedToClient: req.RecommendedToClient,
		CreatedAt:           now,
		UpdatedAt:           now,
	}

	b.mu.Lock()
	b.store.append(deal)
	created := *deal
	destColumn := mustColumn(b.store, stage)
	b.mu.Unlock()

	e.dispatcher.Enqueue(dispatch.Event{
		Kind:        dispatch.KindDealCreated,
		TenantID:    tenantID,
		DealID:      created.ID,
		Deal:        created,
		DestColumn:  destColumn,
		CommittedAt: now,
	})

	return created, nil
}

// EditFields patches a deal's business fields. Placement is never touched and
// no transition is emitted.
func (e *Engine) EditFields(ctx context.Context, tenantID, dealID string, req models.EditDealRequest) (models.Deal, error) {
	ctx, span := tracing.StartSpan(ctx, "board.Engine.EditFields")
	defer span.End()

	b, err := e.board(ctx, tenantID)
	if err != nil {
		return models.Deal{}, err
	}

	b.mu.Lock()
	deal, err := b.store.get(dealID)
	if err != nil {
		b.mu.Unlock()
		return models.Deal{}, err
	}

	if req.ProposalAmount != nil {
		deal.ProposalAmount = *req.ProposalAmount
	}
	if req.CommissionRate != nil {
		deal.CommissionRate = req.CommissionRate
	}
	if req.Priority != nil {
		deal.Priority = *req.Priority
	}
	if req.RecommendedToClient != nil {
		deal.RecommendedToClient = *req.RecommendedToClient
	}
	deal.UpdatedAt = time.Now().UTC()
	edited := *deal
	b.mu.Unlock()

	e.dispatcher.Enqueue(dispatch.Event{
		Kind:        dispatch.KindFieldsEdited,
		TenantID:    tenantID,
		DealID:      dealID,
		Deal:        edited,
		CommittedAt: edited.UpdatedAt,
	})

	return edited, nil
}

// GetDeal returns a copy of one deal.
func (e *Engine) GetDeal(ctx context.Context, tenantID, dealID string) (models.Deal, error) {
	b, err := e.board(ctx, tenantID)
	if err != nil {
		return models.Deal{}, err
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.store.Get(dealID)
}

// Board returns the full board, columns in canonical stage order.
func (e *Engine) Board(ctx context.Context, tenantID string) (models.BoardResponse, error) {
	ctx, span := tracing.StartSpan(ctx, "board.Engine.Board")
	defer span.End()

	b, err := e.board(ctx, tenantID)
	if err != nil {
		return models.BoardResponse{}, err
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	resp := models.BoardResponse{}
	for _, stage := range e.registry.All() {
		column := models.BoardColumn{Stage: stage, Deals: []models.Deal{}}
		for _, id := range b.store.columns[stage] {
			column.Deals = append(column.Deals, *b.store.deals[id])
		}
		resp.Columns = append(resp.Columns, column)
	}
	return resp, nil
}

// Snapshot returns an immutable point-in-time view of stage memberships. It
// holds the read lock while copying, so it can never observe a half-applied
// move.
func (e *Engine) Snapshot(ctx context.Context, tenantID string) (Snapshot, error) {
	ctx, span := tracing.StartSpan(ctx, "board.Engine.Snapshot")
	defer span.End()

	b, err := e.board(ctx, tenantID)
	if err != nil {
		return Snapshot{}, err
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.store.snapshot(), nil
}

func isStale(err error) bool {
	return errors.Is(err, ErrStaleIndex)
}
