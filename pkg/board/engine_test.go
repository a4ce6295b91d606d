package board

import (
	"context"
	"sync"
	"testing"

	"github.com/Gobusters/ectologger"
	"github.com/Gobusters/ectologger/zapadapter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Ramsey-B/trellis/pkg/dispatch"
	"github.com/Ramsey-B/trellis/pkg/models"
	"github.com/Ramsey-B/trellis/pkg/stages"
)

func testLogger() ectologger.Logger {
	zapLogger, _ := zap.NewDevelopment()
	return zapadapter.NewZapEctoLogger(zapLogger, nil)
}

func testRegistry(t *testing.T) *stages.Registry {
	r, err := stages.NewRegistry(
		[]string{"contact", "engaged", "visit", "proposal", "reservation"},
		[]string{"won", "lost"},
	)
	require.NoError(t, err)
	return r
}

// recorder collects delivered events for assertions.
type recorder struct {
	mu     sync.Mutex
	events []dispatch.Event
}

func (r *recorder) Name() string { return "recorder" }

func (r *recorder) Handle(ctx context.Context, event dispatch.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

func (r *recorder) recorded() []dispatch.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]dispatch.Event, len(r.events))
	copy(out, r.events)
	return out
}

type testHarness struct {
	engine     *Engine
	dispatcher *dispatch.Dispatcher
	recorder   *recorder
}

func newHarness(t *testing.T) *testHarness {
	logger := testLogger()
	rec := &recorder{}
	dispatcher := dispatch.NewDispatcher(64, logger)
	dispatcher.Subscribe(rec)
	require.NoError(t, dispatcher.Start(context.Background()))

	engine := NewEngine(testRegistry(t), dispatcher, nil, logger)
	return &testHarness{engine: engine, dispatcher: dispatcher, recorder: rec}
}

// drain stops the dispatcher, which delivers everything still queued.
func (h *testHarness) drain(t *testing.T) []dispatch.Event {
	require.NoError(t, h.dispatcher.Stop(context.Background()))
	return h.recorder.recorded()
}

func (h *testHarness) createDeal(t *testing.T, tenantID, stage string) models.Deal {
	deal, err := h.engine.CreateDeal(context.Background(), tenantID, models.CreateDealRequest{
		ClientID:       "client-1",
		PropertyID:     "property-1",
		InitialStage:   stage,
		ProposalAmount: 250000,
	}, "Ana", "Sea View Apartment")
	require.NoError(t, err)
	return deal
}

func columnIDs(t *testing.T, engine *Engine, tenantID string, stage models.Stage) []string {
	resp, err := engine.Board(context.Background(), tenantID)
	require.NoError(t, err)
	for _, col := range resp.Columns {
		if col.Stage == stage {
			ids := make([]string, 0, len(col.Deals))
			for i, d := range col.Deals {
				assert.Equal(t, i, d.Position)
				ids = append(ids, d.ID)
			}
			return ids
		}
	}
	t.Fatalf("stage %q not on board", stage)
	return nil
}

func TestEngine_CreateDeal(t *testing.T) {
	h := newHarness(t)

	first := h.createDeal(t, "t1", "contact")
	second := h.createDeal(t, "t1", "contact")

	assert.Equal(t, 0, first.Position)
	assert.Equal(t, 1, second.Position)
	assert.Equal(t, models.Stage("contact"), first.Stage)
	assert.Equal(t, "Ana", first.ClientName)

	t.Run("UnknownInitialStage", func(t *testing.T) {
		_, err := h.engine.CreateDeal(context.Background(), "t1", models.CreateDealRequest{
			ClientID:     "client-1",
			PropertyID:   "property-1",
			InitialStage: "negotiation",
		}, "Ana", "Sea View Apartment")
		assert.ErrorIs(t, err, stages.ErrUnknownStage)
	})

	events := h.drain(t)
	require.Len(t, events, 2)
	assert.Equal(t, dispatch.KindDealCreated, events[0].Kind)
	assert.Equal(t, []string{first.ID, second.ID}, events[1].DestColumn)
}

func TestEngine_Move_StageChange(t *testing.T) {
	h := newHarness(t)

	a := h.createDeal(t, "t1", "visit")
	b := h.createDeal(t, "t1", "visit")
	c := h.createDeal(t, "t1", "proposal")

	result, err := h.engine.Move(context.Background(), "t1", models.MoveRequest{
		DealID:      a.ID,
		SourceStage: "visit",
		SourceIndex: 0,
		DestStage:   "proposal",
		DestIndex:   0,
	})
	require.NoError(t, err)

	assert.True(t, result.StageChanged)
	assert.Equal(t, models.Stage("proposal"), result.Deal.Stage)
	assert.Equal(t, 0, result.DestIndex)

	assert.Equal(t, []string{b.ID}, columnIDs(t, h.engine, "t1", "visit"))
	assert.Equal(t, []string{a.ID, c.ID}, columnIDs(t, h.engine, "t1", "proposal"))

	events := h.drain(t)
	var transitions []dispatch.Event
	for _, e := range events {
		if e.Kind == dispatch.KindStageChanged {
			transitions = append(transitions, e)
		}
	}
	require.Len(t, transitions, 1)
	assert.Equal(t, models.Stage("visit"), transitions[0].FromStage)
	assert.Equal(t, models.Stage("proposal"), transitions[0].ToStage)
	assert.Equal(t, []string{b.ID}, transitions[0].SourceColumn)
	assert.Equal(t, []string{a.ID, c.ID}, transitions[0].DestColumn)
}

func TestEngine_Move_ReorderWithinColumn(t *testing.T) {
	h := newHarness(t)

	a := h.createDeal(t, "t1", "contact")
	b := h.createDeal(t, "t1", "contact")
	c := h.createDeal(t, "t1", "contact")

	result, err := h.engine.Move(context.Background(), "t1", models.MoveRequest{
		DealID:      c.ID,
		SourceStage: "contact",
		SourceIndex: 2,
		DestStage:   "contact",
		DestIndex:   0,
	})
	require.NoError(t, err)

	assert.False(t, result.StageChanged)
	assert.Equal(t, []string{c.ID, a.ID, b.ID}, columnIDs(t, h.engine, "t1", "contact"))

	events := h.drain(t)
	last := events[len(events)-1]
	assert.Equal(t, dispatch.KindReordered, last.Kind)
	assert.Empty(t, last.SourceColumn)
}

func TestEngine_Move_NoOp(t *testing.T) {
	h := newHarness(t)

	a := h.createDeal(t, "t1", "contact")
	b := h.createDeal(t, "t1", "contact")

	result, err := h.engine.Move(context.Background(), "t1", models.MoveRequest{
		DealID:      a.ID,
		SourceStage: "contact",
		SourceIndex: 0,
		DestStage:   "contact",
		DestIndex:   0,
	})
	require.NoError(t, err)
	assert.True(t, result.NoOp)
	assert.Equal(t, 0, result.DestIndex)
	assert.Equal(t, []string{a.ID, b.ID}, columnIDs(t, h.engine, "t1", "contact"))

	// only the two creations reached subscribers; the no-op emitted nothing
	events := h.drain(t)
	require.Len(t, events, 2)
	for _, e := range events {
		assert.Equal(t, dispatch.KindDealCreated, e.Kind)
	}
}

func TestEngine_Move_ColumnUniqueness(t *testing.T) {
	h := newHarness(t)
	defer h.drain(t)

	a := h.createDeal(t, "t1", "contact")
	b := h.createDeal(t, "t1", "contact")
	c := h.createDeal(t, "t1", "contact")

	moves := []models.MoveRequest{
		{DealID: a.ID, SourceStage: "contact", SourceIndex: 0, DestStage: "engaged", DestIndex: 0},
		{DealID: c.ID, SourceStage: "contact", SourceIndex: 1, DestStage: "engaged", DestIndex: 0},
		{DealID: a.ID, SourceStage: "engaged", SourceIndex: 1, DestStage: "engaged", DestIndex: 0},
		{DealID: b.ID, SourceStage: "contact", SourceIndex: 0, DestStage: "visit", DestIndex: 5},
		{DealID: c.ID, SourceStage: "engaged", SourceIndex: 1, DestStage: "contact", DestIndex: 0},
	}
	for _, m := range moves {
		_, err := h.engine.Move(context.Background(), "t1", m)
		require.NoError(t, err)
	}

	// every deal sits in exactly one column, positions dense from zero
	seen := map[string]models.Stage{}
	for _, stage := range h.engine.Registry().All() {
		for _, id := range columnIDs(t, h.engine, "t1", stage) {
			_, dup := seen[id]
			require.False(t, dup, "deal %s appears in %s and %s", id, seen[id], stage)
			seen[id] = stage
		}
	}
	assert.Len(t, seen, 3)
	assert.Equal(t, models.Stage("engaged"), seen[a.ID])
	assert.Equal(t, models.Stage("visit"), seen[b.ID])
	assert.Equal(t, models.Stage("contact"), seen[c.ID])
}

func TestEngine_Move_ClampsDestIndex(t *testing.T) {
	h := newHarness(t)
	defer h.drain(t)

	a := h.createDeal(t, "t1", "contact")
	b := h.createDeal(t, "t1", "engaged")

	result, err := h.engine.Move(context.Background(), "t1", models.MoveRequest{
		DealID:      a.ID,
		SourceStage: "contact",
		SourceIndex: 0,
		DestStage:   "engaged",
		DestIndex:   99,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, result.DestIndex)
	assert.Equal(t, []string{b.ID, a.ID}, columnIDs(t, h.engine, "t1", "engaged"))
}

func TestEngine_Move_Failures(t *testing.T) {
	h := newHarness(t)
	defer h.drain(t)

	a := h.createDeal(t, "t1", "contact")
	before := columnIDs(t, h.engine, "t1", "contact")

	t.Run("UnknownSourceStage", func(t *testing.T) {
		_, err := h.engine.Move(context.Background(), "t1", models.MoveRequest{
			DealID: a.ID, SourceStage: "negotiation", DestStage: "contact",
		})
		assert.ErrorIs(t, err, stages.ErrUnknownStage)
	})

	t.Run("UnknownDestStage", func(t *testing.T) {
		_, err := h.engine.Move(context.Background(), "t1", models.MoveRequest{
			DealID: a.ID, SourceStage: "contact", DestStage: "negotiation",
		})
		assert.ErrorIs(t, err, stages.ErrUnknownStage)
	})

	t.Run("NegativeDestIndex", func(t *testing.T) {
		_, err := h.engine.Move(context.Background(), "t1", models.MoveRequest{
			DealID: a.ID, SourceStage: "contact", DestStage: "engaged", DestIndex: -1,
		})
		assert.ErrorIs(t, err, ErrInvalidRange)
	})

	t.Run("UnknownDeal", func(t *testing.T) {
		_, err := h.engine.Move(context.Background(), "t1", models.MoveRequest{
			DealID: "missing", SourceStage: "contact", DestStage: "engaged",
		})
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("StaleSourceIndex", func(t *testing.T) {
		_, err := h.engine.Move(context.Background(), "t1", models.MoveRequest{
			DealID: a.ID, SourceStage: "contact", SourceIndex: 5, DestStage: "engaged",
		})
		assert.ErrorIs(t, err, ErrStaleIndex)
	})

	t.Run("NegativeSourceIndex", func(t *testing.T) {
		_, err := h.engine.Move(context.Background(), "t1", models.MoveRequest{
			DealID: a.ID, SourceStage: "contact", SourceIndex: -1, DestStage: "engaged",
		})
		assert.ErrorIs(t, err, ErrStaleIndex)
	})

	t.Run("StaleSourceStage", func(t *testing.T) {
		_, err := h.engine.Move(context.Background(), "t1", models.MoveRequest{
			DealID: a.ID, SourceStage: "engaged", SourceIndex: 0, DestStage: "visit",
		})
		assert.ErrorIs(t, err, ErrStaleIndex)
	})

	// failed moves leave the board untouched
	assert.Equal(t, before, columnIDs(t, h.engine, "t1", "contact"))
}

func TestEngine_Move_BackwardAndOutOfTerminal(t *testing.T) {
	h := newHarness(t)
	defer h.drain(t)

	a := h.createDeal(t, "t1", "proposal")

	_, err := h.engine.Move(context.Background(), "t1", models.MoveRequest{
		DealID: a.ID, SourceStage: "proposal", SourceIndex: 0, DestStage: "won",
	})
	require.NoError(t, err)

	// reopen the closed deal
	result, err := h.engine.Move(context.Background(), "t1", models.MoveRequest{
		DealID: a.ID, SourceStage: "won", SourceIndex: 0, DestStage: "engaged",
	})
	require.NoError(t, err)
	assert.Equal(t, models.Stage("engaged"), result.Deal.Stage)
}

func TestEngine_EditFields(t *testing.T) {
	h := newHarness(t)

	a := h.createDeal(t, "t1", "visit")
	amount := 300000.0
	priority := true

	edited, err := h.engine.EditFields(context.Background(), "t1", a.ID, models.EditDealRequest{
		ProposalAmount: &amount,
		Priority:       &priority,
	})
	require.NoError(t, err)

	assert.Equal(t, 300000.0, edited.ProposalAmount)
	assert.True(t, edited.Priority)
	// placement is untouched
	assert.Equal(t, models.Stage("visit"), edited.Stage)
	assert.Equal(t, 0, edited.Position)

	_, err = h.engine.EditFields(context.Background(), "t1", "missing", models.EditDealRequest{})
	assert.ErrorIs(t, err, ErrNotFound)

	events := h.drain(t)
	last := events[len(events)-1]
	assert.Equal(t, dispatch.KindFieldsEdited, last.Kind)
}

func TestEngine_TenantIsolation(t *testing.T) {
	h := newHarness(t)
	defer h.drain(t)

	a := h.createDeal(t, "t1", "contact")
	h.createDeal(t, "t2", "contact")

	_, err := h.engine.GetDeal(context.Background(), "t2", a.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	assert.Len(t, columnIDs(t, h.engine, "t1", "contact"), 1)
	assert.Len(t, columnIDs(t, h.engine, "t2", "contact"), 1)
}

// hydratorFunc adapts a function to the Hydrator interface.
type hydratorFunc func(ctx context.Context, tenantID string) ([]models.Deal, error)

func (f hydratorFunc) LoadBoard(ctx context.Context, tenantID string) ([]models.Deal, error) {
	return f(ctx, tenantID)
}

func TestEngine_Hydration(t *testing.T) {
	logger := testLogger()
	dispatcher := dispatch.NewDispatcher(16, logger)
	require.NoError(t, dispatcher.Start(context.Background()))
	defer dispatcher.Stop(context.Background())

	persisted := []models.Deal{
		{ID: "d2", TenantID: "t1", Stage: "contact", Position: 7},
		{ID: "d1", TenantID: "t1", Stage: "contact", Position: 3},
		{ID: "d3", TenantID: "t1", Stage: "won", Position: 0},
	}
	engine := NewEngine(testRegistry(t), dispatcher, hydratorFunc(func(ctx context.Context, tenantID string) ([]models.Deal, error) {
		return persisted, nil
	}), logger)

	ids := columnIDs(t, engine, "t1", "contact")
	assert.Equal(t, []string{"d1", "d2"}, ids)

	deal, err := engine.GetDeal(context.Background(), "t1", "d1")
	require.NoError(t, err)
	// sparse persisted positions are compacted
	assert.Equal(t, 0, deal.Position)

	assert.Equal(t, []string{"d3"}, columnIDs(t, engine, "t1", "won"))
}
