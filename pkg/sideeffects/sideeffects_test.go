package sideeffects

import (
	"context"
	"testing"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/Gobusters/ectologger/zapadapter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Ramsey-B/trellis/pkg/dispatch"
	"github.com/Ramsey-B/trellis/pkg/models"
)

func testLogger() ectologger.Logger {
	zapLogger, _ := zap.NewDevelopment()
	return zapadapter.NewZapEctoLogger(zapLogger, nil)
}

type fakeDealWriter struct {
	inserted  []models.Deal
	edited    []models.Deal
	placement map[models.Stage][]string
}

func (f *fakeDealWriter) Insert(ctx context.Context, deal models.Deal) error {
	f.inserted = append(f.inserted, deal)
	return nil
}

func (f *fakeDealWriter) UpdateFields(ctx context.Context, deal models.Deal) error {
	f.edited = append(f.edited, deal)
	return nil
}

func (f *fakeDealWriter) UpdatePlacement(ctx context.Context, tenantID string, deal models.Deal, columns map[models.Stage][]string) error {
	f.placement = columns
	return nil
}

func TestPersistenceSubscriber_RoutesByKind(t *testing.T) {
	writer := &fakeDealWriter{}
	sub := NewPersistenceSubscriber(writer, testLogger())

	deal := models.Deal{ID: "d1", TenantID: "t1", Stage: "proposal"}

	t.Run("Created", func(t *testing.T) {
		err := sub.Handle(context.Background(), dispatch.Event{Kind: dispatch.KindDealCreated, TenantID: "t1", DealID: "d1", Deal: deal})
		require.NoError(t, err)
		assert.Len(t, writer.inserted, 1)
	})

	t.Run("FieldsEdited", func(t *testing.T) {
		err := sub.Handle(context.Background(), dispatch.Event{Kind: dispatch.KindFieldsEdited, TenantID: "t1", DealID: "d1", Deal: deal})
		require.NoError(t, err)
		assert.Len(t, writer.edited, 1)
	})

	t.Run("StageChangeRewritesBothColumns", func(t *testing.T) {
		err := sub.Handle(context.Background(), dispatch.Event{
			Kind:         dispatch.KindStageChanged,
			TenantID:     "t1",
			DealID:       "d1",
			FromStage:    "visit",
			ToStage:      "proposal",
			Deal:         deal,
			SourceColumn: []string{"d2"},
			DestColumn:   []string{"d1", "d3"},
		})
		require.NoError(t, err)
		assert.Equal(t, []string{"d2"}, writer.placement["visit"])
		assert.Equal(t, []string{"d1", "d3"}, writer.placement["proposal"])
	})

	t.Run("ReorderRewritesOneColumn", func(t *testing.T) {
		err := sub.Handle(context.Background(), dispatch.Event{
			Kind:       dispatch.KindReordered,
			TenantID:   "t1",
			DealID:     "d1",
			Deal:       deal,
			DestColumn: []string{"d3", "d1"},
		})
		require.NoError(t, err)
		require.Len(t, writer.placement, 1)
		assert.Equal(t, []string{"d3", "d1"}, writer.placement["proposal"])
	})
}

type fakeActivityWriter struct {
	descriptions []string
	links        []string
}

func (f *fakeActivityWriter) Insert(ctx context.Context, tenantID, dealID, description, link string) (*models.ActivityEntry, error) {
	f.descriptions = append(f.descriptions, description)
	f.links = append(f.links, link)
	return &models.ActivityEntry{ID: "a1", TenantID: tenantID, DealID: dealID, Description: description, Link: link, CreatedAt: time.Now()}, nil
}

func TestActivitySubscriber_OnlyStageChanges(t *testing.T) {
	writer := &fakeActivityWriter{}
	sub := NewActivitySubscriber(writer, "https://crm.example.com/funnel/deals", testLogger())

	deal := models.Deal{ID: "d1", ClientName: "Ana", PropertyTitle: "Sea View Apartment"}

	require.NoError(t, sub.Handle(context.Background(), dispatch.Event{Kind: dispatch.KindReordered, DealID: "d1", Deal: deal}))
	require.NoError(t, sub.Handle(context.Background(), dispatch.Event{Kind: dispatch.KindFieldsEdited, DealID: "d1", Deal: deal}))
	assert.Empty(t, writer.descriptions)

	err := sub.Handle(context.Background(), dispatch.Event{
		Kind:      dispatch.KindStageChanged,
		TenantID:  "t1",
		DealID:    "d1",
		FromStage: "visit",
		ToStage:   "proposal",
		Deal:      deal,
	})
	require.NoError(t, err)
	require.Len(t, writer.descriptions, 1)
	assert.Contains(t, writer.descriptions[0], "Ana")
	assert.Contains(t, writer.descriptions[0], "Sea View Apartment")
	assert.Contains(t, writer.descriptions[0], "visit")
	assert.Contains(t, writer.descriptions[0], "proposal")
	assert.Equal(t, "https://crm.example.com/funnel/deals/d1", writer.links[0])
}

type fakeInvalidator struct {
	tenants []string
}

func (f *fakeInvalidator) Invalidate(ctx context.Context, tenantID string) error {
	f.tenants = append(f.tenants, tenantID)
	return nil
}

func TestCacheInvalidator_FunnelCompositionOnly(t *testing.T) {
	cache := &fakeInvalidator{}
	sub := NewCacheInvalidator(cache, testLogger())

	require.NoError(t, sub.Handle(context.Background(), dispatch.Event{Kind: dispatch.KindReordered, TenantID: "t1"}))
	require.NoError(t, sub.Handle(context.Background(), dispatch.Event{Kind: dispatch.KindFieldsEdited, TenantID: "t1"}))
	assert.Empty(t, cache.tenants)

	require.NoError(t, sub.Handle(context.Background(), dispatch.Event{Kind: dispatch.KindStageChanged, TenantID: "t1"}))
	require.NoError(t, sub.Handle(context.Background(), dispatch.Event{Kind: dispatch.KindDealCreated, TenantID: "t1"}))
	assert.Equal(t, []string{"t1", "t1"}, cache.tenants)
}
