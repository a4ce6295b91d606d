package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/Gobusters/ectologger/zapadapter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testLogger() ectologger.Logger {
	zapLogger, _ := zap.NewDevelopment()
	return zapadapter.NewZapEctoLogger(zapLogger, nil)
}

type captureSubscriber struct {
	name string
	fail func(Event) error

	mu     sync.Mutex
	dealID []string
}

func (s *captureSubscriber) Name() string { return s.name }

func (s *captureSubscriber) Handle(ctx context.Context, event Event) error {
	if s.fail != nil {
		if err := s.fail(event); err != nil {
			return err
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dealID = append(s.dealID, event.DealID)
	return nil
}

func (s *captureSubscriber) seen() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.dealID))
	copy(out, s.dealID)
	return out
}

func TestDispatcher_DeliversInCommitOrder(t *testing.T) {
	sub := &captureSubscriber{name: "capture"}
	d := NewDispatcher(128, testLogger())
	d.Subscribe(sub)
	require.NoError(t, d.Start(context.Background()))

	var want []string
	for i := 0; i < 50; i++ {
		id := fmt.Sprintf("deal-%d", i)
		want = append(want, id)
		d.Enqueue(Event{Kind: KindReordered, TenantID: "t1", DealID: id, CommittedAt: time.Now()})
	}

	require.NoError(t, d.Stop(context.Background()))
	assert.Equal(t, want, sub.seen())
}

func TestDispatcher_FailureIsIsolated(t *testing.T) {
	failing := &captureSubscriber{
		name: "flaky",
		fail: func(e Event) error {
			if e.DealID == "bad" {
				return errors.New("downstream unavailable")
			}
			return nil
		},
	}
	healthy := &captureSubscriber{name: "healthy"}

	d := NewDispatcher(16, testLogger())
	d.Subscribe(failing)
	d.Subscribe(healthy)
	require.NoError(t, d.Start(context.Background()))

	d.Enqueue(Event{Kind: KindStageChanged, TenantID: "t1", DealID: "good"})
	d.Enqueue(Event{Kind: KindStageChanged, TenantID: "t1", DealID: "bad"})
	d.Enqueue(Event{Kind: KindStageChanged, TenantID: "t1", DealID: "also-good"})

	require.NoError(t, d.Stop(context.Background()))

	// the failing subscriber missed only its own failure
	assert.Equal(t, []string{"good", "also-good"}, failing.seen())
	// every other subscriber saw everything
	assert.Equal(t, []string{"good", "bad", "also-good"}, healthy.seen())
}

func TestDispatcher_StopDrainsQueue(t *testing.T) {
	sub := &captureSubscriber{name: "capture"}
	d := NewDispatcher(64, testLogger())
	d.Subscribe(sub)
	require.NoError(t, d.Start(context.Background()))

	for i := 0; i < 20; i++ {
		d.Enqueue(Event{Kind: KindDealCreated, DealID: fmt.Sprintf("deal-%d", i)})
	}

	require.NoError(t, d.Stop(context.Background()))
	assert.Len(t, sub.seen(), 20)

	// stopping twice is harmless
	require.NoError(t, d.Stop(context.Background()))
}

func TestDispatcher_EnqueueAfterStopIsDropped(t *testing.T) {
	sub := &captureSubscriber{name: "capture"}
	d := NewDispatcher(4, testLogger())
	d.Subscribe(sub)
	require.NoError(t, d.Start(context.Background()))
	require.NoError(t, d.Stop(context.Background()))

	assert.NotPanics(t, func() {
		d.Enqueue(Event{Kind: KindDealCreated, DealID: "late"})
	})
	assert.Empty(t, sub.seen())
}

func TestDispatcher_StartIsIdempotent(t *testing.T) {
	d := NewDispatcher(4, testLogger())
	require.NoError(t, d.Start(context.Background()))
	require.NoError(t, d.Start(context.Background()))
	require.NoError(t, d.Stop(context.Background()))
}
