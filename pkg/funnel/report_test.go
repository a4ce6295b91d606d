package funnel

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/trellis/pkg/board"
	"github.com/Ramsey-B/trellis/pkg/models"
	"github.com/Ramsey-B/trellis/pkg/stages"
)

func testRegistry(t *testing.T) *stages.Registry {
	r, err := stages.NewRegistry(
		[]string{"contact", "engaged", "visit", "proposal", "reservation"},
		[]string{"won", "lost"},
	)
	require.NoError(t, err)
	return r
}

func snapshotOf(deals ...board.SnapshotDeal) board.Snapshot {
	return board.Snapshot{TakenAt: time.Now().UTC(), Deals: deals}
}

func countFor(t *testing.T, counts []models.StageFunnelCount, stage models.Stage) int {
	for _, c := range counts {
		if c.Stage == stage {
			return c.Count
		}
	}
	t.Fatalf("stage %q not in report", stage)
	return 0
}

func TestCompute_CumulativeCounts(t *testing.T) {
	r := testRegistry(t)
	snap := snapshotOf(
		board.SnapshotDeal{ID: "d1", Stage: "contact"},
		board.SnapshotDeal{ID: "d2", Stage: "visit"},
		board.SnapshotDeal{ID: "d3", Stage: "won"},
	)

	report := Compute(r, snap, nil, nil)

	assert.Equal(t, 3, report.TotalDeals)
	assert.Equal(t, 3, countFor(t, report.Stages, "contact"))
	assert.Equal(t, 2, countFor(t, report.Stages, "engaged"))
	assert.Equal(t, 2, countFor(t, report.Stages, "visit"))
	assert.Equal(t, 1, countFor(t, report.Stages, "proposal"))
	assert.Equal(t, 1, countFor(t, report.Stages, "reservation"))
	assert.Equal(t, 1, countFor(t, report.Terminals, "won"))
	assert.Equal(t, 0, countFor(t, report.Terminals, "lost"))

	// counts never increase down the funnel
	for i := 0; i+1 < len(report.Stages); i++ {
		assert.GreaterOrEqual(t, report.Stages[i].Count, report.Stages[i+1].Count)
	}
}

func TestCompute_ConversionRates(t *testing.T) {
	r := testRegistry(t)
	snap := snapshotOf(
		board.SnapshotDeal{ID: "d1", Stage: "contact"},
		board.SnapshotDeal{ID: "d2", Stage: "visit"},
		board.SnapshotDeal{ID: "d3", Stage: "won"},
	)

	report := Compute(r, snap, nil, nil)

	require.Len(t, report.Conversions, 4)
	for _, c := range report.Conversions {
		require.True(t, c.Applicable)
		assert.GreaterOrEqual(t, c.Rate, 0.0)
		assert.LessOrEqual(t, c.Rate, 1.0)
	}

	assert.InDelta(t, 2.0/3.0, report.Conversions[0].Rate, 1e-9) // contact -> engaged
	assert.InDelta(t, 1.0, report.Conversions[1].Rate, 1e-9)     // engaged -> visit
	assert.InDelta(t, 0.5, report.Conversions[2].Rate, 1e-9)     // visit -> proposal
	assert.InDelta(t, 1.0, report.Conversions[3].Rate, 1e-9)     // proposal -> reservation

	require.True(t, report.TotalConversion.Applicable)
	assert.InDelta(t, 1.0/3.0, report.TotalConversion.Rate, 1e-9)
}

func TestCompute_EmptyFunnelIsNotApplicable(t *testing.T) {
	r := testRegistry(t)

	report := Compute(r, snapshotOf(), nil, nil)

	assert.Equal(t, 0, report.TotalDeals)
	for _, c := range report.Conversions {
		assert.False(t, c.Applicable)
		assert.Zero(t, c.Rate)
	}
	assert.False(t, report.TotalConversion.Applicable)
}

func TestCompute_DateRangeFilter(t *testing.T) {
	r := testRegistry(t)
	january := time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC)
	june := time.Date(2026, 6, 15, 0, 0, 0, 0, time.UTC)

	snap := snapshotOf(
		board.SnapshotDeal{ID: "old", Stage: "won", CreatedAt: january},
		board.SnapshotDeal{ID: "new", Stage: "contact", CreatedAt: june},
	)

	from := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	report := Compute(r, snap, &from, nil)

	assert.Equal(t, 1, report.TotalDeals)
	assert.Equal(t, 1, countFor(t, report.Stages, "contact"))
	assert.Equal(t, 0, countFor(t, report.Terminals, "won"))

	to := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	report = Compute(r, snap, nil, &to)
	assert.Equal(t, 1, report.TotalDeals)
	assert.Equal(t, 1, countFor(t, report.Terminals, "won"))
}

func TestCompute_LostCountsActiveStages(t *testing.T) {
	r := testRegistry(t)
	snap := snapshotOf(
		board.SnapshotDeal{ID: "d1", Stage: "lost"},
	)

	report := Compute(r, snap, nil, nil)

	// a lost deal still passed through the funnel
	assert.Equal(t, 1, countFor(t, report.Stages, "contact"))
	assert.Equal(t, 1, countFor(t, report.Stages, "reservation"))
	assert.Equal(t, 1, countFor(t, report.Terminals, "lost"))

	// but it is not a win
	require.True(t, report.TotalConversion.Applicable)
	assert.Zero(t, report.TotalConversion.Rate)
}
