// Package funnel computes conversion analytics from a board snapshot. It is
// pure: it never touches the store and can run against historical snapshots.
package funnel

import (
	"time"

	"github.com/Ramsey-B/trellis/pkg/board"
	"github.com/Ramsey-B/trellis/pkg/metrics"
	"github.com/Ramsey-B/trellis/pkg/models"
	"github.com/Ramsey-B/trellis/pkg/stages"
)

// Compute builds the cumulative funnel report for a snapshot. A deal counts
// toward every active stage at or below its current rank; a closed deal
// counts toward every active stage plus its own terminal bucket. Rates with a
// zero denominator are reported not-applicable, never divided.
//
// Known modeling limitation: only the current stage is tracked, not history,
// so a deal moved backward is not credited with stages it previously reached.
func Compute(registry *stages.Registry, snapshot board.Snapshot, from, to *time.Time) models.FunnelReport {
	start := time.Now()
	defer func() {
		metrics.ReportDuration.Observe(time.Since(start).Seconds())
	}()

	active := registry.Active()
	terminals := registry.Terminals()

	activeCounts := make([]int, len(active))
	terminalCounts := make(map[models.Stage]int, len(terminals))
	total := 0

	for _, deal := range snapshot.Deals {
		if from != nil && deal.CreatedAt.Before(*from) {
			continue
		}
		if to != nil && deal.CreatedAt.After(*to) {
			continue
		}

		rank, err := registry.Index(deal.Stage)
		if err != nil {
			// Snapshots come from the store, which rejects unknown stages;
			// skip rather than poison the whole report.
			continue
		}
		total++

		if registry.IsTerminal(deal.Stage) {
			// Reaching a closed outcome means the deal passed every active stage.
			for i := range activeCounts {
				activeCounts[i]++
			}
			terminalCounts[deal.Stage]++
			continue
		}

		for i := 0; i <= rank && i < len(activeCounts); i++ {
			activeCounts[i]++
		}
	}

	report := models.FunnelReport{
		GeneratedAt: snapshot.TakenAt,
		From:        from,
		To:          to,
		TotalDeals:  total,
		Stages:      make([]models.StageFunnelCount, len(active)),
		Terminals:   make([]models.StageFunnelCount, len(terminals)),
	}

	for i, stage := range active {
		report.Stages[i] = models.StageFunnelCount{Stage: stage, Count: activeCounts[i]}
	}
	for i, stage := range terminals {
		report.Terminals[i] = models.StageFunnelCount{Stage: stage, Count: terminalCounts[stage]}
	}

	for i := 0; i+1 < len(active); i++ {
		report.Conversions = append(report.Conversions, conversion(active[i], active[i+1], activeCounts[i], activeCounts[i+1]))
	}

	// Total conversion: deals closed won over deals that entered the funnel.
	// The first configured terminal stage is the won outcome by convention.
	won := terminals[0]
	report.TotalConversion = conversion(active[0], won, activeCounts[0], terminalCounts[won])

	return report
}

func conversion(from, to models.Stage, fromCount, toCount int) models.StageConversion {
	c := models.StageConversion{From: from, To: to}
	if fromCount > 0 {
		c.Rate = float64(toCount) / float64(fromCount)
		c.Applicable = true
	}
	return c
}
