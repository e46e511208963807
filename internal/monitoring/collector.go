// Package monitoring watches recent analysis runs and raises alerts when
// failure, low-confidence or spend thresholds are crossed.
package monitoring

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/gap-analysis/internal/model"
	"github.com/sells-group/gap-analysis/internal/store"
)

// MetricsSnapshot holds a point-in-time view of run health.
type MetricsSnapshot struct {
	// Runs created within the lookback window.
	RunsTotal    int `json:"runs_total"`
	RunsComplete int `json:"runs_complete"`
	RunsFailed   int `json:"runs_failed"`
	RunsInFlight int `json:"runs_in_flight"`

	FailRate float64 `json:"fail_rate"`

	// Completed runs only.
	LowConfidence      int                     `json:"low_confidence"`
	LowConfidenceRate  float64                 `json:"low_confidence_rate"`
	Degradations       map[model.ErrorKind]int `json:"degradations,omitempty"`
	CostUSD            float64                 `json:"cost_usd"`
	AvgRecommendations float64                 `json:"avg_recommendations"`

	LookbackHours int       `json:"lookback_hours"`
	CollectedAt   time.Time `json:"collected_at"`
}

// RunSource is the part of the store the collector reads.
type RunSource interface {
	ListRuns(ctx context.Context, filter store.RunFilter) ([]model.Run, error)
	GetRun(ctx context.Context, runID string) (*model.Run, error)
}

const (
	pageSize = 200
	maxRuns  = 2000
)

// Collector gathers metrics from the store.
type Collector struct {
	runs RunSource
	now  func() time.Time
}

// NewCollector creates a new metrics collector.
func NewCollector(runs RunSource) *Collector {
	return &Collector{runs: runs, now: time.Now}
}

// Collect gathers a snapshot over the given lookback window. Runs are
// listed newest first, so paging stops at the first run older than the
// window.
func (c *Collector) Collect(ctx context.Context, lookbackHours int) (*MetricsSnapshot, error) {
	now := c.now().UTC()
	snap := &MetricsSnapshot{
		LookbackHours: lookbackHours,
		CollectedAt:   now,
		Degradations:  map[model.ErrorKind]int{},
	}
	cutoff := now.Add(-time.Duration(lookbackHours) * time.Hour)

	var recs int
	for offset := 0; offset < maxRuns; offset += pageSize {
		page, err := c.runs.ListRuns(ctx, store.RunFilter{Limit: pageSize, Offset: offset})
		if err != nil {
			return nil, eris.Wrap(err, "monitoring: list runs")
		}

		for _, r := range page {
			if r.CreatedAt.Before(cutoff) {
				return finish(snap, recs), nil
			}
			snap.RunsTotal++
			switch r.Status {
			case model.RunStatusComplete:
				snap.RunsComplete++
			case model.RunStatusFailed:
				snap.RunsFailed++
				continue
			default:
				snap.RunsInFlight++
				continue
			}

			full, err := c.runs.GetRun(ctx, r.ID)
			if err != nil {
				return nil, eris.Wrapf(err, "monitoring: get run %s", r.ID)
			}
			if full.Result == nil {
				continue
			}
			res := full.Result
			if res.LowConfidence {
				snap.LowConfidence++
			}
			for _, d := range res.Degradations {
				snap.Degradations[d.Kind]++
			}
			snap.CostUSD += res.CostUSD
			recs += len(res.Recommendations)
		}

		if len(page) < pageSize {
			break
		}
	}
	return finish(snap, recs), nil
}

func finish(snap *MetricsSnapshot, recs int) *MetricsSnapshot {
	if finished := snap.RunsComplete + snap.RunsFailed; finished > 0 {
		snap.FailRate = float64(snap.RunsFailed) / float64(finished)
	}
	if snap.RunsComplete > 0 {
		snap.LowConfidenceRate = float64(snap.LowConfidence) / float64(snap.RunsComplete)
		snap.AvgRecommendations = float64(recs) / float64(snap.RunsComplete)
	}
	return snap
}
