package delivery

import (
	"fmt"
	"math"
)

// Stats is derived from the tracking table on demand.
type Stats struct {
	TotalAttempts     int
	Delivered         int
	Failed            int
	Timeouts          int
	Pending           int
	SuccessRate       float64
	AvgResponseTimeMS float64
	MinResponseTimeMS float64
	MaxResponseTimeMS float64
}

// Stats summarises every tracked record. Rates and latencies are zero when
// there is nothing to divide by.
func (e *Engine) Stats() Stats {
	var stats Stats
	var totalMS float64
	acked := 0
	minMS := math.MaxFloat64

	e.table.scan(func(tracking *Tracking) {
		switch tracking.Status {
		case StatusDelivered:
			stats.Delivered++
		case StatusFailed:
			stats.Failed++
		case StatusTimeout:
			stats.Timeouts++
		case StatusPending:
			stats.Pending++
		}
		stats.TotalAttempts += len(tracking.Attempts)
		for _, attempt := range tracking.Attempts {
			if attempt.Outcome != OutcomeAcked {
				continue
			}
			ms := float64(attempt.ResponseTime().Microseconds()) / 1000
			totalMS += ms
			acked++
			minMS = math.Min(minMS, ms)
			stats.MaxResponseTimeMS = math.Max(stats.MaxResponseTimeMS, ms)
		}
	})

	if terminal := stats.Delivered + stats.Failed + stats.Timeouts; terminal > 0 {
		stats.SuccessRate = float64(stats.Delivered) / float64(terminal)
	}
	if acked > 0 {
		stats.AvgResponseTimeMS = totalMS / float64(acked)
		stats.MinResponseTimeMS = minMS
	}
	return stats
}

func (s Stats) String() string {
	return fmt.Sprintf(
		"Delivered: %d (%.1f%% success rate)\nFailed: %d\nTimeouts: %d\nPending: %d\nTotal attempts: %d\nAvg response time: %.1fms\nMin/Max response time: %.1fms / %.1fms",
		s.Delivered,
		s.SuccessRate*100,
		s.Failed,
		s.Timeouts,
		s.Pending,
		s.TotalAttempts,
		s.AvgResponseTimeMS,
		s.MinResponseTimeMS,
		s.MaxResponseTimeMS,
	)
}
