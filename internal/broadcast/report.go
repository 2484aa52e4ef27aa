package broadcast

import (
	"sprite/internal/delivery"
	"sprite/internal/pane"
)

// Result is the outcome for one target. Err is set when the target never
// reached the engine, for example because it could not be resolved.
type Result struct {
	Agent    string
	Pane     pane.Address
	Tracking *delivery.Tracking
	Err      error
}

// Status is the tracking status, or "unresolved" when no delivery ran.
func (r Result) Status() string {
	if r.Tracking == nil {
		if r.Err == nil {
			return "resolved"
		}
		return "unresolved"
	}
	return string(r.Tracking.Status)
}

type Summary struct {
	Total      int
	Delivered  int
	Failed     int
	Timeout    int
	Pending    int
	Unresolved int
}

// Report lists results in target order.
type Report struct {
	BatchID string
	DryRun  bool
	Results []Result
	Summary Summary
}

// OK reports whether every target was delivered, or for a dry run, resolved.
func (r Report) OK() bool {
	if len(r.Results) == 0 {
		return false
	}
	for _, result := range r.Results {
		if result.Err != nil {
			return false
		}
		if r.DryRun {
			continue
		}
		if result.Tracking == nil || result.Tracking.Status != delivery.StatusDelivered {
			return false
		}
	}
	return true
}

func summarize(results []Result) Summary {
	summary := Summary{Total: len(results)}
	for _, result := range results {
		if result.Tracking == nil {
			if result.Err != nil {
				summary.Unresolved++
			}
			continue
		}
		switch result.Tracking.Status {
		case delivery.StatusDelivered:
			summary.Delivered++
		case delivery.StatusFailed:
			summary.Failed++
		case delivery.StatusTimeout:
			summary.Timeout++
		default:
			summary.Pending++
		}
	}
	return summary
}

// outcome is the broadcasts_total label for a finished report.
func (r Report) outcome() string {
	switch {
	case r.DryRun:
		return "dry_run"
	case r.OK():
		return "all_delivered"
	case r.Summary.Delivered > 0:
		return "partial"
	default:
		return "none_delivered"
	}
}
