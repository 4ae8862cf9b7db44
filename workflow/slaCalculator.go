package workflow

import (
	"time"

	"github.com/mmdatafocus/reviews_backend/models"
)

// ComputeDeadline returns start + durationHours for the matching SLA rule,
// or nil when no rule covers the transition. A missing rule means "not
// tracked", never an error.
func ComputeDeadline(from, to models.ReviewStatus, start time.Time, rules []models.SLARule) *time.Time {
	for _, rule := range rules {
		if rule.FromStatus == from && rule.ToStatus == to {
			deadline := start.Add(time.Duration(rule.DurationHours) * time.Hour)
			return &deadline
		}
	}
	return nil
}
