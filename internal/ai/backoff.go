package ai

import "time"

// Polling cadence constants. The interval between status checks grows
// multiplicatively from the initial value up to the cap; once a run of
// consecutive transient failures crosses the threshold, growth is doubled
// so a struggling upstream gets wider spacing sooner.
const (
	initialPollInterval   = time.Second
	maxPollInterval       = 5 * time.Second
	pollBackoffMultiplier = 1.2
	failureThreshold      = 3
)

// NextInterval computes the delay before the next poll attempt. Pure:
// the result depends only on the arguments. Never returns a non-positive
// duration.
func NextInterval(current time.Duration, consecutiveFailures int) time.Duration {
	if current <= 0 {
		current = initialPollInterval
	}
	next := time.Duration(float64(current) * pollBackoffMultiplier)
	if consecutiveFailures >= failureThreshold {
		degraded := time.Duration(float64(current) * pollBackoffMultiplier * 2)
		if degraded > next {
			next = degraded
		}
	}
	if next > maxPollInterval {
		next = maxPollInterval
	}
	if next <= 0 {
		next = initialPollInterval
	}
	return next
}
