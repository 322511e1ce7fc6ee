package resilience

import "time"

// Breaker settings for outbound publishing. The outbox keeps events until the
// breaker closes again, so the breaker trips early and probes slowly.
const (
	DefaultMaxRequests           uint32        = 1
	DefaultInterval              time.Duration = 2 * time.Minute
	DefaultTimeout               time.Duration = 20 * time.Second
	DefaultFailureThreshold      uint32        = 5
	DefaultFailureRatioThreshold float64       = 0.6
	DefaultMinRequestsToTrip     uint32        = 10
)

// Retry settings sized for version races on a single document: a handful of
// quick attempts rather than a long backoff.
const (
	DefaultRetryMaxAttempts   int           = 3
	DefaultRetryInitialDelay  time.Duration = 10 * time.Millisecond
	DefaultRetryMaxDelay      time.Duration = 100 * time.Millisecond
	DefaultRetryBackoffFactor float64       = 2.0
)
