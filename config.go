package gorkflow

import "time"

// DefaultStepTimeoutSeconds is used when a Step declares no timeout
// (DESIGN.md Open Question decision 2, carried over from the teacher's
// DefaultExecutionConfig.TimeoutSeconds).
const DefaultStepTimeoutSeconds = 30

// DefaultBackoffSeconds is the retry backoff BackoffDuration returns for a
// nil RetryPolicy. A non-nil RetryPolicy's BackoffSeconds is used as is, so a
// policy that leaves backoff_seconds unset retries with no backoff.
const DefaultBackoffSeconds = 1

// BackoffDuration returns the fixed backoff to sleep before a retry, per
// spec §4.6: fixed seconds, no exponential growth, no jitter. Grounded in
// shape on the teacher's CalculateBackoff helper (config.go), narrowed to
// the spec's NONE/fixed contract only — the teacher's LINEAR/EXPONENTIAL
// strategies have no place in a policy that is explicitly fixed-backoff.
//
// An explicitly configured BackoffSeconds of 0 is honored verbatim (instant
// retry); the default only fills in for a nil policy.
func BackoffDuration(policy *RetryPolicy) time.Duration {
	if policy == nil {
		return DefaultBackoffSeconds * time.Second
	}
	return time.Duration(policy.BackoffSeconds) * time.Second
}
