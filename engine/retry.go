package engine

import "github.com/AryanBarman/gorkflow"

// shouldRetry implements the Retry Policy decision table (spec §4.6),
// grounded on the Python original's linear_executor.py::_should_retry.
func shouldRetry(stepErr *gorkflow.StepError, retryCount int, policy *gorkflow.RetryPolicy) bool {
	if stepErr == nil || stepErr.ErrorType != gorkflow.ErrorTypeTransient {
		return false
	}
	if policy == nil {
		return false
	}
	if retryCount >= policy.MaxRetries {
		return false
	}
	return true
}
