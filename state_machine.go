package gorkflow

// Static transition tables backing WorkflowExecution.TransitionTo and
// StepAttempt.TransitionTo (spec §3 invariant 2, §4.2). Grounded on the
// Python original's transition_to/_validate_transition pair, hand-rolled
// the same way here: no pack repo reaches for an FSM library for this.

var executionTransitions = map[ExecutionStatus][]ExecutionStatus{
	ExecutionPending: {ExecutionRunning},
	ExecutionRunning: {ExecutionSuccess, ExecutionFailed, ExecutionCancelled},
}

var attemptTransitions = map[AttemptStatus][]AttemptStatus{
	AttemptPending: {AttemptRunning},
	AttemptRunning: {AttemptSuccess, AttemptFailed, AttemptSkipped},
}

func containsExecutionStatus(list []ExecutionStatus, s ExecutionStatus) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func containsAttemptStatus(list []AttemptStatus, s AttemptStatus) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
