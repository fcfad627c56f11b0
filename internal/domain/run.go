package domain

import "time"

// PhaseResult records what happened to one phase
type PhaseResult struct {
	Phase    PhaseName
	Status   PhaseStatus
	Command  string
	ExitCode int
	Message  string
	Duration time.Duration
	// Output is the tail of the command's output, kept for failed phases
	Output string
}

// Outcome is the ordered result of a workflow execution
type Outcome struct {
	Phases []PhaseResult
	Status RunStatus
}

// FailedPhase returns the phase that stopped the workflow, if any
func (o *Outcome) FailedPhase() (PhaseResult, bool) {
	for _, p := range o.Phases {
		if p.Status == PhaseFailed {
			return p, true
		}
	}
	return PhaseResult{}, false
}

// Run is a persisted record of one workflow invocation
type Run struct {
	ID         string
	Target     Target
	Profile    string
	JobID      string
	Status     RunStatus
	Phases     []PhaseResult
	StartedAt  time.Time
	FinishedAt time.Time
}

// Duration returns the wall time of the run
func (r *Run) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}
