package workflow

import (
	"context"
	"fmt"

	"github.com/hochfrequenz/agent-deploy/internal/bundle"
	"github.com/hochfrequenz/agent-deploy/internal/domain"
	"github.com/hochfrequenz/agent-deploy/internal/runner"
)

// Phase is one step of the workflow. A skipped phase only prints its
// SkipReason; an executed phase calls Invoke exactly once.
type Phase struct {
	Name       domain.PhaseName
	Skip       bool
	SkipReason string
	Start      string
	Success    string
	Failure    string
	Command    string
	Invoke     func(ctx context.Context) (runner.Result, error)
}

// PhaseError reports the phase that stopped the workflow
type PhaseError struct {
	Phase domain.PhaseName
	Err   error
}

func (e *PhaseError) Error() string {
	return fmt.Sprintf("%s phase failed: %v", e.Phase, e.Err)
}

func (e *PhaseError) Unwrap() error {
	return e.Err
}

// Plan returns the ordered phases for cfg: validate, deploy, run.
// The run phase is never skipped.
func (e *Executor) Plan(cfg domain.RunConfig) []Phase {
	return []Phase{
		e.validatePhase(cfg),
		e.deployPhase(cfg),
		e.runPhase(cfg),
	}
}

func (e *Executor) validatePhase(cfg domain.RunConfig) Phase {
	p := Phase{
		Name:    domain.PhaseValidate,
		Skip:    !cfg.ShouldValidate(),
		Start:   "Validating bundle configuration...",
		Success: "Bundle validation passed",
		Failure: "Bundle validation failed",
		Command: e.bundle.CommandLine(bundle.ValidateArgs(cfg.Profile)),
		Invoke: func(ctx context.Context) (runner.Result, error) {
			return e.bundle.Validate(ctx, cfg.Profile)
		},
	}
	p.SkipReason = skipReason("bundle validation", "--skip-validation", cfg)
	return p
}

func (e *Executor) deployPhase(cfg domain.RunConfig) Phase {
	p := Phase{
		Name:    domain.PhaseDeploy,
		Skip:    !cfg.ShouldDeploy(),
		Start:   fmt.Sprintf("Deploying bundle to target '%s'...", cfg.Target),
		Success: fmt.Sprintf("Bundle deployed to target '%s'", cfg.Target),
		Failure: "Bundle deployment failed",
		Command: e.bundle.CommandLine(bundle.DeployArgs(cfg.Target, cfg.Profile)),
		Invoke: func(ctx context.Context) (runner.Result, error) {
			return e.bundle.Deploy(ctx, cfg.Target, cfg.Profile)
		},
	}
	p.SkipReason = skipReason("bundle deployment", "--skip-deployment", cfg)
	return p
}

func (e *Executor) runPhase(cfg domain.RunConfig) Phase {
	if cfg.HasJobID() {
		return Phase{
			Name:    domain.PhaseRun,
			Start:   fmt.Sprintf("Running job %s...", cfg.JobID),
			Success: fmt.Sprintf("Job %s completed successfully", cfg.JobID),
			Failure: fmt.Sprintf("Job %s failed", cfg.JobID),
			Command: e.bundle.CommandLine(bundle.RunJobByIDArgs(cfg.JobID, cfg.Profile)),
			Invoke: func(ctx context.Context) (runner.Result, error) {
				return e.bundle.RunJobByID(ctx, cfg.JobID, cfg.Profile)
			},
		}
	}
	return Phase{
		Name:    domain.PhaseRun,
		Start:   fmt.Sprintf("Running bundle job '%s' on target '%s'...", e.jobName, cfg.Target),
		Success: fmt.Sprintf("Bundle job '%s' completed successfully", e.jobName),
		Failure: fmt.Sprintf("Bundle job '%s' failed", e.jobName),
		Command: e.bundle.CommandLine(bundle.RunBundleJobArgs(e.jobName, cfg.Target, cfg.Profile)),
		Invoke: func(ctx context.Context) (runner.Result, error) {
			return e.bundle.RunBundleJob(ctx, e.jobName, cfg.Target, cfg.Profile)
		},
	}
}

func skipReason(what, flag string, cfg domain.RunConfig) string {
	if cfg.HasJobID() {
		return fmt.Sprintf("Skipping %s (running existing job %s)", what, cfg.JobID)
	}
	return fmt.Sprintf("Skipping %s (%s)", what, flag)
}
