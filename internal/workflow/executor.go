// Package workflow sequences the validate, deploy and run phases of an
// agent deployment and reports each step.
package workflow

import (
	"context"

	"github.com/pkg/errors"

	"github.com/hochfrequenz/agent-deploy/internal/bundle"
	"github.com/hochfrequenz/agent-deploy/internal/domain"
	"github.com/hochfrequenz/agent-deploy/internal/logging"
	"github.com/hochfrequenz/agent-deploy/internal/runner"
	"github.com/hochfrequenz/agent-deploy/internal/status"
)

// Bundle is the external collaborator driven by the workflow
type Bundle interface {
	Validate(ctx context.Context, profile string) (runner.Result, error)
	Deploy(ctx context.Context, target domain.Target, profile string) (runner.Result, error)
	RunJobByID(ctx context.Context, jobID, profile string) (runner.Result, error)
	RunBundleJob(ctx context.Context, jobName string, target domain.Target, profile string) (runner.Result, error)
	CommandLine(args []string) string
}

// Executor runs phases strictly in order and stops at the first failure
type Executor struct {
	bundle   Bundle
	jobName  string
	reporter *status.Reporter
	log      logging.Logger
}

// New creates an Executor. An empty jobName runs bundle.DefaultJobName.
func New(b Bundle, jobName string, reporter *status.Reporter) *Executor {
	if jobName == "" {
		jobName = bundle.DefaultJobName
	}
	return &Executor{
		bundle:   b,
		jobName:  jobName,
		reporter: reporter,
		log:      logging.New("workflow"),
	}
}

// Execute validates cfg and walks the phase plan. On failure the returned
// error is a *PhaseError and the outcome lists every phase reached.
func (e *Executor) Execute(ctx context.Context, cfg domain.RunConfig) (*domain.Outcome, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	outcome := &domain.Outcome{Status: domain.RunSucceeded}
	for _, p := range e.Plan(cfg) {
		res, err := e.execute(ctx, p)
		outcome.Phases = append(outcome.Phases, res)
		if err != nil {
			outcome.Status = domain.RunFailed
			return outcome, err
		}
	}
	return outcome, nil
}

// ValidateOnly runs the validate phase regardless of skip settings
func (e *Executor) ValidateOnly(ctx context.Context, profile string) (domain.PhaseResult, error) {
	p := e.validatePhase(domain.RunConfig{Profile: profile, Target: domain.DefaultTarget})
	p.Skip = false
	return e.execute(ctx, p)
}

func (e *Executor) execute(ctx context.Context, p Phase) (domain.PhaseResult, error) {
	result := domain.PhaseResult{Phase: p.Name, Command: p.Command}

	if p.Skip {
		e.reporter.Warning("%s", p.SkipReason)
		result.Status = domain.PhaseSkipped
		result.Message = p.SkipReason
		return result, nil
	}

	e.reporter.Info("%s", p.Start)
	e.log.WithField("phase", p.Name).Debugf("invoking %s", p.Command)

	res, err := p.Invoke(ctx)
	result.Duration = res.Duration
	result.ExitCode = res.ExitCode

	if err != nil {
		e.reporter.Error("%s: %v", p.Failure, err)
		result.Status = domain.PhaseFailed
		result.Message = err.Error()
		result.Output = res.Output
		if errors.Is(err, runner.ErrNotFound) {
			e.log.WithField("phase", p.Name).Warnf("%s: bundle CLI is not installed or not on PATH", p.Command)
		}
		return result, &PhaseError{Phase: p.Name, Err: err}
	}

	e.reporter.Success("%s", p.Success)
	result.Status = domain.PhaseSucceeded
	result.Message = p.Success
	return result, nil
}
