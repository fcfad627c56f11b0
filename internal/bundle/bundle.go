// Package bundle wraps the Databricks CLI commands used by the deployment
// workflow. It only builds argument lists and hands them to a runner; what
// the CLI does with them is opaque.
package bundle

import (
	"context"

	"github.com/hochfrequenz/agent-deploy/internal/domain"
	"github.com/hochfrequenz/agent-deploy/internal/runner"
)

const (
	// DefaultBinary is the CLI invoked when no other binary is configured
	DefaultBinary = "databricks"
	// DefaultJobName is the bundle job that deploys the agent
	DefaultJobName = "agent_deploy"
)

// CLI invokes bundle and job commands through a runner
type CLI struct {
	Binary string
	Runner runner.Runner
}

// New creates a CLI. An empty binary falls back to DefaultBinary.
func New(binary string, r runner.Runner) *CLI {
	if binary == "" {
		binary = DefaultBinary
	}
	return &CLI{Binary: binary, Runner: r}
}

// Validate runs `bundle validate`
func (c *CLI) Validate(ctx context.Context, profile string) (runner.Result, error) {
	return c.Runner.Run(ctx, c.Binary, ValidateArgs(profile)...)
}

// Deploy runs `bundle deploy` for the target
func (c *CLI) Deploy(ctx context.Context, target domain.Target, profile string) (runner.Result, error) {
	return c.Runner.Run(ctx, c.Binary, DeployArgs(target, profile)...)
}

// RunJobByID triggers an existing job by its numeric id
func (c *CLI) RunJobByID(ctx context.Context, jobID, profile string) (runner.Result, error) {
	return c.Runner.Run(ctx, c.Binary, RunJobByIDArgs(jobID, profile)...)
}

// RunBundleJob runs a job defined in the bundle by its resource key
func (c *CLI) RunBundleJob(ctx context.Context, jobName string, target domain.Target, profile string) (runner.Result, error) {
	return c.Runner.Run(ctx, c.Binary, RunBundleJobArgs(jobName, target, profile)...)
}

// CommandLine renders args as they would be run by this CLI
func (c *CLI) CommandLine(args []string) string {
	return runner.CommandLine(c.Binary, args...)
}

// ValidateArgs builds: bundle validate [--profile P]
func ValidateArgs(profile string) []string {
	return withProfile([]string{"bundle", "validate"}, profile)
}

// DeployArgs builds: bundle deploy --target T [--profile P]
func DeployArgs(target domain.Target, profile string) []string {
	return withProfile([]string{"bundle", "deploy", "--target", string(target)}, profile)
}

// RunJobByIDArgs builds: jobs run-now ID [--profile P]
func RunJobByIDArgs(jobID, profile string) []string {
	return withProfile([]string{"jobs", "run-now", jobID}, profile)
}

// RunBundleJobArgs builds: bundle run NAME --target T [--profile P]
func RunBundleJobArgs(jobName string, target domain.Target, profile string) []string {
	if jobName == "" {
		jobName = DefaultJobName
	}
	return withProfile([]string{"bundle", "run", jobName, "--target", string(target)}, profile)
}

func withProfile(args []string, profile string) []string {
	if profile == "" {
		return args
	}
	return append(args, "--profile", profile)
}
