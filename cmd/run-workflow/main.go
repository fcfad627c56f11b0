package main

import (
	"context"
	"io"
	"os"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/hochfrequenz/agent-deploy/internal/bundle"
	"github.com/hochfrequenz/agent-deploy/internal/config"
	"github.com/hochfrequenz/agent-deploy/internal/domain"
	"github.com/hochfrequenz/agent-deploy/internal/history"
	"github.com/hochfrequenz/agent-deploy/internal/logging"
	"github.com/hochfrequenz/agent-deploy/internal/notify"
	"github.com/hochfrequenz/agent-deploy/internal/runner"
	"github.com/hochfrequenz/agent-deploy/internal/status"
	"github.com/hochfrequenz/agent-deploy/internal/workflow"
)

func main() {
	os.Exit(execute(context.Background(), os.Args[1:], options{}))
}

// options carries the process boundary so tests can replace it
type options struct {
	stdout   io.Writer
	stderr   io.Writer
	runner   runner.Runner
	notifier notify.Notifier
	now      func() time.Time
}

// usageError marks errors that should be followed by the usage text
type usageError struct {
	err error
}

func (e usageError) Error() string { return e.err.Error() }

type app struct {
	opts     options
	reporter *status.Reporter
	cfg      *config.Config
	log      logging.Logger

	configPath string
	logLevel   string

	profile        string
	target         string
	skipValidation bool
	skipDeployment bool
	jobID          string

	configureCatalog string
	configureSchema  string
	configureFile    string
	configureShow    bool
	watchProfile     string
	watchDebounce    time.Duration
	historyLimit     int
	historyStatus    string
}

func newApp(opts options) *app {
	if opts.stdout == nil {
		opts.stdout = os.Stdout
	}
	if opts.stderr == nil {
		opts.stderr = os.Stderr
	}
	if opts.now == nil {
		opts.now = time.Now
	}
	return &app{
		opts:     opts,
		reporter: status.New(opts.stdout),
		log:      logging.New("cli"),
	}
}

// execute runs the CLI and returns the process exit code
func execute(ctx context.Context, args []string, opts options) int {
	a := newApp(opts)
	root := a.rootCommand()

	help, stop := helpTarget(root, args)
	if help != nil {
		help.InitDefaultHelpFlag()
		if err := help.Help(); err != nil {
			a.reporter.Error("%v", err)
			return 1
		}
		return 0
	}
	root.SetArgs(dropHelp(args, stop))

	cmd, err := root.ExecuteContextC(ctx)
	if err == nil {
		return 0
	}

	var usageErr usageError
	var phaseErr *workflow.PhaseError
	switch {
	case errors.As(err, &usageErr):
		a.reporter.Error("%v", usageErr)
		a.reporter.Raw(cmd.UsageString())
	case errors.As(err, &phaseErr):
		// already reported by the executor
	default:
		a.reporter.Error("%v", err)
	}
	return 1
}

func (a *app) rootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "run-workflow",
		Short: "Validate, deploy and run the agent asset bundle",
		Long: `run-workflow validates the agent's Databricks asset bundle, deploys it to
the selected target and runs the agent_deploy job. With --job-id it skips
validation and deployment and runs an existing job instead.`,
		Args:              noPositionalArgs,
		SilenceErrors:     true,
		SilenceUsage:      true,
		PersistentPreRunE: a.setup,
		RunE:              a.runWorkflow,
	}
	root.CompletionOptions.DisableDefaultCmd = true
	root.SetOut(a.opts.stdout)
	root.SetErr(a.opts.stderr)
	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return usageError{err}
	})

	root.PersistentFlags().StringVar(&a.configPath, "config", "", "config file path")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "diagnostic log level (debug, info, warn, error)")

	flags := root.Flags()
	flags.StringVar(&a.profile, "profile", "", "Databricks CLI profile")
	flags.StringVar(&a.target, "target", string(domain.DefaultTarget), "bundle target (dev or prod)")
	flags.BoolVar(&a.skipValidation, "skip-validation", false, "skip bundle validation")
	flags.BoolVar(&a.skipDeployment, "skip-deployment", false, "skip bundle deployment")
	flags.StringVar(&a.jobID, "job-id", "", "run an existing job by id (skips validation and deployment)")

	root.AddCommand(a.configureCommand(), a.watchCommand(), a.historyCommand())
	return root
}

// helpTarget reads args left to right and returns the command whose help
// was asked for. Everything after a help flag is ignored. When no help flag
// comes first it returns nil and the index of the first token it could not
// parse, or len(args).
func helpTarget(root *cobra.Command, args []string) (*cobra.Command, int) {
	cmd := root
	for i := 0; i < len(args); i++ {
		arg := args[i]
		switch {
		case isHelp(arg):
			return cmd, i
		case arg == "--" || arg == "-":
			return nil, i
		case strings.HasPrefix(arg, "-"):
			f, inline := lookupFlag(cmd, arg)
			if f == nil {
				return nil, i
			}
			if inline || f.NoOptDefVal != "" {
				continue
			}
			if i+1 >= len(args) || strings.HasPrefix(args[i+1], "-") {
				return nil, i
			}
			i++
		default:
			sub := subcommand(cmd, arg)
			if sub == nil {
				return nil, i
			}
			cmd = sub
		}
	}
	return nil, len(args)
}

// dropHelp removes help flags from args[from:] so they cannot mask the
// usage error at args[from]
func dropHelp(args []string, from int) []string {
	out := append([]string(nil), args[:from]...)
	for _, arg := range args[from:] {
		if !isHelp(arg) {
			out = append(out, arg)
		}
	}
	return out
}

func isHelp(arg string) bool {
	return arg == "--help" || arg == "-h"
}

// lookupFlag resolves --name, --name=value, -s and -s=value against the
// flags cmd accepts, inherited ones included
func lookupFlag(cmd *cobra.Command, arg string) (*pflag.Flag, bool) {
	long := strings.HasPrefix(arg, "--")
	name, _, inline := strings.Cut(strings.TrimLeft(arg, "-"), "=")

	for _, fs := range []*pflag.FlagSet{cmd.Flags(), cmd.PersistentFlags(), cmd.InheritedFlags()} {
		var f *pflag.Flag
		switch {
		case long:
			f = fs.Lookup(name)
		case len(name) == 1:
			f = fs.ShorthandLookup(name)
		}
		if f != nil {
			return f, inline
		}
	}
	return nil, false
}

func subcommand(cmd *cobra.Command, name string) *cobra.Command {
	for _, sub := range cmd.Commands() {
		if sub.Name() == name || sub.HasAlias(name) {
			return sub
		}
	}
	return nil
}

func noPositionalArgs(cmd *cobra.Command, args []string) error {
	if len(args) > 0 {
		return usageError{errors.Errorf("unknown argument %q for %q", args[0], cmd.CommandPath())}
	}
	return nil
}

// setup loads configuration and logging before any command runs
func (a *app) setup(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadWithLocalFallback(a.configPath)
	if err != nil {
		return err
	}
	a.cfg = cfg

	level := cfg.Logging.Level
	if a.logLevel != "" {
		level = a.logLevel
	}
	if err := logging.Configure(a.opts.stderr, level); err != nil {
		a.log.WithError(err).Warn("keeping the default log level")
	}
	return nil
}

// requireValues rejects string flags that swallowed the next flag as their value
func requireValues(flags *pflag.FlagSet) error {
	var err error
	flags.Visit(func(f *pflag.Flag) {
		if err != nil || f.Value.Type() != "string" {
			return
		}
		if strings.HasPrefix(f.Value.String(), "-") {
			err = usageError{errors.Errorf("value %q for --%s looks like a flag", f.Value.String(), f.Name)}
		}
	})
	return err
}

func (a *app) runner() runner.Runner {
	if a.opts.runner != nil {
		return a.opts.runner
	}
	return runner.NewExecRunner(
		runner.WithDir(a.cfg.Bundle.Root),
		runner.WithOutput(a.opts.stdout, a.opts.stderr),
		runner.WithTail(a.cfg.Bundle.OutputTail),
	)
}

func (a *app) executor() *workflow.Executor {
	cli := bundle.New(a.cfg.Bundle.CLI, a.runner())
	return workflow.New(cli, a.cfg.Bundle.JobName, a.reporter)
}

func (a *app) notifier() notify.Notifier {
	if a.opts.notifier != nil {
		return a.opts.notifier
	}
	n := a.cfg.Notifications
	if !n.Desktop && n.SlackWebhook == "" {
		return notify.NoopNotifier{}
	}
	return notify.NewMultiNotifier(
		notify.NewDesktopNotifier(n.Desktop),
		notify.NewSlackNotifier(n.SlackWebhook),
	)
}

func (a *app) runWorkflow(cmd *cobra.Command, args []string) error {
	if err := requireValues(cmd.Flags()); err != nil {
		return err
	}

	cfg, err := domain.NewRunConfig(a.profile, a.target, a.skipValidation, a.skipDeployment, a.jobID)
	if err != nil {
		return err
	}

	a.printHeader(cfg)

	run := history.NewRun(cfg, a.opts.now())
	outcome, err := a.executor().Execute(cmd.Context(), cfg)
	if outcome != nil {
		run.Status = outcome.Status
		run.Phases = outcome.Phases
		run.FinishedAt = a.opts.now()
		a.record(run)
		if nerr := a.notifier().Send(notify.ForOutcome(cfg, outcome, run.ID)); nerr != nil {
			a.log.WithError(nerr).Warn("sending notification")
		}
	}
	if err != nil {
		return err
	}

	a.printSummary(cfg)
	return nil
}

func (a *app) printHeader(cfg domain.RunConfig) {
	ws := a.cfg.Workspace
	job := a.cfg.Bundle.JobName
	if cfg.HasJobID() {
		job = cfg.JobID
	}
	a.reporter.Header("Agent deployment workflow",
		status.Field{Key: "Target", Value: string(cfg.Target)},
		status.Field{Key: "Profile", Value: cfg.ProfileOrDefault()},
		status.Field{Key: "Job", Value: job},
		status.Field{Key: "Workspace", Value: ws.Host},
		status.Field{Key: "Catalog", Value: ws.Catalog},
		status.Field{Key: "Schema", Value: ws.Schema},
	)
}

func (a *app) printSummary(cfg domain.RunConfig) {
	ws := a.cfg.Workspace
	a.reporter.Success("Deployment workflow completed for target '%s'", cfg.Target)
	a.reporter.Info("Model: %s", ws.UCModelName())
	a.reporter.Info("Serving endpoint: %s", ws.ServingEndpoint)
	a.reporter.Info("UC function: %s", ws.UCFunction)
	a.reporter.Info("Workspace: %s", ws.Host)
}

// record stores the run when history is enabled. Failures never change the exit code.
func (a *app) record(run *domain.Run) {
	if !a.cfg.History.Enabled {
		return
	}
	store, err := history.New(a.cfg.History.Path)
	if err != nil {
		a.log.WithError(err).Warn("opening run history")
		return
	}
	defer store.Close()

	if err := store.SaveRun(run); err != nil {
		a.log.WithError(err).Warn("saving run history")
		return
	}
	a.log.WithField("run_id", run.ID).Debug("run recorded")
}
