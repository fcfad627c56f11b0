// Package runner executes external commands by name and argument list.
// Nothing is ever passed through a shell, so profile, target and job id
// values cannot be interpreted as shell syntax.
package runner

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/hochfrequenz/agent-deploy/internal/logging"
)

// ErrNotFound is returned when the command binary cannot be located
var ErrNotFound = errors.New("command not found")

// ExitError reports a command that ran and exited non-zero
type ExitError struct {
	Code int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("exit status %d", e.Code)
}

// Result describes a finished command
type Result struct {
	ExitCode int
	Output   string
	Duration time.Duration
}

// Runner runs a command and blocks until it exits
type Runner interface {
	Run(ctx context.Context, name string, args ...string) (Result, error)
}

// CommandLine renders a command for display. It is never executed.
func CommandLine(name string, args ...string) string {
	parts := make([]string, 0, len(args)+1)
	parts = append(parts, name)
	for _, a := range args {
		if a == "" || strings.ContainsAny(a, " \t\"'") {
			a = fmt.Sprintf("%q", a)
		}
		parts = append(parts, a)
	}
	return strings.Join(parts, " ")
}

// ExecRunner runs commands as child processes
type ExecRunner struct {
	dir    string
	stdout io.Writer
	stderr io.Writer
	tail   int
	log    logging.Logger
}

// Option configures an ExecRunner
type Option func(*ExecRunner)

// WithDir sets the working directory of every command
func WithDir(dir string) Option {
	return func(r *ExecRunner) { r.dir = dir }
}

// WithOutput sets where the child's stdout and stderr are streamed
func WithOutput(stdout, stderr io.Writer) Option {
	return func(r *ExecRunner) {
		r.stdout = stdout
		r.stderr = stderr
	}
}

// WithTail sets how many bytes of combined output are kept in Result.Output
func WithTail(n int) Option {
	return func(r *ExecRunner) { r.tail = n }
}

// NewExecRunner creates a runner streaming to the process's own stdout/stderr
func NewExecRunner(opts ...Option) *ExecRunner {
	r := &ExecRunner{
		stdout: os.Stdout,
		stderr: os.Stderr,
		tail:   4096,
		log:    logging.New("runner"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run starts the command, streams its output and waits for it to exit
func (r *ExecRunner) Run(ctx context.Context, name string, args ...string) (Result, error) {
	line := CommandLine(name, args...)
	r.log.WithField("dir", r.dir).Debugf("exec: %s", line)

	path, err := exec.LookPath(name)
	if err != nil {
		return Result{ExitCode: -1}, errors.Wrap(ErrNotFound, name)
	}

	tail := newTailBuffer(r.tail)
	cmd := exec.CommandContext(ctx, path, args...)
	cmd.Dir = r.dir
	cmd.Stdin = os.Stdin
	cmd.Stdout = io.MultiWriter(r.stdout, tail)
	cmd.Stderr = io.MultiWriter(r.stderr, tail)

	start := time.Now()
	err = cmd.Run()
	res := Result{
		Output:   tail.String(),
		Duration: time.Since(start),
	}
	if cmd.ProcessState != nil {
		res.ExitCode = cmd.ProcessState.ExitCode()
	}
	r.log.WithField("exit_code", res.ExitCode).
		WithField("duration", res.Duration).
		Debugf("done: %s", line)

	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return res, &ExitError{Code: exitErr.ExitCode()}
		}
		return res, errors.Wrapf(err, "running %s", name)
	}
	return res, nil
}

// tailBuffer keeps the last max bytes written to it
type tailBuffer struct {
	max int
	buf []byte
}

func newTailBuffer(max int) *tailBuffer {
	return &tailBuffer{max: max}
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	if t.max <= 0 {
		return len(p), nil
	}
	t.buf = append(t.buf, p...)
	if over := len(t.buf) - t.max; over > 0 {
		t.buf = t.buf[over:]
	}
	return len(p), nil
}

func (t *tailBuffer) String() string {
	return string(t.buf)
}
