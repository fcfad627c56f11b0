package runner

import (
	"context"
	"strings"
	"sync"
	"time"
)

// Call is one invocation seen by a Recorder
type Call struct {
	Name string
	Args []string
}

// String renders the call as a command line
func (c Call) String() string {
	return CommandLine(c.Name, c.Args...)
}

// Recorder is a scripted Runner for tests. It records every call and
// answers with the exit code registered for the first matching prefix.
type Recorder struct {
	mu      sync.Mutex
	calls   []Call
	exits   map[string]int
	missing map[string]bool
	output  string
	took    time.Duration
}

// NewRecorder returns a Recorder where every command succeeds
func NewRecorder() *Recorder {
	return &Recorder{
		exits:   make(map[string]int),
		missing: make(map[string]bool),
	}
}

// FailOn makes any call whose command line starts with prefix exit with code
func (r *Recorder) FailOn(prefix string, code int) *Recorder {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.exits[prefix] = code
	return r
}

// Missing makes calls to the named binary fail with ErrNotFound
func (r *Recorder) Missing(name string) *Recorder {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.missing[name] = true
	return r
}

// Output sets the captured output returned with every result
func (r *Recorder) Output(s string) *Recorder {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.output = s
	return r
}

// Took sets the duration reported with every result
func (r *Recorder) Took(d time.Duration) *Recorder {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.took = d
	return r
}

// Run implements Runner
func (r *Recorder) Run(ctx context.Context, name string, args ...string) (Result, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	call := Call{Name: name, Args: append([]string(nil), args...)}
	r.calls = append(r.calls, call)

	if r.missing[name] {
		return Result{ExitCode: -1}, ErrNotFound
	}
	line := call.String()
	for prefix, code := range r.exits {
		if strings.HasPrefix(line, prefix) {
			return Result{ExitCode: code, Output: r.output, Duration: r.took}, &ExitError{Code: code}
		}
	}
	return Result{Output: r.output, Duration: r.took}, nil
}

// Calls returns a copy of the recorded calls
func (r *Recorder) Calls() []Call {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Call(nil), r.calls...)
}
