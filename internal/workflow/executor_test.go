package workflow

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/pkg/errors"

	"github.com/hochfrequenz/agent-deploy/internal/bundle"
	"github.com/hochfrequenz/agent-deploy/internal/domain"
	"github.com/hochfrequenz/agent-deploy/internal/runner"
	"github.com/hochfrequenz/agent-deploy/internal/status"
)

func newTestExecutor(rec *runner.Recorder) (*Executor, *bytes.Buffer) {
	var out bytes.Buffer
	cli := bundle.New("databricks", rec)
	return New(cli, "", status.New(&out)), &out
}

func callLines(rec *runner.Recorder) []string {
	var lines []string
	for _, c := range rec.Calls() {
		lines = append(lines, c.String())
	}
	return lines
}

func lastLine(out string) string {
	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	return lines[len(lines)-1]
}

func TestExecute_DefaultRunsAllPhases(t *testing.T) {
	rec := runner.NewRecorder()
	exec, out := newTestExecutor(rec)

	cfg, _ := domain.NewRunConfig("", "", false, false, "")
	outcome, err := exec.Execute(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	want := []string{
		"databricks bundle validate",
		"databricks bundle deploy --target dev",
		"databricks bundle run agent_deploy --target dev",
	}
	got := callLines(rec)
	if strings.Join(got, "\n") != strings.Join(want, "\n") {
		t.Errorf("calls = %v, want %v", got, want)
	}
	if outcome.Status != domain.RunSucceeded {
		t.Errorf("Status = %s, want succeeded", outcome.Status)
	}
	if len(outcome.Phases) != 3 {
		t.Fatalf("got %d phase results, want 3", len(outcome.Phases))
	}
	for _, p := range outcome.Phases {
		if p.Status != domain.PhaseSucceeded {
			t.Errorf("phase %s = %s, want succeeded", p.Phase, p.Status)
		}
	}
	if !strings.Contains(out.String(), "[SUCCESS] Bundle job 'agent_deploy' completed successfully") {
		t.Errorf("output missing run success:\n%s", out.String())
	}
}

func TestExecute_ProfileForwarded(t *testing.T) {
	rec := runner.NewRecorder()
	exec, _ := newTestExecutor(rec)

	cfg, _ := domain.NewRunConfig("fe", "prod", false, false, "")
	if _, err := exec.Execute(context.Background(), cfg); err != nil {
		t.Fatal(err)
	}

	for _, c := range rec.Calls() {
		if !strings.HasSuffix(c.String(), "--profile fe") {
			t.Errorf("call %q should forward the profile", c.String())
		}
	}
	if got := rec.Calls()[1].String(); got != "databricks bundle deploy --target prod --profile fe" {
		t.Errorf("deploy call = %q", got)
	}
}

func TestExecute_JobIDSkipsValidateAndDeploy(t *testing.T) {
	for _, skip := range []bool{false, true} {
		rec := runner.NewRecorder()
		exec, out := newTestExecutor(rec)

		cfg, _ := domain.NewRunConfig("", "dev", skip, skip, "123456")
		outcome, err := exec.Execute(context.Background(), cfg)
		if err != nil {
			t.Fatalf("skip=%v: Execute failed: %v", skip, err)
		}

		calls := callLines(rec)
		if len(calls) != 1 || calls[0] != "databricks jobs run-now 123456" {
			t.Errorf("skip=%v: calls = %v, want only run-now 123456", skip, calls)
		}
		if !strings.Contains(out.String(), "[WARNING] Skipping bundle validation") {
			t.Errorf("skip=%v: missing validate skip warning:\n%s", skip, out.String())
		}
		if !strings.Contains(out.String(), "[WARNING] Skipping bundle deployment") {
			t.Errorf("skip=%v: missing deploy skip warning:\n%s", skip, out.String())
		}
		if outcome.Phases[0].Status != domain.PhaseSkipped || outcome.Phases[1].Status != domain.PhaseSkipped {
			t.Errorf("skip=%v: validate/deploy should be skipped: %+v", skip, outcome.Phases)
		}
	}
}

func TestExecute_SkipFlagsRunOnlyRunPhase(t *testing.T) {
	rec := runner.NewRecorder()
	exec, out := newTestExecutor(rec)

	cfg, _ := domain.NewRunConfig("", "dev", true, true, "")
	if _, err := exec.Execute(context.Background(), cfg); err != nil {
		t.Fatal(err)
	}

	calls := callLines(rec)
	if len(calls) != 1 || calls[0] != "databricks bundle run agent_deploy --target dev" {
		t.Errorf("calls = %v, want only the bundle run", calls)
	}
	if !strings.Contains(out.String(), "Skipping bundle validation (--skip-validation)") {
		t.Errorf("missing validate skip warning:\n%s", out.String())
	}
	if !strings.Contains(out.String(), "Skipping bundle deployment (--skip-deployment)") {
		t.Errorf("missing deploy skip warning:\n%s", out.String())
	}
}

func TestExecute_ValidateFailureStops(t *testing.T) {
	rec := runner.NewRecorder().FailOn("databricks bundle validate", 1)
	exec, out := newTestExecutor(rec)

	cfg, _ := domain.NewRunConfig("", "dev", false, false, "")
	outcome, err := exec.Execute(context.Background(), cfg)

	var phaseErr *PhaseError
	if !errors.As(err, &phaseErr) || phaseErr.Phase != domain.PhaseValidate {
		t.Fatalf("err = %v, want validate PhaseError", err)
	}
	if n := len(rec.Calls()); n != 1 {
		t.Errorf("got %d calls, deploy and run must not execute", n)
	}
	if outcome.Status != domain.RunFailed {
		t.Errorf("Status = %s, want failed", outcome.Status)
	}
	if len(outcome.Phases) != 1 {
		t.Errorf("outcome should stop at the failed phase, got %d phases", len(outcome.Phases))
	}
	if got := lastLine(out.String()); got != "[ERROR] Bundle validation failed: exit status 1" {
		t.Errorf("last line = %q", got)
	}
}

func TestExecute_DeployFailureStops(t *testing.T) {
	rec := runner.NewRecorder().FailOn("databricks bundle deploy", 2)
	exec, out := newTestExecutor(rec)

	cfg, _ := domain.NewRunConfig("", "prod", false, false, "")
	outcome, err := exec.Execute(context.Background(), cfg)
	if err == nil {
		t.Fatal("expected deploy failure")
	}
	if n := len(rec.Calls()); n != 2 {
		t.Errorf("got %d calls, run must not execute", n)
	}
	failed, ok := outcome.FailedPhase()
	if !ok || failed.Phase != domain.PhaseDeploy || failed.ExitCode != 2 {
		t.Errorf("failed phase = %+v", failed)
	}
	if !strings.HasPrefix(lastLine(out.String()), "[ERROR] Bundle deployment failed") {
		t.Errorf("last line = %q", lastLine(out.String()))
	}
}

func TestExecute_FailureKeepsOutputTail(t *testing.T) {
	rec := runner.NewRecorder().
		FailOn("databricks bundle deploy", 2).
		Output("Uploading bundle files\nError: permission denied\n").
		Took(4 * time.Second)
	exec, _ := newTestExecutor(rec)

	cfg, _ := domain.NewRunConfig("", "dev", false, false, "")
	outcome, err := exec.Execute(context.Background(), cfg)
	if err == nil {
		t.Fatal("expected deploy failure")
	}

	validate, deploy := outcome.Phases[0], outcome.Phases[1]
	if validate.Output != "" {
		t.Errorf("successful phase should not keep output, got %q", validate.Output)
	}
	if deploy.Output != "Uploading bundle files\nError: permission denied\n" {
		t.Errorf("deploy Output = %q", deploy.Output)
	}
	if deploy.ExitCode != 2 || deploy.Duration != 4*time.Second {
		t.Errorf("deploy = %+v", deploy)
	}
}

func TestExecute_RunFailure(t *testing.T) {
	rec := runner.NewRecorder().FailOn("databricks jobs run-now", 1)
	exec, out := newTestExecutor(rec)

	cfg, _ := domain.NewRunConfig("", "dev", false, false, "42")
	_, err := exec.Execute(context.Background(), cfg)
	if err == nil {
		t.Fatal("expected run failure")
	}
	if got := lastLine(out.String()); got != "[ERROR] Job 42 failed: exit status 1" {
		t.Errorf("last line = %q", got)
	}
}

func TestExecute_MissingBinaryIsFatal(t *testing.T) {
	rec := runner.NewRecorder().Missing("databricks")
	exec, out := newTestExecutor(rec)

	cfg, _ := domain.NewRunConfig("", "dev", false, false, "")
	_, err := exec.Execute(context.Background(), cfg)
	if !errors.Is(err, runner.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
	if n := len(rec.Calls()); n != 1 {
		t.Errorf("got %d calls, want 1", n)
	}
	if !strings.HasPrefix(lastLine(out.String()), "[ERROR] Bundle validation failed") {
		t.Errorf("last line = %q", lastLine(out.String()))
	}
}

func TestExecute_InvalidTargetInvokesNothing(t *testing.T) {
	rec := runner.NewRecorder()
	exec, _ := newTestExecutor(rec)

	_, err := exec.Execute(context.Background(), domain.RunConfig{Target: "staging"})
	if err == nil {
		t.Fatal("expected target error")
	}
	if n := len(rec.Calls()); n != 0 {
		t.Errorf("got %d calls, want none", n)
	}
}

func TestPlan_Order(t *testing.T) {
	exec, _ := newTestExecutor(runner.NewRecorder())
	cfg, _ := domain.NewRunConfig("", "dev", false, false, "")

	plan := exec.Plan(cfg)
	want := []domain.PhaseName{domain.PhaseValidate, domain.PhaseDeploy, domain.PhaseRun}
	if len(plan) != len(want) {
		t.Fatalf("plan has %d phases, want %d", len(plan), len(want))
	}
	for i, p := range plan {
		if p.Name != want[i] {
			t.Errorf("phase %d = %s, want %s", i, p.Name, want[i])
		}
		if p.Skip {
			t.Errorf("phase %s should not be skipped", p.Name)
		}
	}
	if plan[2].Command != "databricks bundle run agent_deploy --target dev" {
		t.Errorf("run command = %q", plan[2].Command)
	}
}

func TestValidateOnly(t *testing.T) {
	rec := runner.NewRecorder()
	exec, _ := newTestExecutor(rec)

	res, err := exec.ValidateOnly(context.Background(), "p")
	if err != nil {
		t.Fatal(err)
	}
	if res.Status != domain.PhaseSucceeded {
		t.Errorf("Status = %s, want succeeded", res.Status)
	}
	calls := callLines(rec)
	if len(calls) != 1 || calls[0] != "databricks bundle validate --profile p" {
		t.Errorf("calls = %v", calls)
	}
}
