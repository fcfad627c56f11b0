//go:build integration

package integration

import (
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
)

// fakeCLIScript stands in for the databricks CLI. It appends its arguments
// to $FAKE_CLI_LOG and exits 7 when "$1 $2" equals $FAKE_CLI_FAIL.
const fakeCLIScript = `#!/bin/sh
echo "$@" >> "$FAKE_CLI_LOG"
if [ "$1 $2" = "$FAKE_CLI_FAIL" ]; then
  echo "Error: simulated failure" >&2
  exit 7
fi
echo "ok: $@"
exit 0
`

// binaryPath returns the path to the built CLI binary
func binaryPath(t *testing.T) string {
	t.Helper()
	out := filepath.Join(t.TempDir(), "run-workflow")

	cmd := exec.Command("go", "build", "-o", out, "../cmd/run-workflow")
	if b, err := cmd.CombinedOutput(); err != nil {
		t.Fatalf("Failed to build binary: %v\n%s", err, b)
	}
	return out
}

// bundleFixture is a temp bundle root with a fake CLI and a config file
type bundleFixture struct {
	root       string
	cli        string
	log        string
	configPath string
}

func newBundleFixture(t *testing.T) *bundleFixture {
	t.Helper()
	root := t.TempDir()

	f := &bundleFixture{
		root:       root,
		cli:        filepath.Join(root, "databricks"),
		log:        filepath.Join(root, "calls.log"),
		configPath: filepath.Join(root, "agent-deploy.toml"),
	}

	if err := os.WriteFile(f.cli, []byte(fakeCLIScript), 0755); err != nil {
		t.Fatalf("Failed to write fake CLI: %v", err)
	}

	config := `[bundle]
cli = "` + f.cli + `"
root = "` + root + `"

[notifications]
desktop = false
`
	if err := os.WriteFile(f.configPath, []byte(config), 0644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}
	return f
}

// run executes the binary against the fixture; fail selects the failing subcommand
func (f *bundleFixture) run(t *testing.T, binary, fail string, args ...string) (string, int) {
	t.Helper()
	cmd := exec.Command(binary, append([]string{"--config", f.configPath}, args...)...)
	cmd.Env = append(os.Environ(), "FAKE_CLI_LOG="+f.log, "FAKE_CLI_FAIL="+fail)
	out, err := cmd.CombinedOutput()

	code := 0
	if exitErr, ok := err.(*exec.ExitError); ok {
		code = exitErr.ExitCode()
	} else if err != nil {
		t.Fatalf("running %s: %v", binary, err)
	}
	return string(out), code
}

// calls returns the argument lines recorded by the fake CLI
func (f *bundleFixture) calls(t *testing.T) []string {
	t.Helper()
	data, err := os.ReadFile(f.log)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		t.Fatal(err)
	}
	return strings.Split(strings.TrimSpace(string(data)), "\n")
}
