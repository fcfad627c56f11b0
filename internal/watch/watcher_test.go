package watch

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestRelevant(t *testing.T) {
	tests := []struct {
		path string
		want bool
	}{
		{"databricks.yml", true},
		{"resources/agent.job.yaml", true},
		{"src/agent.py", true},
		{"sql/create_tables.sql", true},
		{"fixtures/request.json", true},
		{"README.md", false},
		{".#databricks.yml", false},
		{"agent.py~", false},
		{"CONFIG.YAML", true},
	}

	for _, tt := range tests {
		if got := Relevant(tt.path); got != tt.want {
			t.Errorf("Relevant(%q) = %v, want %v", tt.path, got, tt.want)
		}
	}
}

func TestBundleWatcher_BatchesChanges(t *testing.T) {
	root := t.TempDir()
	if err := os.MkdirAll(filepath.Join(root, "src"), 0755); err != nil {
		t.Fatal(err)
	}

	changes := make(chan []string, 4)
	bw, err := NewBundleWatcher(root, func(files []string) {
		changes <- files
	})
	if err != nil {
		t.Fatal(err)
	}
	bw.SetDebounce(200 * time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	bw.Start(ctx)
	defer bw.Stop()

	os.WriteFile(filepath.Join(root, "databricks.yml"), []byte("bundle: {}"), 0644)
	os.WriteFile(filepath.Join(root, "src", "agent.py"), []byte("print()"), 0644)
	os.WriteFile(filepath.Join(root, "notes.md"), []byte("ignored"), 0644)

	select {
	case files := <-changes:
		if len(files) != 2 {
			t.Errorf("files = %v, want databricks.yml and src/agent.py", files)
		}
		for _, f := range files {
			if filepath.Ext(f) == ".md" {
				t.Errorf("irrelevant file %s should be filtered", f)
			}
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for change batch")
	}
}

func TestBundleWatcher_SkipsDotDatabricks(t *testing.T) {
	root := t.TempDir()
	if err := os.MkdirAll(filepath.Join(root, ".databricks", "bundle"), 0755); err != nil {
		t.Fatal(err)
	}

	changes := make(chan []string, 1)
	bw, err := NewBundleWatcher(root, func(files []string) { changes <- files })
	if err != nil {
		t.Fatal(err)
	}
	bw.SetDebounce(20 * time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	bw.Start(ctx)
	defer bw.Stop()

	os.WriteFile(filepath.Join(root, ".databricks", "bundle", "state.json"), []byte("{}"), 0644)

	select {
	case files := <-changes:
		t.Errorf("unexpected change batch %v", files)
	case <-time.After(300 * time.Millisecond):
	}
}

func TestNewBundleWatcher_MissingRoot(t *testing.T) {
	if _, err := NewBundleWatcher(filepath.Join(t.TempDir(), "nope"), nil); err == nil {
		t.Error("expected error for missing root")
	}
}
