package logging

import (
	"bytes"
	"os"
	"strings"
	"testing"
)

func TestNew_TagsComponent(t *testing.T) {
	var buf bytes.Buffer
	log := New("workflow")

	if err := Configure(&buf, "debug"); err != nil {
		t.Fatal(err)
	}
	defer Configure(os.Stderr, "")

	log.Debug("hello")

	out := buf.String()
	if !strings.Contains(out, "component=workflow") {
		t.Errorf("output %q should carry component field", out)
	}
	if !strings.Contains(out, "hello") {
		t.Errorf("output %q should carry message", out)
	}
}

func TestConfigure_Levels(t *testing.T) {
	defer Configure(os.Stderr, "")

	tests := []struct {
		level   string
		want    string
		wantErr bool
	}{
		{"", "warning", false},
		{"info", "info", false},
		{"ERROR", "error", false},
		{"loud", "warning", true},
	}

	for _, tt := range tests {
		err := Configure(&bytes.Buffer{}, tt.level)
		if (err != nil) != tt.wantErr {
			t.Errorf("Configure(%q) error = %v, wantErr %v", tt.level, err, tt.wantErr)
		}
		if got := base.GetLevel().String(); got != tt.want {
			t.Errorf("Configure(%q) level = %s, want %s", tt.level, got, tt.want)
		}
	}
}

func TestDebugHiddenByDefault(t *testing.T) {
	var buf bytes.Buffer
	Configure(&buf, "")
	defer Configure(os.Stderr, "")

	New("runner").Debug("noise")
	New("runner").Warn("signal")

	if strings.Contains(buf.String(), "noise") || !strings.Contains(buf.String(), "signal") {
		t.Errorf("output = %q", buf.String())
	}
}
