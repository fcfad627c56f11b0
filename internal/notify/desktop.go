package notify

import (
	"os/exec"
	"runtime"
	"strings"

	"github.com/pkg/errors"
)

// DesktopNotifier shows a run result as a desktop notification through
// osascript on macOS or notify-send on Linux. Other systems are ignored.
type DesktopNotifier struct {
	enabled bool
	goos    string
	run     func(name string, args ...string) error
}

// NewDesktopNotifier creates a desktop notifier for the current OS
func NewDesktopNotifier(enabled bool) *DesktopNotifier {
	return &DesktopNotifier{
		enabled: enabled,
		goos:    runtime.GOOS,
		run: func(name string, args ...string) error {
			return exec.Command(name, args...).Run()
		},
	}
}

// Send shows n
func (d *DesktopNotifier) Send(n Notification) error {
	if !d.enabled {
		return nil
	}
	name, args, ok := desktopCommand(d.goos, n)
	if !ok {
		return nil
	}
	return errors.Wrapf(d.run(name, args...), "running %s", name)
}

// desktopCommand returns the command that displays n on goos
func desktopCommand(goos string, n Notification) (string, []string, bool) {
	body := n.Message
	if n.RunID != "" {
		body += " (run " + shortRunID(n.RunID) + ")"
	}

	switch goos {
	case "darwin":
		script := `display notification "` + appleScriptEscape(body) +
			`" with title "` + appleScriptEscape(n.Title) + `"`
		if n.Type == NotifyError {
			script += ` sound name "Basso"`
		}
		return "osascript", []string{"-e", script}, true
	case "linux":
		args := []string{"--app-name", "agent-deploy", "--icon", IconForType(n.Type)}
		if n.Type == NotifyError {
			args = append(args, "--urgency", "critical")
		}
		return "notify-send", append(args, n.Title, body), true
	default:
		return "", nil, false
	}
}

// appleScriptEscape quotes s for use inside an AppleScript string literal
func appleScriptEscape(s string) string {
	return strings.NewReplacer(`\`, `\\`, `"`, `\"`).Replace(s)
}

// IconForType returns the freedesktop icon name for a notification type
func IconForType(t NotificationType) string {
	switch t {
	case NotifySuccess:
		return "dialog-positive"
	case NotifyWarning:
		return "dialog-warning"
	case NotifyError:
		return "dialog-error"
	default:
		return "dialog-information"
	}
}

func shortRunID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
