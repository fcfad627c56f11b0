package notify

import (
	"fmt"
	"strings"

	"github.com/hochfrequenz/agent-deploy/internal/domain"
)

// NotificationType represents the type of notification
type NotificationType int

const (
	NotifyInfo NotificationType = iota
	NotifySuccess
	NotifyWarning
	NotifyError
)

// Notification is the end-of-run message. The run fields are optional and
// only filled in by ForOutcome.
type Notification struct {
	Title   string
	Message string
	Type    NotificationType

	RunID    string
	Target   domain.Target
	Phase    domain.PhaseName // failed phase
	ExitCode int
	Output   string // tail of the failed command's output
}

// Notifier is the interface for sending notifications
type Notifier interface {
	Send(n Notification) error
}

// MultiNotifier sends to multiple notifiers
type MultiNotifier struct {
	notifiers []Notifier
}

// NewMultiNotifier creates a notifier that sends to all provided notifiers
func NewMultiNotifier(notifiers ...Notifier) *MultiNotifier {
	return &MultiNotifier{notifiers: notifiers}
}

// Send sends the notification to all notifiers
func (m *MultiNotifier) Send(n Notification) error {
	var lastErr error
	for _, notifier := range m.notifiers {
		if err := notifier.Send(n); err != nil {
			lastErr = err
		}
	}
	return lastErr
}

// NoopNotifier does nothing (for testing or disabled notifications)
type NoopNotifier struct{}

func (NoopNotifier) Send(n Notification) error { return nil }

// ForOutcome builds the end-of-run notification for a workflow outcome
func ForOutcome(cfg domain.RunConfig, outcome *domain.Outcome, runID string) Notification {
	n := Notification{
		RunID:  runID,
		Target: cfg.Target,
	}

	if failed, ok := outcome.FailedPhase(); ok {
		n.Type = NotifyError
		n.Title = fmt.Sprintf("Agent deployment failed (%s)", cfg.Target)
		n.Message = fmt.Sprintf("%s phase failed: %s", failed.Phase, failed.Message)
		n.Phase = failed.Phase
		n.ExitCode = failed.ExitCode
		n.Output = failed.Output
		return n
	}

	var ran, skipped []string
	for _, p := range outcome.Phases {
		switch p.Status {
		case domain.PhaseSucceeded:
			ran = append(ran, string(p.Phase))
		case domain.PhaseSkipped:
			skipped = append(skipped, string(p.Phase))
		}
	}

	n.Type = NotifySuccess
	n.Title = fmt.Sprintf("Agent deployment succeeded (%s)", cfg.Target)
	n.Message = "Completed: " + strings.Join(ran, ", ")
	if len(skipped) > 0 {
		n.Message += "; skipped: " + strings.Join(skipped, ", ")
	}
	return n
}
