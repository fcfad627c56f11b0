package domain

import (
	"strings"

	"github.com/pkg/errors"
)

// Target selects the bundle deployment environment
type Target string

const (
	TargetDev  Target = "dev"
	TargetProd Target = "prod"
)

// DefaultTarget is used when no --target flag is given
const DefaultTarget = TargetDev

// Targets lists the accepted targets in display order
var Targets = []Target{TargetDev, TargetProd}

// ParseTarget converts a flag value into a Target
func ParseTarget(s string) (Target, error) {
	for _, t := range Targets {
		if s == string(t) {
			return t, nil
		}
	}
	return "", errors.Errorf("invalid target '%s'. Must be one of: %s", s, targetList())
}

func targetList() string {
	names := make([]string, len(Targets))
	for i, t := range Targets {
		names[i] = string(t)
	}
	return strings.Join(names, ", ")
}

// PhaseName identifies one step of the deployment workflow
type PhaseName string

const (
	PhaseValidate PhaseName = "validate"
	PhaseDeploy   PhaseName = "deploy"
	PhaseRun      PhaseName = "run"
)

// PhaseStatus is the terminal state of a single phase
type PhaseStatus string

const (
	PhaseSkipped   PhaseStatus = "skipped"
	PhaseSucceeded PhaseStatus = "succeeded"
	PhaseFailed    PhaseStatus = "failed"
)

// RunStatus represents the terminal state of a workflow run
type RunStatus string

const (
	RunSucceeded RunStatus = "succeeded"
	RunFailed    RunStatus = "failed"
)
