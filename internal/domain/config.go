package domain

// RunConfig is the parsed command line of a single workflow invocation.
// It is built once and passed by value; nothing mutates it afterwards.
type RunConfig struct {
	Profile        string
	Target         Target
	SkipValidation bool
	SkipDeployment bool
	JobID          string
}

// NewRunConfig builds a RunConfig from raw flag values. An empty target
// falls back to DefaultTarget.
func NewRunConfig(profile, target string, skipValidation, skipDeployment bool, jobID string) (RunConfig, error) {
	if target == "" {
		target = string(DefaultTarget)
	}
	t, err := ParseTarget(target)
	if err != nil {
		return RunConfig{}, err
	}
	return RunConfig{
		Profile:        profile,
		Target:         t,
		SkipValidation: skipValidation,
		SkipDeployment: skipDeployment,
		JobID:          jobID,
	}, nil
}

// Validate checks the only locally enforced rule: the target is known.
// Everything else (profile existence, job id format) is left to the bundle CLI.
func (c RunConfig) Validate() error {
	if _, err := ParseTarget(string(c.Target)); err != nil {
		return err
	}
	return nil
}

// HasJobID reports whether an existing job should be run instead of the bundle job
func (c RunConfig) HasJobID() bool {
	return c.JobID != ""
}

// ShouldValidate reports whether the validate phase executes.
// A job id forces the skip regardless of SkipValidation.
func (c RunConfig) ShouldValidate() bool {
	return !c.SkipValidation && !c.HasJobID()
}

// ShouldDeploy reports whether the deploy phase executes.
// A job id forces the skip regardless of SkipDeployment.
func (c RunConfig) ShouldDeploy() bool {
	return !c.SkipDeployment && !c.HasJobID()
}

// ProfileOrDefault returns the profile for display purposes
func (c RunConfig) ProfileOrDefault() string {
	if c.Profile == "" {
		return "DEFAULT"
	}
	return c.Profile
}
