package app

// StepOutcome is the transient result of one successful orchestrator run.
// Failures are reported as classified errors instead.
type StepOutcome struct {
	// Operation is the lifecycle operation that ran.
	Operation string

	// Environment is the target environment name.
	Environment string

	// Info is an optional human-readable payload, e.g. the provisioned
	// address or an "already destroyed" note.
	Info string
}

func outcome(operation, env, info string) *StepOutcome {
	return &StepOutcome{Operation: operation, Environment: env, Info: info}
}
