package app

import (
	"context"
	"time"

	"trackerdeploy/internal/core/environment"
)

// EnvironmentSummary is one row of the list output.
type EnvironmentSummary struct {
	Name      string
	Phase     environment.Phase
	Provider  environment.ProviderKind
	Address   string
	UpdatedAt time.Time
}

// List returns a summary of every stored environment, sorted by name.
func (a *App) List(ctx context.Context) ([]EnvironmentSummary, error) {
	names, err := a.store.List()
	if err != nil {
		return nil, persistenceFailure(err)
	}

	summaries := make([]EnvironmentSummary, 0, len(names))
	for _, name := range names {
		env, err := a.load(name)
		if err != nil {
			return nil, err
		}
		summaries = append(summaries, EnvironmentSummary{
			Name:      env.Name,
			Phase:     env.Phase,
			Provider:  env.Inputs.Provider.Kind,
			Address:   env.Outputs.InstanceAddress,
			UpdatedAt: env.UpdatedAt,
		})
	}
	return summaries, nil
}

// Show returns the full environment record for a name.
func (a *App) Show(ctx context.Context, name string) (*environment.Environment, error) {
	return a.load(name)
}
