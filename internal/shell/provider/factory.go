package provider

import (
	"fmt"
	"log/slog"
	"os"

	"trackerdeploy/internal/core/environment"
	"trackerdeploy/internal/shell/tool"
)

// NewProvider creates the provisioning backend named by the environment's
// provider settings. API tokens are read from the process environment via
// the configured variable name; they are never persisted with the
// environment state.
func NewProvider(settings environment.ProviderSettings, exec *tool.Executor, logger *slog.Logger) (Provider, error) {
	switch settings.Kind {
	case environment.ProviderTofuLXD:
		return NewTofuProvider(exec, logger), nil

	case environment.ProviderHetzner:
		token, err := tokenFromEnv(settings)
		if err != nil {
			return nil, err
		}
		return NewHetznerProvider(token, logger), nil

	case environment.ProviderDigitalOcean:
		token, err := tokenFromEnv(settings)
		if err != nil {
			return nil, err
		}
		return NewDigitalOceanProvider(token, logger), nil

	case environment.ProviderAWS:
		accessKeyID := os.Getenv("AWS_ACCESS_KEY_ID")
		secretAccessKey := os.Getenv("AWS_SECRET_ACCESS_KEY")
		if accessKeyID == "" || secretAccessKey == "" {
			return nil, fmt.Errorf("provider %q requires AWS_ACCESS_KEY_ID and AWS_SECRET_ACCESS_KEY", settings.Kind)
		}
		return NewAWSProvider(accessKeyID, secretAccessKey, logger), nil

	default:
		return nil, fmt.Errorf("unsupported provider kind: %s", settings.Kind)
	}
}

func tokenFromEnv(settings environment.ProviderSettings) (string, error) {
	if settings.TokenEnv == "" {
		return "", fmt.Errorf("provider %q requires a token environment variable name", settings.Kind)
	}
	token := os.Getenv(settings.TokenEnv)
	if token == "" {
		return "", fmt.Errorf("provider %q: environment variable %s is not set", settings.Kind, settings.TokenEnv)
	}
	return token, nil
}
