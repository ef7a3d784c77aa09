package render

import (
	"context"
	"fmt"

	"github.com/compose-spec/compose-go/v2/loader"
	"github.com/compose-spec/compose-go/v2/types"
	"gopkg.in/yaml.v3"

	"trackerdeploy/internal/core/topology"
)

// =============================================================================
// Compose Validation
// =============================================================================

// ValidateCompose parses a rendered compose document back through the
// compose specification loader and cross-checks it against the topology it
// was rendered from. This guards the release step: a descriptor that the
// container engine would reject never leaves the build directory.
func ValidateCompose(content string, topo *topology.DockerComposeTopology) error {
	var dict map[string]interface{}
	if err := yaml.Unmarshal([]byte(content), &dict); err != nil {
		return fmt.Errorf("rendered compose is not valid YAML: %w", err)
	}

	project, err := loader.LoadWithContext(context.Background(), types.ConfigDetails{
		ConfigFiles: []types.ConfigFile{
			{
				Content: []byte(content),
				Config:  dict,
			},
		},
	}, func(opts *loader.Options) {
		opts.SetProjectName("trackerdeploy-validate", false)
		opts.SkipValidation = false
		opts.SkipInterpolation = true
		// Rendered documents are validated in-memory; host paths may not
		// exist on the operator machine.
		opts.SkipNormalization = true
		opts.SkipExtends = true
	})
	if err != nil {
		return fmt.Errorf("rendered compose rejected by spec loader: %w", err)
	}

	for _, svc := range topo.Services() {
		if _, err := project.GetService(string(svc.Kind)); err != nil {
			return fmt.Errorf("rendered compose is missing service %q", svc.Kind)
		}
	}
	for _, network := range topo.Networks() {
		if _, ok := project.Networks[string(network)]; !ok {
			return fmt.Errorf("rendered compose is missing network %q", network)
		}
	}

	return nil
}
