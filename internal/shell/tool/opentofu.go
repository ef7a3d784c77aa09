package tool

import (
	"context"
	"encoding/json"
	"fmt"
)

// =============================================================================
// OpenTofu Client
// =============================================================================

// tofuBinary is the provisioning engine entry point, expected on PATH.
const tofuBinary = "tofu"

// OpenTofuClient drives the provisioning engine in a working directory that
// already contains rendered infrastructure descriptors.
type OpenTofuClient struct {
	exec    *Executor
	workDir string
}

// NewOpenTofuClient creates a client bound to a working directory.
func NewOpenTofuClient(exec *Executor, workDir string) *OpenTofuClient {
	return &OpenTofuClient{exec: exec, workDir: workDir}
}

// Init initializes the working directory (plugin download, backend setup).
func (c *OpenTofuClient) Init(ctx context.Context) error {
	_, err := c.exec.Run(ctx, c.workDir, tofuBinary, "init", "-input=false")
	if err != nil {
		return fmt.Errorf("tofu init: %w", err)
	}
	return nil
}

// Apply applies the rendered descriptors without prompting.
func (c *OpenTofuClient) Apply(ctx context.Context) error {
	_, err := c.exec.Run(ctx, c.workDir, tofuBinary, "apply", "-auto-approve", "-input=false")
	if err != nil {
		return fmt.Errorf("tofu apply: %w", err)
	}
	return nil
}

// Destroy tears down everything the working directory's state tracks.
func (c *OpenTofuClient) Destroy(ctx context.Context) error {
	_, err := c.exec.Run(ctx, c.workDir, tofuBinary, "destroy", "-auto-approve", "-input=false")
	if err != nil {
		return fmt.Errorf("tofu destroy: %w", err)
	}
	return nil
}

// InstanceAddress reads the "instance_address" output from the engine state.
func (c *OpenTofuClient) InstanceAddress(ctx context.Context) (string, error) {
	result, err := c.exec.Run(ctx, c.workDir, tofuBinary, "output", "-json")
	if err != nil {
		return "", fmt.Errorf("tofu output: %w", err)
	}

	outputs, err := parseOutputs([]byte(result.Stdout))
	if err != nil {
		return "", err
	}

	address, ok := outputs["instance_address"]
	if !ok || address == "" {
		return "", fmt.Errorf("tofu output has no instance_address")
	}
	return address, nil
}

// tofuOutput is one entry of `tofu output -json`.
type tofuOutput struct {
	Value json.RawMessage `json:"value"`
}

// parseOutputs extracts string-valued outputs from `tofu output -json`.
// Non-string outputs are skipped; the orchestration core only consumes
// string outputs.
func parseOutputs(data []byte) (map[string]string, error) {
	var raw map[string]tofuOutput
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse tofu output json: %w", err)
	}

	outputs := make(map[string]string, len(raw))
	for name, out := range raw {
		var value string
		if err := json.Unmarshal(out.Value, &value); err != nil {
			continue
		}
		outputs[name] = value
	}
	return outputs, nil
}
