package tool

import (
	"context"
	"fmt"
	"sort"
)

// =============================================================================
// Ansible Client
// =============================================================================

// ansibleBinary is the configuration engine entry point, expected on PATH.
const ansibleBinary = "ansible-playbook"

// AnsibleClient drives the configuration engine against an inventory derived
// from the environment's user inputs.
type AnsibleClient struct {
	exec    *Executor
	workDir string
}

// NewAnsibleClient creates a client bound to a working directory containing
// the rendered inventory and playbooks.
func NewAnsibleClient(exec *Executor, workDir string) *AnsibleClient {
	return &AnsibleClient{exec: exec, workDir: workDir}
}

// Playbook runs one playbook against the inventory. Extra variables are
// passed as key=value pairs.
func (c *AnsibleClient) Playbook(ctx context.Context, inventoryPath, playbookPath string, extraVars map[string]string) error {
	args := []string{"-i", inventoryPath}
	keys := make([]string, 0, len(extraVars))
	for key := range extraVars {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		args = append(args, "--extra-vars", fmt.Sprintf("%s=%s", key, extraVars[key]))
	}
	args = append(args, playbookPath)

	_, err := c.exec.Run(ctx, c.workDir, ansibleBinary, args...)
	if err != nil {
		return fmt.Errorf("ansible-playbook %s: %w", playbookPath, err)
	}
	return nil
}
