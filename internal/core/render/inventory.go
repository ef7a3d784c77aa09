package render

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// =============================================================================
// Ansible Inventory Rendering
// =============================================================================

// InventoryHost holds the connection parameters for the single managed host.
type InventoryHost struct {
	Address        string
	Port           int
	Username       string
	PrivateKeyPath string
}

// inventoryDoc mirrors the Ansible YAML inventory layout.
type inventoryDoc struct {
	All struct {
		Hosts map[string]inventoryVars `yaml:"hosts"`
	} `yaml:"all"`
}

type inventoryVars struct {
	AnsibleHost       string `yaml:"ansible_host"`
	AnsiblePort       int    `yaml:"ansible_port"`
	AnsibleUser       string `yaml:"ansible_user"`
	AnsibleSSHKeyFile string `yaml:"ansible_ssh_private_key_file"`
	// Host keys are unknown for freshly provisioned instances.
	AnsibleSSHCommonArgs string `yaml:"ansible_ssh_common_args"`
}

// Inventory renders the YAML inventory handed to the configuration engine.
func Inventory(host InventoryHost) (string, error) {
	if host.Address == "" {
		return "", fmt.Errorf("inventory host has no address")
	}

	var doc inventoryDoc
	doc.All.Hosts = map[string]inventoryVars{
		"tracker": {
			AnsibleHost:          host.Address,
			AnsiblePort:          host.Port,
			AnsibleUser:          host.Username,
			AnsibleSSHKeyFile:    host.PrivateKeyPath,
			AnsibleSSHCommonArgs: "-o StrictHostKeyChecking=no -o UserKnownHostsFile=/dev/null",
		},
	}

	out, err := yaml.Marshal(doc)
	if err != nil {
		return "", fmt.Errorf("marshal inventory: %w", err)
	}
	return string(out), nil
}
