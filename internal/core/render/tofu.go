package render

import (
	"fmt"
	"strings"
	"text/template"
)

// =============================================================================
// OpenTofu Descriptor Rendering
// =============================================================================

// TofuInstance parameterizes the LXD instance descriptor handed to the
// provisioning engine.
type TofuInstance struct {
	InstanceName  string
	ProfileName   string
	PublicKeyPath string
}

// lxdDescriptor is the OpenTofu configuration for a single LXD container
// with an SSH key installed via cloud-init. The instance address is exported
// as the "instance_address" output, which the provisioning adapter reads
// back with `tofu output -json`.
const lxdDescriptor = `terraform {
  required_providers {
    lxd = {
      source  = "terraform-lxd/lxd"
      version = "~> 2.0"
    }
  }
}

provider "lxd" {}

resource "lxd_instance" "tracker" {
  name    = "{{ .InstanceName }}"
  image   = "ubuntu:24.04"
  profiles = ["default", "{{ .ProfileName }}"]

  config = {
    "cloud-init.user-data" = <<-EOT
      #cloud-config
      users:
        - name: torrust
          sudo: ALL=(ALL) NOPASSWD:ALL
          ssh_authorized_keys:
            - ${file("{{ .PublicKeyPath }}")}
    EOT
  }

  wait_for_network = true
}

output "instance_address" {
  value = lxd_instance.tracker.ipv4_address
}
`

var lxdTemplate = template.Must(template.New("lxd").Parse(lxdDescriptor))

// TofuLXD renders the OpenTofu descriptor for an LXD-backed environment.
func TofuLXD(instance TofuInstance) (string, error) {
	if instance.InstanceName == "" {
		return "", fmt.Errorf("tofu descriptor requires an instance name")
	}
	if instance.ProfileName == "" {
		return "", fmt.Errorf("tofu descriptor requires a profile name")
	}

	var buf strings.Builder
	if err := lxdTemplate.Execute(&buf, instance); err != nil {
		return "", fmt.Errorf("render tofu descriptor: %w", err)
	}
	return buf.String(), nil
}
