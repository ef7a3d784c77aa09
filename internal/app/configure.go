package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"trackerdeploy/internal/core/environment"
	"trackerdeploy/internal/core/render"
)

// dockerPlaybook installs the container runtime on the provisioned host.
// Rendered into the build directory so the configuration engine runs
// self-contained, without a separately managed playbook tree.
const dockerPlaybook = `---
- name: Install container runtime
  hosts: all
  become: true
  tasks:
    - name: Wait for cloud-init to finish
      ansible.builtin.command: cloud-init status --wait
      changed_when: false
      failed_when: false

    - name: Install prerequisites
      ansible.builtin.apt:
        name:
          - ca-certificates
          - curl
        state: present
        update_cache: true

    - name: Add Docker repository key
      ansible.builtin.get_url:
        url: https://download.docker.com/linux/ubuntu/gpg
        dest: /etc/apt/keyrings/docker.asc
        mode: "0644"

    - name: Add Docker repository
      ansible.builtin.apt_repository:
        repo: "deb [signed-by=/etc/apt/keyrings/docker.asc] https://download.docker.com/linux/ubuntu {{ ansible_distribution_release }} stable"
        state: present

    - name: Install Docker packages
      ansible.builtin.apt:
        name:
          - docker-ce
          - docker-ce-cli
          - containerd.io
          - docker-compose-plugin
        state: present
        update_cache: true

    - name: Enable Docker service
      ansible.builtin.systemd:
        name: docker
        enabled: true
        state: started

    - name: Allow the connection user to run Docker
      ansible.builtin.user:
        name: "{{ connect_user }}"
        groups: docker
        append: true
`

// Configure applies software setup to the provisioned instance:
// Provisioned -> Configured. It waits for SSH to accept connections, then
// renders the inventory and runs the configuration engine against it.
func (a *App) Configure(ctx context.Context, name string) (result *StepOutcome, err error) {
	started := time.Now()
	defer func() { a.finish("configure", name, started, err) }()

	env, err := a.load(name)
	if err != nil {
		return nil, err
	}
	if err := environment.ValidateTransition(env.Phase, environment.PhaseConfigured); err != nil {
		return nil, invalidTransition(err)
	}
	if !env.HasRuntimeOutputs() {
		return nil, invalidTransition(
			fmt.Errorf("%w: no runtime outputs recorded", environment.ErrPreconditionNotMet))
	}

	if err := a.waitReady(ctx, env); err != nil {
		return nil, err
	}

	buildDir, err := a.ensureBuildDir(name)
	if err != nil {
		return nil, err
	}

	inventory, err := render.Inventory(render.InventoryHost{
		Address:        env.Outputs.InstanceAddress,
		Port:           env.Inputs.SSH.Port,
		Username:       env.Inputs.SSH.Username,
		PrivateKeyPath: env.Inputs.SSH.PrivateKeyPath,
	})
	if err != nil {
		return nil, adapterFailure(err)
	}

	inventoryPath := filepath.Join(buildDir, "inventory.yml")
	if err := os.WriteFile(inventoryPath, []byte(inventory), 0o644); err != nil {
		return nil, persistenceFailure(fmt.Errorf("write %s: %w", inventoryPath, err))
	}
	playbookPath := filepath.Join(buildDir, "install-docker.yml")
	if err := os.WriteFile(playbookPath, []byte(dockerPlaybook), 0o644); err != nil {
		return nil, persistenceFailure(fmt.Errorf("write %s: %w", playbookPath, err))
	}

	a.logger.Info("configuring instance",
		"environment", name, "address", env.Outputs.InstanceAddress)

	runner := a.configFor(buildDir)
	if err := runner.Playbook(ctx, inventoryPath, playbookPath, map[string]string{
		"connect_user": env.Inputs.SSH.Username,
	}); err != nil {
		return nil, adapterFailure(err)
	}

	if err := env.Configure(); err != nil {
		return nil, invalidTransition(err)
	}
	if err := a.save(env); err != nil {
		return nil, err
	}

	a.logger.Info("environment configured", "environment", name)
	return outcome("configure", name, "instance configured"), nil
}

// waitReady blocks until the instance accepts SSH, bounded by the
// configured readiness timeout.
func (a *App) waitReady(ctx context.Context, env *environment.Environment) error {
	runner, err := a.remoteFor(remoteEndpoint(env))
	if err != nil {
		return adapterFailure(err)
	}
	defer runner.Close()

	waitCtx, cancel := context.WithTimeout(ctx, a.cfg.ReadyTimeout)
	defer cancel()

	if err := runner.WaitReady(waitCtx, 5*time.Second); err != nil {
		return adapterFailure(err)
	}
	return nil
}
