package provider

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hetznercloud/hcloud-go/v2/hcloud"
)

// HetznerProvider implements Provider for Hetzner Cloud.
type HetznerProvider struct {
	client *hcloud.Client
	logger *slog.Logger
}

// NewHetznerProvider creates a Hetzner Cloud provider.
func NewHetznerProvider(apiToken string, logger *slog.Logger) *HetznerProvider {
	return &HetznerProvider{
		client: hcloud.NewClient(hcloud.WithToken(apiToken)),
		logger: logger.With("provider", "hetzner"),
	}
}

// CreateInstance provisions a Hetzner Cloud server with docker compose
// installed via cloud-init.
func (p *HetznerProvider) CreateInstance(ctx context.Context, req ProvisionRequest) (*ProvisionResult, error) {
	// Re-registering the key on retry must not fail the provision.
	keyName := req.InstanceName + "-key"
	if existing, _, _ := p.client.SSHKey.GetByName(ctx, keyName); existing != nil {
		p.client.SSHKey.Delete(ctx, existing)
	}
	key, _, err := p.client.SSHKey.Create(ctx, hcloud.SSHKeyCreateOpts{
		Name:      keyName,
		PublicKey: req.SSHPublicKey,
	})
	if err != nil {
		return nil, fmt.Errorf("register SSH key: %w", err)
	}

	serverType, _, err := p.client.ServerType.GetByName(ctx, req.Size)
	if err != nil || serverType == nil {
		return nil, fmt.Errorf("unknown server type %q: %w", req.Size, err)
	}

	location, _, err := p.client.Location.GetByName(ctx, req.Region)
	if err != nil || location == nil {
		return nil, fmt.Errorf("unknown location %q: %w", req.Region, err)
	}

	image, _, err := p.client.Image.GetByNameAndArchitecture(ctx, "ubuntu-24.04", hcloud.ArchitectureX86)
	if err != nil || image == nil {
		return nil, fmt.Errorf("resolve ubuntu image: %w", err)
	}

	result, _, err := p.client.Server.Create(ctx, hcloud.ServerCreateOpts{
		Name:       req.InstanceName,
		ServerType: serverType,
		Image:      image,
		Location:   location,
		SSHKeys:    []*hcloud.SSHKey{key},
		UserData:   cloudInitUserData(),
		Labels:     map[string]string{"managed-by": "trackerdeploy"},
	})
	if err != nil {
		return nil, fmt.Errorf("create server: %w", err)
	}

	p.logger.Info("server created", "server_id", result.Server.ID, "location", req.Region)

	address, err := p.waitForAddress(ctx, result.Server.ID)
	if err != nil {
		return nil, fmt.Errorf("server created but no address assigned: %w", err)
	}

	return &ProvisionResult{
		InstanceAddress:    address,
		ProviderInstanceID: fmt.Sprintf("%d", result.Server.ID),
	}, nil
}

func (p *HetznerProvider) waitForAddress(ctx context.Context, serverID int64) (string, error) {
	for i := 0; i < 60; i++ {
		server, _, err := p.client.Server.GetByID(ctx, serverID)
		if err == nil && server != nil && server.Status == hcloud.ServerStatusRunning {
			if ip := server.PublicNet.IPv4.IP; ip != nil && !ip.IsUnspecified() {
				return ip.String(), nil
			}
		}

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(5 * time.Second):
		}
	}
	return "", errors.New("timed out waiting for server address")
}

// DestroyInstance deletes the server and its registered SSH key. A server
// that no longer exists counts as success.
func (p *HetznerProvider) DestroyInstance(ctx context.Context, req DestroyRequest) error {
	var serverID int64
	if _, err := fmt.Sscanf(req.ProviderInstanceID, "%d", &serverID); err != nil {
		return fmt.Errorf("invalid server id %q: %w", req.ProviderInstanceID, err)
	}

	server, _, err := p.client.Server.GetByID(ctx, serverID)
	if err != nil {
		return fmt.Errorf("look up server %d: %w", serverID, err)
	}
	if server == nil {
		p.logger.Info("server already deleted", "server_id", serverID)
	} else {
		if _, _, err := p.client.Server.DeleteWithResult(ctx, server); err != nil {
			return fmt.Errorf("delete server %d: %w", serverID, err)
		}
		p.logger.Info("server deleted", "server_id", serverID)
	}

	keyName := req.InstanceName + "-key"
	if key, _, _ := p.client.SSHKey.GetByName(ctx, keyName); key != nil {
		if _, err := p.client.SSHKey.Delete(ctx, key); err != nil {
			p.logger.Warn("failed to delete SSH key", "key_name", keyName, "error", err)
		}
	}

	return nil
}

// cloudInitUserData installs docker and the compose plugin on first boot.
func cloudInitUserData() string {
	return `#cloud-config
package_update: true
packages:
  - ca-certificates
  - curl
runcmd:
  - install -m 0755 -d /etc/apt/keyrings
  - curl -fsSL https://download.docker.com/linux/ubuntu/gpg -o /etc/apt/keyrings/docker.asc
  - echo "deb [signed-by=/etc/apt/keyrings/docker.asc] https://download.docker.com/linux/ubuntu $(. /etc/os-release && echo $VERSION_CODENAME) stable" > /etc/apt/sources.list.d/docker.list
  - apt-get update
  - apt-get install -y docker-ce docker-ce-cli containerd.io docker-compose-plugin
  - systemctl enable --now docker
`
}
