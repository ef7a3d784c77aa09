package provider

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/digitalocean/godo"
)

// DigitalOceanProvider implements Provider for DigitalOcean droplets.
type DigitalOceanProvider struct {
	client *godo.Client
	logger *slog.Logger
}

// NewDigitalOceanProvider creates a DigitalOcean provider.
func NewDigitalOceanProvider(apiToken string, logger *slog.Logger) *DigitalOceanProvider {
	return &DigitalOceanProvider{
		client: godo.NewFromToken(apiToken),
		logger: logger.With("provider", "digitalocean"),
	}
}

// CreateInstance provisions a droplet running Ubuntu 24.04 with docker
// compose installed via cloud-init.
func (p *DigitalOceanProvider) CreateInstance(ctx context.Context, req ProvisionRequest) (*ProvisionResult, error) {
	keyName := req.InstanceName + "-key"
	key, err := p.ensureSSHKey(ctx, keyName, req.SSHPublicKey)
	if err != nil {
		return nil, fmt.Errorf("register SSH key: %w", err)
	}

	droplet, _, err := p.client.Droplets.Create(ctx, &godo.DropletCreateRequest{
		Name:   req.InstanceName,
		Region: req.Region,
		Size:   req.Size,
		Image:  godo.DropletCreateImage{Slug: "ubuntu-24-04-x64"},
		SSHKeys: []godo.DropletCreateSSHKey{
			{Fingerprint: key.Fingerprint},
		},
		UserData: cloudInitUserData(),
		Tags:     []string{"trackerdeploy"},
	})
	if err != nil {
		return nil, fmt.Errorf("create droplet: %w", err)
	}

	p.logger.Info("droplet created", "droplet_id", droplet.ID, "region", req.Region)

	address, err := p.waitForPublicIP(ctx, droplet.ID)
	if err != nil {
		return nil, fmt.Errorf("droplet created but no address assigned: %w", err)
	}

	return &ProvisionResult{
		InstanceAddress:    address,
		ProviderInstanceID: strconv.Itoa(droplet.ID),
	}, nil
}

// ensureSSHKey registers the public key, replacing any stale key with the
// same name so a retried provision does not fail on a duplicate.
func (p *DigitalOceanProvider) ensureSSHKey(ctx context.Context, name, publicKey string) (*godo.Key, error) {
	keys, _, err := p.client.Keys.List(ctx, &godo.ListOptions{PerPage: 200})
	if err == nil {
		for _, k := range keys {
			if k.Name == name {
				p.client.Keys.DeleteByID(ctx, k.ID)
				break
			}
		}
	}

	key, _, err := p.client.Keys.Create(ctx, &godo.KeyCreateRequest{
		Name:      name,
		PublicKey: publicKey,
	})
	return key, err
}

func (p *DigitalOceanProvider) waitForPublicIP(ctx context.Context, dropletID int) (string, error) {
	for i := 0; i < 60; i++ {
		droplet, _, err := p.client.Droplets.Get(ctx, dropletID)
		if err == nil && droplet.Status == "active" {
			if addr, err := droplet.PublicIPv4(); err == nil && addr != "" {
				return addr, nil
			}
		}

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(5 * time.Second):
		}
	}
	return "", errors.New("timed out waiting for droplet address")
}

// DestroyInstance deletes the droplet and its registered SSH key. A droplet
// that no longer exists counts as success.
func (p *DigitalOceanProvider) DestroyInstance(ctx context.Context, req DestroyRequest) error {
	dropletID, err := strconv.Atoi(req.ProviderInstanceID)
	if err != nil {
		return fmt.Errorf("invalid droplet id %q: %w", req.ProviderInstanceID, err)
	}

	resp, err := p.client.Droplets.Delete(ctx, dropletID)
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusNotFound {
			p.logger.Info("droplet already deleted", "droplet_id", dropletID)
		} else {
			return fmt.Errorf("delete droplet %d: %w", dropletID, err)
		}
	} else {
		p.logger.Info("droplet deleted", "droplet_id", dropletID)
	}

	keyName := req.InstanceName + "-key"
	keys, _, err := p.client.Keys.List(ctx, &godo.ListOptions{PerPage: 200})
	if err == nil {
		for _, k := range keys {
			if k.Name == keyName {
				if _, err := p.client.Keys.DeleteByID(ctx, k.ID); err != nil {
					p.logger.Warn("failed to delete SSH key", "key_name", keyName, "error", err)
				}
				break
			}
		}
	}

	return nil
}
