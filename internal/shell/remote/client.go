// Package remote executes commands and uploads files on the provisioned
// instance over SSH. This is part of the Imperative Shell - the release and
// run steps drive the remote docker compose stack through it.
package remote

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"path"
	"strconv"
	"sync"
	"time"

	"golang.org/x/crypto/ssh"
)

// Endpoint identifies the remote instance and the credentials used to
// reach it.
type Endpoint struct {
	Host           string
	Port           int
	Username       string
	PrivateKeyPath string
}

// CommandResult holds the output of a remote command.
type CommandResult struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// ClientConfig configures timeouts for the SSH client.
type ClientConfig struct {
	ConnectTimeout time.Duration // Default: 10 seconds
	CommandTimeout time.Duration // Default: 5 minutes
}

// DefaultClientConfig returns the default configuration. The command
// timeout is generous because image pulls run through it.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		ConnectTimeout: 10 * time.Second,
		CommandTimeout: 5 * time.Minute,
	}
}

// Client is an SSH client for the provisioned instance. Safe for use from a
// single goroutine per operation; the connection itself is guarded.
type Client struct {
	endpoint Endpoint
	signer   ssh.Signer
	config   ClientConfig
	logger   *slog.Logger

	mu        sync.Mutex // protects sshClient
	sshClient *ssh.Client
}

// NewClient creates an SSH client for the endpoint. The private key is read
// and parsed eagerly so a bad key path fails before any provisioning work.
func NewClient(endpoint Endpoint, config ClientConfig, logger *slog.Logger) (*Client, error) {
	keyData, err := os.ReadFile(endpoint.PrivateKeyPath)
	if err != nil {
		return nil, fmt.Errorf("read SSH private key: %w", err)
	}
	signer, err := ssh.ParsePrivateKey(keyData)
	if err != nil {
		return nil, fmt.Errorf("parse SSH private key: %w", err)
	}

	if config.ConnectTimeout == 0 {
		config.ConnectTimeout = 10 * time.Second
	}
	if config.CommandTimeout == 0 {
		config.CommandTimeout = 5 * time.Minute
	}

	return &Client{
		endpoint: endpoint,
		signer:   signer,
		config:   config,
		logger:   logger.With("host", endpoint.Host),
	}, nil
}

// =============================================================================
// Connection Management
// =============================================================================

// connect establishes the SSH connection if not already connected.
func (c *Client) connect(_ context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.sshClient != nil {
		_, _, err := c.sshClient.SendRequest("keepalive@trackerdeploy", true, nil)
		if err == nil {
			return nil
		}
		c.sshClient.Close()
		c.sshClient = nil
	}

	config := &ssh.ClientConfig{
		User:            c.endpoint.Username,
		Auth:            []ssh.AuthMethod{ssh.PublicKeys(c.signer)},
		HostKeyCallback: ssh.InsecureIgnoreHostKey(), // instances are freshly created; no known_hosts entry exists yet
		Timeout:         c.config.ConnectTimeout,
	}

	addr := net.JoinHostPort(c.endpoint.Host, strconv.Itoa(c.endpoint.Port))
	client, err := ssh.Dial("tcp", addr, config)
	if err != nil {
		return fmt.Errorf("SSH dial %s: %w", addr, err)
	}

	c.sshClient = client
	return nil
}

// Close closes the SSH connection.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.sshClient != nil {
		err := c.sshClient.Close()
		c.sshClient = nil
		return err
	}
	return nil
}

// =============================================================================
// Command Execution
// =============================================================================

// Run executes a command on the instance and returns its captured output.
// A non-zero exit status is returned as an error with the result still
// populated.
func (c *Client) Run(ctx context.Context, command string) (*CommandResult, error) {
	if err := c.connect(ctx); err != nil {
		return nil, err
	}

	c.mu.Lock()
	session, err := c.sshClient.NewSession()
	c.mu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("create SSH session: %w", err)
	}
	defer session.Close()

	var stdout, stderr bytes.Buffer
	session.Stdout = &stdout
	session.Stderr = &stderr

	c.logger.Debug("running remote command", "command", command)

	done := make(chan error, 1)
	go func() {
		done <- session.Run(command)
	}()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(c.config.CommandTimeout):
		return nil, fmt.Errorf("remote command timed out after %v: %s", c.config.CommandTimeout, command)
	case err := <-done:
		result := &CommandResult{
			Stdout: stdout.String(),
			Stderr: stderr.String(),
		}
		if err != nil {
			var exitErr *ssh.ExitError
			if errors.As(err, &exitErr) {
				result.ExitCode = exitErr.ExitStatus()
			} else {
				result.ExitCode = -1
			}
			return result, fmt.Errorf("remote command %q failed: %w", command, err)
		}
		return result, nil
	}
}

// Upload writes content to a file on the instance, creating parent
// directories as needed. The write goes through cat so tilde-relative paths
// expand on the remote side.
func (c *Client) Upload(ctx context.Context, content []byte, remotePath string, mode string) error {
	if err := c.connect(ctx); err != nil {
		return err
	}

	c.mu.Lock()
	session, err := c.sshClient.NewSession()
	c.mu.Unlock()
	if err != nil {
		return fmt.Errorf("create SSH session: %w", err)
	}
	defer session.Close()

	dir := path.Dir(remotePath)
	cmd := fmt.Sprintf("mkdir -p %s && cat > %s && chmod %s %s", dir, remotePath, mode, remotePath)
	session.Stdin = bytes.NewReader(content)

	c.logger.Debug("uploading file", "path", remotePath, "bytes", len(content))

	done := make(chan error, 1)
	go func() {
		done <- session.Run(cmd)
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(c.config.CommandTimeout):
		return fmt.Errorf("upload of %s timed out", remotePath)
	case err := <-done:
		if err != nil {
			return fmt.Errorf("upload %s: %w", remotePath, err)
		}
		return nil
	}
}

// WaitReady polls until the instance accepts SSH connections and can run a
// trivial command, or the context expires. Freshly provisioned instances
// take a while to finish cloud-init before sshd answers.
func (c *Client) WaitReady(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = 5 * time.Second
	}

	for {
		if _, err := c.Run(ctx, "true"); err == nil {
			c.logger.Info("instance is reachable over SSH")
			return nil
		} else {
			c.logger.Debug("instance not ready yet", "error", err)
			// A dead half-open connection must not poison the next attempt.
			c.Close()
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("instance never became reachable: %w", ctx.Err())
		case <-time.After(interval):
		}
	}
}
