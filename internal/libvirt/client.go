package libvirt

import (
	"context"
	"fmt"
	"time"

	"github.com/digitalocean/go-libvirt"
	"github.com/digitalocean/go-libvirt/socket/dialers"
)

const (
	defaultSocketPath     = "/var/run/libvirt/libvirt-sock"
	defaultConnectTimeout = 5 * time.Second
)

// Client wraps a go-libvirt connection shared by the snapshot engine and
// the VM handle resolver. It is injected explicitly rather than held as a
// process-wide singleton so tests can substitute a fake backend.
type Client struct {
	libvirt *libvirt.Libvirt
}

// Connect dials the libvirt daemon over its local socket. An empty
// socketPath means the system socket (qemu:///system); a zero timeout
// means 5 seconds. The returned Client must be closed via Close.
func Connect(socketPath string, timeout time.Duration) (*Client, error) {
	if socketPath == "" {
		socketPath = defaultSocketPath
	}
	if timeout == 0 {
		timeout = defaultConnectTimeout
	}

	dialer := dialers.NewLocal(
		dialers.WithSocket(socketPath),
		dialers.WithLocalTimeout(timeout),
	)

	l := libvirt.NewWithDialer(dialer)
	if err := l.Connect(); err != nil {
		return nil, fmt.Errorf("failed to connect to libvirt at %s: %w", socketPath, err)
	}

	return &Client{libvirt: l}, nil
}

// ConnectWithContext is Connect with cancellation. The dial itself cannot
// be interrupted mid-handshake, so cancellation abandons the attempt and
// lets the goroutine's connection result fall on the floor.
func ConnectWithContext(ctx context.Context, socketPath string, timeout time.Duration) (*Client, error) {
	type result struct {
		client *Client
		err    error
	}
	resultCh := make(chan result, 1)

	go func() {
		c, err := Connect(socketPath, timeout)
		resultCh <- result{client: c, err: err}
	}()

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("connection cancelled: %w", ctx.Err())
	case res := <-resultCh:
		return res.client, res.err
	}
}

// Close disconnects from the daemon. Safe to call more than once.
func (c *Client) Close() error {
	if c.libvirt == nil {
		return nil
	}

	if err := c.libvirt.Disconnect(); err != nil {
		return fmt.Errorf("failed to disconnect from libvirt: %w", err)
	}

	return nil
}

// Libvirt exposes the underlying go-libvirt client. The snapshot package
// consumes it through its own narrow interface.
func (c *Client) Libvirt() *libvirt.Libvirt {
	return c.libvirt
}

// Ping checks the connection is still alive with a version query.
func (c *Client) Ping() error {
	if c.libvirt == nil {
		return fmt.Errorf("client not connected")
	}

	if _, err := c.libvirt.ConnectGetLibVersion(); err != nil {
		return fmt.Errorf("libvirt connection is dead: %w", err)
	}

	return nil
}
