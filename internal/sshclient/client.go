package sshclient

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"
)

// clientFactory creates SSH connections. The default factory dials TCP;
// tests substitute a factory returning scripted connections.
type clientFactory interface {
	Dial(ctx context.Context, addr string, config *ssh.ClientConfig) (sshConn, error)
}

// sshConn wraps *ssh.Client for mocking.
type sshConn interface {
	NewSession() (sshSession, error)
	SFTP() (fileTransfer, error)
	Close() error
}

// sshSession wraps *ssh.Session for mocking.
type sshSession interface {
	RequestPty(term string, h, w int, modes ssh.TerminalModes) error
	StdinPipe() (io.WriteCloser, error)
	SetStdout(w io.Writer)
	SetStderr(w io.Writer)
	Run(cmd string) error
	Start(cmd string) error
	Wait() error
	Close() error
}

// fileTransfer wraps *sftp.Client for mocking.
type fileTransfer interface {
	Stat(path string) (os.FileInfo, error)
	Mkdir(path string) error
	Create(path string) (io.WriteCloser, error)
	Close() error
}

// defaultClientFactory dials real SSH connections.
type defaultClientFactory struct{}

// Dial opens a TCP connection in a goroutine so the caller's context can
// cancel the attempt; the handshake itself is bounded by config.Timeout.
func (defaultClientFactory) Dial(ctx context.Context, addr string, config *ssh.ClientConfig) (sshConn, error) {
	type dialResult struct {
		client *ssh.Client
		err    error
	}
	ch := make(chan dialResult, 1)

	go func() {
		client, err := ssh.Dial("tcp", addr, config)
		ch <- dialResult{client: client, err: err}
	}()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.err != nil {
			return nil, fmt.Errorf("failed to connect to %s: %w", addr, res.err)
		}
		return &defaultConn{client: res.client}, nil
	}
}

type defaultConn struct {
	client *ssh.Client
}

func (c *defaultConn) NewSession() (sshSession, error) {
	session, err := c.client.NewSession()
	if err != nil {
		return nil, err
	}
	return &defaultSession{session: session}, nil
}

func (c *defaultConn) SFTP() (fileTransfer, error) {
	client, err := sftp.NewClient(c.client)
	if err != nil {
		return nil, err
	}
	return &defaultTransfer{client: client}, nil
}

func (c *defaultConn) Close() error {
	return c.client.Close()
}

type defaultSession struct {
	session *ssh.Session
}

func (s *defaultSession) RequestPty(term string, h, w int, modes ssh.TerminalModes) error {
	return s.session.RequestPty(term, h, w, modes)
}

func (s *defaultSession) StdinPipe() (io.WriteCloser, error) {
	return s.session.StdinPipe()
}

func (s *defaultSession) SetStdout(w io.Writer) {
	s.session.Stdout = w
}

func (s *defaultSession) SetStderr(w io.Writer) {
	s.session.Stderr = w
}

func (s *defaultSession) Run(cmd string) error {
	return s.session.Run(cmd)
}

func (s *defaultSession) Start(cmd string) error {
	return s.session.Start(cmd)
}

func (s *defaultSession) Wait() error {
	return s.session.Wait()
}

func (s *defaultSession) Close() error {
	return s.session.Close()
}

type defaultTransfer struct {
	client *sftp.Client
}

func (t *defaultTransfer) Stat(path string) (os.FileInfo, error) {
	return t.client.Stat(path)
}

func (t *defaultTransfer) Mkdir(path string) error {
	return t.client.Mkdir(path)
}

func (t *defaultTransfer) Create(path string) (io.WriteCloser, error) {
	return t.client.Create(path)
}

func (t *defaultTransfer) Close() error {
	return t.client.Close()
}
