package sshclient

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog"
)

const (
	// dialTimeout bounds the TCP/handshake phase of every connection.
	dialTimeout = 10 * time.Second
)

// Result is the outcome of one remote command. It is always returned,
// even on failure. Err reflects connection or protocol failures only;
// a non-zero ExitStatus with a nil Err means the command itself failed
// inside the VM.
type Result struct {
	Stdout     string
	Stderr     string
	ExitStatus int
	Err        error
}

// Ok reports whether the command ran and exited zero.
func (r Result) Ok() bool {
	return r.Err == nil && r.ExitStatus == 0
}

// exitStatuser is the part of *ssh.ExitError we rely on. Declared as an
// interface so tests can fabricate remote exit failures.
type exitStatuser interface {
	ExitStatus() int
}

// Runner executes commands on practice VMs. Each call owns one transport
// connection for its duration.
type Runner struct {
	factory clientFactory
	log     zerolog.Logger

	// sleep and now are injected so polling tests simulate elapsed time
	// without real delays.
	sleep func(time.Duration)
	now   func() time.Time
}

// NewRunner creates a Runner that dials real SSH connections.
func NewRunner(log zerolog.Logger) *Runner {
	return &Runner{
		factory: defaultClientFactory{},
		log:     log,
		sleep:   time.Sleep,
		now:     time.Now,
	}
}

// newRunnerWithFactory creates a Runner with a custom connection factory.
func newRunnerWithFactory(log zerolog.Logger, factory clientFactory) *Runner {
	r := NewRunner(log)
	r.factory = factory
	return r
}

// connect validates the credential and opens a fresh connection.
func (r *Runner) connect(ctx context.Context, cred Credential) (sshConn, error) {
	if err := cred.validate(); err != nil {
		return nil, err
	}

	signer, err := cred.loadSigner(r.log)
	if err != nil {
		return nil, err
	}

	conn, err := r.factory.Dial(ctx, cred.Addr(), cred.clientConfig(signer, dialTimeout))
	if err != nil {
		return nil, err
	}
	return conn, nil
}

// closeQuietly attempts close on every exit path; a close failure after a
// completed command is noise, not an error.
func (r *Runner) closeQuietly(c io.Closer, what string) {
	if err := c.Close(); err != nil {
		r.log.Debug().Err(err).Msg("failed to close " + what)
	}
}

// Execute runs a one-shot command over a fresh connection and returns the
// captured output, exit status, and any transport error. The timeout
// bounds the whole execution; callers must always supply one.
func (r *Runner) Execute(ctx context.Context, cred Credential, command string, timeout time.Duration) Result {
	var res Result

	conn, err := r.connect(ctx, cred)
	if err != nil {
		res.Err = err
		return res
	}
	defer r.closeQuietly(conn, "connection")

	session, err := conn.NewSession()
	if err != nil {
		res.Err = fmt.Errorf("failed to open session on %s: %w", cred.Addr(), err)
		return res
	}
	defer r.closeQuietly(session, "session")

	var stdout, stderr bytes.Buffer
	session.SetStdout(&stdout)
	session.SetStderr(&stderr)

	r.log.Debug().Str("host", cred.Addr()).Str("command", command).Msg("executing remote command")

	done := make(chan error, 1)
	go func() {
		done <- session.Run(command)
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		res.Err = ctx.Err()
	case <-timer.C:
		res.Err = fmt.Errorf("command timed out after %s on %s", timeout, cred.Addr())
	case err := <-done:
		res.Err = classifyRunError(err, &res)
	}

	res.Stdout = stdout.String()
	res.Stderr = stderr.String()
	return res
}

// classifyRunError separates in-VM exit failures (recorded as exit status)
// from transport failures (recorded as the result error).
func classifyRunError(err error, res *Result) error {
	if err == nil {
		res.ExitStatus = 0
		return nil
	}

	var exitErr exitStatuser
	if errors.As(err, &exitErr) {
		res.ExitStatus = exitErr.ExitStatus()
		return nil
	}

	return fmt.Errorf("remote command failed: %w", err)
}
