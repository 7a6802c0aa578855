package sshclient

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"strings"
	"time"

	"golang.org/x/crypto/ssh"
)

const (
	// interactivePollInterval is the fixed interval at which the channel
	// output is polled for an exit status.
	interactivePollInterval = 250 * time.Millisecond

	// editorWarmup is how long a full-screen editor gets to draw its
	// screen before the scripted quit sequence is injected.
	editorWarmup = 1 * time.Second
)

// editorQuitSequences maps full-screen editor programs to the keystrokes
// that quit without saving. Automated runs would otherwise hang forever
// waiting for a human at the terminal.
var editorQuitSequences = map[string][]byte{
	"vi":   []byte("\x1b:q!\r"),
	"vim":  []byte("\x1b:q!\r"),
	"view": []byte("\x1b:q!\r"),
	"nano": []byte("\x18n"),
	"pico": []byte("\x18n"),
}

// quitSequenceFor returns the scripted quit keystrokes for the program a
// command line invokes, or nil when the program is not a known editor.
func quitSequenceFor(command string) []byte {
	fields := strings.Fields(command)
	for _, f := range fields {
		prog := path.Base(f)
		if seq, ok := editorQuitSequences[prog]; ok {
			return seq
		}
		// Skip leading env assignments and sudo.
		if strings.Contains(f, "=") || prog == "sudo" || strings.HasPrefix(f, "-") {
			continue
		}
		break
	}
	return nil
}

// ExecuteInteractive runs a command with a pseudo-terminal allocated, so
// full-screen console programs render correctly. The channel is polled on
// a fixed interval until the exit status is available or the timeout
// elapses. Known full-screen editors receive a scripted quit-without-saving
// sequence after a short warm-up so automated runs terminate.
func (r *Runner) ExecuteInteractive(ctx context.Context, cred Credential, command string, timeout time.Duration) Result {
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

	modes := ssh.TerminalModes{
		ssh.ECHO:          0,
		ssh.TTY_OP_ISPEED: 14400,
		ssh.TTY_OP_OSPEED: 14400,
	}
	if err := session.RequestPty("xterm", 40, 80, modes); err != nil {
		res.Err = fmt.Errorf("failed to allocate pty on %s: %w", cred.Addr(), err)
		return res
	}

	stdin, err := session.StdinPipe()
	if err != nil {
		res.Err = fmt.Errorf("failed to open stdin pipe: %w", err)
		return res
	}

	var stdout, stderr bytes.Buffer
	session.SetStdout(&stdout)
	session.SetStderr(&stderr)

	r.log.Debug().Str("host", cred.Addr()).Str("command", command).Msg("executing interactive command")

	if err := session.Start(command); err != nil {
		res.Err = fmt.Errorf("failed to start interactive command: %w", err)
		return res
	}

	done := make(chan error, 1)
	go func() {
		done <- session.Wait()
	}()

	quitSeq := quitSequenceFor(command)
	injected := false
	started := r.now()
	deadline := started.Add(timeout)

	for {
		select {
		case <-ctx.Done():
			res.Err = ctx.Err()
			res.Stdout, res.Stderr = stdout.String(), stderr.String()
			return res
		case err := <-done:
			res.Err = classifyRunError(err, &res)
			res.Stdout, res.Stderr = stdout.String(), stderr.String()
			return res
		default:
		}

		now := r.now()
		if now.After(deadline) {
			res.Err = fmt.Errorf("interactive command timed out after %s on %s", timeout, cred.Addr())
			res.Stdout, res.Stderr = stdout.String(), stderr.String()
			return res
		}

		if quitSeq != nil && !injected && now.Sub(started) >= editorWarmup {
			if _, werr := stdin.Write(quitSeq); werr != nil {
				r.log.Warn().Err(werr).Msg("failed to inject editor quit sequence")
			} else {
				r.log.Debug().Str("command", command).Msg("injected editor quit sequence")
			}
			injected = true
		}

		r.sleep(interactivePollInterval)
	}
}
