package challenge

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/mkessler/virtlab/internal/sshclient"
)

// mockExecutor is a mock implementation of the Executor interface for
// testing. Responses are scripted per command via executeFunc.
type mockExecutor struct {
	mu sync.Mutex

	// Configurable behavior; nil means every command exits zero.
	executeFunc func(command string) sshclient.Result

	// Call tracking
	commands []string
}

func (m *mockExecutor) Execute(ctx context.Context, cred sshclient.Credential, command string, timeout time.Duration) sshclient.Result {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.commands = append(m.commands, command)
	if m.executeFunc != nil {
		return m.executeFunc(command)
	}
	return sshclient.Result{ExitStatus: 0}
}

func okResult(stdout string) sshclient.Result {
	return sshclient.Result{Stdout: stdout, ExitStatus: 0}
}

func exitResult(code int, stderr string) sshclient.Result {
	return sshclient.Result{Stderr: stderr, ExitStatus: code}
}

func newTestEngine(exec Executor) *Engine {
	return NewEngine(exec, zerolog.Nop())
}

func boolPtr(b bool) *bool { return &b }
func intPtr(n int) *int    { return &n }
