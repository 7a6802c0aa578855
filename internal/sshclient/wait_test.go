package sshclient

import (
	"context"
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWaitReady_SucceedsAfterRetries(t *testing.T) {
	// Host becomes reachable on the third attempt (~5s in with a 2s
	// interval), before the 10s deadline.
	factory := &mockFactory{
		dialErrs: []error{
			fmt.Errorf("connection refused"),
			fmt.Errorf("connection refused"),
			nil,
		},
		conn: newMockConn(),
	}
	r, clock := newTestRunner(factory)
	start := clock.Now()

	ready, err := r.WaitReady(context.Background(), testCredential(t), 10*time.Second, 2*time.Second)

	require.NoError(t, err)
	assert.True(t, ready)
	assert.Equal(t, 3, factory.dialCalls, "expected exactly 3 polling attempts")
	assert.LessOrEqual(t, clock.Now().Sub(start), 10*time.Second)
}

func TestWaitReady_Timeout(t *testing.T) {
	factory := &mockFactory{}
	// Every dial fails.
	for i := 0; i < 64; i++ {
		factory.dialErrs = append(factory.dialErrs, fmt.Errorf("no route to host"))
	}
	r, clock := newTestRunner(factory)
	start := clock.Now()

	ready, err := r.WaitReady(context.Background(), testCredential(t), 6*time.Second, 2*time.Second)

	require.Error(t, err)
	assert.False(t, ready)
	assert.Contains(t, err.Error(), "no route to host", "last error must be recorded")
	assert.LessOrEqual(t, clock.Now().Sub(start), 6*time.Second, "polling must stop at the deadline")
	assert.GreaterOrEqual(t, factory.dialCalls, 3)
}

func TestWaitReady_NonZeroProbeExitKeepsPolling(t *testing.T) {
	factory := &mockFactory{conn: newMockConn()}
	calls := 0
	factory.conn.session.runFunc = func(cmd string, stdout, stderr io.Writer) error {
		calls++
		if calls < 2 {
			return fakeExit{code: 127}
		}
		return nil
	}
	r, _ := newTestRunner(factory)

	ready, err := r.WaitReady(context.Background(), testCredential(t), 10*time.Second, time.Second)

	require.NoError(t, err)
	assert.True(t, ready)
	assert.Equal(t, 2, calls)
}
