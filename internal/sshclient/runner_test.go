package sshclient

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/pem"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/ssh"
)

// writeTestKey generates an ed25519 private key on disk and returns its
// path. Mode defaults to 0600 unless overridden by the caller.
func writeTestKey(t *testing.T, mode os.FileMode) string {
	t.Helper()

	_, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)

	block, err := ssh.MarshalPrivateKey(priv, "")
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "id_ed25519")
	require.NoError(t, os.WriteFile(path, pem.EncodeToMemory(block), 0o600))
	require.NoError(t, os.Chmod(path, mode))
	return path
}

func testCredential(t *testing.T) Credential {
	return Credential{
		Host:    "192.0.2.10",
		User:    "student",
		KeyPath: writeTestKey(t, 0o600),
	}
}

func TestExecute_Success(t *testing.T) {
	factory := &mockFactory{conn: newMockConn()}
	factory.conn.session.runFunc = func(cmd string, stdout, stderr io.Writer) error {
		assert.Equal(t, "true", cmd)
		fmt.Fprint(stdout, "ok\n")
		return nil
	}
	r, _ := newTestRunner(factory)

	res := r.Execute(context.Background(), testCredential(t), "true", 5*time.Second)

	require.NoError(t, res.Err)
	assert.Equal(t, 0, res.ExitStatus)
	assert.Equal(t, "ok\n", res.Stdout)
	assert.Empty(t, res.Stderr)
	assert.True(t, res.Ok())
	assert.Equal(t, 1, factory.conn.closed, "connection must be closed")
	assert.Equal(t, 1, factory.conn.session.closed, "session must be closed")
}

func TestExecute_RemoteExitFailure(t *testing.T) {
	factory := &mockFactory{conn: newMockConn()}
	factory.conn.session.runFunc = func(cmd string, stdout, stderr io.Writer) error {
		fmt.Fprint(stderr, "no such file\n")
		return fakeExit{code: 2}
	}
	r, _ := newTestRunner(factory)

	res := r.Execute(context.Background(), testCredential(t), "ls /missing", 5*time.Second)

	require.NoError(t, res.Err, "in-VM failure is not a transport error")
	assert.Equal(t, 2, res.ExitStatus)
	assert.Equal(t, "no such file\n", res.Stderr)
	assert.False(t, res.Ok())
}

func TestExecute_DialFailure(t *testing.T) {
	factory := &mockFactory{dialErrs: []error{fmt.Errorf("connection refused")}}
	r, _ := newTestRunner(factory)

	res := r.Execute(context.Background(), testCredential(t), "true", 5*time.Second)

	require.Error(t, res.Err)
	assert.Contains(t, res.Err.Error(), "connection refused")
	assert.Equal(t, "", res.Stdout)
}

func TestExecute_MissingKey(t *testing.T) {
	factory := &mockFactory{}
	r, _ := newTestRunner(factory)

	cred := Credential{Host: "192.0.2.10", User: "student", KeyPath: "/nonexistent/key"}
	res := r.Execute(context.Background(), cred, "true", 5*time.Second)

	require.Error(t, res.Err)
	assert.Equal(t, 0, factory.dialCalls, "must fail before any remote call")
}

func TestExecute_MissingHost(t *testing.T) {
	factory := &mockFactory{}
	r, _ := newTestRunner(factory)

	res := r.Execute(context.Background(), Credential{User: "student", KeyPath: "/k"}, "true", time.Second)

	require.Error(t, res.Err)
	assert.Contains(t, res.Err.Error(), "host is required")
	assert.Equal(t, 0, factory.dialCalls)
}

func TestExecute_Timeout(t *testing.T) {
	factory := &mockFactory{conn: newMockConn()}
	block := make(chan struct{})
	factory.conn.session.runFunc = func(cmd string, stdout, stderr io.Writer) error {
		<-block
		return nil
	}
	defer close(block)
	r, _ := newTestRunner(factory)

	res := r.Execute(context.Background(), testCredential(t), "sleep 1000", 20*time.Millisecond)

	require.Error(t, res.Err)
	assert.Contains(t, res.Err.Error(), "timed out")
	assert.Equal(t, 1, factory.conn.closed, "connection closed even on timeout")
}

func TestExecute_TightensLooseKeyPermissions(t *testing.T) {
	keyPath := writeTestKey(t, 0o644)
	factory := &mockFactory{conn: newMockConn()}
	r, _ := newTestRunner(factory)

	cred := Credential{Host: "192.0.2.10", User: "student", KeyPath: keyPath}
	res := r.Execute(context.Background(), cred, "true", 5*time.Second)
	require.NoError(t, res.Err)

	info, err := os.Stat(keyPath)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestCredential_Addr(t *testing.T) {
	assert.Equal(t, "10.0.0.1:22", Credential{Host: "10.0.0.1"}.Addr())
	assert.Equal(t, "10.0.0.1:2222", Credential{Host: "10.0.0.1", Port: 2222}.Addr())
}
