package sshclient

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/ssh"
)

// fakeExit mimics the exit-status part of *ssh.ExitError.
type fakeExit struct{ code int }

func (e fakeExit) Error() string   { return fmt.Sprintf("Process exited with status %d", e.code) }
func (e fakeExit) ExitStatus() int { return e.code }

// fakeClock drives the Runner's injected now/sleep so polling tests
// simulate elapsed time. Sleep still yields for a millisecond of real time
// so background goroutines get scheduled.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Sleep(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
	time.Sleep(time.Millisecond)
}

// mockFactory returns a scripted connection, or per-attempt errors.
type mockFactory struct {
	mu        sync.Mutex
	dialErrs  []error // consumed one per Dial; nil entry means success
	conn      *mockConn
	dialCalls int
}

func (f *mockFactory) Dial(ctx context.Context, addr string, config *ssh.ClientConfig) (sshConn, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.dialCalls++
	if len(f.dialErrs) > 0 {
		err := f.dialErrs[0]
		f.dialErrs = f.dialErrs[1:]
		if err != nil {
			return nil, err
		}
	}
	if f.conn == nil {
		f.conn = newMockConn()
	}
	return f.conn, nil
}

type mockConn struct {
	session    *mockSession
	transfer   *mockTransfer
	sessionErr error
	sftpErr    error
	closed     int
}

func newMockConn() *mockConn {
	return &mockConn{session: newMockSession(), transfer: newMockTransfer()}
}

func (c *mockConn) NewSession() (sshSession, error) {
	if c.sessionErr != nil {
		return nil, c.sessionErr
	}
	return c.session, nil
}

func (c *mockConn) SFTP() (fileTransfer, error) {
	if c.sftpErr != nil {
		return nil, c.sftpErr
	}
	return c.transfer, nil
}

func (c *mockConn) Close() error {
	c.closed++
	return nil
}

// mockSession scripts one remote command execution.
type mockSession struct {
	runFunc func(cmd string, stdout, stderr io.Writer) error

	// interactive scripting
	waitCh  chan error // Wait blocks until a value arrives
	onStdin func(b []byte)

	stdout, stderr io.Writer
	stdin          bytes.Buffer
	ptyRequested   bool
	startedCmd     string
	closed         int
}

func newMockSession() *mockSession {
	return &mockSession{
		runFunc: func(cmd string, stdout, stderr io.Writer) error { return nil },
		waitCh:  make(chan error, 1),
	}
}

func (s *mockSession) RequestPty(term string, h, w int, modes ssh.TerminalModes) error {
	s.ptyRequested = true
	return nil
}

type stdinWriter struct{ s *mockSession }

func (w stdinWriter) Write(b []byte) (int, error) {
	w.s.stdin.Write(b)
	if w.s.onStdin != nil {
		w.s.onStdin(b)
	}
	return len(b), nil
}

func (w stdinWriter) Close() error { return nil }

func (s *mockSession) StdinPipe() (io.WriteCloser, error) { return stdinWriter{s}, nil }
func (s *mockSession) SetStdout(w io.Writer)              { s.stdout = w }
func (s *mockSession) SetStderr(w io.Writer)              { s.stderr = w }

func (s *mockSession) Run(cmd string) error {
	return s.runFunc(cmd, s.stdout, s.stderr)
}

func (s *mockSession) Start(cmd string) error {
	s.startedCmd = cmd
	return nil
}

func (s *mockSession) Wait() error {
	return <-s.waitCh
}

func (s *mockSession) Close() error {
	s.closed++
	return nil
}

// mockTransfer is an in-memory SFTP endpoint.
type mockTransfer struct {
	dirs       map[string]bool
	files      map[string]*bytes.Buffer
	mkdirCalls []string
	mkdirErr   error
	createErr  error
	closed     int
}

func newMockTransfer() *mockTransfer {
	return &mockTransfer{
		dirs:  map[string]bool{"/": true},
		files: map[string]*bytes.Buffer{},
	}
}

type fakeFileInfo struct{ name string }

func (f fakeFileInfo) Name() string       { return f.name }
func (f fakeFileInfo) Size() int64        { return 0 }
func (f fakeFileInfo) Mode() os.FileMode  { return 0o755 | os.ModeDir }
func (f fakeFileInfo) ModTime() time.Time { return time.Time{} }
func (f fakeFileInfo) IsDir() bool        { return true }
func (f fakeFileInfo) Sys() any           { return nil }

func (t *mockTransfer) Stat(path string) (os.FileInfo, error) {
	if t.dirs[path] {
		return fakeFileInfo{name: path}, nil
	}
	return nil, os.ErrNotExist
}

func (t *mockTransfer) Mkdir(path string) error {
	t.mkdirCalls = append(t.mkdirCalls, path)
	if t.mkdirErr != nil {
		return t.mkdirErr
	}
	t.dirs[path] = true
	return nil
}

type bufCloser struct{ *bytes.Buffer }

func (bufCloser) Close() error { return nil }

func (t *mockTransfer) Create(path string) (io.WriteCloser, error) {
	if t.createErr != nil {
		return nil, t.createErr
	}
	buf := &bytes.Buffer{}
	t.files[path] = buf
	return bufCloser{buf}, nil
}

func (t *mockTransfer) Close() error {
	t.closed++
	return nil
}

// newTestRunner wires a Runner to a mock factory and fake clock.
func newTestRunner(factory clientFactory) (*Runner, *fakeClock) {
	clock := newFakeClock()
	r := newRunnerWithFactory(zerolog.Nop(), factory)
	r.sleep = clock.Sleep
	r.now = clock.Now
	return r, clock
}
