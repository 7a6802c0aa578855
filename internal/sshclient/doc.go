// Package sshclient provides remote command execution against practice
// VMs over SSH.
//
// Every operation opens a fresh connection for its duration; there is no
// pooling or reuse. Commands run in one of two modes: a one-shot exec
// channel for batch commands, or a PTY-allocated channel for full-screen
// interactive programs. WaitReady is the only operation with built-in
// retry; everything else is single-attempt.
//
// Failures are normalized into a Result: the Err field reflects
// connection or protocol failures, independent of the remote exit status
// (a failure inside the VM). Credentials are supplied per call and never
// persisted.
package sshclient
