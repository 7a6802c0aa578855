package sshclient

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/ssh"
)

// Credential identifies one SSH account on one host. It is supplied per
// call and never persisted. Callers that probe multiple accounts keep an
// ordered list of Credentials and try them in sequence.
type Credential struct {
	Host       string
	Port       int
	User       string
	KeyPath    string
	Passphrase string
}

// Addr returns the host:port dial address, defaulting to port 22.
func (c Credential) Addr() string {
	port := c.Port
	if port == 0 {
		port = 22
	}
	return net.JoinHostPort(c.Host, strconv.Itoa(port))
}

// validate checks the caller-supplied fields. A missing host or user is a
// programming-contract violation by the caller, not a remote failure.
func (c Credential) validate() error {
	if c.Host == "" {
		return fmt.Errorf("credential host is required")
	}
	if c.User == "" {
		return fmt.Errorf("credential user is required")
	}
	if c.KeyPath == "" {
		return fmt.Errorf("credential key path is required")
	}
	return nil
}

// loadSigner validates the private key file and parses it. The key must
// exist; if its permission bits are readable by group or other, we try to
// tighten them to 0600 first, since sshd-style tooling refuses loose keys.
// Failure to chmod is logged but not fatal.
func (c Credential) loadSigner(log zerolog.Logger) (ssh.Signer, error) {
	info, err := os.Stat(c.KeyPath)
	if err != nil {
		return nil, fmt.Errorf("private key %s: %w", c.KeyPath, err)
	}

	if info.Mode().Perm()&0o077 != 0 {
		if chmodErr := os.Chmod(c.KeyPath, 0o600); chmodErr != nil {
			log.Warn().
				Str("key", c.KeyPath).
				Str("mode", info.Mode().Perm().String()).
				Err(chmodErr).
				Msg("private key permissions are too open and could not be tightened")
		} else {
			log.Debug().Str("key", c.KeyPath).Msg("tightened private key permissions to 0600")
		}
	}

	key, err := os.ReadFile(c.KeyPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read private key %s: %w", c.KeyPath, err)
	}

	var signer ssh.Signer
	if c.Passphrase != "" {
		signer, err = ssh.ParsePrivateKeyWithPassphrase(key, []byte(c.Passphrase))
	} else {
		signer, err = ssh.ParsePrivateKey(key)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse private key %s: %w", c.KeyPath, err)
	}

	return signer, nil
}

// clientConfig builds the ssh.ClientConfig for one connection attempt.
func (c Credential) clientConfig(signer ssh.Signer, dialTimeout time.Duration) *ssh.ClientConfig {
	return &ssh.ClientConfig{
		User: c.User,
		Auth: []ssh.AuthMethod{
			ssh.PublicKeys(signer),
		},
		HostKeyCallback: ssh.InsecureIgnoreHostKey(), //nolint:gosec // practice VMs are rebuilt constantly
		Timeout:         dialTimeout,
	}
}
