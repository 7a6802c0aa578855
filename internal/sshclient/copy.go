package sshclient

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"strings"
)

// CopyFile uploads a local file to the VM over an SFTP sub-channel. With
// createDirs, missing remote parent directories are created one level at a
// time; a concurrent mkdir of the same directory is a benign race and is
// logged as a warning, and the transfer itself surfaces any real path error.
func (r *Runner) CopyFile(ctx context.Context, cred Credential, localPath, remotePath string, createDirs bool) error {
	local, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("failed to open local file: %w", err)
	}
	defer r.closeQuietly(local, "local file")

	conn, err := r.connect(ctx, cred)
	if err != nil {
		return err
	}
	defer r.closeQuietly(conn, "connection")

	xfer, err := conn.SFTP()
	if err != nil {
		return fmt.Errorf("failed to open sftp channel on %s: %w", cred.Addr(), err)
	}
	defer r.closeQuietly(xfer, "sftp channel")

	if createDirs {
		r.ensureRemoteDirs(xfer, path.Dir(remotePath))
	}

	remote, err := xfer.Create(remotePath)
	if err != nil {
		return fmt.Errorf("failed to create remote file %s: %w", remotePath, err)
	}

	if _, err := io.Copy(remote, local); err != nil {
		_ = remote.Close()
		return fmt.Errorf("failed to write remote file %s: %w", remotePath, err)
	}

	if err := remote.Close(); err != nil {
		return fmt.Errorf("failed to close remote file %s: %w", remotePath, err)
	}

	r.log.Debug().
		Str("host", cred.Addr()).
		Str("local", localPath).
		Str("remote", remotePath).
		Msg("copied file")
	return nil
}

// ensureRemoteDirs creates each missing path component in turn. Creation
// failures are warnings only: if the directory appeared concurrently the
// race is benign, and if the path is genuinely broken the file create that
// follows reports it with a better error.
func (r *Runner) ensureRemoteDirs(xfer fileTransfer, dir string) {
	if dir == "" || dir == "/" || dir == "." {
		return
	}

	var prefix string
	if strings.HasPrefix(dir, "/") {
		prefix = "/"
	}
	for _, part := range strings.Split(strings.Trim(dir, "/"), "/") {
		prefix = path.Join(prefix, part)
		if _, err := xfer.Stat(prefix); err == nil {
			continue
		}
		if err := xfer.Mkdir(prefix); err != nil {
			r.log.Warn().Str("dir", prefix).Err(err).Msg("remote mkdir failed; continuing")
		}
	}
}
