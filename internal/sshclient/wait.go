package sshclient

import (
	"context"
	"fmt"
	"time"
)

// WaitReady polls until the host accepts a trivial command or the total
// timeout elapses. This is the only built-in retry in the package: a
// fixed-interval loop, single-threaded, no backoff. On timeout it returns
// false together with the last error observed.
func (r *Runner) WaitReady(ctx context.Context, cred Credential, timeout, pollInterval time.Duration) (bool, error) {
	deadline := r.now().Add(timeout)
	var lastErr error
	attempt := 0

	for {
		attempt++
		res := r.Execute(ctx, cred, "true", pollInterval)
		if res.Ok() {
			r.log.Debug().
				Str("host", cred.Addr()).
				Int("attempts", attempt).
				Msg("SSH is ready")
			return true, nil
		}

		if res.Err != nil {
			lastErr = res.Err
		} else {
			lastErr = fmt.Errorf("probe command exited with status %d", res.ExitStatus)
		}

		if ctx.Err() != nil {
			return false, ctx.Err()
		}
		if !r.now().Add(pollInterval).Before(deadline) {
			break
		}
		r.sleep(pollInterval)
	}

	return false, fmt.Errorf("SSH on %s not ready within %s (last attempt %d): %w",
		cred.Addr(), timeout, attempt, lastErr)
}
