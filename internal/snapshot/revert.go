package snapshot

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	virtlibvirt "github.com/mkessler/virtlab/internal/libvirt"
)

// Revert restores a VM to the state captured by a named snapshot. The
// hypervisor handles the disk chain manipulation; changes made after the
// snapshot are discarded. The VM's resulting power state follows the
// snapshot descriptor, so a disk-only snapshot leaves the VM shut off.
func Revert(ctx context.Context, socketPath string, log zerolog.Logger, vmName, name string) error {
	client, err := virtlibvirt.ConnectWithContext(ctx, socketPath, 0)
	if err != nil {
		return fmt.Errorf("failed to connect to libvirt: %w", err)
	}
	defer func() {
		if err := client.Close(); err != nil {
			log.Warn().Err(err).Msg("failed to close libvirt connection")
		}
	}()

	return revertWithDeps(ctx, client.Libvirt(), log, vmName, name)
}

func revertWithDeps(ctx context.Context, lv libvirtClient, log zerolog.Logger, vmName, name string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	vm, err := virtlibvirt.LookupVM(lv, vmName)
	if err != nil {
		return err
	}

	snap, err := lv.DomainSnapshotLookupByName(vm.Domain, name, 0)
	if err != nil {
		return fmt.Errorf("%w: %q on VM %q: %v", ErrNotFound, name, vmName, err)
	}

	if err := lv.DomainRevertToSnapshot(snap, 0); err != nil {
		return fmt.Errorf("failed to revert VM %q to snapshot %q: %w", vmName, name, err)
	}

	log.Info().Str("vm", vmName).Str("snapshot", name).Msg("VM reverted to snapshot")
	return nil
}
