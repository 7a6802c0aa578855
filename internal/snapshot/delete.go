package snapshot

import (
	"context"
	"fmt"

	"github.com/digitalocean/go-libvirt"
	"github.com/rs/zerolog"

	virtlibvirt "github.com/mkessler/virtlab/internal/libvirt"
)

// Delete removes a snapshot's hypervisor metadata. Overlay files are left
// on disk: merging or discarding an overlay chain safely requires
// correlating live block jobs, which this engine does not attempt. The
// orphaned paths are logged so an operator can clean them up.
func Delete(ctx context.Context, socketPath string, log zerolog.Logger, vmName, name string) error {
	client, err := virtlibvirt.ConnectWithContext(ctx, socketPath, 0)
	if err != nil {
		return fmt.Errorf("failed to connect to libvirt: %w", err)
	}
	defer func() {
		if err := client.Close(); err != nil {
			log.Warn().Err(err).Msg("failed to close libvirt connection")
		}
	}()

	return deleteWithDeps(ctx, client.Libvirt(), log, vmName, name)
}

func deleteWithDeps(ctx context.Context, lv libvirtClient, log zerolog.Logger, vmName, name string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	vm, err := virtlibvirt.LookupVM(lv, vmName)
	if err != nil {
		return err
	}

	if vm.Running() {
		log.Warn().Str("vm", vmName).
			Msg("deleting a snapshot while the VM is running, stopping it first is safer")
	}

	snap, err := lv.DomainSnapshotLookupByName(vm.Domain, name, 0)
	if err != nil {
		return fmt.Errorf("%w: %q on VM %q: %v", ErrNotFound, name, vmName, err)
	}

	// Collect overlay paths before the metadata disappears. Best effort:
	// a snapshot with an unreadable descriptor is still deletable.
	var orphaned []string
	if xmlDesc, err := lv.DomainSnapshotGetXMLDesc(snap, 0); err == nil {
		if info, err := parseDescriptor(xmlDesc, name); err == nil {
			for _, disk := range info.Disks {
				if disk.Path != "" {
					orphaned = append(orphaned, disk.Path)
				}
			}
		}
	}

	if err := lv.DomainSnapshotDelete(snap, libvirt.DomainSnapshotDeleteMetadataOnly); err != nil {
		return fmt.Errorf("failed to delete snapshot %q of VM %q: %w", name, vmName, err)
	}

	log.Info().Str("vm", vmName).Str("snapshot", name).Msg("snapshot metadata deleted")
	for _, path := range orphaned {
		log.Info().Str("vm", vmName).Str("snapshot", name).Str("overlay", path).
			Msg("overlay file left on disk, remove manually once no longer needed")
	}
	return nil
}
