package snapshot

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/digitalocean/go-libvirt"
	"github.com/rs/zerolog"

	virtlibvirt "github.com/mkessler/virtlab/internal/libvirt"
	"github.com/mkessler/virtlab/internal/naming"
)

// CreateOptions configures snapshot creation.
type CreateOptions struct {
	// VMName is the libvirt domain to snapshot.
	VMName string
	// Name is the snapshot name, embedded in overlay filenames.
	Name string
	// Description is free-form text stored in the snapshot metadata.
	Description string
	// FreezeFS requests a guest filesystem freeze around the snapshot.
	// Requires the guest agent; failure to freeze is not fatal.
	FreezeFS bool
}

// Create creates an external disk-only snapshot of a VM.
//
// This orchestrates the entire creation process:
//  1. Validate the snapshot name
//  2. Resolve the VM and its power state
//  3. Optionally freeze guest filesystems (best effort, running VMs only)
//  4. Generate a descriptor with one external overlay per file-backed disk
//  5. Create the snapshot atomically across all disks
//  6. Verify every expected overlay file exists on disk
//
// Thaw is attempted on every exit path once a freeze was attempted. A
// missing overlay after a successful create is a hard error: hypervisor
// metadata and disk state have diverged.
func Create(ctx context.Context, socketPath string, log zerolog.Logger, opts CreateOptions) error {
	client, err := virtlibvirt.ConnectWithContext(ctx, socketPath, 0)
	if err != nil {
		return fmt.Errorf("failed to connect to libvirt: %w", err)
	}
	defer func() {
		if err := client.Close(); err != nil {
			log.Warn().Err(err).Msg("failed to close libvirt connection")
		}
	}()

	return createWithDeps(ctx, client.Libvirt(), os.Stat, log, opts)
}

// createWithDeps creates a snapshot with injected dependencies.
// This allows for testing by accepting interfaces instead of concrete types.
func createWithDeps(ctx context.Context, lv libvirtClient, stat func(string) (os.FileInfo, error), log zerolog.Logger, opts CreateOptions) error {
	if opts.VMName == "" {
		return fmt.Errorf("VM name is required")
	}
	if err := naming.ValidateSnapshotName(opts.Name); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	vm, err := virtlibvirt.LookupVM(lv, opts.VMName)
	if err != nil {
		return err
	}

	if opts.FreezeFS {
		if !vm.Running() {
			log.Debug().Str("vm", vm.Name).Str("state", vm.State).
				Msg("skipping filesystem freeze, VM is not running")
		} else {
			// Thaw on every path from here on, even when the freeze
			// call itself failed: a partial freeze may have happened.
			defer thawQuietly(lv, vm, log)

			if _, err := lv.DomainFsfreeze(vm.Domain, nil, 0); err != nil {
				log.Warn().Err(err).Str("vm", vm.Name).
					Msg("filesystem freeze failed, snapshot will be crash-consistent")
			} else {
				log.Debug().Str("vm", vm.Name).Msg("guest filesystems frozen")
			}
		}
	}

	xmlDesc, err := lv.DomainGetXMLDesc(vm.Domain, 0)
	if err != nil {
		return fmt.Errorf("failed to get domain XML for %q: %w", vm.Name, err)
	}

	snapXML, overlays, err := buildDescriptor(xmlDesc, opts.Name, opts.Description)
	if err != nil {
		return err
	}

	flags := uint32(libvirt.DomainSnapshotCreateDiskOnly | libvirt.DomainSnapshotCreateAtomic)
	if _, err := lv.DomainSnapshotCreateXML(vm.Domain, snapXML, flags); err != nil {
		return fmt.Errorf("failed to create snapshot %q of VM %q: %w", opts.Name, vm.Name, err)
	}

	var missing []string
	for _, overlay := range overlays {
		if _, err := stat(overlay.Path); err != nil {
			missing = append(missing, overlay.Path)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: snapshot %q reported success but overlays are absent: %s",
			ErrOverlayMissing, opts.Name, strings.Join(missing, ", "))
	}

	log.Info().
		Str("vm", vm.Name).
		Str("snapshot", opts.Name).
		Int("disks", len(overlays)).
		Str("vm_state", vm.State).
		Msg("snapshot created")
	return nil
}

// thawQuietly reverses a filesystem freeze. Failure is logged, not
// returned: by this point the snapshot outcome is already decided.
func thawQuietly(lv libvirtClient, vm virtlibvirt.VMInfo, log zerolog.Logger) {
	if _, err := lv.DomainFsthaw(vm.Domain, nil, 0); err != nil {
		log.Warn().Err(err).Str("vm", vm.Name).
			Msg("failed to thaw guest filesystems, VM may need manual attention")
	}
}
