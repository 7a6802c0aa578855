package snapshot

import (
	"context"
	"fmt"
	"sort"

	"github.com/rs/zerolog"

	virtlibvirt "github.com/mkessler/virtlab/internal/libvirt"
)

// List returns all snapshots of a VM, oldest first. A snapshot whose
// descriptor cannot be fetched or parsed still appears in the result as a
// placeholder entry so the listing never hides hypervisor state.
func List(ctx context.Context, socketPath string, log zerolog.Logger, vmName string) ([]Info, error) {
	client, err := virtlibvirt.ConnectWithContext(ctx, socketPath, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to libvirt: %w", err)
	}
	defer func() {
		if err := client.Close(); err != nil {
			log.Warn().Err(err).Msg("failed to close libvirt connection")
		}
	}()

	return listWithDeps(ctx, client.Libvirt(), log, vmName)
}

func listWithDeps(ctx context.Context, lv libvirtClient, log zerolog.Logger, vmName string) ([]Info, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	vm, err := virtlibvirt.LookupVM(lv, vmName)
	if err != nil {
		return nil, err
	}

	// NeedResults: 1 means populate the snapshots slice.
	snaps, _, err := lv.DomainListAllSnapshots(vm.Domain, 1, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to list snapshots of VM %q: %w", vmName, err)
	}

	infos := make([]Info, 0, len(snaps))
	for _, snap := range snaps {
		xmlDesc, err := lv.DomainSnapshotGetXMLDesc(snap, 0)
		if err != nil {
			log.Warn().Err(err).Str("vm", vmName).Str("snapshot", snap.Name).
				Msg("failed to fetch snapshot descriptor")
			infos = append(infos, Info{Name: snap.Name, Kind: KindUnknown})
			continue
		}

		info, err := parseDescriptor(xmlDesc, snap.Name)
		if err != nil {
			log.Warn().Err(err).Str("vm", vmName).Str("snapshot", snap.Name).
				Msg("failed to parse snapshot descriptor")
			infos = append(infos, Info{Name: snap.Name, Kind: KindUnknown})
			continue
		}
		infos = append(infos, info)
	}

	sort.Slice(infos, func(i, j int) bool {
		if !infos[i].CreatedAt.Equal(infos[j].CreatedAt) {
			return infos[i].CreatedAt.Before(infos[j].CreatedAt)
		}
		return infos[i].Name < infos[j].Name
	})

	return infos, nil
}
