package snapshot

import (
	"fmt"
	"strconv"
	"time"

	"libvirt.org/go/libvirtxml"

	"github.com/mkessler/virtlab/internal/naming"
)

// buildDescriptor derives the snapshot XML for a domain from its live XML
// description. Every file-backed disk gets an external qcow2 overlay next
// to its base image; CDROM devices and non-file disks are skipped.
//
// Returns the marshaled descriptor and the overlays it will create, in
// disk order.
func buildDescriptor(domainXML, snapName, description string) (string, []DiskOverlay, error) {
	var dom libvirtxml.Domain
	if err := dom.Unmarshal(domainXML); err != nil {
		return "", nil, fmt.Errorf("failed to parse domain XML: %w", err)
	}

	var overlays []DiskOverlay
	var snapDisks []libvirtxml.DomainSnapshotDisk

	if dom.Devices != nil {
		for _, disk := range dom.Devices.Disks {
			if disk.Device != "" && disk.Device != "disk" {
				// cdrom, floppy
				continue
			}
			if disk.Source == nil || disk.Source.File == nil || disk.Source.File.File == "" {
				continue
			}
			if disk.Target == nil || disk.Target.Dev == "" {
				continue
			}

			overlayPath := naming.OverlayPath(disk.Source.File.File, snapName)
			overlays = append(overlays, DiskOverlay{
				Target: disk.Target.Dev,
				Path:   overlayPath,
				Format: naming.OverlayFormat(),
			})
			snapDisks = append(snapDisks, libvirtxml.DomainSnapshotDisk{
				Name:     disk.Target.Dev,
				Snapshot: "external",
				Driver: &libvirtxml.DomainDiskDriver{
					Type: naming.OverlayFormat(),
				},
				Source: &libvirtxml.DomainDiskSource{
					File: &libvirtxml.DomainDiskSourceFile{
						File: overlayPath,
					},
				},
			})
		}
	}

	if len(snapDisks) == 0 {
		return "", nil, fmt.Errorf("%w: %s", ErrNoDisks, dom.Name)
	}

	desc := libvirtxml.DomainSnapshot{
		Name:        snapName,
		Description: description,
		Memory: &libvirtxml.DomainSnapshotMemory{
			Snapshot: "no",
		},
		Disks: &libvirtxml.DomainSnapshotDisks{
			Disks: snapDisks,
		},
	}

	xml, err := desc.Marshal()
	if err != nil {
		return "", nil, fmt.Errorf("failed to marshal snapshot descriptor: %w", err)
	}

	return xml, overlays, nil
}

// parseDescriptor converts a snapshot XML descriptor into an Info. The
// fallback name is used when the descriptor omits one.
func parseDescriptor(snapshotXML, fallbackName string) (Info, error) {
	var desc libvirtxml.DomainSnapshot
	if err := desc.Unmarshal(snapshotXML); err != nil {
		return Info{}, fmt.Errorf("failed to parse snapshot XML: %w", err)
	}

	info := Info{
		Name:        desc.Name,
		Description: desc.Description,
		VMState:     desc.State,
		Kind:        classifyKind(&desc),
	}
	if info.Name == "" {
		info.Name = fallbackName
	}

	// CreationTime is seconds since the epoch.
	if desc.CreationTime != "" {
		if secs, err := strconv.ParseInt(desc.CreationTime, 10, 64); err == nil {
			info.CreatedAt = time.Unix(secs, 0).UTC()
		}
	}

	if desc.Disks != nil {
		for _, disk := range desc.Disks.Disks {
			if disk.Snapshot != "external" {
				continue
			}
			overlay := DiskOverlay{Target: disk.Name}
			if disk.Source != nil && disk.Source.File != nil {
				overlay.Path = disk.Source.File.File
			}
			if disk.Driver != nil {
				overlay.Format = disk.Driver.Type
			}
			info.Disks = append(info.Disks, overlay)
		}
	}

	return info, nil
}

func classifyKind(desc *libvirtxml.DomainSnapshot) Kind {
	memoryExternal := desc.Memory != nil && desc.Memory.Snapshot == "external"

	diskExternal := false
	if desc.Disks != nil {
		for _, disk := range desc.Disks.Disks {
			if disk.Snapshot == "external" {
				diskExternal = true
				break
			}
		}
	}

	switch {
	case memoryExternal && diskExternal:
		return KindExternalFull
	case diskExternal:
		return KindExternalDiskOnly
	default:
		return KindInternal
	}
}
