package snapshot

import (
	"github.com/digitalocean/go-libvirt"
)

// libvirtClient defines the libvirt operations needed for snapshot
// management. This wraps operations from *libvirt.Libvirt to allow for
// testing.
//
// In production, this is satisfied by *libvirt.Libvirt directly.
// In tests, this is satisfied by mock implementations.
type libvirtClient interface {
	// DomainLookupByName looks up a domain by name
	DomainLookupByName(name string) (libvirt.Domain, error)

	// DomainGetState gets the state of a domain
	DomainGetState(dom libvirt.Domain, flags uint32) (state int32, reason int32, err error)

	// DomainGetXMLDesc returns the live XML description of a domain
	DomainGetXMLDesc(dom libvirt.Domain, flags libvirt.DomainXMLFlags) (string, error)

	// DomainSnapshotCreateXML creates a snapshot from an XML descriptor
	DomainSnapshotCreateXML(dom libvirt.Domain, xmlDesc string, flags uint32) (libvirt.DomainSnapshot, error)

	// DomainSnapshotLookupByName looks up a snapshot of a domain by name
	DomainSnapshotLookupByName(dom libvirt.Domain, name string, flags uint32) (libvirt.DomainSnapshot, error)

	// DomainListAllSnapshots lists all snapshots of a domain
	DomainListAllSnapshots(dom libvirt.Domain, needResults int32, flags uint32) ([]libvirt.DomainSnapshot, int32, error)

	// DomainSnapshotGetXMLDesc returns the XML descriptor of a snapshot
	DomainSnapshotGetXMLDesc(snap libvirt.DomainSnapshot, flags uint32) (string, error)

	// DomainRevertToSnapshot reverts a domain to a snapshot
	DomainRevertToSnapshot(snap libvirt.DomainSnapshot, flags uint32) error

	// DomainSnapshotDelete deletes a snapshot with flags
	DomainSnapshotDelete(snap libvirt.DomainSnapshot, flags libvirt.DomainSnapshotDeleteFlags) error

	// DomainFsfreeze freezes guest filesystems via the guest agent
	DomainFsfreeze(dom libvirt.Domain, mountpoints []string, flags uint32) (int32, error)

	// DomainFsthaw thaws guest filesystems via the guest agent
	DomainFsthaw(dom libvirt.Domain, mountpoints []string, flags uint32) (int32, error)
}

// Compile-time check that the real client satisfies the interface.
var _ libvirtClient = (*libvirt.Libvirt)(nil)
