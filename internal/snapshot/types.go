package snapshot

import (
	"errors"
	"time"
)

// Kind classifies how a snapshot was recorded by the hypervisor.
type Kind string

const (
	// KindExternalDiskOnly is an external snapshot capturing disk state
	// only. This is the kind this engine creates.
	KindExternalDiskOnly Kind = "external disk-only"

	// KindExternalFull is an external snapshot with memory state.
	KindExternalFull Kind = "external memory+disk"

	// KindInternal is a snapshot embedded in the disk image itself.
	KindInternal Kind = "internal"

	// KindUnknown marks entries whose descriptor could not be parsed.
	KindUnknown Kind = "unknown"
)

// DiskOverlay records one per-disk overlay file of an external snapshot.
type DiskOverlay struct {
	// Target is the guest device name the overlay belongs to (vda, vdb).
	Target string
	// Path is the absolute overlay file path next to the base image.
	Path string
	// Format is the storage driver format of the overlay.
	Format string
}

// Info describes one snapshot as recorded by the hypervisor. It is written
// once at creation and immutable afterwards.
type Info struct {
	Name        string
	Description string
	CreatedAt   time.Time
	// VMState is the domain power state at creation time.
	VMState string
	Kind    Kind
	Disks   []DiskOverlay
}

var (
	// ErrNotFound is returned when a named snapshot does not exist.
	ErrNotFound = errors.New("snapshot not found")

	// ErrOverlayMissing is returned when the hypervisor reported success
	// but an expected overlay file is absent from disk. Metadata and disk
	// state have diverged, which is never safe to continue past.
	ErrOverlayMissing = errors.New("snapshot overlay file missing")

	// ErrNoDisks is returned when a VM has no file-backed disks to
	// snapshot.
	ErrNoDisks = errors.New("VM has no file-backed disks")
)
