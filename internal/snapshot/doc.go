// Package snapshot manages external disk-only snapshots of practice VMs.
//
// Snapshots are created through the hypervisor's snapshot primitive with a
// generated descriptor: one external qcow2 overlay per disk, colocated
// with the base image and named by the convention in internal/naming.
// Creation is disk-only (no memory state) and atomic across disks, and the
// engine verifies every expected overlay on disk afterwards. A mismatch
// between hypervisor metadata and disk state is always a hard failure.
//
// Delete removes hypervisor metadata only; overlay files stay on disk.
// Correlating and safely removing an entire overlay chain is deliberately
// out of scope, so orphaned overlays are logged for manual cleanup.
//
// Operations are synchronous and not serialized per VM; concurrent
// snapshot calls against the same VM must be coordinated by the caller.
package snapshot
