package snapshot

import (
	"context"
	"errors"
	"testing"

	"github.com/digitalocean/go-libvirt"
)

func TestDelete_MetadataOnly(t *testing.T) {
	m := newMockLibvirtClient()

	err := createWithDeps(context.Background(), m, statAllPresent, testLogger(), CreateOptions{
		VMName: "web01",
		Name:   "stale",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if err := deleteWithDeps(context.Background(), m, testLogger(), "web01", "stale"); err != nil {
		t.Fatalf("delete: %v", err)
	}

	if len(m.domainSnapshotDeleteCalls) != 1 {
		t.Fatalf("expected 1 delete call, got %d", len(m.domainSnapshotDeleteCalls))
	}
	if m.domainSnapshotDeleteCalls[0] != libvirt.DomainSnapshotDeleteMetadataOnly {
		t.Errorf("delete must be metadata-only, got flags %v", m.domainSnapshotDeleteCalls[0])
	}

	infos, err := listWithDeps(context.Background(), m, testLogger(), "web01")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(infos) != 0 {
		t.Errorf("snapshot must be gone from the hypervisor, got %+v", infos)
	}
}

func TestDelete_NotFound(t *testing.T) {
	m := newMockLibvirtClient()

	err := deleteWithDeps(context.Background(), m, testLogger(), "web01", "missing")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if len(m.domainSnapshotDeleteCalls) != 0 {
		t.Errorf("delete must not be attempted: %v", m.domainSnapshotDeleteCalls)
	}
}

// Deleting twice surfaces ErrNotFound on the second call rather than a
// hypervisor error.
func TestDelete_SecondDeleteNotFound(t *testing.T) {
	m := newMockLibvirtClient()
	m.snapshotXML["once"] = `<domainsnapshot><name>once</name></domainsnapshot>`

	if err := deleteWithDeps(context.Background(), m, testLogger(), "web01", "once"); err != nil {
		t.Fatalf("first delete: %v", err)
	}
	err := deleteWithDeps(context.Background(), m, testLogger(), "web01", "once")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound on second delete, got %v", err)
	}
}
