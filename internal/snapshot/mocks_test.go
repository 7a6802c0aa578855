package snapshot

import (
	"fmt"
	"os"
	"sync"

	"github.com/digitalocean/go-libvirt"
	"github.com/rs/zerolog"
	"libvirt.org/go/libvirtxml"
)

// testDomainXML describes a domain with two file-backed disks and a CDROM.
// Only the disks should receive snapshot overlays.
const testDomainXML = `<domain type='kvm'>
  <name>web01</name>
  <devices>
    <disk type='file' device='disk'>
      <driver name='qemu' type='qcow2'/>
      <source file='/var/lib/virtlab/images/web01.qcow2'/>
      <target dev='vda' bus='virtio'/>
    </disk>
    <disk type='file' device='disk'>
      <driver name='qemu' type='qcow2'/>
      <source file='/var/lib/virtlab/images/web01-data.qcow2'/>
      <target dev='vdb' bus='virtio'/>
    </disk>
    <disk type='file' device='cdrom'>
      <driver name='qemu' type='raw'/>
      <source file='/var/lib/virtlab/images/seed.iso'/>
      <target dev='sda' bus='sata'/>
      <readonly/>
    </disk>
  </devices>
</domain>`

// mockLibvirtClient is a mock implementation of the libvirtClient interface for testing.
type mockLibvirtClient struct {
	mu sync.Mutex

	// Configurable behavior
	domainLookupByNameFunc         func(name string) (libvirt.Domain, error)
	domainGetStateFunc             func(dom libvirt.Domain, flags uint32) (int32, int32, error)
	domainGetXMLDescFunc           func(dom libvirt.Domain, flags libvirt.DomainXMLFlags) (string, error)
	domainSnapshotCreateXMLFunc    func(dom libvirt.Domain, xmlDesc string, flags uint32) (libvirt.DomainSnapshot, error)
	domainSnapshotLookupByNameFunc func(dom libvirt.Domain, name string, flags uint32) (libvirt.DomainSnapshot, error)
	domainListAllSnapshotsFunc     func(dom libvirt.Domain, needResults int32, flags uint32) ([]libvirt.DomainSnapshot, int32, error)
	domainSnapshotGetXMLDescFunc   func(snap libvirt.DomainSnapshot, flags uint32) (string, error)
	domainRevertToSnapshotFunc     func(snap libvirt.DomainSnapshot, flags uint32) error
	domainSnapshotDeleteFunc       func(snap libvirt.DomainSnapshot, flags libvirt.DomainSnapshotDeleteFlags) error
	domainFsfreezeFunc             func(dom libvirt.Domain, mountpoints []string, flags uint32) (int32, error)
	domainFsthawFunc               func(dom libvirt.Domain, mountpoints []string, flags uint32) (int32, error)

	// Call tracking
	domainLookupByNameCalls         []string
	domainGetStateCalls             []libvirt.Domain
	domainGetXMLDescCalls           []libvirt.Domain
	domainSnapshotCreateXMLCalls    []string // descriptor XML
	domainSnapshotCreateXMLFlags    []uint32
	domainSnapshotLookupByNameCalls []string
	domainListAllSnapshotsCalls     []libvirt.Domain
	domainSnapshotGetXMLDescCalls   []string // snapshot names
	domainRevertToSnapshotCalls     []string // snapshot names
	domainSnapshotDeleteCalls       []libvirt.DomainSnapshotDeleteFlags
	domainFsfreezeCalls             []libvirt.Domain
	domainFsthawCalls               []libvirt.Domain

	// Snapshot store keyed by name, populated by create with defaults.
	snapshotXML map[string]string
}

// newMockLibvirtClient creates a new mock libvirt client with default behavior:
// a running two-disk VM whose snapshot operations succeed and are recorded
// in an in-memory store.
func newMockLibvirtClient() *mockLibvirtClient {
	m := &mockLibvirtClient{
		snapshotXML: make(map[string]string),
	}

	// Default: domain exists
	m.domainLookupByNameFunc = func(name string) (libvirt.Domain, error) {
		return libvirt.Domain{Name: name}, nil
	}

	// Default: domain state is running
	m.domainGetStateFunc = func(dom libvirt.Domain, flags uint32) (int32, int32, error) {
		return 1, 0, nil // VIR_DOMAIN_RUNNING = 1
	}

	// Default: two-disk domain XML
	m.domainGetXMLDescFunc = func(dom libvirt.Domain, flags libvirt.DomainXMLFlags) (string, error) {
		return testDomainXML, nil
	}

	// Default: create succeeds and records the descriptor by name
	m.domainSnapshotCreateXMLFunc = func(dom libvirt.Domain, xmlDesc string, flags uint32) (libvirt.DomainSnapshot, error) {
		var desc libvirtxml.DomainSnapshot
		if err := desc.Unmarshal(xmlDesc); err != nil {
			return libvirt.DomainSnapshot{}, fmt.Errorf("invalid descriptor: %w", err)
		}
		m.snapshotXML[desc.Name] = xmlDesc
		return libvirt.DomainSnapshot{Name: desc.Name, Dom: dom}, nil
	}

	// Default: lookup succeeds for stored snapshots
	m.domainSnapshotLookupByNameFunc = func(dom libvirt.Domain, name string, flags uint32) (libvirt.DomainSnapshot, error) {
		if _, ok := m.snapshotXML[name]; !ok {
			return libvirt.DomainSnapshot{}, fmt.Errorf("snapshot not found: %s", name)
		}
		return libvirt.DomainSnapshot{Name: name, Dom: dom}, nil
	}

	// Default: list returns all stored snapshots
	m.domainListAllSnapshotsFunc = func(dom libvirt.Domain, needResults int32, flags uint32) ([]libvirt.DomainSnapshot, int32, error) {
		var snaps []libvirt.DomainSnapshot
		for name := range m.snapshotXML {
			snaps = append(snaps, libvirt.DomainSnapshot{Name: name, Dom: dom})
		}
		return snaps, int32(len(snaps)), nil
	}

	// Default: descriptor fetch returns the stored XML
	m.domainSnapshotGetXMLDescFunc = func(snap libvirt.DomainSnapshot, flags uint32) (string, error) {
		xml, ok := m.snapshotXML[snap.Name]
		if !ok {
			return "", fmt.Errorf("snapshot not found: %s", snap.Name)
		}
		return xml, nil
	}

	// Default: revert succeeds
	m.domainRevertToSnapshotFunc = func(snap libvirt.DomainSnapshot, flags uint32) error {
		return nil
	}

	// Default: delete succeeds and removes the stored snapshot
	m.domainSnapshotDeleteFunc = func(snap libvirt.DomainSnapshot, flags libvirt.DomainSnapshotDeleteFlags) error {
		delete(m.snapshotXML, snap.Name)
		return nil
	}

	// Default: freeze and thaw succeed
	m.domainFsfreezeFunc = func(dom libvirt.Domain, mountpoints []string, flags uint32) (int32, error) {
		return 2, nil
	}
	m.domainFsthawFunc = func(dom libvirt.Domain, mountpoints []string, flags uint32) (int32, error) {
		return 2, nil
	}

	return m
}

func (m *mockLibvirtClient) DomainLookupByName(name string) (libvirt.Domain, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.domainLookupByNameCalls = append(m.domainLookupByNameCalls, name)
	return m.domainLookupByNameFunc(name)
}

func (m *mockLibvirtClient) DomainGetState(dom libvirt.Domain, flags uint32) (int32, int32, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.domainGetStateCalls = append(m.domainGetStateCalls, dom)
	return m.domainGetStateFunc(dom, flags)
}

func (m *mockLibvirtClient) DomainGetXMLDesc(dom libvirt.Domain, flags libvirt.DomainXMLFlags) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.domainGetXMLDescCalls = append(m.domainGetXMLDescCalls, dom)
	return m.domainGetXMLDescFunc(dom, flags)
}

func (m *mockLibvirtClient) DomainSnapshotCreateXML(dom libvirt.Domain, xmlDesc string, flags uint32) (libvirt.DomainSnapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.domainSnapshotCreateXMLCalls = append(m.domainSnapshotCreateXMLCalls, xmlDesc)
	m.domainSnapshotCreateXMLFlags = append(m.domainSnapshotCreateXMLFlags, flags)
	return m.domainSnapshotCreateXMLFunc(dom, xmlDesc, flags)
}

func (m *mockLibvirtClient) DomainSnapshotLookupByName(dom libvirt.Domain, name string, flags uint32) (libvirt.DomainSnapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.domainSnapshotLookupByNameCalls = append(m.domainSnapshotLookupByNameCalls, name)
	return m.domainSnapshotLookupByNameFunc(dom, name, flags)
}

func (m *mockLibvirtClient) DomainListAllSnapshots(dom libvirt.Domain, needResults int32, flags uint32) ([]libvirt.DomainSnapshot, int32, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.domainListAllSnapshotsCalls = append(m.domainListAllSnapshotsCalls, dom)
	return m.domainListAllSnapshotsFunc(dom, needResults, flags)
}

func (m *mockLibvirtClient) DomainSnapshotGetXMLDesc(snap libvirt.DomainSnapshot, flags uint32) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.domainSnapshotGetXMLDescCalls = append(m.domainSnapshotGetXMLDescCalls, snap.Name)
	return m.domainSnapshotGetXMLDescFunc(snap, flags)
}

func (m *mockLibvirtClient) DomainRevertToSnapshot(snap libvirt.DomainSnapshot, flags uint32) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.domainRevertToSnapshotCalls = append(m.domainRevertToSnapshotCalls, snap.Name)
	return m.domainRevertToSnapshotFunc(snap, flags)
}

func (m *mockLibvirtClient) DomainSnapshotDelete(snap libvirt.DomainSnapshot, flags libvirt.DomainSnapshotDeleteFlags) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.domainSnapshotDeleteCalls = append(m.domainSnapshotDeleteCalls, flags)
	return m.domainSnapshotDeleteFunc(snap, flags)
}

func (m *mockLibvirtClient) DomainFsfreeze(dom libvirt.Domain, mountpoints []string, flags uint32) (int32, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.domainFsfreezeCalls = append(m.domainFsfreezeCalls, dom)
	return m.domainFsfreezeFunc(dom, mountpoints, flags)
}

func (m *mockLibvirtClient) DomainFsthaw(dom libvirt.Domain, mountpoints []string, flags uint32) (int32, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.domainFsthawCalls = append(m.domainFsthawCalls, dom)
	return m.domainFsthawFunc(dom, mountpoints, flags)
}

// statAllPresent reports every path as existing.
func statAllPresent(path string) (os.FileInfo, error) {
	return nil, nil
}

// statNonePresent reports every path as missing.
func statNonePresent(path string) (os.FileInfo, error) {
	return nil, os.ErrNotExist
}

// testLogger returns a logger that discards all output.
func testLogger() zerolog.Logger {
	return zerolog.Nop()
}
