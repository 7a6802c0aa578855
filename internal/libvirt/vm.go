package libvirt

import (
	"fmt"

	"github.com/digitalocean/go-libvirt"
)

// VMInfo is an opaque handle to a hypervisor-managed domain. It is valid
// for the duration of one operation and never persisted; callers re-resolve
// before every call.
type VMInfo struct {
	Domain libvirt.Domain
	Name   string
	State  string
}

// Running reports whether the domain was running at resolution time.
func (v VMInfo) Running() bool {
	return v.State == "running"
}

// domainResolver defines the libvirt operations needed to resolve a VM
// handle. Satisfied by *libvirt.Libvirt in production and by mocks in tests.
type domainResolver interface {
	DomainLookupByName(name string) (libvirt.Domain, error)
	DomainGetState(dom libvirt.Domain, flags uint32) (state int32, reason int32, err error)
}

// LookupVM resolves a named VM to a handle with its current power state.
func LookupVM(lv domainResolver, name string) (VMInfo, error) {
	dom, err := lv.DomainLookupByName(name)
	if err != nil {
		return VMInfo{}, fmt.Errorf("VM %q not found: %w", name, err)
	}

	state, _, err := lv.DomainGetState(dom, 0)
	if err != nil {
		return VMInfo{}, fmt.Errorf("failed to get state of VM %q: %w", name, err)
	}

	return VMInfo{Domain: dom, Name: name, State: StateString(state)}, nil
}

// StateString converts a libvirt domain state to the string form recorded
// in snapshot descriptors.
func StateString(state int32) string {
	switch state {
	case 0:
		return "nostate"
	case 1:
		return "running"
	case 2:
		return "blocked"
	case 3:
		return "paused"
	case 4:
		return "shutdown"
	case 5:
		return "shutoff"
	case 6:
		return "crashed"
	case 7:
		return "pmsuspended"
	default:
		return fmt.Sprintf("unknown(%d)", state)
	}
}
