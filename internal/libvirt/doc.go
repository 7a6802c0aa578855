// Package libvirt provides the hypervisor connection and VM handle
// resolution used by the snapshot engine and the CLI.
//
// This package wraps github.com/digitalocean/go-libvirt to provide:
//   - Connection management (connect, disconnect, ping)
//   - VM handle resolution (lookup by name plus power state)
//
// Consumer-Side Interfaces:
//
// Apart from the small resolver interface used by LookupVM, this package
// does not define interfaces. Consumers (internal/snapshot) define their
// own client interfaces specifying only the operations they need. The
// *libvirt.Libvirt type satisfies these interfaces implicitly, enabling
// clean dependency injection and fake backends in tests.
package libvirt
