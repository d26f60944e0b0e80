package evg230

import (
	"fmt"
	"log"
	"net"
	"sync"
)

// MaxDevices is the largest number of devices a Registry can hold (§4.4).
const MaxDevices = 10

// maxNameLen is the longest allowed device name, inclusive (§3: "length
// 1..29").
const maxNameLen = 29

// Registry owns a fixed-capacity set of configured devices (spec.md §9
// design notes: "a single registry object with a documented lifecycle"
// replacing the source's process-wide device array and count). It is
// adapted from the teacher's IOBus (core_engine/devices/iobus.go), which
// maps a port number to a device the same validate-then-store-then-route
// way this maps a name to one — but as a fixed-size slice with linear
// search rather than a map, per §4.4's explicit contract ("linear search
// by name").
//
// Registration happens in a single-threaded configuration phase (§5);
// mu only protects against accidental concurrent Configure calls, it is
// not required by the spec's concurrency model.
type Registry struct {
	mu      sync.Mutex
	devices [MaxDevices]*device
	count   int
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Configure registers a device record; it performs no I/O (§3, §4.4).
// Revision defaults to RevisionDualSequencer; use ConfigureRevision to
// pick RevisionSingleSequencer.
func (r *Registry) Configure(name, ip string, port int, frequencyHz uint64) error {
	return r.ConfigureRevision(name, ip, port, frequencyHz, RevisionDualSequencer)
}

// ConfigureRevision is Configure with an explicit card revision
// (SPEC_FULL.md's revision-variant redesign).
func (r *Registry) ConfigureRevision(name, ip string, port int, frequencyHz uint64, rev Revision) error {
	if len(name) < 1 || len(name) > maxNameLen {
		return fmt.Errorf("%w: device name must be 1..%d characters, got %q", ErrInvalidArgument, maxNameLen, name)
	}
	parsedIP := net.ParseIP(ip)
	if parsedIP == nil || parsedIP.To4() == nil {
		return fmt.Errorf("%w: %q is not a dotted-quad IPv4 address", ErrInvalidArgument, ip)
	}
	if port < 1 || port > 65535 {
		return fmt.Errorf("%w: port %d out of range [1,65535]", ErrInvalidArgument, port)
	}
	if frequencyHz == 0 {
		return fmt.Errorf("%w: reference frequency must be positive", ErrInvalidArgument)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, d := range r.devices[:r.count] {
		if d.name == name {
			log.Printf("evg230: registry: rejecting duplicate device name %q", name)
			return fmt.Errorf("%w: device %q already configured", ErrInvalidArgument, name)
		}
	}
	if r.count >= MaxDevices {
		return fmt.Errorf("%w: cannot configure %q, limit is %d devices", ErrConfigFull, name, MaxDevices)
	}

	r.devices[r.count] = &device{
		name:        name,
		ip:          parsedIP.String(),
		port:        port,
		frequencyHz: frequencyHz,
		revision:    rev,
	}
	r.count++
	return nil
}

// Open resolves name to a Handle. It fails with ErrUnknownDevice on miss
// or on an invalid name (§4.4). Open is idempotent: multiple opens of the
// same name yield Handles referring to the same device record.
func (r *Registry) Open(name string) (Handle, error) {
	if len(name) < 1 || len(name) > maxNameLen {
		return Handle{}, fmt.Errorf("%w: invalid device name %q", ErrUnknownDevice, name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, d := range r.devices[:r.count] {
		if d.name == name {
			return Handle{reg: r, idx: i}, nil
		}
	}
	return Handle{}, fmt.Errorf("%w: %q", ErrUnknownDevice, name)
}

// deviceAt resolves a handle's index to its device record, failing if the
// index is out of range or the device has been shut down. This indirection
// — rather than a Handle embedding a raw *device — is what makes a
// dangling handle safe: shutdown never frees the slot out from under a
// concurrent resolve, it only marks the record closed.
func (r *Registry) deviceAt(idx int) (*device, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if idx < 0 || idx >= r.count {
		return nil, fmt.Errorf("%w: stale handle (index %d)", ErrUnknownDevice, idx)
	}
	d := r.devices[idx]
	if d.closed {
		return nil, fmt.Errorf("%w: device %q is shut down", ErrUnknownDevice, d.name)
	}
	return d, nil
}
