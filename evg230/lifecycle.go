package evg230

import (
	"fmt"
	"log"
	"net"

	"golang.org/x/sys/unix"
)

// socketBufferBytes sizes the kernel send/receive buffers on each device's
// UDP socket. This gateway is hammered with small, frequent 12-byte
// datagrams by a single caller at a time (§5: one device's traffic is
// totally ordered under its lock); a generous fixed buffer avoids kernel
// drops under burst load without needing per-device tuning knobs.
const socketBufferBytes = 64 * 1024

// Init walks every configured device, in registration order: dials a
// connected UDP socket to its endpoint, and — if resetOnInit is true —
// issues the card-reset sequence (master disable, sequencer disable,
// clear event RAM to end-code; §3, §4.6). A failure on one device is
// reported but does not abort the others, mirroring the teacher's
// NewVirtualMachine walking its sub-resources without letting one
// non-fatal failure tear down devices that already succeeded
// (core_engine/virtual_machine.go). The returned slice holds one error per
// device that failed to initialize. A device whose socket dial failed has
// no transport and every subsequent operation on it fails; a device whose
// socket succeeded but whose optional reset sequence failed is left fully
// usable — the reset is a convenience, not a precondition for Normal
// state. Either way the device stays in the registry, so the report in §6
// can still list it.
func (r *Registry) Init(resetOnInit bool) []error {
	r.mu.Lock()
	devs := make([]*device, r.count)
	copy(devs, r.devices[:r.count])
	r.mu.Unlock()

	var errs []error
	for _, d := range devs {
		if err := initDevice(d, resetOnInit); err != nil {
			log.Printf("evg230: init %s: %v", d.name, err)
			errs = append(errs, fmt.Errorf("%s: %w", d.name, err))
		}
	}
	return errs
}

func initDevice(d *device, resetOnInit bool) error {
	addr := &net.UDPAddr{IP: net.ParseIP(d.ip), Port: d.port}
	conn, err := net.DialUDP("udp4", nil, addr)
	if err != nil {
		return fmt.Errorf("%w: dial %s:%d: %v", ErrSocketError, d.ip, d.port, err)
	}
	if err := tuneSocketBuffers(conn); err != nil {
		// Buffer tuning is best-effort: the kernel default is still a
		// working socket, so this is logged, not fatal.
		log.Printf("evg230: %s: socket buffer tuning failed: %v", d.name, err)
	}

	d.lock.Lock()
	d.transport = &transport{sock: conn}
	d.lock.Unlock()

	if resetOnInit {
		if err := resetDevice(d); err != nil {
			return fmt.Errorf("reset sequence: %w", err)
		}
	}
	return nil
}

// tuneSocketBuffers raises the UDP socket's SO_RCVBUF/SO_SNDBUF via the
// raw file descriptor, the same "drop to x/sys/unix under a Go net type"
// idiom the teacher uses to issue a TUNSETIFF ioctl on a TAP fd
// (core_engine/network/tap_device.go) — here repurposed from interface
// creation to buffer sizing, since a UDP driver needs no TUN/TAP device.
func tuneSocketBuffers(conn *net.UDPConn) error {
	raw, err := conn.SyscallConn()
	if err != nil {
		return err
	}
	var sockErr error
	err = raw.Control(func(fd uintptr) {
		if e := unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_RCVBUF, socketBufferBytes); e != nil {
			sockErr = e
			return
		}
		if e := unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_SNDBUF, socketBufferBytes); e != nil {
			sockErr = e
			return
		}
	})
	if err != nil {
		return err
	}
	return sockErr
}

// resetDevice performs the card-reset sequence described in §3: master
// disable, sequencer disable (both engines on a dual-sequencer revision),
// and marking sequence RAM empty by writing the end-of-sequence code at
// address 0 of each available sequencer. Sweeping the full 2048-entry RAM
// over the network would cost thousands of round trips for no behavioral
// difference the card's firmware exposes, since a sequencer stops at the
// first end-of-sequence code it encounters; placing the marker at address
// 0 is sufficient to make "sequence RAM is empty" true from the card's
// point of view.
func resetDevice(d *device) error {
	d.lock.Lock()
	defer d.lock.Unlock()

	if err := d.enable(false); err != nil {
		return err
	}

	seqs := []int{0}
	if d.revision == RevisionDualSequencer {
		seqs = append(seqs, 1)
	}
	for _, n := range seqs {
		bit, _, _, addrReg, codeReg, _, err := d.sequencerRegs(n)
		if err != nil {
			return err
		}
		ee, err := readReg(d.transport, regEventEnable)
		if err != nil {
			return err
		}
		if err := writeReg(d.transport, regEventEnable, ee&^bit); err != nil {
			return err
		}
		if err := writeCheckReg(d.transport, addrReg, 0); err != nil {
			return err
		}
		if err := writeCheckReg(d.transport, codeReg, EndOfSequence); err != nil {
			return err
		}
	}
	return nil
}

// Shutdown closes h's socket, if Init gave the device one, and marks the
// device record shut down (§3). The record keeps its registry slot, so
// Report still lists it. Further operations on h, or on any other Handle
// obtained for the same device, return ErrUnknownDevice.
func (h Handle) Shutdown() error {
	if h.reg == nil {
		return fmt.Errorf("%w: zero-value handle", ErrUnknownDevice)
	}
	d, err := h.reg.deviceAt(h.idx)
	if err != nil {
		return err
	}
	d.lock.Lock()
	defer d.lock.Unlock()
	d.closed = true
	if d.transport == nil {
		return nil
	}
	if err := d.transport.sock.Close(); err != nil {
		return fmt.Errorf("%s: shutdown: %w", d.name, err)
	}
	return nil
}

// ShutdownAll closes every device's socket, in registration order,
// continuing past individual failures and returning one error per
// failure.
func (r *Registry) ShutdownAll() []error {
	r.mu.Lock()
	devs := make([]*device, r.count)
	copy(devs, r.devices[:r.count])
	r.mu.Unlock()

	var errs []error
	for i := range devs {
		if err := (Handle{reg: r, idx: i}).Shutdown(); err != nil {
			errs = append(errs, err)
		}
	}
	return errs
}
