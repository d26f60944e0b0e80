package evg230

import "fmt"

// readReg, writeReg and writeCheckReg (§4.3) assume the caller already
// holds the device's lock; they are never called directly by package
// consumers. They are kept as standalone functions over *transport (rather
// than methods on device) so the latched-write pattern in device.go reads
// as a flat sequence of register accesses, mirroring the teacher's
// HandleIO bodies which read as a flat sequence of bit-level register
// touches under one already-held lock.

// readReg issues a READ for reg and returns the reply payload.
func readReg(t *transport, reg uint32) (uint16, error) {
	reply, err := t.exchange(readRequest(reg))
	if err != nil {
		return 0, fmt.Errorf("read register 0x%x: %w", reg, err)
	}
	return reply.data, nil
}

// writeReg issues a WRITE for reg with data and discards the reply
// payload.
func writeReg(t *transport, reg uint32, data uint16) error {
	if _, err := t.exchange(writeRequest(reg, data)); err != nil {
		return fmt.Errorf("write register 0x%x: %w", reg, err)
	}
	return nil
}

// writeCheckReg performs writeReg followed by readReg, failing with
// ErrVerifyMismatch if the read-back disagrees with the written value.
// This is the only in-band consistency check available against a
// write-through card with sticky bits (§4.3 rationale).
func writeCheckReg(t *transport, reg uint32, data uint16) error {
	if err := writeReg(t, reg, data); err != nil {
		return err
	}
	got, err := readReg(t, reg)
	if err != nil {
		return err
	}
	if got != data {
		return fmt.Errorf("%w: register 0x%x: wrote 0x%04x, read back 0x%04x", ErrVerifyMismatch, reg, data, got)
	}
	return nil
}
