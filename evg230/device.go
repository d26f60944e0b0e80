package evg230

import (
	"fmt"
	"math"
	"sync"
)

// device is the registry's internal record (§3 "Device record"). It is
// exclusively owned by the Registry that created it; callers never see a
// *device directly, only a Handle that resolves through the registry.
type device struct {
	name        string
	ip          string
	port        int
	frequencyHz uint64
	revision    Revision

	lock      sync.Mutex
	transport *transport
	closed    bool
}

// Handle is an opaque, non-forgeable reference to a configured device,
// returned by Registry.Open. Its zero value is not usable; the only way to
// obtain a valid Handle is Open. Handles are borrowing references whose
// validity ends at device Shutdown (spec.md §3 "Ownership") — using one
// after shutdown returns ErrUnknownDevice rather than touching freed
// state, because resolution always goes back through the registry by
// index instead of holding a raw pointer.
type Handle struct {
	reg *Registry
	idx int
}

func (h Handle) resolve() (*device, error) {
	if h.reg == nil {
		return nil, fmt.Errorf("%w: zero-value handle", ErrUnknownDevice)
	}
	d, err := h.reg.deviceAt(h.idx)
	if err != nil {
		return nil, err
	}
	if d.transport == nil {
		return nil, fmt.Errorf("%w: %s: not initialized (Init's socket dial failed or was never called)", ErrSocketError, d.name)
	}
	return d, nil
}

// Enable writes CONTROL_ENABLE or CONTROL_DISABLE to the CONTROL register.
func (h Handle) Enable(on bool) error {
	d, err := h.resolve()
	if err != nil {
		return err
	}
	d.lock.Lock()
	defer d.lock.Unlock()
	return d.enable(on)
}

func (d *device) enable(on bool) error {
	val := controlDisable
	if on {
		val = controlEnable
	}
	if err := writeReg(d.transport, regControl, val); err != nil {
		return fmt.Errorf("%s: enable(%v): %w", d.name, on, err)
	}
	return nil
}

// IsEnabled reads CONTROL and reports whether the device is enabled.
func (h Handle) IsEnabled() (bool, error) {
	d, err := h.resolve()
	if err != nil {
		return false, err
	}
	d.lock.Lock()
	defer d.lock.Unlock()
	val, err := readReg(d.transport, regControl)
	if err != nil {
		return false, fmt.Errorf("%s: is_enabled: %w", d.name, err)
	}
	return val&controlDisableBit == 0, nil
}

// SetRFClockSource clears or sets the RF_CONTROL_EXTERNAL bits and
// verifies the write.
func (h Handle) SetRFClockSource(src RFClockSource) error {
	d, err := h.resolve()
	if err != nil {
		return err
	}
	d.lock.Lock()
	defer d.lock.Unlock()
	val, err := readReg(d.transport, regRFControl)
	if err != nil {
		return fmt.Errorf("%s: set_rf_clock_source: %w", d.name, err)
	}
	switch src {
	case RFClockInternal:
		val &^= rfControlExternal
	case RFClockExternal:
		val |= rfControlExternal
	default:
		return fmt.Errorf("%w: %s: unknown RF clock source %v", ErrInvalidArgument, d.name, src)
	}
	if err := writeCheckReg(d.transport, regRFControl, val); err != nil {
		return fmt.Errorf("%s: set_rf_clock_source: %w", d.name, err)
	}
	return nil
}

// GetRFClockSource reads RF_CONTROL and decodes the clock source.
func (h Handle) GetRFClockSource() (RFClockSource, error) {
	d, err := h.resolve()
	if err != nil {
		return 0, err
	}
	d.lock.Lock()
	defer d.lock.Unlock()
	val, err := readReg(d.transport, regRFControl)
	if err != nil {
		return 0, fmt.Errorf("%s: get_rf_clock_source: %w", d.name, err)
	}
	if val&rfControlExternal != 0 {
		return RFClockExternal, nil
	}
	return RFClockInternal, nil
}

// SetRFPrescaler programs the RF divider field. p must be in 1..31; the
// wire value stored is p-1.
func (h Handle) SetRFPrescaler(p int) error {
	d, err := h.resolve()
	if err != nil {
		return err
	}
	if p < 1 || p > 31 {
		return fmt.Errorf("%w: %s: rf prescaler %d out of range [1,31]", ErrInvalidArgument, d.name, p)
	}
	d.lock.Lock()
	defer d.lock.Unlock()
	val, err := readReg(d.transport, regRFControl)
	if err != nil {
		return fmt.Errorf("%s: set_rf_prescaler: %w", d.name, err)
	}
	val &^= rfControlDividerMask
	val |= uint16(p-1) & rfControlDividerMask
	if err := writeCheckReg(d.transport, regRFControl, val); err != nil {
		return fmt.Errorf("%s: set_rf_prescaler: %w", d.name, err)
	}
	return nil
}

// GetRFPrescaler reads the RF divider field and returns it as the
// user-facing prescaler value (the inverse of SetRFPrescaler's -1 wire
// offset — see SPEC_FULL.md §9, Open Question 1 — so that
// SetRFPrescaler(p); GetRFPrescaler() == p round-trips).
func (h Handle) GetRFPrescaler() (int, error) {
	d, err := h.resolve()
	if err != nil {
		return 0, err
	}
	d.lock.Lock()
	defer d.lock.Unlock()
	val, err := readReg(d.transport, regRFControl)
	if err != nil {
		return 0, fmt.Errorf("%s: get_rf_prescaler: %w", d.name, err)
	}
	return int(val&rfControlDividerMask) + 1, nil
}

// SetACPrescaler programs the AC_ENABLE divider byte. p must be in 1..255.
func (h Handle) SetACPrescaler(p int) error {
	d, err := h.resolve()
	if err != nil {
		return err
	}
	if p < 1 || p > 255 {
		return fmt.Errorf("%w: %s: ac prescaler %d out of range [1,255]", ErrInvalidArgument, d.name, p)
	}
	d.lock.Lock()
	defer d.lock.Unlock()
	val, err := readReg(d.transport, regACEnable)
	if err != nil {
		return fmt.Errorf("%s: set_ac_prescaler: %w", d.name, err)
	}
	val = (val &^ acEnableDividerMask) | (uint16(p) & acEnableDividerMask)
	if err := writeCheckReg(d.transport, regACEnable, val); err != nil {
		return fmt.Errorf("%s: set_ac_prescaler: %w", d.name, err)
	}
	return nil
}

// GetACPrescaler reads the AC_ENABLE divider byte.
func (h Handle) GetACPrescaler() (int, error) {
	d, err := h.resolve()
	if err != nil {
		return 0, err
	}
	d.lock.Lock()
	defer d.lock.Unlock()
	val, err := readReg(d.transport, regACEnable)
	if err != nil {
		return 0, fmt.Errorf("%s: get_ac_prescaler: %w", d.name, err)
	}
	return int(val & acEnableDividerMask), nil
}

// SetACSyncSource sets or clears AC_ENABLE_SYNC.
func (h Handle) SetACSyncSource(src ACSyncSource) error {
	d, err := h.resolve()
	if err != nil {
		return err
	}
	d.lock.Lock()
	defer d.lock.Unlock()
	val, err := readReg(d.transport, regACEnable)
	if err != nil {
		return fmt.Errorf("%s: set_ac_sync_source: %w", d.name, err)
	}
	switch src {
	case ACSyncEvent:
		val &^= acEnableSync
	case ACSyncMXC7:
		val |= acEnableSync
	default:
		return fmt.Errorf("%w: %s: unknown AC sync source %v", ErrInvalidArgument, d.name, src)
	}
	if err := writeCheckReg(d.transport, regACEnable, val); err != nil {
		return fmt.Errorf("%s: set_ac_sync_source: %w", d.name, err)
	}
	return nil
}

// GetACSyncSource reads AC_ENABLE and decodes the sync source using the
// AC_ENABLE_SYNC bit mask (SPEC_FULL.md §9, Open Question 3: the reference
// decodes with an enumerator instead of the bit mask; that is treated as a
// bug here and not reproduced).
func (h Handle) GetACSyncSource() (ACSyncSource, error) {
	d, err := h.resolve()
	if err != nil {
		return 0, err
	}
	d.lock.Lock()
	defer d.lock.Unlock()
	val, err := readReg(d.transport, regACEnable)
	if err != nil {
		return 0, fmt.Errorf("%s: get_ac_sync_source: %w", d.name, err)
	}
	if val&acEnableSync != 0 {
		return ACSyncMXC7, nil
	}
	return ACSyncEvent, nil
}

// sequencerRegs resolves the EVENT_ENABLE bit, AC_ENABLE bit, and
// SEQ_CLOCK_SEL/SEQ_ADDRESS/SEQ_CODE/SEQ_TIME register set for sequencer n,
// rejecting sequencer 1 on single-sequencer revisions (SPEC_FULL.md's
// revision-variant redesign).
func (d *device) sequencerRegs(n int) (enableBit, acSeqBit uint16, clockSel, addr, code, tm uint32, err error) {
	switch n {
	case 0:
		return eventEnableSequencer0, acEnableSeq0, regSeqClockSel1, regSeqAddress0, regSeqCode0, regSeqTime0, nil
	case 1:
		if d.revision == RevisionSingleSequencer {
			return 0, 0, 0, 0, 0, 0, fmt.Errorf("%w: %s: sequencer 1 not present on this revision", ErrInvalidArgument, d.name)
		}
		return eventEnableSequencer1, acEnableSeq1, regSeqClockSel2, regSeqAddress1, regSeqCode1, regSeqTime1, nil
	default:
		return 0, 0, 0, 0, 0, 0, fmt.Errorf("%w: %s: sequencer index %d not in {0,1}", ErrInvalidArgument, d.name, n)
	}
}

// EnableSequencer toggles the given sequencer's EVENT_ENABLE bit. The
// write is not read-back verified (§4.5).
func (h Handle) EnableSequencer(n int, on bool) error {
	d, err := h.resolve()
	if err != nil {
		return err
	}
	d.lock.Lock()
	defer d.lock.Unlock()
	bit, _, _, _, _, _, err := d.sequencerRegs(n)
	if err != nil {
		return err
	}
	val, err := readReg(d.transport, regEventEnable)
	if err != nil {
		return fmt.Errorf("%s: enable_sequencer(%d): %w", d.name, n, err)
	}
	if on {
		val |= bit
	} else {
		val &^= bit
	}
	if err := writeReg(d.transport, regEventEnable, val); err != nil {
		return fmt.Errorf("%s: enable_sequencer(%d): %w", d.name, n, err)
	}
	return nil
}

// IsSequencerEnabled reads EVENT_ENABLE and reports the sequencer's bit.
func (h Handle) IsSequencerEnabled(n int) (bool, error) {
	d, err := h.resolve()
	if err != nil {
		return false, err
	}
	d.lock.Lock()
	defer d.lock.Unlock()
	bit, _, _, _, _, _, err := d.sequencerRegs(n)
	if err != nil {
		return false, err
	}
	val, err := readReg(d.transport, regEventEnable)
	if err != nil {
		return false, fmt.Errorf("%s: is_sequencer_enabled(%d): %w", d.name, n, err)
	}
	return val&bit != 0, nil
}

// SetSequencerTriggerSource selects SOFT (VME) or AC triggering for
// sequencer n. Two writes, no read-back.
func (h Handle) SetSequencerTriggerSource(n int, src TriggerSource) error {
	d, err := h.resolve()
	if err != nil {
		return err
	}
	d.lock.Lock()
	defer d.lock.Unlock()
	_, acBit, _, _, _, _, err := d.sequencerRegs(n)
	if err != nil {
		return err
	}
	ee, err := readReg(d.transport, regEventEnable)
	if err != nil {
		return fmt.Errorf("%s: set_sequencer_trigger_source(%d): %w", d.name, n, err)
	}
	ac, err := readReg(d.transport, regACEnable)
	if err != nil {
		return fmt.Errorf("%s: set_sequencer_trigger_source(%d): %w", d.name, n, err)
	}
	switch src {
	case TriggerSoft:
		ee |= eventEnableVME
		ac &^= acBit
	case TriggerAC:
		ee &^= eventEnableVME
		ac |= acBit
	default:
		return fmt.Errorf("%w: %s: unknown trigger source %v", ErrInvalidArgument, d.name, src)
	}
	if err := writeReg(d.transport, regEventEnable, ee); err != nil {
		return fmt.Errorf("%s: set_sequencer_trigger_source(%d): %w", d.name, n, err)
	}
	if err := writeReg(d.transport, regACEnable, ac); err != nil {
		return fmt.Errorf("%s: set_sequencer_trigger_source(%d): %w", d.name, n, err)
	}
	return nil
}

// SetSequencerPrescaler writes and verifies the SEQ_CLOCK_SEL register for
// sequencer n.
func (h Handle) SetSequencerPrescaler(n int, p uint16) error {
	d, err := h.resolve()
	if err != nil {
		return err
	}
	d.lock.Lock()
	defer d.lock.Unlock()
	_, _, clockSel, _, _, _, err := d.sequencerRegs(n)
	if err != nil {
		return err
	}
	if err := writeCheckReg(d.transport, clockSel, p); err != nil {
		return fmt.Errorf("%s: set_sequencer_prescaler(%d): %w", d.name, n, err)
	}
	return nil
}

// TriggerSequencer pulses the CONTROL_VTRGn bit for sequencer n. No
// read-back: this is a pulse, not a persistent state bit.
func (h Handle) TriggerSequencer(n int) error {
	d, err := h.resolve()
	if err != nil {
		return err
	}
	d.lock.Lock()
	defer d.lock.Unlock()
	var bit uint16
	switch n {
	case 0:
		bit = controlVTRG1
	case 1:
		if d.revision == RevisionSingleSequencer {
			return fmt.Errorf("%w: %s: sequencer 1 not present on this revision", ErrInvalidArgument, d.name)
		}
		bit = controlVTRG2
	default:
		return fmt.Errorf("%w: %s: sequencer index %d not in {0,1}", ErrInvalidArgument, d.name, n)
	}
	val, err := readReg(d.transport, regControl)
	if err != nil {
		return fmt.Errorf("%s: trigger_sequencer(%d): %w", d.name, n, err)
	}
	val |= bit
	if err := writeReg(d.transport, regControl, val); err != nil {
		return fmt.Errorf("%s: trigger_sequencer(%d): %w", d.name, n, err)
	}
	return nil
}

// validateEventArgs checks addr (0..2047) and code (0..127) domains.
func (d *device) validateEventArgs(addr, code int) error {
	if addr < 0 || addr > 2047 {
		return fmt.Errorf("%w: %s: event address %d out of range [0,2047]", ErrInvalidArgument, d.name, addr)
	}
	if code < 0 || code > 127 {
		return fmt.Errorf("%w: %s: event code %d out of range [0,127]", ErrInvalidArgument, d.name, code)
	}
	return nil
}

// SetEvent latches addr into SEQ_ADDRESSn, then writes code into
// SEQ_CODEn. Both steps are verified, with no intervening exchange
// between them (§8 testable property 3).
func (h Handle) SetEvent(n, addr, code int) error {
	d, err := h.resolve()
	if err != nil {
		return err
	}
	if err := d.validateEventArgs(addr, code); err != nil {
		return err
	}
	d.lock.Lock()
	defer d.lock.Unlock()
	_, _, _, addrReg, codeReg, _, err := d.sequencerRegs(n)
	if err != nil {
		return err
	}
	if err := writeCheckReg(d.transport, addrReg, uint16(addr)); err != nil {
		return fmt.Errorf("%s: set_event(%d,%d): %w", d.name, n, addr, err)
	}
	if err := writeCheckReg(d.transport, codeReg, uint16(code)); err != nil {
		return fmt.Errorf("%s: set_event(%d,%d): %w", d.name, n, addr, err)
	}
	return nil
}

// GetEvent latches addr into SEQ_ADDRESSn, then reads SEQ_CODEn.
func (h Handle) GetEvent(n, addr int) (int, error) {
	d, err := h.resolve()
	if err != nil {
		return 0, err
	}
	if addr < 0 || addr > 2047 {
		return 0, fmt.Errorf("%w: %s: event address %d out of range [0,2047]", ErrInvalidArgument, d.name, addr)
	}
	d.lock.Lock()
	defer d.lock.Unlock()
	_, _, _, addrReg, codeReg, _, err := d.sequencerRegs(n)
	if err != nil {
		return 0, err
	}
	if err := writeCheckReg(d.transport, addrReg, uint16(addr)); err != nil {
		return 0, fmt.Errorf("%s: get_event(%d,%d): %w", d.name, n, addr, err)
	}
	code, err := readReg(d.transport, codeReg)
	if err != nil {
		return 0, fmt.Errorf("%s: get_event(%d,%d): %w", d.name, n, addr, err)
	}
	return int(code), nil
}

// maxCycles is the largest value a 32-bit cycle count can hold.
const maxCycles = uint64(math.MaxUint32)

// SetTimestamp converts seconds to device clock cycles using the device's
// configured reference frequency, latches addr, then writes the high and
// low halves of the 32-bit cycle count into SEQ_TIMEn / SEQ_TIMEn+2, each
// verified.
func (h Handle) SetTimestamp(n, addr int, seconds float64) error {
	d, err := h.resolve()
	if err != nil {
		return err
	}
	if addr < 0 || addr > 2047 {
		return fmt.Errorf("%w: %s: event address %d out of range [0,2047]", ErrInvalidArgument, d.name, addr)
	}
	cyclesF := math.Round(seconds * float64(d.frequencyHz))
	if cyclesF < 0 || uint64(cyclesF) > maxCycles {
		return fmt.Errorf("%w: %s: timestamp %gs exceeds 32-bit cycle range at %d Hz", ErrInvalidArgument, d.name, seconds, d.frequencyHz)
	}
	cycles := uint32(cyclesF)

	d.lock.Lock()
	defer d.lock.Unlock()
	_, _, _, addrReg, _, timeReg, err := d.sequencerRegs(n)
	if err != nil {
		return err
	}
	if err := writeCheckReg(d.transport, addrReg, uint16(addr)); err != nil {
		return fmt.Errorf("%s: set_timestamp(%d,%d): %w", d.name, n, addr, err)
	}
	if err := writeCheckReg(d.transport, timeReg, uint16(cycles>>16)); err != nil {
		return fmt.Errorf("%s: set_timestamp(%d,%d): %w", d.name, n, addr, err)
	}
	if err := writeCheckReg(d.transport, timeReg+2, uint16(cycles&0xFFFF)); err != nil {
		return fmt.Errorf("%s: set_timestamp(%d,%d): %w", d.name, n, addr, err)
	}
	return nil
}

// GetTimestamp latches addr, reads the high and low halves of the cycle
// count from SEQ_TIMEn / SEQ_TIMEn+2, and converts back to seconds using
// the device's reference frequency.
func (h Handle) GetTimestamp(n, addr int) (float64, error) {
	d, err := h.resolve()
	if err != nil {
		return 0, err
	}
	if addr < 0 || addr > 2047 {
		return 0, fmt.Errorf("%w: %s: event address %d out of range [0,2047]", ErrInvalidArgument, d.name, addr)
	}
	d.lock.Lock()
	defer d.lock.Unlock()
	_, _, _, addrReg, _, timeReg, err := d.sequencerRegs(n)
	if err != nil {
		return 0, err
	}
	if err := writeCheckReg(d.transport, addrReg, uint16(addr)); err != nil {
		return 0, fmt.Errorf("%s: get_timestamp(%d,%d): %w", d.name, n, addr, err)
	}
	hi, err := readReg(d.transport, timeReg)
	if err != nil {
		return 0, fmt.Errorf("%s: get_timestamp(%d,%d): %w", d.name, n, addr, err)
	}
	lo, err := readReg(d.transport, timeReg+2)
	if err != nil {
		return 0, fmt.Errorf("%s: get_timestamp(%d,%d): %w", d.name, n, addr, err)
	}
	cycles := uint32(hi)<<16 | uint32(lo)
	return float64(cycles) / float64(d.frequencyHz), nil
}

// SetCounterPrescaler programs one of the eight MXC dividers. The 32-bit
// prescaler p is written a 16-bit half at a time, each half preceded by a
// latched MXC_CONTROL selector write, each step verified (§4.5).
func (h Handle) SetCounterPrescaler(c int, p uint32) error {
	d, err := h.resolve()
	if err != nil {
		return err
	}
	if c < 0 || c > 7 {
		return fmt.Errorf("%w: %s: mxc counter index %d out of range [0,7]", ErrInvalidArgument, d.name, c)
	}
	d.lock.Lock()
	defer d.lock.Unlock()
	if err := writeCheckReg(d.transport, regMXCControl, mxcControlHighWord|uint16(c)); err != nil {
		return fmt.Errorf("%s: set_counter_prescaler(%d): %w", d.name, c, err)
	}
	if err := writeCheckReg(d.transport, regMXCPrescaler, uint16(p>>16)); err != nil {
		return fmt.Errorf("%s: set_counter_prescaler(%d): %w", d.name, c, err)
	}
	if err := writeCheckReg(d.transport, regMXCControl, uint16(c)); err != nil {
		return fmt.Errorf("%s: set_counter_prescaler(%d): %w", d.name, c, err)
	}
	if err := writeCheckReg(d.transport, regMXCPrescaler, uint16(p&0xFFFF)); err != nil {
		return fmt.Errorf("%s: set_counter_prescaler(%d): %w", d.name, c, err)
	}
	return nil
}

// GetFirmwareVersion reads the FIRMWARE register.
func (h Handle) GetFirmwareVersion() (uint16, error) {
	d, err := h.resolve()
	if err != nil {
		return 0, err
	}
	d.lock.Lock()
	defer d.lock.Unlock()
	val, err := readReg(d.transport, regFirmware)
	if err != nil {
		return 0, fmt.Errorf("%s: get_firmware_version: %w", d.name, err)
	}
	return val, nil
}

// LastStatus returns the status byte from the device's most recently
// completed exchange, for diagnostic logging (SPEC_FULL.md §9, Open
// Question 4). It is not promoted to an error by any operation.
func (h Handle) LastStatus() (byte, error) {
	d, err := h.resolve()
	if err != nil {
		return 0, err
	}
	d.lock.Lock()
	defer d.lock.Unlock()
	return d.transport.lastStatus, nil
}

// SetSoftwareEvent writes a one-shot event code to SW_EVENT. No read-back.
func (h Handle) SetSoftwareEvent(code int) error {
	d, err := h.resolve()
	if err != nil {
		return err
	}
	if code < 0 || code > 127 {
		return fmt.Errorf("%w: %s: software event code %d out of range [0,127]", ErrInvalidArgument, d.name, code)
	}
	d.lock.Lock()
	defer d.lock.Unlock()
	if err := writeReg(d.transport, regSWEvent, uint16(code)); err != nil {
		return fmt.Errorf("%s: set_software_event: %w", d.name, err)
	}
	return nil
}
