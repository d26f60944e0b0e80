package evg230

// VME-EVG230 register offsets (§4.1). These are part of the external
// contract with the card firmware; do not reorder or renumber them.
const (
	regControl      uint32 = 0x00
	regEventEnable  uint32 = 0x02
	regSWEvent      uint32 = 0x04
	regSeqClockSel1 uint32 = 0x24
	regSeqClockSel2 uint32 = 0x26
	regACEnable     uint32 = 0x28
	regMXCControl   uint32 = 0x2A
	regMXCPrescaler uint32 = 0x2C
	regFirmware     uint32 = 0x2E
	regRFControl    uint32 = 0x40
	regSeqAddress0  uint32 = 0x44
	regSeqCode0     uint32 = 0x46
	regSeqTime0     uint32 = 0x48
	regSeqAddress1  uint32 = 0x50
	regSeqCode1     uint32 = 0x52
	regSeqTime1     uint32 = 0x54
	regUsecDivider  uint32 = 0x68
)

// CONTROL register values and bits.
const (
	controlEnable     uint16 = 0x7001
	controlDisable    uint16 = 0xF001
	controlDisableBit uint16 = 0x8000
	controlVTRG1      uint16 = 0x0100 // trigger sequencer 0
	controlVTRG2      uint16 = 0x0080 // trigger sequencer 1
)

// EVENT_ENABLE bits.
const (
	eventEnableVME        uint16 = 0x0001
	eventEnableSequencer1 uint16 = 0x0002 // sequencer index 1
	eventEnableSequencer0 uint16 = 0x0004 // sequencer index 0
)

// AC_ENABLE bits.
const (
	acEnableDividerMask uint16 = 0x00FF
	acEnableSync        uint16 = 0x1000
	acEnableSeq0        uint16 = 0x4000
	acEnableSeq1        uint16 = 0x8000
)

// RF_CONTROL bits.
const (
	rfControlDividerMask uint16 = 0x003F
	rfControlExternal    uint16 = 0x01C0
)

// MXC_CONTROL. MXC_CONTROL_HIGH_WORD selects the high 16 bits of the
// 32-bit prescaler value on the subsequent MXC_PRESCALER access.
const (
	mxcControlHighWord uint16 = 0x0008
)

// RF clock source selector, used by SetRFClockSource/GetRFClockSource.
type RFClockSource int

const (
	RFClockInternal RFClockSource = iota
	RFClockExternal
)

// AC trigger synchronization source, used by SetACSyncSource/
// GetACSyncSource.
type ACSyncSource int

const (
	ACSyncEvent ACSyncSource = iota
	ACSyncMXC7
)

// Sequencer trigger source, used by SetSequencerTriggerSource.
type TriggerSource int

const (
	TriggerSoft TriggerSource = iota
	TriggerAC
)

// EndOfSequence is the event code that terminates a sequence (§3).
const EndOfSequence uint16 = 0x7F

// Revision selects the register-map superset a device exposes, replacing
// the original driver source's two separately-compiled card variants with one
// configuration-time switch (spec.md §9 design notes).
type Revision int

const (
	// RevisionDualSequencer exposes both sequencer engines (0 and 1).
	RevisionDualSequencer Revision = iota
	// RevisionSingleSequencer exposes only sequencer 0; operations
	// addressing sequencer 1 fail with InvalidArgument.
	RevisionSingleSequencer
)
