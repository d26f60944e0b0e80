// Package evg230 is a network-attached driver for the VME-EVG230/RF timing
// event generator card. It speaks a small request/response register
// protocol over UDP to a network-addressable register gateway in place of
// the VME backplane access a real-time OS would otherwise use.
package evg230

import "encoding/binary"

// messageLen is the fixed length of every request and reply frame.
const messageLen = 12

// access values for the message's first octet.
const (
	accessRead  byte = 1
	accessWrite byte = 2
)

// registerBase is added to a register offset to form the wire address.
const registerBase uint32 = 0x80000000

// message is the 12-octet register frame described in spec.md:4.1:
//
//	offset 0  (1 byte)  access
//	offset 1  (1 byte)  status
//	offset 2  (2 bytes) data      (network byte order)
//	offset 4  (4 bytes) address   (network byte order)
//	offset 8  (4 bytes) reference (network byte order)
//
// It is an ephemeral value type: never retained past one exchange.
type message struct {
	access    byte
	status    byte
	data      uint16
	address   uint32
	reference uint32
}

// encode renders m into a freshly allocated 12-byte frame.
func (m message) encode() [messageLen]byte {
	var buf [messageLen]byte
	buf[0] = m.access
	buf[1] = m.status
	binary.BigEndian.PutUint16(buf[2:4], m.data)
	binary.BigEndian.PutUint32(buf[4:8], m.address)
	binary.BigEndian.PutUint32(buf[8:12], m.reference)
	return buf
}

// decodeMessage parses a reply frame. The caller has already checked the
// frame is exactly messageLen bytes (§4.2: "any reply of exactly 12 octets
// is valid"); decodeMessage does not re-validate length.
func decodeMessage(buf []byte) message {
	return message{
		access:    buf[0],
		status:    buf[1],
		data:      binary.BigEndian.Uint16(buf[2:4]),
		address:   binary.BigEndian.Uint32(buf[4:8]),
		reference: binary.BigEndian.Uint32(buf[8:12]),
	}
}

// readRequest builds a READ request targeting registerBase+reg.
func readRequest(reg uint32) message {
	return message{access: accessRead, address: registerBase + reg}
}

// writeRequest builds a WRITE request targeting registerBase+reg with the
// given payload.
func writeRequest(reg uint32, data uint16) message {
	return message{access: accessWrite, address: registerBase + reg, data: data}
}
