/*Package aptframe implements the Thorlabs APT wire framing: encoding short
and long command frames, and looking up the expected response length for a
given command ID.

A short frame is the 6-byte header alone. A long frame is the 6-byte header
followed by a length-tagged payload, with the destination byte's high bit
set to flag the payload as present.
*/
package aptframe

const (
	// HostAddress is the protocol-fixed source identifier for the host.
	HostAddress = 0x01

	// GenericUSBUnit is the protocol-fixed destination identifier for a
	// single-channel USB unit addressed directly (no internal sub-bus).
	GenericUSBUnit = 0x50

	// LongFrameBit is ORed into the destination byte of frames that carry
	// a payload rather than two inline parameter bytes.
	LongFrameBit = 0x80

	// HeaderLen is the size, in bytes, of every APT frame header.
	HeaderLen = 6
)

// ID is a two-byte little-endian command identifier.
type ID [2]byte

// Short encodes a 6-byte header-only frame.
func Short(id ID, param1, param2 byte) []byte {
	return []byte{id[0], id[1], param1, param2, GenericUSBUnit, HostAddress}
}

// Long encodes a header followed by payload, with the destination byte's
// high bit set and the length field carrying len(payload) little-endian.
func Long(id ID, payload []byte) []byte {
	n := len(payload)
	frame := make([]byte, HeaderLen+n)
	frame[0] = id[0]
	frame[1] = id[1]
	frame[2] = byte(n)
	frame[3] = byte(n >> 8)
	frame[4] = GenericUSBUnit | LongFrameBit
	frame[5] = HostAddress
	copy(frame[HeaderLen:], payload)
	return frame
}

// HeaderID extracts the command ID from the leading two bytes of a frame.
func HeaderID(frame []byte) ID {
	return ID{frame[0], frame[1]}
}

// Payload returns the payload portion of a long frame, or nil for a frame
// that is exactly HeaderLen bytes.
func Payload(frame []byte) []byte {
	if len(frame) <= HeaderLen {
		return nil
	}
	return frame[HeaderLen:]
}

// IsLong reports whether the frame's destination byte carries the long-frame bit.
func IsLong(frame []byte) bool {
	return len(frame) >= 5 && frame[4]&LongFrameBit != 0
}
