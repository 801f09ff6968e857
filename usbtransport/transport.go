/*Package usbtransport defines the abstract USB transport the core programs
against (enumeration, control transfers, bulk IN/OUT streams) and a concrete
binding of it onto github.com/google/gousb.

Keeping the interface separate from the gousb binding lets the reassembly
and dispatch logic in package communicator be exercised against a fake
transport in tests, without a physical device attached.
*/
package usbtransport

import "io"

// DeviceInfo identifies one USB device as reported by enumeration.
type DeviceInfo struct {
	VendorID  uint16
	ProductID uint16
	Serial    string
}

// ControlRequest describes a vendor control transfer, as issued during
// FTDI serial-port initialization.
type ControlRequest struct {
	// RequestType carries the transfer direction, type and recipient
	// bits, e.g. 0x40 for a vendor, host-to-device, device-recipient
	// OUT request.
	RequestType uint8
	Request     uint8
	Value       uint16
	Index       uint16
}

// InStream is a bulk IN endpoint open for reading.
type InStream interface {
	io.Reader
	// MaxPacketSize reports the endpoint's maximum packet size, used to
	// size read buffers.
	MaxPacketSize() int
}

// OutStream is a bulk OUT endpoint open for writing.
type OutStream interface {
	io.Writer
}

// Interface is a claimed USB interface: the thing serial-port
// initialization and the Communicator operate against.
type Interface interface {
	ControlOut(req ControlRequest, data []byte) error
	InEndpoint(addr uint8) (InStream, error)
	OutEndpoint(addr uint8) (OutStream, error)
	// Release relinquishes the interface claim.
	Release()
}

// Handle is an open USB device, prior to interface claim.
type Handle interface {
	// DetachKernelDriver best-effort detaches any active kernel driver
	// from ifNum; a "no driver attached" condition is not an error.
	DetachKernelDriver(ifNum int) error
	ClaimInterface(ifNum int) (Interface, error)
	Close() error
}

// Transport is the abstract USB stack binding the core consumes. Device
// enumeration, interface claim, control transfers and bulk streaming are
// all expressed through it so the concrete binding (gousb in production, a
// fake in tests) is swappable.
type Transport interface {
	// ListDevices enumerates every attached device reporting vendorID.
	ListDevices(vendorID uint16) ([]DeviceInfo, error)
	Open(info DeviceInfo) (Handle, error)
}
