// Package aptcol defines the error taxonomy shared across the APT core
// packages: which failures are returned to the caller and which are fatal.
package aptcol

import "errors"

// Recoverable errors are returned to the caller; the device and its
// Dispatcher remain in a consistent state afterward.
var (
	// ErrSerialInvalid is returned when a serial number fails format validation.
	ErrSerialInvalid = errors.New("aptcol: serial number is invalid")

	// ErrSerialNotFound is returned when no connected device matches a serial number.
	ErrSerialNotFound = errors.New("aptcol: no device matches serial number")

	// ErrSerialMultiple is returned when more than one connected device matches.
	ErrSerialMultiple = errors.New("aptcol: multiple devices match serial number")

	// ErrTransportControl is returned when an FTDI control transfer fails during open.
	ErrTransportControl = errors.New("aptcol: USB control transfer failed")

	// ErrDeviceClosed is returned from Send when the USB Primitive is not open.
	ErrDeviceClosed = errors.New("aptcol: device is closed")
)

// Fatal conditions are never returned to a caller. They are passed to
// registry.GlobalAbort, which fans out an emergency stop and terminates the
// process. They are exposed here only so other packages can format
// consistent diagnostics; callers should not compare errors.Is against these.
const (
	// FatalTransportTransfer marks an unrecoverable bulk transfer failure.
	FatalTransportTransfer = "transport transfer failed"

	// FatalUnknownFrameID marks an inbound command ID absent from the descriptor table.
	FatalUnknownFrameID = "unknown frame id, stream desync"

	// FatalBroadcastFailed marks a dispatch that could not reach its channel.
	FatalBroadcastFailed = "broadcast failed"

	// FatalMalformedShortFrame marks an inbound transfer too short to carry framing.
	FatalMalformedShortFrame = "malformed short frame"
)

// BugSuffix is appended to diagnostics raised for conditions that should be
// impossible if the core is implemented correctly.
const BugSuffix = "this indicates a bug in the driver, please report it"
