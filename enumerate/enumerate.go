/*Package enumerate implements the Device Enumerator: filtering the host USB
device list by vendor ID and picking exactly one device by serial number,
plus the serial-number format check every façade runs before trusting a
match.
*/
package enumerate

import (
	"fmt"
	"io"
	"time"
	"unicode"

	"github.com/cenkalti/backoff"

	"github.com/bdube/thorapt/aptcol"
	"github.com/bdube/thorapt/usbtransport"
)

// FTDIVendorID is the USB vendor ID of the FTDI bridge every supported
// Thorlabs controller is built around.
const FTDIVendorID = 0x0403

// SerialLength is the fixed digit-count of a Thorlabs APT serial number.
const SerialLength = 8

// CheckSerialNumber verifies serial is exactly SerialLength numeric
// characters and begins with the model-specific prefix.
func CheckSerialNumber(serial, expectedPrefix string) error {
	if len(serial) != SerialLength {
		return fmt.Errorf("enumerate: %w: %q is not %d digits", aptcol.ErrSerialInvalid, serial, SerialLength)
	}
	for _, r := range serial {
		if !unicode.IsDigit(r) {
			return fmt.Errorf("enumerate: %w: %q contains a non-digit", aptcol.ErrSerialInvalid, serial)
		}
	}
	if expectedPrefix != "" && serial[:len(expectedPrefix)] != expectedPrefix {
		return fmt.Errorf("enumerate: %w: %q does not start with model prefix %q", aptcol.ErrSerialInvalid, serial, expectedPrefix)
	}
	return nil
}

// GetDevice lists every FTDI-vendor device present and returns the one
// whose serial number equals serial. A transient enumeration failure (the
// bridge is briefly unavailable right after plug-in) is retried with a
// short exponential backoff.
func GetDevice(transport usbtransport.Transport, serial string) (usbtransport.DeviceInfo, error) {
	var candidates []usbtransport.DeviceInfo
	op := func() error {
		devs, err := transport.ListDevices(FTDIVendorID)
		if err != nil {
			return err
		}
		candidates = devs
		return nil
	}
	b := &backoff.ExponentialBackOff{
		InitialInterval:     25 * time.Millisecond,
		RandomizationFactor: 0,
		Multiplier:          2,
		MaxInterval:         500 * time.Millisecond,
		MaxElapsedTime:      2 * time.Second,
		Clock:               backoff.SystemClock,
	}
	if err := backoff.Retry(op, b); err != nil {
		return usbtransport.DeviceInfo{}, fmt.Errorf("enumerate: %w: %v", aptcol.ErrSerialNotFound, err)
	}

	var matches []usbtransport.DeviceInfo
	for _, d := range candidates {
		if d.Serial == serial {
			matches = append(matches, d)
		}
	}
	switch len(matches) {
	case 0:
		return usbtransport.DeviceInfo{}, fmt.Errorf("enumerate: %w: serial %q", aptcol.ErrSerialNotFound, serial)
	case 1:
		return matches[0], nil
	default:
		return usbtransport.DeviceInfo{}, fmt.Errorf("enumerate: %w: serial %q matched %d devices", aptcol.ErrSerialMultiple, serial, len(matches))
	}
}

// ShowDevices is the one diagnostic/utility operation named in the
// façade's CLI surface: it dumps the filtered enumeration to out.
func ShowDevices(transport usbtransport.Transport, out io.Writer) error {
	devs, err := transport.ListDevices(FTDIVendorID)
	if err != nil {
		return err
	}
	for _, d := range devs {
		fmt.Fprintf(out, "%04x:%04x serial=%s\n", d.VendorID, d.ProductID, d.Serial)
	}
	return nil
}
