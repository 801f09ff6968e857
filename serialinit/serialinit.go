/*Package serialinit issues the FTDI vendor-control sequence that conditions
the USB-serial bridge before any APT frame can traverse it. The FTDI-bridged
device boots into an undefined UART configuration; skipping or reordering
any step here leaves the bridge unable to frame bytes correctly.
*/
package serialinit

import (
	"fmt"
	"time"

	"github.com/bdube/thorapt/usbtransport"
)

const vendorOut = 0x40 // request type: vendor, host-to-device, device recipient

var sequence = []usbtransport.ControlRequest{
	{RequestType: vendorOut, Request: 0x00, Value: 0x0000}, // reset controller
	{RequestType: vendorOut, Request: 0x03, Value: 0x001A}, // baud rate, ~115200
	{RequestType: vendorOut, Request: 0x04, Value: 0x0008}, // 8 data bits, 1 stop, no parity
}

var purgeSequence = []usbtransport.ControlRequest{
	{RequestType: vendorOut, Request: 0x00, Value: 0x0001}, // purge RX
	{RequestType: vendorOut, Request: 0x00, Value: 0x0002}, // purge TX
}

var flowSequence = []usbtransport.ControlRequest{
	{RequestType: vendorOut, Request: 0x02, Value: 0x0200}, // enable RTS/CTS
	{RequestType: vendorOut, Request: 0x01, Value: 0x0202}, // assert RTS
}

const purgeDwell = 50 * time.Millisecond

// Init runs the full conditioning sequence against iface. Any failed
// control transfer aborts with a wrapped error; the caller
// (communicator.Open) surfaces it as aptcol.ErrTransportControl.
func Init(iface usbtransport.Interface) error {
	for _, req := range sequence {
		if err := iface.ControlOut(req, nil); err != nil {
			return fmt.Errorf("serialinit: request %#02x: %w", req.Request, err)
		}
	}
	time.Sleep(purgeDwell) // pre-purge dwell, load-bearing
	for _, req := range purgeSequence {
		if err := iface.ControlOut(req, nil); err != nil {
			return fmt.Errorf("serialinit: purge %#04x: %w", req.Value, err)
		}
	}
	time.Sleep(purgeDwell) // post-purge dwell, load-bearing
	for _, req := range flowSequence {
		if err := iface.ControlOut(req, nil); err != nil {
			return fmt.Errorf("serialinit: flow control %#04x: %w", req.Value, err)
		}
	}
	return nil
}
