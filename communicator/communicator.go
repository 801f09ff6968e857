/*Package communicator owns a claimed USB interface while a device is open:
it runs the FTDI conditioning sequence, then spawns the inbound demultiplexer
goroutine that turns a raw bulk IN stream into dispatched APT frames, and
exposes a mutex-guarded outbound write path.
*/
package communicator

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/time/rate"

	"github.com/bdube/thorapt/aptcol"
	"github.com/bdube/thorapt/aptframe"
	"github.com/bdube/thorapt/dispatch"
	"github.com/bdube/thorapt/registry"
	"github.com/bdube/thorapt/serialinit"
	"github.com/bdube/thorapt/usbtransport"
)

// InEndpointAddr and OutEndpointAddr are the bulk endpoint addresses every
// FTDI-bridged Thorlabs controller exposes on its single interface.
const (
	InEndpointAddr  = 0x81
	OutEndpointAddr = 0x02

	// inFlightTransfers sizes the inbound read buffer as a multiple of
	// the IN endpoint's max packet size. The inbound loop issues one read
	// at a time; no further reads are kept outstanding.
	inFlightTransfers = 3
)

// Communicator owns the claimed interface's IN and OUT streams for as long
// as the device is open.
type Communicator struct {
	iface usbtransport.Interface

	outMu sync.Mutex
	out   usbtransport.OutStream

	dispatcher *dispatch.Dispatcher

	done chan struct{}
	wg   sync.WaitGroup
}

// Open runs the serial-port conditioning sequence against iface, opens its
// bulk endpoints, and starts the inbound goroutine. limiter throttles the
// inbound read loop to avoid busy-spinning a transport with no blocking
// read primitive; pass nil to read as fast as the transport allows.
func Open(iface usbtransport.Interface, d *dispatch.Dispatcher, limiter *rate.Limiter) (*Communicator, error) {
	if err := serialinit.Init(iface); err != nil {
		return nil, fmt.Errorf("communicator: %w: %v", aptcol.ErrTransportControl, err)
	}
	in, err := iface.InEndpoint(InEndpointAddr)
	if err != nil {
		return nil, fmt.Errorf("communicator: %w: %v", aptcol.ErrTransportControl, err)
	}
	out, err := iface.OutEndpoint(OutEndpointAddr)
	if err != nil {
		return nil, fmt.Errorf("communicator: %w: %v", aptcol.ErrTransportControl, err)
	}

	c := &Communicator{
		iface:      iface,
		out:        out,
		dispatcher: d,
		done:       make(chan struct{}),
	}
	c.wg.Add(1)
	go c.inboundLoop(in, limiter)
	return c, nil
}

// Send writes frame to the OUT endpoint. Enqueue is fire-and-forget:
// success does not mean the device received the frame, only that the
// local submission queue accepted it. Response correlation via the
// Dispatcher is the only confirmation mechanism.
func (c *Communicator) Send(frame []byte) error {
	c.outMu.Lock()
	defer c.outMu.Unlock()
	if _, err := c.out.Write(frame); err != nil {
		registry.GlobalAbort(fmt.Sprintf("%s: %v", aptcol.FatalTransportTransfer, err))
		return err
	}
	return nil
}

// Dispatcher returns the Communicator's Dispatcher handle, so a USB
// Primitive can retain it across a subsequent Close.
func (c *Communicator) Dispatcher() *dispatch.Dispatcher {
	return c.dispatcher
}

// Close cancels the inbound goroutine, waits for it to acknowledge
// cancellation, then releases the interface. This blocks until the
// goroutine has actually returned, so no read against the interface can
// still be outstanding once Close returns.
func (c *Communicator) Close() {
	close(c.done)
	c.wg.Wait()
	c.iface.Release()
}

func (c *Communicator) inboundLoop(in usbtransport.InStream, limiter *rate.Limiter) {
	defer c.wg.Done()

	bufSize := in.MaxPacketSize() * inFlightTransfers
	if bufSize <= 0 {
		bufSize = 64
	}
	buf := make([]byte, bufSize)
	var ring []byte

	for {
		select {
		case <-c.done:
			return
		default:
		}

		if limiter != nil {
			_ = limiter.Wait(context.Background())
		}

		n, err := in.Read(buf)
		if err != nil {
			select {
			case <-c.done:
				return
			default:
			}
			registry.GlobalAbort(fmt.Sprintf("%s: %v", aptcol.FatalTransportTransfer, err))
			return
		}
		if n < 3 {
			// Pure framing artifact of the FTDI bridge; nothing to reassemble.
			continue
		}
		// First 2 bytes of every inbound transfer are FTDI status
		// bytes, not APT payload.
		ring = append(ring, buf[2:n]...)

		for len(ring) >= aptframe.HeaderLen {
			id := aptframe.HeaderID(ring)
			length, ok := c.dispatcher.Length(id)
			if !ok {
				registry.GlobalAbort(fmt.Sprintf("%s: id %v: %s", aptcol.FatalUnknownFrameID, id, aptcol.BugSuffix))
				return
			}
			if len(ring) < length {
				break
			}
			frame := make([]byte, length)
			copy(frame, ring[:length])
			ring = ring[length:]
			c.dispatcher.Dispatch(frame)
		}
	}
}
