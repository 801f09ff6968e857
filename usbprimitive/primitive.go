/*Package usbprimitive implements the per-device USB Primitive: the
{Closed, Open} state machine that wraps either an idle Dispatcher or an
active Communicator, and is what a device façade actually holds.
*/
package usbprimitive

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/time/rate"

	"github.com/bdube/thorapt/aptcol"
	"github.com/bdube/thorapt/aptframe"
	"github.com/bdube/thorapt/broadcast"
	"github.com/bdube/thorapt/communicator"
	"github.com/bdube/thorapt/dispatch"
	"github.com/bdube/thorapt/registry"
	"github.com/bdube/thorapt/usbtransport"
)

const defaultInterfaceNum = 0

// Status is the USB Primitive's two-state lifecycle.
type Status int

const (
	// StatusClosed means the interface is not claimed.
	StatusClosed Status = iota
	// StatusOpen means the interface is claimed and the inbound goroutine is running.
	StatusOpen
)

func (s Status) String() string {
	if s == StatusOpen {
		return "Open"
	}
	return "Closed"
}

// Primitive is the per-device façade contract's core handle. Exactly one
// of {dispatcher-only, dispatcher+communicator} is populated at any
// instant; transitions go through a single write lock on the status cell.
type Primitive struct {
	info      usbtransport.DeviceInfo
	transport usbtransport.Transport
	limiter   *rate.Limiter

	mu         sync.RWMutex
	status     Status
	dispatcher *dispatch.Dispatcher
	comm       *communicator.Communicator
	handle     usbtransport.Handle
}

// New constructs a Primitive in the Closed state with a freshly built,
// empty Dispatcher sized from table.
func New(transport usbtransport.Transport, info usbtransport.DeviceInfo, table *aptframe.Table, limiter *rate.Limiter) *Primitive {
	return &Primitive{
		transport:  transport,
		info:       info,
		limiter:    limiter,
		dispatcher: dispatch.New(table),
		status:     StatusClosed,
	}
}

// Info returns the device identity this Primitive was constructed with.
func (p *Primitive) Info() usbtransport.DeviceInfo {
	return p.info
}

// SerialNumber is a convenience accessor used for registry keys.
func (p *Primitive) SerialNumber() string {
	return p.info.Serial
}

// IsOpen reports the current status.
func (p *Primitive) IsOpen() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.status == StatusOpen
}

// Open claims the interface, conditions it, and starts the Communicator.
// Idempotent: calling Open on an already-open Primitive is a no-op.
func (p *Primitive) Open() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.status == StatusOpen {
		return nil
	}

	handle, err := p.transport.Open(p.info)
	if err != nil {
		return fmt.Errorf("usbprimitive: %w: %v", aptcol.ErrTransportControl, err)
	}
	if err := handle.DetachKernelDriver(defaultInterfaceNum); err != nil {
		handle.Close()
		return fmt.Errorf("usbprimitive: %w: %v", aptcol.ErrTransportControl, err)
	}
	iface, err := handle.ClaimInterface(defaultInterfaceNum)
	if err != nil {
		handle.Close()
		return fmt.Errorf("usbprimitive: %w: %v", aptcol.ErrTransportControl, err)
	}
	comm, err := communicator.Open(iface, p.dispatcher, p.limiter)
	if err != nil {
		iface.Release()
		handle.Close()
		return err
	}

	p.handle = handle
	p.comm = comm
	p.status = StatusOpen
	return nil
}

// Close cancels the inbound goroutine, waits for it to acknowledge, and
// releases the interface, retaining the Dispatcher so waiters registered
// while Closed remain coherent across a future Open. Idempotent; does not
// bring the device to physical rest.
func (p *Primitive) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.status == StatusClosed {
		return nil
	}
	p.comm.Close()
	err := p.handle.Close()
	p.comm = nil
	p.handle = nil
	p.status = StatusClosed
	return err
}

// Send delegates to the active Communicator, or reports ErrDeviceClosed.
func (p *Primitive) Send(frame []byte) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.status != StatusOpen {
		return aptcol.ErrDeviceClosed
	}
	return p.comm.Send(frame)
}

// Receiver delegates to the current Dispatcher, whether held directly
// (Closed) or via the Communicator (Open) -- both reference the same
// underlying Dispatcher.
func (p *Primitive) Receiver(id aptframe.ID) (dispatch.Provenance, *broadcast.Receiver) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.dispatcher.Receiver(id)
}

// AnyReceiver delegates to the current Dispatcher.
func (p *Primitive) AnyReceiver(id aptframe.ID) *broadcast.Receiver {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.dispatcher.AnyReceiver(id)
}

// NewWaitReceiver delegates to the current Dispatcher.
func (p *Primitive) NewWaitReceiver(ctx context.Context, id aptframe.ID) (*broadcast.Receiver, error) {
	p.mu.RLock()
	d := p.dispatcher
	p.mu.RUnlock()
	return d.NewWaitReceiver(ctx, id)
}

// Release aborts the device (best-effort profiled stop, via whatever
// callback was registered for this serial number) and removes it from the
// global registry, then closes the interface if still open. Façades call
// this from their own Close/Drop path -- Go has no destructors.
func (p *Primitive) Release() {
	registry.DropDevice(p.info.Serial)
	_ = p.Close()
}

// Equal compares device identity: vendor id, product id and serial number.
func (p *Primitive) Equal(other *Primitive) bool {
	return p.info == other.info
}
