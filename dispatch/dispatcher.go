/*Package dispatch implements the per-device Dispatcher: a fixed map from
command ID to a waiter slot, used to correlate inbound APT responses with
the caller that is awaiting them.
*/
package dispatch

import (
	"context"
	"fmt"
	"sync"

	"github.com/bdube/thorapt/aptcol"
	"github.com/bdube/thorapt/aptframe"
	"github.com/bdube/thorapt/broadcast"
	"github.com/bdube/thorapt/registry"
)

// Provenance indicates whether a Receiver is bound to a newly issued
// request or one already in flight.
type Provenance int

const (
	// New means no request for this command ID was in flight; the caller
	// that receives this must transmit the request frame.
	New Provenance = iota
	// Existing means a request for this command ID is already in flight;
	// the caller must not transmit and should only await the result.
	Existing
)

type slot struct {
	mu     sync.Mutex
	sender *broadcast.Sender
}

// Dispatcher holds one waiter slot per command ID a device can emit. The
// key set is fixed at construction; only the slot interiors mutate, so
// contention on one ID never stalls another.
type Dispatcher struct {
	table *aptframe.Table
	slots map[aptframe.ID]*slot
}

// New constructs a Dispatcher from a descriptor table, with one empty slot
// per registered ID.
func New(table *aptframe.Table) *Dispatcher {
	ids := table.IDs()
	slots := make(map[aptframe.ID]*slot, len(ids))
	for _, id := range ids {
		slots[id] = &slot{}
	}
	return &Dispatcher{table: table, slots: slots}
}

func (d *Dispatcher) getSlot(id aptframe.ID) *slot {
	s, ok := d.slots[id]
	if !ok {
		registry.GlobalAbort(fmt.Sprintf("dispatcher does not contain command id %v: %s", id, aptcol.BugSuffix))
	}
	return s
}

// Receiver returns a receiver for id, tagged with its Provenance. The slot
// mutex is held only across the check-and-install decision, never across I/O.
func (d *Dispatcher) Receiver(id aptframe.ID) (Provenance, *broadcast.Receiver) {
	s := d.getSlot(id)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sender == nil {
		tx, rx := broadcast.New()
		s.sender = tx
		return New, rx
	}
	return Existing, s.sender.NewReceiver()
}

// AnyReceiver returns a receiver for id regardless of provenance.
func (d *Dispatcher) AnyReceiver(id aptframe.ID) *broadcast.Receiver {
	_, rx := d.Receiver(id)
	return rx
}

// NewWaitReceiver guarantees the returned receiver is bound to a future
// in-flight invocation, not an already-pending one: if a request for id is
// already in flight, it waits for that one to complete (ignoring its
// value) before retrying.
func (d *Dispatcher) NewWaitReceiver(ctx context.Context, id aptframe.ID) (*broadcast.Receiver, error) {
	for {
		prov, rx := d.Receiver(id)
		if prov == New {
			return rx, nil
		}
		if _, err := rx.Recv(ctx); err != nil && ctx.Err() != nil {
			return nil, ctx.Err()
		}
	}
}

// take removes and returns the sender installed in id's slot, leaving the
// slot empty. Returns nil if no caller is waiting.
func (d *Dispatcher) take(id aptframe.ID) *broadcast.Sender {
	s := d.getSlot(id)
	s.mu.Lock()
	defer s.mu.Unlock()
	tx := s.sender
	s.sender = nil
	return tx
}

// Dispatch is called by the Communicator's inbound goroutine with a
// complete frame. It takes the sender out of its slot before broadcasting,
// so that any caller observing the slot afterward sees it empty and must
// issue a fresh request. A frame for an ID with no waiter is silently
// dropped.
func (d *Dispatcher) Dispatch(frame []byte) {
	id := aptframe.HeaderID(frame)
	tx := d.take(id)
	if tx == nil {
		return
	}
	if err := tx.Broadcast(frame); err != nil {
		registry.GlobalAbort(fmt.Sprintf("%s: %v: %s", aptcol.FatalBroadcastFailed, err, aptcol.BugSuffix))
	}
}

// Length delegates to the underlying descriptor table.
func (d *Dispatcher) Length(id aptframe.ID) (int, bool) {
	return d.table.Length(id)
}
