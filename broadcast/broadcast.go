/*Package broadcast implements the single-producer, multi-consumer
broadcast channel the Dispatcher needs to fan one command response out to
every caller awaiting it. Each channel carries at most one value: a second
Broadcast on the same Sender returns an error.

In this repository's usage the channel only ever carries a single value per
construction (the Dispatcher takes the sender from its slot before
broadcasting, guaranteeing at most one send), so the implementation is a
one-shot "future" rather than a ring buffer: a closed-channel broadcast
signals readiness to every receiver cloned before or after the value
landed, and each reads the same shared buffer without contention.

There is no third-party library well-suited to this one-shot fan-out
shape, so it is built directly on stdlib channels and a mutex.
*/
package broadcast

import (
	"context"
	"errors"
	"sync"
)

// ErrClosed is returned by Recv when the sender was closed without ever
// broadcasting a value.
var ErrClosed = errors.New("broadcast: channel closed without a value")

type core struct {
	mu    sync.Mutex
	ready chan struct{}
	value []byte
	err   error
	fired bool
}

// Sender produces at most one value for all of its receivers.
type Sender struct {
	c *core
}

// Receiver observes the single value (or closure) produced by a Sender.
type Receiver struct {
	c *core
}

// New creates a broadcast channel and returns its sender along with one
// receiver bound to it. Additional receivers are obtained with
// Sender.NewReceiver or Receiver.Clone.
func New() (*Sender, *Receiver) {
	c := &core{ready: make(chan struct{})}
	return &Sender{c: c}, &Receiver{c: c}
}

// NewReceiver returns an additional receiver bound to the same channel.
func (s *Sender) NewReceiver() *Receiver {
	return &Receiver{c: s.c}
}

// Broadcast delivers value to every current and future receiver of this
// channel. It is an error to call Broadcast more than once on the same
// Sender; doing so indicates a dispatcher bug (a sender should be taken
// out of circulation before it is ever broadcast to, see dispatch.Dispatcher).
func (s *Sender) Broadcast(value []byte) error {
	s.c.mu.Lock()
	defer s.c.mu.Unlock()
	if s.c.fired {
		return errors.New("broadcast: value already sent on this channel")
	}
	s.c.value = value
	s.c.fired = true
	close(s.c.ready)
	return nil
}

// Close marks the channel as closed without a value. Any receiver awaiting
// it wakes with ErrClosed. Safe to call after Broadcast; it is then a no-op.
func (s *Sender) Close() {
	s.c.mu.Lock()
	defer s.c.mu.Unlock()
	if s.c.fired {
		return
	}
	s.c.err = ErrClosed
	s.c.fired = true
	close(s.c.ready)
}

// Clone returns another receiver bound to the same underlying channel.
func (r *Receiver) Clone() *Receiver {
	return &Receiver{c: r.c}
}

// Recv blocks until the channel's single value is broadcast, the sender is
// closed without a value, or ctx is done.
func (r *Receiver) Recv(ctx context.Context) ([]byte, error) {
	select {
	case <-r.c.ready:
		if r.c.err != nil {
			return nil, r.c.err
		}
		return r.c.value, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Done returns a channel closed once the broadcast value (or closure) has
// landed, for use in select statements alongside other cases.
func (r *Receiver) Done() <-chan struct{} {
	return r.c.ready
}
