/*Package registry maintains the process-wide table of live devices used to
fan an emergency stop out to every connected controller when any one of
them hits an unrecoverable transport fault.

The table is type-erased at the closure boundary: it stores a serial
number against a plain func(), not a heterogeneous collection of typed
device handles. Each façade captures its own handle and stop sequence in
the closure it registers, so the registry itself never needs to know what
kind of device it is aborting.
*/
package registry

import (
	"log"
	"os"
	"sync"
)

var (
	mu       sync.Mutex
	handlers = make(map[string]func())

	// exit is indirected so tests can observe a GlobalAbort without
	// tearing down the test binary.
	exit = os.Exit
)

// Add registers (or replaces) the abort callback for serial. Registering a
// second callback for an already-present serial is a normal reconnect path,
// not an error.
func Add(serial string, abort func()) {
	mu.Lock()
	defer mu.Unlock()
	handlers[serial] = abort
}

// AbortDevice runs the callback registered for serial, if any, without
// removing it from the table.
func AbortDevice(serial string) {
	mu.Lock()
	cb, ok := handlers[serial]
	mu.Unlock()
	if ok {
		cb()
	}
}

// DropDevice runs the callback registered for serial, if any, and removes
// the entry. Devices call this from their Release path.
func DropDevice(serial string) {
	mu.Lock()
	cb, ok := handlers[serial]
	delete(handlers, serial)
	mu.Unlock()
	if ok {
		cb()
	}
}

// SetExitForTesting replaces the process-exit function used by
// GlobalAbort and returns a closure that restores the previous one. Other
// packages' tests use this to exercise fatal-error paths without killing
// the test binary.
func SetExitForTesting(f func(int)) (restore func()) {
	mu.Lock()
	old := exit
	exit = f
	mu.Unlock()
	return func() {
		mu.Lock()
		exit = old
		mu.Unlock()
	}
}

// GlobalAbort is invoked for any fault classified as fatal: transport
// desync, a broadcast that could not reach its channel, or a malformed
// short frame. It drains the registry, invokes every callback so every
// connected stage is driven to a safe stop, logs the reason, and
// terminates the process. Continued motion with lost framing is a safety
// hazard -- stages can crash into hard stops -- so this never returns.
func GlobalAbort(reason string) {
	mu.Lock()
	cbs := make([]func(), 0, len(handlers))
	for _, cb := range handlers {
		cbs = append(cbs, cb)
	}
	handlers = make(map[string]func())
	mu.Unlock()

	for _, cb := range cbs {
		cb()
	}
	log.Printf("thorapt: global abort: %s", reason)
	exit(1)
}
