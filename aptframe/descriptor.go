package aptframe

import "fmt"

// Descriptor pairs a command ID with the total length, in bytes, of every
// frame carrying that ID -- HeaderLen for a header-only response, or
// HeaderLen+N for a response with an N-byte payload.
type Descriptor struct {
	ID     ID
	Length int
}

// Table is an immutable id -> length lookup, fixed at construction. There
// is no code-generation step in this repository; the table is built
// directly from a Go literal.
type Table struct {
	lengths map[ID]int
}

// NewTable builds a Table from a descriptor list. A duplicate ID is a
// programming error and panics immediately.
//
// A command ID that can legitimately carry more than one response length
// (ambiguous, operator-dependent framing) must be omitted from descs
// entirely rather than guessed at. NewTable does not special-case this --
// it is the caller's responsibility to leave ambiguous IDs out of the
// literal.
func NewTable(descs []Descriptor) *Table {
	lengths := make(map[ID]int, len(descs))
	for _, d := range descs {
		if _, dup := lengths[d.ID]; dup {
			panic(fmt.Sprintf("aptframe: duplicate descriptor for id %v", d.ID))
		}
		lengths[d.ID] = d.Length
	}
	return &Table{lengths: lengths}
}

// Length returns the registered frame length for id, and whether one was
// found. A false ok means either an unregistered ID or one of the
// intentionally-omitted multi-length IDs; callers at the transport boundary
// must treat both the same way (see communicator package).
func (t *Table) Length(id ID) (int, bool) {
	n, ok := t.lengths[id]
	return n, ok
}

// IDs returns the full set of command IDs registered in the table, useful
// for constructing a Dispatcher with the same key set.
func (t *Table) IDs() []ID {
	ids := make([]ID, 0, len(t.lengths))
	for id := range t.lengths {
		ids = append(ids, id)
	}
	return ids
}
