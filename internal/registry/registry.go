// Package registry maps (state, direction, opcode) to message kinds and back.
// Tables are assembled once and only read afterwards.
package registry

import (
	"encoding"
	"fmt"

	"github.com/blukai/blockparty/internal/debug"
	"github.com/blukai/blockparty/internal/processor"
	"github.com/blukai/blockparty/internal/protocol"
)

// NoOpcode marks kinds that are valid in a state but never cross the wire on
// their own: events derived by processors and messages injected by handlers.
const NoOpcode int32 = -1

type Decoder func(data []byte) (protocol.Message, error)

type Registration struct {
	State      protocol.State
	Direction  protocol.Direction
	Kind       protocol.Kind
	Opcode     int32
	Decode     Decoder
	Processors []processor.Processor
}

type opcodeKey struct {
	state  protocol.State
	dir    protocol.Direction
	opcode int32
}

type kindKey struct {
	state protocol.State
	dir   protocol.Direction
	kind  protocol.Kind
}

type Table struct {
	byOpcode map[opcodeKey]*Registration
	byKind   map[kindKey]*Registration
	// opcodes that are registered in at least one state, per direction
	known map[protocol.Direction]map[int32]struct{}
}

func NewTable() *Table {
	return &Table{
		byOpcode: make(map[opcodeKey]*Registration),
		byKind:   make(map[kindKey]*Registration),
		known: map[protocol.Direction]map[int32]struct{}{
			protocol.Serverbound: {},
			protocol.Clientbound: {},
		},
	}
}

// Add registers r. Registering the same opcode or kind twice in one state and
// direction is a programming error.
func (t *Table) Add(r Registration) {
	kk := kindKey{r.State, r.Direction, r.Kind}
	_, dup := t.byKind[kk]
	debug.Assertf(!dup, "%s %s %s registered twice", r.State, r.Direction, r.Kind)

	reg := &r
	t.byKind[kk] = reg
	if r.Opcode == NoOpcode {
		return
	}

	ok := opcodeKey{r.State, r.Direction, r.Opcode}
	_, dup = t.byOpcode[ok]
	debug.Assertf(!dup, "%s %s opcode 0x%02x registered twice", r.State, r.Direction, r.Opcode)
	t.byOpcode[ok] = reg
	t.known[r.Direction][r.Opcode] = struct{}{}
}

func (t *Table) ByOpcode(state protocol.State, dir protocol.Direction, opcode int32) (*Registration, bool) {
	r, ok := t.byOpcode[opcodeKey{state, dir, opcode}]
	return r, ok
}

func (t *Table) ByKind(state protocol.State, dir protocol.Direction, kind protocol.Kind) (*Registration, bool) {
	r, ok := t.byKind[kindKey{state, dir, kind}]
	return r, ok
}

// Permits reports whether kind may flow in dir while state is active.
func (t *Table) Permits(state protocol.State, dir protocol.Direction, kind protocol.Kind) bool {
	_, ok := t.byKind[kindKey{state, dir, kind}]
	return ok
}

// KnownOpcode reports whether opcode means something in any state.
func (t *Table) KnownOpcode(dir protocol.Direction, opcode int32) bool {
	_, ok := t.known[dir][opcode]
	return ok
}

// Registrations lists every registration, for tests and diagnostics.
func (t *Table) Registrations() []*Registration {
	out := make([]*Registration, 0, len(t.byKind))
	for _, r := range t.byKind {
		out = append(out, r)
	}
	return out
}

// Into builds a Decoder from a constructor of a binary message.
func Into[T interface {
	*E
	protocol.Message
	encoding.BinaryUnmarshaler
}, E any]() Decoder {
	return func(data []byte) (protocol.Message, error) {
		m := T(new(E))
		if err := m.UnmarshalBinary(data); err != nil {
			return nil, fmt.Errorf("could not decode %s: %w", m.Kind(), err)
		}
		return m, nil
	}
}
