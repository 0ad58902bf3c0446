package registry_test

import (
	"testing"

	"github.com/blukai/blockparty/internal/protocol"
	"github.com/blukai/blockparty/internal/registry"
	"github.com/matryer/is"
)

func TestV340Lookups(t *testing.T) {
	is := is.New(t)

	table := registry.V340(registry.Options{})

	r, ok := table.ByOpcode(protocol.StateLogin, protocol.Serverbound, 0x00)
	is.True(ok)
	is.Equal(r.Kind, protocol.KindLoginStart)

	r, ok = table.ByKind(protocol.StatePlay, protocol.Clientbound, protocol.KindTimeUpdate)
	is.True(ok)
	is.Equal(r.Opcode, int32(0x47))

	// entity action only exists in play
	_, ok = table.ByOpcode(protocol.StateLogin, protocol.Serverbound, 0x15)
	is.True(!ok)
	is.True(table.KnownOpcode(protocol.Serverbound, 0x15))
	is.True(!table.KnownOpcode(protocol.Serverbound, 0x7f))

	is.True(table.Permits(protocol.StatePlay, protocol.Serverbound, protocol.KindSneak))
	is.True(!table.Permits(protocol.StateLogin, protocol.Serverbound, protocol.KindSneak))
	is.True(table.Permits(protocol.StateLogin, protocol.Serverbound, protocol.KindAuthResult))
}

func TestEveryWireRegistrationDecodes(t *testing.T) {
	is := is.New(t)

	for _, r := range registry.V340(registry.Options{}).Registrations() {
		if r.Opcode == registry.NoOpcode {
			is.True(r.Decode == nil)
			continue
		}
		is.True(r.Decode != nil)
	}
}

func TestDuplicateRegistrationPanics(t *testing.T) {
	is := is.New(t)

	table := registry.NewTable()
	table.Add(registry.Registration{State: protocol.StatePlay, Direction: protocol.Clientbound, Kind: protocol.KindChatOut, Opcode: 0x0F})

	defer func() {
		is.True(recover() != nil)
	}()
	table.Add(registry.Registration{State: protocol.StatePlay, Direction: protocol.Clientbound, Kind: protocol.KindTimeUpdate, Opcode: 0x0F})
}

func TestIntoDecoder(t *testing.T) {
	is := is.New(t)

	encoded, err := (&protocol.ChatIn{Message: "hi"}).MarshalBinary()
	is.NoErr(err)

	m, err := registry.Into[*protocol.ChatIn]()(encoded)
	is.NoErr(err)
	is.Equal(m, &protocol.ChatIn{Message: "hi"})

	_, err = registry.Into[*protocol.ChatIn]()([]byte{0x05})
	is.True(err != nil)
}
