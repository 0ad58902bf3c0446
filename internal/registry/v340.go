package registry

import (
	"github.com/blukai/blockparty/internal/processor"
	"github.com/blukai/blockparty/internal/protocol"
)

// Options tune the processors that have limits.
type Options struct {
	// PartSize is the largest outgoing FML|MP part.
	PartSize int
	// MaxMultiPart caps an incoming reassembled payload.
	MaxMultiPart int
}

const (
	sb = protocol.Serverbound
	cb = protocol.Clientbound
)

// V340 builds the tables for protocol 340.
func V340(opts Options) *Table {
	t := NewTable()

	reassemble := processor.Reassemble{MaxLength: opts.MaxMultiPart}
	split := processor.Split{PartSize: opts.PartSize}
	decodePlugin := Decoder(protocol.DecodePluginMessage)

	// handshake
	t.Add(Registration{State: protocol.StateHandshake, Direction: sb, Kind: protocol.KindHandshake, Opcode: 0x00,
		Decode: Into[*protocol.Handshake]()})

	// status
	t.Add(Registration{State: protocol.StateStatus, Direction: sb, Kind: protocol.KindStatusRequest, Opcode: 0x00,
		Decode: Into[*protocol.StatusRequest]()})
	t.Add(Registration{State: protocol.StateStatus, Direction: sb, Kind: protocol.KindStatusPing, Opcode: 0x01,
		Decode: Into[*protocol.StatusPing]()})
	t.Add(Registration{State: protocol.StateStatus, Direction: cb, Kind: protocol.KindStatusResponse, Opcode: 0x00,
		Decode: Into[*protocol.StatusResponse]()})
	t.Add(Registration{State: protocol.StateStatus, Direction: cb, Kind: protocol.KindStatusPong, Opcode: 0x01,
		Decode: Into[*protocol.StatusPong]()})

	// login
	t.Add(Registration{State: protocol.StateLogin, Direction: sb, Kind: protocol.KindLoginStart, Opcode: 0x00,
		Decode: Into[*protocol.LoginStart]()})
	t.Add(Registration{State: protocol.StateLogin, Direction: sb, Kind: protocol.KindEncryptionResponse, Opcode: 0x01,
		Decode: Into[*protocol.EncryptionResponse]()})
	t.Add(Registration{State: protocol.StateLogin, Direction: sb, Kind: protocol.KindSessionVerify, Opcode: NoOpcode})
	t.Add(Registration{State: protocol.StateLogin, Direction: sb, Kind: protocol.KindAuthResult, Opcode: NoOpcode})
	t.Add(Registration{State: protocol.StateLogin, Direction: cb, Kind: protocol.KindLoginDisconnect, Opcode: 0x00,
		Decode: Into[*protocol.LoginDisconnect]()})
	t.Add(Registration{State: protocol.StateLogin, Direction: cb, Kind: protocol.KindEncryptionRequest, Opcode: 0x01,
		Decode: Into[*protocol.EncryptionRequest]()})
	t.Add(Registration{State: protocol.StateLogin, Direction: cb, Kind: protocol.KindLoginSuccess, Opcode: 0x02,
		Decode: Into[*protocol.LoginSuccess]()})
	t.Add(Registration{State: protocol.StateLogin, Direction: cb, Kind: protocol.KindSetCompression, Opcode: 0x03,
		Decode: Into[*protocol.SetCompression]()})

	// forge handshake and play share the plugin channel plumbing
	for _, state := range []protocol.State{protocol.StateForgeHandshake, protocol.StatePlay} {
		inbound := []processor.Processor{reassemble}
		if state == protocol.StateForgeHandshake {
			inbound = append(inbound, processor.DecodeForge)
		}
		t.Add(Registration{State: state, Direction: sb, Kind: protocol.KindPluginMessage, Opcode: 0x09,
			Decode: decodePlugin, Processors: inbound})
		t.Add(Registration{State: state, Direction: sb, Kind: protocol.KindKeepAlive, Opcode: 0x0B,
			Decode: Into[*protocol.KeepAlive]()})
		t.Add(Registration{State: state, Direction: sb, Kind: protocol.KindChannelRegister, Opcode: NoOpcode,
			Processors: []processor.Processor{processor.TrackChannels}})
		t.Add(Registration{State: state, Direction: sb, Kind: protocol.KindChannelUnregister, Opcode: NoOpcode,
			Processors: []processor.Processor{processor.TrackChannels}})

		t.Add(Registration{State: state, Direction: cb, Kind: protocol.KindPluginMessage, Opcode: 0x18,
			Decode: Into[*protocol.PluginMessage](), Processors: []processor.Processor{split}})
		t.Add(Registration{State: state, Direction: cb, Kind: protocol.KindDisconnect, Opcode: 0x1A,
			Decode: Into[*protocol.Disconnect]()})
		t.Add(Registration{State: state, Direction: cb, Kind: protocol.KindKeepAlive, Opcode: 0x1F,
			Decode: Into[*protocol.KeepAlive]()})
	}

	// forge handshake
	for _, kind := range []protocol.Kind{protocol.KindFMLClientHello, protocol.KindFMLModList, protocol.KindFMLAck} {
		t.Add(Registration{State: protocol.StateForgeHandshake, Direction: sb, Kind: kind, Opcode: NoOpcode})
	}
	for _, kind := range []protocol.Kind{protocol.KindFMLServerHello, protocol.KindFMLModList, protocol.KindFMLAck} {
		t.Add(Registration{State: protocol.StateForgeHandshake, Direction: cb, Kind: kind, Opcode: NoOpcode,
			Processors: []processor.Processor{processor.EncodeForge}})
	}

	// play
	t.Add(Registration{State: protocol.StatePlay, Direction: sb, Kind: protocol.KindTeleportConfirm, Opcode: 0x00,
		Decode: Into[*protocol.TeleportConfirm]()})
	t.Add(Registration{State: protocol.StatePlay, Direction: sb, Kind: protocol.KindChatIn, Opcode: 0x02,
		Decode: Into[*protocol.ChatIn]()})
	t.Add(Registration{State: protocol.StatePlay, Direction: sb, Kind: protocol.KindPlayerAbilities, Opcode: 0x13,
		Decode:     Into[*protocol.PlayerAbilities](),
		Processors: []processor.Processor{processor.ExpandAbilities, processor.SuppressRepeats}})
	t.Add(Registration{State: protocol.StatePlay, Direction: sb, Kind: protocol.KindEntityAction, Opcode: 0x15,
		Decode:     Into[*protocol.EntityAction](),
		Processors: []processor.Processor{processor.ExpandAction, processor.SuppressRepeats}})
	for _, kind := range []protocol.Kind{
		protocol.KindSneak,
		protocol.KindSprint,
		protocol.KindFlying,
		protocol.KindLeaveBed,
		protocol.KindVehicleJump,
		protocol.KindOpenVehicleInventory,
		protocol.KindElytraStart,
	} {
		t.Add(Registration{State: protocol.StatePlay, Direction: sb, Kind: kind, Opcode: NoOpcode})
	}

	t.Add(Registration{State: protocol.StatePlay, Direction: cb, Kind: protocol.KindChatOut, Opcode: 0x0F,
		Decode: Into[*protocol.ChatOut]()})
	t.Add(Registration{State: protocol.StatePlay, Direction: cb, Kind: protocol.KindJoinGame, Opcode: 0x23,
		Decode: Into[*protocol.JoinGame]()})
	t.Add(Registration{State: protocol.StatePlay, Direction: cb, Kind: protocol.KindTimeUpdate, Opcode: 0x47,
		Decode: Into[*protocol.TimeUpdate]()})

	return t
}
