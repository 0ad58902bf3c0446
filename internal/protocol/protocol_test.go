package protocol_test

import (
	"encoding"
	"testing"

	"github.com/blukai/blockparty/internal/protocol"
	"github.com/google/uuid"
	"github.com/matryer/is"
)

type binaryMessage interface {
	protocol.Message
	encoding.BinaryMarshaler
	encoding.BinaryUnmarshaler
}

func TestMessageEncoding(t *testing.T) {
	is := is.New(t)

	testCases := []struct {
		original binaryMessage
		decoded  binaryMessage
	}{
		{&protocol.Handshake{ProtocolVersion: 340, Address: "localhost", Port: 25565, NextState: 2}, &protocol.Handshake{}},
		{&protocol.StatusResponse{JSON: `{"description":"hi"}`}, &protocol.StatusResponse{}},
		{&protocol.StatusPing{Payload: -42}, &protocol.StatusPing{}},
		{&protocol.LoginStart{Username: "Alice"}, &protocol.LoginStart{}},
		{&protocol.EncryptionRequest{ServerID: "abc", PublicKey: []byte{1, 2}, VerifyToken: []byte{3}}, &protocol.EncryptionRequest{}},
		{&protocol.LoginSuccess{ID: uuid.MustParse("069a79f4-44e9-4726-a5be-fca90e38aaf5"), Username: "Notch"}, &protocol.LoginSuccess{}},
		{&protocol.SetCompression{Threshold: 256}, &protocol.SetCompression{}},
		{&protocol.PluginMessage{Channel: "MC|Brand", Data: []byte("vanilla")}, &protocol.PluginMessage{}},
		{&protocol.PlayerAbilities{Flags: protocol.AbilityFlying, FlyingSpeed: 0.05, WalkingSpeed: 0.1}, &protocol.PlayerAbilities{}},
		{&protocol.EntityAction{EntityID: 7, Action: protocol.ActionStartJumpWithHorse, JumpBoost: 90}, &protocol.EntityAction{}},
		{&protocol.ChatOut{JSON: protocol.Text("hello"), Position: protocol.ChatPositionSystem}, &protocol.ChatOut{}},
		{&protocol.JoinGame{EntityID: 1, Gamemode: 2, Dimension: -1, MaxPlayers: 20, LevelType: "flat"}, &protocol.JoinGame{}},
		{&protocol.TimeUpdate{WorldAge: 100, TimeOfDay: -6000}, &protocol.TimeUpdate{}},
	}

	for _, tc := range testCases {
		encoded, err := tc.original.MarshalBinary()
		is.NoErr(err)

		err = tc.decoded.UnmarshalBinary(encoded)
		is.NoErr(err)
		is.Equal(tc.original, tc.decoded)
	}
}

func TestTrailingBytesAreRejected(t *testing.T) {
	is := is.New(t)

	encoded, err := (&protocol.KeepAlive{ID: 1}).MarshalBinary()
	is.NoErr(err)

	err = (&protocol.KeepAlive{}).UnmarshalBinary(append(encoded, 0))
	is.True(err != nil)
}

func TestDecodePluginMessageRegister(t *testing.T) {
	is := is.New(t)

	encoded, err := protocol.RegisterChannels("FML|HS", protocol.ChannelFMLMultiPart).MarshalBinary()
	is.NoErr(err)

	m, err := protocol.DecodePluginMessage(encoded)
	is.NoErr(err)

	bulk, ok := m.(*protocol.Bulk)
	is.True(ok)
	is.Equal(bulk.Messages, []protocol.Message{
		&protocol.ChannelRegistration{Channel: "FML|HS"},
		&protocol.ChannelRegistration{Channel: protocol.ChannelFMLMultiPart},
	})
}

func TestDecodePluginMessagePlain(t *testing.T) {
	is := is.New(t)

	original := &protocol.PluginMessage{Channel: "MC|Brand", Data: []byte("blockparty")}
	encoded, err := original.MarshalBinary()
	is.NoErr(err)

	m, err := protocol.DecodePluginMessage(encoded)
	is.NoErr(err)
	is.Equal(m, original)
}

func TestFMLEncoding(t *testing.T) {
	is := is.New(t)

	testCases := []struct {
		m          protocol.Message
		fromServer bool
	}{
		{&protocol.FMLServerHello{ProtocolVersion: 2, Dimension: 0}, true},
		{&protocol.FMLClientHello{ProtocolVersion: 2}, false},
		{&protocol.FMLModList{Mods: []protocol.Mod{{ID: "forge", Version: "14.23.5"}}}, false},
		{&protocol.FMLAck{Phase: protocol.FMLClientComplete}, false},
	}

	for _, tc := range testCases {
		pm, err := protocol.EncodeFML(tc.m)
		is.NoErr(err)
		is.Equal(pm.Channel, protocol.ChannelFMLHandshake)

		decoded, err := protocol.DecodeFML(pm, tc.fromServer)
		is.NoErr(err)
		is.Equal(decoded, tc.m)
	}

	// a client may not send the server hello
	pm, err := protocol.EncodeFML(&protocol.FMLServerHello{ProtocolVersion: 2})
	is.NoErr(err)
	_, err = protocol.DecodeFML(pm, false)
	is.True(err != nil)
}

func TestText(t *testing.T) {
	is := is.New(t)

	component := protocol.Text(`say "hi"`)
	is.Equal(component, `{"text":"say \"hi\""}`)
	is.Equal(protocol.PlainText(component), `say "hi"`)
	is.Equal(protocol.PlainText("not json"), "not json")
}

func TestKindString(t *testing.T) {
	is := is.New(t)

	is.Equal(protocol.KindEntityAction.String(), "entity_action")
	is.Equal(protocol.StatePlay.String(), "play")
	is.Equal(protocol.Serverbound.Opposite(), protocol.Clientbound)
}
