package protocol

import (
	"fmt"

	"github.com/blukai/blockparty/internal/wire"
)

// Forge mod negotiation rides on plugin messages. Every FML|HS payload starts
// with a discriminator byte.
const (
	ChannelFMLHandshake = "FML|HS"
	ChannelFMLMultiPart = "FML|MP"

	FMLProtocolVersion = 2

	// marker forge clients append to the handshake address
	FMLMarker = "\x00FML\x00"
)

const (
	fmlServerHello  = 0
	fmlClientHello  = 1
	fmlModList      = 2
	fmlHandshakeAck = 255
)

// phases of FMLAck
const (
	// sent by the server
	FMLServerWaitingCAck = 2
	FMLServerComplete    = 3

	// sent by the client
	FMLClientWaitingServerData = 2
	FMLClientPendingComplete   = 4
	FMLClientComplete          = 5
)

type FMLServerHello struct {
	ProtocolVersion uint8
	Dimension       int32
}

func (*FMLServerHello) Kind() Kind { return KindFMLServerHello }

type FMLClientHello struct {
	ProtocolVersion uint8
}

func (*FMLClientHello) Kind() Kind { return KindFMLClientHello }

type Mod struct {
	ID      string
	Version string
}

type FMLModList struct {
	Mods []Mod
}

func (*FMLModList) Kind() Kind { return KindFMLModList }

type FMLAck struct {
	Phase uint8
}

func (*FMLAck) Kind() Kind { return KindFMLAck }

// EncodeFML wraps a forge handshake message into its FML|HS plugin message.
func EncodeFML(m Message) (*PluginMessage, error) {
	w := wire.NewWriter(16)
	switch m := m.(type) {
	case *FMLServerHello:
		w.Uint8(fmlServerHello)
		w.Uint8(m.ProtocolVersion)
		w.Int32(m.Dimension)
	case *FMLClientHello:
		w.Uint8(fmlClientHello)
		w.Uint8(m.ProtocolVersion)
	case *FMLModList:
		w.Uint8(fmlModList)
		w.VarInt(int32(len(m.Mods)))
		for _, mod := range m.Mods {
			w.String(mod.ID)
			w.String(mod.Version)
		}
	case *FMLAck:
		w.Uint8(fmlHandshakeAck)
		w.Uint8(m.Phase)
	default:
		return nil, fmt.Errorf("%s is not a forge handshake message", m.Kind())
	}
	return &PluginMessage{Channel: ChannelFMLHandshake, Data: w.Bytes()}, nil
}

// DecodeFML parses an FML|HS payload. fromServer selects which hello layout
// discriminator 0 and 1 are allowed to carry.
func DecodeFML(pm *PluginMessage, fromServer bool) (Message, error) {
	if pm.Channel != ChannelFMLHandshake {
		return nil, fmt.Errorf("channel %q is not %q", pm.Channel, ChannelFMLHandshake)
	}

	r := wire.NewReader(pm.Data)
	var m Message
	switch d := r.Uint8(); {
	case d == fmlServerHello && fromServer:
		hello := &FMLServerHello{ProtocolVersion: r.Uint8()}
		if r.Remaining() > 0 {
			hello.Dimension = r.Int32()
		}
		m = hello
	case d == fmlClientHello && !fromServer:
		m = &FMLClientHello{ProtocolVersion: r.Uint8()}
	case d == fmlModList:
		n := r.VarInt()
		if n < 0 || int(n) > r.Remaining() {
			return nil, fmt.Errorf("mod list claims %d entries", n)
		}
		list := &FMLModList{}
		for i := int32(0); i < n && r.Err() == nil; i++ {
			list.Mods = append(list.Mods, Mod{ID: r.String(), Version: r.String()})
		}
		m = list
	case d == fmlHandshakeAck:
		m = &FMLAck{Phase: r.Uint8()}
	default:
		if r.Err() != nil {
			return nil, r.Err()
		}
		return nil, fmt.Errorf("unexpected forge discriminator %d", d)
	}
	if err := r.Done(); err != nil {
		return nil, err
	}
	return m, nil
}
