package protocol

import (
	"encoding"
	"strings"

	"github.com/blukai/blockparty/internal/wire"
)

const (
	ChannelRegister   = "REGISTER"
	ChannelUnregister = "UNREGISTER"
)

// PluginMessage is a custom payload on a named channel. Data runs to the end
// of the frame, there is no length prefix.
type PluginMessage struct {
	Channel string
	Data    []byte
}

var (
	_ encoding.BinaryMarshaler   = (*PluginMessage)(nil)
	_ encoding.BinaryUnmarshaler = (*PluginMessage)(nil)
	_ Cacheable                  = (*PluginMessage)(nil)
)

func (*PluginMessage) Kind() Kind { return KindPluginMessage }

func (m *PluginMessage) MarshalBinary() ([]byte, error) {
	w := wire.NewWriter(2 + len(m.Channel) + len(m.Data))
	w.String(m.Channel)
	w.Raw(m.Data)
	return w.Bytes(), nil
}

func (m *PluginMessage) UnmarshalBinary(data []byte) error {
	r := wire.NewReader(data)
	m.Channel = r.String()
	m.Data = r.Rest()
	return r.Done()
}

func (m *PluginMessage) AppendCacheKey(dst []byte) []byte {
	dst = wire.AppendVarInt(dst, int32(len(m.Channel)))
	dst = append(dst, m.Channel...)
	return append(dst, m.Data...)
}

// DecodePluginMessage decodes a plugin message body. Channel (un)registration
// lists come back as a Bulk with one message per channel name.
func DecodePluginMessage(data []byte) (Message, error) {
	pm := &PluginMessage{}
	if err := pm.UnmarshalBinary(data); err != nil {
		return nil, err
	}

	var register bool
	switch pm.Channel {
	case ChannelRegister:
		register = true
	case ChannelUnregister:
		register = false
	default:
		return pm, nil
	}

	bulk := &Bulk{}
	for _, name := range strings.Split(string(pm.Data), "\x00") {
		if name == "" {
			continue
		}
		if register {
			bulk.Messages = append(bulk.Messages, &ChannelRegistration{Channel: name})
		} else {
			bulk.Messages = append(bulk.Messages, &ChannelUnregistration{Channel: name})
		}
	}
	return bulk, nil
}

// RegisterChannels builds the plugin message a peer sends to announce the
// channels it listens on.
func RegisterChannels(channels ...string) *PluginMessage {
	return &PluginMessage{
		Channel: ChannelRegister,
		Data:    []byte(strings.Join(channels, "\x00")),
	}
}

type ChannelRegistration struct {
	Channel string
}

func (*ChannelRegistration) Kind() Kind { return KindChannelRegister }

type ChannelUnregistration struct {
	Channel string
}

func (*ChannelUnregistration) Kind() Kind { return KindChannelUnregister }

type KeepAlive struct {
	ID int64
}

var (
	_ encoding.BinaryMarshaler   = (*KeepAlive)(nil)
	_ encoding.BinaryUnmarshaler = (*KeepAlive)(nil)
)

func (*KeepAlive) Kind() Kind { return KindKeepAlive }

func (m *KeepAlive) MarshalBinary() ([]byte, error) {
	return marshalInt64(m.ID), nil
}

func (m *KeepAlive) UnmarshalBinary(data []byte) error {
	return unmarshalInt64(data, &m.ID)
}

type Disconnect struct {
	Reason string
}

var (
	_ encoding.BinaryMarshaler   = (*Disconnect)(nil)
	_ encoding.BinaryUnmarshaler = (*Disconnect)(nil)
)

func (*Disconnect) Kind() Kind { return KindDisconnect }

func (m *Disconnect) MarshalBinary() ([]byte, error) {
	w := wire.NewWriter(2 + len(m.Reason))
	w.String(m.Reason)
	return w.Bytes(), nil
}

func (m *Disconnect) UnmarshalBinary(data []byte) error {
	r := wire.NewReader(data)
	m.Reason = r.String()
	return r.Done()
}

type TeleportConfirm struct {
	TeleportID int32
}

var (
	_ encoding.BinaryMarshaler   = (*TeleportConfirm)(nil)
	_ encoding.BinaryUnmarshaler = (*TeleportConfirm)(nil)
)

func (*TeleportConfirm) Kind() Kind { return KindTeleportConfirm }

func (m *TeleportConfirm) MarshalBinary() ([]byte, error) {
	return wire.AppendVarInt(nil, m.TeleportID), nil
}

func (m *TeleportConfirm) UnmarshalBinary(data []byte) error {
	r := wire.NewReader(data)
	m.TeleportID = r.VarInt()
	return r.Done()
}

type ChatIn struct {
	Message string
}

var (
	_ encoding.BinaryMarshaler   = (*ChatIn)(nil)
	_ encoding.BinaryUnmarshaler = (*ChatIn)(nil)
)

func (*ChatIn) Kind() Kind { return KindChatIn }

func (m *ChatIn) MarshalBinary() ([]byte, error) {
	w := wire.NewWriter(2 + len(m.Message))
	w.String(m.Message)
	return w.Bytes(), nil
}

func (m *ChatIn) UnmarshalBinary(data []byte) error {
	r := wire.NewReader(data)
	m.Message = r.String()
	return r.Done()
}

const (
	AbilityInvulnerable uint8 = 0x01
	AbilityFlying       uint8 = 0x02
	AbilityAllowFlying  uint8 = 0x04
	AbilityCreative     uint8 = 0x08
)

type PlayerAbilities struct {
	Flags        uint8
	FlyingSpeed  float32
	WalkingSpeed float32
}

var (
	_ encoding.BinaryMarshaler   = (*PlayerAbilities)(nil)
	_ encoding.BinaryUnmarshaler = (*PlayerAbilities)(nil)
)

func (*PlayerAbilities) Kind() Kind { return KindPlayerAbilities }

func (m *PlayerAbilities) MarshalBinary() ([]byte, error) {
	w := wire.NewWriter(9)
	w.Uint8(m.Flags)
	w.Float32(m.FlyingSpeed)
	w.Float32(m.WalkingSpeed)
	return w.Bytes(), nil
}

func (m *PlayerAbilities) UnmarshalBinary(data []byte) error {
	r := wire.NewReader(data)
	m.Flags = r.Uint8()
	m.FlyingSpeed = r.Float32()
	m.WalkingSpeed = r.Float32()
	return r.Done()
}

// action codes of EntityAction
const (
	ActionStartSneaking int32 = iota
	ActionStopSneaking
	ActionLeaveBed
	ActionStartSprinting
	ActionStopSprinting
	ActionStartJumpWithHorse
	ActionStopJumpWithHorse
	ActionOpenHorseInventory
	ActionStartFlyingWithElytra
)

// EntityAction multiplexes several unrelated player actions over one code.
// The processor chain splits it into the discrete events below.
type EntityAction struct {
	EntityID  int32
	Action    int32
	JumpBoost int32
}

var (
	_ encoding.BinaryMarshaler   = (*EntityAction)(nil)
	_ encoding.BinaryUnmarshaler = (*EntityAction)(nil)
)

func (*EntityAction) Kind() Kind { return KindEntityAction }

func (m *EntityAction) MarshalBinary() ([]byte, error) {
	w := wire.NewWriter(8)
	w.VarInt(m.EntityID)
	w.VarInt(m.Action)
	w.VarInt(m.JumpBoost)
	return w.Bytes(), nil
}

func (m *EntityAction) UnmarshalBinary(data []byte) error {
	r := wire.NewReader(data)
	m.EntityID = r.VarInt()
	m.Action = r.VarInt()
	m.JumpBoost = r.VarInt()
	return r.Done()
}

type Sneak struct{ On bool }

func (*Sneak) Kind() Kind { return KindSneak }

type Sprint struct{ On bool }

func (*Sprint) Kind() Kind { return KindSprint }

type Flying struct{ On bool }

func (*Flying) Kind() Kind { return KindFlying }

type LeaveBed struct{}

func (*LeaveBed) Kind() Kind { return KindLeaveBed }

type VehicleJump struct {
	Start bool
	Boost int32
}

func (*VehicleJump) Kind() Kind { return KindVehicleJump }

type OpenVehicleInventory struct{}

func (*OpenVehicleInventory) Kind() Kind { return KindOpenVehicleInventory }

type ElytraStart struct{}

func (*ElytraStart) Kind() Kind { return KindElytraStart }

const (
	ChatPositionChat   int8 = 0
	ChatPositionSystem int8 = 1
	ChatPositionAbove  int8 = 2
)

type ChatOut struct {
	JSON     string
	Position int8
}

var (
	_ encoding.BinaryMarshaler   = (*ChatOut)(nil)
	_ encoding.BinaryUnmarshaler = (*ChatOut)(nil)
	_ Cacheable                  = (*ChatOut)(nil)
)

func (*ChatOut) Kind() Kind { return KindChatOut }

func (m *ChatOut) MarshalBinary() ([]byte, error) {
	w := wire.NewWriter(3 + len(m.JSON))
	w.String(m.JSON)
	w.Int8(m.Position)
	return w.Bytes(), nil
}

func (m *ChatOut) UnmarshalBinary(data []byte) error {
	r := wire.NewReader(data)
	m.JSON = r.String()
	m.Position = r.Int8()
	return r.Done()
}

func (m *ChatOut) AppendCacheKey(dst []byte) []byte {
	dst = wire.AppendVarInt(dst, int32(len(m.JSON)))
	dst = append(dst, m.JSON...)
	return append(dst, byte(m.Position))
}

type JoinGame struct {
	EntityID         int32
	Gamemode         uint8
	Dimension        int32
	Difficulty       uint8
	MaxPlayers       uint8
	LevelType        string
	ReducedDebugInfo bool
}

var (
	_ encoding.BinaryMarshaler   = (*JoinGame)(nil)
	_ encoding.BinaryUnmarshaler = (*JoinGame)(nil)
)

func (*JoinGame) Kind() Kind { return KindJoinGame }

func (m *JoinGame) MarshalBinary() ([]byte, error) {
	w := wire.NewWriter(16 + len(m.LevelType))
	w.Int32(m.EntityID)
	w.Uint8(m.Gamemode)
	w.Int32(m.Dimension)
	w.Uint8(m.Difficulty)
	w.Uint8(m.MaxPlayers)
	w.String(m.LevelType)
	w.Bool(m.ReducedDebugInfo)
	return w.Bytes(), nil
}

func (m *JoinGame) UnmarshalBinary(data []byte) error {
	r := wire.NewReader(data)
	m.EntityID = r.Int32()
	m.Gamemode = r.Uint8()
	m.Dimension = r.Int32()
	m.Difficulty = r.Uint8()
	m.MaxPlayers = r.Uint8()
	m.LevelType = r.String()
	m.ReducedDebugInfo = r.Bool()
	return r.Done()
}

type TimeUpdate struct {
	WorldAge  int64
	TimeOfDay int64
}

var (
	_ encoding.BinaryMarshaler   = (*TimeUpdate)(nil)
	_ encoding.BinaryUnmarshaler = (*TimeUpdate)(nil)
	_ Cacheable                  = (*TimeUpdate)(nil)
)

func (*TimeUpdate) Kind() Kind { return KindTimeUpdate }

func (m *TimeUpdate) MarshalBinary() ([]byte, error) {
	w := wire.NewWriter(16)
	w.Int64(m.WorldAge)
	w.Int64(m.TimeOfDay)
	return w.Bytes(), nil
}

func (m *TimeUpdate) UnmarshalBinary(data []byte) error {
	r := wire.NewReader(data)
	m.WorldAge = r.Int64()
	m.TimeOfDay = r.Int64()
	return r.Done()
}

func (m *TimeUpdate) AppendCacheKey(dst []byte) []byte {
	dst = append(dst, marshalInt64(m.WorldAge)...)
	return append(dst, marshalInt64(m.TimeOfDay)...)
}
