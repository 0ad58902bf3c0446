package processor

import (
	"fmt"

	"github.com/blukai/blockparty/internal/protocol"
	"github.com/blukai/blockparty/internal/session"
)

// ExpandAction turns the multiplexed EntityAction code into its discrete
// event. Unknown codes are dropped.
var ExpandAction = Func(func(_ *session.Session, m protocol.Message) ([]protocol.Message, error) {
	a, ok := m.(*protocol.EntityAction)
	if !ok {
		return one(m), nil
	}

	switch a.Action {
	case protocol.ActionStartSneaking:
		return one(&protocol.Sneak{On: true}), nil
	case protocol.ActionStopSneaking:
		return one(&protocol.Sneak{On: false}), nil
	case protocol.ActionLeaveBed:
		return one(&protocol.LeaveBed{}), nil
	case protocol.ActionStartSprinting:
		return one(&protocol.Sprint{On: true}), nil
	case protocol.ActionStopSprinting:
		return one(&protocol.Sprint{On: false}), nil
	case protocol.ActionStartJumpWithHorse:
		return one(&protocol.VehicleJump{Start: true, Boost: a.JumpBoost}), nil
	case protocol.ActionStopJumpWithHorse:
		return one(&protocol.VehicleJump{Start: false}), nil
	case protocol.ActionOpenHorseInventory:
		return one(&protocol.OpenVehicleInventory{}), nil
	case protocol.ActionStartFlyingWithElytra:
		return one(&protocol.ElytraStart{}), nil
	}
	return nil, nil
})

// ExpandAbilities reduces the abilities bitfield to the one bit a client is
// allowed to change.
var ExpandAbilities = Func(func(_ *session.Session, m protocol.Message) ([]protocol.Message, error) {
	a, ok := m.(*protocol.PlayerAbilities)
	if !ok {
		return one(m), nil
	}
	return one(&protocol.Flying{On: a.Flags&protocol.AbilityFlying != 0}), nil
})

// SuppressRepeats drops toggles that match what the session already knows
// and records the ones that get through.
var SuppressRepeats = Func(func(s *session.Session, m protocol.Message) ([]protocol.Message, error) {
	var last *bool
	var on bool
	switch m := m.(type) {
	case *protocol.Sneak:
		last, on = &s.Toggles.Sneaking, m.On
	case *protocol.Sprint:
		last, on = &s.Toggles.Sprinting, m.On
	case *protocol.Flying:
		last, on = &s.Toggles.Flying, m.On
	default:
		return one(m), nil
	}
	if *last == on {
		return nil, nil
	}
	*last = on
	return one(m), nil
})

// TrackChannels keeps Session.Channels in sync with the peer's
// (un)registrations.
var TrackChannels = Func(func(s *session.Session, m protocol.Message) ([]protocol.Message, error) {
	switch m := m.(type) {
	case *protocol.ChannelRegistration:
		s.Channels[m.Channel] = struct{}{}
	case *protocol.ChannelUnregistration:
		delete(s.Channels, m.Channel)
	}
	return one(m), nil
})

// DecodeForge lifts FML|HS plugin messages into forge handshake messages.
var DecodeForge = Func(func(_ *session.Session, m protocol.Message) ([]protocol.Message, error) {
	pm, ok := m.(*protocol.PluginMessage)
	if !ok || pm.Channel != protocol.ChannelFMLHandshake {
		return one(m), nil
	}
	fml, err := protocol.DecodeFML(pm, false)
	if err != nil {
		return nil, fmt.Errorf("could not decode forge handshake: %w", err)
	}
	return one(fml), nil
})

// EncodeForge lowers forge handshake messages into FML|HS plugin messages.
var EncodeForge = Func(func(_ *session.Session, m protocol.Message) ([]protocol.Message, error) {
	switch m.(type) {
	case *protocol.FMLServerHello, *protocol.FMLModList, *protocol.FMLAck:
		pm, err := protocol.EncodeFML(m)
		if err != nil {
			return nil, err
		}
		return one(pm), nil
	}
	return one(m), nil
})
