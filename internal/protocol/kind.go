package protocol

import "fmt"

// Kind identifies a message variant independent of state and direction.
// Registration tables are keyed by it instead of by Go type.
type Kind uint16

const (
	_ Kind = iota

	KindBulk
	KindTaskFailure

	// handshake and status
	KindHandshake
	KindStatusRequest
	KindStatusPing
	KindStatusResponse
	KindStatusPong

	// login
	KindLoginStart
	KindEncryptionResponse
	KindSessionVerify
	KindAuthResult
	KindLoginDisconnect
	KindEncryptionRequest
	KindLoginSuccess
	KindSetCompression

	// shared by forge handshake and play
	KindPluginMessage
	KindKeepAlive
	KindDisconnect
	KindChannelRegister
	KindChannelUnregister

	// forge handshake
	KindFMLServerHello
	KindFMLClientHello
	KindFMLModList
	KindFMLAck

	// play, serverbound
	KindTeleportConfirm
	KindChatIn
	KindPlayerAbilities
	KindEntityAction
	KindSneak
	KindSprint
	KindFlying
	KindLeaveBed
	KindVehicleJump
	KindOpenVehicleInventory
	KindElytraStart

	// play, clientbound
	KindChatOut
	KindJoinGame
	KindTimeUpdate

	KindMax
)

var kindNames = [KindMax]string{
	KindBulk:                 "bulk",
	KindTaskFailure:          "task_failure",
	KindHandshake:            "handshake",
	KindStatusRequest:        "status_request",
	KindStatusPing:           "status_ping",
	KindStatusResponse:       "status_response",
	KindStatusPong:           "status_pong",
	KindLoginStart:           "login_start",
	KindEncryptionResponse:   "encryption_response",
	KindSessionVerify:        "session_verify",
	KindAuthResult:           "auth_result",
	KindLoginDisconnect:      "login_disconnect",
	KindEncryptionRequest:    "encryption_request",
	KindLoginSuccess:         "login_success",
	KindSetCompression:       "set_compression",
	KindPluginMessage:        "plugin_message",
	KindKeepAlive:            "keep_alive",
	KindDisconnect:           "disconnect",
	KindChannelRegister:      "channel_register",
	KindChannelUnregister:    "channel_unregister",
	KindFMLServerHello:       "fml_server_hello",
	KindFMLClientHello:       "fml_client_hello",
	KindFMLModList:           "fml_mod_list",
	KindFMLAck:               "fml_ack",
	KindTeleportConfirm:      "teleport_confirm",
	KindChatIn:               "chat_in",
	KindPlayerAbilities:      "player_abilities",
	KindEntityAction:         "entity_action",
	KindSneak:                "sneak",
	KindSprint:               "sprint",
	KindFlying:               "flying",
	KindLeaveBed:             "leave_bed",
	KindVehicleJump:          "vehicle_jump",
	KindOpenVehicleInventory: "open_vehicle_inventory",
	KindElytraStart:          "elytra_start",
	KindChatOut:              "chat_out",
	KindJoinGame:             "join_game",
	KindTimeUpdate:           "time_update",
}

func (k Kind) String() string {
	if k < KindMax && kindNames[k] != "" {
		return kindNames[k]
	}
	return fmt.Sprintf("kind(%d)", uint16(k))
}
