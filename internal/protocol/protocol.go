package protocol

import (
	"fmt"

	"github.com/sugawarayuuta/sonnet"
)

// Version is the only protocol version logins are accepted for.
const (
	Version     = 340
	VersionName = "1.12.2"
)

type State uint8

const (
	StateHandshake State = iota
	StateStatus
	StateLogin
	StateForgeHandshake
	StatePlay

	StateMax
)

var stateNames = [StateMax]string{
	StateHandshake:      "handshake",
	StateStatus:         "status",
	StateLogin:          "login",
	StateForgeHandshake: "forge_handshake",
	StatePlay:           "play",
}

func (s State) String() string {
	if s < StateMax {
		return stateNames[s]
	}
	return fmt.Sprintf("state(%d)", uint8(s))
}

// NOTE(blukai): direction is named after where the message goes, so the
// server decodes Serverbound and encodes Clientbound while a client does the
// opposite.
type Direction uint8

const (
	Serverbound Direction = iota
	Clientbound
)

func (d Direction) String() string {
	if d == Serverbound {
		return "serverbound"
	}
	return "clientbound"
}

func (d Direction) Opposite() Direction {
	return d ^ 1
}

// Message is a decoded packet or an event derived from one. The concrete
// types are all pointers to structs in this package.
type Message interface {
	Kind() Kind
}

// Cacheable messages can describe their content to the outgoing message
// cache. The content must cover every field that ends up on the wire, and
// variable length fields are length prefixed so that no two messages share
// it.
type Cacheable interface {
	Message
	AppendCacheKey(dst []byte) []byte
}

// Bulk carries independent messages that were decoded from a single frame.
// The pipeline flattens it before any processor sees the parts.
type Bulk struct {
	Messages []Message
}

func (*Bulk) Kind() Kind { return KindBulk }

// TaskFailure is injected back into a connection when an async handler fails
// without producing its own result message.
type TaskFailure struct {
	Source Kind
	Err    error
}

func (*TaskFailure) Kind() Kind { return KindTaskFailure }

type textComponent struct {
	Text string `json:"text"`
}

// Text renders s as the json chat component that disconnect and chat
// messages carry.
func Text(s string) string {
	data, err := sonnet.Marshal(textComponent{Text: s})
	if err != nil {
		// a struct with a single string field always marshals
		panic(err)
	}
	return string(data)
}

// PlainText extracts the text field of a json chat component, falling back
// to the raw input.
func PlainText(component string) string {
	var tc textComponent
	if err := sonnet.Unmarshal([]byte(component), &tc); err != nil {
		return component
	}
	return tc.Text
}
