// Package session holds everything one connection knows about itself. A
// Session belongs to its connection's loop and is never shared.
package session

import (
	"net"

	"github.com/blukai/blockparty/internal/compress"
	"github.com/blukai/blockparty/internal/profile"
	"github.com/blukai/blockparty/internal/protocol"
)

// Toggles remembers the last state the peer reported for its on/off
// actions so repeats can be dropped.
type Toggles struct {
	Sneaking  bool
	Sprinting bool
	Flying    bool
}

// MultiPart is an in-flight reassembly of a payload split over several
// plugin messages.
type MultiPart struct {
	Channel string
	Parts   int
	Length  int
	Next    int
	Data    []byte
}

type Session struct {
	RemoteAddr net.Addr
	// VirtualHost is the address the client dialed, after proxy data and
	// the forge marker were stripped.
	VirtualHost     string
	Port            uint16
	ProtocolVersion int32
	State           protocol.State

	CompressionThreshold int
	Encrypted            bool
	Forge                bool
	Proxied              bool

	Username string
	Profile  *profile.Profile

	// login attempt
	VerifyToken []byte
	SessionID   string

	Channels  map[string]struct{}
	MultiPart *MultiPart
	Toggles   Toggles
	Mods      []protocol.Mod

	KeepAliveID int64
}

func New(remote net.Addr) *Session {
	return &Session{
		RemoteAddr:           remote,
		State:                protocol.StateHandshake,
		CompressionThreshold: compress.Disabled,
		Channels:             make(map[string]struct{}),
	}
}

func (s *Session) HasChannel(name string) bool {
	_, ok := s.Channels[name]
	return ok
}

// Reset drops per-attempt and in-flight state when the connection goes away.
func (s *Session) Reset() {
	s.Encrypted = false
	s.MultiPart = nil
	s.VerifyToken = nil
	s.SessionID = ""
}
