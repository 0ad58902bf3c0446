package server

import (
	"net"

	"github.com/blukai/blockparty/internal/profile"
	"github.com/blukai/blockparty/internal/protocol"
)

// Player is the handle gameplay gets for a connection that reached play.
// Every method is safe to call from any goroutine.
type Player interface {
	Profile() *profile.Profile
	RemoteAddr() net.Addr
	// Send queues m without blocking. It fails with ErrBufferFull when the
	// connection falls behind and with ErrClosed once it is gone.
	Send(m protocol.Message) error
	// Kick disconnects the player with reason.
	Kick(reason string)
}

// Metadata is what the status and legacy pings show.
type Metadata interface {
	MOTD() string
	// Favicon is a 64x64 png or nil.
	Favicon() []byte
	MaxPlayers() int
	Online() int
	// Sample returns up to n players for the status player list.
	Sample(n int) []*profile.Profile
}

// Game receives fully decoded play messages and produces outgoing ones.
type Game interface {
	Metadata
	// Join is called when p enters play. The returned message is the first
	// thing p receives in play.
	Join(p Player) (*protocol.JoinGame, error)
	Leave(p Player)
	// Handle gets every play message the protocol layer does not consume
	// itself. An error disconnects p.
	Handle(p Player, m protocol.Message) error
}
