// Package lobby is the default game: players stand around in an empty flat
// world, chat with each other and watch the sun go by.
package lobby

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/blukai/blockparty/internal/profile"
	"github.com/blukai/blockparty/internal/protocol"
	"github.com/blukai/blockparty/internal/protoerr"
	"github.com/blukai/blockparty/internal/server"
	"github.com/cespare/xxhash/v2"
	"github.com/hashicorp/go-multierror"
	"github.com/phuslu/log"
)

var ErrFull = errors.New("lobby is full")

const (
	ticksPerSecond = 20
	ticksPerDay    = 24000

	gamemodeAdventure = 2
	maxChatLen        = 256
)

type playerKey uint64

// NOTE(blukai): keyed by address rather than profile id; offline mode hands
// out the same id to everyone who picks the same name.
func makePlayerKey(p server.Player) playerKey {
	return playerKey(xxhash.Sum64String(p.RemoteAddr().String()))
}

type player struct {
	server.Player
	entityID int32
	joinedAt time.Time
}

type Config struct {
	MOTD       string
	Favicon    []byte
	MaxPlayers int
	// TickInterval is how often time updates go out.
	TickInterval time.Duration
}

type Lobby struct {
	config Config
	logger *log.Logger

	mu           sync.Mutex
	players      map[playerKey]*player
	nextEntityID int32
	worldAge     int64
}

var _ server.Game = (*Lobby)(nil)

func NewLobby(config Config, logger *log.Logger) *Lobby {
	if config.MaxPlayers <= 0 {
		config.MaxPlayers = 20
	}
	if config.TickInterval <= 0 {
		config.TickInterval = time.Second
	}

	// if logger is nil (which might be true in tests) => use default, but
	// silenced logger
	if logger == nil {
		tmp := log.DefaultLogger
		logger = &tmp
		logger.Writer = &log.IOWriter{Writer: io.Discard}
	}

	return &Lobby{
		config:  config,
		logger:  logger,
		players: make(map[playerKey]*player),
	}
}

func (l *Lobby) MOTD() string    { return l.config.MOTD }
func (l *Lobby) Favicon() []byte { return l.config.Favicon }
func (l *Lobby) MaxPlayers() int { return l.config.MaxPlayers }

func (l *Lobby) Online() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.players)
}

// Sample returns the n players that have been around the longest.
func (l *Lobby) Sample(n int) []*profile.Profile {
	l.mu.Lock()
	defer l.mu.Unlock()

	all := make([]*player, 0, len(l.players))
	for _, p := range l.players {
		all = append(all, p)
	}
	sort.Slice(all, func(i, j int) bool {
		return all[i].joinedAt.Before(all[j].joinedAt)
	})

	sample := make([]*profile.Profile, 0, min(n, len(all)))
	for _, p := range all[:min(n, len(all))] {
		sample = append(sample, p.Profile())
	}
	return sample
}

func (l *Lobby) Join(p server.Player) (*protocol.JoinGame, error) {
	l.mu.Lock()
	if len(l.players) >= l.config.MaxPlayers {
		l.mu.Unlock()
		return nil, protoerr.New(ErrFull, "The server is full!", nil)
	}
	l.nextEntityID++
	entityID := l.nextEntityID
	l.players[makePlayerKey(p)] = &player{
		Player:   p,
		entityID: entityID,
		joinedAt: time.Now(),
	}
	l.mu.Unlock()

	name := p.Profile().Name
	l.logger.Info().
		Str("name", name).
		Str("id", p.Profile().ID.String()).
		Int("entity", int(entityID)).
		Msg("player joined")
	l.announce(p, fmt.Sprintf("%s joined the game", name))

	return &protocol.JoinGame{
		EntityID:   entityID,
		Gamemode:   gamemodeAdventure,
		MaxPlayers: uint8(min(l.config.MaxPlayers, 255)),
		LevelType:  "flat",
	}, nil
}

func (l *Lobby) Leave(p server.Player) {
	key := makePlayerKey(p)

	l.mu.Lock()
	_, ok := l.players[key]
	delete(l.players, key)
	l.mu.Unlock()
	if !ok {
		return
	}

	name := p.Profile().Name
	l.logger.Info().Str("name", name).Msg("player left")
	l.announce(nil, fmt.Sprintf("%s left the game", name))
}

func (l *Lobby) Handle(p server.Player, m protocol.Message) error {
	switch m := m.(type) {
	case *protocol.ChatIn:
		return l.handleChat(p, m)
	default:
		l.logger.Debug().
			Str("name", p.Profile().Name).
			Str("kind", m.Kind().String()).
			Msg("ignored")
		return nil
	}
}

func (l *Lobby) handleChat(p server.Player, m *protocol.ChatIn) error {
	text := strings.TrimSpace(m.Message)
	if text == "" {
		return nil
	}
	if len(text) > maxChatLen {
		return protoerr.Newf(protoerr.ErrStateViolation, "Chat message too long", "chat of %d bytes", len(text))
	}
	// there are no commands in the lobby
	if strings.HasPrefix(text, "/") {
		return p.Send(&protocol.ChatOut{
			JSON:     protocol.Text("Unknown command"),
			Position: protocol.ChatPositionSystem,
		})
	}

	out := &protocol.ChatOut{
		JSON:     protocol.Text(fmt.Sprintf("<%s> %s", p.Profile().Name, text)),
		Position: protocol.ChatPositionChat,
	}
	if err := l.Broadcast(out, nil); err != nil {
		// the sender is fine; whoever could not receive gets dropped by
		// their own connection
		l.logger.Warn().Err(err).Msg("could not relay chat to everyone")
	}
	return nil
}

func (l *Lobby) announce(except server.Player, text string) {
	err := l.Broadcast(&protocol.ChatOut{
		JSON:     protocol.Text(text),
		Position: protocol.ChatPositionSystem,
	}, except)
	if err != nil {
		l.logger.Warn().Err(err).Msg("could not announce")
	}
}

// Broadcast sends m to every player except the given one, which may be nil.
// Players that can not take it are reported in the returned multierror.
func (l *Lobby) Broadcast(m protocol.Message, except server.Player) error {
	var skip playerKey
	if except != nil {
		skip = makePlayerKey(except)
	}

	l.mu.Lock()
	targets := make([]*player, 0, len(l.players))
	for key, p := range l.players {
		// don't send to the sender
		if except != nil && key == skip {
			continue
		}
		targets = append(targets, p)
	}
	l.mu.Unlock()

	var errs error
	for _, p := range targets {
		if err := p.Send(m); err != nil {
			errs = multierror.Append(errs, fmt.Errorf("could not send %s to %s: %w",
				m.Kind(), p.Profile().Name, err))
		}
	}
	return errs
}

// Run advances the world clock until ctx is done.
func (l *Lobby) Run(ctx context.Context) error {
	ticker := time.NewTicker(l.config.TickInterval)
	defer ticker.Stop()

	ticks := int64(l.config.TickInterval * ticksPerSecond / time.Second)
	if ticks == 0 {
		ticks = 1
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			l.mu.Lock()
			l.worldAge += ticks
			update := &protocol.TimeUpdate{
				WorldAge:  l.worldAge,
				TimeOfDay: l.worldAge % ticksPerDay,
			}
			l.mu.Unlock()

			// NOTE(blukai): every player gets the same message, so the
			// outgoing cache encodes it once per tick.
			if err := l.Broadcast(update, nil); err != nil {
				l.logger.Debug().Err(err).Msg("could not broadcast time")
			}
		}
	}
}
