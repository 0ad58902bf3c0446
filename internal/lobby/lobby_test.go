package lobby_test

import (
	"context"
	"errors"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/blukai/blockparty/internal/lobby"
	"github.com/blukai/blockparty/internal/profile"
	"github.com/blukai/blockparty/internal/protocol"
	"github.com/blukai/blockparty/internal/protoerr"
	"github.com/blukai/blockparty/internal/server"
	"github.com/hashicorp/go-multierror"
	"github.com/matryer/is"
)

type fakePlayer struct {
	profile *profile.Profile
	addr    net.Addr

	mu      sync.Mutex
	sent    []protocol.Message
	sendErr error
}

var _ server.Player = (*fakePlayer)(nil)

func newFakePlayer(name string, port int) *fakePlayer {
	return &fakePlayer{
		profile: profile.Offline(name),
		addr:    &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1), Port: port},
	}
}

func (p *fakePlayer) Profile() *profile.Profile { return p.profile }
func (p *fakePlayer) RemoteAddr() net.Addr      { return p.addr }
func (p *fakePlayer) Kick(string)               {}

func (p *fakePlayer) Send(m protocol.Message) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.sendErr != nil {
		return p.sendErr
	}
	p.sent = append(p.sent, m)
	return nil
}

func (p *fakePlayer) chat() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	var texts []string
	for _, m := range p.sent {
		if out, ok := m.(*protocol.ChatOut); ok {
			texts = append(texts, protocol.PlainText(out.JSON))
		}
	}
	return texts
}

func (p *fakePlayer) timeUpdates() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, m := range p.sent {
		if _, ok := m.(*protocol.TimeUpdate); ok {
			n++
		}
	}
	return n
}

func TestJoinLeave(t *testing.T) {
	is := is.New(t)

	l := lobby.NewLobby(lobby.Config{MOTD: "hi", MaxPlayers: 5}, nil)
	alice := newFakePlayer("Alice", 1)
	bob := newFakePlayer("Bob", 2)

	joinAlice, err := l.Join(alice)
	is.NoErr(err)
	is.Equal(joinAlice.MaxPlayers, uint8(5))

	joinBob, err := l.Join(bob)
	is.NoErr(err)
	is.True(joinAlice.EntityID != joinBob.EntityID)

	is.Equal(l.Online(), 2)
	is.Equal(l.MOTD(), "hi")

	sample := l.Sample(1)
	is.Equal(len(sample), 1)
	is.Equal(sample[0].Name, "Alice") // longest online comes first
	is.Equal(len(l.Sample(10)), 2)

	is.Equal(alice.chat(), []string{"Bob joined the game"})
	is.Equal(len(bob.chat()), 0)

	l.Leave(bob)
	l.Leave(bob) // second leave is a no-op
	is.Equal(l.Online(), 1)
	is.Equal(alice.chat(), []string{"Bob joined the game", "Bob left the game"})
}

func TestFull(t *testing.T) {
	is := is.New(t)

	l := lobby.NewLobby(lobby.Config{MaxPlayers: 1}, nil)
	_, err := l.Join(newFakePlayer("Alice", 1))
	is.NoErr(err)

	_, err = l.Join(newFakePlayer("Bob", 2))
	is.True(errors.Is(err, lobby.ErrFull))
	is.Equal(protoerr.Reason(err), "The server is full!")
	is.Equal(l.Online(), 1)
}

func TestChatRelay(t *testing.T) {
	is := is.New(t)

	l := lobby.NewLobby(lobby.Config{}, nil)
	alice := newFakePlayer("Alice", 1)
	bob := newFakePlayer("Bob", 2)
	_, err := l.Join(alice)
	is.NoErr(err)
	_, err = l.Join(bob)
	is.NoErr(err)

	is.NoErr(l.Handle(alice, &protocol.ChatIn{Message: "  hello  "}))
	is.NoErr(l.Handle(alice, &protocol.ChatIn{Message: "   "}))
	is.NoErr(l.Handle(alice, &protocol.ChatIn{Message: "/help"}))
	is.NoErr(l.Handle(alice, &protocol.KeepAlive{ID: 1}))

	is.Equal(bob.chat(), []string{"<Alice> hello"})
	is.Equal(alice.chat(), []string{"Bob joined the game", "<Alice> hello", "Unknown command"})

	long := make([]byte, 300)
	for i := range long {
		long[i] = 'a'
	}
	err = l.Handle(alice, &protocol.ChatIn{Message: string(long)})
	is.True(protoerr.Fatal(err))
}

func TestBroadcastCollectsErrors(t *testing.T) {
	is := is.New(t)

	l := lobby.NewLobby(lobby.Config{}, nil)
	alice := newFakePlayer("Alice", 1)
	bob := newFakePlayer("Bob", 2)
	carol := newFakePlayer("Carol", 3)
	for _, p := range []*fakePlayer{alice, bob, carol} {
		_, err := l.Join(p)
		is.NoErr(err)
	}

	bob.sendErr = server.ErrBufferFull
	carol.sendErr = server.ErrClosed

	err := l.Broadcast(&protocol.TimeUpdate{WorldAge: 1}, nil)
	var merr *multierror.Error
	is.True(errors.As(err, &merr))
	is.Equal(len(merr.Errors), 2)
	is.True(errors.Is(err, server.ErrBufferFull))
	is.True(errors.Is(err, server.ErrClosed))
	is.Equal(alice.timeUpdates(), 1)

	// a failing listener does not fail the speaker
	is.NoErr(l.Handle(alice, &protocol.ChatIn{Message: "anyone?"}))
}

func TestRunBroadcastsTime(t *testing.T) {
	is := is.New(t)

	l := lobby.NewLobby(lobby.Config{TickInterval: 10 * time.Millisecond}, nil)
	alice := newFakePlayer("Alice", 1)
	_, err := l.Join(alice)
	is.NoErr(err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- l.Run(ctx)
	}()

	deadline := time.Now().Add(time.Second)
	for alice.timeUpdates() < 3 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	cancel()
	is.NoErr(<-done)
	is.True(alice.timeUpdates() >= 3)

	alice.mu.Lock()
	var last *protocol.TimeUpdate
	for _, m := range alice.sent {
		if u, ok := m.(*protocol.TimeUpdate); ok {
			is.True(last == nil || u.WorldAge > last.WorldAge) // world age only moves forward
			last = u
		}
	}
	alice.mu.Unlock()
}
