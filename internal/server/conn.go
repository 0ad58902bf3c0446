package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net"
	"time"

	"github.com/blukai/blockparty/internal/legacy"
	"github.com/blukai/blockparty/internal/pipeline"
	"github.com/blukai/blockparty/internal/profile"
	"github.com/blukai/blockparty/internal/protocol"
	"github.com/blukai/blockparty/internal/protoerr"
	"github.com/blukai/blockparty/internal/proxy"
	"github.com/blukai/blockparty/internal/session"
	"github.com/phuslu/log"
	"golang.org/x/sync/errgroup"
)

const readBufferSize = 4 << 10

// errHangUp ends a connection that said everything it had to say.
var errHangUp = errors.New("hang up")

type eventKind uint8

const (
	eventRead eventKind = iota
	eventReadErr
	// eventInject carries a message produced off the loop, like an async
	// handler result, that must be handled as if it was received.
	eventInject
	eventSend
	eventKick
)

type event struct {
	kind   eventKind
	data   []byte
	err    error
	msg    protocol.Message
	reason string
}

// conn is one client. Everything below the events channel runs on the event
// loop goroutine only.
type conn struct {
	srv    *Server
	raw    net.Conn
	remote string
	// addr is the player's address, the forwarded one behind a proxy. It is
	// written during the handshake, before the game sees the player.
	addr   net.Addr
	logger *log.Logger

	events chan event
	writes chan []byte

	// ctx lives as long as the connection; done is its Done.
	ctx    context.Context
	cancel context.CancelFunc
	done   <-chan struct{}
	// loopDone closes when any of the loops stops.
	loopDone <-chan struct{}

	// owned by the event loop
	sess       *session.Session
	pipe       *pipeline.Pipeline
	sniffer    *legacy.Sniffer
	forwarded  *proxy.Forwarded
	lastWrite  time.Time
	joined     bool
	statusSent bool

	// set once, before the game learns about the player
	profile *profile.Profile
}

var _ Player = (*conn)(nil)

func newConn(ctx context.Context, srv *Server, raw net.Conn) *conn {
	ctx, cancel := context.WithCancel(ctx)
	sess := session.New(raw.RemoteAddr())
	return &conn{
		ctx:    ctx,
		cancel: cancel,
		done:   ctx.Done(),
		srv:    srv,
		raw:    raw,
		remote: raw.RemoteAddr().String(),
		addr:   raw.RemoteAddr(),
		logger: srv.logger,
		events: make(chan event, srv.config.SendBuffer),
		writes: make(chan []byte, srv.config.SendBuffer),
		sess:   sess,
		pipe: pipeline.New(sess, pipeline.Options{
			Side:   pipeline.Server,
			Table:  srv.table,
			Cache:  srv.cache,
			Logger: srv.logger,
		}),
		sniffer: &legacy.Sniffer{},
	}
}

func (c *conn) run() {
	c.debug().Msg("connection established")

	group, child := errgroup.WithContext(c.ctx)
	c.loopDone = child.Done()
	group.Go(func() error {
		return c.readLoop(child)
	})
	group.Go(func() error {
		defer c.cancel()
		return c.eventLoop(child)
	})
	group.Go(func() error {
		return c.writeLoop()
	})
	err := group.Wait()
	c.cancel()

	if err := c.pipe.Close(); err != nil {
		c.logger.Debug().Str("remote", c.remote).Err(err).Msg("could not close pipeline")
	}
	if c.joined {
		c.srv.game.Leave(c)
	}

	switch {
	case err == nil, errors.Is(err, errHangUp), errors.Is(err, io.EOF), errors.Is(err, context.Canceled):
		c.logger.Debug().Str("remote", c.remote).Msg("connection closed")
	default:
		c.logger.Info().Str("remote", c.remote).Err(err).Msg("connection closed with error")
	}
}

func (c *conn) readLoop(ctx context.Context) error {
	buf := make([]byte, readBufferSize)
	for {
		if err := c.raw.SetReadDeadline(time.Now().Add(c.srv.config.ReadTimeout)); err != nil {
			return c.post(ctx, event{kind: eventReadErr, err: err})
		}

		n, err := c.raw.Read(buf)
		if n > 0 {
			data := make([]byte, n)
			copy(data, buf[:n])
			if err := c.post(ctx, event{kind: eventRead, data: data}); err != nil {
				return nil
			}
		}
		if err != nil {
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				err = protoerr.New(protoerr.ErrTimeout, "", err)
			}
			_ = c.post(ctx, event{kind: eventReadErr, err: err})
			return nil
		}
	}
}

func (c *conn) post(ctx context.Context, ev event) error {
	select {
	case c.events <- ev:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// writeLoop drains writes until the event loop closes it, then closes the
// socket, which also ends the read loop.
func (c *conn) writeLoop() error {
	defer c.raw.Close()

	for b := range c.writes {
		if err := c.raw.SetWriteDeadline(time.Now().Add(c.srv.config.WriteTimeout)); err != nil {
			return err
		}
		if _, err := c.raw.Write(b); err != nil {
			return fmt.Errorf("could not write: %w", err)
		}
	}
	return nil
}

func (c *conn) eventLoop(ctx context.Context) error {
	defer close(c.writes)

	ticker := time.NewTicker(c.srv.config.KeepAliveInterval)
	defer ticker.Stop()
	c.lastWrite = time.Now()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case now := <-ticker.C:
			if err := c.keepAlive(now); err != nil {
				return c.fail(err)
			}
		case ev := <-c.events:
			if err := c.handleEvent(ctx, ev); err != nil {
				return c.fail(err)
			}
		}
	}
}

func (c *conn) handleEvent(ctx context.Context, ev event) error {
	switch ev.kind {
	case eventRead:
		return c.receive(ctx, ev.data)
	case eventReadErr:
		return ev.err
	case eventInject:
		if failure, ok := ev.msg.(*protocol.TaskFailure); ok {
			return fmt.Errorf("%s handler failed: %w", failure.Source, failure.Err)
		}
		if err := c.pipe.Check(ev.msg); err != nil {
			return err
		}
		return c.handle(ctx, ev.msg)
	case eventSend:
		return c.send(ev.msg)
	case eventKick:
		c.sendDisconnect(ev.reason)
		return errHangUp
	}
	return fmt.Errorf("unknown event %d", ev.kind)
}

// receive runs new bytes through the legacy sniffer, then through the
// pipeline, handling every complete message in order.
func (c *conn) receive(ctx context.Context, data []byte) error {
	if c.sniffer != nil {
		verdict, req := c.sniffer.Feed(data)
		switch verdict {
		case legacy.NeedMore:
			return nil
		case legacy.Legacy:
			return c.answerLegacy(req)
		}
		data = c.sniffer.Buffered()
		c.sniffer = nil
	}

	c.pipe.Feed(data)
	for {
		m, err := c.pipe.Next()
		if err != nil {
			if protoerr.Fatal(err) {
				return err
			}
			continue
		}
		if m == nil {
			return nil
		}
		if err := c.handle(ctx, m); err != nil {
			return err
		}
	}
}

func (c *conn) answerLegacy(req legacy.Request) error {
	meta := c.srv.game
	b, err := legacy.Response(req, legacy.Info{
		MOTD:            meta.MOTD(),
		Online:          meta.Online(),
		Max:             meta.MaxPlayers(),
		ProtocolVersion: protocol.Version,
		VersionName:     protocol.VersionName,
	})
	if err != nil {
		return err
	}
	c.debug().Str("dialect", req.Dialect.String()).Msg("answered legacy ping")
	c.write(b)
	return errHangUp
}

func (c *conn) handle(ctx context.Context, m protocol.Message) error {
	handled, err := c.srv.dispatcher.Dispatch(ctx, c, m, c.inject)
	if handled || err != nil {
		return err
	}
	if c.sess.State == protocol.StatePlay && c.joined {
		return c.srv.game.Handle(c, m)
	}
	c.debug().Str("kind", m.Kind().String()).Msg("unhandled message")
	return nil
}

// inject is called from async handlers.
func (c *conn) inject(m protocol.Message) {
	_ = c.post(c.ctx, event{kind: eventInject, msg: m})
}

func (c *conn) send(m protocol.Message) error {
	b, err := c.pipe.Encode(m)
	if err != nil {
		return err
	}
	c.write(b)
	return nil
}

func (c *conn) write(b []byte) {
	c.lastWrite = time.Now()
	select {
	case c.writes <- b:
	case <-c.loopDone:
	}
}

func (c *conn) keepAlive(now time.Time) error {
	if c.sess.State != protocol.StateForgeHandshake && c.sess.State != protocol.StatePlay {
		return nil
	}
	if now.Sub(c.lastWrite) < c.srv.config.KeepAliveInterval {
		return nil
	}
	c.sess.KeepAliveID = rand.Int63()
	return c.send(&protocol.KeepAlive{ID: c.sess.KeepAliveID})
}

// fail tries to tell the peer why it is being dropped.
func (c *conn) fail(err error) error {
	if errors.Is(err, errHangUp) || errors.Is(err, io.EOF) || errors.Is(err, context.Canceled) {
		return err
	}

	reason := protoerr.Reason(err)
	c.logger.Warn().
		Str("remote", c.remote).
		Str("state", c.sess.State.String()).
		Err(err).
		Msgf("disconnecting: %s", reason)
	c.sendDisconnect(reason)
	return err
}

// sendDisconnect sends reason in whatever form the current state has for it.
// Handshake and status have none; the socket just closes.
func (c *conn) sendDisconnect(reason string) {
	var m protocol.Message
	switch c.sess.State {
	case protocol.StateLogin:
		m = &protocol.LoginDisconnect{Reason: protocol.Text(reason)}
	case protocol.StateForgeHandshake, protocol.StatePlay:
		m = &protocol.Disconnect{Reason: protocol.Text(reason)}
	default:
		return
	}
	if err := c.send(m); err != nil {
		c.logger.Debug().Str("remote", c.remote).Err(err).Msg("could not send disconnect")
	}
}

func (c *conn) debug() *log.Entry {
	return c.logger.Debug().Str("remote", c.remote).Str("state", c.sess.State.String())
}

func (c *conn) Profile() *profile.Profile { return c.profile }
func (c *conn) RemoteAddr() net.Addr      { return c.addr }

func (c *conn) Send(m protocol.Message) error {
	select {
	case <-c.done:
		return ErrClosed
	default:
	}
	select {
	case c.events <- event{kind: eventSend, msg: m}:
		return nil
	case <-c.done:
		return ErrClosed
	default:
		return ErrBufferFull
	}
}

func (c *conn) Kick(reason string) {
	select {
	case c.events <- event{kind: eventKick, reason: reason}:
	case <-c.done:
	default:
		// the loop is swamped; skip the message and just drop it
		c.logger.Debug().Str("remote", c.remote).Msg("event queue full, closing without reason")
		_ = c.raw.Close()
	}
}
