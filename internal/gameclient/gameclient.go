// Package gameclient speaks just enough of the protocol to ping a server and
// log into it in offline mode.
package gameclient

import (
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"time"

	"github.com/blukai/blockparty/internal/pipeline"
	"github.com/blukai/blockparty/internal/profile"
	"github.com/blukai/blockparty/internal/protocol"
	"github.com/blukai/blockparty/internal/registry"
	"github.com/blukai/blockparty/internal/session"
	"github.com/phuslu/log"
	"github.com/sugawarayuuta/sonnet"
)

const readBufferSize = 4 << 10

var ErrOnlineMode = errors.New("server requires online mode")

// DisconnectError is returned when the server hangs up with a reason.
type DisconnectError struct {
	Reason string
}

func (e *DisconnectError) Error() string {
	return "disconnected: " + e.Reason
}

type StatusVersion struct {
	Name     string `json:"name"`
	Protocol int    `json:"protocol"`
}

type StatusPlayer struct {
	Name string `json:"name"`
	ID   string `json:"id"`
}

type StatusPlayers struct {
	Max    int            `json:"max"`
	Online int            `json:"online"`
	Sample []StatusPlayer `json:"sample"`
}

type StatusDescription struct {
	Text string `json:"text"`
}

// Status is the server list entry a status request returns.
type Status struct {
	Version     StatusVersion     `json:"version"`
	Players     StatusPlayers     `json:"players"`
	Description StatusDescription `json:"description"`
	Favicon     string            `json:"favicon"`
}

type Client struct {
	conn    net.Conn
	readBuf []byte
	host    string
	port    uint16

	logger *log.Logger

	sess *session.Session
	pipe *pipeline.Pipeline

	timeout time.Duration
}

func NewClient(network, address string, logger *log.Logger) (*Client, error) {
	host, portStr, err := net.SplitHostPort(address)
	if err != nil {
		return nil, fmt.Errorf("could not split address: %w", err)
	}
	port, err := strconv.ParseUint(portStr, 10, 16)
	if err != nil {
		return nil, fmt.Errorf("could not parse port: %w", err)
	}

	conn, err := net.DialTimeout(network, address, 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("could not dial: %w", err)
	}

	// if logger is nil (which might be true in tests) => use default, but
	// silenced logger
	if logger == nil {
		tmp := log.DefaultLogger
		logger = &tmp
		logger.Writer = &log.IOWriter{Writer: io.Discard}
	}

	sess := session.New(conn.RemoteAddr())
	c := &Client{
		conn:    conn,
		readBuf: make([]byte, readBufferSize),
		host:    host,
		port:    uint16(port),

		logger: logger,

		sess: sess,
		pipe: pipeline.New(sess, pipeline.Options{
			Side:   pipeline.Client,
			Table:  registry.V340(registry.Options{}),
			Raw:    true,
			Logger: logger,
		}),

		timeout: 5 * time.Second,
	}
	return c, nil
}

func (c *Client) SetTimeout(d time.Duration) { c.timeout = d }

func (c *Client) State() protocol.State { return c.sess.State }

func (c *Client) Close() error {
	_ = c.pipe.Close()
	return c.conn.Close()
}

// Send encodes m for the current state and writes it.
func (c *Client) Send(m protocol.Message) error {
	b, err := c.pipe.Encode(m)
	if err != nil {
		return fmt.Errorf("could not encode %s: %w", m.Kind(), err)
	}
	if err := c.conn.SetWriteDeadline(time.Now().Add(c.timeout)); err != nil {
		return err
	}
	if _, err := c.conn.Write(b); err != nil {
		return fmt.Errorf("could not write: %w", err)
	}
	c.logger.Debug().Str("kind", m.Kind().String()).Msg("sent")
	return nil
}

// Recv blocks for the next message. Keep alives are answered here and never
// returned.
func (c *Client) Recv() (protocol.Message, error) {
	for {
		m, err := c.pipe.Next()
		if err != nil {
			return nil, err
		}
		if m == nil {
			if err := c.fill(); err != nil {
				return nil, err
			}
			continue
		}

		c.logger.Debug().Str("kind", m.Kind().String()).Msg("recv")

		// intercept messages that don't need to be read individually
		if ka, ok := m.(*protocol.KeepAlive); ok {
			if err := c.Send(&protocol.KeepAlive{ID: ka.ID}); err != nil {
				return nil, err
			}
			continue
		}
		return m, nil
	}
}

func (c *Client) fill() error {
	if err := c.conn.SetReadDeadline(time.Now().Add(c.timeout)); err != nil {
		return err
	}
	n, err := c.conn.Read(c.readBuf)
	if n > 0 {
		c.pipe.Feed(c.readBuf[:n])
	}
	if err != nil {
		return fmt.Errorf("could not read: %w", err)
	}
	return nil
}

// Await skips messages until one of kind arrives. A disconnect on the way is
// returned as a DisconnectError.
func (c *Client) Await(kind protocol.Kind) (protocol.Message, error) {
	for {
		m, err := c.Recv()
		if err != nil {
			return nil, err
		}
		if m.Kind() == kind {
			return m, nil
		}
		switch m := m.(type) {
		case *protocol.Disconnect:
			return nil, &DisconnectError{Reason: protocol.PlainText(m.Reason)}
		case *protocol.LoginDisconnect:
			return nil, &DisconnectError{Reason: protocol.PlainText(m.Reason)}
		}
	}
}

// Handshake announces address and version and moves to nextState.
func (c *Client) Handshake(address string, version, nextState int32) error {
	err := c.Send(&protocol.Handshake{
		ProtocolVersion: version,
		Address:         address,
		Port:            c.port,
		NextState:       nextState,
	})
	if err != nil {
		return err
	}
	switch nextState {
	case protocol.NextStateStatus:
		c.sess.State = protocol.StateStatus
	case protocol.NextStateLogin:
		c.sess.State = protocol.StateLogin
	}
	return nil
}

// SetState is for callers that drive a flow themselves.
func (c *Client) SetState(state protocol.State) { c.sess.State = state }

func (c *Client) EnableCompression(threshold int) { c.pipe.EnableCompression(threshold) }

func (c *Client) EnableEncryption(secret []byte) error { return c.pipe.EnableEncryption(secret) }

// Status asks for the server list entry and measures one ping round trip.
// The server hangs up afterwards.
func (c *Client) Status() (*Status, time.Duration, error) {
	if err := c.Handshake(c.host, protocol.Version, protocol.NextStateStatus); err != nil {
		return nil, 0, err
	}

	if err := c.Send(&protocol.StatusRequest{}); err != nil {
		return nil, 0, err
	}
	m, err := c.Await(protocol.KindStatusResponse)
	if err != nil {
		return nil, 0, fmt.Errorf("could not recv status: %w", err)
	}
	status := new(Status)
	if err := sonnet.Unmarshal([]byte(m.(*protocol.StatusResponse).JSON), status); err != nil {
		return nil, 0, fmt.Errorf("could not parse status: %w", err)
	}

	start := time.Now()
	if err := c.Send(&protocol.StatusPing{Payload: start.UnixMilli()}); err != nil {
		return nil, 0, err
	}
	m, err = c.Await(protocol.KindStatusPong)
	if err != nil {
		return nil, 0, fmt.Errorf("could not recv pong: %w", err)
	}
	if got := m.(*protocol.StatusPong).Payload; got != start.UnixMilli() {
		return nil, 0, fmt.Errorf("pong payload mismatch (got %d; want %d)", got, start.UnixMilli())
	}
	return status, time.Since(start), nil
}

// Login joins an offline mode server and returns once play started.
func (c *Client) Login(username string) (*profile.Profile, *protocol.JoinGame, error) {
	if err := c.Handshake(c.host, protocol.Version, protocol.NextStateLogin); err != nil {
		return nil, nil, err
	}

	if err := c.Send(&protocol.LoginStart{Username: username}); err != nil {
		return nil, nil, err
	}
	return c.FinishLogin()
}

// FinishLogin reads the rest of a vanilla login after the login start, or
// after the encryption response when the caller did the key exchange.
func (c *Client) FinishLogin() (*profile.Profile, *protocol.JoinGame, error) {
	for c.sess.State == protocol.StateLogin {
		m, err := c.Recv()
		if err != nil {
			return nil, nil, err
		}
		switch m := m.(type) {
		case *protocol.SetCompression:
			c.pipe.EnableCompression(int(m.Threshold))
		case *protocol.LoginSuccess:
			c.sess.Profile = &profile.Profile{ID: m.ID, Name: m.Username}
			c.sess.State = protocol.StatePlay
		case *protocol.EncryptionRequest:
			return nil, nil, ErrOnlineMode
		case *protocol.LoginDisconnect:
			return nil, nil, &DisconnectError{Reason: protocol.PlainText(m.Reason)}
		}
	}

	m, err := c.Await(protocol.KindJoinGame)
	if err != nil {
		return nil, nil, fmt.Errorf("could not recv join game: %w", err)
	}
	return c.sess.Profile, m.(*protocol.JoinGame), nil
}

// Chat says text. Everyone, the sender included, gets it back as ChatOut.
func (c *Client) Chat(text string) error {
	return c.Send(&protocol.ChatIn{Message: text})
}
