package server

import (
	"context"
	"encoding/base64"
	"net"
	"strings"

	"github.com/blukai/blockparty/internal/auth"
	"github.com/blukai/blockparty/internal/compress"
	"github.com/blukai/blockparty/internal/profile"
	"github.com/blukai/blockparty/internal/protocol"
	"github.com/blukai/blockparty/internal/protoerr"
	"github.com/blukai/blockparty/internal/proxy"
	"github.com/sugawarayuuta/sonnet"
)

const (
	maxUsernameLen = 16
	statusSample   = 12
)

func (s *Server) registerHandlers() {
	d := s.dispatcher

	d.Sync(protocol.KindHandshake, (*conn).onHandshake)

	d.Sync(protocol.KindStatusRequest, (*conn).onStatusRequest)
	d.Sync(protocol.KindStatusPing, (*conn).onStatusPing)

	d.Sync(protocol.KindLoginStart, (*conn).onLoginStart)
	d.Sync(protocol.KindEncryptionResponse, (*conn).onEncryptionResponse)
	d.Async(protocol.KindSessionVerify, s.verifySession)
	d.Sync(protocol.KindAuthResult, (*conn).onAuthResult)

	d.Sync(protocol.KindFMLClientHello, (*conn).onFMLClientHello)
	d.Sync(protocol.KindFMLModList, (*conn).onFMLModList)
	d.Sync(protocol.KindFMLAck, (*conn).onFMLAck)

	d.Sync(protocol.KindKeepAlive, (*conn).onKeepAlive)
}

// handshake

func (c *conn) onHandshake(m protocol.Message) error {
	h := m.(*protocol.Handshake)
	s := c.sess

	s.ProtocolVersion = h.ProtocolVersion
	s.Port = h.Port

	address := h.Address
	if i := strings.Index(address, protocol.FMLMarker); i >= 0 {
		s.Forge = true
		address = address[:i] + address[i+len(protocol.FMLMarker):]
	}

	switch h.NextState {
	case protocol.NextStateStatus:
		s.State = protocol.StateStatus
		s.VirtualHost = hostOnly(address)
		return nil
	case protocol.NextStateLogin:
		s.State = protocol.StateLogin
	default:
		return protoerr.Newf(protoerr.ErrStateViolation, "", "handshake asks for state %d", h.NextState)
	}

	if c.srv.config.ProxySupport {
		fwd, err := proxy.Parse(address, c.srv.config.ProxyToken)
		if err != nil {
			return err
		}
		c.forwarded = fwd
		c.addr = fwd.Addr(c.raw.RemoteAddr())
		s.RemoteAddr = c.addr
		s.Proxied = true
		s.VirtualHost = fwd.Host
		c.debug().
			Str("dialect", fwd.Dialect.String()).
			Str("addr", c.addr.String()).
			Msg("proxied connection")
	} else {
		s.VirtualHost = hostOnly(address)
	}

	if h.ProtocolVersion != protocol.Version {
		reason := "Outdated server! I'm still on " + protocol.VersionName
		if h.ProtocolVersion < protocol.Version {
			reason = "Outdated client! Please use " + protocol.VersionName
		}
		c.sendDisconnect(reason)
		return errHangUp
	}
	return nil
}

func hostOnly(address string) string {
	if i := strings.IndexByte(address, 0); i >= 0 {
		return address[:i]
	}
	return address
}

// status

type statusVersion struct {
	Name     string `json:"name"`
	Protocol int    `json:"protocol"`
}

type statusPlayer struct {
	Name string `json:"name"`
	ID   string `json:"id"`
}

type statusPlayers struct {
	Max    int            `json:"max"`
	Online int            `json:"online"`
	Sample []statusPlayer `json:"sample,omitempty"`
}

type statusDescription struct {
	Text string `json:"text"`
}

type statusResponse struct {
	Version     statusVersion     `json:"version"`
	Players     statusPlayers     `json:"players"`
	Description statusDescription `json:"description"`
	Favicon     string            `json:"favicon,omitempty"`
}

func (c *conn) onStatusRequest(protocol.Message) error {
	if c.statusSent {
		return protoerr.Newf(protoerr.ErrStateViolation, "", "second status request")
	}
	c.statusSent = true

	meta := c.srv.game

	resp := statusResponse{
		Version: statusVersion{Name: protocol.VersionName, Protocol: protocol.Version},
		Players: statusPlayers{
			Max:    meta.MaxPlayers(),
			Online: meta.Online(),
		},
		Description: statusDescription{Text: meta.MOTD()},
	}
	for _, p := range meta.Sample(statusSample) {
		resp.Players.Sample = append(resp.Players.Sample, statusPlayer{Name: p.Name, ID: p.ID.String()})
	}
	if favicon := meta.Favicon(); len(favicon) > 0 {
		resp.Favicon = "data:image/png;base64," + base64.StdEncoding.EncodeToString(favicon)
	}

	data, err := sonnet.Marshal(resp)
	if err != nil {
		return err
	}
	return c.send(&protocol.StatusResponse{JSON: string(data)})
}

func (c *conn) onStatusPing(m protocol.Message) error {
	if err := c.send(&protocol.StatusPong{Payload: m.(*protocol.StatusPing).Payload}); err != nil {
		return err
	}
	return errHangUp
}

// login

func (c *conn) onLoginStart(m protocol.Message) error {
	name := m.(*protocol.LoginStart).Username
	if name == "" || len(name) > maxUsernameLen {
		return protoerr.Newf(protoerr.ErrAuth, "Invalid username", "username %q", name)
	}
	if c.sess.Username != "" {
		return protoerr.Newf(protoerr.ErrStateViolation, "", "second login start")
	}
	c.sess.Username = name

	if c.forwarded != nil {
		p := *c.forwarded.Profile
		if p.Name == "" {
			p.Name = name
		}
		return c.completeLogin(&p)
	}

	if !c.srv.config.OnlineMode {
		return c.completeLogin(profile.Offline(name))
	}

	token, err := auth.NewVerifyToken()
	if err != nil {
		return err
	}
	sessionID, err := auth.NewSessionID()
	if err != nil {
		return err
	}
	c.sess.VerifyToken = token
	c.sess.SessionID = sessionID

	return c.send(&protocol.EncryptionRequest{
		ServerID:    sessionID,
		PublicKey:   c.srv.keys.Public(),
		VerifyToken: token,
	})
}

func (c *conn) onEncryptionResponse(m protocol.Message) error {
	if c.sess.VerifyToken == nil {
		return protoerr.Newf(protoerr.ErrStateViolation, "", "encryption response without request")
	}
	resp := m.(*protocol.EncryptionResponse)

	secret, err := c.srv.keys.Exchange(resp.SharedSecret, resp.VerifyToken, c.sess.VerifyToken)
	c.sess.VerifyToken = nil
	if err != nil {
		return err
	}
	if err := c.pipe.EnableEncryption(secret); err != nil {
		return err
	}

	verify := &protocol.SessionVerify{
		Username:   c.sess.Username,
		ServerHash: auth.ServerHash(c.sess.SessionID, secret, c.srv.keys.Public()),
	}
	if c.srv.config.PreventProxy {
		verify.IP = remoteIP(c.addr)
	}
	return c.handle(c.ctx, verify)
}

func remoteIP(addr net.Addr) string {
	host, _, err := net.SplitHostPort(addr.String())
	if err != nil {
		return addr.String()
	}
	return host
}

// verifySession runs on the worker pool.
func (s *Server) verifySession(ctx context.Context, m protocol.Message) (protocol.Message, error) {
	v := m.(*protocol.SessionVerify)
	p, err := s.sessions.HasJoined(ctx, v.Username, v.ServerHash, v.IP)
	return &protocol.AuthResult{Profile: p, Err: err}, nil
}

func (c *conn) onAuthResult(m protocol.Message) error {
	result := m.(*protocol.AuthResult)
	if result.Err != nil {
		return result.Err
	}
	c.debug().
		Str("name", result.Profile.Name).
		Str("id", result.Profile.ID.String()).
		Msg("authenticated")
	return c.completeLogin(result.Profile)
}

func (c *conn) completeLogin(p *profile.Profile) error {
	c.sess.Profile = p
	c.profile = p

	if threshold := c.srv.config.CompressionThreshold; threshold != compress.Disabled {
		if err := c.send(&protocol.SetCompression{Threshold: int32(threshold)}); err != nil {
			return err
		}
		c.pipe.EnableCompression(threshold)
	}
	if err := c.send(&protocol.LoginSuccess{ID: p.ID, Username: p.Name}); err != nil {
		return err
	}

	if c.sess.Forge {
		c.sess.State = protocol.StateForgeHandshake
		if err := c.send(protocol.RegisterChannels(
			protocol.ChannelFMLHandshake,
			protocol.ChannelFMLMultiPart,
		)); err != nil {
			return err
		}
		return c.send(&protocol.FMLServerHello{ProtocolVersion: protocol.FMLProtocolVersion})
	}
	return c.enterPlay()
}

func (c *conn) enterPlay() error {
	c.sess.State = protocol.StatePlay

	join, err := c.srv.game.Join(c)
	if err != nil {
		return err
	}
	c.joined = true
	c.debug().Str("name", c.profile.Name).Msg("joined")
	return c.send(join)
}

// forge handshake

func (c *conn) onFMLClientHello(m protocol.Message) error {
	hello := m.(*protocol.FMLClientHello)
	if hello.ProtocolVersion != protocol.FMLProtocolVersion {
		return protoerr.Newf(protoerr.ErrStateViolation, "Unsupported Forge version",
			"forge protocol %d", hello.ProtocolVersion)
	}
	return nil
}

func (c *conn) onFMLModList(m protocol.Message) error {
	c.sess.Mods = m.(*protocol.FMLModList).Mods
	if err := c.send(&protocol.FMLModList{}); err != nil {
		return err
	}
	return c.send(&protocol.FMLAck{Phase: protocol.FMLServerWaitingCAck})
}

func (c *conn) onFMLAck(m protocol.Message) error {
	switch m.(*protocol.FMLAck).Phase {
	case protocol.FMLClientPendingComplete:
		return c.send(&protocol.FMLAck{Phase: protocol.FMLServerComplete})
	case protocol.FMLClientComplete:
		return c.enterPlay()
	}
	return nil
}

// shared by forge handshake and play

func (c *conn) onKeepAlive(m protocol.Message) error {
	if id := m.(*protocol.KeepAlive).ID; id != c.sess.KeepAliveID {
		c.debug().Int64("id", id).Msg("unexpected keep alive")
	}
	return nil
}
