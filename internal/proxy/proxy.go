// Package proxy reads the player data a proxy forwards in the handshake
// address field. Two dialects exist: BungeeCord's null separated fields and a
// json envelope with a shared secret (LilyPad style).
package proxy

import (
	"crypto/subtle"
	"fmt"
	"net"
	"strings"

	"github.com/blukai/blockparty/internal/profile"
	"github.com/blukai/blockparty/internal/protoerr"
	"github.com/google/uuid"
	"github.com/sugawarayuuta/sonnet"
)

// GuardProperty is the profile property BungeeGuard puts the shared token in.
const GuardProperty = "bungeeguard-token"

type Dialect uint8

const (
	BungeeCord Dialect = iota + 1
	JSON
)

func (d Dialect) String() string {
	switch d {
	case BungeeCord:
		return "bungeecord"
	case JSON:
		return "json"
	default:
		return fmt.Sprintf("dialect(%d)", uint8(d))
	}
}

// Forwarded is what a proxy vouches for. Profile.Name is empty for
// BungeeCord; the name arrives with the login start.
type Forwarded struct {
	Dialect    Dialect
	Host       string
	RemoteIP   string
	RemotePort int
	Profile    *profile.Profile
}

// Addr is the player's address as the proxy saw it. BungeeCord does not
// forward the port, so socket's port is kept.
func (f *Forwarded) Addr(socket net.Addr) net.Addr {
	port := f.RemotePort
	if port == 0 {
		if tcp, ok := socket.(*net.TCPAddr); ok {
			port = tcp.Port
		}
	}
	return &net.TCPAddr{IP: net.ParseIP(f.RemoteIP), Port: port}
}

// Parse reads forwarded data from a handshake address. token is the shared
// secret the proxy must present; empty disables the check.
//
// NOTE(blukai): everything returned as an error is ErrProxyHeader. The
// detail is for the server log only.
func Parse(address, token string) (*Forwarded, error) {
	if strings.HasPrefix(address, "{") {
		return parseJSON(address, token)
	}
	return parseBungee(address, token)
}

func fail(format string, args ...any) error {
	return protoerr.Newf(protoerr.ErrProxyHeader, "", format, args...)
}

func parseBungee(address, token string) (*Forwarded, error) {
	fields := strings.Split(address, "\x00")
	if len(fields) != 3 && len(fields) != 4 {
		return nil, fail("expected 3 or 4 fields, got %d", len(fields))
	}

	id, err := uuid.Parse(fields[2])
	if err != nil {
		return nil, fail("bad uuid %q: %v", fields[2], err)
	}

	var props []profile.Property
	if len(fields) == 4 {
		if err := sonnet.Unmarshal([]byte(fields[3]), &props); err != nil {
			return nil, fail("bad properties: %v", err)
		}
	}

	var guard string
	kept := props[:0]
	for _, p := range props {
		if p.Name == GuardProperty {
			guard = p.Value
			continue
		}
		kept = append(kept, p)
	}
	if err := checkToken(guard, token); err != nil {
		return nil, err
	}

	if net.ParseIP(fields[1]) == nil {
		return nil, fail("bad remote ip %q", fields[1])
	}

	return &Forwarded{
		Dialect:  BungeeCord,
		Host:     fields[0],
		RemoteIP: fields[1],
		Profile:  &profile.Profile{ID: id, Properties: kept},
	}, nil
}

type envelope struct {
	Token      string `json:"s"`
	Host       string `json:"h"`
	RemoteIP   string `json:"rIp"`
	RemotePort int    `json:"rP"`
	Name       string `json:"n"`
	ID         string `json:"u"`
	Properties []struct {
		Name      string `json:"n"`
		Value     string `json:"v"`
		Signature string `json:"s"`
	} `json:"p"`
}

func parseJSON(address, token string) (*Forwarded, error) {
	var env envelope
	if err := sonnet.Unmarshal([]byte(address), &env); err != nil {
		return nil, fail("bad json envelope: %v", err)
	}
	if err := checkToken(env.Token, token); err != nil {
		return nil, err
	}
	if env.Name == "" {
		return nil, fail("envelope carries no name")
	}

	if net.ParseIP(env.RemoteIP) == nil {
		return nil, fail("bad remote ip %q", env.RemoteIP)
	}

	id, err := uuid.Parse(env.ID)
	if err != nil {
		return nil, fail("bad uuid %q: %v", env.ID, err)
	}

	props := make([]profile.Property, 0, len(env.Properties))
	for _, p := range env.Properties {
		props = append(props, profile.Property{Name: p.Name, Value: p.Value, Signature: p.Signature})
	}

	return &Forwarded{
		Dialect:    JSON,
		Host:       env.Host,
		RemoteIP:   env.RemoteIP,
		RemotePort: env.RemotePort,
		Profile:    &profile.Profile{ID: id, Name: env.Name, Properties: props},
	}, nil
}

func checkToken(got, want string) error {
	if want == "" {
		return nil
	}
	if got == "" {
		return fail("no security token")
	}
	if subtle.ConstantTimeCompare([]byte(got), []byte(want)) != 1 {
		return fail("security token mismatch")
	}
	return nil
}
