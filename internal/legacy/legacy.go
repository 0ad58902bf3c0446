// Package legacy recognizes the unframed ping and login packets of clients
// older than the netty rewrite and answers them with a kick packet. It sits in
// front of the framing codec until the first bytes prove the peer modern.
package legacy

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/blukai/blockparty/internal/byteorder"
	"golang.org/x/text/encoding/unicode"
)

const (
	markerPing  = 0xFE
	markerLogin = 0x02
	markerKick  = 0xFF

	pingPayload   = 0x01
	pluginMessage = 0xFA

	pingHostChannel = "MC|PingHost"
)

type Verdict uint8

const (
	// NeedMore means the buffered bytes could still go either way.
	NeedMore Verdict = iota
	// Legacy means the connection must be answered with Response and
	// closed. The bytes never reach the framing codec.
	Legacy
	// Modern means the buffered bytes belong to the framed protocol.
	Modern
)

func (v Verdict) String() string {
	switch v {
	case NeedMore:
		return "need_more"
	case Legacy:
		return "legacy"
	default:
		return "modern"
	}
}

// Dialect is which old client generation sent the bytes.
type Dialect uint8

const (
	// Beta is a bare 0xFE from beta 1.8 up to 1.3.
	Beta Dialect = iota + 1
	// Ping14 is 0xFE 0x01 from 1.4 and 1.5.
	Ping14
	// Ping16 is 0xFE 0x01 followed by an MC|PingHost plugin message.
	Ping16
	// Login is the 0x02 handshake of pre-netty clients.
	Login
)

func (d Dialect) String() string {
	switch d {
	case Beta:
		return "beta"
	case Ping14:
		return "1.4"
	case Ping16:
		return "1.6"
	case Login:
		return "login"
	default:
		return "dialect(" + strconv.Itoa(int(d)) + ")"
	}
}

// Request is what could be learned from a legacy packet.
type Request struct {
	Dialect Dialect
	// set for Ping16 only
	ProtocolVersion uint8
	Host            string
	Port            int32
}

// Info is what a legacy ping shows.
type Info struct {
	MOTD            string
	Online          int
	Max             int
	ProtocolVersion int
	VersionName     string
}

// Sniff classifies the first bytes of a connection. It never consumes
// anything; on Modern the caller replays buf into the framing codec.
//
// NOTE(blukai): like the vanilla server, a lone 0xFE or 0xFE 0x01 is taken to
// be a whole ping when nothing else arrived with it.
func Sniff(buf []byte) (Verdict, Request) {
	if len(buf) == 0 {
		return NeedMore, Request{}
	}

	switch buf[0] {
	case markerLogin:
		// a modern handshake frame is never 2 bytes long
		return Legacy, Request{Dialect: Login}
	case markerPing:
	default:
		return Modern, Request{}
	}

	if len(buf) == 1 {
		return Legacy, Request{Dialect: Beta}
	}
	if buf[1] != pingPayload {
		return Modern, Request{}
	}
	if len(buf) == 2 {
		return Legacy, Request{Dialect: Ping14}
	}
	if buf[2] != pluginMessage {
		return Modern, Request{}
	}

	req, complete := parsePingHost(buf[3:])
	if !complete {
		return NeedMore, Request{}
	}
	return Legacy, req
}

// parsePingHost reads the MC|PingHost body that follows 0xFE 0x01 0xFA.
func parsePingHost(buf []byte) (req Request, complete bool) {
	req.Dialect = Ping16

	channel, buf, ok := readString(buf)
	if !ok {
		return req, false
	}
	if len(buf) < 2 {
		return req, false
	}
	length := int(byteorder.Ntohs(buf))
	buf = buf[2:]
	if len(buf) < length {
		return req, false
	}
	if channel != pingHostChannel || length < 7 {
		// complete but not something we can read, answer anyway
		return req, true
	}

	data := buf[:length]
	req.ProtocolVersion = data[0]
	host, rest, ok := readString(data[1:])
	if ok && len(rest) >= 4 {
		req.Host = host
		req.Port = int32(byteorder.Ntohl(rest))
	}
	return req, true
}

// readString reads a u16 char count followed by utf-16be chars.
func readString(buf []byte) (s string, rest []byte, ok bool) {
	if len(buf) < 2 {
		return "", nil, false
	}
	n := int(byteorder.Ntohs(buf)) * 2
	buf = buf[2:]
	if len(buf) < n {
		return "", nil, false
	}
	decoded, err := utf16be.NewDecoder().Bytes(buf[:n])
	if err != nil {
		return "", buf[n:], true
	}
	return string(decoded), buf[n:], true
}

var utf16be = unicode.UTF16(unicode.BigEndian, unicode.IgnoreBOM)

// Response builds the kick packet answering req.
func Response(req Request, info Info) ([]byte, error) {
	var text string
	switch req.Dialect {
	case Beta:
		// the separator may not appear in the motd
		motd := strings.ReplaceAll(info.MOTD, "§", "")
		text = fmt.Sprintf("%s§%d§%d", motd, info.Online, info.Max)
	case Ping14, Ping16:
		text = strings.Join([]string{
			"§1",
			strconv.Itoa(info.ProtocolVersion),
			info.VersionName,
			info.MOTD,
			strconv.Itoa(info.Online),
			strconv.Itoa(info.Max),
		}, "\x00")
	case Login:
		text = "Outdated client! Please use " + info.VersionName
	default:
		return nil, fmt.Errorf("unknown legacy dialect %s", req.Dialect)
	}
	return Kick(text)
}

// Kick encodes the pre-netty disconnect packet: 0xFF, the length in utf-16
// units and the utf-16be text.
func Kick(text string) ([]byte, error) {
	encoded, err := utf16be.NewEncoder().Bytes([]byte(text))
	if err != nil {
		return nil, fmt.Errorf("could not encode kick message: %w", err)
	}
	if len(encoded)/2 > 0xffff {
		return nil, fmt.Errorf("kick message is too long")
	}

	out := make([]byte, 0, 3+len(encoded))
	out = append(out, markerKick)
	out = byteorder.AppendHtons(out, uint16(len(encoded)/2))
	return append(out, encoded...), nil
}

// Sniffer buffers the first bytes of a connection until Sniff can decide.
type Sniffer struct {
	buf []byte
}

// Feed adds data and classifies everything buffered so far.
func (s *Sniffer) Feed(data []byte) (Verdict, Request) {
	s.buf = append(s.buf, data...)
	return Sniff(s.buf)
}

// Buffered hands back the bytes seen so far, for replay into the framing
// codec.
func (s *Sniffer) Buffered() []byte {
	return s.buf
}
