// Package pipeline turns one connection's byte stream into processed messages
// and outgoing messages back into bytes.
//
//	inbound:  bytes -> decrypt -> frame -> decompress -> opcode+body -> processors
//	outbound: message -> cache -> processors -> opcode+body -> compress -> frame -> encrypt
//
// A Pipeline belongs to the loop that owns its session and is not safe for
// concurrent use. The only state it shares with other connections is the
// message cache.
package pipeline

import (
	"crypto/cipher"
	"encoding"
	"fmt"
	"io"

	"github.com/blukai/blockparty/internal/cache"
	"github.com/blukai/blockparty/internal/cfb8"
	"github.com/blukai/blockparty/internal/compress"
	"github.com/blukai/blockparty/internal/frame"
	"github.com/blukai/blockparty/internal/processor"
	"github.com/blukai/blockparty/internal/protocol"
	"github.com/blukai/blockparty/internal/protoerr"
	"github.com/blukai/blockparty/internal/registry"
	"github.com/blukai/blockparty/internal/session"
	"github.com/blukai/blockparty/internal/wire"
	"github.com/phuslu/log"
)

// Side says which end of the connection the pipeline runs on.
type Side uint8

const (
	Server Side = iota
	Client
)

type Options struct {
	Side  Side
	Table *registry.Table
	// Cache is optional; nil disables caching.
	Cache *cache.Cache
	// Raw skips the processor chains in both directions. Clients and tests
	// that want to see the wire messages as they are set it.
	Raw    bool
	Logger *log.Logger
}

type warnKey struct {
	state  protocol.State
	opcode int32
}

type Pipeline struct {
	sess   *session.Session
	table  *registry.Table
	cache  *cache.Cache
	raw    bool
	logger *log.Logger

	in, out protocol.Direction

	// buf holds received bytes that are already decrypted but not yet
	// framed.
	buf     []byte
	pending []protocol.Message

	comp *compress.Codec
	enc  cipher.Stream
	dec  cipher.Stream

	warned map[warnKey]struct{}
}

func New(sess *session.Session, opts Options) *Pipeline {
	logger := opts.Logger
	// if logger is nil (which might be true in tests) => use default, but
	// silenced logger
	if logger == nil {
		tmp := log.DefaultLogger
		logger = &tmp
		logger.Writer = &log.IOWriter{Writer: io.Discard}
	}

	in, out := protocol.Serverbound, protocol.Clientbound
	if opts.Side == Client {
		in, out = out, in
	}

	return &Pipeline{
		sess:   sess,
		table:  opts.Table,
		cache:  opts.Cache,
		raw:    opts.Raw,
		logger: logger,
		in:     in,
		out:    out,
		comp:   compress.New(compress.Disabled),
		warned: make(map[warnKey]struct{}),
	}
}

func (p *Pipeline) Session() *session.Session { return p.sess }

// Feed appends received bytes. They are decrypted right away when the cipher
// is active.
func (p *Pipeline) Feed(data []byte) {
	start := len(p.buf)
	p.buf = append(p.buf, data...)
	if p.dec != nil {
		p.dec.XORKeyStream(p.buf[start:], p.buf[start:])
	}
}

// Buffered is the number of received bytes not yet decoded into frames.
func (p *Pipeline) Buffered() int { return len(p.buf) }

// Next returns the next inbound message, or nil when more bytes are needed.
//
// Frames are decoded one at a time so that a state switch, or cipher and
// compression activation, made while handling a message applies to the very
// next frame.
func (p *Pipeline) Next() (protocol.Message, error) {
	for len(p.pending) == 0 {
		ok, err := p.decodeFrame()
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, nil
		}
	}

	m := p.pending[0]
	p.pending[0] = nil
	p.pending = p.pending[1:]
	if err := p.Check(m); err != nil {
		p.pending = nil
		return nil, err
	}
	return m, nil
}

// Check fails with ErrStateViolation when m may not arrive in the current
// state. Messages injected from outside the byte stream go through it too.
func (p *Pipeline) Check(m protocol.Message) error {
	if !p.table.Permits(p.sess.State, p.in, m.Kind()) {
		return protoerr.Newf(protoerr.ErrStateViolation, "", "%s is not allowed in %s", m.Kind(), p.sess.State)
	}
	return nil
}

// decodeFrame consumes at most one frame. ok is false when buf does not hold a
// complete one.
func (p *Pipeline) decodeFrame() (ok bool, err error) {
	sub, n, err := frame.Split(p.buf)
	if err != nil {
		return false, err
	}
	if n == 0 {
		return false, nil
	}
	p.consume(n)

	payload, err := p.comp.Decode(sub)
	if err != nil {
		return false, err
	}

	opcode, n, err := wire.PeekVarInt(payload)
	if err != nil || n == 0 {
		return false, protoerr.Newf(protoerr.ErrFraming, "", "could not read opcode")
	}

	state := p.sess.State
	reg, found := p.table.ByOpcode(state, p.in, opcode)
	if !found {
		if p.table.KnownOpcode(p.in, opcode) {
			return false, protoerr.Newf(protoerr.ErrStateViolation, "", "opcode 0x%02x is not valid in %s", opcode, state)
		}
		p.warnUnknown(state, opcode)
		return true, nil
	}

	m, err := reg.Decode(payload[n:])
	if err != nil {
		return false, protoerr.New(protoerr.ErrFraming, "", err)
	}

	for _, part := range flatten(m) {
		if err := p.process(part); err != nil {
			return false, err
		}
	}
	return true, nil
}

func (p *Pipeline) process(m protocol.Message) error {
	if p.raw {
		p.pending = append(p.pending, m)
		return nil
	}
	reg, ok := p.table.ByKind(p.sess.State, p.in, m.Kind())
	if !ok {
		return protoerr.Newf(protoerr.ErrStateViolation, "", "%s is not allowed in %s", m.Kind(), p.sess.State)
	}
	out, err := processor.Run(reg.Processors, p.sess, m)
	if err != nil {
		return err
	}
	p.pending = append(p.pending, out...)
	return nil
}

func (p *Pipeline) warnUnknown(state protocol.State, opcode int32) {
	key := warnKey{state, opcode}
	if _, ok := p.warned[key]; ok {
		return
	}
	p.warned[key] = struct{}{}
	p.logger.Warn().
		Str("state", state.String()).
		Int("opcode", int(opcode)).
		Msg("dropping frame with unknown opcode")
}

// consume drops n bytes from the front of buf. It never moves the bytes that
// remain, decoded messages may still point into the frames before them.
func (p *Pipeline) consume(n int) {
	p.buf = p.buf[n:]
	if len(p.buf) == 0 {
		p.buf = nil
	}
}

// Encode turns m into bytes ready for the socket.
func (p *Pipeline) Encode(m protocol.Message) ([]byte, error) {
	var out []byte
	for _, part := range flatten(m) {
		b, err := p.encodeOne(part)
		if err != nil {
			return nil, err
		}
		out = append(out, b...)
	}
	// NOTE(blukai): out is always a fresh copy, cache entries stay
	// untouched when it is encrypted in place.
	if p.enc != nil {
		p.enc.XORKeyStream(out, out)
	}
	return out, nil
}

func (p *Pipeline) caps() cache.Caps {
	return cache.Caps{
		State:     p.sess.State,
		Threshold: p.comp.Threshold(),
		MultiPart: p.sess.HasChannel(protocol.ChannelFMLMultiPart),
	}
}

func (p *Pipeline) encodeOne(m protocol.Message) ([]byte, error) {
	if _, ok := p.table.ByKind(p.sess.State, p.out, m.Kind()); !ok {
		return nil, fmt.Errorf("%w: %s is not registered for %s %s", protoerr.ErrEncoder, m.Kind(), p.sess.State, p.out)
	}

	var (
		key     cache.Key
		content []byte
		cached  bool
	)
	if p.cache != nil && !p.raw {
		key, content, cached = cache.KeyOf(m, p.caps())
		if cached {
			if e, ok := p.cache.Get(key, content); ok {
				return e.Bytes, nil
			}
		}
	}

	msgs := []protocol.Message{m}
	if !p.raw {
		reg, _ := p.table.ByKind(p.sess.State, p.out, m.Kind())
		var err error
		msgs, err = processor.Run(reg.Processors, p.sess, m)
		if err != nil {
			return nil, err
		}
	}

	var out []byte
	for _, msg := range msgs {
		var err error
		out, err = p.appendFrame(out, msg)
		if err != nil {
			return nil, err
		}
	}

	if cached {
		// another connection may have stored the same key meanwhile; both
		// results are equal, keep the first
		e := p.cache.Store(key, &cache.Entry{Content: content, Messages: msgs, Bytes: out})
		return e.Bytes, nil
	}
	return out, nil
}

func (p *Pipeline) appendFrame(dst []byte, m protocol.Message) ([]byte, error) {
	reg, ok := p.table.ByKind(p.sess.State, p.out, m.Kind())
	if !ok || reg.Opcode == registry.NoOpcode {
		return nil, fmt.Errorf("%w: %s has no opcode in %s %s", protoerr.ErrEncoder, m.Kind(), p.sess.State, p.out)
	}
	marshaler, ok := m.(encoding.BinaryMarshaler)
	if !ok {
		return nil, fmt.Errorf("%w: %s can not be marshaled", protoerr.ErrEncoder, m.Kind())
	}
	body, err := marshaler.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("%w: could not marshal %s: %v", protoerr.ErrEncoder, m.Kind(), err)
	}

	payload := make([]byte, 0, wire.VarIntLen(reg.Opcode)+len(body))
	payload = wire.AppendVarInt(payload, reg.Opcode)
	payload = append(payload, body...)

	sub, err := p.comp.Encode(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", protoerr.ErrEncoder, err)
	}
	return frame.Append(dst, sub)
}

// EnableCompression switches both directions to the threshold. The caller
// sends SetCompression before calling it.
func (p *Pipeline) EnableCompression(threshold int) {
	_ = p.comp.Close()
	p.comp = compress.New(threshold)
	p.sess.CompressionThreshold = threshold
}

// EnableEncryption activates the cipher for everything after the frame that
// is currently being handled. Bytes that already arrived but were not framed
// yet are decrypted in place.
func (p *Pipeline) EnableEncryption(secret []byte) error {
	if p.enc != nil {
		return protoerr.Newf(protoerr.ErrStateViolation, "", "encryption is already enabled")
	}
	enc, dec, err := cfb8.NewPair(secret)
	if err != nil {
		return protoerr.New(protoerr.ErrDecryption, "", err)
	}
	p.enc, p.dec = enc, dec
	p.dec.XORKeyStream(p.buf, p.buf)
	p.sess.Encrypted = true
	return nil
}

// Close deactivates the cipher and drops everything in flight.
func (p *Pipeline) Close() error {
	p.enc, p.dec = nil, nil
	p.buf = nil
	p.pending = nil
	p.sess.Reset()
	return p.comp.Close()
}

func flatten(m protocol.Message) []protocol.Message {
	bulk, ok := m.(*protocol.Bulk)
	if !ok {
		return []protocol.Message{m}
	}
	var out []protocol.Message
	for _, part := range bulk.Messages {
		out = append(out, flatten(part)...)
	}
	return out
}
