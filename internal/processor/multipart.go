package processor

import (
	"fmt"

	"github.com/blukai/blockparty/internal/protocol"
	"github.com/blukai/blockparty/internal/protoerr"
	"github.com/blukai/blockparty/internal/session"
	"github.com/blukai/blockparty/internal/wire"
)

const (
	MaxParts = 255
	// MaxMultiPartLength bounds what a peer may announce.
	MaxMultiPartLength = 16 << 20
	// DefaultPartSize keeps each part below the clientbound plugin message
	// limit with room for the index byte.
	DefaultPartSize = 1<<20 - 2
)

// MultiPartHeader is the first FML|MP message: which channel the payload
// belongs to, how many parts follow and how long it is in total.
func MultiPartHeader(channel string, parts, length int) *protocol.PluginMessage {
	w := wire.NewWriter(8 + len(channel))
	w.String(channel)
	w.Uint8(uint8(parts))
	w.Int32(int32(length))
	return &protocol.PluginMessage{Channel: protocol.ChannelFMLMultiPart, Data: w.Bytes()}
}

// MultiPartData is one numbered part.
func MultiPartData(index int, chunk []byte) *protocol.PluginMessage {
	data := make([]byte, 0, 1+len(chunk))
	data = append(data, uint8(index))
	data = append(data, chunk...)
	return &protocol.PluginMessage{Channel: protocol.ChannelFMLMultiPart, Data: data}
}

// Reassemble collects FML|MP parts on the session and emits the original
// plugin message once the last part arrived. Anything out of order or past
// the announced size ends the connection.
type Reassemble struct {
	MaxLength int
}

func (p Reassemble) Process(s *session.Session, m protocol.Message) ([]protocol.Message, error) {
	pm, ok := m.(*protocol.PluginMessage)
	if !ok || pm.Channel != protocol.ChannelFMLMultiPart {
		return one(m), nil
	}

	maxLength := p.MaxLength
	if maxLength <= 0 {
		maxLength = MaxMultiPartLength
	}

	if s.MultiPart == nil {
		r := wire.NewReader(pm.Data)
		channel := r.String()
		parts := int(r.Uint8())
		length := int(r.Int32())
		if err := r.Done(); err != nil {
			return nil, protoerr.New(protoerr.ErrReassembly, "", fmt.Errorf("bad header: %w", err))
		}
		if parts < 1 {
			return nil, protoerr.Newf(protoerr.ErrReassembly, "", "header announces %d parts", parts)
		}
		if length <= 0 || length > maxLength {
			return nil, protoerr.Newf(protoerr.ErrReassembly, "", "header announces %d bytes (limit %d)", length, maxLength)
		}
		s.MultiPart = &session.MultiPart{
			Channel: channel,
			Parts:   parts,
			Length:  length,
			Data:    make([]byte, 0, length),
		}
		return nil, nil
	}

	mp := s.MultiPart
	if len(pm.Data) == 0 {
		return nil, protoerr.Newf(protoerr.ErrReassembly, "", "part without index")
	}
	index := int(pm.Data[0])
	if index != mp.Next {
		return nil, protoerr.Newf(protoerr.ErrReassembly, "", "got part %d, expected %d", index, mp.Next)
	}
	if index >= mp.Parts {
		return nil, protoerr.Newf(protoerr.ErrReassembly, "", "part %d of %d", index, mp.Parts)
	}
	chunk := pm.Data[1:]
	if len(mp.Data)+len(chunk) > mp.Length {
		return nil, protoerr.Newf(protoerr.ErrReassembly, "", "parts exceed announced %d bytes", mp.Length)
	}
	mp.Data = append(mp.Data, chunk...)
	mp.Next++

	if mp.Next < mp.Parts {
		return nil, nil
	}
	s.MultiPart = nil
	if len(mp.Data) != mp.Length {
		return nil, protoerr.Newf(protoerr.ErrReassembly, "", "reassembled %d bytes, announced %d", len(mp.Data), mp.Length)
	}
	return one(&protocol.PluginMessage{Channel: mp.Channel, Data: mp.Data}), nil
}

// Split breaks an oversized outgoing plugin message into FML|MP parts, but
// only for peers that registered the FML|MP channel.
type Split struct {
	PartSize int
}

func (p Split) Process(s *session.Session, m protocol.Message) ([]protocol.Message, error) {
	pm, ok := m.(*protocol.PluginMessage)
	if !ok {
		return one(m), nil
	}

	partSize := p.PartSize
	if partSize <= 0 {
		partSize = DefaultPartSize
	}
	if len(pm.Data) <= partSize || !s.HasChannel(protocol.ChannelFMLMultiPart) {
		return one(m), nil
	}

	parts := (len(pm.Data) + partSize - 1) / partSize
	if parts > MaxParts {
		return nil, fmt.Errorf("%w: %d byte payload needs %d parts", protoerr.ErrEncoder, len(pm.Data), parts)
	}

	out := make([]protocol.Message, 0, parts+1)
	out = append(out, MultiPartHeader(pm.Channel, parts, len(pm.Data)))
	for i := 0; i < parts; i++ {
		end := min((i+1)*partSize, len(pm.Data))
		out = append(out, MultiPartData(i, pm.Data[i*partSize:end]))
	}
	return out, nil
}
