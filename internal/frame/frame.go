// Package frame splits the byte stream into varint length-prefixed frames and
// joins payloads back into it.
package frame

import (
	"fmt"

	"github.com/blukai/blockparty/internal/protoerr"
	"github.com/blukai/blockparty/internal/wire"
)

// MaxLength is the largest body a three byte varint prefix can declare.
const MaxLength = 1<<21 - 1

// Split returns the first complete frame body in buf and the number of bytes
// it occupies including its prefix. n is 0 when buf does not yet hold a whole
// frame; nothing is consumed in that case.
func Split(buf []byte) (body []byte, n int, err error) {
	length, prefix, err := wire.PeekVarInt(buf)
	if err != nil {
		return nil, 0, protoerr.New(protoerr.ErrFraming, "", err)
	}
	if prefix == 0 {
		return nil, 0, nil
	}
	if length < 0 || length > MaxLength {
		return nil, 0, protoerr.Newf(protoerr.ErrFraming, "", "declared frame length %d out of range", length)
	}
	if length == 0 {
		return nil, 0, protoerr.Newf(protoerr.ErrFraming, "", "empty frame")
	}
	end := prefix + int(length)
	if len(buf) < end {
		return nil, 0, nil
	}
	return buf[prefix:end], end, nil
}

// Append writes payload to dst as one frame.
func Append(dst, payload []byte) ([]byte, error) {
	if len(payload) > MaxLength {
		return dst, fmt.Errorf("%w: payload of %d bytes does not fit a frame", protoerr.ErrEncoder, len(payload))
	}
	dst = wire.AppendVarInt(dst, int32(len(payload)))
	return append(dst, payload...), nil
}
