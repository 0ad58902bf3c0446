// Package compress implements the optional compression sub-frame: a varint
// holding the uncompressed size (0 when the body is sent as is) followed by
// a zlib stream or the raw body.
package compress

import (
	"bytes"
	"fmt"
	"io"

	"github.com/blukai/blockparty/internal/protoerr"
	"github.com/blukai/blockparty/internal/wire"
	"github.com/klauspost/compress/zlib"
)

// Disabled is the threshold value that turns the codec into a pass-through.
const Disabled = -1

// MaxUncompressed caps the size a peer may declare. 8 MiB matches what
// clients accept.
const MaxUncompressed = 1 << 23

// Codec holds one connection's deflate state. It is not safe for concurrent
// use; a connection encodes and decodes on its own loop.
type Codec struct {
	threshold int

	w   *zlib.Writer
	out bytes.Buffer
	r   io.ReadCloser
}

func New(threshold int) *Codec {
	return &Codec{threshold: threshold}
}

func (c *Codec) Threshold() int { return c.threshold }
func (c *Codec) Enabled() bool  { return c.threshold >= 0 }

// Decode turns a compression sub-frame back into the payload.
func (c *Codec) Decode(sub []byte) ([]byte, error) {
	if !c.Enabled() {
		return sub, nil
	}

	size, n, err := wire.PeekVarInt(sub)
	if err != nil || n == 0 {
		return nil, protoerr.Newf(protoerr.ErrCompression, "", "could not read uncompressed size")
	}
	body := sub[n:]

	if size == 0 {
		// NOTE(blukai): our own encoder sends incompressible bodies above
		// the threshold with a 0 marker, so the only bound here is the
		// global one.
		if len(body) > MaxUncompressed {
			return nil, protoerr.Newf(protoerr.ErrCompression, "", "uncompressed body of %d bytes is too big", len(body))
		}
		return body, nil
	}
	if int(size) < c.threshold {
		return nil, protoerr.Newf(protoerr.ErrCompression, "",
			"badly compressed packet: size %d is below threshold %d", size, c.threshold)
	}
	if size < 0 || size > MaxUncompressed {
		return nil, protoerr.Newf(protoerr.ErrCompression, "", "declared size %d out of range", size)
	}

	if err := c.resetReader(bytes.NewReader(body)); err != nil {
		return nil, protoerr.New(protoerr.ErrCompression, "", err)
	}

	out := make([]byte, size)
	if _, err := io.ReadFull(c.r, out); err != nil {
		return nil, protoerr.New(protoerr.ErrCompression, "",
			fmt.Errorf("inflated less than declared %d bytes: %w", size, err))
	}
	// a stream that still has data is longer than declared
	var extra [1]byte
	if n, _ := c.r.Read(extra[:]); n != 0 {
		return nil, protoerr.Newf(protoerr.ErrCompression, "", "inflated more than declared %d bytes", size)
	}
	return out, nil
}

func (c *Codec) resetReader(src io.Reader) error {
	if c.r == nil {
		r, err := zlib.NewReader(src)
		if err != nil {
			return err
		}
		c.r = r
		return nil
	}
	return c.r.(zlib.Resetter).Reset(src, nil)
}

// Encode wraps payload in a compression sub-frame. The result is never
// longer than sending the payload with a 0 marker.
func (c *Codec) Encode(payload []byte) ([]byte, error) {
	if !c.Enabled() {
		return payload, nil
	}

	plain := make([]byte, 0, 1+len(payload))
	plain = wire.AppendVarInt(plain, 0)
	plain = append(plain, payload...)
	if len(payload) < c.threshold {
		return plain, nil
	}

	c.out.Reset()
	if c.w == nil {
		w, err := zlib.NewWriterLevel(&c.out, zlib.DefaultCompression)
		if err != nil {
			return nil, err
		}
		c.w = w
	} else {
		c.w.Reset(&c.out)
	}
	if _, err := c.w.Write(payload); err != nil {
		return nil, fmt.Errorf("could not deflate: %w", err)
	}
	if err := c.w.Close(); err != nil {
		return nil, fmt.Errorf("could not deflate: %w", err)
	}

	compressed := wire.VarIntLen(int32(len(payload))) + c.out.Len()
	if compressed >= len(plain) {
		return plain, nil
	}
	sub := make([]byte, 0, compressed)
	sub = wire.AppendVarInt(sub, int32(len(payload)))
	return append(sub, c.out.Bytes()...), nil
}

// Close releases the inflater.
func (c *Codec) Close() error {
	if c.r == nil {
		return nil
	}
	err := c.r.Close()
	c.r = nil
	return err
}
