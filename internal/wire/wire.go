// Package wire reads and writes the primitive field types of the protocol:
// varints, length-prefixed strings and byte arrays, big-endian integers and
// uuids.
package wire

import (
	"errors"
	"fmt"
	"math"

	"github.com/blukai/blockparty/internal/byteorder"
	"github.com/google/uuid"
)

const (
	MaxVarIntLen = 5
	// MaxStringLen is counted in bytes, not in utf-16 units.
	MaxStringLen = 32767 * 4
	MaxBytesLen  = 1 << 21
)

var (
	ErrVarIntTooBig = errors.New("varint is too big")
	ErrShort        = errors.New("not enough bytes")
	ErrTooLong      = errors.New("length exceeds limit")
)

// VarIntLen returns the number of bytes v occupies when varint encoded.
func VarIntLen(v int32) int {
	u := uint32(v)
	n := 1
	for u >= 0x80 {
		u >>= 7
		n++
	}
	return n
}

func AppendVarInt(dst []byte, v int32) []byte {
	u := uint32(v)
	for u >= 0x80 {
		dst = append(dst, byte(u)|0x80)
		u >>= 7
	}
	return append(dst, byte(u))
}

// PeekVarInt decodes a varint from the start of buf without consuming it.
// n is 0 when buf ends before the varint does.
func PeekVarInt(buf []byte) (v int32, n int, err error) {
	var u uint32
	for i := 0; i < MaxVarIntLen; i++ {
		if i >= len(buf) {
			return 0, 0, nil
		}
		b := buf[i]
		u |= uint32(b&0x7f) << (7 * i)
		if b&0x80 == 0 {
			return int32(u), i + 1, nil
		}
	}
	return 0, 0, ErrVarIntTooBig
}

type Writer struct {
	buf []byte
}

func NewWriter(capacity int) *Writer {
	return &Writer{buf: make([]byte, 0, capacity)}
}

func (w *Writer) Bytes() []byte { return w.buf }
func (w *Writer) Len() int      { return len(w.buf) }

func (w *Writer) VarInt(v int32) { w.buf = AppendVarInt(w.buf, v) }
func (w *Writer) Uint8(v uint8)  { w.buf = append(w.buf, v) }
func (w *Writer) Int8(v int8)    { w.buf = append(w.buf, byte(v)) }
func (w *Writer) Uint16(v uint16) {
	w.buf = byteorder.AppendHtons(w.buf, v)
}
func (w *Writer) Int32(v int32) { w.buf = byteorder.AppendHtonl(w.buf, uint32(v)) }
func (w *Writer) Int64(v int64) { w.buf = byteorder.AppendHtonll(w.buf, uint64(v)) }
func (w *Writer) Float32(v float32) {
	w.buf = byteorder.AppendHtonl(w.buf, math.Float32bits(v))
}

func (w *Writer) Bool(v bool) {
	if v {
		w.buf = append(w.buf, 1)
	} else {
		w.buf = append(w.buf, 0)
	}
}

func (w *Writer) String(s string) {
	w.VarInt(int32(len(s)))
	w.buf = append(w.buf, s...)
}

// ByteArray writes a varint length prefix followed by b.
func (w *Writer) ByteArray(b []byte) {
	w.VarInt(int32(len(b)))
	w.buf = append(w.buf, b...)
}

// Raw writes b with no length prefix.
func (w *Writer) Raw(b []byte) { w.buf = append(w.buf, b...) }

func (w *Writer) UUID(id uuid.UUID) { w.buf = append(w.buf, id[:]...) }

// Reader consumes a fully buffered frame body. The first failure sticks; later
// reads return zero values and Err reports it.
type Reader struct {
	buf []byte
	pos int
	err error
}

func NewReader(buf []byte) *Reader {
	return &Reader{buf: buf}
}

func (r *Reader) Err() error     { return r.err }
func (r *Reader) Remaining() int { return len(r.buf) - r.pos }

func (r *Reader) fail(err error) {
	if r.err == nil {
		r.err = err
	}
}

func (r *Reader) take(n int) []byte {
	if r.err != nil {
		return nil
	}
	if n < 0 || r.Remaining() < n {
		r.fail(fmt.Errorf("%w: want %d, have %d", ErrShort, n, r.Remaining()))
		return nil
	}
	b := r.buf[r.pos : r.pos+n]
	r.pos += n
	return b
}

func (r *Reader) VarInt() int32 {
	if r.err != nil {
		return 0
	}
	v, n, err := PeekVarInt(r.buf[r.pos:])
	if err != nil {
		r.fail(err)
		return 0
	}
	if n == 0 {
		r.fail(fmt.Errorf("%w: truncated varint", ErrShort))
		return 0
	}
	r.pos += n
	return v
}

func (r *Reader) Uint8() uint8 {
	b := r.take(1)
	if b == nil {
		return 0
	}
	return b[0]
}

func (r *Reader) Int8() int8 { return int8(r.Uint8()) }

func (r *Reader) Uint16() uint16 {
	b := r.take(2)
	if b == nil {
		return 0
	}
	return byteorder.Ntohs(b)
}

func (r *Reader) Int32() int32 {
	b := r.take(4)
	if b == nil {
		return 0
	}
	return int32(byteorder.Ntohl(b))
}

func (r *Reader) Int64() int64 {
	b := r.take(8)
	if b == nil {
		return 0
	}
	return int64(byteorder.Ntohll(b))
}

func (r *Reader) Float32() float32 {
	b := r.take(4)
	if b == nil {
		return 0
	}
	return math.Float32frombits(byteorder.Ntohl(b))
}

func (r *Reader) Bool() bool { return r.Uint8() != 0 }

func (r *Reader) String() string {
	n := r.VarInt()
	if r.err == nil && (n < 0 || n > MaxStringLen) {
		r.fail(fmt.Errorf("%w: string of %d bytes", ErrTooLong, n))
	}
	return string(r.take(int(n)))
}

// ByteArray reads a varint-prefixed byte array into a fresh slice.
func (r *Reader) ByteArray() []byte {
	n := r.VarInt()
	if r.err == nil && (n < 0 || n > MaxBytesLen) {
		r.fail(fmt.Errorf("%w: byte array of %d bytes", ErrTooLong, n))
	}
	return clone(r.take(int(n)))
}

// Rest consumes everything that is left.
func (r *Reader) Rest() []byte {
	return clone(r.take(r.Remaining()))
}

func (r *Reader) UUID() uuid.UUID {
	var id uuid.UUID
	copy(id[:], r.take(16))
	return id
}

// Done fails the reader when bytes are left over; a codec that does not
// consume its whole frame body disagrees with the peer about the layout.
func (r *Reader) Done() error {
	if r.err == nil && r.Remaining() != 0 {
		r.fail(fmt.Errorf("%d trailing bytes", r.Remaining()))
	}
	return r.err
}

func clone(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
