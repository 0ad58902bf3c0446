package wire_test

import (
	"errors"
	"math"
	"testing"

	"github.com/blukai/blockparty/internal/wire"
	"github.com/google/uuid"
	"github.com/matryer/is"
)

func TestVarIntEncoding(t *testing.T) {
	is := is.New(t)

	testCases := []struct {
		value int32
		bytes []byte
	}{
		{0, []byte{0x00}},
		{1, []byte{0x01}},
		{127, []byte{0x7f}},
		{128, []byte{0x80, 0x01}},
		{255, []byte{0xff, 0x01}},
		{25565, []byte{0xdd, 0xc7, 0x01}},
		{2097151, []byte{0xff, 0xff, 0x7f}},
		{math.MaxInt32, []byte{0xff, 0xff, 0xff, 0xff, 0x07}},
		{-1, []byte{0xff, 0xff, 0xff, 0xff, 0x0f}},
		{math.MinInt32, []byte{0x80, 0x80, 0x80, 0x80, 0x08}},
	}

	for _, tc := range testCases {
		encoded := wire.AppendVarInt(nil, tc.value)
		is.Equal(encoded, tc.bytes)
		is.Equal(wire.VarIntLen(tc.value), len(tc.bytes))

		decoded, n, err := wire.PeekVarInt(encoded)
		is.NoErr(err)
		is.Equal(n, len(tc.bytes))
		is.Equal(decoded, tc.value)
	}
}

func TestPeekVarIntIncomplete(t *testing.T) {
	is := is.New(t)

	_, n, err := wire.PeekVarInt([]byte{0x80, 0x80})
	is.NoErr(err)
	is.Equal(n, 0)

	_, _, err = wire.PeekVarInt([]byte{0x80, 0x80, 0x80, 0x80, 0x80, 0x01})
	is.True(errors.Is(err, wire.ErrVarIntTooBig))
}

func TestReaderWriter(t *testing.T) {
	is := is.New(t)

	id := uuid.MustParse("069a79f4-44e9-4726-a5be-fca90e38aaf5")

	w := wire.NewWriter(64)
	w.VarInt(340)
	w.String("localhost")
	w.Uint16(25565)
	w.Int32(-7)
	w.Int64(math.MinInt64)
	w.Float32(0.05)
	w.Bool(true)
	w.ByteArray([]byte{1, 2, 3})
	w.UUID(id)
	w.Raw([]byte("tail"))

	r := wire.NewReader(w.Bytes())
	is.Equal(r.VarInt(), int32(340))
	is.Equal(r.String(), "localhost")
	is.Equal(r.Uint16(), uint16(25565))
	is.Equal(r.Int32(), int32(-7))
	is.Equal(r.Int64(), int64(math.MinInt64))
	is.Equal(r.Float32(), float32(0.05))
	is.Equal(r.Bool(), true)
	is.Equal(r.ByteArray(), []byte{1, 2, 3})
	is.Equal(r.UUID(), id)
	is.Equal(r.Rest(), []byte("tail"))
	is.NoErr(r.Done())
}

func TestReaderShort(t *testing.T) {
	is := is.New(t)

	w := wire.NewWriter(8)
	w.VarInt(10) // string claims 10 bytes
	w.Raw([]byte("abc"))

	r := wire.NewReader(w.Bytes())
	_ = r.String()
	is.True(errors.Is(r.Err(), wire.ErrShort))
	// sticky
	is.Equal(r.Int32(), int32(0))
	is.True(errors.Is(r.Done(), wire.ErrShort))
}

func TestReaderTrailingBytes(t *testing.T) {
	is := is.New(t)

	r := wire.NewReader([]byte{0x01, 0x02})
	is.Equal(r.Uint8(), uint8(1))
	is.True(r.Done() != nil)
}
