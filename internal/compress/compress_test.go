package compress_test

import (
	"bytes"
	"crypto/rand"
	"errors"
	"testing"

	"github.com/blukai/blockparty/internal/compress"
	"github.com/blukai/blockparty/internal/protoerr"
	"github.com/blukai/blockparty/internal/wire"
	"github.com/matryer/is"
)

func randomBytes(t *testing.T, n int) []byte {
	t.Helper()
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		t.Fatal(err)
	}
	return b
}

func TestDisabledPassesThrough(t *testing.T) {
	is := is.New(t)

	c := compress.New(compress.Disabled)
	payload := []byte("hello")

	encoded, err := c.Encode(payload)
	is.NoErr(err)
	is.Equal(encoded, payload)

	decoded, err := c.Decode(encoded)
	is.NoErr(err)
	is.Equal(decoded, payload)
}

func TestRoundTrip(t *testing.T) {
	is := is.New(t)

	testCases := [][]byte{
		[]byte("tiny"),
		bytes.Repeat([]byte("compressible "), 200),
		randomBytes(t, 4096),
	}

	c := compress.New(256)
	for _, payload := range testCases {
		encoded, err := c.Encode(payload)
		is.NoErr(err)

		decoded, err := c.Decode(encoded)
		is.NoErr(err)
		is.Equal(decoded, payload)
	}
}

func TestNeverGrows(t *testing.T) {
	is := is.New(t)

	c := compress.New(0)
	for _, n := range []int{0, 1, 16, 300, 5000} {
		for _, payload := range [][]byte{randomBytes(t, n), bytes.Repeat([]byte{7}, n)} {
			encoded, err := c.Encode(payload)
			is.NoErr(err)
			is.True(len(encoded) <= wire.VarIntLen(0)+len(payload))
		}
	}
}

func TestCompressesAboveThreshold(t *testing.T) {
	is := is.New(t)

	c := compress.New(64)
	payload := bytes.Repeat([]byte{'a'}, 1000)

	encoded, err := c.Encode(payload)
	is.NoErr(err)

	size, _, err := wire.PeekVarInt(encoded)
	is.NoErr(err)
	is.Equal(size, int32(1000))
	is.True(len(encoded) < 100)
}

func TestDecodeRejectsBelowThreshold(t *testing.T) {
	is := is.New(t)

	small := compress.New(0)
	encoded, err := small.Encode(bytes.Repeat([]byte{'a'}, 100))
	is.NoErr(err)

	strict := compress.New(256)
	_, err = strict.Decode(encoded)
	is.True(errors.Is(err, protoerr.ErrCompression))
}

func TestDecodeRejectsSizeMismatch(t *testing.T) {
	is := is.New(t)

	c := compress.New(16)
	encoded, err := c.Encode(bytes.Repeat([]byte{'a'}, 500))
	is.NoErr(err)

	_, n, _ := wire.PeekVarInt(encoded)
	for _, declared := range []int32{400, 600} {
		tampered := wire.AppendVarInt(nil, declared)
		tampered = append(tampered, encoded[n:]...)

		_, err = c.Decode(tampered)
		is.True(errors.Is(err, protoerr.ErrCompression))
	}
}
