package cfb8_test

import (
	"encoding/hex"
	"testing"

	"github.com/blukai/blockparty/internal/cfb8"
	"github.com/matryer/is"
)

func mustHex(t *testing.T, s string) []byte {
	t.Helper()
	b, err := hex.DecodeString(s)
	if err != nil {
		t.Fatal(err)
	}
	return b
}

// NIST SP 800-38A, F.3.7 CFB8-AES128.Encrypt
func TestKnownVector(t *testing.T) {
	is := is.New(t)

	key := mustHex(t, "2b7e151628aed2a6abf7158809cf4f3c")
	iv := mustHex(t, "000102030405060708090a0b0c0d0e0f")
	plain := mustHex(t, "6bc1bee22e409f96e93d7e117393172aae2d")
	want := mustHex(t, "3b79424c9c0dd436bace9e0ed4586a4f32b9")

	enc, dec, err := cfb8.New(key, iv)
	is.NoErr(err)

	got := make([]byte, len(plain))
	enc.XORKeyStream(got, plain)
	is.Equal(got, want)

	back := make([]byte, len(got))
	dec.XORKeyStream(back, got)
	is.Equal(back, plain)
}

func TestBadKey(t *testing.T) {
	is := is.New(t)

	_, _, err := cfb8.NewPair([]byte("short"))
	is.True(err != nil)

	_, _, err = cfb8.New([]byte("0123456789abcdef"), []byte("iv"))
	is.True(err != nil)
}

func TestStreamingChunks(t *testing.T) {
	is := is.New(t)

	secret := []byte("0123456789abcdef")
	enc, dec, err := cfb8.NewPair(secret)
	is.NoErr(err)

	plain := []byte("the quick brown fox jumps over the lazy dog, several times over")
	whole := make([]byte, len(plain))
	{
		e, _, _ := cfb8.NewPair(secret)
		e.XORKeyStream(whole, plain)
	}

	// arbitrary chunking must produce the same stream
	var chunked []byte
	for i, step := 0, 1; i < len(plain); i, step = i+step, step%7+1 {
		end := min(i+step, len(plain))
		out := make([]byte, end-i)
		enc.XORKeyStream(out, plain[i:end])
		chunked = append(chunked, out...)
	}
	is.Equal(chunked, whole)

	// in place decryption
	dec.XORKeyStream(chunked, chunked)
	is.Equal(chunked, plain)
}
