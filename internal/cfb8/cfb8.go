// Package cfb8 sets up the 8-bit cipher feedback streams the protocol uses
// once encryption is negotiated. crypto/cipher only ships full-block CFB.
package cfb8

import (
	"crypto/aes"
	"crypto/cipher"
	"fmt"

	"github.com/Tnze/go-mc/net/CFB8"
)

// New builds AES/CFB8 encrypt and decrypt streams for key and iv.
func New(key, iv []byte) (enc, dec cipher.Stream, err error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, nil, fmt.Errorf("could not create aes cipher: %w", err)
	}
	if len(iv) != block.BlockSize() {
		return nil, nil, fmt.Errorf("iv length %d != block size %d", len(iv), block.BlockSize())
	}
	return CFB8.NewCFB8Encrypt(block, iv), CFB8.NewCFB8Decrypt(block, iv), nil
}

// NewPair builds the streams for a shared secret. The secret doubles as the
// iv.
func NewPair(secret []byte) (enc, dec cipher.Stream, err error) {
	return New(secret, secret)
}
