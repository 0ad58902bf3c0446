package protocol

import (
	"encoding"
	"fmt"

	"github.com/blukai/blockparty/internal/profile"
	"github.com/blukai/blockparty/internal/wire"
	"github.com/google/uuid"
)

type LoginStart struct {
	Username string
}

var (
	_ encoding.BinaryMarshaler   = (*LoginStart)(nil)
	_ encoding.BinaryUnmarshaler = (*LoginStart)(nil)
)

func (*LoginStart) Kind() Kind { return KindLoginStart }

func (m *LoginStart) MarshalBinary() ([]byte, error) {
	w := wire.NewWriter(1 + len(m.Username))
	w.String(m.Username)
	return w.Bytes(), nil
}

func (m *LoginStart) UnmarshalBinary(data []byte) error {
	r := wire.NewReader(data)
	m.Username = r.String()
	return r.Done()
}

type EncryptionRequest struct {
	ServerID    string
	PublicKey   []byte
	VerifyToken []byte
}

var (
	_ encoding.BinaryMarshaler   = (*EncryptionRequest)(nil)
	_ encoding.BinaryUnmarshaler = (*EncryptionRequest)(nil)
)

func (*EncryptionRequest) Kind() Kind { return KindEncryptionRequest }

func (m *EncryptionRequest) MarshalBinary() ([]byte, error) {
	w := wire.NewWriter(8 + len(m.ServerID) + len(m.PublicKey) + len(m.VerifyToken))
	w.String(m.ServerID)
	w.ByteArray(m.PublicKey)
	w.ByteArray(m.VerifyToken)
	return w.Bytes(), nil
}

func (m *EncryptionRequest) UnmarshalBinary(data []byte) error {
	r := wire.NewReader(data)
	m.ServerID = r.String()
	m.PublicKey = r.ByteArray()
	m.VerifyToken = r.ByteArray()
	return r.Done()
}

// EncryptionResponse holds the shared secret and verify token, both
// encrypted with the server's public key.
type EncryptionResponse struct {
	SharedSecret []byte
	VerifyToken  []byte
}

var (
	_ encoding.BinaryMarshaler   = (*EncryptionResponse)(nil)
	_ encoding.BinaryUnmarshaler = (*EncryptionResponse)(nil)
)

func (*EncryptionResponse) Kind() Kind { return KindEncryptionResponse }

func (m *EncryptionResponse) MarshalBinary() ([]byte, error) {
	w := wire.NewWriter(4 + len(m.SharedSecret) + len(m.VerifyToken))
	w.ByteArray(m.SharedSecret)
	w.ByteArray(m.VerifyToken)
	return w.Bytes(), nil
}

func (m *EncryptionResponse) UnmarshalBinary(data []byte) error {
	r := wire.NewReader(data)
	m.SharedSecret = r.ByteArray()
	m.VerifyToken = r.ByteArray()
	return r.Done()
}

// LoginDisconnect and Disconnect carry a json chat component.
type LoginDisconnect struct {
	Reason string
}

var (
	_ encoding.BinaryMarshaler   = (*LoginDisconnect)(nil)
	_ encoding.BinaryUnmarshaler = (*LoginDisconnect)(nil)
)

func (*LoginDisconnect) Kind() Kind { return KindLoginDisconnect }

func (m *LoginDisconnect) MarshalBinary() ([]byte, error) {
	w := wire.NewWriter(2 + len(m.Reason))
	w.String(m.Reason)
	return w.Bytes(), nil
}

func (m *LoginDisconnect) UnmarshalBinary(data []byte) error {
	r := wire.NewReader(data)
	m.Reason = r.String()
	return r.Done()
}

// LoginSuccess sends the uuid in its dashed text form.
type LoginSuccess struct {
	ID       uuid.UUID
	Username string
}

var (
	_ encoding.BinaryMarshaler   = (*LoginSuccess)(nil)
	_ encoding.BinaryUnmarshaler = (*LoginSuccess)(nil)
)

func (*LoginSuccess) Kind() Kind { return KindLoginSuccess }

func (m *LoginSuccess) MarshalBinary() ([]byte, error) {
	w := wire.NewWriter(40 + len(m.Username))
	w.String(m.ID.String())
	w.String(m.Username)
	return w.Bytes(), nil
}

func (m *LoginSuccess) UnmarshalBinary(data []byte) error {
	r := wire.NewReader(data)
	id := r.String()
	m.Username = r.String()
	if err := r.Done(); err != nil {
		return err
	}
	parsed, err := uuid.Parse(id)
	if err != nil {
		return fmt.Errorf("could not parse uuid %q: %w", id, err)
	}
	m.ID = parsed
	return nil
}

type SetCompression struct {
	Threshold int32
}

var (
	_ encoding.BinaryMarshaler   = (*SetCompression)(nil)
	_ encoding.BinaryUnmarshaler = (*SetCompression)(nil)
)

func (*SetCompression) Kind() Kind { return KindSetCompression }

func (m *SetCompression) MarshalBinary() ([]byte, error) {
	return wire.AppendVarInt(nil, m.Threshold), nil
}

func (m *SetCompression) UnmarshalBinary(data []byte) error {
	r := wire.NewReader(data)
	m.Threshold = r.VarInt()
	return r.Done()
}

// SessionVerify asks the identity service whether Username joined with
// ServerHash. It never crosses the wire; the login flow injects it so the
// blocking call runs on the worker pool.
type SessionVerify struct {
	Username   string
	ServerHash string
	IP         string
}

func (*SessionVerify) Kind() Kind { return KindSessionVerify }

// AuthResult is what SessionVerify turns into once the identity service
// answered.
type AuthResult struct {
	Profile *profile.Profile
	Err     error
}

func (*AuthResult) Kind() Kind { return KindAuthResult }
