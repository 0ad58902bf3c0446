package protocol

import (
	"encoding"

	"github.com/blukai/blockparty/internal/wire"
)

const (
	NextStateStatus = 1
	NextStateLogin  = 2
)

type Handshake struct {
	ProtocolVersion int32
	Address         string
	Port            uint16
	NextState       int32
}

var (
	_ encoding.BinaryMarshaler   = (*Handshake)(nil)
	_ encoding.BinaryUnmarshaler = (*Handshake)(nil)
)

func (*Handshake) Kind() Kind { return KindHandshake }

func (m *Handshake) MarshalBinary() ([]byte, error) {
	w := wire.NewWriter(16 + len(m.Address))
	w.VarInt(m.ProtocolVersion)
	w.String(m.Address)
	w.Uint16(m.Port)
	w.VarInt(m.NextState)
	return w.Bytes(), nil
}

func (m *Handshake) UnmarshalBinary(data []byte) error {
	r := wire.NewReader(data)
	m.ProtocolVersion = r.VarInt()
	m.Address = r.String()
	m.Port = r.Uint16()
	m.NextState = r.VarInt()
	return r.Done()
}

type StatusRequest struct{}

var (
	_ encoding.BinaryMarshaler   = (*StatusRequest)(nil)
	_ encoding.BinaryUnmarshaler = (*StatusRequest)(nil)
)

func (*StatusRequest) Kind() Kind { return KindStatusRequest }

func (m *StatusRequest) MarshalBinary() ([]byte, error) { return []byte{}, nil }

func (m *StatusRequest) UnmarshalBinary(data []byte) error {
	return wire.NewReader(data).Done()
}

// StatusResponse carries the server list json verbatim.
type StatusResponse struct {
	JSON string
}

var (
	_ encoding.BinaryMarshaler   = (*StatusResponse)(nil)
	_ encoding.BinaryUnmarshaler = (*StatusResponse)(nil)
)

func (*StatusResponse) Kind() Kind { return KindStatusResponse }

func (m *StatusResponse) MarshalBinary() ([]byte, error) {
	w := wire.NewWriter(5 + len(m.JSON))
	w.String(m.JSON)
	return w.Bytes(), nil
}

func (m *StatusResponse) UnmarshalBinary(data []byte) error {
	r := wire.NewReader(data)
	m.JSON = r.String()
	return r.Done()
}

// StatusPing and StatusPong share a layout: an opaque payload echoed back.
type StatusPing struct {
	Payload int64
}

var (
	_ encoding.BinaryMarshaler   = (*StatusPing)(nil)
	_ encoding.BinaryUnmarshaler = (*StatusPing)(nil)
)

func (*StatusPing) Kind() Kind { return KindStatusPing }

func (m *StatusPing) MarshalBinary() ([]byte, error) {
	return marshalInt64(m.Payload), nil
}

func (m *StatusPing) UnmarshalBinary(data []byte) error {
	return unmarshalInt64(data, &m.Payload)
}

type StatusPong struct {
	Payload int64
}

var (
	_ encoding.BinaryMarshaler   = (*StatusPong)(nil)
	_ encoding.BinaryUnmarshaler = (*StatusPong)(nil)
)

func (*StatusPong) Kind() Kind { return KindStatusPong }

func (m *StatusPong) MarshalBinary() ([]byte, error) {
	return marshalInt64(m.Payload), nil
}

func (m *StatusPong) UnmarshalBinary(data []byte) error {
	return unmarshalInt64(data, &m.Payload)
}

func marshalInt64(v int64) []byte {
	w := wire.NewWriter(8)
	w.Int64(v)
	return w.Bytes()
}

func unmarshalInt64(data []byte, v *int64) error {
	r := wire.NewReader(data)
	*v = r.Int64()
	return r.Done()
}
