// Package profile holds the identity a connection ends up with after login.
package profile

import (
	"crypto/md5"

	"github.com/google/uuid"
)

type Property struct {
	Name      string `json:"name"`
	Value     string `json:"value"`
	Signature string `json:"signature,omitempty"`
}

type Profile struct {
	ID         uuid.UUID
	Name       string
	Properties []Property
}

// OfflineID derives the id an unauthenticated player gets: a version 3 uuid
// over md5("OfflinePlayer:" + name), without a namespace prefix.
func OfflineID(name string) uuid.UUID {
	sum := md5.Sum([]byte("OfflinePlayer:" + name))
	sum[6] = sum[6]&0x0f | 0x30
	sum[8] = sum[8]&0x3f | 0x80
	return uuid.UUID(sum)
}

func Offline(name string) *Profile {
	return &Profile{ID: OfflineID(name), Name: name}
}
