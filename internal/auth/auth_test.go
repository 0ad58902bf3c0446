package auth_test

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/blukai/blockparty/internal/auth"
	"github.com/blukai/blockparty/internal/profile"
	"github.com/blukai/blockparty/internal/protoerr"
	"github.com/google/uuid"
	"github.com/matryer/is"
)

func TestServerHash(t *testing.T) {
	is := is.New(t)

	is.Equal(auth.ServerHash("Notch", nil, nil), "4ed1f46bbe04bc756bcb17c0c7ce3e4632f06a48")
	is.Equal(auth.ServerHash("jeb_", nil, nil), "-7c9d5b0044c130109a5d7b5fb5c317c02b4e28c1")
	is.Equal(auth.ServerHash("simon", nil, nil), "88e16a1019277b15d58faf0541e11910eb756f6")
	// the parts are simply concatenated
	is.Equal(auth.ServerHash("No", []byte("tc"), []byte("h")), auth.ServerHash("Notch", nil, nil))
}

// encryptFor plays the client side of the key exchange.
func encryptFor(is *is.I, keys *auth.Keys, plain []byte) []byte {
	pub, err := x509.ParsePKIXPublicKey(keys.Public())
	is.NoErr(err)
	out, err := rsa.EncryptPKCS1v15(rand.Reader, pub.(*rsa.PublicKey), plain)
	is.NoErr(err)
	return out
}

func TestExchange(t *testing.T) {
	is := is.New(t)

	keys, err := auth.GenerateKeys(1024)
	is.NoErr(err)
	token, err := auth.NewVerifyToken()
	is.NoErr(err)
	is.Equal(len(token), auth.VerifyTokenLen)

	secret := []byte("0123456789abcdef")
	got, err := keys.Exchange(encryptFor(is, keys, secret), encryptFor(is, keys, token), token)
	is.NoErr(err)
	is.Equal(got, secret)

	wrong := []byte{0, 0, 0, 0}
	_, err = keys.Exchange(encryptFor(is, keys, secret), encryptFor(is, keys, wrong), token)
	is.True(errors.Is(err, protoerr.ErrAuth))
	is.Equal(protoerr.Reason(err), "Invalid verify token")

	_, err = keys.Exchange(encryptFor(is, keys, []byte("short")), encryptFor(is, keys, token), token)
	is.True(errors.Is(err, protoerr.ErrAuth))
}

func TestHasJoined(t *testing.T) {
	is := is.New(t)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		switch q.Get("username") {
		case "Notch":
			if q.Get("serverId") != "hash" || q.Get("ip") != "203.0.113.7" {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			_, _ = w.Write([]byte(`{"id":"069a79f444e94726a5befca90e38aaf5","name":"Notch",` +
				`"properties":[{"name":"textures","value":"dGV4","signature":"c2ln"}]}`))
		case "garbage":
			_, _ = w.Write([]byte(`{"id":`))
		default:
			w.WriteHeader(http.StatusNoContent)
		}
	}))
	defer server.Close()

	c := auth.NewSessionClient(server.URL, time.Second)
	ctx := context.Background()

	p, err := c.HasJoined(ctx, "Notch", "hash", "203.0.113.7")
	is.NoErr(err)
	is.Equal(p, &profile.Profile{
		ID:         uuid.MustParse("069a79f4-44e9-4726-a5be-fca90e38aaf5"),
		Name:       "Notch",
		Properties: []profile.Property{{Name: "textures", Value: "dGV4", Signature: "c2ln"}},
	})

	for _, username := range []string{"Nobody", "garbage"} {
		_, err = c.HasJoined(ctx, username, "hash", "")
		is.True(errors.Is(err, protoerr.ErrAuth))
		is.Equal(protoerr.Reason(err), "Failed to verify username!")
	}

	// wrong ip
	_, err = c.HasJoined(ctx, "Notch", "hash", "")
	is.True(errors.Is(err, protoerr.ErrAuth))
}

func TestHasJoinedCancelled(t *testing.T) {
	is := is.New(t)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := auth.NewSessionClient(server.URL, time.Second).HasJoined(ctx, "Notch", "hash", "")
	is.True(errors.Is(err, context.Canceled))
}
