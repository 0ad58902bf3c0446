// Package auth implements the online mode key exchange and the session
// server lookup that confirms a player owns the account they log in with.
package auth

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha1"
	"crypto/subtle"
	"crypto/x509"
	"encoding/hex"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"net/url"
	"time"

	"github.com/blukai/blockparty/internal/profile"
	"github.com/blukai/blockparty/internal/protoerr"
	"github.com/google/uuid"
	"github.com/sugawarayuuta/sonnet"
)

const (
	DefaultKeyBits       = 1024
	DefaultSessionServer = "https://sessionserver.mojang.com/session/minecraft/hasJoined"

	VerifyTokenLen  = 4
	SharedSecretLen = 16
)

// Keys is the server's key pair. One pair serves every login.
type Keys struct {
	priv   *rsa.PrivateKey
	public []byte
}

func GenerateKeys(bits int) (*Keys, error) {
	priv, err := rsa.GenerateKey(rand.Reader, bits)
	if err != nil {
		return nil, fmt.Errorf("could not generate rsa key: %w", err)
	}
	public, err := x509.MarshalPKIXPublicKey(&priv.PublicKey)
	if err != nil {
		return nil, fmt.Errorf("could not marshal public key: %w", err)
	}
	return &Keys{priv: priv, public: public}, nil
}

// Public is the DER encoded public key sent in the encryption request.
func (k *Keys) Public() []byte {
	return k.public
}

func (k *Keys) Decrypt(ciphertext []byte) ([]byte, error) {
	return rsa.DecryptPKCS1v15(rand.Reader, k.priv, ciphertext)
}

// NewVerifyToken returns the random bytes a client must send back encrypted.
func NewVerifyToken() ([]byte, error) {
	token := make([]byte, VerifyTokenLen)
	if _, err := io.ReadFull(rand.Reader, token); err != nil {
		return nil, err
	}
	return token, nil
}

// NewSessionID returns the server id that goes into the server hash.
func NewSessionID() (string, error) {
	var b [8]byte
	if _, err := io.ReadFull(rand.Reader, b[:]); err != nil {
		return "", err
	}
	return hex.EncodeToString(b[:]), nil
}

// Exchange checks a client's encryption response and returns the shared
// secret.
func (k *Keys) Exchange(encSecret, encToken, wantToken []byte) ([]byte, error) {
	token, err := k.Decrypt(encToken)
	if err != nil {
		return nil, protoerr.New(protoerr.ErrAuth, "Invalid verify token", fmt.Errorf("could not decrypt verify token: %w", err))
	}
	if subtle.ConstantTimeCompare(token, wantToken) != 1 {
		return nil, protoerr.Newf(protoerr.ErrAuth, "Invalid verify token", "verify token mismatch")
	}

	secret, err := k.Decrypt(encSecret)
	if err != nil {
		return nil, protoerr.New(protoerr.ErrAuth, "", fmt.Errorf("could not decrypt shared secret: %w", err))
	}
	if len(secret) != SharedSecretLen {
		return nil, protoerr.Newf(protoerr.ErrAuth, "", "shared secret is %d bytes", len(secret))
	}
	return secret, nil
}

// ServerHash is sha1 over the server id, shared secret and public key,
// printed as a signed two's complement hex number without leading zeros.
func ServerHash(serverID string, secret, public []byte) string {
	h := sha1.New()
	h.Write([]byte(serverID))
	h.Write(secret)
	h.Write(public)
	sum := h.Sum(nil)

	negative := sum[0]&0x80 != 0
	if negative {
		// two's complement
		carry := true
		for i := len(sum) - 1; i >= 0; i-- {
			sum[i] = ^sum[i]
			if carry {
				sum[i]++
				carry = sum[i] == 0
			}
		}
	}

	s := new(big.Int).SetBytes(sum).Text(16)
	if negative {
		s = "-" + s
	}
	return s
}

// SessionClient asks the session server whether a player joined with a given
// server hash.
type SessionClient struct {
	URL  string
	HTTP *http.Client
}

func NewSessionClient(endpoint string, timeout time.Duration) *SessionClient {
	if endpoint == "" {
		endpoint = DefaultSessionServer
	}
	return &SessionClient{
		URL:  endpoint,
		HTTP: &http.Client{Timeout: timeout},
	}
}

type joinedResponse struct {
	ID         string             `json:"id"`
	Name       string             `json:"name"`
	Properties []profile.Property `json:"properties"`
}

// HasJoined returns the canonical profile. ip may be empty. Anything but a
// 200 with a well formed profile is ErrAuth.
func (c *SessionClient) HasJoined(ctx context.Context, username, serverHash, ip string) (*profile.Profile, error) {
	q := url.Values{}
	q.Set("username", username)
	q.Set("serverId", serverHash)
	if ip != "" {
		q.Set("ip", ip)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.URL+"?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("could not create request: %w", err)
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, protoerr.New(protoerr.ErrAuth, "Authentication servers are down. Please try again later, sorry!", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, protoerr.Newf(protoerr.ErrAuth, "", "session server responded with %s", resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, protoerr.New(protoerr.ErrAuth, "", fmt.Errorf("could not read response: %w", err))
	}

	var joined joinedResponse
	if err := sonnet.Unmarshal(body, &joined); err != nil {
		return nil, protoerr.New(protoerr.ErrAuth, "", fmt.Errorf("could not parse response: %w", err))
	}
	id, err := uuid.Parse(joined.ID)
	if err != nil {
		return nil, protoerr.New(protoerr.ErrAuth, "", fmt.Errorf("bad profile id %q: %w", joined.ID, err))
	}
	if joined.Name == "" {
		return nil, protoerr.Newf(protoerr.ErrAuth, "", "profile without name")
	}

	return &profile.Profile{ID: id, Name: joined.Name, Properties: joined.Properties}, nil
}
