package proxy_test

import (
	"errors"
	"net"
	"strings"
	"testing"

	"github.com/blukai/blockparty/internal/profile"
	"github.com/blukai/blockparty/internal/protoerr"
	"github.com/blukai/blockparty/internal/proxy"
	"github.com/google/uuid"
	"github.com/matryer/is"
)

var notch = uuid.MustParse("069a79f4-44e9-4726-a5be-fca90e38aaf5")

func bungee(fields ...string) string {
	return strings.Join(fields, "\x00")
}

func TestBungeeCord(t *testing.T) {
	is := is.New(t)

	fwd, err := proxy.Parse(bungee("play.example.com", "203.0.113.7", "069a79f444e94726a5befca90e38aaf5"), "")
	is.NoErr(err)
	is.Equal(fwd.Dialect, proxy.BungeeCord)
	is.Equal(fwd.Host, "play.example.com")
	is.Equal(fwd.RemoteIP, "203.0.113.7")
	is.Equal(fwd.Profile.ID, notch)
	is.Equal(len(fwd.Profile.Properties), 0)

	fwd, err = proxy.Parse(bungee("play.example.com", "203.0.113.7", notch.String(),
		`[{"name":"textures","value":"dGV4","signature":"c2ln"}]`), "")
	is.NoErr(err)
	is.Equal(fwd.Profile.Properties, []profile.Property{{Name: "textures", Value: "dGV4", Signature: "c2ln"}})
}

func TestBungeeGuardToken(t *testing.T) {
	is := is.New(t)

	props := `[{"name":"bungeeguard-token","value":"s3cret"},{"name":"textures","value":"dGV4"}]`
	fwd, err := proxy.Parse(bungee("host", "203.0.113.7", notch.String(), props), "s3cret")
	is.NoErr(err)
	// the token never reaches the profile
	is.Equal(fwd.Profile.Properties, []profile.Property{{Name: "textures", Value: "dGV4"}})

	_, err = proxy.Parse(bungee("host", "203.0.113.7", notch.String(), props), "other")
	is.True(errors.Is(err, protoerr.ErrProxyHeader))

	_, err = proxy.Parse(bungee("host", "203.0.113.7", notch.String()), "s3cret")
	is.True(errors.Is(err, protoerr.ErrProxyHeader))
}

func TestJSONEnvelope(t *testing.T) {
	is := is.New(t)

	address := `{"s":"s3cret","h":"play.example.com","rIp":"203.0.113.7","rP":51234,"n":"Notch",` +
		`"u":"069a79f444e94726a5befca90e38aaf5","p":[{"n":"textures","v":"dGV4","s":"c2ln"}]}`

	fwd, err := proxy.Parse(address, "s3cret")
	is.NoErr(err)
	is.Equal(fwd.Dialect, proxy.JSON)
	is.Equal(fwd.Host, "play.example.com")
	is.Equal(fwd.RemotePort, 51234)
	is.Equal(fwd.Profile, &profile.Profile{
		ID:         notch,
		Name:       "Notch",
		Properties: []profile.Property{{Name: "textures", Value: "dGV4", Signature: "c2ln"}},
	})

	_, err = proxy.Parse(address, "wrong")
	is.True(errors.Is(err, protoerr.ErrProxyHeader))
}

func TestMalformed(t *testing.T) {
	is := is.New(t)

	for _, address := range []string{
		"localhost",
		bungee("host", "ip"),
		bungee("host", "ip", "not-a-uuid"),
		bungee("host", "ip", notch.String(), "{broken"),
		bungee("a", "b", "c", "d", "e"),
		bungee("host", "not-an-ip", notch.String()),
		`{"h":"host"`,
		`{"h":"host","rIp":"nope","n":"Notch","u":"069a79f444e94726a5befca90e38aaf5"}`,
		`{"h":"host","u":"069a79f444e94726a5befca90e38aaf5"}`,
	} {
		_, err := proxy.Parse(address, "")
		is.True(errors.Is(err, protoerr.ErrProxyHeader))
		is.Equal(protoerr.Reason(err), "Invalid proxy data")
	}
}

func TestForwardedAddr(t *testing.T) {
	is := is.New(t)

	socket := &net.TCPAddr{IP: net.IPv4(10, 0, 0, 2), Port: 40000}

	fwd, err := proxy.Parse(bungee("host", "203.0.113.7", notch.String()), "")
	is.NoErr(err)
	// bungeecord has no port, the socket's one is kept
	is.Equal(fwd.Addr(socket).String(), "203.0.113.7:40000")

	fwd, err = proxy.Parse(`{"h":"host","rIp":"2001:db8::1","rP":51234,"n":"Notch",`+
		`"u":"069a79f444e94726a5befca90e38aaf5"}`, "")
	is.NoErr(err)
	is.Equal(fwd.Addr(socket).String(), "[2001:db8::1]:51234")
}
