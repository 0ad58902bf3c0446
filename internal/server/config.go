package server

import (
	"time"

	"github.com/blukai/blockparty/internal/auth"
	"github.com/blukai/blockparty/internal/processor"
)

type Config struct {
	Network string
	Address string

	OnlineMode bool
	// CompressionThreshold is the smallest payload that gets compressed;
	// -1 disables compression, 0 compresses everything.
	CompressionThreshold int

	// ProxySupport makes the handshake carry forwarded player data, which
	// replaces the online mode login.
	ProxySupport bool
	ProxyToken   string
	// PreventProxy passes the client ip to the session server so that
	// accounts can not log in through somebody else's connection.
	PreventProxy bool

	SessionServer string
	AuthTimeout   time.Duration
	AuthWorkers   int
	KeyBits       int

	ReadTimeout       time.Duration
	KeepAliveInterval time.Duration
	WriteTimeout      time.Duration
	// SendBuffer is how many outgoing messages may queue up per connection.
	SendBuffer int

	CacheSize int
	CacheIdle time.Duration

	// MultiPartSize and MaxMultiPart bound FML|MP splitting and
	// reassembly.
	MultiPartSize int
	MaxMultiPart  int
}

func checkConfig(config *Config) {
	if config.Network == "" {
		config.Network = "tcp"
	}
	if config.SessionServer == "" {
		config.SessionServer = auth.DefaultSessionServer
	}
	if config.AuthTimeout <= 0 {
		config.AuthTimeout = 5 * time.Second
	}
	if config.AuthWorkers <= 0 {
		config.AuthWorkers = 4
	}
	if config.KeyBits <= 0 {
		config.KeyBits = auth.DefaultKeyBits
	}
	if config.ReadTimeout <= 0 {
		config.ReadTimeout = 30 * time.Second
	}
	if config.KeepAliveInterval <= 0 {
		config.KeepAliveInterval = 15 * time.Second
	}
	if config.WriteTimeout <= 0 {
		config.WriteTimeout = 10 * time.Second
	}
	if config.SendBuffer <= 0 {
		config.SendBuffer = 256
	}
	if config.CacheSize <= 0 {
		config.CacheSize = 1024
	}
	if config.CacheIdle <= 0 {
		config.CacheIdle = 30 * time.Second
	}
	if config.MultiPartSize <= 0 {
		config.MultiPartSize = processor.DefaultPartSize
	}
	if config.MaxMultiPart <= 0 {
		config.MaxMultiPart = processor.MaxMultiPartLength
	}
}
