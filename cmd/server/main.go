package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/blukai/blockparty/internal/lobby"
	"github.com/blukai/blockparty/internal/server"
	"github.com/hashicorp/go-multierror"
	"github.com/kelseyhightower/envconfig"
	"github.com/phuslu/log"
)

type Config struct {
	Addr       string `envconfig:"ADDR" required:"true" default:"0.0.0.0:25565"`
	OnlineMode bool   `envconfig:"ONLINE_MODE" default:"true"`
	// -1 disables compression
	CompressionThreshold int `envconfig:"COMPRESSION_THRESHOLD" default:"256"`

	ProxySupport  bool   `envconfig:"PROXY_SUPPORT"`
	ProxyToken    string `envconfig:"PROXY_TOKEN"`
	PreventProxy  bool   `envconfig:"PREVENT_PROXY"`
	SessionServer string `envconfig:"SESSION_SERVER"`

	ReadTimeout       time.Duration `envconfig:"READ_TIMEOUT" default:"30s"`
	KeepAliveInterval time.Duration `envconfig:"KEEPALIVE_INTERVAL" default:"15s"`
	AuthWorkers       int           `envconfig:"AUTH_WORKERS" default:"4"`
	CacheSize         int           `envconfig:"CACHE_SIZE" default:"1024"`
	CacheIdle         time.Duration `envconfig:"CACHE_IDLE" default:"30s"`

	MOTD       string `envconfig:"MOTD" default:"A blockparty server"`
	MaxPlayers int    `envconfig:"MAX_PLAYERS" default:"20"`
	// Favicon is a path to a 64x64 png.
	Favicon string `envconfig:"FAVICON"`

	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`
}

func loadConfig() (*Config, error) {
	config := new(Config)
	if err := envconfig.Process("BLOCKPARTY", config); err != nil {
		return nil, err
	}
	return config, nil
}

func configureLogger(level string) *log.Logger {
	logger := log.DefaultLogger

	// https://github.com/phuslu/log?tab=readme-ov-file#pretty-console-writer
	logger.Level = log.ParseLevel(level)
	logger.Caller = 1
	logger.TimeFormat = "15:04:05"
	logger.Writer = &log.ConsoleWriter{
		ColorOutput:    true,
		QuoteString:    true,
		EndWithMessage: true,
	}

	return &logger
}

func erringMain() error {
	config, err := loadConfig()
	if err != nil {
		return fmt.Errorf("could not process config: %w", err)
	}

	logger := configureLogger(config.LogLevel)

	var favicon []byte
	if config.Favicon != "" {
		favicon, err = os.ReadFile(config.Favicon)
		if err != nil {
			return fmt.Errorf("could not read favicon: %w", err)
		}
	}

	game := lobby.NewLobby(lobby.Config{
		MOTD:       config.MOTD,
		Favicon:    favicon,
		MaxPlayers: config.MaxPlayers,
	}, logger)

	srv, err := server.NewServer(server.Config{
		Network:              "tcp",
		Address:              config.Addr,
		OnlineMode:           config.OnlineMode,
		CompressionThreshold: config.CompressionThreshold,
		ProxySupport:         config.ProxySupport,
		ProxyToken:           config.ProxyToken,
		PreventProxy:         config.PreventProxy,
		SessionServer:        config.SessionServer,
		ReadTimeout:          config.ReadTimeout,
		KeepAliveInterval:    config.KeepAliveInterval,
		AuthWorkers:          config.AuthWorkers,
		CacheSize:            config.CacheSize,
		CacheIdle:            config.CacheIdle,
	}, game, logger)
	if err != nil {
		return fmt.Errorf("could not construct server: %w", err)
	}
	logger.Info().
		Bool("online_mode", config.OnlineMode).
		Int("compression_threshold", config.CompressionThreshold).
		Msgf("started server on %s", srv.Addr())

	wg := new(sync.WaitGroup)
	ctx, cancel := context.WithCancel(context.Background())

	var lobbyRunErr, serverRunErr error
	wg.Add(1)
	go func() {
		defer wg.Done()
		lobbyRunErr = game.Run(ctx)
	}()
	wg.Add(1)
	go func() {
		defer wg.Done()
		serverRunErr = srv.Run(ctx)
	}()

	signalChan := make(chan os.Signal, 1)
	signal.Notify(signalChan, syscall.SIGTERM, syscall.SIGINT)

	select {
	case sig := <-signalChan:
		logger.Info().Msgf("received %+v signal", sig)
	}

	cancel()
	wg.Wait()

	var errs error
	if lobbyRunErr != nil {
		errs = multierror.Append(errs, fmt.Errorf("lobby run failed: %w", lobbyRunErr))
	}
	if serverRunErr != nil {
		errs = multierror.Append(errs, fmt.Errorf("server run failed: %w", serverRunErr))
	}
	return errs
}

func main() {
	if err := erringMain(); err != nil {
		fmt.Fprintf(os.Stderr, "fucky wucky! %v\n", err)
		os.Exit(42)
	}
}
