// Package server accepts game connections and drives each one through
// handshake, status or login, the optional forge handshake and play.
package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/blukai/blockparty/internal/auth"
	"github.com/blukai/blockparty/internal/cache"
	"github.com/blukai/blockparty/internal/dispatch"
	"github.com/blukai/blockparty/internal/registry"
	"github.com/hashicorp/go-multierror"
	"github.com/phuslu/log"
)

var (
	ErrClosed     = errors.New("connection closed")
	ErrBufferFull = errors.New("send buffer full")
)

// shutdownGrace is how long connections get to flush their disconnect
// message when the server stops.
const shutdownGrace = time.Second

type Server struct {
	config   Config
	listener net.Listener

	logger *log.Logger

	game       Game
	table      *registry.Table
	cache      *cache.Cache
	dispatcher *dispatch.Dispatcher[*conn]
	keys       *auth.Keys
	sessions   *auth.SessionClient

	mu    sync.Mutex
	conns map[*conn]struct{}
	wg    sync.WaitGroup
}

// NewServer listens on config.Address right away; Run starts accepting.
func NewServer(config Config, game Game, logger *log.Logger) (*Server, error) {
	checkConfig(&config)

	// if logger is nil (which might be true in tests) => use default, but
	// silenced logger
	if logger == nil {
		tmp := log.DefaultLogger
		logger = &tmp
		logger.Writer = &log.IOWriter{Writer: io.Discard}
	}

	s := &Server{
		config: config,
		logger: logger,
		game:   game,
		table: registry.V340(registry.Options{
			PartSize:     config.MultiPartSize,
			MaxMultiPart: config.MaxMultiPart,
		}),
		cache:      cache.New(config.CacheSize, config.CacheIdle),
		dispatcher: dispatch.New[*conn](config.AuthWorkers),
		sessions:   auth.NewSessionClient(config.SessionServer, config.AuthTimeout),
		conns:      make(map[*conn]struct{}),
	}

	if config.OnlineMode {
		keys, err := auth.GenerateKeys(config.KeyBits)
		if err != nil {
			return nil, err
		}
		s.keys = keys
	}

	s.registerHandlers()

	listener, err := net.Listen(config.Network, config.Address)
	if err != nil {
		return nil, fmt.Errorf("could not listen: %w", err)
	}
	s.listener = listener

	return s, nil
}

// Addr can be useful to retreive server's address when Server was
// constructed with ":0".
func (s *Server) Addr() net.Addr {
	return s.listener.Addr()
}

// Run accepts connections until ctx is done, then disconnects everyone.
func (s *Server) Run(ctx context.Context) error {
	// NOTE(blukai): connections outlive ctx for a moment so that they can
	// tell their players why they are being dropped.
	connCtx, cancelConns := context.WithCancel(context.Background())
	defer cancelConns()

	acceptErr := make(chan error, 1)
	go func() {
		acceptErr <- s.runAccept(connCtx)
	}()

	var errs error
	select {
	case <-ctx.Done():
		if err := s.listener.Close(); err != nil {
			errs = multierror.Append(errs, fmt.Errorf("could not close listener: %w", err))
		}
		<-acceptErr
	case err := <-acceptErr:
		errs = multierror.Append(errs, err)
	}

	s.mu.Lock()
	for c := range s.conns {
		c.Kick("Server closed")
	}
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(shutdownGrace):
		cancelConns()
		<-done
	}
	s.dispatcher.Wait()

	return errs
}

func (s *Server) runAccept(ctx context.Context) error {
	for {
		raw, err := s.listener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				continue
			}
			return fmt.Errorf("could not accept: %w", err)
		}

		c := newConn(ctx, s, raw)
		s.mu.Lock()
		s.conns[c] = struct{}{}
		s.mu.Unlock()

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			c.run()

			s.mu.Lock()
			delete(s.conns, c)
			s.mu.Unlock()
		}()
	}
}

// Conns is the number of open connections in any state.
func (s *Server) Conns() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.conns)
}
