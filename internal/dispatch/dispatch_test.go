package dispatch_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/blukai/blockparty/internal/dispatch"
	"github.com/blukai/blockparty/internal/protocol"
	"github.com/matryer/is"
)

type conn struct {
	seen []string
}

func TestSyncRunsInOrder(t *testing.T) {
	is := is.New(t)

	d := dispatch.New[*conn](1)
	d.Sync(protocol.KindChatIn, func(c *conn, m protocol.Message) error {
		c.seen = append(c.seen, m.(*protocol.ChatIn).Message)
		return nil
	})

	c := &conn{}
	for _, msg := range []string{"a", "b", "c"} {
		handled, err := d.Dispatch(context.Background(), c, &protocol.ChatIn{Message: msg}, nil)
		is.NoErr(err)
		is.True(handled)
	}
	is.Equal(c.seen, []string{"a", "b", "c"})

	handled, err := d.Dispatch(context.Background(), c, &protocol.KeepAlive{}, nil)
	is.NoErr(err)
	is.True(!handled)
}

func TestSyncError(t *testing.T) {
	is := is.New(t)

	boom := errors.New("boom")
	d := dispatch.New[*conn](1)
	d.Sync(protocol.KindChatIn, func(*conn, protocol.Message) error { return boom })

	_, err := d.Dispatch(context.Background(), &conn{}, &protocol.ChatIn{}, nil)
	is.Equal(err, boom)
}

func TestAsyncInjectsResult(t *testing.T) {
	is := is.New(t)

	d := dispatch.New[*conn](2)
	d.Async(protocol.KindSessionVerify, func(_ context.Context, m protocol.Message) (protocol.Message, error) {
		if m.(*protocol.SessionVerify).Username == "bad" {
			return nil, errors.New("nope")
		}
		return &protocol.AuthResult{}, nil
	})

	injected := make(chan protocol.Message, 2)
	inject := func(m protocol.Message) { injected <- m }

	_, err := d.Dispatch(context.Background(), &conn{}, &protocol.SessionVerify{Username: "good"}, inject)
	is.NoErr(err)
	is.Equal(<-injected, &protocol.AuthResult{})

	_, err = d.Dispatch(context.Background(), &conn{}, &protocol.SessionVerify{Username: "bad"}, inject)
	is.NoErr(err)
	failure, ok := (<-injected).(*protocol.TaskFailure)
	is.True(ok)
	is.Equal(failure.Source, protocol.KindSessionVerify)
	is.Equal(failure.Err.Error(), "nope")
}

func TestAsyncIsBounded(t *testing.T) {
	is := is.New(t)

	var running, peak atomic.Int32
	release := make(chan struct{})

	d := dispatch.New[*conn](2)
	d.Async(protocol.KindSessionVerify, func(context.Context, protocol.Message) (protocol.Message, error) {
		n := running.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		<-release
		running.Add(-1)
		return nil, nil
	})

	for i := 0; i < 6; i++ {
		_, err := d.Dispatch(context.Background(), &conn{}, &protocol.SessionVerify{}, func(protocol.Message) {})
		is.NoErr(err)
	}

	time.Sleep(50 * time.Millisecond)
	close(release)
	d.Wait()
	is.Equal(peak.Load(), int32(2))
}

func TestAsyncAfterCloseIsNoOp(t *testing.T) {
	is := is.New(t)

	started := make(chan struct{})
	d := dispatch.New[*conn](1)
	d.Async(protocol.KindSessionVerify, func(ctx context.Context, _ protocol.Message) (protocol.Message, error) {
		close(started)
		<-ctx.Done()
		return &protocol.AuthResult{}, nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	var injected atomic.Bool
	_, err := d.Dispatch(ctx, &conn{}, &protocol.SessionVerify{}, func(protocol.Message) { injected.Store(true) })
	is.NoErr(err)

	<-started
	cancel()
	d.Wait()
	is.True(!injected.Load())
}

func TestDuplicateHandlerPanics(t *testing.T) {
	is := is.New(t)

	d := dispatch.New[*conn](1)
	d.Sync(protocol.KindChatIn, func(*conn, protocol.Message) error { return nil })

	defer func() {
		is.True(recover() != nil)
	}()
	d.Async(protocol.KindChatIn, func(context.Context, protocol.Message) (protocol.Message, error) { return nil, nil })
}
