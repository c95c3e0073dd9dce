package timesync

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jlucas9/simulith/simerr"
	"github.com/sirupsen/logrus"
)

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetLevel(logrus.ErrorLevel)
	return l
}

// S1: single-client handshake and first tick.
func TestSingleClientHandshakeAndFirstTick(t *testing.T) {
	srv, err := NewServer(ServerConfig{
		BroadcastAddr:   "127.0.0.1:0",
		ReplyAddr:       "127.0.0.1:0",
		ExpectedCount:   1,
		TickIncrementNS: 1_000_000,
		Logger:          quietLogger(),
	})
	if err != nil {
		t.Fatal(err)
	}
	defer srv.Shutdown()

	go srv.Run()

	cli, err := NewClient(ClientConfig{
		BroadcastAddr: srv.BroadcastAddr(),
		ReplyAddr:     srv.ReplyAddr(),
		ID:            "c1",
		RateNS:        1_000_000,
		Logger:        quietLogger(),
	})
	if err != nil {
		t.Fatal(err)
	}
	defer cli.Shutdown()

	if err := cli.Handshake(); err != nil {
		t.Fatalf("handshake: %v", err)
	}

	ticks := make(chan uint64, 4)
	go cli.RunLoop(func(t uint64) { ticks <- t })

	for i, want := range []uint64{0, 1_000_000} {
		select {
		case got := <-ticks:
			if got != want {
				t.Fatalf("tick %d = %d, want %d", i, got, want)
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("tick %d: timed out", i)
		}
	}
}

// S2: duplicate-ID rejection, then recovery with a fresh ID.
func TestDuplicateIDRejection(t *testing.T) {
	srv, err := NewServer(ServerConfig{
		BroadcastAddr:   "127.0.0.1:0",
		ReplyAddr:       "127.0.0.1:0",
		ExpectedCount:   2,
		TickIncrementNS: 1,
		Logger:          quietLogger(),
	})
	if err != nil {
		t.Fatal(err)
	}
	defer srv.Shutdown()

	go srv.Run()

	a, err := NewClient(ClientConfig{
		BroadcastAddr: srv.BroadcastAddr(), ReplyAddr: srv.ReplyAddr(),
		ID: "x", RateNS: 1, Logger: quietLogger(),
	})
	if err != nil {
		t.Fatal(err)
	}
	defer a.Shutdown()
	if err := a.Handshake(); err != nil {
		t.Fatalf("client A handshake: %v", err)
	}

	bDup, err := NewClient(ClientConfig{
		BroadcastAddr: srv.BroadcastAddr(), ReplyAddr: srv.ReplyAddr(),
		ID: "x", RateNS: 1, Logger: quietLogger(),
	})
	if err != nil {
		t.Fatal(err)
	}
	defer bDup.Shutdown()
	err = bDup.Handshake()
	if !errors.Is(err, simerr.ErrDuplicateID) {
		t.Fatalf("expected ErrDuplicateID, got %v", err)
	}

	if n := srv.roster.count(); n != 1 {
		t.Fatalf("ready_count = %d, want 1", n)
	}

	b, err := NewClient(ClientConfig{
		BroadcastAddr: srv.BroadcastAddr(), ReplyAddr: srv.ReplyAddr(),
		ID: "y", RateNS: 1, Logger: quietLogger(),
	})
	if err != nil {
		t.Fatal(err)
	}
	defer b.Shutdown()
	if err := b.Handshake(); err != nil {
		t.Fatalf("client B handshake: %v", err)
	}
}

// S3: barrier holds under skew — a slow client's callback must not let
// a fast client race ahead.
func TestBarrierHoldsUnderSkew(t *testing.T) {
	srv, err := NewServer(ServerConfig{
		BroadcastAddr:   "127.0.0.1:0",
		ReplyAddr:       "127.0.0.1:0",
		ExpectedCount:   2,
		TickIncrementNS: 1,
		Logger:          quietLogger(),
	})
	if err != nil {
		t.Fatal(err)
	}
	defer srv.Shutdown()

	go srv.Run()

	var countA, countB int64
	var wg sync.WaitGroup
	wg.Add(2)

	startClient := func(id string, sleep time.Duration, counter *int64) {
		defer wg.Done()
		c, err := NewClient(ClientConfig{
			BroadcastAddr: srv.BroadcastAddr(), ReplyAddr: srv.ReplyAddr(),
			ID: id, RateNS: 1, Logger: quietLogger(),
		})
		if err != nil {
			t.Error(err)
			return
		}
		defer c.Shutdown()
		if err := c.Handshake(); err != nil {
			t.Error(err)
			return
		}
		done := make(chan struct{})
		go func() {
			c.RunLoop(func(uint64) {
				time.Sleep(sleep)
				atomic.AddInt64(counter, 1)
			})
			close(done)
		}()
		<-done
	}

	go startClient("slow", 10*time.Millisecond, &countA)
	go startClient("fast", 0, &countB)

	time.Sleep(100 * time.Millisecond)
	a, b := atomic.LoadInt64(&countA), atomic.LoadInt64(&countB)
	diff := a - b
	if diff < 0 {
		diff = -diff
	}
	if diff > 1 {
		t.Fatalf("callback counts diverged: slow=%d fast=%d", a, b)
	}
	// Closing the server's channels makes both RunLoops return.
	srv.Shutdown()
	wg.Wait()
}

// S6: handshake timeout when the server never starts.
func TestHandshakeTimeout(t *testing.T) {
	srv, err := NewServer(ServerConfig{
		BroadcastAddr:   "127.0.0.1:0",
		ReplyAddr:       "127.0.0.1:0",
		ExpectedCount:   1,
		TickIncrementNS: 1,
		Logger:          quietLogger(),
	})
	if err != nil {
		t.Fatal(err)
	}
	defer srv.Shutdown()
	// Note: server is deliberately never Run() — it never answers the
	// handshake request.

	cli, err := NewClient(ClientConfig{
		BroadcastAddr:    srv.BroadcastAddr(),
		ReplyAddr:        srv.ReplyAddr(),
		ID:               "late",
		RateNS:           1,
		HandshakeTimeout: 100 * time.Millisecond,
		Logger:           quietLogger(),
	})
	if err != nil {
		t.Fatal(err)
	}
	defer cli.Shutdown()

	start := time.Now()
	err = cli.Handshake()
	elapsed := time.Since(start)
	if !errors.Is(err, simerr.ErrServerUnreachable) {
		t.Fatalf("expected ErrServerUnreachable, got %v", err)
	}
	if elapsed > 2*time.Second {
		t.Fatalf("handshake took %v, want under 2s", elapsed)
	}
}
