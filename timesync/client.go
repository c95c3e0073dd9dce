package timesync

import (
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/jlucas9/simulith/simerr"
	"github.com/jlucas9/simulith/transport"
	"github.com/sirupsen/logrus"
)

// defaultHandshakeTimeout bounds how long a client waits for the
// server's handshake reply before giving up.
const defaultHandshakeTimeout = time.Second

// ClientConfig configures a Client.
type ClientConfig struct {
	// BroadcastAddr is the address of the server's broadcast channel.
	BroadcastAddr string
	// ReplyAddr is the address of the server's request/reply channel.
	ReplyAddr string
	// ID is this participant's identity: nonempty, ≤63 bytes.
	ID string
	// RateNS is the client's nominal update rate in nanoseconds.
	// Informational only — the server's clock is authoritative. Must
	// be nonzero.
	RateNS uint64
	// HandshakeTimeout bounds how long Handshake waits for the
	// server's reply. Defaults to 1s.
	HandshakeTimeout time.Duration
	// Logger receives structured log lines. Defaults to
	// logrus.StandardLogger() if nil.
	Logger *logrus.Logger
}

// Client binds a local identity, completes the handshake, receives
// ticks, invokes the embedder's per-tick callback, and acknowledges.
type Client struct {
	cfg ClientConfig
	log *logrus.Entry

	sub *transport.Subscriber
	req *transport.Requester

	shutdownOnce sync.Once
}

// NewClient validates cfg and connects both channels.
func NewClient(cfg ClientConfig) (*Client, error) {
	if !validID(cfg.ID) {
		return nil, fmt.Errorf("timesync: id %q: %w", cfg.ID, simerr.ErrInvalidArgument)
	}
	if cfg.RateNS == 0 {
		return nil, fmt.Errorf("timesync: rate must be > 0: %w", simerr.ErrInvalidArgument)
	}
	if cfg.HandshakeTimeout <= 0 {
		cfg.HandshakeTimeout = defaultHandshakeTimeout
	}

	logger := cfg.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	log := logger.WithFields(logrus.Fields{"component": "timesync.client", "id": cfg.ID})

	sub, err := transport.DialBroadcast(cfg.BroadcastAddr)
	if err != nil {
		return nil, fmt.Errorf("timesync: connect broadcast %s: %w: %v", cfg.BroadcastAddr, simerr.ErrTransportConnectFailed, err)
	}
	req, err := transport.DialRequester(cfg.ReplyAddr)
	if err != nil {
		sub.Close()
		return nil, fmt.Errorf("timesync: connect reply %s: %w: %v", cfg.ReplyAddr, simerr.ErrTransportConnectFailed, err)
	}

	log.WithField("rate_ns", cfg.RateNS).Info("client initialized")
	return &Client{cfg: cfg, log: log, sub: sub, req: req}, nil
}

// Handshake sends "READY <id>" and waits for the server's reply. On
// success the reply-channel deadline is restored to infinite for the
// tick loop.
func (c *Client) Handshake() error {
	if err := c.req.SetTimeout(c.cfg.HandshakeTimeout); err != nil {
		return fmt.Errorf("timesync: set handshake timeout: %w", err)
	}

	reply, err := c.req.Call(encodeHandshake(c.cfg.ID))
	if err != nil {
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			return fmt.Errorf("timesync: handshake: %w", simerr.ErrServerUnreachable)
		}
		return fmt.Errorf("timesync: handshake transport error: %w", err)
	}

	switch string(reply) {
	case replyACK:
		if err := c.req.SetTimeout(0); err != nil {
			return fmt.Errorf("timesync: clear handshake timeout: %w", err)
		}
		c.log.Info("handshake accepted")
		return nil
	case replyDupID:
		return fmt.Errorf("timesync: handshake: %w", simerr.ErrDuplicateID)
	default:
		return fmt.Errorf("timesync: handshake: unexpected reply %q: %w", reply, simerr.ErrProtocolError)
	}
}

// RunLoop repeatedly receives a tick, invokes onTick, and acknowledges,
// never advancing to the next tick until the ACK round-trip completes.
// It blocks until a transport error occurs, typically because Shutdown
// closed the channels.
func (c *Client) RunLoop(onTick func(t uint64)) error {
	for {
		payload, err := c.sub.Recv()
		if err != nil {
			return fmt.Errorf("timesync: tick recv: %w", err)
		}

		t, ok := decodeTick(payload)
		if !ok {
			c.log.WithField("len", len(payload)).Warn("skipping malformed tick payload")
			continue
		}

		if onTick != nil {
			onTick(t)
		}

		if _, err := c.req.Call([]byte(c.cfg.ID)); err != nil {
			return fmt.Errorf("timesync: tick ack: %w", err)
		}
	}
}

// Shutdown closes both channels and releases the identity. Safe to call
// from within onTick; the next recv will then fail and RunLoop returns.
func (c *Client) Shutdown() {
	c.shutdownOnce.Do(func() {
		c.sub.Close()
		c.req.Close()
		c.log.Info("client shut down")
	})
}
