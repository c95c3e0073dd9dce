// Package timesync implements a lock-step virtual time bus: one server
// broadcasting monotonic tick events to a fixed set of clients, each
// gated behind a per-tick barrier of acknowledgments.
package timesync

import (
	"fmt"
	"sync"

	"github.com/jlucas9/simulith/metrics"
	"github.com/jlucas9/simulith/simerr"
	"github.com/jlucas9/simulith/transport"
	"github.com/rs/xid"
	"github.com/sirupsen/logrus"
)

// ServerConfig configures a Server. All fields are validated by
// NewServer; there is no implicit default for ExpectedCount or
// TickIncrementNS since an out-of-range value must be rejected
// explicitly rather than silently clamped.
type ServerConfig struct {
	// BroadcastAddr is the address the broadcast channel (B) binds to.
	BroadcastAddr string
	// ReplyAddr is the address the request/reply channel (Q) binds to.
	ReplyAddr string
	// ExpectedCount is N, the number of participants the handshake
	// phase waits for. Must be in [1, RosterCapacity].
	ExpectedCount int
	// TickIncrementNS is Δ, the fixed per-tick clock advance in
	// nanoseconds. Must be > 0.
	TickIncrementNS uint64
	// Logger receives structured log lines. Defaults to
	// logrus.StandardLogger() if nil.
	Logger *logrus.Logger
	// Collector, if non-nil, is kept up to date with roster occupancy,
	// virtual time, and completed-tick count.
	Collector *metrics.ServerCollector
}

// Server owns the virtual clock, the expected-participant roster, the
// handshake acceptor, the broadcast loop, and the per-tick barrier.
type Server struct {
	cfg ServerConfig
	log *logrus.Entry

	pub *transport.Publisher
	rep *transport.Responder

	roster      roster
	virtualTime uint64

	runID xid.ID

	shutdownOnce sync.Once
}

// NewServer validates cfg and binds both channels. Binding failure is
// fatal and leaves no live resources.
func NewServer(cfg ServerConfig) (*Server, error) {
	if cfg.ExpectedCount < 1 || cfg.ExpectedCount > RosterCapacity {
		return nil, fmt.Errorf("timesync: expected count %d: %w", cfg.ExpectedCount, simerr.ErrInvalidArgument)
	}
	if cfg.TickIncrementNS == 0 {
		return nil, fmt.Errorf("timesync: tick increment must be > 0: %w", simerr.ErrInvalidArgument)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	runID := xid.New()
	log := logger.WithFields(logrus.Fields{"component": "timesync.server", "run": runID.String()})

	pub, err := transport.ListenBroadcast(cfg.BroadcastAddr, log)
	if err != nil {
		return nil, fmt.Errorf("timesync: bind broadcast %s: %w: %v", cfg.BroadcastAddr, simerr.ErrTransportBindFailed, err)
	}
	rep, err := transport.ListenReply(cfg.ReplyAddr, log)
	if err != nil {
		pub.Close()
		return nil, fmt.Errorf("timesync: bind reply %s: %w: %v", cfg.ReplyAddr, simerr.ErrTransportBindFailed, err)
	}

	return &Server{
		cfg:   cfg,
		log:   log,
		pub:   pub,
		rep:   rep,
		runID: runID,
	}, nil
}

// BroadcastAddr returns the bound address of the broadcast channel —
// useful when NewServer was configured with an ephemeral port.
func (s *Server) BroadcastAddr() string {
	return s.pub.Addr().String()
}

// ReplyAddr returns the bound address of the request/reply channel.
func (s *Server) ReplyAddr() string {
	return s.rep.Addr().String()
}

// Run executes the handshake phase followed by the tick loop. It blocks
// until a transport error makes continuing impossible, or until
// Shutdown closes the channels out from under it.
func (s *Server) Run() error {
	if err := s.runHandshake(); err != nil {
		return err
	}
	return s.runTickLoop()
}

// runHandshake replies to exactly one request per loop iteration —
// ACK, DUP_ID, or ERR — and never starts the tick broadcast until the
// roster is full.
func (s *Server) runHandshake() error {
	s.log.WithField("expected", s.cfg.ExpectedCount).Info("waiting for participants to register")

	readyCount := 0
	for readyCount < s.cfg.ExpectedCount {
		req, err := s.rep.Recv()
		if err != nil {
			return fmt.Errorf("timesync: handshake recv: %w", err)
		}

		id, ok := decodeHandshake(req.Payload)
		if !ok {
			s.log.WithField("payload", string(req.Payload)).Warn("malformed handshake request")
			req.Reply([]byte(replyErr))
			continue
		}

		if s.roster.isTaken(id) {
			s.log.WithField("id", id).Warn("rejecting duplicate id")
			req.Reply([]byte(replyDupID))
			continue
		}

		slot := s.roster.register(id)
		if slot < 0 {
			s.log.WithField("id", id).Warn("no available roster slots")
			req.Reply([]byte(replyErr))
			continue
		}

		req.Reply([]byte(replyACK))
		readyCount++
		s.log.WithFields(logrus.Fields{"id": id, "slot": slot, "ready": readyCount, "expected": s.cfg.ExpectedCount}).
			Info("registered participant")

		if s.cfg.Collector != nil {
			s.cfg.Collector.SetRegistered(readyCount)
		}
	}

	s.log.Info("all participants ready, starting tick broadcast")
	return nil
}

// runTickLoop broadcasts, resets the ACK barrier, waits for every
// registered participant to respond, and advances the virtual clock —
// forever, until a transport error occurs.
func (s *Server) runTickLoop() error {
	for {
		s.pub.Publish(encodeTick(s.virtualTime))
		s.log.WithField("time_ns", s.virtualTime).Debug("broadcast tick")
		if s.cfg.Collector != nil {
			s.cfg.Collector.SetVirtualTime(s.virtualTime)
		}

		s.roster.resetResponded()

		for !s.roster.allResponded() {
			req, err := s.rep.Recv()
			if err != nil {
				return fmt.Errorf("timesync: tick barrier recv: %w", err)
			}

			id := string(req.Payload)
			if !s.roster.markResponded(id) {
				// Tolerate, do not amplify: still unblock the
				// confused client, but the barrier doesn't move.
				s.log.WithField("id", id).Warn("ack from unknown participant")
			}
			req.Reply([]byte(replyACK))
		}

		if s.cfg.Collector != nil {
			s.cfg.Collector.IncTicks()
		}
		s.virtualTime += s.cfg.TickIncrementNS
	}
}

// Shutdown closes both channels and releases state. Safe to call once;
// subsequent calls are no-ops.
func (s *Server) Shutdown() {
	s.shutdownOnce.Do(func() {
		s.pub.Close()
		s.rep.Close()
		s.log.Info("server shut down")
	})
}
