// Package transport realizes two abstract channels on top of plain
// TCP: a broadcast channel (Publisher/Subscriber) and a request/reply
// channel (Responder/Requester). Both are length-delimited with a
// 4-byte big-endian prefix, following the same net.Conn wrapping idiom
// used throughout this codebase for TCP connections.
package transport

import (
	"net"
	"sync"

	"github.com/sirupsen/logrus"
)

// Publisher is the server side of the broadcast channel: one producer,
// many consumers. Delivery to a consumer is lossy for anything sent
// before it attached, and gapless and in order afterward — each accepted
// connection gets every subsequent Publish call, serialized.
type Publisher struct {
	log *logrus.Entry

	ln net.Listener

	mu   sync.Mutex
	subs map[net.Conn]struct{}

	closeOnce sync.Once
	closed    chan struct{}
	closeErr  error
}

// ListenBroadcast binds a TCP listener at addr and begins accepting
// subscribers in the background.
func ListenBroadcast(addr string, log *logrus.Entry) (*Publisher, error) {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	p := &Publisher{
		log:    log.WithField("channel", "broadcast"),
		ln:     ln,
		subs:   make(map[net.Conn]struct{}),
		closed: make(chan struct{}),
	}
	go p.acceptLoop()
	return p, nil
}

func (p *Publisher) acceptLoop() {
	for {
		conn, err := p.ln.Accept()
		if err != nil {
			select {
			case <-p.closed:
				return
			default:
			}
			p.log.WithError(err).Warn("accept failed")
			return
		}
		p.mu.Lock()
		p.subs[conn] = struct{}{}
		p.mu.Unlock()
		p.log.WithField("remote", conn.RemoteAddr()).Debug("subscriber attached")
	}
}

// Publish sends payload to every currently attached subscriber. A
// subscriber whose connection has failed is closed and dropped with a
// warning log line; Publish
// itself never fails on a subscriber's behalf, matching the fire-and-forget
// nature of a PUB socket.
func (p *Publisher) Publish(payload []byte) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for conn := range p.subs {
		if err := writeFrame(conn, payload); err != nil {
			p.log.WithError(err).WithField("remote", conn.RemoteAddr()).Warn("dropping subscriber")
			conn.Close()
			delete(p.subs, conn)
		}
	}
}

// Addr returns the address the publisher is bound to — useful when
// ListenBroadcast was called with an ephemeral port ("host:0").
func (p *Publisher) Addr() net.Addr {
	return p.ln.Addr()
}

// Close stops accepting new subscribers and closes every attached
// connection. It is safe to call once; subsequent calls are no-ops.
func (p *Publisher) Close() error {
	p.closeOnce.Do(func() {
		close(p.closed)
		p.closeErr = p.ln.Close()
		p.mu.Lock()
		for conn := range p.subs {
			conn.Close()
		}
		p.subs = nil
		p.mu.Unlock()
	})
	return p.closeErr
}
