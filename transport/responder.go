package transport

import (
	"net"
	"sync"

	"github.com/sirupsen/logrus"
)

// Request is one inbound request/reply exchange. The server must call
// Reply exactly once per Request before handling the next one on the
// connection that produced it — that per-connection alternation is what
// makes each client's own send/recv strictly alternate.
type Request struct {
	Payload []byte

	reply chan<- []byte
}

// Reply sends payload back to the client that issued this Request.
func (r Request) Reply(payload []byte) {
	r.reply <- payload
}

// Responder is the server side of the request/reply channel: many
// clients submit requests, the server replies exactly once per request.
// Requests from different clients may arrive interleaved; Recv hands them
// out in arrival order across all attached connections.
type Responder struct {
	log *logrus.Entry

	ln net.Listener

	inbox chan Request

	closeOnce sync.Once
	closed    chan struct{}
	closeErr  error
}

// ListenReply binds a TCP listener at addr and begins accepting clients
// in the background.
func ListenReply(addr string, log *logrus.Entry) (*Responder, error) {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	r := &Responder{
		log:    log.WithField("channel", "reqrep"),
		ln:     ln,
		inbox:  make(chan Request, 64),
		closed: make(chan struct{}),
	}
	go r.acceptLoop()
	return r, nil
}

func (r *Responder) acceptLoop() {
	for {
		conn, err := r.ln.Accept()
		if err != nil {
			select {
			case <-r.closed:
				return
			default:
			}
			r.log.WithError(err).Warn("accept failed")
			return
		}
		go r.serveConn(conn)
	}
}

// serveConn reads one request at a time from conn, forwards it to the
// shared inbox, and waits for the matching reply before reading the next
// one — mirroring the client's own strict send/recv alternation.
func (r *Responder) serveConn(conn net.Conn) {
	defer conn.Close()
	for {
		payload, err := readFrame(conn)
		if err != nil {
			return
		}
		replyCh := make(chan []byte, 1)
		req := Request{Payload: payload, reply: replyCh}
		select {
		case r.inbox <- req:
		case <-r.closed:
			return
		}
		select {
		case reply := <-replyCh:
			if err := writeFrame(conn, reply); err != nil {
				return
			}
		case <-r.closed:
			return
		}
	}
}

// Recv blocks for the next request from any attached client.
func (r *Responder) Recv() (Request, error) {
	select {
	case req := <-r.inbox:
		return req, nil
	case <-r.closed:
		return Request{}, net.ErrClosed
	}
}

// Addr returns the address the responder is bound to — useful when
// ListenReply was called with an ephemeral port ("host:0").
func (r *Responder) Addr() net.Addr {
	return r.ln.Addr()
}

// Close stops accepting new clients and tears down all in-flight
// connections. Safe to call once.
func (r *Responder) Close() error {
	r.closeOnce.Do(func() {
		close(r.closed)
		r.closeErr = r.ln.Close()
	})
	return r.closeErr
}
