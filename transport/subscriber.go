package transport

import (
	"net"
	"sync"
)

// Subscriber is the client side of the broadcast channel: it connects to
// a Publisher and receives every frame sent after it attaches, in order.
type Subscriber struct {
	conn net.Conn

	closeOnce sync.Once
}

// DialBroadcast connects to a Publisher bound at addr.
func DialBroadcast(addr string) (*Subscriber, error) {
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return nil, err
	}
	return &Subscriber{conn: conn}, nil
}

// Recv blocks for the next frame published on this channel.
func (s *Subscriber) Recv() ([]byte, error) {
	return readFrame(s.conn)
}

// Close disconnects from the publisher. Safe to call once.
func (s *Subscriber) Close() error {
	var err error
	s.closeOnce.Do(func() { err = s.conn.Close() })
	return err
}
