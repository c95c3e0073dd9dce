// Package uart implements the serial-byte peripheral family (F2):
// fixed-index channel pairs (2k talks to 2k+1) with per-port receive
// rings and an auto-reassignment rule when a requested pair is already
// taken, grounded on original_source/src/simulith_uart.c.
package uart

import (
	"fmt"

	"github.com/jlucas9/simulith/bus"
	"github.com/jlucas9/simulith/ring"
	"github.com/jlucas9/simulith/simerr"
	"github.com/sirupsen/logrus"
)

// MaxPorts is the number of requestable port indices (0..MaxPorts-1);
// the slot table itself has 2*MaxPorts entries to hold the extended
// (auto-reassigned) pool, following the C source's doubled array.
const (
	MaxPorts  = 8
	capacity  = MaxPorts * 2
	ringBytes = 4096
)

// Config mirrors simulith_uart_config_t. Validation of concrete values
// (baud table, data bits) is left to the embedder — Init stores the
// config as given and checks none of its fields.
type Config struct {
	BaudRate    uint32
	DataBits    uint8
	StopBits    uint8
	Parity      uint8
	FlowControl uint8
}

// RxFunc is invoked synchronously, on the sender's goroutine, whenever
// the paired port transmits. It mirrors simulith_uart_rx_callback.
type RxFunc func(port int, data []byte)

type port struct {
	cfg Config
	rx  RxFunc
	buf *ring.Buffer[byte]
}

// Bus owns every UART port slot.
type Bus struct {
	log   *logrus.Entry
	table *bus.Table[*port]
}

// New constructs an empty Bus.
func New(log *logrus.Entry) *Bus {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Bus{log: log.WithField("component", "uart"), table: bus.NewTable[*port](capacity)}
}

func pairOf(id int) int {
	if id%2 == 0 {
		return id + 1
	}
	return id - 1
}

// Init requests portID (0..MaxPorts-1) and returns the actually
// assigned index. If both members of portID's pair are already live,
// the request is promoted to the extended pair at MaxPorts+portID.
func (b *Bus) Init(portID int, cfg Config, rx RxFunc) (int, error) {
	if portID < 0 || portID >= MaxPorts {
		return 0, fmt.Errorf("uart: port %d: %w", portID, simerr.ErrInvalidArgument)
	}

	actual := portID
	if b.table.IsInitialized(portID) && b.table.IsInitialized(pairOf(portID)) {
		actual = MaxPorts + portID
	}

	p := &port{cfg: cfg, rx: rx, buf: ring.New[byte](ringBytes)}
	if err := b.table.Init(actual, p); err != nil {
		return 0, fmt.Errorf("uart: init %d (requested %d): %w", actual, portID, err)
	}
	b.log.WithFields(logrus.Fields{"port": actual, "requested": portID}).Debug("port initialized")
	return actual, nil
}

// Send delivers data to the paired port's receive callback and ring,
// synchronously. It returns len(data) as long as portID itself is a
// live port, regardless of whether the pair is live to receive it —
// an unpaired send is accepted and silently dropped, not rejected.
func (b *Bus) Send(portID int, data []byte) (int, error) {
	if portID < 0 || portID >= capacity || !b.table.IsInitialized(portID) {
		return 0, fmt.Errorf("uart: send on port %d: %w", portID, simerr.ErrNotInitialized)
	}
	if len(data) == 0 {
		return 0, fmt.Errorf("uart: send: %w", simerr.ErrInvalidArgument)
	}

	b.log.WithFields(logrus.Fields{"port": portID, "len": len(data)}).Debug("tx")

	target := pairOf(portID)
	if target < 0 || target >= capacity || !b.table.IsInitialized(target) {
		return len(data), nil
	}
	tp, err := b.table.Get(target)
	if err != nil {
		return len(data), nil
	}
	for _, by := range data {
		tp.buf.Push(by)
	}
	if tp.rx != nil {
		tp.rx(target, data)
	}
	return len(data), nil
}

// Receive drains up to len(buf) bytes from portID's ring, returning the
// number of bytes copied.
func (b *Bus) Receive(portID int, buf []byte) (int, error) {
	if portID < 0 || portID >= capacity || !b.table.IsInitialized(portID) {
		return 0, fmt.Errorf("uart: receive on port %d: %w", portID, simerr.ErrNotInitialized)
	}
	if len(buf) == 0 {
		return 0, fmt.Errorf("uart: receive: %w", simerr.ErrInvalidArgument)
	}
	p, err := b.table.Get(portID)
	if err != nil {
		return 0, err
	}
	n := 0
	for n < len(buf) {
		v, ok := p.buf.Pop()
		if !ok {
			break
		}
		buf[n] = v
		n++
	}
	if n > 0 {
		b.log.WithFields(logrus.Fields{"port": portID, "len": n}).Debug("rx")
	}
	return n, nil
}

// Available reports the number of bytes queued in portID's ring.
func (b *Bus) Available(portID int) (int, error) {
	if portID < 0 || portID >= capacity || !b.table.IsInitialized(portID) {
		return 0, fmt.Errorf("uart: available on port %d: %w", portID, simerr.ErrNotInitialized)
	}
	p, err := b.table.Get(portID)
	if err != nil {
		return 0, err
	}
	return p.buf.Len(), nil
}

// Close releases portID, allowing it to be reinitialized.
func (b *Bus) Close(portID int) error {
	if err := b.table.Close(portID); err != nil {
		return fmt.Errorf("uart: close %d: %w", portID, err)
	}
	b.log.WithField("port", portID).Debug("port closed")
	return nil
}
