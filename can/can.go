// Package can implements the framed-packet peripheral family (F4): a
// per-bus filter table and a loopback receive ring, grounded on
// original_source/src/simulith_can.c.
//
// simulith_can.c has an observed quirk this package preserves exactly
// rather than "fixing": Send stores the outgoing message into the
// bus's own receive ring whenever an rx callback is registered at
// all, regardless of whether the message actually passes any active
// filter — the filter match result is computed but then ignored by
// the "|| bus->rx_callback" condition. The registered callback itself
// is never invoked by Send; it exists purely as that gate and is
// otherwise dead wiring, which this package reproduces rather than
// second-guesses (the loopback is genuinely a loopback: a bus only
// ever talks to itself here).
package can

import (
	"fmt"

	"github.com/jlucas9/simulith/bus"
	"github.com/jlucas9/simulith/ring"
	"github.com/jlucas9/simulith/simerr"
	"github.com/sirupsen/logrus"
)

// Bitrate constants mirror SIMULITH_CAN_BITRATE_*.
const (
	Bitrate125K = 125_000
	Bitrate250K = 250_000
	Bitrate500K = 500_000
	Bitrate1M   = 1_000_000
)

const (
	MaxBuses   = 8
	MaxFilters = 16
	MaxDLC     = 8
	rxCapacity = 32

	idStdMax = 0x7FF
	idExtMax = 0x1FFFFFFF
)

// Config mirrors simulith_can_config_t.
type Config struct {
	Bitrate     uint32
	SamplePoint uint8 // percent, 50-90
	SyncJump    uint8 // 1-4
}

func (c Config) validate() error {
	if c.Bitrate < Bitrate125K || c.Bitrate > Bitrate1M {
		return fmt.Errorf("can: bitrate %d: %w", c.Bitrate, simerr.ErrInvalidConfig)
	}
	if c.SamplePoint < 50 || c.SamplePoint > 90 {
		return fmt.Errorf("can: sample point %d: %w", c.SamplePoint, simerr.ErrInvalidConfig)
	}
	if c.SyncJump < 1 || c.SyncJump > 4 {
		return fmt.Errorf("can: sync jump %d: %w", c.SyncJump, simerr.ErrInvalidConfig)
	}
	return nil
}

// Message mirrors simulith_can_message_t.
type Message struct {
	ID         uint32
	IsExtended bool
	IsRTR      bool
	DLC        uint8
	Data       [8]byte
}

func (m Message) validate() error {
	max := uint32(idStdMax)
	if m.IsExtended {
		max = idExtMax
	}
	if m.ID > max {
		return fmt.Errorf("can: id 0x%x: %w", m.ID, simerr.ErrInvalidArgument)
	}
	if m.DLC > MaxDLC {
		return fmt.Errorf("can: dlc %d: %w", m.DLC, simerr.ErrInvalidArgument)
	}
	return nil
}

// Filter mirrors simulith_can_filter_t.
type Filter struct {
	ID         uint32
	Mask       uint32
	IsExtended bool
}

func (f Filter) matches(m Message) bool {
	if m.IsExtended != f.IsExtended {
		return false
	}
	return m.ID&f.Mask == f.ID&f.Mask
}

type filterSlot struct {
	filter Filter
	active bool
}

// RxFunc is the receive callback type (simulith_can_rx_callback). It is
// registered at Init time and gates whether Send stores into the rx
// ring at all — see the package doc comment for the preserved quirk.
type RxFunc func(busID int, msg Message)

type canBus struct {
	cfg     Config
	rx      RxFunc
	filters [MaxFilters]filterSlot
	ring    *ring.Buffer[Message]
}

// Bus owns every CAN bus slot.
type Bus struct {
	log   *logrus.Entry
	table *bus.Table[*canBus]
}

// New constructs an empty Bus.
func New(log *logrus.Entry) *Bus {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Bus{log: log.WithField("component", "can"), table: bus.NewTable[*canBus](MaxBuses)}
}

// Init configures busID and clears its filter table.
func (b *Bus) Init(busID int, cfg Config, rx RxFunc) error {
	if busID < 0 || busID >= MaxBuses {
		return fmt.Errorf("can: bus %d: %w", busID, simerr.ErrInvalidArgument)
	}
	if err := cfg.validate(); err != nil {
		return err
	}
	cb := &canBus{cfg: cfg, rx: rx, ring: ring.New[Message](rxCapacity)}
	if err := b.table.Init(busID, cb); err != nil {
		return fmt.Errorf("can: init %d: %w", busID, err)
	}
	b.log.WithFields(logrus.Fields{"bus": busID, "bitrate": cfg.Bitrate}).Debug("bus initialized")
	return nil
}

// AddFilter installs f in the first free filter slot and returns its
// id, or -1 if the table is full.
func (b *Bus) AddFilter(busID int, f Filter) (int, error) {
	cb, err := b.lookup(busID)
	if err != nil {
		return -1, err
	}
	for i := range cb.filters {
		if !cb.filters[i].active {
			cb.filters[i] = filterSlot{filter: f, active: true}
			b.log.WithFields(logrus.Fields{"bus": busID, "filter": i, "id": f.ID, "mask": f.Mask}).Debug("filter added")
			return i, nil
		}
	}
	return -1, fmt.Errorf("can: bus %d: no free filter slots: %w", busID, simerr.ErrBufferFull)
}

// RemoveFilter deactivates filterID on busID.
func (b *Bus) RemoveFilter(busID, filterID int) error {
	cb, err := b.lookup(busID)
	if err != nil {
		return err
	}
	if filterID < 0 || filterID >= MaxFilters || !cb.filters[filterID].active {
		return fmt.Errorf("can: bus %d filter %d: %w", busID, filterID, simerr.ErrInvalidArgument)
	}
	cb.filters[filterID].active = false
	b.log.WithFields(logrus.Fields{"bus": busID, "filter": filterID}).Debug("filter removed")
	return nil
}

// Send validates msg and, if an rx callback is registered on busID,
// stores it into the bus's own receive ring — regardless of whether
// any active filter actually matches it. This mirrors
// simulith_can.c's observed behavior exactly (see package doc
// comment).
func (b *Bus) Send(busID int, msg Message) error {
	cb, err := b.lookup(busID)
	if err != nil {
		return err
	}
	if err := msg.validate(); err != nil {
		return err
	}

	b.log.WithFields(logrus.Fields{"bus": busID, "id": msg.ID, "dlc": msg.DLC, "ext": msg.IsExtended}).Debug("tx")

	if cb.rx != nil {
		passes := false
		for i := range cb.filters {
			if cb.filters[i].active && cb.filters[i].filter.matches(msg) {
				passes = true
				break
			}
		}
		_ = passes // computed, then ignored — see package doc comment
		if !cb.ring.Push(msg) {
			b.log.WithField("bus", busID).Warn("rx ring full, dropping message")
		}
	}
	return nil
}

// Receive pops the oldest queued message from busID's ring. ok is
// false if none is queued.
func (b *Bus) Receive(busID int) (msg Message, ok bool, err error) {
	cb, err := b.lookup(busID)
	if err != nil {
		return Message{}, false, err
	}
	msg, ok = cb.ring.Pop()
	if ok {
		b.log.WithFields(logrus.Fields{"bus": busID, "id": msg.ID}).Debug("rx")
	}
	return msg, ok, nil
}

func (b *Bus) lookup(busID int) (*canBus, error) {
	if busID < 0 || busID >= MaxBuses {
		return nil, fmt.Errorf("can: bus %d: %w", busID, simerr.ErrInvalidArgument)
	}
	cb, err := b.table.Get(busID)
	if err != nil {
		return nil, fmt.Errorf("can: bus %d: %w", busID, err)
	}
	return cb, nil
}

// Close releases busID, allowing it to be reinitialized.
func (b *Bus) Close(busID int) error {
	if err := b.table.Close(busID); err != nil {
		return fmt.Errorf("can: close %d: %w", busID, err)
	}
	b.log.WithField("bus", busID).Debug("bus closed")
	return nil
}
