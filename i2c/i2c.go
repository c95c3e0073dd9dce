// Package i2c implements the addressed-register peripheral family
// (F3): pure callback delegation to an embedder-supplied device model,
// with no local buffering, grounded on
// original_source/src/simulith_i2c.c.
package i2c

import (
	"fmt"

	"github.com/jlucas9/simulith/bus"
	"github.com/jlucas9/simulith/simerr"
	"github.com/sirupsen/logrus"
)

// MaxBuses reproduces MAX_I2C_BUSES.
const MaxBuses = 8

// ReadFunc services a read of len(data) bytes from reg on a device at
// addr, filling data in place.
type ReadFunc func(addr, reg uint8, data []byte) error

// WriteFunc services a write of data to reg on a device at addr.
type WriteFunc func(addr, reg uint8, data []byte) error

type device struct {
	read  ReadFunc
	write WriteFunc
}

// Bus owns every I2C bus slot. Both callbacks are mandatory at Init
// time, matching the C source's refusal to register a half-populated
// bus.
type Bus struct {
	log   *logrus.Entry
	table *bus.Table[device]
}

// New constructs an empty Bus.
func New(log *logrus.Entry) *Bus {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Bus{log: log.WithField("component", "i2c"), table: bus.NewTable[device](MaxBuses)}
}

// Init registers busID with its device model's read and write
// callbacks. Both must be non-nil.
func (b *Bus) Init(busID int, read ReadFunc, write WriteFunc) error {
	if busID < 0 || busID >= MaxBuses {
		return fmt.Errorf("i2c: bus %d: %w", busID, simerr.ErrInvalidArgument)
	}
	if read == nil || write == nil {
		return fmt.Errorf("i2c: bus %d: %w", busID, simerr.ErrInvalidConfig)
	}
	if err := b.table.Init(busID, device{read: read, write: write}); err != nil {
		return fmt.Errorf("i2c: init %d: %w", busID, err)
	}
	b.log.WithField("bus", busID).Debug("bus initialized")
	return nil
}

// Read delegates len(data) register bytes from addr.reg to the
// registered read callback.
func (b *Bus) Read(busID int, addr, reg uint8, data []byte) error {
	if len(data) == 0 {
		return fmt.Errorf("i2c: read: %w", simerr.ErrInvalidArgument)
	}
	d, err := b.lookup(busID)
	if err != nil {
		return err
	}
	return d.read(addr, reg, data)
}

// Write delegates data to addr.reg via the registered write callback.
func (b *Bus) Write(busID int, addr, reg uint8, data []byte) error {
	if len(data) == 0 {
		return fmt.Errorf("i2c: write: %w", simerr.ErrInvalidArgument)
	}
	d, err := b.lookup(busID)
	if err != nil {
		return err
	}
	return d.write(addr, reg, data)
}

func (b *Bus) lookup(busID int) (device, error) {
	if busID < 0 || busID >= MaxBuses {
		return device{}, fmt.Errorf("i2c: bus %d: %w", busID, simerr.ErrInvalidArgument)
	}
	d, err := b.table.Get(busID)
	if err != nil {
		return device{}, fmt.Errorf("i2c: bus %d: %w", busID, err)
	}
	return d, nil
}

// Close releases busID, allowing it to be reinitialized.
func (b *Bus) Close(busID int) error {
	if err := b.table.Close(busID); err != nil {
		return fmt.Errorf("i2c: close %d: %w", busID, err)
	}
	b.log.WithField("bus", busID).Debug("bus closed")
	return nil
}
