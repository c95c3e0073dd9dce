// Package gpio implements the digital-line peripheral family (F1):
// fixed ports of fixed pins, each independently configured as an input
// (floating/pull-up/pull-down) or output (push-pull/open-drain),
// grounded on original_source/src/simulith_gpio.c.
package gpio

import (
	"fmt"

	"github.com/jlucas9/simulith/bus"
	"github.com/jlucas9/simulith/simerr"
	"github.com/sirupsen/logrus"
)

// Mode mirrors simulith_gpio_mode_t.
type Mode uint8

const (
	ModeInput Mode = iota
	ModeInputPullup
	ModeInputPulldown
	ModeOutput
	ModeOutputOD
)

func (m Mode) isOutput() bool {
	return m == ModeOutput || m == ModeOutputOD
}

// MaxPorts and MaxPins reproduce SIMULITH_GPIO_MAX_PORTS/MAX_PINS.
const (
	MaxPorts = 8
	MaxPins  = 32
	capacity = MaxPorts * MaxPins
)

// Config configures a single pin at Init time.
type Config struct {
	Mode         Mode
	InitialState uint8
}

func (c Config) validate() error {
	if c.Mode > ModeOutputOD {
		return fmt.Errorf("gpio: mode %d: %w", c.Mode, simerr.ErrInvalidConfig)
	}
	if c.Mode.isOutput() && c.InitialState > 1 {
		return fmt.Errorf("gpio: initial state %d: %w", c.InitialState, simerr.ErrInvalidConfig)
	}
	return nil
}

type pin struct {
	mode  Mode
	state uint8
}

// Bus owns every GPIO port/pin slot. One Bus serves the whole simulated
// system, mirroring the C source's single static pin table.
type Bus struct {
	log   *logrus.Entry
	table *bus.Table[pin]
}

// New constructs an empty Bus.
func New(log *logrus.Entry) *Bus {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Bus{log: log.WithField("component", "gpio"), table: bus.NewTable[pin](capacity)}
}

func slot(port, pinNum uint8) (int, error) {
	if int(port) >= MaxPorts || int(pinNum) >= MaxPins {
		return 0, fmt.Errorf("gpio: port %d pin %d: %w", port, pinNum, simerr.ErrInvalidArgument)
	}
	return int(port)*MaxPins + int(pinNum), nil
}

// Init configures the pin at port.pin. Floating and pulldown inputs
// start low; pullup inputs start high; outputs start at cfg.InitialState.
func (b *Bus) Init(port, pinNum uint8, cfg Config) error {
	id, err := slot(port, pinNum)
	if err != nil {
		return err
	}
	if err := cfg.validate(); err != nil {
		return err
	}

	p := pin{mode: cfg.Mode}
	switch {
	case cfg.Mode.isOutput():
		p.state = cfg.InitialState
	case cfg.Mode == ModeInputPullup:
		p.state = 1
	default:
		p.state = 0
	}

	if err := b.table.Init(id, p); err != nil {
		return fmt.Errorf("gpio: init %d.%d: %w", port, pinNum, err)
	}
	b.log.WithFields(logrus.Fields{"port": port, "pin": pinNum, "mode": cfg.Mode, "state": p.state}).Debug("pin initialized")
	return nil
}

// Write sets an output pin's value (0 or 1).
func (b *Bus) Write(port, pinNum uint8, value uint8) error {
	id, err := slot(port, pinNum)
	if err != nil {
		return err
	}
	if value > 1 {
		return fmt.Errorf("gpio: value %d: %w", value, simerr.ErrInvalidArgument)
	}
	cur, err := b.table.Get(id)
	if err != nil {
		return fmt.Errorf("gpio: write %d.%d: %w", port, pinNum, err)
	}
	if !cur.mode.isOutput() {
		return fmt.Errorf("gpio: write %d.%d: %w", port, pinNum, simerr.ErrNotOutput)
	}
	_ = b.table.Update(id, func(p pin) pin {
		p.state = value
		return p
	})
	b.log.WithFields(logrus.Fields{"port": port, "pin": pinNum, "value": value}).Debug("pin written")
	return nil
}

// Read returns the pin's current value, whether input or output.
func (b *Bus) Read(port, pinNum uint8) (uint8, error) {
	id, err := slot(port, pinNum)
	if err != nil {
		return 0, err
	}
	p, err := b.table.Get(id)
	if err != nil {
		return 0, fmt.Errorf("gpio: read %d.%d: %w", port, pinNum, err)
	}
	return p.state, nil
}

// Toggle flips an output pin's value.
func (b *Bus) Toggle(port, pinNum uint8) error {
	id, err := slot(port, pinNum)
	if err != nil {
		return err
	}
	cur, err := b.table.Get(id)
	if err != nil {
		return fmt.Errorf("gpio: toggle %d.%d: %w", port, pinNum, err)
	}
	if !cur.mode.isOutput() {
		return fmt.Errorf("gpio: toggle %d.%d: %w", port, pinNum, simerr.ErrNotOutput)
	}
	_ = b.table.Update(id, func(p pin) pin {
		if p.state == 0 {
			p.state = 1
		} else {
			p.state = 0
		}
		return p
	})
	b.log.WithFields(logrus.Fields{"port": port, "pin": pinNum}).Debug("pin toggled")
	return nil
}

// Close releases the pin, allowing it to be reinitialized.
func (b *Bus) Close(port, pinNum uint8) error {
	id, err := slot(port, pinNum)
	if err != nil {
		return err
	}
	if err := b.table.Close(id); err != nil {
		return fmt.Errorf("gpio: close %d.%d: %w", port, pinNum, err)
	}
	b.log.WithFields(logrus.Fields{"port": port, "pin": pinNum}).Debug("pin closed")
	return nil
}
