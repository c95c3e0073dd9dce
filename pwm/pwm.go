// Package pwm implements the periodic-waveform peripheral family (F5):
// a fixed bank of channels, each tracking a derived period/duty pair
// recomputed whenever frequency or duty cycle changes, grounded on
// original_source/src/simulith_pwm.c.
package pwm

import (
	"fmt"

	"github.com/jlucas9/simulith/bus"
	"github.com/jlucas9/simulith/simerr"
	"github.com/sirupsen/logrus"
)

// Limits mirror SIMULITH_PWM_MAX_CHANNELS / MIN_FREQ_HZ / MAX_FREQ_HZ.
const (
	MaxChannels = 16
	MinFreqHz   = 1
	MaxFreqHz   = 1_000_000
)

// Config mirrors simulith_pwm_config_t.
type Config struct {
	FrequencyHz uint32
	DutyCycle   uint8 // percent, 0-100
}

func validFrequency(hz uint32) bool {
	return hz >= MinFreqHz && hz <= MaxFreqHz
}

func validDuty(pct uint8) bool {
	return pct <= 100
}

type channel struct {
	cfg      Config
	running  bool
	periodNS uint32
	dutyNS   uint32
}

func (c *channel) recompute() {
	c.periodNS = 1_000_000_000 / c.cfg.FrequencyHz
	c.dutyNS = uint32((uint64(c.periodNS) * uint64(c.cfg.DutyCycle)) / 100)
}

// Bus owns every PWM channel slot.
type Bus struct {
	log   *logrus.Entry
	table *bus.Table[*channel]
}

// New constructs an empty Bus.
func New(log *logrus.Entry) *Bus {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Bus{log: log.WithField("component", "pwm"), table: bus.NewTable[*channel](MaxChannels)}
}

// Init configures chID with cfg and derives its period/duty in
// nanoseconds. The channel starts stopped.
func (b *Bus) Init(chID int, cfg Config) error {
	if chID < 0 || chID >= MaxChannels {
		return fmt.Errorf("pwm: channel %d: %w", chID, simerr.ErrInvalidArgument)
	}
	if !validFrequency(cfg.FrequencyHz) {
		return fmt.Errorf("pwm: frequency %d: %w", cfg.FrequencyHz, simerr.ErrInvalidConfig)
	}
	if !validDuty(cfg.DutyCycle) {
		return fmt.Errorf("pwm: duty cycle %d: %w", cfg.DutyCycle, simerr.ErrInvalidConfig)
	}

	ch := &channel{cfg: cfg}
	ch.recompute()
	if err := b.table.Init(chID, ch); err != nil {
		return fmt.Errorf("pwm: init %d: %w", chID, err)
	}
	b.log.WithFields(logrus.Fields{"channel": chID, "freq_hz": cfg.FrequencyHz, "duty": cfg.DutyCycle}).Debug("channel initialized")
	return nil
}

// Start marks chID as running.
func (b *Bus) Start(chID int) error {
	return b.updateRunning(chID, true)
}

// Stop marks chID as not running.
func (b *Bus) Stop(chID int) error {
	return b.updateRunning(chID, false)
}

func (b *Bus) updateRunning(chID int, running bool) error {
	if chID < 0 || chID >= MaxChannels {
		return fmt.Errorf("pwm: channel %d: %w", chID, simerr.ErrInvalidArgument)
	}
	err := b.table.Update(chID, func(ch *channel) *channel {
		ch.running = running
		return ch
	})
	if err != nil {
		return fmt.Errorf("pwm: channel %d: %w", chID, err)
	}
	b.log.WithFields(logrus.Fields{"channel": chID, "running": running}).Debug("channel run state changed")
	return nil
}

// SetDuty updates chID's duty cycle and recomputes duty_ns.
func (b *Bus) SetDuty(chID int, dutyCycle uint8) error {
	if chID < 0 || chID >= MaxChannels {
		return fmt.Errorf("pwm: channel %d: %w", chID, simerr.ErrInvalidArgument)
	}
	if !validDuty(dutyCycle) {
		return fmt.Errorf("pwm: duty cycle %d: %w", dutyCycle, simerr.ErrInvalidConfig)
	}
	err := b.table.Update(chID, func(ch *channel) *channel {
		ch.cfg.DutyCycle = dutyCycle
		ch.recompute()
		return ch
	})
	if err != nil {
		return fmt.Errorf("pwm: channel %d: %w", chID, err)
	}
	b.log.WithFields(logrus.Fields{"channel": chID, "duty": dutyCycle}).Debug("duty cycle updated")
	return nil
}

// SetFrequency updates chID's frequency and recomputes period_ns and
// duty_ns.
func (b *Bus) SetFrequency(chID int, freqHz uint32) error {
	if chID < 0 || chID >= MaxChannels {
		return fmt.Errorf("pwm: channel %d: %w", chID, simerr.ErrInvalidArgument)
	}
	if !validFrequency(freqHz) {
		return fmt.Errorf("pwm: frequency %d: %w", freqHz, simerr.ErrInvalidConfig)
	}
	err := b.table.Update(chID, func(ch *channel) *channel {
		ch.cfg.FrequencyHz = freqHz
		ch.recompute()
		return ch
	})
	if err != nil {
		return fmt.Errorf("pwm: channel %d: %w", chID, err)
	}
	b.log.WithFields(logrus.Fields{"channel": chID, "freq_hz": freqHz}).Debug("frequency updated")
	return nil
}

// Timing returns chID's derived period and duty in nanoseconds, and
// whether it is currently running.
func (b *Bus) Timing(chID int) (periodNS, dutyNS uint32, running bool, err error) {
	if chID < 0 || chID >= MaxChannels {
		return 0, 0, false, fmt.Errorf("pwm: channel %d: %w", chID, simerr.ErrInvalidArgument)
	}
	ch, err := b.table.Get(chID)
	if err != nil {
		return 0, 0, false, fmt.Errorf("pwm: channel %d: %w", chID, err)
	}
	return ch.periodNS, ch.dutyNS, ch.running, nil
}

// Close releases chID, stopping it first if it was running.
func (b *Bus) Close(chID int) error {
	if chID < 0 || chID >= MaxChannels {
		return fmt.Errorf("pwm: channel %d: %w", chID, simerr.ErrInvalidArgument)
	}
	if ch, err := b.table.Get(chID); err == nil && ch.running {
		_ = b.Stop(chID)
	}
	if err := b.table.Close(chID); err != nil {
		return fmt.Errorf("pwm: close %d: %w", chID, err)
	}
	b.log.WithField("channel", chID).Debug("channel closed")
	return nil
}
