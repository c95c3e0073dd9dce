// Package spi implements the synchronous transfer peripheral family.
// It has no local rx ring — every transfer is delegated immediately to
// an embedder-supplied callback, mirroring a real SPI bus where
// transmit and receive happen on the same clock edge. Grounded on
// original_source/src/simulith_spi.c, with Config/Mode naming drawn
// from Daedaluz-goserial/spi/spi.go.
package spi

import (
	"fmt"

	"github.com/jlucas9/simulith/bus"
	"github.com/jlucas9/simulith/simerr"
	"github.com/sirupsen/logrus"
)

// Mode mirrors SIMULITH_SPI_MODE_{0..3} (CPOL/CPHA combinations).
type Mode uint8

const (
	Mode0 Mode = iota
	Mode1
	Mode2
	Mode3
)

// BitOrder mirrors SIMULITH_SPI_{MSB,LSB}_FIRST.
type BitOrder uint8

const (
	MSBFirst BitOrder = iota
	LSBFirst
)

// CSPolarity mirrors SIMULITH_SPI_CS_ACTIVE_{LOW,HIGH}.
type CSPolarity uint8

const (
	ActiveLow CSPolarity = iota
	ActiveHigh
)

// Limits mirror MAX_SPI_BUSES / MAX_DATA_BITS.
const (
	MaxBuses    = 8
	minDataBits = 4
	maxDataBits = 16
	minClockHz  = 1_000
	maxClockHz  = 100_000_000
)

// Config mirrors simulith_spi_config_t.
type Config struct {
	ClockHz    uint32
	Mode       Mode
	BitOrder   BitOrder
	CSPolarity CSPolarity
	DataBits   uint8
}

func (c Config) validate() error {
	if c.ClockHz < minClockHz || c.ClockHz > maxClockHz {
		return fmt.Errorf("spi: clock %d: %w", c.ClockHz, simerr.ErrInvalidConfig)
	}
	if c.Mode > Mode3 {
		return fmt.Errorf("spi: mode %d: %w", c.Mode, simerr.ErrInvalidConfig)
	}
	if c.BitOrder > LSBFirst {
		return fmt.Errorf("spi: bit order %d: %w", c.BitOrder, simerr.ErrInvalidConfig)
	}
	if c.CSPolarity > ActiveHigh {
		return fmt.Errorf("spi: cs polarity %d: %w", c.CSPolarity, simerr.ErrInvalidConfig)
	}
	if c.DataBits < minDataBits || c.DataBits > maxDataBits {
		return fmt.Errorf("spi: data bits %d: %w", c.DataBits, simerr.ErrInvalidConfig)
	}
	return nil
}

// TransferFunc services a synchronous transfer: it transmits tx (which
// may be nil for a receive-only transfer) and fills rx in place (which
// may be nil for a transmit-only transfer), returning the number of
// bytes actually transferred.
type TransferFunc func(busID, csID int, tx []byte, rx []byte) (n int, err error)

type spiBus struct {
	cfg      Config
	transfer TransferFunc
}

// Bus owns every SPI bus slot.
type Bus struct {
	log   *logrus.Entry
	table *bus.Table[spiBus]
}

// New constructs an empty Bus.
func New(log *logrus.Entry) *Bus {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Bus{log: log.WithField("component", "spi"), table: bus.NewTable[spiBus](MaxBuses)}
}

// Init configures busID. A transfer callback is mandatory, matching
// the C source's refusal to register a bus it can never service.
func (b *Bus) Init(busID int, cfg Config, transfer TransferFunc) error {
	if busID < 0 || busID >= MaxBuses {
		return fmt.Errorf("spi: bus %d: %w", busID, simerr.ErrInvalidArgument)
	}
	if err := cfg.validate(); err != nil {
		return err
	}
	if transfer == nil {
		return fmt.Errorf("spi: bus %d: transfer callback required: %w", busID, simerr.ErrInvalidConfig)
	}
	if err := b.table.Init(busID, spiBus{cfg: cfg, transfer: transfer}); err != nil {
		return fmt.Errorf("spi: init %d: %w", busID, err)
	}
	b.log.WithFields(logrus.Fields{"bus": busID, "clock_hz": cfg.ClockHz, "mode": cfg.Mode}).Debug("bus initialized")
	return nil
}

// Transfer delegates a synchronous tx/rx exchange on busID.CSID to the
// registered callback. At least one of tx or rx must be non-empty; a
// zero-length request is a no-op returning (0, nil), matching the C
// source's early return for len==0.
func (b *Bus) Transfer(busID, csID int, tx []byte, rx []byte) (int, error) {
	if csID < 0 || csID >= MaxBuses {
		return 0, fmt.Errorf("spi: cs %d: %w", csID, simerr.ErrInvalidArgument)
	}
	if len(tx) == 0 && len(rx) == 0 {
		return 0, nil
	}
	if len(tx) != 0 && len(rx) != 0 && len(tx) != len(rx) {
		return 0, fmt.Errorf("spi: tx/rx length mismatch: %w", simerr.ErrInvalidArgument)
	}

	sb, err := b.lookup(busID)
	if err != nil {
		return 0, err
	}

	n, err := sb.transfer(busID, csID, tx, rx)
	if err != nil {
		return n, fmt.Errorf("spi: transfer bus %d cs %d: %w", busID, csID, err)
	}
	b.log.WithFields(logrus.Fields{"bus": busID, "cs": csID, "len": n}).Debug("transfer")
	return n, nil
}

func (b *Bus) lookup(busID int) (spiBus, error) {
	if busID < 0 || busID >= MaxBuses {
		return spiBus{}, fmt.Errorf("spi: bus %d: %w", busID, simerr.ErrInvalidArgument)
	}
	sb, err := b.table.Get(busID)
	if err != nil {
		return spiBus{}, fmt.Errorf("spi: bus %d: %w", busID, err)
	}
	return sb, nil
}

// Close releases busID, allowing it to be reinitialized.
func (b *Bus) Close(busID int) error {
	if err := b.table.Close(busID); err != nil {
		return fmt.Errorf("spi: close %d: %w", busID, err)
	}
	b.log.WithField("bus", busID).Debug("bus closed")
	return nil
}
