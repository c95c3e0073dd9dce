package spi

import (
	"errors"
	"testing"

	"github.com/jlucas9/simulith/simerr"
)

func validConfig() Config {
	return Config{ClockHz: 1_000_000, Mode: Mode0, BitOrder: MSBFirst, CSPolarity: ActiveLow, DataBits: 8}
}

func TestTransferDelegatesToCallback(t *testing.T) {
	b := New(nil)
	err := b.Init(0, validConfig(), func(busID, csID int, tx, rx []byte) (int, error) {
		for i := range rx {
			rx[i] = tx[i] ^ 0xFF
		}
		return len(tx), nil
	})
	if err != nil {
		t.Fatal(err)
	}

	tx := []byte{0x00, 0xAA}
	rx := make([]byte, 2)
	n, err := b.Transfer(0, 0, tx, rx)
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Fatalf("n = %d, want 2", n)
	}
	if rx[0] != 0xFF || rx[1] != 0x55 {
		t.Fatalf("rx = %v, want [0xFF 0x55]", rx)
	}
}

func TestZeroLengthIsNoop(t *testing.T) {
	b := New(nil)
	called := false
	b.Init(0, validConfig(), func(busID, csID int, tx, rx []byte) (int, error) {
		called = true
		return 0, nil
	})
	n, err := b.Transfer(0, 0, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	if n != 0 || called {
		t.Fatal("expected no-op, callback not invoked")
	}
}

func TestTransferCallbackRequired(t *testing.T) {
	b := New(nil)
	err := b.Init(0, validConfig(), nil)
	if !errors.Is(err, simerr.ErrInvalidConfig) {
		t.Fatalf("want ErrInvalidConfig, got %v", err)
	}
}

func TestInvalidConfigRanges(t *testing.T) {
	b := New(nil)
	cases := []Config{
		{ClockHz: 1, Mode: Mode0, BitOrder: MSBFirst, CSPolarity: ActiveLow, DataBits: 8},
		{ClockHz: 1_000_000, Mode: 99, BitOrder: MSBFirst, CSPolarity: ActiveLow, DataBits: 8},
		{ClockHz: 1_000_000, Mode: Mode0, BitOrder: MSBFirst, CSPolarity: ActiveLow, DataBits: 2},
	}
	for i, c := range cases {
		if err := b.Init(i, c, func(int, int, []byte, []byte) (int, error) { return 0, nil }); !errors.Is(err, simerr.ErrInvalidConfig) {
			t.Fatalf("case %d: want ErrInvalidConfig, got %v", i, err)
		}
	}
}

func TestTransferOnUninitializedBus(t *testing.T) {
	b := New(nil)
	_, err := b.Transfer(0, 0, []byte{1}, make([]byte, 1))
	if !errors.Is(err, simerr.ErrNotInitialized) {
		t.Fatalf("want ErrNotInitialized, got %v", err)
	}
}
