package i2c

import (
	"errors"
	"testing"

	"github.com/jlucas9/simulith/simerr"
)

func TestReadWriteDelegation(t *testing.T) {
	b := New(nil)
	store := map[uint8]byte{}

	err := b.Init(0,
		func(addr, reg uint8, data []byte) error {
			data[0] = store[reg]
			return nil
		},
		func(addr, reg uint8, data []byte) error {
			store[reg] = data[0]
			return nil
		},
	)
	if err != nil {
		t.Fatal(err)
	}

	if err := b.Write(0, 0x50, 0x01, []byte{42}); err != nil {
		t.Fatal(err)
	}
	buf := make([]byte, 1)
	if err := b.Read(0, 0x50, 0x01, buf); err != nil {
		t.Fatal(err)
	}
	if buf[0] != 42 {
		t.Fatalf("read = %d, want 42", buf[0])
	}
}

func TestInitRequiresBothCallbacks(t *testing.T) {
	b := New(nil)
	err := b.Init(0, func(addr, reg uint8, data []byte) error { return nil }, nil)
	if !errors.Is(err, simerr.ErrInvalidConfig) {
		t.Fatalf("want ErrInvalidConfig, got %v", err)
	}
}

func TestOperationsOnUnknownBus(t *testing.T) {
	b := New(nil)
	err := b.Read(3, 0, 0, make([]byte, 1))
	if !errors.Is(err, simerr.ErrNotInitialized) {
		t.Fatalf("want ErrNotInitialized, got %v", err)
	}
}

func TestInvalidBusID(t *testing.T) {
	b := New(nil)
	err := b.Init(MaxBuses, func(addr, reg uint8, data []byte) error { return nil }, func(addr, reg uint8, data []byte) error { return nil })
	if !errors.Is(err, simerr.ErrInvalidArgument) {
		t.Fatalf("want ErrInvalidArgument, got %v", err)
	}
}
