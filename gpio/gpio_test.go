package gpio

import (
	"errors"
	"testing"

	"github.com/jlucas9/simulith/simerr"
)

func TestInitialStateByMode(t *testing.T) {
	b := New(nil)

	if err := b.Init(0, 0, Config{Mode: ModeInputPullup}); err != nil {
		t.Fatal(err)
	}
	if v, _ := b.Read(0, 0); v != 1 {
		t.Fatalf("pullup initial state = %d, want 1", v)
	}

	if err := b.Init(0, 1, Config{Mode: ModeInputPulldown}); err != nil {
		t.Fatal(err)
	}
	if v, _ := b.Read(0, 1); v != 0 {
		t.Fatalf("pulldown initial state = %d, want 0", v)
	}

	if err := b.Init(0, 2, Config{Mode: ModeOutput, InitialState: 1}); err != nil {
		t.Fatal(err)
	}
	if v, _ := b.Read(0, 2); v != 1 {
		t.Fatalf("output initial state = %d, want 1", v)
	}
}

func TestWriteRejectsNonOutput(t *testing.T) {
	b := New(nil)
	if err := b.Init(1, 0, Config{Mode: ModeInput}); err != nil {
		t.Fatal(err)
	}
	if err := b.Write(1, 0, 1); !errors.Is(err, simerr.ErrNotOutput) {
		t.Fatalf("want ErrNotOutput, got %v", err)
	}
}

func TestToggle(t *testing.T) {
	b := New(nil)
	if err := b.Init(2, 3, Config{Mode: ModeOutputOD, InitialState: 0}); err != nil {
		t.Fatal(err)
	}
	if err := b.Toggle(2, 3); err != nil {
		t.Fatal(err)
	}
	if v, _ := b.Read(2, 3); v != 1 {
		t.Fatalf("after toggle = %d, want 1", v)
	}
	if err := b.Toggle(2, 3); err != nil {
		t.Fatal(err)
	}
	if v, _ := b.Read(2, 3); v != 0 {
		t.Fatalf("after second toggle = %d, want 0", v)
	}
}

func TestInvalidConfigRejected(t *testing.T) {
	b := New(nil)
	err := b.Init(0, 0, Config{Mode: Mode(99)})
	if !errors.Is(err, simerr.ErrInvalidConfig) {
		t.Fatalf("want ErrInvalidConfig, got %v", err)
	}
	err = b.Init(0, 0, Config{Mode: ModeOutput, InitialState: 5})
	if !errors.Is(err, simerr.ErrInvalidConfig) {
		t.Fatalf("want ErrInvalidConfig, got %v", err)
	}
}

func TestDoubleInitRejected(t *testing.T) {
	b := New(nil)
	if err := b.Init(3, 3, Config{Mode: ModeInput}); err != nil {
		t.Fatal(err)
	}
	if err := b.Init(3, 3, Config{Mode: ModeInput}); !errors.Is(err, simerr.ErrAlreadyInitialized) {
		t.Fatalf("want ErrAlreadyInitialized, got %v", err)
	}
}

func TestOutOfRangePortOrPin(t *testing.T) {
	b := New(nil)
	err := b.Init(MaxPorts, 0, Config{Mode: ModeInput})
	if !errors.Is(err, simerr.ErrInvalidArgument) {
		t.Fatalf("want ErrInvalidArgument, got %v", err)
	}
	err = b.Init(0, MaxPins, Config{Mode: ModeInput})
	if !errors.Is(err, simerr.ErrInvalidArgument) {
		t.Fatalf("want ErrInvalidArgument, got %v", err)
	}
}

func TestCloseThenReinit(t *testing.T) {
	b := New(nil)
	if err := b.Init(4, 4, Config{Mode: ModeInput}); err != nil {
		t.Fatal(err)
	}
	if err := b.Close(4, 4); err != nil {
		t.Fatal(err)
	}
	if err := b.Init(4, 4, Config{Mode: ModeOutput}); err != nil {
		t.Fatalf("reinit after close: %v", err)
	}
}
