package ring

import "testing"

func TestPushPopEmptyRoundtrip(t *testing.T) {
	b := New[byte](8)
	for round := 0; round < 3; round++ {
		for i := 0; i < 7; i++ {
			if !b.Push(byte(i)) {
				t.Fatalf("round %d: push %d should have succeeded", round, i)
			}
		}
		if b.Len() != 7 {
			t.Fatalf("round %d: len = %d, want 7", round, b.Len())
		}
		for i := 0; i < 7; i++ {
			v, ok := b.Pop()
			if !ok || v != byte(i) {
				t.Fatalf("round %d: pop %d = (%v, %v)", round, i, v, ok)
			}
		}
		if b.Len() != 0 {
			t.Fatalf("round %d: len = %d, want 0", round, b.Len())
		}
	}
}

func TestOverflowDropsNewest(t *testing.T) {
	b := New[int](4) // capacity 3
	for i := 0; i < 3; i++ {
		if !b.Push(i) {
			t.Fatalf("push %d should have succeeded", i)
		}
	}
	if b.Push(99) {
		t.Fatal("push into full ring should fail")
	}
	for i := 0; i < 3; i++ {
		v, ok := b.Pop()
		if !ok || v != i {
			t.Fatalf("pop %d = (%v, %v)", i, v, ok)
		}
	}
	if _, ok := b.Pop(); ok {
		t.Fatal("pop on empty ring should fail")
	}
}

func TestCap(t *testing.T) {
	b := New[int](32)
	if b.Cap() != 31 {
		t.Fatalf("Cap() = %d, want 31", b.Cap())
	}
}

func TestReset(t *testing.T) {
	b := New[int](4)
	b.Push(1)
	b.Push(2)
	b.Reset()
	if b.Len() != 0 {
		t.Fatalf("len after reset = %d, want 0", b.Len())
	}
	if !b.Push(3) {
		t.Fatal("push after reset should succeed")
	}
}
