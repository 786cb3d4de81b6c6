package utils

import "testing"

func TestRingBuffer_Wraps(t *testing.T) {
	rb := NewRingBuffer(3)
	for i := 1; i <= 5; i++ {
		rb.Append(float64(i))
	}
	if rb.Size() != 3 {
		t.Fatalf("expected full buffer of 3, got %d", rb.Size())
	}
	all := rb.GetAll()
	if all[0] != 3 || all[1] != 4 || all[2] != 5 {
		t.Fatalf("expected [3 4 5], got %v", all)
	}
	latest := rb.GetLatest(2)
	if latest[0] != 4 || latest[1] != 5 {
		t.Errorf("expected [4 5], got %v", latest)
	}
}

func TestRingBuffer_Clear(t *testing.T) {
	rb := NewRingBuffer(4)
	for i := 1; i <= 6; i++ {
		rb.Append(float64(i))
	}
	rb.Clear()
	if rb.Size() != 0 || len(rb.GetAll()) != 0 {
		t.Fatal("expected empty buffer after Clear")
	}
	rb.Append(7)
	if all := rb.GetAll(); len(all) != 1 || all[0] != 7 {
		t.Fatalf("expected [7] after Clear and Append, got %v", all)
	}
}
