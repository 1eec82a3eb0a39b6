package buffer

import (
	"bytes"
	"errors"
	"testing"
	"time"
)

func TestTryWriteReadFull(t *testing.T) {
	sb := NewStream(16)

	if err := sb.TryWrite([]byte{1, 2, 3, 4}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if sb.Len() != 4 {
		t.Errorf("len = %d, want 4", sb.Len())
	}

	got := make([]byte, 4)
	n, err := sb.ReadFull(got, time.Second)
	if err != nil || n != 4 {
		t.Fatalf("read = %d, %v", n, err)
	}
	if !bytes.Equal(got, []byte{1, 2, 3, 4}) {
		t.Errorf("got %v", got)
	}
}

func TestTryWriteRejectsWithoutPartialWrite(t *testing.T) {
	sb := NewStream(8)
	if err := sb.TryWrite([]byte{1, 2, 3, 4, 5}); err != nil {
		t.Fatalf("first write: %v", err)
	}

	// 5 bytes used, 3 free: a 4-byte write must be rejected whole.
	err := sb.TryWrite([]byte{9, 9}, []byte{9, 9})
	if !errors.Is(err, ErrNoSpace) {
		t.Fatalf("err = %v, want ErrNoSpace", err)
	}
	if sb.Len() != 5 {
		t.Errorf("len = %d after rejected write, want 5", sb.Len())
	}

	got := make([]byte, 5)
	if _, err := sb.ReadFull(got, time.Second); err != nil {
		t.Fatalf("read: %v", err)
	}
	if !bytes.Equal(got, []byte{1, 2, 3, 4, 5}) {
		t.Errorf("content disturbed by rejected write: %v", got)
	}
}

func TestTryWriteMultipleChunksAtomic(t *testing.T) {
	sb := NewStream(8)
	if err := sb.TryWrite([]byte{0xAA, 0xBB}, []byte{1, 2, 3}); err != nil {
		t.Fatalf("write: %v", err)
	}
	got := make([]byte, 5)
	if _, err := sb.ReadFull(got, time.Second); err != nil {
		t.Fatalf("read: %v", err)
	}
	if !bytes.Equal(got, []byte{0xAA, 0xBB, 1, 2, 3}) {
		t.Errorf("got %v", got)
	}
}

func TestWraparound(t *testing.T) {
	sb := NewStream(4)
	buf := make([]byte, 3)
	for i := 0; i < 10; i++ {
		in := []byte{byte(i), byte(i + 1), byte(i + 2)}
		if err := sb.TryWrite(in); err != nil {
			t.Fatalf("write %d: %v", i, err)
		}
		if _, err := sb.ReadFull(buf, time.Second); err != nil {
			t.Fatalf("read %d: %v", i, err)
		}
		if !bytes.Equal(buf, in) {
			t.Fatalf("iteration %d: got %v want %v", i, buf, in)
		}
	}
}

func TestReadFullTimeout(t *testing.T) {
	sb := NewStream(16)
	sb.TryWrite([]byte{1})

	got := make([]byte, 4)
	start := time.Now()
	n, err := sb.ReadFull(got, 20*time.Millisecond)
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("err = %v, want ErrTimeout", err)
	}
	if n != 1 {
		t.Errorf("n = %d, want 1 partial byte", n)
	}
	if time.Since(start) < 20*time.Millisecond {
		t.Error("returned before the deadline")
	}
}

func TestReadFullUnblocksOnWrite(t *testing.T) {
	sb := NewStream(16)

	done := make(chan struct{})
	go func() {
		defer close(done)
		got := make([]byte, 2)
		n, err := sb.ReadFull(got, time.Second)
		if err != nil || n != 2 {
			t.Errorf("read = %d, %v", n, err)
		}
	}()

	time.Sleep(10 * time.Millisecond)
	sb.TryWrite([]byte{7, 8})

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("reader did not unblock")
	}
}

func TestReset(t *testing.T) {
	sb := NewStream(8)
	sb.TryWrite([]byte{1, 2, 3})
	sb.Reset()
	if sb.Len() != 0 {
		t.Errorf("len = %d after reset", sb.Len())
	}
	if sb.Free() != 8 {
		t.Errorf("free = %d after reset, want 8", sb.Free())
	}
}

func TestCloseUnblocksReader(t *testing.T) {
	sb := NewStream(8)
	done := make(chan error, 1)
	go func() {
		_, err := sb.ReadFull(make([]byte, 4), time.Minute)
		done <- err
	}()
	time.Sleep(10 * time.Millisecond)
	sb.Close()

	select {
	case err := <-done:
		if err == nil {
			t.Error("expected error from closed buffer")
		}
	case <-time.After(time.Second):
		t.Fatal("reader did not unblock on close")
	}
}
