package audio

import (
	"bytes"
	"testing"
)

func TestQueueKeepsMostRecentFrames(t *testing.T) {
	q := NewFrameQueue(3)

	// Five frames of 100 bytes into a queue of capacity three.
	for i := 0; i < 5; i++ {
		data := bytes.Repeat([]byte{byte(i)}, 100)
		q.Push(data)
	}

	if got := q.Len(); got != 3 {
		t.Fatalf("queue length = %d, want 3", got)
	}
	if got := q.Dropped(); got != 2 {
		t.Fatalf("dropped = %d, want 2", got)
	}

	// The three most recent by sequence number, in order.
	wantSeqs := []uint64{2, 3, 4}
	for i, want := range wantSeqs {
		f, ok := q.Pop()
		if !ok {
			t.Fatalf("pop %d: queue empty", i)
		}
		if f.Seq != want {
			t.Fatalf("pop %d: seq = %d, want %d", i, f.Seq, want)
		}
		if len(f.Data) != 100 || f.Data[0] != byte(want) {
			t.Fatalf("pop %d: wrong frame payload", i)
		}
	}

	if _, ok := q.Pop(); ok {
		t.Fatal("queue should be empty")
	}
}

func TestQueuePushCopiesData(t *testing.T) {
	q := NewFrameQueue(4)

	buf := []byte{1, 2, 3, 4}
	q.Push(buf)
	buf[0] = 99

	f, ok := q.Pop()
	if !ok {
		t.Fatal("queue empty")
	}
	if f.Data[0] != 1 {
		t.Fatal("queued frame aliases the producer buffer")
	}
}

func TestQueueNeverBlocksProducer(t *testing.T) {
	q := NewFrameQueue(2)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 10000; i++ {
			q.Push([]byte{byte(i)})
		}
	}()

	<-done
	if got := q.Len(); got != 2 {
		t.Fatalf("queue length = %d, want 2", got)
	}
	if got := q.Dropped(); got != 9998 {
		t.Fatalf("dropped = %d, want 9998", got)
	}
}

func TestQueueClear(t *testing.T) {
	q := NewFrameQueue(4)
	q.Push([]byte{1})
	q.Push([]byte{2})
	q.Clear()

	if got := q.Len(); got != 0 {
		t.Fatalf("length after clear = %d, want 0", got)
	}
	// Sequence numbers keep climbing across a clear.
	q.Push([]byte{3})
	f, _ := q.Pop()
	if f.Seq != 2 {
		t.Fatalf("seq after clear = %d, want 2", f.Seq)
	}
}
