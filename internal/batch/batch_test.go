package batch

import (
	"bytes"
	"sync"
	"testing"
	"time"
)

func TestFlushesImmediatelyAtMaxBytes(t *testing.T) {
	var mu sync.Mutex
	var got []byte
	flushed := make(chan struct{}, 1)
	b := &Batcher{MaxBytes: 4, MaxDelay: time.Hour, Flush: func(data []byte) {
		mu.Lock()
		got = append([]byte(nil), data...)
		mu.Unlock()
		flushed <- struct{}{}
	}}
	b.Write([]byte("abcd"))
	select {
	case <-flushed:
	case <-time.After(time.Second):
		t.Fatal("expected immediate flush at MaxBytes")
	}
	mu.Lock()
	defer mu.Unlock()
	if !bytes.Equal(got, []byte("abcd")) {
		t.Fatalf("got %q, want %q", got, "abcd")
	}
}

func TestFlushesOnQuiescenceTimer(t *testing.T) {
	flushed := make(chan []byte, 1)
	b := &Batcher{MaxBytes: 1024, MaxDelay: 5 * time.Millisecond, Flush: func(data []byte) {
		flushed <- data
	}}
	b.Write([]byte("hi"))
	select {
	case data := <-flushed:
		if string(data) != "hi" {
			t.Fatalf("got %q, want %q", data, "hi")
		}
	case <-time.After(time.Second):
		t.Fatal("expected timer-driven flush")
	}
}

func TestDisposeDropsPendingContent(t *testing.T) {
	flushed := make(chan struct{}, 1)
	b := &Batcher{MaxBytes: 1024, MaxDelay: 5 * time.Millisecond, Flush: func(data []byte) {
		flushed <- struct{}{}
	}}
	b.Write([]byte("pending"))
	b.Dispose()
	select {
	case <-flushed:
		t.Fatal("Dispose should drop pending content, not flush it")
	case <-time.After(20 * time.Millisecond):
	}
}
