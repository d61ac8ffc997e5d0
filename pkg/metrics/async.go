package metrics

import (
	"sync"
	"sync/atomic"
)

// AsyncObserver hands events to a background goroutine so call goroutines
// never wait on disk or log I/O. When the buffer is full the event is
// dropped and counted.
type AsyncObserver struct {
	inner   Observer
	dropped atomic.Int64

	mu     sync.RWMutex
	ch     chan MetricsEvent
	closed bool
	done   chan struct{}
}

func NewAsyncObserver(inner Observer, buffer int) *AsyncObserver {
	if buffer <= 0 {
		buffer = 256
	}
	a := &AsyncObserver{
		inner: inner,
		ch:    make(chan MetricsEvent, buffer),
		done:  make(chan struct{}),
	}
	go func() {
		defer close(a.done)
		for ev := range a.ch {
			a.inner.RecordEvent(ev)
		}
	}()
	return a
}

func (a *AsyncObserver) RecordEvent(ev MetricsEvent) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.closed {
		return
	}
	select {
	case a.ch <- ev:
	default:
		a.dropped.Add(1)
	}
}

func (a *AsyncObserver) Dropped() int64 { return a.dropped.Load() }

// Close stops intake and returns once every buffered event reached the
// inner observer. It is safe to call more than once.
func (a *AsyncObserver) Close() {
	a.mu.Lock()
	if !a.closed {
		a.closed = true
		close(a.ch)
	}
	a.mu.Unlock()
	<-a.done
}
