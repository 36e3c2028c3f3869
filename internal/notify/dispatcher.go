// Package notify delivers events to a single consumer in order without
// ever blocking the producer.
package notify

import (
	"context"
	"sync"
	"time"
)

// Dispatcher queues events without bound and hands them to the consumer
// of C one at a time.
type Dispatcher[T any] struct {
	out    chan T
	notify chan struct{}
	quit   chan struct{}
	done   chan struct{}

	mu      sync.Mutex
	pending []T
	// undelivered counts pending events plus the one being handed over.
	undelivered int
	closed      bool
}

// New starts a dispatcher.
func New[T any]() *Dispatcher[T] {
	d := &Dispatcher[T]{
		out:    make(chan T),
		notify: make(chan struct{}, 1),
		quit:   make(chan struct{}),
		done:   make(chan struct{}),
	}
	go d.run()
	return d
}

// C returns the delivery channel. It is closed by Close.
func (d *Dispatcher[T]) C() <-chan T {
	return d.out
}

// Emit queues e. It never blocks; events emitted after Close are dropped.
func (d *Dispatcher[T]) Emit(e T) {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.pending = append(d.pending, e)
	d.undelivered++
	d.mu.Unlock()

	select {
	case d.notify <- struct{}{}:
	default:
	}
}

// Pending returns how many events have not been received yet.
func (d *Dispatcher[T]) Pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.undelivered
}

func (d *Dispatcher[T]) next() (T, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	var zero T
	if len(d.pending) == 0 {
		return zero, false
	}
	e := d.pending[0]
	d.pending[0] = zero
	d.pending = d.pending[1:]
	return e, true
}

func (d *Dispatcher[T]) run() {
	defer close(d.done)
	defer close(d.out)
	for {
		e, ok := d.next()
		if !ok {
			select {
			case <-d.notify:
				continue
			case <-d.quit:
				return
			}
		}
		select {
		case d.out <- e:
			d.mu.Lock()
			d.undelivered--
			d.mu.Unlock()
		case <-d.quit:
			return
		}
	}
}

// Close stops accepting events and keeps delivering the backlog until it
// is empty or ctx is done, then closes C.
func (d *Dispatcher[T]) Close(ctx context.Context) {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	d.mu.Unlock()

	ticker := time.NewTicker(5 * time.Millisecond)
	defer ticker.Stop()
	for d.Pending() > 0 {
		select {
		case <-ctx.Done():
			close(d.quit)
			<-d.done
			return
		case <-ticker.C:
		}
	}
	close(d.quit)
	<-d.done
}
