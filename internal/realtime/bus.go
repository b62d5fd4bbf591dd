package realtime

import (
	"context"
	"sync"
)

// Bus is the shared broadcast medium between instances. Delivery is
// best-effort with no acknowledgement; frames from a single sender arrive in
// publish order. Subscribers receive every frame, including the sender's
// own — callers filter by Frame.Sender.
type Bus interface {
	Publish(ctx context.Context, f Frame) error
	// Subscribe registers a handler and returns a cancel func. After cancel
	// returns no further frames are handed to fn.
	Subscribe(fn func(Frame)) (func(), error)
}

// MemoryBus is an in-process Bus for tests and single-process deployments.
// Each subscriber drains a private buffered queue so a slow handler cannot
// stall publishers; a full queue drops the frame for that subscriber.
type MemoryBus struct {
	mu   sync.Mutex
	subs map[int]*memorySub
	next int
}

type memorySub struct {
	queue chan Frame
	done  chan struct{}
}

func NewMemoryBus() *MemoryBus {
	return &MemoryBus{subs: make(map[int]*memorySub)}
}

func (b *MemoryBus) Publish(_ context.Context, f Frame) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, s := range b.subs {
		select {
		case s.queue <- f:
		default:
			// Subscriber is backed up; losing a frame is tolerated.
		}
	}
	return nil
}

func (b *MemoryBus) Subscribe(fn func(Frame)) (func(), error) {
	s := &memorySub{
		queue: make(chan Frame, 256),
		done:  make(chan struct{}),
	}

	b.mu.Lock()
	id := b.next
	b.next++
	b.subs[id] = s
	b.mu.Unlock()

	go func() {
		for {
			select {
			case <-s.done:
				return
			case f := <-s.queue:
				fn(f)
			}
		}
	}()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()
			close(s.done)
		})
	}
	return cancel, nil
}
