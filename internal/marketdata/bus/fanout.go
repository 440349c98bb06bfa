package bus

import (
	"context"
	"sync"
)

// FanOut broadcasts values to N buffered output channels.
// If an output channel is full, the value is dropped for that consumer to
// prevent a slow consumer from blocking the pipeline.
type FanOut[T any] struct {
	mu      sync.RWMutex
	outputs []output[T]
	bufSize int
	closed  bool

	// OnDrop is called when a value is dropped for a subscriber.
	OnDrop func(subscriber string)
}

type output[T any] struct {
	name string
	ch   chan T
}

// NewFanOut creates a FanOut with the given buffer size for output channels.
func NewFanOut[T any](outputBufferSize int) *FanOut[T] {
	if outputBufferSize < 0 {
		outputBufferSize = 0
	}
	return &FanOut[T]{bufSize: outputBufferSize}
}

// Subscribe creates and returns a new named output channel. Subscribing
// after Close returns an already-closed channel.
func (f *FanOut[T]) Subscribe(name string) <-chan T {
	ch := make(chan T, f.bufSize)
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		close(ch)
		return ch
	}
	f.outputs = append(f.outputs, output[T]{name: name, ch: ch})
	return ch
}

// Broadcast offers v to every subscriber without blocking.
func (f *FanOut[T]) Broadcast(v T) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.closed {
		return
	}
	for _, o := range f.outputs {
		select {
		case o.ch <- v:
		default:
			if f.OnDrop != nil {
				f.OnDrop(o.name)
			}
		}
	}
}

// Run reads from input and broadcasts until ctx is cancelled or input is
// closed, then closes every output.
func (f *FanOut[T]) Run(ctx context.Context, input <-chan T) {
	defer f.Close()
	for {
		select {
		case <-ctx.Done():
			return
		case v, ok := <-input:
			if !ok {
				return
			}
			f.Broadcast(v)
		}
	}
}

// Close closes all output channels. Safe to call more than once.
func (f *FanOut[T]) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return
	}
	f.closed = true
	for _, o := range f.outputs {
		close(o.ch)
	}
}

// ChannelStat reports saturation of one subscriber channel.
type ChannelStat struct {
	Name string
	Len  int
	Cap  int
}

// ChannelStats returns (length, capacity) for each subscriber channel.
func (f *FanOut[T]) ChannelStats() []ChannelStat {
	f.mu.RLock()
	defer f.mu.RUnlock()
	stats := make([]ChannelStat, len(f.outputs))
	for i, o := range f.outputs {
		stats[i] = ChannelStat{Name: o.name, Len: len(o.ch), Cap: cap(o.ch)}
	}
	return stats
}
