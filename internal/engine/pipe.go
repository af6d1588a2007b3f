package engine

import (
	"context"
	"io"
	"sync"
)

type pipeItem struct {
	event Event
	err   error
}

// Pipe is a channel-backed Stream. Emit, Fail and Close belong to a single
// producer goroutine; Next and Detach belong to the consumer.
type Pipe struct {
	items  chan pipeItem
	quit   chan struct{}
	closed bool
	detach sync.Once
}

// NewPipe creates a pipe buffering up to buffer events.
func NewPipe(buffer int) *Pipe {
	if buffer < 0 {
		buffer = 0
	}
	return &Pipe{
		items: make(chan pipeItem, buffer),
		quit:  make(chan struct{}),
	}
}

// Emit delivers one event. It reports false when the pipe is closed or the
// consumer has detached.
func (p *Pipe) Emit(event Event) bool {
	return p.send(pipeItem{event: event})
}

// Fail delivers a terminal stream error and closes the pipe.
func (p *Pipe) Fail(err error) {
	p.send(pipeItem{err: err})
	p.Close()
}

// Close ends the stream; Next returns io.EOF once the buffer drains.
func (p *Pipe) Close() {
	if p.closed {
		return
	}
	p.closed = true
	close(p.items)
}

// Detached is closed once the consumer stops reading.
func (p *Pipe) Detached() <-chan struct{} {
	return p.quit
}

// Detach tells the producer nobody is listening anymore.
func (p *Pipe) Detach() {
	p.detach.Do(func() { close(p.quit) })
}

// Next blocks for the next event, a stream error, io.EOF or ctx cancellation.
func (p *Pipe) Next(ctx context.Context) (Event, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case item, ok := <-p.items:
		if !ok {
			return nil, io.EOF
		}
		if item.err != nil {
			return nil, item.err
		}
		return item.event, nil
	}
}

func (p *Pipe) send(item pipeItem) bool {
	if p.closed {
		return false
	}
	select {
	case <-p.quit:
		return false
	default:
	}
	select {
	case p.items <- item:
		return true
	case <-p.quit:
		return false
	}
}
