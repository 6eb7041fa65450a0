package relay

import "sync"

// Transport accepts encoded frames for one connection.
// Send must not block; frames sent to one transport are delivered in order.
type Transport interface {
	Send(frame []byte) error
}

// Outbox is a buffered per-connection FIFO queue of outbound frames.
// A single writer drains Frames until Done is closed.
type Outbox struct {
	frames chan []byte
	done   chan struct{}
	once   sync.Once
}

// NewOutbox creates an outbox holding up to size pending frames.
func NewOutbox(size int) *Outbox {
	if size <= 0 {
		size = 1
	}
	return &Outbox{
		frames: make(chan []byte, size),
		done:   make(chan struct{}),
	}
}

// Send enqueues a frame without blocking.
func (o *Outbox) Send(frame []byte) error {
	select {
	case <-o.done:
		return ErrTransportClosed
	default:
	}

	select {
	case o.frames <- frame:
		return nil
	case <-o.done:
		return ErrTransportClosed
	default:
		return ErrSendBufferFull
	}
}

// Frames returns the queue drained by the connection writer.
func (o *Outbox) Frames() <-chan []byte {
	return o.frames
}

// Done is closed once the outbox stops accepting frames.
func (o *Outbox) Done() <-chan struct{} {
	return o.done
}

// Close stops the outbox. It is safe to call more than once.
func (o *Outbox) Close() {
	o.once.Do(func() { close(o.done) })
}

// Len returns the number of frames waiting to be written.
func (o *Outbox) Len() int {
	return len(o.frames)
}
