package audio

import (
	"sync"
)

// RingBuffer is a fixed-capacity byte ring for staging PCM between the
// websocket read path and the recording writer. Safe for concurrent use.
// One slot is kept unused to distinguish full from empty.
type RingBuffer struct {
	buf   []byte
	size  int
	read  int
	write int
	mu    sync.Mutex
}

func NewRingBuffer(size int) *RingBuffer {
	return &RingBuffer{
		buf:  make([]byte, size),
		size: size,
	}
}

// Write copies data into the ring, returning how many bytes fit.
// A full ring drops the remainder rather than blocking the caller.
func (rb *RingBuffer) Write(data []byte) int {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	n := len(data)
	if space := rb.spaceLocked(); n > space {
		n = space
	}
	if n == 0 {
		return 0
	}

	first := copy(rb.buf[rb.write:], data[:n])
	if first < n {
		copy(rb.buf, data[first:n])
	}
	rb.write = (rb.write + n) % rb.size
	return n
}

// Read copies up to len(data) buffered bytes out, returning the count
func (rb *RingBuffer) Read(data []byte) int {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	n := len(data)
	if avail := rb.availableLocked(); n > avail {
		n = avail
	}
	if n == 0 {
		return 0
	}

	first := copy(data[:n], rb.buf[rb.read:])
	if first < n {
		copy(data[first:n], rb.buf)
	}
	rb.read = (rb.read + n) % rb.size
	return n
}

// Available returns the number of buffered bytes
func (rb *RingBuffer) Available() int {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	return rb.availableLocked()
}

// Space returns how many more bytes Write can accept
func (rb *RingBuffer) Space() int {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	return rb.spaceLocked()
}

// IsEmpty reports whether no bytes are buffered
func (rb *RingBuffer) IsEmpty() bool {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	return rb.read == rb.write
}

func (rb *RingBuffer) availableLocked() int {
	if rb.write >= rb.read {
		return rb.write - rb.read
	}
	return rb.size - rb.read + rb.write
}

func (rb *RingBuffer) spaceLocked() int {
	return rb.size - rb.availableLocked() - 1
}
