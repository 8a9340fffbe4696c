package circular_buffer_go

import (
	"fmt"
	"runtime"
	"sync"
)

// CircularBuffer is a fixed-capacity byte ring guarded by a single mutex.
//
// size is tracked explicitly because readPosition == writePosition holds
// both when the buffer is empty and when it is full.
type CircularBuffer struct {
	data []byte

	readPosition  int // Index of the next byte to read, in [0, cap)
	writePosition int // Index of the next slot to write, in [0, cap)

	size int
	mu   sync.Mutex
}

// Allocates the backing store, turning a runtime allocation panic into an error.
func allocate(capacity int) (data []byte, err error) {
	defer func() {
		if r := recover(); r != nil {
			if _, ok := r.(runtime.Error); !ok {
				panic(r)
			}

			data = nil
			err = fmt.Errorf("%w: %d bytes: %v", ErrAllocationFailure, capacity, r)
		}
	}()

	data = make([]byte, capacity)

	return data, nil
}

func NewCircularBuffer(capacity int) (*CircularBuffer, error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidCapacity, capacity)
	}

	data, err := allocate(capacity)
	if err != nil {
		return nil, err
	}

	return &CircularBuffer{
		data: data,

		readPosition:  0,
		writePosition: 0,

		size: 0,
	}, nil
}

func (buffer *CircularBuffer) cap() int {
	return len(buffer.data)
}

func (buffer *CircularBuffer) freeSize() int {
	return buffer.cap() - buffer.size
}

func (buffer *CircularBuffer) GetCapacity() int {
	// Immutable after construction, no lock needed.
	return buffer.cap()
}

func (buffer *CircularBuffer) GetSize() int {
	buffer.mu.Lock()
	defer buffer.mu.Unlock()

	return buffer.size
}

func (buffer *CircularBuffer) GetFreeSize() int {
	buffer.mu.Lock()
	defer buffer.mu.Unlock()

	return buffer.freeSize()
}

func (buffer *CircularBuffer) IsEmpty() bool {
	buffer.mu.Lock()
	defer buffer.mu.Unlock()

	return buffer.size == 0
}

func (buffer *CircularBuffer) IsFull() bool {
	buffer.mu.Lock()
	defer buffer.mu.Unlock()

	return buffer.freeSize() == 0
}

// Returns the index of the next byte to be read.
func (buffer *CircularBuffer) GetReadPosition() int {
	buffer.mu.Lock()
	defer buffer.mu.Unlock()

	return buffer.readPosition
}

// Returns the index of the next slot to be written.
func (buffer *CircularBuffer) GetWritePosition() int {
	buffer.mu.Lock()
	defer buffer.mu.Unlock()

	return buffer.writePosition
}

// Discards all held data. The backing store is not scrubbed.
func (buffer *CircularBuffer) Clear() {
	buffer.mu.Lock()
	defer buffer.mu.Unlock()

	buffer.readPosition = 0
	buffer.writePosition = 0
	buffer.size = 0
}

// Copies all of p into the buffer or nothing at all.
func (buffer *CircularBuffer) Write(p []byte) (n int, err error) {
	buffer.mu.Lock()
	defer buffer.mu.Unlock()

	requestedSize := len(p)
	if requestedSize == 0 {
		return 0, nil
	}

	if requestedSize > buffer.freeSize() {
		return 0, fmt.Errorf("%w: requested %d, free %d", ErrOverflow, requestedSize, buffer.freeSize())
	}

	bufferCap := buffer.cap()

	firstPart := min(bufferCap-buffer.writePosition, requestedSize)
	bytesWritten := copy(buffer.data[buffer.writePosition:], p[:firstPart])
	bytesWritten += copy(buffer.data, p[firstPart:])

	buffer.writePosition = (buffer.writePosition + bytesWritten) % bufferCap
	buffer.size += bytesWritten

	return bytesWritten, nil
}

// Removes size bytes from the head of the buffer and returns them in a new slice.
func (buffer *CircularBuffer) Read(size int) ([]byte, error) {
	buffer.mu.Lock()
	defer buffer.mu.Unlock()

	if size < 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidSize, size)
	}

	if size > buffer.size {
		return nil, fmt.Errorf("%w: requested %d, available %d", ErrUnderflow, size, buffer.size)
	}

	p := make([]byte, size)
	if size == 0 {
		return p, nil
	}

	bufferCap := buffer.cap()

	firstPart := min(bufferCap-buffer.readPosition, size)
	bytesRead := copy(p, buffer.data[buffer.readPosition:buffer.readPosition+firstPart])
	bytesRead += copy(p[firstPart:], buffer.data[:size-firstPart])

	buffer.readPosition = (buffer.readPosition + bytesRead) % bufferCap
	buffer.size -= bytesRead

	return p, nil
}
