package circular_buffer_go

import (
	"errors"
	"io"
)

// CircularBufferInterface defines the public API for the circular buffer.
//
// The buffer holds at most GetCapacity() bytes. Write appends to the tail and
// Read consumes from the head, both wrapping around the end of the backing
// store. Neither operation waits: a Write larger than the free space fails
// with ErrOverflow and a Read larger than the held data fails with
// ErrUnderflow, and in both cases the buffer is left untouched.
//
// All methods are safe for concurrent use.
type CircularBufferInterface interface {
	GetCapacity() int
	GetSize() int
	GetFreeSize() int
	IsEmpty() bool
	IsFull() bool
	Read(size int) ([]byte, error)
	Write(p []byte) (n int, err error)
	Clear()
}

var _ CircularBufferInterface = &CircularBuffer{}
var _ io.Writer = &CircularBuffer{}

var (
	// ErrInvalidCapacity is returned when constructing a buffer with a
	// capacity that is zero or negative.
	ErrInvalidCapacity = errors.New("circularbuffer: invalid capacity")

	// ErrAllocationFailure is returned when the backing store cannot be
	// allocated at the requested capacity.
	ErrAllocationFailure = errors.New("circularbuffer: allocation failure")

	// ErrOverflow indicates a write larger than the current free space.
	ErrOverflow = errors.New("circularbuffer: not enough space to write")

	// ErrUnderflow indicates a read larger than the data currently held.
	ErrUnderflow = errors.New("circularbuffer: not enough data to read")

	// ErrInvalidSize is returned for a negative read size.
	ErrInvalidSize = errors.New("circularbuffer: invalid size")
)
