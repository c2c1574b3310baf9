// internal/stream/buffer.go
package stream

import (
	"errors"
	"fmt"
	"math"
)

var (
	// ErrInvalidSampleRate indicates sample rate must be positive
	ErrInvalidSampleRate = errors.New("sample rate must be positive")
	// ErrInvalidLowerFrequency indicates the lower band edge must be positive
	ErrInvalidLowerFrequency = errors.New("lower frequency must be positive")
	// ErrInvalidFPS indicates the emission cadence must be positive
	ErrInvalidFPS = errors.New("fps must be positive")
	// ErrInvalidPreferSampleSize indicates the preferred sample count must be positive
	ErrInvalidPreferSampleSize = errors.New("prefer sample size must be positive")
)

// Sizing holds the buffer geometry derived once at startup.
type Sizing struct {
	// MinReadSize is the smallest batch that holds one cycle of the lower band edge
	MinReadSize int
	// SampleSize is the emitted batch length, always a power of two
	SampleSize int
	// FlushSize is the number of samples dropped from the front after each batch
	FlushSize int
	// BufferSize is the soft capacity; pending samples beyond it are overflow
	BufferSize int
}

// NewSizing derives buffer geometry from the sample rate, the lower band edge,
// the target emission cadence and the preferred batch length.
func NewSizing(sampleRate, lowerFrequency float64, fps, preferSampleSize int) (Sizing, error) {
	if sampleRate <= 0 {
		return Sizing{}, ErrInvalidSampleRate
	}
	if lowerFrequency <= 0 {
		return Sizing{}, ErrInvalidLowerFrequency
	}
	if fps <= 0 {
		return Sizing{}, ErrInvalidFPS
	}
	if preferSampleSize <= 0 {
		return Sizing{}, ErrInvalidPreferSampleSize
	}

	minReadSize := int(math.Ceil(sampleRate / lowerFrequency))
	sampleSize := ReadSize(max(minReadSize, preferSampleSize))

	return Sizing{
		MinReadSize: minReadSize,
		SampleSize:  sampleSize,
		FlushSize:   int(math.Round(sampleRate / float64(fps))),
		BufferSize:  sampleSize * 2,
	}, nil
}

// String renders the sizing for startup logs.
func (s Sizing) String() string {
	return fmt.Sprintf("minBufferReadSize=%d sampleSize=%d bufferFlushSize=%d bufferSize=%d",
		s.MinReadSize, s.SampleSize, s.FlushSize, s.BufferSize)
}

// ReadSize returns the smallest power of two, starting at 2, that is >= minSize.
func ReadSize(minSize int) int {
	readSize := 2
	for readSize < minSize {
		readSize *= 2
	}
	return readSize
}

// Batch is one fixed-length block of samples ready for analysis.
type Batch struct {
	// Samples holds exactly SampleSize samples, oldest first. The slice is
	// owned by the caller.
	Samples []float64
	// Overflow is the number of pending samples beyond BufferSize that were
	// discarded when this batch was taken
	Overflow int
}

// Buffer accumulates samples and hands out overlapping fixed-size batches.
// When the producer outpaces the consumer, samples beyond twice the batch
// size are dropped oldest-first instead of growing the buffer.
//
// Buffer is not safe for concurrent use; Push and Next must be driven by a
// single goroutine.
type Buffer struct {
	sizing  Sizing
	pending []float64
	dropped uint64
}

// NewBuffer creates an empty buffer with the given geometry.
func NewBuffer(sizing Sizing) *Buffer {
	return &Buffer{
		sizing:  sizing,
		pending: make([]float64, 0, sizing.BufferSize+sizing.SampleSize),
	}
}

// Push appends one sample to the tail.
func (b *Buffer) Push(sample float64) {
	b.pending = append(b.pending, sample)
}

// Next returns the oldest SampleSize samples once that many are pending, then
// shifts the buffer forward by FlushSize plus any overflow. It returns false
// while not enough samples have accumulated.
func (b *Buffer) Next() (Batch, bool) {
	n := len(b.pending)
	if n < b.sizing.SampleSize {
		return Batch{}, false
	}

	overflow := max(n-b.sizing.BufferSize, 0)

	// Read before shifting so the batch reflects the oldest samples present
	samples := make([]float64, b.sizing.SampleSize)
	copy(samples, b.pending)

	shift := min(b.sizing.FlushSize+overflow, n)
	remaining := copy(b.pending, b.pending[shift:])
	b.pending = b.pending[:remaining]
	b.dropped += uint64(overflow)

	return Batch{Samples: samples, Overflow: overflow}, true
}

// Len returns the number of pending samples.
func (b *Buffer) Len() int {
	return len(b.pending)
}

// Dropped returns the total number of samples discarded as overflow.
func (b *Buffer) Dropped() uint64 {
	return b.dropped
}

// Sizing returns the buffer geometry.
func (b *Buffer) Sizing() Sizing {
	return b.sizing
}

// Reset discards all pending samples and the overflow counter.
func (b *Buffer) Reset() {
	b.pending = b.pending[:0]
	b.dropped = 0
}
