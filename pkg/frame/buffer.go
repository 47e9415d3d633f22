// Package frame accumulates analog samples into fixed-size frames and
// encodes them as 16-bit PCM, optionally prefixed with a WAV container header.
package frame

import "errors"

// Sample is one raw reading from the analog input.
type Sample uint16

// ErrBufferFull is returned by Append when the buffer must be drained first.
var ErrBufferFull = errors.New("frame buffer full")

// Buffer is a bounded, ordered sequence of samples with a fixed capacity.
//
// A Buffer is owned by a single producer and needs no locking.
type Buffer struct {
	samples []Sample
	n       int
}

// NewBuffer creates a Buffer holding up to capacity samples.
func NewBuffer(capacity int) *Buffer {
	if capacity <= 0 {
		panic("frame: buffer capacity must be positive")
	}
	return &Buffer{samples: make([]Sample, capacity)}
}

// Cap returns the capacity.
func (b *Buffer) Cap() int {
	return len(b.samples)
}

// Len returns the number of buffered samples.
func (b *Buffer) Len() int {
	return b.n
}

// Full reports whether the buffer reached capacity.
func (b *Buffer) Full() bool {
	return b.n == len(b.samples)
}

// Append adds a sample to the tail. The sample is dropped and ErrBufferFull
// returned if the buffer is full.
func (b *Buffer) Append(s Sample) error {
	if b.n == len(b.samples) {
		return ErrBufferFull
	}
	b.samples[b.n] = s
	b.n++
	return nil
}

// Drain returns the buffered samples in arrival order and resets the length
// to 0. The returned slice aliases the buffer storage and is only valid until
// the next Append.
func (b *Buffer) Drain() []Sample {
	samples := b.samples[:b.n]
	b.n = 0
	return samples
}

// Reset discards buffered samples.
func (b *Buffer) Reset() {
	b.n = 0
}
