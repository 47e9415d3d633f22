// Package adc reads raw samples from an analog input, one per loop tick.
package adc

import (
	"fmt"

	fx "github.com/embassist/esp32s3-remote-mic/pkg/framework"
	"github.com/embassist/esp32s3-remote-mic/pkg/frame"
)

// Input is an initialized analog input handle.
//
// Read blocks until one conversion is complete.
type Input interface {
	Read() (frame.Sample, error)
}

// InputFunc is the func form of Input.
type InputFunc func() (frame.Sample, error)

// Read implements Input.
func (f InputFunc) Read() (frame.Sample, error) {
	return f()
}

// Sampler performs exactly one read of Input per tick and appends the
// sample to Buffer.
//
// A read error is a peripheral fault and stops the loop.
type Sampler struct {
	Input  Input
	Buffer *frame.Buffer

	count uint64
}

// NewSampler creates a Sampler.
func NewSampler(input Input, buffer *frame.Buffer) *Sampler {
	return &Sampler{Input: input, Buffer: buffer}
}

// AddToLoop implements LoopAdder.
func (s *Sampler) AddToLoop(loop *fx.Loop) {
	loop.AddController(fx.PrLvSense, s)
}

// Control implements Controller.
func (s *Sampler) Control(cc fx.ControlContext) error {
	v, err := s.Input.Read()
	if err != nil {
		return fmt.Errorf("adc read at tick %d: %w", cc.Tick(), err)
	}
	s.count++
	return s.Buffer.Append(v)
}

// Count returns the number of samples read.
func (s *Sampler) Count() uint64 {
	return s.count
}
