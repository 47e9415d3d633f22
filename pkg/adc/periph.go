package adc

import (
	"periph.io/x/conn/v3/analog"

	"github.com/embassist/esp32s3-remote-mic/pkg/frame"
)

// PinInput reads samples from a periph.io analog pin.
//
// Raw values outside the converter domain are clamped.
type PinInput struct {
	Pin    analog.PinADC
	Domain frame.Domain
}

// NewPinInput creates a PinInput.
func NewPinInput(pin analog.PinADC, domain frame.Domain) *PinInput {
	return &PinInput{Pin: pin, Domain: domain}
}

// Read implements Input.
func (p *PinInput) Read() (frame.Sample, error) {
	s, err := p.Pin.Read()
	if err != nil {
		return 0, err
	}
	raw := int(s.Raw)
	if raw < 0 {
		raw = 0
	} else if max := p.Domain.Max(); raw > max {
		raw = max
	}
	return frame.Sample(raw), nil
}

func (p *PinInput) String() string {
	return p.Pin.String()
}
