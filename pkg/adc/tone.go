package adc

import (
	"math"

	"github.com/embassist/esp32s3-remote-mic/pkg/frame"
)

// Tone is a synthetic Input producing a sine wave centered on the domain
// midpoint. It never fails.
type Tone struct {
	Frequency  float64
	SampleRate float64
	// Amplitude is relative to the midpoint, in (0, 1].
	Amplitude float64
	Domain    frame.Domain

	n uint64
}

// NewTone creates a Tone with full amplitude.
func NewTone(frequency float64, sampleRate uint32, domain frame.Domain) *Tone {
	return &Tone{
		Frequency:  frequency,
		SampleRate: float64(sampleRate),
		Amplitude:  1,
		Domain:     domain,
	}
}

// Read implements Input.
func (t *Tone) Read() (frame.Sample, error) {
	mid := float64(t.Domain.Midpoint())
	phase := 2 * math.Pi * t.Frequency * float64(t.n) / t.SampleRate
	t.n++
	v := math.Round(mid + t.Amplitude*(mid-1)*math.Sin(phase))
	return frame.Sample(v), nil
}
