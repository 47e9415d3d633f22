package frame

import (
	"fmt"
	"math"
)

// Rescaler maps a raw unsigned sample to the signed 16-bit PCM domain.
type Rescaler interface {
	Rescale(Sample) int16
}

// RescaleFunc is the func form of Rescaler.
type RescaleFunc func(Sample) int16

// Rescale implements Rescaler.
func (f RescaleFunc) Rescale(s Sample) int16 {
	return f(s)
}

// Domain describes the unsigned input range of an N-bit converter.
type Domain struct {
	Bits uint
}

// Midpoint returns the raw value mapped to 0.
func (d Domain) Midpoint() int {
	return 1 << (d.Bits - 1)
}

// Max returns the largest raw value.
func (d Domain) Max() int {
	return 1<<d.Bits - 1
}

// Rescale strategy names.
const (
	RescaleMidpoint = "midpoint"
	RescaleWidth    = "width"
	RescaleShift    = "shift"
)

// MidpointScale centers on the midpoint and scales by 32767/midpoint:
// 0 -> -32767, midpoint -> 0, max -> 32767*(mid-1)/mid (32751 at 12 bits).
func MidpointScale(d Domain) Rescaler {
	mid := d.Midpoint()
	return RescaleFunc(func(s Sample) int16 {
		return clamp16((int(s) - mid) * math.MaxInt16 / mid)
	})
}

// WidthScale centers on the midpoint and scales by 32767/max, which only
// covers half of the signed range.
func WidthScale(d Domain) Rescaler {
	mid, max := d.Midpoint(), d.Max()
	return RescaleFunc(func(s Sample) int16 {
		return clamp16((int(s) - mid) * math.MaxInt16 / max)
	})
}

// ShiftScale centers on the midpoint and shifts left to 16 bits.
func ShiftScale(d Domain) Rescaler {
	mid, shift := d.Midpoint(), 16-d.Bits
	return RescaleFunc(func(s Sample) int16 {
		return clamp16((int(s) - mid) << shift)
	})
}

// NewRescaler creates a Rescaler by strategy name.
func NewRescaler(name string, d Domain) (Rescaler, error) {
	if d.Bits == 0 || d.Bits > 16 {
		return nil, fmt.Errorf("invalid sample resolution: %d bits", d.Bits)
	}
	switch name {
	case RescaleMidpoint, "":
		return MidpointScale(d), nil
	case RescaleWidth:
		return WidthScale(d), nil
	case RescaleShift:
		return ShiftScale(d), nil
	}
	return nil, fmt.Errorf("unknown rescale strategy: %q", name)
}

func clamp16(v int) int16 {
	if v > math.MaxInt16 {
		return math.MaxInt16
	}
	if v < math.MinInt16 {
		return math.MinInt16
	}
	return int16(v)
}
