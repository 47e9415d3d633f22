package adc

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"periph.io/x/conn/v3/analog"
	"periph.io/x/conn/v3/physic"
)

// IIORoot is the sysfs directory of Industrial I/O devices.
var IIORoot = "/sys/bus/iio/devices"

// IIOPin is an analog.PinADC backed by a Linux IIO voltage channel
// (in_voltage<N>_raw).
type IIOPin struct {
	device  string
	channel int
	bits    uint
	scale   float64 // millivolts per LSB, 0 if unknown
	file    *os.File
}

// OpenIIO opens channel of an IIO device, e.g. ("iio:device0", 3).
func OpenIIO(device string, channel int, bits uint) (*IIOPin, error) {
	dir := filepath.Join(IIORoot, device)
	f, err := os.Open(filepath.Join(dir, fmt.Sprintf("in_voltage%d_raw", channel)))
	if err != nil {
		return nil, err
	}
	p := &IIOPin{device: device, channel: channel, bits: bits, file: f}
	for _, name := range []string{
		fmt.Sprintf("in_voltage%d_scale", channel),
		"in_voltage_scale",
	} {
		if data, err := os.ReadFile(filepath.Join(dir, name)); err == nil {
			if scale, err := strconv.ParseFloat(strings.TrimSpace(string(data)), 64); err == nil {
				p.scale = scale
				break
			}
		}
	}
	return p, nil
}

// String implements conn.Resource.
func (p *IIOPin) String() string {
	return fmt.Sprintf("%s/in_voltage%d", p.device, p.channel)
}

// Halt implements conn.Resource.
func (p *IIOPin) Halt() error {
	return nil
}

// Name implements pin.Pin.
func (p *IIOPin) Name() string {
	return p.String()
}

// Number implements pin.Pin.
func (p *IIOPin) Number() int {
	return p.channel
}

// Function implements pin.Pin.
func (p *IIOPin) Function() string {
	return "ADC"
}

// Range implements analog.PinADC.
func (p *IIOPin) Range() (analog.Sample, analog.Sample) {
	max := int32(1)<<p.bits - 1
	return analog.Sample{}, analog.Sample{Raw: max, V: p.voltage(max)}
}

// Read implements analog.PinADC.
//
// Each read triggers a single-shot conversion in the kernel driver.
func (p *IIOPin) Read() (analog.Sample, error) {
	var buf [16]byte
	n, err := p.file.ReadAt(buf[:], 0)
	if err != nil && err != io.EOF {
		return analog.Sample{}, err
	}
	raw, err := strconv.ParseInt(strings.TrimSpace(string(buf[:n])), 10, 32)
	if err != nil {
		return analog.Sample{}, fmt.Errorf("%s: invalid reading %q: %w", p, buf[:n], err)
	}
	return analog.Sample{Raw: int32(raw), V: p.voltage(int32(raw))}, nil
}

// Close releases the channel.
func (p *IIOPin) Close() error {
	return p.file.Close()
}

func (p *IIOPin) voltage(raw int32) physic.ElectricPotential {
	return physic.ElectricPotential(float64(raw) * p.scale * float64(physic.MilliVolt))
}
