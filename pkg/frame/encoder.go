package frame

import (
	"bytes"
	"fmt"

	wav "github.com/youpy/go-wav"
)

// HeaderSize is the size of the WAV container header.
const HeaderSize = 44

// Format describes the PCM stream.
type Format struct {
	SampleRate    uint32 `yaml:"sample_rate" json:"sample_rate"`
	Channels      uint16 `yaml:"channels" json:"channels"`
	BitsPerSample uint16 `yaml:"bits_per_sample" json:"bits_per_sample"`
}

// DefaultFormat is 8kHz mono 16-bit PCM.
var DefaultFormat = Format{SampleRate: 8000, Channels: 1, BitsPerSample: 16}

// Validate checks the format is one the encoder produces: mono 16-bit PCM
// at a non-zero rate.
func (f Format) Validate() error {
	if f.SampleRate == 0 || f.Channels != 1 || f.BitsPerSample != 16 {
		return fmt.Errorf("unsupported format: %d Hz, %d channels, %d bits",
			f.SampleRate, f.Channels, f.BitsPerSample)
	}
	return nil
}

// BlockAlign returns bytes per sample frame across channels.
func (f Format) BlockAlign() uint16 {
	return f.Channels * f.BitsPerSample / 8
}

// ByteRate returns bytes per second.
func (f Format) ByteRate() uint32 {
	return f.SampleRate * uint32(f.BlockAlign())
}

func (f Format) wavFormat() *wav.WavFormat {
	return &wav.WavFormat{
		AudioFormat:   wav.AudioFormatPCM,
		NumChannels:   f.Channels,
		SampleRate:    f.SampleRate,
		ByteRate:      f.ByteRate(),
		BlockAlign:    f.BlockAlign(),
		BitsPerSample: f.BitsPerSample,
	}
}

// Header returns the container header describing numSamples samples:
// dataSize = numSamples*blockAlign and fileSize = dataSize+36.
func (f Format) Header(numSamples int) []byte {
	var buf bytes.Buffer
	buf.Grow(HeaderSize)
	wav.NewWriter(&buf, uint32(numSamples), f.Channels, f.SampleRate, f.BitsPerSample)
	return buf.Bytes()
}

// Encoder turns drained buffers into encoded frames.
//
// Within one session only the first encoded frame carries the container
// header; Reset starts a new session.
type Encoder struct {
	Format   Format
	Rescaler Rescaler

	headerSent bool
	samples    []wav.Sample
}

// NewEncoder creates an Encoder.
func NewEncoder(format Format, rescaler Rescaler) *Encoder {
	return &Encoder{Format: format, Rescaler: rescaler}
}

// Reset makes the next frame carry the header again.
func (e *Encoder) Reset() {
	e.headerSent = false
}

// Encode encodes samples, prefixing the header if this is the first frame
// since the last Reset.
func (e *Encoder) Encode(samples []Sample) []byte {
	first := !e.headerSent
	e.headerSent = true
	return e.EncodeFrame(samples, first)
}

// EncodeFrame encodes samples as little-endian 16-bit PCM, prefixed with the
// header sized from this frame when isFirstFrame is set.
func (e *Encoder) EncodeFrame(samples []Sample, isFirstFrame bool) []byte {
	size := len(samples) * int(e.Format.BlockAlign())
	if isFirstFrame {
		size += HeaderSize
	}
	buf := bytes.NewBuffer(make([]byte, 0, size))
	if isFirstFrame {
		buf.Write(e.Format.Header(len(samples)))
	}

	if cap(e.samples) < len(samples) {
		e.samples = make([]wav.Sample, len(samples))
	}
	pcm := e.samples[:len(samples)]
	for n, s := range samples {
		v := int(e.Rescaler.Rescale(s))
		for ch := range pcm[n].Values {
			pcm[n].Values[ch] = v
		}
	}
	w := &wav.Writer{Writer: buf, Format: e.Format.wavFormat()}
	// bytes.Buffer writes never fail.
	w.WriteSamples(pcm)
	return buf.Bytes()
}
