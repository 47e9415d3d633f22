package frame

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	wav "github.com/youpy/go-wav"
)

var adc12 = Domain{Bits: 12}

func TestBufferAppendDrain(t *testing.T) {
	b := NewBuffer(4)
	require.Equal(t, 4, b.Cap())
	for i := 1; i <= 4; i++ {
		require.False(t, b.Full())
		require.NoError(t, b.Append(Sample(i)))
	}
	require.True(t, b.Full())
	require.ErrorIs(t, b.Append(5), ErrBufferFull)
	require.Equal(t, 4, b.Len())

	require.Equal(t, []Sample{1, 2, 3, 4}, b.Drain())
	require.Equal(t, 0, b.Len())
	require.False(t, b.Full())

	require.NoError(t, b.Append(9))
	require.Equal(t, []Sample{9}, b.Drain())
}

func TestBufferReset(t *testing.T) {
	b := NewBuffer(2)
	b.Append(1)
	b.Reset()
	require.Equal(t, 0, b.Len())
	require.Empty(t, b.Drain())
}

func TestRescaleStrategies(t *testing.T) {
	cases := []struct {
		name    string
		raw     Sample
		rescale int16
	}{
		{RescaleMidpoint, 2048, 0},
		{RescaleMidpoint, 0, -32767},
		{RescaleMidpoint, 4095, 32751},
		{RescaleMidpoint, 3072, 16383},
		{RescaleWidth, 2048, 0},
		{RescaleWidth, 4095, 16379},
		{RescaleWidth, 0, -16387},
		{RescaleShift, 2048, 0},
		{RescaleShift, 0, -32768},
		{RescaleShift, 4095, 32752},
		{RescaleShift, 2049, 16},
	}
	for _, c := range cases {
		r, err := NewRescaler(c.name, adc12)
		require.NoError(t, err)
		assert.Equal(t, c.rescale, r.Rescale(c.raw), "%s(%d)", c.name, c.raw)
	}
}

func TestRescaleClamps(t *testing.T) {
	r := MidpointScale(adc12)
	require.Equal(t, int16(32767), r.Rescale(65535))
}

func TestNewRescalerErrors(t *testing.T) {
	_, err := NewRescaler("cubic", adc12)
	require.Error(t, err)
	_, err = NewRescaler(RescaleMidpoint, Domain{})
	require.Error(t, err)
	r, err := NewRescaler("", adc12)
	require.NoError(t, err)
	require.Equal(t, int16(0), r.Rescale(2048))
}

func TestHeaderLayout(t *testing.T) {
	h := DefaultFormat.Header(512)
	expected := []byte{
		'R', 'I', 'F', 'F', 0x24, 0x04, 0x00, 0x00,
		'W', 'A', 'V', 'E',
		'f', 'm', 't', ' ', 0x10, 0x00, 0x00, 0x00,
		0x01, 0x00, 0x01, 0x00,
		0x40, 0x1f, 0x00, 0x00,
		0x80, 0x3e, 0x00, 0x00,
		0x02, 0x00, 0x10, 0x00,
		'd', 'a', 't', 'a', 0x00, 0x04, 0x00, 0x00,
	}
	require.Len(t, h, HeaderSize)
	require.Equal(t, expected, h)
}

func TestHeaderParsesBack(t *testing.T) {
	h := DefaultFormat.Header(4)
	data := append(h, make([]byte, 8)...)
	r := wav.NewReader(bytes.NewReader(data))
	f, err := r.Format()
	require.NoError(t, err)
	require.Equal(t, uint16(wav.AudioFormatPCM), f.AudioFormat)
	require.Equal(t, uint16(1), f.NumChannels)
	require.Equal(t, uint32(8000), f.SampleRate)
	require.Equal(t, uint32(16000), f.ByteRate)
	require.Equal(t, uint16(2), f.BlockAlign)
	require.Equal(t, uint16(16), f.BitsPerSample)
}

func TestFormatValidate(t *testing.T) {
	require.NoError(t, DefaultFormat.Validate())
	for _, f := range []Format{
		{SampleRate: 8000, Channels: 2, BitsPerSample: 16},
		{SampleRate: 8000, Channels: 3, BitsPerSample: 16},
		{SampleRate: 8000, Channels: 0, BitsPerSample: 16},
		{SampleRate: 8000, Channels: 1, BitsPerSample: 8},
		{SampleRate: 0, Channels: 1, BitsPerSample: 16},
	} {
		assert.Error(t, f.Validate(), "%+v", f)
	}
}

func TestEncoderHeaderOncePerSession(t *testing.T) {
	e := NewEncoder(DefaultFormat, MidpointScale(adc12))
	samples := make([]Sample, 512)
	for i := range samples {
		samples[i] = 2048
	}

	first := e.Encode(samples)
	require.Len(t, first, 2*512+HeaderSize)
	require.Equal(t, []byte("RIFF"), first[:4])
	require.Equal(t, uint32(1024), binary.LittleEndian.Uint32(first[40:44]))

	second := e.Encode(samples)
	require.Len(t, second, 2*512)
	require.Equal(t, make([]byte, 1024), second)

	e.Reset()
	third := e.Encode(samples)
	require.Len(t, third, 2*512+HeaderSize)
	require.Equal(t, first, third)
}

func TestEncodeFrameBody(t *testing.T) {
	e := NewEncoder(DefaultFormat, MidpointScale(adc12))
	body := e.EncodeFrame([]Sample{2048, 0, 4095}, false)
	require.Len(t, body, 6)
	assert.Equal(t, int16(0), int16(binary.LittleEndian.Uint16(body[0:])))
	assert.Equal(t, int16(-32767), int16(binary.LittleEndian.Uint16(body[2:])))
	assert.Equal(t, int16(32751), int16(binary.LittleEndian.Uint16(body[4:])))
}

func TestEncodeFrameHeaderFromFrameSize(t *testing.T) {
	e := NewEncoder(DefaultFormat, ShiftScale(adc12))
	out := e.EncodeFrame([]Sample{2049, 2047}, true)
	require.Len(t, out, HeaderSize+4)
	require.Equal(t, uint32(36+4), binary.LittleEndian.Uint32(out[4:8]))
	require.Equal(t, uint32(4), binary.LittleEndian.Uint32(out[40:44]))
	require.Equal(t, []byte{0x10, 0x00, 0xf0, 0xff}, out[HeaderSize:])
}

func TestEncodeDrainedBuffer(t *testing.T) {
	b := NewBuffer(3)
	e := NewEncoder(DefaultFormat, MidpointScale(adc12))
	for _, s := range []Sample{2048, 2048, 2048} {
		require.NoError(t, b.Append(s))
	}
	require.True(t, b.Full())
	out := e.Encode(b.Drain())
	require.Len(t, out, HeaderSize+6)
	require.Equal(t, 0, b.Len())
}
