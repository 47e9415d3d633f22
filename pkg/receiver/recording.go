// Package receiver is the remote end of the pipeline: it collects frames,
// parses the stream header and writes the captured audio as a WAV file.
package receiver

import (
	"bytes"
	"errors"
	"io"
	"os"
	"sync"
	"time"

	wav "github.com/youpy/go-wav"

	"github.com/embassist/esp32s3-remote-mic/pkg/frame"
)

// ErrNoFormat is returned when writing a recording that never saw a header.
var ErrNoFormat = errors.New("no stream header received")

// Recording accumulates PCM from received frames.
//
// A frame starting with a container header sets the format of the
// recording; the header itself is stripped.
type Recording struct {
	lock    sync.Mutex
	format  *wav.WavFormat
	pcm     bytes.Buffer
	frames  int
	headers int
}

// Add appends one received frame.
func (r *Recording) Add(data []byte) error {
	r.lock.Lock()
	defer r.lock.Unlock()
	if isHeader(data) {
		format, err := wav.NewReader(bytes.NewReader(data)).Format()
		if err != nil {
			return err
		}
		r.format = format
		r.headers++
		data = data[frame.HeaderSize:]
	}
	r.pcm.Write(data)
	r.frames++
	return nil
}

// Format returns the stream format, nil before the first header.
func (r *Recording) Format() *wav.WavFormat {
	r.lock.Lock()
	defer r.lock.Unlock()
	return r.format
}

// Frames returns the number of frames added.
func (r *Recording) Frames() int {
	r.lock.Lock()
	defer r.lock.Unlock()
	return r.frames
}

// Headers returns how many frames carried a header, i.e. sessions seen.
func (r *Recording) Headers() int {
	r.lock.Lock()
	defer r.lock.Unlock()
	return r.headers
}

// Samples returns the number of PCM sample frames received.
func (r *Recording) Samples() int {
	r.lock.Lock()
	defer r.lock.Unlock()
	if r.format == nil || r.format.BlockAlign == 0 {
		return 0
	}
	return r.pcm.Len() / int(r.format.BlockAlign)
}

// Duration returns the length of the recorded audio.
func (r *Recording) Duration() time.Duration {
	samples := r.Samples()
	format := r.Format()
	if format == nil || format.SampleRate == 0 {
		return 0
	}
	return time.Duration(samples) * time.Second / time.Duration(format.SampleRate)
}

// WriteTo writes the recording as a WAV file.
func (r *Recording) WriteTo(w io.Writer) (int64, error) {
	r.lock.Lock()
	defer r.lock.Unlock()
	if r.format == nil {
		return 0, ErrNoFormat
	}
	f := r.format
	if f.BlockAlign == 0 {
		return 0, ErrNoFormat
	}
	pcm := r.pcm.Bytes()
	pcm = pcm[:len(pcm)-len(pcm)%int(f.BlockAlign)]
	cw := &countingWriter{w: w}
	ww := wav.NewWriter(cw, uint32(len(pcm)/int(f.BlockAlign)), f.NumChannels, f.SampleRate, f.BitsPerSample)
	if _, err := ww.Write(pcm); err != nil {
		return cw.n, err
	}
	return cw.n, cw.err
}

// Save writes the recording to a file.
func (r *Recording) Save(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if _, err := r.WriteTo(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func isHeader(data []byte) bool {
	return len(data) >= frame.HeaderSize &&
		bytes.Equal(data[0:4], []byte("RIFF")) &&
		bytes.Equal(data[8:16], []byte("WAVEfmt "))
}

type countingWriter struct {
	w   io.Writer
	n   int64
	err error
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	if err != nil && c.err == nil {
		c.err = err
	}
	return n, err
}
