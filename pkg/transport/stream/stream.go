// Package stream sends frames over a byte-stream channel such as a serial
// port, in fixed-size chunks.
package stream

import (
	"context"
	"fmt"
	"io"

	"github.com/golang/glog"

	"github.com/embassist/esp32s3-remote-mic/pkg/transport"
)

// DefaultChunkSize is the default size of one write.
const DefaultChunkSize = 64

// Port is the write half of a byte-stream channel.
type Port interface {
	io.Writer
	// Flush blocks until written bytes are transmitted.
	Flush() error
}

type nopFlush struct {
	io.Writer
}

func (nopFlush) Flush() error {
	return nil
}

// PortOf adapts w to Port. Writers without a Flush method are flushed
// as a no-op.
func PortOf(w io.Writer) Port {
	if p, ok := w.(Port); ok {
		return p
	}
	return nopFlush{w}
}

// Transport writes each frame as consecutive chunks, flushing after every
// chunk. Write and flush failures are fatal.
type Transport struct {
	Port      Port
	ChunkSize int
}

// New creates a Transport over port.
func New(port Port) *Transport {
	return &Transport{Port: port, ChunkSize: DefaultChunkSize}
}

// Open implements transport.Transport.
func (t *Transport) Open(ctx context.Context) (transport.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	size := t.ChunkSize
	if size <= 0 {
		size = DefaultChunkSize
	}
	s := &session{id: transport.NewSessionID(), port: t.Port, chunkSize: size}
	glog.Infof("stream: session %s opened", s.id)
	return s, nil
}

type session struct {
	id        string
	port      Port
	chunkSize int
	closed    bool
}

func (s *session) ID() string {
	return s.id
}

func (s *session) Send(ctx context.Context, frame []byte) error {
	if s.closed {
		return transport.ErrClosed
	}
	for off := 0; off < len(frame); off += s.chunkSize {
		end := off + s.chunkSize
		if end > len(frame) {
			end = len(frame)
		}
		n, err := s.port.Write(frame[off:end])
		if err == nil && n < end-off {
			err = io.ErrShortWrite
		}
		if err != nil {
			return fmt.Errorf("stream write at %d: %w", off, err)
		}
		if err := s.port.Flush(); err != nil {
			return fmt.Errorf("stream flush at %d: %w", off, err)
		}
	}
	if glog.V(4) {
		glog.Infof("stream: sent %d bytes", len(frame))
	}
	return nil
}

func (s *session) Close() error {
	s.closed = true
	return nil
}
