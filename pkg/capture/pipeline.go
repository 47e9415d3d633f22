// Package capture runs the sampling pipeline: one sample per tick into a
// frame buffer, and one encoded frame sent per full buffer.
package capture

import (
	"context"
	"time"

	"github.com/golang/glog"

	"github.com/embassist/esp32s3-remote-mic/pkg/adc"
	fx "github.com/embassist/esp32s3-remote-mic/pkg/framework"
	"github.com/embassist/esp32s3-remote-mic/pkg/frame"
	"github.com/embassist/esp32s3-remote-mic/pkg/transport"
)

// Pipeline samples Input at SampleRate and sends frames through Transport.
//
// Every session starts with an empty buffer and a header-carrying frame.
// A session fault closes the session and opens a new one; any other error
// stops Run.
type Pipeline struct {
	Transport  transport.Transport
	Encoder    *frame.Encoder
	SampleRate uint32
	// SessionRetryDelay is waited before reopening after a session fault.
	SessionRetryDelay time.Duration
	// Ticks replaces the sample clock, mostly for testing.
	Ticks <-chan time.Time

	sampler  *adc.Sampler
	buffer   *frame.Buffer
	frames   uint64
	sessions uint64
}

// New creates a Pipeline with frames of capacity samples.
func New(input adc.Input, capacity int, encoder *frame.Encoder, tr transport.Transport) *Pipeline {
	buffer := frame.NewBuffer(capacity)
	return &Pipeline{
		Transport:  tr,
		Encoder:    encoder,
		SampleRate: encoder.Format.SampleRate,
		sampler:    adc.NewSampler(input, buffer),
		buffer:     buffer,
	}
}

// Name implements Named.
func (p *Pipeline) Name() string {
	return "capture"
}

// Frames returns the number of frames sent.
func (p *Pipeline) Frames() uint64 {
	return p.frames
}

// Sessions returns the number of sessions opened.
func (p *Pipeline) Sessions() uint64 {
	return p.sessions
}

// Run implements Runnable.
func (p *Pipeline) Run(ctx context.Context) error {
	for {
		session, err := p.Transport.Open(ctx)
		if err == nil {
			p.sessions++
			err = p.runSession(ctx, session)
			session.Close()
			if err == nil {
				return nil
			}
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if !transport.IsSessionLost(err) {
			return err
		}
		glog.Warningf("capture: %v, reopening", err)
		if err := fx.Sleep(ctx, p.SessionRetryDelay); err != nil {
			return err
		}
	}
}

func (p *Pipeline) runSession(ctx context.Context, session transport.Session) error {
	p.buffer.Reset()
	p.Encoder.Reset()
	sessionFrames := uint64(0)
	send := fx.ControlFunc(func(cc fx.ControlContext) error {
		if !p.buffer.Full() {
			return nil
		}
		encoded := p.Encoder.Encode(p.buffer.Drain())
		if err := session.Send(cc.Context(), encoded); err != nil {
			return err
		}
		p.frames++
		if sessionFrames++; sessionFrames == 1 {
			glog.Infof("capture: session %s streaming", session.ID())
		}
		return nil
	})

	interval := time.Second / time.Duration(p.SampleRate)
	loop := fx.NewLoop(interval).Add(p.sampler)
	loop.AddController(fx.PrLvAcuate, send)
	if p.Ticks != nil {
		loop.WithTicks(p.Ticks)
	}
	return loop.Run(ctx)
}
