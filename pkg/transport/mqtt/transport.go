// Package mqtt publishes frames to an MQTT broker, one message per frame.
//
// Topics, relative to the broker URL prefix:
//
//	<device>/audio  encoded frames, QoS 0
//	<device>/meta   retained StreamMeta JSON of the current session
//	<device>/link   retained LinkStatus protobuf
package mqtt

import (
	"context"
	"encoding/json"
	"time"

	"github.com/golang/glog"

	fx "github.com/embassist/esp32s3-remote-mic/pkg/framework"
	"github.com/embassist/esp32s3-remote-mic/pkg/frame"
	"github.com/embassist/esp32s3-remote-mic/pkg/link"
	"github.com/embassist/esp32s3-remote-mic/pkg/transport"
)

// Topic suffixes.
const (
	AudioTopic = "audio"
	MetaTopic  = "meta"
	LinkTopic  = "link"
)

// StreamMeta describes the frames of a session.
type StreamMeta struct {
	Session      string       `json:"session"`
	Format       frame.Format `json:"format"`
	FrameSamples int          `json:"frame_samples"`
	Started      time.Time    `json:"started"`
}

// ReconnectPollInterval is how often Open checks a reconnecting client.
const ReconnectPollInterval = 100 * time.Millisecond

// Transport publishes frames of Device.
type Transport struct {
	Queue        *Queue
	Device       string
	Format       frame.Format
	FrameSamples int
	QoS          byte
	Link         link.Reader

	started bool
}

// New creates a Transport.
func New(q *Queue, device string, format frame.Format, frameSamples int, linkState link.Reader) *Transport {
	return &Transport{
		Queue:        q,
		Device:       device,
		Format:       format,
		FrameSamples: frameSamples,
		Link:         linkState,
	}
}

// Topic returns the device topic with suffix.
func (t *Transport) Topic(suffix string) string {
	return t.Device + "/" + suffix
}

// Open implements transport.Transport.
//
// The first Open connects; later ones wait for the client's own reconnect.
func (t *Transport) Open(ctx context.Context) (transport.Session, error) {
	if err := transport.WaitLink(ctx, t.Link); err != nil {
		return nil, err
	}
	if !t.started {
		if err := t.Queue.Connect(ctx); err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, transport.SessionLost("connect", err)
		}
		t.started = true
	}
	for !t.Queue.Connected() {
		if err := fx.Sleep(ctx, ReconnectPollInterval); err != nil {
			return nil, err
		}
	}

	meta := StreamMeta{
		Session:      transport.NewSessionID(),
		Format:       t.Format,
		FrameSamples: t.FrameSamples,
		Started:      time.Now().UTC(),
	}
	payload, err := json.Marshal(&meta)
	if err != nil {
		return nil, err
	}
	if err := t.Queue.Pub(ctx, t.Topic(MetaTopic), payload, 1, true); err != nil {
		return nil, transport.SessionLost("meta", err)
	}
	glog.Infof("mqtt: session %s publishing to %q", meta.Session, t.Queue.TopicPrefix+t.Topic(AudioTopic))
	return &session{t: t, id: meta.Session}, nil
}

type session struct {
	t      *Transport
	id     string
	closed bool
}

func (s *session) ID() string {
	return s.id
}

func (s *session) Send(ctx context.Context, frame []byte) error {
	if s.closed {
		return transport.ErrClosed
	}
	if err := s.t.Queue.Pub(ctx, s.t.Topic(AudioTopic), frame, s.t.QoS, false); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return transport.SessionLost("publish", err)
	}
	return nil
}

func (s *session) Close() error {
	s.closed = true
	return nil
}
