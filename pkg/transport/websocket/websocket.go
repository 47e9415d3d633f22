// Package websocket sends each frame as one binary message to a relay.
package websocket

import (
	"context"
	"net/url"

	"github.com/golang/glog"
	"golang.org/x/net/websocket"

	"github.com/embassist/esp32s3-remote-mic/pkg/link"
	"github.com/embassist/esp32s3-remote-mic/pkg/transport"
)

// Transport dials the relay once per session.
type Transport struct {
	Config *websocket.Config
	Link   link.Reader
}

// New creates a Transport for relay URL, e.g. ws://host:8080/mic.
func New(relayURL string, linkState link.Reader) (*Transport, error) {
	u, err := url.Parse(relayURL)
	if err != nil {
		return nil, err
	}
	origin := &url.URL{Scheme: "http", Host: u.Host}
	if u.Scheme == "wss" {
		origin.Scheme = "https"
	}
	config, err := websocket.NewConfig(u.String(), origin.String())
	if err != nil {
		return nil, err
	}
	return &Transport{Config: config, Link: linkState}, nil
}

// Open implements transport.Transport. Dial failures are session faults.
func (t *Transport) Open(ctx context.Context) (transport.Session, error) {
	if err := transport.WaitLink(ctx, t.Link); err != nil {
		return nil, err
	}
	conn, err := t.Config.DialContext(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, transport.SessionLost("dial", err)
	}
	conn.PayloadType = websocket.BinaryFrame
	s := &session{Conn: conn, id: transport.NewSessionID()}
	glog.Infof("websocket: session %s connected to %s", s.id, t.Config.Location)
	return s, nil
}

type session struct {
	*websocket.Conn
	id string
}

func (s *session) ID() string {
	return s.id
}

func (s *session) Send(ctx context.Context, frame []byte) error {
	if err := websocket.Message.Send(s.Conn, frame); err != nil {
		return transport.SessionLost("send", err)
	}
	return nil
}
