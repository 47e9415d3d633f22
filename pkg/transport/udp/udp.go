// Package udp sends each frame as one datagram.
//
// The destination is either configured, or learned per session from the
// source of the first datagram received on the bound port.
package udp

import (
	"context"
	"fmt"
	"net"
	"net/netip"
	"strconv"

	"github.com/golang/glog"

	fx "github.com/embassist/esp32s3-remote-mic/pkg/framework"
	"github.com/embassist/esp32s3-remote-mic/pkg/link"
	"github.com/embassist/esp32s3-remote-mic/pkg/transport"
)

// DefaultPort is the default local and remote port.
const DefaultPort = 8080

// MaxDatagram bounds the learning datagram.
const MaxDatagram = 1500

// Transport binds a UDP socket per session.
type Transport struct {
	// Host is the local bind address, empty for all.
	Host string
	Port int
	// Peer is the fixed destination. If invalid, the destination is learned.
	Peer netip.AddrPort
	// Link gates Open until an address is acquired. Optional.
	Link link.Reader
}

// New creates a Transport sending to a fixed peer.
func New(port int, peer netip.AddrPort, linkState link.Reader) *Transport {
	return &Transport{Port: port, Peer: peer, Link: linkState}
}

// NewLearning creates a Transport learning the peer from the first datagram.
func NewLearning(port int, linkState link.Reader) *Transport {
	return &Transport{Port: port, Link: linkState}
}

// Learning reports whether the destination is learned.
func (t *Transport) Learning() bool {
	return !t.Peer.IsValid()
}

// Open implements transport.Transport.
func (t *Transport) Open(ctx context.Context) (transport.Session, error) {
	if err := transport.WaitLink(ctx, t.Link); err != nil {
		return nil, err
	}
	laddr, err := net.ResolveUDPAddr("udp", net.JoinHostPort(t.Host, strconv.Itoa(t.Port)))
	if err != nil {
		return nil, err
	}
	conn, err := net.ListenUDP("udp", laddr)
	if err != nil {
		return nil, fmt.Errorf("udp bind %s: %w", laddr, err)
	}
	s := &Session{id: transport.NewSessionID(), conn: conn, peer: t.Peer}
	if t.Learning() {
		if err := s.learn(ctx); err != nil {
			conn.Close()
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, transport.SessionLost("learn", err)
		}
	}
	glog.Infof("udp: session %s bound %s, peer %s", s.id, conn.LocalAddr(), s.peer)
	return s, nil
}

// Session is a bound socket paired with a destination.
type Session struct {
	id   string
	conn *net.UDPConn
	peer netip.AddrPort
	sent uint64
}

func (s *Session) learn(ctx context.Context) error {
	buf := make([]byte, MaxDatagram)
	return fx.RunWithContextCancel(ctx, func() { s.conn.Close() }, func() error {
		n, from, err := s.conn.ReadFromUDPAddrPort(buf)
		if err != nil {
			return err
		}
		s.peer = netip.AddrPortFrom(from.Addr().Unmap(), from.Port())
		glog.V(2).Infof("udp: learned peer %s from %q", s.peer, buf[:n])
		return nil
	})
}

// ID implements transport.Session.
func (s *Session) ID() string {
	return s.id
}

// Peer returns the destination.
func (s *Session) Peer() netip.AddrPort {
	return s.peer
}

// LocalAddr returns the bound address.
func (s *Session) LocalAddr() net.Addr {
	return s.conn.LocalAddr()
}

// Send implements transport.Session. A failed send ends the session.
func (s *Session) Send(ctx context.Context, frame []byte) error {
	if _, err := s.conn.WriteToUDPAddrPort(frame, s.peer); err != nil {
		return transport.SessionLost("send", err)
	}
	s.sent++
	if glog.V(4) {
		glog.Infof("udp: frame %d (%d bytes) to %s", s.sent, len(frame), s.peer)
	}
	return nil
}

// Close implements transport.Session.
func (s *Session) Close() error {
	return s.conn.Close()
}
