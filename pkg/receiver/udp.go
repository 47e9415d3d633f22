package receiver

import (
	"context"
	"net"
	"net/netip"
	"sync/atomic"
	"time"

	"github.com/golang/glog"

	fx "github.com/embassist/esp32s3-remote-mic/pkg/framework"
)

// Hello is the datagram announcing the receiver to a learning device.
const Hello = "Ready"

// MaxFrameSize bounds one received datagram.
const MaxFrameSize = 65507

// UDPReceiver announces itself to Device and records every datagram
// received from it.
type UDPReceiver struct {
	Device    netip.AddrPort
	Recording *Recording
	// HelloInterval resends Hello whenever no frame arrived for that long,
	// so a device opening a new session learns the receiver again. 0 sends
	// Hello once.
	HelloInterval time.Duration
	// Listen is the local address, empty for any.
	Listen string
}

// NewUDPReceiver creates a UDPReceiver.
func NewUDPReceiver(device netip.AddrPort, rec *Recording) *UDPReceiver {
	return &UDPReceiver{Device: device, Recording: rec, HelloInterval: time.Second}
}

// Name implements Named.
func (r *UDPReceiver) Name() string {
	return "udp-receiver"
}

// Run implements Runnable.
func (r *UDPReceiver) Run(ctx context.Context) error {
	listen := r.Listen
	if listen == "" {
		listen = ":0"
	}
	laddr, err := net.ResolveUDPAddr("udp", listen)
	if err != nil {
		return err
	}
	conn, err := net.ListenUDP("udp", laddr)
	if err != nil {
		return err
	}
	glog.Infof("receiver: listening on %s, device %s", conn.LocalAddr(), r.Device)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	var lastFrame atomic.Int64
	go r.announce(ctx, conn, &lastFrame)

	return fx.RunWithContextCloser(ctx, conn, func() error {
		buf := make([]byte, MaxFrameSize)
		for {
			n, from, err := conn.ReadFromUDPAddrPort(buf)
			if err != nil {
				return err
			}
			if from.Addr().Unmap() != r.Device.Addr().Unmap() {
				glog.V(2).Infof("receiver: ignored %d bytes from %s", n, from)
				continue
			}
			lastFrame.Store(time.Now().UnixNano())
			if err := r.Recording.Add(buf[:n]); err != nil {
				glog.Warningf("receiver: bad frame from %s: %v", from, err)
				continue
			}
			if glog.V(2) {
				glog.Infof("receiver: frame %d, %d bytes", r.Recording.Frames(), n)
			}
		}
	})
}

func (r *UDPReceiver) announce(ctx context.Context, conn *net.UDPConn, lastFrame *atomic.Int64) {
	for {
		if time.Since(time.Unix(0, lastFrame.Load())) >= r.HelloInterval {
			glog.V(2).Infof("receiver: hello to %s", r.Device)
			if _, err := conn.WriteToUDPAddrPort([]byte(Hello), r.Device); err != nil {
				glog.Warningf("receiver: hello to %s: %v", r.Device, err)
			}
		}
		if r.HelloInterval <= 0 {
			return
		}
		if err := fx.Sleep(ctx, r.HelloInterval); err != nil {
			return
		}
	}
}
