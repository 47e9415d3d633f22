package link

import (
	"context"
	"errors"
	"net/netip"
	"time"

	"github.com/golang/glog"

	fx "github.com/embassist/esp32s3-remote-mic/pkg/framework"
)

// Credentials identifies the network to join.
type Credentials struct {
	SSID     string
	Password string
}

// Station is the network interface driven by the Supervisor.
type Station interface {
	// Configure applies the credentials before association.
	Configure(Credentials) error
	// Associate blocks until associated, or fails.
	Associate(context.Context) error
	// Associated reports whether the association is still up.
	Associated() bool
	// Address returns the assigned address, if any.
	Address() (netip.Addr, bool)
	// WaitDisassociated blocks until the association is lost.
	WaitDisassociated(context.Context) error
}

// ErrDisassociated is returned by waitAddress when the association drops
// before an address is assigned.
var ErrDisassociated = errors.New("disassociated")

// Default timings.
const (
	DefaultRetryDelay          = 5 * time.Second
	DefaultAddressPollInterval = 500 * time.Millisecond
	DefaultDisassociateBackoff = 5 * time.Second
)

// Supervisor brings the link up and keeps it up.
//
// Association failures and link loss are retried after a fixed delay,
// indefinitely. Run only returns when the context is done.
type Supervisor struct {
	Station     Station
	Credentials Credentials

	RetryDelay          time.Duration
	AddressPollInterval time.Duration
	DisassociateBackoff time.Duration

	state      *Cell
	configured bool
}

// NewSupervisor creates a Supervisor with default timings.
func NewSupervisor(station Station, creds Credentials) *Supervisor {
	return &Supervisor{
		Station:             station,
		Credentials:         creds,
		RetryDelay:          DefaultRetryDelay,
		AddressPollInterval: DefaultAddressPollInterval,
		DisassociateBackoff: DefaultDisassociateBackoff,
		state:               NewCell(),
	}
}

// Name implements Named.
func (s *Supervisor) Name() string {
	return "link"
}

// State returns the link state view.
func (s *Supervisor) State() Reader {
	return s.state
}

// Run implements Runnable.
func (s *Supervisor) Run(ctx context.Context) error {
	defer s.state.Store(Down)
	for {
		if err := s.connect(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			glog.Warningf("link: association with %q failed: %v, retry in %v",
				s.Credentials.SSID, err, s.RetryDelay)
			if err := fx.Sleep(ctx, s.RetryDelay); err != nil {
				return err
			}
			continue
		}
		err := s.waitAddress(ctx)
		if err == nil {
			err = s.Station.WaitDisassociated(ctx)
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err != nil && !errors.Is(err, ErrDisassociated) {
			glog.Warningf("link: %v", err)
		}
		s.setState(Disassociating)
		glog.Warningf("link: disassociated, reconnect in %v", s.DisassociateBackoff)
		if err := fx.Sleep(ctx, s.DisassociateBackoff); err != nil {
			return err
		}
	}
}

func (s *Supervisor) connect(ctx context.Context) error {
	s.setState(Connecting)
	if !s.configured {
		if err := s.Station.Configure(s.Credentials); err != nil {
			return err
		}
		s.configured = true
	}
	if err := s.Station.Associate(ctx); err != nil {
		return err
	}
	s.setState(Associated)
	return nil
}

func (s *Supervisor) waitAddress(ctx context.Context) error {
	for {
		if !s.Station.Associated() {
			return ErrDisassociated
		}
		if addr, ok := s.Station.Address(); ok {
			glog.Infof("link: address %s acquired", addr)
			s.setState(AddressAcquired)
			return nil
		}
		if err := fx.Sleep(ctx, s.AddressPollInterval); err != nil {
			return err
		}
	}
}

func (s *Supervisor) setState(state State) {
	if s.state.Store(state) {
		glog.V(2).Infof("link: %s", state)
	}
}
