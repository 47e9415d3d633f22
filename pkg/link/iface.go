package link

import (
	"context"
	"errors"
	"net"
	"net/netip"
	"time"

	"github.com/golang/glog"

	fx "github.com/embassist/esp32s3-remote-mic/pkg/framework"
)

// ErrNoSSID is returned by Configure when the credentials name no network.
var ErrNoSSID = errors.New("network name not configured")

// Interfaces looks up network interfaces by name.
type Interfaces interface {
	ByName(name string) (Interface, error)
}

// Interface is the observable part of an OS network interface.
type Interface interface {
	Up() bool
	Addrs() ([]net.Addr, error)
}

// InterfaceStation observes an OS-managed network interface, e.g. a wireless
// interface joined by wpa_supplicant.
//
// Association is the interface being up and running. The station never
// changes the OS configuration.
type InterfaceStation struct {
	Name         string
	Interfaces   Interfaces
	PollInterval time.Duration
	// AssociateTimeout bounds one Associate attempt, 0 for none.
	AssociateTimeout time.Duration

	creds Credentials
}

// NewInterfaceStation creates an InterfaceStation for the named interface.
func NewInterfaceStation(name string) *InterfaceStation {
	return &InterfaceStation{
		Name:             name,
		Interfaces:       osInterfaces{},
		PollInterval:     DefaultAddressPollInterval,
		AssociateTimeout: 30 * time.Second,
	}
}

// Configure implements Station.
func (s *InterfaceStation) Configure(creds Credentials) error {
	if creds.SSID == "" {
		return ErrNoSSID
	}
	s.creds = creds
	glog.Infof("link: station %s joins %q", s.Name, creds.SSID)
	return nil
}

// Associate implements Station.
func (s *InterfaceStation) Associate(ctx context.Context) error {
	if s.AssociateTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.AssociateTimeout)
		defer cancel()
	}
	for {
		iface, err := s.Interfaces.ByName(s.Name)
		if err != nil {
			return err
		}
		if iface.Up() {
			return nil
		}
		if err := fx.Sleep(ctx, s.PollInterval); err != nil {
			return err
		}
	}
}

// Associated implements Station.
func (s *InterfaceStation) Associated() bool {
	iface, err := s.Interfaces.ByName(s.Name)
	return err == nil && iface.Up()
}

// Address implements Station.
func (s *InterfaceStation) Address() (netip.Addr, bool) {
	iface, err := s.Interfaces.ByName(s.Name)
	if err != nil || !iface.Up() {
		return netip.Addr{}, false
	}
	return firstIPv4(iface)
}

// WaitDisassociated implements Station.
func (s *InterfaceStation) WaitDisassociated(ctx context.Context) error {
	for {
		iface, err := s.Interfaces.ByName(s.Name)
		if err != nil {
			return err
		}
		if !iface.Up() {
			return nil
		}
		if _, ok := firstIPv4(iface); !ok {
			return nil
		}
		if err := fx.Sleep(ctx, s.PollInterval); err != nil {
			return err
		}
	}
}

func firstIPv4(iface Interface) (netip.Addr, bool) {
	addrs, err := iface.Addrs()
	if err != nil {
		return netip.Addr{}, false
	}
	for _, a := range addrs {
		ipnet, ok := a.(*net.IPNet)
		if !ok {
			continue
		}
		if addr, ok := netip.AddrFromSlice(ipnet.IP); ok {
			if addr = addr.Unmap(); addr.Is4() && !addr.IsLoopback() {
				return addr, true
			}
		}
	}
	return netip.Addr{}, false
}

type osInterfaces struct{}

func (osInterfaces) ByName(name string) (Interface, error) {
	iface, err := net.InterfaceByName(name)
	if err != nil {
		return nil, err
	}
	return osInterface{iface}, nil
}

type osInterface struct {
	*net.Interface
}

func (i osInterface) Up() bool {
	return i.Flags&net.FlagUp != 0 && i.Flags&net.FlagRunning != 0
}
