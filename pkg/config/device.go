package config

import (
	"fmt"
	"io"
	"log"

	"github.com/golang/glog"

	"github.com/embassist/esp32s3-remote-mic/pkg/adc"
	"github.com/embassist/esp32s3-remote-mic/pkg/capture"
	fx "github.com/embassist/esp32s3-remote-mic/pkg/framework"
	"github.com/embassist/esp32s3-remote-mic/pkg/frame"
	"github.com/embassist/esp32s3-remote-mic/pkg/link"
	"github.com/embassist/esp32s3-remote-mic/pkg/transport"
	"github.com/embassist/esp32s3-remote-mic/pkg/transport/mqtt"
	"github.com/embassist/esp32s3-remote-mic/pkg/transport/stream"
	"github.com/embassist/esp32s3-remote-mic/pkg/transport/udp"
	"github.com/embassist/esp32s3-remote-mic/pkg/transport/websocket"
)

// Domain returns the raw sample domain of the input.
func (c *Config) Domain() frame.Domain {
	return frame.Domain{Bits: c.Input.Bits}
}

// NewInput creates the analog input.
func (c *Config) NewInput() (adc.Input, io.Closer, error) {
	switch c.Input.Kind {
	case InputTone:
		return adc.NewTone(c.Input.ToneFrequency, c.Format.SampleRate, c.Domain()), nil, nil
	case InputIIO:
		pin, err := adc.OpenIIO(c.Input.IIODevice, c.Input.IIOChannel, c.Input.Bits)
		if err != nil {
			return nil, nil, err
		}
		return adc.NewPinInput(pin, c.Domain()), pin, nil
	}
	return nil, nil, fmt.Errorf("unknown input: %q", c.Input.Kind)
}

// NewEncoder creates the frame encoder.
func (c *Config) NewEncoder() (*frame.Encoder, error) {
	rescaler, err := frame.NewRescaler(c.Rescale, c.Domain())
	if err != nil {
		return nil, err
	}
	return frame.NewEncoder(c.Format, rescaler), nil
}

// NewSupervisor creates the link supervisor over the configured interface,
// nil if no interface is supervised.
func (c *Config) NewSupervisor() *link.Supervisor {
	if c.Link.Interface == "" {
		return nil
	}
	s := link.NewSupervisor(link.NewInterfaceStation(c.Link.Interface), link.Credentials{
		SSID:     c.Link.SSID,
		Password: c.Link.Password,
	})
	if c.Link.RetryDelay > 0 {
		s.RetryDelay = c.Link.RetryDelay
	}
	if c.Link.AddressPollInterval > 0 {
		s.AddressPollInterval = c.Link.AddressPollInterval
	}
	if c.Link.DisassociateBackoff > 0 {
		s.DisassociateBackoff = c.Link.DisassociateBackoff
	}
	return s
}

// NewQueue creates the MQTT queue from MQTTURL.
func (c *Config) NewQueue() (*mqtt.Queue, error) {
	opts, prefix, err := mqtt.ClientOptionsFromURL(c.MQTTURL)
	if err != nil {
		return nil, fmt.Errorf("invalid MQTT URL: %w", err)
	}
	if opts.ClientID == "" {
		opts.SetClientID(c.Device)
	}
	return mqtt.NewQueue(opts, prefix), nil
}

// Device is the assembled capture device.
type Device struct {
	Config    *Config
	Link      *link.Supervisor
	Transport transport.Transport
	Pipeline  *capture.Pipeline
	// Queue is set with the MQTT transport.
	Queue *mqtt.Queue

	closers []io.Closer
}

// NewDevice assembles the device from config.
func (c *Config) NewDevice() (*Device, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	d := &Device{Config: c, Link: c.NewSupervisor()}
	var linkState link.Reader
	if d.Link != nil {
		linkState = d.Link.State()
	}

	input, closer, err := c.NewInput()
	if err != nil {
		return nil, fmt.Errorf("open input: %w", err)
	}
	d.addCloser(closer)

	encoder, err := c.NewEncoder()
	if err != nil {
		d.Close()
		return nil, err
	}

	switch c.Transport {
	case TransportStream:
		port, err := stream.OpenSerial(c.Serial.Device, c.Serial.BaudRate)
		if err != nil {
			d.Close()
			return nil, fmt.Errorf("open serial %s: %w", c.Serial.Device, err)
		}
		d.addCloser(port)
		tr := stream.New(port)
		if c.Serial.ChunkSize > 0 {
			tr.ChunkSize = c.Serial.ChunkSize
		}
		d.Transport = tr
	case TransportUDP:
		peer, _ := c.udpPeer()
		if peer.IsValid() {
			d.Transport = udp.New(c.UDP.Port, peer, linkState)
		} else {
			d.Transport = udp.NewLearning(c.UDP.Port, linkState)
		}
	case TransportWebsocket:
		tr, err := websocket.New(c.WebsocketURL, linkState)
		if err != nil {
			d.Close()
			return nil, err
		}
		d.Transport = tr
	case TransportMQTT:
		q, err := c.NewQueue()
		if err != nil {
			d.Close()
			return nil, err
		}
		d.Queue = q
		d.addCloser(q)
		d.Transport = mqtt.New(q, c.Device, c.Format, c.Capacity, linkState)
	}

	d.Pipeline = capture.New(input, c.Capacity, encoder, d.Transport)
	d.Pipeline.SessionRetryDelay = c.SessionRetryDelay
	glog.Infof("device %s: %s input, %s transport, %d samples/frame at %dHz",
		c.Device, c.Input.Kind, c.Transport, c.Capacity, c.Format.SampleRate)
	return d, nil
}

// MustNewDevice creates the device and fails on error.
func (c *Config) MustNewDevice() *Device {
	d, err := c.NewDevice()
	if err != nil {
		log.Fatalln(err)
	}
	return d
}

func (d *Device) addCloser(c io.Closer) {
	if c != nil {
		d.closers = append(d.closers, c)
	}
}

// Runnables returns the long-lived tasks of the device.
func (d *Device) Runnables() []fx.Runnable {
	runs := []fx.Runnable{d.Pipeline}
	if d.Link != nil {
		runs = append(runs, d.Link)
		if d.Queue != nil {
			runs = append(runs, &mqtt.LinkReporter{
				Queue:  d.Queue,
				Device: d.Config.Device,
				Link:   d.Link.State(),
			})
		}
	}
	return runs
}

// Close releases the input and transport resources.
func (d *Device) Close() error {
	var errs fx.AggregatedError
	for i := len(d.closers) - 1; i >= 0; i-- {
		errs.Add(d.closers[i].Close())
	}
	d.closers = nil
	return errs.Aggregate()
}
