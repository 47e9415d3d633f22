// Package config holds the device configuration: defaults, environment
// overrides, command line flags and an optional YAML file.
package config

import (
	"errors"
	"flag"
	"fmt"
	"net/netip"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/denisbrodbeck/machineid"
	"github.com/golang/glog"
	"gopkg.in/yaml.v3"

	"github.com/embassist/esp32s3-remote-mic/pkg/frame"
	"github.com/embassist/esp32s3-remote-mic/pkg/link"
	"github.com/embassist/esp32s3-remote-mic/pkg/signal"
	"github.com/embassist/esp32s3-remote-mic/pkg/transport/stream"
	"github.com/embassist/esp32s3-remote-mic/pkg/transport/udp"
)

// Transport kinds.
const (
	TransportStream    = "stream"
	TransportUDP       = "udp"
	TransportWebsocket = "websocket"
	TransportMQTT      = "mqtt"
)

// Input kinds.
const (
	InputTone = "tone"
	InputIIO  = "iio"
)

// InputConfig selects the analog source.
type InputConfig struct {
	Kind string `yaml:"kind"`
	// Bits is the converter resolution.
	Bits uint `yaml:"bits"`
	// IIODevice and IIOChannel locate in_voltage<N>_raw.
	IIODevice  string `yaml:"iio_device"`
	IIOChannel int    `yaml:"iio_channel"`
	// ToneFrequency is the frequency of the synthetic input in Hz.
	ToneFrequency float64 `yaml:"tone_frequency"`
}

// LinkConfig configures the link supervisor. An empty Interface disables
// supervision and datagram transports open immediately.
type LinkConfig struct {
	Interface           string        `yaml:"interface"`
	SSID                string        `yaml:"ssid"`
	Password            string        `yaml:"password"`
	RetryDelay          time.Duration `yaml:"retry_delay"`
	AddressPollInterval time.Duration `yaml:"address_poll_interval"`
	DisassociateBackoff time.Duration `yaml:"disassociate_backoff"`
}

// SerialConfig configures the stream transport device.
type SerialConfig struct {
	Device    string `yaml:"device"`
	BaudRate  int    `yaml:"baud_rate"`
	ChunkSize int    `yaml:"chunk_size"`
}

// UDPConfig configures the datagram transport. An empty Peer learns the
// peer from the first received datagram of each session.
type UDPConfig struct {
	Port int    `yaml:"port"`
	Peer string `yaml:"peer"`
}

// ButtonConfig configures the button producer.
type ButtonConfig struct {
	Pin          string        `yaml:"pin"`
	ActiveHigh   bool          `yaml:"active_high"`
	PollInterval time.Duration `yaml:"poll_interval"`
}

// Config is the device configuration.
type Config struct {
	// Device identifies the device in MQTT topics and client ids.
	Device string `yaml:"device"`

	Input    InputConfig  `yaml:"input"`
	Format   frame.Format `yaml:"format"`
	Capacity int          `yaml:"capacity"`
	Rescale  string       `yaml:"rescale"`

	Transport    string       `yaml:"transport"`
	Serial       SerialConfig `yaml:"serial"`
	UDP          UDPConfig    `yaml:"udp"`
	WebsocketURL string       `yaml:"websocket_url"`
	// MQTTURL is like mqtt://host:port/topic-prefix/.
	MQTTURL string `yaml:"mqtt_url"`

	SessionRetryDelay time.Duration `yaml:"session_retry_delay"`

	Link   LinkConfig   `yaml:"link"`
	Button ButtonConfig `yaml:"button"`
}

// Defaults.
const (
	DefaultCapacity = 512
	DefaultADCBits  = 12
)

var defaultConfig = Config{
	Input: InputConfig{
		Kind:          InputTone,
		Bits:          DefaultADCBits,
		IIODevice:     "iio:device0",
		ToneFrequency: 440,
	},
	Format:    frame.DefaultFormat,
	Capacity:  DefaultCapacity,
	Rescale:   frame.RescaleMidpoint,
	Transport: TransportUDP,
	Serial: SerialConfig{
		Device:    "/dev/ttyUSB0",
		BaudRate:  stream.DefaultBaudRate,
		ChunkSize: stream.DefaultChunkSize,
	},
	UDP:          UDPConfig{Port: udp.DefaultPort},
	WebsocketURL: "ws://localhost:8080/",
	MQTTURL:      "mqtt://localhost:1883/remotemic/",
	Link: LinkConfig{
		RetryDelay:          link.DefaultRetryDelay,
		AddressPollInterval: link.DefaultAddressPollInterval,
		DisassociateBackoff: link.DefaultDisassociateBackoff,
	},
	Button: ButtonConfig{
		Pin:          "GPIO9",
		PollInterval: signal.DefaultPollInterval,
	},
}

func init() {
	if id, err := machineid.ID(); err == nil && len(id) >= 8 {
		defaultConfig.Device = "mic-" + id[:8]
	} else {
		defaultConfig.Device = "mic"
	}
	applyEnv(&defaultConfig, os.Getenv)
}

func applyEnv(c *Config, getenv func(string) string) {
	if val := getenv("REMOTEMIC_DEVICE"); val != "" {
		c.Device = val
	}
	if val := getenv("REMOTEMIC_TRANSPORT"); val != "" {
		c.Transport = val
	}
	if val := getenv("REMOTEMIC_SSID"); val != "" {
		c.Link.SSID = val
	}
	if val := getenv("REMOTEMIC_PASSWORD"); val != "" {
		c.Link.Password = val
	}
	if val := getenv("REMOTEMIC_INTERFACE"); val != "" {
		c.Link.Interface = val
	}
	if val := getenv("REMOTEMIC_PORT"); val != "" {
		if port, err := strconv.Atoi(val); err == nil {
			c.UDP.Port = port
		} else {
			glog.Warningf("config: invalid REMOTEMIC_PORT %q", val)
		}
	}
	if val := getenv("REMOTEMIC_PEER"); val != "" {
		c.UDP.Peer = val
	}
	if val := getenv("REMOTEMIC_SERIAL"); val != "" {
		c.Serial.Device = val
	}
	if val := getenv("REMOTEMIC_WEBSOCKET_URL"); val != "" {
		c.WebsocketURL = val
	}
	if val := getenv("REMOTEMIC_MQTT_URL"); val != "" {
		c.MQTTURL = val
	}
}

// SetupFlags registers command line flags on fs, flag.CommandLine if nil.
func SetupFlags(fs *flag.FlagSet) {
	if fs == nil {
		fs = flag.CommandLine
	}
	c := &defaultConfig
	fs.StringVar(&c.Device, "device", c.Device, "Device ID")
	fs.StringVar(&c.Input.Kind, "input", c.Input.Kind, "Analog input: tone or iio")
	fs.UintVar(&c.Input.Bits, "adc-bits", c.Input.Bits, "ADC resolution in bits")
	fs.StringVar(&c.Input.IIODevice, "iio-device", c.Input.IIODevice, "IIO device name")
	fs.IntVar(&c.Input.IIOChannel, "iio-channel", c.Input.IIOChannel, "IIO voltage channel")
	fs.Float64Var(&c.Input.ToneFrequency, "tone", c.Input.ToneFrequency, "Synthetic tone frequency in Hz")
	fs.IntVar(&c.Capacity, "frame-samples", c.Capacity, "Samples per frame")
	fs.StringVar(&c.Rescale, "rescale", c.Rescale, "Rescale strategy: midpoint, width or shift")
	fs.StringVar(&c.Transport, "transport", c.Transport, "Transport: stream, udp, websocket or mqtt")
	fs.StringVar(&c.Serial.Device, "serial", c.Serial.Device, "Serial device of the stream transport")
	fs.IntVar(&c.Serial.BaudRate, "baud", c.Serial.BaudRate, "Serial baud rate")
	fs.IntVar(&c.UDP.Port, "port", c.UDP.Port, "UDP port")
	fs.StringVar(&c.UDP.Peer, "peer", c.UDP.Peer, "UDP peer host:port, empty to learn")
	fs.StringVar(&c.WebsocketURL, "ws", c.WebsocketURL, "Websocket relay URL")
	fs.StringVar(&c.MQTTURL, "mqtt", c.MQTTURL, "MQTT broker URL")
	fs.StringVar(&c.Link.Interface, "iface", c.Link.Interface, "Network interface to supervise")
	fs.StringVar(&c.Link.SSID, "ssid", c.Link.SSID, "Network SSID")
	fs.StringVar(&c.Button.Pin, "button", c.Button.Pin, "Button GPIO pin")
}

// Default gets the default config.
func Default() *Config {
	return &defaultConfig
}

// NewConfig creates a Config with default configurations.
func NewConfig() *Config {
	conf := defaultConfig
	return &conf
}

// LoadFile overrides the config with values from a YAML file.
func (c *Config) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("config %s: %w", path, err)
	}
	return nil
}

// Validate checks the config.
func (c *Config) Validate() error {
	if c.Device == "" {
		return errors.New("device ID must be specified")
	}
	if c.Capacity <= 0 {
		return fmt.Errorf("invalid frame samples: %d", c.Capacity)
	}
	if err := c.Format.Validate(); err != nil {
		return err
	}
	if _, err := frame.NewRescaler(c.Rescale, frame.Domain{Bits: c.Input.Bits}); err != nil {
		return err
	}
	switch c.Input.Kind {
	case InputTone, InputIIO:
	default:
		return fmt.Errorf("unknown input: %q", c.Input.Kind)
	}
	switch c.Transport {
	case TransportStream:
		if c.Serial.Device == "" {
			return errors.New("serial device must be specified")
		}
	case TransportUDP:
		if c.UDP.Port <= 0 || c.UDP.Port > 65535 {
			return fmt.Errorf("invalid UDP port: %d", c.UDP.Port)
		}
		if _, err := c.udpPeer(); err != nil {
			return err
		}
	case TransportWebsocket:
		if _, err := url.Parse(c.WebsocketURL); err != nil {
			return fmt.Errorf("invalid websocket URL: %w", err)
		}
	case TransportMQTT:
		if _, err := url.Parse(c.MQTTURL); err != nil {
			return fmt.Errorf("invalid MQTT URL: %w", err)
		}
	default:
		return fmt.Errorf("unknown transport: %q", c.Transport)
	}
	return nil
}

func (c *Config) udpPeer() (netip.AddrPort, error) {
	if c.UDP.Peer == "" {
		return netip.AddrPort{}, nil
	}
	peer, err := netip.ParseAddrPort(c.UDP.Peer)
	if err != nil {
		return peer, fmt.Errorf("invalid UDP peer: %w", err)
	}
	return peer, nil
}
