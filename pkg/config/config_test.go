package config

import (
	"flag"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/embassist/esp32s3-remote-mic/pkg/adc"
	"github.com/embassist/esp32s3-remote-mic/pkg/link"
	"github.com/embassist/esp32s3-remote-mic/pkg/transport/mqtt"
	"github.com/embassist/esp32s3-remote-mic/pkg/transport/udp"
	"github.com/embassist/esp32s3-remote-mic/pkg/transport/websocket"
)

func TestDefaults(t *testing.T) {
	c := NewConfig()
	require.NotEmpty(t, c.Device)
	assert.Equal(t, uint32(8000), c.Format.SampleRate)
	assert.Equal(t, 512, c.Capacity)
	assert.Equal(t, uint(12), c.Input.Bits)
	assert.Equal(t, 8080, c.UDP.Port)
	assert.Equal(t, 64, c.Serial.ChunkSize)
	assert.Equal(t, 500*time.Millisecond, c.Link.AddressPollInterval)
	assert.Equal(t, 5*time.Second, c.Link.DisassociateBackoff)
	require.NoError(t, c.Validate())

	c.Capacity = 1
	assert.Equal(t, 512, Default().Capacity, "NewConfig must copy defaults")
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		"REMOTEMIC_SSID":      "lab",
		"REMOTEMIC_PASSWORD":  "secret",
		"REMOTEMIC_PORT":      "9000",
		"REMOTEMIC_PEER":      "192.168.1.5:9001",
		"REMOTEMIC_TRANSPORT": "mqtt",
		"REMOTEMIC_MQTT_URL":  "mqtt://broker:1883/mics/",
	}
	c := NewConfig()
	applyEnv(c, func(key string) string { return env[key] })
	assert.Equal(t, "lab", c.Link.SSID)
	assert.Equal(t, "secret", c.Link.Password)
	assert.Equal(t, 9000, c.UDP.Port)
	assert.Equal(t, "192.168.1.5:9001", c.UDP.Peer)
	assert.Equal(t, TransportMQTT, c.Transport)
	assert.Equal(t, "mqtt://broker:1883/mics/", c.MQTTURL)

	applyEnv(c, func(key string) string {
		if key == "REMOTEMIC_PORT" {
			return "http"
		}
		return ""
	})
	assert.Equal(t, 9000, c.UDP.Port)
}

func TestSetupFlags(t *testing.T) {
	saved := defaultConfig
	defer func() { defaultConfig = saved }()

	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	SetupFlags(fs)
	require.NoError(t, fs.Parse([]string{"-transport", "stream", "-rescale", "shift", "-frame-samples", "256"}))
	c := NewConfig()
	assert.Equal(t, TransportStream, c.Transport)
	assert.Equal(t, "shift", c.Rescale)
	assert.Equal(t, 256, c.Capacity)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mic.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
device: kitchen
capacity: 256
rescale: width
transport: udp
udp:
  port: 9100
  peer: 10.0.0.2:9100
format:
  sample_rate: 16000
link:
  interface: wlan0
  ssid: home
  retry_delay: 2s
`), 0644))
	c := NewConfig()
	require.NoError(t, c.LoadFile(path))
	assert.Equal(t, "kitchen", c.Device)
	assert.Equal(t, 256, c.Capacity)
	assert.Equal(t, "width", c.Rescale)
	assert.Equal(t, 9100, c.UDP.Port)
	assert.Equal(t, uint32(16000), c.Format.SampleRate)
	assert.Equal(t, uint16(16), c.Format.BitsPerSample)
	assert.Equal(t, "wlan0", c.Link.Interface)
	assert.Equal(t, 2*time.Second, c.Link.RetryDelay)
	assert.Equal(t, 500*time.Millisecond, c.Link.AddressPollInterval)
	require.NoError(t, c.Validate())

	require.NoError(t, os.WriteFile(path, []byte("format:\n  channels: 3\n"), 0644))
	c = NewConfig()
	require.NoError(t, c.LoadFile(path))
	require.Error(t, c.Validate())
	_, err := c.NewDevice()
	require.Error(t, err)

	require.NoError(t, os.WriteFile(path, []byte("capacity: [1"), 0644))
	require.Error(t, c.LoadFile(path))
	require.Error(t, c.LoadFile(filepath.Join(t.TempDir(), "missing.yaml")))
}

func TestValidate(t *testing.T) {
	cases := map[string]func(*Config){
		"no device":         func(c *Config) { c.Device = "" },
		"no samples":        func(c *Config) { c.Capacity = 0 },
		"8-bit":             func(c *Config) { c.Format.BitsPerSample = 8 },
		"stereo":            func(c *Config) { c.Format.Channels = 2 },
		"3 channels":        func(c *Config) { c.Format.Channels = 3 },
		"no sample rate":    func(c *Config) { c.Format.SampleRate = 0 },
		"bad rescale":       func(c *Config) { c.Rescale = "log" },
		"bad adc bits":      func(c *Config) { c.Input.Bits = 20 },
		"bad input":         func(c *Config) { c.Input.Kind = "mic" },
		"bad transport":     func(c *Config) { c.Transport = "carrier-pigeon" },
		"bad port":          func(c *Config) { c.UDP.Port = 70000 },
		"bad peer":          func(c *Config) { c.UDP.Peer = "somewhere" },
		"no serial device":  func(c *Config) { c.Transport = TransportStream; c.Serial.Device = "" },
		"bad websocket url": func(c *Config) { c.Transport = TransportWebsocket; c.WebsocketURL = "ws://[::1" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			c := NewConfig()
			mutate(c)
			require.Error(t, c.Validate())
		})
	}
}

func TestNewSupervisor(t *testing.T) {
	c := NewConfig()
	require.Nil(t, c.NewSupervisor())

	c.Link.Interface = "wlan0"
	c.Link.SSID = "lab"
	c.Link.RetryDelay = time.Second
	s := c.NewSupervisor()
	require.NotNil(t, s)
	assert.Equal(t, "lab", s.Credentials.SSID)
	assert.Equal(t, time.Second, s.RetryDelay)
	assert.Equal(t, link.DefaultAddressPollInterval, s.AddressPollInterval)
	assert.Equal(t, link.Down, s.State().Load())
}

func TestNewInputIIO(t *testing.T) {
	root := t.TempDir()
	saved := adc.IIORoot
	adc.IIORoot = root
	defer func() { adc.IIORoot = saved }()
	dir := filepath.Join(root, "iio:device0")
	require.NoError(t, os.MkdirAll(dir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "in_voltage2_raw"), []byte("1234\n"), 0644))

	c := NewConfig()
	c.Input.Kind = InputIIO
	c.Input.IIOChannel = 2
	input, closer, err := c.NewInput()
	require.NoError(t, err)
	require.NotNil(t, closer)
	defer closer.Close()
	s, err := input.Read()
	require.NoError(t, err)
	assert.EqualValues(t, 1234, s)

	c.Input.IIOChannel = 5
	_, _, err = c.NewInput()
	require.Error(t, err)
}

func TestNewDeviceUDP(t *testing.T) {
	c := NewConfig()
	d, err := c.NewDevice()
	require.NoError(t, err)
	defer d.Close()
	tr, ok := d.Transport.(*udp.Transport)
	require.True(t, ok)
	assert.True(t, tr.Learning())
	assert.Nil(t, d.Link)
	assert.Len(t, d.Runnables(), 1)

	c.UDP.Peer = "127.0.0.1:9000"
	c.Link.Interface = "lo"
	d, err = c.NewDevice()
	require.NoError(t, err)
	defer d.Close()
	tr = d.Transport.(*udp.Transport)
	assert.False(t, tr.Learning())
	assert.Equal(t, "127.0.0.1:9000", tr.Peer.String())
	assert.Len(t, d.Runnables(), 2)
}

func TestNewDeviceMQTT(t *testing.T) {
	c := NewConfig()
	c.Device = "mic1"
	c.Transport = TransportMQTT
	c.MQTTURL = "mqtt://localhost:1883/lab/"
	c.Link.Interface = "wlan0"
	d, err := c.NewDevice()
	require.NoError(t, err)
	tr, ok := d.Transport.(*mqtt.Transport)
	require.True(t, ok)
	assert.Equal(t, "mic1", tr.Device)
	assert.Equal(t, "lab/", d.Queue.TopicPrefix)
	assert.Len(t, d.Runnables(), 3)
}

func TestNewDeviceWebsocket(t *testing.T) {
	c := NewConfig()
	c.Transport = TransportWebsocket
	c.WebsocketURL = "ws://relay.local:8080/"
	d, err := c.NewDevice()
	require.NoError(t, err)
	defer d.Close()
	_, ok := d.Transport.(*websocket.Transport)
	require.True(t, ok)
}

func TestNewDeviceInvalid(t *testing.T) {
	c := NewConfig()
	c.Transport = "smoke"
	_, err := c.NewDevice()
	require.Error(t, err)
}
