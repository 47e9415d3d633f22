package stream

import (
	"go.bug.st/serial"
)

// DefaultBaudRate is used when opening a serial port without a baud rate.
const DefaultBaudRate = 115200

// SerialPort is a Port over a serial device. Flush drains the transmit
// buffer.
type SerialPort struct {
	serial.Port
	Name string
}

// OpenSerial opens a serial device in 8N1 mode.
func OpenSerial(name string, baudRate int) (*SerialPort, error) {
	if baudRate <= 0 {
		baudRate = DefaultBaudRate
	}
	port, err := serial.Open(name, &serial.Mode{
		BaudRate: baudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	})
	if err != nil {
		return nil, err
	}
	return &SerialPort{Port: port, Name: name}, nil
}

// Flush implements Port.
func (p *SerialPort) Flush() error {
	return p.Drain()
}

func (p *SerialPort) String() string {
	return p.Name
}
