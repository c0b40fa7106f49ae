package transport

import (
	"fmt"
	"io"
	"time"

	"go.bug.st/serial"
	"go.uber.org/zap"
)

// Serial is a Port backed by a serial device.
type Serial struct {
	port   serial.Port
	device string
	buf    [1]byte
	log    *zap.Logger
}

func OpenSerial(options PortOptions) (*Serial, error) {
	port, err := serial.Open(options.Device, &serial.Mode{BaudRate: options.BaudRate})
	if err != nil {
		return nil, fmt.Errorf("Device not connected on %s: %w", options.Device, err)
	}

	if options.ReadTimeout > 0 {
		if err := port.SetReadTimeout(options.ReadTimeout); err != nil {
			port.Close()
			return nil, fmt.Errorf("Failed to set read timeout on %s: %w", options.Device, err)
		}
	}

	if options.SettleDelay > 0 {
		options.Log.Info("Waiting for the board to settle",
			zap.String("device", options.Device),
			zap.Duration("delay", options.SettleDelay))
		time.Sleep(options.SettleDelay)
	}

	// Discard whatever the bootloader printed while we waited
	if err := port.ResetInputBuffer(); err != nil {
		options.Log.Warn("Failed to reset input buffer", zap.Error(err))
	}

	return &Serial{
		port:   port,
		device: options.Device,
		log:    options.Log,
	}, nil
}

// ReadByte reads one byte, returning io.EOF if the read timed out.
func (s *Serial) ReadByte() (byte, error) {
	n, err := s.port.Read(s.buf[:])
	if err != nil {
		return 0, err
	}

	if n == 0 {
		return 0, io.EOF
	}

	return s.buf[0], nil
}

func (s *Serial) Write(data []byte) (int, error) {
	written := 0

	for written < len(data) {
		n, err := s.port.Write(data[written:])
		written += n
		if err != nil {
			return written, err
		}
	}

	return written, nil
}

func (s *Serial) Close() error {
	return s.port.Close()
}

func (s *Serial) String() string {
	return s.device
}

// ListSerialPorts returns the names of the serial ports on this machine.
func ListSerialPorts() ([]string, error) {
	return serial.GetPortsList()
}

var _ Port = (*Serial)(nil)
