package transport

import (
	"errors"
	"io"
	"strings"
	"time"

	"go.uber.org/zap"
)

// ErrClosed is returned by ports whose peer has gone away.
var ErrClosed = errors.New("Port closed by the remote end")

// Port is a byte stream to a device. ReadByte returns io.EOF when no byte
// arrives within the port's read timeout.
type Port interface {
	io.ByteReader
	io.Writer
	io.Closer
}

const tcpScheme = "tcp://"

type PortOptions struct {
	// Device is a serial device such as /dev/ttyACM0, or tcp://host:port for
	// a serial server such as ser2net
	Device string

	BaudRate int

	// ReadTimeout bounds a single ReadByte call
	ReadTimeout time.Duration

	// SettleDelay is waited after opening a serial port, most boards reset
	// when the port is opened and drop anything sent while they boot
	SettleDelay time.Duration

	Log *zap.Logger
}

// Open opens a serial or TCP port depending on the device name.
func Open(options PortOptions) (Port, error) {
	if options.Log == nil {
		options.Log = zap.NewNop()
	}

	if strings.HasPrefix(options.Device, tcpScheme) {
		return DialTCP(strings.TrimPrefix(options.Device, tcpScheme), options.ReadTimeout)
	}

	return OpenSerial(options)
}
