package transport

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"net"
	"time"
)

// TCPPort is a Port to a device exposed over TCP, e.g. by ser2net.
type TCPPort struct {
	conn    net.Conn
	r       *bufio.Reader
	timeout time.Duration
}

func DialTCP(addr string, timeout time.Duration) (*TCPPort, error) {
	conn, err := net.DialTimeout("tcp", addr, 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("Failed to dial %s: %w", addr, err)
	}

	return NewTCPPort(conn, timeout), nil
}

func NewTCPPort(conn net.Conn, timeout time.Duration) *TCPPort {
	return &TCPPort{
		conn:    conn,
		r:       bufio.NewReader(conn),
		timeout: timeout,
	}
}

// ReadByte reads one byte, returning io.EOF if the read timed out and
// ErrClosed once either end closed the connection.
func (t *TCPPort) ReadByte() (byte, error) {
	if t.timeout > 0 && t.r.Buffered() == 0 {
		if err := t.conn.SetReadDeadline(time.Now().Add(t.timeout)); err != nil {
			return 0, closedErr(err)
		}
	}

	b, err := t.r.ReadByte()
	if err != nil {
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			return 0, io.EOF
		}

		return 0, closedErr(err)
	}

	return b, nil
}

// closedErr maps the ways a connection reports it is gone to ErrClosed.
func closedErr(err error) error {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrClosedPipe) || errors.Is(err, net.ErrClosed) {
		return fmt.Errorf("%v: %w", err, ErrClosed)
	}

	return err
}

func (t *TCPPort) Write(data []byte) (int, error) {
	return t.conn.Write(data)
}

func (t *TCPPort) Close() error {
	return t.conn.Close()
}

var _ Port = (*TCPPort)(nil)
