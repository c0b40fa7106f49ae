package transport

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"runtime"
	"strconv"
	"sync"

	reuseport "github.com/kavu/go_reuseport"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/luma/cmdmessenger/internal/observability"
	"github.com/luma/cmdmessenger/protocol"
)

const (
	WriteQueueSize = 127
)

var (
	ErrConnClosed = errors.New("Connection closed")
	ErrSlowClient = errors.New("Client is not reading fast enough, frame dropped")
)

// TCP bridges the device's frame stream to any number of TCP clients. Frames
// sent by clients are passed to the handler, frames from the device are
// broadcast to every client.
type TCP struct {
	cancel     context.CancelFunc
	stopWaiter sync.WaitGroup

	addr      string
	reuseport bool

	numListeners int

	mu        sync.Mutex
	listeners []*TCPListener

	codec   *protocol.Codec
	handler FrameHandler

	log   *zap.Logger
	trace bool
}

func NewTCP(options Options) *TCP {
	numListeners := 1

	if options.Reuseport {
		numListeners = options.NumListeners
		if numListeners < 1 {
			numListeners = runtime.NumCPU()
		}
	}

	log := options.Log
	if log == nil {
		log = zap.NewNop()
	}

	handler := options.Handler
	if handler == nil {
		handler = func(*protocol.Frame) error { return nil }
	}

	return &TCP{
		addr:         net.JoinHostPort(options.Host, strconv.Itoa(options.Port)),
		reuseport:    options.Reuseport,
		numListeners: numListeners,
		listeners:    make([]*TCPListener, 0, numListeners),
		codec:        options.Codec,
		handler:      handler,
		trace:        options.Trace,
		log:          log,
	}
}

// Start opens every listener before returning, so clients can connect as
// soon as it succeeds.
func (t *TCP) Start(parentCtx context.Context) error {
	ctx, cancel := context.WithCancel(parentCtx)
	t.cancel = cancel

	t.log.Info("Starting tcp listeners", zap.Int("count", t.numListeners))

	for i := 0; i < t.numListeners; i++ {
		if err := t.startListener(ctx); err != nil {
			return multierr.Append(err, t.Close())
		}
	}

	return nil
}

func (t *TCP) startListener(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	listener, err := t.listen()
	if err != nil {
		return fmt.Errorf("Failed to listen on %s: %w", t.addr, err)
	}

	// With port 0 the remaining listeners must share the port the first one got
	t.addr = listener.Addr().String()

	tcpListener := NewTCPListener(
		ctx,
		listener,
		t.codec,
		t.handler,
		t.trace,
		t.log.Named("listener").With(zap.Int("listener", len(t.listeners))),
	)

	t.listeners = append(t.listeners, tcpListener)
	t.stopWaiter.Add(1)

	go func() {
		defer t.stopWaiter.Done()

		if err := tcpListener.Serve(); err != nil {
			t.log.Error("Listener stopped accepting connections", zap.Error(err))
		}
	}()

	return nil
}

func (t *TCP) listen() (net.Listener, error) {
	if t.reuseport {
		return reuseport.Listen("tcp", t.addr)
	}

	return net.Listen("tcp", t.addr)
}

// Addr returns the address the listeners are bound to.
func (t *TCP) Addr() string {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.addr
}

// Broadcast queues a raw frame for every connected client.
func (t *TCP) Broadcast(frame []byte) (err error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for _, listener := range t.listeners {
		err = multierr.Append(err, listener.Broadcast(frame))
	}

	return err
}

// NumConns returns the number of connected clients.
func (t *TCP) NumConns() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	n := 0
	for _, listener := range t.listeners {
		n += listener.NumConns()
	}

	return n
}

// Close immediately closes all listeners and client connections and waits
// for their loops to exit.
func (t *TCP) Close() (err error) {
	t.log.Info("Stopping TCP server")

	if t.cancel != nil {
		t.cancel()
	}

	t.mu.Lock()
	for _, listener := range t.listeners {
		err = multierr.Append(err, listener.Close())
	}
	t.mu.Unlock()

	t.stopWaiter.Wait()
	t.log.Info("Listeners stopped")

	return err
}

type TCPListener struct {
	ctx context.Context

	listener net.Listener
	log      *zap.Logger

	mu          sync.Mutex
	activeConns map[*TCPConn]struct{}
	loopWaiter  sync.WaitGroup

	codec   *protocol.Codec
	handler FrameHandler
	trace   bool
}

func NewTCPListener(
	ctx context.Context,
	listener net.Listener,
	codec *protocol.Codec,
	handler FrameHandler,
	trace bool,
	log *zap.Logger,
) *TCPListener {
	return &TCPListener{
		ctx:         ctx,
		listener:    listener,
		activeConns: make(map[*TCPConn]struct{}),
		codec:       codec,
		handler:     handler,
		trace:       trace,
		log:         log,
	}
}

func (t *TCPListener) Close() error {
	err := t.listener.Close()
	if errors.Is(err, net.ErrClosed) {
		err = nil
	}

	t.mu.Lock()
	for conn := range t.activeConns {
		conn.Close()
	}
	t.mu.Unlock()

	return err
}

// Serve accepts connections until the listener is closed.
func (t *TCPListener) Serve() error {
	go func() {
		<-t.ctx.Done()

		if err := t.listener.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			t.log.Warn("TCP Listener did not close cleanly", zap.Error(err))
		}
	}()

	for {
		conn, err := t.listener.Accept()
		if err != nil {
			t.log.Info("Stopped accepting new connections")
			t.loopWaiter.Wait()

			if errors.Is(err, net.ErrClosed) {
				// The listener was closed while we were waiting for new
				// connections, that's fine.
				return nil
			}

			return err
		}

		tcpConn := NewTCPConn(t.ctx, conn, t.codec, t.handler, t.trace, t.log.Named("conn"))
		t.addConn(tcpConn)

		t.loopWaiter.Add(1)
		go func() {
			defer t.loopWaiter.Done()
			defer t.removeConn(tcpConn)

			tcpConn.Start()
		}()
	}
}

func (t *TCPListener) Broadcast(frame []byte) (err error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for conn := range t.activeConns {
		if _, werr := conn.Write(frame); werr != nil {
			err = multierr.Append(err, fmt.Errorf("%s: %w", conn.RemoteAddr(), werr))
		}
	}

	return err
}

func (t *TCPListener) NumConns() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	return len(t.activeConns)
}

func (t *TCPListener) addConn(conn *TCPConn) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.activeConns[conn] = struct{}{}
	observability.RecordBridgeClientConnected()
}

func (t *TCPListener) removeConn(conn *TCPConn) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.activeConns[conn]; ok {
		delete(t.activeConns, conn)
		observability.RecordBridgeClientDisconnected()
	}
}

type TCPConn struct {
	ctx        context.Context
	cancel     context.CancelFunc
	loopWaiter sync.WaitGroup

	conn    net.Conn
	codec   *protocol.Codec
	handler FrameHandler

	writeQueue chan []byte

	log   *zap.Logger
	trace bool
}

func NewTCPConn(
	parentCtx context.Context,
	conn net.Conn,
	codec *protocol.Codec,
	handler FrameHandler,
	trace bool,
	log *zap.Logger,
) *TCPConn {
	ctx, cancel := context.WithCancel(parentCtx)

	return &TCPConn{
		ctx:        ctx,
		cancel:     cancel,
		conn:       conn,
		codec:      codec,
		handler:    handler,
		writeQueue: make(chan []byte, WriteQueueSize),
		trace:      trace,
		log:        log.With(zap.String("remote", conn.RemoteAddr().String())),
	}
}

// Close stops both loops, Start returns once they have exited.
func (t *TCPConn) Close() error {
	t.cancel()
	return nil
}

func (t *TCPConn) RemoteAddr() net.Addr {
	return t.conn.RemoteAddr()
}

// Start runs the read and write loops until the client hangs up or the
// connection is closed.
func (t *TCPConn) Start() {
	t.log.Info("Client connected")

	t.loopWaiter.Add(2)

	go func() {
		defer t.loopWaiter.Done()
		t.ReadLoop()
	}()

	go func() {
		defer t.loopWaiter.Done()
		t.WriteLoop()
	}()

	// Unblocks the read loop
	<-t.ctx.Done()
	if err := t.conn.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
		t.log.Warn("Connection did not close cleanly", zap.Error(err))
	}

	t.loopWaiter.Wait()
	t.log.Info("Client disconnected")
}

func (t *TCPConn) ReadLoop() {
	log := t.log.Named("readLoop")

	// When the client goes away the write loop should too
	defer t.cancel()

	r := bufio.NewReader(t.conn)

	for {
		frame, err := t.codec.ReadFrame(r)
		if err != nil {
			if t.isRunning() && !errors.Is(err, net.ErrClosed) {
				log.Warn("Failed to read client frame", zap.Error(err))
			}
			return
		}

		if frame == nil {
			// A blocking read only sees EOF once the client hung up
			return
		}

		if t.trace {
			log.Debug("Frame from client", zap.ByteString("frame", frame.Raw))
		}

		if err := t.handler(frame); err != nil {
			log.Warn("Failed to forward client frame",
				zap.ByteString("frame", frame.Raw),
				zap.Error(err))
		}
	}
}

func (t *TCPConn) WriteLoop() {
	log := t.log.Named("writeLoop")

	for {
		select {
		case <-t.ctx.Done():
			return

		case data := <-t.writeQueue:
			if t.trace {
				log.Debug("Frame to client", zap.ByteString("frame", data))
			}

			if _, err := t.conn.Write(data); err != nil {
				log.Warn("Failed to write from write queue",
					zap.ByteString("frame", data),
					zap.Error(err))
				t.cancel()
				return
			}
		}
	}
}

// Write queues data for the write loop. It never blocks: a client whose queue
// is full misses the frame.
func (t *TCPConn) Write(data []byte) (int, error) {
	if !t.isRunning() {
		return 0, ErrConnClosed
	}

	select {
	case t.writeQueue <- data:
		return len(data), nil
	default:
		return 0, ErrSlowClient
	}
}

// isRunning returns true if Close has not been called
func (t *TCPConn) isRunning() bool {
	select {
	case <-t.ctx.Done():
		// if we can read on this channel then it's been closed
		return false

	default:
		return true
	}
}
