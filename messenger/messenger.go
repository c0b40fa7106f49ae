package messenger

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/luma/cmdmessenger/internal/observability"
	"github.com/luma/cmdmessenger/protocol"
	"github.com/luma/cmdmessenger/transport"
)

const (
	DefaultQueueSize      = 1024
	DefaultListenInterval = 10 * time.Millisecond
)

var (
	ErrAlreadyListening = errors.New("Already listening")
	ErrNotListening     = errors.New("Not listening")
)

type Options struct {
	Codec *protocol.Codec
	Port  transport.Port

	// QueueSize bounds the messages the listener holds for Messages or Drain
	QueueSize int

	// ListenInterval is how long the listener waits after a poll that found
	// no message
	ListenInterval time.Duration

	Log *zap.Logger
}

// Messenger sends commands to and receives commands from a device. Send,
// Receive and the background listener share the port under one lock, so
// frames are never interleaved.
type Messenger struct {
	codec *protocol.Codec

	mu   sync.Mutex
	port transport.Port

	listenMu sync.Mutex
	cancel   context.CancelFunc
	done     chan struct{}
	queue    chan *protocol.ReceivedMessage
	interval time.Duration

	errMu     sync.Mutex
	listenErr error

	log *zap.Logger
}

func New(options Options) *Messenger {
	queueSize := options.QueueSize
	if queueSize < 1 {
		queueSize = DefaultQueueSize
	}

	interval := options.ListenInterval
	if interval <= 0 {
		interval = DefaultListenInterval
	}

	log := options.Log
	if log == nil {
		log = zap.NewNop()
	}

	return &Messenger{
		codec:    options.Codec,
		port:     options.Port,
		queue:    make(chan *protocol.ReceivedMessage, queueSize),
		interval: interval,
		log:      log,
	}
}

func (m *Messenger) Codec() *protocol.Codec {
	return m.codec
}

// Send encodes args with the command's registered formats and writes the frame.
func (m *Messenger) Send(name string, args ...interface{}) error {
	return m.SendWithFormats(name, nil, args...)
}

// SendWithFormats is Send with formats overriding the registered ones. The
// frame is fully encoded before anything is written, a command that fails to
// encode never reaches the device.
func (m *Messenger) SendWithFormats(name string, formats protocol.Formats, args ...interface{}) error {
	frame, err := m.codec.Encode(name, formats, args...)
	if err != nil {
		observability.RecordCodecError("encode", err)
		return err
	}

	if err := m.WriteFrame(frame); err != nil {
		return err
	}

	observability.RecordFrameSent(name)
	m.log.Debug("Sent command", zap.String("command", name), zap.ByteString("frame", frame))

	return nil
}

// WriteFrame writes an already encoded frame.
func (m *Messenger) WriteFrame(frame []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	_, err := m.port.Write(frame)
	return err
}

// Receive reads one message with the registered formats. It returns nil and
// no error when nothing arrived before the port's read timeout.
func (m *Messenger) Receive() (*protocol.ReceivedMessage, error) {
	return m.ReceiveWithFormats(nil)
}

func (m *Messenger) ReceiveWithFormats(formats protocol.Formats) (*protocol.ReceivedMessage, error) {
	m.mu.Lock()
	msg, err := m.codec.Receive(m.port, formats)
	m.mu.Unlock()

	if err != nil {
		observability.RecordCodecError("decode", err)
		return nil, err
	}

	if msg != nil {
		observability.RecordFrameReceived(msg.Command)
	}

	return msg, nil
}

// Listen starts receiving in the background. Received messages are queued
// for Messages or Drain, when the queue is full new messages are dropped.
// Receive still works while listening but competes with the listener for
// frames.
//
// Bad frames are logged and skipped. Any other error means the port is gone:
// the listener stops, Done is closed and Err returns the error.
func (m *Messenger) Listen(parentCtx context.Context) error {
	m.listenMu.Lock()
	defer m.listenMu.Unlock()

	if m.cancel != nil {
		if !isClosed(m.done) {
			m.log.Warn("Listener is already running")
			return ErrAlreadyListening
		}

		// The previous listener stopped on its own
		m.cancel()
	}

	m.setErr(nil)

	ctx, cancel := context.WithCancel(parentCtx)
	m.cancel = cancel
	m.done = make(chan struct{})

	go m.listenLoop(ctx, m.done)

	m.log.Info("Listening for messages")
	return nil
}

// StopListening stops the background listener and waits for it to exit.
// Messages already queued stay available to Drain.
func (m *Messenger) StopListening() error {
	m.listenMu.Lock()
	defer m.listenMu.Unlock()

	if m.cancel == nil {
		return ErrNotListening
	}

	m.cancel()
	<-m.done

	m.cancel = nil
	m.done = nil

	m.log.Info("Stopped listening for messages")
	return nil
}

// Listening reports whether the background listener is running. It turns
// false when StopListening is called or the listener stopped on a port error.
func (m *Messenger) Listening() bool {
	m.listenMu.Lock()
	defer m.listenMu.Unlock()

	return m.cancel != nil && !isClosed(m.done)
}

// Done is closed when the current listener exits. It is nil before Listen.
func (m *Messenger) Done() <-chan struct{} {
	m.listenMu.Lock()
	defer m.listenMu.Unlock()

	return m.done
}

// Err returns the error that stopped the listener, or nil while it runs or
// after it was stopped on purpose.
func (m *Messenger) Err() error {
	m.errMu.Lock()
	defer m.errMu.Unlock()

	return m.listenErr
}

func (m *Messenger) setErr(err error) {
	m.errMu.Lock()
	defer m.errMu.Unlock()

	m.listenErr = err
}

// Messages returns the listener's queue.
func (m *Messenger) Messages() <-chan *protocol.ReceivedMessage {
	return m.queue
}

// Drain returns every queued message in arrival order without waiting.
func (m *Messenger) Drain() []*protocol.ReceivedMessage {
	if !m.Listening() {
		m.log.Warn("Draining messages while not listening, only messages queued earlier are returned")
	}

	messages := make([]*protocol.ReceivedMessage, 0, len(m.queue))

	for {
		select {
		case msg := <-m.queue:
			messages = append(messages, msg)
		default:
			return messages
		}
	}
}

// Close stops the listener and closes the port.
func (m *Messenger) Close() error {
	var err error

	if stopErr := m.StopListening(); stopErr != nil && !errors.Is(stopErr, ErrNotListening) {
		err = multierr.Append(err, stopErr)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	return multierr.Append(err, m.port.Close())
}

func (m *Messenger) listenLoop(ctx context.Context, done chan<- struct{}) {
	defer close(done)

	log := m.log.Named("listener")

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		msg, err := m.Receive()
		if err != nil {
			if !protocol.IsFrameError(err) {
				observability.RecordListenerFailure()
				log.Error("Port failed, listener stopped", zap.Error(err))
				m.setErr(err)
				return
			}

			log.Warn("Failed to receive message", zap.Error(err))
		}

		if msg == nil {
			select {
			case <-ctx.Done():
				return
			case <-time.After(m.interval):
			}
			continue
		}

		select {
		case m.queue <- msg:
		default:
			observability.RecordListenerDrop()
			log.Warn("Listener queue is full, dropping message",
				zap.String("command", msg.Command),
				zap.Int("queueSize", cap(m.queue)))
		}
	}
}

func isClosed(done <-chan struct{}) bool {
	select {
	case <-done:
		return true
	default:
		return false
	}
}
