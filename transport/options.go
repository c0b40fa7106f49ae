package transport

import (
	"go.uber.org/zap"

	"github.com/luma/cmdmessenger/protocol"
)

// FrameHandler is called with every complete frame a bridge client sends.
type FrameHandler func(frame *protocol.Frame) error

type Options struct {
	// Host to listen on
	Host string

	// Port to listen on, zero picks a free port
	Port int

	// Reuseport controls setting SO_REUSEPORT
	Reuseport bool

	// Trace will log every frame at debug level. This is only useful in local debugging
	Trace bool

	// NumListeners only applies with Reuseport, otherwise a single listener is used
	NumListeners int

	// Codec frames the client streams, it must use the device's separators
	Codec *protocol.Codec

	// Handler receives frames from clients, usually to forward them to the device
	Handler FrameHandler

	Log *zap.Logger
}
