package observability

import (
	"errors"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/luma/cmdmessenger/protocol"
)

var (
	registerOnce sync.Once

	framesSent = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "cmdmessenger",
			Subsystem: "frames",
			Name:      "sent_total",
			Help:      "Frames written to the device.",
		},
		[]string{"command"},
	)
	framesReceived = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "cmdmessenger",
			Subsystem: "frames",
			Name:      "received_total",
			Help:      "Frames decoded from the device.",
		},
		[]string{"command"},
	)
	codecErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "cmdmessenger",
			Subsystem: "codec",
			Name:      "errors_total",
			Help:      "Commands that failed to encode or frames that failed to decode.",
		},
		[]string{"direction", "reason"},
	)
	listenerDropped = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "cmdmessenger",
			Subsystem: "listener",
			Name:      "dropped_total",
			Help:      "Messages dropped because the listener queue was full.",
		},
	)
	listenerFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "cmdmessenger",
			Subsystem: "listener",
			Name:      "failures_total",
			Help:      "Listeners stopped by a transport error.",
		},
	)
	bridgeClients = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "cmdmessenger",
			Subsystem: "bridge",
			Name:      "clients",
			Help:      "Connected TCP bridge clients.",
		},
	)
	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "cmdmessenger",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)
	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "cmdmessenger",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			framesSent,
			framesReceived,
			codecErrors,
			listenerDropped,
			listenerFailures,
			bridgeClients,
			httpRequests,
			httpDuration,
		)
	})
}

func RecordFrameSent(command string) {
	RegisterMetrics()
	framesSent.WithLabelValues(command).Inc()
}

func RecordFrameReceived(command string) {
	RegisterMetrics()
	framesReceived.WithLabelValues(command).Inc()
}

// RecordCodecError counts err under direction ("encode" or "decode").
func RecordCodecError(direction string, err error) {
	RegisterMetrics()
	codecErrors.WithLabelValues(direction, ErrorReason(err)).Inc()
}

func RecordListenerDrop() {
	RegisterMetrics()
	listenerDropped.Inc()
}

func RecordListenerFailure() {
	RegisterMetrics()
	listenerFailures.Inc()
}

func RecordBridgeClientConnected() {
	RegisterMetrics()
	bridgeClients.Inc()
}

func RecordBridgeClientDisconnected() {
	RegisterMetrics()
	bridgeClients.Dec()
}

func RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	RegisterMetrics()
	statusLabel := strconv.Itoa(status)
	httpRequests.WithLabelValues(method, path, statusLabel).Inc()
	httpDuration.WithLabelValues(method, path, statusLabel).Observe(duration.Seconds())
}

// ErrorReason maps protocol errors to a short metric label.
func ErrorReason(err error) string {
	switch {
	case errors.Is(err, protocol.ErrUnknownCommand):
		return "unknown_command"
	case errors.Is(err, protocol.ErrInvalidFormatSpec):
		return "invalid_format"
	case errors.Is(err, protocol.ErrArgumentCountMismatch):
		return "argument_count"
	case errors.Is(err, protocol.ErrValueOutOfRange):
		return "out_of_range"
	case errors.Is(err, protocol.ErrInvalidValue):
		return "invalid_value"
	case errors.Is(err, protocol.ErrMalformedField):
		return "malformed_field"
	case errors.Is(err, protocol.ErrIncompleteFrame):
		return "incomplete_frame"
	case errors.Is(err, protocol.ErrFrameTooLarge):
		return "frame_too_large"
	}

	return "io"
}
