package transport

import (
	"sync/atomic"

	applog "butterfly/internal/log"
)

// LoggingTransport implements the Transport interface by logging data at
// debug level. Useful when no network consumer is configured.
type LoggingTransport struct {
	sent atomic.Int64
}

// NewLoggingTransport creates a new LoggingTransport instance.
func NewLoggingTransport() *LoggingTransport {
	applog.Infof("Transport: Using LoggingTransport")
	return &LoggingTransport{}
}

// Send logs the received data.
func (lt *LoggingTransport) Send(data any) error {
	lt.sent.Add(1)
	if msg, ok := data.(Message); ok {
		applog.Debugf("LOG_TRANSPORT: frame %d t=%.3fs bins=%d bands=%d",
			msg.Index, msg.Time, len(msg.Levels), len(msg.Bands))
		return nil
	}
	applog.Debugf("LOG_TRANSPORT: Received (%T): %+v", data, data)
	return nil
}

// Sent returns how many payloads passed through Send.
func (lt *LoggingTransport) Sent() int { return int(lt.sent.Load()) }

// Close is a no-op for LoggingTransport.
func (lt *LoggingTransport) Close() error {
	applog.Debugf("LOG_TRANSPORT: Close called after %d payloads.", lt.sent.Load())
	return nil
}

// Ensure LoggingTransport satisfies the interface at compile time.
var _ Transport = (*LoggingTransport)(nil)
