// Package transport publishes per-frame visualization data to consumers
// outside the process.
package transport

import (
	"butterfly/internal/analysis"
	"butterfly/internal/render"
)

// Transport defines a generic interface for sending processed data or events.
// Implementations should be thread-safe.
type Transport interface {
	Send(data any) error
	Close() error
}

// Message is the JSON shape of one published frame. Levels holds the
// follower levels of the final stage in bin order.
type Message struct {
	Index   int                  `json:"index"`
	Time    float64              `json:"time"`
	FFTSize int                  `json:"fftSize"`
	Levels  []float64            `json:"levels"`
	Bands   []analysis.BandLevel `json:"bands,omitempty"`
}

// NewMessage copies the parts of frame that outlive the frame itself.
func NewMessage(frame *render.Frame) Message {
	msg := Message{Index: frame.Index, Time: frame.Time}
	if frame.Snapshot != nil {
		msg.FFTSize = frame.Snapshot.Size()
	}
	if n := len(frame.Levels); n > 0 {
		msg.Levels = append([]float64(nil), frame.Levels[n-1]...)
	}
	if len(frame.Bands) > 0 {
		msg.Bands = append([]analysis.BandLevel(nil), frame.Bands...)
	}
	return msg
}

// Publish adapts a Transport to render.Renderer so it can sit next to the
// canvas in a render.Multi.
func Publish(t Transport) render.Renderer {
	return render.RendererFunc(func(frame *render.Frame) error {
		return t.Send(NewMessage(frame))
	})
}
