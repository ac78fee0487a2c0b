package arq

import (
	"github.com/golang/glog"

	"github.com/robotalks/framelink/pkg/framing"
)

// PayloadHandler is called with every validated payload.
// The payload is owned by the handler.
type PayloadHandler interface {
	HandlePayload(payload []byte, now framing.Tick)
}

// HandlePayloadFunc is func type of PayloadHandler.
type HandlePayloadFunc func([]byte, framing.Tick)

// HandlePayload implements PayloadHandler.
func (f HandlePayloadFunc) HandlePayload(payload []byte, now framing.Tick) {
	f(payload, now)
}

// PayloadHandlers fans a payload out to multiple handlers.
type PayloadHandlers []PayloadHandler

// HandlePayload implements PayloadHandler.
func (h PayloadHandlers) HandlePayload(payload []byte, now framing.Tick) {
	for _, handler := range h {
		handler.HandlePayload(payload, now)
	}
}

type receiverState int

const (
	receiverReceiving receiverState = iota
	receiverAcking
	receiverFinished
)

// Receiver validates incoming frames and acknowledges them.
type Receiver struct {
	// Once stops the receiver after the first delivered frame.
	Once    bool
	Handler PayloadHandler

	parser    *framing.Parser
	data      framing.ByteSource
	ack       framing.ByteSink
	state     receiverState
	buf       []byte
	delivered uint64
}

// NewReceiver creates a Receiver reading frames from data and writing
// acknowledgements to ack.
func NewReceiver(v framing.Variant, data framing.ByteSource, ack framing.ByteSink, handler PayloadHandler) *Receiver {
	parser := framing.NewParser(v)
	return &Receiver{
		Handler: handler,
		parser:  parser,
		data:    data,
		ack:     ack,
		buf:     make([]byte, parser.Variant().MaxPayload),
	}
}

// Variant returns the protocol variant in use.
func (r *Receiver) Variant() framing.Variant {
	return r.parser.Variant()
}

// Delivered returns the number of acknowledged frames.
func (r *Receiver) Delivered() uint64 {
	return r.delivered
}

// Stats returns the parser counters.
func (r *Receiver) Stats() framing.Stats {
	return r.parser.Stats()
}

// Step implements framework.Task.
func (r *Receiver) Step(now framing.Tick) bool {
	switch r.state {
	case receiverReceiving:
		b, ok := r.data.TryGet()
		if !ok {
			break
		}
		pr := r.parser.Feed(b)
		if pr.Err != nil {
			glog.V(2).Infof("arq: frame dropped: %v", pr.Err)
		}
		if pr.State != framing.StateReady {
			break
		}
		n, _ := r.parser.Take(r.buf)
		if h := r.Handler; h != nil {
			h.HandlePayload(append([]byte(nil), r.buf[:n]...), now)
		}
		r.state = receiverAcking
		r.postAck()
	case receiverAcking:
		r.postAck()
	}
	return r.state == receiverFinished
}

func (r *Receiver) postAck() {
	if !r.ack.TryPut(framing.ACK) {
		return
	}
	r.delivered++
	if r.Once {
		r.state = receiverFinished
	} else {
		r.state = receiverReceiving
	}
}
