package arq

import (
	"github.com/golang/glog"

	"github.com/robotalks/framelink/pkg/framing"
)

// Outcome is the result of an exchange.
type Outcome int

// Outcomes.
const (
	OutcomeIdle Outcome = iota
	OutcomePending
	OutcomeDelivered
	OutcomeExhausted
)

// String implements fmt.Stringer.
func (o Outcome) String() string {
	switch o {
	case OutcomeIdle:
		return "idle"
	case OutcomePending:
		return "pending"
	case OutcomeDelivered:
		return "delivered"
	case OutcomeExhausted:
		return "exhausted"
	}
	return "invalid"
}

// IsFinal indicates the exchange has ended.
func (o Outcome) IsFinal() bool {
	return o == OutcomeDelivered || o == OutcomeExhausted
}

type senderState int

const (
	senderIdle senderState = iota
	senderSending
	senderAwaitAck
)

// Sender delivers one payload at a time with acknowledgement and retry.
type Sender struct {
	Options

	framer  *framing.Framer
	data    framing.ByteSink
	ack     framing.ByteSource
	payload []byte

	state    senderState
	attempts int
	timer    framing.Timer
	outcome  Outcome
	stale    uint64
}

// NewSender creates a Sender writing frames to data and reading
// acknowledgements from ack.
func NewSender(v framing.Variant, data framing.ByteSink, ack framing.ByteSource, opts Options) *Sender {
	return &Sender{
		Options: opts,
		framer:  framing.NewFramer(v),
		data:    data,
		ack:     ack,
	}
}

// Send arms a new exchange. The payload is referenced until the
// exchange ends.
func (s *Sender) Send(payload []byte) error {
	if s.outcome == OutcomePending {
		return ErrBusy
	}
	if len(payload) > s.framer.Variant().MaxPayload {
		return framing.ErrPayloadTooLarge
	}
	s.payload, s.attempts = payload, 0
	s.outcome = OutcomePending
	s.drainAck()
	return s.attempt()
}

// Variant returns the protocol variant in use.
func (s *Sender) Variant() framing.Variant {
	return s.framer.Variant()
}

// Outcome returns the state of the current exchange.
func (s *Sender) Outcome() Outcome {
	return s.outcome
}

// Attempts returns the number of transmissions of the current exchange.
func (s *Sender) Attempts() int {
	return s.attempts
}

// StaleAcks returns the number of bytes discarded from the ACK channel.
func (s *Sender) StaleAcks() uint64 {
	return s.stale
}

// Step implements framework.Task. It returns true once the exchange
// is delivered or exhausted.
func (s *Sender) Step(now framing.Tick) bool {
	switch s.state {
	case senderSending:
		s.drainAck()
		s.framer.Pump(s.data)
		if s.framer.Done() {
			s.timer.Set(now, s.timeout())
			s.state = senderAwaitAck
			glog.V(3).Infof("arq: attempt %d sent at tick %d", s.attempts, now)
		}
	case senderAwaitAck:
		if s.pollAck() {
			glog.V(2).Infof("arq: delivered after %d attempt(s)", s.attempts)
			s.finish(OutcomeDelivered)
			break
		}
		if !s.timer.Expired(now) {
			break
		}
		if s.MaxAttempts > 0 && s.attempts >= s.MaxAttempts {
			glog.Warningf("arq: no ACK after %d attempt(s), giving up", s.attempts)
			s.finish(OutcomeExhausted)
			break
		}
		glog.V(2).Infof("arq: attempt %d timed out at tick %d", s.attempts, now)
		s.attempt()
	}
	return s.outcome.IsFinal()
}

func (s *Sender) attempt() error {
	if err := s.framer.Begin(s.payload); err != nil {
		return err
	}
	s.attempts++
	s.state = senderSending
	return nil
}

func (s *Sender) finish(outcome Outcome) {
	s.outcome, s.state, s.payload = outcome, senderIdle, nil
}

// pollAck consumes at most one byte from the ACK channel.
func (s *Sender) pollAck() bool {
	b, ok := s.ack.TryGet()
	if !ok {
		return false
	}
	if b == framing.ACK {
		return true
	}
	s.stale++
	return false
}

// drainAck drops a byte left over from a previous attempt.
func (s *Sender) drainAck() {
	if _, ok := s.ack.TryGet(); ok {
		s.stale++
	}
}
