// Package link ties a byte stream, a protocol variant and one side of the
// acknowledged exchange into a loop task.
package link

import (
	"sync"

	"github.com/golang/glog"

	"github.com/robotalks/framelink/pkg/arq"
	fx "github.com/robotalks/framelink/pkg/framework"
	"github.com/robotalks/framelink/pkg/framing"
	"github.com/robotalks/framelink/pkg/stream"
)

// Role is the side of the exchange an Endpoint plays.
type Role int

// Roles.
const (
	RoleSend Role = iota
	RoleRecv
)

// String implements fmt.Stringer.
func (r Role) String() string {
	switch r {
	case RoleSend:
		return "send"
	case RoleRecv:
		return "recv"
	}
	return "invalid"
}

// ParseRole parses the name of a role.
func ParseRole(name string) (Role, error) {
	switch name {
	case "send", "sender":
		return RoleSend, nil
	case "recv", "receive", "receiver":
		return RoleRecv, nil
	}
	return RoleSend, ErrWrongRole
}

// Result is the result of a Delivery.
type Result struct {
	Attempts int
	Err      error
}

// Delivery represents a payload queued for reliable send.
type Delivery struct {
	payload  []byte
	resultCh chan Result
	next     *Delivery
}

// Payload returns the queued payload.
func (d *Delivery) Payload() []byte {
	return d.payload
}

// ResultChan returns the chan to retrieve result.
func (d *Delivery) ResultChan() <-chan Result {
	return d.resultCh
}

// Wait blocks until the result is available.
func (d *Delivery) Wait() Result {
	return <-d.resultCh
}

// Stats is a snapshot of Endpoint counters.
type Stats struct {
	Role      Role
	Variant   string
	Pending   int
	Delivered uint64
	Exhausted uint64
	Attempts  uint64
	StaleAcks uint64
	Received  uint64
	Parser    framing.Stats
	RxBytes   uint64
	TxBytes   uint64
}

// Endpoint is one side of a link over a Port.
type Endpoint struct {
	Port *stream.Port

	role     Role
	variant  framing.Variant
	sender   *arq.Sender
	receiver *arq.Receiver

	current *Delivery
	head    *Delivery
	tail    *Delivery
	pending int
	closed  bool
	stats   Stats
	lock    sync.Mutex
}

// NewSender creates an Endpoint delivering payloads over port.
func NewSender(port *stream.Port, v framing.Variant, opts arq.Options) *Endpoint {
	sender := arq.NewSender(v, &port.Tx, &port.Rx, opts)
	return &Endpoint{
		Port:    port,
		role:    RoleSend,
		variant: sender.Variant(),
		sender:  sender,
	}
}

// NewReceiver creates an Endpoint accepting payloads from port.
// handler is called on the loop goroutine.
func NewReceiver(port *stream.Port, v framing.Variant, handler arq.PayloadHandler) *Endpoint {
	receiver := arq.NewReceiver(v, &port.Rx, &port.Tx, handler)
	return &Endpoint{
		Port:     port,
		role:     RoleRecv,
		variant:  receiver.Variant(),
		receiver: receiver,
	}
}

// Role returns the role.
func (e *Endpoint) Role() Role {
	return e.role
}

// Variant returns the protocol variant.
func (e *Endpoint) Variant() framing.Variant {
	return e.variant
}

// Send queues a copy of payload for delivery.
func (e *Endpoint) Send(payload []byte) *Delivery {
	d := &Delivery{
		payload:  append([]byte(nil), payload...),
		resultCh: make(chan Result, 1),
	}
	if e.role != RoleSend {
		d.resultCh <- Result{Err: ErrWrongRole}
		return d
	}
	if len(payload) > e.variant.MaxPayload {
		d.resultCh <- Result{Err: framing.ErrPayloadTooLarge}
		return d
	}
	e.lock.Lock()
	defer e.lock.Unlock()
	if e.closed {
		d.resultCh <- Result{Err: ErrClosed}
		return d
	}
	if e.head == nil {
		e.head = d
	} else {
		e.tail.next = d
	}
	e.tail = d
	e.pending++
	return d
}

// Stats returns a snapshot of the counters.
func (e *Endpoint) Stats() Stats {
	e.lock.Lock()
	defer e.lock.Unlock()
	s := e.stats
	s.Role, s.Variant, s.Pending = e.role, e.variant.String(), e.pending
	return s
}

// Step implements framework.Task. A send Endpoint runs until its Port
// fails, a receive Endpoint also stops after the first payload when its
// receiver is set to Once. The role is stepped once more after the Port
// fails so the last byte read can complete a frame.
func (e *Endpoint) Step(now framing.Tick) bool {
	var done bool
	switch e.role {
	case RoleSend:
		done = e.stepSender(now)
	case RoleRecv:
		done = e.receiver.Step(now)
	}
	e.snapshot()
	if err := e.Port.Err(); err != nil {
		glog.Errorf("link: port failed: %v", err)
		e.close(err)
		return true
	}
	return done
}

// Stop implements framework.Stopper. The payload in flight and every
// queued payload fail with err, and later sends fail with ErrClosed.
func (e *Endpoint) Stop(err error) {
	e.close(err)
}

// SetOnce makes a receive Endpoint stop after the first payload.
func (e *Endpoint) SetOnce(once bool) {
	if e.receiver != nil {
		e.receiver.Once = once
	}
}

// SetHandler replaces the payload handler of a receive Endpoint.
// It must be called before the loop starts.
func (e *Endpoint) SetHandler(handler arq.PayloadHandler) {
	if e.receiver != nil {
		e.receiver.Handler = handler
	}
}

// AddToLoop implements LoopAdder.
func (e *Endpoint) AddToLoop(l *fx.Loop) {
	l.Add(e.Port)
	l.AddTask(e)
}

func (e *Endpoint) stepSender(now framing.Tick) bool {
	if e.current == nil {
		e.lock.Lock()
		d := e.head
		if d != nil {
			if e.head = d.next; e.head == nil {
				e.tail = nil
			}
			d.next = nil
		}
		e.lock.Unlock()
		if d == nil {
			return false
		}
		if err := e.sender.Send(d.payload); err != nil {
			e.complete(d, Result{Err: err})
			return false
		}
		e.current = d
		glog.V(2).Infof("link: sending %d byte(s) at tick %d", len(d.payload), now)
	}
	if !e.sender.Step(now) {
		return false
	}
	result := Result{Attempts: e.sender.Attempts()}
	e.lock.Lock()
	e.stats.Attempts += uint64(result.Attempts)
	if e.sender.Outcome() == arq.OutcomeExhausted {
		result.Err = ErrExhausted
		e.stats.Exhausted++
	} else {
		e.stats.Delivered++
	}
	e.lock.Unlock()
	d := e.current
	e.current = nil
	e.complete(d, result)
	return false
}

func (e *Endpoint) complete(d *Delivery, result Result) {
	e.lock.Lock()
	e.pending--
	e.lock.Unlock()
	d.resultCh <- result
}

func (e *Endpoint) snapshot() {
	rx, tx := e.Port.Counters()
	e.lock.Lock()
	e.stats.RxBytes, e.stats.TxBytes = rx, tx
	switch e.role {
	case RoleSend:
		e.stats.StaleAcks = e.sender.StaleAcks()
	case RoleRecv:
		e.stats.Received = e.receiver.Delivered()
		e.stats.Parser = e.receiver.Stats()
	}
	e.lock.Unlock()
}

func (e *Endpoint) close(err error) {
	e.lock.Lock()
	if e.closed {
		e.lock.Unlock()
		return
	}
	e.closed = true
	pending := e.head
	e.head, e.tail = nil, nil
	e.pending = 0
	e.lock.Unlock()
	if e.current != nil {
		e.current.resultCh <- Result{Attempts: e.sender.Attempts(), Err: err}
		e.current = nil
	}
	for ; pending != nil; pending = pending.next {
		pending.resultCh <- Result{Err: err}
	}
}
