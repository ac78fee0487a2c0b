// Package mqtt bridges a link endpoint to an MQTT broker.
//
// Under the topic prefix from the broker URL, a bridge named NAME uses:
//
//     NAME/rx      payloads delivered by a receive endpoint
//     NAME/tx      payloads to be sent reliably by a send endpoint
//     NAME/status  JSON result of each send
//     NAME/meta    retained JSON description, cleared on exit
package mqtt

import (
	"context"
	"encoding/json"
	"sync/atomic"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/golang/glog"

	fx "github.com/robotalks/framelink/pkg/framework"
	"github.com/robotalks/framelink/pkg/framing"
	"github.com/robotalks/framelink/pkg/link"
)

// Publisher publishes messages relative to a topic prefix.
type Publisher interface {
	PubWith(topic string, payload []byte, qos byte, retain bool) paho.Token
}

// Meta describes a bridged endpoint.
type Meta struct {
	Role    string `json:"role"`
	Variant string `json:"variant"`
}

// Status is the result of a bridged send.
type Status struct {
	Seq       uint64 `json:"seq"`
	Size      int    `json:"size"`
	Attempts  int    `json:"attempts"`
	Delivered bool   `json:"delivered"`
	Error     string `json:"error,omitempty"`
}

// DefaultConnectTimeout bounds the first connection to the broker.
const DefaultConnectTimeout = 5 * time.Second

// Bridge connects an Endpoint with MQTT topics.
type Bridge struct {
	Queue          *Queue
	Publisher      Publisher
	Name           string
	Endpoint       *link.Endpoint
	ConnectTimeout time.Duration

	metaJSON []byte
	seq      uint64
	sub      *Subscription
}

// NewBridge creates a Bridge from broker URL.
func NewBridge(brokerURL, name string, ep *link.Endpoint) (*Bridge, error) {
	opts, topicPrefix, err := ClientOptionsFromURL(brokerURL)
	if err != nil {
		return nil, err
	}
	opts.SetBinaryWill(topicPrefix+name+"/meta", nil, 1, true)
	if opts.ClientID == "" {
		opts.SetClientID("framelink:" + name + ":" + ep.Role().String())
	}
	b := NewBridgeWith(NewQueue(opts, topicPrefix), name, ep)
	return b, nil
}

// NewBridgeWith creates a Bridge over an existing Queue.
func NewBridgeWith(q *Queue, name string, ep *link.Endpoint) *Bridge {
	meta, err := json.Marshal(&Meta{Role: ep.Role().String(), Variant: ep.Variant().String()})
	if err != nil {
		panic(err)
	}
	b := &Bridge{
		Queue:     q,
		Publisher: q,
		Name:      name,
		Endpoint:  ep,
		metaJSON:  meta,
	}
	q.OnConnect = func(*Queue) { b.onConnected() }
	if ep.Role() == link.RoleSend {
		b.sub = q.Sub(name+"/tx", b.HandleMessage)
	}
	return b
}

// HandlePayload implements arq.PayloadHandler. It publishes delivered
// payloads.
func (b *Bridge) HandlePayload(payload []byte, now framing.Tick) {
	b.Publisher.PubWith(b.Name+"/rx", payload, 1, false)
}

// HandleMessage queues the message payload for reliable send. The status
// is published once the send completes.
func (b *Bridge) HandleMessage(topic string, payload []byte) {
	seq := atomic.AddUint64(&b.seq, 1)
	d := b.Endpoint.Send(payload)
	go func() {
		result := d.Wait()
		status := &Status{
			Seq:       seq,
			Size:      len(payload),
			Attempts:  result.Attempts,
			Delivered: result.Err == nil,
		}
		if result.Err != nil {
			status.Error = result.Err.Error()
			glog.Warningf("bridge: send %d failed: %v", seq, result.Err)
		}
		b.publishStatus(status)
	}()
}

// AddToLoop implements LoopAdder.
func (b *Bridge) AddToLoop(l *fx.Loop) {
	l.AddRunnable(fx.NamedRun("mqtt", b))
}

// Run implements Runnable. It fails if the broker can not be reached
// within ConnectTimeout, later disconnects are recovered by the client.
func (b *Bridge) Run(ctx context.Context) error {
	timeout := b.ConnectTimeout
	if timeout <= 0 {
		timeout = DefaultConnectTimeout
	}
	if err := b.Queue.ConnectWait(timeout); err != nil {
		glog.Errorf("bridge: connect failed: %v", err)
		return err
	}
	<-ctx.Done()
	if b.sub != nil {
		b.sub.Close()
	}
	b.Publisher.PubWith(b.Name+"/meta", nil, 1, true).WaitTimeout(time.Second)
	b.Queue.Close()
	return nil
}

func (b *Bridge) onConnected() {
	b.Publisher.PubWith(b.Name+"/meta", b.metaJSON, 1, true)
}

func (b *Bridge) publishStatus(status *Status) {
	encoded, err := json.Marshal(status)
	if err != nil {
		panic(err)
	}
	b.Publisher.PubWith(b.Name+"/status", encoded, 1, false)
}
