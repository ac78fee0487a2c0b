package mqtt

import (
	"context"
	"encoding/json"
	"net"
	"testing"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/stretchr/testify/require"

	"github.com/robotalks/framelink/pkg/arq"
	fx "github.com/robotalks/framelink/pkg/framework"
	"github.com/robotalks/framelink/pkg/framing"
	"github.com/robotalks/framelink/pkg/link"
	"github.com/robotalks/framelink/pkg/stream"
)

type message struct {
	topic   string
	payload []byte
	retain  bool
}

type recorder chan message

func (r recorder) PubWith(topic string, payload []byte, qos byte, retain bool) paho.Token {
	r <- message{topic: topic, payload: payload, retain: retain}
	return &paho.DummyToken{}
}

func (r recorder) next(t *testing.T) message {
	select {
	case msg := <-r:
		return msg
	case <-time.After(5 * time.Second):
		t.Fatal("timeout waiting for publish")
	}
	return message{}
}

func TestBridge(t *testing.T) {
	a, b := net.Pipe()
	pub := make(recorder, 8)
	sender := link.NewSender(stream.NewPort(a), framing.Extended, arq.Options{Timeout: 200})
	senderBridge := NewBridgeWith(&Queue{TopicPrefix: "robo/"}, "dev", sender)
	senderBridge.Publisher = pub
	receiver := link.NewReceiver(stream.NewPort(b), framing.Extended, nil)
	receiverBridge := NewBridgeWith(&Queue{TopicPrefix: "robo/"}, "dev", receiver)
	receiverBridge.Publisher = pub
	receiver.SetHandler(receiverBridge)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go fx.NewLoop().Add(sender, receiver).Run(ctx)

	senderBridge.Queue.Dispatch("robo/dev/tx", []byte("HELLO"))
	rx := pub.next(t)
	require.Equal(t, "dev/rx", rx.topic)
	require.Equal(t, []byte("HELLO"), rx.payload)

	msg := pub.next(t)
	require.Equal(t, "dev/status", msg.topic)
	var status Status
	require.NoError(t, json.Unmarshal(msg.payload, &status))
	require.Equal(t, uint64(1), status.Seq)
	require.Equal(t, 5, status.Size)
	require.True(t, status.Delivered)
	require.Empty(t, status.Error)

	senderBridge.onConnected()
	msg = pub.next(t)
	require.Equal(t, "dev/meta", msg.topic)
	require.True(t, msg.retain)
	require.JSONEq(t, `{"role":"send","variant":"extended"}`, string(msg.payload))
}

func TestBridgeStatusError(t *testing.T) {
	a, b := net.Pipe()
	defer a.Close()
	defer b.Close()
	pub := make(recorder, 1)
	receiver := link.NewReceiver(stream.NewPort(a), framing.Standard, nil)
	bridge := NewBridgeWith(&Queue{}, "dev", receiver)
	bridge.Publisher = pub
	require.Empty(t, bridge.Queue.Topics())

	bridge.HandleMessage("dev/tx", []byte("X"))
	var status Status
	require.NoError(t, json.Unmarshal(pub.next(t).payload, &status))
	require.False(t, status.Delivered)
	require.Equal(t, link.ErrWrongRole.Error(), status.Error)
}

func TestBridgeUnreachableBroker(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	ln.Close()

	a, b := net.Pipe()
	defer a.Close()
	defer b.Close()
	sender := link.NewSender(stream.NewPort(a), framing.Standard, arq.Options{})
	bridge, err := NewBridge("mqtt://"+addr+"/robo/?client-id=test", "dev", sender)
	require.NoError(t, err)
	bridge.ConnectTimeout = time.Second

	errCh := make(chan error, 1)
	go func() {
		errCh <- bridge.Run(context.Background())
	}()
	select {
	case err := <-errCh:
		require.Error(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("bridge kept running without a broker")
	}
}
