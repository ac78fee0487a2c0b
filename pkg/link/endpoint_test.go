package link

import (
	"bytes"
	"context"
	"io"
	"io/ioutil"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/robotalks/framelink/pkg/arq"
	fx "github.com/robotalks/framelink/pkg/framework"
	"github.com/robotalks/framelink/pkg/framing"
	"github.com/robotalks/framelink/pkg/stream"
)

func waitResult(t *testing.T, d *Delivery) Result {
	select {
	case r := <-d.ResultChan():
		return r
	case <-time.After(5 * time.Second):
		t.Fatal("timeout waiting for result")
	}
	return Result{}
}

func runLoop(l *fx.Loop) (stop func()) {
	ctx, cancel := context.WithCancel(context.Background())
	doneCh := make(chan struct{})
	go func() {
		l.Run(ctx)
		close(doneCh)
	}()
	return func() {
		cancel()
		<-doneCh
	}
}

func TestEndpointDelivery(t *testing.T) {
	for _, v := range []framing.Variant{framing.Standard, framing.Extended} {
		t.Run(v.Name, func(t *testing.T) {
			a, b := net.Pipe()
			receivedCh := make(chan []byte, 4)
			sender := NewSender(stream.NewPort(a), v, arq.Options{Timeout: 200})
			receiver := NewReceiver(stream.NewPort(b), v, arq.HandlePayloadFunc(func(payload []byte, now framing.Tick) {
				receivedCh <- payload
			}))
			stop := runLoop(fx.NewLoop().Add(sender, receiver))
			defer stop()

			payloads := [][]byte{[]byte("HELLO"), {}, {framing.STX, framing.ETX, framing.ACK}}
			var deliveries []*Delivery
			for _, payload := range payloads {
				deliveries = append(deliveries, sender.Send(payload))
			}
			for n, d := range deliveries {
				r := waitResult(t, d)
				require.NoError(t, r.Err)
				require.True(t, r.Attempts >= 1)
				require.Equal(t, string(payloads[n]), string(<-receivedCh))
			}
			stats := sender.Stats()
			require.Equal(t, RoleSend, stats.Role)
			require.Equal(t, v.Name, stats.Variant)
			require.Equal(t, uint64(3), stats.Delivered)
			require.Zero(t, stats.Pending)
			require.Equal(t, RoleRecv, receiver.Stats().Role)
		})
	}
}

func TestEndpointExhausted(t *testing.T) {
	a, b := net.Pipe()
	go io.Copy(ioutil.Discard, b)
	sender := NewSender(stream.NewPort(a), framing.Standard, arq.Options{Timeout: 3, MaxAttempts: 2})
	stop := runLoop(fx.NewLoop().Add(sender))
	defer stop()
	r := waitResult(t, sender.Send([]byte("X")))
	require.Equal(t, ErrExhausted, r.Err)
	require.Equal(t, 2, r.Attempts)
	require.Equal(t, uint64(1), sender.Stats().Exhausted)
}

func TestEndpointRejects(t *testing.T) {
	a, b := net.Pipe()
	defer a.Close()
	defer b.Close()
	receiver := NewReceiver(stream.NewPort(a), framing.Standard, nil)
	require.Equal(t, ErrWrongRole, waitResult(t, receiver.Send([]byte("X"))).Err)

	sender := NewSender(stream.NewPort(b), framing.Standard, arq.Options{})
	r := waitResult(t, sender.Send(make([]byte, framing.Standard.MaxPayload+1)))
	require.Equal(t, framing.ErrPayloadTooLarge, r.Err)
}

func TestEndpointPortFailure(t *testing.T) {
	a, b := net.Pipe()
	sender := NewSender(stream.NewPort(a), framing.Standard, arq.Options{Timeout: 1000})
	d := sender.Send([]byte("X"))
	stop := runLoop(fx.NewLoop().Add(sender))
	defer stop()
	b.Close()
	r := waitResult(t, d)
	require.Error(t, r.Err)
	require.Error(t, sender.Port.Err())
	require.Equal(t, ErrClosed, waitResult(t, sender.Send([]byte("Y"))).Err)
}

func TestParseRole(t *testing.T) {
	role, err := ParseRole("recv")
	require.NoError(t, err)
	require.Equal(t, RoleRecv, role)
	role, err = ParseRole("send")
	require.NoError(t, err)
	require.Equal(t, RoleSend, role)
	_, err = ParseRole("both")
	require.Equal(t, ErrWrongRole, err)
}

type readOnlyStream struct {
	io.Reader
}

func (readOnlyStream) Write(p []byte) (int, error) {
	return len(p), nil
}

func TestEndpointLastFrameBeforeEOF(t *testing.T) {
	frame, err := framing.Standard.Encode([]byte("HELLO"))
	require.NoError(t, err)
	receivedCh := make(chan []byte, 1)
	receiver := NewReceiver(stream.NewPort(readOnlyStream{bytes.NewReader(frame)}), framing.Standard,
		arq.HandlePayloadFunc(func(payload []byte, now framing.Tick) {
			receivedCh <- payload
		}))
	stop := runLoop(fx.NewLoop().Add(receiver))
	defer stop()

	select {
	case payload := <-receivedCh:
		require.Equal(t, []byte("HELLO"), payload)
	case <-time.After(5 * time.Second):
		t.Fatal("frame before EOF not delivered")
	}
	deadline := time.Now().Add(5 * time.Second)
	for {
		stats := receiver.Stats()
		if receiver.Port.Err() != nil && stats.Parser.Frames == 1 {
			require.Equal(t, uint64(len(frame)), stats.RxBytes)
			break
		}
		require.True(t, time.Now().Before(deadline), "port not stopped")
		time.Sleep(time.Millisecond)
	}
	require.Equal(t, io.EOF, receiver.Port.Err())
}

func TestEndpointStopOnCancel(t *testing.T) {
	a, b := net.Pipe()
	go io.Copy(ioutil.Discard, b)
	sender := NewSender(stream.NewPort(a), framing.Standard, arq.Options{Timeout: 3})
	d1 := sender.Send([]byte("X"))
	d2 := sender.Send([]byte("Y"))
	stop := runLoop(fx.NewLoop().Add(sender))
	time.Sleep(50 * time.Millisecond)
	stop()

	r := waitResult(t, d1)
	require.Equal(t, context.Canceled, r.Err)
	require.True(t, r.Attempts >= 1)
	require.Equal(t, context.Canceled, waitResult(t, d2).Err)
	require.Equal(t, ErrClosed, waitResult(t, sender.Send([]byte("Z"))).Err)
	require.Zero(t, sender.Stats().Pending)
}
