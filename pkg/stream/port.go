// Package stream binds an io.ReadWriter to the cooperative byte slots.
package stream

import (
	"context"
	"io"
	"sync"

	"github.com/golang/glog"

	fx "github.com/robotalks/framelink/pkg/framework"
	"github.com/robotalks/framelink/pkg/framing"
)

// DefaultReadAhead is the number of bytes buffered between the reader
// goroutine and the loop.
const DefaultReadAhead = 64

// Port moves bytes between an io.ReadWriter and two slots.
// Rx holds the next byte read from the wire, Tx the next byte to write.
//
// Reading happens on a background goroutine (Run) because Read blocks;
// the slots are only touched from Step, on the loop goroutine.
type Port struct {
	ReadWriter io.ReadWriter

	Rx framing.Slot
	Tx framing.Slot

	byteCh  chan byte
	errCh   chan error
	readErr error

	lock sync.Mutex
	err  error
	rx   uint64
	tx   uint64
}

// NewPort creates a Port.
func NewPort(rw io.ReadWriter) *Port {
	return &Port{
		ReadWriter: rw,
		byteCh:     make(chan byte, DefaultReadAhead),
		errCh:      make(chan error, 1),
	}
}

// Err returns the error which stopped the port. Rx may still hold the
// last byte read.
func (p *Port) Err() error {
	p.lock.Lock()
	defer p.lock.Unlock()
	return p.err
}

// Counters returns the number of bytes read and written.
func (p *Port) Counters() (rx, tx uint64) {
	p.lock.Lock()
	defer p.lock.Unlock()
	return p.rx, p.tx
}

// Step implements framework.Task. It moves at most one byte each way.
// Writes are issued synchronously. A read error stops the port only after
// every byte read before it has been moved into Rx.
func (p *Port) Step(now framing.Tick) bool {
	if p.Err() != nil {
		return true
	}
	if p.readErr == nil {
		select {
		case err := <-p.errCh:
			// readLoop has exited, byteCh holds the last bytes.
			p.readErr = err
		default:
		}
	}
	if !p.Rx.HasData() {
		select {
		case b := <-p.byteCh:
			p.Rx.TryPut(b)
			p.count(&p.rx)
			if glog.V(5) {
				glog.Infof("RX %02x @%d", b, now)
			}
		default:
		}
	}
	if p.readErr != nil && len(p.byteCh) == 0 {
		p.setErr(p.readErr)
		return true
	}
	if b, ok := p.Tx.TryGet(); ok {
		if _, err := p.ReadWriter.Write([]byte{b}); err != nil {
			p.setErr(err)
			return true
		}
		p.count(&p.tx)
		if glog.V(5) {
			glog.Infof("TX %02x @%d", b, now)
		}
	}
	return false
}

// Run implements Runnable. It reads the stream until error or the
// context is canceled. If ReadWriter is an io.Closer, it is closed
// on return. A read error is not returned, it stops the Port once the
// bytes read before it are consumed and is reported by Err.
func (p *Port) Run(ctx context.Context) error {
	if closer, ok := p.ReadWriter.(io.Closer); ok {
		return fx.RunWithContextCloser(ctx, closer, func() error {
			return p.readLoop(ctx)
		})
	}
	return p.readLoop(ctx)
}

// AddToLoop implements LoopAdder.
func (p *Port) AddToLoop(l *fx.Loop) {
	l.AddTask(p)
	l.AddRunnable(fx.NamedRun("port", p))
}

func (p *Port) readLoop(ctx context.Context) error {
	buf := make([]byte, 1)
	for {
		n, err := p.ReadWriter.Read(buf)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			glog.Warningf("read error: %v", err)
			p.errCh <- err
			return nil
		}
		if n == 0 {
			continue
		}
		select {
		case p.byteCh <- buf[0]:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (p *Port) setErr(err error) {
	p.lock.Lock()
	p.err = err
	p.lock.Unlock()
}

func (p *Port) count(counter *uint64) {
	p.lock.Lock()
	*counter++
	p.lock.Unlock()
}
