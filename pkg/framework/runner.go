package framework

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"

	"github.com/golang/glog"
)

// ErrForcedExit is returned by Runner.Wait when a second stop signal
// arrives before the runnables have returned.
var ErrForcedExit = errors.New("forced exit")

type namedRunnable struct {
	Runnable
	name string
}

func (r *namedRunnable) Name() string {
	return r.name
}

// NamedRun attaches name to runnable for logging and error reports.
func NamedRun(name string, runnable Runnable) Runnable {
	return &namedRunnable{name: name, Runnable: runnable}
}

func nameOf(r Runnable, index int) (string, bool) {
	if named, ok := r.(Named); ok {
		return named.Name(), true
	}
	return strconv.Itoa(index), false
}

// Runner owns the goroutines of a set of Runnables sharing one context.
// Errors other than context.Canceled are collected and reported by Wait,
// prefixed with the runnable name when it has one.
type Runner struct {
	Context context.Context

	wg      sync.WaitGroup
	lock    sync.Mutex
	count   int
	errs    AggregatedError
	forceCh chan struct{}
}

// NewRunner returns a Runner on context.Background.
func NewRunner() *Runner {
	return NewRunnerWith(context.Background())
}

// NewRunnerWith returns a Runner whose runnables observe ctx.
func NewRunnerWith(ctx context.Context) *Runner {
	return &Runner{Context: ctx, forceCh: make(chan struct{})}
}

// HandleSignals cancels the runner context on the first SIGINT or SIGTERM.
// A second signal makes Wait give up with ErrForcedExit.
// It must be called before Go.
func (r *Runner) HandleSignals() *Runner {
	ctx, cancel := context.WithCancel(r.Context)
	r.Context = ctx
	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		glog.Infof("%v received, stopping", sig)
		cancel()
		sig = <-sigCh
		glog.Errorf("%v received while stopping, exiting", sig)
		close(r.forceCh)
	}()
	return r
}

// Go starts each runnable on its own goroutine.
func (r *Runner) Go(runnables ...Runnable) *Runner {
	for _, runnable := range runnables {
		r.lock.Lock()
		name, named := nameOf(runnable, r.count)
		r.count++
		r.lock.Unlock()

		r.wg.Add(1)
		go r.run(runnable, name, named)
	}
	return r
}

func (r *Runner) run(runnable Runnable, name string, named bool) {
	defer r.wg.Done()
	glog.V(4).Infof("Runner[%s] started", name)
	err := runnable.Run(r.Context)
	glog.V(4).Infof("Runner[%s] stopped: %v", name, err)
	if err == nil || err == context.Canceled {
		return
	}
	if named {
		err = fmt.Errorf("%s: %v", name, err)
	}
	r.lock.Lock()
	r.errs.Add(err)
	r.lock.Unlock()
}

// Wait blocks until every started runnable has returned.
func (r *Runner) Wait() error {
	doneCh := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(doneCh)
	}()
	select {
	case <-r.forceCh:
		return ErrForcedExit
	case <-doneCh:
	}
	r.lock.Lock()
	defer r.lock.Unlock()
	return r.errs.Aggregate()
}

// RunWithContextCloser runs a blocking fn that has no context of its own.
// closer unblocks fn on cancellation and is always closed once.
func RunWithContextCloser(ctx context.Context, closer io.Closer, fn func() error) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- fn()
	}()
	var err error
	select {
	case err = <-errCh:
		closer.Close()
	case <-ctx.Done():
		closer.Close()
		<-errCh
		err = ctx.Err()
	}
	return err
}
