package framework

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/golang/glog"

	"github.com/robotalks/framelink/pkg/framing"
)

// Loop is a single-threaded cooperative scheduler.
// Each pass steps every unfinished task once, in the order they were
// added, and then advances the shared tick counter. The tick is the only
// clock tasks should use.
type Loop struct {
	// Interval paces passes in Run. It does not affect ticks.
	Interval time.Duration

	clock   framing.Clock
	tasks   []*taskEntry
	runners []Runnable
	lock    sync.Mutex

	wakeUpCh chan struct{}
}

type taskEntry struct {
	task Task
	done bool
}

// DefaultInterval is the pass interval used by Run.
const DefaultInterval = time.Millisecond

// NewLoop creates a Loop.
func NewLoop() *Loop {
	return &Loop{Interval: DefaultInterval}
}

// Add adds LoopAdders.
func (l *Loop) Add(adders ...LoopAdder) *Loop {
	for _, adder := range adders {
		adder.AddToLoop(l)
	}
	return l
}

// AddTask registers tasks to be stepped on every pass.
func (l *Loop) AddTask(tasks ...Task) *Loop {
	l.lock.Lock()
	for _, task := range tasks {
		l.tasks = append(l.tasks, &taskEntry{task: task})
	}
	l.lock.Unlock()
	return l
}

// AddRunnable adds Runnable implementions started by Run.
func (l *Loop) AddRunnable(runnables ...Runnable) *Loop {
	l.runners = append(l.runners, runnables...)
	return l
}

// Now implements framing.TickSource.
func (l *Loop) Now() framing.Tick {
	return l.clock.Now()
}

// Pass runs one scheduler pass. It returns false when all tasks are done.
func (l *Loop) Pass() bool {
	l.lock.Lock()
	tasks := l.tasks
	l.lock.Unlock()
	now := l.clock.Now()
	var pending bool
	for n, ent := range tasks {
		if ent.done {
			continue
		}
		if ent.task.Step(now) {
			ent.done = true
			glog.V(4).Infof("task[%d] done at tick %d", n, now)
			continue
		}
		pending = true
	}
	l.clock.Advance()
	return pending
}

// RunPasses runs up to n passes, stopping early when all tasks are done.
// It returns the number of passes run.
func (l *Loop) RunPasses(n int) int {
	for i := 0; i < n; i++ {
		if !l.Pass() {
			return i + 1
		}
	}
	return n
}

// RunUntil runs passes until cond is satisfied or limit passes are run.
// cond is checked before every pass.
func (l *Loop) RunUntil(limit int, cond func() bool) bool {
	for i := 0; i < limit; i++ {
		if cond() {
			return true
		}
		l.Pass()
	}
	return cond()
}

// Run implements Runnable. Registered runnables are started in the
// background and a pass is run on every Interval or TriggerNext.
// Run returns when the context is canceled or a runnable fails, and
// unfinished Stopper tasks are stopped with that error.
func (l *Loop) Run(ctx context.Context) error {
	if l.wakeUpCh == nil {
		l.wakeUpCh = make(chan struct{}, 1)
	}

	runCtx, cancel := context.WithCancel(ctx)
	failCh := make(chan error, len(l.runners))
	runner := NewRunnerWith(runCtx)
	for n, r := range l.runners {
		runner.Go(failOnError(n, r, failCh))
	}
	defer runner.Wait()
	defer cancel()

	interval := l.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			l.stopTasks(ctx.Err())
			return ctx.Err()
		case err := <-failCh:
			l.stopTasks(err)
			return err
		case <-ticker.C:
			l.Pass()
		case <-l.wakeUpCh:
			l.Pass()
		}
	}
}

// failOnError reports the error of r to failCh unless it stopped because
// the context was canceled.
func failOnError(n int, r Runnable, failCh chan<- error) Runnable {
	name, _ := nameOf(r, n)
	return NamedRun(name, RunFunc(func(ctx context.Context) error {
		err := r.Run(ctx)
		if err != nil && ctx.Err() == nil {
			glog.Errorf("Runner[%s] failed: %v", name, err)
			failCh <- err
		}
		return err
	}))
}

// stopTasks calls Stop on every unfinished task implementing Stopper.
func (l *Loop) stopTasks(err error) {
	l.lock.Lock()
	tasks := l.tasks
	l.lock.Unlock()
	for _, ent := range tasks {
		if ent.done {
			continue
		}
		if stopper, ok := ent.task.(Stopper); ok {
			stopper.Stop(err)
		}
	}
}

// RunOrFail is intended to be used in main to simply run the loop.
func (l *Loop) RunOrFail(ctx context.Context) {
	if err := l.Run(ctx); err != nil && err != context.Canceled {
		log.Fatalln(err)
	}
}

// TriggerNext schedules a pass immediately, without waiting for Interval.
func (l *Loop) TriggerNext() {
	if l.wakeUpCh == nil {
		return
	}
	select {
	case l.wakeUpCh <- struct{}{}:
	default:
	}
}
