package framework

import (
	"context"
	"time"

	"github.com/golang/glog"
)

// Loop drives controllers from a periodic tick.
//
// Every iteration waits for exactly one tick before running the registered
// controllers in priority order. Controllers run synchronously, so a slow
// controller delays the next tick rather than queueing ticks behind it.
// The first controller error stops the loop and is returned from Run.
type Loop struct {
	Interval time.Duration

	controllers [PriorityLevels][]Controller
	runners     []Runnable
	ticks       <-chan time.Time
}

// LoopAdder provides specific logic to add components to loop.
type LoopAdder interface {
	AddToLoop(*Loop)
}

type loopIteration struct {
	ctx           context.Context
	time          time.Time
	tick          uint64
	priorityLevel int
}

// DefaultInterval is used when Loop.Interval is not set.
const DefaultInterval = 100 * time.Millisecond

// NewLoop creates a Loop ticking at the given interval.
func NewLoop(interval time.Duration) *Loop {
	return &Loop{Interval: interval}
}

// Add adds LoopAdders.
func (l *Loop) Add(adders ...LoopAdder) *Loop {
	for _, adder := range adders {
		adder.AddToLoop(l)
	}
	return l
}

// AddController registers controllers to the loop.
func (l *Loop) AddController(priorityLevel int, ctls ...Controller) *Loop {
	l.controllers[priorityLevel] = append(l.controllers[priorityLevel], ctls...)
	for _, ctl := range ctls {
		if runner, ok := ctl.(Runnable); ok {
			l.runners = append(l.runners, runner)
		}
	}
	return l
}

// AddRunnable adds Runnables started together with the loop.
func (l *Loop) AddRunnable(runnables ...Runnable) *Loop {
	l.runners = append(l.runners, runnables...)
	return l
}

// WithTicks replaces the internal ticker with an external tick source.
func (l *Loop) WithTicks(ticks <-chan time.Time) *Loop {
	l.ticks = ticks
	return l
}

// Run implements Runnable.
func (l *Loop) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var runner *Runner
	if len(l.runners) > 0 {
		runner = NewRunnerWith(ctx).Go(l.runners...)
	}

	ticks := l.ticks
	if ticks == nil {
		interval := l.Interval
		if interval <= 0 {
			interval = DefaultInterval
		}
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		ticks = ticker.C
	}

	err := l.loop(ctx, ticks)
	cancel()
	if runner != nil {
		if rerr := runner.Wait(); rerr != nil && err == nil {
			err = rerr
		}
	}
	return err
}

func (l *Loop) loop(ctx context.Context, ticks <-chan time.Time) error {
	iter := &loopIteration{ctx: ctx}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case now, ok := <-ticks:
			if !ok {
				return nil
			}
			iter.time, iter.tick = now, iter.tick+1
			if err := l.runIteration(iter); err != nil {
				return err
			}
		}
	}
}

func (l *Loop) runIteration(iter *loopIteration) error {
	for i := 0; i < PriorityLevels; i++ {
		iter.priorityLevel = i
		for _, ctl := range l.controllers[i] {
			if err := ctl.Control(iter); err != nil {
				glog.V(2).Infof("loop stopped at tick %d: %v", iter.tick, err)
				return err
			}
		}
	}
	return nil
}

func (t *loopIteration) Context() context.Context {
	return t.ctx
}

func (t *loopIteration) Time() time.Time {
	return t.time
}

func (t *loopIteration) Tick() uint64 {
	return t.tick
}

func (t *loopIteration) PriorityLevel() int {
	return t.priorityLevel
}
