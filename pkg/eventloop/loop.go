// Package eventloop implements the central event coordination for sigmux.
// Signals are waited for synchronously through the signals package; timers
// and the context are checked between waits.
package eventloop

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync/atomic"
	"time"

	"github.com/sunlightlinux/sigmux/pkg/logging"
	"github.com/sunlightlinux/sigmux/pkg/signals"
)

const defaultInterval = 250 * time.Millisecond

type timerEntry struct {
	timer *ServiceTimer
	fn    func() bool
}

// EventLoop waits for the signals registered with Handle and dispatches
// each delivery to its handler. It is not safe for concurrent use except
// for Stop.
type EventLoop struct {
	logger   *logging.Logger
	interval time.Duration

	handlers []registration
	waiters  []*signals.Waiter
	timers   []timerEntry

	stopped atomic.Bool

	// OnTick is called after every wait, whether or not a signal arrived.
	// Returning true stops the loop.
	OnTick func() bool
}

// New creates an EventLoop. interval bounds how long a single wait blocks,
// and therefore how quickly cancellation, Stop and timers are noticed.
func New(logger *logging.Logger, interval time.Duration) *EventLoop {
	if interval <= 0 {
		interval = defaultInterval
	}
	return &EventLoop{
		logger:   logger,
		interval: interval,
	}
}

// AddTimer makes the loop call fn when t fires. Returning true stops the
// loop. The timer may be armed and disarmed freely while the loop runs.
func (el *EventLoop) AddTimer(t *ServiceTimer, fn func() bool) {
	el.timers = append(el.timers, timerEntry{timer: t, fn: fn})
}

// Stop asks Run to return. It may be called from any goroutine; Run
// notices it after the current wait.
func (el *EventLoop) Stop() {
	el.stopped.Store(true)
}

// Run waits for signals until a handler, timer or OnTick asks it to stop,
// Stop is called, or ctx is cancelled. Handled signals stay registered
// after Run returns; call Close to release them.
func (el *EventLoop) Run(ctx context.Context) error {
	if len(el.waiters) == 0 {
		return errors.New("no signals to wait for")
	}

	el.logger.Info("sigmux event loop started (PID %d)", os.Getpid())

	for !el.stopped.Load() {
		if err := ctx.Err(); err != nil {
			el.logger.Info("Context cancelled, leaving event loop")
			return err
		}

		idx, err := signals.WaitAnyContext(ctx, el.waiters, el.nextTimeout())
		if err != nil {
			if errors.Is(err, signals.ErrLockAcquisition) && ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("waiting for signals: %w", err)
		}

		if idx != signals.TimedOut {
			r := el.handlers[idx]
			count := r.waiter.Count()
			el.logger.Debug("Dispatching %s (delivery #%d)", signals.Name(r.sig), count)
			if r.fn(r.sig, count) {
				return nil
			}
		}

		for _, e := range el.timers {
			if e.timer.Expired() && e.fn() {
				return nil
			}
		}

		if el.OnTick != nil && el.OnTick() {
			return nil
		}
	}
	return nil
}

// nextTimeout is the poll interval, shortened to the nearest armed timer.
func (el *EventLoop) nextTimeout() time.Duration {
	timeout := el.interval
	for _, e := range el.timers {
		if !e.timer.IsArmed() {
			continue
		}
		if r := e.timer.Remaining(); r < timeout {
			timeout = r
		}
	}
	return timeout
}
