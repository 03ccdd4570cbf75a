package signals

import (
	"context"
	"math"
	"syscall"
	"time"

	"golang.org/x/sys/unix"
)

// TimedOut is the index WaitAny returns when no waiter fired in time.
const TimedOut = -1

// Forever makes WaitAny block until one of its waiters fires. Any other
// timeout of zero or less polls once and returns immediately.
const Forever time.Duration = -1

// WaitAny blocks until the signal of one of the waiters is delivered and
// returns that waiter's index, or TimedOut once timeout has elapsed.
//
// Only one WaitAny runs at a time in the process; concurrent callers queue.
// When several waiters have fired, the lowest index is reported and the
// others are reported by subsequent calls. A delivery that happened while no
// wait was in progress is reported immediately.
func WaitAny(waiters []*Waiter, timeout time.Duration) (int, error) {
	return processTable().waitAny(context.Background(), waiters, timeout)
}

// WaitAnyContext is WaitAny with ctx bounding the time spent queueing behind
// another wait. If ctx ends first, the error wraps ErrLockAcquisition. Once
// the wait has started, ctx is no longer consulted.
func WaitAnyContext(ctx context.Context, waiters []*Waiter, timeout time.Duration) (int, error) {
	return processTable().waitAny(ctx, waiters, timeout)
}

func (t *table) waitAny(ctx context.Context, waiters []*Waiter, timeout time.Duration) (int, error) {
	if len(waiters) == 0 {
		return TimedOut, &Error{Op: "wait", Kind: ErrInvalidHandle}
	}
	if err := t.acquireWait(ctx); err != nil {
		return TimedOut, err
	}
	defer t.releaseWait()

	t.mu.Lock()
	ws, err := t.openWaitSet(waiters)
	t.mu.Unlock()
	if err != nil {
		return TimedOut, err
	}

	var deadline time.Time
	if timeout > 0 {
		deadline = time.Now().Add(timeout)
	}

	for {
		t.mu.Lock()
		if idx := ws.pending(); idx >= 0 {
			ws.observe(idx)
			ws.close()
			t.mu.Unlock()
			return idx, nil
		}
		if !ws.anyValid() {
			ws.close()
			t.mu.Unlock()
			return TimedOut, &Error{Op: "wait", Kind: ErrInvalidHandle}
		}
		t.mu.Unlock()

		ready, err := ws.poll(timeout, deadline)
		if err != nil || !ready {
			t.mu.Lock()
			ws.close()
			t.mu.Unlock()
			return TimedOut, err
		}
	}
}

func (t *table) acquireWait(ctx context.Context) error {
	select {
	case t.waitSem <- struct{}{}:
		return nil
	default:
	}
	select {
	case t.waitSem <- struct{}{}:
		return nil
	case <-ctx.Done():
		return &Error{Op: "wait", Kind: ErrLockAcquisition, Err: ctx.Err()}
	}
}

func (t *table) releaseWait() {
	<-t.waitSem
}

// waitSet is the state of one WaitAny call: the caller's waiters and one
// pipe per distinct slot among them.
type waitSet struct {
	t       *table
	waiters []*Waiter
	pipes   []*notifyPipe
	fds     []unix.PollFd
}

// openWaitSet validates every waiter and opens the pipes. On failure the
// pipes opened so far are closed. Caller holds t.mu.
func (t *table) openWaitSet(waiters []*Waiter) (*waitSet, error) {
	for _, w := range waiters {
		if !t.valid(w) {
			var sig syscall.Signal
			if w != nil {
				sig = w.sig
			}
			return nil, &Error{Op: "wait", Signal: sig, Kind: ErrInvalidHandle}
		}
	}

	ws := &waitSet{t: t, waiters: waiters}
	opened := make(map[int]bool, len(waiters))
	for _, w := range waiters {
		if opened[w.index] {
			continue
		}
		p, err := openFor(&t.slots[w.index])
		if err != nil {
			ws.close()
			return nil, &Error{Op: "wait", Signal: w.sig, Kind: ErrPipeSetup, Err: err}
		}
		opened[w.index] = true
		ws.pipes = append(ws.pipes, p)
		ws.fds = append(ws.fds, unix.PollFd{Fd: int32(p.r), Events: unix.POLLIN})
	}
	return ws, nil
}

// pending returns the index of the first waiter with deliveries it has not
// been told about, or TimedOut. Caller holds t.mu.
func (ws *waitSet) pending() int {
	for i, w := range ws.waiters {
		if !ws.t.valid(w) {
			continue
		}
		if ws.t.slots[w.index].count.Load() > w.seen {
			return i
		}
	}
	return TimedOut
}

// anyValid reports whether some waiter of the set is still registered.
// Caller holds t.mu.
func (ws *waitSet) anyValid() bool {
	for _, w := range ws.waiters {
		if ws.t.valid(w) {
			return true
		}
	}
	return false
}

// observe marks every delivery so far as seen by waiter i. Caller holds t.mu.
func (ws *waitSet) observe(i int) {
	w := ws.waiters[i]
	w.seen = ws.t.slots[w.index].count.Load()
}

// close releases every pipe of the set. Caller holds t.mu.
func (ws *waitSet) close() {
	for _, p := range ws.pipes {
		p.closeFor()
	}
	ws.pipes = nil
	ws.fds = nil
}

// poll blocks until a pipe is readable or the deadline passes, then drains
// one byte from every readable pipe. Interrupted polls are retried with the
// remaining time.
func (ws *waitSet) poll(timeout time.Duration, deadline time.Time) (bool, error) {
	for {
		n, err := pollFunc(ws.fds, pollTimeout(timeout, deadline))
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			return false, &Error{Op: "wait", Kind: ErrWait, Err: err}
		}
		if n == 0 {
			if timeout > 0 && time.Until(deadline) > 0 {
				continue
			}
			return false, nil
		}

		ready := false
		for i := range ws.fds {
			ev := ws.fds[i].Revents
			ws.fds[i].Revents = 0
			if ev&(unix.POLLNVAL|unix.POLLERR) != 0 {
				return false, &Error{Op: "wait", Kind: ErrWait, Err: unix.EBADF}
			}
			if ev&unix.POLLIN != 0 {
				ws.pipes[i].drain()
				ready = true
			}
		}
		if ready {
			return true, nil
		}
	}
}

// pollTimeout converts the caller's timeout into poll(2) milliseconds,
// rounding up so the wait is never shorter than requested.
func pollTimeout(timeout time.Duration, deadline time.Time) int {
	if timeout == Forever {
		return -1
	}
	if timeout <= 0 {
		return 0
	}
	remaining := time.Until(deadline)
	if remaining <= 0 {
		return 0
	}
	ms := (remaining + time.Millisecond - 1) / time.Millisecond
	if ms > math.MaxInt32 {
		return math.MaxInt32
	}
	return int(ms)
}
