package signals

import (
	"context"
	"errors"
	"syscall"
	"testing"
	"time"

	"golang.org/x/sys/unix"
)

func TestWaitAnyTimesOut(t *testing.T) {
	tb := newTable(TableSize)
	w := mustRegister(t, tb, syscall.SIGWINCH)
	defer w.Unregister()

	const timeout = 100 * time.Millisecond
	start := time.Now()
	idx, err := tb.waitAny(context.Background(), []*Waiter{w}, timeout)
	elapsed := time.Since(start)

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if idx != TimedOut {
		t.Fatalf("expected TimedOut, got %d", idx)
	}
	if elapsed < timeout {
		t.Errorf("returned after %v, before the %v timeout", elapsed, timeout)
	}
	if elapsed > timeout+2*time.Second {
		t.Errorf("returned after %v, far beyond the %v timeout", elapsed, timeout)
	}
}

func TestWaitAnyZeroTimeoutPollsOnce(t *testing.T) {
	tb := newTable(TableSize)
	w := mustRegister(t, tb, syscall.SIGWINCH)
	defer w.Unregister()

	for _, timeout := range []time.Duration{0, -5 * time.Millisecond} {
		start := time.Now()
		idx, err := tb.waitAny(context.Background(), []*Waiter{w}, timeout)
		if err != nil || idx != TimedOut {
			t.Fatalf("timeout %v: got (%d, %v), want TimedOut", timeout, idx, err)
		}
		if elapsed := time.Since(start); elapsed > time.Second {
			t.Errorf("timeout %v: poll-once took %v", timeout, elapsed)
		}
	}
}

func TestWaitAnyReportsFiredIndex(t *testing.T) {
	tb := newTable(TableSize)
	keepAlive(t, syscall.SIGUSR1)
	keepAlive(t, syscall.SIGUSR2)
	a := mustRegister(t, tb, syscall.SIGWINCH)
	defer a.Unregister()
	b := mustRegister(t, tb, syscall.SIGUSR1)
	defer b.Unregister()
	c := mustRegister(t, tb, syscall.SIGUSR2)
	defer c.Unregister()

	go func() {
		time.Sleep(50 * time.Millisecond)
		unix.Kill(unix.Getpid(), syscall.SIGUSR2)
	}()

	idx, err := tb.waitAny(context.Background(), []*Waiter{a, b, c}, Forever)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if idx != 2 {
		t.Fatalf("expected index 2, got %d", idx)
	}

	// Nothing else is pending.
	idx, err = tb.waitAny(context.Background(), []*Waiter{a, b, c}, 20*time.Millisecond)
	if err != nil || idx != TimedOut {
		t.Fatalf("expected TimedOut on second wait, got (%d, %v)", idx, err)
	}
}

func TestWaitAnyTieBreakKeepsLaterSignal(t *testing.T) {
	tb := newTable(TableSize)
	keepAlive(t, syscall.SIGUSR1)
	keepAlive(t, syscall.SIGUSR2)
	a := mustRegister(t, tb, syscall.SIGUSR1)
	defer a.Unregister()
	b := mustRegister(t, tb, syscall.SIGUSR2)
	defer b.Unregister()

	// Deliver b first, then a, with no wait in progress.
	raise(t, syscall.SIGUSR2)
	waitCount(t, b, 1)
	raise(t, syscall.SIGUSR1)
	waitCount(t, a, 1)

	waiters := []*Waiter{a, b}
	for _, want := range []int{0, 1, TimedOut} {
		idx, err := tb.waitAny(context.Background(), waiters, 20*time.Millisecond)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if idx != want {
			t.Fatalf("expected %d, got %d", want, idx)
		}
	}
}

func TestWaitAnySharedSlotReportsEachWaiter(t *testing.T) {
	tb := newTable(TableSize)
	keepAlive(t, syscall.SIGUSR1)
	a := mustRegister(t, tb, syscall.SIGUSR1)
	defer a.Unregister()
	b := mustRegister(t, tb, syscall.SIGUSR1)
	defer b.Unregister()

	var opened int
	origPipe := pipeFunc
	pipeFunc = func() (int, int, error) {
		opened++
		return origPipe()
	}
	defer func() { pipeFunc = origPipe }()

	go func() {
		time.Sleep(20 * time.Millisecond)
		unix.Kill(unix.Getpid(), syscall.SIGUSR1)
	}()

	waiters := []*Waiter{a, b}
	for _, want := range []int{0, 1} {
		idx, err := tb.waitAny(context.Background(), waiters, 5*time.Second)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if idx != want {
			t.Fatalf("expected %d, got %d", want, idx)
		}
	}
	if opened != 2 {
		t.Errorf("expected one pipe per wait for a shared slot, opened %d", opened)
	}
}

func TestWaitAnyPipeSetupFailure(t *testing.T) {
	tb := newTable(TableSize)
	a := mustRegister(t, tb, syscall.SIGWINCH)
	defer a.Unregister()
	b := mustRegister(t, tb, syscall.SIGUSR1)
	defer b.Unregister()

	var open, closed int
	origPipe, origClose := pipeFunc, closeFunc
	pipeFunc = func() (int, int, error) {
		if open == 1 {
			return -1, -1, syscall.EMFILE
		}
		open++
		return origPipe()
	}
	closeFunc = func(fd int) error {
		closed++
		return origClose(fd)
	}
	defer func() { pipeFunc, closeFunc = origPipe, origClose }()

	_, err := tb.waitAny(context.Background(), []*Waiter{a, b}, Forever)
	if !errors.Is(err, ErrPipeSetup) {
		t.Fatalf("expected ErrPipeSetup, got %v", err)
	}
	if !errors.Is(err, syscall.EMFILE) {
		t.Fatalf("expected underlying EMFILE, got %v", err)
	}
	if closed != 2 {
		t.Errorf("expected both ends of the opened pipe closed, got %d closes", closed)
	}
	for _, w := range []*Waiter{a, b} {
		s := &tb.slots[w.index]
		if s.readFD != -1 || s.writeFD != -1 {
			t.Errorf("%v: pipe descriptors left on slot", w.Signal())
		}
	}
}

func TestWaitAnyClosesPipes(t *testing.T) {
	tb := newTable(TableSize)
	w := mustRegister(t, tb, syscall.SIGWINCH)
	defer w.Unregister()

	var closed int
	origClose := closeFunc
	closeFunc = func(fd int) error {
		closed++
		return origClose(fd)
	}
	defer func() { closeFunc = origClose }()

	if _, err := tb.waitAny(context.Background(), []*Waiter{w}, 0); err != nil {
		t.Fatal(err)
	}
	if closed != 2 {
		t.Errorf("expected 2 closes, got %d", closed)
	}
	s := &tb.slots[w.index]
	if s.readFD != -1 || s.writeFD != -1 {
		t.Error("pipe descriptors left on slot after wait")
	}
}

func TestWaitAnyRetriesInterruptedPoll(t *testing.T) {
	tb := newTable(TableSize)
	w := mustRegister(t, tb, syscall.SIGWINCH)
	defer w.Unregister()

	var calls int
	origPoll := pollFunc
	pollFunc = func(fds []unix.PollFd, timeout int) (int, error) {
		calls++
		if calls < 3 {
			return -1, unix.EINTR
		}
		return origPoll(fds, timeout)
	}
	defer func() { pollFunc = origPoll }()

	idx, err := tb.waitAny(context.Background(), []*Waiter{w}, 10*time.Millisecond)
	if err != nil {
		t.Fatalf("EINTR surfaced to caller: %v", err)
	}
	if idx != TimedOut {
		t.Fatalf("expected TimedOut, got %d", idx)
	}
	if calls < 3 {
		t.Fatalf("expected poll to be retried, got %d calls", calls)
	}
}

func TestWaitAnyPollFailure(t *testing.T) {
	tb := newTable(TableSize)
	w := mustRegister(t, tb, syscall.SIGWINCH)
	defer w.Unregister()

	origPoll := pollFunc
	pollFunc = func(fds []unix.PollFd, timeout int) (int, error) {
		return -1, unix.ENOMEM
	}
	defer func() { pollFunc = origPoll }()

	_, err := tb.waitAny(context.Background(), []*Waiter{w}, Forever)
	if !errors.Is(err, ErrWait) {
		t.Fatalf("expected ErrWait, got %v", err)
	}
	s := &tb.slots[w.index]
	if s.readFD != -1 || s.writeFD != -1 {
		t.Error("pipe descriptors left on slot after poll failure")
	}
}

func TestWaitAnyInvalidInput(t *testing.T) {
	tb := newTable(TableSize)
	if _, err := tb.waitAny(context.Background(), nil, 0); !errors.Is(err, ErrInvalidHandle) {
		t.Errorf("empty list: expected ErrInvalidHandle, got %v", err)
	}
	if _, err := tb.waitAny(context.Background(), []*Waiter{nil}, 0); !errors.Is(err, ErrInvalidHandle) {
		t.Errorf("nil waiter: expected ErrInvalidHandle, got %v", err)
	}

	other := newTable(TableSize)
	w := mustRegister(t, other, syscall.SIGWINCH)
	defer w.Unregister()
	if _, err := tb.waitAny(context.Background(), []*Waiter{w}, 0); !errors.Is(err, ErrInvalidHandle) {
		t.Errorf("foreign waiter: expected ErrInvalidHandle, got %v", err)
	}
}

func TestWaitAnyLockAcquisitionTimeout(t *testing.T) {
	tb := newTable(TableSize)
	w := mustRegister(t, tb, syscall.SIGWINCH)
	defer w.Unregister()

	// Hold the wait lock as an in-flight wait would.
	tb.waitSem <- struct{}{}
	defer tb.releaseWait()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := tb.waitAny(ctx, []*Waiter{w}, Forever)
	if !errors.Is(err, ErrLockAcquisition) {
		t.Fatalf("expected ErrLockAcquisition, got %v", err)
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected DeadlineExceeded, got %v", err)
	}
}

func TestWaiterWait(t *testing.T) {
	tb := newTable(TableSize)
	keepAlive(t, syscall.SIGUSR2)
	w := mustRegister(t, tb, syscall.SIGUSR2)
	defer w.Unregister()

	fired, err := w.Wait(10 * time.Millisecond)
	if err != nil || fired {
		t.Fatalf("expected timeout, got (%v, %v)", fired, err)
	}

	raise(t, syscall.SIGUSR2)
	waitCount(t, w, 1)
	if !w.Pending() {
		t.Fatal("expected pending delivery")
	}
	fired, err = w.Wait(time.Second)
	if err != nil || !fired {
		t.Fatalf("expected delivery, got (%v, %v)", fired, err)
	}
	if w.Pending() {
		t.Fatal("delivery still pending after it was reported")
	}
}

func TestUnregisterDuringWait(t *testing.T) {
	tb := newTable(TableSize)
	keepAlive(t, syscall.SIGUSR1)
	a := mustRegister(t, tb, syscall.SIGWINCH)
	b := mustRegister(t, tb, syscall.SIGUSR1)
	defer b.Unregister()

	go func() {
		time.Sleep(20 * time.Millisecond)
		a.Unregister()
		unix.Kill(unix.Getpid(), syscall.SIGUSR1)
	}()

	idx, err := tb.waitAny(context.Background(), []*Waiter{a, b}, 5*time.Second)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if idx != 1 {
		t.Fatalf("expected index 1, got %d", idx)
	}
}

func TestUnregisterEveryWaiterEndsWait(t *testing.T) {
	tb := newTable(TableSize)
	a := mustRegister(t, tb, syscall.SIGWINCH)

	go func() {
		time.Sleep(20 * time.Millisecond)
		a.Unregister()
	}()

	done := make(chan error, 1)
	go func() {
		idx, err := tb.waitAny(context.Background(), []*Waiter{a}, Forever)
		if idx != TimedOut {
			err = errors.Join(err, errors.New("wait reported a waiter"))
		}
		done <- err
	}()

	select {
	case err := <-done:
		if !errors.Is(err, ErrInvalidHandle) {
			t.Fatalf("expected ErrInvalidHandle, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("wait still blocked after its only waiter was unregistered")
	}
}

func TestUnregisterSharedWaiterEndsWait(t *testing.T) {
	tb := newTable(TableSize)
	a := mustRegister(t, tb, syscall.SIGWINCH)
	other := mustRegister(t, tb, syscall.SIGWINCH)
	defer other.Unregister()

	// The slot stays installed for other, so nothing closes its pipe.
	go func() {
		time.Sleep(20 * time.Millisecond)
		a.Unregister()
	}()

	_, err := tb.waitAny(context.Background(), []*Waiter{a}, 5*time.Second)
	if !errors.Is(err, ErrInvalidHandle) {
		t.Fatalf("expected ErrInvalidHandle, got %v", err)
	}
}

func TestNilWaiter(t *testing.T) {
	var w *Waiter
	if w.Count() != 0 || w.Pending() || w.Signal() != 0 {
		t.Error("nil waiter reported state")
	}
	if err := w.Unregister(); !errors.Is(err, ErrInvalidHandle) {
		t.Errorf("expected ErrInvalidHandle, got %v", err)
	}
}
