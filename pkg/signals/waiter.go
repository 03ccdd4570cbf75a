package signals

import (
	"context"
	"syscall"
	"time"

	"golang.org/x/sys/unix"
)

// Waiter is one registration of interest in a signal. Waiters for the same
// signal share a table slot but observe deliveries independently.
type Waiter struct {
	t     *table
	index int
	gen   uint32
	sig   syscall.Signal

	// Guarded by t.mu.
	base     uint64
	seen     uint64
	final    uint64
	released bool
}

// Register starts counting deliveries of sig and returns a Waiter for it.
// The first registration for a signal number takes over its handling; later
// ones share it.
func Register(sig syscall.Signal) (*Waiter, error) {
	return processTable().register(sig)
}

func (t *table) register(sig syscall.Signal) (*Waiter, error) {
	if !Catchable(sig) {
		return nil, &Error{Op: "register", Signal: sig, Kind: ErrHandlerInstall, Err: unix.EINVAL}
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	idx, err := t.findOrCreate(sig)
	if err != nil {
		return nil, err
	}
	s := &t.slots[idx]
	s.sharers++
	n := s.count.Load()
	return &Waiter{t: t, index: idx, gen: s.gen, sig: sig, base: n, seen: n}, nil
}

// Unregister ends the registration. When it was the last one for its
// signal, the disposition in effect before the first registration is
// restored. A restore failure is reported, but the registration is released
// regardless. Unregistering twice returns ErrInvalidHandle.
func (w *Waiter) Unregister() error {
	if w == nil || w.t == nil {
		return &Error{Op: "unregister", Kind: ErrInvalidHandle}
	}
	t := w.t
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.valid(w) {
		return &Error{Op: "unregister", Signal: w.sig, Kind: ErrInvalidHandle}
	}
	s := &t.slots[w.index]
	w.final = s.count.Load() - w.base
	w.released = true
	// Wake a wait in progress so it notices the release.
	s.notify(0)
	return t.release(s)
}

// Signal returns the signal the waiter was registered for.
func (w *Waiter) Signal() syscall.Signal {
	if w == nil {
		return 0
	}
	return w.sig
}

// Count returns the number of deliveries observed since registration.
func (w *Waiter) Count() uint64 {
	if w == nil || w.t == nil {
		return 0
	}
	w.t.mu.Lock()
	defer w.t.mu.Unlock()
	if !w.t.valid(w) {
		return w.final
	}
	return w.t.slots[w.index].count.Load() - w.base
}

// Pending reports whether the signal was delivered since WaitAny last
// reported this waiter.
func (w *Waiter) Pending() bool {
	if w == nil || w.t == nil {
		return false
	}
	w.t.mu.Lock()
	defer w.t.mu.Unlock()
	return w.t.valid(w) && w.t.slots[w.index].count.Load() > w.seen
}

// Wait blocks until the waiter's signal is delivered or the timeout
// elapses. It reports false on timeout.
func (w *Waiter) Wait(timeout time.Duration) (bool, error) {
	if w == nil || w.t == nil {
		return false, &Error{Op: "wait", Kind: ErrInvalidHandle}
	}
	idx, err := w.t.waitAny(context.Background(), []*Waiter{w}, timeout)
	return idx == 0, err
}
