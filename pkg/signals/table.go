// Package signals lets ordinary code wait synchronously for asynchronous
// OS signals.
//
// Interest in a signal is registered as a Waiter. Waiters for the same
// signal number share one slot of a fixed-size, process-wide table; the slot
// owns the subscription to the signal and the disposition that was in effect
// before it. Deliveries are counted per slot and, while a wait is in
// progress, announced through a per-slot self-pipe so that WaitAny can block
// on any set of waiters with a single readiness poll.
package signals

import (
	"os"
	"sync"
	"sync/atomic"
	"syscall"
)

// TableSize is the number of slots in the process-wide signal table.
const TableSize = 64

// maxSignal is the highest signal number a slot can manage.
const maxSignal = 63

// slot is one entry of the signal table.
type slot struct {
	// Read by the dispatcher without the table mutex.
	signum atomic.Int32
	count  atomic.Uint64

	// Guarded by the table mutex.
	installed bool
	sharers   int
	gen       uint32
	prev      Disposition
	ch        chan os.Signal
	done      chan struct{}

	// pipeMu orders the dispatcher's write against a wait closing the pipe.
	pipeMu  sync.Mutex
	readFD  int
	writeFD int
}

func (s *slot) reset() {
	s.signum.Store(0)
	s.installed = false
	s.sharers = 0
	s.prev = Disposition{}
	s.ch = nil
	s.done = nil
	s.gen++

	s.pipeMu.Lock()
	s.readFD, s.writeFD = -1, -1
	s.pipeMu.Unlock()
}

// notify writes one byte to the slot's pipe if a wait is in progress.
// Write errors (full pipe, closed descriptor) are ignored.
func (s *slot) notify(b byte) {
	buf := [1]byte{b}
	s.pipeMu.Lock()
	if s.writeFD >= 0 {
		writeFunc(s.writeFD, buf[:])
	}
	s.pipeMu.Unlock()
}

// table is the fixed-capacity registry of signal slots.
type table struct {
	// mu serialises registration, deregistration and pipe setup/teardown.
	mu    sync.Mutex
	slots []slot

	// waitSem admits one WaitAny at a time.
	waitSem chan struct{}
}

func newTable(size int) *table {
	t := &table{
		slots:   make([]slot, size),
		waitSem: make(chan struct{}, 1),
	}
	for i := range t.slots {
		t.slots[i].readFD, t.slots[i].writeFD = -1, -1
	}
	return t
}

var (
	defaultOnce  sync.Once
	defaultTable *table
)

func processTable() *table {
	defaultOnce.Do(func() {
		defaultTable = newTable(TableSize)
	})
	return defaultTable
}

// findOrCreate returns the index of the installed slot for sig, installing
// a free slot if there is none. Caller holds t.mu.
func (t *table) findOrCreate(sig syscall.Signal) (int, error) {
	free := -1
	for i := range t.slots {
		s := &t.slots[i]
		if s.installed {
			if s.signum.Load() == int32(sig) {
				return i, nil
			}
			continue
		}
		if free < 0 {
			free = i
		}
	}
	if free < 0 {
		return -1, &Error{Op: "register", Signal: sig, Kind: ErrTableExhausted}
	}
	if err := t.install(&t.slots[free], sig); err != nil {
		return -1, &Error{Op: "register", Signal: sig, Kind: ErrHandlerInstall, Err: err}
	}
	return free, nil
}

// release drops one sharer from s and uninstalls it when none remain.
// The slot is freed even if the previous disposition cannot be restored.
// Caller holds t.mu.
func (t *table) release(s *slot) error {
	s.sharers--
	if s.sharers > 0 {
		return nil
	}
	sig := syscall.Signal(s.signum.Load())
	err := t.uninstall(s)
	s.reset()
	if err != nil {
		return &Error{Op: "unregister", Signal: sig, Kind: ErrRestore, Err: err}
	}
	return nil
}

// dispatch records one delivery of signum. It runs on the dispatcher
// goroutine and never takes the table mutex.
func (t *table) dispatch(signum int32) {
	for i := range t.slots {
		s := &t.slots[i]
		if s.signum.Load() != signum {
			continue
		}
		s.count.Add(1)
		s.notify(byte(signum))
	}
}

// valid reports whether w still refers to a live registration. Caller holds t.mu.
func (t *table) valid(w *Waiter) bool {
	if w == nil || w.t != t || w.released {
		return false
	}
	if w.index < 0 || w.index >= len(t.slots) {
		return false
	}
	s := &t.slots[w.index]
	return s.installed && s.gen == w.gen
}
