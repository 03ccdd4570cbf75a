package signals

import (
	"os"
	"os/signal"
	"syscall"
)

// Replaceable for tests.
var (
	queryFunc   = queryDisposition
	restoreFunc = restoreDisposition
	notifyFunc  = signal.Notify
	stopFunc    = signal.Stop
)

// signalBuffer is the number of deliveries the runtime can queue for a
// dispatcher before it starts dropping them.
const signalBuffer = 16

// install takes over sig for s: it captures the previous disposition,
// starts the slot's dispatcher and subscribes it to sig. Nothing in s is
// modified if the disposition cannot be read. Caller holds t.mu.
func (t *table) install(s *slot, sig syscall.Signal) error {
	prev, err := queryFunc(sig)
	if err != nil {
		return err
	}

	s.count.Store(0)
	s.signum.Store(int32(sig))
	s.prev = prev
	s.ch = make(chan os.Signal, signalBuffer)
	s.done = make(chan struct{})
	s.installed = true

	go t.dispatchLoop(s.ch, s.done)
	notifyFunc(s.ch, sig)
	return nil
}

// uninstall stops deliveries to s, waits for its dispatcher to exit and
// restores the disposition captured at install. Caller holds t.mu.
func (t *table) uninstall(s *slot) error {
	sig := syscall.Signal(s.signum.Load())
	stopFunc(s.ch)
	close(s.ch)
	<-s.done
	return restoreFunc(sig, s.prev)
}

func (t *table) dispatchLoop(ch <-chan os.Signal, done chan<- struct{}) {
	defer close(done)
	for sig := range ch {
		if n, ok := sig.(syscall.Signal); ok {
			t.dispatch(int32(n))
		}
	}
}
