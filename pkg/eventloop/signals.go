package eventloop

import (
	"errors"
	"fmt"
	"syscall"

	"github.com/sunlightlinux/sigmux/pkg/signals"
)

// Handler is called with the delivered signal and the waiter's delivery
// count. Returning true stops the loop.
type Handler func(sig syscall.Signal, count uint64) bool

type registration struct {
	sig    syscall.Signal
	waiter *signals.Waiter
	fn     Handler
}

// Handle registers fn for sig. Deliveries are counted from this call on,
// even before Run starts.
func (el *EventLoop) Handle(sig syscall.Signal, fn Handler) error {
	for _, r := range el.handlers {
		if r.sig == sig {
			return fmt.Errorf("%s already handled", signals.Name(sig))
		}
	}
	w, err := signals.Register(sig)
	if err != nil {
		return err
	}
	el.handlers = append(el.handlers, registration{sig: sig, waiter: w, fn: fn})
	el.waiters = append(el.waiters, w)
	el.logger.Debug("Handling %s", signals.Name(sig))
	return nil
}

// Signals returns the handled signals in registration order.
func (el *EventLoop) Signals() []syscall.Signal {
	sigs := make([]syscall.Signal, len(el.handlers))
	for i, r := range el.handlers {
		sigs[i] = r.sig
	}
	return sigs
}

// Close unregisters every handled signal, restoring the dispositions they
// had before Handle. All registrations are released even if some fail.
func (el *EventLoop) Close() error {
	var errs []error
	for _, r := range el.handlers {
		if err := r.waiter.Unregister(); err != nil {
			el.logger.Warn("Releasing %s: %v", signals.Name(r.sig), err)
			errs = append(errs, err)
		}
	}
	el.handlers = nil
	el.waiters = nil
	return errors.Join(errs...)
}
