package supervisor

import (
	"syscall"

	"github.com/sunlightlinux/sigmux/pkg/config"
	"github.com/sunlightlinux/sigmux/pkg/eventloop"
	"github.com/sunlightlinux/sigmux/pkg/signals"
)

func (s *Supervisor) trapHandler(trap config.Trap) eventloop.Handler {
	return func(sig syscall.Signal, count uint64) bool {
		name := signals.Name(sig)
		switch trap.Action {
		case config.TrapLog:
			s.logger.SignalReceived(name, count)

		case config.TrapIgnore:
			s.logger.Debug("Ignoring %s (delivery #%d)", name, count)

		case config.TrapForward:
			target := sig
			if trap.ForwardAs != 0 {
				target = trap.ForwardAs
			}
			if s.state == StateStopped {
				return false
			}
			s.logger.Info("Forwarding %s to PID %d as %s", name, s.pid, signals.Name(target))
			if err := s.signalChild(target); err != nil {
				s.logger.Error("Failed to forward %s to PID %d: %v", name, s.pid, err)
			}

		case config.TrapTerminate:
			s.logger.SignalReceived(name, count)
			s.stop(name + " received")
		}
		return false
	}
}
