package process

import "time"

// ProcessHandle holds the state needed to track a running process.
type ProcessHandle struct {
	PID    int
	ExitCh <-chan ChildExit
}

// IsRunning returns true if the process handle has a valid PID.
func (h *ProcessHandle) IsRunning() bool {
	return h.PID > 0
}

// Clear resets the process handle.
func (h *ProcessHandle) Clear() {
	h.PID = 0
	h.ExitCh = nil
}

// Poll returns the child's exit if it has been collected, without blocking.
func (h *ProcessHandle) Poll() (ChildExit, bool) {
	if h.ExitCh == nil {
		return ChildExit{}, false
	}
	select {
	case exit, ok := <-h.ExitCh:
		if !ok {
			return ChildExit{}, false
		}
		return exit, true
	default:
		return ChildExit{}, false
	}
}

// PollWait is Poll, waiting up to d for the exit to be collected.
func (h *ProcessHandle) PollWait(d time.Duration) (ChildExit, bool) {
	if h.ExitCh == nil {
		return ChildExit{}, false
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case exit, ok := <-h.ExitCh:
		return exit, ok
	case <-timer.C:
		return ChildExit{}, false
	}
}
