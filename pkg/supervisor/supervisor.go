// Package supervisor runs a single child process under sigmux: trapped
// signals are translated into actions on the child, and the child's exit
// ends supervision.
package supervisor

import (
	"context"
	"errors"
	"fmt"
	"syscall"
	"time"

	"github.com/sunlightlinux/sigmux/pkg/config"
	"github.com/sunlightlinux/sigmux/pkg/eventloop"
	"github.com/sunlightlinux/sigmux/pkg/logging"
	"github.com/sunlightlinux/sigmux/pkg/process"
	"github.com/sunlightlinux/sigmux/pkg/signals"
)

// reapGrace is how long a SIGCHLD waits for the exit to be collected.
const reapGrace = 50 * time.Millisecond

// State is the supervision state of the child.
type State uint8

const (
	StateStopped State = iota
	StateRunning
	StateStopping
)

func (s State) String() string {
	switch s {
	case StateStopped:
		return "stopped"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	default:
		return fmt.Sprintf("State(%d)", s)
	}
}

// Supervisor supervises one child described by a config.Description.
// A Supervisor runs once.
type Supervisor struct {
	desc   *config.Description
	logger *logging.Logger

	loop      *eventloop.EventLoop
	stopTimer *eventloop.ServiceTimer

	state  State
	pid    int
	handle process.ProcessHandle
	exit   process.ChildExit
	killed bool

	// OnStart is called with the child's PID once it is running and its
	// PID file, if any, has been written.
	OnStart func(pid int)
}

// New creates a Supervisor for desc.
func New(desc *config.Description, logger *logging.Logger) *Supervisor {
	return &Supervisor{
		desc:      desc,
		logger:    logger,
		stopTimer: eventloop.NewServiceTimer(),
	}
}

// PID returns the PID of the running child, or 0.
func (s *Supervisor) PID() int { return s.pid }

// State returns the current supervision state.
func (s *Supervisor) State() State { return s.state }

// Killed reports whether the child had to be sent SIGKILL after the stop
// timeout.
func (s *Supervisor) Killed() bool { return s.killed }

// Run starts the child and supervises it until it exits. Cancelling ctx
// stops the child the same way a terminate trap does; Run still waits for
// it to exit.
func (s *Supervisor) Run(ctx context.Context) (process.ChildExit, error) {
	if err := s.desc.Validate(); err != nil {
		return process.ChildExit{}, err
	}

	if err := s.checkStalePIDFile(); err != nil {
		return process.ChildExit{}, err
	}

	s.loop = eventloop.New(s.logger, s.desc.PollInterval)
	defer func() {
		if err := s.loop.Close(); err != nil {
			s.logger.Error("Restoring signal handling: %v", err)
		}
	}()

	// Register before the child exists so no delivery is missed.
	if err := s.loop.Handle(syscall.SIGCHLD, s.onChild); err != nil {
		return process.ChildExit{}, fmt.Errorf("watching children: %w", err)
	}
	for _, trap := range s.desc.EffectiveTraps() {
		if err := s.loop.Handle(trap.Signal, s.trapHandler(trap)); err != nil {
			return process.ChildExit{}, fmt.Errorf("trapping %s: %w", signals.Name(trap.Signal), err)
		}
		s.logger.Debug("Trap: %v", trap)
	}
	s.loop.AddTimer(s.stopTimer, s.onStopTimeout)
	s.loop.OnTick = s.checkExit

	if err := s.start(); err != nil {
		return process.ChildExit{}, err
	}

	var pidErr error
	if s.desc.PIDFile != "" {
		if pidErr = process.WritePIDFile(s.desc.PIDFile, s.pid); pidErr != nil {
			s.logger.Error("Writing PID file: %v", pidErr)
			s.stop("PID file could not be written")
		} else {
			defer s.removePIDFile(s.pid)
		}
	}
	if pidErr == nil && s.OnStart != nil {
		s.OnStart(s.pid)
	}

	err := s.loop.Run(ctx)
	if err != nil && ctx.Err() != nil && s.state != StateStopped {
		s.stop("context cancelled")
		err = s.loop.Run(context.Background())
	}
	if err != nil {
		return s.exit, err
	}
	return s.exit, pidErr
}

func (s *Supervisor) start() error {
	uid, gid, err := s.desc.Credentials()
	if err != nil {
		return &process.ExecError{Stage: process.StageSetUIDGID, Err: fmt.Errorf("run-as %s: %w", s.desc.RunAs, err)}
	}
	params := process.ExecParams{
		Command:         s.desc.Command,
		WorkingDir:      s.desc.WorkingDir,
		Env:             s.desc.Env,
		RunAsUID:        uid,
		RunAsGID:        gid,
		OnConsole:       s.desc.Options.OnConsole,
		ForegroundGroup: s.desc.Options.ForegroundGroup,
	}
	pid, exitCh, err := process.StartProcess(params)
	if err != nil {
		return err
	}

	s.pid = pid
	s.handle = process.ProcessHandle{PID: pid, ExitCh: exitCh}
	s.state = StateRunning
	s.logger.Info("Started '%s' as PID %d", s.desc.Name, pid)
	return nil
}

// checkStalePIDFile refuses to start while the PID file names a live
// process.
func (s *Supervisor) checkStalePIDFile() error {
	if s.desc.PIDFile == "" {
		return nil
	}
	pid, result, _ := process.ReadPIDFile(s.desc.PIDFile)
	if result == process.PIDResultOK {
		return &process.ExecError{
			Stage: process.StageWritePIDFile,
			Err:   fmt.Errorf("%s: already running as PID %d", s.desc.PIDFile, pid),
		}
	}
	return nil
}

func (s *Supervisor) removePIDFile(pid int) {
	if err := process.RemovePIDFile(s.desc.PIDFile, pid); err != nil {
		s.logger.Warn("Removing PID file: %v", err)
	}
}

// signalChild signals the child, or its process group unless
// signal-process-only is set. A child sharing our group is always
// signalled alone.
func (s *Supervisor) signalChild(sig syscall.Signal) error {
	if !s.handle.IsRunning() {
		return nil
	}
	processOnly := s.desc.Options.SignalProcessOnly || s.desc.Options.ForegroundGroup
	err := process.SignalProcess(s.handle.PID, sig, processOnly)
	if errors.Is(err, syscall.ESRCH) {
		return nil
	}
	return err
}

// stop sends the term signal and arms the stop timer.
func (s *Supervisor) stop(reason string) {
	if s.state != StateRunning {
		return
	}
	s.state = StateStopping

	s.logger.Info("Stopping PID %d (%s): sending %s", s.pid, reason, signals.Name(s.desc.TermSignal))
	if err := s.signalChild(s.desc.TermSignal); err != nil {
		s.logger.Error("Failed to signal PID %d: %v", s.pid, err)
	}
	if s.desc.StopTimeout > 0 {
		s.stopTimer.Arm(s.desc.StopTimeout)
	}
}

func (s *Supervisor) onStopTimeout() bool {
	if s.state != StateStopping {
		return false
	}
	s.logger.Warn("PID %d did not stop within %v, sending SIGKILL", s.pid, s.desc.StopTimeout)
	if err := s.signalChild(syscall.SIGKILL); err != nil {
		s.logger.Error("Failed to kill PID %d: %v", s.pid, err)
	}
	s.killed = true
	return false
}

func (s *Supervisor) onChild(syscall.Signal, uint64) bool {
	exit, ok := s.handle.PollWait(reapGrace)
	if !ok {
		return false
	}
	return s.childExited(exit)
}

// checkExit picks up an exit whose SIGCHLD was coalesced or raced the
// collection.
func (s *Supervisor) checkExit() bool {
	exit, ok := s.handle.Poll()
	if !ok {
		return false
	}
	return s.childExited(exit)
}

func (s *Supervisor) childExited(exit process.ChildExit) bool {
	s.exit = exit
	s.pid = 0
	s.handle.Clear()
	s.stopTimer.Stop()
	s.state = StateStopped
	s.logger.ChildExited(exit.PID, exit.String())
	return true
}
