// Package process implements child process execution and monitoring for sigmux.
package process

import (
	"fmt"
	"syscall"
)

// ExecStage identifies the stage at which process setup failed.
type ExecStage uint8

const (
	StageChdir ExecStage = iota
	StageSetupStdio
	StageSetUIDGID
	StageDoExec
	StageWritePIDFile
)

func (s ExecStage) String() string {
	descriptions := []string{
		"changing directory",
		"setting up standard input/output",
		"setting user/group ID",
		"executing command",
		"writing PID file",
	}
	if int(s) < len(descriptions) {
		return descriptions[s]
	}
	return fmt.Sprintf("ExecStage(%d)", s)
}

// ExecError represents a failure during child process setup or exec.
type ExecError struct {
	Stage ExecStage
	Err   error
}

func (e *ExecError) Error() string {
	return fmt.Sprintf("failed while %s: %v", e.Stage, e.Err)
}

func (e *ExecError) Unwrap() error {
	return e.Err
}

// ExecParams holds the parameters for starting a child process.
type ExecParams struct {
	// Command is the program and arguments to execute.
	Command []string

	// WorkingDir is the working directory for the process.
	WorkingDir string

	// Env holds additional environment variables (key=value).
	Env []string

	// RunAsUID/RunAsGID specify credentials to run as (0 means no change).
	RunAsUID uint32
	RunAsGID uint32

	// OnConsole connects the child to sigmux's own stdin/stdout/stderr.
	OnConsole bool

	// ForegroundGroup keeps the child in sigmux's process group, so that
	// terminal-generated signals reach it directly.
	ForegroundGroup bool
}

// ChildExit represents the result of a child process termination.
type ChildExit struct {
	// PID of the terminated process.
	PID int

	// Status is the wait status from the OS.
	Status syscall.WaitStatus
}

// Exited returns true if the child exited normally.
func (c ChildExit) Exited() bool {
	return c.Status.Exited()
}

// ExitedClean returns true if the child exited with code 0.
func (c ChildExit) ExitedClean() bool {
	return c.Exited() && c.Status.ExitStatus() == 0
}

// Signaled returns true if the child was killed by a signal.
func (c ChildExit) Signaled() bool {
	return c.Status.Signaled()
}

// ExitCode maps the termination to a shell-style exit code: the child's own
// code, or 128+N when it was killed by signal N.
func (c ChildExit) ExitCode() int {
	if c.Status.Signaled() {
		return 128 + int(c.Status.Signal())
	}
	return c.Status.ExitStatus()
}

// String describes how the child terminated.
func (c ChildExit) String() string {
	if c.Status.Signaled() {
		return fmt.Sprintf("killed by %v", c.Status.Signal())
	}
	return fmt.Sprintf("exited with status %d", c.Status.ExitStatus())
}
