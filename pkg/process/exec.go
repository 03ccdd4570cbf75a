package process

import (
	"errors"
	"os"
	"os/exec"
	"syscall"

	"golang.org/x/sys/unix"
)

// killFunc is replaceable for tests.
var killFunc = unix.Kill

// StartProcess starts a child process with the given parameters.
// It returns the PID and a channel that will receive exactly one ChildExit
// when the process terminates. The caller must read from the channel.
//
// If the command cannot be started at all (e.g., binary not found),
// an error is returned and no channel/PID is produced.
func StartProcess(params ExecParams) (int, <-chan ChildExit, error) {
	if len(params.Command) == 0 {
		return 0, nil, &ExecError{Stage: StageDoExec, Err: os.ErrInvalid}
	}

	cmd := exec.Command(params.Command[0], params.Command[1:]...)

	if params.WorkingDir != "" {
		if fi, err := os.Stat(params.WorkingDir); err != nil {
			return 0, nil, &ExecError{Stage: StageChdir, Err: err}
		} else if !fi.IsDir() {
			return 0, nil, &ExecError{Stage: StageChdir, Err: unix.ENOTDIR}
		}
		cmd.Dir = params.WorkingDir
	}

	if len(params.Env) > 0 {
		cmd.Env = append(os.Environ(), params.Env...)
	}

	// Own process group unless the child should share our terminal group.
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setpgid: !params.ForegroundGroup,
	}

	switchCreds := params.RunAsUID != 0 || params.RunAsGID != 0
	if switchCreds {
		cmd.SysProcAttr.Credential = &syscall.Credential{
			Uid: params.RunAsUID,
			Gid: params.RunAsGID,
		}
	}

	if params.OnConsole {
		cmd.Stdin = os.Stdin
		cmd.Stdout = os.Stdout
		cmd.Stderr = os.Stderr
	}

	if err := cmd.Start(); err != nil {
		// The child reports setgroups/setgid/setuid failures as EPERM.
		if switchCreds && errors.Is(err, syscall.EPERM) {
			return 0, nil, &ExecError{Stage: StageSetUIDGID, Err: err}
		}
		return 0, nil, &ExecError{Stage: StageDoExec, Err: err}
	}

	pid := cmd.Process.Pid
	exitCh := make(chan ChildExit, 1)

	go func() {
		defer close(exitCh)

		err := cmd.Wait()

		var status syscall.WaitStatus
		if err != nil {
			var exitErr *exec.ExitError
			if errors.As(err, &exitErr) {
				status = exitErr.Sys().(syscall.WaitStatus)
			}
		}

		exitCh <- ChildExit{
			PID:    pid,
			Status: status,
		}
	}()

	return pid, exitCh, nil
}

// SignalProcess sends a signal to a process.
// If processOnly is false, the whole process group (negative PID) is signalled.
func SignalProcess(pid int, sig syscall.Signal, processOnly bool) error {
	if pid <= 0 {
		return nil
	}
	if processOnly {
		return killFunc(pid, sig)
	}
	return killFunc(-pid, sig)
}
