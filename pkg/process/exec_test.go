package process

import (
	"errors"
	"os"
	"syscall"
	"testing"
	"time"
)

func waitExit(t *testing.T, ch <-chan ChildExit) ChildExit {
	t.Helper()
	select {
	case exit := <-ch:
		return exit
	case <-time.After(10 * time.Second):
		t.Fatal("child did not exit")
	}
	return ChildExit{}
}

func TestStartProcessExitCode(t *testing.T) {
	pid, ch, err := StartProcess(ExecParams{Command: []string{"/bin/sh", "-c", "exit 3"}})
	if err != nil {
		t.Fatalf("StartProcess: %v", err)
	}
	exit := waitExit(t, ch)
	if exit.PID != pid {
		t.Errorf("expected PID %d, got %d", pid, exit.PID)
	}
	if !exit.Exited() || exit.ExitedClean() {
		t.Errorf("expected unclean exit, got %s", exit)
	}
	if exit.ExitCode() != 3 {
		t.Errorf("expected exit code 3, got %d", exit.ExitCode())
	}
}

func TestStartProcessSignaled(t *testing.T) {
	pid, ch, err := StartProcess(ExecParams{Command: []string{"/bin/sleep", "30"}})
	if err != nil {
		t.Fatalf("StartProcess: %v", err)
	}
	if err := SignalProcess(pid, syscall.SIGTERM, false); err != nil {
		t.Fatalf("SignalProcess: %v", err)
	}
	exit := waitExit(t, ch)
	if !exit.Signaled() {
		t.Fatalf("expected signaled exit, got %s", exit)
	}
	if exit.ExitCode() != 128+int(syscall.SIGTERM) {
		t.Errorf("expected exit code %d, got %d", 128+int(syscall.SIGTERM), exit.ExitCode())
	}
}

func TestStartProcessErrors(t *testing.T) {
	_, _, err := StartProcess(ExecParams{})
	var execErr *ExecError
	if !errors.As(err, &execErr) || execErr.Stage != StageDoExec {
		t.Errorf("empty command: expected StageDoExec error, got %v", err)
	}

	_, _, err = StartProcess(ExecParams{Command: []string{"/bin/true"}, WorkingDir: "/nonexistent/dir"})
	if !errors.As(err, &execErr) || execErr.Stage != StageChdir {
		t.Errorf("bad working dir: expected StageChdir error, got %v", err)
	}
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("expected wrapped ErrNotExist, got %v", err)
	}
}

func TestStartProcessRunAs(t *testing.T) {
	params := ExecParams{
		Command:  []string{"/bin/sh", "-c", `test "$(id -u):$(id -g)" = 65534:65534`},
		RunAsUID: 65534,
		RunAsGID: 65534,
	}
	_, ch, err := StartProcess(params)
	if os.Geteuid() != 0 {
		var execErr *ExecError
		if !errors.As(err, &execErr) || execErr.Stage != StageSetUIDGID {
			t.Fatalf("expected StageSetUIDGID error, got %v", err)
		}
		return
	}
	if err != nil {
		t.Fatalf("StartProcess: %v", err)
	}
	if exit := waitExit(t, ch); !exit.ExitedClean() {
		t.Errorf("child did not run as 65534:65534: %s", exit)
	}
}

func TestSignalProcessTargets(t *testing.T) {
	var calls []int
	origKill := killFunc
	killFunc = func(pid int, sig syscall.Signal) error {
		calls = append(calls, pid)
		return nil
	}
	defer func() { killFunc = origKill }()

	SignalProcess(42, syscall.SIGHUP, true)
	SignalProcess(42, syscall.SIGHUP, false)
	SignalProcess(0, syscall.SIGHUP, false)

	if len(calls) != 2 || calls[0] != 42 || calls[1] != -42 {
		t.Fatalf("expected kill(42) then kill(-42), got %v", calls)
	}
}

func TestProcessHandlePoll(t *testing.T) {
	ch := make(chan ChildExit, 1)
	h := ProcessHandle{PID: 7, ExitCh: ch}

	if _, ok := h.Poll(); ok {
		t.Fatal("Poll reported an exit before one was sent")
	}
	ch <- ChildExit{PID: 7}
	exit, ok := h.Poll()
	if !ok || exit.PID != 7 {
		t.Fatalf("expected exit of PID 7, got (%v, %v)", exit, ok)
	}

	h.Clear()
	if h.IsRunning() {
		t.Error("handle still running after Clear")
	}
}

func TestProcessHandlePollWait(t *testing.T) {
	ch := make(chan ChildExit, 1)
	h := ProcessHandle{PID: 9, ExitCh: ch}

	start := time.Now()
	if _, ok := h.PollWait(20 * time.Millisecond); ok {
		t.Fatal("PollWait reported an exit before one was sent")
	}
	if elapsed := time.Since(start); elapsed < 20*time.Millisecond {
		t.Errorf("PollWait returned after %v", elapsed)
	}

	go func() {
		time.Sleep(10 * time.Millisecond)
		ch <- ChildExit{PID: 9}
	}()
	exit, ok := h.PollWait(5 * time.Second)
	if !ok || exit.PID != 9 {
		t.Fatalf("expected exit of PID 9, got (%v, %v)", exit, ok)
	}
}
