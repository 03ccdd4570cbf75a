//go:build linux && (amd64 || arm64)

package signals

import (
	"fmt"
	"os/signal"
	"syscall"
	"unsafe"

	"golang.org/x/sys/unix"
)

// sigaction mirrors the kernel's struct sigaction on amd64 and arm64.
type sigaction struct {
	handler  uintptr
	flags    uint64
	restorer uintptr
	mask     uint64
}

const (
	sigDFL = 0
	sigIGN = 1

	sigsetSize = 8
)

func kernelHandler(sig syscall.Signal) (uintptr, error) {
	var sa sigaction
	if _, _, e := unix.RawSyscall6(unix.SYS_RT_SIGACTION, uintptr(sig), 0, uintptr(unsafe.Pointer(&sa)), sigsetSize, 0, 0); e != 0 {
		return 0, e
	}
	return sa.handler, nil
}

// queryDisposition reads the current disposition of sig without changing it.
func queryDisposition(sig syscall.Signal) (Disposition, error) {
	h, err := kernelHandler(sig)
	if err != nil {
		return Disposition{}, err
	}

	d := Disposition{Handler: h, Ignored: signal.Ignored(sig)}
	switch h {
	case sigDFL:
		d.Kind = DispositionDefault
	case sigIGN:
		d.Kind = DispositionIgnore
	default:
		d.Kind = DispositionHandler
	}
	return d, nil
}

func verifyIgnored(sig syscall.Signal) error {
	h, err := kernelHandler(sig)
	if err != nil {
		return err
	}
	if h != sigIGN {
		return fmt.Errorf("kernel handler is %#x, want SIG_IGN", h)
	}
	return nil
}
