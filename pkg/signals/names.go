package signals

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"syscall"

	"golang.org/x/sys/unix"
)

// Info describes a signal known to the platform.
type Info struct {
	Number      syscall.Signal
	Name        string
	Description string
	Catchable   bool
}

// ParseSignal parses a signal name ("SIGTERM", "TERM", "term") or number.
func ParseSignal(s string) (syscall.Signal, error) {
	upper := strings.ToUpper(strings.TrimSpace(s))
	if upper == "" {
		return 0, fmt.Errorf("empty signal name")
	}
	if sig := unix.SignalNum(upper); sig != 0 {
		return sig, nil
	}
	if sig := unix.SignalNum("SIG" + upper); sig != 0 {
		return sig, nil
	}

	n, err := strconv.Atoi(upper)
	if err != nil {
		return 0, fmt.Errorf("unknown signal: %s", s)
	}
	if n <= 0 || n > maxSignal {
		return 0, fmt.Errorf("signal number out of range: %d", n)
	}
	return syscall.Signal(n), nil
}

// Name returns the symbolic name of sig ("SIGHUP"), or "signal N" when the
// platform has no name for it.
func Name(sig syscall.Signal) string {
	if name := unix.SignalName(sig); name != "" {
		return name
	}
	return "signal " + strconv.Itoa(int(sig))
}

// Describe returns the human readable description of sig ("hangup").
func Describe(sig syscall.Signal) string {
	return sig.String()
}

// Catchable reports whether a handler may be installed for sig.
func Catchable(sig syscall.Signal) bool {
	return sig > 0 && sig <= maxSignal && sig != unix.SIGKILL && sig != unix.SIGSTOP
}

// List returns every named signal in 1..63, in numeric order.
func List() []Info {
	var infos []Info
	for n := 1; n <= maxSignal; n++ {
		sig := syscall.Signal(n)
		name := unix.SignalName(sig)
		if name == "" {
			continue
		}
		infos = append(infos, Info{
			Number:      sig,
			Name:        name,
			Description: Describe(sig),
			Catchable:   Catchable(sig),
		})
	}
	return infos
}

// Psignal writes "msg: description" for sig to w, or just the description
// when msg is empty.
func Psignal(w io.Writer, sig syscall.Signal, msg string) error {
	var err error
	if msg == "" {
		_, err = fmt.Fprintln(w, Describe(sig))
	} else {
		_, err = fmt.Fprintf(w, "%s: %s\n", msg, Describe(sig))
	}
	return err
}
