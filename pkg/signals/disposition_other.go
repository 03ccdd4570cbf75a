//go:build !linux || !(amd64 || arm64)

package signals

import (
	"os/signal"
	"syscall"
)

// queryDisposition reports what the Go runtime knows about sig. The kernel
// handler address is not available on this platform.
func queryDisposition(sig syscall.Signal) (Disposition, error) {
	if signal.Ignored(sig) {
		return Disposition{Kind: DispositionIgnore, Ignored: true}, nil
	}
	return Disposition{Kind: DispositionDefault}, nil
}

func verifyIgnored(sig syscall.Signal) error {
	return nil
}
