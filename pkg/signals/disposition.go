package signals

import (
	"fmt"
	"os/signal"
	"syscall"
)

// DispositionKind classifies how the kernel would handle a signal.
type DispositionKind uint8

const (
	DispositionDefault DispositionKind = iota
	DispositionIgnore
	DispositionHandler
)

func (k DispositionKind) String() string {
	switch k {
	case DispositionDefault:
		return "default"
	case DispositionIgnore:
		return "ignore"
	case DispositionHandler:
		return "handler"
	default:
		return fmt.Sprintf("DispositionKind(%d)", k)
	}
}

// Disposition records the handling a signal had before a slot took it over.
// It is treated as opaque: it is only ever restored, never invoked.
type Disposition struct {
	Kind DispositionKind

	// Handler is the raw handler address reported by the kernel, when known.
	Handler uintptr

	// Ignored is set when signal.Ignore was in effect for the signal.
	Ignored bool
}

func (d Disposition) String() string {
	if d.Ignored {
		return "ignored"
	}
	if d.Kind == DispositionHandler && d.Handler != 0 {
		return fmt.Sprintf("handler %#x", d.Handler)
	}
	return d.Kind.String()
}

// restoreDisposition puts prev back after the last subscription for sig has
// been stopped. Default and foreign handlers are reinstated by the Go
// runtime itself once nothing is subscribed; only an explicit ignore has to
// be reapplied.
func restoreDisposition(sig syscall.Signal, prev Disposition) error {
	if !prev.Ignored {
		return nil
	}
	signal.Ignore(sig)
	return verifyIgnored(sig)
}
