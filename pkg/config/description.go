package config

import (
	"fmt"
	"strings"
	"syscall"
	"time"

	"github.com/sunlightlinux/sigmux/pkg/signals"
)

const (
	defaultStopTimeout  = 10 * time.Second
	defaultPollInterval = 250 * time.Millisecond
)

// TrapAction is what the supervisor does when a trapped signal arrives.
type TrapAction uint8

const (
	// TrapForward re-sends the signal (or a replacement) to the child.
	TrapForward TrapAction = iota
	// TrapTerminate stops the child with its term signal, escalating to
	// SIGKILL after the stop timeout.
	TrapTerminate
	// TrapIgnore swallows the signal.
	TrapIgnore
	// TrapLog only records the delivery.
	TrapLog
)

func (a TrapAction) String() string {
	switch a {
	case TrapForward:
		return "forward"
	case TrapTerminate:
		return "terminate"
	case TrapIgnore:
		return "ignore"
	case TrapLog:
		return "log"
	default:
		return fmt.Sprintf("TrapAction(%d)", a)
	}
}

// ParseTrapAction parses an action name.
func ParseTrapAction(s string) (TrapAction, error) {
	switch strings.ToLower(s) {
	case "forward":
		return TrapForward, nil
	case "terminate", "stop":
		return TrapTerminate, nil
	case "ignore":
		return TrapIgnore, nil
	case "log":
		return TrapLog, nil
	default:
		return 0, fmt.Errorf("unknown trap action: %s (expected forward/terminate/ignore/log)", s)
	}
}

// Trap binds a signal to an action.
type Trap struct {
	Signal syscall.Signal
	Action TrapAction

	// ForwardAs replaces the signal sent to the child by TrapForward.
	// Zero forwards the signal unchanged.
	ForwardAs syscall.Signal
}

func (t Trap) String() string {
	s := signals.Name(t.Signal) + " " + t.Action.String()
	if t.Action == TrapForward && t.ForwardAs != 0 {
		s += " " + signals.Name(t.ForwardAs)
	}
	return s
}

// ParseTrap parses "SIG action [SIG]" as written after "trap:".
func ParseTrap(value string) (Trap, error) {
	fields := strings.Fields(value)
	if len(fields) < 2 || len(fields) > 3 {
		return Trap{}, fmt.Errorf("expected 'SIGNAL action [SIGNAL]', got %q", value)
	}
	return buildTrap(fields[0], fields[1], fields[2:]...)
}

// ParseTrapSpec parses the command-line form "SIG=action[:SIG]".
func ParseTrapSpec(spec string) (Trap, error) {
	sig, rest, ok := strings.Cut(spec, "=")
	if !ok {
		return Trap{}, fmt.Errorf("expected SIGNAL=action[:SIGNAL], got %q", spec)
	}
	action, as, hasAs := strings.Cut(rest, ":")
	if hasAs {
		return buildTrap(sig, action, as)
	}
	return buildTrap(sig, action)
}

func buildTrap(sigName, actionName string, as ...string) (Trap, error) {
	sig, err := signals.ParseSignal(sigName)
	if err != nil {
		return Trap{}, err
	}
	if !signals.Catchable(sig) {
		return Trap{}, fmt.Errorf("%s cannot be trapped", signals.Name(sig))
	}
	if sig == syscall.SIGCHLD {
		return Trap{}, fmt.Errorf("SIGCHLD is reserved for child supervision")
	}
	action, err := ParseTrapAction(actionName)
	if err != nil {
		return Trap{}, err
	}
	trap := Trap{Signal: sig, Action: action}
	if len(as) > 0 {
		if action != TrapForward {
			return Trap{}, fmt.Errorf("only 'forward' takes a replacement signal")
		}
		trap.ForwardAs, err = signals.ParseSignal(as[0])
		if err != nil {
			return Trap{}, err
		}
	}
	return trap, nil
}

// DefaultTraps forwards the usual job-control and termination signals.
func DefaultTraps() []Trap {
	var traps []Trap
	for _, sig := range []syscall.Signal{
		syscall.SIGHUP, syscall.SIGINT, syscall.SIGQUIT,
		syscall.SIGTERM, syscall.SIGUSR1, syscall.SIGUSR2,
	} {
		traps = append(traps, Trap{Signal: sig, Action: TrapForward})
	}
	return traps
}

// Options are the flags of the "options" setting.
type Options struct {
	SignalProcessOnly bool
	OnConsole         bool
	ForegroundGroup   bool
}

// Description holds the parsed configuration of a supervised child.
type Description struct {
	Name        string
	Description string

	Command    []string
	WorkingDir string
	Env        []string
	PIDFile    string
	// RunAs is "user[:group]", by name or number. Empty keeps sigmux's own
	// credentials.
	RunAs   string
	Options Options

	StopTimeout time.Duration
	TermSignal  syscall.Signal

	Traps        []Trap
	PollInterval time.Duration

	// LogLevel is empty unless the file sets one.
	LogLevel     string
	LogFile      string
	LogMaxSizeMB int
}

// NewDescription creates a Description with default values.
func NewDescription(name string) *Description {
	return &Description{
		Name:         name,
		TermSignal:   syscall.SIGTERM,
		StopTimeout:  defaultStopTimeout,
		PollInterval: defaultPollInterval,
		Options:      Options{OnConsole: true},
	}
}

// SetTrap adds trap, replacing an earlier trap for the same signal.
func (d *Description) SetTrap(trap Trap) {
	for i := range d.Traps {
		if d.Traps[i].Signal == trap.Signal {
			d.Traps[i] = trap
			return
		}
	}
	d.Traps = append(d.Traps, trap)
}

// EffectiveTraps returns the configured traps, or DefaultTraps when none
// were configured.
func (d *Description) EffectiveTraps() []Trap {
	if len(d.Traps) == 0 {
		return DefaultTraps()
	}
	return d.Traps
}

// Validate checks that the description can be supervised.
func (d *Description) Validate() error {
	if len(d.Command) == 0 {
		return &ParseError{ServiceName: d.Name, Message: "no command specified"}
	}
	if !signals.Catchable(d.TermSignal) && d.TermSignal != syscall.SIGKILL {
		return &ParseError{ServiceName: d.Name, Message: fmt.Sprintf("invalid term signal %d", d.TermSignal)}
	}
	if d.PollInterval <= 0 {
		return &ParseError{ServiceName: d.Name, Message: "poll interval must be positive"}
	}
	return nil
}
