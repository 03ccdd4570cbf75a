package main

import (
	"errors"
	"fmt"
	"os"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/sunlightlinux/sigmux/internal/util"
	"github.com/sunlightlinux/sigmux/pkg/signals"
)

var (
	waitTimeout string
	waitNumeric bool
)

var waitCmd = &cobra.Command{
	Use:   "wait SIGNAL...",
	Short: "Block until one of the given signals arrives",
	Long: `Block until one of the given signals is delivered to sigmux, then print
its name and exit 0. With --timeout, exit 2 if none arrived in time.

Signals may be given as names (SIGHUP, HUP, hup) or numbers.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		sigs := make([]syscall.Signal, 0, len(args))
		for _, arg := range args {
			sig, err := signals.ParseSignal(arg)
			if err != nil {
				return err
			}
			sigs = append(sigs, sig)
		}

		timeout := signals.Forever
		if waitTimeout != "" {
			d, err := util.ParseDuration(waitTimeout)
			if err != nil {
				return fmt.Errorf("--timeout: %w", err)
			}
			timeout = d
		}

		sig, err := waitForAny(sigs, timeout)
		if err != nil {
			return err
		}
		if sig == 0 {
			logger.Info("No signal within %v", timeout)
			return &exitCodeError{code: exitTimeout}
		}
		if waitNumeric {
			fmt.Fprintln(cmd.OutOrStdout(), int(sig))
		} else {
			fmt.Fprintln(cmd.OutOrStdout(), signals.Name(sig))
		}
		return nil
	},
}

func init() {
	waitCmd.Flags().StringVarP(&waitTimeout, "timeout", "t", "", "give up after this long (seconds or Go duration)")
	waitCmd.Flags().BoolVarP(&waitNumeric, "numeric", "n", false, "print the signal number instead of its name")
}

// waitForAny registers sigs, waits for the first delivery and releases the
// registrations again. It returns 0 on timeout.
func waitForAny(sigs []syscall.Signal, timeout time.Duration) (sig syscall.Signal, err error) {
	waiters := make([]*signals.Waiter, 0, len(sigs))
	defer func() {
		for _, w := range waiters {
			if uerr := w.Unregister(); uerr != nil {
				logger.Warn("Releasing %s: %v", signals.Name(w.Signal()), uerr)
				err = errors.Join(err, uerr)
			}
		}
	}()

	for _, s := range sigs {
		w, err := signals.Register(s)
		if err != nil {
			return 0, err
		}
		waiters = append(waiters, w)
	}
	logger.Debug("Waiting for %d signal(s) in PID %d", len(waiters), os.Getpid())

	idx, err := signals.WaitAny(waiters, timeout)
	if err != nil || idx == signals.TimedOut {
		return 0, err
	}
	return waiters[idx].Signal(), nil
}
