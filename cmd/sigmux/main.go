// sigmux waits for Unix signals from the shell, and supervises a child
// process whose signals it traps and forwards.
package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/sunlightlinux/sigmux/pkg/logging"
)

const version = "0.1.0"

// Exit codes used besides the child's own status.
const (
	exitFailure = 1
	exitTimeout = 2
)

var (
	logLevel string
	logFile  string

	logger    *logging.Logger
	logCloser io.Closer
)

// exitCodeError carries a process exit status out of a command.
type exitCodeError struct {
	code int
	err  error
}

func (e *exitCodeError) Error() string {
	if e.err != nil {
		return e.err.Error()
	}
	return fmt.Sprintf("exit status %d", e.code)
}

func (e *exitCodeError) Unwrap() error { return e.err }

var rootCmd = &cobra.Command{
	Use:   "sigmux",
	Short: "Wait for and multiplex Unix signals",
	Long: `sigmux waits synchronously for Unix signals.

"sigmux wait" blocks a shell script until one of a set of signals arrives.
"sigmux run" starts a command and translates the signals sigmux receives
into actions on it: forward (optionally as another signal), terminate with
escalation to SIGKILL, log or ignore.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		setupLogger(logLevel, logFile, 0)
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		closeLogger()
	},
}

// setupLogger replaces the package logger. An empty path logs to stderr.
func setupLogger(level, path string, maxSizeMB int) {
	closeLogger()
	lvl := logging.ParseLevel(level)
	if path == "" {
		logger = logging.New(lvl)
		return
	}
	logger, logCloser = logging.NewFile(logging.FileOptions{Path: path, MaxSizeMB: maxSizeMB}, lvl)
}

func closeLogger() {
	if logCloser != nil {
		logCloser.Close()
		logCloser = nil
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "log level (debug, info, notice, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "write logs to a size-rotated file instead of stderr")
	rootCmd.SetVersionTemplate("sigmux version {{.Version}}\n")

	rootCmd.AddCommand(waitCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(signalsCmd)
}

func main() {
	err := rootCmd.Execute()
	closeLogger()
	if err == nil {
		return
	}

	var exitErr *exitCodeError
	if errors.As(err, &exitErr) {
		if exitErr.err != nil {
			fmt.Fprintf(os.Stderr, "sigmux: %v\n", exitErr.err)
		}
		os.Exit(exitErr.code)
	}
	fmt.Fprintf(os.Stderr, "sigmux: %v\n", err)
	os.Exit(exitFailure)
}
