package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/sunlightlinux/sigmux/internal/util"
	"github.com/sunlightlinux/sigmux/pkg/config"
	"github.com/sunlightlinux/sigmux/pkg/signals"
	"github.com/sunlightlinux/sigmux/pkg/supervisor"
)

var runOpts struct {
	configFile   string
	pidFile      string
	workingDir   string
	runAs        string
	stopTimeout  string
	termSignal   string
	pollInterval string
	traps        []string
	env          []string
	processOnly  bool
	foreground   bool
}

var runCmd = &cobra.Command{
	Use:   "run [flags] [--] COMMAND [ARG...]",
	Short: "Run a command and translate the signals sigmux receives",
	Long: `Run a command as a supervised child. Signals delivered to sigmux are
handled according to its traps:

  forward     send the signal (or --trap SIG=forward:OTHER) to the child
  terminate   send the term signal, then SIGKILL after the stop timeout
  log         record the delivery
  ignore      do nothing

Without traps, HUP, INT, QUIT, TERM, USR1 and USR2 are forwarded. sigmux
exits with the child's exit status, or 128+N if it was killed by signal N.

Settings may come from a description file (--config): the dinit-style
"key = value" format, or TOML when the file name ends in .toml. Flags
override the file.`,
	Example: `  sigmux run -- /usr/sbin/nginx -g 'daemon off;'
  sigmux run --trap HUP=forward:USR1 --trap INT=terminate -- ./server
  sigmux run --config /etc/sigmux/web.toml`,
	RunE: func(cmd *cobra.Command, args []string) error {
		desc, err := runDescription(cmd, args)
		if err != nil {
			return err
		}

		logLevel, logFile = logSettings(cmd, desc)
		setupLogger(logLevel, logFile, desc.LogMaxSizeMB)

		sup := supervisor.New(desc, logger)
		exit, err := sup.Run(context.Background())
		if err != nil {
			return err
		}
		if code := exit.ExitCode(); code != 0 {
			return &exitCodeError{code: code}
		}
		return nil
	},
}

func init() {
	f := runCmd.Flags()
	f.StringVarP(&runOpts.configFile, "config", "c", "", "load settings from a description file")
	f.StringVar(&runOpts.pidFile, "pid-file", "", "write the child's PID to this file")
	f.StringVarP(&runOpts.workingDir, "working-dir", "C", "", "run the child in this directory")
	f.StringVarP(&runOpts.runAs, "run-as", "u", "", "run the child as USER[:GROUP]")
	f.StringVar(&runOpts.stopTimeout, "stop-timeout", "", "time to wait after the term signal before SIGKILL (default 10s)")
	f.StringVar(&runOpts.termSignal, "term-signal", "", "signal used to stop the child (default TERM)")
	f.StringVar(&runOpts.pollInterval, "poll-interval", "", "how often to check for the child's exit (default 250ms)")
	f.StringArrayVarP(&runOpts.traps, "trap", "T", nil, "trap a signal: SIG=forward[:SIG], SIG=terminate, SIG=log or SIG=ignore")
	f.StringArrayVarP(&runOpts.env, "env", "e", nil, "add NAME=VALUE to the child's environment")
	f.BoolVar(&runOpts.processOnly, "signal-process-only", false, "signal only the child, not its process group")
	f.BoolVar(&runOpts.foreground, "foreground-group", false, "keep the child in sigmux's process group")
	f.SetInterspersed(false)
}

// logSettings returns the log level and file to use: the flags when given,
// else the description's own settings, else the flag defaults.
func logSettings(cmd *cobra.Command, desc *config.Description) (level, path string) {
	level, path = logLevel, logFile
	if !cmd.Flags().Changed("log-level") && desc.LogLevel != "" {
		level = desc.LogLevel
	}
	if !cmd.Flags().Changed("log-file") && desc.LogFile != "" {
		path = desc.LogFile
	}
	return level, path
}

// runDescription builds the description from --config and the flags.
func runDescription(cmd *cobra.Command, args []string) (*config.Description, error) {
	var desc *config.Description
	if runOpts.configFile != "" {
		var err error
		if desc, err = config.Load(runOpts.configFile); err != nil {
			return nil, err
		}
	} else {
		desc = config.NewDescription("command")
	}

	if len(args) > 0 {
		desc.Command = args
	}
	if runOpts.pidFile != "" {
		desc.PIDFile = runOpts.pidFile
	}
	if runOpts.workingDir != "" {
		desc.WorkingDir = runOpts.workingDir
	}
	if runOpts.runAs != "" {
		desc.RunAs = runOpts.runAs
	}
	desc.Env = append(desc.Env, runOpts.env...)
	if runOpts.stopTimeout != "" {
		d, err := util.ParseDuration(runOpts.stopTimeout)
		if err != nil {
			return nil, err
		}
		desc.StopTimeout = d
	}
	if runOpts.termSignal != "" {
		sig, err := signals.ParseSignal(runOpts.termSignal)
		if err != nil {
			return nil, err
		}
		desc.TermSignal = sig
	}
	if runOpts.pollInterval != "" {
		d, err := util.ParseDuration(runOpts.pollInterval)
		if err != nil {
			return nil, err
		}
		desc.PollInterval = d
	}
	for _, spec := range runOpts.traps {
		trap, err := config.ParseTrapSpec(spec)
		if err != nil {
			return nil, err
		}
		desc.SetTrap(trap)
	}
	if cmd.Flags().Changed("signal-process-only") {
		desc.Options.SignalProcessOnly = runOpts.processOnly
	}
	if cmd.Flags().Changed("foreground-group") {
		desc.Options.ForegroundGroup = runOpts.foreground
	}

	return desc, desc.Validate()
}
