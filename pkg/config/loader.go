package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/sunlightlinux/sigmux/internal/util"
	"github.com/sunlightlinux/sigmux/pkg/signals"
)

// Load reads a supervisor description from path. Files ending in ".toml"
// are decoded as TOML, anything else as the dinit-style format. Relative
// working-dir, pid-file and logfile paths are resolved against the
// directory holding the file.
func Load(path string) (*Description, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("loading description: %w", err)
	}

	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	var desc *Description
	if filepath.Ext(path) == ".toml" {
		desc, err = ParseTOML(data, name, path)
	} else {
		desc, err = Parse(bytes.NewReader(data), name, path)
	}
	if err != nil {
		return nil, err
	}

	base := util.ParentPath(path)
	if desc.WorkingDir != "" {
		desc.WorkingDir = util.CombinePaths(base, desc.WorkingDir)
	}
	if desc.PIDFile != "" {
		desc.PIDFile = util.CombinePaths(base, desc.PIDFile)
	}
	if desc.LogFile != "" {
		desc.LogFile = util.CombinePaths(base, desc.LogFile)
	}
	return desc, nil
}

type tomlTrap struct {
	Signal string `toml:"signal"`
	Action string `toml:"action"`
	As     string `toml:"as"`
}

type tomlLog struct {
	Level     string `toml:"level"`
	File      string `toml:"file"`
	MaxSizeMB int    `toml:"max_size_mb"`
}

type tomlDescription struct {
	Description  string     `toml:"description"`
	Command      []string   `toml:"command"`
	WorkingDir   string     `toml:"working_dir"`
	Env          []string   `toml:"env"`
	PIDFile      string     `toml:"pid_file"`
	RunAs        string     `toml:"run_as"`
	Options      []string   `toml:"options"`
	StopTimeout  string     `toml:"stop_timeout"`
	TermSignal   string     `toml:"term_signal"`
	PollInterval string     `toml:"poll_interval"`
	Log          tomlLog    `toml:"log"`
	Traps        []tomlTrap `toml:"trap"`
}

// ParseTOML decodes the TOML form of a supervisor description:
//
//	command = ["/usr/bin/daemon", "--foreground"]
//	stop_timeout = "5s"
//	term_signal = "INT"
//
//	[log]
//	level = "debug"
//
//	[[trap]]
//	signal = "HUP"
//	action = "forward"
//	as = "USR1"
//
// Unknown keys are rejected.
func ParseTOML(data []byte, name string, fileName string) (*Description, error) {
	var raw tomlDescription
	md, err := toml.Decode(string(data), &raw)
	if err != nil {
		return nil, &ParseError{ServiceName: name, FileName: fileName, Message: err.Error()}
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return nil, &ParseError{
			ServiceName: name,
			FileName:    fileName,
			Setting:     undecoded[0].String(),
			Message:     fmt.Sprintf("unknown setting '%s'", undecoded[0]),
		}
	}

	desc := NewDescription(name)
	fail := func(setting string, err error) (*Description, error) {
		return nil, &ParseError{
			ServiceName: name,
			FileName:    fileName,
			Message:     fmt.Sprintf("%s: %v", setting, err),
		}
	}

	desc.Description = raw.Description
	desc.Command = raw.Command
	desc.WorkingDir = raw.WorkingDir
	desc.PIDFile = raw.PIDFile
	if raw.RunAs != "" {
		if err := applySetting(desc, "run-as", raw.RunAs, OpEquals); err != nil {
			return fail("run_as", err)
		}
	}
	for _, kv := range raw.Env {
		if err := applySetting(desc, "env", kv, OpPlusEqual); err != nil {
			return fail("env", err)
		}
	}
	if raw.Options != nil {
		if err := applyOptions(desc, strings.Join(raw.Options, " "), false); err != nil {
			return fail("options", err)
		}
	}

	if raw.StopTimeout != "" {
		if err := applySetting(desc, "stop-timeout", raw.StopTimeout, OpEquals); err != nil {
			return fail("stop_timeout", err)
		}
	}
	if raw.TermSignal != "" {
		sig, err := signals.ParseSignal(raw.TermSignal)
		if err != nil {
			return fail("term_signal", err)
		}
		desc.TermSignal = sig
	}
	if raw.PollInterval != "" {
		if err := applySetting(desc, "poll-interval", raw.PollInterval, OpEquals); err != nil {
			return fail("poll_interval", err)
		}
	}

	if raw.Log.Level != "" {
		if err := applySetting(desc, "log-level", raw.Log.Level, OpEquals); err != nil {
			return fail("log.level", err)
		}
	}
	desc.LogFile = raw.Log.File
	if raw.Log.MaxSizeMB < 0 {
		return fail("log.max_size_mb", fmt.Errorf("must be positive"))
	}
	desc.LogMaxSizeMB = raw.Log.MaxSizeMB

	for i, t := range raw.Traps {
		var trap Trap
		if t.As != "" {
			trap, err = buildTrap(t.Signal, t.Action, t.As)
		} else {
			trap, err = buildTrap(t.Signal, t.Action)
		}
		if err != nil {
			return fail(fmt.Sprintf("trap[%d]", i), err)
		}
		desc.SetTrap(trap)
	}

	return desc, nil
}
