package config

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/sunlightlinux/sigmux/internal/util"
	"github.com/sunlightlinux/sigmux/pkg/signals"
)

// ParseError represents an error in a supervisor description.
type ParseError struct {
	ServiceName string
	FileName    string
	Line        int
	Setting     string
	Message     string
}

func (e *ParseError) Error() string {
	if e.Line > 0 {
		if e.Setting != "" {
			return fmt.Sprintf("%s:%d: setting '%s': %s (service: %s)", e.FileName, e.Line, e.Setting, e.Message, e.ServiceName)
		}
		return fmt.Sprintf("%s:%d: %s (service: %s)", e.FileName, e.Line, e.Message, e.ServiceName)
	}
	if e.FileName != "" {
		return fmt.Sprintf("%s: %s (service: %s)", e.FileName, e.Message, e.ServiceName)
	}
	return fmt.Sprintf("service '%s': %s", e.ServiceName, e.Message)
}

// Parse reads a dinit-style supervisor description.
//
// Format:
//   - Lines starting with '#' are comments
//   - Empty lines are ignored
//   - Settings use "key = value", "key += value" or "key: value"
//   - "trap" is the only ':' setting and may be repeated
func Parse(r io.Reader, name string, fileName string) (*Description, error) {
	desc := NewDescription(name)
	scanner := bufio.NewScanner(r)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		trimmed := strings.TrimSpace(scanner.Text())
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}

		setting, value, op, err := parseLine(trimmed)
		if err != nil {
			return nil, &ParseError{
				ServiceName: name,
				FileName:    fileName,
				Line:        lineNum,
				Message:     err.Error(),
			}
		}

		if !IsKnownSetting(setting) {
			return nil, &ParseError{
				ServiceName: name,
				FileName:    fileName,
				Line:        lineNum,
				Setting:     setting,
				Message:     "unknown setting",
			}
		}

		if !ValidOperator(setting, op) {
			expectedOp := "="
			if KnownSettings[setting]&OpColon != 0 {
				expectedOp = ":"
			}
			return nil, &ParseError{
				ServiceName: name,
				FileName:    fileName,
				Line:        lineNum,
				Setting:     setting,
				Message:     fmt.Sprintf("invalid operator, expected '%s'", expectedOp),
			}
		}

		if err := applySetting(desc, setting, value, op); err != nil {
			return nil, &ParseError{
				ServiceName: name,
				FileName:    fileName,
				Line:        lineNum,
				Setting:     setting,
				Message:     err.Error(),
			}
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading description for %s: %w", name, err)
	}

	return desc, nil
}

// parseLine splits a config line into setting, value, and operator.
// Whichever operator appears first wins, so values may contain '=' or ':'.
func parseLine(line string) (setting string, value string, op OperatorType, err error) {
	eqIdx := strings.IndexByte(line, '=')
	colonIdx := strings.IndexByte(line, ':')

	if colonIdx >= 0 && (eqIdx < 0 || colonIdx < eqIdx) {
		setting = strings.TrimSpace(line[:colonIdx])
		value = strings.TrimSpace(line[colonIdx+1:])
		op = OpColon
		return
	}

	if eqIdx > 0 && line[eqIdx-1] == '+' {
		setting = strings.TrimSpace(line[:eqIdx-1])
		value = strings.TrimSpace(line[eqIdx+1:])
		op = OpPlusEqual
		return
	}

	if eqIdx >= 0 {
		setting = strings.TrimSpace(line[:eqIdx])
		value = strings.TrimSpace(line[eqIdx+1:])
		op = OpEquals
		return
	}

	err = fmt.Errorf("missing operator ('=' or ':')")
	return
}

func applySetting(desc *Description, setting, value string, op OperatorType) error {
	switch setting {
	case "description":
		desc.Description = value
	case "command":
		desc.Command = splitCommand(value)
		if len(desc.Command) == 0 {
			return fmt.Errorf("empty command")
		}
	case "working-dir":
		desc.WorkingDir = value
	case "pid-file":
		desc.PIDFile = value
	case "run-as":
		if _, _, err := splitRunAs(value); err != nil {
			return err
		}
		desc.RunAs = value
	case "env":
		if !strings.Contains(value, "=") {
			return fmt.Errorf("expected NAME=VALUE, got %q", value)
		}
		if op != OpPlusEqual {
			desc.Env = nil
		}
		desc.Env = append(desc.Env, value)
	case "options":
		return applyOptions(desc, value, op == OpPlusEqual)

	case "stop-timeout":
		d, err := util.ParseDuration(value)
		if err != nil {
			return err
		}
		desc.StopTimeout = d
	case "term-signal":
		sig, err := signals.ParseSignal(value)
		if err != nil {
			return err
		}
		desc.TermSignal = sig

	case "trap":
		trap, err := ParseTrap(value)
		if err != nil {
			return err
		}
		desc.SetTrap(trap)
	case "poll-interval":
		d, err := util.ParseDuration(value)
		if err != nil {
			return err
		}
		if d == 0 {
			return fmt.Errorf("poll interval must be positive")
		}
		desc.PollInterval = d

	case "log-level":
		switch strings.ToLower(value) {
		case "debug", "info", "notice", "warn", "warning", "error":
			desc.LogLevel = strings.ToLower(value)
		default:
			return fmt.Errorf("unknown log level: %s", value)
		}
	case "logfile":
		desc.LogFile = value
	case "log-max-size":
		n, err := strconv.Atoi(value)
		if err != nil || n <= 0 {
			return fmt.Errorf("invalid size: %s (expected megabytes)", value)
		}
		desc.LogMaxSizeMB = n
	}

	return nil
}

func applyOptions(desc *Description, value string, append bool) error {
	if !append {
		desc.Options = Options{}
	}
	for _, opt := range strings.Fields(value) {
		switch opt {
		case "signal-process-only":
			desc.Options.SignalProcessOnly = true
		case "on-console":
			desc.Options.OnConsole = true
		case "foreground-group":
			desc.Options.ForegroundGroup = true
		default:
			return fmt.Errorf("unknown option: %s (expected one of %s)", opt, strings.Join(OptionNames, ", "))
		}
	}
	return nil
}

// splitCommand splits a command string into parts, respecting quotes.
func splitCommand(cmd string) []string {
	var parts []string
	var current strings.Builder
	inQuote := false
	quoteChar := byte(0)
	escaped := false
	quoted := false

	for i := 0; i < len(cmd); i++ {
		ch := cmd[i]

		if escaped {
			current.WriteByte(ch)
			escaped = false
			continue
		}

		if ch == '\\' && quoteChar != '\'' {
			escaped = true
			continue
		}

		if inQuote {
			if ch == quoteChar {
				inQuote = false
				quoteChar = 0
			} else {
				current.WriteByte(ch)
			}
			continue
		}

		if ch == '"' || ch == '\'' {
			inQuote = true
			quoted = true
			quoteChar = ch
			continue
		}

		if ch == ' ' || ch == '\t' {
			if current.Len() > 0 || quoted {
				parts = append(parts, current.String())
				current.Reset()
				quoted = false
			}
			continue
		}

		current.WriteByte(ch)
	}

	if current.Len() > 0 || quoted {
		parts = append(parts, current.String())
	}

	return parts
}
