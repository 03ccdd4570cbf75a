// Package config implements the sigmux supervisor description format: the
// dinit-style "key = value" file and its TOML equivalent.
package config

// OperatorType identifies what assignment operators a setting supports.
type OperatorType uint8

const (
	OpEquals    OperatorType = 1 << iota // setting = value
	OpColon                              // setting: value
	OpPlusEqual                          // setting += value
)

// KnownSettings maps setting names to their allowed operators.
var KnownSettings = map[string]OperatorType{
	"description": OpEquals,

	// Child process
	"command":     OpEquals,
	"working-dir": OpEquals,
	"env":         OpEquals | OpPlusEqual,
	"pid-file":    OpEquals,
	"run-as":      OpEquals,
	"options":     OpEquals | OpPlusEqual,

	// Stopping
	"stop-timeout": OpEquals,
	"term-signal":  OpEquals,

	// Signal handling
	"trap":          OpColon,
	"poll-interval": OpEquals,

	// Logging
	"log-level":    OpEquals,
	"logfile":      OpEquals,
	"log-max-size": OpEquals,
}

// IsKnownSetting returns true if the setting name is recognized.
func IsKnownSetting(name string) bool {
	_, ok := KnownSettings[name]
	return ok
}

// ValidOperator checks if the given operator is valid for the setting.
func ValidOperator(setting string, op OperatorType) bool {
	allowed, ok := KnownSettings[setting]
	if !ok {
		return false
	}
	return allowed&op != 0
}

// OptionNames lists the values accepted by the "options" setting.
var OptionNames = []string{
	"signal-process-only",
	"on-console",
	"foreground-group",
}
