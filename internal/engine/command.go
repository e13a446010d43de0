package engine

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrUnknownCommand is returned for a command name outside the control set.
var ErrUnknownCommand = errors.New("unknown command")

// CommandKind names a control command.
type CommandKind string

const (
	CommandPause  CommandKind = "pause"
	CommandResume CommandKind = "resume"
	CommandSpeed  CommandKind = "speed"
	CommandReset  CommandKind = "reset"
)

// Command is one control request. Multiplier is only read for speed.
type Command struct {
	Kind       CommandKind `json:"command"`
	Multiplier int         `json:"multiplier,omitempty"`
}

// ParseCommand accepts "pause", "resume", "reset" and "speed N".
func ParseCommand(s string) (Command, error) {
	fields := strings.Fields(strings.ToLower(s))
	if len(fields) == 0 {
		return Command{}, fmt.Errorf("%w: empty", ErrUnknownCommand)
	}
	switch kind := CommandKind(fields[0]); kind {
	case CommandPause, CommandResume, CommandReset:
		if len(fields) != 1 {
			return Command{}, fmt.Errorf("%s takes no arguments", kind)
		}
		return Command{Kind: kind}, nil
	case CommandSpeed:
		if len(fields) != 2 {
			return Command{}, fmt.Errorf("speed needs a multiplier")
		}
		n, err := strconv.Atoi(strings.TrimSuffix(fields[1], "x"))
		if err != nil {
			return Command{}, fmt.Errorf("speed multiplier %q: %w", fields[1], err)
		}
		return Command{Kind: CommandSpeed, Multiplier: n}, nil
	default:
		return Command{}, fmt.Errorf("%w: %q", ErrUnknownCommand, fields[0])
	}
}
