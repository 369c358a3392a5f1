package dispatch

import (
	"fmt"
	"strings"
)

// InterpMode selects which segment categories a dispatcher processes.
type InterpMode int

const (
	// ModeDefault executes commands and formats messages.
	ModeDefault InterpMode = iota
	// ModeOnlyCommand executes commands and drops messages.
	ModeOnlyCommand
	// ModeOnlyFormat sends the whole line as one formatted batch.
	ModeOnlyFormat
)

var modeNames = map[InterpMode]string{
	ModeDefault:     "default",
	ModeOnlyCommand: "only_command",
	ModeOnlyFormat:  "only_format",
}

func (m InterpMode) String() string {
	if name, ok := modeNames[m]; ok {
		return name
	}
	return fmt.Sprintf("InterpMode(%d)", int(m))
}

// Valid reports whether m is one of the defined modes.
func (m InterpMode) Valid() bool {
	_, ok := modeNames[m]
	return ok
}

// ParseInterpMode maps a config name like "only_command" to its mode.
func ParseInterpMode(s string) (InterpMode, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for m, n := range modeNames {
		if n == name {
			return m, nil
		}
	}
	return ModeDefault, fmt.Errorf("%w: unknown interpretation mode %q", ErrInvalidArgument, s)
}

// InterpOrder selects the sequencing of commands and messages within a line.
type InterpOrder int

const (
	// OrderAsWritten keeps the original interleaving.
	OrderAsWritten InterpOrder = iota
	// OrderCommandsFirst runs every command before any message is sent.
	OrderCommandsFirst
	// OrderMessagesFirst sends every message before any command runs.
	OrderMessagesFirst
)

var orderNames = map[InterpOrder]string{
	OrderAsWritten:     "as_written",
	OrderCommandsFirst: "commands_first",
	OrderMessagesFirst: "messages_first",
}

func (o InterpOrder) String() string {
	if name, ok := orderNames[o]; ok {
		return name
	}
	return fmt.Sprintf("InterpOrder(%d)", int(o))
}

// Valid reports whether o is one of the defined orders.
func (o InterpOrder) Valid() bool {
	_, ok := orderNames[o]
	return ok
}

// ParseInterpOrder maps a config name like "commands_first" to its order.
func ParseInterpOrder(s string) (InterpOrder, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for o, n := range orderNames {
		if n == name {
			return o, nil
		}
	}
	return OrderAsWritten, fmt.Errorf("%w: unknown interpretation order %q", ErrInvalidArgument, s)
}
