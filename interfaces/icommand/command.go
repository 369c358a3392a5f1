// Package icommand defines extensible interfaces for chat command implementations.
// Each command (e.g. echo, me, sigil) implements Command and builds a cobra
// command that parses its arguments.
package icommand

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/mfulz/linegeist/protocol"
	"github.com/spf13/cobra"
)

// Line is the part of the line dispatcher that commands may use.
type Line interface {
	FormatAndSend(ctx context.Context, segments ...string) (*protocol.Message, *protocol.Receipt, error)
	RegisterSigil(sigil string) (bool, error)
	Sigils() []string
}

// Env is what a command sees while it runs.
type Env struct {
	Nick string
	Line Line

	// SendAction sends an emote message.
	SendAction func(ctx context.Context, text string) (*protocol.Receipt, error)

	// Commands lists the names known to the executing registry.
	Commands func() []string
}

// Command represents a pluggable chat command.
type Command interface {
	Name() string
	Build(env *Env) *cobra.Command
}

var (
	registryMu      sync.RWMutex
	commandRegistry = map[string]Command{}
)

// Register adds a built-in command to the global registry.
func Register(c Command) {
	registryMu.Lock()
	defer registryMu.Unlock()
	if _, exists := commandRegistry[c.Name()]; exists {
		panic(fmt.Sprintf("command already registered: %s", c.Name()))
	}
	commandRegistry[c.Name()] = c
}

// Get looks up a built-in command by name.
func Get(name string) (Command, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	c, ok := commandRegistry[name]
	return c, ok
}

// Names lists the built-in commands in sorted order.
func Names() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(commandRegistry))
	for name := range commandRegistry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
