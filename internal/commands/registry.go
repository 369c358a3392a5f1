// Package commands implements the command executor used by the line
// dispatcher. Each command is a cobra command built fresh per execution, so
// flags never leak from one invocation to the next.
package commands

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/mfulz/linegeist/interfaces/icommand"
	"github.com/mfulz/linegeist/internal/logging"
	"github.com/mfulz/linegeist/protocol"
	"github.com/spf13/cobra"
)

var (
	// ErrUnknownCommand indicates no command is registered under the name.
	ErrUnknownCommand = errors.New("commands: unknown command")

	// ErrInvalidCommand indicates a command segment without a name.
	ErrInvalidCommand = errors.New("commands: invalid command")
)

// usageError marks argument or flag problems. They are reported back to the
// user in the response and do not abort the line.
type usageError struct {
	err error
}

func (u *usageError) Error() string { return u.err.Error() }
func (u *usageError) Unwrap() error { return u.err }

// Registry resolves command segments to built-in and local commands.
type Registry struct {
	env   *icommand.Env
	local map[string]icommand.Command
}

// NewRegistry creates a registry. Attach must be called before Execute.
func NewRegistry(nick string) *Registry {
	r := &Registry{
		local: make(map[string]icommand.Command),
	}
	r.env = &icommand.Env{
		Nick:     nick,
		Commands: r.Names,
	}
	return r
}

// Attach binds the registry to the dispatcher that feeds it. sendAction may
// be nil if emotes are unsupported.
func (r *Registry) Attach(line icommand.Line, sendAction func(ctx context.Context, text string) (*protocol.Receipt, error)) {
	r.env.Line = line
	r.env.SendAction = sendAction
}

// Add registers a command local to this registry, e.g. a macro. Built-in
// names cannot be shadowed.
func (r *Registry) Add(c icommand.Command) error {
	name := c.Name()
	if _, ok := icommand.Get(name); ok {
		return fmt.Errorf("command %q shadows a built-in", name)
	}
	if _, ok := r.local[name]; ok {
		return fmt.Errorf("command %q already registered", name)
	}
	r.local[name] = c
	return nil
}

// Names lists every command this registry can execute.
func (r *Registry) Names() []string {
	names := icommand.Names()
	for name := range r.local {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (r *Registry) lookup(name string) (icommand.Command, bool) {
	if c, ok := icommand.Get(name); ok {
		return c, true
	}
	c, ok := r.local[name]
	return c, ok
}

// Execute runs a command segment such as "/echo hi". The leading sigil is
// stripped, the rest is split on whitespace.
func (r *Registry) Execute(ctx context.Context, command string) (*protocol.Response, error) {
	if r.env.Line == nil {
		return nil, fmt.Errorf("commands: registry not attached to a dispatcher")
	}

	text := strings.TrimSpace(command)
	_, size := utf8.DecodeRuneInString(text)
	args := strings.Fields(text[size:])
	if len(args) == 0 {
		return nil, fmt.Errorf("%w: %q", ErrInvalidCommand, command)
	}

	name := strings.ToLower(args[0])
	c, ok := r.lookup(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownCommand, name)
	}

	var out bytes.Buffer
	cmd := c.Build(r.env)
	cmd.SetArgs(args[1:])
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SilenceUsage = true
	cmd.SilenceErrors = true
	cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return &usageError{err: err}
	})
	if validate := cmd.Args; validate != nil {
		cmd.Args = func(cc *cobra.Command, a []string) error {
			if err := validate(cc, a); err != nil {
				return &usageError{err: err}
			}
			return nil
		}
	}

	logging.Log.Debugf("[commands] running %s %q", name, args[1:])

	if err := cmd.ExecuteContext(ctx); err != nil {
		var usage *usageError
		if errors.As(err, &usage) {
			return &protocol.Response{
				Status: protocol.StatusError,
				Error:  fmt.Sprintf("%s: %v", name, usage.err),
			}, nil
		}
		return nil, fmt.Errorf("%s: %w", name, err)
	}

	return &protocol.Response{
		Status: protocol.StatusOK,
		Data:   strings.TrimRight(out.String(), "\n"),
	}, nil
}
