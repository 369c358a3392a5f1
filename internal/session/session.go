// Package session wires configuration, send backend, history, formatter,
// command registry and line dispatcher into one chat client session.
package session

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mfulz/linegeist/dispatch"
	"github.com/mfulz/linegeist/interfaces"
	_ "github.com/mfulz/linegeist/internal/backend"
	"github.com/mfulz/linegeist/internal/commands"
	"github.com/mfulz/linegeist/internal/config"
	"github.com/mfulz/linegeist/internal/configloader"
	"github.com/mfulz/linegeist/internal/format"
	"github.com/mfulz/linegeist/internal/history"
	"github.com/mfulz/linegeist/internal/logging"
	"github.com/mfulz/linegeist/protocol"
)

// Session is a configured chat client.
type Session struct {
	Dispatcher *dispatch.LineDispatcher
	Registry   *commands.Registry
	History    *history.Store // nil when history is disabled

	backend interfaces.SendBackend
	strict  bool
}

// Option tweaks a session at construction.
type Option func(*options)

type options struct {
	out io.Writer
}

// WithOutput sets where command output is printed. Defaults to stderr so
// that it does not mix with chat output of the stdout backend.
func WithOutput(w io.Writer) Option {
	return func(o *options) { o.out = w }
}

// New builds a session from cfg.
func New(cfg *config.Config, opts ...Option) (*Session, error) {
	o := options{out: os.Stderr}
	for _, opt := range opts {
		opt(&o)
	}

	mode, order, err := cfg.Interp()
	if err != nil {
		return nil, err
	}

	backend, err := interfaces.NewBackend(cfg.Network.Backend)
	if err != nil {
		return nil, err
	}
	if err := backend.Configure(cfg.BackendOptions()); err != nil {
		return nil, fmt.Errorf("configure backend %s: %w", cfg.Network.Backend, err)
	}

	s := &Session{backend: backend, strict: cfg.Dispatcher.Strict}

	var sender dispatch.Sender = backend
	if cfg.History.Path != "" {
		store, err := history.Open(configloader.ResolveSiblingPath(cfg.Path, cfg.History.Path))
		if err != nil {
			backend.Close()
			return nil, err
		}
		s.History = store
		sender = &history.Sender{Next: backend, Store: store}
	}

	formatter := format.New(cfg.Identity.Nick)
	s.Registry = commands.NewRegistry(cfg.Identity.Nick)

	if cfg.Macros != "" {
		macros, err := commands.LoadMacros(configloader.ResolveSiblingPath(cfg.Path, cfg.Macros))
		if err != nil {
			s.Close()
			return nil, err
		}
		if err := s.Registry.AddMacros(macros); err != nil {
			s.Close()
			return nil, err
		}
		logging.Log.Debugf("[session] loaded %d macros", len(macros))
	}

	s.Dispatcher, err = dispatch.New(dispatch.Options{
		Mode:   mode,
		Order:  order,
		Sigils: cfg.Dispatcher.Sigils,
	}, formatter, sender, &printingExecutor{next: s.Registry, out: o.out})
	if err != nil {
		s.Close()
		return nil, err
	}

	s.Registry.Attach(s.Dispatcher, func(ctx context.Context, text string) (*protocol.Receipt, error) {
		msg, err := formatter.FormatAction(ctx, text)
		if err != nil {
			return nil, err
		}
		return sender.Send(ctx, msg)
	})

	logging.Log.Infof("[session] ready: backend=%s mode=%s order=%s sigils=%v",
		backend.Name(), mode, order, s.Dispatcher.Sigils())
	return s, nil
}

// HandleLine dispatches a single input line.
func (s *Session) HandleLine(ctx context.Context, line string) error {
	return s.Dispatcher.HandleInputLine(ctx, line)
}

// Run dispatches every line read from r until EOF or until ctx is done.
// Lines have no length limit. Line errors are logged and skipped; a
// malformed line stops a strict session.
func (s *Session) Run(ctx context.Context, r io.Reader) error {
	reader := bufio.NewReader(r)
	lineNo := 0
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		line, readErr := reader.ReadString('\n')
		if readErr != nil && !errors.Is(readErr, io.EOF) {
			return readErr
		}
		if readErr != nil && line == "" {
			return nil
		}
		lineNo++
		line = strings.TrimSuffix(strings.TrimSuffix(line, "\n"), "\r")

		err := s.HandleLine(ctx, line)
		switch {
		case err == nil:
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			return err
		case errors.Is(err, dispatch.ErrInvalidArgument) && s.strict:
			return fmt.Errorf("line %d: %w", lineNo, err)
		default:
			logging.Log.Errorf("[session] line %d: %v", lineNo, err)
		}

		if readErr != nil {
			return nil
		}
	}
}

// Close releases the backend and the history store.
func (s *Session) Close() error {
	var errs []error
	if s.backend != nil {
		errs = append(errs, s.backend.Close())
	}
	if s.History != nil {
		errs = append(errs, s.History.Close())
	}
	return errors.Join(errs...)
}

// printingExecutor shows command output to the local user.
type printingExecutor struct {
	next dispatch.CommandExecutor
	out  io.Writer
}

func (p *printingExecutor) Execute(ctx context.Context, command string) (*protocol.Response, error) {
	resp, err := p.next.Execute(ctx, command)
	if err != nil {
		return nil, err
	}
	switch {
	case resp == nil:
	case !resp.OK():
		fmt.Fprintf(p.out, "error: %s\n", resp.Error)
	case resp.Data != nil && resp.Data != "":
		fmt.Fprintln(p.out, resp.Data)
	}
	return resp, nil
}
