package backend

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/fatih/color"
	"github.com/mfulz/linegeist/interfaces"
	"github.com/mfulz/linegeist/internal/format"
	"github.com/mfulz/linegeist/protocol"
)

func init() {
	interfaces.RegisterBackend("stdout", func() interfaces.SendBackend {
		return &stdoutBackend{out: os.Stdout}
	})
}

type stdoutOptions struct {
	Color  bool   `mapstructure:"color"`
	Stream string `mapstructure:"stream"` // "stdout" or "stderr"
}

// stdoutBackend prints messages like a terminal chat client. It is the
// default backend and the one used for dry runs.
type stdoutBackend struct {
	mu   sync.Mutex
	out  io.Writer
	nick *color.Color
}

func (s *stdoutBackend) Name() string { return "stdout" }

func (s *stdoutBackend) Configure(options map[string]any) error {
	opts := stdoutOptions{Color: true, Stream: "stdout"}
	if err := decodeOptions(options, &opts); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	switch opts.Stream {
	case "stdout":
		if s.out == nil {
			s.out = os.Stdout
		}
	case "stderr":
		s.out = os.Stderr
	default:
		return fmt.Errorf("stdout backend: unknown stream %q", opts.Stream)
	}

	s.nick = color.New(color.FgCyan, color.Bold)
	if opts.Color {
		s.nick.EnableColor()
	} else {
		s.nick.DisableColor()
	}
	return nil
}

func (s *stdoutBackend) Send(ctx context.Context, msg *protocol.Message) (*protocol.Receipt, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if msg.Empty() {
		return skipped(s.Name(), msg), nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.nick == nil {
		return nil, ErrNotConfigured
	}

	shown := *msg
	if shown.Nick != "" {
		shown.Nick = s.nick.Sprint(shown.Nick)
	}
	if _, err := fmt.Fprintln(s.out, format.RenderPlain(&shown)); err != nil {
		return nil, fmt.Errorf("stdout backend: %w", err)
	}
	return &protocol.Receipt{MessageID: msg.ID, Backend: s.Name(), Delivered: true}, nil
}

func (s *stdoutBackend) Close() error { return nil }
