package backend

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/mfulz/linegeist/interfaces"
	"github.com/mfulz/linegeist/internal/logging"
	"github.com/mfulz/linegeist/protocol"
)

func init() {
	interfaces.RegisterBackend("stream", func() interfaces.SendBackend {
		return &streamBackend{}
	})
}

type streamOptions struct {
	Network     string        `mapstructure:"network"` // "unix" or "tcp"
	Address     string        `mapstructure:"address"` // socket path or host:port
	User        string        `mapstructure:"user"`
	Token       string        `mapstructure:"token"`
	DialTimeout time.Duration `mapstructure:"dial_timeout"`
}

// streamBackend speaks the protocol JSON-lines format over a unix or tcp
// socket and waits for one Response per message.
type streamBackend struct {
	mu     sync.Mutex
	opts   *streamOptions
	conn   net.Conn
	reader *bufio.Reader
}

func (s *streamBackend) Name() string { return "stream" }

func (s *streamBackend) Configure(options map[string]any) error {
	opts := streamOptions{Network: "unix", DialTimeout: 2 * time.Second}
	if err := decodeOptions(options, &opts); err != nil {
		return err
	}
	if opts.Network != "unix" && opts.Network != "tcp" {
		return fmt.Errorf("stream backend: unsupported network %q", opts.Network)
	}
	if opts.Address == "" {
		return fmt.Errorf("stream backend: address is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.opts = &opts
	return nil
}

// connect dials lazily; the connection is reused until an I/O error.
func (s *streamBackend) connect(ctx context.Context) error {
	if s.conn != nil {
		return nil
	}
	d := net.Dialer{Timeout: s.opts.DialTimeout}
	conn, err := d.DialContext(ctx, s.opts.Network, s.opts.Address)
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %w", s.opts.Address, err)
	}
	logging.Log.Debugf("[backend] stream connected to %s://%s", s.opts.Network, s.opts.Address)
	s.conn = conn
	s.reader = bufio.NewReader(conn)
	return nil
}

func (s *streamBackend) drop() {
	if s.conn != nil {
		_ = s.conn.Close()
	}
	s.conn = nil
	s.reader = nil
}

func (s *streamBackend) Send(ctx context.Context, msg *protocol.Message) (*protocol.Receipt, error) {
	if msg.Empty() {
		return skipped(s.Name(), msg), nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.opts == nil {
		return nil, ErrNotConfigured
	}
	if err := s.connect(ctx); err != nil {
		return nil, err
	}

	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Time{}
	}
	_ = s.conn.SetDeadline(deadline)

	req := &protocol.Request{Type: protocol.TypeMessageSend, Data: msg}
	if s.opts.User != "" {
		req.Auth = &protocol.Auth{User: s.opts.User, Token: s.opts.Token}
	}

	if err := protocol.WriteRequest(s.conn, req); err != nil {
		s.drop()
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	resp, err := protocol.ReadResponse(s.reader)
	if err != nil {
		s.drop()
		return nil, fmt.Errorf("invalid response: %w", err)
	}
	if !resp.OK() {
		return nil, fmt.Errorf("%w: %s", ErrRejected, resp.Error)
	}
	return &protocol.Receipt{MessageID: msg.ID, Backend: s.Name(), Delivered: true}, nil
}

func (s *streamBackend) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.drop()
	return nil
}
