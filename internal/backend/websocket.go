package backend

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/mfulz/linegeist/interfaces"
	"github.com/mfulz/linegeist/internal/logging"
	"github.com/mfulz/linegeist/protocol"
	"github.com/tidwall/gjson"
)

func init() {
	interfaces.RegisterBackend("websocket", func() interfaces.SendBackend {
		return &websocketBackend{}
	})
}

type websocketOptions struct {
	URL              string        `mapstructure:"url"` // ws:// or wss:// endpoint
	Token            string        `mapstructure:"token"`
	HandshakeTimeout time.Duration `mapstructure:"handshake_timeout"`
	WriteTimeout     time.Duration `mapstructure:"write_timeout"`
}

// websocketBackend sends one JSON request frame per message and expects a
// JSON ack frame with a "status" field.
type websocketBackend struct {
	mu   sync.Mutex
	opts *websocketOptions
	conn *websocket.Conn
}

func (w *websocketBackend) Name() string { return "websocket" }

func (w *websocketBackend) Configure(options map[string]any) error {
	opts := websocketOptions{HandshakeTimeout: 5 * time.Second, WriteTimeout: 10 * time.Second}
	if err := decodeOptions(options, &opts); err != nil {
		return err
	}
	if opts.URL == "" {
		return fmt.Errorf("websocket backend: url is required")
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	w.opts = &opts
	return nil
}

func (w *websocketBackend) connect(ctx context.Context) error {
	if w.conn != nil {
		return nil
	}
	dialer := websocket.Dialer{HandshakeTimeout: w.opts.HandshakeTimeout}
	header := http.Header{}
	if w.opts.Token != "" {
		header.Set("Authorization", "Bearer "+w.opts.Token)
	}
	conn, _, err := dialer.DialContext(ctx, w.opts.URL, header)
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %w", w.opts.URL, err)
	}
	logging.Log.Debugf("[backend] websocket connected to %s", w.opts.URL)
	w.conn = conn
	return nil
}

func (w *websocketBackend) drop() {
	if w.conn != nil {
		_ = w.conn.Close()
	}
	w.conn = nil
}

func (w *websocketBackend) Send(ctx context.Context, msg *protocol.Message) (*protocol.Receipt, error) {
	if msg.Empty() {
		return skipped(w.Name(), msg), nil
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.opts == nil {
		return nil, ErrNotConfigured
	}
	if err := w.connect(ctx); err != nil {
		return nil, err
	}

	deadline := time.Now().Add(w.opts.WriteTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	_ = w.conn.SetWriteDeadline(deadline)
	_ = w.conn.SetReadDeadline(deadline)

	if err := w.conn.WriteJSON(protocol.Request{Type: protocol.TypeMessageSend, Data: msg}); err != nil {
		w.drop()
		return nil, fmt.Errorf("failed to send request: %w", err)
	}

	_, ack, err := w.conn.ReadMessage()
	if err != nil {
		w.drop()
		return nil, fmt.Errorf("failed to read ack: %w", err)
	}
	if status := gjson.GetBytes(ack, "status").String(); status != protocol.StatusOK {
		return nil, fmt.Errorf("%w: %s", ErrRejected, gjson.GetBytes(ack, "error").String())
	}

	return &protocol.Receipt{
		MessageID: msg.ID,
		Backend:   w.Name(),
		Delivered: true,
		Detail:    gjson.GetBytes(ack, "data.id").String(),
	}, nil
}

func (w *websocketBackend) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.conn != nil {
		_ = w.conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	}
	w.drop()
	return nil
}
