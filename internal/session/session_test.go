package session

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"sync"
	"testing"

	"github.com/mfulz/linegeist/dispatch"
	"github.com/mfulz/linegeist/interfaces"
	"github.com/mfulz/linegeist/internal/config"
	"github.com/mfulz/linegeist/protocol"
)

// captureBackend keeps every message instead of sending it.
type captureBackend struct {
	mu       sync.Mutex
	messages []*protocol.Message
	options  map[string]any
	closed   bool
}

var captured = &captureBackend{}

func init() {
	interfaces.RegisterBackend("capture", func() interfaces.SendBackend {
		captured = &captureBackend{}
		return captured
	})
}

func (c *captureBackend) Name() string { return "capture" }

func (c *captureBackend) Configure(options map[string]any) error {
	c.options = options
	return nil
}

func (c *captureBackend) Send(_ context.Context, msg *protocol.Message) (*protocol.Receipt, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.messages = append(c.messages, msg)
	return &protocol.Receipt{MessageID: msg.ID, Backend: "capture", Delivered: true}, nil
}

func (c *captureBackend) Close() error {
	c.closed = true
	return nil
}

func (c *captureBackend) texts() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []string
	for _, m := range c.messages {
		out = append(out, m.Kind+":"+m.Text)
	}
	return out
}

func testConfig(t *testing.T, mode, order string) *config.Config {
	t.Helper()
	cfg, err := config.Read("")
	if err != nil {
		t.Fatalf("config.Read: %v", err)
	}
	cfg.Dispatcher.Mode = mode
	cfg.Dispatcher.Order = order
	cfg.Network.Backend = "capture"
	cfg.Identity.Nick = "alice"
	return cfg
}

func TestSessionDispatchesLines(t *testing.T) {
	var out bytes.Buffer
	s, err := New(testConfig(t, "default", "commands_first"), WithOutput(&out))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer s.Close()

	input := "hello;/me waves;/sigil !\n!echo from bang;plain\n"
	if err := s.Run(context.Background(), strings.NewReader(input)); err != nil {
		t.Fatalf("Run: %v", err)
	}

	want := []string{
		"action:waves",
		"text:hello",
		"text:from bang",
		"text:plain",
	}
	if got := captured.texts(); !reflect.DeepEqual(got, want) {
		t.Fatalf("sent = %q\nwant   %q", got, want)
	}
	if !strings.Contains(out.String(), `sigil "!" registered`) {
		t.Fatalf("command output = %q", out.String())
	}
	if got := s.Dispatcher.Sigils(); !reflect.DeepEqual(got, []string{"!", "/"}) {
		t.Fatalf("sigils = %q", got)
	}
}

func TestSessionOnlyFormat(t *testing.T) {
	s, err := New(testConfig(t, "only_format", "as_written"), WithOutput(&bytes.Buffer{}))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer s.Close()

	if err := s.HandleLine(context.Background(), "/help;hi"); err != nil {
		t.Fatalf("HandleLine: %v", err)
	}
	if got := captured.texts(); !reflect.DeepEqual(got, []string{"batch:/help\nhi"}) {
		t.Fatalf("sent = %q", got)
	}
}

func TestSessionRunSkipsBadLines(t *testing.T) {
	var out bytes.Buffer
	s, err := New(testConfig(t, "default", "as_written"), WithOutput(&out))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer s.Close()

	input := "/nosuchcommand;lost\n/echo\nafter\n"
	if err := s.Run(context.Background(), strings.NewReader(input)); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := captured.texts(); !reflect.DeepEqual(got, []string{"text:after"}) {
		t.Fatalf("sent = %q", got)
	}
	if !strings.Contains(out.String(), "error: echo:") {
		t.Fatalf("usage error not shown: %q", out.String())
	}
}

func TestSessionRunHandlesLongLines(t *testing.T) {
	s, err := New(testConfig(t, "default", "as_written"), WithOutput(&bytes.Buffer{}))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer s.Close()

	long := strings.Repeat("x", 70*1024)
	input := "before\r\n" + long + "\nafter"
	if err := s.Run(context.Background(), strings.NewReader(input)); err != nil {
		t.Fatalf("Run: %v", err)
	}
	want := []string{"text:before", "text:" + long, "text:after"}
	if got := captured.texts(); !reflect.DeepEqual(got, want) {
		t.Fatalf("sent %d messages, want %d", len(got), len(want))
	}
}

func TestSessionStrictStopsOnMalformedLine(t *testing.T) {
	cfg := testConfig(t, "default", "as_written")
	cfg.Dispatcher.Strict = true
	s, err := New(cfg, WithOutput(&bytes.Buffer{}))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer s.Close()

	err = s.Run(context.Background(), strings.NewReader("ok\n\xff\nnever\n"))
	if !errors.Is(err, dispatch.ErrInvalidArgument) {
		t.Fatalf("error = %v, want ErrInvalidArgument", err)
	}
	if got := captured.texts(); !reflect.DeepEqual(got, []string{"text:ok"}) {
		t.Fatalf("sent = %q", got)
	}
}

func TestSessionWithMacrosAndHistory(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "macros.yaml"), []byte("macros:\n  wave:\n    text: \"{nick} waves at {args}\"\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg := testConfig(t, "default", "as_written")
	cfg.Path = filepath.Join(dir, "config.yaml")
	cfg.Macros = "macros.yaml"
	cfg.History.Path = "history.db"
	cfg.Backends = map[string]map[string]any{"capture": {"room": "#geist"}}

	s, err := New(cfg, WithOutput(&bytes.Buffer{}))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if err := s.HandleLine(context.Background(), "/wave bob"); err != nil {
		t.Fatalf("HandleLine: %v", err)
	}
	if captured.options["room"] != "#geist" {
		t.Fatalf("backend options = %v", captured.options)
	}

	entries, err := s.History.Recent(context.Background(), 5)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(entries) != 1 || entries[0].Text != "alice waves at bob" {
		t.Fatalf("history = %+v", entries)
	}

	backend := captured
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if !backend.closed {
		t.Fatal("backend not closed")
	}
	if _, err := os.Stat(filepath.Join(dir, "history.db")); err != nil {
		t.Fatalf("history not created next to config: %v", err)
	}
}

func TestSessionRejectsUnknownBackend(t *testing.T) {
	cfg := testConfig(t, "default", "as_written")
	cfg.Network.Backend = "nope"
	if _, err := New(cfg); err == nil {
		t.Fatal("unknown backend accepted")
	}
}
