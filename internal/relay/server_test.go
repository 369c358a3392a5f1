package relay_test

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/mfulz/linegeist/interfaces"
	_ "github.com/mfulz/linegeist/internal/backend"
	"github.com/mfulz/linegeist/internal/config"
	"github.com/mfulz/linegeist/internal/relay"
	"github.com/mfulz/linegeist/protocol"
)

type inbox struct {
	mu   sync.Mutex
	msgs []*protocol.Message
	fail error
}

func (i *inbox) deliver(_ context.Context, msg *protocol.Message) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.fail != nil {
		return i.fail
	}
	i.msgs = append(i.msgs, msg)
	return nil
}

func (i *inbox) texts() []string {
	i.mu.Lock()
	defer i.mu.Unlock()
	var out []string
	for _, m := range i.msgs {
		out = append(out, m.Text)
	}
	return out
}

func startRelay(t *testing.T, users map[string]string) (config.RelayConfig, *inbox) {
	t.Helper()
	cfg := config.RelayConfig{
		Network: "unix",
		Address: filepath.Join(t.TempDir(), "relay.sock"),
		Users:   users,
	}
	ln, err := relay.Listen(cfg)
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}

	box := &inbox{}
	srv := relay.NewServer(cfg, box.deliver)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx, ln) }()

	t.Cleanup(func() {
		cancel()
		select {
		case err := <-done:
			if !errors.Is(err, context.Canceled) {
				t.Errorf("Serve returned %v", err)
			}
		case <-time.After(2 * time.Second):
			t.Error("Serve did not stop")
		}
	})
	return cfg, box
}

func message(id, text string) *protocol.Message {
	return &protocol.Message{ID: id, Kind: protocol.KindText, Nick: "alice", Lines: []string{text}, Text: text}
}

func TestStreamBackendThroughRelay(t *testing.T) {
	cfg, box := startRelay(t, nil)

	b, err := interfaces.NewBackend("stream")
	if err != nil {
		t.Fatalf("NewBackend: %v", err)
	}
	defer b.Close()
	if err := b.Configure(map[string]any{"network": cfg.Network, "address": cfg.Address}); err != nil {
		t.Fatalf("Configure: %v", err)
	}

	for i, text := range []string{"hello", "second on the same connection"} {
		receipt, err := b.Send(context.Background(), message(fmt.Sprintf("m%d", i), text))
		if err != nil {
			t.Fatalf("Send %q: %v", text, err)
		}
		if !receipt.Delivered {
			t.Fatalf("receipt = %+v", receipt)
		}
	}
	if got := box.texts(); len(got) != 2 || got[0] != "hello" {
		t.Fatalf("relay received %q", got)
	}
}

func TestRelayAuth(t *testing.T) {
	cfg, box := startRelay(t, map[string]string{"alice": "s3cret"})

	send := func(user, token string) error {
		b, err := interfaces.NewBackend("stream")
		if err != nil {
			t.Fatalf("NewBackend: %v", err)
		}
		defer b.Close()
		opts := map[string]any{"network": cfg.Network, "address": cfg.Address, "user": user, "token": token}
		if err := b.Configure(opts); err != nil {
			t.Fatalf("Configure: %v", err)
		}
		_, err = b.Send(context.Background(), message("id-"+user, "hi from "+user))
		return err
	}

	if err := send("Alice", "s3cret"); err != nil {
		t.Fatalf("valid token rejected: %v", err)
	}
	if err := send("alice", "wrong"); err == nil || !strings.Contains(err.Error(), "not allowed") {
		t.Fatalf("wrong token error = %v", err)
	}
	if err := send("", ""); err == nil {
		t.Fatal("anonymous send accepted")
	}
	if got := box.texts(); len(got) != 1 {
		t.Fatalf("relay received %q", got)
	}
}

func TestRelayRawProtocol(t *testing.T) {
	cfg, box := startRelay(t, nil)
	box.fail = errors.New("disk full")

	conn, err := net.Dial(cfg.Network, cfg.Address)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer conn.Close()
	r := bufio.NewReader(conn)

	roundTrip := func(raw string) *protocol.Response {
		t.Helper()
		if _, err := conn.Write([]byte(raw + "\n")); err != nil {
			t.Fatalf("write: %v", err)
		}
		resp, err := protocol.ReadResponse(r)
		if err != nil {
			t.Fatalf("ReadResponse: %v", err)
		}
		return resp
	}

	if resp := roundTrip("{oops"); resp.OK() || resp.Error != "malformed request" {
		t.Fatalf("garbage: %+v", resp)
	}
	resp := roundTrip(`{"type":"system.ping"}`)
	var ping protocol.PingResponse
	if err := protocol.DecodeData(resp.Data, &ping); err != nil || !resp.OK() || ping.Server == "" {
		t.Fatalf("ping: %+v (%v)", resp, err)
	}
	if resp := roundTrip(`{"type":"proxy.list"}`); resp.Error != "unknown request type" {
		t.Fatalf("unknown type: %+v", resp)
	}
	if resp := roundTrip(`{"type":"message.send","data":{"text":"no id"}}`); resp.OK() {
		t.Fatalf("message without id accepted: %+v", resp)
	}
	if resp := roundTrip(`{"type":"message.send","data":{"id":"x","text":"hi"}}`); resp.Error != "disk full" {
		t.Fatalf("delivery failure: %+v", resp)
	}
}

func TestServeReturnsWhenListenerClosed(t *testing.T) {
	cfg := config.RelayConfig{Network: "unix", Address: filepath.Join(t.TempDir(), "relay.sock")}
	ln, err := relay.Listen(cfg)
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	box := &inbox{}
	srv := relay.NewServer(cfg, box.deliver)

	done := make(chan error, 1)
	go func() { done <- srv.Serve(context.Background(), ln) }()
	_ = ln.Close()

	select {
	case err := <-done:
		if !errors.Is(err, net.ErrClosed) {
			t.Fatalf("Serve returned %v, want net.ErrClosed", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not return after the listener closed")
	}
}
