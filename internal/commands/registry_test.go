package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/mfulz/linegeist/protocol"
)

// fakeLine records what commands send and which sigils they register.
type fakeLine struct {
	sent    []string
	sigils  map[string]bool
	sendErr error
}

func newFakeLine() *fakeLine {
	return &fakeLine{sigils: map[string]bool{"/": true}}
}

func (f *fakeLine) FormatAndSend(_ context.Context, segments ...string) (*protocol.Message, *protocol.Receipt, error) {
	if f.sendErr != nil {
		return nil, nil, f.sendErr
	}
	text := strings.Join(segments, "\n")
	f.sent = append(f.sent, text)
	id := fmt.Sprintf("m%d", len(f.sent))
	return &protocol.Message{ID: id, Text: text}, &protocol.Receipt{MessageID: id, Backend: "fake", Delivered: true}, nil
}

func (f *fakeLine) RegisterSigil(s string) (bool, error) {
	if len([]rune(s)) != 1 {
		return false, errors.New("bad sigil")
	}
	present := f.sigils[s]
	f.sigils[s] = true
	return present, nil
}

func (f *fakeLine) Sigils() []string {
	var out []string
	for s := range f.sigils {
		out = append(out, s)
	}
	return out
}

func newTestRegistry() (*Registry, *fakeLine) {
	line := newFakeLine()
	r := NewRegistry("alice")
	r.Attach(line, func(_ context.Context, text string) (*protocol.Receipt, error) {
		line.sent = append(line.sent, "* alice "+text)
		return &protocol.Receipt{MessageID: "a1", Backend: "fake", Delivered: true}, nil
	})
	return r, line
}

func TestExecuteEcho(t *testing.T) {
	r, line := newTestRegistry()

	resp, err := r.Execute(context.Background(), "/echo hello   world --not-a-flag")
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !resp.OK() {
		t.Fatalf("response = %+v", resp)
	}
	if want := []string{"hello world --not-a-flag"}; !reflect.DeepEqual(line.sent, want) {
		t.Fatalf("sent = %q, want %q", line.sent, want)
	}
	if resp.Data != "sent m1 via fake" {
		t.Fatalf("data = %v", resp.Data)
	}
}

func TestExecuteStripsAnySigil(t *testing.T) {
	r, line := newTestRegistry()
	if _, err := r.Execute(context.Background(), "!ECHO hi"); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if len(line.sent) != 1 || line.sent[0] != "hi" {
		t.Fatalf("sent = %q", line.sent)
	}
}

func TestExecuteMe(t *testing.T) {
	r, line := newTestRegistry()
	if _, err := r.Execute(context.Background(), "/me waves"); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if want := []string{"* alice waves"}; !reflect.DeepEqual(line.sent, want) {
		t.Fatalf("sent = %q", line.sent)
	}
}

func TestExecuteErrors(t *testing.T) {
	r, _ := newTestRegistry()

	if _, err := r.Execute(context.Background(), "/nope"); !errors.Is(err, ErrUnknownCommand) {
		t.Fatalf("unknown: error = %v", err)
	}
	if _, err := r.Execute(context.Background(), "/"); !errors.Is(err, ErrInvalidCommand) {
		t.Fatalf("empty: error = %v", err)
	}

	unattached := NewRegistry("x")
	if _, err := unattached.Execute(context.Background(), "/help"); err == nil {
		t.Fatal("unattached registry executed a command")
	}
}

func TestUsageErrorsAreResponses(t *testing.T) {
	r, _ := newTestRegistry()

	cases := []string{
		"/echo",            // missing args
		"/help extra",      // no args allowed
		"/sysinfo --bogus", // unknown flag
		"/sigil ab",        // rejected by the dispatcher
	}
	for _, c := range cases {
		resp, err := r.Execute(context.Background(), c)
		if err != nil {
			t.Fatalf("%s: unexpected error %v", c, err)
		}
		if resp.Status != protocol.StatusError || resp.Error == "" {
			t.Fatalf("%s: response = %+v", c, resp)
		}
	}
}

func TestSendFailureIsAnError(t *testing.T) {
	r, line := newTestRegistry()
	line.sendErr = errors.New("offline")

	if _, err := r.Execute(context.Background(), "/echo hi"); !errors.Is(err, line.sendErr) {
		t.Fatalf("error = %v, want offline", err)
	}
}

func TestSigilCommand(t *testing.T) {
	r, _ := newTestRegistry()

	resp, err := r.Execute(context.Background(), "/sigil !")
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if resp.Data != `sigil "!" registered` {
		t.Fatalf("first data = %v", resp.Data)
	}
	resp, _ = r.Execute(context.Background(), "/sigil !")
	if resp.Data != `sigil "!" already registered` {
		t.Fatalf("second data = %v", resp.Data)
	}
}

func TestHelpListsMacros(t *testing.T) {
	r, _ := newTestRegistry()
	if err := r.AddMacros(map[string]Macro{"shrug": {Text: `¯\_(ツ)_/¯`}}); err != nil {
		t.Fatalf("AddMacros: %v", err)
	}
	resp, err := r.Execute(context.Background(), "/help")
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	data := resp.Data.(string)
	for _, name := range []string{"echo", "me", "sigil", "sysinfo", "shrug"} {
		if !strings.Contains(data, name) {
			t.Fatalf("help output %q lacks %s", data, name)
		}
	}
}

func TestAddRejectsShadowing(t *testing.T) {
	r, _ := newTestRegistry()
	if err := r.AddMacros(map[string]Macro{"echo": {Text: "x"}}); err == nil {
		t.Fatal("macro shadowed a built-in")
	}
	if err := r.AddMacros(map[string]Macro{"hi": {Text: "x"}}); err != nil {
		t.Fatalf("AddMacros: %v", err)
	}
	if err := r.AddMacros(map[string]Macro{"hi": {Text: "y"}}); err == nil {
		t.Fatal("duplicate macro accepted")
	}
}

func TestTextMacro(t *testing.T) {
	r, line := newTestRegistry()
	if err := r.AddMacros(map[string]Macro{"greet": {Text: "{nick} says hi to {args}"}}); err != nil {
		t.Fatal(err)
	}
	if _, err := r.Execute(context.Background(), "/greet bob carol"); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if want := []string{"alice says hi to bob carol"}; !reflect.DeepEqual(line.sent, want) {
		t.Fatalf("sent = %q", line.sent)
	}
}

func TestLuaMacro(t *testing.T) {
	r, line := newTestRegistry()
	script := `
for i, a in ipairs(args) do
  send(nick .. " counts " .. i .. ": " .. a)
end
reply("done " .. #args)
`
	if err := r.AddMacros(map[string]Macro{"count": {Lua: script}}); err != nil {
		t.Fatal(err)
	}
	resp, err := r.Execute(context.Background(), "/count x y")
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	want := []string{"alice counts 1: x", "alice counts 2: y"}
	if !reflect.DeepEqual(line.sent, want) {
		t.Fatalf("sent = %q, want %q", line.sent, want)
	}
	if resp.Data != "done 2" {
		t.Fatalf("data = %v", resp.Data)
	}
}

func TestLuaMacroErrorAborts(t *testing.T) {
	r, _ := newTestRegistry()
	if err := r.AddMacros(map[string]Macro{"bad": {Lua: `error("nope")`}}); err != nil {
		t.Fatal(err)
	}
	if _, err := r.Execute(context.Background(), "/bad"); err == nil || !strings.Contains(err.Error(), "nope") {
		t.Fatalf("error = %v", err)
	}
}

func TestLoadMacros(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "macros.yaml")
	if err := os.WriteFile(good, []byte(`
macros:
  shrug:
    description: Shrug
    text: "¯\\_(ツ)_/¯ {args}"
  roll:
    lua: |
      send(nick .. " rolls " .. math.random(1, 6))
`), 0o600); err != nil {
		t.Fatal(err)
	}
	macros, err := LoadMacros(good)
	if err != nil {
		t.Fatalf("LoadMacros: %v", err)
	}
	if len(macros) != 2 || macros["shrug"].Description != "Shrug" || macros["roll"].Lua == "" {
		t.Fatalf("macros = %+v", macros)
	}

	bad := filepath.Join(dir, "bad.yaml")
	if err := os.WriteFile(bad, []byte("macros:\n  both:\n    text: a\n    lua: b\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadMacros(bad); err == nil {
		t.Fatal("macro with text and lua accepted")
	}
	if _, err := LoadMacros(filepath.Join(dir, "missing.yaml")); err == nil {
		t.Fatal("missing file accepted")
	}
}

func TestSysinfo(t *testing.T) {
	r, line := newTestRegistry()
	resp, err := r.Execute(context.Background(), "/sysinfo")
	if err != nil {
		t.Skipf("host info unavailable: %v", err)
	}
	if s, _ := resp.Data.(string); !strings.Contains(s, " up ") {
		t.Fatalf("sysinfo output = %q", resp.Data)
	}
	if len(line.sent) != 0 {
		t.Fatalf("sysinfo sent without --send: %q", line.sent)
	}

	if _, err := r.Execute(context.Background(), "/sysinfo --send"); err != nil {
		t.Fatalf("sysinfo --send: %v", err)
	}
	if len(line.sent) != 1 {
		t.Fatalf("sent = %q", line.sent)
	}
}

func TestFormatUptime(t *testing.T) {
	cases := []struct {
		in   uint64
		want string
	}{
		{59, "0h0m"},
		{3660, "1h1m"},
		{90000, "1d1h"},
	}
	for _, tc := range cases {
		if got := formatUptime(tc.in); got != tc.want {
			t.Fatalf("formatUptime(%d) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
