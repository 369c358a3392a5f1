// Package format turns dispatched segments into network-ready messages.
package format

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
	"github.com/mfulz/linegeist/protocol"
)

// Formatter builds protocol messages for a single nick.
type Formatter struct {
	Nick string

	now   func() time.Time
	newID func() string
}

// New creates a Formatter for nick.
func New(nick string) *Formatter {
	return &Formatter{
		Nick:  nick,
		now:   time.Now,
		newID: func() string { return uuid.NewString() },
	}
}

// Format builds a text message from one segment or a batch message from
// several.
func (f *Formatter) Format(ctx context.Context, segments []string) (*protocol.Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(segments) == 0 {
		return nil, fmt.Errorf("format: no segments")
	}

	kind := protocol.KindText
	if len(segments) > 1 {
		kind = protocol.KindBatch
	}
	return f.build(kind, segments), nil
}

// FormatAction builds an emote message, as sent by "/me".
func (f *Formatter) FormatAction(ctx context.Context, text string) (*protocol.Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return f.build(protocol.KindAction, []string{text}), nil
}

func (f *Formatter) build(kind string, segments []string) *protocol.Message {
	lines := make([]string, len(segments))
	for i, seg := range segments {
		lines[i] = strings.TrimRightFunc(seg, unicode.IsSpace)
	}
	return &protocol.Message{
		ID:        f.newID(),
		Kind:      kind,
		Nick:      f.Nick,
		Lines:     lines,
		Text:      strings.Join(lines, "\n"),
		CreatedAt: f.now().UTC(),
	}
}

// RenderPlain renders msg the way a terminal chat client shows it.
func RenderPlain(msg *protocol.Message) string {
	nick := msg.Nick
	if nick == "" {
		nick = "*"
	}
	if msg.Kind == protocol.KindAction {
		return fmt.Sprintf("* %s %s", nick, msg.Text)
	}

	var b strings.Builder
	for i, line := range msg.Lines {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "<%s> %s", nick, line)
	}
	return b.String()
}

// Truncate truncates a string to max runes, marking the cut with "~".
func Truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	if max <= 1 {
		return string(r[:max])
	}
	return string(r[:max-1]) + "~"
}
