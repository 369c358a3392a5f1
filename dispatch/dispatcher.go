// Package dispatch splits raw input lines into segments and routes each
// segment either to a command executor or to a formatter and sender,
// following a configurable interpretation mode and order.
package dispatch

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"unicode"
	"unicode/utf8"

	"github.com/mfulz/linegeist/internal/logging"
	"github.com/mfulz/linegeist/protocol"
	"go.uber.org/zap"
)

// Separator splits an input line into segments.
const Separator = ";"

// Formatter turns one segment, or an ordered batch of segments, into a
// network-ready message.
type Formatter interface {
	Format(ctx context.Context, segments []string) (*protocol.Message, error)
}

// Sender delivers a formatted message.
type Sender interface {
	Send(ctx context.Context, msg *protocol.Message) (*protocol.Receipt, error)
}

// CommandExecutor runs a command segment, sigil included.
type CommandExecutor interface {
	Execute(ctx context.Context, command string) (*protocol.Response, error)
}

// Options configures a LineDispatcher at construction time.
type Options struct {
	Mode   InterpMode
	Order  InterpOrder
	Sigils []string

	// Logger defaults to logging.Log.
	Logger *zap.SugaredLogger
}

// LineDispatcher classifies and dispatches input lines.
type LineDispatcher struct {
	mu     sync.RWMutex
	sigils map[rune]struct{}

	mode  InterpMode
	order InterpOrder

	formatter Formatter
	sender    Sender
	executor  CommandExecutor

	log *zap.SugaredLogger
}

// New creates a LineDispatcher. Mode and order are fixed for its lifetime.
func New(opts Options, formatter Formatter, sender Sender, executor CommandExecutor) (*LineDispatcher, error) {
	if !opts.Mode.Valid() {
		return nil, fmt.Errorf("%w: %v", ErrInvalidArgument, opts.Mode)
	}
	if !opts.Order.Valid() {
		return nil, fmt.Errorf("%w: %v", ErrInvalidArgument, opts.Order)
	}
	if formatter == nil || sender == nil || executor == nil {
		return nil, fmt.Errorf("%w: formatter, sender and executor are required", ErrInvalidArgument)
	}

	log := opts.Logger
	if log == nil {
		log = logging.Log
	}

	d := &LineDispatcher{
		sigils:    make(map[rune]struct{}),
		mode:      opts.Mode,
		order:     opts.Order,
		formatter: formatter,
		sender:    sender,
		executor:  executor,
		log:       log,
	}

	for _, s := range opts.Sigils {
		if _, err := d.RegisterSigil(s); err != nil {
			return nil, err
		}
	}
	return d, nil
}

// Mode returns the interpretation mode.
func (d *LineDispatcher) Mode() InterpMode { return d.mode }

// Order returns the interpretation order.
func (d *LineDispatcher) Order() InterpOrder { return d.order }

// RegisterSigil adds a single-character trigger. It returns true if the sigil
// was already registered, in which case nothing changes.
func (d *LineDispatcher) RegisterSigil(sigil string) (bool, error) {
	if utf8.RuneCountInString(sigil) != 1 {
		return false, fmt.Errorf("%w: sigil must be exactly one character, got %q", ErrInvalidArgument, sigil)
	}
	if !utf8.ValidString(sigil) {
		return false, fmt.Errorf("%w: sigil %q is not valid UTF-8", ErrInvalidArgument, sigil)
	}
	r, _ := utf8.DecodeRuneInString(sigil)

	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.sigils[r]; ok {
		return true, nil
	}
	d.sigils[r] = struct{}{}
	d.log.Debugf("[dispatch] registered sigil %q", sigil)
	return false, nil
}

// Sigils returns the registered sigils in sorted order.
func (d *LineDispatcher) Sigils() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()

	out := make([]string, 0, len(d.sigils))
	for r := range d.sigils {
		out = append(out, string(r))
	}
	sort.Strings(out)
	return out
}

// SplitLine partitions line on Separator and strips leading whitespace from
// every segment. Empty segments are kept.
func SplitLine(line string) []string {
	segments := strings.Split(line, Separator)
	for i, seg := range segments {
		segments[i] = strings.TrimLeftFunc(seg, unicode.IsSpace)
	}
	return segments
}

// IsCommand reports whether segment starts with a registered sigil. The
// empty segment is never a command.
func (d *LineDispatcher) IsCommand(segment string) bool {
	r, size := utf8.DecodeRuneInString(segment)
	if size == 0 {
		return false
	}

	d.mu.RLock()
	defer d.mu.RUnlock()
	_, ok := d.sigils[r]
	return ok
}

// HandleInputLine splits, classifies and dispatches one input line. It
// returns once every required collaborator call has completed. The first
// collaborator error aborts the remaining segments of the line.
func (d *LineDispatcher) HandleInputLine(ctx context.Context, line string) error {
	if !utf8.ValidString(line) {
		return fmt.Errorf("%w: input line is not valid UTF-8", ErrInvalidArgument)
	}

	segments := SplitLine(line)

	if d.mode == ModeOnlyFormat {
		if _, _, err := d.FormatAndSend(ctx, segments...); err != nil {
			d.log.Warnf("[dispatch] batch send failed: %v", err)
			return fmt.Errorf("batch: %w", err)
		}
		return nil
	}

	// classified once, by index, so that equal texts never share a verdict
	// computed elsewhere
	isCommand := make([]bool, len(segments))
	for i, seg := range segments {
		isCommand[i] = d.IsCommand(seg)
	}

	d.log.Debugf("[dispatch] line with %d segments, mode=%s order=%s", len(segments), d.mode, d.order)

	var err error
	switch d.order {
	case OrderAsWritten:
		err = d.dispatchWhere(ctx, segments, func(i int) (bool, bool) {
			return true, isCommand[i]
		})
	case OrderCommandsFirst:
		err = d.dispatchWhere(ctx, segments, func(i int) (bool, bool) {
			return isCommand[i], true
		})
		if err == nil {
			err = d.dispatchWhere(ctx, segments, func(i int) (bool, bool) {
				return !isCommand[i], false
			})
		}
	case OrderMessagesFirst:
		err = d.dispatchWhere(ctx, segments, func(i int) (bool, bool) {
			return !isCommand[i], false
		})
		if err == nil {
			err = d.dispatchWhere(ctx, segments, func(i int) (bool, bool) {
				return isCommand[i], true
			})
		}
	}
	return err
}

// dispatchWhere walks segments in order. pick tells for every index whether
// the segment is part of this pass and whether it is a command.
func (d *LineDispatcher) dispatchWhere(ctx context.Context, segments []string, pick func(i int) (bool, bool)) error {
	for i, seg := range segments {
		selected, command := pick(i)
		if !selected {
			continue
		}
		if !command && d.mode == ModeOnlyCommand {
			continue
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		var err error
		if command {
			_, err = d.HandleCommand(ctx, seg)
		} else {
			_, _, err = d.FormatAndSend(ctx, seg)
		}
		if err != nil {
			d.log.Warnf("[dispatch] aborting line at segment %d: %v", i, err)
			return fmt.Errorf("segment %d (%q): %w", i, seg, err)
		}
	}
	return nil
}

// FormatAndSend formats one segment, or several as a batch, and sends the
// result. Both outcomes are returned.
func (d *LineDispatcher) FormatAndSend(ctx context.Context, segments ...string) (*protocol.Message, *protocol.Receipt, error) {
	if len(segments) == 0 {
		return nil, nil, fmt.Errorf("%w: nothing to format", ErrInvalidArgument)
	}

	msg, err := d.formatter.Format(ctx, segments)
	if err != nil {
		return nil, nil, fmt.Errorf("format: %w", err)
	}

	receipt, err := d.sender.Send(ctx, msg)
	if err != nil {
		return msg, nil, fmt.Errorf("send: %w", err)
	}
	return msg, receipt, nil
}

// HandleCommand passes a command segment to the executor and waits for it.
func (d *LineDispatcher) HandleCommand(ctx context.Context, segment string) (*protocol.Response, error) {
	d.log.Debugf("[dispatch] executing %q", segment)
	resp, err := d.executor.Execute(ctx, segment)
	if err != nil {
		return nil, err
	}
	if resp != nil && !resp.OK() {
		d.log.Warnf("[dispatch] command %q reported: %s", segment, resp.Error)
	}
	return resp, nil
}
