// Package backend provides concrete send backends for linegeist. Each backend
// registers itself with the interfaces registry on import.
package backend

import (
	"errors"
	"fmt"

	"github.com/go-viper/mapstructure/v2"
	"github.com/mfulz/linegeist/protocol"
)

var (
	// ErrNotConfigured indicates Send was called before a valid Configure.
	ErrNotConfigured = errors.New("backend: not configured")

	// ErrRejected indicates the remote endpoint refused a message.
	ErrRejected = errors.New("backend: message rejected")
)

// decodeOptions maps the generic options block of the config file onto a
// typed options struct. Unknown keys are an error so typos surface early.
func decodeOptions(in map[string]any, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		WeaklyTypedInput: true,
		ErrorUnused:      true,
		DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
	})
	if err != nil {
		return err
	}
	if err := dec.Decode(in); err != nil {
		return fmt.Errorf("invalid backend options: %w", err)
	}
	return nil
}

// skipped is the receipt for messages without text.
func skipped(backend string, msg *protocol.Message) *protocol.Receipt {
	r := &protocol.Receipt{Backend: backend, Skipped: true, Detail: "empty message"}
	if msg != nil {
		r.MessageID = msg.ID
	}
	return r
}
