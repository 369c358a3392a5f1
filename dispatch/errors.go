package dispatch

import "errors"

// ErrInvalidArgument is returned for malformed sigils, malformed input lines
// and invalid dispatcher options. It is never returned for collaborator
// failures.
var ErrInvalidArgument = errors.New("dispatch: invalid argument")
