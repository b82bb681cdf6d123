package input

import "errors"

var ErrInvalidEvent = errors.New("invalid input event")
