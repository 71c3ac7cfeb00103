package domain

import "errors"

var ErrNotFound = errors.New("not found")
var ErrUnsupported = errors.New("unsupported operation")
var ErrInvalidTransition = errors.New("invalid state transition")
