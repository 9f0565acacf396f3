package activity

import "errors"

// ErrInvalidInput indicates invalid list options.
var ErrInvalidInput = errors.New("invalid activity input")
