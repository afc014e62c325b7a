package protocol

import (
	"errors"
	"strings"
)

var (
	ErrMissingInput   = errors.New("missing required input")
	ErrUnknownTarget  = errors.New("unknown invocation target")
	ErrRecordNotFound = errors.New("record not found")
)

// MissingInputError lists the required arguments that could not be resolved.
type MissingInputError struct {
	Names []string
}

func (e *MissingInputError) Error() string {
	return ErrMissingInput.Error() + ": " + strings.Join(e.Names, ", ")
}

func (e *MissingInputError) Unwrap() error {
	return ErrMissingInput
}
