package registry

import (
	"errors"
	"fmt"
)

var (
	// ErrReference indicates a transition named a project or batch that doesn't exist.
	ErrReference = errors.New("reference error")
	// ErrUnknownProject is the ErrReference raised for project ids.
	ErrUnknownProject = fmt.Errorf("%w: unknown project", ErrReference)
	// ErrUnknownBatch is the ErrReference raised for batch ids.
	ErrUnknownBatch = fmt.Errorf("%w: unknown batch", ErrReference)

	// ErrNotFound is returned by accessors for unknown batch ids.
	ErrNotFound = errors.New("not found")
	// ErrInvalidInput indicates a mint request failed boundary validation.
	ErrInvalidInput = errors.New("invalid input")
	// ErrAlreadyMinted is returned under MintOnce when a batch already carries mint data.
	ErrAlreadyMinted = errors.New("batch already minted")

	// ErrInvariantViolation indicates counters and mappings disagree. Fatal.
	ErrInvariantViolation = errors.New("invariant violation")
	// ErrExhausted indicates an identifier counter cannot advance. Fatal.
	ErrExhausted = errors.New("identifier space exhausted")
)

// IsFatal reports whether err must not be retried: repeating the call cannot
// succeed and the operator has to intervene.
func IsFatal(err error) bool {
	return errors.Is(err, ErrInvariantViolation) || errors.Is(err, ErrExhausted)
}
