package mcp

import (
	"errors"
	"fmt"

	"github.com/oxyledger/oxyregistry/internal/domain/activity"
	"github.com/oxyledger/oxyregistry/internal/domain/registry"
)

// APIError represents an MCP tool error.
type APIError struct {
	Code         string `json:"code"`
	Message      string `json:"message"`
	RecoveryHint string `json:"recovery_hint,omitempty"`
}

func (e *APIError) Error() string {
	if e.RecoveryHint == "" {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s (%s)", e.Code, e.Message, e.RecoveryHint)
}

// MapError maps domain errors to MCP error codes.
func MapError(err error) *APIError {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, registry.ErrUnknownProject):
		return &APIError{Code: "UNKNOWN_PROJECT", Message: err.Error(), RecoveryHint: "Call get_counters; valid project ids are 1..projects_created"}
	case errors.Is(err, registry.ErrUnknownBatch):
		return &APIError{Code: "UNKNOWN_BATCH", Message: err.Error(), RecoveryHint: "Create the batch with create_token_batch first"}
	case errors.Is(err, registry.ErrNotFound):
		return &APIError{Code: "NOT_FOUND", Message: err.Error(), RecoveryHint: "Call get_counters; valid token ids are 1..token_ids"}
	case errors.Is(err, registry.ErrInvalidInput), errors.Is(err, activity.ErrInvalidInput):
		return &APIError{Code: "INVALID_INPUT", Message: err.Error()}
	case errors.Is(err, registry.ErrAlreadyMinted):
		return &APIError{Code: "ALREADY_MINTED", Message: err.Error(), RecoveryHint: "This registry mints each batch once; create a new batch"}
	case registry.IsFatal(err):
		return &APIError{Code: "REGISTRY_UNAVAILABLE", Message: err.Error()}
	default:
		return nil
	}
}

func toolError(err error) error {
	if mapped := MapError(err); mapped != nil {
		return mapped
	}
	return err
}
