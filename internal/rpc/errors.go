package rpc

import (
	"errors"

	"github.com/oxyledger/oxyregistry/internal/domain/activity"
	"github.com/oxyledger/oxyregistry/internal/domain/registry"
	"github.com/oxyledger/oxyregistry/internal/transport"
)

// MapError maps domain errors to JSON-RPC errors. Unknown errors map to nil
// so the transport reports them as internal without leaking detail.
func MapError(err error) *transport.Error {
	if err == nil {
		return nil
	}
	var rpcErr *transport.Error
	switch {
	case errors.As(err, &rpcErr):
		return rpcErr
	case errors.Is(err, registry.ErrReference):
		return &transport.Error{Code: transport.ErrReferenceCode, Message: err.Error()}
	case errors.Is(err, registry.ErrNotFound):
		return &transport.Error{Code: transport.ErrNotFoundCode, Message: err.Error()}
	case errors.Is(err, registry.ErrInvalidInput), errors.Is(err, activity.ErrInvalidInput):
		return &transport.Error{Code: transport.ErrInvalidParams, Message: err.Error()}
	case errors.Is(err, registry.ErrAlreadyMinted):
		return &transport.Error{Code: transport.ErrAlreadyMintedCode, Message: err.Error()}
	case registry.IsFatal(err):
		return &transport.Error{Code: transport.ErrInternal, Message: "registry unavailable: " + err.Error()}
	default:
		return nil
	}
}

func invalidParams(message string) *transport.Error {
	return &transport.Error{Code: transport.ErrInvalidParams, Message: message}
}
