package repository

import (
	"context"

	"github.com/oxyledger/oxyregistry/internal/domain/activity"
)

// ActivityRepository manages ledger persistence
type ActivityRepository interface {
	Append(ctx context.Context, entries []activity.Entry) error
	List(ctx context.Context, opts activity.ListOptions) ([]activity.Entry, error)
	LastSeq(ctx context.Context) (uint64, error)
}

// APIKeyRepository manages bearer tokens for the HTTP surfaces
type APIKeyRepository interface {
	Add(ctx context.Context, token, caller, description string) error
	ResolveCaller(ctx context.Context, token string) (string, error)
}
