package registry

import (
	"context"

	"github.com/oxyledger/oxyregistry/internal/domain/activity"
)

// Journal durably stores ledger entries produced by the registry.
type Journal interface {
	Append(ctx context.Context, entries []activity.Entry) error
	List(ctx context.Context, opts activity.ListOptions) ([]activity.Entry, error)
	LastSeq(ctx context.Context) (uint64, error)
}
