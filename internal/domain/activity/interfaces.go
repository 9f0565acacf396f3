package activity

import "context"

// Repository provides persistence operations for ledger entries.
type Repository interface {
	Append(ctx context.Context, entries []Entry) error
	List(ctx context.Context, opts ListOptions) ([]Entry, error)
	LastSeq(ctx context.Context) (uint64, error)
}
