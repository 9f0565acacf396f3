package activity

import (
	"context"
	"fmt"
	"log/slog"
)

const (
	defaultLimit = 50
	maxLimit     = 500
)

// Service handles ledger history queries.
type Service struct {
	repo   Repository
	logger *slog.Logger
}

// NewService creates a new activity service.
func NewService(repo Repository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Service{repo: repo, logger: logger}
}

// GetRecentActivity lists ledger entries with filtering.
func (s *Service) GetRecentActivity(ctx context.Context, opts ListOptions) ([]Entry, error) {
	if opts.Limit < 0 {
		return nil, ErrInvalidInput
	}
	if opts.Type != nil && !opts.Type.Valid() {
		return nil, ErrInvalidInput
	}
	if opts.Limit == 0 {
		opts.Limit = defaultLimit
	}
	if opts.Limit > maxLimit {
		opts.Limit = maxLimit
	}

	entries, err := s.repo.List(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("listing activity: %w", err)
	}
	s.logger.Debug("listed activity", "count", len(entries), "project_id", opts.ProjectID, "batch_id", opts.BatchID)
	return entries, nil
}
