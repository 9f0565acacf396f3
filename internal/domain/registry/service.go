package registry

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/oxyledger/oxyregistry/internal/domain/activity"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "oxyregistry/registry"

// Service exposes the registry to outer surfaces and journals its ledger.
type Service struct {
	reg     *Registry
	journal Journal
	logger  *slog.Logger
	tracer  trace.Tracer

	flushMu   sync.Mutex
	persisted uint64
}

// NewService creates a new registry service. journal may be nil, in which
// case the ledger lives only in memory.
func NewService(reg *Registry, journal Journal, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Service{
		reg:     reg,
		journal: journal,
		logger:  logger,
		tracer:  otel.Tracer(tracerName),
	}
}

// MintRequest defines mint inputs.
type MintRequest struct {
	BatchID      uint64
	Amount       uint64
	SerialNumber string
}

// Load restores the registry from the journal. It must run before any write.
func (s *Service) Load(ctx context.Context) error {
	if s.journal == nil {
		return nil
	}
	ctx, span := s.tracer.Start(ctx, "registry.Load")
	defer span.End()

	s.flushMu.Lock()
	defer s.flushMu.Unlock()

	lastSeq, err := s.journal.LastSeq(ctx)
	if err != nil {
		return s.fail(span, fmt.Errorf("reading journal position: %w", err))
	}
	entries, err := s.journal.List(ctx, activity.ListOptions{Ascending: true})
	if err != nil {
		return s.fail(span, fmt.Errorf("reading journal: %w", err))
	}
	var listed uint64
	if n := len(entries); n > 0 {
		listed = entries[n-1].Seq
	}
	if listed != lastSeq {
		return s.fail(span, fmt.Errorf("journal ends at seq %d but listing ends at %d: %w",
			lastSeq, listed, ErrInvariantViolation))
	}
	if err := s.reg.Restore(entries); err != nil {
		return s.fail(span, err)
	}
	s.persisted = lastSeq
	s.reg.Compact(lastSeq)

	snap := s.reg.Snapshot()
	s.logger.Info("registry restored",
		"entries", len(entries),
		"projects_created", snap.ProjectsCreated,
		"token_ids", snap.TokenIDs,
	)
	return nil
}

// CreateProject creates a new project and returns its id.
func (s *Service) CreateProject(ctx context.Context) (uint64, error) {
	ctx, span := s.tracer.Start(ctx, "registry.CreateProject")
	defer span.End()

	id, err := s.reg.CreateProject()
	if err != nil {
		return 0, s.fail(span, err)
	}
	span.SetAttributes(attribute.Int64("oxy.project_id", int64(id)))
	s.logger.Debug("project created", "project_id", id)

	s.flush(ctx)
	return id, nil
}

// CreateNewTokenBatch creates a batch under projectID and returns its id.
func (s *Service) CreateNewTokenBatch(ctx context.Context, projectID uint64) (uint64, error) {
	ctx, span := s.tracer.Start(ctx, "registry.CreateNewTokenBatch",
		trace.WithAttributes(attribute.Int64("oxy.project_id", int64(projectID))))
	defer span.End()

	id, err := s.reg.CreateNewTokenBatch(projectID)
	if err != nil {
		return 0, s.fail(span, err)
	}
	span.SetAttributes(attribute.Int64("oxy.token_id", int64(id)))
	s.logger.Debug("batch created", "project_id", projectID, "token_id", id)

	s.flush(ctx)
	return id, nil
}

// Mint attaches an amount and serial number to a batch.
func (s *Service) Mint(ctx context.Context, req MintRequest) error {
	ctx, span := s.tracer.Start(ctx, "registry.Mint",
		trace.WithAttributes(attribute.Int64("oxy.token_id", int64(req.BatchID))))
	defer span.End()

	if err := s.reg.Mint(req.BatchID, req.Amount, req.SerialNumber); err != nil {
		return s.fail(span, err)
	}
	s.logger.Debug("batch minted", "token_id", req.BatchID, "amount", req.Amount, "serial_number", req.SerialNumber)

	s.flush(ctx)
	return nil
}

// ProjectsCreated returns the project counter.
func (s *Service) ProjectsCreated(_ context.Context) uint64 {
	return s.reg.ProjectsCreated()
}

// TokenIDs returns the global batch counter.
func (s *Service) TokenIDs(_ context.Context) uint64 {
	return s.reg.TokenIDs()
}

// TokenIDsToAmounts returns the minted amount of a batch.
func (s *Service) TokenIDsToAmounts(_ context.Context, batchID uint64) (uint64, error) {
	return s.reg.TokenIDsToAmounts(batchID)
}

// TokenToSerialNumber returns the serial number of a batch.
func (s *Service) TokenToSerialNumber(_ context.Context, batchID uint64) (string, error) {
	return s.reg.TokenToSerialNumber(batchID)
}

// Batch returns a view of one batch.
func (s *Service) Batch(_ context.Context, batchID uint64) (Batch, error) {
	return s.reg.Batch(batchID)
}

// BatchesOf returns the batches of a project.
func (s *Service) BatchesOf(_ context.Context, projectID uint64) ([]Batch, error) {
	return s.reg.BatchesOf(projectID)
}

// ProjectExists reports whether projectID has been created.
func (s *Service) ProjectExists(_ context.Context, projectID uint64) bool {
	return s.reg.ProjectExists(projectID)
}

// Snapshot returns the current counters.
func (s *Service) Snapshot(_ context.Context) Snapshot {
	return s.reg.Snapshot()
}

// Sync writes every ledger entry not yet in the journal and releases the
// in-memory copies of what was written.
func (s *Service) Sync(ctx context.Context) error {
	if s.journal == nil {
		return nil
	}
	s.flushMu.Lock()
	defer s.flushMu.Unlock()

	pending := s.reg.Events(s.persisted)
	if len(pending) == 0 {
		return nil
	}
	if err := s.journal.Append(ctx, pending); err != nil {
		return fmt.Errorf("appending %d journal entries: %w", len(pending), err)
	}
	s.persisted = pending[len(pending)-1].Seq
	s.reg.Compact(s.persisted)
	return nil
}

// flush journals pending entries after a successful transition. The
// transition has already happened, so a failure is logged and the entries
// stay pending until the next flush.
func (s *Service) flush(ctx context.Context) {
	if err := s.Sync(ctx); err != nil {
		s.logger.Error("journal flush failed", "error", err)
	}
}

func (s *Service) fail(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	if IsFatal(err) {
		s.logger.Error("registry fatal error", "error", err)
	}
	return err
}
